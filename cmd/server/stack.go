package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hazyhaar/playerdex/pkg/api"
	"github.com/hazyhaar/playerdex/pkg/directory"
	"github.com/hazyhaar/playerdex/pkg/importer"
	"github.com/hazyhaar/playerdex/pkg/kvstore"
	"github.com/hazyhaar/playerdex/pkg/remote"
)

// stack is everything a subcommand needs to answer directory queries.
type stack struct {
	cache   *directory.Cache
	svc     *api.Service
	catalog *importer.Catalog
	closers []func() error
}

func (s *stack) Close() {
	s.cache.Close()
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStack wires the acquisition tiers from cfg:
// snapshot store, then bundles (local dir before upstream), then pages
// from upstream or else the local catalog.
func openStack(cfg config, logger *slog.Logger) (*stack, error) {
	st := &stack{}
	fail := func(err error) (*stack, error) {
		for i := len(st.closers) - 1; i >= 0; i-- {
			st.closers[i]()
		}
		return nil, err
	}

	var kv directory.KV = kvstore.NewMemory()
	if cfg.SnapshotDB != "" {
		if err := ensureParent(cfg.SnapshotDB); err != nil {
			return fail(err)
		}
		db, err := kvstore.OpenSQLite(cfg.SnapshotDB)
		if err != nil {
			return fail(fmt.Errorf("open snapshot store: %w", err))
		}
		st.closers = append(st.closers, db.Close)
		kv = db
	}
	snapshots := directory.NewSnapshotStore(kv, logger)

	if cfg.CatalogDB != "" {
		if err := ensureParent(cfg.CatalogDB); err != nil {
			return fail(err)
		}
		cat, err := importer.OpenCatalog(cfg.CatalogDB)
		if err != nil {
			return fail(fmt.Errorf("open catalog: %w", err))
		}
		st.closers = append(st.closers, cat.Close)
		st.catalog = cat
	}

	var bundles bundleChain
	var local *directory.DirBundles
	if cfg.BundleDir != "" {
		local = &directory.DirBundles{Dir: cfg.BundleDir}
		bundles = append(bundles, local)
	}

	var pages directory.PageFetcher
	if cfg.UpstreamURL != "" {
		client := remote.New(cfg.UpstreamURL, nil, logger)
		bundles = append(bundles, client)
		pages = client
	} else if st.catalog != nil {
		pages = st.catalog
	}

	acq := directory.NewAcquirer(directory.AcquirerConfig{
		Snapshots:      snapshots,
		Bundles:        bundles,
		Pages:          pages,
		PageSize:       cfg.PageSize,
		MaxPages:       cfg.MaxPages,
		PagesPerSecond: cfg.PagesPerSecond,
	}, logger)
	st.cache = directory.NewCache(acq, snapshots, logger)

	apiCfg := api.Config{
		Cache:          st.cache,
		DefaultVersion: cfg.Version,
		DefaultLimit:   cfg.Search.DefaultLimit,
		MaxLimit:       cfg.Search.MaxLimit,
		Logger:         logger,
	}
	if st.catalog != nil {
		apiCfg.Catalog = st.catalog
	}
	if local != nil {
		apiCfg.Bundles = local
	}
	st.svc = api.New(apiCfg)
	return st, nil
}

// bundleChain asks each source in turn, moving on when one has no bundle
// for the version.
type bundleChain []directory.BundleSource

func (c bundleChain) FetchBundle(ctx context.Context, version string) (*directory.Bundle, error) {
	for _, src := range c {
		b, err := src.FetchBundle(ctx, version)
		if errors.Is(err, directory.ErrBundleNotFound) {
			continue
		}
		return b, err
	}
	return nil, fmt.Errorf("bundle %q: %w", version, directory.ErrBundleNotFound)
}

func ensureParent(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	return nil
}
