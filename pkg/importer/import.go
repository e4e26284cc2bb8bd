package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hazyhaar/playerdex/pkg/directory"
)

// Options selects what one import run reads and writes.
type Options struct {
	// Source is a local path or http(s) URL; ZIP archives are unpacked.
	Source string
	// Version tags every imported record.
	Version string
	// Adapter forces a dataset format; empty picks one from the file name.
	Adapter string
	// BundleDir receives <version>.bundle and <version>.yaml. Empty skips
	// bundle packaging.
	BundleDir string
	// Snapshots, when set, drops the saved index for Version so the next
	// load sees the new rows.
	Snapshots *directory.SnapshotStore
}

// Report summarizes an import run. Previous is how many records the
// catalog held for the version before the run.
type Report struct {
	Version    string `json:"version"`
	Adapter    string `json:"adapter"`
	Records    int    `json:"records"`
	Created    int    `json:"created"`
	Updated    int    `json:"updated"`
	Previous   int    `json:"previous"`
	BundlePath string `json:"bundlePath,omitempty"`
}

// Run parses the dataset at opts.Source and stores it: upserted into cat
// when cat is non-nil, and packaged under opts.BundleDir when set.
func Run(ctx context.Context, opts Options, cat *Catalog, logger *slog.Logger) (*Report, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Source == "" || opts.Version == "" {
		return nil, errors.New("import: source and version are required")
	}

	workDir, err := os.MkdirTemp("", "playerdex-import-")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	path, err := resolveInput(ctx, opts.Source, workDir)
	if err != nil {
		return nil, err
	}
	adapter, err := pickAdapter(opts.Adapter, path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	records, err := adapter.Parse(f, opts.Version)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parse %s: no player rows", filepath.Base(path))
	}
	records = dedupe(records)
	logger.Info("parsed dataset", "version", opts.Version, "adapter", adapter.ID(), "records", len(records))

	rep := &Report{Version: opts.Version, Adapter: adapter.ID(), Records: len(records)}

	players := records
	if cat != nil {
		had, err := cat.HasVersion(ctx, opts.Version)
		if err != nil {
			return nil, err
		}
		if had {
			if rep.Previous, err = cat.Count(ctx, opts.Version); err != nil {
				return nil, err
			}
			logger.Info("version already imported, updating", "version", opts.Version, "players", rep.Previous)
		}
		rep.Created, rep.Updated, err = cat.Upsert(ctx, records)
		if err != nil {
			return nil, err
		}
		if err := cat.RecordImport(ctx, opts.Version, adapter.ID(), opts.Source, len(records)); err != nil {
			return nil, err
		}
		logger.Info("catalog updated", "version", opts.Version, "created", rep.Created, "updated", rep.Updated)

		// The bundle carries the whole version as the catalog now holds it,
		// rows from earlier imports included.
		if opts.BundleDir != "" && had {
			if players, err = cat.Records(ctx, opts.Version); err != nil {
				return nil, err
			}
		}
	}

	if opts.BundleDir != "" {
		bundlePath, err := directory.WriteBundleFile(opts.BundleDir, &directory.Bundle{Version: opts.Version, Players: players})
		if err != nil {
			return nil, err
		}
		rep.BundlePath = bundlePath
		if err := writeManifest(opts.BundleDir, &Manifest{
			Version:    opts.Version,
			Source:     opts.Source,
			Adapter:    adapter.ID(),
			Records:    len(players),
			BundleFile: filepath.Base(bundlePath),
			ImportedAt: time.Now().UTC().Truncate(time.Second),
		}); err != nil {
			return nil, err
		}
		logger.Info("bundle written", "path", bundlePath, "players", len(players))
	}

	if err := opts.Snapshots.Drop(ctx, opts.Version); err != nil {
		return nil, err
	}
	return rep, nil
}

func pickAdapter(id, path string) (Adapter, error) {
	if id != "" {
		return Get(id)
	}
	return ForFile(path)
}

// dedupe keeps the last record for each id, in first-seen order. Exports
// list the same short name more than once when two players share it.
func dedupe(records []directory.PlayerRecord) []directory.PlayerRecord {
	pos := make(map[string]int, len(records))
	out := records[:0]
	for _, r := range records {
		if i, ok := pos[r.ID]; ok {
			out[i] = r
			continue
		}
		pos[r.ID] = len(out)
		out = append(out, r)
	}
	return out
}
