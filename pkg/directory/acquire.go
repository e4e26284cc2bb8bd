package directory

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"golang.org/x/time/rate"
)

const (
	DefaultPageSize = 1000
	DefaultMaxPages = 200
)

// Tier names the acquisition tier a batch came from.
type Tier string

const (
	TierSnapshot Tier = "snapshot"
	TierBundle   Tier = "bundle"
	TierRemote   Tier = "remote"
)

// Batch is one step of a dataset load. Progress is the number of records
// delivered so far in the load, this batch included. A snapshot batch
// carries the restored Index instead of Records.
type Batch struct {
	Records  []PlayerRecord
	Index    *Index
	Progress int
	Done     bool
	Tier     Tier
}

// Page is one page of the remote directory. An empty NextToken ends the
// listing.
type Page struct {
	Records   []PlayerRecord `json:"records"`
	NextToken string         `json:"nextToken,omitempty"`
}

// PageFetcher lists the directory for a version page by page.
type PageFetcher interface {
	FetchPage(ctx context.Context, version string, pageSize int, token string) (Page, error)
}

// Source produces the batches of a dataset load. The sequence stops at the
// first error.
type Source interface {
	Batches(ctx context.Context, version string) iter.Seq2[Batch, error]
}

// AcquirerConfig wires the tiers of an Acquirer. Any tier may be nil.
type AcquirerConfig struct {
	Snapshots *SnapshotStore
	Bundles   BundleSource
	Pages     PageFetcher

	// PageSize is the remote page size. If 0, DefaultPageSize.
	PageSize int

	// MaxPages caps the remote listing. If 0, DefaultMaxPages.
	MaxPages int

	// PagesPerSecond paces remote page fetches. If 0, unlimited.
	PagesPerSecond float64
}

// Acquirer loads a dataset version from the first tier that has it:
// persisted snapshot, then packaged bundle, then the paginated remote
// directory.
type Acquirer struct {
	cfg     AcquirerConfig
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewAcquirer creates an acquirer over the configured tiers.
func NewAcquirer(cfg AcquirerConfig, logger *slog.Logger) *Acquirer {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Acquirer{cfg: cfg, logger: logger}
	if cfg.PagesPerSecond > 0 {
		a.limiter = rate.NewLimiter(rate.Limit(cfg.PagesPerSecond), 1)
	}
	return a
}

// Batches implements Source. Each tier is tried only when the tiers before
// it produced no records. Snapshot and bundle problems fall through
// silently; remote errors end the sequence.
func (a *Acquirer) Batches(ctx context.Context, version string) iter.Seq2[Batch, error] {
	return func(yield func(Batch, error) bool) {
		if b, ok := a.fromSnapshot(ctx, version); ok {
			yield(b, nil)
			return
		}
		if b, ok := a.fromBundle(ctx, version); ok {
			yield(b, nil)
			return
		}
		if a.cfg.Pages == nil {
			yield(Batch{}, fmt.Errorf("load %s: %w", version, ErrNoSource))
			return
		}
		a.fromPages(ctx, version, yield)
	}
}

func (a *Acquirer) fromSnapshot(ctx context.Context, version string) (Batch, bool) {
	snap := a.cfg.Snapshots.Get(ctx, version)
	if snap.Len() == 0 {
		return Batch{}, false
	}
	idx, err := IndexFromSnapshot(snap)
	if err != nil {
		a.logger.Warn("snapshot unusable", "version", version, "error", err)
		return Batch{}, false
	}
	a.logger.Debug("directory from snapshot", "version", version, "names", idx.Len())
	return Batch{Index: idx, Progress: idx.Len(), Done: true, Tier: TierSnapshot}, true
}

func (a *Acquirer) fromBundle(ctx context.Context, version string) (Batch, bool) {
	if a.cfg.Bundles == nil {
		return Batch{}, false
	}
	b, err := a.cfg.Bundles.FetchBundle(ctx, version)
	switch {
	case errors.Is(err, ErrBundleNotFound):
		a.logger.Debug("no bundle", "version", version)
		return Batch{}, false
	case err != nil:
		a.logger.Warn("bundle unusable", "version", version, "error", err)
		return Batch{}, false
	case b == nil || len(b.Players) == 0:
		return Batch{}, false
	case b.Version != "" && b.Version != version:
		a.logger.Warn("bundle version mismatch", "version", version, "found", b.Version)
		return Batch{}, false
	}
	a.logger.Debug("directory from bundle", "version", version, "records", len(b.Players))
	return Batch{Records: b.Players, Progress: len(b.Players), Done: true, Tier: TierBundle}, true
}

func (a *Acquirer) fromPages(ctx context.Context, version string, yield func(Batch, error) bool) {
	token := ""
	total := 0
	for page := 1; page <= a.cfg.MaxPages; page++ {
		if a.limiter != nil {
			if err := a.limiter.Wait(ctx); err != nil {
				yield(Batch{}, fmt.Errorf("fetch page %d: %w", page, err))
				return
			}
		}
		p, err := a.cfg.Pages.FetchPage(ctx, version, a.cfg.PageSize, token)
		if err != nil {
			yield(Batch{}, fmt.Errorf("fetch page %d: %w", page, err))
			return
		}
		total += len(p.Records)
		done := p.NextToken == ""
		if !yield(Batch{Records: p.Records, Progress: total, Done: done, Tier: TierRemote}, nil) {
			return
		}
		if done {
			a.logger.Debug("directory from remote", "version", version, "pages", page, "records", total)
			return
		}
		token = p.NextToken
	}
	yield(Batch{}, fmt.Errorf("load %s after %d pages: %w", version, a.cfg.MaxPages, ErrPaginationCap))
}
