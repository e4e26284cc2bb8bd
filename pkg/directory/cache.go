package directory

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const persistTimeout = 30 * time.Second

// LoadStatus reports how far the load of a dataset version has got.
type LoadStatus struct {
	Version     string `json:"version"`
	Loaded      bool   `json:"loaded"`
	Loading     bool   `json:"loading"`
	LoadedCount int    `json:"loadedCount"`
	LastError   string `json:"lastError,omitempty"`
	Source      Tier   `json:"source,omitempty"`

	// Unavailable is set when the last load failed and nothing complete is
	// loaded; clients show a neutral "database unavailable" state.
	Unavailable bool `json:"unavailable"`
}

type entry struct {
	status  LoadStatus
	index   *Index
	running bool // a load goroutine owns this entry
}

// Cache owns the per-version indexes and their load status. At most one
// load runs per version; different versions load independently.
type Cache struct {
	source    Source
	snapshots *SnapshotStore
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	group  singleflight.Group

	mu      sync.RWMutex
	entries map[string]*entry
	closed  bool

	persist sync.WaitGroup
}

// NewCache creates a cache that loads through source and saves completed
// indexes to snapshots. snapshots may be nil.
func NewCache(source Source, snapshots *SnapshotStore, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		source:    source,
		snapshots: snapshots,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		entries:   make(map[string]*entry),
	}
}

// Load is a handle on a running or finished warm-up.
type Load struct {
	cache   *Cache
	version string
	done    chan struct{}
}

// Done is closed once the load has finished, successfully or not.
func (l *Load) Done() <-chan struct{} {
	return l.done
}

// Wait blocks until the load finishes or ctx ends, then returns the
// version's status at that moment.
func (l *Load) Wait(ctx context.Context) LoadStatus {
	select {
	case <-l.done:
	case <-ctx.Done():
	}
	return l.cache.Status(l.version)
}

// Warm makes sure version is loaded or loading. It returns at once; the
// load itself runs in the background and reports through Status, which
// reads as loading from the moment Warm returns. Calls for a version that
// is already loading share that load.
func (c *Cache) Warm(version string) *Load {
	l := &Load{cache: c, version: version, done: make(chan struct{})}
	c.mu.Lock()
	e, ok := c.entries[version]
	if ok && e.status.Loaded {
		c.mu.Unlock()
		close(l.done)
		return l
	}
	if !ok {
		e = &entry{status: LoadStatus{Version: version}, index: NewIndex(version)}
		c.entries[version] = e
	}
	e.status.Loading = true
	c.mu.Unlock()

	start := func() <-chan singleflight.Result {
		return c.group.DoChan(version, func() (any, error) {
			c.load(version)
			return nil, nil
		})
	}
	ch := start()
	go func() {
		defer close(l.done)
		for {
			<-ch
			// A load that was finishing when this Warm marked the entry
			// as loading does not pick the request up; start another.
			c.mu.Lock()
			orphaned := e.status.Loading && !e.running
			if orphaned && c.closed {
				e.status.Loading = false
				orphaned = false
			}
			c.mu.Unlock()
			if !orphaned {
				return
			}
			ch = start()
		}
	}()
	return l
}

// load owns a version's index and status while it runs. singleflight
// guarantees one load per version at a time.
//
// A retry builds a fresh index but keeps serving the index of the failed
// load until the new one has caught up with it.
func (c *Cache) load(version string) {
	c.mu.Lock()
	e, ok := c.entries[version]
	if ok && e.status.Loaded {
		e.status.Loading = false
		c.mu.Unlock()
		return
	}
	if !ok {
		e = &entry{index: NewIndex(version)}
		c.entries[version] = e
	}
	e.running = true
	prev := e.index
	e.status = LoadStatus{Version: version, Loading: true, LoadedCount: prev.Len(), Source: e.status.Source}
	c.mu.Unlock()

	idx := NewIndex(version)
	swapped := false
	// publish makes idx the served index once it holds at least as many
	// rows as prev. Callers hold c.mu.
	publish := func() {
		if !swapped && idx.Len() >= prev.Len() {
			e.index = idx
			swapped = true
		}
		if swapped {
			e.status.LoadedCount = idx.Len()
		}
	}

	start := time.Now()
	c.logger.Info("loading directory", "version", version, "serving", prev.Len())

	source := c.source
	if source == nil {
		source = noSource{}
	}
	var tier Tier
	for batch, err := range source.Batches(c.ctx, version) {
		if err != nil {
			c.mu.Lock()
			e.status.Loading = false
			e.status.LastError = err.Error()
			e.running = false
			c.mu.Unlock()
			c.logger.Error("directory load failed", "version", version, "loaded", idx.Len(), "error", err)
			return
		}
		if batch.Index != nil {
			idx = batch.Index
		} else {
			idx.Append(batch.Records...)
		}
		tier = batch.Tier

		c.mu.Lock()
		publish()
		if swapped {
			e.status.Source = tier
		}
		c.mu.Unlock()

		if batch.Done {
			break
		}
	}

	c.mu.Lock()
	e.index = idx
	e.status.Loading = false
	e.status.Loaded = true
	e.status.LoadedCount = idx.Len()
	e.status.Source = tier
	e.running = false
	persist := !c.closed && tier != TierSnapshot && c.snapshots != nil
	if persist {
		c.persist.Add(1)
	}
	c.mu.Unlock()

	c.logger.Info("directory loaded", "version", version, "names", idx.Len(),
		"source", tier, "duration", time.Since(start).Round(time.Millisecond))

	if persist {
		go c.save(version, idx)
	}
}

// save persists a completed index. It outlives cancellation of the cache
// context so Close can wait for it.
func (c *Cache) save(version string, idx *Index) {
	defer c.persist.Done()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.ctx), persistTimeout)
	defer cancel()
	c.snapshots.Put(ctx, version, idx.Snapshot())
}

// Status returns the current status of version without blocking on any
// load. A version that was never warmed reports a zero status.
func (c *Cache) Status(version string) LoadStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[version]
	if !ok {
		return LoadStatus{Version: version}
	}
	return e.snapshotStatus()
}

func (e *entry) snapshotStatus() LoadStatus {
	s := e.status
	s.Unavailable = s.LastError != "" && !s.Loaded && !s.Loading
	return s
}

// CurrentIndex returns the index for version as it stands, possibly still
// loading, or nil if version was never warmed.
func (c *Cache) CurrentIndex(version string) *Index {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.entries[version]; ok {
		return e.index
	}
	return nil
}

// Search runs query against the current index for version.
func (c *Cache) Search(version, query string, limit int) []Result {
	return Search(query, c.CurrentIndex(version), limit)
}

// Versions returns the status of every version the cache knows about,
// ordered by version.
func (c *Cache) Versions() []LoadStatus {
	c.mu.RLock()
	out := make([]LoadStatus, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.snapshotStatus())
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}

// Close cancels running loads and waits for pending snapshot writes.
func (c *Cache) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.persist.Wait()
}

type noSource struct{}

func (noSource) Batches(_ context.Context, version string) iter.Seq2[Batch, error] {
	return func(yield func(Batch, error) bool) {
		yield(Batch{}, fmt.Errorf("load %s: %w", version, ErrNoSource))
	}
}
