package directory

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
)

// snapshotFormat is bumped whenever Snapshot or Meta change shape, so stale
// entries read as misses instead of half-decoded indexes.
const snapshotFormat = 1

// Snapshot is the persisted form of a completed index. Buckets are rebuilt
// from Names on restore.
type Snapshot struct {
	Format  int
	Version string
	Names   []string
	Meta    []Meta
}

// Len returns the number of rows in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Names)
}

// EncodeSnapshot serializes s as a zstd-compressed gob stream.
func EncodeSnapshot(s *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return compress(buf.Bytes()), nil
}

// DecodeSnapshot reverses EncodeSnapshot and checks the parallel arrays.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	raw, err := decompress(data)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	var s Snapshot
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Format != snapshotFormat {
		return nil, fmt.Errorf("snapshot format %d, want %d: %w", s.Format, snapshotFormat, ErrSnapshotMismatch)
	}
	if len(s.Names) != len(s.Meta) {
		return nil, fmt.Errorf("snapshot has %d names and %d meta: %w", len(s.Names), len(s.Meta), ErrSnapshotMismatch)
	}
	return &s, nil
}

// KV is the durable byte store snapshots live in. Get returns nil, nil for
// a missing key; deleting a missing key succeeds.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// SnapshotStore keeps one snapshot per dataset version in a KV. Get and Put
// never fail their caller: unreadable or unwritable storage is logged and
// treated as a miss.
type SnapshotStore struct {
	kv     KV
	logger *slog.Logger
}

// NewSnapshotStore wraps kv. A nil kv yields a store that always misses.
func NewSnapshotStore(kv KV, logger *slog.Logger) *SnapshotStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotStore{kv: kv, logger: logger}
}

// SnapshotPrefix starts every snapshot key in the KV.
const SnapshotPrefix = "snapshot/"

func snapshotKey(version string) string {
	return SnapshotPrefix + version
}

// Get returns the saved snapshot for version, or nil.
func (s *SnapshotStore) Get(ctx context.Context, version string) *Snapshot {
	if s == nil || s.kv == nil {
		return nil
	}
	data, err := s.kv.Get(ctx, snapshotKey(version))
	if err != nil {
		s.logger.Warn("snapshot read failed", "version", version, "error", err)
		return nil
	}
	if len(data) == 0 {
		return nil
	}
	snap, err := DecodeSnapshot(data)
	if err != nil {
		s.logger.Warn("discarding unreadable snapshot", "version", version, "error", err)
		return nil
	}
	if snap.Version != version {
		s.logger.Warn("discarding snapshot for other version", "version", version, "found", snap.Version)
		return nil
	}
	return snap
}

// Put saves snap under version. Failures are logged and dropped.
func (s *SnapshotStore) Put(ctx context.Context, version string, snap *Snapshot) {
	if s == nil || s.kv == nil || snap == nil {
		return
	}
	data, err := EncodeSnapshot(snap)
	if err != nil {
		s.logger.Warn("snapshot encode failed", "version", version, "error", err)
		return
	}
	if err := s.kv.Put(ctx, snapshotKey(version), data); err != nil {
		s.logger.Warn("snapshot write failed", "version", version, "error", err)
		return
	}
	s.logger.Debug("snapshot saved", "version", version, "names", len(snap.Names), "bytes", len(data))
}

// Drop removes the snapshot for version, so the next load rebuilds it from
// a bundle or pages. Used after a re-import replaces the dataset.
func (s *SnapshotStore) Drop(ctx context.Context, version string) error {
	if s == nil || s.kv == nil {
		return nil
	}
	if err := s.kv.Delete(ctx, snapshotKey(version)); err != nil {
		return fmt.Errorf("drop snapshot %s: %w", version, err)
	}
	s.logger.Debug("snapshot dropped", "version", version)
	return nil
}
