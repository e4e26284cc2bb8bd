package directory

import (
	"fmt"
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/RoaringBitmap/roaring/v2"
)

// Index is the in-memory search index for one dataset version.
//
// names and meta are parallel arrays; byFirstChar maps the first rune of a
// normalized name to the positions of every name starting with it. All
// three are only ever written by add, under the write lock, so readers may
// query an index that is still being filled.
type Index struct {
	mu          sync.RWMutex
	version     string
	names       []string
	meta        []Meta
	byFirstChar map[rune]*roaring.Bitmap
}

// NewIndex returns an empty index for version.
func NewIndex(version string) *Index {
	return &Index{
		version:     version,
		byFirstChar: make(map[rune]*roaring.Bitmap),
	}
}

// Build indexes records in one pass.
func Build(version string, records []PlayerRecord) *Index {
	x := NewIndex(version)
	x.Append(records...)
	return x
}

// Append indexes records in order and returns how many were added. Records
// without a usable name are skipped. Normalization happens before the write
// lock is taken, so searches only wait for the slice appends.
func (x *Index) Append(records ...PlayerRecord) int {
	names := make([]string, 0, len(records))
	metas := make([]Meta, 0, len(records))
	for _, r := range records {
		name := Normalize(r.NameLower)
		if name == "" {
			continue
		}
		names = append(names, name)
		metas = append(metas, metaFor(r, name))
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	for i, name := range names {
		x.add(name, metas[i])
	}
	return len(names)
}

// add is the only place names, meta and byFirstChar change. Callers hold mu.
func (x *Index) add(name string, m Meta) {
	pos := uint32(len(x.names))
	x.names = append(x.names, name)
	x.meta = append(x.meta, m)

	first, _ := utf8.DecodeRuneInString(name)
	bucket, ok := x.byFirstChar[first]
	if !ok {
		bucket = roaring.New()
		x.byFirstChar[first] = bucket
	}
	bucket.Add(pos)
}

// Version returns the dataset version the index was built for.
func (x *Index) Version() string {
	return x.version
}

// Len returns the number of indexed names.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.names)
}

// Name returns the normalized name and metadata stored at position i.
func (x *Index) Name(i int) (string, Meta, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if i < 0 || i >= len(x.names) {
		return "", Meta{}, false
	}
	return x.names[i], x.meta[i], true
}

// Bucket returns the positions of every name starting with c, ascending.
func (x *Index) Bucket(c rune) []int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	bucket, ok := x.byFirstChar[c]
	if !ok {
		return nil
	}
	out := make([]int, 0, bucket.GetCardinality())
	it := bucket.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}

// Buckets returns the first runes that have at least one name, sorted.
func (x *Index) Buckets() []rune {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]rune, 0, len(x.byFirstChar))
	for c := range x.byFirstChar {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Snapshot copies the index into its persistable form.
func (x *Index) Snapshot() *Snapshot {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return &Snapshot{
		Format:  snapshotFormat,
		Version: x.version,
		Names:   append([]string(nil), x.names...),
		Meta:    append([]Meta(nil), x.meta...),
	}
}

// IndexFromSnapshot restores an index, rebuilding the buckets from the
// names. A snapshot whose arrays disagree in length is rejected.
func IndexFromSnapshot(s *Snapshot) (*Index, error) {
	if s == nil {
		return nil, fmt.Errorf("restore index: %w", ErrSnapshotMismatch)
	}
	if len(s.Names) != len(s.Meta) {
		return nil, fmt.Errorf("restore index %s: %d names, %d meta: %w",
			s.Version, len(s.Names), len(s.Meta), ErrSnapshotMismatch)
	}
	x := NewIndex(s.Version)
	x.names = make([]string, 0, len(s.Names))
	x.meta = make([]Meta, 0, len(s.Meta))
	for i, name := range s.Names {
		if name == "" {
			continue
		}
		x.add(name, s.Meta[i])
	}
	return x, nil
}
