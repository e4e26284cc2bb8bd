// Package importer loads reference player datasets (spreadsheet CSV exports
// or JSON dumps) into the catalog and packages them as bundles.
package importer

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/hazyhaar/playerdex/pkg/directory"
)

// Adapter turns one dataset file format into directory records.
type Adapter interface {
	// ID returns the unique identifier of this adapter (e.g. "csv").
	ID() string
	// Description returns a human-readable description.
	Description() string
	// Match reports whether the adapter reads files with this name.
	Match(filename string) bool
	// Parse reads the whole file and returns records tagged with version.
	Parse(r io.Reader, version string) ([]directory.PlayerRecord, error)
}

var (
	registryMu sync.RWMutex
	adapters   = make(map[string]Adapter)
)

// Register adds an adapter to the global registry.
func Register(a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	adapters[a.ID()] = a
}

// Get returns a registered adapter by ID, or an error if not found.
func Get(id string) (Adapter, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	a, ok := adapters[id]
	if !ok {
		return nil, fmt.Errorf("unknown dataset format: %q", id)
	}
	return a, nil
}

// ForFile returns the first adapter, by ID, that matches filename.
func ForFile(filename string) (Adapter, error) {
	for _, a := range All() {
		if a.Match(filename) {
			return a, nil
		}
	}
	return nil, fmt.Errorf("no dataset format for %q", filename)
}

// All returns all registered adapters sorted by ID.
func All() []Adapter {
	registryMu.RLock()
	defer registryMu.RUnlock()
	result := make([]Adapter, 0, len(adapters))
	for _, a := range adapters {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID() < result[j].ID() })
	return result
}
