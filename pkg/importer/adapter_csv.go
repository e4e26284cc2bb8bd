package importer

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/playerdex/pkg/directory"
)

func init() {
	Register(csvAdapter{})
}

type csvAdapter struct{}

func (csvAdapter) ID() string { return "csv" }
func (csvAdapter) Description() string {
	return "player export with short_name and player_positions columns"
}

func (csvAdapter) Match(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".tsv", ".txt":
		return true
	}
	return false
}

func (csvAdapter) Parse(r io.Reader, version string) ([]directory.PlayerRecord, error) {
	return ParseCSV(r, version)
}
