package importer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/playerdex/pkg/directory"
)

func init() {
	Register(jsonAdapter{})
}

// jsonAdapter reads a directory dump: either a bare array of records or a
// bundle-shaped {"version": ..., "players": [...]} object.
type jsonAdapter struct{}

func (jsonAdapter) ID() string { return "json" }
func (jsonAdapter) Description() string {
	return "JSON array of player records or {version, players} dump"
}

func (jsonAdapter) Match(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".json")
}

func (jsonAdapter) Parse(r io.Reader, version string) ([]directory.PlayerRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read json: %w", err)
	}
	data = bytes.TrimSpace(data)

	var raw []directory.PlayerRecord
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	} else {
		var b directory.Bundle
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		if b.Version != "" && b.Version != version {
			return nil, fmt.Errorf("dump is for version %q, not %q", b.Version, version)
		}
		raw = b.Players
	}

	records := make([]directory.PlayerRecord, 0, len(raw))
	for _, p := range raw {
		if p.Version != "" && p.Version != version {
			continue
		}
		name := strings.TrimSpace(p.ShortName)
		if name == "" {
			name = strings.TrimSpace(p.NameLower)
		}
		if name == "" {
			continue
		}
		rec := NewRecord(version, name, strings.TrimSpace(p.PlayerPositions), func(r *directory.PlayerRecord) {
			r.Overall = p.Overall
			r.Potential = p.Potential
			r.Age = p.Age
			r.ClubPosition = p.ClubPosition
			r.NationalityName = p.NationalityName
			r.PreferredFoot = normFoot(p.PreferredFoot)
		})
		if p.ID != "" {
			rec.ID = p.ID
		}
		if s := directory.Normalize(p.SurnameLower); s != "" {
			rec.SurnameLower = s
		}
		records = append(records, rec)
	}
	return records, nil
}
