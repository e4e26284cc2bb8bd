package importer

import (
	"context"
	"fmt"
	"time"
)

const sourcesDDL = `CREATE TABLE IF NOT EXISTS import_sources (
	version     TEXT PRIMARY KEY,
	adapter_id  TEXT NOT NULL,
	source      TEXT NOT NULL,
	records     INTEGER NOT NULL DEFAULT 0,
	imported_at INTEGER NOT NULL,
	last_check  INTEGER,
	last_status INTEGER,
	last_error  TEXT
)`

// Source records where a dataset version was last imported from.
type Source struct {
	Version    string  `json:"version"`
	AdapterID  string  `json:"adapter"`
	Location   string  `json:"source"`
	Records    int     `json:"records"`
	ImportedAt int64   `json:"importedAt"`
	LastCheck  *int64  `json:"lastCheck,omitempty"`
	LastStatus *int    `json:"lastStatus,omitempty"`
	LastError  *string `json:"lastError,omitempty"`
}

// RecordImport remembers the origin of an import, replacing the previous
// row for the version and clearing its check results.
func (c *Catalog) RecordImport(ctx context.Context, version, adapterID, location string, records int) error {
	_, err := c.db.ExecContext(ctx, `INSERT INTO import_sources
		(version, adapter_id, source, records, imported_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(version) DO UPDATE SET
			adapter_id = excluded.adapter_id, source = excluded.source, records = excluded.records,
			imported_at = excluded.imported_at, last_check = NULL, last_status = NULL, last_error = NULL`,
		version, adapterID, location, records, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("record import of %s: %w", version, err)
	}
	return nil
}

// UpdateCheck persists the result of an availability check.
func (c *Catalog) UpdateCheck(ctx context.Context, version string, status int, checkErr string) error {
	var errPtr *string
	if checkErr != "" {
		errPtr = &checkErr
	}
	_, err := c.db.ExecContext(ctx,
		`UPDATE import_sources SET last_check = ?, last_status = ?, last_error = ? WHERE version = ?`,
		time.Now().Unix(), status, errPtr, version,
	)
	if err != nil {
		return fmt.Errorf("update check for %s: %w", version, err)
	}
	return nil
}

// ListSources returns all import origins ordered by version.
func (c *Catalog) ListSources(ctx context.Context) ([]Source, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT version, adapter_id, source, records, imported_at,
		last_check, last_status, last_error
		FROM import_sources ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var s Source
		if err := rows.Scan(&s.Version, &s.AdapterID, &s.Location, &s.Records, &s.ImportedAt,
			&s.LastCheck, &s.LastStatus, &s.LastError); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}
