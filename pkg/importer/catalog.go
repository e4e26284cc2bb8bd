package importer

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/playerdex/pkg/directory"
)

// MaxPageSize caps a catalog page regardless of what the caller asks for.
const MaxPageSize = 5000

// ErrBadToken is returned for a continuation token the catalog did not issue.
var ErrBadToken = errors.New("invalid continuation token")

// Catalog is the player_master table: the authoritative reference directory
// that the remote tier pages through.
type Catalog struct {
	db *sql.DB
}

// OpenCatalog opens (or creates) the SQLite database at path and ensures the
// player_master and import_sources tables exist.
func OpenCatalog(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}

	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS player_master (
			id               TEXT PRIMARY KEY,
			version          TEXT NOT NULL,
			short_name       TEXT NOT NULL,
			name_lower       TEXT NOT NULL,
			surname_lower    TEXT NOT NULL DEFAULT '',
			player_positions TEXT NOT NULL DEFAULT '',
			overall          INTEGER NOT NULL DEFAULT 0,
			potential        INTEGER NOT NULL DEFAULT 0,
			age              INTEGER NOT NULL DEFAULT 0,
			club_position    TEXT NOT NULL DEFAULT '',
			nationality_name TEXT NOT NULL DEFAULT '',
			preferred_foot   TEXT NOT NULL DEFAULT 'R',
			updated_at       INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS player_master_version ON player_master (version, id)`,
		sourcesDDL,
	} {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("create catalog schema: %w", err)
		}
	}
	return &Catalog{db: db}, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Upsert inserts new records and updates existing ones by id, in one
// transaction.
func (c *Catalog) Upsert(ctx context.Context, records []directory.PlayerRecord) (created, updated int, err error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	insert, err := tx.PrepareContext(ctx, `INSERT INTO player_master
		(id, version, short_name, name_lower, surname_lower, player_positions, overall, potential,
		 age, club_position, nationality_name, preferred_foot, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`)
	if err != nil {
		return 0, 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer insert.Close()

	update, err := tx.PrepareContext(ctx, `UPDATE player_master SET
		version = ?, short_name = ?, name_lower = ?, surname_lower = ?, player_positions = ?,
		overall = ?, potential = ?, age = ?, club_position = ?, nationality_name = ?,
		preferred_foot = ?, updated_at = ?
		WHERE id = ?`)
	if err != nil {
		return 0, 0, fmt.Errorf("prepare update: %w", err)
	}
	defer update.Close()

	now := time.Now().Unix()
	for _, r := range records {
		res, err := insert.ExecContext(ctx, r.ID, r.Version, r.ShortName, r.NameLower, r.SurnameLower,
			r.PlayerPositions, r.Overall, r.Potential, r.Age, r.ClubPosition, r.NationalityName,
			r.PreferredFoot, now)
		if err != nil {
			return 0, 0, fmt.Errorf("insert %s: %w", r.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			created++
			continue
		}
		if _, err := update.ExecContext(ctx, r.Version, r.ShortName, r.NameLower, r.SurnameLower,
			r.PlayerPositions, r.Overall, r.Potential, r.Age, r.ClubPosition, r.NationalityName,
			r.PreferredFoot, now, r.ID); err != nil {
			return 0, 0, fmt.Errorf("update %s: %w", r.ID, err)
		}
		updated++
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit upsert: %w", err)
	}
	return created, updated, nil
}

const selectRecord = `SELECT id, version, short_name, name_lower, surname_lower, player_positions,
	overall, potential, age, club_position, nationality_name, preferred_foot
	FROM player_master`

func scanRecords(rows *sql.Rows) ([]directory.PlayerRecord, error) {
	var out []directory.PlayerRecord
	for rows.Next() {
		var r directory.PlayerRecord
		if err := rows.Scan(&r.ID, &r.Version, &r.ShortName, &r.NameLower, &r.SurnameLower,
			&r.PlayerPositions, &r.Overall, &r.Potential, &r.Age, &r.ClubPosition,
			&r.NationalityName, &r.PreferredFoot); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Page returns up to pageSize records of version ordered by id, starting
// after the position token encodes. The returned NextToken is empty on the
// last page.
func (c *Catalog) Page(ctx context.Context, version string, pageSize int, token string) (directory.Page, error) {
	if pageSize <= 0 {
		pageSize = directory.DefaultPageSize
	}
	pageSize = min(pageSize, MaxPageSize)

	after := ""
	if token != "" {
		raw, err := base64.RawURLEncoding.DecodeString(token)
		if err != nil || len(raw) == 0 {
			return directory.Page{}, ErrBadToken
		}
		after = string(raw)
	}

	rows, err := c.db.QueryContext(ctx, selectRecord+` WHERE version = ? AND id > ? ORDER BY id LIMIT ?`,
		version, after, pageSize+1)
	if err != nil {
		return directory.Page{}, fmt.Errorf("query page: %w", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return directory.Page{}, err
	}
	page := directory.Page{Records: records}
	if len(records) > pageSize {
		page.Records = records[:pageSize]
		page.NextToken = base64.RawURLEncoding.EncodeToString([]byte(records[pageSize-1].ID))
	}
	if page.Records == nil {
		page.Records = []directory.PlayerRecord{}
	}
	return page, nil
}

// FetchPage implements directory.PageFetcher, so a local catalog can stand
// in for the remote directory service.
func (c *Catalog) FetchPage(ctx context.Context, version string, pageSize int, token string) (directory.Page, error) {
	return c.Page(ctx, version, pageSize, token)
}

// Records returns every record of version ordered by id.
func (c *Catalog) Records(ctx context.Context, version string) ([]directory.PlayerRecord, error) {
	rows, err := c.db.QueryContext(ctx, selectRecord+` WHERE version = ? ORDER BY id`, version)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// HasVersion reports whether any record exists for version.
func (c *Catalog) HasVersion(ctx context.Context, version string) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx, `SELECT 1 FROM player_master WHERE version = ? LIMIT 1`, version).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check version %s: %w", version, err)
	}
	return true, nil
}

// Count returns the number of records for version.
func (c *Catalog) Count(ctx context.Context, version string) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT count(*) FROM player_master WHERE version = ?`, version).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", version, err)
	}
	return n, nil
}

// VersionCount is one dataset version held by the catalog.
type VersionCount struct {
	Version string `json:"version"`
	Players int    `json:"players"`
}

// Versions lists the dataset versions in the catalog with their sizes.
func (c *Catalog) Versions(ctx context.Context) ([]VersionCount, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT version, count(*) FROM player_master GROUP BY version ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var out []VersionCount
	for rows.Next() {
		var v VersionCount
		if err := rows.Scan(&v.Version, &v.Players); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
