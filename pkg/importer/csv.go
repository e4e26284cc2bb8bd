package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/hazyhaar/playerdex/pkg/directory"
)

// ErrMissingColumns is returned for a CSV without short_name or
// player_positions.
var ErrMissingColumns = errors.New("CSV must include headers: short_name and player_positions")

// ParseCSV reads a player export (comma, tab or semicolon separated, as
// produced by spreadsheet tools) into directory records for version. Rows
// without a short name are skipped.
func ParseCSV(r io.Reader, version string) ([]directory.PlayerRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\uFEFF"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = sniffDelimiter(data)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	rows = dropBlankRows(rows)
	if len(rows) < 2 {
		return nil, errors.New("csv looks empty")
	}

	col := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
		if _, dup := col[h]; !dup {
			col[h] = i
		}
	}
	if _, ok := col["short_name"]; !ok {
		return nil, ErrMissingColumns
	}
	if _, ok := col["player_positions"]; !ok {
		return nil, ErrMissingColumns
	}
	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	records := make([]directory.PlayerRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		shortName := field(row, "short_name")
		if shortName == "" {
			continue
		}
		records = append(records, NewRecord(version, shortName, field(row, "player_positions"), func(r *directory.PlayerRecord) {
			r.Overall = toInt(field(row, "overall"))
			r.Potential = toInt(field(row, "potential"))
			r.Age = toInt(field(row, "age"))
			r.ClubPosition = field(row, "club_position")
			r.NationalityName = field(row, "nationality_name")
			r.PreferredFoot = normFoot(field(row, "preferred_foot"))
		}))
	}
	return records, nil
}

// NewRecord builds a directory record with its derived fields: the
// normalized name, the surname and the deterministic id
// "PM|<version>|<name>", which keeps re-imports idempotent.
func NewRecord(version, shortName, positions string, fill func(*directory.PlayerRecord)) directory.PlayerRecord {
	nameLower := directory.Normalize(shortName)
	r := directory.PlayerRecord{
		ID:              "PM|" + version + "|" + nameLower,
		ShortName:       shortName,
		NameLower:       nameLower,
		SurnameLower:    surnameLower(shortName),
		PlayerPositions: positions,
		PreferredFoot:   "R",
		Version:         version,
	}
	if fill != nil {
		fill(&r)
	}
	return r
}

// sniffDelimiter picks tab or semicolon when the first non-blank line uses
// them and has no comma.
func sniffDelimiter(data []byte) rune {
	var first string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			first = line
			break
		}
	}
	switch {
	case strings.Contains(first, "\t") && !strings.Contains(first, ","):
		return '\t'
	case strings.Contains(first, ";") && !strings.Contains(first, ","):
		return ';'
	}
	return ','
}

func dropBlankRows(rows [][]string) [][]string {
	out := rows[:0]
	for _, row := range rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				out = append(out, row)
				break
			}
		}
	}
	return out
}

func surnameLower(shortName string) string {
	s := strings.TrimSpace(shortName)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[i+1:]
	}
	return directory.Normalize(s)
}

func normFoot(v string) string {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "L", "LEFT":
		return "L"
	}
	return "R"
}

// toInt truncates numeric cells ("87", "87.0"); anything else is 0.
func toInt(s string) int {
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(math.Trunc(f))
}
