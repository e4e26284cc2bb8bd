package directory

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"
)

// MaxCandidates bounds how many matching rows one query collects before
// ranking, so a permissive query on a cold index stays cheap.
const MaxCandidates = 400

var (
	initialRe       = regexp.MustCompile(`^[a-z]\.`)
	initialPrefixRe = regexp.MustCompile(`^[a-z]\.\s*`)
)

// Match ranks, best first.
const (
	RankSurname   = iota // surname starts with the query
	RankName             // full normalized name starts with the query
	RankDisplay          // display name starts with the query
	RankWord             // query starts a later word of the name
	RankSubstring        // query starts right after a '-', '\'' or '.' inside a word
)

// Result is one ranked suggestion.
type Result struct {
	Meta
	Name string `json:"name"`
	Rank int    `json:"rank"`
}

// Search returns at most limit suggestions for query, best first.
//
// Queries of the form "j." or "j. bell" only look at names starting with
// that letter. Anything else is matched against every indexed name, by
// prefix or at a word boundary; mid-word fragments ("ellingham") never
// match. Queries shorter than three characters return nothing unless they
// are a bare initial. Search is safe on an index that is still loading.
func Search(query string, idx *Index, limit int) []Result {
	if idx == nil || limit <= 0 {
		return nil
	}
	q := Normalize(query)
	initial := initialRe.MatchString(q)
	if initial {
		q = canonicalInitial(q)
	}
	if utf8.RuneCountInString(q) < 3 && !(initial && len(q) == 2) {
		return nil
	}
	sq := initialPrefixRe.ReplaceAllString(q, "")

	idx.mu.RLock()
	var found []Result
	if initial {
		found = scanBucket(idx, q, sq)
	} else {
		found = scanAll(idx, q)
	}
	idx.mu.RUnlock()

	slices.SortFunc(found, compareResults)
	if len(found) > limit {
		found = found[:limit]
	}
	return found
}

// canonicalInitial turns "j.bell" into "j. bell" so it lines up with the
// stored "initial. surname" form.
func canonicalInitial(q string) string {
	rest := strings.TrimSpace(q[2:])
	if rest == "" {
		return q[:2]
	}
	return q[:2] + " " + rest
}

// scanBucket does the prefix scan for initial-style queries. Callers hold
// idx.mu for reading.
func scanBucket(idx *Index, q, sq string) []Result {
	first, _ := utf8.DecodeRuneInString(q)
	bucket, ok := idx.byFirstChar[first]
	if !ok {
		return nil
	}
	var found []Result
	it := bucket.Iterator()
	for it.HasNext() && len(found) < MaxCandidates {
		i := int(it.Next())
		if i >= len(idx.names) {
			break
		}
		name := idx.names[i]
		if !strings.HasPrefix(name, q) {
			continue
		}
		rank := RankName
		if sq != "" && strings.HasPrefix(idx.meta[i].Surname, sq) {
			rank = RankSurname
		}
		found = append(found, Result{Meta: idx.meta[i], Name: name, Rank: rank})
	}
	return found
}

// scanAll matches q against every indexed name. Callers hold idx.mu for
// reading.
func scanAll(idx *Index, q string) []Result {
	var found []Result
	for i, name := range idx.names {
		if len(found) >= MaxCandidates {
			break
		}
		if rank, ok := rankFragment(name, idx.meta[i], q); ok {
			found = append(found, Result{Meta: idx.meta[i], Name: name, Rank: rank})
		}
	}
	return found
}

func rankFragment(name string, m Meta, q string) (int, bool) {
	switch {
	case strings.HasPrefix(m.Surname, q):
		return RankSurname, true
	case strings.HasPrefix(name, q):
		return RankName, true
	case strings.HasPrefix(m.Display, q):
		return RankDisplay, true
	case strings.Contains(name, " "+q):
		return RankWord, true
	case afterSeparator(name, q):
		return RankSubstring, true
	}
	return 0, false
}

// afterSeparator reports whether q occurs in name directly after a hyphen,
// apostrophe or period ("arnold" in "t. alexander-arnold").
func afterSeparator(name, q string) bool {
	for off := 0; off < len(name); {
		i := strings.Index(name[off:], q)
		if i < 0 {
			return false
		}
		at := off + i
		if at > 0 {
			prev, _ := utf8.DecodeLastRuneInString(name[:at])
			switch prev {
			case '-', '\'', '.', '’':
				return true
			}
		}
		_, size := utf8.DecodeRuneInString(name[at:])
		off = at + size
	}
	return false
}

func compareResults(a, b Result) int {
	return cmp.Or(
		cmp.Compare(a.Rank, b.Rank),
		strings.Compare(a.Display, b.Display),
		strings.Compare(a.ShortName, b.ShortName),
		strings.Compare(a.ID, b.ID),
	)
}
