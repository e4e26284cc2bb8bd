package directory

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Letters that carry no combining mark under NFD but show up in player
// names often enough to matter (Ødegaard, Lewandowski's Łukasz, ...).
var foldLetters = strings.NewReplacer(
	"ø", "o",
	"ł", "l",
	"đ", "d",
	"ß", "ss",
	"æ", "ae",
	"œ", "oe",
	"ı", "i",
)

// Normalize folds a raw name or query into its comparable form: trimmed,
// lowercased, accents stripped and internal whitespace collapsed to single
// spaces (e.g. "  Martin  ØDEGAARD " -> "martin odegaard").
// Normalize(Normalize(s)) == Normalize(s) for every s.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = strings.ToLower(s)
	stripped, _, err := transform.String(stripAccents, s)
	if err != nil {
		stripped = s
	}
	// Folding last catches the ø and æ that NFD leaves behind in ǿ, ǣ, ǽ.
	return strings.Join(strings.Fields(foldLetters.Replace(stripped)), " ")
}

// surnameOf derives the surname part of a normalized name: everything after
// the first period for "j. smith" shaped names, the whole name otherwise.
func surnameOf(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		if s := strings.TrimSpace(name[i+1:]); s != "" {
			return s
		}
	}
	return name
}
