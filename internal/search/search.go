// Package search holds the one shared text normalizer used to filter
// entities by free-text query. Both the query and every searchable field
// pass through Normalize before substring comparison, so common Spanish
// misspellings (b/v confusion, soft c as s, missing accents) still match.
package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Normalize lower-cases, strips diacritics, folds ñ to n, then applies the
// canonical phonetic folds: v becomes b, z becomes s, and c becomes s
// before e or i. Pure and environment-independent.
func Normalize(text string) string {
	lowered := strings.ToLower(text)
	stripped, _, err := transform.String(stripMarks, lowered)
	if err != nil {
		stripped = lowered
	}
	stripped = strings.ReplaceAll(stripped, "ñ", "n")
	stripped = strings.ReplaceAll(stripped, "v", "b")
	stripped = strings.ReplaceAll(stripped, "z", "s")

	var b strings.Builder
	b.Grow(len(stripped))
	rs := []rune(stripped)
	for i, r := range rs {
		if r == 'c' && i+1 < len(rs) && (rs[i+1] == 'e' || rs[i+1] == 'i') {
			b.WriteRune('s')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Matches reports whether any of the fields contains the query after
// normalization. An empty query matches everything.
func Matches(query string, fields ...string) bool {
	q := Normalize(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(Normalize(f), q) {
			return true
		}
	}
	return false
}
