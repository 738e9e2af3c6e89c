// Package benchmark resolves a market rent range per square meter for an
// area by probing rent index pages and parsing their text.
package benchmark

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	umlautReplacer = strings.NewReplacer(
		"ä", "ae", "ö", "oe", "ü", "ue",
		"Ä", "Ae", "Ö", "Oe", "Ü", "Ue",
		"ß", "ss",
	)
	nonSlugRe  = regexp.MustCompile(`[^a-zA-Z0-9 ]+`)
	spaceRunRe = regexp.MustCompile(`\s+`)
)

// stripMarks removes combining diacritics after canonical decomposition
func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Slug turns a place name into a URL path segment: umlauts are expanded,
// other diacritics stripped, anything else non-alphanumeric becomes a hyphen.
// "Lüssum-Bockhorn" -> "luessum-bockhorn", "St. Magnus" -> "st-magnus".
func Slug(s string) string {
	s = stripMarks(umlautReplacer.Replace(s))
	s = strings.TrimSpace(nonSlugRe.ReplaceAllString(s, " "))
	return strings.ToLower(spaceRunRe.ReplaceAllString(s, "-"))
}

// NormalizeCityForSearch keeps the part of a city name before the first
// '-', '/' or '(' and transliterates it: "Bremen-Horn-Lehe" -> "Bremen",
// "München" -> "Muenchen".
func NormalizeCityForSearch(city string) string {
	if i := strings.IndexAny(city, "-/("); i >= 0 {
		city = city[:i]
	}
	return stripMarks(umlautReplacer.Replace(strings.TrimSpace(city)))
}
