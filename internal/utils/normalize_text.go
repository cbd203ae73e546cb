package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldAccents strips combining marks: "Évry-Courcouronnes" -> "Evry-Courcouronnes".
func FoldAccents(raw string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, raw)
	if err != nil {
		return raw
	}
	return folded
}

// NormalizeText folds accents and case and collapses whitespace, for
// comparisons between OCR text, geocoder output and search context.
func NormalizeText(raw string) string {
	normalized := strings.ToLower(FoldAccents(raw))
	normalized = strings.Map(func(r rune) rune {
		if r == '-' || r == '\'' || r == '’' || r == ',' || r == '.' {
			return ' '
		}
		return r
	}, normalized)
	return strings.Join(strings.Fields(normalized), " ")
}

// CollapseSpaces trims and collapses runs of whitespace to a single space.
func CollapseSpaces(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// ContainsFold reports whether needle appears in haystack after normalization.
func ContainsFold(haystack, needle string) bool {
	n := NormalizeText(needle)
	if n == "" {
		return false
	}
	return strings.Contains(" "+NormalizeText(haystack)+" ", " "+n+" ")
}

// FirstNonEmpty returns the first value that is not blank, trimmed.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
