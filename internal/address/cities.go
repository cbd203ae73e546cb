package address

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// cityExpr matches capitalized words joined by spaces or hyphens, such as
// "Bordeaux" or "Saint-Jean-de-Luz" (connecting words are allowed inside).
const cityExpr = `\p{Lu}[\p{L}'’]*(?:[- ](?:(?:sur|sous|en|lès|les|la|le|de|du|des|aux|au|d'|l')[- ])*\p{Lu}[\p{L}'’]*)*`

var capitalizedRun = regexp.MustCompile(cityExpr)

// cityAfterPostal matches the city following a postal code: "75002 Paris".
var cityAfterPostal = regexp.MustCompile(`\b\d{5}\s+(` + cityExpr + `)`)

// DetectCity runs the capitalized-word heuristic over free text and returns
// the first plausible city name, or "" when none is found. Segments naming a
// street are skipped so that "rue Sainte-Catherine" is not taken for a city.
func DetectCity(text string) string {
	if m := cityAfterPostal.FindStringSubmatch(text); len(m) > 1 {
		if city := cleanCity(m[1]); city != "" {
			return city
		}
	}
	for _, seg := range segments(text) {
		if HasStreetKeyword(seg) {
			continue
		}
		for _, run := range capitalizedRun.FindAllString(seg, -1) {
			if city := cleanCity(run); city != "" {
				return city
			}
		}
	}
	return ""
}

// HasPlausibleCity reports whether text already names a city: a postal code
// followed by a name, a capitalized run of at least two words outside the
// street segment, or a lone capitalized name after a comma.
func HasPlausibleCity(text string) bool {
	if m := cityAfterPostal.FindStringSubmatch(text); len(m) > 1 && cleanCity(m[1]) != "" {
		return true
	}
	for i, seg := range segments(text) {
		if HasStreetKeyword(seg) {
			continue
		}
		for _, run := range capitalizedRun.FindAllString(seg, -1) {
			city := cleanCity(run)
			if city == "" {
				continue
			}
			if len(strings.FieldsFunc(city, isWordSeparator)) >= 2 {
				return true
			}
			if i > 0 && city == strings.TrimSpace(seg) {
				return true
			}
		}
	}
	return false
}

func segments(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == ',' || r == ';' || r == '|'
	})
}

// cleanCity trims trailing stopwords ("Paris Centre" -> "Paris") and rejects
// runs that start with a stopword or are too short to be a place name.
func cleanCity(run string) string {
	words := strings.FieldsFunc(run, isWordSeparator)
	for len(words) > 0 && IsStopword(words[len(words)-1]) {
		words = words[:len(words)-1]
	}
	if len(words) == 0 {
		return ""
	}
	// "La Rochelle", "Le Havre"
	if IsStopword(words[0]) && !(isConnector(words[0]) && len(words) > 1) {
		return ""
	}
	for _, w := range words {
		r, _ := utf8.DecodeRuneInString(w)
		if unicode.IsUpper(r) && IsStopword(w) && !isConnector(w) {
			return ""
		}
	}

	kept := strings.Join(words, " ")
	// Keep the original separators for the surviving prefix.
	if strings.HasPrefix(run, words[0]) {
		end := strings.Index(run, words[len(words)-1]) + len(words[len(words)-1])
		if end > 0 && end <= len(run) {
			kept = run[:end]
		}
	}
	if utf8.RuneCountInString(kept) < 3 {
		return ""
	}
	if isAllUpper(kept) && utf8.RuneCountInString(kept) < 4 {
		return ""
	}
	return strings.TrimSpace(kept)
}

func isConnector(w string) bool {
	switch strings.ToLower(w) {
	case "sur", "sous", "en", "lès", "les", "la", "le", "de", "du", "des", "aux", "au":
		return true
	}
	return strings.HasPrefix(strings.ToLower(w), "d'") || strings.HasPrefix(strings.ToLower(w), "l'")
}

func isWordSeparator(r rune) bool {
	return r == ' ' || r == '-'
}

func isAllUpper(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) && !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}
