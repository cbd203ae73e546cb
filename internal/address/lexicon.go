package address

import (
	"regexp"
	"strings"

	"parcel-locator/internal/utils"
)

// streetTypes are the French street-type keywords, folded to lower case
// without accents. Multi-word entries must come before their prefixes.
var streetTypes = []string{
	"rond point", "lieu dit",
	"rue", "avenue", "av", "ave", "boulevard", "bd", "bld", "place", "pl",
	"chemin", "ch", "allee", "impasse", "imp", "route", "rte", "quai",
	"cours", "square", "sq", "passage", "voie", "sentier", "esplanade",
	"promenade", "faubourg", "fbg", "cite", "residence", "lotissement",
	"hameau", "villa", "parvis", "traverse", "montee", "rampe", "mail",
}

const streetTypeExpr = `(rond[- ]point|lieu[- ]dit|rue|avenue|av|ave|boulevard|bd|bld|place|pl|chemin|ch|all[ée]e|impasse|imp|route|rte|quai|cours|square|sq|passage|voie|sentier|esplanade|promenade|faubourg|fbg|cit[ée]|r[ée]sidence|lotissement|hameau|villa|parvis|traverse|mont[ée]e|rampe|mail)`

// wordEnd closes a keyword; \b alone does not fire after a trailing accent.
const wordEnd = `(?:\b|[^\p{L}\p{N}]|\z)`

// streetTypePattern matches a street-type keyword as a whole word. Accented
// variants are matched on the raw text too.
var streetTypePattern = regexp.MustCompile(`(?i)\b` + streetTypeExpr + wordEnd)

var postalCodePattern = regexp.MustCompile(`\b(\d{5})\b`)

// stopwords are capitalized words that are never a city: street types,
// grammatical words and real-estate vocabulary common on signs.
var stopwords = map[string]struct{}{}

func init() {
	for _, w := range streetTypes {
		for _, part := range strings.Fields(w) {
			stopwords[part] = struct{}{}
		}
	}
	for _, w := range []string{
		"le", "la", "les", "de", "des", "du", "d", "l", "et", "a", "au", "aux", "en", "sur", "sous",
		"the", "of", "and", "bis", "ter",
		"maison", "appartement", "vente", "vendre", "vendu", "louer", "location", "agence",
		"immobilier", "immobiliere", "immo", "centre", "ville", "contact", "tel", "tél", "www",
		"france", "prix", "terrain", "jardin", "piscine", "garage", "villa", "residence",
		"entree", "sortie", "parking", "interdit", "prive", "propriete", "bienvenue", "chez",
		"nord", "sud", "est", "ouest", "mairie", "ecole", "eglise", "poste", "pharmacie",
		"boulangerie", "restaurant", "hotel", "cafe", "bar", "tabac", "stop",
		"vue", "belle", "superbe", "magnifique", "charmante", "exceptionnel", "proche",
		"particulier", "exclusivite", "exclusif", "nouveau", "visite", "rens", "renseignements",
	} {
		stopwords[utils.NormalizeText(w)] = struct{}{}
	}
	for _, agency := range Agencies {
		for _, part := range strings.Fields(utils.NormalizeText(agency)) {
			stopwords[part] = struct{}{}
		}
	}
}

// Agencies are real-estate network brands that appear on for-sale signs.
var Agencies = []string{
	"Century 21", "Orpi", "Foncia", "Laforêt", "ERA", "Guy Hoquet", "Stéphane Plaza",
	"Nestenn", "Square Habitat", "Citya", "IAD", "Safti", "Capifrance", "Optimhome",
	"Sotheby's", "Barnes", "Engel & Völkers", "Coldwell Banker", "Arthurimmo", "L'Adresse",
}

// HasStreetKeyword reports whether text contains a street-type keyword.
func HasStreetKeyword(text string) bool {
	return streetTypePattern.MatchString(text)
}

// StreetKeyword returns the first street-type keyword in text, folded.
func StreetKeyword(text string) string {
	m := streetTypePattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return utils.NormalizeText(m[1])
}

// PostalCode returns the first 5-digit postal code in text.
func PostalCode(text string) string {
	m := postalCodePattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// CountryName returns the display name used in geocoding queries.
func CountryName(code string) string {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "", "FR":
		return "France"
	case "BE":
		return "Belgique"
	case "CH":
		return "Suisse"
	case "LU":
		return "Luxembourg"
	case "MC":
		return "Monaco"
	}
	return strings.ToUpper(code)
}

func HasPostalCode(text string) bool {
	return postalCodePattern.MatchString(text)
}

// IsStopword reports whether a single word can never be a city name.
func IsStopword(word string) bool {
	_, ok := stopwords[utils.NormalizeText(word)]
	return ok
}
