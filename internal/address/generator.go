package address

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"parcel-locator/internal/domain/locate"
	"parcel-locator/internal/utils"
)

const (
	LandmarkScore = 0.95

	PatternBaseScore         = 0.5
	PostalCodeBonus          = 0.2
	HouseNumberBonus         = 0.1
	ContextPostalCodeBonus   = 0.25
	ContextCityBonus         = 0.2
	StreetKeywordBonus       = 0.15
	PlaceKeywordBonus        = 0.1
	CompleteAddressBonus     = 0.2
	PostalLineScore          = 0.4
	VisualContextBaseScore   = 0.2
	VisualContextMaxBonus    = 0.2
	VisualContextLabelFactor = 0.3
	DetectedCityScore        = 0.2
	ContextFallbackScore     = 0.15
)

// structuredPattern matches "<number> <street-type> <name>" and the bare
// "<street-type> <name>" form. The name stops at punctuation or digits.
var structuredPattern = regexp.MustCompile(`(?i)(?:\b(\d{1,4})(?:\s?(?:bis|ter|[a-d])\b)?\s*,?\s+)?\b` + streetTypeExpr + wordEnd + `\.?\s*([^\n,;|\d]{2,60})`)

// postalCityTail matches ", 75002 Paris" right after a street name.
var postalCityTail = regexp.MustCompile(`^[\s,;-]*(\d{5})(?:\s+(` + cityExpr + `))?`)

// urbanLabels are annotation labels that indicate a street-level scene.
var urbanLabels = []string{
	"street", "road", "building", "facade", "façade", "house", "storefront",
	"neighbourhood", "neighborhood", "residential area", "town", "city",
	"sidewalk", "urban area", "property", "home", "real estate", "villa",
	"cottage", "estate",
}

// Generator turns OCR text and detections into textual address hypotheses.
type Generator struct {
	defaultCountry string
}

func NewGenerator(defaultCountry string) *Generator {
	if strings.TrimSpace(defaultCountry) == "" {
		defaultCountry = "FR"
	}
	return &Generator{defaultCountry: strings.ToUpper(defaultCountry)}
}

// Generate returns deduplicated candidates sorted by score, highest first.
func (g *Generator) Generate(text string, landmarks []locate.Landmark, labels []locate.Label, ctx locate.Context) []locate.AddressCandidate {
	country := CountryName(utils.FirstNonEmpty(ctx.Country, g.defaultCountry))
	detected := DetectCity(text)
	contradicts := detected != "" && ctx.City != "" && !SameCity(detected, ctx.City)

	var out []locate.AddressCandidate

	for _, lm := range landmarks {
		if lm.Location == nil || strings.TrimSpace(lm.Description) == "" {
			continue
		}
		loc := *lm.Location
		out = append(out, locate.AddressCandidate{
			RawText:  strings.TrimSpace(lm.Description),
			Score:    LandmarkScore,
			Source:   locate.SourceLandmark,
			Location: &loc,
		})
	}

	patterns := g.structured(text, detected, ctx)
	out = append(out, patterns...)

	if len(patterns) == 0 {
		for _, line := range strings.Split(text, "\n") {
			line = utils.CollapseSpaces(line)
			if HasPostalCode(line) {
				out = append(out, locate.AddressCandidate{
					RawText: line,
					Score:   PostalLineScore,
					Source:  locate.SourcePostalLine,
				})
			}
		}
	}

	city := ctx.City
	if contradicts || city == "" {
		city = detected
	}

	if strings.TrimSpace(text) == "" && city != "" {
		if top, ok := topUrbanLabel(labels); ok {
			bonus := top * VisualContextLabelFactor
			if bonus > VisualContextMaxBonus {
				bonus = VisualContextMaxBonus
			}
			out = append(out, locate.AddressCandidate{
				RawText: contextText(city, ctx, country),
				Score:   VisualContextBaseScore + bonus,
				Source:  locate.SourceVisualContext,
			})
		}
	}

	if detected != "" && (ctx.City == "" || contradicts) && !mentionsCity(out, detected) {
		out = append(out, locate.AddressCandidate{
			RawText: detected + ", " + country,
			Score:   DetectedCityScore,
			Source:  locate.SourceDetectedCity,
		})
	}

	if !contradicts && (ctx.City != "" || ctx.PostalCode != "") {
		out = append(out, locate.AddressCandidate{
			RawText: contextText(ctx.City, ctx, country),
			Score:   ContextFallbackScore,
			Source:  locate.SourceContext,
		})
	}

	return dedupe(out)
}

func (g *Generator) structured(text, detected string, ctx locate.Context) []locate.AddressCandidate {
	var out []locate.AddressCandidate
	for _, loc := range structuredPattern.FindAllStringSubmatchIndex(text, -1) {
		number := group(text, loc, 1)
		keyword := group(text, loc, 2)
		name := strings.TrimSpace(group(text, loc, 3))
		if !plausibleStreetName(name) {
			continue
		}

		postal, city := "", ""
		if m := postalCityTail.FindStringSubmatch(nextLines(text[loc[1]:], 2)); m != nil {
			postal, city = m[1], cleanCity(m[2])
		}

		score := PatternBaseScore + StreetKeywordBonus
		if folded := utils.NormalizeText(keyword); folded == "place" || folded == "pl" {
			score += PlaceKeywordBonus
		}
		if number != "" {
			score += HouseNumberBonus
		}
		if postal != "" {
			score += PostalCodeBonus
			if ctx.PostalCode != "" && postal == strings.TrimSpace(ctx.PostalCode) {
				score += ContextPostalCodeBonus
			}
		}
		matchCity := city
		if matchCity == "" {
			matchCity = detected
		}
		if matchCity != "" && ctx.City != "" && SameCity(matchCity, ctx.City) {
			score += ContextCityBonus
		}
		if number != "" && postal != "" && city != "" {
			score += CompleteAddressBonus
		}

		raw := utils.CollapseSpaces(strings.Join([]string{number, keyword, name}, " "))
		switch {
		case postal != "" && city != "":
			raw += ", " + postal + " " + city
		case postal != "":
			raw += ", " + postal
			if detected != "" {
				raw += " " + detected
			}
		case detected != "":
			raw += ", " + detected
		}

		out = append(out, locate.AddressCandidate{
			RawText: raw,
			Score:   clamp01(score),
			Source:  locate.SourcePattern,
		})
	}
	return out
}

// plausibleStreetName rejects "Villa à vendre" and "mail: contact@...".
func plausibleStreetName(name string) bool {
	if name == "" || strings.ContainsAny(name, "@:/") {
		return false
	}
	r, _ := utf8.DecodeRuneInString(name)
	if !unicode.IsLetter(r) {
		return false
	}
	for _, w := range strings.FieldsFunc(name, isWordSeparator) {
		if !IsStopword(w) {
			return true
		}
	}
	return false
}

// SameCity compares two city names ignoring case, accents and hyphens.
func SameCity(a, b string) bool {
	return utils.NormalizeText(a) == utils.NormalizeText(b)
}

func contextText(city string, ctx locate.Context, country string) string {
	parts := make([]string, 0, 2)
	local := city
	if ctx.PostalCode != "" && (city == "" || SameCity(city, ctx.City)) {
		local = strings.TrimSpace(ctx.PostalCode + " " + city)
	}
	if local != "" {
		parts = append(parts, local)
	}
	parts = append(parts, country)
	return strings.Join(parts, ", ")
}

func topUrbanLabel(labels []locate.Label) (float64, bool) {
	top, found := 0.0, false
	for _, l := range labels {
		desc := strings.ToLower(l.Description)
		for _, kw := range urbanLabels {
			if strings.Contains(desc, kw) {
				found = true
				if l.Score > top {
					top = l.Score
				}
				break
			}
		}
	}
	return top, found
}

func mentionsCity(cands []locate.AddressCandidate, city string) bool {
	for _, c := range cands {
		if c.Source != locate.SourceLandmark && utils.ContainsFold(c.RawText, city) {
			return true
		}
	}
	return false
}

func dedupe(cands []locate.AddressCandidate) []locate.AddressCandidate {
	index := make(map[string]int, len(cands))
	out := make([]locate.AddressCandidate, 0, len(cands))
	for _, c := range cands {
		c.Score = clamp01(c.Score)
		if i, ok := index[c.RawText]; ok {
			if c.Score > out[i].Score {
				out[i] = c
			}
			continue
		}
		index[c.RawText] = len(out)
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func group(s string, loc []int, n int) string {
	if 2*n+1 >= len(loc) || loc[2*n] < 0 {
		return ""
	}
	return s[loc[2*n]:loc[2*n+1]]
}

// nextLines returns s up to and including its n-th line.
func nextLines(s string, n int) string {
	idx := 0
	for i := 0; i < n; i++ {
		j := strings.IndexByte(s[idx:], '\n')
		if j < 0 {
			return s
		}
		idx += j + 1
	}
	return s[:idx]
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
