package vision

import (
	"strings"

	"parcel-locator/internal/address"
	"parcel-locator/internal/domain/locate"
	"parcel-locator/internal/utils"
)

const (
	// HighConfidence splits OCR fragments into trusted and doubtful ones.
	HighConfidence = 0.8
	minLabelScore  = 0.5
)

type SignKind string

const (
	SignForSale SignKind = "for_sale"
	SignForRent SignKind = "for_rent"
	SignSold    SignKind = "sold"
	SignAgency  SignKind = "agency"
)

type Sign struct {
	Kind SignKind `json:"kind"`
	Text string   `json:"text"`
}

// Hints are the structured clues extracted from one image's signals.
type Hints struct {
	AddressFragments   []string         `json:"address_fragments,omitempty"`
	Signs              []Sign           `json:"signs,omitempty"`
	ArchitectureLabels []locate.Label   `json:"architecture_labels,omitempty"`
	VegetationLabels   []locate.Label   `json:"vegetation_labels,omitempty"`
	HighConfidence     []locate.OCRWord `json:"high_confidence,omitempty"`
	LowConfidence      []locate.OCRWord `json:"low_confidence,omitempty"`
}

var signPhrases = map[SignKind][]string{
	SignForSale: {"a vendre", "for sale", "en vente", "vente"},
	SignForRent: {"a louer", "for rent", "location"},
	SignSold:    {"vendu", "sold", "sous compromis", "sous offre"},
}

var architectureKeywords = []string{
	"house", "villa", "cottage", "mansion", "facade", "roof", "window", "door",
	"building", "architecture", "stone", "brick", "tile", "shutter", "balcony",
	"porch", "garage", "chimney", "residential", "estate", "farmhouse", "manor",
	"siding", "stucco", "apartment", "condominium",
}

var vegetationKeywords = []string{
	"tree", "plant", "vegetation", "garden", "grass", "lawn", "shrub", "hedge",
	"forest", "woody", "flower", "palm", "leaf", "botany", "yard", "groundcover",
	"bush", "park",
}

// ExtractHints classifies OCR lines, logos and labels into hints.
func ExtractHints(signals locate.VisionSignals) Hints {
	var h Hints

	for _, line := range strings.Split(signals.FullText, "\n") {
		line = utils.CollapseSpaces(line)
		if line == "" {
			continue
		}
		if address.HasPostalCode(line) || address.HasStreetKeyword(line) {
			h.AddressFragments = append(h.AddressFragments, line)
		}
		for _, kind := range []SignKind{SignSold, SignForSale, SignForRent} {
			if containsAny(line, signPhrases[kind]) {
				h.Signs = append(h.Signs, Sign{Kind: kind, Text: line})
				break
			}
		}
		if agency := matchAgency(line); agency != "" {
			h.Signs = append(h.Signs, Sign{Kind: SignAgency, Text: agency})
		}
	}

	for _, logo := range signals.Logos {
		if agency := matchAgency(logo.Description); agency != "" && !hasSign(h.Signs, SignAgency, agency) {
			h.Signs = append(h.Signs, Sign{Kind: SignAgency, Text: agency})
		}
	}

	for _, l := range signals.Labels {
		if l.Score < minLabelScore {
			continue
		}
		if labelMatches(l.Description, architectureKeywords) {
			h.ArchitectureLabels = append(h.ArchitectureLabels, l)
		}
		if labelMatches(l.Description, vegetationKeywords) {
			h.VegetationLabels = append(h.VegetationLabels, l)
		}
	}

	for _, w := range signals.Words {
		if w.Confidence >= HighConfidence {
			h.HighConfidence = append(h.HighConfidence, w)
		} else {
			h.LowConfidence = append(h.LowConfidence, w)
		}
	}

	return h
}

// HasSign reports whether any sign of the given kind was detected.
func (h Hints) HasSign(kind SignKind) bool {
	for _, s := range h.Signs {
		if s.Kind == kind {
			return true
		}
	}
	return false
}

func matchAgency(text string) string {
	for _, agency := range address.Agencies {
		if utils.ContainsFold(text, agency) {
			return agency
		}
	}
	return ""
}

func hasSign(signs []Sign, kind SignKind, text string) bool {
	for _, s := range signs {
		if s.Kind == kind && s.Text == text {
			return true
		}
	}
	return false
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if utils.ContainsFold(text, p) {
			return true
		}
	}
	return false
}

// labelMatches does substring matching so that "Trees" or "Houseplant"
// still hit their keyword.
func labelMatches(description string, keywords []string) bool {
	d := utils.NormalizeText(description)
	for _, kw := range keywords {
		if strings.Contains(d, kw) {
			return true
		}
	}
	return false
}
