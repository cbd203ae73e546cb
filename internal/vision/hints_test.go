package vision

import (
	"testing"

	"parcel-locator/internal/domain/locate"
)

func TestExtractHints(t *testing.T) {
	signals := locate.VisionSignals{
		FullText: "A VENDRE\nORPI Bordeaux Centre\n12 allée des Pins\n33000 Bordeaux\n05 56 00 00 00",
		Words: []locate.OCRWord{
			{Text: "VENDRE", Confidence: 0.97},
			{Text: "Pins", Confidence: 0.55},
		},
		Labels: []locate.Label{
			{Description: "House", Score: 0.93},
			{Description: "Tree", Score: 0.88},
			{Description: "Shrub", Score: 0.7},
			{Description: "Sky", Score: 0.99},
			{Description: "Roof", Score: 0.3},
		},
		Logos: []locate.Label{{Description: "Orpi", Score: 0.8}},
	}

	h := ExtractHints(signals)

	if len(h.AddressFragments) != 2 {
		t.Errorf("address fragments = %v", h.AddressFragments)
	}
	if !h.HasSign(SignForSale) {
		t.Errorf("expected for-sale sign in %+v", h.Signs)
	}
	if !h.HasSign(SignAgency) {
		t.Errorf("expected agency sign in %+v", h.Signs)
	}
	agencies := 0
	for _, s := range h.Signs {
		if s.Kind == SignAgency {
			agencies++
		}
	}
	if agencies != 1 {
		t.Errorf("agency detected %d times, want 1", agencies)
	}
	if len(h.ArchitectureLabels) != 1 || h.ArchitectureLabels[0].Description != "House" {
		t.Errorf("architecture labels = %+v", h.ArchitectureLabels)
	}
	if len(h.VegetationLabels) != 2 {
		t.Errorf("vegetation labels = %+v", h.VegetationLabels)
	}
	if len(h.HighConfidence) != 1 || len(h.LowConfidence) != 1 {
		t.Errorf("confidence split = %+v / %+v", h.HighConfidence, h.LowConfidence)
	}
}

func TestExtractHintsEmpty(t *testing.T) {
	h := ExtractHints(locate.VisionSignals{})
	if len(h.AddressFragments) != 0 || len(h.Signs) != 0 {
		t.Errorf("expected no hints, got %+v", h)
	}
}
