package vision

import (
	"strings"

	visionapi "google.golang.org/api/vision/v1"

	"parcel-locator/internal/domain/locate"
)

// ParseSignals converts an annotation response into VisionSignals. Missing
// sections yield empty fields.
func ParseSignals(resp *visionapi.AnnotateImageResponse) locate.VisionSignals {
	var signals locate.VisionSignals
	if resp == nil {
		return signals
	}

	if resp.FullTextAnnotation != nil {
		signals.FullText = resp.FullTextAnnotation.Text
		signals.Words = wordsFromPages(resp.FullTextAnnotation.Pages)
	}
	if signals.FullText == "" && len(resp.TextAnnotations) > 0 && resp.TextAnnotations[0] != nil {
		// First text annotation holds the whole detected text.
		signals.FullText = resp.TextAnnotations[0].Description
	}
	if len(signals.Words) == 0 && len(resp.TextAnnotations) > 1 {
		for _, ta := range resp.TextAnnotations[1:] {
			if ta == nil || strings.TrimSpace(ta.Description) == "" {
				continue
			}
			signals.Words = append(signals.Words, locate.OCRWord{
				Text:       ta.Description,
				Confidence: ta.Confidence,
			})
		}
	}

	for _, l := range resp.LabelAnnotations {
		if l == nil || l.Description == "" {
			continue
		}
		signals.Labels = append(signals.Labels, locate.Label{Description: l.Description, Score: l.Score})
	}

	for _, l := range resp.LandmarkAnnotations {
		if l == nil || l.Description == "" {
			continue
		}
		landmark := locate.Landmark{Description: l.Description, Score: l.Score}
		for _, loc := range l.Locations {
			if loc != nil && loc.LatLng != nil {
				landmark.Location = &locate.LatLng{Lat: loc.LatLng.Latitude, Lng: loc.LatLng.Longitude}
				break
			}
		}
		signals.Landmarks = append(signals.Landmarks, landmark)
	}

	for _, l := range resp.LogoAnnotations {
		if l == nil || l.Description == "" {
			continue
		}
		signals.Logos = append(signals.Logos, locate.Label{Description: l.Description, Score: l.Score})
	}

	return signals
}

func wordsFromPages(pages []*visionapi.Page) []locate.OCRWord {
	var words []locate.OCRWord
	for _, page := range pages {
		if page == nil {
			continue
		}
		for _, block := range page.Blocks {
			if block == nil {
				continue
			}
			for _, para := range block.Paragraphs {
				if para == nil {
					continue
				}
				for _, w := range para.Words {
					if w == nil {
						continue
					}
					var sb strings.Builder
					for _, s := range w.Symbols {
						if s != nil {
							sb.WriteString(s.Text)
						}
					}
					if sb.Len() == 0 {
						continue
					}
					words = append(words, locate.OCRWord{Text: sb.String(), Confidence: w.Confidence})
				}
			}
		}
	}
	return words
}
