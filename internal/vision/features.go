package vision

import (
	"math"
	"strings"

	"parcel-locator/internal/domain/locate"
	"parcel-locator/internal/utils"
)

const (
	PoolLabelThreshold       = 0.6
	DenseVegetationThreshold = 0.75
	VegetationLabelThreshold = 0.6
	DenseVegetationMinLabels = 3
)

const (
	PoolShapeRectangular = "rectangular"
	PoolShapeOval        = "oval"
	PoolShapeRound       = "round"
	PoolShapeFreeform    = "freeform"
	PoolShapeLShaped     = "l-shaped"
)

var poolKeywords = []string{"swimming pool", "pool", "piscine"}

var poolShapeKeywords = map[string][]string{
	PoolShapeRectangular: {"rectangular", "rectangle", "rectangulaire"},
	PoolShapeOval:        {"oval", "ovale"},
	PoolShapeRound:       {"round", "circular", "ronde"},
	PoolShapeFreeform:    {"freeform", "kidney", "haricot"},
	PoolShapeLShaped:     {"l shaped", "l shape", "en l"},
}

// Overrides carry caller-supplied features and the EXIF camera heading.
// Anything set here wins over what the labels suggest.
type Overrides struct {
	Features *locate.ImageFeatures
	Heading  *float64
}

// ExtractFeatures derives the exterior features of the source photo.
func ExtractFeatures(signals locate.VisionSignals, hints Hints, o Overrides) locate.ImageFeatures {
	var f locate.ImageFeatures

	for _, l := range signals.Labels {
		if l.Score >= PoolLabelThreshold && labelMatches(l.Description, poolKeywords) {
			f.HasPool = true
			break
		}
	}
	if f.HasPool {
		f.PoolShape = detectPoolShape(signals)
	}

	f.VegetationDense = vegetationDensity(signals.Labels, hints.VegetationLabels)

	if o.Heading != nil && !math.IsNaN(*o.Heading) {
		// The camera looks at the facade, which faces back toward it.
		f.Orientation = locate.OrientationFromBearing(*o.Heading).Opposite()
	}

	for _, l := range hints.ArchitectureLabels {
		f.ArchitectureLabels = append(f.ArchitectureLabels, strings.ToLower(l.Description))
	}

	if o.Features != nil {
		f = applyOverrides(f, *o.Features)
	}
	return f
}

func applyOverrides(f, o locate.ImageFeatures) locate.ImageFeatures {
	if o.HasPool {
		f.HasPool = true
	}
	if o.PoolShape != "" {
		f.HasPool = true
		f.PoolShape = NormalizePoolShape(o.PoolShape)
	}
	if o.VegetationDense != nil {
		v := *o.VegetationDense
		f.VegetationDense = &v
	}
	if o.Orientation.Valid() && o.Orientation != locate.OrientationUnknown {
		f.Orientation = o.Orientation
	}
	if len(o.ArchitectureLabels) > 0 {
		f.ArchitectureLabels = append([]string(nil), o.ArchitectureLabels...)
	}
	return f
}

// NormalizePoolShape maps free text to one of the known pool shapes, or ""
// when the shape is not recognised.
func NormalizePoolShape(raw string) string {
	n := utils.NormalizeText(raw)
	if n == "" {
		return ""
	}
	for _, shape := range []string{PoolShapeRectangular, PoolShapeOval, PoolShapeRound, PoolShapeFreeform, PoolShapeLShaped} {
		if n == utils.NormalizeText(shape) {
			return shape
		}
		for _, kw := range poolShapeKeywords[shape] {
			if strings.Contains(" "+n+" ", " "+kw+" ") {
				return shape
			}
		}
	}
	return ""
}

func detectPoolShape(signals locate.VisionSignals) string {
	for _, l := range signals.Labels {
		if shape := NormalizePoolShape(l.Description); shape != "" {
			return shape
		}
	}
	return NormalizePoolShape(signals.FullText)
}

// vegetationDensity is nil when the photo carries no labels at all.
func vegetationDensity(all, vegetation []locate.Label) *bool {
	if len(all) == 0 {
		return nil
	}
	dense := false
	count := 0
	for _, l := range vegetation {
		if l.Score >= DenseVegetationThreshold {
			dense = true
		}
		if l.Score >= VegetationLabelThreshold {
			count++
		}
	}
	if count >= DenseVegetationMinLabels {
		dense = true
	}
	return &dense
}
