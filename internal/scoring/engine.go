package scoring

import (
	"math"

	"parcel-locator/internal/domain/locate"
)

// Sub-score values.
const (
	Neutral = 50

	PoolBoth        = 80
	PoolShapeMatch  = 95
	VegetationMatch = 80
	VegetationLost  = 30
	OrientationSame = 90
	OrientationOpp  = 20

	ContextClosePrice    = 30
	ContextModeratePrice = 15
	ContextFarPrice      = -20
	ContextCloseSurface  = 20
	ContextNearSurface   = 10
)

// Price and surface delta thresholds, as fractions of the reference value.
const (
	ClosePriceDelta    = 0.20
	ModeratePriceDelta = 0.40
	CloseSurfaceDelta  = 0.10
	NearSurfaceDelta   = 0.20
)

type Engine struct {
	weights Weights
}

func NewEngine(w Weights) *Engine {
	if w.validate() != nil {
		w = DefaultWeights()
	}
	return &Engine{weights: w}
}

func (e *Engine) Weights() Weights {
	return e.weights
}

// Score compares the source photo features against one candidate. A pool in
// the photo that the aerial view does not show eliminates the candidate.
func (e *Engine) Score(
	source locate.ImageFeatures,
	analysis locate.SatelliteAnalysis,
	candidate locate.PropertyCandidate,
	listing *locate.ListingMetadata,
	reference *locate.ReferenceTransaction,
) locate.MatchingScore {
	if source.HasPool && !analysis.PoolPresent {
		return locate.MatchingScore{}
	}

	parcelSurface := analysis.EstimatedSurface
	if parcelSurface <= 0 {
		parcelSurface = candidate.CadastreData.TerrainSurface
	}

	d := locate.ScoreDetails{
		ArchitectureMatch: Neutral,
		PoolSimilarity:    poolSimilarity(source, analysis),
		VegetationMatch:   vegetationMatch(source.VegetationDense, analysis.VegetationDense),
		SurfaceMatch:      surfaceMatch(listing, parcelSurface),
		OrientationMatch:  orientationMatch(source.Orientation, analysis.BuildingOrientation),
		ContextMatch:      contextMatch(listing, reference),
	}
	return locate.MatchingScore{Global: e.global(d), Details: d}
}

func (e *Engine) global(d locate.ScoreDetails) int {
	w := e.weights
	total := float64(d.PoolSimilarity)*w.Pool +
		float64(d.ArchitectureMatch)*w.Architecture +
		float64(d.VegetationMatch)*w.Vegetation +
		float64(d.SurfaceMatch)*w.Surface +
		float64(d.OrientationMatch)*w.Orientation +
		float64(d.ContextMatch)*w.Context
	g := int(math.Round(total / w.sum()))
	return min(max(g, 0), 100)
}

func poolSimilarity(source locate.ImageFeatures, analysis locate.SatelliteAnalysis) int {
	if !source.HasPool {
		return Neutral
	}
	if source.PoolShape != "" && source.PoolShape == analysis.PoolShape {
		return PoolShapeMatch
	}
	return PoolBoth
}

func vegetationMatch(source, satellite *bool) int {
	switch {
	case source == nil || satellite == nil:
		return Neutral
	case *source == *satellite:
		return VegetationMatch
	case *source:
		return VegetationLost
	}
	return Neutral
}

func orientationMatch(source, building locate.Orientation) int {
	switch {
	case source == locate.OrientationUnknown || building == locate.OrientationUnknown:
		return Neutral
	case source == building:
		return OrientationSame
	case source.Opposite() == building:
		return OrientationOpp
	}
	return Neutral
}

func surfaceMatch(listing *locate.ListingMetadata, parcelSurface float64) int {
	if listing == nil || listing.Surface <= 0 || parcelSurface <= 0 {
		return Neutral
	}
	s := 100 - math.Abs(listing.Surface-parcelSurface)/listing.Surface*100
	return int(math.Round(math.Max(0, s)))
}

func contextMatch(listing *locate.ListingMetadata, ref *locate.ReferenceTransaction) int {
	if ref == nil {
		return Neutral
	}
	score := Neutral
	if listing != nil && listing.Price > 0 && ref.Price > 0 {
		switch delta := relativeDelta(listing.Price, ref.Price); {
		case delta <= ClosePriceDelta:
			score += ContextClosePrice
		case delta <= ModeratePriceDelta:
			score += ContextModeratePrice
		default:
			score += ContextFarPrice
		}
	}
	if listing != nil && listing.Surface > 0 && ref.Surface > 0 {
		switch delta := relativeDelta(listing.Surface, ref.Surface); {
		case delta < CloseSurfaceDelta:
			score += ContextCloseSurface
		case delta < NearSurfaceDelta:
			score += ContextNearSurface
		}
	}
	return min(max(score, 0), 100)
}

func relativeDelta(v, ref float64) float64 {
	return math.Abs(v-ref) / ref
}
