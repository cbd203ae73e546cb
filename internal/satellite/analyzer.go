package satellite

import (
	"bytes"
	"context"
	"image"

	"github.com/rs/zerolog"

	"parcel-locator/internal/domain/locate"
	"parcel-locator/internal/utils"
)

// PoolLabelThreshold is the label score at which a tile counts as showing a
// pool even without a visible blob.
const PoolLabelThreshold = 0.6

// LabelSource labels an aerial tile. Optional.
type LabelSource interface {
	Labels(ctx context.Context, image []byte) ([]locate.Label, error)
}

type Analyzer struct {
	imagery Imagery
	labels  LabelSource
	log     zerolog.Logger
}

func NewAnalyzer(imagery Imagery, labels LabelSource, log zerolog.Logger) *Analyzer {
	return &Analyzer{imagery: imagery, labels: labels, log: log}
}

// Analyze derives the physical features of one candidate. Orientation and
// surface come from the parcel geometry; pool and vegetation from the aerial
// image. Without usable imagery, vegetation stays unknown and no pool is
// reported.
func (a *Analyzer) Analyze(ctx context.Context, c locate.PropertyCandidate, source locate.ImageFeatures) locate.SatelliteAnalysis {
	analysis := locate.SatelliteAnalysis{
		BuildingOrientation: FacadeOrientation(c.Outline),
		EstimatedSurface:    EstimatedSurface(c),
	}
	if a.imagery == nil {
		return analysis
	}

	raw, err := a.imagery.Fetch(ctx, c.Coordinates)
	if err != nil {
		a.log.Warn().
			Err(err).
			Str("parcel_id", c.ID).
			Msg("satellite imagery fetch failed")
		return analysis
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		a.log.Warn().
			Err(err).
			Str("parcel_id", c.ID).
			Msg("satellite image decode failed")
		return analysis
	}

	stats := AnalyzePixels(img)
	dense := stats.GreenRatio >= DenseVegetationRatio
	analysis.VegetationDense = &dense

	if stats.PoolPixels >= MinPoolPixels {
		analysis.PoolPresent = true
		analysis.PoolShape = stats.PoolShape
	}
	if !analysis.PoolPresent && a.labels != nil && poolLabelled(ctx, a.labels, raw, a.log, c.ID) {
		analysis.PoolPresent = true
	}
	if analysis.PoolPresent && analysis.PoolShape == "" {
		// Too small to classify; compare against the photo's shape.
		analysis.PoolShape = source.PoolShape
	}

	a.log.Debug().
		Str("parcel_id", c.ID).
		Float64("green_ratio", stats.GreenRatio).
		Int("pool_pixels", stats.PoolPixels).
		Bool("pool", analysis.PoolPresent).
		Str("orientation", string(analysis.BuildingOrientation)).
		Msg("satellite analysis")

	return analysis
}

func poolLabelled(ctx context.Context, src LabelSource, raw []byte, log zerolog.Logger, parcelID string) bool {
	labels, err := src.Labels(ctx, raw)
	if err != nil {
		log.Debug().Err(err).Str("parcel_id", parcelID).Msg("satellite labelling failed")
		return false
	}
	for _, l := range labels {
		if l.Score >= PoolLabelThreshold && (utils.ContainsFold(l.Description, "swimming pool") || utils.ContainsFold(l.Description, "pool")) {
			return true
		}
	}
	return false
}
