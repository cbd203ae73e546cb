package geocode

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"parcel-locator/internal/address"
	"parcel-locator/internal/domain/locate"
	"parcel-locator/internal/utils"
	"parcel-locator/internal/visuals"
)

const (
	RooftopScore           = 0.98
	RangeInterpolatedScore = 0.88
	GeometricCenterScore   = 0.78
	ApproximateScore       = 0.68
	UnknownPrecisionScore  = 0.7

	ContextPostalEchoBonus = 0.05
	ContextCityEchoBonus   = 0.05

	PreciseGeocodingThreshold = 0.9
	PreciseGeocodingWeight    = 0.7
	DefaultGeocodingWeight    = 0.6
)

// PrecisionScore maps the geocoder's location type to a confidence.
func PrecisionScore(locationType string) float64 {
	switch strings.ToUpper(locationType) {
	case "ROOFTOP":
		return RooftopScore
	case "RANGE_INTERPOLATED":
		return RangeInterpolatedScore
	case "GEOMETRIC_CENTER":
		return GeometricCenterScore
	case "APPROXIMATE":
		return ApproximateScore
	}
	return UnknownPrecisionScore
}

// GeocodingScore adds the context echo bonus to the precision score.
func GeocodingScore(locationType, formatted string, c locate.Context) float64 {
	score := PrecisionScore(locationType)
	if pc := strings.TrimSpace(c.PostalCode); pc != "" && strings.Contains(formatted, pc) {
		score += ContextPostalEchoBonus
	}
	if c.City != "" && utils.ContainsFold(formatted, c.City) {
		score += ContextCityEchoBonus
	}
	return math.Min(score, 1)
}

// BlendScore weighs the textual score against the geocoding score, trusting
// geocoding more when it is very precise.
func BlendScore(candidateScore, geocodingScore float64) float64 {
	w := DefaultGeocodingWeight
	if geocodingScore > PreciseGeocodingThreshold {
		w = PreciseGeocodingWeight
	}
	return candidateScore*(1-w) + geocodingScore*w
}

// BuildQuery appends context to a raw candidate. Text that already names a
// postal code or a city only gets the country appended.
func BuildQuery(c locate.AddressCandidate, ctx locate.Context, country string) string {
	raw := utils.CollapseSpaces(c.RawText)
	parts := []string{raw}

	if !selfContained(c) {
		local := strings.TrimSpace(ctx.PostalCode + " " + ctx.City)
		if ctx.PostalCode != "" && strings.Contains(raw, ctx.PostalCode) {
			local = ""
		}
		if ctx.City != "" && utils.ContainsFold(raw, ctx.City) {
			local = ""
		}
		if local != "" {
			parts = append(parts, local)
		}
	}

	name := address.CountryName(country)
	if !utils.ContainsFold(raw, name) {
		parts = append(parts, name)
	}
	return strings.Join(parts, ", ")
}

func selfContained(c locate.AddressCandidate) bool {
	switch c.Source {
	case locate.SourceLandmark, locate.SourceDetectedCity, locate.SourceContext, locate.SourceVisualContext:
		return true
	}
	return address.HasPostalCode(c.RawText) || address.HasPlausibleCity(c.RawText)
}

type RankerConfig struct {
	Country string
	Workers int
	// ImageBaseURL is the public base URL of the street view route; empty
	// leaves candidates without street view.
	ImageBaseURL string
}

// Ranker geocodes address candidates and orders them by global score.
type Ranker struct {
	geocoder Geocoder
	cfg      RankerConfig
	log      zerolog.Logger
}

// NewRanker accepts a nil geocoder; only landmark coordinates are used then.
func NewRanker(g Geocoder, cfg RankerConfig, log zerolog.Logger) *Ranker {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Country == "" {
		cfg.Country = "FR"
	}
	return &Ranker{geocoder: g, cfg: cfg, log: log}
}

func (r *Ranker) Rank(ctx context.Context, candidates []locate.AddressCandidate, c locate.Context) []locate.GeocodedCandidate {
	country := utils.FirstNonEmpty(c.Country, r.cfg.Country)
	results := make([]*locate.GeocodedCandidate, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i, cand := range candidates {
		g.Go(func() error {
			results[i] = r.resolve(gctx, cand, c, country)
			return nil
		})
	}
	_ = g.Wait()

	best := make(map[string]int)
	out := make([]locate.GeocodedCandidate, 0, len(results))
	for _, res := range results {
		if res == nil {
			continue
		}
		if r.cfg.ImageBaseURL != "" {
			res.StreetViewURL = visuals.ProxyURL(r.cfg.ImageBaseURL, visuals.StreetViewRoute, locate.LatLng{Lat: res.Latitude, Lng: res.Longitude})
		}
		if i, ok := best[res.Address]; ok {
			if res.GlobalScore > out[i].GlobalScore {
				out[i] = *res
			}
			continue
		}
		best[res.Address] = len(out)
		out = append(out, *res)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].GlobalScore > out[j].GlobalScore })
	return out
}

func (r *Ranker) resolve(ctx context.Context, cand locate.AddressCandidate, c locate.Context, country string) *locate.GeocodedCandidate {
	if r.geocoder != nil {
		query := BuildQuery(cand, c, country)
		results, err := r.geocoder.Geocode(ctx, query, country)
		switch {
		case err != nil:
			r.log.Warn().
				Err(err).
				Str("query", query).
				Msg("geocoding failed, skipping candidate")
		case len(results) == 0:
			r.log.Debug().
				Str("query", query).
				Msg("geocoding returned no result")
		default:
			best := results[0]
			geo := GeocodingScore(best.LocationType, best.FormattedAddress, c)
			return &locate.GeocodedCandidate{
				Address:        best.FormattedAddress,
				Latitude:       best.Location.Lat,
				Longitude:      best.Location.Lng,
				GeocodingScore: geo,
				GlobalScore:    clamp01(BlendScore(cand.Score, geo)),
				SourceText:     cand.RawText,
				LocationType:   best.LocationType,
			}
		}
	}

	if cand.Source == locate.SourceLandmark && cand.Location != nil {
		return &locate.GeocodedCandidate{
			Address:        cand.RawText,
			Latitude:       cand.Location.Lat,
			Longitude:      cand.Location.Lng,
			GeocodingScore: GeometricCenterScore,
			GlobalScore:    clamp01(BlendScore(cand.Score, GeometricCenterScore)),
			SourceText:     cand.RawText,
			LocationType:   "GEOMETRIC_CENTER",
		}
	}
	return nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
