package cadastre

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"github.com/rs/zerolog"

	"parcel-locator/internal/domain/locate"
	"parcel-locator/internal/utils"
)

var ErrInvalidZone = errors.New("invalid search zone")

// MaxCandidates caps the parcels handed to the matcher, after filtering.
const MaxCandidates = 50

const (
	circleVertices = 32
	// maxSplitDepth bounds the quadrant splitting of a truncated listing.
	maxSplitDepth = 3
)

// nonSingleFamily are building tags excluded when looking for a house.
var nonSingleFamily = map[string]struct{}{
	"apartment": {}, "apartments": {}, "appartement": {}, "collectif": {},
	"collective": {}, "immeuble": {}, "commercial": {}, "industrial": {},
	"industriel": {}, "office": {}, "bureau": {}, "retail": {},
	"warehouse": {}, "entrepot": {}, "residential collective": {},
}

// Enumerator turns a search zone into cadastral property candidates.
type Enumerator struct {
	registry        Registry
	maxRadiusMeters float64
	log             zerolog.Logger
}

func NewEnumerator(registry Registry, maxRadiusMeters float64, log zerolog.Logger) *Enumerator {
	return &Enumerator{registry: registry, maxRadiusMeters: maxRadiusMeters, log: log}
}

// ValidateZone checks the radius and the center coordinates.
func (e *Enumerator) ValidateZone(zone locate.SearchZone) error {
	if math.IsNaN(zone.RadiusMeters) || zone.RadiusMeters <= 0 {
		return fmt.Errorf("%w: radius must be positive", ErrInvalidZone)
	}
	if e.maxRadiusMeters > 0 && zone.RadiusMeters > e.maxRadiusMeters {
		return fmt.Errorf("%w: radius %.0fm exceeds %.0fm", ErrInvalidZone, zone.RadiusMeters, e.maxRadiusMeters)
	}
	c := zone.Center
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("%w: center out of range", ErrInvalidZone)
	}
	return nil
}

// Contains reports whether p lies within the zone radius.
func Contains(zone locate.SearchZone, p locate.LatLng) bool {
	return geo.Distance(point(zone.Center), point(p)) <= zone.RadiusMeters
}

// Enumerate returns the parcels whose centroid lies in the zone, restricted
// to the zone constraints and the property type, nearest to the anchors (or
// to the center when there are none) first.
func (e *Enumerator) Enumerate(ctx context.Context, zone locate.SearchZone, propertyType locate.PropertyType, anchors []locate.LatLng) ([]locate.PropertyCandidate, error) {
	if err := e.ValidateZone(zone); err != nil {
		return nil, err
	}

	constraints, postal, err := e.resolveConstraints(ctx, zone.Constraints)
	if err != nil {
		return nil, err
	}

	center := point(zone.Center)
	parcels, err := e.collect(ctx, circle(center, zone.RadiusMeters), 0, map[string]struct{}{})
	if err != nil {
		return nil, fmt.Errorf("list parcels: %w", err)
	}

	var inZone []locate.PropertyCandidate
	for _, p := range parcels {
		centroid, ok := centroidOf(p.Geometry)
		if !ok {
			continue
		}
		if geo.Distance(center, centroid) > zone.RadiusMeters {
			continue
		}
		if !constraints.matches(p) {
			continue
		}
		if propertyType == locate.PropertyTypeHouse && !singleFamily(p.BuildingType) {
			continue
		}
		inZone = append(inZone, toCandidate(p, centroid, postal[p.CommuneCode]))
	}

	ref := make([]orb.Point, 0, len(anchors))
	for _, a := range anchors {
		if Contains(zone, a) {
			ref = append(ref, point(a))
		}
	}
	if len(ref) == 0 {
		ref = append(ref, center)
	}
	sort.SliceStable(inZone, func(i, j int) bool {
		return nearest(ref, point(inZone[i].Coordinates)) < nearest(ref, point(inZone[j].Coordinates))
	})

	e.log.Debug().
		Int("registry_parcels", len(parcels)).
		Int("in_zone", len(inZone)).
		Float64("radius_m", zone.RadiusMeters).
		Msg("enumerated zone parcels")

	if len(inZone) > MaxCandidates {
		inZone = inZone[:MaxCandidates]
	}
	return inZone, nil
}

// collect lists the parcels intersecting area. A truncated listing is
// replaced by the listings of the area's four quadrants; seen drops the
// parcels straddling two of them.
func (e *Enumerator) collect(ctx context.Context, area orb.Polygon, depth int, seen map[string]struct{}) ([]Parcel, error) {
	parcels, err := e.registry.ParcelsInArea(ctx, area)
	if errors.Is(err, ErrTruncated) {
		if depth < maxSplitDepth {
			var out []Parcel
			for _, q := range quadrants(area) {
				sub, err := e.collect(ctx, q, depth+1, seen)
				if err != nil {
					return nil, err
				}
				out = append(out, sub...)
			}
			return out, nil
		}
		e.log.Warn().
			Err(err).
			Int("parcels", len(parcels)).
			Int("depth", depth).
			Msg("cadastral listing still truncated after splitting, zone may be incomplete")
	} else if err != nil {
		return nil, err
	}

	out := parcels[:0]
	for _, p := range parcels {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

// circle approximates the zone disc with a polygon whose edges stay outside
// the radius.
func circle(center orb.Point, radius float64) orb.Polygon {
	r := radius / math.Cos(math.Pi/circleVertices)
	ring := make(orb.Ring, 0, circleVertices+1)
	for i := 0; i < circleVertices; i++ {
		ring = append(ring, geo.PointAtBearingAndDistance(center, float64(i)*360/circleVertices, r))
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}

// quadrants clips area to each quarter of its bound.
func quadrants(area orb.Polygon) []orb.Polygon {
	b := area.Bound()
	mid := b.Center()
	boxes := []orb.Bound{
		{Min: b.Min, Max: mid},
		{Min: orb.Point{mid[0], b.Min[1]}, Max: orb.Point{b.Max[0], mid[1]}},
		{Min: orb.Point{b.Min[0], mid[1]}, Max: orb.Point{mid[0], b.Max[1]}},
		{Min: mid, Max: b.Max},
	}
	out := make([]orb.Polygon, 0, len(boxes))
	for _, box := range boxes {
		if q := clip.Polygon(box, area.Clone()); len(q) > 0 {
			out = append(out, q)
		}
	}
	return out
}

type communeFilter struct {
	codes map[string]struct{}
	names map[string]struct{}
}

func newCommuneFilter() *communeFilter {
	return &communeFilter{codes: map[string]struct{}{}, names: map[string]struct{}{}}
}

func (f *communeFilter) add(code, name string) {
	if code != "" {
		f.codes[code] = struct{}{}
	}
	if n := utils.NormalizeText(name); n != "" {
		f.names[n] = struct{}{}
	}
}

func (f *communeFilter) matches(p Parcel) bool {
	if _, ok := f.codes[p.CommuneCode]; ok {
		return true
	}
	_, ok := f.names[utils.NormalizeText(p.CommuneName)]
	return ok
}

type constraintFilter []*communeFilter

// matches requires every constraint kind to accept the parcel.
func (c constraintFilter) matches(p Parcel) bool {
	for _, f := range c {
		if !f.matches(p) {
			return false
		}
	}
	return true
}

// resolveConstraints turns postal codes into communes. The returned map
// gives the postal code to display for each commune code.
func (e *Enumerator) resolveConstraints(ctx context.Context, c locate.ZoneConstraints) (constraintFilter, map[string]string, error) {
	var filters constraintFilter
	postal := map[string]string{}

	if len(c.PostalCodes) > 0 {
		byPostal := newCommuneFilter()
		for _, pc := range c.PostalCodes {
			pc = strings.TrimSpace(pc)
			if pc == "" {
				continue
			}
			communes, err := e.registry.CommunesForPostalCode(ctx, pc)
			if err != nil {
				return nil, nil, fmt.Errorf("resolve postal code %s: %w", pc, err)
			}
			for _, cm := range communes {
				byPostal.add(cm.Code, cm.Name)
				if _, ok := postal[cm.Code]; !ok {
					postal[cm.Code] = pc
				}
			}
		}
		filters = append(filters, byPostal)
	}

	if len(c.Communes) > 0 {
		byCommune := newCommuneFilter()
		for _, cm := range c.Communes {
			cm = strings.TrimSpace(cm)
			byCommune.add(cm, cm)
		}
		filters = append(filters, byCommune)
	}
	return filters, postal, nil
}

func singleFamily(buildingType string) bool {
	if buildingType == "" {
		return true
	}
	_, excluded := nonSingleFamily[utils.NormalizeText(buildingType)]
	return !excluded
}

func toCandidate(p Parcel, centroid orb.Point, postalCode string) locate.PropertyCandidate {
	surface := p.Contenance
	if surface <= 0 {
		surface = geo.Area(p.Geometry)
	}
	return locate.PropertyCandidate{
		ID:           p.ID,
		Address:      parcelLabel(p, postalCode),
		PostalCode:   postalCode,
		City:         p.CommuneName,
		CommuneCode:  p.CommuneCode,
		Coordinates:  locate.LatLng{Lat: centroid.Lat(), Lng: centroid.Lon()},
		CadastreData: locate.CadastreData{ParcelIDs: []string{p.ID}, TerrainSurface: surface},
		BuildingType: p.BuildingType,
		Outline:      outline(p.Geometry),
	}
}

// parcelLabel is shown until a reverse-geocoded address is known.
func parcelLabel(p Parcel, postalCode string) string {
	label := "Parcelle " + strings.TrimSpace(p.Section+" "+p.Number)
	if strings.TrimSpace(p.Section+p.Number) == "" {
		label = "Parcelle " + p.ID
	}
	if city := strings.TrimSpace(postalCode + " " + p.CommuneName); city != "" {
		label += ", " + city
	}
	return label
}

func centroidOf(g orb.Geometry) (orb.Point, bool) {
	if g == nil {
		return orb.Point{}, false
	}
	c, area := planar.CentroidArea(g)
	if area == 0 {
		if p, ok := g.(orb.Point); ok {
			return p, true
		}
		return orb.Point{}, false
	}
	return c, true
}

// outline returns the exterior ring of the largest polygon.
func outline(g orb.Geometry) [][2]float64 {
	var ring orb.Ring
	switch v := g.(type) {
	case orb.Polygon:
		if len(v) > 0 {
			ring = v[0]
		}
	case orb.MultiPolygon:
		best := 0.0
		for _, poly := range v {
			if len(poly) == 0 {
				continue
			}
			if a := math.Abs(planar.Area(poly)); a > best {
				best, ring = a, poly[0]
			}
		}
	}
	out := make([][2]float64, 0, len(ring))
	for _, p := range ring {
		out = append(out, [2]float64{p[0], p[1]})
	}
	return out
}

func nearest(refs []orb.Point, p orb.Point) float64 {
	best := math.Inf(1)
	for _, r := range refs {
		if d := geo.Distance(r, p); d < best {
			best = d
		}
	}
	return best
}

func point(p locate.LatLng) orb.Point {
	return orb.Point{p.Lng, p.Lat}
}
