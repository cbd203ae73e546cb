package satellite

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"parcel-locator/internal/domain/locate"
)

// MinFrontageMeters ignores digitisation slivers when looking for the
// street-facing edge.
const MinFrontageMeters = 4.0

// FacadeOrientation estimates which way the building faces from the parcel
// outline: the shortest significant edge is taken as the street frontage and
// its outward normal as the facade direction.
func FacadeOrientation(outline [][2]float64) locate.Orientation {
	ring := toRing(outline)
	if len(ring) < 4 {
		return locate.OrientationUnknown
	}
	centroid, _ := centroid(ring)

	best := math.Inf(1)
	var a, b orb.Point
	for i := 0; i+1 < len(ring); i++ {
		d := geo.Distance(ring[i], ring[i+1])
		if d < MinFrontageMeters || d >= best {
			continue
		}
		best, a, b = d, ring[i], ring[i+1]
	}
	if math.IsInf(best, 1) {
		return locate.OrientationUnknown
	}

	mid := geo.Midpoint(a, b)
	edge := geo.Bearing(a, b)
	outward := geo.Bearing(centroid, mid)

	normal := edge + 90
	if angleBetween(normal, outward) > 90 {
		normal = edge - 90
	}
	return locate.OrientationFromBearing(normal)
}

// EstimatedSurface prefers the registry's contenance and falls back to the
// geodesic area of the outline.
func EstimatedSurface(c locate.PropertyCandidate) float64 {
	if c.CadastreData.TerrainSurface > 0 {
		return c.CadastreData.TerrainSurface
	}
	ring := toRing(c.Outline)
	if len(ring) < 4 {
		return 0
	}
	return math.Abs(geo.Area(orb.Polygon{ring}))
}

func toRing(outline [][2]float64) orb.Ring {
	ring := make(orb.Ring, 0, len(outline)+1)
	for _, p := range outline {
		ring = append(ring, orb.Point{p[0], p[1]})
	}
	if len(ring) > 0 && !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return ring
}

func centroid(ring orb.Ring) (orb.Point, bool) {
	var sx, sy float64
	n := len(ring) - 1
	if n <= 0 {
		return orb.Point{}, false
	}
	for _, p := range ring[:n] {
		sx += p[0]
		sy += p[1]
	}
	return orb.Point{sx / float64(n), sy / float64(n)}, true
}

func angleBetween(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}
