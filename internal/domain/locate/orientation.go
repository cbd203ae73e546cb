package locate

import (
	"math"
	"strings"
)

var compassRose = []Orientation{
	OrientationN, OrientationNE, OrientationE, OrientationSE,
	OrientationS, OrientationSW, OrientationW, OrientationNW,
}

// OrientationFromBearing maps a bearing in degrees (0 = north, clockwise) to
// the nearest of the eight compass points.
func OrientationFromBearing(deg float64) Orientation {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return OrientationUnknown
	}
	normalized := math.Mod(math.Mod(deg, 360)+360, 360)
	idx := int(math.Round(normalized/45)) % len(compassRose)
	return compassRose[idx]
}

func (o Orientation) Opposite() Orientation {
	for i, c := range compassRose {
		if c == o {
			return compassRose[(i+4)%len(compassRose)]
		}
	}
	return OrientationUnknown
}

func (o Orientation) Valid() bool {
	for _, c := range compassRose {
		if c == o {
			return true
		}
	}
	return false
}

// ParseOrientation accepts compass abbreviations and English/French names.
func ParseOrientation(raw string) Orientation {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "n", "north", "nord":
		return OrientationN
	case "ne", "northeast", "nord-est":
		return OrientationNE
	case "e", "east", "est":
		return OrientationE
	case "se", "southeast", "sud-est":
		return OrientationSE
	case "s", "south", "sud":
		return OrientationS
	case "sw", "so", "southwest", "sud-ouest":
		return OrientationSW
	case "w", "o", "west", "ouest":
		return OrientationW
	case "nw", "no", "northwest", "nord-ouest":
		return OrientationNW
	}
	return OrientationUnknown
}
