package locate

import "testing"

func TestOrientationFromBearing(t *testing.T) {
	tests := []struct {
		bearing  float64
		expected Orientation
	}{
		{0, OrientationN},
		{359, OrientationN},
		{44, OrientationNE},
		{90, OrientationE},
		{-90, OrientationW},
		{180, OrientationS},
		{200, OrientationS},
		{225, OrientationSW},
		{720 + 135, OrientationSE},
	}

	for _, tt := range tests {
		if got := OrientationFromBearing(tt.bearing); got != tt.expected {
			t.Errorf("OrientationFromBearing(%v) = %q, want %q", tt.bearing, got, tt.expected)
		}
	}
}

func TestOrientationOpposite(t *testing.T) {
	pairs := map[Orientation]Orientation{
		OrientationN:  OrientationS,
		OrientationE:  OrientationW,
		OrientationNE: OrientationSW,
		OrientationNW: OrientationSE,
	}
	for o, want := range pairs {
		if got := o.Opposite(); got != want {
			t.Errorf("%q.Opposite() = %q, want %q", o, got, want)
		}
		if got := want.Opposite(); got != o {
			t.Errorf("%q.Opposite() = %q, want %q", want, got, o)
		}
	}
	if got := OrientationUnknown.Opposite(); got != OrientationUnknown {
		t.Errorf("unknown.Opposite() = %q, want unknown", got)
	}
}

func TestParseOrientation(t *testing.T) {
	if got := ParseOrientation("sud"); got != OrientationS {
		t.Errorf("ParseOrientation(sud) = %q", got)
	}
	if got := ParseOrientation("O"); got != OrientationW {
		t.Errorf("ParseOrientation(O) = %q", got)
	}
	if got := ParseOrientation("sideways"); got != OrientationUnknown {
		t.Errorf("ParseOrientation(sideways) = %q", got)
	}
}
