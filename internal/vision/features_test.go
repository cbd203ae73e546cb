package vision

import (
	"testing"

	"parcel-locator/internal/domain/locate"
)

func TestExtractFeatures(t *testing.T) {
	yes, no := true, false
	heading := 10.0

	tests := []struct {
		name      string
		labels    []locate.Label
		text      string
		overrides Overrides
		wantPool  bool
		wantShape string
		wantVeg   *bool
		wantOri   locate.Orientation
	}{
		{
			name:    "no labels leaves vegetation unknown",
			wantVeg: nil,
		},
		{
			name:      "pool with rectangular shape",
			labels:    []locate.Label{{Description: "Swimming pool", Score: 0.9}, {Description: "Rectangle", Score: 0.7}},
			wantPool:  true,
			wantShape: PoolShapeRectangular,
			wantVeg:   &no,
		},
		{
			name:     "weak pool label is ignored",
			labels:   []locate.Label{{Description: "Pool", Score: 0.4}},
			wantPool: false,
			wantVeg:  &no,
		},
		{
			name:    "one strong vegetation label is dense",
			labels:  []locate.Label{{Description: "Tree", Score: 0.8}},
			wantVeg: &yes,
		},
		{
			name: "three moderate vegetation labels are dense",
			labels: []locate.Label{
				{Description: "Plant", Score: 0.65},
				{Description: "Grass", Score: 0.62},
				{Description: "Shrub", Score: 0.61},
			},
			wantVeg: &yes,
		},
		{
			name:      "heading gives opposite facade orientation",
			labels:    []locate.Label{{Description: "House", Score: 0.9}},
			overrides: Overrides{Heading: &heading},
			wantVeg:   &no,
			wantOri:   locate.OrientationS,
		},
		{
			name:   "caller features win",
			labels: []locate.Label{{Description: "House", Score: 0.9}},
			overrides: Overrides{
				Heading:  &heading,
				Features: &locate.ImageFeatures{PoolShape: "ovale", VegetationDense: &yes, Orientation: locate.OrientationW},
			},
			wantPool:  true,
			wantShape: PoolShapeOval,
			wantVeg:   &yes,
			wantOri:   locate.OrientationW,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signals := locate.VisionSignals{Labels: tt.labels, FullText: tt.text}
			f := ExtractFeatures(signals, ExtractHints(signals), tt.overrides)
			if f.HasPool != tt.wantPool {
				t.Errorf("HasPool = %v, want %v", f.HasPool, tt.wantPool)
			}
			if f.PoolShape != tt.wantShape {
				t.Errorf("PoolShape = %q, want %q", f.PoolShape, tt.wantShape)
			}
			switch {
			case tt.wantVeg == nil && f.VegetationDense != nil:
				t.Errorf("VegetationDense = %v, want unknown", *f.VegetationDense)
			case tt.wantVeg != nil && (f.VegetationDense == nil || *f.VegetationDense != *tt.wantVeg):
				t.Errorf("VegetationDense = %v, want %v", f.VegetationDense, *tt.wantVeg)
			}
			if f.Orientation != tt.wantOri {
				t.Errorf("Orientation = %q, want %q", f.Orientation, tt.wantOri)
			}
		})
	}
}

func TestNormalizePoolShape(t *testing.T) {
	tests := map[string]string{
		"Rectangular":    PoolShapeRectangular,
		"piscine ronde":  PoolShapeRound,
		"kidney shaped":  PoolShapeFreeform,
		"L-shaped":       PoolShapeLShaped,
		"":               "",
		"something else": "",
	}
	for in, want := range tests {
		if got := NormalizePoolShape(in); got != want {
			t.Errorf("NormalizePoolShape(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReadEXIFWithoutMetadata(t *testing.T) {
	data, err := ReadEXIF([]byte("not an image"))
	if err == nil {
		t.Fatal("expected error")
	}
	if data != nil {
		t.Errorf("expected no data, got %+v", data)
	}
}
