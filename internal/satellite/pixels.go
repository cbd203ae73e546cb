package satellite

import (
	"image"
	_ "image/jpeg"
	_ "image/png"

	"parcel-locator/internal/vision"
)

const (
	DenseVegetationRatio = 0.35
	// MinPoolPixels is the smallest water blob taken for a pool.
	MinPoolPixels = 150
	// MinShapePixels is the smallest blob whose shape is classified.
	MinShapePixels = 400

	rectangularFill = 0.85
	roundFill       = 0.7
	roundAspect     = 1.3
)

// PixelStats summarises the central window of an aerial image.
type PixelStats struct {
	GreenRatio float64
	// PoolPixels is the size of the largest pool-coloured blob.
	PoolPixels int
	PoolShape  string
}

// AnalyzePixels inspects the central half of img, which covers the parcel
// when the image is centred on it.
func AnalyzePixels(img image.Image) PixelStats {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return PixelStats{}
	}
	x0, y0 := b.Min.X+w/4, b.Min.Y+h/4
	ww, wh := w/2, h/2
	if ww == 0 || wh == 0 {
		x0, y0, ww, wh = b.Min.X, b.Min.Y, w, h
	}

	mask := make([]bool, ww*wh)
	green := 0
	for y := 0; y < wh; y++ {
		for x := 0; x < ww; x++ {
			r, g, bl := rgb8(img, x0+x, y0+y)
			if isVegetation(r, g, bl) {
				green++
			}
			mask[y*ww+x] = isPoolWater(r, g, bl)
		}
	}

	stats := PixelStats{GreenRatio: float64(green) / float64(ww*wh)}
	blob := largestBlob(mask, ww, wh)
	stats.PoolPixels = blob.size
	if blob.size >= MinShapePixels {
		stats.PoolShape = blob.shape()
	}
	return stats
}

func rgb8(img image.Image, x, y int) (int, int, int) {
	r, g, b, _ := img.At(x, y).RGBA()
	return int(r >> 8), int(g >> 8), int(b >> 8)
}

func isVegetation(r, g, b int) bool {
	return g > r+10 && g > b+5 && g > 40
}

// isPoolWater matches the cyan-blue of chlorinated water, which natural
// water and roofs rarely reach.
func isPoolWater(r, g, b int) bool {
	return b > 120 && g > 100 && r < 130 && b-r > 60 && g-r > 30
}

type blob struct {
	size                   int
	minX, minY, maxX, maxY int
}

func (b blob) shape() string {
	bw, bh := b.maxX-b.minX+1, b.maxY-b.minY+1
	fill := float64(b.size) / float64(bw*bh)
	aspect := float64(bw) / float64(bh)
	if aspect < 1 {
		aspect = 1 / aspect
	}
	switch {
	case fill >= rectangularFill:
		return vision.PoolShapeRectangular
	case fill >= roundFill && aspect <= roundAspect:
		return vision.PoolShapeRound
	case fill >= roundFill:
		return vision.PoolShapeOval
	}
	return vision.PoolShapeFreeform
}

// largestBlob finds the largest 4-connected component of mask.
func largestBlob(mask []bool, w, h int) blob {
	seen := make([]bool, len(mask))
	var best blob
	stack := make([]int, 0, 256)
	for start := range mask {
		if !mask[start] || seen[start] {
			continue
		}
		cur := blob{minX: w, minY: h, maxX: -1, maxY: -1}
		stack = append(stack[:0], start)
		seen[start] = true
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%w, i/w
			cur.size++
			cur.minX, cur.maxX = min(cur.minX, x), max(cur.maxX, x)
			cur.minY, cur.maxY = min(cur.minY, y), max(cur.maxY, y)
			for _, n := range [4][2]int{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}} {
				if n[0] < 0 || n[1] < 0 || n[0] >= w || n[1] >= h {
					continue
				}
				j := n[1]*w + n[0]
				if mask[j] && !seen[j] {
					seen[j] = true
					stack = append(stack, j)
				}
			}
		}
		if cur.size > best.size {
			best = cur
		}
	}
	return best
}
