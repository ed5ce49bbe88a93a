package face

import "math"

// Image is one camera frame
type Image struct {
	Width  int       `json:"width"`
	Height int       `json:"height"`
	JPEG   []byte    `json:"-"`
	Depth  *DepthMap `json:"-"`
}

// Size returns the frame dimensions
func (i Image) Size() Size {
	return Size{Width: float64(i.Width), Height: float64(i.Height)}
}

// DepthMap holds per-pixel distances from the camera in metres, row-major
type DepthMap struct {
	Width  int
	Height int
	Values []float32
}

// NewDepthMap allocates a map filled with fill
func NewDepthMap(width, height int, fill float32) *DepthMap {
	values := make([]float32, width*height)
	for i := range values {
		values[i] = fill
	}
	return &DepthMap{Width: width, Height: height, Values: values}
}

// Size returns the map dimensions
func (d *DepthMap) Size() Size {
	return Size{Width: float64(d.Width), Height: float64(d.Height)}
}

// At returns the depth at x, y. Out of range coordinates return NaN.
func (d *DepthMap) At(x, y int) float32 {
	if x < 0 || y < 0 || x >= d.Width || y >= d.Height {
		return float32(math.NaN())
	}
	return d.Values[y*d.Width+x]
}

// Set stores a depth value; out of range coordinates are ignored
func (d *DepthMap) Set(x, y int, v float32) {
	if x < 0 || y < 0 || x >= d.Width || y >= d.Height {
		return
	}
	d.Values[y*d.Width+x] = v
}

// MeanAround averages the valid samples in the (2r+1)x(2r+1) square centred on p.
// Samples that are NaN, infinite or not positive are skipped. Returns NaN when
// nothing valid is found.
func (d *DepthMap) MeanAround(p Point, r int) float64 {
	cx, cy := int(p.X), int(p.Y)
	var sum float64
	var n int
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			v := float64(d.At(x, y))
			if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
				continue
			}
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
