// Package face defines the geometry value types shared by the capture pipeline:
// points, rectangles, head angles, bearings, detected faces and camera frames.
package face

import "math"

// Point is a 2D position in image coordinates (pixels, origin top-left)
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Scaled returns the point with each axis multiplied by its factor
func (p Point) Scaled(sx, sy float64) Point {
	return Point{X: p.X * sx, Y: p.Y * sy}
}

// Distance returns the Euclidean distance between two points
func (p Point) Distance(o Point) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

// Size is a width/height pair
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// AspectRatio returns width / height, or 0 for a degenerate size
func (s Size) AspectRatio() float64 {
	if s.Height == 0 {
		return 0
	}
	return s.Width / s.Height
}

// IsZero reports whether either dimension is zero
func (s Size) IsZero() bool {
	return s.Width == 0 || s.Height == 0
}

// Rect is an axis-aligned rectangle
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// MinX returns the left edge
func (r Rect) MinX() float64 { return r.X }

// MinY returns the top edge
func (r Rect) MinY() float64 { return r.Y }

// MaxX returns the right edge
func (r Rect) MaxX() float64 { return r.X + r.Width }

// MaxY returns the bottom edge
func (r Rect) MaxY() float64 { return r.Y + r.Height }

// MidX returns the horizontal centre
func (r Rect) MidX() float64 { return r.X + r.Width/2 }

// MidY returns the vertical centre
func (r Rect) MidY() float64 { return r.Y + r.Height/2 }

// Center returns the centre point of the rectangle
func (r Rect) Center() Point {
	return Point{X: r.MidX(), Y: r.MidY()}
}

// Area returns width * height
func (r Rect) Area() float64 {
	return r.Width * r.Height
}

// Size returns the rectangle's dimensions
func (r Rect) Size() Size {
	return Size{Width: r.Width, Height: r.Height}
}

// Inset shrinks the rectangle by dx on the left and right and dy on the top and bottom.
// Negative values grow it.
func (r Rect) Inset(dx, dy float64) Rect {
	return Rect{
		X:      r.X + dx,
		Y:      r.Y + dy,
		Width:  r.Width - 2*dx,
		Height: r.Height - 2*dy,
	}
}

// Contains reports whether o lies entirely inside r (edges inclusive)
func (r Rect) Contains(o Rect) bool {
	return o.MinX() >= r.MinX() && o.MaxX() <= r.MaxX() &&
		o.MinY() >= r.MinY() && o.MaxY() <= r.MaxY()
}

// ContainsPoint reports whether p lies inside r (edges inclusive)
func (r Rect) ContainsPoint(p Point) bool {
	return p.X >= r.MinX() && p.X <= r.MaxX() && p.Y >= r.MinY() && p.Y <= r.MaxY()
}

// Scaled multiplies origin and size by the given factors
func (r Rect) Scaled(sx, sy float64) Rect {
	return Rect{X: r.X * sx, Y: r.Y * sy, Width: r.Width * sx, Height: r.Height * sy}
}

// Mirrored flips the rectangle horizontally inside a frame of the given width
func (r Rect) Mirrored(width float64) Rect {
	return Rect{X: width - r.MaxX(), Y: r.Y, Width: r.Width, Height: r.Height}
}

// WithAspectRatio grows the shorter side so that width/height equals ratio,
// keeping the rectangle centred on the same point.
func (r Rect) WithAspectRatio(ratio float64) Rect {
	if r.Height == 0 || ratio <= 0 {
		return r
	}
	out := r
	if r.Width/r.Height > ratio {
		h := r.Width / ratio
		out.Y = r.MidY() - h/2
		out.Height = h
	} else {
		w := r.Height * ratio
		out.X = r.MidX() - w/2
		out.Width = w
	}
	return out
}
