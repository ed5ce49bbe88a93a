package tracking

import (
	"gonum.org/v1/gonum/stat"

	"github.com/teslashibe/go-facecapture/pkg/face"
)

// alignedFace is a buffered detection with the flags computed when it arrived
type alignedFace struct {
	face      face.Face
	isAligned bool
	isFixed   bool
}

func (a alignedFace) aligned() bool { return a.isAligned }
func (a alignedFace) fixed() bool   { return a.isFixed }

// ExpectedFaceBounds returns the centred oval target for a frame of the given size.
// Wide frames size the box by height, narrow frames by width.
func ExpectedFaceBounds(s Settings, frame face.Size) face.Rect {
	ratio := s.ExpectedFaceAspectRatio
	var size face.Size
	if frame.AspectRatio() > ratio {
		size.Height = frame.Height * s.ExpectedFaceHeightFraction
		size.Width = size.Height * ratio
	} else {
		size.Width = frame.Width * s.ExpectedFaceWidthFraction
		size.Height = size.Width / ratio
	}
	return face.Rect{
		X:      frame.Width/2 - size.Width/2,
		Y:      frame.Height/2 - size.Height/2,
		Width:  size.Width,
		Height: size.Height,
	}
}

// IsFaceFixed reports whether bounds sit in the settle band around expected:
// inside expected grown by the outer margin and covering expected shrunk by the inner margin.
func IsFaceFixed(s Settings, bounds, expected face.Rect) bool {
	maxRect := expected.Inset(-expected.Width*s.FixedOuterMargin, -expected.Height*s.FixedOuterMargin)
	minRect := expected.Inset(expected.Width*s.FixedInnerMargin, expected.Height*s.FixedInnerMargin)
	return bounds.Contains(minRect) && maxRect.Contains(bounds)
}

// SmoothFaces averages the given detections. Optional landmarks are averaged over
// the samples that have them; landmark arrays are only averaged when their lengths
// agree with the first sample that has one.
func SmoothFaces(faces []face.Face) (face.Face, bool) {
	n := len(faces)
	if n == 0 {
		return face.Face{}, false
	}
	series := func(get func(face.Face) float64) float64 {
		v := make([]float64, n)
		for i, f := range faces {
			v[i] = get(f)
		}
		return stat.Mean(v, nil)
	}

	out := face.Face{
		Bounds: face.Rect{
			X:      series(func(f face.Face) float64 { return f.Bounds.X }),
			Y:      series(func(f face.Face) float64 { return f.Bounds.Y }),
			Width:  series(func(f face.Face) float64 { return f.Bounds.Width }),
			Height: series(func(f face.Face) float64 { return f.Bounds.Height }),
		},
		Angle: face.EulerAngle{
			Yaw:   series(func(f face.Face) float64 { return f.Angle.Yaw }),
			Pitch: series(func(f face.Face) float64 { return f.Angle.Pitch }),
			Roll:  series(func(f face.Face) float64 { return f.Angle.Roll }),
		},
		Quality: series(func(f face.Face) float64 { return f.Quality }),
	}

	out.Landmarks = meanLandmarks(faces)
	out.LeftEye = meanPoint(faces, func(f face.Face) *face.Point { return f.LeftEye })
	out.RightEye = meanPoint(faces, func(f face.Face) *face.Point { return f.RightEye })
	out.NoseTip = meanPoint(faces, func(f face.Face) *face.Point { return f.NoseTip })
	out.MouthCentre = meanPoint(faces, func(f face.Face) *face.Point { return f.MouthCentre })
	return out, true
}

func meanPoint(faces []face.Face, get func(face.Face) *face.Point) *face.Point {
	var xs, ys []float64
	for _, f := range faces {
		if p := get(f); p != nil {
			xs = append(xs, p.X)
			ys = append(ys, p.Y)
		}
	}
	if len(xs) == 0 {
		return nil
	}
	return &face.Point{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil)}
}

func meanLandmarks(faces []face.Face) []face.Point {
	var sets [][]face.Point
	for _, f := range faces {
		if len(f.Landmarks) == 0 {
			continue
		}
		if len(sets) > 0 && len(f.Landmarks) != len(sets[0]) {
			continue
		}
		sets = append(sets, f.Landmarks)
	}
	if len(sets) == 0 {
		return nil
	}
	out := make([]face.Point, len(sets[0]))
	xs := make([]float64, len(sets))
	ys := make([]float64, len(sets))
	for i := range out {
		for j, set := range sets {
			xs[j] = set[i].X
			ys[j] = set[i].Y
		}
		out[i] = face.Point{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil)}
	}
	return out
}
