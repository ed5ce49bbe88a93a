package detection

import (
	"math"

	"github.com/teslashibe/go-facecapture/pkg/face"
)

const (
	// noseDepthRatio is the nose tip's distance in front of the eye plane,
	// relative to the distance between the eyes
	noseDepthRatio = 0.6

	// frontalNoseRatio is where the nose tip sits between the eye line and the
	// mouth on a frontal face
	frontalNoseRatio = 0.5
)

// EstimatePose approximates head yaw, pitch and roll in degrees from the eye,
// nose and mouth positions of a face in image coordinates.
// Yaw is negative when the nose is left of the eye midpoint in the image,
// pitch is positive when the head tilts down.
func EstimatePose(leftEye, rightEye, nose, mouth face.Point) face.EulerAngle {
	a, b := leftEye, rightEye
	if a.X > b.X {
		a, b = b, a
	}
	eyeDist := a.Distance(b)
	if eyeDist == 0 {
		return face.EulerAngle{}
	}

	roll := math.Atan2(b.Y-a.Y, b.X-a.X)

	// Undo roll so yaw and pitch are measured along the face axes
	eyeMid := face.Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
	n := rotate(nose, eyeMid, -roll)
	m := rotate(mouth, eyeMid, -roll)

	yaw := math.Asin(clamp((n.X-eyeMid.X)/(eyeDist*noseDepthRatio), -1, 1))

	var pitch float64
	if span := m.Y - eyeMid.Y; span > 0 {
		r := (n.Y - eyeMid.Y) / span
		pitch = math.Asin(clamp((r-frontalNoseRatio)/frontalNoseRatio, -1, 1))
	}

	return face.EulerAngle{
		Yaw:   degrees(yaw),
		Pitch: degrees(pitch),
		Roll:  degrees(roll),
	}
}

func rotate(p, origin face.Point, rad float64) face.Point {
	s, c := math.Sincos(rad)
	dx, dy := p.X-origin.X, p.Y-origin.Y
	return face.Point{X: origin.X + dx*c - dy*s, Y: origin.Y + dx*s + dy*c}
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

func clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
