package tracking

import (
	"math"

	"github.com/teslashibe/go-facecapture/pkg/face"
)

// Axis selects pitch or yaw
type Axis int

const (
	AxisPitch Axis = iota
	AxisYaw
)

// AngleBearingEvaluation answers geometric questions about head angles and bearings.
// All angles are in degrees.
type AngleBearingEvaluation struct {
	PitchThreshold float64
	YawThreshold   float64
	PitchTolerance float64
	YawTolerance   float64
}

// NewAngleBearingEvaluation takes thresholds and tolerances from settings
func NewAngleBearingEvaluation(s Settings) AngleBearingEvaluation {
	return AngleBearingEvaluation{
		PitchThreshold: s.PitchThreshold,
		YawThreshold:   s.YawThreshold,
		PitchTolerance: s.PitchThresholdTolerance,
		YawTolerance:   s.YawThresholdTolerance,
	}
}

// ThresholdAngle returns the target distance from straight on an axis
func (e AngleBearingEvaluation) ThresholdAngle(axis Axis) float64 {
	if axis == AxisPitch {
		return e.PitchThreshold
	}
	return e.YawThreshold
}

// ThresholdTolerance returns how far short of the threshold still matches
func (e AngleBearingEvaluation) ThresholdTolerance(axis Axis) float64 {
	if axis == AxisPitch {
		return e.PitchTolerance
	}
	return e.YawTolerance
}

// AngleForBearing returns the canonical target angle of a bearing.
// Looking up is negative pitch, looking left is negative yaw.
func (e AngleBearingEvaluation) AngleForBearing(b face.Bearing) face.EulerAngle {
	var a face.EulerAngle
	switch {
	case b.IsUp():
		a.Pitch = -e.PitchThreshold
	case b.IsDown():
		a.Pitch = e.PitchThreshold
	}
	switch {
	case b.IsLeft():
		a.Yaw = -e.YawThreshold
	case b.IsRight():
		a.Yaw = e.YawThreshold
	}
	return a
}

// Matches reports whether angle falls strictly inside the window of bearing b
func (e AngleBearingEvaluation) Matches(angle face.EulerAngle, b face.Bearing) bool {
	lo := e.minAngle(b)
	hi := e.maxAngle(b)
	return angle.Pitch > lo.Pitch && angle.Pitch < hi.Pitch &&
		angle.Yaw > lo.Yaw && angle.Yaw < hi.Yaw
}

// Offset returns the normalised direction from angle towards bearing b, or the
// zero angle if angle already matches. Used to size and point the guidance arrow.
func (e AngleBearingEvaluation) Offset(angle face.EulerAngle, b face.Bearing) face.EulerAngle {
	var out face.EulerAngle
	if e.Matches(angle, b) {
		return out
	}
	target := e.AngleForBearing(b)
	out.Yaw = (target.Yaw - angle.Yaw) / (e.YawThreshold + e.YawTolerance)
	out.Pitch = (angle.Pitch - target.Pitch) / (e.PitchThreshold + e.PitchTolerance)
	return out
}

// IsAngleBetweenBearings reports whether angle lies on the path from one bearing
// to another. The path is a band as wide as the larger threshold on either side of
// the segment joining both targets in yaw/pitch space, closed by a half disc
// around the starting target. Angles matching either bearing are always on the path.
func (e AngleBearingEvaluation) IsAngleBetweenBearings(angle face.EulerAngle, from, to face.Bearing) bool {
	if e.Matches(angle, from) || e.Matches(angle, to) {
		return true
	}
	fromAngle := e.AngleForBearing(from)
	toAngle := e.AngleForBearing(to)

	start := face.Point{X: fromAngle.Yaw, Y: fromAngle.Pitch}
	end := face.Point{X: toAngle.Yaw, Y: toAngle.Pitch}
	pt := face.Point{X: angle.Yaw, Y: angle.Pitch}
	radius := math.Max(e.PitchThreshold, e.YawThreshold)
	rad := math.Atan2(end.Y-start.Y, end.X-start.X) + math.Pi/2

	dx := math.Cos(rad) * radius
	dy := math.Sin(rad) * radius
	startRight := face.Point{X: start.X + dx, Y: start.Y + dy}
	startLeft := face.Point{X: start.X - dx, Y: start.Y - dy}
	endRight := face.Point{X: end.X + dx, Y: end.Y + dy}
	endLeft := face.Point{X: end.X - dx, Y: end.Y - dy}

	return !isRightOf(pt, startRight, endRight) &&
		isRightOf(pt, startLeft, endLeft) &&
		(isRightOf(pt, startRight, startLeft) || pt.Distance(start) <= radius)
}

// IsAngleInTransit reports whether angle lies strictly between the targets of
// from and to, more than a tolerance away from both, on an axis where they differ
func (e AngleBearingEvaluation) IsAngleInTransit(angle face.EulerAngle, from, to face.Bearing) bool {
	a, b := e.AngleForBearing(from), e.AngleForBearing(to)
	between := func(v, x, y, tol float64) bool {
		lo, hi := math.Min(x, y)+tol, math.Max(x, y)-tol
		return lo < hi && v > lo && v < hi
	}
	return between(angle.Yaw, a.Yaw, b.Yaw, e.YawTolerance) ||
		between(angle.Pitch, a.Pitch, b.Pitch, e.PitchTolerance)
}

// isRightOf reports whether pt is on the right of (or on) the line from a to b
func isRightOf(pt, a, b face.Point) bool {
	d := (pt.X-a.X)*(b.Y-a.Y) - (pt.Y-a.Y)*(b.X-a.X)
	return d <= 0
}

func (e AngleBearingEvaluation) minAngle(b face.Bearing) face.EulerAngle {
	var a face.EulerAngle
	switch {
	case b.IsUp():
		a.Pitch = -math.MaxFloat64
	case b.IsDown():
		a.Pitch = e.PitchThreshold - e.PitchTolerance
	default:
		a.Pitch = -e.PitchThreshold + e.PitchTolerance
	}
	switch {
	case b.IsLeft():
		a.Yaw = -math.MaxFloat64
	case b.IsRight():
		a.Yaw = e.YawThreshold - e.YawTolerance
	default:
		a.Yaw = -e.YawThreshold + e.YawTolerance
	}
	return a
}

func (e AngleBearingEvaluation) maxAngle(b face.Bearing) face.EulerAngle {
	var a face.EulerAngle
	switch {
	case b.IsUp():
		a.Pitch = -e.PitchThreshold + e.PitchTolerance
	case b.IsDown():
		a.Pitch = math.MaxFloat64
	default:
		a.Pitch = e.PitchThreshold - e.PitchTolerance
	}
	switch {
	case b.IsLeft():
		a.Yaw = -e.YawThreshold + e.YawTolerance
	case b.IsRight():
		a.Yaw = math.MaxFloat64
	default:
		a.Yaw = e.YawThreshold - e.YawTolerance
	}
	return a
}
