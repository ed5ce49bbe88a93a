package liveness

import (
	"context"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/teslashibe/go-facecapture/pkg/face"
	"github.com/teslashibe/go-facecapture/pkg/plugin"
	"github.com/teslashibe/go-facecapture/pkg/tracking"
)

// DepthLivenessConfig holds the depth liveness thresholds, in metres
type DepthLivenessConfig struct {
	NearLimit              float64 // Nose closer than this fails; 0 disables the near bound
	FarLimit               float64 // Nose further than this fails
	PlaneDistanceThreshold float64 // Minimum relief in front of the eye/mouth plane
	NeighbourhoodRadius    int     // Depth samples are averaged over (2r+1)² pixels
	MinSpreadSamples       int     // Off-plane landmarks needed for the spread check
	AspectRatio            float64 // Face bounds are grown to this ratio before sampling
}

// DefaultDepthLivenessConfig returns the tuned defaults
func DefaultDepthLivenessConfig() DepthLivenessConfig {
	return DepthLivenessConfig{
		NearLimit:              0.015,
		FarLimit:               1.5,
		PlaneDistanceThreshold: 0.02,
		NeighbourhoodRadius:    1,
		MinSpreadSamples:       2,
		AspectRatio:            0.8,
	}
}

// DepthLivenessDetection checks that an aligned face has 3D relief: the nose tip
// must stand out from the plane through the eyes and the mouth. Flat spoofs
// such as photos and screens fail.
//
// The per-frame value reports whether the check was performed.
type DepthLivenessDetection struct {
	config DepthLivenessConfig
}

var _ plugin.Plugin[bool] = (*DepthLivenessDetection)(nil)

// NewDepthLivenessDetection creates the plugin
func NewDepthLivenessDetection(cfg DepthLivenessConfig) *DepthLivenessDetection {
	return &DepthLivenessDetection{config: cfg}
}

// Name implements plugin.Plugin
func (d *DepthLivenessDetection) Name() string {
	return "Depth-based liveness detection"
}

// ProcessResult implements plugin.Plugin
func (d *DepthLivenessDetection) ProcessResult(_ context.Context, r tracking.Result) (bool, error) {
	if r.State != tracking.StateFaceAligned && r.State != tracking.StateFaceCaptured {
		return false, nil
	}
	in, _ := r.Input()
	depth := in.Image.Depth
	if depth == nil || in.Image.Width == 0 || in.Image.Height == 0 {
		return false, nil
	}
	f, ok := r.SmoothedFace()
	if !ok || f.LeftEye == nil || f.RightEye == nil || f.NoseTip == nil || f.MouthCentre == nil {
		return false, nil
	}

	f = f.WithBoundsSetToAspectRatio(d.config.AspectRatio).Scaled(
		float64(depth.Width)/float64(in.Image.Width),
		float64(depth.Height)/float64(in.Image.Height),
	)

	refs := [...]face.Point{*f.LeftEye, *f.RightEye, *f.MouthCentre}
	var plane [3]r3.Vec
	for i, p := range refs {
		z := depth.MeanAround(p, d.config.NeighbourhoodRadius)
		if math.IsNaN(z) {
			return false, nil
		}
		plane[i] = r3.Vec{X: p.X, Y: p.Y, Z: z}
	}
	noseZ := depth.MeanAround(*f.NoseTip, d.config.NeighbourhoodRadius)
	if math.IsNaN(noseZ) {
		return false, nil
	}

	fail := func(reason string) (bool, error) {
		return false, &PassiveLivenessError{Reason: reason, SerialNumber: in.SerialNumber}
	}
	if d.config.NearLimit > 0 && noseZ < d.config.NearLimit {
		return fail(ReasonTooClose)
	}
	if d.config.FarLimit > 0 && noseZ > d.config.FarLimit {
		return fail(ReasonTooFar)
	}

	planeZ, ok := planeThrough(plane)
	if !ok {
		return false, nil
	}

	samples := d.offPlaneSamples(f, refs[:], depth)
	if len(samples) >= max(d.config.MinSpreadSamples, 1) {
		distances := make([]float64, len(samples))
		for i, s := range samples {
			distances[i] = math.Abs(planeZ(s.X, s.Y) - s.Z)
		}
		mean, std := stat.MeanStdDev(distances, nil)
		if math.IsNaN(std) {
			std = 0
		}
		if mean+std < d.config.PlaneDistanceThreshold {
			return fail(ReasonFlatTopography)
		}
		return true, nil
	}

	if planeZ(f.NoseTip.X, f.NoseTip.Y)-noseZ < d.config.PlaneDistanceThreshold {
		return fail(ReasonFlatTopography)
	}
	return true, nil
}

// offPlaneSamples returns landmarks inside the face bounds, other than the plane
// references, with a valid depth
func (d *DepthLivenessDetection) offPlaneSamples(f face.Face, refs []face.Point, depth *face.DepthMap) []r3.Vec {
	var out []r3.Vec
	for _, p := range f.Landmarks {
		if !f.Bounds.ContainsPoint(p) || isReference(p, refs) {
			continue
		}
		z := depth.MeanAround(p, d.config.NeighbourhoodRadius)
		if math.IsNaN(z) {
			continue
		}
		out = append(out, r3.Vec{X: p.X, Y: p.Y, Z: z})
	}
	return out
}

func isReference(p face.Point, refs []face.Point) bool {
	for _, r := range refs {
		if p.Distance(r) < 0.5 {
			return true
		}
	}
	return false
}

// planeThrough returns z as a function of x and y on the plane through the
// three points. It fails when the plane is parallel to the depth axis.
func planeThrough(pts [3]r3.Vec) (func(x, y float64) float64, bool) {
	n := r3.Cross(r3.Sub(pts[1], pts[0]), r3.Sub(pts[2], pts[0]))
	if math.Abs(n.Z) < 1e-12 {
		return nil, false
	}
	a := pts[0]
	return func(x, y float64) float64 {
		return a.Z - (n.X*(x-a.X)+n.Y*(y-a.Y))/n.Z
	}, true
}

// FinalCheck implements plugin.Plugin. Frames fail individually in ProcessResult.
func (d *DepthLivenessDetection) FinalCheck(context.Context, []plugin.Result[bool]) error {
	return nil
}

// Summary implements plugin.Plugin
func (d *DepthLivenessDetection) Summary(_ context.Context, results []plugin.Result[bool]) string {
	for _, r := range results {
		if r.Value {
			return "Liveness check passed"
		}
	}
	return "Liveness check not performed"
}
