package liveness

import (
	"context"
	"fmt"

	"github.com/teslashibe/go-facecapture/pkg/face"
	"github.com/teslashibe/go-facecapture/pkg/plugin"
	"github.com/teslashibe/go-facecapture/pkg/tracking"
)

// SpoofDetector scores how likely the face in roi is presented on a device or
// printout, from 0 (live) to 1 (spoof)
type SpoofDetector interface {
	SpoofScore(ctx context.Context, img face.Image, roi face.Rect) (float64, error)
}

// PassiveLivenessConfig holds the spoof thresholds
type PassiveLivenessConfig struct {
	ConfidenceThreshold   float64 // Scores above this count as positive
	MaxPositiveRatio      float64 // Share of checked frames allowed to be positive
	MaxPositiveFrameCount int     // Longest allowed run of consecutive positives
}

// DefaultPassiveLivenessConfig returns the defaults
func DefaultPassiveLivenessConfig() PassiveLivenessConfig {
	return PassiveLivenessConfig{
		ConfidenceThreshold:   0.5,
		MaxPositiveRatio:      0.5,
		MaxPositiveFrameCount: 3,
	}
}

// SpoofFrame is the per-frame value of PassiveLiveness
type SpoofFrame struct {
	Score   float64 `json:"score"`
	Checked bool    `json:"checked"` // False when the frame had no face
}

// PassiveLiveness runs a spoof detector on every frame with a face
type PassiveLiveness struct {
	detector SpoofDetector
	config   PassiveLivenessConfig
}

var _ plugin.Plugin[SpoofFrame] = (*PassiveLiveness)(nil)

// NewPassiveLiveness creates the plugin
func NewPassiveLiveness(detector SpoofDetector, cfg PassiveLivenessConfig) *PassiveLiveness {
	return &PassiveLiveness{detector: detector, config: cfg}
}

// Name implements plugin.Plugin
func (p *PassiveLiveness) Name() string {
	return "Passive liveness"
}

// ProcessResult implements plugin.Plugin
func (p *PassiveLiveness) ProcessResult(ctx context.Context, r tracking.Result) (SpoofFrame, error) {
	f, ok := r.Face()
	if !ok {
		return SpoofFrame{}, nil
	}
	in, _ := r.Input()
	score, err := p.detector.SpoofScore(ctx, in.Image, f.Bounds)
	if err != nil {
		return SpoofFrame{}, fmt.Errorf("spoof detection: %w", err)
	}
	return SpoofFrame{Score: score, Checked: true}, nil
}

// FinalCheck implements plugin.Plugin
func (p *PassiveLiveness) FinalCheck(_ context.Context, results []plugin.Result[SpoofFrame]) error {
	checked, positives, longest := p.count(results)
	if checked == 0 {
		return nil
	}
	if float64(positives)/float64(checked) > p.config.MaxPositiveRatio {
		return &PassiveLivenessError{Reason: ReasonSpoofRatio}
	}
	if longest > p.config.MaxPositiveFrameCount {
		return &PassiveLivenessError{Reason: ReasonSpoofConsecutive}
	}
	return nil
}

func (p *PassiveLiveness) count(results []plugin.Result[SpoofFrame]) (checked, positives, longest int) {
	run := 0
	for _, r := range results {
		if !r.Value.Checked {
			continue
		}
		checked++
		if r.Value.Score > p.config.ConfidenceThreshold {
			positives++
			run++
			longest = max(longest, run)
		} else {
			run = 0
		}
	}
	return checked, positives, longest
}

// Summary implements plugin.Plugin
func (p *PassiveLiveness) Summary(_ context.Context, results []plugin.Result[SpoofFrame]) string {
	checked, positives, _ := p.count(results)
	if checked == 0 {
		return "Liveness check not performed"
	}
	return fmt.Sprintf("%d of %d frames scored as spoof", positives, checked)
}
