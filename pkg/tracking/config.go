package tracking

import (
	"fmt"
	"slices"
	"time"

	"github.com/teslashibe/go-facecapture/pkg/face"
)

// Settings holds all tunable parameters for a capture session
type Settings struct {
	// Captures
	FaceCaptureCount     int           // Captures needed for success
	FaceCaptureFaceCount int           // Consecutive aligned frames before a capture is accepted
	PauseDuration        time.Duration // Hold time between two captures
	MaxDuration          time.Duration // Session deadline, compared against frame time

	// Bearings
	AvailableBearings  []face.Bearing // Pool to pick the next requested bearing from
	RejectMovedTooFast bool           // Fail a head that snaps to the next bearing without turning through it

	// Angle matching (degrees)
	PitchThreshold          float64 // Target pitch for up/down bearings
	YawThreshold            float64 // Target yaw for left/right bearings
	PitchThresholdTolerance float64 // How far inside the threshold still counts
	YawThresholdTolerance   float64

	// Expected face box
	ExpectedFaceAspectRatio    float64 // width / height
	ExpectedFaceHeightFraction float64 // Of image height, for landscape-ish frames
	ExpectedFaceWidthFraction  float64 // Of image width, for portrait frames
	FixedOuterMargin           float64 // Face must stay inside expected bounds grown by this fraction
	FixedInnerMargin           float64 // Face must cover expected bounds shrunk by this fraction

	// Smoothing
	BufferDuration      time.Duration // Temporal window of recent detections
	SmoothingBufferSize int           // Samples averaged into the smoothed face
}

// DefaultSettings returns the settings for a single straight capture
func DefaultSettings() Settings {
	return Settings{
		FaceCaptureCount:     1,
		FaceCaptureFaceCount: 6,
		PauseDuration:        1500 * time.Millisecond,
		MaxDuration:          30 * time.Second,

		AvailableBearings: []face.Bearing{face.Straight, face.Left, face.Right},

		PitchThreshold:          15,
		YawThreshold:            17,
		PitchThresholdTolerance: 5,
		YawThresholdTolerance:   5,

		ExpectedFaceAspectRatio:    DefaultExpectedFaceAspectRatio,
		ExpectedFaceHeightFraction: 0.85,
		ExpectedFaceWidthFraction:  0.65,
		FixedOuterMargin:           DefaultFixedOuterMargin,
		FixedInnerMargin:           DefaultFixedInnerMargin,

		BufferDuration:      DefaultBufferDuration,
		SmoothingBufferSize: DefaultSmoothingBufferSize,
	}
}

// ActiveLivenessSettings returns settings that ask the user to turn their head
// between several captures
func ActiveLivenessSettings() Settings {
	cfg := DefaultSettings()
	cfg.FaceCaptureCount = 3
	cfg.AvailableBearings = []face.Bearing{face.Straight, face.Left, face.Right, face.Up, face.Down}
	cfg.MaxDuration = 60 * time.Second
	return cfg
}

// Validate reports the first invalid field
func (s Settings) Validate() error {
	switch {
	case s.FaceCaptureCount < 1:
		return fmt.Errorf("%w: face capture count must be at least 1", ErrInvalidSettings)
	case s.FaceCaptureFaceCount < 1:
		return fmt.Errorf("%w: face capture face count must be at least 1", ErrInvalidSettings)
	case s.PauseDuration < 0:
		return fmt.Errorf("%w: pause duration must not be negative", ErrInvalidSettings)
	case s.MaxDuration <= 0:
		return fmt.Errorf("%w: max duration must be positive", ErrInvalidSettings)
	case len(s.AvailableBearings) == 0:
		return fmt.Errorf("%w: at least one bearing required", ErrInvalidSettings)
	case s.PitchThreshold <= 0 || s.YawThreshold <= 0:
		return fmt.Errorf("%w: angle thresholds must be positive", ErrInvalidSettings)
	case s.PitchThresholdTolerance < 0 || s.YawThresholdTolerance < 0:
		return fmt.Errorf("%w: angle tolerances must not be negative", ErrInvalidSettings)
	case s.PitchThresholdTolerance >= s.PitchThreshold || s.YawThresholdTolerance >= s.YawThreshold:
		return fmt.Errorf("%w: tolerance must be smaller than its threshold", ErrInvalidSettings)
	case s.RejectMovedTooFast && (2*s.PitchThresholdTolerance >= s.PitchThreshold || 2*s.YawThresholdTolerance >= s.YawThreshold):
		return fmt.Errorf("%w: moved-too-fast check needs tolerances below half their thresholds", ErrInvalidSettings)
	case s.ExpectedFaceAspectRatio <= 0:
		return fmt.Errorf("%w: expected face aspect ratio must be positive", ErrInvalidSettings)
	case s.ExpectedFaceHeightFraction <= 0 || s.ExpectedFaceWidthFraction <= 0:
		return fmt.Errorf("%w: expected face fractions must be positive", ErrInvalidSettings)
	case s.FixedInnerMargin < 0 || s.FixedInnerMargin >= 0.5:
		return fmt.Errorf("%w: fixed inner margin must be in [0, 0.5)", ErrInvalidSettings)
	case s.FixedOuterMargin < 0:
		return fmt.Errorf("%w: fixed outer margin must not be negative", ErrInvalidSettings)
	case s.BufferDuration <= 0:
		return fmt.Errorf("%w: buffer duration must be positive", ErrInvalidSettings)
	case s.SmoothingBufferSize < 1:
		return fmt.Errorf("%w: smoothing buffer size must be at least 1", ErrInvalidSettings)
	}
	return nil
}

// HasBearing reports whether b is in the available pool
func (s Settings) HasBearing(b face.Bearing) bool {
	return slices.Contains(s.AvailableBearings, b)
}
