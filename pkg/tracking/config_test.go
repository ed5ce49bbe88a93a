package tracking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-facecapture/pkg/face"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	require.NoError(t, s.Validate())
	assert.Equal(t, 1, s.FaceCaptureCount)
	assert.Equal(t, 6, s.FaceCaptureFaceCount)
	assert.Equal(t, 1500*time.Millisecond, s.PauseDuration)
	assert.Equal(t, 500*time.Millisecond, s.BufferDuration)
	assert.Equal(t, 3, s.SmoothingBufferSize)
	assert.InDelta(t, 0.8, s.ExpectedFaceAspectRatio, 1e-9)
	assert.True(t, s.HasBearing(face.Straight))
	assert.False(t, s.HasBearing(face.Up))
}

func TestActiveLivenessSettings(t *testing.T) {
	s := ActiveLivenessSettings()

	require.NoError(t, s.Validate())
	assert.Equal(t, 3, s.FaceCaptureCount)
	assert.True(t, s.HasBearing(face.Up))
	assert.True(t, s.HasBearing(face.Down))

	// The presets must not share the bearing slice
	s.AvailableBearings[0] = face.LeftDown
	assert.Equal(t, face.Straight, DefaultSettings().AvailableBearings[0])
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"zero captures", func(s *Settings) { s.FaceCaptureCount = 0 }},
		{"zero capture faces", func(s *Settings) { s.FaceCaptureFaceCount = 0 }},
		{"negative pause", func(s *Settings) { s.PauseDuration = -time.Second }},
		{"no deadline", func(s *Settings) { s.MaxDuration = 0 }},
		{"no bearings", func(s *Settings) { s.AvailableBearings = nil }},
		{"zero yaw threshold", func(s *Settings) { s.YawThreshold = 0 }},
		{"negative tolerance", func(s *Settings) { s.PitchThresholdTolerance = -1 }},
		{"tolerance above threshold", func(s *Settings) { s.YawThresholdTolerance = 20 }},
		{"too-fast check without transit band", func(s *Settings) {
			s.RejectMovedTooFast = true
			s.PitchThresholdTolerance = 8
		}},
		{"zero aspect ratio", func(s *Settings) { s.ExpectedFaceAspectRatio = 0 }},
		{"zero width fraction", func(s *Settings) { s.ExpectedFaceWidthFraction = 0 }},
		{"inner margin too large", func(s *Settings) { s.FixedInnerMargin = 0.5 }},
		{"negative outer margin", func(s *Settings) { s.FixedOuterMargin = -0.1 }},
		{"zero buffer", func(s *Settings) { s.BufferDuration = 0 }},
		{"zero smoothing", func(s *Settings) { s.SmoothingBufferSize = 0 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := DefaultSettings()
			tc.mutate(&s)
			assert.ErrorIs(t, s.Validate(), ErrInvalidSettings)
		})
	}

	s := ActiveLivenessSettings()
	s.RejectMovedTooFast = true
	assert.NoError(t, s.Validate())
}
