// Package tracking turns per-frame face detections into capture session states.
// This file defines the geometry constants shared by the defaults.
package tracking

import "time"

const (
	// DefaultExpectedFaceAspectRatio is the width/height of the oval guide (4:5)
	DefaultExpectedFaceAspectRatio = 4.0 / 5.0

	// DefaultFixedOuterMargin grows the expected bounds 30% on each side.
	// A fixed face must stay inside this box.
	DefaultFixedOuterMargin = 0.3

	// DefaultFixedInnerMargin shrinks the expected bounds 40% on each side.
	// A fixed face must cover this box.
	DefaultFixedInnerMargin = 0.4

	// DefaultBufferDuration is how long detections stay in the settle window
	DefaultBufferDuration = 500 * time.Millisecond

	// DefaultSmoothingBufferSize is how many recent detections are averaged
	DefaultSmoothingBufferSize = 3
)
