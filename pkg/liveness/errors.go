// Package liveness provides session plugins that veto captures of faces which
// are not live: photos, screens and masks.
package liveness

import (
	"errors"
	"fmt"
)

// ErrLivenessCheckFailed is the parent of every PassiveLivenessError
var ErrLivenessCheckFailed = errors.New("liveness: passive liveness check failed")

// Reasons reported by the plugins
const (
	ReasonTooClose         = "Face is close to the camera"
	ReasonTooFar           = "Face is too far from the camera"
	ReasonFlatTopography   = "Face doesn't match expected topography"
	ReasonSpoofRatio       = "Too many frames look like a spoof"
	ReasonSpoofConsecutive = "Too many consecutive frames look like a spoof"
)

// PassiveLivenessError is returned when a plugin decides the face isn't live
type PassiveLivenessError struct {
	Reason string

	// SerialNumber is the frame that failed, zero for checks over the whole session
	SerialNumber uint64
}

func (e *PassiveLivenessError) Error() string {
	if e.SerialNumber > 0 {
		return fmt.Sprintf("liveness: passive liveness check failed: %s (frame %d)", e.Reason, e.SerialNumber)
	}
	return fmt.Sprintf("liveness: passive liveness check failed: %s", e.Reason)
}

// Unwrap lets errors.Is match ErrLivenessCheckFailed
func (e *PassiveLivenessError) Unwrap() error {
	return ErrLivenessCheckFailed
}
