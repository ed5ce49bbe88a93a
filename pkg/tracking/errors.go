package tracking

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-facecapture/pkg/face"
)

// Sentinel errors for common error conditions.
var (
	// ErrInvalidSettings is returned when Settings.Validate fails.
	ErrInvalidSettings = errors.New("tracking: invalid settings")

	// ErrNoDetector is returned when a tracker is built without a face detector.
	ErrNoDetector = errors.New("tracking: face detector required")

	// ErrInvalidTrackingResult is returned when a result lacks the payload an operation needs.
	ErrInvalidTrackingResult = errors.New("tracking: invalid face tracking result")

	// ErrActiveLiveness is the parent of every ActiveLivenessError.
	ErrActiveLiveness = errors.New("tracking: active liveness check failed")
)

// ActiveLivenessReason says why the user's head movement was rejected
type ActiveLivenessReason int

const (
	// FaceLost means the face disappeared after it had been fixed
	FaceLost ActiveLivenessReason = iota
	// FaceMovedOpposite means the head turned away from the requested bearing
	FaceMovedOpposite
	// FaceMovedTooFast means the head reached the requested bearing without
	// passing between the two targets
	FaceMovedTooFast
)

func (r ActiveLivenessReason) String() string {
	switch r {
	case FaceLost:
		return "Face lost"
	case FaceMovedOpposite:
		return "Face moved in opposite direction"
	case FaceMovedTooFast:
		return "Face moved too fast"
	default:
		return fmt.Sprintf("ActiveLivenessReason(%d)", int(r))
	}
}

// ActiveLivenessError ends a session when the head movement is implausible.
type ActiveLivenessError struct {
	// Reason is what went wrong.
	Reason ActiveLivenessReason

	// Bearing is the bearing requested when it happened.
	Bearing face.Bearing
}

// Error implements the error interface.
func (e *ActiveLivenessError) Error() string {
	return fmt.Sprintf("tracking: active liveness check failed: %s (requested %s)", e.Reason, e.Bearing)
}

// Unwrap lets errors.Is match ErrActiveLiveness.
func (e *ActiveLivenessError) Unwrap() error {
	return ErrActiveLiveness
}

// IsFaceLost reports whether err is an ActiveLivenessError with reason FaceLost.
func IsFaceLost(err error) bool {
	var ale *ActiveLivenessError
	return errors.As(err, &ale) && ale.Reason == FaceLost
}

// IsMovedOpposite reports whether err is an ActiveLivenessError with reason FaceMovedOpposite.
func IsMovedOpposite(err error) bool {
	var ale *ActiveLivenessError
	return errors.As(err, &ale) && ale.Reason == FaceMovedOpposite
}

// IsMovedTooFast reports whether err is an ActiveLivenessError with reason FaceMovedTooFast.
func IsMovedTooFast(err error) bool {
	var ale *ActiveLivenessError
	return errors.As(err, &ale) && ale.Reason == FaceMovedTooFast
}
