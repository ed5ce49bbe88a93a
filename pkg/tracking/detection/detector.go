// Package detection provides face detection backends for the tracker
package detection

import (
	"context"
	"errors"

	"github.com/teslashibe/go-facecapture/pkg/face"
)

// Sentinel errors shared by the backends.
var (
	// ErrModelNotFound is returned when a model file is missing.
	ErrModelNotFound = errors.New("detection: model file not found")

	// ErrEmptyImage is returned when a frame has no decodable pixels.
	ErrEmptyImage = errors.New("detection: empty image")

	// ErrInvalidImage is returned when a backend cannot read the frame's encoding.
	ErrInvalidImage = errors.New("detection: invalid image")

	// ErrInvalidCredentials is returned when a cloud backend rejects the caller.
	ErrInvalidCredentials = errors.New("detection: invalid credentials")
)

// Detector is the interface for face detection backends
type Detector interface {
	// Detect finds faces in the frame. Results are sorted by prominence
	// (area times quality), largest first, and hold at most limit faces.
	Detect(ctx context.Context, img face.Image, limit int) ([]face.Face, error)
}

// Config holds detector configuration
type Config struct {
	ModelPath        string  // Path to ONNX model
	ConfidenceThresh float64 // Minimum confidence (default 0.5)
	InputWidth       int     // Model input width
	InputHeight      int     // Model input height
}

// DefaultConfig returns production defaults for YuNet
func DefaultConfig() Config {
	return Config{
		ModelPath:        "models/face_detection_yunet.onnx",
		ConfidenceThresh: 0.5,
		InputWidth:       320,
		InputHeight:      320,
	}
}

// Finalize sorts faces by prominence and trims them to limit.
// A limit of zero or less keeps everything.
func Finalize(faces []face.Face, limit int) []face.Face {
	face.SortByProminence(faces)
	if limit > 0 && len(faces) > limit {
		faces = faces[:limit]
	}
	return faces
}
