package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/teslashibe/go-facecapture/internal/log"
	"github.com/teslashibe/go-facecapture/pkg/tracking"
)

// VideoRecording writes every tracked frame to an MJPG AVI file.
// Each frame's value is the output path.
type VideoRecording struct {
	path   string
	fps    float64
	logger *slog.Logger

	mu     sync.Mutex
	writer *gocv.VideoWriter
	width  int
	height int
	frames int
	err    error
}

var _ Plugin[string] = (*VideoRecording)(nil)

// NewVideoRecording records to path. An empty path picks a new file in the
// temp directory.
func NewVideoRecording(path string, fps float64) *VideoRecording {
	if path == "" {
		path = filepath.Join(os.TempDir(), uuid.NewString()+".avi")
	}
	if fps <= 0 {
		fps = 15
	}
	return &VideoRecording{
		path:   path,
		fps:    fps,
		logger: log.With("component", "recording"),
	}
}

// Path returns the output file
func (v *VideoRecording) Path() string {
	return v.path
}

// Name implements Plugin
func (v *VideoRecording) Name() string {
	return "Video recording"
}

// ProcessResult implements Plugin
func (v *VideoRecording) ProcessResult(_ context.Context, r tracking.Result) (string, error) {
	in, ok := r.Input()
	if !ok || len(in.Image.JPEG) == 0 {
		return v.path, nil
	}

	mat, err := gocv.IMDecode(in.Image.JPEG, gocv.IMReadColor)
	if err != nil {
		return v.path, fmt.Errorf("decode frame %d: %w", in.SerialNumber, err)
	}
	defer mat.Close()
	if mat.Empty() {
		return v.path, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.writer == nil {
		w, err := gocv.VideoWriterFile(v.path, "MJPG", v.fps, mat.Cols(), mat.Rows(), true)
		if err != nil {
			v.err = err
			return v.path, fmt.Errorf("open video writer: %w", err)
		}
		v.writer = w
		v.width, v.height = mat.Cols(), mat.Rows()
		v.logger.Info("recording started", "path", v.path, "width", v.width, "height", v.height)
	}
	if mat.Cols() != v.width || mat.Rows() != v.height {
		v.logger.Debug("skipping frame with different size", "frame", in.SerialNumber)
		return v.path, nil
	}
	if err := v.writer.Write(mat); err != nil {
		return v.path, fmt.Errorf("write frame %d: %w", in.SerialNumber, err)
	}
	v.frames++
	return v.path, nil
}

// FinalCheck implements Plugin. It closes the file.
func (v *VideoRecording) FinalCheck(context.Context, []Result[string]) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.writer == nil {
		return nil
	}
	err := v.writer.Close()
	v.writer = nil
	if err != nil {
		v.err = err
	}
	v.logger.Info("recording finished", "path", v.path, "frames", v.frames)
	return nil
}

// Summary implements Plugin
func (v *VideoRecording) Summary(context.Context, []Result[string]) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch {
	case v.err != nil:
		return fmt.Sprintf("Failed to save video: %v", v.err)
	case v.frames == 0:
		return "Unavailable"
	}
	return v.path
}

// Close releases the writer if the session ended without a final check
func (v *VideoRecording) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.writer == nil {
		return nil
	}
	err := v.writer.Close()
	v.writer = nil
	return err
}
