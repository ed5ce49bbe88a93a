package detection

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-facecapture/internal/log"
	"github.com/teslashibe/go-facecapture/pkg/face"
)

// YuNet output columns
const (
	yunetRightEye   = 4
	yunetLeftEye    = 6
	yunetNose       = 8
	yunetRightMouth = 10
	yunetLeftMouth  = 12
	yunetScore      = 14
)

// YuNetDetector uses OpenCV's FaceDetectorYN for face detection
type YuNetDetector struct {
	detector gocv.FaceDetectorYN
	config   Config
	logger   *slog.Logger
	mu       sync.Mutex // Protects inference
}

var _ Detector = (*YuNetDetector)(nil)

// NewYuNet creates a new YuNet face detector using GoCV's built-in FaceDetectorYN
func NewYuNet(cfg Config) (*YuNetDetector, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, cfg.ModelPath)
	}

	// Input size is updated per image
	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.ModelPath,
		"", // No config file needed for ONNX
		image.Pt(cfg.InputWidth, cfg.InputHeight),
		float32(cfg.ConfidenceThresh),
		0.3,  // NMS threshold
		5000, // Top K
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &YuNetDetector{
		detector: detector,
		config:   cfg,
		logger:   log.With("component", "yunet"),
	}, nil
}

// Detect finds faces in the frame's JPEG
func (d *YuNetDetector) Detect(ctx context.Context, img face.Image, limit int) ([]face.Face, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(img.JPEG) == 0 {
		return nil, ErrEmptyImage
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	mat, err := gocv.IMDecode(img.JPEG, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, ErrEmptyImage
	}

	d.detector.SetInputSize(image.Pt(mat.Cols(), mat.Rows()))

	rows := gocv.NewMat()
	defer rows.Close()
	d.detector.Detect(mat, &rows)

	faces := make([]face.Face, 0, rows.Rows())
	for r := 0; r < rows.Rows(); r++ {
		faces = append(faces, yunetFace(func(c int) float64 { return float64(rows.GetFloatAt(r, c)) }))
	}

	if len(faces) > 0 {
		d.logger.Debug("yunet found faces", "count", len(faces))
	}
	return Finalize(faces, limit), nil
}

// yunetFace converts one YuNet output row (15 columns) to a face:
// 0-3 box in pixels, 4-13 five landmarks as x,y pairs, 14 score.
func yunetFace(col func(int) float64) face.Face {
	pt := func(c int) face.Point { return face.Point{X: col(c), Y: col(c + 1)} }

	rightEye := pt(yunetRightEye)
	leftEye := pt(yunetLeftEye)
	nose := pt(yunetNose)
	rightMouth := pt(yunetRightMouth)
	leftMouth := pt(yunetLeftMouth)
	mouth := face.Point{X: (rightMouth.X + leftMouth.X) / 2, Y: (rightMouth.Y + leftMouth.Y) / 2}

	return face.Face{
		Bounds:      face.Rect{X: col(0), Y: col(1), Width: col(2), Height: col(3)},
		Angle:       EstimatePose(leftEye, rightEye, nose, mouth),
		Quality:     col(yunetScore),
		Landmarks:   []face.Point{rightEye, leftEye, nose, rightMouth, leftMouth},
		LeftEye:     face.Ptr(leftEye),
		RightEye:    face.Ptr(rightEye),
		NoseTip:     face.Ptr(nose),
		MouthCentre: face.Ptr(mouth),
	}
}

// Close releases the detector resources
func (d *YuNetDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detector.Close()
	return nil
}
