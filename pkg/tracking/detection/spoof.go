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

// SpoofDevice is a detected object that can present a fake face: a phone,
// a screen or a printed photo
type SpoofDevice struct {
	Bounds     face.Rect
	Confidence float64
	ClassID    int
	ClassName  string
}

// SpoofConfig holds spoof device detector configuration
type SpoofConfig struct {
	ModelPath        string
	Classes          []string // Class names in model output order
	ConfidenceThresh float32
	NMSThresh        float32
	InputWidth       int
	InputHeight      int
}

// DefaultSpoofConfig returns production defaults for a YOLOv8n model fine tuned
// on presentation attack devices
func DefaultSpoofConfig() SpoofConfig {
	return SpoofConfig{
		ModelPath:        "models/spoof_devices_yolov8n.onnx",
		Classes:          []string{"phone", "tablet", "monitor", "photo"},
		ConfidenceThresh: 0.4,
		NMSThresh:        0.45,
		InputWidth:       640,
		InputHeight:      640,
	}
}

// SpoofDeviceDetector finds presentation attack devices with a YOLO-format model
type SpoofDeviceDetector struct {
	net       gocv.Net
	config    SpoofConfig
	logger    *slog.Logger
	mu        sync.Mutex
	inputSize image.Point
}

// NewSpoofDeviceDetector loads the ONNX model
func NewSpoofDeviceDetector(cfg SpoofConfig) (*SpoofDeviceDetector, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, cfg.ModelPath)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("detection: failed to load spoof model from %s", cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &SpoofDeviceDetector{
		net:       net,
		config:    cfg,
		logger:    log.With("component", "spoof"),
		inputSize: image.Pt(cfg.InputWidth, cfg.InputHeight),
	}, nil
}

// DetectDevices finds spoof devices in the frame
func (d *SpoofDeviceDetector) DetectDevices(ctx context.Context, img face.Image) ([]SpoofDevice, error) {
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

	blob := gocv.BlobFromImage(mat, 1.0/255.0, d.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	// Output shape is [1, 4+classes, candidates]
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("detection: read spoof model output: %w", err)
	}
	sizes := output.Size()
	if len(sizes) != 3 {
		return nil, fmt.Errorf("detection: unexpected spoof model output shape %v", sizes)
	}
	devices := d.parseOutput(data, sizes[1], sizes[2], float32(mat.Cols()), float32(mat.Rows()))

	if len(devices) > 0 {
		d.logger.Debug("spoof devices found", "count", len(devices))
	}
	return devices, nil
}

// parseOutput reads a channel-major YOLOv8 tensor and applies NMS
func (d *SpoofDeviceDetector) parseOutput(data []float32, channels, candidates int, imgW, imgH float32) []SpoofDevice {
	var boxes []image.Rectangle
	var confidences []float32
	var classIDs []int

	for i := 0; i < candidates; i++ {
		maxScore := float32(0)
		maxClassID := 0
		for c := 4; c < channels; c++ {
			if score := data[c*candidates+i]; score > maxScore {
				maxScore = score
				maxClassID = c - 4
			}
		}
		if maxScore < d.config.ConfidenceThresh {
			continue
		}

		cx := data[0*candidates+i]
		cy := data[1*candidates+i]
		w := data[2*candidates+i]
		h := data[3*candidates+i]

		sx := imgW / float32(d.config.InputWidth)
		sy := imgH / float32(d.config.InputHeight)
		boxes = append(boxes, image.Rect(
			int((cx-w/2)*sx), int((cy-h/2)*sy),
			int((cx+w/2)*sx), int((cy+h/2)*sy),
		))
		confidences = append(confidences, maxScore)
		classIDs = append(classIDs, maxClassID)
	}
	if len(boxes) == 0 {
		return nil
	}

	indices := gocv.NMSBoxes(boxes, confidences, d.config.ConfidenceThresh, d.config.NMSThresh)

	devices := make([]SpoofDevice, 0, len(indices))
	for _, idx := range indices {
		box := boxes[idx]
		devices = append(devices, SpoofDevice{
			Bounds: face.Rect{
				X:      float64(box.Min.X),
				Y:      float64(box.Min.Y),
				Width:  float64(box.Dx()),
				Height: float64(box.Dy()),
			},
			Confidence: float64(confidences[idx]),
			ClassID:    classIDs[idx],
			ClassName:  d.className(classIDs[idx]),
		})
	}
	return devices
}

func (d *SpoofDeviceDetector) className(id int) string {
	if id >= 0 && id < len(d.config.Classes) {
		return d.config.Classes[id]
	}
	return fmt.Sprintf("class%d", id)
}

// SpoofScore returns how likely the face in roi is presented on a device:
// the highest device confidence weighted by the share of roi the device covers
func (d *SpoofDeviceDetector) SpoofScore(ctx context.Context, img face.Image, roi face.Rect) (float64, error) {
	devices, err := d.DetectDevices(ctx, img)
	if err != nil {
		return 0, err
	}
	return ScoreDevices(devices, roi), nil
}

// ScoreDevices weights each device's confidence by how much of roi it covers and
// returns the highest
func ScoreDevices(devices []SpoofDevice, roi face.Rect) float64 {
	area := roi.Area()
	if area <= 0 {
		return 0
	}
	var best float64
	for _, dev := range devices {
		score := dev.Confidence * intersectionArea(dev.Bounds, roi) / area
		if score > best {
			best = score
		}
	}
	return best
}

func intersectionArea(a, b face.Rect) float64 {
	w := min(a.MaxX(), b.MaxX()) - max(a.MinX(), b.MinX())
	h := min(a.MaxY(), b.MaxY()) - max(a.MinY(), b.MinY())
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Close releases the model
func (d *SpoofDeviceDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
