package detection

import (
	"context"
	"sync"

	"github.com/teslashibe/go-facecapture/pkg/face"
)

// Mock implements Detector for testing.
// DetectFunc decides what each frame returns; if nil no faces are found.
type Mock struct {
	DetectFunc func(ctx context.Context, img face.Image, limit int) ([]face.Face, error)

	mu    sync.Mutex
	calls int
}

// NewMock returns a detector that always reports the face produced by fn
func NewMock(fn func(img face.Image) *face.Face) *Mock {
	return &Mock{
		DetectFunc: func(_ context.Context, img face.Image, _ int) ([]face.Face, error) {
			f := fn(img)
			if f == nil {
				return nil, nil
			}
			return []face.Face{*f}, nil
		},
	}
}

// Detect implements Detector
func (m *Mock) Detect(ctx context.Context, img face.Image, limit int) ([]face.Face, error) {
	m.mu.Lock()
	m.calls++
	fn := m.DetectFunc
	m.mu.Unlock()

	if fn == nil {
		return nil, nil
	}
	faces, err := fn(ctx, img, limit)
	if err != nil {
		return nil, err
	}
	return Finalize(faces, limit), nil
}

// SetDetectFunc swaps the behaviour while a session is running
func (m *Mock) SetDetectFunc(fn func(ctx context.Context, img face.Image, limit int) ([]face.Face, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DetectFunc = fn
}

// Calls returns how many times Detect was invoked
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// CentredFace returns a frontal face in the middle of the frame, sized the way a
// user holding the phone at arm's length would appear: 60% of the frame width
// and 5:4 tall in portrait, 60% of the height and 4:5 wide in landscape.
func CentredFace(img face.Image, angle face.EulerAngle) face.Face {
	w, h := float64(img.Width), float64(img.Height)
	var fw, fh float64
	if w < h {
		fw = w * 0.6
		fh = fw * 1.25
	} else {
		fh = h * 0.6
		fw = fh * 0.8
	}
	bounds := face.Rect{X: w/2 - fw/2, Y: h/2 - fh/2, Width: fw, Height: fh}
	return face.Face{
		Bounds:      bounds,
		Angle:       angle,
		Quality:     10,
		LeftEye:     face.Ptr(face.Point{X: bounds.X + fw*0.3, Y: bounds.Y + fh*0.4}),
		RightEye:    face.Ptr(face.Point{X: bounds.X + fw*0.7, Y: bounds.Y + fh*0.4}),
		NoseTip:     face.Ptr(face.Point{X: bounds.MidX(), Y: bounds.Y + fh*0.6}),
		MouthCentre: face.Ptr(face.Point{X: bounds.MidX(), Y: bounds.Y + fh*0.78}),
	}
}
