package tracking

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-facecapture/internal/log"
	"github.com/teslashibe/go-facecapture/pkg/face"
	"github.com/teslashibe/go-facecapture/pkg/tracking/detection"
)

const frameInterval = 50 * time.Millisecond

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// harness feeds 480x640 frames to a tracker on a fake clock, 20 fps unless
// interval is changed
type harness struct {
	t        *testing.T
	clock    *testClock
	start    time.Time
	tracker  *Tracker
	mock     *detection.Mock
	serial   uint64
	interval time.Duration

	mu    sync.Mutex
	angle face.EulerAngle
	gone  bool
}

func newHarness(t *testing.T, s Settings, opts ...Option) *harness {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h := &harness{t: t, clock: &testClock{now: start}, start: start, interval: frameInterval}
	h.mock = detection.NewMock(func(img face.Image) *face.Face {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.gone {
			return nil
		}
		f := detection.CentredFace(img, h.angle)
		return &f
	})

	base := []Option{
		WithClock(h.clock.Now),
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithLogger(log.Discard()),
	}
	tr, err := NewTracker(h.mock, s, append(base, opts...)...)
	require.NoError(t, err)
	h.tracker = tr
	return h
}

func (h *harness) setAngle(a face.EulerAngle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.angle = a
}

func (h *harness) setGone(gone bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gone = gone
}

func (h *harness) frame() (Result, error) {
	in := Input{
		SerialNumber: h.serial,
		Time:         h.clock.Now().Sub(h.start),
		Image:        face.Image{Width: 480, Height: 640},
	}
	r, err := h.tracker.TrackFace(context.Background(), in)
	h.serial++
	h.clock.Advance(h.interval)
	return r, err
}

func (h *harness) mustFrame() Result {
	h.t.Helper()
	r, err := h.frame()
	require.NoError(h.t, err)
	return r
}

func TestNewTracker_Validation(t *testing.T) {
	_, err := NewTracker(nil, DefaultSettings())
	assert.ErrorIs(t, err, ErrNoDetector)

	s := DefaultSettings()
	s.FaceCaptureCount = 0
	_, err = NewTracker(detection.NewMock(func(face.Image) *face.Face { return nil }), s)
	assert.ErrorIs(t, err, ErrInvalidSettings)
}

func TestTrackFace_NoFaceIsStarted(t *testing.T) {
	h := newHarness(t, DefaultSettings())
	h.setGone(true)

	for i := 0; i < 20; i++ {
		r := h.mustFrame()
		assert.Equal(t, StateStarted, r.State)
		require.NotNil(t, r.Started)
		assert.Equal(t, face.Straight, r.RequestedBearing())
	}
	assert.Equal(t, 20, h.mock.Calls())
}

func TestTrackFace_StraightCapture(t *testing.T) {
	h := newHarness(t, DefaultSettings())

	// The buffer needs a full window before the face counts as fixed
	for i := 0; i < 10; i++ {
		r := h.mustFrame()
		require.Equal(t, StateFaceFound, r.State, "frame %d", i)
	}

	r := h.mustFrame()
	require.Equal(t, StateFaceFixed, r.State)

	r = h.mustFrame()
	require.Equal(t, StateFaceCaptured, r.State)
	sn, ok := r.SerialNumber()
	require.True(t, ok)
	assert.Equal(t, uint64(11), sn)

	capture, ok := r.Capture()
	require.True(t, ok)
	assert.Equal(t, face.Straight, capture.Bearing)
	assert.Equal(t, 480, capture.Image.Width)

	snap := h.tracker.Snapshot()
	assert.Equal(t, 1, snap.Captures)
	assert.Equal(t, 0, snap.BufferedFaces)
	assert.NotEqual(t, face.Straight, snap.RequestedBearing)
	require.NotNil(t, snap.PreviousBearing)
	assert.Equal(t, face.Straight, *snap.PreviousBearing)
	require.NotNil(t, snap.LastCaptureAt)
}

func TestTrackFace_LowFrameRateCaptures(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
	}{
		{"8 fps", 125 * time.Millisecond},
		{"4 fps", 250 * time.Millisecond},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := DefaultSettings()
			h := newHarness(t, s)
			h.interval = tc.interval

			var r Result
			for r.State != StateFaceCaptured {
				r = h.mustFrame()
				require.Less(t, h.serial, uint64(100), "no capture at %s", tc.name)
			}
			sn, _ := r.SerialNumber()
			assert.Equal(t, uint64(s.FaceCaptureFaceCount-1), sn, "captures once enough consecutive frames are aligned")
		})
	}
}

func TestTrackFace_MisalignedAfterBearingChange(t *testing.T) {
	h := newHarness(t, DefaultSettings())

	var r Result
	for r.State != StateFaceCaptured {
		r = h.mustFrame()
	}

	// Still looking straight while asked to turn
	for i := 0; i < 10; i++ {
		r = h.mustFrame()
		require.Equal(t, StateFaceFixed, r.State, "frame after capture %d", i)
	}
	r = h.mustFrame()
	assert.Equal(t, StateFaceMisaligned, r.State)
}

func TestTrackFace_PausesBetweenCaptures(t *testing.T) {
	s := DefaultSettings()
	s.FaceCaptureCount = 2
	s.AvailableBearings = []face.Bearing{face.Straight}
	h := newHarness(t, s)

	var r Result
	for r.State != StateFaceCaptured {
		r = h.mustFrame()
	}
	firstCapture, _ := r.Time()

	var paused int
	for {
		r = h.mustFrame()
		if r.State == StateFaceCaptured {
			break
		}
		if r.State == StatePaused {
			paused++
			require.NotNil(t, r.Started)
		}
		require.Less(t, h.serial, uint64(200), "second capture never happened")
	}

	secondCapture, _ := r.Time()
	assert.Positive(t, paused)
	assert.GreaterOrEqual(t, secondCapture-firstCapture, s.PauseDuration)
	assert.Equal(t, face.Straight, r.RequestedBearing())
	assert.Equal(t, 2, h.tracker.Snapshot().Captures)
}

func TestTrackFace_FaceLost(t *testing.T) {
	s := DefaultSettings()
	s.FaceCaptureFaceCount = 100
	h := newHarness(t, s)

	var r Result
	for r.State != StateFaceFixed {
		r = h.mustFrame()
	}

	h.setGone(true)
	var err error
	for i := 0; i < 20 && err == nil; i++ {
		_, err = h.frame()
	}
	require.Error(t, err)
	assert.True(t, IsFaceLost(err))
	assert.ErrorIs(t, err, ErrActiveLiveness)

	var ale *ActiveLivenessError
	require.ErrorAs(t, err, &ale)
	assert.Equal(t, face.Straight, ale.Bearing)
}

func TestTrackFace_MovedOpposite(t *testing.T) {
	s := DefaultSettings()
	s.FaceCaptureCount = 2
	s.AvailableBearings = []face.Bearing{face.Straight, face.Left}
	h := newHarness(t, s)

	var r Result
	for r.State != StateFaceCaptured {
		r = h.mustFrame()
	}
	require.Equal(t, face.Left, h.tracker.RequestedBearing())

	h.setAngle(face.EulerAngle{Yaw: 25})
	_, err := h.frame()
	require.Error(t, err)
	assert.True(t, IsMovedOpposite(err))
	assert.False(t, IsFaceLost(err))
}

func TestTrackFace_TurnTowardsRequestedBearing(t *testing.T) {
	s := DefaultSettings()
	s.FaceCaptureCount = 2
	s.AvailableBearings = []face.Bearing{face.Straight, face.Left}
	h := newHarness(t, s)

	var r Result
	for r.State != StateFaceCaptured {
		r = h.mustFrame()
	}

	h.setAngle(face.EulerAngle{Yaw: -20})
	for {
		r = h.mustFrame()
		if r.State == StateFaceCaptured {
			break
		}
		require.Less(t, h.serial, uint64(200), "left capture never happened")
	}
	capture, ok := r.Capture()
	require.True(t, ok)
	assert.Equal(t, face.Left, capture.Bearing)
	assert.Equal(t, face.Straight, h.tracker.RequestedBearing())
}

func TestTrackFace_MovedTooFast(t *testing.T) {
	s := DefaultSettings()
	s.FaceCaptureCount = 2
	s.AvailableBearings = []face.Bearing{face.Straight, face.Left}
	s.RejectMovedTooFast = true
	h := newHarness(t, s)

	var r Result
	for r.State != StateFaceCaptured {
		r = h.mustFrame()
	}
	require.Equal(t, face.Left, h.tracker.RequestedBearing())

	h.setAngle(h.tracker.Evaluation().AngleForBearing(face.Left))
	_, err := h.frame()
	require.Error(t, err)
	assert.True(t, IsMovedTooFast(err))
	assert.ErrorIs(t, err, ErrActiveLiveness)
}

func TestTrackFace_TurnThroughBearings(t *testing.T) {
	s := DefaultSettings()
	s.FaceCaptureCount = 2
	s.AvailableBearings = []face.Bearing{face.Straight, face.Left}
	s.RejectMovedTooFast = true
	h := newHarness(t, s)

	var r Result
	for r.State != StateFaceCaptured {
		r = h.mustFrame()
	}

	h.setAngle(face.EulerAngle{Yaw: -8})
	for i := 0; i < 3; i++ {
		h.mustFrame()
	}
	h.setAngle(face.EulerAngle{Yaw: -20})
	for {
		r = h.mustFrame()
		if r.State == StateFaceCaptured {
			break
		}
		require.Less(t, h.serial, uint64(200), "left capture never happened")
	}
	capture, ok := r.Capture()
	require.True(t, ok)
	assert.Equal(t, face.Left, capture.Bearing)
}

func TestTrackFace_AccessorsDuringDetect(t *testing.T) {
	h := newHarness(t, DefaultSettings())
	entered := make(chan struct{})
	release := make(chan struct{})
	h.mock.SetDetectFunc(func(context.Context, face.Image, int) ([]face.Face, error) {
		close(entered)
		<-release
		return nil, nil
	})

	done := make(chan error, 1)
	go func() {
		_, err := h.frame()
		done <- err
	}()
	<-entered

	got := make(chan face.Bearing, 1)
	go func() {
		_ = h.tracker.Snapshot()
		got <- h.tracker.RequestedBearing()
	}()
	select {
	case b := <-got:
		assert.Equal(t, face.Straight, b)
	case <-time.After(time.Second):
		t.Error("tracker accessors blocked while the detector was running")
	}

	close(release)
	require.NoError(t, <-done)
}

func TestTrackFace_TransformerDeclines(t *testing.T) {
	var calls int
	decline := func(_ context.Context, r Result) (Result, error) {
		calls++
		return r.WithState(StateFaceAligned)
	}
	h := newHarness(t, DefaultSettings(), WithTransformers(decline))

	for i := 0; i < 30; i++ {
		r := h.mustFrame()
		assert.NotEqual(t, StateFaceCaptured, r.State)
	}
	assert.Positive(t, calls)
	assert.Equal(t, 0, h.tracker.Snapshot().Captures)
	assert.Equal(t, face.Straight, h.tracker.RequestedBearing())
}

func TestTrackFace_TransformerError(t *testing.T) {
	boom := errors.New("boom")
	fail := func(context.Context, Result) (Result, error) { return Result{}, boom }
	h := newHarness(t, DefaultSettings(), WithTransformers(fail))

	var err error
	for i := 0; i < 30 && err == nil; i++ {
		_, err = h.frame()
	}
	assert.ErrorIs(t, err, boom)
}

func TestTrackFace_DetectorError(t *testing.T) {
	h := newHarness(t, DefaultSettings())
	boom := errors.New("model crashed")
	h.mock.SetDetectFunc(func(context.Context, face.Image, int) ([]face.Face, error) {
		return nil, boom
	})

	_, err := h.frame()
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "frame 0")
}

func TestTracker_Reset(t *testing.T) {
	h := newHarness(t, DefaultSettings())
	var r Result
	for r.State != StateFaceCaptured {
		r = h.mustFrame()
	}

	h.tracker.Reset()

	snap := h.tracker.Snapshot()
	assert.Equal(t, face.Straight, snap.RequestedBearing)
	assert.Nil(t, snap.PreviousBearing)
	assert.Equal(t, 0, snap.Captures)
	assert.False(t, snap.HasFaceBeenFixed)
	assert.Equal(t, StateCreated, snap.LastState)
}
