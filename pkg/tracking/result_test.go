package tracking

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-facecapture/pkg/face"
)

func sampleTracked(s State) Result {
	in := Input{
		SerialNumber: 7,
		Time:         1500 * time.Millisecond,
		Image:        face.Image{Width: 480, Height: 640, JPEG: []byte{0xff, 0xd8}},
	}
	return Tracked(s, TrackedFaceProperties{
		Input:              in,
		RequestedBearing:   face.Left,
		ExpectedFaceBounds: face.Rect{X: 84, Y: 125, Width: 312, Height: 390},
		Face:               face.Face{Bounds: face.Rect{X: 0, Y: 0, Width: 80, Height: 100}, Quality: 9},
		SmoothedFace:       face.Face{Bounds: face.Rect{X: 0, Y: 0, Width: 80, Height: 100}, Quality: 8},
	})
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "faceCaptured", StateFaceCaptured.String())
	assert.Equal(t, "State(42)", State(42).String())
	assert.True(t, StateFaceMisaligned.HasFace())
	assert.False(t, StatePaused.HasFace())
}

func TestCreated(t *testing.T) {
	r := Created(face.Right)

	assert.Equal(t, face.Right, r.RequestedBearing())
	_, ok := r.SerialNumber()
	assert.False(t, ok)
	_, ok = r.ExpectedFaceBounds()
	assert.False(t, ok)
	assert.Equal(t, "created(right)", r.String())
}

func TestTracked_PanicsWithoutFaceState(t *testing.T) {
	assert.Panics(t, func() { Tracked(StateStarted, TrackedFaceProperties{}) })
}

func TestResult_WithState(t *testing.T) {
	r := sampleTracked(StateFaceAligned)

	paused, err := r.WithState(StatePaused)
	require.NoError(t, err)
	require.NotNil(t, paused.Started)
	assert.Nil(t, paused.Tracked)
	assert.Equal(t, face.Left, paused.RequestedBearing())
	sn, _ := paused.SerialNumber()
	assert.Equal(t, uint64(7), sn)

	captured, err := r.WithState(StateFaceCaptured)
	require.NoError(t, err)
	assert.Equal(t, StateFaceCaptured, captured.State)
	assert.Equal(t, StateFaceAligned, r.State, "receiver must be untouched")

	_, err = paused.WithState(StateFaceFixed)
	assert.ErrorIs(t, err, ErrInvalidTrackingResult)

	_, err = Created(face.Straight).WithState(StateStarted)
	assert.ErrorIs(t, err, ErrInvalidTrackingResult)

	created, err := r.WithState(StateCreated)
	require.NoError(t, err)
	assert.Equal(t, face.Left, created.RequestedBearing())
	_, ok := created.Input()
	assert.False(t, ok)
}

func TestResult_Capture(t *testing.T) {
	_, ok := sampleTracked(StateFaceAligned).Capture()
	assert.False(t, ok)

	c, ok := sampleTracked(StateFaceCaptured).Capture()
	require.True(t, ok)
	assert.Equal(t, face.Left, c.Bearing)
	assert.InDelta(t, 9, c.Face.Quality, 1e-9)
	assert.Equal(t, []byte{0xff, 0xd8}, c.Image.JPEG)
}

func TestResult_ScaledToFitViewSize(t *testing.T) {
	r := sampleTracked(StateFaceFixed)
	view := face.Size{Width: 240, Height: 320}

	scaled := r.ScaledToFitViewSize(view, false)
	want := face.Rect{X: 42, Y: 62.5, Width: 156, Height: 195}
	approx := cmpopts.EquateApprox(0, 1e-9)
	if diff := cmp.Diff(want, scaled.Tracked.ExpectedFaceBounds, approx); diff != "" {
		t.Errorf("expected bounds mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(face.Rect{X: 0, Y: 0, Width: 40, Height: 50}, scaled.Tracked.Face.Bounds, approx); diff != "" {
		t.Errorf("face bounds mismatch (-want +got):\n%s", diff)
	}

	mirrored := r.ScaledToFitViewSize(view, true)
	if diff := cmp.Diff(face.Rect{X: 200, Y: 0, Width: 40, Height: 50}, mirrored.Tracked.Face.Bounds, approx); diff != "" {
		t.Errorf("mirrored face bounds mismatch (-want +got):\n%s", diff)
	}
	assert.InDelta(t, 42, mirrored.Tracked.ExpectedFaceBounds.X, 1e-9)

	// Original geometry is not modified
	assert.InDelta(t, 80, r.Tracked.Face.Bounds.Width, 1e-9)
}

func TestResult_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(sampleTracked(StateFaceFixed))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, "faceFixed", got["state"])
	assert.Equal(t, "left", got["requestedBearing"])
	assert.InDelta(t, 7, got["serialNumber"], 1e-9)
	assert.InDelta(t, 1.5, got["time"], 1e-9)
	assert.Contains(t, got, "face")
	assert.Contains(t, got, "smoothedFace")
	assert.NotContains(t, string(data), "jpeg")

	data, err = json.Marshal(Created(face.Up))
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"created","requestedBearing":"up"}`, string(data))
}
