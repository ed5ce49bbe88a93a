package tracking

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/teslashibe/go-facecapture/pkg/face"
)

// Input is one camera frame submitted to a session
type Input struct {
	SerialNumber uint64        // Monotonic per session
	Time         time.Duration // Elapsed since the session started
	Image        face.Image
	ViewSize     face.Size // Optional size of the view showing the frame
}

// State is the tag of a Result
type State int

const (
	StateCreated State = iota
	StateStarted
	StatePaused
	StateFaceFound
	StateFaceFixed
	StateFaceAligned
	StateFaceMisaligned
	StateFaceCaptured
)

var stateNames = [...]string{
	StateCreated:        "created",
	StateStarted:        "started",
	StatePaused:         "paused",
	StateFaceFound:      "faceFound",
	StateFaceFixed:      "faceFixed",
	StateFaceAligned:    "faceAligned",
	StateFaceMisaligned: "faceMisaligned",
	StateFaceCaptured:   "faceCaptured",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText implements encoding.TextMarshaler
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// HasFace reports whether results in this state carry face properties
func (s State) HasFace() bool {
	switch s {
	case StateFaceFound, StateFaceFixed, StateFaceAligned, StateFaceMisaligned, StateFaceCaptured:
		return true
	}
	return false
}

// StartedProperties is the payload of started and paused results
type StartedProperties struct {
	Input              Input
	RequestedBearing   face.Bearing
	ExpectedFaceBounds face.Rect
}

// TrackedFaceProperties is the payload of every state that has a face
type TrackedFaceProperties struct {
	Input              Input
	RequestedBearing   face.Bearing
	ExpectedFaceBounds face.Rect
	Face               face.Face
	SmoothedFace       face.Face
}

// Result is what the tracker decided for one frame.
// Exactly one payload is set, depending on State:
// created carries only a bearing, started and paused carry Started,
// all other states carry Tracked.
type Result struct {
	State   State
	Started *StartedProperties
	Tracked *TrackedFaceProperties

	bearing face.Bearing
}

// Created is the result published before the first frame
func Created(b face.Bearing) Result {
	return Result{State: StateCreated, bearing: b}
}

// Started builds a started result
func Started(p StartedProperties) Result {
	return Result{State: StateStarted, Started: &p}
}

// Paused builds a paused result
func Paused(p StartedProperties) Result {
	return Result{State: StatePaused, Started: &p}
}

// Tracked builds a result with a face payload. s must be a face state.
func Tracked(s State, p TrackedFaceProperties) Result {
	if !s.HasFace() {
		panic(fmt.Sprintf("tracking: state %s has no face payload", s))
	}
	return Result{State: s, Tracked: &p}
}

// WithState returns a copy with the tag replaced, keeping the payload.
// Fails when the new tag needs a payload the result doesn't have.
func (r Result) WithState(s State) (Result, error) {
	out := r
	out.State = s
	switch {
	case s == StateCreated:
		out.bearing = r.RequestedBearing()
		out.Started, out.Tracked = nil, nil
	case s.HasFace():
		if r.Tracked == nil {
			return r, fmt.Errorf("%w: %s needs a face", ErrInvalidTrackingResult, s)
		}
		out.Started = nil
	default:
		if r.Started == nil && r.Tracked == nil {
			return r, fmt.Errorf("%w: %s needs an input", ErrInvalidTrackingResult, s)
		}
		if r.Started == nil {
			t := r.Tracked
			out.Started = &StartedProperties{Input: t.Input, RequestedBearing: t.RequestedBearing, ExpectedFaceBounds: t.ExpectedFaceBounds}
		}
		out.Tracked = nil
	}
	return out, nil
}

// Input returns the frame the result was computed from
func (r Result) Input() (Input, bool) {
	switch {
	case r.Tracked != nil:
		return r.Tracked.Input, true
	case r.Started != nil:
		return r.Started.Input, true
	}
	return Input{}, false
}

// SerialNumber returns the frame serial number, absent for created results
func (r Result) SerialNumber() (uint64, bool) {
	in, ok := r.Input()
	return in.SerialNumber, ok
}

// Time returns the frame time, absent for created results
func (r Result) Time() (time.Duration, bool) {
	in, ok := r.Input()
	return in.Time, ok
}

// RequestedBearing returns the bearing the user was asked to assume
func (r Result) RequestedBearing() face.Bearing {
	switch {
	case r.Tracked != nil:
		return r.Tracked.RequestedBearing
	case r.Started != nil:
		return r.Started.RequestedBearing
	}
	return r.bearing
}

// ExpectedFaceBounds returns the oval target in frame coordinates
func (r Result) ExpectedFaceBounds() (face.Rect, bool) {
	switch {
	case r.Tracked != nil:
		return r.Tracked.ExpectedFaceBounds, true
	case r.Started != nil:
		return r.Started.ExpectedFaceBounds, true
	}
	return face.Rect{}, false
}

// Face returns the raw detection of the frame
func (r Result) Face() (face.Face, bool) {
	if r.Tracked == nil {
		return face.Face{}, false
	}
	return r.Tracked.Face, true
}

// SmoothedFace returns the temporal mean of recent detections
func (r Result) SmoothedFace() (face.Face, bool) {
	if r.Tracked == nil {
		return face.Face{}, false
	}
	return r.Tracked.SmoothedFace, true
}

// Capture returns the captured face of a faceCaptured result
func (r Result) Capture() (CapturedFace, bool) {
	if r.State != StateFaceCaptured || r.Tracked == nil {
		return CapturedFace{}, false
	}
	return CapturedFace{
		Image:   r.Tracked.Input.Image,
		Face:    r.Tracked.Face,
		Bearing: r.Tracked.RequestedBearing,
	}, true
}

// ScaledToFitViewSize maps the result geometry from frame coordinates into a view
// of the given size, scaled by view width over frame width. Face bounds are grown
// to the aspect ratio of the expected bounds so they can be drawn as the same oval.
func (r Result) ScaledToFitViewSize(view face.Size, mirrored bool) Result {
	scale := 1.0
	if in, ok := r.Input(); ok && in.Image.Width > 0 {
		scale = view.Width / float64(in.Image.Width)
	}
	rect := func(b face.Rect) face.Rect {
		b = b.Scaled(scale, scale)
		if mirrored {
			b = b.Mirrored(view.Width)
		}
		return b
	}
	fc := func(f face.Face, ratio float64) face.Face {
		f = f.WithBoundsSetToAspectRatio(ratio).Scaled(scale, scale)
		if mirrored {
			f = f.Mirrored(view.Width)
		}
		return f
	}

	out := r
	switch {
	case r.Tracked != nil:
		p := *r.Tracked
		ratio := p.ExpectedFaceBounds.Size().AspectRatio()
		if ratio == 0 {
			ratio = 1
		}
		p.ExpectedFaceBounds = rect(p.ExpectedFaceBounds)
		p.Face = fc(p.Face, ratio)
		p.SmoothedFace = fc(p.SmoothedFace, ratio)
		out.Tracked = &p
	case r.Started != nil:
		p := *r.Started
		p.ExpectedFaceBounds = rect(p.ExpectedFaceBounds)
		out.Started = &p
	}
	return out
}

func (r Result) String() string {
	if sn, ok := r.SerialNumber(); ok {
		return fmt.Sprintf("%s(frame %d, %s)", r.State, sn, r.RequestedBearing())
	}
	return fmt.Sprintf("%s(%s)", r.State, r.RequestedBearing())
}

type resultJSON struct {
	State              State        `json:"state"`
	RequestedBearing   face.Bearing `json:"requestedBearing"`
	SerialNumber       *uint64      `json:"serialNumber,omitempty"`
	TimeSeconds        *float64     `json:"time,omitempty"`
	ImageSize          *face.Size   `json:"imageSize,omitempty"`
	ExpectedFaceBounds *face.Rect   `json:"expectedFaceBounds,omitempty"`
	Face               *face.Face   `json:"face,omitempty"`
	SmoothedFace       *face.Face   `json:"smoothedFace,omitempty"`
}

// MarshalJSON encodes the result for observers. Image bytes are never included.
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{State: r.State, RequestedBearing: r.RequestedBearing()}
	if in, ok := r.Input(); ok {
		sn := in.SerialNumber
		secs := in.Time.Seconds()
		size := in.Image.Size()
		out.SerialNumber = &sn
		out.TimeSeconds = &secs
		out.ImageSize = &size
	}
	if b, ok := r.ExpectedFaceBounds(); ok {
		out.ExpectedFaceBounds = &b
	}
	if r.Tracked != nil {
		f := r.Tracked.Face
		s := r.Tracked.SmoothedFace
		out.Face = &f
		out.SmoothedFace = &s
	}
	return json.Marshal(out)
}
