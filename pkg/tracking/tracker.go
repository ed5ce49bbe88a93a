package tracking

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/teslashibe/go-facecapture/internal/log"
	"github.com/teslashibe/go-facecapture/pkg/face"
	"github.com/teslashibe/go-facecapture/pkg/timebuffer"
	"github.com/teslashibe/go-facecapture/pkg/tracking/detection"
)

// Tracker is the per-session face tracking state machine.
// TrackFace is meant to be called from one goroutine; the snapshot accessors
// are safe to call concurrently.
type Tracker struct {
	settings     Settings
	detector     detection.Detector
	eval         AngleBearingEvaluation
	buffer       *timebuffer.TimeConstrained[alignedFace]
	transformers []ResultTransformer
	rand         *rand.Rand
	now          func() time.Time
	logger       *slog.Logger

	mu               sync.RWMutex
	requestedBearing face.Bearing
	previousBearing  *face.Bearing
	hasFaceBeenFixed bool
	alignTime        time.Time
	angleHistory     []face.EulerAngle
	sawTransit       bool // A raw angle between the previous and requested bearing since the switch
	alignedStreak    int  // Consecutive frames whose newest entry is aligned
	captures         int
	lastState        State
}

// Option configures a Tracker
type Option func(*Tracker)

// WithTransformers registers result transformers, applied in order
func WithTransformers(ts ...ResultTransformer) Option {
	return func(t *Tracker) {
		t.transformers = append(t.transformers, ts...)
	}
}

// WithRand sets the random source used to pick the next bearing
func WithRand(r *rand.Rand) Option {
	return func(t *Tracker) {
		t.rand = r
	}
}

// WithClock overrides the wall clock used for the settle window and pauses
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = l
	}
}

// NewTracker creates a tracker and resets it for a new session
func NewTracker(detector detection.Detector, settings Settings, opts ...Option) (*Tracker, error) {
	if detector == nil {
		return nil, ErrNoDetector
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	t := &Tracker{
		settings: settings,
		detector: detector,
		eval:     NewAngleBearingEvaluation(settings),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.rand == nil {
		t.rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed))
	}
	if t.logger == nil {
		t.logger = log.With("component", "tracking")
	}
	t.buffer = timebuffer.New[alignedFace](settings.BufferDuration, timebuffer.WithClock(func() time.Time { return t.now() }))
	t.Reset()
	return t, nil
}

// Settings returns the session settings
func (t *Tracker) Settings() Settings {
	return t.settings
}

// Evaluation returns the angle/bearing geometry used by the tracker
func (t *Tracker) Evaluation() AngleBearingEvaluation {
	return t.eval
}

// Reset clears all per-session state
func (t *Tracker) Reset() {
	t.buffer.Clear()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.hasFaceBeenFixed = false
	t.angleHistory = nil
	t.sawTransit = false
	t.alignedStreak = 0
	t.alignTime = time.Time{}
	t.requestedBearing = face.Straight
	t.previousBearing = nil
	t.captures = 0
	t.lastState = StateCreated
}

// RequestedBearing returns the bearing the user is currently asked to assume
func (t *Tracker) RequestedBearing() face.Bearing {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.requestedBearing
}

// PreviousBearing returns the bearing requested before the current one
func (t *Tracker) PreviousBearing() (face.Bearing, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.previousBearing == nil {
		return face.Straight, false
	}
	return *t.previousBearing, true
}

// SetRequestedBearing changes the target bearing, remembering the old one
func (t *Tracker) SetRequestedBearing(b face.Bearing) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setRequestedBearingLocked(b)
}

func (t *Tracker) setRequestedBearingLocked(b face.Bearing) {
	old := t.requestedBearing
	if t.previousBearing == nil || *t.previousBearing != old {
		t.previousBearing = &old
	}
	t.requestedBearing = b
	t.angleHistory = nil
	t.sawTransit = false
	t.alignedStreak = 0
}

// SmoothedFace returns the mean of the most recent buffered detections
func (t *Tracker) SmoothedFace() (face.Face, bool) {
	recent := t.buffer.Suffix(t.settings.SmoothingBufferSize)
	faces := make([]face.Face, len(recent))
	for i, a := range recent {
		faces[i] = a.face
	}
	return SmoothFaces(faces)
}

// TrackFace runs detection on one frame and decides the next result.
// Errors end the session: detector failures, a face lost after it was fixed,
// and a head moving away from the requested bearing.
func (t *Tracker) TrackFace(ctx context.Context, in Input) (Result, error) {
	expected := ExpectedFaceBounds(t.settings, in.Image.Size())

	// t.mu is not held while the detector runs
	faces, err := t.detector.Detect(ctx, in.Image, 1)
	if err != nil {
		return Result{}, fmt.Errorf("tracking: detect faces in frame %d: %w", in.SerialNumber, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	requested := t.requestedBearing

	if len(faces) > 0 {
		t.buffer.Append(alignedFace{face: faces[0]})
		smoothed, _ := t.SmoothedFace()
		aligned := t.eval.Matches(smoothed.Angle, requested)
		t.buffer.UpdateLast(func(a *alignedFace) {
			a.isAligned = aligned
			a.isFixed = IsFaceFixed(t.settings, smoothed.Bounds, expected)
		})
		if aligned {
			t.alignedStreak++
		} else {
			t.alignedStreak = 0
		}
		if t.settings.FaceCaptureCount > 1 {
			if err := t.checkBearingTransition(smoothed.Angle, faces[0].Angle); err != nil {
				return Result{}, err
			}
		}
	} else {
		t.angleHistory = nil
		t.alignedStreak = 0
		t.buffer.RemoveFirst()
	}

	started := StartedProperties{Input: in, RequestedBearing: requested, ExpectedFaceBounds: expected}
	tracked := func(s State) Result {
		last, _ := t.buffer.Last()
		smoothed, _ := t.SmoothedFace()
		return Tracked(s, TrackedFaceProperties{
			Input:              in,
			RequestedBearing:   requested,
			ExpectedFaceBounds: expected,
			Face:               last.face,
			SmoothedFace:       smoothed,
		})
	}

	settled := t.buffer.HasRemovedElements() && !t.buffer.IsEmpty()
	var result Result
	switch {
	case !t.hasFaceBeenFixed && settled && t.buffer.AllSatisfy(alignedFace.fixed):
		t.hasFaceBeenFixed = true
		result = tracked(StateFaceFixed)

	case t.hasFaceBeenFixed && settled:
		if !t.buffer.AllSatisfy(alignedFace.aligned) {
			result = tracked(StateFaceMisaligned)
			break
		}
		if !t.alignTime.IsZero() && t.now().Sub(t.alignTime) < t.settings.PauseDuration {
			result = Paused(started)
			break
		}
		if t.alignedStreak < t.settings.FaceCaptureFaceCount {
			result = tracked(StateFaceAligned)
			break
		}
		result, err = t.capture(ctx, tracked(StateFaceCaptured))
		if err != nil {
			return Result{}, err
		}

	case t.hasFaceBeenFixed && t.buffer.IsEmpty():
		return Result{}, &ActiveLivenessError{Reason: FaceLost, Bearing: requested}

	case !t.buffer.IsEmpty():
		if t.hasFaceBeenFixed {
			result = tracked(StateFaceFixed)
		} else {
			result = tracked(StateFaceFound)
		}

	default:
		result = Started(started)
	}

	if result.State != t.lastState {
		t.logger.Debug("tracking state changed",
			"frame", in.SerialNumber,
			"from", t.lastState,
			"to", result.State,
			"bearing", requested,
		)
	}
	t.lastState = result.State
	return result, nil
}

// checkBearingTransition validates every smoothed angle seen since the bearing
// last changed. With RejectMovedTooFast it also fails a raw angle that reaches
// the requested bearing without ever passing between the two targets.
func (t *Tracker) checkBearingTransition(smoothed, raw face.EulerAngle) error {
	t.angleHistory = append(t.angleHistory, smoothed)
	if t.previousBearing == nil || *t.previousBearing == t.requestedBearing {
		return nil
	}
	from, to := *t.previousBearing, t.requestedBearing
	for _, a := range t.angleHistory {
		if !t.eval.IsAngleBetweenBearings(a, from, to) {
			t.logger.Warn("head moved away from requested bearing",
				"from", from, "to", to, "yaw", a.Yaw, "pitch", a.Pitch)
			return &ActiveLivenessError{Reason: FaceMovedOpposite, Bearing: to}
		}
	}

	if !t.settings.RejectMovedTooFast {
		return nil
	}
	if t.eval.IsAngleInTransit(raw, from, to) {
		t.sawTransit = true
	}
	if !t.sawTransit && t.eval.Matches(raw, to) {
		t.logger.Warn("head snapped to requested bearing",
			"from", from, "to", to, "yaw", raw.Yaw, "pitch", raw.Pitch)
		return &ActiveLivenessError{Reason: FaceMovedTooFast, Bearing: to}
	}
	return nil
}

// capture runs the transformers over a capture candidate and, if it survives,
// records the capture and moves on to the next bearing
func (t *Tracker) capture(ctx context.Context, candidate Result) (Result, error) {
	out := candidate
	for _, tr := range t.transformers {
		next, err := tr(ctx, out)
		if err != nil {
			return Result{}, fmt.Errorf("tracking: transform result: %w", err)
		}
		out = next
	}
	if out.State != StateFaceCaptured {
		return candidate.WithState(StateFaceAligned)
	}
	if out.Tracked == nil {
		return Result{}, fmt.Errorf("%w: captured result without a face", ErrInvalidTrackingResult)
	}

	t.alignTime = t.now()
	t.buffer.Clear()
	t.alignedStreak = 0
	t.captures++
	t.logger.Info("face captured",
		"frame", out.Tracked.Input.SerialNumber,
		"bearing", out.Tracked.RequestedBearing,
		"captures", t.captures,
	)

	if len(t.settings.AvailableBearings) > 1 {
		pool := slices.DeleteFunc(slices.Clone(t.settings.AvailableBearings), func(b face.Bearing) bool {
			return b == t.requestedBearing
		})
		if len(pool) > 0 {
			t.setRequestedBearingLocked(pool[t.rand.IntN(len(pool))])
		}
	}
	return out, nil
}
