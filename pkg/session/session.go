// Package session drives a face capture session: frames are submitted from the
// camera, tracked one at a time, broadcast to observers and plugins, and the
// session ends with a single terminal Result.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-facecapture/internal/log"
	"github.com/teslashibe/go-facecapture/pkg/mailbox"
	"github.com/teslashibe/go-facecapture/pkg/plugin"
	"github.com/teslashibe/go-facecapture/pkg/tracking"
	"github.com/teslashibe/go-facecapture/pkg/tracking/detection"
)

// Sentinel errors for common error conditions.
var (
	// ErrSessionTimedOut is returned when a frame arrives after MaxDuration.
	ErrSessionTimedOut = errors.New("session: timed out")

	// ErrAlreadyStarted is returned by a second call to Start, or by Start on a
	// session that was cancelled first.
	ErrAlreadyStarted = errors.New("session: already started")

	// ErrNotStarted is returned by Wait on a session that was never started.
	ErrNotStarted = errors.New("session: not started")

	errCancelled = errors.New("session: cancelled")
)

// Stats counts frames through the session
type Stats struct {
	Submitted uint64 `json:"submitted"`
	Tracked   uint64 `json:"tracked"`
	Dropped   uint64 `json:"dropped"` // Replaced before the tracker took them
}

// Session is one face capture session
type Session struct {
	id       uuid.UUID
	settings tracking.Settings
	tracker  *tracking.Tracker
	plugins  []plugin.Runner
	logger   *slog.Logger

	input   *mailbox.Slot[tracking.Input]
	replays []*mailbox.Slot[tracking.Result]
	tracked atomic.Uint64

	mu        sync.Mutex
	started   bool
	finished  bool
	cancelled bool
	observers []chan tracking.Result
	result    *Result
	stop      context.CancelCauseFunc
	stopAll   context.CancelFunc

	done     chan struct{}
	finalize sync.Once
}

type options struct {
	plugins      []plugin.Runner
	transformers []tracking.ResultTransformer
	rand         *rand.Rand
	now          func() time.Time
	logger       *slog.Logger
}

// Option configures a Session
type Option func(*options)

// WithPlugins registers plugins. Each gets its own copy of every tracking result.
func WithPlugins(ps ...plugin.Runner) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, ps...)
	}
}

// WithTransformers registers capture transformers, applied in order
func WithTransformers(ts ...tracking.ResultTransformer) Option {
	return func(o *options) {
		o.transformers = append(o.transformers, ts...)
	}
}

// WithRand sets the random source for bearing selection
func WithRand(r *rand.Rand) Option {
	return func(o *options) {
		o.rand = r
	}
}

// WithClock overrides the tracker's wall clock
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// New creates a session. Call Start before submitting frames.
func New(detector detection.Detector, settings tracking.Settings, opts ...Option) (*Session, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	id := uuid.New()
	logger := o.logger
	if logger == nil {
		logger = log.With("component", "session")
	}
	logger = logger.With("session", id.String())

	trackerOpts := []tracking.Option{
		tracking.WithTransformers(o.transformers...),
		tracking.WithLogger(logger),
	}
	if o.rand != nil {
		trackerOpts = append(trackerOpts, tracking.WithRand(o.rand))
	}
	if o.now != nil {
		trackerOpts = append(trackerOpts, tracking.WithClock(o.now))
	}
	tracker, err := tracking.NewTracker(detector, settings, trackerOpts...)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	return &Session{
		id:       id,
		settings: settings,
		tracker:  tracker,
		plugins:  o.plugins,
		logger:   logger,
		input:    mailbox.New[tracking.Input](),
		done:     make(chan struct{}),
	}, nil
}

// ID identifies the session in logs and on the dashboard
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Settings returns the session settings
func (s *Session) Settings() tracking.Settings {
	return s.settings
}

// Tracker exposes the tracker for status snapshots
func (s *Session) Tracker() *tracking.Tracker {
	return s.tracker
}

// Start launches the frame loop and one goroutine per plugin.
// Cancelling ctx cancels the session.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.finished {
		return ErrAlreadyStarted
	}
	s.started = true

	pluginCtx, stopAll := context.WithCancel(ctx)
	loopCtx, stop := context.WithCancelCause(pluginCtx)
	s.stop, s.stopAll = stop, stopAll

	var wg sync.WaitGroup
	metadata := make([]plugin.Metadata, len(s.plugins))
	errs := make([]error, len(s.plugins))
	s.replays = make([]*mailbox.Slot[tracking.Result], len(s.plugins))
	for i, p := range s.plugins {
		slot := mailbox.New[tracking.Result]()
		s.replays[i] = slot
		wg.Add(1)
		go func() {
			defer wg.Done()
			md, err := p.Run(pluginCtx, slot)
			metadata[i], errs[i] = md, err
			if err != nil && pluginCtx.Err() == nil {
				s.logger.Warn("plugin vetoed session", "plugin", p.Name(), "error", err)
				stop(err)
			}
		}()
	}

	s.logger.Info("session started",
		"captures", s.settings.FaceCaptureCount,
		"bearing", s.tracker.RequestedBearing(),
		"plugins", len(s.plugins),
	)

	go func() {
		captures, err := s.run(loopCtx)
		if err != nil && loopCtx.Err() != nil {
			err = context.Cause(loopCtx)
		}
		if ctx.Err() != nil {
			s.mu.Lock()
			s.cancelled = true
			s.mu.Unlock()
		}
		for _, r := range s.replays {
			r.Close()
		}
		wg.Wait()
		s.finish(captures, err, metadata, errs)
	}()
	return nil
}

// run is the frame loop. It returns when enough faces are captured or on the
// first error.
func (s *Session) run(ctx context.Context) ([]tracking.CapturedFace, error) {
	var captures []tracking.CapturedFace
	for {
		in, err := s.input.Take(ctx)
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			return captures, err
		}
		if in.Time > s.settings.MaxDuration {
			return captures, fmt.Errorf("%w after %s (frame %d)", ErrSessionTimedOut, s.settings.MaxDuration, in.SerialNumber)
		}

		r, err := s.tracker.TrackFace(ctx, in)
		if err != nil {
			return captures, err
		}
		s.tracked.Add(1)
		s.broadcast(r)

		if c, ok := r.Capture(); ok {
			captures = append(captures, c)
			if len(captures) >= s.settings.FaceCaptureCount {
				return captures, nil
			}
		}
	}
}

// broadcast sends r to every observer and plugin without blocking
func (s *Session) broadcast(r tracking.Result) {
	for _, slot := range s.replays {
		slot.Put(r)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.observers {
		select {
		case ch <- r:
		default:
		}
	}
}

// finish publishes the terminal result. Only the first call has any effect.
func (s *Session) finish(captures []tracking.CapturedFace, loopErr error, metadata []plugin.Metadata, errs []error) {
	s.finalize.Do(func() {
		s.mu.Lock()
		cancelled := s.cancelled || errors.Is(loopErr, errCancelled)
		s.mu.Unlock()

		var res Result
		switch {
		case cancelled:
			res = Result{Status: StatusCancelled}
		default:
			res = Result{
				Status:        StatusSuccess,
				CapturedFaces: captures,
				Metadata:      make(map[string]plugin.Metadata, len(s.plugins)),
			}
			err := loopErr
			for i, p := range s.plugins {
				if errs[i] != nil {
					if err == nil {
						err = errs[i]
					}
					continue
				}
				res.Metadata[p.Name()] = metadata[i]
			}
			if err != nil {
				res.Status = StatusFailure
				res.Err = err
			}
		}

		s.input.Close()
		s.mu.Lock()
		stopAll := s.stopAll
		s.mu.Unlock()
		if stopAll != nil {
			stopAll()
		}

		s.mu.Lock()
		s.result = &res
		s.finished = true
		for _, ch := range s.observers {
			close(ch)
		}
		s.observers = nil
		s.mu.Unlock()
		close(s.done)

		attrs := []any{"status", res.Status, "captures", len(res.CapturedFaces), "tracked", s.tracked.Load()}
		if res.Err != nil {
			s.logger.Warn("session finished", append(attrs, "error", res.Err)...)
		} else {
			s.logger.Info("session finished", attrs...)
		}
	})
}

// Submit hands a frame to the tracker. It never blocks: a frame the tracker
// hasn't picked up yet is replaced.
func (s *Session) Submit(in tracking.Input) {
	s.input.Put(in)
}

// Cancel ends the session with StatusCancelled unless it already has a result
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.result != nil {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	started := s.started
	stop := s.stop
	s.mu.Unlock()

	if !started {
		s.finish(nil, errCancelled, nil, nil)
		return
	}
	stop(errCancelled)
	s.stopAll()
}

// Subscribe returns a channel of tracking results. The first value is always
// a created result with the requested bearing. Slow readers miss results; the
// channel is closed when the session ends.
func (s *Session) Subscribe(buffer int) <-chan tracking.Result {
	ch := make(chan tracking.Result, max(buffer, 1))
	ch <- tracking.Created(s.tracker.RequestedBearing())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		close(ch)
		return ch
	}
	s.observers = append(s.observers, ch)
	return ch
}

// Done is closed once the result is available
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Result returns the terminal result once the session has ended
func (s *Session) Result() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return Result{}, false
	}
	return *s.result, true
}

// Wait blocks until the session ends or ctx is done
func (s *Session) Wait(ctx context.Context) (Result, error) {
	s.mu.Lock()
	started, finished := s.started, s.finished
	s.mu.Unlock()
	if !started && !finished {
		return Result{}, ErrNotStarted
	}

	select {
	case <-s.done:
		res, _ := s.Result()
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Stats returns the frame counters
func (s *Session) Stats() Stats {
	st := s.input.Stats()
	return Stats{
		Submitted: st.Puts,
		Tracked:   s.tracked.Load(),
		Dropped:   st.Drops,
	}
}
