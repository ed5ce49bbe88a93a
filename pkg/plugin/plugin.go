// Package plugin runs side-channel analyzers over the tracking results of a
// capture session.
//
// Each plugin reads its own latest-wins mailbox, so a slow plugin skips
// results instead of holding up the tracker. When the session closes the
// mailbox the plugin runs its final check and produces a summary.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teslashibe/go-facecapture/pkg/mailbox"
	"github.com/teslashibe/go-facecapture/pkg/tracking"
)

// Plugin analyses tracking results and produces one value of type T per frame.
// An error from ProcessResult or FinalCheck fails the session.
type Plugin[T any] interface {
	Name() string
	ProcessResult(ctx context.Context, r tracking.Result) (T, error)
	FinalCheck(ctx context.Context, results []Result[T]) error
	Summary(ctx context.Context, results []Result[T]) string
}

// Result is a plugin value for one frame
type Result[T any] struct {
	SerialNumber uint64
	Time         time.Duration
	Value        T
}

// FrameResult is a type-erased Result for session metadata
type FrameResult struct {
	SerialNumber uint64  `json:"serialNumber"`
	Time         float64 `json:"time"` // Seconds since session start
	Value        any     `json:"value"`
}

// Metadata is what a plugin leaves in the session result
type Metadata struct {
	Summary string        `json:"summary"`
	Results []FrameResult `json:"results"`
}

// Runner is a plugin with its value type erased, as the session drives it
type Runner interface {
	Name() string
	// Run consumes results until the slot is closed, then returns the metadata.
	Run(ctx context.Context, results *mailbox.Slot[tracking.Result]) (Metadata, error)
}

// Error is returned when a plugin vetoes the session
type Error struct {
	Plugin string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("plugin %q: %v", e.Plugin, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Run adapts p to a Runner
func Run[T any](p Plugin[T]) Runner {
	return runner[T]{p: p}
}

type runner[T any] struct {
	p Plugin[T]
}

func (r runner[T]) Name() string {
	return r.p.Name()
}

func (r runner[T]) Run(ctx context.Context, slot *mailbox.Slot[tracking.Result]) (Metadata, error) {
	var results []Result[T]
	for {
		res, err := slot.Take(ctx)
		if errors.Is(err, mailbox.ErrClosed) {
			break
		}
		if err != nil {
			return Metadata{}, err
		}

		in, ok := res.Input()
		if !ok {
			continue
		}
		v, err := r.p.ProcessResult(ctx, res)
		if err != nil {
			return Metadata{}, &Error{Plugin: r.p.Name(), Err: err}
		}
		results = append(results, Result[T]{SerialNumber: in.SerialNumber, Time: in.Time, Value: v})
	}

	if err := r.p.FinalCheck(ctx, results); err != nil {
		return Metadata{}, &Error{Plugin: r.p.Name(), Err: err}
	}

	md := Metadata{
		Summary: r.p.Summary(ctx, results),
		Results: make([]FrameResult, len(results)),
	}
	for i, res := range results {
		md.Results[i] = FrameResult{
			SerialNumber: res.SerialNumber,
			Time:         res.Time.Seconds(),
			Value:        res.Value,
		}
	}
	return md, nil
}
