package plugin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/teslashibe/go-facecapture/pkg/tracking"
)

// FPS is the frame rate seen by a plugin at one frame
type FPS struct {
	LastSecond float64 `json:"lastSecond"`
	SinceStart float64 `json:"sinceStart"`
}

// FPSMeasurement measures the rate of tracked frames
type FPSMeasurement struct {
	mu    sync.Mutex
	times []time.Duration
}

var _ Plugin[FPS] = (*FPSMeasurement)(nil)

// NewFPSMeasurement creates an FPS plugin
func NewFPSMeasurement() *FPSMeasurement {
	return &FPSMeasurement{}
}

// Name implements Plugin
func (m *FPSMeasurement) Name() string {
	return "FPS measurement"
}

// ProcessResult implements Plugin
func (m *FPSMeasurement) ProcessResult(_ context.Context, r tracking.Result) (FPS, error) {
	now, ok := r.Time()
	if !ok {
		return FPS{}, tracking.ErrInvalidTrackingResult
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.times = append(m.times, now)

	var fps FPS
	earliest := m.times[0]
	for _, t := range m.times {
		earliest = min(earliest, t)
		if t >= now-time.Second {
			fps.LastSecond++
		}
	}
	if d := (now - earliest).Seconds(); d > 0 {
		fps.SinceStart = float64(len(m.times)) / d
	}
	return fps, nil
}

// FinalCheck implements Plugin
func (m *FPSMeasurement) FinalCheck(context.Context, []Result[FPS]) error {
	return nil
}

// Summary implements Plugin
func (m *FPSMeasurement) Summary(_ context.Context, results []Result[FPS]) string {
	if len(results) == 0 {
		return "Unavailable"
	}
	return fmt.Sprintf("%.1f frames per second", results[len(results)-1].Value.SinceStart)
}
