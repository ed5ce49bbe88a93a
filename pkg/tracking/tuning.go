package tracking

import (
	"time"

	"github.com/teslashibe/go-facecapture/pkg/face"
)

// Snapshot is a read-only view of the tracker state for dashboards and logs
type Snapshot struct {
	RequestedBearing face.Bearing  `json:"requestedBearing"`
	PreviousBearing  *face.Bearing `json:"previousBearing,omitempty"`
	HasFaceBeenFixed bool          `json:"hasFaceBeenFixed"`
	BufferedFaces    int           `json:"bufferedFaces"`
	AlignedFaces     int           `json:"alignedFaces"`
	FixedFaces       int           `json:"fixedFaces"`
	AngleHistory     int           `json:"angleHistory"`
	Captures         int           `json:"captures"`
	LastState        State         `json:"lastState"`
	LastCaptureAt    *time.Time    `json:"lastCaptureAt,omitempty"`
}

// Snapshot returns the current tracker state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Snapshot{
		RequestedBearing: t.requestedBearing,
		HasFaceBeenFixed: t.hasFaceBeenFixed,
		BufferedFaces:    t.buffer.Len(),
		AlignedFaces:     len(t.buffer.Filter(alignedFace.aligned)),
		FixedFaces:       len(t.buffer.Filter(alignedFace.fixed)),
		AngleHistory:     len(t.angleHistory),
		Captures:         t.captures,
		LastState:        t.lastState,
	}
	if t.previousBearing != nil {
		b := *t.previousBearing
		s.PreviousBearing = &b
	}
	if !t.alignTime.IsZero() {
		at := t.alignTime
		s.LastCaptureAt = &at
	}
	return s
}
