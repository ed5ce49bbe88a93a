package session

import (
	"encoding/json"
	"fmt"

	"github.com/teslashibe/go-facecapture/pkg/plugin"
	"github.com/teslashibe/go-facecapture/pkg/tracking"
)

// Status is the outcome of a session
type Status int

const (
	StatusSuccess Status = iota
	StatusFailure
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	case StatusCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// MarshalText encodes the status by name
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is the terminal state of a session.
// A failed session keeps the faces captured before the error. A cancelled
// session carries nothing.
type Result struct {
	Status        Status
	CapturedFaces []tracking.CapturedFace
	Metadata      map[string]plugin.Metadata // Keyed by plugin name
	Err           error
}

// MarshalJSON renders the error as a string
func (r Result) MarshalJSON() ([]byte, error) {
	out := struct {
		Status        Status                     `json:"status"`
		CapturedFaces []tracking.CapturedFace    `json:"capturedFaces,omitempty"`
		Metadata      map[string]plugin.Metadata `json:"metadata,omitempty"`
		Error         string                     `json:"error,omitempty"`
	}{
		Status:        r.Status,
		CapturedFaces: r.CapturedFaces,
		Metadata:      r.Metadata,
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}
