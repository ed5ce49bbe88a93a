package web

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-facecapture/pkg/face"
	"github.com/teslashibe/go-facecapture/pkg/hub"
	"github.com/teslashibe/go-facecapture/pkg/session"
	"github.com/teslashibe/go-facecapture/pkg/tracking"
)

// SessionStatus is the dashboard view of the attached session
type SessionStatus struct {
	ID               string            `json:"id"`
	Running          bool              `json:"running"`
	Status           string            `json:"status,omitempty"` // Set once finished
	RequestedBearing face.Bearing      `json:"requestedBearing"`
	CaptureCount     int               `json:"captureCount"`
	MaxDuration      float64           `json:"maxDuration"` // Seconds
	Stats            session.Stats     `json:"stats"`
	Tracker          tracking.Snapshot `json:"tracker"`
}

// cancelWait bounds how long POST /api/cancel waits for the session to wind down
const cancelWait = 5 * time.Second

func noSession(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "no session attached",
	})
}

// handleSession returns the attached session's status
func (s *Server) handleSession(c *fiber.Ctx) error {
	sess, _ := s.current()
	if sess == nil {
		return noSession(c)
	}

	settings := sess.Settings()
	snap := sess.Tracker().Snapshot()
	status := SessionStatus{
		ID:               sess.ID().String(),
		Running:          true,
		RequestedBearing: snap.RequestedBearing,
		CaptureCount:     settings.FaceCaptureCount,
		MaxDuration:      settings.MaxDuration.Seconds(),
		Stats:            sess.Stats(),
		Tracker:          snap,
	}
	if res, ok := sess.Result(); ok {
		status.Running = false
		status.Status = res.Status.String()
	}
	return c.JSON(status)
}

// handleResult returns the terminal result, or 202 while the session runs
func (s *Server) handleResult(c *fiber.Ctx) error {
	sess, _ := s.current()
	if sess == nil {
		return noSession(c)
	}
	res, ok := sess.Result()
	if !ok {
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"status": "running",
		})
	}
	return c.JSON(res)
}

// handleCancel cancels the attached session
func (s *Server) handleCancel(c *fiber.Ctx) error {
	sess, _ := s.current()
	if sess == nil {
		return noSession(c)
	}
	sess.Cancel()
	ctx, cancel := context.WithTimeout(c.UserContext(), cancelWait)
	defer cancel()
	res, err := sess.Wait(ctx)
	if err != nil {
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"id":     sess.ID().String(),
		"status": res.Status.String(),
	})
}

// handleTrackingWS streams tracking results, starting with the latest one
func (s *Server) handleTrackingWS(c *websocket.Conn) {
	_, ctx := s.current()
	client, err := hub.NewClient(ctx, s.trackingHub, c)
	if err != nil {
		return
	}

	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()
	if last != nil {
		client.Send(hub.NewJSONMessage(last))
	}
	client.Run(ctx)
}

// handleCameraWS streams JPEG camera frames
func (s *Server) handleCameraWS(c *websocket.Conn) {
	_, ctx := s.current()
	client, err := hub.NewClient(ctx, s.cameraHub, c)
	if err != nil {
		return
	}
	client.Run(ctx)
}
