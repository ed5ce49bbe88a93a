// Package web provides a real-time dashboard for a capture session
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-facecapture/internal/log"
	"github.com/teslashibe/go-facecapture/pkg/hub"
	"github.com/teslashibe/go-facecapture/pkg/session"
	"github.com/teslashibe/go-facecapture/pkg/tracking"
)

// StateFinished is the state of the last message on /ws/tracking
const StateFinished = "finished"

// Server is the web dashboard server
type Server struct {
	app    *fiber.App
	port   string
	logger *slog.Logger

	// Hubs for websocket broadcast
	trackingHub *hub.Hub
	cameraHub   *hub.Hub

	mu       sync.RWMutex
	ctx      context.Context
	session  *session.Session
	last     []byte // Latest tracking result, JSON encoded
	attached chan struct{}
}

// NewServer creates a new web dashboard server
func NewServer(port string) *Server {
	s := &Server{
		port:        port,
		logger:      log.With("component", "web"),
		trackingHub: hub.New("tracking"),
		cameraHub:   hub.New("camera"),
		ctx:         context.Background(),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Face Capture Dashboard",
		DisableStartupMessage: true,
	})

	app.Use(requestid.New())
	app.Use(recover.New())
	// CORS for local development
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/session", s.handleSession)
	api.Get("/result", s.handleResult)
	api.Post("/cancel", s.handleCancel)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/tracking", websocket.New(s.handleTrackingWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on the configured port until ctx is done
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		return err
	}
	s.logger.Info("dashboard listening", "url", "http://localhost:"+s.port)
	return s.Serve(ctx, ln)
}

// Serve runs the hubs and serves on ln until ctx is done
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	go s.trackingHub.Run(ctx)
	go s.cameraHub.Run(ctx)

	errc := make(chan error, 1)
	go func() {
		errc <- s.app.Listener(ln)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		if err := s.app.Shutdown(); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
		return nil
	}
}

// Attach shows sess on the dashboard and relays its tracking results to
// /ws/tracking until the session ends or ctx is done.
func (s *Server) Attach(ctx context.Context, sess *session.Session) {
	results := sess.Subscribe(16)

	done := make(chan struct{})
	s.mu.Lock()
	s.session = sess
	s.last = nil
	s.attached = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case r, ok := <-results:
				if !ok {
					s.publishFinished(sess)
					return
				}
				s.publish(r)
			}
		}
	}()
}

// Detached is closed once the relay started by the last Attach has stopped
func (s *Server) Detached() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attached
}

func (s *Server) publish(r tracking.Result) {
	data, err := json.Marshal(r)
	if err != nil {
		s.logger.Warn("encode tracking result", "error", err)
		return
	}
	s.mu.Lock()
	s.last = data
	s.mu.Unlock()
	s.trackingHub.Broadcast(hub.NewJSONMessage(data))
}

// publishFinished tells tracking clients the session is over
func (s *Server) publishFinished(sess *session.Session) {
	res, ok := sess.Result()
	if !ok {
		return
	}
	if err := s.trackingHub.BroadcastJSON(fiber.Map{
		"state":  StateFinished,
		"status": res.Status.String(),
	}); err != nil {
		s.logger.Warn("encode session status", "error", err)
	}
}

// SendCameraFrame sends a camera frame to all connected clients
func (s *Server) SendCameraFrame(jpeg []byte) {
	s.cameraHub.BroadcastBinary(jpeg)
}

func (s *Server) current() (*session.Session, context.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session, s.ctx
}
