// Package web serves the co-pilot dashboard: REST endpoints for session
// control and history, Prometheus metrics, and websocket streams that push
// transcript entries and state changes to connected browsers.
package web

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/pulsedeck/voicepilot/internal/observability"
	"github.com/pulsedeck/voicepilot/pkg/hub"
	"github.com/pulsedeck/voicepilot/pkg/plan"
	"github.com/pulsedeck/voicepilot/pkg/session"
)

// IdeaLister exposes recorded content ideas to the dashboard.
type IdeaLister interface {
	Ideas() []plan.Idea
}

// Server is the dashboard HTTP and websocket server.
type Server struct {
	app    *fiber.App
	port   string
	logger *slog.Logger

	controller *session.Controller
	ideas      IdeaLister

	transcriptHub *hub.Hub
	stateHub      *hub.Hub

	mu        sync.Mutex
	lastError string
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithIdeaLister exposes the content plan on the ideas endpoint.
func WithIdeaLister(ideas IdeaLister) ServerOption {
	return func(s *Server) { s.ideas = ideas }
}

// WithServerLogger sets the logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates the dashboard server for one controller.
func NewServer(port string, controller *session.Controller, opts ...ServerOption) *Server {
	s := &Server{
		port:       port,
		logger:     slog.Default(),
		controller: controller,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.transcriptHub = hub.New("transcript", s.logger)
	s.stateHub = hub.New("state", s.logger)

	app := fiber.New(fiber.Config{
		AppName:               "VoicePilot Dashboard",
		DisableStartupMessage: true,
	})

	app.Use(cors.New())

	app.Get("/healthz", s.handleHealth)
	app.Get("/metrics", adaptor.HTTPHandler(observability.Handler()))

	api := app.Group("/api")
	api.Get("/state", s.handleState)
	api.Get("/transcript", s.handleTranscript)
	api.Get("/metrics", s.handleSessionMetrics)
	api.Get("/ideas", s.handleIdeas)
	api.Post("/session/start", s.handleSessionStart)
	api.Post("/session/stop", s.handleSessionStop)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/transcript", websocket.New(func(conn *websocket.Conn) {
		hub.NewClient(s.transcriptHub, conn).Run()
	}))
	app.Get("/ws/state", websocket.New(func(conn *websocket.Conn) {
		hub.NewClient(s.stateHub, conn).Run()
	}))

	s.app = app
	return s
}

// Start wires the controller's callbacks into the websocket streams and
// serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	hubCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.transcriptHub.Run(hubCtx)
	go s.stateHub.Run(hubCtx)

	s.controller.OnTranscriptAppended(func(entries []session.Entry) {
		for _, entry := range entries {
			if err := s.transcriptHub.BroadcastJSON(entry); err != nil {
				s.logger.Warn("failed to broadcast transcript entry", "error", err)
			}
		}
	})
	s.controller.OnStateChanged(func(state session.State) {
		s.stateHub.BroadcastJSON(stateView{State: string(state), Time: time.Now().UTC()})
	})
	s.controller.OnError(func(err error) {
		s.mu.Lock()
		s.lastError = err.Error()
		s.mu.Unlock()
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(":" + s.port)
	}()
	s.logger.Info("dashboard listening", "port", s.port)

	select {
	case <-ctx.Done():
		return s.app.Shutdown()
	case err := <-errCh:
		return err
	}
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
