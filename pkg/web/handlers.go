package web

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pulsedeck/voicepilot/pkg/plan"
	"github.com/pulsedeck/voicepilot/pkg/session"
)

// stateView is the session state payload for the REST and websocket surfaces.
type stateView struct {
	State     string    `json:"state"`
	LastError string    `json:"last_error,omitempty"`
	Time      time.Time `json:"time"`
}

// metricsView is the per-turn latency payload.
type metricsView struct {
	FirstAudioLatencyMs int64 `json:"first_audio_latency_ms"`
	TurnLatencyMs       int64 `json:"turn_latency_ms"`
	FramesIn            int   `json:"frames_in"`
	ChunksOut           int   `json:"chunks_out"`
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleState(c *fiber.Ctx) error {
	s.mu.Lock()
	lastError := s.lastError
	s.mu.Unlock()

	return c.JSON(stateView{
		State:     string(s.controller.State()),
		LastError: lastError,
		Time:      time.Now().UTC(),
	})
}

func (s *Server) handleTranscript(c *fiber.Ctx) error {
	entries := s.controller.Transcript()
	if entries == nil {
		entries = []session.Entry{}
	}
	return c.JSON(entries)
}

func (s *Server) handleSessionMetrics(c *fiber.Ctx) error {
	cur := s.controller.Metrics()
	return c.JSON(metricsView{
		FirstAudioLatencyMs: cur.FirstAudioLatency.Milliseconds(),
		TurnLatencyMs:       cur.TurnLatency.Milliseconds(),
		FramesIn:            cur.FramesIn,
		ChunksOut:           cur.ChunksOut,
	})
}

func (s *Server) handleIdeas(c *fiber.Ctx) error {
	if s.ideas == nil {
		return c.JSON([]plan.Idea{})
	}
	ideas := s.ideas.Ideas()
	if ideas == nil {
		ideas = []plan.Idea{}
	}
	return c.JSON(ideas)
}

func (s *Server) handleSessionStart(c *fiber.Ctx) error {
	err := s.controller.Start(c.Context())
	switch {
	case errors.Is(err, session.ErrAlreadyActive):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, session.ErrClosed):
		return c.Status(fiber.StatusGone).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"state": string(s.controller.State())})
}

func (s *Server) handleSessionStop(c *fiber.Ctx) error {
	if err := s.controller.Stop(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"state": string(s.controller.State())})
}
