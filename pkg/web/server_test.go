package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pulsedeck/voicepilot/pkg/audioio"
	"github.com/pulsedeck/voicepilot/pkg/live"
	"github.com/pulsedeck/voicepilot/pkg/plan"
	"github.com/pulsedeck/voicepilot/pkg/session"
)

func newTestServer(t *testing.T) (*Server, *session.Controller, *live.MockTransport) {
	t.Helper()

	cfg := session.DefaultConfig().WithModel("models/test-live")
	transport := live.NewMockTransport()

	controller, err := session.NewController(cfg, transport,
		session.WithSourceFactory(func() (audioio.Source, error) {
			devCfg := audioio.DefaultCaptureConfig()
			devCfg.Backend = audioio.BackendMock
			return audioio.NewMockSource(devCfg, nil), nil
		}),
		session.WithSinkFactory(func() (audioio.Sink, error) {
			devCfg := audioio.DefaultPlaybackConfig()
			devCfg.Backend = audioio.BackendMock
			return audioio.NewMockSink(devCfg, nil), nil
		}),
	)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	t.Cleanup(controller.Dispose)

	planner := plan.NewMemoryPlanner()
	planner.RecordIdea(context.Background(), plan.Idea{Title: "Seed idea"})

	srv := NewServer("0", controller, WithIdeaLister(planner))
	return srv, controller, transport
}

func doRequest(t *testing.T, srv *Server, method, path string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	resp, err := srv.app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, body
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	status, body := doRequest(t, srv, http.MethodGet, "/healthz")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	var payload map[string]string
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["status"] != "ok" {
		t.Errorf("payload = %v", payload)
	}
}

func TestStateEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	status, body := doRequest(t, srv, http.MethodGet, "/api/state")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	var view stateView
	if err := json.Unmarshal(body, &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.State != string(session.StateIdle) {
		t.Errorf("state = %q", view.State)
	}
}

func TestSessionStartAndStop(t *testing.T) {
	srv, controller, _ := newTestServer(t)

	status, _ := doRequest(t, srv, http.MethodPost, "/api/session/start")
	if status != http.StatusOK {
		t.Fatalf("start status = %d", status)
	}
	if got := controller.State(); got != session.StateActive {
		t.Fatalf("controller state = %q", got)
	}

	// Starting again while active conflicts.
	status, _ = doRequest(t, srv, http.MethodPost, "/api/session/start")
	if status != http.StatusConflict {
		t.Fatalf("second start status = %d", status)
	}

	status, _ = doRequest(t, srv, http.MethodPost, "/api/session/stop")
	if status != http.StatusOK {
		t.Fatalf("stop status = %d", status)
	}
	if got := controller.State(); got != session.StateIdle {
		t.Errorf("controller state after stop = %q", got)
	}
}

func TestTranscriptEndpointEmpty(t *testing.T) {
	srv, _, _ := newTestServer(t)

	status, body := doRequest(t, srv, http.MethodGet, "/api/transcript")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	var entries []session.Entry
	if err := json.Unmarshal(body, &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty transcript, got %d entries", len(entries))
	}
}

func TestIdeasEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	status, body := doRequest(t, srv, http.MethodGet, "/api/ideas")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	var ideas []plan.Idea
	if err := json.Unmarshal(body, &ideas); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(ideas) != 1 || ideas[0].Title != "Seed idea" {
		t.Errorf("ideas = %+v", ideas)
	}
}

func TestSessionMetricsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	status, body := doRequest(t, srv, http.MethodGet, "/api/metrics")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	var view metricsView
	if err := json.Unmarshal(body, &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.FramesIn != 0 || view.ChunksOut != 0 {
		t.Errorf("expected zero counts on idle controller, got %+v", view)
	}
}
