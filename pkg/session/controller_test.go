package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pulsedeck/voicepilot/pkg/audio"
	"github.com/pulsedeck/voicepilot/pkg/audioio"
	"github.com/pulsedeck/voicepilot/pkg/live"
)

// testDevices hands out mock devices through factories and keeps handles to
// the most recently created ones for inspection.
type testDevices struct {
	mu         sync.Mutex
	source     *audioio.MockSource
	sink       *audioio.MockSink
	sourceOpts []audioio.MockSourceOption
}

func (d *testDevices) sourceFactory(cfg Config) func() (audioio.Source, error) {
	return func() (audioio.Source, error) {
		devCfg := audioio.DefaultCaptureConfig()
		devCfg.Backend = audioio.BackendMock
		devCfg.SampleRate = cfg.InputSampleRate
		src := audioio.NewMockSource(devCfg, nil, d.sourceOpts...)
		d.mu.Lock()
		d.source = src
		d.mu.Unlock()
		return src, nil
	}
}

func (d *testDevices) sinkFactory(cfg Config) func() (audioio.Sink, error) {
	return func() (audioio.Sink, error) {
		devCfg := audioio.DefaultPlaybackConfig()
		devCfg.Backend = audioio.BackendMock
		devCfg.SampleRate = cfg.OutputSampleRate
		snk := audioio.NewMockSink(devCfg, nil)
		d.mu.Lock()
		d.sink = snk
		d.mu.Unlock()
		return snk, nil
	}
}

func (d *testDevices) currentSource() *audioio.MockSource {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.source
}

func (d *testDevices) currentSink() *audioio.MockSink {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sink
}

func newTestController(t *testing.T, devices *testDevices, opts ...ControllerOption) (*Controller, *live.MockTransport) {
	t.Helper()

	cfg := DefaultConfig().
		WithModel("models/test-live").
		WithSystemPrompt("You help plan social media content.")

	transport := live.NewMockTransport()
	opts = append([]ControllerOption{
		WithSourceFactory(devices.sourceFactory(cfg)),
		WithSinkFactory(devices.sinkFactory(cfg)),
	}, opts...)

	c, err := NewController(cfg, transport, opts...)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	t.Cleanup(c.Dispose)
	return c, transport
}

func waitForState(t *testing.T, c *Controller, want State) {
	t.Helper()
	waitFor(t, func() bool { return c.State() == want })
}

func TestControllerLifecycle(t *testing.T) {
	devices := &testDevices{}
	c, transport := newTestController(t, devices)

	var mu sync.Mutex
	var states []State
	c.OnStateChanged(func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	if got := c.State(); got != StateIdle {
		t.Fatalf("initial state = %q", got)
	}

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := c.State(); got != StateActive {
		t.Fatalf("state after start = %q", got)
	}

	if got := transport.LastConfig.Model; got != "models/test-live" {
		t.Errorf("opened with model %q", got)
	}
	if got := transport.LastConfig.SystemInstruction; got == "" {
		t.Error("expected system instruction in session config")
	}

	sess := transport.Session()
	if err := c.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := c.State(); got != StateIdle {
		t.Fatalf("state after stop = %q", got)
	}
	if !sess.IsClosed() {
		t.Error("expected session closed on stop")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []State{StateConnecting, StateActive, StateIdle}
	if len(states) != len(want) {
		t.Fatalf("state sequence = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("state[%d] = %q, want %q", i, states[i], want[i])
		}
	}
}

func TestControllerStartWhileActive(t *testing.T) {
	devices := &testDevices{}
	c, _ := newTestController(t, devices)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.Start(context.Background()); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("expected ErrAlreadyActive, got %v", err)
	}
}

func TestControllerStopIdempotent(t *testing.T) {
	devices := &testDevices{}
	c, _ := newTestController(t, devices)

	if err := c.Stop(); err != nil {
		t.Fatalf("stop on idle: %v", err)
	}

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("first stop: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	if got := c.State(); got != StateIdle {
		t.Errorf("state = %q", got)
	}
}

func TestControllerDisposeIsTerminal(t *testing.T) {
	devices := &testDevices{}
	c, _ := newTestController(t, devices)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	c.Dispose()
	if got := c.State(); got != StateClosed {
		t.Fatalf("state after dispose = %q", got)
	}
	if err := c.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestControllerCaptureStartFailure(t *testing.T) {
	devices := &testDevices{
		sourceOpts: []audioio.MockSourceOption{
			audioio.WithStartError(errors.New("microphone busy")),
		},
	}
	c, transport := newTestController(t, devices)

	var gotErr error
	c.OnError(func(err error) { gotErr = err })

	err := c.Start(context.Background())
	if err == nil {
		t.Fatal("expected start to fail")
	}
	var devErr *DeviceError
	if !errors.As(err, &devErr) || devErr.Device != "capture" {
		t.Fatalf("expected capture DeviceError, got %v", err)
	}
	if got := c.State(); got != StateErrored {
		t.Errorf("state = %q, want %q", got, StateErrored)
	}
	if gotErr == nil {
		t.Error("expected error callback")
	}

	// No frame was ever sent; the session opened during connect was closed.
	sess := transport.Session()
	if sess == nil {
		t.Fatal("expected a session to have been opened")
	}
	if !sess.IsClosed() {
		t.Error("expected session closed after failed start")
	}
	if got := len(sess.SentAudio()); got != 0 {
		t.Errorf("expected no audio sent, got %d frames", got)
	}
}

func TestControllerTransportOpenFailure(t *testing.T) {
	devices := &testDevices{}
	c, transport := newTestController(t, devices)
	transport.OpenErr = errors.New("endpoint unreachable")

	err := c.Start(context.Background())
	var tErr *TransportError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if got := c.State(); got != StateErrored {
		t.Errorf("state = %q", got)
	}

	// The controller recovers: clearing the fault allows a fresh start.
	transport.OpenErr = nil
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("restart after error: %v", err)
	}
	if got := c.State(); got != StateActive {
		t.Errorf("state after restart = %q", got)
	}
}

func TestControllerCapturePumpForwardsFrames(t *testing.T) {
	devices := &testDevices{}
	c, transport := newTestController(t, devices)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	samples := []int16{100, -200, 300, -400}
	devices.currentSource().Push(audio.Frame{Samples: samples, SampleRate: DefaultInputSampleRate})

	sess := transport.Session()
	waitFor(t, func() bool { return len(sess.SentAudio()) == 1 })

	sent := sess.SentAudio()[0]
	if len(sent) != len(samples) {
		t.Fatalf("sent %d samples, want %d", len(sent), len(samples))
	}
	for i := range samples {
		if sent[i] != samples[i] {
			t.Errorf("sample[%d] = %d, want %d", i, sent[i], samples[i])
		}
	}
}

func TestControllerSchedulesRemoteAudioGaplessly(t *testing.T) {
	devices := &testDevices{}
	c, transport := newTestController(t, devices)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	sess := transport.Session()
	sink := devices.currentSink()

	// Two 100ms chunks at 24kHz.
	chunk := make([]int16, 2400)
	sess.Emit(live.Event{Type: live.EventAudio, Audio: chunk})
	sess.Emit(live.Event{Type: live.EventAudio, Audio: chunk})

	waitFor(t, func() bool { return len(sink.StartTimes()) == 2 })
	starts := sink.StartTimes()
	if !floatEq(starts[0], 0) {
		t.Errorf("first start = %v, want 0", starts[0])
	}
	if !floatEq(starts[1], 0.1) {
		t.Errorf("second start = %v, want 0.1", starts[1])
	}
}

func TestControllerInterruptionStopsPlayback(t *testing.T) {
	devices := &testDevices{}
	c, transport := newTestController(t, devices)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	sess := transport.Session()
	sink := devices.currentSink()

	chunk := make([]int16, 2400)
	sess.Emit(live.Event{Type: live.EventAudio, Audio: chunk})
	sess.Emit(live.Event{Type: live.EventAudio, Audio: chunk})
	waitFor(t, func() bool { return len(sink.StartTimes()) == 2 })

	sess.Emit(live.Event{Type: live.EventInterrupted})
	waitFor(t, func() bool { return sink.Pending() == 0 })

	// The next turn's audio starts at the device clock, not behind the
	// cancelled tail.
	sess.Emit(live.Event{Type: live.EventAudio, Audio: chunk})
	waitFor(t, func() bool { return len(sink.StartTimes()) == 3 })
	starts := sink.StartTimes()
	if !floatEq(starts[2], sink.Now()) {
		t.Errorf("post-interrupt start = %v, want %v", starts[2], sink.Now())
	}
}

func TestControllerTranscriptFromEvents(t *testing.T) {
	devices := &testDevices{}
	c, transport := newTestController(t, devices)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	sess := transport.Session()

	sess.Emit(live.Event{Type: live.EventInputTranscript, Text: "What should "})
	sess.Emit(live.Event{Type: live.EventInputTranscript, Text: "I post today?"})
	sess.Emit(live.Event{Type: live.EventOutputTranscript, Text: "Try a short reel."})
	sess.Emit(live.Event{Type: live.EventTurnComplete})

	waitFor(t, func() bool { return len(c.Transcript()) == 2 })
	entries := c.Transcript()
	if entries[0].Speaker != SpeakerUser || entries[0].Text != "What should I post today?" {
		t.Errorf("user entry = %+v", entries[0])
	}
	if entries[1].Speaker != SpeakerRemote || entries[1].Text != "Try a short reel." {
		t.Errorf("remote entry = %+v", entries[1])
	}
}

func TestControllerToolCallRoundTrip(t *testing.T) {
	devices := &testDevices{}
	c, transport := newTestController(t, devices)

	if err := c.RegisterTool(echoTool("echo")); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	decls := transport.LastConfig.Tools
	if len(decls) != 1 || decls[0].Name != "echo" {
		t.Fatalf("expected echo declaration in session config, got %+v", decls)
	}

	sess := transport.Session()
	sess.Emit(live.Event{Type: live.EventToolCall, Calls: []live.ToolCall{
		{ID: "call-1", Name: "echo", Arguments: map[string]any{"message": "pong"}},
	}})

	waitFor(t, func() bool { return len(sess.SentResults()) == 1 })
	res := sess.SentResults()[0]
	if res.ID != "call-1" || res.Output != "pong" || res.Error != "" {
		t.Errorf("result = %+v", res)
	}
}

func TestControllerSlowToolDoesNotBlockAudio(t *testing.T) {
	devices := &testDevices{}
	c, transport := newTestController(t, devices)

	release := make(chan struct{})
	if err := c.RegisterTool(Tool{
		Name:       "slow",
		Parameters: map[string]any{"type": "object"},
		Handler: func(ctx context.Context, args map[string]any) (*ToolOutput, error) {
			<-release
			return &ToolOutput{Text: "done"}, nil
		},
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	sess := transport.Session()
	sink := devices.currentSink()

	sess.Emit(live.Event{Type: live.EventToolCall, Calls: []live.ToolCall{
		{ID: "call-1", Name: "slow", Arguments: map[string]any{}},
	}})

	// Audio keeps flowing while the tool is in flight.
	chunk := make([]int16, 2400)
	sess.Emit(live.Event{Type: live.EventAudio, Audio: chunk})
	sess.Emit(live.Event{Type: live.EventAudio, Audio: chunk})
	waitFor(t, func() bool { return len(sink.StartTimes()) == 2 })

	if got := len(sess.SentResults()); got != 0 {
		t.Fatalf("tool completed before release, %d results", got)
	}

	close(release)
	waitFor(t, func() bool { return len(sess.SentResults()) == 1 })
}

func TestControllerRemoteCloseReturnsToIdle(t *testing.T) {
	devices := &testDevices{}
	c, transport := newTestController(t, devices)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	transport.Session().Close()
	waitForState(t, c, StateIdle)
}

func TestControllerTransportErrorFails(t *testing.T) {
	devices := &testDevices{}
	c, transport := newTestController(t, devices)

	errCh := make(chan error, 1)
	c.OnError(func(err error) { errCh <- err })

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	transport.Session().Emit(live.Event{Type: live.EventError, Err: errors.New("stream reset")})

	select {
	case err := <-errCh:
		var tErr *TransportError
		if !errors.As(err, &tErr) {
			t.Fatalf("expected TransportError, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error callback not invoked")
	}
	waitForState(t, c, StateErrored)
}

func TestControllerDiscardsToolResultAfterClose(t *testing.T) {
	devices := &testDevices{}
	c, transport := newTestController(t, devices)

	started := make(chan struct{})
	release := make(chan struct{})
	if err := c.RegisterTool(Tool{
		Name:       "straggler",
		Parameters: map[string]any{"type": "object"},
		Handler: func(ctx context.Context, args map[string]any) (*ToolOutput, error) {
			close(started)
			<-release
			return &ToolOutput{Text: "too late"}, nil
		},
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	sess := transport.Session()
	sess.Emit(live.Event{Type: live.EventToolCall, Calls: []live.ToolCall{
		{ID: "call-1", Name: "straggler", Arguments: map[string]any{}},
	}})
	<-started

	if err := c.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	close(release)

	// The result completes after teardown; it is dropped, not delivered.
	time.Sleep(50 * time.Millisecond)
	if got := len(sess.SentResults()); got != 0 {
		t.Errorf("expected discarded result, got %d delivered", got)
	}
}

func TestControllerTeardownDiscardsPendingTranscript(t *testing.T) {
	devices := &testDevices{}
	c, transport := newTestController(t, devices)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	sess := transport.Session()
	sess.Emit(live.Event{Type: live.EventInputTranscript, Text: "half spo"})

	// Give the event loop time to buffer the fragment.
	time.Sleep(20 * time.Millisecond)
	if err := c.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if got := len(c.Transcript()); got != 0 {
		t.Errorf("expected empty transcript after teardown, got %d entries", got)
	}
}
