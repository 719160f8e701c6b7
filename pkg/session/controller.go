package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pulsedeck/voicepilot/internal/observability"
	"github.com/pulsedeck/voicepilot/pkg/audio"
	"github.com/pulsedeck/voicepilot/pkg/audioio"
	"github.com/pulsedeck/voicepilot/pkg/live"
)

// State identifies the session lifecycle phase.
type State string

const (
	// StateIdle means no session is running.
	StateIdle State = "idle"
	// StateConnecting means devices are being acquired and the remote session opened.
	StateConnecting State = "connecting"
	// StateActive means audio is streaming in both directions.
	StateActive State = "active"
	// StateErrored means the last session ended with an unrecoverable error.
	// Start is permitted again from this state.
	StateErrored State = "error"
	// StateClosed is terminal; the controller cannot be restarted.
	StateClosed State = "closed"
)

// Controller owns one voice co-pilot session: the state machine, the device
// handles, and the demultiplexer routing every inbound event to the playback
// scheduler, the transcript, or the tool dispatcher. All mutable session
// state lives behind its mutex; the concurrent activities interact only
// through its methods.
type Controller struct {
	cfg       Config
	transport live.Transport
	logger    *slog.Logger
	obs       *observability.Metrics
	collector *MetricsCollector

	newSource func() (audioio.Source, error)
	newSink   func() (audioio.Sink, error)

	transcript *Transcript
	dispatch   *dispatcher

	mu        sync.Mutex
	state     State
	sess      live.Session
	source    audioio.Source
	sink      audioio.Sink
	scheduler *Scheduler
	pump      *capturePump
	cancel    context.CancelFunc

	onState func(State)
	onError func(error)
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithSourceFactory overrides how the capture device is created.
func WithSourceFactory(fn func() (audioio.Source, error)) ControllerOption {
	return func(c *Controller) { c.newSource = fn }
}

// WithSinkFactory overrides how the playback sink is created.
func WithSinkFactory(fn func() (audioio.Sink, error)) ControllerOption {
	return func(c *Controller) { c.newSink = fn }
}

// WithObservability attaches Prometheus instruments.
func WithObservability(obs *observability.Metrics) ControllerOption {
	return func(c *Controller) { c.obs = obs }
}

// WithControllerLogger sets the logger.
func WithControllerLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = logger }
}

// NewController creates a controller in the Idle state.
func NewController(cfg Config, transport live.Transport, opts ...ControllerOption) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		cfg:        cfg,
		transport:  transport,
		logger:     slog.Default(),
		collector:  NewMetricsCollector(),
		transcript: NewTranscript(),
		state:      StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.newSource == nil {
		c.newSource = func() (audioio.Source, error) {
			srcCfg := audioio.DefaultCaptureConfig()
			srcCfg.SampleRate = cfg.InputSampleRate
			srcCfg.BufferDuration = cfg.CaptureBuffer
			return audioio.NewSource(srcCfg, c.logger)
		}
	}
	if c.newSink == nil {
		c.newSink = func() (audioio.Sink, error) {
			sinkCfg := audioio.DefaultPlaybackConfig()
			sinkCfg.SampleRate = cfg.OutputSampleRate
			return audioio.NewSink(sinkCfg, c.logger)
		}
	}

	c.dispatch = newDispatcher(c.sendToolResult, c.transcript, c.logger)
	return c, nil
}

// RegisterTool adds a tool to the closed registry.
// Tools must be registered before Start so the remote session learns them.
func (c *Controller) RegisterTool(tool Tool) error {
	return c.dispatch.register(tool)
}

// OnTranscriptAppended sets the callback invoked with committed entries.
func (c *Controller) OnTranscriptAppended(fn func([]Entry)) {
	c.transcript.OnAppended(fn)
}

// OnStateChanged sets the callback invoked on every state transition.
func (c *Controller) OnStateChanged(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = fn
}

// OnError sets the callback invoked with session-fatal errors.
func (c *Controller) OnError(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transcript returns the committed conversation entries in order.
func (c *Controller) Transcript() []Entry {
	return c.transcript.Entries()
}

// Metrics returns the current turn's metrics snapshot.
func (c *Controller) Metrics() Metrics {
	return c.collector.Current()
}

// Start acquires the devices, opens the remote session, and begins streaming.
// A controller that is already Active rejects the call: the microphone and
// speaker have exactly one owner.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateClosed:
		c.mu.Unlock()
		return ErrClosed
	case StateActive, StateConnecting:
		c.mu.Unlock()
		return ErrAlreadyActive
	}
	c.state = StateConnecting
	c.mu.Unlock()
	c.notifyState(StateConnecting)

	source, err := c.newSource()
	if err != nil {
		return c.startFailed(&DeviceError{Device: "capture", Err: err})
	}

	sink, err := c.newSink()
	if err != nil {
		source.Close()
		return c.startFailed(&DeviceError{Device: "playback", Err: err})
	}
	if err := sink.Start(ctx); err != nil {
		source.Close()
		sink.Close()
		return c.startFailed(&DeviceError{Device: "playback", Err: err})
	}

	sess, err := c.transport.Open(ctx, live.SessionConfig{
		Model:             c.cfg.Model,
		SystemInstruction: c.cfg.SystemPrompt,
		Voice:             c.cfg.Voice,
		InputSampleRate:   c.cfg.InputSampleRate,
		OutputSampleRate:  c.cfg.OutputSampleRate,
		Tools:             c.dispatch.declarations(),
	})
	if err != nil {
		source.Close()
		sink.Close()
		return c.startFailed(&TransportError{Err: err})
	}

	// Capture acquisition failure must reach Errored before any frame
	// is ever sent.
	if err := source.Start(ctx); err != nil {
		sess.Close()
		source.Close()
		sink.Close()
		return c.startFailed(&DeviceError{Device: "capture", Err: err})
	}

	runCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.source = source
	c.sink = sink
	c.sess = sess
	c.scheduler = NewScheduler(sink, c.logger)
	c.pump = newCapturePump(source, c.cfg.InputSampleRate, c.sendAudio(sess), c.logger)
	c.cancel = cancel
	c.state = StateActive
	pump := c.pump
	c.mu.Unlock()
	c.notifyState(StateActive)

	go pump.run(runCtx)
	go c.eventLoop(runCtx, sess)

	c.logger.Info("voice session active",
		"model", c.cfg.Model,
		"input_rate", c.cfg.InputSampleRate,
		"output_rate", c.cfg.OutputSampleRate,
	)
	return nil
}

// Stop tears the session down to Idle. Safe to invoke from any state and
// idempotent: a second call finds nothing to release and succeeds.
func (c *Controller) Stop() error {
	c.teardown(StateIdle)
	return nil
}

// Dispose tears the session down and closes the controller permanently.
func (c *Controller) Dispose() {
	c.teardown(StateClosed)
}

// startFailed releases nothing (the caller already has), records the error
// state, and surfaces the error.
func (c *Controller) startFailed(err error) error {
	c.mu.Lock()
	c.state = StateErrored
	c.mu.Unlock()
	c.notifyState(StateErrored)
	c.notifyError(err)
	return err
}

// fail runs the teardown path for an unrecoverable mid-session error.
func (c *Controller) fail(err error) {
	c.logger.Error("session failed", "error", err)
	c.teardown(StateErrored)
	c.notifyError(err)
}

// teardown is the single release path for every session resource, in order:
// capture device, playback sources, remote session, device handles.
func (c *Controller) teardown(target State) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	prev := c.state
	source, sink, sess := c.source, c.sink, c.sess
	scheduler, cancel := c.scheduler, c.cancel
	c.source, c.sink, c.sess = nil, nil, nil
	c.scheduler, c.pump, c.cancel = nil, nil, nil
	c.state = target
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if source != nil {
		source.Stop()
	}
	if scheduler != nil {
		scheduler.Stop()
	}
	if sess != nil {
		sess.Close()
	}
	if source != nil {
		source.Close()
	}
	if sink != nil {
		sink.Close()
	}
	c.transcript.DiscardPending()

	if prev != target {
		c.notifyState(target)
		c.logger.Info("session state changed", "from", prev, "to", target)
	}
}

// eventLoop demultiplexes every inbound remote event. Unknown event types
// are ignored for forward compatibility.
func (c *Controller) eventLoop(ctx context.Context, sess live.Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sess.Events():
			if !ok {
				return
			}
			switch ev.Type {
			case live.EventAudio:
				c.handleAudio(ev.Audio)
			case live.EventInputTranscript:
				c.collector.MarkTurnStart()
				c.transcript.AddInput(ev.Text)
			case live.EventOutputTranscript:
				c.transcript.AddOutput(ev.Text)
			case live.EventTurnComplete:
				c.transcript.CompleteTurn()
				c.collector.MarkTurnComplete()
				if c.obs != nil {
					c.obs.TurnsCompleted.Inc()
				}
			case live.EventInterrupted:
				c.handleInterrupted()
			case live.EventToolCall:
				c.dispatch.dispatch(ctx, ev.Calls)
			case live.EventError:
				c.fail(&TransportError{Err: ev.Err})
				return
			case live.EventClosed:
				c.remoteClosed()
				return
			}
		}
	}
}

func (c *Controller) handleAudio(samples []int16) {
	c.mu.Lock()
	scheduler := c.scheduler
	c.mu.Unlock()
	if scheduler == nil {
		return
	}

	if latency := c.collector.MarkFirstAudio(); latency > 0 && c.obs != nil {
		c.obs.ObserveFirstAudioLatency(latency)
	}
	c.collector.IncrementChunksOut()
	if c.obs != nil {
		c.obs.AudioFramesOut.Inc()
	}

	frame := audio.Frame{Samples: samples, SampleRate: c.cfg.OutputSampleRate}
	if err := scheduler.Enqueue(frame); err != nil {
		c.logger.Warn("failed to schedule audio chunk", "error", err)
	}
}

func (c *Controller) handleInterrupted() {
	c.mu.Lock()
	scheduler := c.scheduler
	c.mu.Unlock()
	if scheduler != nil {
		scheduler.Interrupt()
	}
	if c.obs != nil {
		c.obs.Interruptions.Inc()
	}
}

// remoteClosed handles the remote party ending the session.
func (c *Controller) remoteClosed() {
	c.mu.Lock()
	running := c.state == StateActive || c.state == StateConnecting
	c.mu.Unlock()
	if running {
		c.logger.Info("remote session closed")
		c.teardown(StateIdle)
	}
}

// sendAudio builds the capture pump's transmit function for one session.
func (c *Controller) sendAudio(sess live.Session) func([]int16) error {
	return func(samples []int16) error {
		if err := sess.SendAudio(samples); err != nil {
			if c.obs != nil {
				c.obs.FramesDropped.Inc()
			}
			return err
		}
		c.collector.IncrementFramesIn()
		if c.obs != nil {
			c.obs.AudioFramesIn.Inc()
		}
		return nil
	}
}

// sendToolResult delivers one tool result to the remote session.
// Results arriving after the session closed are discarded silently; the
// execution already happened and there is nobody left to tell.
func (c *Controller) sendToolResult(res live.ToolResult) {
	outcome := "ok"
	if res.Error != "" {
		outcome = "error"
	}
	if c.obs != nil {
		c.obs.ToolCalls.WithLabelValues(res.Name, outcome).Inc()
	}

	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()

	if sess == nil {
		c.logger.Debug("discarding tool result after close", "call_id", res.ID)
		return
	}
	if err := sess.SendToolResult(res); err != nil {
		c.logger.Debug("tool result send failed", "call_id", res.ID, "error", err)
	}
}

func (c *Controller) notifyState(state State) {
	if c.obs != nil {
		c.obs.SetState(string(state))
	}
	c.mu.Lock()
	fn := c.onState
	c.mu.Unlock()
	if fn != nil {
		fn(state)
	}
}

func (c *Controller) notifyError(err error) {
	c.mu.Lock()
	fn := c.onError
	c.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}
