package audioio

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pulsedeck/voicepilot/pkg/audio"
)

// MockSource is a mock audio source for testing and development.
// It can generate synthetic audio (silence or a sine wave) on a timer, or
// deliver frames pushed explicitly by a test.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan audio.Frame
	stopCh   chan struct{}

	startErr error

	// Stats
	framesRead atomic.Int64

	// Synthetic audio generation
	phase     float64
	frequency float64 // Hz, 0 = silence and no generator loop
	amplitude float64 // 0.0 to 1.0
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithSineWave configures the mock to generate a sine wave on a real timer.
func WithSineWave(frequency, amplitude float64) MockSourceOption {
	return func(m *MockSource) {
		m.frequency = frequency
		m.amplitude = amplitude
	}
}

// WithStartError makes Start fail with err, simulating a device that cannot
// be acquired (e.g., microphone permission denied).
func WithStartError(err error) MockSourceOption {
	return func(m *MockSource) {
		m.startErr = err
	}
}

// NewMockSource creates a new mock audio source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}

	m := &MockSource{
		cfg:      cfg,
		logger:   logger,
		streamCh: make(chan audio.Frame, 16),
		stopCh:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Start begins capture. With a sine wave configured it starts the generator
// loop; otherwise frames arrive only via Push.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if m.startErr != nil {
		return m.startErr
	}
	if m.running {
		return nil
	}

	m.running = true
	m.stopCh = make(chan struct{})
	m.streamCh = make(chan audio.Frame, 16)

	if m.frequency > 0 {
		go m.generateLoop(ctx)
	}

	m.logger.Debug("mock audio source started",
		"sample_rate", m.cfg.SampleRate,
		"frequency", m.frequency,
	)

	return nil
}

func (m *MockSource) generateLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.BufferDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Stop()
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.Push(m.generateFrame())
		}
	}
}

func (m *MockSource) generateFrame() audio.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()

	samples := make([]int16, m.cfg.BufferSize())
	step := 2 * math.Pi * m.frequency / float64(m.cfg.SampleRate)
	for i := range samples {
		samples[i] = int16(m.amplitude * math.Sin(m.phase) * 32767)
		m.phase += step
	}
	return audio.Frame{Samples: samples, SampleRate: m.cfg.SampleRate}
}

// Push delivers a frame to the stream as if captured from the device.
// Frames pushed while the buffer is full are dropped, mirroring a real
// device overrun.
func (m *MockSource) Push(frame audio.Frame) {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	ch := m.streamCh
	m.mu.Unlock()

	select {
	case ch <- frame:
		m.framesRead.Add(1)
	default:
		m.logger.Debug("mock source: buffer full, dropping frame")
	}
}

// Stop halts capture and closes the stream channel.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false
	close(m.stopCh)
	close(m.streamCh)
	return nil
}

// Stream returns the channel of captured frames.
func (m *MockSource) Stream() <-chan audio.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streamCh
}

// Config returns the source configuration.
func (m *MockSource) Config() Config { return m.cfg }

// Name returns the backend name.
func (m *MockSource) Name() string { return "mock" }

// FramesRead returns the total number of frames delivered.
func (m *MockSource) FramesRead() int64 { return m.framesRead.Load() }

// Close releases the source.
func (m *MockSource) Close() error {
	m.Stop()
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

var _ Source = (*MockSource)(nil)

// mockBuffer is one scheduled buffer on a MockSink.
type mockBuffer struct {
	startAt float64
	endAt   float64

	once sync.Once
	done chan struct{}

	stopped bool
}

func (b *mockBuffer) Stop() {
	b.once.Do(func() {
		b.stopped = true
		close(b.done)
	})
}

func (b *mockBuffer) complete() {
	b.once.Do(func() {
		close(b.done)
	})
}

func (b *mockBuffer) Done() <-chan struct{} { return b.done }

var _ Handle = (*mockBuffer)(nil)

// MockSink is a mock playback sink with a manually advanced clock.
// Tests drive time forward with Advance; buffers whose end time has passed
// complete and close their Done channel, exactly like a device notifying
// playback completion.
type MockSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	closed  bool
	clock   float64
	buffers []*mockBuffer

	startTimes []float64

	framesWritten atomic.Int64
}

// NewMockSink creates a new mock playback sink with its clock at zero.
func NewMockSink(cfg Config, logger *slog.Logger) *MockSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockSink{cfg: cfg, logger: logger}
}

// Start prepares the sink. The mock has nothing to acquire.
func (m *MockSink) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return io.ErrClosedPipe
	}
	return nil
}

// Now returns the current fake clock time in seconds.
func (m *MockSink) Now() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clock
}

// Schedule queues a frame at startAt on the fake clock.
func (m *MockSink) Schedule(frame audio.Frame, startAt float64) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, io.ErrClosedPipe
	}

	if startAt < m.clock {
		startAt = m.clock
	}

	buf := &mockBuffer{
		startAt: startAt,
		endAt:   startAt + frame.Seconds(),
		done:    make(chan struct{}),
	}
	m.buffers = append(m.buffers, buf)
	m.startTimes = append(m.startTimes, startAt)
	m.framesWritten.Add(1)
	return buf, nil
}

// StartTimes returns the clamped start time of every buffer ever scheduled,
// in scheduling order.
func (m *MockSink) StartTimes() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]float64, len(m.startTimes))
	copy(out, m.startTimes)
	return out
}

// Advance moves the fake clock forward and completes buffers whose end time
// has passed.
func (m *MockSink) Advance(d time.Duration) {
	m.mu.Lock()
	m.clock += d.Seconds()
	now := m.clock

	var completed []*mockBuffer
	remaining := m.buffers[:0]
	for _, buf := range m.buffers {
		if buf.endAt <= now {
			completed = append(completed, buf)
		} else {
			remaining = append(remaining, buf)
		}
	}
	m.buffers = remaining
	m.mu.Unlock()

	for _, buf := range completed {
		buf.complete()
	}
}

// StopAll stops every scheduled buffer immediately.
func (m *MockSink) StopAll() error {
	m.mu.Lock()
	buffers := m.buffers
	m.buffers = nil
	m.mu.Unlock()

	for _, buf := range buffers {
		buf.Stop()
	}
	return nil
}

// Pending returns the number of buffers not yet completed or stopped.
func (m *MockSink) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buffers)
}

// FramesWritten returns the total number of buffers ever scheduled.
func (m *MockSink) FramesWritten() int64 { return m.framesWritten.Load() }

// Config returns the sink configuration.
func (m *MockSink) Config() Config { return m.cfg }

// Name returns the backend name.
func (m *MockSink) Name() string { return "mock" }

// Close stops all buffers and releases the sink.
func (m *MockSink) Close() error {
	m.StopAll()
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

var _ Sink = (*MockSink)(nil)
