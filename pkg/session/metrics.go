package session

import (
	"sync"
	"time"
)

// Metrics tracks latency and volume for one conversation turn.
// Latencies are measured from the first input transcription fragment of the
// turn, the earliest local signal that the user finished speaking.
type Metrics struct {
	// Timestamps for key events
	TurnStartTime    time.Time // First input transcription fragment
	FirstAudioTime   time.Time // First remote audio chunk of the reply
	TurnCompleteTime time.Time // Turn boundary received

	// Computed latencies
	FirstAudioLatency time.Duration // Time to first remote audio chunk
	TurnLatency       time.Duration // Total turn duration

	// Counts for this conversation turn
	FramesIn  int // Microphone frames sent
	ChunksOut int // Remote audio chunks scheduled
}

// MetricsCollector collects per-turn metrics during a session.
// It is goroutine-safe and can be used from multiple callbacks.
type MetricsCollector struct {
	mu      sync.Mutex
	current Metrics
	history []Metrics
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		history: make([]Metrics, 0, 100),
	}
}

// MarkTurnStart records the start of a turn. Subsequent calls within the
// same turn are ignored.
func (m *MetricsCollector) MarkTurnStart() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.TurnStartTime.IsZero() {
		m.current.TurnStartTime = time.Now()
	}
}

// MarkFirstAudio records the first remote audio chunk of the reply.
// Returns the first-audio latency, or zero if the turn start is unknown
// or this is not the first chunk.
func (m *MetricsCollector) MarkFirstAudio() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.current.FirstAudioTime.IsZero() {
		return 0
	}
	m.current.FirstAudioTime = time.Now()
	if m.current.TurnStartTime.IsZero() {
		return 0
	}
	m.current.FirstAudioLatency = m.current.FirstAudioTime.Sub(m.current.TurnStartTime)
	return m.current.FirstAudioLatency
}

// MarkTurnComplete archives the current turn and resets for the next.
func (m *MetricsCollector) MarkTurnComplete() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current.TurnCompleteTime = time.Now()
	if !m.current.TurnStartTime.IsZero() {
		m.current.TurnLatency = m.current.TurnCompleteTime.Sub(m.current.TurnStartTime)
	}
	m.history = append(m.history, m.current)
	if len(m.history) > 100 {
		m.history = m.history[1:]
	}
	m.current = Metrics{}
}

// IncrementFramesIn increments the count of microphone frames sent.
func (m *MetricsCollector) IncrementFramesIn() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.FramesIn++
}

// IncrementChunksOut increments the count of remote audio chunks scheduled.
func (m *MetricsCollector) IncrementChunksOut() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.ChunksOut++
}

// Current returns the current turn's metrics snapshot.
func (m *MetricsCollector) Current() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Average returns average latencies over recent turns.
func (m *MetricsCollector) Average() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.history) == 0 {
		return Metrics{}
	}

	var avg Metrics
	for _, h := range m.history {
		avg.FirstAudioLatency += h.FirstAudioLatency
		avg.TurnLatency += h.TurnLatency
	}

	n := time.Duration(len(m.history))
	avg.FirstAudioLatency /= n
	avg.TurnLatency /= n
	return avg
}
