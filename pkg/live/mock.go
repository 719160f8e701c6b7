package live

import (
	"context"
	"sync"
)

// MockTransport is a Transport for tests and offline development.
// It hands out a single MockSession whose events are driven by the caller.
type MockTransport struct {
	// OpenErr, when set, makes Open fail (simulating an unreachable endpoint).
	OpenErr error

	mu      sync.Mutex
	session *MockSession

	// LastConfig records the config passed to the most recent Open.
	LastConfig SessionConfig
}

// NewMockTransport creates a mock transport.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// Open returns a fresh MockSession.
func (t *MockTransport) Open(ctx context.Context, cfg SessionConfig) (Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.OpenErr != nil {
		return nil, t.OpenErr
	}
	t.LastConfig = cfg
	t.session = NewMockSession()
	return t.session, nil
}

// Session returns the session created by the last Open, or nil.
func (t *MockTransport) Session() *MockSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session
}

var _ Transport = (*MockTransport)(nil)

// MockSession is a scriptable Session. Tests emit inbound events with Emit
// and inspect what the session core sent with SentAudio and SentResults.
type MockSession struct {
	mu sync.Mutex

	events chan Event
	closed bool

	// SendAudioErr, when set, makes SendAudio fail (transport unavailable).
	SendAudioErr error

	sentAudio   [][]int16
	sentResults []ToolResult
}

// NewMockSession creates an open mock session.
func NewMockSession() *MockSession {
	return &MockSession{events: make(chan Event, 64)}
}

// SendAudio records one outbound frame.
func (s *MockSession) SendAudio(samples []int16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.SendAudioErr != nil {
		return s.SendAudioErr
	}
	frame := make([]int16, len(samples))
	copy(frame, samples)
	s.sentAudio = append(s.sentAudio, frame)
	return nil
}

// SendToolResult records one outbound tool result.
func (s *MockSession) SendToolResult(res ToolResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.sentResults = append(s.sentResults, res)
	return nil
}

// Events returns the scripted event stream.
func (s *MockSession) Events() <-chan Event { return s.events }

// Emit delivers an inbound event to the session core.
// Emitting on a closed session is a no-op.
func (s *MockSession) Emit(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.events <- ev
}

// Close ends the event stream. Safe to call multiple times.
func (s *MockSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.events <- Event{Type: EventClosed}
	close(s.events)
	return nil
}

// IsClosed reports whether Close has been called.
func (s *MockSession) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// SentAudio returns every frame sent so far.
func (s *MockSession) SentAudio() [][]int16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]int16, len(s.sentAudio))
	copy(out, s.sentAudio)
	return out
}

// SentResults returns every tool result sent so far.
func (s *MockSession) SentResults() []ToolResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ToolResult, len(s.sentResults))
	copy(out, s.sentResults)
	return out
}

var _ Session = (*MockSession)(nil)
