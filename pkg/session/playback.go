package session

import (
	"log/slog"
	"sync"

	"github.com/pulsedeck/voicepilot/pkg/audio"
	"github.com/pulsedeck/voicepilot/pkg/audioio"
)

// Scheduler renders remote audio chunks in arrival order, gaplessly, and
// supports instant full-stop on interruption.
//
// It keeps one timeline cursor (the next free start time on the device clock)
// and the live set of scheduled buffers. Chunks arriving in order are placed
// back to back with no gap and no overlap; an interruption stops every live
// buffer and resets the cursor so the next turn starts immediately.
type Scheduler struct {
	sink   audioio.Sink
	logger *slog.Logger

	mu     sync.Mutex
	cursor float64 // next free start time in seconds; 0 = unconstrained
	nextID uint64
	live   map[uint64]audioio.Handle
}

// NewScheduler creates a scheduler on the given sink.
func NewScheduler(sink audioio.Sink, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		sink:   sink,
		logger: logger,
		live:   make(map[uint64]audioio.Handle),
	}
}

// Enqueue schedules one chunk at the earliest gapless position.
func (s *Scheduler) Enqueue(frame audio.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	startAt := s.cursor
	if now := s.sink.Now(); startAt < now {
		startAt = now
	}

	handle, err := s.sink.Schedule(frame, startAt)
	if err != nil {
		return err
	}
	s.cursor = startAt + frame.Seconds()

	s.nextID++
	id := s.nextID
	s.live[id] = handle

	// Natural completion removes the buffer from the live set. The handle
	// may already be stopped by an interruption; removal is idempotent.
	go func() {
		<-handle.Done()
		s.mu.Lock()
		delete(s.live, id)
		s.mu.Unlock()
	}()

	return nil
}

// Interrupt stops every live buffer and resets the timeline cursor.
// The next chunk of the new remote turn plays as soon as it arrives instead
// of waiting behind the cancelled tail.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	stopped := len(s.live)
	s.live = make(map[uint64]audioio.Handle)
	s.cursor = 0
	s.mu.Unlock()

	if err := s.sink.StopAll(); err != nil {
		s.logger.Warn("failed to stop playback", "error", err)
	}

	if stopped > 0 {
		s.logger.Debug("playback interrupted", "stopped", stopped)
	}
}

// Stop cancels all playback. Part of session teardown; idempotent.
func (s *Scheduler) Stop() {
	s.Interrupt()
}

// LiveCount returns the number of buffers currently in the live set.
func (s *Scheduler) LiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Cursor returns the next free start time, or 0 if unconstrained.
func (s *Scheduler) Cursor() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}
