package audioio

import (
	"context"
	"io"

	"github.com/pulsedeck/voicepilot/pkg/audio"
)

// Sink plays audio buffers scheduled against the device clock.
//
// Unlike a streaming writer, a Sink accepts each buffer with an explicit start
// time so the caller controls gapless sequencing and can cancel every in-flight
// buffer at once. Times are in seconds on the device clock returned by Now.
type Sink interface {
	// Start prepares the output device for playback.
	Start(ctx context.Context) error

	// Now returns the current device clock time in seconds.
	// The clock is monotonic for the life of the sink.
	Now() float64

	// Schedule queues a frame to begin playing at startAt on the device clock.
	// A startAt in the past plays as soon as possible. The returned Handle
	// allows stopping this buffer and observing its completion.
	Schedule(frame audio.Frame, startAt float64) (Handle, error)

	// StopAll immediately stops every scheduled and playing buffer.
	// It is safe to call StopAll multiple times.
	StopAll() error

	// Config returns the current audio configuration.
	Config() Config

	// Name returns the backend name (e.g., "mock").
	Name() string

	// Close releases all resources.
	// After Close, the sink cannot be restarted.
	io.Closer
}

// Handle refers to one scheduled buffer on a Sink.
type Handle interface {
	// Stop cancels this buffer immediately. Stopping a finished buffer is a no-op.
	Stop()

	// Done is closed when the buffer finishes playing or is stopped.
	Done() <-chan struct{}
}
