package audioio

import (
	"context"
	"io"

	"github.com/pulsedeck/voicepilot/pkg/audio"
)

// Source captures audio from a microphone or other input device.
type Source interface {
	// Start begins audio capture.
	// After calling Start, audio frames are delivered via Stream.
	// Failure to acquire the device surfaces here, before any frame is produced.
	Start(ctx context.Context) error

	// Stop halts audio capture.
	// It is safe to call Stop multiple times.
	Stop() error

	// Stream returns a channel that receives captured frames.
	// The channel is closed when the source is stopped.
	Stream() <-chan audio.Frame

	// Config returns the current audio configuration.
	Config() Config

	// Name returns the backend name (e.g., "mock").
	Name() string

	// Close releases all resources.
	// After Close, the source cannot be restarted.
	io.Closer
}
