package session

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/pulsedeck/voicepilot/pkg/audio"
	"github.com/pulsedeck/voicepilot/pkg/audioio"
)

// capturePump forwards microphone frames to the remote session while the
// session is active. It performs no buffering of its own: a frame the
// transport cannot take right now is dropped, since live audio has no replay
// value once stale.
type capturePump struct {
	source     audioio.Source
	targetRate int
	send       func(samples []int16) error
	logger     *slog.Logger

	sent    atomic.Int64
	dropped atomic.Int64
}

func newCapturePump(source audioio.Source, targetRate int, send func([]int16) error, logger *slog.Logger) *capturePump {
	if logger == nil {
		logger = slog.Default()
	}
	return &capturePump{
		source:     source,
		targetRate: targetRate,
		send:       send,
		logger:     logger,
	}
}

// run forwards frames until the source stream closes or ctx is cancelled.
func (p *capturePump) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-p.source.Stream():
			if !ok {
				return
			}
			samples := frame.Samples
			if frame.SampleRate != p.targetRate && frame.SampleRate != 0 {
				samples = audio.Resample(samples, frame.SampleRate, p.targetRate)
			}
			if err := p.send(samples); err != nil {
				p.dropped.Add(1)
				p.logger.Debug("capture frame dropped", "error", err)
				continue
			}
			p.sent.Add(1)
		}
	}
}

// Sent returns the number of frames forwarded to the transport.
func (p *capturePump) Sent() int64 { return p.sent.Load() }

// Dropped returns the number of frames dropped on transport failure.
func (p *capturePump) Dropped() int64 { return p.dropped.Load() }
