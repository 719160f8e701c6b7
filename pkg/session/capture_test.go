package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/pulsedeck/voicepilot/pkg/audio"
	"github.com/pulsedeck/voicepilot/pkg/audioio"
)

func newTestSource(t *testing.T, sampleRate int) *audioio.MockSource {
	t.Helper()
	cfg := audioio.DefaultCaptureConfig()
	cfg.Backend = audioio.BackendMock
	cfg.SampleRate = sampleRate
	src := audioio.NewMockSource(cfg, nil)
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("start source: %v", err)
	}
	t.Cleanup(func() { src.Close() })
	return src
}

func TestCapturePumpForwardsFrames(t *testing.T) {
	src := newTestSource(t, 16000)

	var mu sync.Mutex
	var received [][]int16
	pump := newCapturePump(src, 16000, func(samples []int16) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, samples)
		return nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pump.run(ctx)

	src.Push(audio.Frame{Samples: []int16{1, 2, 3}, SampleRate: 16000})
	src.Push(audio.Frame{Samples: []int16{4, 5, 6}, SampleRate: 16000})

	waitFor(t, func() bool { return pump.Sent() == 2 })

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 {
		t.Fatalf("received %d frames", len(received))
	}
	if received[0][0] != 1 || received[1][0] != 4 {
		t.Errorf("frames out of order: %v / %v", received[0], received[1])
	}
}

func TestCapturePumpResamplesMismatchedRate(t *testing.T) {
	src := newTestSource(t, 48000)

	frameCh := make(chan []int16, 1)
	pump := newCapturePump(src, 16000, func(samples []int16) error {
		frameCh <- samples
		return nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pump.run(ctx)

	src.Push(audio.Frame{Samples: make([]int16, 480), SampleRate: 48000})

	waitFor(t, func() bool { return pump.Sent() == 1 })
	got := <-frameCh
	if len(got) != 160 {
		t.Errorf("resampled frame has %d samples, want 160", len(got))
	}
}

func TestCapturePumpDropsOnSendFailure(t *testing.T) {
	src := newTestSource(t, 16000)

	failing := errors.New("transport unavailable")
	var calls int
	var mu sync.Mutex
	pump := newCapturePump(src, 16000, func(samples []int16) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return failing
		}
		return nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pump.run(ctx)

	src.Push(audio.Frame{Samples: []int16{1}, SampleRate: 16000})
	src.Push(audio.Frame{Samples: []int16{2}, SampleRate: 16000})

	// The failed frame is dropped and the pump keeps going.
	waitFor(t, func() bool { return pump.Sent() == 1 && pump.Dropped() == 1 })
}

func TestCapturePumpStopsOnStreamClose(t *testing.T) {
	src := newTestSource(t, 16000)

	pump := newCapturePump(src, 16000, func(samples []int16) error { return nil }, nil)

	done := make(chan struct{})
	go func() {
		pump.run(context.Background())
		close(done)
	}()

	src.Stop()
	waitFor(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	})
}
