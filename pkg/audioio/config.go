// Package audioio provides the capture and playback device capability interfaces.
//
// The session core never talks to hardware directly. It consumes a Source for
// microphone capture and a Sink for scheduled playback, so timing logic can be
// tested against the mock backend's deterministic clock. Hosting applications
// register real backends for their platform.
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto automatically selects the best available backend.
	BackendAuto Backend = "auto"
	// BackendMock uses a deterministic in-memory implementation for testing.
	BackendMock Backend = "mock"
)

// Config holds audio device configuration.
type Config struct {
	// Backend specifies which audio backend to use.
	// Default: "auto" (selects best available for platform)
	Backend Backend `json:"backend"`

	// SampleRate is the audio sample rate in Hz.
	// Default: 16000 for capture, 24000 for playback.
	SampleRate int `json:"sample_rate"`

	// Channels is the number of audio channels.
	// Default: 1 (mono)
	Channels int `json:"channels"`

	// BufferDuration is the size of capture buffers.
	// Default: 20ms (320 samples at 16kHz)
	BufferDuration time.Duration `json:"buffer_duration"`

	// Device is the platform-specific device identifier.
	Device string `json:"device"`
}

// DefaultCaptureConfig returns a Config with capture defaults.
func DefaultCaptureConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     16000,
		Channels:       1,
		BufferDuration: 20 * time.Millisecond,
	}
}

// DefaultPlaybackConfig returns a Config with playback defaults.
func DefaultPlaybackConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     24000,
		Channels:       1,
		BufferDuration: 20 * time.Millisecond,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration)
	}
	return nil
}

// BufferSize returns the number of samples per capture buffer.
func (c *Config) BufferSize() int {
	return int(float64(c.SampleRate) * c.BufferDuration.Seconds())
}
