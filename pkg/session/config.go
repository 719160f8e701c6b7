package session

import (
	"errors"
	"time"
)

// Default audio formats for the remote session.
const (
	// DefaultInputSampleRate is the outbound microphone format in Hz.
	DefaultInputSampleRate = 16000

	// DefaultOutputSampleRate is the inbound synthesized audio format in Hz.
	DefaultOutputSampleRate = 24000
)

// Config holds all tunable parameters for a voice co-pilot session.
type Config struct {
	// Model is the remote model identifier. Empty selects the transport default.
	Model string

	// SystemPrompt is the behavioral instruction string for the remote model.
	SystemPrompt string

	// Voice selects the synthesized voice. Empty selects the transport default.
	Voice string

	// InputSampleRate is the outbound audio sample rate in Hz (default: 16000).
	InputSampleRate int

	// OutputSampleRate is the inbound audio sample rate in Hz (default: 24000).
	OutputSampleRate int

	// CaptureBuffer is the duration of each capture buffer (default: 20ms).
	CaptureBuffer time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		InputSampleRate:  DefaultInputSampleRate,
		OutputSampleRate: DefaultOutputSampleRate,
		CaptureBuffer:    20 * time.Millisecond,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.InputSampleRate <= 0 {
		return errors.New("session: input sample rate must be positive")
	}
	if c.OutputSampleRate <= 0 {
		return errors.New("session: output sample rate must be positive")
	}
	if c.CaptureBuffer <= 0 {
		return errors.New("session: capture buffer duration must be positive")
	}
	return nil
}

// WithSystemPrompt returns a copy with the system prompt set.
func (c Config) WithSystemPrompt(prompt string) Config {
	c.SystemPrompt = prompt
	return c
}

// WithModel returns a copy with the model set.
func (c Config) WithModel(model string) Config {
	c.Model = model
	return c
}

// WithVoice returns a copy with the voice set.
func (c Config) WithVoice(voice string) Config {
	c.Voice = voice
	return c
}
