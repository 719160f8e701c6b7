// Package config provides configuration helpers for voicepilot commands.
package config

import (
	"fmt"
	"os"
)

// Defaults for the status server and audio formats.
const (
	DefaultWebPort          = "8090"
	DefaultInputSampleRate  = 16000
	DefaultOutputSampleRate = 24000
)

// GoogleAPIKey returns the Gemini API key from GOOGLE_API_KEY.
// Exits with a usage hint if not set.
func GoogleAPIKey() string {
	key := os.Getenv("GOOGLE_API_KEY")
	if key == "" {
		fmt.Fprintln(os.Stderr, "Error: GOOGLE_API_KEY environment variable is required")
		fmt.Fprintln(os.Stderr, "Usage: GOOGLE_API_KEY=... go run ./cmd/voicepilot")
		os.Exit(1)
	}
	return key
}

// OpenAIKey returns the OpenAI API key from OPENAI_API_KEY.
// Falls back to empty; image generation tools are disabled without it.
func OpenAIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// WebPort returns the status server port from WEB_PORT or the default.
func WebPort() string {
	if port := os.Getenv("WEB_PORT"); port != "" {
		return port
	}
	return DefaultWebPort
}

// LogLevel returns the log level from LOG_LEVEL or "info".
func LogLevel() string {
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		return lvl
	}
	return "info"
}

// AudioBackend returns the audio backend from AUDIO_BACKEND or "auto".
func AudioBackend() string {
	if backend := os.Getenv("AUDIO_BACKEND"); backend != "" {
		return backend
	}
	return "auto"
}
