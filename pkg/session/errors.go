package session

import (
	"errors"
	"fmt"
)

// Sentinel errors for the session package.
var (
	// ErrAlreadyActive indicates Start was called while a session is running.
	// The microphone and speaker have exactly one owner at a time.
	ErrAlreadyActive = errors.New("session: already active")

	// ErrNotActive indicates an operation that requires a running session.
	ErrNotActive = errors.New("session: not active")

	// ErrClosed indicates the controller was disposed and cannot be restarted.
	ErrClosed = errors.New("session: controller closed")

	// ErrDuplicateTool indicates two tools were registered under one name.
	ErrDuplicateTool = errors.New("session: duplicate tool name")
)

// DeviceError wraps a capture or playback device failure.
// Device errors are fatal to the session and transition it to Errored.
type DeviceError struct {
	Device string // "capture" or "playback"
	Err    error
}

// Error implements the error interface.
func (e *DeviceError) Error() string {
	return fmt.Sprintf("session: %s device: %v", e.Device, e.Err)
}

// Unwrap returns the underlying error.
func (e *DeviceError) Unwrap() error { return e.Err }

// TransportError wraps a remote session failure.
// Transport errors are fatal to the session and transition it to Errored.
type TransportError struct {
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("session: transport: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error { return e.Err }
