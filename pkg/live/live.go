// Package live defines the contract with the remote generative voice session.
//
// A Transport opens one bidirectional Session: outbound PCM16 audio frames and
// tool results go in, a stream of tagged events comes out. The session core
// consumes this contract only; the bundled Gemini implementation speaks the
// Live API over WebSocket.
package live

import (
	"context"
	"errors"
)

// Common errors returned by transports.
var (
	ErrNotConnected  = errors.New("live: session not connected")
	ErrClosed        = errors.New("live: session closed")
	ErrMissingAPIKey = errors.New("live: missing API key")
)

// ToolDeclaration describes one tool offered to the remote model.
type ToolDeclaration struct {
	// Name is the unique identifier for the tool (e.g., "record_content_idea").
	Name string `json:"name"`

	// Description explains what the tool does, helping the model decide when to use it.
	Description string `json:"description"`

	// Parameters defines the JSON schema for the tool's arguments.
	Parameters map[string]any `json:"parameters"`
}

// SessionConfig configures a remote session at open time.
type SessionConfig struct {
	// Model is the remote model identifier. Empty selects the transport default.
	Model string

	// SystemInstruction is the behavioral instruction string for the session.
	SystemInstruction string

	// Voice selects the synthesized voice. Empty selects the transport default.
	Voice string

	// InputSampleRate is the sample rate of outbound microphone audio in Hz.
	InputSampleRate int

	// OutputSampleRate is the sample rate of inbound synthesized audio in Hz.
	OutputSampleRate int

	// Tools is the closed registry of tools the model may invoke.
	Tools []ToolDeclaration
}

// ToolCall is a command issued by the remote model.
type ToolCall struct {
	// ID correlates the eventual result back to this call.
	ID string

	// Name is the tool being invoked.
	Name string

	// Arguments contains the parsed arguments from the model.
	Arguments map[string]any
}

// ToolResult is the reply to one ToolCall. Exactly one of Output or Error
// is meaningful; an error result still references the original call ID so
// the model can continue the conversation.
type ToolResult struct {
	ID     string
	Name   string
	Output string
	Error  string
}

// EventType tags an inbound session event.
type EventType string

const (
	// EventAudio carries a chunk of synthesized PCM16 audio.
	EventAudio EventType = "audio"
	// EventInputTranscript carries a fragment of the user's transcribed speech.
	EventInputTranscript EventType = "input_transcript"
	// EventOutputTranscript carries a fragment of the model's speech as text.
	EventOutputTranscript EventType = "output_transcript"
	// EventTurnComplete marks the end of one exchange turn.
	EventTurnComplete EventType = "turn_complete"
	// EventInterrupted signals barge-in: the user spoke over the model.
	EventInterrupted EventType = "interrupted"
	// EventToolCall carries a batch of tool invocations.
	EventToolCall EventType = "tool_call"
	// EventError carries a transport failure. The session is no longer usable.
	EventError EventType = "error"
	// EventClosed marks the end of the event stream.
	EventClosed EventType = "closed"
)

// Event is one tagged inbound event from the remote session.
// Only the fields relevant to Type are populated.
type Event struct {
	Type  EventType
	Audio []int16
	Text  string
	Calls []ToolCall
	Err   error
}

// Session is an open bidirectional conversation with the remote model.
type Session interface {
	// SendAudio sends one frame of PCM16 microphone audio. Fire-and-forget:
	// the transport does not acknowledge individual frames.
	SendAudio(samples []int16) error

	// SendToolResult returns a tool result to the model.
	SendToolResult(res ToolResult) error

	// Events returns the inbound event stream. The channel is closed after
	// an EventClosed is delivered.
	Events() <-chan Event

	// Close tears down the session. Safe to call multiple times.
	Close() error
}

// Transport opens remote sessions.
type Transport interface {
	Open(ctx context.Context, cfg SessionConfig) (Session, error)
}
