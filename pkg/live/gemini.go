package live

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pulsedeck/voicepilot/pkg/audio"
)

const (
	// Gemini Live API WebSocket endpoint
	geminiLiveURL = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	// Default model for Gemini Live
	geminiDefaultModel = "models/gemini-2.0-flash-exp"

	// Default synthesized voice (Puck, Charon, Kore, Fenrir, Aoede)
	geminiDefaultVoice = "Puck"

	geminiHandshakeTimeout = 10 * time.Second
	geminiPingPeriod       = 30 * time.Second
	geminiWriteTimeout     = 10 * time.Second
)

// Gemini is a Transport backed by Google's Gemini Live API.
// It provides a single low-latency speech-to-speech stream with VAD, ASR,
// generation, and TTS handled remotely.
type Gemini struct {
	apiKey string
	url    string
	logger *slog.Logger
}

// GeminiOption configures the Gemini transport.
type GeminiOption func(*Gemini)

// WithLogger sets the logger used by sessions.
func WithLogger(logger *slog.Logger) GeminiOption {
	return func(g *Gemini) { g.logger = logger }
}

// WithEndpoint overrides the WebSocket endpoint (for testing).
func WithEndpoint(url string) GeminiOption {
	return func(g *Gemini) { g.url = url }
}

// NewGemini creates a Gemini Live transport.
func NewGemini(apiKey string, opts ...GeminiOption) (*Gemini, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	g := &Gemini{
		apiKey: apiKey,
		url:    geminiLiveURL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Open dials the Live endpoint, sends the session setup, and starts the
// read loop. The returned session is ready once the server acknowledges setup.
func (g *Gemini) Open(ctx context.Context, cfg SessionConfig) (Session, error) {
	url := g.url
	if !strings.Contains(url, "key=") {
		url = fmt.Sprintf("%s?key=%s", url, g.apiKey)
	}

	header := make(http.Header)
	header.Set("Content-Type", "application/json")

	dialer := websocket.Dialer{
		HandshakeTimeout: geminiHandshakeTimeout,
	}

	ws, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("live/gemini: failed to connect: %w", err)
	}

	s := &geminiSession{
		ws:     ws,
		logger: g.logger,
		events: make(chan Event, 64),
		stopCh: make(chan struct{}),
	}

	if err := s.sendSetup(cfg); err != nil {
		ws.Close()
		return nil, fmt.Errorf("live/gemini: failed to configure session: %w", err)
	}

	go s.readLoop()
	go s.keepAlive()

	g.logger.Debug("gemini live session opened", "model", cfg.Model)
	return s, nil
}

var _ Transport = (*Gemini)(nil)

// geminiSession is one open Live conversation.
type geminiSession struct {
	ws     *websocket.Conn
	wsMu   sync.Mutex
	logger *slog.Logger

	events chan Event

	closeOnce sync.Once
	stopCh    chan struct{}
}

// sendSetup sends the initial configuration message.
func (s *geminiSession) sendSetup(cfg SessionConfig) error {
	model := cfg.Model
	if model == "" {
		model = geminiDefaultModel
	}
	voice := cfg.Voice
	if voice == "" {
		voice = geminiDefaultVoice
	}

	setup := map[string]any{
		"model": model,
		"generation_config": map[string]any{
			"response_modalities": []string{"AUDIO"},
			"speech_config": map[string]any{
				"voice_config": map[string]any{
					"prebuilt_voice_config": map[string]any{
						"voice_name": voice,
					},
				},
			},
		},
		"system_instruction": map[string]any{
			"parts": []map[string]any{
				{"text": cfg.SystemInstruction},
			},
		},
		// Ask the server to transcribe both directions so the client can
		// build a conversation transcript without running its own ASR.
		"input_audio_transcription":  map[string]any{},
		"output_audio_transcription": map[string]any{},
	}

	if len(cfg.Tools) > 0 {
		var decls []map[string]any
		for _, tool := range cfg.Tools {
			decls = append(decls, map[string]any{
				"name":        tool.Name,
				"description": tool.Description,
				"parameters":  tool.Parameters,
			})
		}
		setup["tools"] = []map[string]any{
			{"function_declarations": decls},
		}
	}

	return s.sendJSON(map[string]any{"setup": setup})
}

// SendAudio sends one PCM16 frame as a realtime media chunk.
func (s *geminiSession) SendAudio(samples []int16) error {
	select {
	case <-s.stopCh:
		return ErrClosed
	default:
	}

	msg := map[string]any{
		"realtime_input": map[string]any{
			"media_chunks": []map[string]any{
				{
					"data":      audio.EncodeBase64(samples),
					"mime_type": "audio/pcm",
				},
			},
		},
	}
	return s.sendJSON(msg)
}

// SendToolResult returns a tool result to the model.
func (s *geminiSession) SendToolResult(res ToolResult) error {
	select {
	case <-s.stopCh:
		return ErrClosed
	default:
	}

	response := map[string]any{}
	if res.Error != "" {
		response["error"] = res.Error
	} else {
		response["result"] = res.Output
	}

	msg := map[string]any{
		"tool_response": map[string]any{
			"function_responses": []map[string]any{
				{
					"id":       res.ID,
					"name":     res.Name,
					"response": response,
				},
			},
		},
	}
	return s.sendJSON(msg)
}

// Events returns the inbound event stream.
func (s *geminiSession) Events() <-chan Event { return s.events }

// Close tears down the WebSocket. Safe to call multiple times.
func (s *geminiSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopCh)
		err = s.ws.Close()
	})
	return err
}

func (s *geminiSession) closed() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

// keepAlive sends periodic pings to keep the connection open.
func (s *geminiSession) keepAlive() {
	ticker := time.NewTicker(geminiPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.wsMu.Lock()
			err := s.ws.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(geminiWriteTimeout))
			s.wsMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// readLoop pumps WebSocket messages into the event channel.
func (s *geminiSession) readLoop() {
	defer func() {
		s.emit(Event{Type: EventClosed})
		close(s.events)
	}()

	for {
		_, message, err := s.ws.ReadMessage()
		if err != nil {
			if !s.closed() {
				s.emit(Event{Type: EventError, Err: fmt.Errorf("live/gemini: read: %w", err)})
			}
			return
		}

		var msg map[string]any
		if err := json.Unmarshal(message, &msg); err != nil {
			s.logger.Warn("gemini: dropping unparseable message", "error", err)
			continue
		}

		s.handleMessage(msg)
	}
}

// handleMessage demultiplexes one wire message. Unknown shapes are ignored
// for forward compatibility.
func (s *geminiSession) handleMessage(msg map[string]any) {
	if _, ok := msg["setupComplete"]; ok {
		s.logger.Debug("gemini live session ready")
		return
	}

	if serverContent, ok := msg["serverContent"].(map[string]any); ok {
		s.handleServerContent(serverContent)
		return
	}

	if toolCall, ok := msg["toolCall"].(map[string]any); ok {
		s.handleToolCall(toolCall)
		return
	}

	if _, ok := msg["toolCallCancellation"]; ok {
		s.logger.Debug("gemini: tool call cancelled upstream")
		return
	}

	s.logger.Debug("gemini: ignoring unknown message shape")
}

// handleServerContent processes audio, transcription, and turn signals.
func (s *geminiSession) handleServerContent(content map[string]any) {
	if interrupted, ok := content["interrupted"].(bool); ok && interrupted {
		s.emit(Event{Type: EventInterrupted})
		return
	}

	if modelTurn, ok := content["modelTurn"].(map[string]any); ok {
		if parts, ok := modelTurn["parts"].([]any); ok {
			for _, part := range parts {
				partMap, ok := part.(map[string]any)
				if !ok {
					continue
				}
				s.handlePart(partMap)
			}
		}
	}

	if inputTranscript, ok := content["inputTranscription"].(map[string]any); ok {
		if text, ok := inputTranscript["text"].(string); ok && text != "" {
			s.emit(Event{Type: EventInputTranscript, Text: text})
		}
	}

	if outputTranscript, ok := content["outputTranscription"].(map[string]any); ok {
		if text, ok := outputTranscript["text"].(string); ok && text != "" {
			s.emit(Event{Type: EventOutputTranscript, Text: text})
		}
	}

	// Checked last so transcript fragments bundled with the final message
	// are delivered before the turn boundary.
	if turnComplete, ok := content["turnComplete"].(bool); ok && turnComplete {
		s.emit(Event{Type: EventTurnComplete})
	}
}

// handlePart decodes a single model turn part (inline audio or text).
func (s *geminiSession) handlePart(part map[string]any) {
	if inlineData, ok := part["inlineData"].(map[string]any); ok {
		mimeType, _ := inlineData["mimeType"].(string)
		if !strings.HasPrefix(mimeType, "audio/pcm") {
			return
		}
		data, _ := inlineData["data"].(string)
		raw, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			s.logger.Warn("gemini: dropping undecodable audio chunk", "error", err)
			return
		}
		samples, err := audio.Unmarshal(raw)
		if err != nil {
			s.logger.Warn("gemini: dropping malformed audio chunk", "error", err)
			return
		}
		if len(samples) > 0 {
			s.emit(Event{Type: EventAudio, Audio: samples})
		}
		return
	}

	if text, ok := part["text"].(string); ok && text != "" {
		s.emit(Event{Type: EventOutputTranscript, Text: text})
	}
}

// handleToolCall converts a functionCalls batch into one EventToolCall.
func (s *geminiSession) handleToolCall(toolCall map[string]any) {
	functionCalls, ok := toolCall["functionCalls"].([]any)
	if !ok {
		return
	}

	var calls []ToolCall
	for _, fc := range functionCalls {
		fcMap, ok := fc.(map[string]any)
		if !ok {
			continue
		}
		name, _ := fcMap["name"].(string)
		id, _ := fcMap["id"].(string)
		args, _ := fcMap["args"].(map[string]any)
		calls = append(calls, ToolCall{ID: id, Name: name, Arguments: args})
	}

	if len(calls) > 0 {
		s.emit(Event{Type: EventToolCall, Calls: calls})
	}
}

func (s *geminiSession) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.stopCh:
	}
}

// sendJSON sends a JSON message over the WebSocket.
func (s *geminiSession) sendJSON(v any) error {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()

	if s.ws == nil {
		return ErrNotConnected
	}
	s.ws.SetWriteDeadline(time.Now().Add(geminiWriteTimeout))
	return s.ws.WriteJSON(v)
}

var _ Session = (*geminiSession)(nil)
