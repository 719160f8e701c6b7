package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pulsedeck/voicepilot/internal/httpc"
)

// Defaults for the OpenAI-compatible API.
const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultImageModel = "gpt-image-1"
	DefaultTextModel  = "gpt-4o-mini"
	DefaultImageSize  = "1024x1024"
)

// Client is the standard HTTP-based generation provider.
// Works with any OpenAI-compatible API.
type Client struct {
	baseURL    string
	apiKey     string
	imageModel string
	textModel  string
	http       *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithBaseURL sets the API base URL (for compatible providers or testing).
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(url, "/") }
}

// WithImageModel sets the default image model.
func WithImageModel(model string) Option {
	return func(c *Client) { c.imageModel = model }
}

// WithTextModel sets the default text model.
func WithTextModel(model string) Option {
	return func(c *Client) { c.textModel = model }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithClientLogger sets the logger.
func WithClientLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a new generation client.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:    DefaultBaseURL,
		imageModel: DefaultImageModel,
		textModel:  DefaultTextModel,
		http:       httpc.Client,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return c, nil
}

// Generate produces an artifact of the requested kind.
func (c *Client) Generate(ctx context.Context, req *Request) (*Artifact, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	switch req.Kind {
	case KindImage:
		return c.generateImage(ctx, req)
	case KindText:
		return c.generateText(ctx, req)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, req.Kind)
	}
}

func (c *Client) generateImage(ctx context.Context, req *Request) (*Artifact, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = c.imageModel
	}
	size := req.Size
	if size == "" {
		size = DefaultImageSize
	}

	payload := map[string]any{
		"model":  model,
		"prompt": req.Prompt,
		"n":      1,
		"size":   size,
	}

	resp, err := c.post(ctx, "/images/generations", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var result struct {
		Data []struct {
			URL     string `json:"url"`
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("inference: decode response: %w", err)
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("inference: no image returned")
	}

	artifact := &Artifact{
		ID:        uuid.NewString(),
		Kind:      KindImage,
		URL:       result.Data[0].URL,
		Prompt:    req.Prompt,
		CreatedAt: time.Now(),
	}
	if result.Data[0].B64JSON != "" {
		data, err := base64.StdEncoding.DecodeString(result.Data[0].B64JSON)
		if err != nil {
			return nil, fmt.Errorf("inference: decode image data: %w", err)
		}
		artifact.Data = data
	}

	c.logger.Debug("image generated",
		"model", model,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return artifact, nil
}

func (c *Client) generateText(ctx context.Context, req *Request) (*Artifact, error) {
	model := req.Model
	if model == "" {
		model = c.textModel
	}

	payload := map[string]any{
		"model": model,
		"messages": []map[string]any{
			{"role": "user", "content": req.Prompt},
		},
	}

	resp, err := c.post(ctx, "/chat/completions", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("inference: decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("inference: no choices returned")
	}

	return &Artifact{
		ID:        uuid.NewString(),
		Kind:      KindText,
		Data:      []byte(result.Choices[0].Message.Content),
		Prompt:    req.Prompt,
		CreatedAt: time.Now(),
	}, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("inference: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("inference: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference: request failed: %w", err)
	}
	return resp, nil
}

func (c *Client) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var apiResp struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &apiResp); err == nil && apiResp.Error.Message != "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    apiResp.Error.Message,
			Code:       apiResp.Error.Code,
		}
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
	}
}

var _ Provider = (*Client)(nil)
