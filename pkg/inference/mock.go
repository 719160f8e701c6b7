package inference

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Mock implements Provider for testing.
type Mock struct {
	// GenerateFunc is called when Generate is invoked.
	GenerateFunc func(ctx context.Context, req *Request) (*Artifact, error)

	mu    sync.Mutex
	calls []*Request
}

// NewMock creates a mock provider that returns a canned artifact.
func NewMock() *Mock {
	return &Mock{
		GenerateFunc: func(ctx context.Context, req *Request) (*Artifact, error) {
			return &Artifact{
				ID:        uuid.NewString(),
				Kind:      req.Kind,
				URL:       "https://assets.example.com/mock",
				Data:      []byte("mock artifact"),
				Prompt:    req.Prompt,
				CreatedAt: time.Now(),
			}, nil
		},
	}
}

// Generate records the call and delegates to GenerateFunc.
func (m *Mock) Generate(ctx context.Context, req *Request) (*Artifact, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	return m.GenerateFunc(ctx, req)
}

// Calls returns every request received so far.
func (m *Mock) Calls() []*Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Request, len(m.calls))
	copy(out, m.calls)
	return out
}

var _ Provider = (*Mock)(nil)
