// Package plan defines the callback contract into the content-planning system.
//
// The voice co-pilot records content ideas on the user's behalf; where those
// ideas land (calendar, database, queue) is the hosting application's concern.
// This package only defines the interface the built-in tools call, plus an
// in-memory implementation for tests and the demo binary.
package plan

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Idea is one recorded content idea.
type Idea struct {
	// ID uniquely identifies the idea.
	ID string `json:"id"`

	// Title is a short working title.
	Title string `json:"title"`

	// Notes holds free-form detail captured during the conversation.
	Notes string `json:"notes"`

	// Platforms lists target platforms (e.g., "instagram", "tiktok").
	Platforms []string `json:"platforms"`

	// CreatedAt is when the idea was recorded.
	CreatedAt time.Time `json:"created_at"`
}

// Planner receives content ideas produced during a session.
type Planner interface {
	// RecordIdea persists one idea into the content plan.
	RecordIdea(ctx context.Context, idea Idea) error
}

// MemoryPlanner keeps ideas in memory. Used by tests and the demo binary;
// production hosts register their own Planner.
type MemoryPlanner struct {
	mu    sync.Mutex
	ideas []Idea
}

// NewMemoryPlanner creates an empty in-memory planner.
func NewMemoryPlanner() *MemoryPlanner {
	return &MemoryPlanner{}
}

// RecordIdea appends the idea, assigning an ID and timestamp if unset.
func (p *MemoryPlanner) RecordIdea(ctx context.Context, idea Idea) error {
	if idea.ID == "" {
		idea.ID = uuid.NewString()
	}
	if idea.CreatedAt.IsZero() {
		idea.CreatedAt = time.Now()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.ideas = append(p.ideas, idea)
	return nil
}

// Ideas returns a copy of every recorded idea in arrival order.
func (p *MemoryPlanner) Ideas() []Idea {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Idea, len(p.ideas))
	copy(out, p.ideas)
	return out
}

var _ Planner = (*MemoryPlanner)(nil)
