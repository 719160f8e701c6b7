// Package inference provides one-shot generative requests for tool execution.
//
// Tools invoked during a voice session sometimes need their own generative
// call ("produce an image for this description"). The Provider interface is
// synchronous from the caller's point of view; the tool dispatcher runs it on
// its own goroutine so the audio pipeline never waits on it.
//
// Example usage:
//
//	client, _ := inference.NewClient(
//	    inference.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	)
//
//	artifact, _ := client.Generate(ctx, &inference.Request{
//	    Kind:   inference.KindImage,
//	    Prompt: "flat-lay photo of a summer picnic",
//	})
package inference

import (
	"context"
	"time"
)

// Kind identifies the type of artifact to generate.
type Kind string

const (
	// KindImage produces an image from a text description.
	KindImage Kind = "image"
	// KindText produces a short text completion (captions, idea expansions).
	KindText Kind = "text"
)

// Request describes one generation.
type Request struct {
	// Kind selects the artifact type.
	Kind Kind

	// Prompt is the generation instruction.
	Prompt string

	// Model overrides the provider default for this request.
	Model string

	// Size is the image dimensions (e.g., "1024x1024"). Image requests only.
	Size string
}

// Artifact is the product of one generation.
type Artifact struct {
	// ID uniquely identifies the artifact.
	ID string

	// Kind is the artifact type.
	Kind Kind

	// URL points at hosted artifact data, when the provider returns one.
	URL string

	// Data holds inline artifact bytes (image) or text (completion).
	Data []byte

	// Prompt is the instruction that produced this artifact.
	Prompt string

	// CreatedAt is when the artifact was produced.
	CreatedAt time.Time
}

// Text returns the artifact data as a string.
func (a *Artifact) Text() string {
	return string(a.Data)
}

// Provider executes one-shot generative requests.
type Provider interface {
	// Generate produces an artifact, blocking until done or ctx is cancelled.
	Generate(ctx context.Context, req *Request) (*Artifact, error)
}
