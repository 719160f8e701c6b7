package session

import (
	"strings"
	"sync"
)

// Speaker identifies who produced a transcript entry.
type Speaker string

const (
	// SpeakerUser marks entries transcribed from the microphone.
	SpeakerUser Speaker = "user"
	// SpeakerRemote marks entries spoken or produced by the remote model.
	SpeakerRemote Speaker = "remote"
)

// ArtifactRef points at a generated artifact attached to a transcript entry.
type ArtifactRef struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	URL  string `json:"url,omitempty"`
}

// Entry is one committed, immutable transcript entry.
// Entries are append-only and ordered by completion time.
type Entry struct {
	ID         uint64       `json:"id"`
	Speaker    Speaker      `json:"speaker"`
	Text       string       `json:"text"`
	Attachment *ArtifactRef `json:"attachment,omitempty"`
}

// Transcript accumulates streamed transcription fragments from both directions
// and commits them into ordered entries at turn boundaries.
//
// An in-progress utterance is not an entry: fragments concatenate into a
// per-direction pending buffer that materializes only when the turn completes.
type Transcript struct {
	mu sync.Mutex

	nextID  uint64
	entries []Entry

	pendingInput  strings.Builder
	pendingOutput strings.Builder

	onAppended func([]Entry)
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// OnAppended sets the callback invoked with each batch of committed entries.
func (t *Transcript) OnAppended(fn func([]Entry)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onAppended = fn
}

// AddInput appends a fragment of the user's transcribed speech.
func (t *Transcript) AddInput(fragment string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pendingInput.WriteString(fragment)
}

// AddOutput appends a fragment of the remote model's speech.
func (t *Transcript) AddOutput(fragment string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pendingOutput.WriteString(fragment)
}

// CompleteTurn commits the pending buffers as entries, user speech first,
// and clears both. A turn with no speech in either direction produces no
// entries. The input-before-output ordering reflects causal order even though
// both directions streamed concurrently.
func (t *Transcript) CompleteTurn() []Entry {
	t.mu.Lock()

	var appended []Entry
	if text := strings.TrimSpace(t.pendingInput.String()); text != "" {
		appended = append(appended, t.appendLocked(SpeakerUser, text, nil))
	}
	if text := strings.TrimSpace(t.pendingOutput.String()); text != "" {
		appended = append(appended, t.appendLocked(SpeakerRemote, text, nil))
	}
	t.pendingInput.Reset()
	t.pendingOutput.Reset()

	fn := t.onAppended
	t.mu.Unlock()

	if fn != nil && len(appended) > 0 {
		fn(appended)
	}
	return appended
}

// AppendRemote commits a remote entry immediately, outside the turn flow.
// Used for generated artifacts, which have no matching transcription fragment.
func (t *Transcript) AppendRemote(text string, attachment *ArtifactRef) Entry {
	t.mu.Lock()
	entry := t.appendLocked(SpeakerRemote, text, attachment)
	fn := t.onAppended
	t.mu.Unlock()

	if fn != nil {
		fn([]Entry{entry})
	}
	return entry
}

func (t *Transcript) appendLocked(speaker Speaker, text string, attachment *ArtifactRef) Entry {
	t.nextID++
	entry := Entry{
		ID:         t.nextID,
		Speaker:    speaker,
		Text:       text,
		Attachment: attachment,
	}
	t.entries = append(t.entries, entry)
	return entry
}

// DiscardPending clears both pending buffers without committing them.
// Called on teardown so a half-spoken utterance does not leak into a
// later session.
func (t *Transcript) DiscardPending() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pendingInput.Reset()
	t.pendingOutput.Reset()
}

// Entries returns a copy of all committed entries in order.
func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}
