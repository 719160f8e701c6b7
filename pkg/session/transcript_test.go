package session

import (
	"testing"
)

func TestTranscriptFragmentsConcatenate(t *testing.T) {
	tr := NewTranscript()

	tr.AddInput("Hel")
	tr.AddInput("lo")

	if got := len(tr.Entries()); got != 0 {
		t.Fatalf("expected no entries before turn completes, got %d", got)
	}

	appended := tr.CompleteTurn()
	if len(appended) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(appended))
	}
	if appended[0].Text != "Hello" {
		t.Errorf("expected concatenated text %q, got %q", "Hello", appended[0].Text)
	}
	if appended[0].Speaker != SpeakerUser {
		t.Errorf("expected speaker %q, got %q", SpeakerUser, appended[0].Speaker)
	}
}

func TestTranscriptInputBeforeOutput(t *testing.T) {
	tr := NewTranscript()

	// Output fragments can arrive before input transcription catches up.
	tr.AddOutput("Sure, ")
	tr.AddInput("What should I post?")
	tr.AddOutput("try a reel.")

	entries := tr.CompleteTurn()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Speaker != SpeakerUser {
		t.Errorf("expected user entry first, got %q", entries[0].Speaker)
	}
	if entries[1].Speaker != SpeakerRemote {
		t.Errorf("expected remote entry second, got %q", entries[1].Speaker)
	}
	if entries[1].Text != "Sure, try a reel." {
		t.Errorf("unexpected remote text %q", entries[1].Text)
	}
	if entries[0].ID >= entries[1].ID {
		t.Errorf("expected ascending IDs, got %d then %d", entries[0].ID, entries[1].ID)
	}
}

func TestTranscriptEmptyTurnProducesNoEntries(t *testing.T) {
	tr := NewTranscript()

	tr.AddInput("   ")
	if appended := tr.CompleteTurn(); len(appended) != 0 {
		t.Fatalf("expected no entries for whitespace-only turn, got %d", len(appended))
	}
	if appended := tr.CompleteTurn(); len(appended) != 0 {
		t.Fatalf("expected no entries for empty turn, got %d", len(appended))
	}
}

func TestTranscriptTurnsAccumulate(t *testing.T) {
	tr := NewTranscript()

	tr.AddInput("first question")
	tr.AddOutput("first answer")
	tr.CompleteTurn()

	tr.AddInput("second question")
	tr.CompleteTurn()

	entries := tr.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[2].Text != "second question" {
		t.Errorf("unexpected final entry text %q", entries[2].Text)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].ID <= entries[i-1].ID {
			t.Errorf("IDs not ascending at index %d", i)
		}
	}
}

func TestTranscriptAppendRemote(t *testing.T) {
	tr := NewTranscript()

	tr.AddInput("make me a picture")
	entry := tr.AppendRemote("Generated image", &ArtifactRef{ID: "art-1", Kind: "image", URL: "https://example.com/a.png"})

	if entry.Speaker != SpeakerRemote {
		t.Errorf("expected remote speaker, got %q", entry.Speaker)
	}
	if entry.Attachment == nil || entry.Attachment.ID != "art-1" {
		t.Errorf("expected attachment art-1, got %+v", entry.Attachment)
	}

	// The pending input survives the artifact entry and commits at the
	// turn boundary as usual.
	entries := tr.CompleteTurn()
	if len(entries) != 1 || entries[0].Text != "make me a picture" {
		t.Fatalf("expected pending input to commit, got %+v", entries)
	}
}

func TestTranscriptDiscardPending(t *testing.T) {
	tr := NewTranscript()

	tr.AddInput("half spoken")
	tr.AddOutput("half answered")
	tr.DiscardPending()

	if appended := tr.CompleteTurn(); len(appended) != 0 {
		t.Fatalf("expected discarded buffers to produce no entries, got %d", len(appended))
	}
}

func TestTranscriptOnAppendedCallback(t *testing.T) {
	tr := NewTranscript()

	var batches [][]Entry
	tr.OnAppended(func(entries []Entry) {
		batches = append(batches, entries)
	})

	tr.AddInput("hi")
	tr.AddOutput("hello")
	tr.CompleteTurn()
	tr.CompleteTurn() // empty turn, no callback

	if len(batches) != 1 {
		t.Fatalf("expected 1 callback batch, got %d", len(batches))
	}
	if len(batches[0]) != 2 {
		t.Errorf("expected 2 entries in batch, got %d", len(batches[0]))
	}
}
