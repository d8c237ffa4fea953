package agentsession

import (
	"context"
	"testing"

	"github.com/forgecode/forge/internal/config"
	"github.com/forgecode/forge/internal/extensions"
	"github.com/forgecode/forge/internal/message"
	"github.com/forgecode/forge/internal/tools"
)

// fakeSummarizer returns a fixed summary without calling any backend.
type fakeSummarizer struct{ summary string }

func (f *fakeSummarizer) Summarize(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	return f.summary, nil
}

func newCompactableSession(t *testing.T) *Session {
	t.Helper()
	s := newTestSession(t, "turn reply")
	s.summarizer = &fakeSummarizer{summary: "a condensed summary"}

	for i := 0; i < 6; i++ {
		if _, err := s.store.AppendMessage(message.Message{
			Role:   message.RoleUser,
			Blocks: []message.Block{message.Text{Text: "filler message to pad the transcript"}},
		}); err != nil {
			t.Fatalf("append message: %v", err)
		}
	}
	return s
}

func TestCompactAppendsCompactionEntry(t *testing.T) {
	s := newCompactableSession(t)
	before := s.Store().EntryCount()

	result, err := s.Compact(context.Background(), "")
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if result == nil {
		t.Fatal("Compact returned nil result with no error")
	}
	if result.Summary != "a condensed summary" {
		t.Fatalf("Summary = %q, want %q", result.Summary, "a condensed summary")
	}
	if s.Store().EntryCount() != before+1 {
		t.Fatalf("EntryCount = %d, want %d (one new Compaction entry)", s.Store().EntryCount(), before+1)
	}
}

func TestEnqueueDuringCompactionHoldsUntilFlush(t *testing.T) {
	s := newCompactableSession(t)

	s.mu.Lock()
	s.compacting = true
	s.mu.Unlock()

	s.FollowUp("queued while compacting")

	if got, ok := s.Core().DrainQueued(); ok {
		t.Fatalf("DrainQueued returned %q, %v before flush; want nothing queued yet", got, ok)
	}

	s.flushCompactionQueue()

	got, ok := s.Core().DrainQueued()
	if !ok || got != "queued while compacting" {
		t.Fatalf("DrainQueued = %q, %v; want %q, true", got, ok, "queued while compacting")
	}
}

func TestNewSessionResetsStore(t *testing.T) {
	registry := tools.NewRegistry()
	s := New(Options{
		Backend:      &fakeBackend{reply: "ok"},
		Provider:     "anthropic",
		Model:        "claude-sonnet-4",
		ToolRegistry: registry,
		Runner:       extensions.NewRunner(nil),
		Settings:     config.DefaultSettings(),
		CWD:          "/tmp/project",
	})

	if _, err := s.Store().AppendMessage(message.Message{Role: message.RoleUser, Blocks: []message.Block{message.Text{Text: "hi"}}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	oldID := s.Store().GetSessionID()

	if err := s.NewSession(); err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if s.Store().GetSessionID() == oldID {
		t.Fatal("NewSession did not replace the session id")
	}
	if s.Store().EntryCount() != 0 {
		t.Fatalf("EntryCount = %d, want 0 on a fresh session", s.Store().EntryCount())
	}
}
