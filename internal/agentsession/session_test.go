package agentsession

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/forgecode/forge/internal/agent"
	"github.com/forgecode/forge/internal/config"
	"github.com/forgecode/forge/internal/extensions"
	"github.com/forgecode/forge/internal/message"
	"github.com/forgecode/forge/internal/provider"
	"github.com/forgecode/forge/internal/tools"
)

// fakeBackend streams one text reply and never calls a tool.
type fakeBackend struct {
	reply string
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) StreamTurn(ctx context.Context, req provider.Request) (provider.Stream, error) {
	out := make(chan provider.Event, 8)
	go func() {
		defer close(out)
		out <- provider.Event{Type: provider.EventTextStart}
		out <- provider.Event{Type: provider.EventTextDelta, Text: f.reply}
		out <- provider.Event{Type: provider.EventTextEnd}
		out <- provider.Event{Type: provider.EventUsage, Usage: message.Usage{Input: 10, Output: 5}}
		out <- provider.Event{Type: provider.EventDone, StopReason: message.StopReasonStop}
	}()
	return out, nil
}

// echoTool is a trivial registered tool, unused unless a test wires a call.
type echoTool struct{}

func (echoTool) Name() string                     { return "echo" }
func (echoTool) Description() string              { return "echoes input" }
func (echoTool) InputSchema() json.RawMessage     { return json.RawMessage(`{"type":"object"}`) }
func (echoTool) Execute(ctx context.Context, argsJSON string) (message.Message, error) {
	return message.Message{Role: message.RoleToolBlock, Blocks: []message.Block{message.Text{Text: argsJSON}}}, nil
}

func newTestSession(t *testing.T, reply string) *Session {
	t.Helper()
	registry := tools.NewRegistry()
	registry.Register(echoTool{})
	return New(Options{
		Backend:      &fakeBackend{reply: reply},
		Provider:     "anthropic",
		Model:        "claude-sonnet-4",
		ToolRegistry: registry,
		Runner:       extensions.NewRunner(nil),
		Settings:     config.DefaultSettings(),
		CWD:          "/tmp/project",
	})
}

func drain(t *testing.T, ch <-chan Event, timeout time.Duration) []Event {
	t.Helper()
	var events []Event
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-deadline:
			t.Fatal("timed out draining events")
		}
	}
}

func TestSendUserMessageProducesAgentEndWithReply(t *testing.T) {
	s := newTestSession(t, "hello there")
	events := drain(t, s.SendUserMessage(context.Background(), "hi"), 2*time.Second)

	var sawAgentEnd bool
	for _, ev := range events {
		if ev.Type == EventAgentEnd {
			sawAgentEnd = true
			if ev.Message.Text() != "hello there" {
				t.Fatalf("agent_end message = %q, want %q", ev.Message.Text(), "hello there")
			}
		}
		if ev.Type == EventError {
			t.Fatalf("unexpected error event: %v", ev.Err)
		}
	}
	if !sawAgentEnd {
		t.Fatal("never saw agent_end event")
	}
}

func TestSendUserMessagePersistsToStore(t *testing.T) {
	s := newTestSession(t, "ack")
	drain(t, s.SendUserMessage(context.Background(), "do the thing"), 2*time.Second)

	if s.Store().EntryCount() < 2 {
		t.Fatalf("expected at least 2 entries (user + assistant), got %d", s.Store().EntryCount())
	}
}

func TestSendUserMessageHonorsUserPromptSubmitHook(t *testing.T) {
	registry := tools.NewRegistry()
	registry.Register(echoTool{})
	s := New(Options{
		Backend:      &fakeBackend{reply: "should never run"},
		Provider:     "anthropic",
		Model:        "claude-sonnet-4",
		ToolRegistry: registry,
		Runner:       extensions.NewRunner(nil),
		Settings:     config.DefaultSettings(),
		CWD:          "/tmp/project",
		Hooks: agent.HookExecutorFunc(func(ctx context.Context, input agent.HookInput) (*agent.HookOutput, error) {
			if input.Event == agent.HookUserPromptSubmit {
				return &agent.HookOutput{Decision: "block", Reason: "policy"}, nil
			}
			return nil, nil
		}),
	})

	events := drain(t, s.SendUserMessage(context.Background(), "do something forbidden"), 2*time.Second)

	var sawBlocked bool
	for _, ev := range events {
		if ev.Type == EventBlocked {
			sawBlocked = true
			if ev.Reason != "policy" {
				t.Fatalf("blocked reason = %q, want %q", ev.Reason, "policy")
			}
		}
	}
	if !sawBlocked {
		t.Fatal("never saw blocked event")
	}
}

func TestSetActiveToolsRebuildsPromptInputs(t *testing.T) {
	s := newTestSession(t, "ok")
	s.SetActiveTools([]string{"echo"})
	if got := s.promptInputsLocked().ActiveToolNames; len(got) != 1 || got[0] != "echo" {
		t.Fatalf("ActiveToolNames = %v, want [echo]", got)
	}

	s.SetActiveTools(nil)
	if got := s.promptInputsLocked().ActiveToolNames; got != nil {
		t.Fatalf("ActiveToolNames = %v, want nil", got)
	}
}
