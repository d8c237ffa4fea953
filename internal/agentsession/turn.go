package agentsession

import (
	"context"
	"fmt"
	"strings"

	"github.com/forgecode/forge/internal/agent"
	"github.com/forgecode/forge/internal/extensions"
	"github.com/forgecode/forge/internal/message"
	"github.com/forgecode/forge/internal/provider"
)

const maxAutoRetries = 3

// SendUserMessage starts a new turn from text, applying the
// before_agent_start/context extension hooks, persisting every message to
// the session store, and layering auto-compaction/auto-retry over the
// underlying agent.Core turn loop. The returned channel is closed when the
// turn (and any compaction/retry it triggers) finishes.
func (s *Session) SendUserMessage(ctx context.Context, text string) <-chan Event {
	out := make(chan Event, 32)
	go s.runUserMessage(ctx, text, out)
	return out
}

func (s *Session) runUserMessage(ctx context.Context, text string, out chan<- Event) {
	defer close(out)

	beforeResults, err := s.runner.EmitAll(extensions.BeforeAgentStartEvent{Prompt: text})
	if err != nil {
		out <- Event{Type: EventError, Err: err}
		return
	}

	var prepends []string
	var appends []string
	for _, r := range beforeResults {
		bar, ok := r.(extensions.BeforeAgentStartResult)
		if !ok {
			continue
		}
		if bar.Block {
			out <- Event{Type: EventError, Err: fmt.Errorf("agent start blocked: %s", bar.Reason)}
			return
		}
		if bar.Message != "" {
			prepends = append(prepends, bar.Message)
		}
		if bar.SystemPromptAppend != "" {
			appends = append(appends, bar.SystemPromptAppend)
		}
	}

	if len(appends) > 0 {
		base := s.promptBuilder(s.promptInputsLocked())
		s.core.SetSystemPrompt(base + "\n\n" + strings.Join(appends, "\n\n"))
		defer s.core.SetSystemPrompt(base)
	}

	history := s.store.BuildContext().Messages

	for _, p := range prepends {
		msg := message.Message{Role: message.RoleUser, Blocks: []message.Block{message.Text{Text: p}}}
		if _, err := s.store.AppendMessage(msg); err != nil {
			out <- Event{Type: EventError, Err: err}
			return
		}
		history = append(history, msg)
	}

	userMsg := message.Message{Role: message.RoleUser, Blocks: []message.Block{message.Text{Text: text}}}
	if _, err := s.store.AppendMessage(userMsg); err != nil {
		out <- Event{Type: EventError, Err: err}
		return
	}

	if s.runner.HasHandlers(extensions.ContextRewrite) {
		all := append(append([]message.Message{}, history...), userMsg)
		rewritten, rerr := s.runner.Emit(extensions.ContextRewriteEvent{Messages: all})
		if rerr == nil {
			if crr, ok := rewritten.(extensions.ContextRewriteResult); ok && crr.Messages != nil {
				if n := len(crr.Messages); n > 0 {
					history = crr.Messages[:n-1]
					userMsg = crr.Messages[n-1]
				}
			}
		}
	}

	_, _ = s.runner.Emit(extensions.AgentStartEvent{Prompt: text})
	out <- Event{Type: EventAgentStart}

	finalMsg := s.runTurnWithPolicies(ctx, history, userMsg.Text(), out)

	_, _ = s.runner.Emit(extensions.AgentEndEvent{FinalMessage: finalMsg})
	out <- Event{Type: EventAgentEnd, Message: finalMsg}
}

// runTurnWithPolicies drives runOneTurn, applying spec.md §4.H's
// auto-compaction (reactive, on context overflow) and auto-retry
// (transient failures) protocols around it.
func (s *Session) runTurnWithPolicies(ctx context.Context, history []message.Message, prompt string, out chan<- Event) message.Message {
	currentHistory := history
	reactiveCompacted := false
	attempt := 0

	for {
		assistantMsg, turnErr := s.runOneTurn(ctx, currentHistory, prompt, out)
		if turnErr == nil {
			s.maybeProactiveCompact(ctx, out)
			return assistantMsg
		}

		if agent.IsCancelled(turnErr) {
			return message.Message{StopReason: message.StopReasonAborted}
		}

		if agent.IsContextOverflow(turnErr) && !reactiveCompacted {
			reactiveCompacted = true
			if _, err := s.compactNow(ctx, "reactive", "", out); err == nil {
				currentHistory = s.store.BuildContext().Messages
				continue
			}
			return message.Message{}
		}

		if agent.IsRetryable(turnErr) && attempt < maxAutoRetries {
			attempt++
			delay := provider.DefaultRetryPolicy().Backoff(attempt, 0)
			out <- Event{Type: EventAutoRetryStart, RetryAttempt: attempt, RetryMaxAttempts: maxAutoRetries, RetryDelayMs: delay.Milliseconds()}
			if sleepErr := provider.Sleep(ctx, delay); sleepErr != nil {
				out <- Event{Type: EventAutoRetryEnd, Err: sleepErr}
				return message.Message{}
			}
			out <- Event{Type: EventAutoRetryEnd}
			continue
		}

		return message.Message{}
	}
}

// runOneTurn drains one agent.Core.Run call, forwarding its events as
// facade events and persisting the resulting tool-result/assistant
// messages to the session store.
func (s *Session) runOneTurn(ctx context.Context, history []message.Message, prompt string, out chan<- Event) (message.Message, error) {
	out <- Event{Type: EventMessageStart}

	var assistantMsg message.Message
	var turnErr error
	var pendingResults []message.Message

	for ev := range s.core.Run(ctx, history, prompt) {
		switch ev.Type {
		case agent.EventTurnStart:
			out <- Event{Type: EventTurnStart}
		case agent.EventTextDelta:
			out <- Event{Type: EventTextDelta, Text: ev.Text}
			out <- Event{Type: EventMessageUpdate, Text: ev.Text}
		case agent.EventThinkingDelta:
			out <- Event{Type: EventThinkingDelta, Text: ev.Text}
		case agent.EventToolCallStart:
			out <- Event{Type: EventToolCallStart, ToolCall: ev.ToolCall}
		case agent.EventToolResult:
			out <- Event{Type: EventToolResult, ToolCall: ev.ToolCall, Result: ev.Result}
			pendingResults = append(pendingResults, ev.Result)
		case agent.EventMessageEnd:
			// Every assistant message is persisted here as soon as it
			// finalizes, including intermediate toolUse messages — the
			// ToolCall blocks they carry must be on the session log before
			// their ToolResults are, per spec.md §3's orphan-repair invariant.
			// Core emits a toolUse message's EventMessageEnd after its calls
			// ran, so the results held in pendingResults are written here,
			// right after the message.
			if _, err := s.store.AppendMessage(ev.Message); err != nil {
				turnErr = err
				continue
			}
			for _, r := range pendingResults {
				if _, err := s.store.AppendMessage(r); err != nil {
					turnErr = err
				}
			}
			pendingResults = nil
			out <- Event{Type: EventMessageEnd, Message: ev.Message}
		case agent.EventTurnEnd:
			assistantMsg = ev.Message
		case agent.EventBlocked:
			out <- Event{Type: EventBlocked, Reason: ev.Reason}
		case agent.EventError:
			turnErr = ev.Err
		}
	}

	if turnErr != nil {
		out <- Event{Type: EventError, Err: turnErr}
		return message.Message{}, turnErr
	}

	if s.usage != nil {
		s.usage.Record(assistantMsg.Usage)
	}

	out <- Event{Type: EventTurnEnd, Message: assistantMsg}
	return assistantMsg, nil
}

// maybeProactiveCompact triggers compaction when the last turn's usage
// crossed the configured threshold of the model's context window, per
// spec.md §4.H's proactive trigger.
func (s *Session) maybeProactiveCompact(ctx context.Context, out chan<- Event) {
	if s.usage == nil {
		return
	}
	threshold := s.settings.CompactionThreshold
	if threshold <= 0 {
		threshold = 0.8
	}
	if s.usage.ContextFillPercent()/100 < threshold {
		return
	}
	_, _ = s.compactNow(ctx, "proactive", "", out)
}
