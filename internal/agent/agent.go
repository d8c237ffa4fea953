// Package agent implements the turn/run state machine from spec.md §4.F:
// it drives a provider.Backend through a tool-calling loop, exposes
// steering/follow-up/next-turn queueing, and reports progress through a
// single ordered event stream.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/forgecode/forge/internal/message"
	"github.com/forgecode/forge/internal/provider"
)

// ToolExecutor runs one tool call and returns its result blocks.
type ToolExecutor interface {
	Execute(ctx context.Context, call message.ToolCall) (result message.Message, err error)
}

// EventType tags one entry of the Core's event stream.
type EventType string

const (
	EventTurnStart     EventType = "turn_start"
	EventTextDelta     EventType = "text_delta"
	EventThinkingDelta EventType = "thinking_delta"
	EventToolCallStart EventType = "tool_call_start"
	EventToolResult    EventType = "tool_result"
	EventMessageEnd    EventType = "message_end"
	EventTurnEnd       EventType = "turn_end"
	EventBlocked       EventType = "blocked"
	EventError         EventType = "error"
)

// Event is one entry in the ordered stream Run produces.
type Event struct {
	Type     EventType
	Text     string
	ToolCall message.ToolCall
	Result   message.Message
	Message  message.Message // populated on EventMessageEnd/EventTurnEnd: the assistant message
	Reason   string          // populated on EventBlocked: the hook/approval denial reason
	Err      error
}

// Options configures one Run.
type Options struct {
	Backend      provider.Backend
	Executor     ToolExecutor
	Model        string
	SystemPrompt string
	Tools        []provider.ToolSpec
	MaxSteps     int // 0 = default of 25, matching the teacher's agent loop cap

	// Hooks and Approval are both optional; nil means the corresponding
	// check is skipped entirely, matching the teacher's nil-HookExecutor
	// short-circuit in fireUserPromptSubmitHook et al.
	Hooks    HookExecutor
	Approval ToolApprovalHandler
}

// Core drives a single conversation's turn loop. It is not safe for
// concurrent Run calls; callers serialize turns through agentsession.
type Core struct {
	opts Options

	mu        sync.Mutex
	steering  []string // injected into the NEXT provider call within this turn
	followUps []string // queued to run as a new turn once this one ends
	nextTurns []string // queued to run after the next follow-up turn

	cancel context.CancelFunc
}

// New builds a Core.
func New(opts Options) *Core {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = 25
	}
	return &Core{opts: opts}
}

// Steer queues text to be injected at the first tool-call boundary after
// receipt, within the CURRENTLY running turn — it does not wait for the
// turn to end. If the assistant message in flight is mid tool-call
// dispatch, any calls not yet started are skipped and the message is
// finalized as aborted (see Run). If no turn is running, the text stays
// queued and is added as a user message at the start of the next Run.
func (c *Core) Steer(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steering = append(c.steering, text)
}

// FollowUp queues a prompt to run as a new turn immediately after the
// current one completes (or immediately, if no turn is running).
func (c *Core) FollowUp(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.followUps = append(c.followUps, text)
}

// NextTurn queues a prompt behind any pending FollowUp prompts.
func (c *Core) NextTurn(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextTurns = append(c.nextTurns, text)
}

// DrainQueued pops the next queued prompt, preferring FollowUp entries over
// NextTurn entries (spec.md §4.F ordering: followUp before nextTurn).
func (c *Core) DrainQueued() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.followUps) > 0 {
		next := c.followUps[0]
		c.followUps = c.followUps[1:]
		return next, true
	}
	if len(c.nextTurns) > 0 {
		next := c.nextTurns[0]
		c.nextTurns = c.nextTurns[1:]
		return next, true
	}
	return "", false
}

func (c *Core) drainSteering() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.steering) == 0 {
		return nil
	}
	out := c.steering
	c.steering = nil
	return out
}

// SetSystemPrompt replaces the system prompt used by the next Run call.
// Exposed so agentsession's rebuildSystemPrompt can keep the prompt a pure
// function of {cwd, agentDir, skills, contextFiles, activeToolNames,
// customPromptOverride} per spec.md §4.H, without reconstructing Core.
func (c *Core) SetSystemPrompt(prompt string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.SystemPrompt = prompt
}

// SetTools replaces the tool declarations sent with the next Run call.
func (c *Core) SetTools(tools []provider.ToolSpec) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.Tools = tools
}

// Cancel aborts the currently running turn, if any. The turn's event stream
// receives an EventError with context.Canceled and then closes.
func (c *Core) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

// Run executes one turn starting from history+prompt, streaming Events in
// order, and returns once the assistant stops requesting tools (or the
// step cap is hit, or the turn is cancelled). Tool calls are dispatched
// serially in the order the provider emitted them, per spec.md §4.F — the
// teacher's executeStep likewise processes ToolCalls sequentially rather
// than in parallel, since a later call may depend on an earlier one's
// filesystem side effects.
//
// If opts.Hooks is set, UserPromptSubmit fires before the prompt is added to
// history (blocking it ends the run with EventBlocked), PreToolUse/
// PostToolUse fire around each tool call, and Stop fires once per exit path,
// mirroring the teacher's fireUserPromptSubmitHook/firePreToolUseHook/
// firePostToolUseHook/fireStopHook. If opts.Approval is set, it runs after a
// tool call clears PreToolUse and before the tool actually executes.
func (c *Core) Run(ctx context.Context, history []message.Message, prompt string) <-chan Event {
	out := make(chan Event, 32)
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	opts := c.opts
	c.mu.Unlock()

	go func() {
		defer close(out)
		defer cancel()
		out <- Event{Type: EventTurnStart}

		if output, err := fireHook(ctx, opts.Hooks, HookInput{Event: HookUserPromptSubmit, Prompt: prompt}); err == nil && output.blocked() {
			out <- Event{Type: EventBlocked, Reason: output.Reason}
			fireHook(ctx, opts.Hooks, HookInput{Event: HookStop, StopReason: "blocked"})
			return
		}

		history = append(history, message.Message{Role: message.RoleUser, Blocks: []message.Block{message.Text{Text: prompt}}})

		for step := 0; step < opts.MaxSteps; step++ {
			for _, s := range c.drainSteering() {
				history = append(history, message.Message{Role: message.RoleUser, Blocks: []message.Block{message.Text{Text: s}}})
			}

			req := provider.Request{
				Model:        opts.Model,
				SystemPrompt: opts.SystemPrompt,
				Messages:     provider.RepairOrphanToolResults(history),
				Tools:        opts.Tools,
			}

			stream, err := opts.Backend.StreamTurn(ctx, req)
			if err != nil {
				out <- Event{Type: EventError, Err: err}
				fireHook(ctx, opts.Hooks, HookInput{Event: HookStop, StopReason: "error"})
				return
			}

			assistantMsg, ok := c.consumeStream(stream, out)
			if !ok {
				fireHook(ctx, opts.Hooks, HookInput{Event: HookStop, StopReason: "error"})
				return
			}

			if assistantMsg.StopReason != message.StopReasonToolUse {
				history = append(history, assistantMsg)
				out <- Event{Type: EventMessageEnd, Message: assistantMsg}
				out <- Event{Type: EventTurnEnd, Message: assistantMsg}
				fireHook(ctx, opts.Hooks, HookInput{Event: HookStop, StopReason: "completed", Response: assistantMsg.Text()})
				return
			}

			// Dispatch the message's tool calls in order. A Steer queued at a
			// tool-call boundary (checked before each call starts) takes effect
			// immediately per spec.md §4.F/§5: calls already dispatched finish,
			// any calls still queued in this message are skipped, the message
			// is finalized as aborted rather than a clean toolUse stop, and the
			// steering text is injected as the user message for the next step.
			var toolResults []message.Message
			var steered []string
			interrupted := false
			for _, tc := range assistantMsg.ToolCalls() {
				if pending := c.drainSteering(); len(pending) > 0 {
					interrupted = true
					steered = pending
					break
				}

				argsJSON := toolArgsJSON(tc)

				if output, herr := fireHook(ctx, opts.Hooks, HookInput{Event: HookPreToolUse, ToolName: tc.Name, ToolArgsJSON: argsJSON}); herr == nil && output.blocked() {
					out <- Event{Type: EventToolCallStart, ToolCall: tc}
					result := blockedToolResult(tc, output.Reason)
					out <- Event{Type: EventToolResult, ToolCall: tc, Result: result}
					toolResults = append(toolResults, result)
					continue
				}

				if opts.Approval != nil {
					approved, aerr := opts.Approval(ctx, tc.Name, argsJSON)
					if aerr != nil {
						out <- Event{Type: EventError, Err: aerr}
						fireHook(ctx, opts.Hooks, HookInput{Event: HookStop, StopReason: "error"})
						return
					}
					if !approved {
						out <- Event{Type: EventToolCallStart, ToolCall: tc}
						result := blockedToolResult(tc, "denied by user")
						out <- Event{Type: EventToolResult, ToolCall: tc, Result: result}
						toolResults = append(toolResults, result)
						continue
					}
				}

				out <- Event{Type: EventToolCallStart, ToolCall: tc}
				result, err := opts.Executor.Execute(ctx, tc)
				if err != nil {
					result = message.Message{
						Role: message.RoleToolBlock, ToolCallID: tc.ID, ToolName: tc.Name, IsError: true,
						Blocks: []message.Block{message.Text{Text: fmt.Sprintf("tool error: %v", err)}},
					}
				}

				suppressed := false
				if output, herr := fireHook(ctx, opts.Hooks, HookInput{Event: HookPostToolUse, ToolName: tc.Name, ToolArgsJSON: argsJSON, ToolResult: result.Text(), ToolIsError: result.IsError}); herr == nil && output != nil {
					suppressed = output.SuppressOutput
				}
				if !suppressed {
					out <- Event{Type: EventToolResult, ToolCall: tc, Result: result}
				}
				toolResults = append(toolResults, result)

				if ctx.Err() != nil {
					out <- Event{Type: EventError, Err: ctx.Err()}
					fireHook(ctx, opts.Hooks, HookInput{Event: HookStop, StopReason: "cancelled"})
					return
				}
			}

			if interrupted {
				assistantMsg.StopReason = message.StopReasonAborted
			}

			history = append(history, assistantMsg)
			out <- Event{Type: EventMessageEnd, Message: assistantMsg}
			history = append(history, toolResults...)
			for _, s := range steered {
				history = append(history, message.Message{Role: message.RoleUser, Blocks: []message.Block{message.Text{Text: s}}})
			}
		}

		out <- Event{Type: EventError, Err: fmt.Errorf("agent: exceeded max steps (%d)", opts.MaxSteps)}
		fireHook(ctx, opts.Hooks, HookInput{Event: HookStop, StopReason: "max_steps"})
	}()

	return out
}

// fireHook runs the configured HookExecutor for one event, treating a nil
// executor as "no hooks registered" the way the teacher's fire*Hook helpers
// treat a nil opts.HookExecutor.
func fireHook(ctx context.Context, hooks HookExecutor, input HookInput) (*HookOutput, error) {
	if hooks == nil {
		return nil, nil
	}
	return hooks.ExecuteHooks(ctx, input)
}

// toolArgsJSON recovers the raw JSON argument string a ToolCall carries, for
// passing to hooks/approval handlers the same shape the teacher's
// firePreToolUseHook passes as json.RawMessage(toolArgs).
func toolArgsJSON(tc message.ToolCall) string {
	if tc.ArgumentsJSON == "" {
		return "{}"
	}
	return tc.ArgumentsJSON
}

// blockedToolResult synthesizes the ToolResult a blocked/denied tool call
// produces in place of actually executing it, matching the teacher's
// hookedTool.Run behavior of returning an error-flagged response instead of
// invoking the underlying tool.
func blockedToolResult(tc message.ToolCall, reason string) message.Message {
	if reason == "" {
		reason = "blocked by hook"
	}
	return message.Message{
		Role: message.RoleToolBlock, ToolCallID: tc.ID, ToolName: tc.Name, IsError: true,
		Blocks: []message.Block{message.Text{Text: fmt.Sprintf("Error: %s", reason)}},
	}
}

// consumeStream drains one provider stream into a single assistant Message,
// forwarding text/thinking deltas as Events as they arrive. Returns false if
// the stream ended in error (an EventError was already emitted).
func (c *Core) consumeStream(stream provider.Stream, out chan<- Event) (message.Message, bool) {
	msg := message.Message{Role: message.RoleAssistant}
	var textBuf, thinkingBuf string
	toolArgs := map[string]*[]byte{}

	for ev := range stream {
		switch ev.Type {
		case provider.EventTextDelta:
			textBuf += ev.Text
			out <- Event{Type: EventTextDelta, Text: ev.Text}
		case provider.EventTextEnd:
			if textBuf != "" {
				msg.Blocks = append(msg.Blocks, message.Text{Text: textBuf})
				textBuf = ""
			}
		case provider.EventThinkingDelta:
			thinkingBuf += ev.Text
			out <- Event{Type: EventThinkingDelta, Text: ev.Text}
		case provider.EventThinkingEnd:
			msg.Blocks = append(msg.Blocks, message.Thinking{Text: thinkingBuf, OpaqueSignature: ev.ThoughtSignature})
			thinkingBuf = ""
		case provider.EventToolCallStart:
			buf := make([]byte, 0, 256)
			toolArgs[ev.ToolCallID] = &buf
			msg.AddToolCall(message.ToolCall{ID: ev.ToolCallID, Name: ev.ToolCallName})
		case provider.EventToolCallDelta:
			if buf, ok := toolArgs[ev.ToolCallID]; ok {
				*buf = append(*buf, ev.ArgsDelta...)
			}
		case provider.EventToolCallEnd:
			if buf, ok := toolArgs[ev.ToolCallID]; ok {
				finalizeToolCallArgs(&msg, ev.ToolCallID, *buf)
			}
		case provider.EventUsage:
			msg.Usage = ev.Usage
		case provider.EventDone:
			msg.StopReason = ev.StopReason
		case provider.EventError:
			out <- Event{Type: EventError, Err: ev.Err}
			return msg, false
		}
	}
	return msg, true
}

func finalizeToolCallArgs(msg *message.Message, id string, raw []byte) {
	var probe json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		raw = []byte("{}")
	}
	for i, b := range msg.Blocks {
		if tc, ok := b.(message.ToolCall); ok && tc.ID == id {
			tc.ArgumentsJSON = string(raw)
			msg.Blocks[i] = tc
			return
		}
	}
}
