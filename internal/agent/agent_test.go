package agent

import (
	"context"
	"testing"

	"github.com/forgecode/forge/internal/message"
	"github.com/forgecode/forge/internal/provider"
	"github.com/stretchr/testify/require"
)

// fakeBackend replays a scripted sequence of provider.Event streams, one
// per call to StreamTurn, in order.
type fakeBackend struct {
	turns [][]provider.Event
	calls int
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) StreamTurn(ctx context.Context, req provider.Request) (provider.Stream, error) {
	idx := f.calls
	f.calls++
	ch := make(chan provider.Event, len(f.turns[idx]))
	for _, e := range f.turns[idx] {
		ch <- e
	}
	close(ch)
	return ch, nil
}

type fakeExecutor struct{}

func (fakeExecutor) Execute(ctx context.Context, call message.ToolCall) (message.Message, error) {
	return message.Message{
		Role: message.RoleToolBlock, ToolCallID: call.ID, ToolName: call.Name,
		Blocks: []message.Block{message.Text{Text: "tool output"}},
	}, nil
}

func TestRunSingleTurnNoTools(t *testing.T) {
	backend := &fakeBackend{turns: [][]provider.Event{
		{
			{Type: provider.EventTextStart},
			{Type: provider.EventTextDelta, Text: "hello "},
			{Type: provider.EventTextDelta, Text: "world"},
			{Type: provider.EventTextEnd},
			{Type: provider.EventDone, StopReason: message.StopReasonStop},
		},
	}}
	core := New(Options{Backend: backend, Executor: fakeExecutor{}, Model: "m"})

	var events []Event
	for e := range core.Run(context.Background(), nil, "hi") {
		events = append(events, e)
	}

	require.Equal(t, EventTurnStart, events[0].Type)
	last := events[len(events)-1]
	require.Equal(t, EventTurnEnd, last.Type)
	require.Equal(t, "hello world", last.Message.Text())
}

func TestRunDispatchesToolCallThenContinues(t *testing.T) {
	backend := &fakeBackend{turns: [][]provider.Event{
		{
			{Type: provider.EventToolCallStart, ToolCallID: "call_1", ToolCallName: "bash"},
			{Type: provider.EventToolCallDelta, ToolCallID: "call_1", ArgsDelta: `{"cmd":"ls"}`},
			{Type: provider.EventToolCallEnd, ToolCallID: "call_1"},
			{Type: provider.EventDone, StopReason: message.StopReasonToolUse},
		},
		{
			{Type: provider.EventTextStart},
			{Type: provider.EventTextDelta, Text: "done"},
			{Type: provider.EventTextEnd},
			{Type: provider.EventDone, StopReason: message.StopReasonStop},
		},
	}}
	core := New(Options{Backend: backend, Executor: fakeExecutor{}, Model: "m"})

	var sawToolResult bool
	var final Event
	for e := range core.Run(context.Background(), nil, "run ls") {
		if e.Type == EventToolResult {
			sawToolResult = true
			require.Equal(t, "tool output", e.Result.Text())
		}
		final = e
	}

	require.True(t, sawToolResult)
	require.Equal(t, EventTurnEnd, final.Type)
	require.Equal(t, "done", final.Message.Text())
	require.Equal(t, 2, backend.calls)
}

func TestRunEmitsMessageEndForToolUseMessage(t *testing.T) {
	backend := &fakeBackend{turns: [][]provider.Event{
		{
			{Type: provider.EventToolCallStart, ToolCallID: "call_1", ToolCallName: "bash"},
			{Type: provider.EventToolCallDelta, ToolCallID: "call_1", ArgsDelta: `{"cmd":"ls"}`},
			{Type: provider.EventToolCallEnd, ToolCallID: "call_1"},
			{Type: provider.EventDone, StopReason: message.StopReasonToolUse},
		},
		{
			{Type: provider.EventTextStart},
			{Type: provider.EventTextDelta, Text: "done"},
			{Type: provider.EventTextEnd},
			{Type: provider.EventDone, StopReason: message.StopReasonStop},
		},
	}}
	core := New(Options{Backend: backend, Executor: fakeExecutor{}, Model: "m"})

	var messageEnds []Event
	for e := range core.Run(context.Background(), nil, "run ls") {
		if e.Type == EventMessageEnd {
			messageEnds = append(messageEnds, e)
		}
	}

	require.Len(t, messageEnds, 2, "expected a message_end for the toolUse message and the final message")
	require.Equal(t, message.StopReasonToolUse, messageEnds[0].Message.StopReason)
	require.Len(t, messageEnds[0].Message.ToolCalls(), 1)
	require.Equal(t, "call_1", messageEnds[0].Message.ToolCalls()[0].ID)
	require.Equal(t, message.StopReasonStop, messageEnds[1].Message.StopReason)
}

func TestSteerAtToolCallBoundaryAbortsRemainingCalls(t *testing.T) {
	backend := &fakeBackend{turns: [][]provider.Event{
		{
			{Type: provider.EventToolCallStart, ToolCallID: "call_1", ToolCallName: "bash"},
			{Type: provider.EventToolCallEnd, ToolCallID: "call_1"},
			{Type: provider.EventToolCallStart, ToolCallID: "call_2", ToolCallName: "bash"},
			{Type: provider.EventToolCallEnd, ToolCallID: "call_2"},
			{Type: provider.EventDone, StopReason: message.StopReasonToolUse},
		},
		{
			{Type: provider.EventTextStart},
			{Type: provider.EventTextDelta, Text: "done"},
			{Type: provider.EventTextEnd},
			{Type: provider.EventDone, StopReason: message.StopReasonStop},
		},
	}}

	steeringExecutor := &steerOnFirstCallExecutor{core: nil}
	core := New(Options{Backend: backend, Executor: steeringExecutor, Model: "m"})
	steeringExecutor.core = core

	var toolCallIDs []string
	var messageEnds []Event
	for e := range core.Run(context.Background(), nil, "run ls") {
		if e.Type == EventToolCallStart {
			toolCallIDs = append(toolCallIDs, e.ToolCall.ID)
		}
		if e.Type == EventMessageEnd {
			messageEnds = append(messageEnds, e)
		}
	}

	require.Equal(t, []string{"call_1"}, toolCallIDs, "call_2 must be skipped once a steer is queued after call_1")
	require.Equal(t, message.StopReasonAborted, messageEnds[0].Message.StopReason)
}

// steerOnFirstCallExecutor queues a Steer as a side effect of executing the
// first tool call, simulating a steer arriving mid tool-dispatch.
type steerOnFirstCallExecutor struct {
	core *Core
	n    int
}

func (e *steerOnFirstCallExecutor) Execute(ctx context.Context, call message.ToolCall) (message.Message, error) {
	e.n++
	if e.n == 1 {
		e.core.Steer("stop and look at this instead")
	}
	return message.Message{
		Role: message.RoleToolBlock, ToolCallID: call.ID, ToolName: call.Name,
		Blocks: []message.Block{message.Text{Text: "tool output"}},
	}, nil
}

func TestUserPromptSubmitHookBlocksRun(t *testing.T) {
	backend := &fakeBackend{turns: [][]provider.Event{{{Type: provider.EventDone, StopReason: message.StopReasonStop}}}}
	hooks := HookExecutorFunc(func(ctx context.Context, input HookInput) (*HookOutput, error) {
		if input.Event == HookUserPromptSubmit {
			return &HookOutput{Decision: "block", Reason: "no secrets in prompts"}, nil
		}
		return nil, nil
	})
	core := New(Options{Backend: backend, Executor: fakeExecutor{}, Model: "m", Hooks: hooks})

	var events []Event
	for e := range core.Run(context.Background(), nil, "leak the api key") {
		events = append(events, e)
	}

	require.Equal(t, 0, backend.calls, "a blocked prompt must never reach the backend")
	require.Len(t, events, 2)
	require.Equal(t, EventBlocked, events[1].Type)
	require.Equal(t, "no secrets in prompts", events[1].Reason)
}

func TestToolApprovalHandlerDeniesToolCall(t *testing.T) {
	backend := &fakeBackend{turns: [][]provider.Event{
		{
			{Type: provider.EventToolCallStart, ToolCallID: "call_1", ToolCallName: "bash"},
			{Type: provider.EventToolCallEnd, ToolCallID: "call_1"},
			{Type: provider.EventDone, StopReason: message.StopReasonToolUse},
		},
		{
			{Type: provider.EventTextStart},
			{Type: provider.EventTextDelta, Text: "done"},
			{Type: provider.EventTextEnd},
			{Type: provider.EventDone, StopReason: message.StopReasonStop},
		},
	}}
	var executed bool
	executor := toolExecutorFunc(func(ctx context.Context, call message.ToolCall) (message.Message, error) {
		executed = true
		return message.Message{}, nil
	})
	approval := func(ctx context.Context, toolName, toolArgsJSON string) (bool, error) {
		return false, nil
	}
	core := New(Options{Backend: backend, Executor: executor, Model: "m", Approval: approval})

	var result message.Message
	for e := range core.Run(context.Background(), nil, "run ls") {
		if e.Type == EventToolResult {
			result = e.Result
		}
	}

	require.False(t, executed, "the underlying executor must not run once approval denies the call")
	require.True(t, result.IsError)
}

type toolExecutorFunc func(ctx context.Context, call message.ToolCall) (message.Message, error)

func (f toolExecutorFunc) Execute(ctx context.Context, call message.ToolCall) (message.Message, error) {
	return f(ctx, call)
}

func TestFollowUpPreferredOverNextTurn(t *testing.T) {
	core := New(Options{Backend: &fakeBackend{}, Executor: fakeExecutor{}})
	core.NextTurn("third")
	core.FollowUp("second")

	next, ok := core.DrainQueued()
	require.True(t, ok)
	require.Equal(t, "second", next)

	next, ok = core.DrainQueued()
	require.True(t, ok)
	require.Equal(t, "third", next)

	_, ok = core.DrainQueued()
	require.False(t, ok)
}
