package agentsession

import (
	"context"

	"github.com/forgecode/forge/internal/extensions"
	"github.com/forgecode/forge/internal/message"
	"github.com/forgecode/forge/internal/tools"
)

// extensionToolExecutor wraps a tools.Registry with the tool_call/
// tool_result extension hooks from spec.md §4.I: tool_call may block the
// call before it runs, and tool_result may rewrite what the LLM sees,
// last-writer-wins across extensions.
type extensionToolExecutor struct {
	registry *tools.Registry
	runner   *extensions.Runner
}

func (e *extensionToolExecutor) Execute(ctx context.Context, call message.ToolCall) (message.Message, error) {
	if e.runner != nil && e.runner.HasHandlers(extensions.ToolCall) {
		result, err := e.runner.Emit(extensions.ToolCallEvent{Call: call})
		if err != nil {
			return message.Message{}, err
		}
		if tcr, ok := result.(extensions.ToolCallResult); ok && tcr.Block {
			return blockedResult(call, tcr.Reason), nil
		}
	}

	if e.runner != nil {
		_, _ = e.runner.Emit(extensions.ToolExecutionStartEvent{Call: call})
	}

	result, err := e.registry.Execute(ctx, call)
	if err != nil {
		return message.Message{}, err
	}

	if e.runner != nil && e.runner.HasHandlers(extensions.ToolResult) {
		rewritten, rerr := e.runner.Emit(extensions.ToolResultEvent{Call: call, Result: result})
		if rerr == nil {
			if trr, ok := rewritten.(extensions.ToolResultResult); ok {
				result = trr.Result
				result.ToolCallID = call.ID
				result.ToolName = call.Name
				result.Role = message.RoleToolBlock
			}
		}
	}

	if e.runner != nil {
		_, _ = e.runner.Emit(extensions.ToolExecutionEndEvent{Call: call, Result: result})
	}

	return result, nil
}

func blockedResult(call message.ToolCall, reason string) message.Message {
	if reason == "" {
		reason = "blocked by extension"
	}
	return message.Message{
		Role:       message.RoleToolBlock,
		ToolCallID: call.ID,
		ToolName:   call.Name,
		IsError:    true,
		Blocks:     []message.Block{message.Text{Text: reason}},
	}
}
