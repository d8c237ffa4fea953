package agent

import "context"

// HookEvent names one of the points Run fires hooks at, mirroring the
// teacher's UserPromptSubmit/PreToolUse/PostToolUse/Stop hook points
// (internal/app/app.go's fireUserPromptSubmitHook et al.).
type HookEvent string

const (
	HookUserPromptSubmit HookEvent = "UserPromptSubmit"
	HookPreToolUse        HookEvent = "PreToolUse"
	HookPostToolUse       HookEvent = "PostToolUse"
	HookStop              HookEvent = "Stop"
)

// HookInput carries whatever fields are relevant to the firing HookEvent;
// callers only read the fields that event documents.
type HookInput struct {
	Event HookEvent

	Prompt string // UserPromptSubmit

	ToolName     string // PreToolUse, PostToolUse
	ToolArgsJSON string // PreToolUse, PostToolUse
	ToolResult   string // PostToolUse
	ToolIsError  bool   // PostToolUse

	StopReason string // Stop: "completed", "error", "cancelled", "blocked", "max_steps"
	Response   string // Stop: the finalized assistant text, if any
}

// HookOutput is a hook's verdict for the event it ran against. A nil
// *HookOutput from ExecuteHooks means "no opinion, proceed".
type HookOutput struct {
	// Decision == "block" prevents a UserPromptSubmit/PreToolUse action from
	// proceeding; Reason is surfaced to the conversation as the block cause.
	Decision string
	Reason   string
	// SuppressOutput, for PostToolUse only, drops the EventToolResult the
	// Core would otherwise emit without removing the result from history.
	SuppressOutput bool
}

func (o *HookOutput) blocked() bool {
	return o != nil && o.Decision == "block"
}

// HookExecutor runs every registered hook for one event in order and
// returns the first non-nil verdict, collapsing the teacher's
// PopulateCommonFields+ExecuteHooks pair into a single call a Core.Run can
// invoke without knowing about hook registration or priority.
type HookExecutor interface {
	ExecuteHooks(ctx context.Context, input HookInput) (*HookOutput, error)
}

// HookExecutorFunc adapts a plain function to HookExecutor.
type HookExecutorFunc func(ctx context.Context, input HookInput) (*HookOutput, error)

func (f HookExecutorFunc) ExecuteHooks(ctx context.Context, input HookInput) (*HookOutput, error) {
	return f(ctx, input)
}

// ToolApprovalHandler gates a tool call before it runs, grounded on the
// teacher's agent.ToolApprovalHandler/buildApprovalFunc: return approved as
// false to deny execution without treating the denial as a tool error.
type ToolApprovalHandler func(ctx context.Context, toolName, toolArgsJSON string) (approved bool, err error)
