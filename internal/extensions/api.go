// Package extensions implements the runtime from spec.md §4.I: a
// sequential, in-load-order event dispatcher over a concrete (non-interface)
// Context struct, so extension code can be embedded (e.g. via an
// interpreter) without needing to satisfy a Go interface.
package extensions

import (
	"github.com/forgecode/forge/internal/message"
)

// EventType identifies one kind of lifecycle or agent event an extension
// can subscribe to.
type EventType string

const (
	ToolCall          EventType = "tool_call"
	ToolExecutionStart EventType = "tool_execution_start"
	ToolExecutionEnd   EventType = "tool_execution_end"
	ToolResult         EventType = "tool_result"
	Input              EventType = "input"
	BeforeAgentStart   EventType = "before_agent_start"
	AgentStart         EventType = "agent_start"
	AgentEnd           EventType = "agent_end"
	MessageStart       EventType = "message_start"
	MessageUpdate      EventType = "message_update"
	MessageEnd         EventType = "message_end"
	SessionStart        EventType = "session_start"
	SessionSwitch       EventType = "session_switch"
	SessionBranch       EventType = "session_branch"
	SessionCompact      EventType = "session_compact"
	SessionShutdown     EventType = "session_shutdown"
	SessionTree         EventType = "session_tree"
	SessionBeforeSwitch EventType = "session_before_switch"
	SessionBeforeBranch EventType = "session_before_branch"
	SessionBeforeCompact EventType = "session_before_compact"
	SessionBeforeTree   EventType = "session_before_tree"
	ContextRewrite      EventType = "context"
)

// Event is the marker interface implemented by every concrete event type.
type Event interface {
	Type() EventType
}

// Result is the marker interface implemented by every concrete result type.
type Result interface {
	isResult()
}

// HandlerFunc is the type-erased form stored in a LoadedExtension's handler
// table; registration helpers on API wrap a typed callback into this shape.
type HandlerFunc func(event Event, ctx Context) Result

// Context is exposed to every handler. It is a concrete struct (not an
// interface) so extension code embedded via an interpreter can construct
// and inspect it without satisfying a Go interface — mirroring the
// teacher's extensions.Context design.
//
// In a non-interactive or no-TUI run, every prompt/overlay function below is
// total: it returns an immediate "cancelled" result rather than blocking or
// panicking, per the Open Question decision recorded in SPEC_FULL.md §9.
type Context struct {
	SessionID   string
	CWD         string
	Model       string
	Interactive bool

	Print      func(text string)
	PrintInfo  func(text string)
	PrintError func(text string)

	SendMessage func(text string)

	SetWidget    func(WidgetConfig)
	RemoveWidget func(id string)
	SetHeader    func(HeaderFooterConfig)
	RemoveHeader func()
	SetFooter    func(HeaderFooterConfig)
	RemoveFooter func()

	PromptSelect  func(PromptSelectConfig) PromptSelectResult
	PromptConfirm func(PromptConfirmConfig) PromptConfirmResult
	PromptInput   func(PromptInputConfig) PromptInputResult

	ShowOverlay func(OverlayConfig) OverlayResult

	SetEditor   func(EditorConfig)
	ResetEditor func()
}

// --- widget/prompt/overlay configuration ---

type WidgetPlacement string

const (
	WidgetPlacementHeader WidgetPlacement = "header"
	WidgetPlacementFooter WidgetPlacement = "footer"
)

type WidgetConfig struct {
	ID        string
	Placement WidgetPlacement
	Priority  int
	Content   string
}

type PromptSelectConfig struct {
	Title   string
	Options []string
}

type PromptSelectResult struct {
	Cancelled bool
	Index     int
}

type PromptConfirmConfig struct {
	Title string
}

type PromptConfirmResult struct {
	Cancelled bool
	Confirmed bool
}

type PromptInputConfig struct {
	Title       string
	Placeholder string
}

type PromptInputResult struct {
	Cancelled bool
	Text      string
}

type HeaderFooterConfig struct {
	Text string
}

type OverlayAnchor string

const (
	OverlayAnchorCenter OverlayAnchor = "center"
	OverlayAnchorTop    OverlayAnchor = "top"
	OverlayAnchorBottom OverlayAnchor = "bottom"
)

type OverlayConfig struct {
	Anchor  OverlayAnchor
	Content string
	Width   int
	Height  int
}

type OverlayResult struct {
	Cancelled bool
}

type ToolDef struct {
	Name        string
	Description string
	InputSchema []byte
	Handler     func(argsJSON string) (message.Message, error)
}

type CommandDef struct {
	Name        string
	Description string
	Handler     func(args string, ctx Context)
}

type ToolRenderConfig struct {
	ToolName string
	Render   func(call message.ToolCall, result *message.Message) string
}

type EditorKeyActionType string

const (
	EditorKeyActionInsert EditorKeyActionType = "insert"
	EditorKeyActionSubmit EditorKeyActionType = "submit"
)

type EditorKeyAction struct {
	Key    string
	Action EditorKeyActionType
}

type EditorConfig struct {
	Placeholder string
	KeyActions  []EditorKeyAction
}

// --- events/results ---

type ToolCallEvent struct {
	Call message.ToolCall
}

func (ToolCallEvent) Type() EventType { return ToolCall }

// ToolCallResult, if Block is true, short-circuits dispatch for the event:
// no further extension handlers run and the tool call is rejected with
// Reason. This is the one place dispatch order matters for correctness.
type ToolCallResult struct {
	Block  bool
	Reason string
}

func (ToolCallResult) isResult() {}

type ToolExecutionStartEvent struct{ Call message.ToolCall }

func (ToolExecutionStartEvent) Type() EventType { return ToolExecutionStart }

type ToolExecutionEndEvent struct {
	Call   message.ToolCall
	Result message.Message
}

func (ToolExecutionEndEvent) Type() EventType { return ToolExecutionEnd }

type ToolResultEvent struct {
	Call   message.ToolCall
	Result message.Message
}

func (ToolResultEvent) Type() EventType { return ToolResult }

// ToolResultResult, when non-nil and Result is set, replaces the tool
// result that reaches the model. Chainable: each extension sees the
// previous one's replacement and may replace it again (last writer wins).
type ToolResultResult struct {
	Result message.Message
}

func (ToolResultResult) isResult() {}

type InputEvent struct{ Text string }

func (InputEvent) Type() EventType { return Input }

// InputResult, when Action == "handled", short-circuits dispatch: the input
// was consumed by the extension and should not reach the agent.
type InputResult struct {
	Action string
}

func (InputResult) isResult() {}

type BeforeAgentStartEvent struct{ Prompt string }

func (BeforeAgentStartEvent) Type() EventType { return BeforeAgentStart }

// BeforeAgentStartResult accumulates across every handler that returns one
// (not last-writer-wins): Message values are prepended to the user message
// oldest-handler-first, and SystemPromptAppend values are concatenated with
// "\n\n". Block still short-circuits dispatch immediately, since a veto
// should not wait for remaining handlers to contribute text that will never
// be used.
type BeforeAgentStartResult struct {
	Block              bool
	Reason             string
	Message            string
	SystemPromptAppend string
}

func (BeforeAgentStartResult) isResult() {}

type ContextRewriteEvent struct{ Messages []message.Message }

func (ContextRewriteEvent) Type() EventType { return ContextRewrite }

// ContextRewriteResult, when Messages is non-nil, replaces the provider
// input for this turn. Chainable: each extension sees the previous one's
// rewrite and may rewrite it again (last writer wins).
type ContextRewriteResult struct {
	Messages []message.Message
}

func (ContextRewriteResult) isResult() {}

type AgentStartEvent struct{ Prompt string }

func (AgentStartEvent) Type() EventType { return AgentStart }

type AgentEndEvent struct{ FinalMessage message.Message }

func (AgentEndEvent) Type() EventType { return AgentEnd }

type MessageStartEvent struct{}

func (MessageStartEvent) Type() EventType { return MessageStart }

type MessageUpdateEvent struct{ Message message.Message }

func (MessageUpdateEvent) Type() EventType { return MessageUpdate }

type MessageEndEvent struct{ Message message.Message }

func (MessageEndEvent) Type() EventType { return MessageEnd }

type SessionStartEvent struct{ SessionID string }

func (SessionStartEvent) Type() EventType { return SessionStart }

type SessionSwitchEvent struct{ SessionID string }

func (SessionSwitchEvent) Type() EventType { return SessionSwitch }

type SessionBranchEvent struct{ EntryID string }

func (SessionBranchEvent) Type() EventType { return SessionBranch }

type SessionCompactEvent struct {
	CustomInstructions string
	MessagesRemoved    int
}

func (SessionCompactEvent) Type() EventType { return SessionCompact }

type SessionShutdownEvent struct{}

func (SessionShutdownEvent) Type() EventType { return SessionShutdown }

type SessionTreeEvent struct{}

func (SessionTreeEvent) Type() EventType { return SessionTree }

// SessionBeforeSwitchEvent/SessionBeforeBranchEvent fire before the facade
// commits a session switch or branch move; CancelResult.Cancel aborts it.
type SessionBeforeSwitchEvent struct{ Target string }

func (SessionBeforeSwitchEvent) Type() EventType { return SessionBeforeSwitch }

type SessionBeforeBranchEvent struct{ Target string }

func (SessionBeforeBranchEvent) Type() EventType { return SessionBeforeBranch }

// CancelResult, when Cancel is true, aborts the operation the preceding
// "before" event describes.
type CancelResult struct{ Cancel bool }

func (CancelResult) isResult() {}

type SessionBeforeCompactEvent struct {
	Preparation        string
	BranchEntries       []string
	CustomInstructions string
}

func (SessionBeforeCompactEvent) Type() EventType { return SessionBeforeCompact }

// SessionBeforeCompactResult lets a handler supply a pre-computed summary,
// skipping the provider call the facade would otherwise make.
type SessionBeforeCompactResult struct {
	Cancel     bool
	Compaction string
}

func (SessionBeforeCompactResult) isResult() {}

type SessionBeforeTreeEvent struct{ Preparation string }

func (SessionBeforeTreeEvent) Type() EventType { return SessionBeforeTree }

type SessionBeforeTreeResult struct {
	Cancel  bool
	Summary string
}

func (SessionBeforeTreeResult) isResult() {}

// API is the registration surface handed to each extension's setup function.
type API struct {
	loaded *LoadedExtension
}

func newAPI(loaded *LoadedExtension) *API { return &API{loaded: loaded} }

func (a *API) on(t EventType, h HandlerFunc) {
	if a.loaded.Handlers == nil {
		a.loaded.Handlers = make(map[EventType][]HandlerFunc)
	}
	a.loaded.Handlers[t] = append(a.loaded.Handlers[t], h)
}

func (a *API) OnToolCall(h func(ToolCallEvent, Context) *ToolCallResult) {
	a.on(ToolCall, func(e Event, ctx Context) Result {
		r := h(e.(ToolCallEvent), ctx)
		if r == nil {
			return nil
		}
		return *r
	})
}

func (a *API) OnToolExecutionStart(h func(ToolExecutionStartEvent, Context)) {
	a.on(ToolExecutionStart, func(e Event, ctx Context) Result { h(e.(ToolExecutionStartEvent), ctx); return nil })
}

func (a *API) OnToolExecutionEnd(h func(ToolExecutionEndEvent, Context)) {
	a.on(ToolExecutionEnd, func(e Event, ctx Context) Result { h(e.(ToolExecutionEndEvent), ctx); return nil })
}

func (a *API) OnToolResult(h func(ToolResultEvent, Context) *ToolResultResult) {
	a.on(ToolResult, func(e Event, ctx Context) Result {
		r := h(e.(ToolResultEvent), ctx)
		if r == nil {
			return nil
		}
		return *r
	})
}

func (a *API) OnInput(h func(InputEvent, Context) *InputResult) {
	a.on(Input, func(e Event, ctx Context) Result {
		r := h(e.(InputEvent), ctx)
		if r == nil {
			return nil
		}
		return *r
	})
}

func (a *API) OnBeforeAgentStart(h func(BeforeAgentStartEvent, Context) *BeforeAgentStartResult) {
	a.on(BeforeAgentStart, func(e Event, ctx Context) Result {
		r := h(e.(BeforeAgentStartEvent), ctx)
		if r == nil {
			return nil
		}
		return *r
	})
}

func (a *API) OnContextRewrite(h func(ContextRewriteEvent, Context) *ContextRewriteResult) {
	a.on(ContextRewrite, func(e Event, ctx Context) Result {
		r := h(e.(ContextRewriteEvent), ctx)
		if r == nil {
			return nil
		}
		return *r
	})
}

func (a *API) OnAgentStart(h func(AgentStartEvent, Context)) {
	a.on(AgentStart, func(e Event, ctx Context) Result { h(e.(AgentStartEvent), ctx); return nil })
}

func (a *API) OnAgentEnd(h func(AgentEndEvent, Context)) {
	a.on(AgentEnd, func(e Event, ctx Context) Result { h(e.(AgentEndEvent), ctx); return nil })
}

func (a *API) OnMessageStart(h func(MessageStartEvent, Context)) {
	a.on(MessageStart, func(e Event, ctx Context) Result { h(e.(MessageStartEvent), ctx); return nil })
}

func (a *API) OnMessageUpdate(h func(MessageUpdateEvent, Context)) {
	a.on(MessageUpdate, func(e Event, ctx Context) Result { h(e.(MessageUpdateEvent), ctx); return nil })
}

func (a *API) OnMessageEnd(h func(MessageEndEvent, Context)) {
	a.on(MessageEnd, func(e Event, ctx Context) Result { h(e.(MessageEndEvent), ctx); return nil })
}

func (a *API) OnSessionStart(h func(SessionStartEvent, Context)) {
	a.on(SessionStart, func(e Event, ctx Context) Result { h(e.(SessionStartEvent), ctx); return nil })
}

func (a *API) OnSessionSwitch(h func(SessionSwitchEvent, Context)) {
	a.on(SessionSwitch, func(e Event, ctx Context) Result { h(e.(SessionSwitchEvent), ctx); return nil })
}

func (a *API) OnSessionBranch(h func(SessionBranchEvent, Context)) {
	a.on(SessionBranch, func(e Event, ctx Context) Result { h(e.(SessionBranchEvent), ctx); return nil })
}

func (a *API) OnSessionCompact(h func(SessionCompactEvent, Context)) {
	a.on(SessionCompact, func(e Event, ctx Context) Result { h(e.(SessionCompactEvent), ctx); return nil })
}

func (a *API) OnSessionTree(h func(SessionTreeEvent, Context)) {
	a.on(SessionTree, func(e Event, ctx Context) Result { h(e.(SessionTreeEvent), ctx); return nil })
}

func (a *API) OnSessionShutdown(h func(SessionShutdownEvent, Context)) {
	a.on(SessionShutdown, func(e Event, ctx Context) Result { h(e.(SessionShutdownEvent), ctx); return nil })
}

func (a *API) OnSessionBeforeSwitch(h func(SessionBeforeSwitchEvent, Context) *CancelResult) {
	a.on(SessionBeforeSwitch, func(e Event, ctx Context) Result {
		r := h(e.(SessionBeforeSwitchEvent), ctx)
		if r == nil {
			return nil
		}
		return *r
	})
}

func (a *API) OnSessionBeforeBranch(h func(SessionBeforeBranchEvent, Context) *CancelResult) {
	a.on(SessionBeforeBranch, func(e Event, ctx Context) Result {
		r := h(e.(SessionBeforeBranchEvent), ctx)
		if r == nil {
			return nil
		}
		return *r
	})
}

func (a *API) OnSessionBeforeCompact(h func(SessionBeforeCompactEvent, Context) *SessionBeforeCompactResult) {
	a.on(SessionBeforeCompact, func(e Event, ctx Context) Result {
		r := h(e.(SessionBeforeCompactEvent), ctx)
		if r == nil {
			return nil
		}
		return *r
	})
}

func (a *API) OnSessionBeforeTree(h func(SessionBeforeTreeEvent, Context) *SessionBeforeTreeResult) {
	a.on(SessionBeforeTree, func(e Event, ctx Context) Result {
		r := h(e.(SessionBeforeTreeEvent), ctx)
		if r == nil {
			return nil
		}
		return *r
	})
}

func (a *API) RegisterTool(tool ToolDef) {
	a.loaded.Tools = append(a.loaded.Tools, tool)
}

func (a *API) RegisterCommand(cmd CommandDef) {
	a.loaded.Commands = append(a.loaded.Commands, cmd)
}

func (a *API) RegisterToolRenderer(cfg ToolRenderConfig) {
	a.loaded.ToolRenderers = append(a.loaded.ToolRenderers, cfg)
}

// NoninteractiveContext returns a Context whose prompt/overlay functions all
// return an immediate cancelled result, for use outside a TUI — e.g. a
// scripted/headless run. See spec.md §9 Open Question decision.
func NoninteractiveContext(sessionID, cwd, model string) Context {
	return Context{
		SessionID: sessionID, CWD: cwd, Model: model, Interactive: false,
		Print: func(string) {}, PrintInfo: func(string) {}, PrintError: func(string) {},
		SendMessage:  func(string) {},
		SetWidget:    func(WidgetConfig) {}, RemoveWidget: func(string) {},
		SetHeader: func(HeaderFooterConfig) {}, RemoveHeader: func() {},
		SetFooter: func(HeaderFooterConfig) {}, RemoveFooter: func() {},
		PromptSelect:  func(PromptSelectConfig) PromptSelectResult { return PromptSelectResult{Cancelled: true} },
		PromptConfirm: func(PromptConfirmConfig) PromptConfirmResult { return PromptConfirmResult{Cancelled: true} },
		PromptInput:   func(PromptInputConfig) PromptInputResult { return PromptInputResult{Cancelled: true} },
		ShowOverlay:   func(OverlayConfig) OverlayResult { return OverlayResult{Cancelled: true} },
		SetEditor:     func(EditorConfig) {}, ResetEditor: func() {},
	}
}
