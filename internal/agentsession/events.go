package agentsession

import (
	"github.com/forgecode/forge/internal/compaction"
	"github.com/forgecode/forge/internal/message"
)

// EventType tags one entry of the facade's event stream, which forwards
// every agent.Event plus the auto-compaction/auto-retry/agent-lifecycle
// events spec.md §4.H and §4.I layer on top.
type EventType string

const (
	EventAgentStart EventType = "agent_start"
	EventAgentEnd   EventType = "agent_end"

	EventTurnStart     EventType = "turn_start"
	EventMessageStart  EventType = "message_start"
	EventTextDelta     EventType = "text_delta"
	EventMessageUpdate EventType = "message_update"
	EventThinkingDelta EventType = "thinking_delta"
	EventToolCallStart EventType = "tool_call_start"
	EventToolResult    EventType = "tool_result"
	EventMessageEnd    EventType = "message_end"
	EventTurnEnd       EventType = "turn_end"
	EventBlocked       EventType = "blocked" // a UserPromptSubmit/PreToolUse hook or ToolApprovalHandler denied the action
	EventError         EventType = "error"

	EventAutoCompactionStart EventType = "auto_compaction_start"
	EventAutoCompactionEnd   EventType = "auto_compaction_end"
	EventAutoRetryStart      EventType = "auto_retry_start"
	EventAutoRetryEnd        EventType = "auto_retry_end"
)

// Event is one entry in the facade's ordered event stream.
type Event struct {
	Type EventType

	Text     string
	ToolCall message.ToolCall
	Result   message.Message
	Message  message.Message
	Err      error

	// auto_compaction_start/end
	Reason           string
	CompactionResult *compaction.Result
	Aborted          bool
	WillRetry        bool

	// auto_retry_start/end
	RetryAttempt     int
	RetryMaxAttempts int
	RetryDelayMs     int64
}

func emit(out chan<- Event, ev Event) {
	if out != nil {
		out <- ev
	}
}
