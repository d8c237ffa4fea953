// Package provider defines the streaming LLM provider adapter contract from
// spec.md §4.E: a provider-neutral request/event model, backed by concrete
// Anthropic and OpenAI-compatible SSE implementations in the anthropic and
// openai subpackages.
package provider

import (
	"context"

	"github.com/forgecode/forge/internal/message"
)

// Request describes one turn sent to a model.
type Request struct {
	Model         string
	SystemPrompt  string
	Messages      []message.Message
	Tools         []ToolSpec
	MaxTokens     int
	Temperature   float64
	TopP          float64
	TopK          int
	StopSequences []string
	ThinkingLevel string
}

// ToolSpec is a provider-neutral tool declaration.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema []byte // raw JSON Schema
}

// EventType tags a streamed delta event per spec.md §4.E.
type EventType string

const (
	EventTextStart     EventType = "text_start"
	EventTextDelta     EventType = "text_delta"
	EventTextEnd       EventType = "text_end"
	EventThinkingStart EventType = "thinking_start"
	EventThinkingDelta EventType = "thinking_delta"
	EventThinkingEnd   EventType = "thinking_end"
	EventToolCallStart EventType = "toolcall_start"
	EventToolCallDelta EventType = "toolcall_delta"
	EventToolCallEnd   EventType = "toolcall_end"
	EventUsage         EventType = "usage"
	EventDone          EventType = "done"
	EventError         EventType = "error"
)

// Event is one delta emitted while streaming a turn. Only the fields
// relevant to Type are populated.
type Event struct {
	Type EventType

	Text string // EventTextDelta, EventThinkingDelta

	ToolCallID   string // EventToolCallStart/Delta/End
	ToolCallName string // EventToolCallStart
	ArgsDelta    string // EventToolCallDelta (raw JSON fragment)

	ThoughtSignature string // EventThinkingEnd (opaque, round-tripped verbatim)

	Usage      message.Usage    // EventUsage
	StopReason message.StopReason // EventDone
	Err        error            // EventError
}

// Stream is the channel of Events a Backend produces for one turn.
type Stream <-chan Event

// Backend is implemented by each concrete provider (anthropic, openai).
type Backend interface {
	// Name identifies the backend for error messages and model-string parsing.
	Name() string
	// StreamTurn sends req and returns a channel of Events. The channel is
	// closed after an EventDone or EventError. Cancelling ctx stops the
	// underlying HTTP request and closes the channel.
	StreamTurn(ctx context.Context, req Request) (Stream, error)
}
