// Package message defines the provider-neutral conversation content model
// shared by the session store and the provider adapter: a tagged slice of
// content blocks per message, with type-tagged JSON round-tripping so a
// Message can be persisted verbatim in a session entry and rebuilt later.
package message

import (
	"encoding/json"
	"fmt"
	"time"
)

// Block is the marker interface for all message content block types.
type Block interface {
	isBlock()
}

// Text holds plain text content.
type Text struct {
	Text string `json:"text"`
}

func (Text) isBlock() {}

// Image holds an inline image attachment, either raw bytes or a base64
// payload (exactly one of Bytes/Base64 is set).
type Image struct {
	MIME   string `json:"mime"`
	Bytes  []byte `json:"bytes,omitempty"`
	Base64 string `json:"base64,omitempty"`
}

func (Image) isBlock() {}

// Thinking holds extended-reasoning output. OpaqueSignature preserves
// provider round-trip state (e.g. Anthropic's encrypted thinking signature)
// across turns without the caller needing to understand its contents.
type Thinking struct {
	Text             string `json:"text"`
	OpaqueSignature  string `json:"opaque_signature,omitempty"`
}

func (Thinking) isBlock() {}

// ToolCall is an assistant-authored tool invocation.
type ToolCall struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	ArgumentsJSON   string `json:"arguments_json"`
	ThoughtSignature string `json:"thought_signature,omitempty"`
}

func (ToolCall) isBlock() {}

// Role identifies the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleToolBlock Role = "tool_result"
	RoleCustom    Role = "custom"
)

// StopReason is the terminal state of an Assistant message's stream.
type StopReason string

const (
	StopReasonStop    StopReason = "stop"
	StopReasonToolUse StopReason = "toolUse"
	StopReasonLength  StopReason = "length"
	StopReasonAborted StopReason = "aborted"
	StopReasonError   StopReason = "error"
)

// Usage carries token accounting for an Assistant message, per spec.md §4.E:
// Input = promptTokens - cachedTokens; Output = candidateTokens + thoughtTokens.
type Usage struct {
	Input       int     `json:"input"`
	Output      int     `json:"output"`
	CacheRead   int     `json:"cache_read"`
	CacheWrite  int     `json:"cache_write"`
	TotalTokens int     `json:"total_tokens"`
	Cost        float64 `json:"cost"`
}

// Message is a single conversation message. Exactly one of the role-specific
// fields is meaningful at a time; the Go type models this as one struct with
// optional fields rather than an interface so it serializes uniformly.
type Message struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Blocks    []Block `json:"blocks"`

	// Assistant-only fields.
	Usage        Usage      `json:"usage,omitzero"`
	StopReason   StopReason `json:"stop_reason,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Provider     string     `json:"provider,omitempty"`
	ModelID      string     `json:"model_id,omitempty"`

	// ToolResult-only fields (a ToolResult message carries exactly one
	// result; a turn that produces N tool calls appends N such messages).
	ToolCallID  string `json:"tool_call_id,omitempty"`
	ToolName    string `json:"tool_name,omitempty"`
	IsError     bool   `json:"is_error,omitempty"`
	Details     json.RawMessage `json:"details,omitempty"`
	ExcludedFromContext bool `json:"excluded_from_context,omitempty"`

	// Custom-only fields.
	CustomType string          `json:"custom_type,omitempty"`
	Display    string          `json:"display,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Text concatenates all Text blocks in the message, matching the teacher's
// Message.Content() helper.
func (m *Message) Text() string {
	var out string
	for _, b := range m.Blocks {
		if t, ok := b.(Text); ok {
			if out != "" {
				out += "\n"
			}
			out += t.Text
		}
	}
	return out
}

// ToolCalls returns all ToolCall blocks in source order.
func (m *Message) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, b := range m.Blocks {
		if tc, ok := b.(ToolCall); ok {
			calls = append(calls, tc)
		}
	}
	return calls
}

// AddToolCall appends a tool call block, or replaces an existing one with
// the same ID — this supports streaming where a partial call (empty/partial
// ArgumentsJSON) arrives before the final version.
func (m *Message) AddToolCall(tc ToolCall) {
	for i, b := range m.Blocks {
		if existing, ok := b.(ToolCall); ok && existing.ID == tc.ID {
			m.Blocks[i] = tc
			return
		}
	}
	m.Blocks = append(m.Blocks, tc)
}

// --- type-tagged JSON ---

type blockType string

const (
	typeText     blockType = "text"
	typeImage    blockType = "image"
	typeThinking blockType = "thinking"
	typeToolCall blockType = "tool_call"
)

type blockEnvelope struct {
	Type blockType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MarshalBlocks serializes a slice of Block to a type-tagged JSON array.
func MarshalBlocks(blocks []Block) (json.RawMessage, error) {
	envs := make([]blockEnvelope, 0, len(blocks))
	for _, b := range blocks {
		var t blockType
		switch b.(type) {
		case Text:
			t = typeText
		case Image:
			t = typeImage
		case Thinking:
			t = typeThinking
		case ToolCall:
			t = typeToolCall
		default:
			return nil, fmt.Errorf("message: unknown block type %T", b)
		}
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("message: marshal %s block: %w", t, err)
		}
		envs = append(envs, blockEnvelope{Type: t, Data: data})
	}
	return json.Marshal(envs)
}

// UnmarshalBlocks parses a type-tagged JSON array back into Block values.
func UnmarshalBlocks(raw json.RawMessage) ([]Block, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var envs []blockEnvelope
	if err := json.Unmarshal(raw, &envs); err != nil {
		return nil, fmt.Errorf("message: unmarshal block envelope: %w", err)
	}
	blocks := make([]Block, 0, len(envs))
	for _, e := range envs {
		var b Block
		switch e.Type {
		case typeText:
			var v Text
			if err := json.Unmarshal(e.Data, &v); err != nil {
				return nil, err
			}
			b = v
		case typeImage:
			var v Image
			if err := json.Unmarshal(e.Data, &v); err != nil {
				return nil, err
			}
			b = v
		case typeThinking:
			var v Thinking
			if err := json.Unmarshal(e.Data, &v); err != nil {
				return nil, err
			}
			b = v
		case typeToolCall:
			var v ToolCall
			if err := json.Unmarshal(e.Data, &v); err != nil {
				return nil, err
			}
			b = v
		default:
			return nil, fmt.Errorf("message: unknown block type %q", e.Type)
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// MarshalJSON implements custom marshaling so Blocks is stored type-tagged.
func (m Message) MarshalJSON() ([]byte, error) {
	type alias Message
	blocks, err := MarshalBlocks(m.Blocks)
	if err != nil {
		return nil, err
	}
	aux := struct {
		alias
		Blocks json.RawMessage `json:"blocks"`
	}{alias: alias(m), Blocks: blocks}
	return json.Marshal(aux)
}

// UnmarshalJSON implements custom unmarshaling for type-tagged Blocks.
func (m *Message) UnmarshalJSON(data []byte) error {
	type alias Message
	aux := struct {
		*alias
		Blocks json.RawMessage `json:"blocks"`
	}{alias: (*alias)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	blocks, err := UnmarshalBlocks(aux.Blocks)
	if err != nil {
		return err
	}
	m.Blocks = blocks
	return nil
}
