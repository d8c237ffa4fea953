package provider

import (
	"fmt"

	"github.com/forgecode/forge/internal/message"
)

// RepairOrphanToolResults rewrites any ToolResult message whose ToolCallID
// does not match a preceding ToolCall block into a plain assistant text
// message, per spec.md §4.E: providers reject a tool_result with no matching
// tool_use in the same request, which happens after a branch or a crash
// mid-turn leaves a dangling result in the log.
func RepairOrphanToolResults(messages []message.Message) []message.Message {
	knownCalls := map[string]bool{}
	out := make([]message.Message, 0, len(messages))

	for _, m := range messages {
		if m.Role == message.RoleAssistant {
			for _, tc := range m.ToolCalls() {
				knownCalls[tc.ID] = true
			}
			out = append(out, m)
			continue
		}
		if m.Role == message.RoleToolBlock && !knownCalls[m.ToolCallID] {
			out = append(out, rewriteOrphanResult(m))
			continue
		}
		out = append(out, m)
	}
	return out
}

func rewriteOrphanResult(m message.Message) message.Message {
	label := "tool result"
	if m.ToolName != "" {
		label = m.ToolName
	}
	text := m.Text()
	if text == "" {
		for _, b := range m.Blocks {
			if t, ok := b.(message.Text); ok {
				text = t.Text
				break
			}
		}
	}
	return message.Message{
		ID:        m.ID,
		Role:      message.RoleAssistant,
		Blocks:    []message.Block{message.Text{Text: fmt.Sprintf("[orphaned %s result]\n%s", label, text)}},
		Timestamp: m.Timestamp,
	}
}

// SynthesizeToolCallID returns a deterministic-looking placeholder id for a
// tool call a provider streamed without one (some OpenAI-compatible gateways
// omit ids on the first delta chunk of a call). callIndex is the call's
// position within the assistant turn.
func SynthesizeToolCallID(callIndex int) string {
	return fmt.Sprintf("call_synth_%d", callIndex)
}
