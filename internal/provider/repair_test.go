package provider

import (
	"testing"

	"github.com/forgecode/forge/internal/message"
	"github.com/stretchr/testify/require"
)

func TestRepairOrphanToolResultsKeepsMatchedPairs(t *testing.T) {
	msgs := []message.Message{
		{Role: message.RoleAssistant, Blocks: []message.Block{message.ToolCall{ID: "call_1", Name: "bash"}}},
		{Role: message.RoleToolBlock, ToolCallID: "call_1", ToolName: "bash", Blocks: []message.Block{message.Text{Text: "ok"}}},
	}
	out := RepairOrphanToolResults(msgs)
	require.Len(t, out, 2)
	require.Equal(t, message.RoleToolBlock, out[1].Role)
}

func TestRepairOrphanToolResultsRewritesUnmatched(t *testing.T) {
	msgs := []message.Message{
		{Role: message.RoleToolBlock, ToolCallID: "call_missing", ToolName: "bash", Blocks: []message.Block{message.Text{Text: "leftover"}}},
	}
	out := RepairOrphanToolResults(msgs)
	require.Len(t, out, 1)
	require.Equal(t, message.RoleAssistant, out[0].Role)
	require.Contains(t, out[0].Text(), "leftover")
}
