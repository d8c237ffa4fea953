package compaction

import (
	"context"
	"testing"

	"github.com/forgecode/forge/internal/message"
	"github.com/stretchr/testify/require"
)

func textMsg(role message.Role, text string) message.Message {
	return message.Message{Role: role, Blocks: []message.Block{message.Text{Text: text}}}
}

func TestShouldCompact(t *testing.T) {
	msgs := []message.Message{textMsg(message.RoleUser, string(make([]byte, 4000)))}
	require.True(t, ShouldCompact(msgs, 1000, 0))
	require.False(t, ShouldCompact(msgs, 1_000_000, 0))
}

func TestFindCutPointNeverSplitsToolResult(t *testing.T) {
	msgs := []message.Message{
		textMsg(message.RoleUser, "q1"),
		textMsg(message.RoleAssistant, "a1"),
		{Role: message.RoleAssistant, Blocks: []message.Block{message.ToolCall{ID: "c1", Name: "bash"}}},
		{Role: message.RoleToolBlock, ToolCallID: "c1", Blocks: []message.Block{message.Text{Text: "out"}}},
		textMsg(message.RoleUser, "q2"),
	}
	cut := FindCutPoint(msgs, 1) // tiny budget forces a cut near the end
	require.True(t, cut < 0 || msgs[cut].Role != message.RoleToolBlock)
}

func TestForceCutPointSkipsToolMessages(t *testing.T) {
	msgs := []message.Message{
		textMsg(message.RoleUser, "q1"),
		{Role: message.RoleAssistant, Blocks: []message.Block{message.ToolCall{ID: "c1", Name: "bash"}}},
		{Role: message.RoleToolBlock, ToolCallID: "c1", Blocks: []message.Block{message.Text{Text: "out"}}},
	}
	cut := forceCutPoint(msgs)
	require.Equal(t, 1, cut)
}

type fakeSummarizer struct{ text string }

func (f fakeSummarizer) Summarize(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	return f.text, nil
}

func TestCompactInjectsSummaryPair(t *testing.T) {
	msgs := []message.Message{
		textMsg(message.RoleUser, "old question"),
		textMsg(message.RoleAssistant, "old answer"),
		textMsg(message.RoleUser, "recent question"),
	}
	result, retained, err := Compact(context.Background(), fakeSummarizer{text: "summary text"}, "m", msgs, Options{KeepRecentTokens: 1}, "")
	require.NoError(t, err)
	require.Equal(t, "summary text", result.Summary)
	require.Equal(t, "summary text", retained[1].Text())
}
