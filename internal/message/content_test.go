package message

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalBlocksRoundTrip(t *testing.T) {
	blocks := []Block{
		Text{Text: "hello"},
		Thinking{Text: "pondering", OpaqueSignature: "sig123"},
		ToolCall{ID: "call_1", Name: "bash", ArgumentsJSON: `{"cmd":"ls"}`},
	}

	raw, err := MarshalBlocks(blocks)
	require.NoError(t, err)

	got, err := UnmarshalBlocks(raw)
	require.NoError(t, err)
	require.Equal(t, blocks, got)
}

func TestMessageTextConcatenatesTextBlocksOnly(t *testing.T) {
	m := Message{
		Blocks: []Block{
			Text{Text: "first"},
			ToolCall{ID: "x", Name: "bash"},
			Text{Text: "second"},
		},
	}
	require.Equal(t, "first\nsecond", m.Text())
}

func TestAddToolCallReplacesExistingByID(t *testing.T) {
	m := Message{}
	m.AddToolCall(ToolCall{ID: "a", Name: "bash", ArgumentsJSON: `{"partial":`})
	m.AddToolCall(ToolCall{ID: "a", Name: "bash", ArgumentsJSON: `{"cmd":"ls"}`})

	calls := m.ToolCalls()
	require.Len(t, calls, 1)
	require.Equal(t, `{"cmd":"ls"}`, calls[0].ArgumentsJSON)
}

func TestMessageJSONRoundTrip(t *testing.T) {
	m := Message{
		ID:   "m1",
		Role: RoleAssistant,
		Blocks: []Block{
			Text{Text: "hi"},
		},
		StopReason: StopReasonStop,
	}
	data, err := m.MarshalJSON()
	require.NoError(t, err)

	var out Message
	require.NoError(t, out.UnmarshalJSON(data))
	require.Equal(t, m.Blocks, out.Blocks)
	require.Equal(t, m.StopReason, out.StopReason)
}
