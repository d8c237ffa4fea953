package builtin

import (
	"context"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"
)

func TestHandleBashRunsCommand(t *testing.T) {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"command": "echo hello"}

	result, err := handleBash(5 * time.Second)(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	require.Contains(t, text.Text, "hello")
}

func TestHandleBashMissingCommandIsError(t *testing.T) {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{}

	result, err := handleBash(5 * time.Second)(context.Background(), req)
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestNewBashServerRegistersTool(t *testing.T) {
	w, err := newBashServer(nil)
	require.NoError(t, err)
	require.NotNil(t, w.GetServer())
}
