package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/forgecode/forge/internal/message"
	"github.com/stretchr/testify/require"
)

type fakeTool struct {
	name string
	err  error
}

func (t fakeTool) Name() string                     { return t.name }
func (t fakeTool) Description() string              { return "a fake tool" }
func (t fakeTool) InputSchema() json.RawMessage     { return json.RawMessage(`{"type":"object"}`) }
func (t fakeTool) Execute(_ context.Context, argsJSON string) (message.Message, error) {
	if t.err != nil {
		return message.Message{}, t.err
	}
	return message.Message{Blocks: []message.Block{message.Text{Text: "ok:" + argsJSON}}}, nil
}

func TestRegistryRegisterPreservesOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(fakeTool{name: "b"})
	r.Register(fakeTool{name: "a"})
	r.Register(fakeTool{name: "b"}) // re-register shouldn't move "b"

	names := make([]string, 0)
	for _, tl := range r.List() {
		names = append(names, tl.Name())
	}
	require.Equal(t, []string{"b", "a"}, names)
}

func TestRegistryExecuteUnknownToolReturnsErrorResult(t *testing.T) {
	r := NewRegistry()
	result, err := r.Execute(context.Background(), message.ToolCall{ID: "c1", Name: "missing"})
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Equal(t, "c1", result.ToolCallID)
}

func TestRegistryExecuteToolErrorBecomesErrorResult(t *testing.T) {
	r := NewRegistry()
	r.Register(fakeTool{name: "boom", err: errors.New("kaboom")})
	result, err := r.Execute(context.Background(), message.ToolCall{ID: "c1", Name: "boom"})
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Contains(t, result.Text(), "kaboom")
}

func TestRegistrySpecsMirrorRegisteredTools(t *testing.T) {
	r := NewRegistry()
	r.Register(fakeTool{name: "a"})
	specs := r.Specs()
	require.Len(t, specs, 1)
	require.Equal(t, "a", specs[0].Name)
}
