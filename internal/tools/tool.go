// Package tools implements spec.md §3's Tool contract and its MCP-backed
// registry, grounded on the teacher's internal/tools/mcp.go connection and
// tool-loading logic, adapted from fantasy.AgentTool onto this module's
// message/provider types.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/forgecode/forge/internal/message"
	"github.com/forgecode/forge/internal/provider"
)

// Tool is the contract every executable tool satisfies, whether it is
// backed by an MCP server or implemented in-process.
type Tool interface {
	Name() string
	Description() string
	// InputSchema returns the tool's JSON Schema parameter description.
	InputSchema() json.RawMessage
	// Execute runs the tool with argsJSON (the raw JSON object the model
	// supplied) and returns the resulting tool-result message. A non-nil
	// error is folded into a message with IsError set by the caller.
	Execute(ctx context.Context, argsJSON string) (message.Message, error)
}

// Registry holds every tool available to an agent turn, keyed by its
// (possibly server-prefixed) name.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry returns an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool. Re-registering a name preserves its
// original position so extension-supplied overrides don't reorder the
// tool-use prompt.
func (r *Registry) Register(t Tool) {
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get returns the named tool, or false if it isn't registered.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List returns every registered tool in registration order.
func (r *Registry) List() []Tool {
	result := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.tools[name])
	}
	return result
}

// Specs converts every registered tool into a provider.ToolSpec, the shape
// the LLM provider adapter sends as the turn's tool declarations.
func (r *Registry) Specs() []provider.ToolSpec {
	specs := make([]provider.ToolSpec, 0, len(r.order))
	for _, t := range r.List() {
		specs = append(specs, provider.ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	return specs
}

// Execute dispatches a message.ToolCall to its registered Tool, satisfying
// agent.ToolExecutor. An unknown tool name or a Tool error both become an
// IsError tool-result message rather than a Go error, since spec.md §7
// converts tool errors into a ToolResult surfaced back to the LLM rather
// than aborting the turn.
func (r *Registry) Execute(ctx context.Context, call message.ToolCall) (message.Message, error) {
	t, ok := r.Get(call.Name)
	if !ok {
		return errorResult(call, fmt.Sprintf("unknown tool %q", call.Name)), nil
	}

	result, err := t.Execute(ctx, call.ArgumentsJSON)
	if err != nil {
		return errorResult(call, err.Error()), nil
	}
	result.ToolCallID = call.ID
	result.ToolName = call.Name
	result.Role = message.RoleToolBlock
	return result, nil
}

func errorResult(call message.ToolCall, errText string) message.Message {
	return message.Message{
		Role:       message.RoleToolBlock,
		ToolCallID: call.ID,
		ToolName:   call.Name,
		IsError:    true,
		Blocks:     []message.Block{message.Text{Text: errText}},
	}
}
