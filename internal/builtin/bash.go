package builtin

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const defaultBashTimeout = 2 * time.Minute

func newBashServer(options map[string]any) (*Wrapper, error) {
	timeout := defaultBashTimeout
	if v, ok := options["timeout_seconds"]; ok {
		if secs, ok := v.(float64); ok && secs > 0 {
			timeout = time.Duration(secs) * time.Second
		}
	}

	s := server.NewMCPServer("forge-bash", "1.0.0", server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("bash",
		mcp.WithDescription("Run a shell command and return its combined stdout/stderr"),
		mcp.WithString("command", mcp.Description("The shell command to execute"), mcp.Required()),
		mcp.WithNumber("timeout_seconds", mcp.Description("Override the default command timeout")),
	), handleBash(timeout))

	return &Wrapper{server: s}, nil
}

func handleBash(defaultTimeout time.Duration) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		command, ok := req.Params.Arguments["command"].(string)
		if !ok || command == "" {
			return errorResult("command is required"), nil
		}

		timeout := defaultTimeout
		if v, ok := req.Params.Arguments["timeout_seconds"].(float64); ok && v > 0 {
			timeout = time.Duration(v) * time.Second
		}

		runCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", command)
		out, err := cmd.CombinedOutput()
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.TextContent{Type: "text", Text: fmt.Sprintf("%s\nerror: %v", out, err)}},
				IsError: true,
			}, nil
		}
		return &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(out)}}}, nil
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
		IsError: true,
	}
}
