package builtin

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	defaultFetchTimeout  = 30 * time.Second
	maxFetchResponseBody = 1 << 20 // 1 MiB, avoids flooding a turn's context
)

func newFetchServer(options map[string]any) (*Wrapper, error) {
	s := server.NewMCPServer("forge-fetch", "1.0.0", server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("fetch",
		mcp.WithDescription("Fetch a URL over HTTP(S) and return its response body as text"),
		mcp.WithString("url", mcp.Description("The URL to fetch"), mcp.Required()),
		mcp.WithString("method", mcp.Description("HTTP method, defaults to GET")),
	), handleFetch)

	return &Wrapper{server: s}, nil
}

func handleFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, ok := req.Params.Arguments["url"].(string)
	if !ok || url == "" {
		return errorResult("url is required"), nil
	}
	method := "GET"
	if m, ok := req.Params.Arguments["method"].(string); ok && m != "" {
		method = m
	}

	reqCtx, cancel := context.WithTimeout(ctx, defaultFetchTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, method, url, nil)
	if err != nil {
		return errorResult("invalid request: " + err.Error()), nil
	}

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return errorResult("request failed: " + err.Error()), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchResponseBody))
	if err != nil {
		return errorResult("reading response: " + err.Error()), nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(body)}},
		IsError: resp.StatusCode >= 400,
	}, nil
}
