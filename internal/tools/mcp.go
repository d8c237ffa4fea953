package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/forgecode/forge/internal/builtin"
	"github.com/forgecode/forge/internal/config"
	"github.com/forgecode/forge/internal/logging"
	"github.com/forgecode/forge/internal/message"
)

// MCPToolManager loads and executes tools across every configured MCP
// server (stdio, SSE, streamable HTTP, and in-process builtin servers),
// prefixing each tool's name with its owning server to avoid collisions,
// and filtering by AllowedTools/ExcludedTools. Grounded directly on the
// teacher's internal/tools/mcp.go, generalized from fantasy.AgentTool to
// this module's tools.Tool/message.Message types.
type MCPToolManager struct {
	pool        *MCPConnectionPool
	registry    *Registry
	debugLogger DebugLogger
}

// NewMCPToolManager returns a manager with no servers loaded yet.
func NewMCPToolManager() *MCPToolManager {
	return &MCPToolManager{registry: NewRegistry()}
}

// SetDebugLogger configures verbose connection/tool-loading diagnostics.
func (m *MCPToolManager) SetDebugLogger(logger DebugLogger) {
	m.debugLogger = logger
	if m.pool != nil {
		m.pool.SetDebugLogger(logger)
	}
}

// LoadTools connects to every server in settings.MCPServers and registers
// its tools. A single server failing to load is logged as a warning and
// skipped; an error is returned only when every configured server fails.
func (m *MCPToolManager) LoadTools(ctx context.Context, settings config.Settings) error {
	m.pool = NewMCPConnectionPool(DefaultConnectionPoolConfig())
	if m.debugLogger == nil {
		m.debugLogger = NewSimpleDebugLogger(false)
	}
	m.pool.SetDebugLogger(m.debugLogger)

	var loadErrors []string
	for serverName, serverConfig := range settings.MCPServers {
		if err := m.loadServerTools(ctx, serverName, serverConfig); err != nil {
			logging.Default().Warn("MCP server failed to load", "server", serverName, "error", err)
			loadErrors = append(loadErrors, fmt.Sprintf("server %s: %v", serverName, err))
			continue
		}
	}

	if len(settings.MCPServers) > 0 && len(loadErrors) == len(settings.MCPServers) {
		return fmt.Errorf("all MCP servers failed to load: %s", strings.Join(loadErrors, "; "))
	}
	return nil
}

func (m *MCPToolManager) loadServerTools(ctx context.Context, serverName string, serverConfig config.MCPServerConfig) error {
	m.debugLogConnectionInfo(serverName, serverConfig)

	conn, err := m.pool.GetConnection(ctx, serverName, serverConfig, m.createMCPClient)
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}

	listResults, err := conn.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		m.pool.HandleConnectionError(serverName, err)
		return fmt.Errorf("list tools: %w", err)
	}

	var allowed map[string]struct{}
	if len(serverConfig.AllowedTools) > 0 {
		allowed = make(map[string]struct{}, len(serverConfig.AllowedTools))
		for _, name := range serverConfig.AllowedTools {
			allowed[name] = struct{}{}
		}
	}

	for _, mcpTool := range listResults.Tools {
		if allowed != nil {
			if _, ok := allowed[mcpTool.Name]; !ok {
				continue
			}
		}
		if shouldExcludeTool(mcpTool.Name, serverConfig) {
			continue
		}

		schema, err := sanitizedSchema(mcpTool.InputSchema)
		if err != nil {
			return fmt.Errorf("tool %s: %w", mcpTool.Name, err)
		}

		m.registry.Register(&mcpTool_{
			name:        fmt.Sprintf("%s__%s", serverName, mcpTool.Name),
			description: mcpTool.Description,
			schema:      schema,
			serverName:  serverName,
			toolName:    mcpTool.Name,
			client:      conn.client,
			pool:        m.pool,
		})
	}

	return nil
}

func shouldExcludeTool(toolName string, serverConfig config.MCPServerConfig) bool {
	return len(serverConfig.ExcludedTools) > 0 && slices.Contains(serverConfig.ExcludedTools, toolName)
}

// Registry returns the underlying tool registry, ready to pass to the
// agent core as a ToolExecutor (via Registry.Execute) and to the provider
// request builder (via Registry.Specs).
func (m *MCPToolManager) Registry() *Registry { return m.registry }

// LoadedServerNames returns every server currently holding an open
// connection, for status reporting.
func (m *MCPToolManager) LoadedServerNames() []string {
	names := make([]string, 0)
	for name := range m.pool.GetClients() {
		names = append(names, name)
	}
	return names
}

// Close tears down every MCP client connection.
func (m *MCPToolManager) Close() error {
	if m.pool == nil {
		return nil
	}
	return m.pool.Close()
}

func (m *MCPToolManager) createMCPClient(ctx context.Context, serverName string, serverConfig config.MCPServerConfig) (client.MCPClient, error) {
	switch serverConfig.GetTransportType() {
	case config.TransportStdio:
		return createStdioClient(ctx, serverConfig)
	case config.TransportSSE:
		return createSSEClient(ctx, serverConfig)
	case config.TransportStreaming:
		return createStreamableClient(ctx, serverConfig)
	case config.TransportBuiltin:
		return m.createBuiltinClient(serverConfig)
	default:
		return nil, fmt.Errorf("unsupported transport type %q for server %s", serverConfig.GetTransportType(), serverName)
	}
}

func createStdioClient(ctx context.Context, serverConfig config.MCPServerConfig) (client.MCPClient, error) {
	var env []string
	var command string
	var args []string

	if len(serverConfig.Command) > 0 {
		command = serverConfig.Command[0]
		if len(serverConfig.Command) > 1 {
			args = serverConfig.Command[1:]
		} else if len(serverConfig.Args) > 0 {
			args = serverConfig.Args
		}
	}
	for k, v := range serverConfig.Environment {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	for k, v := range serverConfig.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	stdioTransport := transport.NewStdio(command, env, args...)
	c := client.NewClient(stdioTransport)
	if err := stdioTransport.Start(ctx); err != nil {
		return nil, fmt.Errorf("start stdio transport: %w", err)
	}
	time.Sleep(100 * time.Millisecond)
	return c, nil
}

func parsedHeaders(serverConfig config.MCPServerConfig) map[string]string {
	if len(serverConfig.Headers) == 0 {
		return nil
	}
	headers := make(map[string]string, len(serverConfig.Headers))
	for k, v := range serverConfig.Headers {
		headers[k] = v
	}
	return headers
}

func createSSEClient(ctx context.Context, serverConfig config.MCPServerConfig) (client.MCPClient, error) {
	var options []transport.ClientOption
	if headers := parsedHeaders(serverConfig); len(headers) > 0 {
		options = append(options, transport.WithHeaders(headers))
	}

	c, err := client.NewSSEMCPClient(serverConfig.URL, options...)
	if err != nil {
		return nil, err
	}
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("start SSE client: %w", err)
	}
	return c, nil
}

func createStreamableClient(ctx context.Context, serverConfig config.MCPServerConfig) (client.MCPClient, error) {
	var options []transport.StreamableHTTPCOption
	if headers := parsedHeaders(serverConfig); len(headers) > 0 {
		options = append(options, transport.WithHTTPHeaders(headers))
	}

	c, err := client.NewStreamableHttpClient(serverConfig.URL, options...)
	if err != nil {
		return nil, err
	}
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("start streamable HTTP client: %w", err)
	}
	return c, nil
}

func (m *MCPToolManager) createBuiltinClient(serverConfig config.MCPServerConfig) (client.MCPClient, error) {
	registry := builtin.NewRegistry()
	srv, err := registry.CreateServer(serverConfig.Name, serverConfig.Options)
	if err != nil {
		return nil, fmt.Errorf("create builtin server: %w", err)
	}
	c, err := client.NewInProcessClient(srv.GetServer())
	if err != nil {
		return nil, fmt.Errorf("create in-process client: %w", err)
	}
	return c, nil
}

func (m *MCPToolManager) debugLogConnectionInfo(serverName string, serverConfig config.MCPServerConfig) {
	if m.debugLogger == nil || !m.debugLogger.IsDebugEnabled() {
		return
	}
	m.debugLogger.LogDebug(fmt.Sprintf("[DEBUG] connecting to MCP server: %s", serverName))
	m.debugLogger.LogDebug(fmt.Sprintf("[DEBUG] transport type: %s", serverConfig.GetTransportType()))

	switch serverConfig.GetTransportType() {
	case config.TransportStdio:
		if len(serverConfig.Command) > 0 {
			m.debugLogger.LogDebug(fmt.Sprintf("[DEBUG] command: %s %v", serverConfig.Command[0], serverConfig.Command[1:]))
		}
	case config.TransportSSE, config.TransportStreaming:
		m.debugLogger.LogDebug(fmt.Sprintf("[DEBUG] url: %s", serverConfig.URL))
	}
}

// sanitizedSchema converts an MCP tool's draft-07-style input schema into
// the form the tools.Tool/provider.ToolSpec contract expects, fixing the
// exclusiveMinimum/exclusiveMaximum draft mismatch along the way.
func sanitizedSchema(inputSchema any) (json.RawMessage, error) {
	marshaled, err := json.Marshal(inputSchema)
	if err != nil {
		return nil, fmt.Errorf("marshal input schema: %w", err)
	}
	return convertExclusiveBoundsToBoolean(marshaled), nil
}

// convertExclusiveBoundsToBoolean converts JSON Schema draft-07 style
// exclusive bounds (numeric exclusiveMinimum/exclusiveMaximum) to draft-04
// style (booleans modifying minimum/maximum), matching what some older MCP
// servers and most LLM tool-calling APIs still expect.
func convertExclusiveBoundsToBoolean(schemaJSON []byte) json.RawMessage {
	var data map[string]any
	if err := json.Unmarshal(schemaJSON, &data); err != nil {
		return schemaJSON
	}
	convertSchemaRecursive(data)
	result, err := json.Marshal(data)
	if err != nil {
		return schemaJSON
	}
	return result
}

func convertSchemaRecursive(schema map[string]any) {
	if exMin, ok := schema["exclusiveMinimum"]; ok {
		if num, isNum := exMin.(float64); isNum {
			schema["minimum"] = num
			schema["exclusiveMinimum"] = true
		}
	}
	if exMax, ok := schema["exclusiveMaximum"]; ok {
		if num, isNum := exMax.(float64); isNum {
			schema["maximum"] = num
			schema["exclusiveMaximum"] = true
		}
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		for _, prop := range props {
			if propSchema, ok := prop.(map[string]any); ok {
				convertSchemaRecursive(propSchema)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		convertSchemaRecursive(items)
	}
	if addProps, ok := schema["additionalProperties"].(map[string]any); ok {
		convertSchemaRecursive(addProps)
	}
	for _, key := range []string{"allOf", "anyOf", "oneOf"} {
		if arr, ok := schema[key].([]any); ok {
			for _, item := range arr {
				if itemSchema, ok := item.(map[string]any); ok {
					convertSchemaRecursive(itemSchema)
				}
			}
		}
	}
	if not, ok := schema["not"].(map[string]any); ok {
		convertSchemaRecursive(not)
	}
}

// mcpTool_ adapts one MCP server tool to the tools.Tool contract. Named
// with a trailing underscore so loadServerTools' loop variable mcpTool
// does not shadow the type.
type mcpTool_ struct {
	name        string
	description string
	schema      json.RawMessage
	serverName  string
	toolName    string
	client      client.MCPClient
	pool        *MCPConnectionPool
}

func (t *mcpTool_) Name() string               { return t.name }
func (t *mcpTool_) Description() string        { return t.description }
func (t *mcpTool_) InputSchema() json.RawMessage { return t.schema }

func (t *mcpTool_) Execute(ctx context.Context, argsJSON string) (message.Message, error) {
	var args map[string]any
	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return message.Message{}, fmt.Errorf("invalid tool arguments: %w", err)
		}
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = t.toolName
	req.Params.Arguments = args

	result, err := t.client.CallTool(ctx, req)
	if err != nil {
		t.pool.HandleConnectionError(t.serverName, err)
		return message.Message{}, fmt.Errorf("call tool %s: %w", t.name, err)
	}

	var blocks []message.Block
	for _, content := range result.Content {
		if text, ok := content.(mcp.TextContent); ok {
			blocks = append(blocks, message.Text{Text: text.Text})
		}
	}
	if len(blocks) == 0 {
		blocks = []message.Block{message.Text{Text: ""}}
	}

	return message.Message{
		Blocks:  blocks,
		IsError: result.IsError,
	}, nil
}
