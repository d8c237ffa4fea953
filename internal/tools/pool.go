package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/forgecode/forge/internal/config"
)

// ConnectionPoolConfig bounds connection lifetime and retry behavior.
// Reconstructed from the teacher's DefaultConnectionPoolConfig() call site
// in mcp.go; field names are this module's own since the defining source
// did not survive retrieval.
type ConnectionPoolConfig struct {
	InitTimeout   time.Duration
	MaxRetries    int
	RetryInterval time.Duration
}

// DefaultConnectionPoolConfig returns sane defaults for connecting to MCP
// servers over stdio/SSE/streamable HTTP.
func DefaultConnectionPoolConfig() ConnectionPoolConfig {
	return ConnectionPoolConfig{
		InitTimeout:   30 * time.Second,
		MaxRetries:    2,
		RetryInterval: 500 * time.Millisecond,
	}
}

// mcpConnection wraps one live MCP client with the server name that owns it.
type mcpConnection struct {
	serverName string
	client     client.MCPClient
}

// MCPConnectionPool owns one client per configured MCP server, lazily
// connecting and initializing on first use and tearing every connection
// down on Close. Thread-safe: LoadTools may connect to several servers
// concurrently in a future revision, so all pool state is mutex-guarded.
type MCPConnectionPool struct {
	mu          sync.Mutex
	cfg         ConnectionPoolConfig
	conns       map[string]*mcpConnection
	debugLogger DebugLogger
	newClient   func(ctx context.Context, serverName string, serverConfig config.MCPServerConfig) (client.MCPClient, error)
	initClient  func(ctx context.Context, c client.MCPClient, timeout time.Duration) error
}

// NewMCPConnectionPool returns an empty pool. MCPToolManager passes the
// client constructor to each GetConnection call; the pool then sends the
// MCP initialize request itself.
func NewMCPConnectionPool(cfg ConnectionPoolConfig) *MCPConnectionPool {
	return &MCPConnectionPool{
		cfg:   cfg,
		conns: make(map[string]*mcpConnection),
	}
}

// SetDebugLogger configures diagnostic logging for connection attempts.
func (p *MCPConnectionPool) SetDebugLogger(logger DebugLogger) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.debugLogger = logger
}

// GetConnection returns the cached connection for serverName, creating and
// initializing one on first use. Connection attempts are retried up to
// cfg.MaxRetries times with cfg.RetryInterval between attempts.
func (p *MCPConnectionPool) GetConnection(ctx context.Context, serverName string, serverConfig config.MCPServerConfig, createClient func(context.Context, string, config.MCPServerConfig) (client.MCPClient, error)) (*mcpConnection, error) {
	p.mu.Lock()
	if conn, ok := p.conns[serverName]; ok {
		p.mu.Unlock()
		return conn, nil
	}
	p.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.cfg.RetryInterval):
			}
		}

		c, err := createClient(ctx, serverName, serverConfig)
		if err != nil {
			lastErr = err
			continue
		}

		initCtx, cancel := context.WithTimeout(ctx, p.cfg.InitTimeout)
		initReq := mcp.InitializeRequest{}
		initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
		initReq.Params.ClientInfo = mcp.Implementation{Name: "forge", Version: "0.1.0"}
		initReq.Params.Capabilities = mcp.ClientCapabilities{}
		_, err = c.Initialize(initCtx, initReq)
		cancel()
		if err != nil {
			_ = c.Close()
			lastErr = fmt.Errorf("initialize: %w", err)
			continue
		}

		conn := &mcpConnection{serverName: serverName, client: c}
		p.mu.Lock()
		p.conns[serverName] = conn
		p.mu.Unlock()
		return conn, nil
	}

	return nil, fmt.Errorf("connect to MCP server %s: %w", serverName, lastErr)
}

// HandleConnectionError drops a broken connection from the pool so the next
// GetConnection call reconnects from scratch.
func (p *MCPConnectionPool) HandleConnectionError(serverName string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if conn, ok := p.conns[serverName]; ok {
		_ = conn.client.Close()
		delete(p.conns, serverName)
	}
	if p.debugLogger != nil && p.debugLogger.IsDebugEnabled() {
		p.debugLogger.LogDebug(fmt.Sprintf("[DEBUG] connection error for %s: %v", serverName, err))
	}
}

// GetClients returns every currently connected server name to its client.
func (p *MCPConnectionPool) GetClients() map[string]client.MCPClient {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]client.MCPClient, len(p.conns))
	for name, conn := range p.conns {
		out[name] = conn.client
	}
	return out
}

// Close tears down every pooled connection. Safe to call multiple times.
func (p *MCPConnectionPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for name, conn := range p.conns {
		if err := conn.client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.conns, name)
	}
	return firstErr
}
