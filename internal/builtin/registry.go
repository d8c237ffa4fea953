// Package builtin implements spec.md's in-process MCP servers: tools
// available without spawning a subprocess or dialing a remote endpoint.
// Grounded on the teacher's internal/builtin/registry.go factory-map
// pattern and on intelligencedev-manifold's file_editor/mcp_server.go for
// concrete mcp-go/server tool-registration idiom (the teacher's own server
// bodies, e.g. bash.go/fetch.go, did not survive retrieval into the pack).
package builtin

import (
	"fmt"

	"github.com/mark3labs/mcp-go/server"
)

// Wrapper exposes the underlying *server.MCPServer for an in-process
// client to bind to.
type Wrapper struct {
	server *server.MCPServer
}

// GetServer returns the wrapped MCP server.
func (w *Wrapper) GetServer() *server.MCPServer { return w.server }

type factory func(options map[string]any) (*Wrapper, error)

// Registry holds every available builtin server factory.
type Registry struct {
	servers map[string]factory
}

// NewRegistry returns a registry with every builtin server registered.
func NewRegistry() *Registry {
	r := &Registry{servers: make(map[string]factory)}
	r.servers["bash"] = newBashServer
	r.servers["fetch"] = newFetchServer
	return r
}

// CreateServer instantiates the named builtin server with options from the
// server's config.MCPServerConfig.Options field.
func (r *Registry) CreateServer(name string, options map[string]any) (*Wrapper, error) {
	f, ok := r.servers[name]
	if !ok {
		return nil, fmt.Errorf("unknown builtin server: %s", name)
	}
	return f(options)
}

// ListServers returns every registered builtin server name.
func (r *Registry) ListServers() []string {
	names := make([]string, 0, len(r.servers))
	for name := range r.servers {
		names = append(names, name)
	}
	return names
}
