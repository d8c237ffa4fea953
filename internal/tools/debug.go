package tools

import (
	"fmt"
	"sync"

	"github.com/forgecode/forge/internal/logging"
)

// DebugLogger receives verbose MCP connection/tool-loading diagnostics.
// Reconstructed from call sites in the teacher's mcp.go
// (debugLogConnectionInfo), whose own interface definition did not survive
// retrieval into the pack.
type DebugLogger interface {
	IsDebugEnabled() bool
	LogDebug(msg string)
}

// SimpleDebugLogger forwards debug lines to the shared structured logger
// when enabled, and discards them otherwise.
type SimpleDebugLogger struct {
	enabled bool
}

// NewSimpleDebugLogger returns a DebugLogger gated by enabled.
func NewSimpleDebugLogger(enabled bool) *SimpleDebugLogger {
	return &SimpleDebugLogger{enabled: enabled}
}

func (l *SimpleDebugLogger) IsDebugEnabled() bool { return l.enabled }

func (l *SimpleDebugLogger) LogDebug(msg string) {
	if !l.enabled {
		return
	}
	logging.Default().Debug(msg)
}

// BufferedDebugLogger accumulates debug lines in memory instead of writing
// them immediately, so a UI surface (an extension widget, a "show MCP log"
// command) can display them on demand.
type BufferedDebugLogger struct {
	mu      sync.Mutex
	enabled bool
	lines   []string
}

// NewBufferedDebugLogger returns a DebugLogger that buffers instead of
// emitting immediately.
func NewBufferedDebugLogger(enabled bool) *BufferedDebugLogger {
	return &BufferedDebugLogger{enabled: enabled}
}

func (l *BufferedDebugLogger) IsDebugEnabled() bool { return l.enabled }

func (l *BufferedDebugLogger) LogDebug(msg string) {
	if !l.enabled {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, msg)
}

// Lines returns a snapshot of every buffered debug line.
func (l *BufferedDebugLogger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}

// Flush writes every buffered line through fmt.Sprintf-style formatting to
// the shared logger and clears the buffer.
func (l *BufferedDebugLogger) Flush() {
	l.mu.Lock()
	lines := l.lines
	l.lines = nil
	l.mu.Unlock()

	for _, line := range lines {
		logging.Default().Debug(fmt.Sprint(line))
	}
}
