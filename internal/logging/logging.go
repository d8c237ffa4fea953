// Package logging wraps github.com/charmbracelet/log with the module's
// default logger, matching the teacher's direct package-level log.Warn/
// log.Error call style.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	mu      sync.RWMutex
	current = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "forge",
	})
)

// Default returns the process-wide logger.
func Default() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Configure rebuilds the default logger against w at the given level
// ("debug", "info", "warn", "error"), used once flags/config are parsed.
func Configure(w io.Writer, level string) {
	mu.Lock()
	defer mu.Unlock()
	l := log.NewWithOptions(w, log.Options{ReportTimestamp: true, Prefix: "forge"})
	if lvl, err := log.ParseLevel(level); err == nil {
		l.SetLevel(lvl)
	}
	current = l
}

// Discard silences logging, used for non-interactive/scripted runs and tests.
func Discard() {
	Configure(io.Discard, "error")
}
