package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetTransportTypeInference(t *testing.T) {
	require.Equal(t, TransportStdio, MCPServerConfig{Command: []string{"npx", "server"}}.GetTransportType())
	require.Equal(t, TransportStreaming, MCPServerConfig{URL: "https://example.com/mcp"}.GetTransportType())
	require.Equal(t, TransportBuiltin, MCPServerConfig{Name: "bash"}.GetTransportType())
	require.Equal(t, TransportSSE, MCPServerConfig{URL: "https://example.com/mcp", Transport: TransportSSE}.GetTransportType())
}

func TestLoadAppliesEnvSubstitutionAndDefaults(t *testing.T) {
	t.Setenv("TEST_MODEL", "anthropic/claude-opus-4-20250514")

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_model: ${env://TEST_MODEL}\nmax_steps: 10\n"), 0o644))

	settings, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "anthropic/claude-opus-4-20250514", settings.DefaultModel)
	require.Equal(t, 10, settings.MaxSteps)
	require.Equal(t, 0.8, settings.CompactionThreshold)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	settings, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultSettings(), settings)
}
