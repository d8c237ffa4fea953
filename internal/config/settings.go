package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// TransportType identifies how an MCP server is reached.
type TransportType string

const (
	TransportStdio     TransportType = "stdio"
	TransportSSE       TransportType = "sse"
	TransportStreaming TransportType = "streamable"
	TransportBuiltin   TransportType = "inprocess"
)

// MCPServerConfig describes one configured MCP server, grounded on the
// teacher's internal/tools/mcp.go field usage (Command/Args/Env/URL/Headers
// dispatch across stdio/SSE/streamable-HTTP/builtin transports).
type MCPServerConfig struct {
	Name         string            `yaml:"name" json:"name"`
	Transport    TransportType     `yaml:"transport,omitempty" json:"transport,omitempty"`
	Command      []string          `yaml:"command,omitempty" json:"command,omitempty"`
	Args         []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Environment  map[string]string `yaml:"environment,omitempty" json:"environment,omitempty"`
	URL          string            `yaml:"url,omitempty" json:"url,omitempty"`
	Headers      map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	AllowedTools []string          `yaml:"allowed_tools,omitempty" json:"allowed_tools,omitempty"`
	ExcludedTools []string         `yaml:"excluded_tools,omitempty" json:"excluded_tools,omitempty"`
	Options      map[string]any    `yaml:"options,omitempty" json:"options,omitempty"`
}

// GetTransportType returns the explicit Transport if set, otherwise infers
// it from which fields are populated: Command implies stdio, URL implies
// streamable HTTP (the modern MCP default), and a bare Name with neither
// implies a builtin in-process server addressed by registry name.
func (c MCPServerConfig) GetTransportType() TransportType {
	if c.Transport != "" {
		return c.Transport
	}
	switch {
	case len(c.Command) > 0:
		return TransportStdio
	case c.URL != "":
		return TransportStreaming
	case c.Name != "":
		return TransportBuiltin
	default:
		return TransportStdio
	}
}

// Settings is the top-level configuration loaded from the settings file.
type Settings struct {
	DefaultModel string                     `yaml:"default_model" mapstructure:"default_model"`
	SystemPrompt string                     `yaml:"system_prompt" mapstructure:"system_prompt"`
	MaxSteps     int                        `yaml:"max_steps" mapstructure:"max_steps"`

	// CompactionThreshold is the fraction (0-1) of a model's context window
	// that triggers proactive auto-compaction. Default 0.8 per SPEC_FULL.md
	// §9's Open Question decision.
	CompactionThreshold float64 `yaml:"compaction_threshold" mapstructure:"compaction_threshold"`

	MCPServers map[string]MCPServerConfig `yaml:"mcp_servers" mapstructure:"mcp_servers"`

	ExtensionPaths []string `yaml:"extensions" mapstructure:"extensions"`
}

// DefaultSettings returns the baseline configuration used when no settings
// file is present.
func DefaultSettings() Settings {
	return Settings{
		MaxSteps:             25,
		CompactionThreshold:  0.8,
		MCPServers:           map[string]MCPServerConfig{},
	}
}

// Load reads settings from path via a fresh viper instance that is
// discarded once the file is unmarshalled, applying ${env://VAR}
// substitution to the raw file contents first. A missing file yields
// DefaultSettings.
func Load(path string) (Settings, error) {
	settings := DefaultSettings()

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("config: read %s: %w", path, err)
	}

	substituted, err := SubstituteEnvVars(string(raw))
	if err != nil {
		return settings, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(substituted)); err != nil {
		return settings, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := v.Unmarshal(&settings); err != nil {
		return settings, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	return settings, nil
}

// Save writes settings to path as YAML.
func Save(path string, settings Settings) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
