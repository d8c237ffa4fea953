// Package agentsession implements the facade from spec.md §4.H: the single
// object a UI holds, composing the Agent Core, Session Store, Extension
// Runtime, Credential Store, and Tool Registry, and layering the
// cross-cutting auto-compaction, auto-retry, and system-prompt-rebuild
// policies over a plain agent.Core turn loop.
package agentsession

import (
	"fmt"
	"strings"
	"sync"

	"github.com/forgecode/forge/internal/agent"
	"github.com/forgecode/forge/internal/compaction"
	"github.com/forgecode/forge/internal/config"
	"github.com/forgecode/forge/internal/credentials"
	"github.com/forgecode/forge/internal/extensions"
	"github.com/forgecode/forge/internal/models"
	"github.com/forgecode/forge/internal/provider"
	"github.com/forgecode/forge/internal/session"
	"github.com/forgecode/forge/internal/tools"
)

// PromptInputs is rebuildSystemPrompt's argument: the system prompt is a
// pure function of these, per spec.md §4.H's invariant.
type PromptInputs struct {
	CWD                  string
	AgentDir             string
	Skills               []string
	ContextFiles         []string
	ActiveToolNames      []string
	CustomPromptOverride string
}

// SystemPromptBuilder renders a system prompt from PromptInputs.
type SystemPromptBuilder func(PromptInputs) string

// DefaultPromptBuilder assembles a plain, readable system prompt. Callers
// supply their own builder to match a specific house style; this one is
// only the fallback used when Options.PromptBuilder is nil.
func DefaultPromptBuilder(in PromptInputs) string {
	if in.CustomPromptOverride != "" {
		return in.CustomPromptOverride
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are a coding agent working in %s.\n", in.CWD)
	if in.AgentDir != "" {
		fmt.Fprintf(&b, "Project-specific instructions live in %s.\n", in.AgentDir)
	}
	if len(in.Skills) > 0 {
		fmt.Fprintf(&b, "Available skills: %s.\n", strings.Join(in.Skills, ", "))
	}
	if len(in.ContextFiles) > 0 {
		fmt.Fprintf(&b, "Context files loaded: %s.\n", strings.Join(in.ContextFiles, ", "))
	}
	if len(in.ActiveToolNames) > 0 {
		fmt.Fprintf(&b, "Active tools: %s.\n", strings.Join(in.ActiveToolNames, ", "))
	}
	return b.String()
}

// Options configures a new Session.
type Options struct {
	Backend      provider.Backend
	Provider     string // provider id, e.g. "anthropic" — used for model catalog lookups
	Model        string
	Summarizer   compaction.Summarizer
	ToolRegistry *tools.Registry
	Runner       *extensions.Runner
	Credentials  *credentials.Store
	Models       *models.Registry
	Store        *session.Store // nil creates an in-memory session rooted at CWD
	Settings     config.Settings

	// Hooks and Approval are forwarded unchanged to the underlying
	// agent.Core; both are optional.
	Hooks    agent.HookExecutor
	Approval agent.ToolApprovalHandler

	PromptBuilder        SystemPromptBuilder
	CWD                  string
	AgentDir             string
	Skills               []string
	ContextFiles         []string
	CustomPromptOverride string
}

// Session is the composed facade. All exported methods are safe for
// concurrent use.
type Session struct {
	mu sync.Mutex

	core         *agent.Core
	store        *session.Store
	runner       *extensions.Runner
	creds        *credentials.Store
	toolRegistry *tools.Registry
	modelsReg    *models.Registry
	backend      provider.Backend
	summarizer   compaction.Summarizer
	settings     config.Settings
	usage        *agent.UsageTracker

	promptBuilder SystemPromptBuilder
	promptInputs  PromptInputs

	providerID string
	modelID    string

	compacting      bool
	compactionQueue []QueuedMessage
}

// New composes a Session from opts.
func New(opts Options) *Session {
	if opts.Store == nil {
		opts.Store = session.InMemory(opts.CWD)
	}
	if opts.PromptBuilder == nil {
		opts.PromptBuilder = DefaultPromptBuilder
	}
	if opts.Settings.CompactionThreshold == 0 {
		opts.Settings.CompactionThreshold = config.DefaultSettings().CompactionThreshold
	}
	if opts.ToolRegistry == nil {
		opts.ToolRegistry = tools.NewRegistry()
	}
	if opts.Runner == nil {
		opts.Runner = extensions.NewRunner(nil)
	}

	s := &Session{
		store:        opts.Store,
		runner:       opts.Runner,
		creds:        opts.Credentials,
		toolRegistry: opts.ToolRegistry,
		modelsReg:    opts.Models,
		backend:      opts.Backend,
		summarizer:   opts.Summarizer,
		settings:     opts.Settings,
		promptBuilder: opts.PromptBuilder,
		promptInputs: PromptInputs{
			CWD:                  opts.CWD,
			AgentDir:             opts.AgentDir,
			Skills:               opts.Skills,
			ContextFiles:         opts.ContextFiles,
			CustomPromptOverride: opts.CustomPromptOverride,
		},
		providerID: opts.Provider,
		modelID:    opts.Model,
	}

	activeTools := toolNames(opts.ToolRegistry.List())
	s.promptInputs.ActiveToolNames = activeTools

	executor := &extensionToolExecutor{registry: opts.ToolRegistry, runner: opts.Runner}
	s.core = agent.New(agent.Options{
		Backend:      opts.Backend,
		Executor:     executor,
		Model:        opts.Model,
		SystemPrompt: opts.PromptBuilder(s.promptInputs),
		Tools:        opts.ToolRegistry.Specs(),
		MaxSteps:     opts.Settings.MaxSteps,
		Hooks:        opts.Hooks,
		Approval:     opts.Approval,
	})

	if opts.Models != nil {
		if info, ok := opts.Models.Lookup(opts.Provider, opts.Model); ok {
			s.usage = agent.NewUsageTracker(info, false)
		}
	}

	return s
}

// Core exposes the underlying agent.Core for callers that need direct
// access to Steer/Cancel beyond the facade's queueing (e.g. a UI's abort
// keybinding).
func (s *Session) Core() *agent.Core { return s.core }

// Store exposes the underlying session.Store.
func (s *Session) Store() *session.Store { return s.store }

// UsageTracker exposes the session's usage accounting.
func (s *Session) UsageTracker() *agent.UsageTracker { return s.usage }

func (s *Session) promptInputsLocked() PromptInputs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promptInputs
}

// rebuildSystemPrompt regenerates the system prompt from
// {cwd, agentDir, skills, contextFiles, activeToolNames, customPromptOverride}
// and pushes it (plus the matching filtered tool specs) into the running
// Core, per spec.md §4.H. Called whenever active tools change.
func (s *Session) rebuildSystemPrompt(activeToolNames []string) {
	s.mu.Lock()
	s.promptInputs.ActiveToolNames = activeToolNames
	inputs := s.promptInputs
	s.mu.Unlock()

	s.core.SetSystemPrompt(s.promptBuilder(inputs))
	s.core.SetTools(filterSpecs(s.toolRegistry.Specs(), activeToolNames))
}

// SetActiveTools changes which registered tools are offered to the model
// and rebuilds the system prompt to match.
func (s *Session) SetActiveTools(names []string) {
	s.rebuildSystemPrompt(names)
}

// SetCustomPromptOverride sets (or clears, with "") the user's override of
// the entire generated system prompt, and rebuilds it immediately.
func (s *Session) SetCustomPromptOverride(override string) {
	s.mu.Lock()
	s.promptInputs.CustomPromptOverride = override
	active := s.promptInputs.ActiveToolNames
	s.mu.Unlock()
	s.rebuildSystemPrompt(active)
}

func toolNames(ts []tools.Tool) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Name()
	}
	return out
}

func filterSpecs(specs []provider.ToolSpec, active []string) []provider.ToolSpec {
	if active == nil {
		return specs
	}
	allowed := make(map[string]bool, len(active))
	for _, n := range active {
		allowed[n] = true
	}
	out := make([]provider.ToolSpec, 0, len(specs))
	for _, sp := range specs {
		if allowed[sp.Name] {
			out = append(out, sp)
		}
	}
	return out
}
