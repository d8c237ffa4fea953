package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/forgecode/forge/internal/agentsession"
	"github.com/forgecode/forge/internal/compaction"
	"github.com/forgecode/forge/internal/config"
	"github.com/forgecode/forge/internal/credentials"
	"github.com/forgecode/forge/internal/extensions"
	"github.com/forgecode/forge/internal/models"
	"github.com/forgecode/forge/internal/provider"
	"github.com/forgecode/forge/internal/provider/anthropic"
	"github.com/forgecode/forge/internal/provider/openai"
	"github.com/forgecode/forge/internal/session"
	"github.com/forgecode/forge/internal/skills"
	"github.com/forgecode/forge/internal/tools"
)

// App bundles the composed Session facade with the display metadata the
// interactive and non-interactive run loops both need.
type App struct {
	Session *agentsession.Session

	Provider  string
	ModelName string

	ToolNames    []string
	SkillItems   []skills.Skill
	ContextFiles []skills.ContextFile

	toolManager *tools.MCPToolManager
	credStore   *credentials.Store
}

func (a *App) Close() {
	if a.toolManager != nil {
		_ = a.toolManager.Close()
	}
	if a.Session != nil {
		_ = a.Session.Store().Close()
	}
}

// forgeHome returns $HOME/.forge, creating it if necessary.
func forgeHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".forge")
}

// buildApp loads settings, resolves credentials and the provider backend,
// loads tools/skills/extensions, opens (or creates) the session store, and
// composes the agentsession.Session facade — the object every run mode
// (interactive TUI, --prompt, subcommands) is built around.
func buildApp(ctx context.Context) (*App, error) {
	settingsPath := configFile
	if settingsPath == "" {
		settingsPath = filepath.Join(forgeHome(), "settings.yml")
	}
	settings, err := config.Load(settingsPath)
	if err != nil {
		return nil, err
	}
	if maxSteps > 0 {
		settings.MaxSteps = maxSteps
	}

	systemPrompt, err := loadSystemPrompt(systemPromptFile)
	if err != nil {
		return nil, fmt.Errorf("system prompt: %w", err)
	}

	providerID, modelID, ok := models.ParseModelString(viper.GetString("model"))
	if !ok {
		return nil, fmt.Errorf("invalid --model %q, expected provider/model", viper.GetString("model"))
	}
	modelID = models.ResolveAlias(providerID, modelID)

	modelsReg := models.NewRegistry()

	credStore, err := credentials.Open(filepath.Join(forgeHome(), "credentials.json"))
	if err != nil {
		return nil, fmt.Errorf("credentials: %w", err)
	}
	if key := viper.GetString("provider-api-key"); key != "" {
		credStore.SetOverride(providerID, key)
	}
	if info, ok := modelsReg.Provider(providerID); ok {
		credStore.SetEnvVars(providerID, info.EnvVar...)
	}

	apiKey, err := credStore.Resolve(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("no credential for provider %q: %w", providerID, err)
	}

	backend, err := buildBackend(providerID, apiKey, viper.GetString("provider-url"))
	if err != nil {
		return nil, err
	}

	toolManager := tools.NewMCPToolManager()
	if debugMode {
		logger := tools.NewSimpleDebugLogger(true)
		toolManager.SetDebugLogger(logger)
	}
	if err := toolManager.LoadTools(ctx, settings); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	var runner *extensions.Runner
	if noExtensionsFlag || viper.GetBool("no-extensions") {
		runner = extensions.NewRunner(nil)
	} else {
		// Extension discovery (filesystem layout, interpreter embedding) is
		// an out-of-scope collaborator; paths named on the CLI are neither
		// loaded nor recorded, and the runner starts with no extensions.
		runner = extensions.NewRunner(nil)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getwd: %w", err)
	}

	skillItems, err := skills.DiscoverSkills(nil, cwd, forgeHome())
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: skills: %v\n", err)
	}
	contextFiles, err := skills.DiscoverContextFiles(nil, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: context files: %v\n", err)
	}

	store, err := resolveSessionStore(cwd)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	skillNames := make([]string, len(skillItems))
	for i, s := range skillItems {
		skillNames[i] = s.Name
	}
	contextPaths := make([]string, len(contextFiles))
	for i, c := range contextFiles {
		contextPaths[i] = c.Path
	}

	sess := agentsession.New(agentsession.Options{
		Backend:      backend,
		Provider:     providerID,
		Model:        modelID,
		Summarizer:   compaction.NewProviderSummarizer(backend),
		ToolRegistry: toolManager.Registry(),
		Runner:       runner,
		Credentials:  credStore,
		Models:       modelsReg,
		Store:        store,
		Settings:     settings,

		CWD:                  cwd,
		AgentDir:             forgeHome(),
		Skills:               skillNames,
		ContextFiles:         contextPaths,
		CustomPromptOverride: systemPrompt,
	})

	return &App{
		Session:      sess,
		Provider:     providerID,
		ModelName:    modelID,
		ToolNames:    toolNames(toolManager),
		SkillItems:   skillItems,
		ContextFiles: contextFiles,
		toolManager:  toolManager,
		credStore:    credStore,
	}, nil
}

func toolNames(m *tools.MCPToolManager) []string {
	var out []string
	for _, t := range m.Registry().List() {
		out = append(out, t.Name())
	}
	return out
}

func buildBackend(providerID, apiKey, baseURL string) (provider.Backend, error) {
	switch providerID {
	case "anthropic":
		return anthropic.New(apiKey, baseURL), nil
	case "openai":
		return openai.New(apiKey, baseURL), nil
	default:
		// spec.md's models.dev-style catalog never hard-rejects an unknown
		// provider string; OpenAI-compatible gateways (Ollama, OpenRouter,
		// local servers) speak the same wire protocol via a base URL
		// override, so fall through to the OpenAI backend.
		return openai.New(apiKey, baseURL), nil
	}
}

func resolveSessionStore(cwd string) (*session.Store, error) {
	switch {
	case noSessionFlag:
		return session.InMemory(cwd), nil
	case sessionPath != "":
		return session.Open(sessionPath)
	case continueFlag:
		return session.ContinueRecent(cwd)
	case resumeFlag:
		listings, err := session.ListSessions(cwd)
		if err != nil {
			return nil, err
		}
		if len(listings) == 0 {
			return session.Create(cwd)
		}
		// --resume opens the most recent session; no interactive picker
		// is shown, so a cold start never blocks on terminal setup.
		return session.Open(listings[0].Path)
	default:
		return session.Create(cwd)
	}
}

func loadSystemPrompt(pathOrText string) (string, error) {
	if pathOrText == "" {
		return "", nil
	}
	if data, err := os.ReadFile(pathOrText); err == nil {
		return strings.TrimRight(string(data), "\n"), nil
	}
	return pathOrText, nil
}
