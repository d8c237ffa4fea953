// Package main is forge's CLI entry point: a cobra command tree that
// parses flags, resolves a provider/model/session, and hands off to
// either the interactive TUI or a single non-interactive turn.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/forgecode/forge/internal/logging"
)

var (
	configFile     string
	systemPromptFile string
	modelFlag      string
	providerURL    string
	providerAPIKey string
	debugMode      bool
	promptFlag     string
	quietFlag      bool
	jsonFlag       bool
	noExitFlag     bool
	maxSteps       int
	streamFlag     bool

	sessionPath   string
	continueFlag  bool
	resumeFlag    bool
	noSessionFlag bool

	maxTokens     int
	temperature   float32
	topP          float32
	topK          int32
	stopSequences []string

	noExtensionsFlag bool
	extensionPaths   []string
)

var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "A terminal coding agent",
	Long:  "forge is a terminal-native coding agent that streams model output, runs tools, and renders a differentially-updated TUI.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRoot(cmd.Context())
	},
}

// Execute runs the command tree and returns the process exit code
// (0 on normal exit, 1 on unrecoverable startup error, matching
// spec.md's CLI exit codes).
func Execute(version string) int {
	rootCmd.Version = version
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "settings file (default $HOME/.forge/settings.yml)")
	flags.StringVar(&systemPromptFile, "system-prompt", "", "system prompt text, or a path to a file containing it")
	flags.StringVarP(&modelFlag, "model", "m", "anthropic/claude-sonnet-4-20250514", "model to use (provider/model)")
	flags.BoolVar(&debugMode, "debug", false, "enable debug logging")
	flags.StringVarP(&promptFlag, "prompt", "p", "", "run a single prompt non-interactively and exit")
	flags.BoolVar(&quietFlag, "quiet", false, "suppress intermediate output (requires --prompt)")
	flags.BoolVar(&jsonFlag, "json", false, "emit the final turn as JSON (requires --prompt)")
	flags.BoolVar(&noExitFlag, "no-exit", false, "after --prompt completes, continue into the interactive TUI")
	flags.IntVar(&maxSteps, "max-steps", 0, "maximum agent steps per turn (0 = use the settings value, default 25)")
	flags.BoolVar(&streamFlag, "stream", true, "stream model output as it arrives")

	flags.StringVarP(&sessionPath, "session", "s", "", "open a specific session file")
	flags.BoolVarP(&continueFlag, "continue", "c", false, "continue the most recent session for this directory")
	flags.BoolVarP(&resumeFlag, "resume", "r", false, "open the most recent session for this directory")
	flags.BoolVar(&noSessionFlag, "no-session", false, "ephemeral mode — do not persist a session")

	flags.StringVar(&providerURL, "provider-url", "", "override the provider's base URL")
	flags.StringVar(&providerAPIKey, "provider-api-key", "", "API key for the selected provider")
	flags.IntVar(&maxTokens, "max-tokens", 4096, "maximum tokens in the model's response")
	flags.Float32Var(&temperature, "temperature", 0.7, "sampling temperature")
	flags.Float32Var(&topP, "top-p", 0.95, "nucleus sampling threshold")
	flags.Int32Var(&topK, "top-k", 40, "top-k sampling cutoff")
	flags.StringSliceVar(&stopSequences, "stop-sequences", nil, "additional stop sequences")

	flags.BoolVar(&noExtensionsFlag, "no-extensions", false, "disable extensions")
	flags.StringSliceVarP(&extensionPaths, "extension", "e", nil, "additional extension file (repeatable; accepted, but no extension is loaded from it)")

	for _, name := range []string{"system-prompt", "model", "debug", "prompt", "max-steps", "stream",
		"provider-url", "provider-api-key", "max-tokens", "temperature", "top-p", "top-k",
		"stop-sequences", "no-extensions", "extension"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}

	rootCmd.AddCommand(modelsCmd, authCmd, sessionsCmd)
}

func initConfig() {
	if debugMode || viper.GetBool("debug") {
		logging.Configure(os.Stderr, "debug")
	} else {
		logging.Configure(os.Stderr, "warn")
	}
}

func runRoot(ctx context.Context) error {
	if quietFlag && promptFlag == "" {
		return fmt.Errorf("--quiet requires --prompt")
	}
	if jsonFlag && promptFlag == "" {
		return fmt.Errorf("--json requires --prompt")
	}
	if jsonFlag && noExitFlag {
		return fmt.Errorf("--json and --no-exit cannot be combined")
	}
	if noExitFlag && promptFlag == "" {
		return fmt.Errorf("--no-exit requires --prompt")
	}

	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if promptFlag != "" {
		if err := runNonInteractive(ctx, app, promptFlag); err != nil {
			return err
		}
		if !noExitFlag {
			return nil
		}
	}

	if quietFlag {
		return fmt.Errorf("--quiet requires --prompt")
	}
	return runInteractive(ctx, app)
}
