package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/forgecode/forge/internal/credentials"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored provider credentials",
}

var authLoginCmd = &cobra.Command{
	Use:   "login <provider>",
	Short: "Store an API key for a provider",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout <provider>",
	Short: "Remove a provider's stored credential",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which providers have a resolvable credential",
	RunE:  runAuthStatus,
}

func init() {
	authCmd.AddCommand(authLoginCmd, authLogoutCmd, authStatusCmd)
}

func openCredentialStore() (*credentials.Store, error) {
	return credentials.Open(filepath.Join(forgeHome(), "credentials.json"))
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	provider := args[0]

	fmt.Fprintf(cmd.OutOrStdout(), "API key for %s: ", provider)
	apiKey, err := readSecret()
	if err != nil {
		return fmt.Errorf("auth: read API key: %w", err)
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return fmt.Errorf("auth: empty API key")
	}

	store, err := openCredentialStore()
	if err != nil {
		return err
	}
	if err := store.Store(provider, credentials.Credential{Kind: credentials.KindAPIKey, APIKey: apiKey}); err != nil {
		return fmt.Errorf("auth: store credential: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nstored credential for %s\n", provider)
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	provider := args[0]
	store, err := openCredentialStore()
	if err != nil {
		return err
	}
	if err := store.Remove(provider); err != nil {
		return fmt.Errorf("auth: remove credential: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed credential for %s\n", provider)
	return nil
}

func runAuthStatus(cmd *cobra.Command, _ []string) error {
	store, err := openCredentialStore()
	if err != nil {
		return err
	}
	for _, id := range knownProviderIDs {
		_, resolveErr := store.Resolve(cmd.Context(), id)
		status := "not configured"
		if resolveErr == nil {
			status = "configured"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", id, status)
	}
	return nil
}

// readSecret reads a line from stdin without echoing it, falling back to a
// plain scan when stdin isn't a terminal (e.g. piped input in scripts).
func readSecret() (string, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		return string(b), err
	}
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	return line, err
}
