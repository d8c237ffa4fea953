package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forgecode/forge/internal/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List and inspect persisted sessions for the current directory",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted sessions, newest first",
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <path>",
	Short: "Print the message transcript of a session file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd)
}

func runSessionsList(cmd *cobra.Command, _ []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getwd: %w", err)
	}
	listings, err := session.ListSessions(cwd)
	if err != nil {
		return fmt.Errorf("sessions: list: %w", err)
	}
	if len(listings) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no sessions found for this directory")
		return nil
	}
	for _, l := range listings {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", l.Modified.Format("2006-01-02 15:04:05"), l.Path)
	}
	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	store, err := session.Open(args[0])
	if err != nil {
		return fmt.Errorf("sessions: open: %w", err)
	}
	defer store.Close()

	ctx := store.BuildContext()
	for _, msg := range ctx.Messages {
		fmt.Fprintf(cmd.OutOrStdout(), "--- %s ---\n%s\n\n", msg.Role, msg.Text())
	}
	return nil
}
