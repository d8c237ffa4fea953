package agentsession

import (
	"encoding/json"
	"fmt"
	"html"
	"os"
	"strings"

	"github.com/forgecode/forge/internal/agent"
	"github.com/forgecode/forge/internal/extensions"
	"github.com/forgecode/forge/internal/session"
)

// NewSession replaces the current session with a fresh, unpersisted one
// rooted at the same cwd, and resets usage accounting.
func (s *Session) NewSession() error {
	s.mu.Lock()
	cwd := s.promptInputs.CWD
	s.mu.Unlock()

	store := session.InMemory(cwd)

	s.mu.Lock()
	s.store = store
	s.mu.Unlock()
	if s.usage != nil {
		s.usage.Reset()
	}

	_, _ = s.runner.Emit(extensions.SessionStartEvent{SessionID: store.GetSessionID()})
	return nil
}

// SwitchSession opens the persisted session at path and makes it current,
// honoring a session_before_switch veto.
func (s *Session) SwitchSession(path string) error {
	if result, err := s.runner.Emit(extensions.SessionBeforeSwitchEvent{Target: path}); err == nil {
		if cr, ok := result.(extensions.CancelResult); ok && cr.Cancel {
			return fmt.Errorf("agentsession: switch to %q cancelled by extension", path)
		}
	}

	store, err := session.Open(path)
	if err != nil {
		return fmt.Errorf("agentsession: switch session: %w", err)
	}

	s.mu.Lock()
	old := s.store
	s.store = store
	s.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	if s.usage != nil {
		s.usage.Reset()
	}

	_, _ = s.runner.Emit(extensions.SessionSwitchEvent{SessionID: store.GetSessionID()})
	return nil
}

// Branch moves the session's current leaf to entryID, honoring a
// session_before_branch veto.
func (s *Session) Branch(entryID string) error {
	if result, err := s.runner.Emit(extensions.SessionBeforeBranchEvent{Target: entryID}); err == nil {
		if cr, ok := result.(extensions.CancelResult); ok && cr.Cancel {
			return fmt.Errorf("agentsession: branch to %q cancelled by extension", entryID)
		}
	}
	if err := s.store.Branch(entryID); err != nil {
		return err
	}
	_, _ = s.runner.Emit(extensions.SessionBranchEvent{EntryID: entryID})
	return nil
}

// NavigateTreeOptions configures NavigateTree.
type NavigateTreeOptions struct {
	// AbandonedBranchSummary, if non-empty, is recorded as a
	// BranchSummaryEntry for the branch being navigated away from.
	AbandonedBranchSummary string
}

// NavigateTree moves the leaf to targetID, optionally recording a summary
// of the branch being abandoned.
func (s *Session) NavigateTree(targetID string, opts NavigateTreeOptions) error {
	if err := s.store.NavigateTree(targetID, opts.AbandonedBranchSummary); err != nil {
		return err
	}
	_, _ = s.runner.Emit(extensions.SessionTreeEvent{})
	return nil
}

// SendCustomMessage appends extension-authored state to the session log.
// It is never sent to the LLM (spec.md §3's Custom entry kind).
func (s *Session) SendCustomMessage(customType string, data json.RawMessage) (string, error) {
	return s.store.AppendCustom(customType, data)
}

// GetUserMessagesForBranching returns every user message reachable from
// the session root, the candidate set for an "edit an earlier message" UI.
func (s *Session) GetUserMessagesForBranching() []session.BranchCandidate {
	return s.store.UserMessagesForBranching()
}

// GetSessionStats returns cumulative token/cost accounting for the
// session, or the zero value if no usage tracker is configured (no model
// catalog entry was found for the active model).
func (s *Session) GetSessionStats() agent.SessionStats {
	if s.usage == nil {
		return agent.SessionStats{}
	}
	return s.usage.SessionStats()
}

// ExportToHtml renders the current branch as a minimal static HTML
// transcript. Per spec.md §1, the HTML export body itself is out of
// scope — only exportToHtml's existence and return type are fixed — so
// this is deliberately the simplest possible renderer (escaped text in
// role-tagged divs), not a themed or Markdown-aware exporter. An empty
// path becomes the session file's path plus ".html", or, for a session
// with no file, "forge-session-<id>.html" in the working directory.
func (s *Session) ExportToHtml(path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s.html", s.store.GetFilePath())
		if path == ".html" {
			path = fmt.Sprintf("forge-session-%s.html", s.store.GetSessionID())
		}
	}

	branch := s.store.GetBranch("")
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>forge session</title>")
	b.WriteString("<style>body{font-family:monospace;white-space:pre-wrap;max-width:80ch;margin:2rem auto}" +
		".user{color:#2563eb}.assistant{color:#111}.tool{color:#6b7280;font-size:0.9em}</style></head><body>\n")
	for _, e := range branch {
		me, ok := e.(*session.MessageEntry)
		if !ok {
			continue
		}
		class := "assistant"
		switch me.Message.Role {
		case "user":
			class = "user"
		case "tool_result":
			class = "tool"
		}
		fmt.Fprintf(&b, "<div class=%q>%s</div>\n", class, html.EscapeString(me.Message.Text()))
	}
	b.WriteString("</body></html>\n")

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("agentsession: export html: %w", err)
	}
	return path, nil
}
