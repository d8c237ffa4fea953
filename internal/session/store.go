package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/forgecode/forge/internal/message"
)

// Store is a tree-structured, append-only JSONL session log. It is the
// concrete implementation of spec.md §4.G: entries are never rewritten, the
// "leaf id" designates the current branch, and buildSessionContext is a pure
// function of (leaf, log contents).
type Store struct {
	mu sync.RWMutex

	header Header

	entries    []any
	index      map[string]any
	childIndex map[string][]string
	labels     map[string]string

	leafID   string
	filePath string
	file     *os.File
}

// DefaultSessionDir returns the default session storage directory for cwd,
// mirroring the teacher's "~/.<app>/sessions/--<cwd>--/" convention.
func DefaultSessionDir(cwd string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	safe := strings.ReplaceAll(cwd, string(filepath.Separator), "--")
	safe = strings.TrimPrefix(safe, "--")
	return filepath.Join(home, ".forge", "sessions", safe)
}

// Create creates a new persisted session rooted at cwd.
func Create(cwd string) (*Store, error) {
	dir := DefaultSessionDir(cwd)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("session: create dir: %w", err)
	}

	now := time.Now().UTC()
	fileName := fmt.Sprintf("%s_%s.jsonl", now.Format("2006-01-02T15-04-05-000Z"), GenerateSessionID()[:12])
	path := filepath.Join(dir, fileName)

	s := newEmptyStore(cwd)
	s.filePath = path

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("session: create file: %w", err)
	}
	s.file = f
	if err := s.writeEntry(&s.header); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// InMemory creates a session that is never persisted to disk.
func InMemory(cwd string) *Store {
	return newEmptyStore(cwd)
}

func newEmptyStore(cwd string) *Store {
	return &Store{
		header: Header{
			Type:      EntryTypeHeader,
			Version:   CurrentVersion,
			ID:        GenerateSessionID(),
			Timestamp: time.Now().UTC(),
			Cwd:       cwd,
		},
		entries:    make([]any, 0),
		index:      make(map[string]any),
		childIndex: make(map[string][]string),
		labels:     make(map[string]string),
	}
}

// Open loads an existing JSONL session file and appends new entries to it.
func Open(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("session: read file: %w", err)
	}

	s := &Store{
		entries:    make([]any, 0),
		index:      make(map[string]any),
		childIndex: make(map[string][]string),
		labels:     make(map[string]string),
		filePath:   path,
	}

	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			// Tolerate a partial trailing line from a crash mid-append.
			continue
		}
		lineNum++
		entry, err := UnmarshalEntry([]byte(line))
		if err != nil {
			if lineNum == 1 {
				return nil, fmt.Errorf("session: line 1: %w", err)
			}
			// A partial last line is tolerated per spec.md §5; skip it.
			continue
		}
		if lineNum == 1 {
			h, ok := entry.(*Header)
			if !ok {
				return nil, fmt.Errorf("session: first line must be a header, got %T", entry)
			}
			s.header = *h
			continue
		}
		s.addToIndex(entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("session: scan: %w", err)
	}

	if len(s.entries) > 0 {
		s.leafID = entryID(s.entries[len(s.entries)-1])
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("session: open for append: %w", err)
	}
	s.file = f
	return s, nil
}

// ListSessions returns persisted sessions for cwd, newest first.
func ListSessions(cwd string) ([]SessionListing, error) {
	dir := DefaultSessionDir(cwd)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []SessionListing
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, SessionListing{
			Path:     filepath.Join(dir, e.Name()),
			Modified: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Modified.After(out[j].Modified) })
	return out, nil
}

// SessionListing describes a persisted session file for picker UIs.
type SessionListing struct {
	Path     string
	Modified time.Time
}

// ContinueRecent opens the most recently modified session for cwd, or
// creates a new one if none exists.
func ContinueRecent(cwd string) (*Store, error) {
	listings, err := ListSessions(cwd)
	if err != nil || len(listings) == 0 {
		return Create(cwd)
	}
	return Open(listings[0].Path)
}

// --- append operations ---

// AppendMessage appends a message entry at the current leaf and advances
// the leaf to the new entry.
func (s *Store) AppendMessage(msg message.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := NewMessageEntry(s.leafID, msg)
	if err := s.appendAndPersist(e); err != nil {
		return "", err
	}
	s.leafID = e.ID
	return e.ID, nil
}

// AppendModelChange records a provider/model switch.
func (s *Store) AppendModelChange(provider, modelID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := NewModelChangeEntry(s.leafID, provider, modelID)
	if err := s.appendAndPersist(e); err != nil {
		return "", err
	}
	s.leafID = e.ID
	return e.ID, nil
}

// AppendThinkingLevelChange records a reasoning-effort level switch.
func (s *Store) AppendThinkingLevelChange(level string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := NewThinkingLevelChangeEntry(s.leafID, level)
	if err := s.appendAndPersist(e); err != nil {
		return "", err
	}
	s.leafID = e.ID
	return e.ID, nil
}

// AppendLabel bookmarks targetID with text.
func (s *Store) AppendLabel(targetID, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := NewLabelEntry(s.leafID, targetID, text)
	if err := s.appendAndPersist(e); err != nil {
		return "", err
	}
	s.labels[targetID] = text
	s.leafID = e.ID
	return e.ID, nil
}

// AppendCompaction records that the branch prefix ending at firstKeptEntryID
// was summarized. See spec.md §4.G "Compaction".
func (s *Store) AppendCompaction(summary, firstKeptEntryID string, tokensBefore int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := NewCompactionEntry(s.leafID, summary, firstKeptEntryID, tokensBefore)
	if err := s.appendAndPersist(e); err != nil {
		return "", err
	}
	s.leafID = e.ID
	return e.ID, nil
}

// AppendBranchSummary records a summary of an abandoned branch.
func (s *Store) AppendBranchSummary(summary string, details json.RawMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := NewBranchSummaryEntry(s.leafID, summary, details)
	if err := s.appendAndPersist(e); err != nil {
		return "", err
	}
	s.leafID = e.ID
	return e.ID, nil
}

// AppendCustom records extension-authored state, never sent to the LLM.
func (s *Store) AppendCustom(customType string, data json.RawMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := NewCustomEntry(s.leafID, customType, data)
	if err := s.appendAndPersist(e); err != nil {
		return "", err
	}
	s.leafID = e.ID
	return e.ID, nil
}

// --- tree navigation ---

// Branch moves the leaf pointer to entryID without creating a new entry.
// Passing "" resets to the root (empty conversation).
func (s *Store) Branch(entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID == "" {
		s.leafID = ""
		return nil
	}
	if _, ok := s.index[entryID]; !ok {
		return fmt.Errorf("session: entry %q not found", entryID)
	}
	s.leafID = entryID
	return nil
}

// NavigateTree moves the leaf to targetID. If summary is non-empty and the old
// branch diverges from the new one, the caller-supplied summary of the
// abandoned portion is appended as a BranchSummaryEntry before switching.
func (s *Store) NavigateTree(targetID string, summary string) error {
	s.mu.Lock()
	oldLeaf := s.leafID
	s.mu.Unlock()

	if summary != "" && oldLeaf != "" && oldLeaf != targetID {
		if _, err := s.AppendBranchSummary(summary, nil); err != nil {
			return err
		}
	}
	return s.Branch(targetID)
}

// GetLeafID returns the current branch's leaf entry id.
func (s *Store) GetLeafID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.leafID
}

// GetEntry returns the entry with the given id, or nil.
func (s *Store) GetEntry(id string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index[id]
}

// GetBranch returns the root-to-fromID path. fromID == "" uses the current leaf.
func (s *Store) GetBranch(fromID string) []any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if fromID == "" {
		fromID = s.leafID
	}
	return s.branchLocked(fromID)
}

func (s *Store) branchLocked(fromID string) []any {
	if fromID == "" {
		return nil
	}
	var path []any
	visited := map[string]bool{}
	cur := fromID
	for cur != "" {
		if visited[cur] {
			break
		}
		visited[cur] = true
		e, ok := s.index[cur]
		if !ok {
			break
		}
		path = append(path, e)
		cur = entryParentID(e)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// GetChildren returns the direct child entry ids of parentID ("" = roots).
func (s *Store) GetChildren(parentID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]string, len(s.childIndex[parentID]))
	copy(cp, s.childIndex[parentID])
	return cp
}

// UserMessagesForBranching returns the ids and text of every User message
// entry reachable from the root, in root-to-leaf discovery order — the
// candidate set for an "edit an earlier message" branching UI.
func (s *Store) UserMessagesForBranching() []BranchCandidate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []BranchCandidate
	for _, e := range s.entries {
		me, ok := e.(*MessageEntry)
		if !ok || me.Message.Role != message.RoleUser {
			continue
		}
		out = append(out, BranchCandidate{EntryID: me.ID, Text: me.Message.Text()})
	}
	return out
}

// BranchCandidate is a user message entry eligible as a branch point.
type BranchCandidate struct {
	EntryID string
	Text    string
}

// --- context building ---

// Context is the LLM-ready view of the current branch: the message sequence
// (with compaction applied) plus the most recent model/thinking-level
// settings encountered along the branch.
type Context struct {
	Messages      []message.Message
	Provider      string
	ModelID       string
	ThinkingLevel string
}

// BuildContext implements spec.md §4.G buildSessionContext: walk leaf to
// root, reverse, and replace everything before the most recent Compaction's
// FirstKeptEntryID with a synthesized summary pair. Pure over (leaf, log).
func (s *Store) BuildContext() Context {
	s.mu.RLock()
	defer s.mu.RUnlock()

	branch := s.branchLocked(s.leafID)

	// Find the most recent compaction on the branch and its cut point.
	var lastCompaction *CompactionEntry
	for _, e := range branch {
		if c, ok := e.(*CompactionEntry); ok {
			lastCompaction = c
		}
	}

	var out Context
	afterCut := lastCompaction == nil
	summaryInjected := false

	for _, e := range branch {
		switch v := e.(type) {
		case *MessageEntry:
			if !afterCut {
				if v.ID == lastCompaction.FirstKeptEntryID {
					afterCut = true
				} else {
					continue
				}
			}
			if !summaryInjected && lastCompaction != nil {
				out.Messages = append(out.Messages,
					message.Message{Role: message.RoleUser, Blocks: []message.Block{message.Text{Text: "[compacted context request]"}}},
					message.Message{Role: message.RoleAssistant, Blocks: []message.Block{message.Text{Text: lastCompaction.Summary}}, StopReason: message.StopReasonStop},
				)
				summaryInjected = true
			}
			out.Messages = append(out.Messages, v.Message)
		case *BranchSummaryEntry:
			if !afterCut {
				continue
			}
			out.Messages = append(out.Messages, message.Message{
				Role:   message.RoleUser,
				Blocks: []message.Block{message.Text{Text: "[Branch context] " + v.Summary}},
			})
		case *ModelChangeEntry:
			out.Provider, out.ModelID = v.Provider, v.ModelID
		case *ThinkingLevelChangeEntry:
			out.ThinkingLevel = v.Level
		}
	}

	// A compaction with no retained messages after it still injects the
	// summary pair so the model sees it.
	if lastCompaction != nil && !summaryInjected {
		out.Messages = append(out.Messages,
			message.Message{Role: message.RoleUser, Blocks: []message.Block{message.Text{Text: "[compacted context request]"}}},
			message.Message{Role: message.RoleAssistant, Blocks: []message.Block{message.Text{Text: lastCompaction.Summary}}, StopReason: message.StopReasonStop},
		)
	}

	return out
}

// --- metadata accessors ---

func (s *Store) GetSessionID() string  { s.mu.RLock(); defer s.mu.RUnlock(); return s.header.ID }
func (s *Store) GetCwd() string        { s.mu.RLock(); defer s.mu.RUnlock(); return s.header.Cwd }
func (s *Store) GetFilePath() string   { s.mu.RLock(); defer s.mu.RUnlock(); return s.filePath }
func (s *Store) IsPersisted() bool     { s.mu.RLock(); defer s.mu.RUnlock(); return s.filePath != "" }
func (s *Store) GetLabel(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.labels[id]
}

// EntryCount returns the number of entries excluding the header.
func (s *Store) EntryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close closes the underlying append file handle, if any.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// --- internal helpers ---

func (s *Store) addToIndex(e any) {
	s.entries = append(s.entries, e)
	id := entryID(e)
	parent := entryParentID(e)
	if id == "" {
		return
	}
	s.index[id] = e
	s.childIndex[parent] = append(s.childIndex[parent], id)
	if l, ok := e.(*LabelEntry); ok {
		s.labels[l.TargetID] = l.Text
	}
}

func (s *Store) appendAndPersist(e any) error {
	s.addToIndex(e)
	if s.file != nil {
		return s.writeEntry(e)
	}
	return nil
}

func (s *Store) writeEntry(e any) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("session: marshal entry: %w", err)
	}
	data = append(data, '\n')
	_, err = s.file.Write(data)
	return err
}
