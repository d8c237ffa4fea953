// Package session implements the append-only session entry log described
// in spec.md §4.G: a tree of SessionEntry values linked by parent/child ids,
// persisted as JSON-Lines, with a single "current leaf" designating the
// active branch.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/forgecode/forge/internal/message"
)

// EntryType identifies the kind of record stored in a session's JSONL file.
type EntryType string

const (
	EntryTypeHeader              EntryType = "session"
	EntryTypeMessage             EntryType = "message"
	EntryTypeModelChange         EntryType = "model_change"
	EntryTypeThinkingLevelChange EntryType = "thinking_level_change"
	EntryTypeLabel               EntryType = "label"
	EntryTypeCompaction          EntryType = "compaction"
	EntryTypeBranchSummary       EntryType = "branch_summary"
	EntryTypeCustom              EntryType = "custom"
)

// CurrentVersion is the on-disk session format version.
const CurrentVersion = 1

// Header is the first line of a session's JSONL file. It is metadata only
// and does not participate in the entry tree (no ID/ParentID).
type Header struct {
	Type          EntryType `json:"type"`
	Version       int       `json:"version"`
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Cwd           string    `json:"cwd"`
	ParentSession string    `json:"parent_session,omitempty"`
}

// Entry is the common envelope shared by every tree entry (i.e. every line
// after the header).
type Entry struct {
	Type      EntryType `json:"type"`
	ID        string    `json:"id"`
	ParentID  string    `json:"parent_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageEntry stores one conversation message.
type MessageEntry struct {
	Entry
	Message message.Message `json:"message"`
}

// ModelChangeEntry records a provider/model switch.
type ModelChangeEntry struct {
	Entry
	Provider string `json:"provider"`
	ModelID  string `json:"model_id"`
}

// ThinkingLevelChangeEntry records a change to the reasoning-effort level.
type ThinkingLevelChangeEntry struct {
	Entry
	Level string `json:"level"`
}

// LabelEntry bookmarks an entry with a user-defined label.
type LabelEntry struct {
	Entry
	TargetID string `json:"target_id"`
	Text     string `json:"text"`
}

// CompactionEntry records that the branch prefix up to FirstKeptEntryID was
// summarized. buildSessionContext replaces that prefix with a synthesized
// user+assistant summary pair when it encounters the most recent one of
// these along the branch.
type CompactionEntry struct {
	Entry
	Summary          string `json:"summary"`
	FirstKeptEntryID string `json:"first_kept_entry_id"`
	TokensBefore     int    `json:"tokens_before"`
}

// BranchSummaryEntry captures a summary of a branch the user navigated away
// from, so the model retains context about abandoned exploration.
type BranchSummaryEntry struct {
	Entry
	Summary string          `json:"summary"`
	Details json.RawMessage `json:"details,omitempty"`
}

// CustomEntry stores extension-authored state. It is never sent to the LLM.
type CustomEntry struct {
	Entry
	CustomType string          `json:"custom_type"`
	Data       json.RawMessage `json:"data"`
}

// GenerateEntryID returns a random 16-hex-char entry identifier.
func GenerateEntryID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// GenerateSessionID returns a random 32-hex-char session identifier.
func GenerateSessionID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func newEntry(t EntryType, parentID string) Entry {
	return Entry{Type: t, ID: GenerateEntryID(), ParentID: parentID, Timestamp: time.Now()}
}

// NewMessageEntry builds a MessageEntry linked to parentID.
func NewMessageEntry(parentID string, msg message.Message) *MessageEntry {
	return &MessageEntry{Entry: newEntry(EntryTypeMessage, parentID), Message: msg}
}

// NewModelChangeEntry builds a ModelChangeEntry linked to parentID.
func NewModelChangeEntry(parentID, provider, modelID string) *ModelChangeEntry {
	return &ModelChangeEntry{Entry: newEntry(EntryTypeModelChange, parentID), Provider: provider, ModelID: modelID}
}

// NewThinkingLevelChangeEntry builds a ThinkingLevelChangeEntry linked to parentID.
func NewThinkingLevelChangeEntry(parentID, level string) *ThinkingLevelChangeEntry {
	return &ThinkingLevelChangeEntry{Entry: newEntry(EntryTypeThinkingLevelChange, parentID), Level: level}
}

// NewLabelEntry builds a LabelEntry linked to parentID.
func NewLabelEntry(parentID, targetID, text string) *LabelEntry {
	return &LabelEntry{Entry: newEntry(EntryTypeLabel, parentID), TargetID: targetID, Text: text}
}

// NewCompactionEntry builds a CompactionEntry linked to parentID.
func NewCompactionEntry(parentID, summary, firstKeptEntryID string, tokensBefore int) *CompactionEntry {
	return &CompactionEntry{
		Entry:            newEntry(EntryTypeCompaction, parentID),
		Summary:          summary,
		FirstKeptEntryID: firstKeptEntryID,
		TokensBefore:     tokensBefore,
	}
}

// NewBranchSummaryEntry builds a BranchSummaryEntry linked to parentID.
func NewBranchSummaryEntry(parentID, summary string, details json.RawMessage) *BranchSummaryEntry {
	return &BranchSummaryEntry{Entry: newEntry(EntryTypeBranchSummary, parentID), Summary: summary, Details: details}
}

// NewCustomEntry builds a CustomEntry linked to parentID.
func NewCustomEntry(parentID, customType string, data json.RawMessage) *CustomEntry {
	return &CustomEntry{Entry: newEntry(EntryTypeCustom, parentID), CustomType: customType, Data: data}
}

type entryEnvelope struct {
	Type EntryType `json:"type"`
}

// UnmarshalEntry inspects the "type" field of a JSON line and deserializes
// it into the matching concrete entry type (or *Header for the first line).
func UnmarshalEntry(line []byte) (any, error) {
	var env entryEnvelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, fmt.Errorf("session: detect entry type: %w", err)
	}
	switch env.Type {
	case EntryTypeHeader:
		var v Header
		return &v, json.Unmarshal(line, &v)
	case EntryTypeMessage:
		var v MessageEntry
		return &v, json.Unmarshal(line, &v)
	case EntryTypeModelChange:
		var v ModelChangeEntry
		return &v, json.Unmarshal(line, &v)
	case EntryTypeThinkingLevelChange:
		var v ThinkingLevelChangeEntry
		return &v, json.Unmarshal(line, &v)
	case EntryTypeLabel:
		var v LabelEntry
		return &v, json.Unmarshal(line, &v)
	case EntryTypeCompaction:
		var v CompactionEntry
		return &v, json.Unmarshal(line, &v)
	case EntryTypeBranchSummary:
		var v BranchSummaryEntry
		return &v, json.Unmarshal(line, &v)
	case EntryTypeCustom:
		var v CustomEntry
		return &v, json.Unmarshal(line, &v)
	default:
		return nil, fmt.Errorf("session: unknown entry type %q", env.Type)
	}
}

// entryID and entryParentID extract the identity fields from any tree entry
// (every concrete type except *Header, which is not part of the tree).
func entryID(e any) string {
	switch v := e.(type) {
	case *MessageEntry:
		return v.ID
	case *ModelChangeEntry:
		return v.ID
	case *ThinkingLevelChangeEntry:
		return v.ID
	case *LabelEntry:
		return v.ID
	case *CompactionEntry:
		return v.ID
	case *BranchSummaryEntry:
		return v.ID
	case *CustomEntry:
		return v.ID
	default:
		return ""
	}
}

func entryParentID(e any) string {
	switch v := e.(type) {
	case *MessageEntry:
		return v.ParentID
	case *ModelChangeEntry:
		return v.ParentID
	case *ThinkingLevelChangeEntry:
		return v.ParentID
	case *LabelEntry:
		return v.ParentID
	case *CompactionEntry:
		return v.ParentID
	case *BranchSummaryEntry:
		return v.ParentID
	case *CustomEntry:
		return v.ParentID
	default:
		return ""
	}
}

func entryTimestamp(e any) time.Time {
	switch v := e.(type) {
	case *MessageEntry:
		return v.Timestamp
	case *ModelChangeEntry:
		return v.Timestamp
	case *ThinkingLevelChangeEntry:
		return v.Timestamp
	case *LabelEntry:
		return v.Timestamp
	case *CompactionEntry:
		return v.Timestamp
	case *BranchSummaryEntry:
		return v.Timestamp
	case *CustomEntry:
		return v.Timestamp
	default:
		return time.Time{}
	}
}
