// Package compaction implements the token-estimation and cut-point
// selection from spec.md §4.H's auto-compaction protocol, grounded on the
// teacher's compaction.go algorithm.
package compaction

import (
	"context"
	"fmt"
	"strings"

	"github.com/forgecode/forge/internal/message"
	"github.com/forgecode/forge/internal/provider"
)

// EstimateTokens is a rough ~4-chars-per-token heuristic, used when a
// provider response carries no usage field.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// EstimateMessageTokens sums EstimateTokens over every text block plus a
// small per-message overhead for role/structure framing.
func EstimateMessageTokens(messages []message.Message) int {
	total := 0
	for _, m := range messages {
		total += EstimateTokens(m.Text()) + 4
		for _, tc := range m.ToolCalls() {
			total += EstimateTokens(tc.ArgumentsJSON) + 4
		}
	}
	return total
}

// ShouldCompact reports whether messages' estimated size leaves less than
// reserveTokens of headroom in contextWindow.
func ShouldCompact(messages []message.Message, contextWindow, reserveTokens int) bool {
	return EstimateMessageTokens(messages) > contextWindow-reserveTokens
}

// Options configures one compaction run.
type Options struct {
	ContextWindow    int
	ReserveTokens    int // default 16384
	KeepRecentTokens int // default 20000
	SummaryPrompt    string
}

func (o Options) withDefaults() Options {
	if o.ReserveTokens == 0 {
		o.ReserveTokens = 16384
	}
	if o.KeepRecentTokens == 0 {
		o.KeepRecentTokens = 20000
	}
	if o.SummaryPrompt == "" {
		o.SummaryPrompt = defaultSummaryPrompt
	}
	return o
}

// isValidCutPoint reports whether messages may be safely split right before
// index i: a tool-result message can never be a cut point, since it would
// strand an assistant tool-call with no matching result in the retained
// suffix.
func isValidCutPoint(messages []message.Message, i int) bool {
	if i <= 0 || i >= len(messages) {
		return i == len(messages)
	}
	return messages[i].Role != message.RoleToolBlock
}

// FindCutPoint walks messages backward accumulating estimated tokens until
// keepRecentTokens is exceeded, then scans forward to the next valid cut
// point (never inside a tool-call/tool-result pair). Returns -1 if there
// are fewer than 2 messages or the whole list fits within keepRecentTokens
// (no compaction needed), and len(messages) if no valid cut point follows
// the budget boundary.
func FindCutPoint(messages []message.Message, keepRecentTokens int) int {
	if len(messages) < 2 {
		return -1
	}

	tokens := 0
	cut := len(messages)
	for i := len(messages) - 1; i >= 0; i-- {
		tokens += EstimateTokens(messages[i].Text()) + 4
		if tokens > keepRecentTokens {
			cut = i
			break
		}
	}
	if cut == len(messages) {
		return -1 // nothing exceeds the keep-recent budget; no compaction needed
	}

	for !isValidCutPoint(messages, cut) && cut < len(messages) {
		cut++
	}
	if cut < 2 {
		return -1
	}
	return cut
}

// forceCutPoint is the manual "/compact" fallback: keep only the last
// non-tool-result message, maximizing what gets summarized.
func forceCutPoint(messages []message.Message) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != message.RoleToolBlock {
			return i
		}
	}
	return len(messages)
}

func roleLabel(r message.Role) string {
	switch r {
	case message.RoleUser:
		return "User"
	case message.RoleAssistant:
		return "Assistant"
	case message.RoleToolBlock:
		return "Tool"
	default:
		return "System"
	}
}

func serializeMessages(messages []message.Message) string {
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "### %s\n%s\n\n", roleLabel(m.Role), m.Text())
		for _, tc := range m.ToolCalls() {
			fmt.Fprintf(&b, "[tool call: %s(%s)]\n", tc.Name, tc.ArgumentsJSON)
		}
	}
	return b.String()
}

const defaultSummaryPrompt = `Summarize the conversation so far for continuation in a new context window. Structure your summary as:

Goal: what the user is trying to accomplish
Constraints: any stated requirements or limitations
Progress: what has been done so far
Key Decisions: choices made and why
Next Steps: what remains to be done
Critical Context: file paths, identifiers, or facts needed to continue correctly`

// Result is the outcome of one compaction.
type Result struct {
	Summary         string
	OriginalTokens  int
	CompactedTokens int
	MessagesRemoved int
	FirstKeptID     string // set by the caller from the entry log, not here
}

// Summarizer generates the prose summary for a compaction, by making a
// single non-tool-calling provider call.
type Summarizer interface {
	Summarize(ctx context.Context, model, systemPrompt, userPrompt string) (string, error)
}

// providerSummarizer adapts a provider.Backend into a Summarizer by
// draining a single no-tools turn to its final text.
type providerSummarizer struct {
	backend provider.Backend
}

// NewProviderSummarizer builds a Summarizer from an LLM backend.
func NewProviderSummarizer(backend provider.Backend) Summarizer {
	return providerSummarizer{backend: backend}
}

func (s providerSummarizer) Summarize(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	req := provider.Request{
		Model:        model,
		SystemPrompt: systemPrompt,
		Messages:     []message.Message{{Role: message.RoleUser, Blocks: []message.Block{message.Text{Text: userPrompt}}}},
	}
	stream, err := s.backend.StreamTurn(ctx, req)
	if err != nil {
		return "", err
	}
	var text string
	for ev := range stream {
		switch ev.Type {
		case provider.EventTextDelta:
			text += ev.Text
		case provider.EventError:
			return "", ev.Err
		}
	}
	return text, nil
}

// Compact finds a cut point in messages, summarizes everything before it,
// and returns the Result plus the retained message suffix with the summary
// prepended as a synthesized exchange (matching the teacher's
// system-role-summary injection). customInstructions, if non-empty,
// augments the summarization prompt (the manual "/compact <instructions>"
// path).
func Compact(ctx context.Context, summarizer Summarizer, model string, messages []message.Message, opts Options, customInstructions string) (*Result, []message.Message, error) {
	opts = opts.withDefaults()

	cut := FindCutPoint(messages, opts.KeepRecentTokens)
	forced := false
	if cut < 0 {
		cut = forceCutPoint(messages)
		forced = true
	}

	before := messages[:cut]
	after := messages[cut:]
	originalTokens := EstimateMessageTokens(before)

	prompt := opts.SummaryPrompt
	if customInstructions != "" {
		prompt += "\n\nAdditional instructions: " + customInstructions
	}
	prompt += "\n\n---\n\n" + serializeMessages(before)

	summary, err := summarizer.Summarize(ctx, model, "You are summarizing a coding session for context compaction.", prompt)
	if err != nil {
		return nil, nil, fmt.Errorf("compaction: summarize: %w", err)
	}

	result := &Result{
		Summary:         summary,
		OriginalTokens:  originalTokens,
		CompactedTokens: EstimateTokens(summary),
		MessagesRemoved: len(before),
	}
	if forced {
		result.MessagesRemoved = len(before)
	}

	retained := append([]message.Message{
		{Role: message.RoleUser, Blocks: []message.Block{message.Text{Text: "[compacted context request]"}}},
		{Role: message.RoleAssistant, Blocks: []message.Block{message.Text{Text: summary}}, StopReason: message.StopReasonStop},
	}, after...)

	return result, retained, nil
}
