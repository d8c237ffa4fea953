package agentsession

import (
	"context"
	"fmt"

	"github.com/forgecode/forge/internal/agent"
	"github.com/forgecode/forge/internal/compaction"
	"github.com/forgecode/forge/internal/extensions"
	"github.com/forgecode/forge/internal/message"
	"github.com/forgecode/forge/internal/session"
)

// Compact runs a manual "/compact [instructions]" requested by the user.
func (s *Session) Compact(ctx context.Context, customInstructions string) (*compaction.Result, error) {
	return s.compactNow(ctx, "manual", customInstructions, nil)
}

// branchMessageEntries returns the current branch's message entries (and
// their entry ids, in branch order) ignoring every other entry kind — the
// raw material compaction.FindCutPoint works over, as opposed to
// Store.BuildContext's already-summary-injected view.
func (s *Session) branchMessageEntries() ([]message.Message, []string) {
	branch := s.store.GetBranch("")
	msgs := make([]message.Message, 0, len(branch))
	ids := make([]string, 0, len(branch))
	for _, e := range branch {
		if me, ok := e.(*session.MessageEntry); ok {
			msgs = append(msgs, me.Message)
			ids = append(ids, me.ID)
		}
	}
	return msgs, ids
}

// compactNow runs one compaction pass: summarize everything before the cut
// point and append a Compaction entry recording it. out may be nil (the
// manual Compact path doesn't stream facade events). Returns nil, nil if a
// compaction is already in flight.
func (s *Session) compactNow(ctx context.Context, reason, customInstructions string, out chan<- Event) (*compaction.Result, error) {
	s.mu.Lock()
	if s.compacting {
		s.mu.Unlock()
		return nil, nil
	}
	s.compacting = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.compacting = false
		s.mu.Unlock()
		s.flushCompactionQueue()
	}()

	emit(out, Event{Type: EventAutoCompactionStart, Reason: reason})

	if s.runner != nil {
		_, _ = s.runner.Emit(extensions.SessionBeforeCompactEvent{CustomInstructions: customInstructions})
	}

	messages, ids := s.branchMessageEntries()
	if s.summarizer == nil {
		err := fmt.Errorf("agentsession: no summarizer configured")
		emit(out, Event{Type: EventAutoCompactionEnd, Err: err})
		return nil, err
	}

	result, _, err := compaction.Compact(ctx, s.summarizer, s.modelID, messages, compaction.Options{}, customInstructions)
	if err != nil {
		aborted := agent.IsCancelled(err)
		emit(out, Event{Type: EventAutoCompactionEnd, Err: err, Aborted: aborted})
		return nil, err
	}

	cut := result.MessagesRemoved
	firstKept := ""
	if cut < len(ids) {
		firstKept = ids[cut]
	}
	result.FirstKeptID = firstKept

	if _, err := s.store.AppendCompaction(result.Summary, firstKept, result.OriginalTokens); err != nil {
		emit(out, Event{Type: EventAutoCompactionEnd, Err: err})
		return nil, err
	}

	if s.runner != nil {
		_, _ = s.runner.Emit(extensions.SessionCompactEvent{CustomInstructions: customInstructions, MessagesRemoved: result.MessagesRemoved})
	}

	emit(out, Event{Type: EventAutoCompactionEnd, CompactionResult: result})
	return result, nil
}
