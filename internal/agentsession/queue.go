package agentsession

// MessageMode names the delivery mode of a queued message, per spec.md
// §4.H's {steering, followUp, nextTurn} queues.
type MessageMode string

const (
	ModeSteer    MessageMode = "steer"
	ModeFollowUp MessageMode = "followUp"
	ModeNextTurn MessageMode = "nextTurn"
)

// QueuedMessage is one message held back during compaction, to be flushed
// in its original delivery mode once compaction ends.
type QueuedMessage struct {
	Mode MessageMode
	Text string
}

// Steer injects text into the currently running turn, ahead of its next
// provider call.
func (s *Session) Steer(text string) { s.enqueue(ModeSteer, text) }

// FollowUp queues text to run as a new turn as soon as the current one
// (and any queued compaction) completes.
func (s *Session) FollowUp(text string) { s.enqueue(ModeFollowUp, text) }

// NextTurn queues text behind any pending FollowUp.
func (s *Session) NextTurn(text string) { s.enqueue(ModeNextTurn, text) }

// enqueue hands text to the agent's queue, unless a compaction is in
// flight — in which case it is held in compactionQueue and flushed, in its
// original mode, once compaction ends (spec.md §4.H).
func (s *Session) enqueue(mode MessageMode, text string) {
	s.mu.Lock()
	if s.compacting {
		s.compactionQueue = append(s.compactionQueue, QueuedMessage{Mode: mode, Text: text})
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.deliver(mode, text)
}

func (s *Session) deliver(mode MessageMode, text string) {
	switch mode {
	case ModeSteer:
		s.core.Steer(text)
	case ModeFollowUp:
		s.core.FollowUp(text)
	case ModeNextTurn:
		s.core.NextTurn(text)
	}
}

func (s *Session) flushCompactionQueue() {
	s.mu.Lock()
	queued := s.compactionQueue
	s.compactionQueue = nil
	s.mu.Unlock()
	for _, q := range queued {
		s.deliver(q.Mode, q.Text)
	}
}
