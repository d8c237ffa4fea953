package agent

import (
	"sync"

	"github.com/forgecode/forge/internal/message"
	"github.com/forgecode/forge/internal/models"
)

// UsageStats is the token/cost breakdown for a single turn.
type UsageStats struct {
	InputTokens      int
	OutputTokens     int
	CacheReadTokens  int
	CacheWriteTokens int
	TotalCost        float64
}

// SessionStats aggregates UsageStats across every turn in a session.
type SessionStats struct {
	TotalInputTokens      int
	TotalOutputTokens     int
	TotalCacheReadTokens  int
	TotalCacheWriteTokens int
	TotalCost             float64
	TurnCount             int
}

// UsageTracker accumulates token usage and cost across a session, per
// SPEC_FULL.md's supplemented usage-tracking feature. OAuth-authenticated
// sessions report $0 cost since no per-token billing applies.
type UsageTracker struct {
	mu            sync.RWMutex
	modelInfo     models.ModelInfo
	sessionStats  SessionStats
	lastTurn      *UsageStats
	contextTokens int
	isOAuth       bool
}

// NewUsageTracker builds a tracker for modelInfo.
func NewUsageTracker(modelInfo models.ModelInfo, isOAuth bool) *UsageTracker {
	return &UsageTracker{modelInfo: modelInfo, isOAuth: isOAuth}
}

// Record applies one turn's Usage to the session totals and sets the
// current context-window fill estimate from this turn's input+output,
// matching the teacher's guidance that the running total overstates fill
// level across a multi-step tool-calling turn.
func (ut *UsageTracker) Record(u message.Usage) {
	ut.mu.Lock()
	defer ut.mu.Unlock()

	var inputCost, outputCost, cacheReadCost, cacheWriteCost float64
	if !ut.isOAuth {
		inputCost = float64(u.Input) * ut.modelInfo.Cost.Input / 1_000_000
		outputCost = float64(u.Output) * ut.modelInfo.Cost.Output / 1_000_000
		if ut.modelInfo.Cost.CacheRead != nil {
			cacheReadCost = float64(u.CacheRead) * (*ut.modelInfo.Cost.CacheRead) / 1_000_000
		}
		if ut.modelInfo.Cost.CacheWrite != nil {
			cacheWriteCost = float64(u.CacheWrite) * (*ut.modelInfo.Cost.CacheWrite) / 1_000_000
		}
	}
	total := inputCost + outputCost + cacheReadCost + cacheWriteCost

	ut.lastTurn = &UsageStats{
		InputTokens: u.Input, OutputTokens: u.Output,
		CacheReadTokens: u.CacheRead, CacheWriteTokens: u.CacheWrite,
		TotalCost: total,
	}
	ut.sessionStats.TotalInputTokens += u.Input
	ut.sessionStats.TotalOutputTokens += u.Output
	ut.sessionStats.TotalCacheReadTokens += u.CacheRead
	ut.sessionStats.TotalCacheWriteTokens += u.CacheWrite
	ut.sessionStats.TotalCost += total
	ut.sessionStats.TurnCount++
	ut.contextTokens = u.Input + u.Output
}

// ContextFillPercent returns how full the model's context window is,
// based on the most recent turn's token count, or 0 if unknown.
func (ut *UsageTracker) ContextFillPercent() float64 {
	ut.mu.RLock()
	defer ut.mu.RUnlock()
	if ut.modelInfo.Limit.Context == 0 {
		return 0
	}
	return float64(ut.contextTokens) / float64(ut.modelInfo.Limit.Context) * 100
}

// SessionStats returns a copy of the cumulative session statistics.
func (ut *UsageTracker) SessionStats() SessionStats {
	ut.mu.RLock()
	defer ut.mu.RUnlock()
	return ut.sessionStats
}

// LastTurn returns a copy of the most recent turn's stats, or nil.
func (ut *UsageTracker) LastTurn() *UsageStats {
	ut.mu.RLock()
	defer ut.mu.RUnlock()
	if ut.lastTurn == nil {
		return nil
	}
	cp := *ut.lastTurn
	return &cp
}

// Reset clears all accumulated statistics.
func (ut *UsageTracker) Reset() {
	ut.mu.Lock()
	defer ut.mu.Unlock()
	ut.sessionStats = SessionStats{}
	ut.lastTurn = nil
	ut.contextTokens = 0
}
