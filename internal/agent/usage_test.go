package agent

import (
	"testing"

	"github.com/forgecode/forge/internal/message"
	"github.com/forgecode/forge/internal/models"
	"github.com/stretchr/testify/require"
)

func TestUsageTrackerAccumulatesAcrossTurns(t *testing.T) {
	info := models.ModelInfo{Cost: models.Cost{Input: 1, Output: 2}, Limit: models.Limit{Context: 1000}}
	ut := NewUsageTracker(info, false)

	ut.Record(message.Usage{Input: 100, Output: 50})
	ut.Record(message.Usage{Input: 200, Output: 100})

	stats := ut.SessionStats()
	require.Equal(t, 300, stats.TotalInputTokens)
	require.Equal(t, 150, stats.TotalOutputTokens)
	require.Equal(t, 2, stats.TurnCount)
	require.InDelta(t, (100*1+50*2)/1e6+(200*1+100*2)/1e6, stats.TotalCost, 1e-9)
}

func TestUsageTrackerOAuthReportsZeroCost(t *testing.T) {
	info := models.ModelInfo{Cost: models.Cost{Input: 10, Output: 20}}
	ut := NewUsageTracker(info, true)
	ut.Record(message.Usage{Input: 1000, Output: 1000})
	require.Zero(t, ut.SessionStats().TotalCost)
}

func TestContextFillPercent(t *testing.T) {
	info := models.ModelInfo{Limit: models.Limit{Context: 1000}}
	ut := NewUsageTracker(info, false)
	ut.Record(message.Usage{Input: 400, Output: 100})
	require.InDelta(t, 50.0, ut.ContextFillPercent(), 0.01)
}
