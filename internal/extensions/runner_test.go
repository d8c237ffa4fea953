package extensions

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSequentialDispatchLastWriterWins(t *testing.T) {
	var order []string
	ext1 := Load("ext1.js", func(api *API) {
		api.OnAgentStart(func(e AgentStartEvent, ctx Context) { order = append(order, "ext1") })
	})
	ext2 := Load("ext2.js", func(api *API) {
		api.OnAgentStart(func(e AgentStartEvent, ctx Context) { order = append(order, "ext2") })
	})
	r := NewRunner([]*LoadedExtension{ext1, ext2})
	r.SetContext(NoninteractiveContext("s1", "/tmp", "m"))

	_, err := r.Emit(AgentStartEvent{Prompt: "hi"})
	require.NoError(t, err)
	require.Equal(t, []string{"ext1", "ext2"}, order)
}

func TestToolCallBlockShortCircuits(t *testing.T) {
	var secondRan bool
	ext1 := Load("ext1.js", func(api *API) {
		api.OnToolCall(func(e ToolCallEvent, ctx Context) *ToolCallResult {
			return &ToolCallResult{Block: true, Reason: "denied"}
		})
	})
	ext2 := Load("ext2.js", func(api *API) {
		api.OnToolCall(func(e ToolCallEvent, ctx Context) *ToolCallResult {
			secondRan = true
			return nil
		})
	})
	r := NewRunner([]*LoadedExtension{ext1, ext2})
	r.SetContext(NoninteractiveContext("s1", "/tmp", "m"))

	result, err := r.Emit(ToolCallEvent{})
	require.NoError(t, err)
	require.False(t, secondRan)
	tcr, ok := result.(ToolCallResult)
	require.True(t, ok)
	require.True(t, tcr.Block)
}

func TestPanicInToolCallHandlerFailsSafe(t *testing.T) {
	ext := Load("ext.js", func(api *API) {
		api.OnToolCall(func(e ToolCallEvent, ctx Context) *ToolCallResult {
			panic("boom")
		})
	})
	r := NewRunner([]*LoadedExtension{ext})
	r.SetContext(NoninteractiveContext("s1", "/tmp", "m"))

	result, err := r.Emit(ToolCallEvent{})
	require.NoError(t, err)
	tcr, ok := result.(ToolCallResult)
	require.True(t, ok)
	require.True(t, tcr.Block)
}

func TestWidgetsSortedByPriorityThenID(t *testing.T) {
	r := NewRunner(nil)
	r.SetWidget(WidgetConfig{ID: "b", Placement: WidgetPlacementHeader, Priority: 1})
	r.SetWidget(WidgetConfig{ID: "a", Placement: WidgetPlacementHeader, Priority: 1})
	r.SetWidget(WidgetConfig{ID: "z", Placement: WidgetPlacementHeader, Priority: 0})

	widgets := r.Widgets(WidgetPlacementHeader)
	require.Len(t, widgets, 3)
	require.Equal(t, []string{"z", "a", "b"}, []string{widgets[0].ID, widgets[1].ID, widgets[2].ID})
}

func TestEmitAllAccumulatesBeforeAgentStartResults(t *testing.T) {
	ext1 := Load("ext1.js", func(api *API) {
		api.OnBeforeAgentStart(func(e BeforeAgentStartEvent, ctx Context) *BeforeAgentStartResult {
			return &BeforeAgentStartResult{SystemPromptAppend: "rule one"}
		})
	})
	ext2 := Load("ext2.js", func(api *API) {
		api.OnBeforeAgentStart(func(e BeforeAgentStartEvent, ctx Context) *BeforeAgentStartResult {
			return &BeforeAgentStartResult{SystemPromptAppend: "rule two"}
		})
	})
	r := NewRunner([]*LoadedExtension{ext1, ext2})
	r.SetContext(NoninteractiveContext("s1", "/tmp", "m"))

	results, err := r.EmitAll(BeforeAgentStartEvent{Prompt: "hi"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "rule one", results[0].(BeforeAgentStartResult).SystemPromptAppend)
	require.Equal(t, "rule two", results[1].(BeforeAgentStartResult).SystemPromptAppend)
}

func TestEmitAllStopsAtBlockingResult(t *testing.T) {
	var secondRan bool
	ext1 := Load("ext1.js", func(api *API) {
		api.OnBeforeAgentStart(func(e BeforeAgentStartEvent, ctx Context) *BeforeAgentStartResult {
			return &BeforeAgentStartResult{Block: true, Reason: "denied"}
		})
	})
	ext2 := Load("ext2.js", func(api *API) {
		api.OnBeforeAgentStart(func(e BeforeAgentStartEvent, ctx Context) *BeforeAgentStartResult {
			secondRan = true
			return nil
		})
	})
	r := NewRunner([]*LoadedExtension{ext1, ext2})
	r.SetContext(NoninteractiveContext("s1", "/tmp", "m"))

	results, err := r.EmitAll(BeforeAgentStartEvent{Prompt: "hi"})
	require.NoError(t, err)
	require.False(t, secondRan)
	require.Len(t, results, 1)
}

func TestContextRewriteLastWriterWins(t *testing.T) {
	ext1 := Load("ext1.js", func(api *API) {
		api.OnContextRewrite(func(e ContextRewriteEvent, ctx Context) *ContextRewriteResult {
			return &ContextRewriteResult{Messages: nil}
		})
	})
	r := NewRunner([]*LoadedExtension{ext1})
	r.SetContext(NoninteractiveContext("s1", "/tmp", "m"))

	result, err := r.Emit(ContextRewriteEvent{})
	require.NoError(t, err)
	_, ok := result.(ContextRewriteResult)
	require.True(t, ok)
}

func TestNoninteractiveContextPromptsCancelImmediately(t *testing.T) {
	ctx := NoninteractiveContext("s1", "/tmp", "m")
	require.True(t, ctx.PromptConfirm(PromptConfirmConfig{}).Cancelled)
	require.True(t, ctx.PromptSelect(PromptSelectConfig{}).Cancelled)
	require.True(t, ctx.ShowOverlay(OverlayConfig{}).Cancelled)
}
