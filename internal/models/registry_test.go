package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseModelString(t *testing.T) {
	provider, model, ok := ParseModelString("anthropic/claude-opus-4-20250514")
	require.True(t, ok)
	require.Equal(t, "anthropic", provider)
	require.Equal(t, "claude-opus-4-20250514", model)

	_, _, ok = ParseModelString("not-a-model-string")
	require.False(t, ok)
}

func TestResolveAliasFallsThroughWhenUnknown(t *testing.T) {
	require.Equal(t, "claude-opus-4-20250514", ResolveAlias("anthropic", "claude-opus-latest"))
	require.Equal(t, "some-unknown-model", ResolveAlias("anthropic", "some-unknown-model"))
}

func TestLookupUnknownModelIsNotFound(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Lookup("anthropic", "nonexistent")
	require.False(t, ok)
}
