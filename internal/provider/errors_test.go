package provider

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyContextOverflow(t *testing.T) {
	err := errors.New(`anthropic: invalid_request_error: prompt is too long: 220000 tokens > 200000 maximum`)
	require.Equal(t, ErrKindContextOverflow, Classify(err))
	require.True(t, IsContextOverflow(err))
}

func TestClassifyCredentialError(t *testing.T) {
	err := errors.New("openai: 401 Unauthorized: invalid api key")
	require.Equal(t, ErrKindCredential, Classify(err))
	require.True(t, IsCredentialError(err))
}

func TestClassifyTransient(t *testing.T) {
	err := errors.New("anthropic: overloaded_error: Overloaded")
	require.Equal(t, ErrKindTransient, Classify(err))
	require.True(t, IsRetryable(err))
}

func TestClassifyUnknown(t *testing.T) {
	require.Equal(t, ErrKindUnknown, Classify(errors.New("boom")))
	require.Equal(t, ErrKindUnknown, Classify(nil))
}
