package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShouldRetryStatusCodes(t *testing.T) {
	p := DefaultRetryPolicy()
	require.True(t, p.ShouldRetry(429, ""))
	require.True(t, p.ShouldRetry(503, ""))
	require.False(t, p.ShouldRetry(400, ""))
}

func TestShouldRetryBodyPattern(t *testing.T) {
	p := DefaultRetryPolicy()
	require.True(t, p.ShouldRetry(529, `{"type":"overloaded_error"}`))
	require.False(t, p.ShouldRetry(400, `{"type":"invalid_request_error"}`))
}

func TestBackoffHonorsRetryAfter(t *testing.T) {
	p := DefaultRetryPolicy()
	require.Equal(t, 5*time.Second, p.Backoff(1, 5*time.Second))
}

func TestBackoffCapsAtMax(t *testing.T) {
	p := RetryPolicy{MaxRetries: 3, InitialMs: 1000, MaxMs: 2000, Factor: 10, Jitter: 0}
	require.Equal(t, 2000*time.Millisecond, p.Backoff(5, 0))
}

func TestParseRetryAfterSeconds(t *testing.T) {
	require.Equal(t, 12*time.Second, ParseRetryAfter("12"))
	require.Equal(t, time.Duration(0), ParseRetryAfter(""))
}
