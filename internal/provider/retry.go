package provider

import (
	"context"
	"math"
	"math/rand"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RetryPolicy is the HTTP-level retry policy for one provider call per
// spec.md §4.E: up to MaxRetries retries (MaxRetries+1 total attempts) on a
// fixed set of status codes or body patterns, honoring a server-supplied
// duration hint and otherwise backing off exponentially with jitter.
type RetryPolicy struct {
	MaxRetries int
	InitialMs  float64
	MaxMs      float64
	Factor     float64
	Jitter     float64
}

// DefaultRetryPolicy matches spec.md: 3 retries, 500ms initial, 30s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, InitialMs: 500, MaxMs: 30_000, Factor: 2, Jitter: 0.2}
}

var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

var retryableBodyPattern = regexp.MustCompile(`(?i)overloaded_error|rate_limit_error|temporarily unavailable`)

// ShouldRetry reports whether an attempt that returned (status, body) should
// be retried at all, independent of how many attempts remain.
func (p RetryPolicy) ShouldRetry(status int, body string) bool {
	if retryableStatus[status] {
		return true
	}
	return retryableBodyPattern.MatchString(body)
}

// Backoff returns the delay before attempt N (1-indexed), honoring a
// server-supplied Retry-After hint when present.
func (p RetryPolicy) Backoff(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return retryAfter
	}
	exp := math.Max(float64(attempt-1), 0)
	base := p.InitialMs * math.Pow(p.Factor, exp)
	jitter := base * p.Jitter * rand.Float64() // #nosec G404 -- retry jitter, not security sensitive
	total := math.Min(p.MaxMs, base+jitter)
	return time.Duration(math.Round(total)) * time.Millisecond
}

// ParseRetryAfter extracts a duration hint from an HTTP Retry-After header,
// which is either an integer number of seconds or an HTTP-date.
func ParseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		d := time.Until(t)
		if d > 0 {
			return d
		}
	}
	return 0
}

// Sleep waits for d or until ctx is cancelled, whichever comes first.
// Returns ctx.Err() if cancelled.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
