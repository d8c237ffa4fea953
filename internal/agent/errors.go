package agent

import (
	"context"
	"errors"

	"github.com/forgecode/forge/internal/provider"
)

// IsContextOverflow reports whether err (typically from an EventError) is a
// context-window overflow, the trigger for agentsession's reactive
// auto-compaction path per spec.md §7.
func IsContextOverflow(err error) bool {
	return provider.IsContextOverflow(err)
}

// IsRetryable reports whether err is a transient provider failure eligible
// for agentsession's auto-retry protocol.
func IsRetryable(err error) bool {
	return provider.IsRetryable(err)
}

// IsCancelled reports whether err represents a cancelled turn rather than a
// genuine failure, per spec.md §7's "cancellation is distinct from error".
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
