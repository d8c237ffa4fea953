package provider

import "regexp"

// ErrKind classifies a provider-layer failure by shape, per spec.md §7's
// "by kind, not by type name" taxonomy. Backends don't construct ErrKind
// values themselves; classification happens downstream from the wrapped
// error's text, since each SDK surfaces failures as its own concrete error
// type (anthropic.Error, openai's APIError) that this package doesn't
// import error-by-error.
type ErrKind int

const (
	ErrKindUnknown ErrKind = iota
	ErrKindTransient
	ErrKindContextOverflow
	ErrKindTool
	ErrKindCancelled
	ErrKindFatal
	ErrKindCredential
)

var contextOverflowPattern = regexp.MustCompile(`(?i)context_length_exceeded|prompt is too long|maximum context length|input length and ` + "`" + `max_tokens` + "`" + ` exceed|exceeds the model.s context`)

var credentialErrorPattern = regexp.MustCompile(`(?i)invalid api key|unauthorized|authentication_error|no credential available`)

// Classify inspects err's message text to assign it an ErrKind; HTTP
// status codes are not consulted. Classification is best-effort text matching, the same
// approach the retry layer already uses for overloaded/rate-limit bodies.
func Classify(err error) ErrKind {
	if err == nil {
		return ErrKindUnknown
	}
	text := err.Error()
	switch {
	case contextOverflowPattern.MatchString(text):
		return ErrKindContextOverflow
	case credentialErrorPattern.MatchString(text):
		return ErrKindCredential
	case retryableBodyPattern.MatchString(text):
		return ErrKindTransient
	default:
		return ErrKindUnknown
	}
}

// IsRetryable reports whether err looks like a transient provider failure
// that a caller may retry (distinct from RetryPolicy.ShouldRetry, which
// operates on a raw HTTP status+body before the SDK has wrapped it).
func IsRetryable(err error) bool {
	return Classify(err) == ErrKindTransient
}

// IsContextOverflow reports whether err looks like a context-window
// overflow, triggering the reactive half of auto-compaction.
func IsContextOverflow(err error) bool {
	return Classify(err) == ErrKindContextOverflow
}

// IsCredentialError reports whether err looks like a missing/invalid
// credential, per spec.md §7's "no API key for provider X" surfacing.
func IsCredentialError(err error) bool {
	return Classify(err) == ErrKindCredential
}
