package genapi

import "fmt"

// ErrorKind partitions generation failures for the retry policy.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindRateLimited ErrorKind = "rate_limited"
	KindUpstream    ErrorKind = "upstream"   // 5xx-equivalent
	KindValidation  ErrorKind = "validation" // malformed input, never retried
	KindAuth        ErrorKind = "auth"
)

// APIError is the typed failure returned by the generation API client.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("generation api: %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("generation api: %s: %s", e.Kind, e.Message)
}

// Transient reports whether the failure is worth retrying.
func (e *APIError) Transient() bool {
	switch e.Kind {
	case KindTimeout, KindRateLimited, KindUpstream:
		return true
	default:
		return false
	}
}
