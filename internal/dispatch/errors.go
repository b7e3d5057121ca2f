// Package dispatch sends built instructions plus bounded conversation
// history to the external completion service and absorbs its failure
// modes: missing credentials, rate limits (one bounded retry), terminal
// HTTP errors, and malformed structured output.
package dispatch

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoCredential is returned before any network attempt when no API key
// is configured.
var ErrNoCredential = errors.New("no credential configured")

// ErrBusy is returned when a send overlaps an in-flight dispatch for the
// same conversation.
var ErrBusy = errors.New("dispatch already in flight")

// RateLimitError is returned after the single retry also hit HTTP 429.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited after retry (retry-after %s)", e.RetryAfter)
}

// HTTPError is any non-success, non-429 response from the service.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("completion service returned status %d: %s", e.Status, e.Body)
}

// ParseError means the service answered but the structured payload could
// not be extracted or decoded. Snippet carries a bounded excerpt of the
// offending text for diagnostics.
type ParseError struct {
	Snippet string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparsable structured payload: %q", e.Snippet)
}
