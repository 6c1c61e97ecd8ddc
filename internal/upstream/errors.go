package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrUnreachable marks a transport-level failure: the provider could not
// be reached at all, as opposed to the provider rejecting the request.
// The HTTP layer maps it to 502 so the UI can tell "server down" from
// "server said no".
var ErrUnreachable = errors.New("upstream unreachable")

// ErrMissingCredential means the server-held API key was never
// configured. Fatal for the request, surfaced as a 500-class response
// with a descriptive message; the process keeps running.
var ErrMissingCredential = errors.New("API key not configured on server")

// StatusError is a non-2xx provider response, carried verbatim so the
// handler can relay status and body unchanged.
type StatusError struct {
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, truncate(string(e.Body), 200))
}

// IsAuth reports a credential problem (invalid or expired API key).
func (e *StatusError) IsAuth() bool {
	return e.Status == http.StatusUnauthorized
}

// IsRateLimited reports a quota or rate-limit rejection.
func (e *StatusError) IsRateLimited() bool {
	return e.Status == http.StatusTooManyRequests
}

// classifyTransport converts an http.Client error into the package's
// taxonomy. Context cancellation passes through untouched so callers can
// still match errors.Is(err, context.Canceled).
func classifyTransport(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

// truncate limits string length for logging.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
