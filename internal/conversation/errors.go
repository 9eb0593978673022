package conversation

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned for blank patient messages.
	ErrEmptyInput = errors.New("conversation: message is empty")
	// ErrTurnInProgress is returned when the session is already answering a turn.
	ErrTurnInProgress = errors.New("conversation: a turn is already in progress")
	// ErrSessionNotFound is returned for unknown or expired sessions.
	ErrSessionNotFound = errors.New("conversation: session not found")
	// ErrStoreUnavailable is returned when session state cannot be read or written.
	ErrStoreUnavailable = errors.New("conversation: session store unavailable")

	// ErrNotConfigured is returned when no provider credential was configured.
	ErrNotConfigured = errors.New("conversation: completion not configured")
	// ErrTransport covers network failures and timeouts.
	ErrTransport = errors.New("conversation: completion transport error")
	// ErrUpstream covers non-success statuses from the provider.
	ErrUpstream = errors.New("conversation: completion upstream error")
	// ErrMalformedResponse is returned when a success response carries no answer.
	ErrMalformedResponse = errors.New("conversation: malformed completion response")
)

// FailureKind names a completion failure for audit records and metrics.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotConfigured):
		return "completion_not_configured"
	case errors.Is(err, ErrUpstream):
		return "completion_upstream_error"
	case errors.Is(err, ErrMalformedResponse):
		return "completion_malformed_response"
	default:
		return "completion_transport_error"
	}
}

func upstreamError(provider string, status int, msg string) error {
	return fmt.Errorf("%w: %s returned status %d: %s", ErrUpstream, provider, status, msg)
}

// classified reports whether err already carries a completion failure kind.
func classified(err error) bool {
	return errors.Is(err, ErrNotConfigured) ||
		errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrUpstream) ||
		errors.Is(err, ErrMalformedResponse)
}

// asTransport wraps unclassified errors, deadlines included, as ErrTransport.
func asTransport(provider string, err error) error {
	if classified(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s timed out: %w", ErrTransport, provider, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrTransport, provider, err)
}
