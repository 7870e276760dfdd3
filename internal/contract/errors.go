package contract

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies failures of a monitor run.
type ErrorKind string

// All error kinds surfaced by the source and tracker clients.
const (
	KindAuthentication    ErrorKind = "authentication"
	KindRateLimit         ErrorKind = "rate_limit"
	KindNetwork           ErrorKind = "network"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindUpstream          ErrorKind = "upstream"
	KindTracker           ErrorKind = "tracker"
)

// Sentinels for matching with errors.Is.
var (
	ErrAuthentication    = &MonitorError{Kind: KindAuthentication}
	ErrRateLimited       = &MonitorError{Kind: KindRateLimit}
	ErrNetwork           = &MonitorError{Kind: KindNetwork}
	ErrMalformedResponse = &MonitorError{Kind: KindMalformedResponse}
	ErrUpstream          = &MonitorError{Kind: KindUpstream}
	ErrTracker           = &MonitorError{Kind: KindTracker}
)

// MonitorError is a typed failure with the operation that produced it.
type MonitorError struct {
	Kind    ErrorKind
	Op      string    // e.g. "list commits modules/exploits"
	ResetAt time.Time // Set for rate limits when the API reports it
	Err     error
}

// Error implements the error interface.
func (e *MonitorError) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Kind == KindRateLimit && !e.ResetAt.IsZero() {
		msg += fmt.Sprintf(" (resets at %s)", e.ResetAt.UTC().Format(time.RFC3339))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *MonitorError) Unwrap() error {
	return e.Err
}

// Is matches any MonitorError of the same kind.
func (e *MonitorError) Is(target error) bool {
	var t *MonitorError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// NewAuthenticationError reports a missing, invalid or insufficient credential.
func NewAuthenticationError(op string, err error) *MonitorError {
	return &MonitorError{Kind: KindAuthentication, Op: op, Err: err}
}

// NewRateLimitError reports an exhausted request quota. resetAt may be zero.
func NewRateLimitError(op string, resetAt time.Time, err error) *MonitorError {
	return &MonitorError{Kind: KindRateLimit, Op: op, ResetAt: resetAt, Err: err}
}

// NewNetworkError reports a transport failure or server-side outage.
func NewNetworkError(op string, err error) *MonitorError {
	return &MonitorError{Kind: KindNetwork, Op: op, Err: err}
}

// NewMalformedResponseError reports a payload that could not be understood.
func NewMalformedResponseError(op string, err error) *MonitorError {
	return &MonitorError{Kind: KindMalformedResponse, Op: op, Err: err}
}

// NewUpstreamError reports any other unexpected status.
func NewUpstreamError(op string, status int, err error) *MonitorError {
	if err == nil {
		err = fmt.Errorf("unexpected status %d", status)
	} else {
		err = fmt.Errorf("unexpected status %d: %w", status, err)
	}
	return &MonitorError{Kind: KindUpstream, Op: op, Err: err}
}

// NewTrackerError reports a failure to file an issue.
func NewTrackerError(op string, err error) *MonitorError {
	return &MonitorError{Kind: KindTracker, Op: op, Err: err}
}

// ErrorKindOf returns the kind of the first MonitorError in the chain, or "" if there is none.
func ErrorKindOf(err error) ErrorKind {
	var me *MonitorError
	if errors.As(err, &me) {
		return me.Kind
	}
	return ""
}
