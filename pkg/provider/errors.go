package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies provider failures.
type Kind string

const (
	// KindNetwork is a non-success HTTP status from either endpoint.
	KindNetwork Kind = "network"
	// KindNoChatOrg means no organization advertises the chat capability.
	KindNoChatOrg Kind = "no_chat_org"
	// KindUnknown covers transport, decode and storage failures.
	KindUnknown Kind = "unknown"
)

// Operations named in error messages.
const (
	OpOrganizations = "fetch organizations"
	OpUsage         = "fetch usage"
)

// Error is returned by every Client method on failure.
type Error struct {
	Kind       Kind
	Op         string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNetwork:
		return fmt.Sprintf("failed to %s: HTTP %d", e.Op, e.StatusCode)
	case KindNoChatOrg:
		return "no organization with chat capability found"
	default:
		if e.Err == nil {
			return fmt.Sprintf("failed to %s", e.Op)
		}
		return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NetworkError builds the error for a non-success status.
func NetworkError(op string, status int) *Error {
	return &Error{Kind: KindNetwork, Op: op, StatusCode: status}
}

// UnknownError wraps any other failure, keeping its message.
func UnknownError(op string, err error) *Error {
	return &Error{Kind: KindUnknown, Op: op, Err: err}
}

// ErrNoChatOrg is returned when the listing has no chat-capable organization.
var ErrNoChatOrg = &Error{Kind: KindNoChatOrg, Op: OpOrganizations}

// KindOf returns the kind of err. Errors that did not come from a Client
// are KindUnknown; a nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// IsAuth reports whether err is an authentication-class failure (401/403).
func IsAuth(err error) bool {
	var pe *Error
	if !errors.As(err, &pe) || pe.Kind != KindNetwork {
		return false
	}
	return pe.StatusCode == http.StatusUnauthorized || pe.StatusCode == http.StatusForbidden
}
