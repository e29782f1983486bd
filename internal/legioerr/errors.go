// Package legioerr defines the closed error taxonomy carried across every
// component boundary (spec §7): ValidationError, AgentError, MergeError,
// ServerError, NotFoundError. Each wraps an underlying cause and exposes it
// through Unwrap so callers can still use errors.Is/As, matching the
// teacher's bdError{Err, Stderr} wrap-and-unwrap shape.
package legioerr

import "fmt"

// Kind identifies which taxonomy member an error belongs to. CLI commands
// use this to pick an exit code and render a structured stderr block.
type Kind string

const (
	KindValidation Kind = "ValidationError"
	KindAgent      Kind = "AgentError"
	KindMerge      Kind = "MergeError"
	KindServer     Kind = "ServerError"
	KindNotFound   Kind = "NotFoundError"
)

// Error is the common shape for every taxonomy member: a kind, a set of
// machine-readable fields for the structured stderr block, a message, and
// an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ExitCode maps a Kind to the process exit code described in spec §6:
// 0 success, 1 error, 2 usage/validation error.
func (e *Error) ExitCode() int {
	if e.Kind == KindValidation {
		return 2
	}
	return 1
}

func newErr(kind Kind, msg string, cause error, fields map[string]string) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause, Fields: fields}
}

// Validation wraps a user/input error.
func Validation(msg string, fields map[string]string) *Error {
	return newErr(KindValidation, msg, nil, fields)
}

// Validationf is the formatted convenience form of Validation.
func Validationf(format string, args ...interface{}) *Error {
	return newErr(KindValidation, fmt.Sprintf(format, args...), nil, nil)
}

// Agent wraps an error with agent-name context; used by spawn, nudge,
// triage, and the terminal-multiplexer adapter.
func Agent(agentName string, cause error) *Error {
	return newErr(KindAgent, fmt.Sprintf("agent %q: %v", agentName, cause), cause, map[string]string{"agent": agentName})
}

// Merge wraps an error with branch/tier context.
func Merge(branch string, tier string, cause error) *Error {
	msg := fmt.Sprintf("merge %q", branch)
	if tier != "" {
		msg += fmt.Sprintf(" (tier %s)", tier)
	}
	if cause != nil {
		msg += fmt.Sprintf(": %v", cause)
	}
	return newErr(KindMerge, msg, cause, map[string]string{"branch": branch, "tier": tier})
}

// Server wraps a port/bind/listener error.
func Server(cause error) *Error {
	return newErr(KindServer, fmt.Sprintf("server error: %v", cause), cause, nil)
}

// NotFound builds a NotFoundError for a missing store record or HTTP
// resource.
func NotFound(resource, id string) *Error {
	return newErr(KindNotFound, fmt.Sprintf("%s %q not found", resource, id), nil,
		map[string]string{"resource": resource, "id": id})
}

// As is a small helper for call sites that want the Kind without an extra
// import of the standard errors package.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}
