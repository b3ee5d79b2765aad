// Package remote runs named operations against a managed server.
//
// An Executor returns the operation's text output on success. Failures
// come back as *Error, which carries a Kind for callers that care and a
// Message that callers may treat as opaque text.
package remote

import (
	"context"
	stderrors "errors"
	"fmt"
)

// Operation names the orchestrator invokes.
const (
	OpTestConnection = "test-connection"
	OpDisconnect     = "disconnect"
)

// Credential is the login for one request. Secret is never logged.
type Credential struct {
	Username string
	Secret   string
}

// String hides the secret when a credential ends up in a log line.
func (c Credential) String() string {
	return fmt.Sprintf("%s:****", c.Username)
}

// Request is one remote operation invocation.
type Request struct {
	Operation  string
	Address    string
	Credential Credential
	Params     map[string]string
}

// Kind classifies executor failures.
type Kind string

const (
	KindUnknownOperation Kind = "unknown_operation"
	KindInvalidRequest   Kind = "invalid_request"
	KindTransport        Kind = "transport"
	KindAuth             Kind = "auth"
	KindTimeout          Kind = "timeout"
	KindCancelled        Kind = "cancelled"
	KindCommand          Kind = "command"
)

// Error is the failure half of an executor result.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Errorf builds an *Error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf returns the kind of a remote error, or "" for other errors.
func KindOf(err error) Kind {
	var rErr *Error
	if stderrors.As(err, &rErr) {
		return rErr.Kind
	}
	return ""
}

// Executor runs remote operations. Implementations must return promptly
// once ctx ends.
type Executor interface {
	Invoke(ctx context.Context, req Request) (string, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, req Request) (string, error)

// Invoke calls f.
func (f ExecutorFunc) Invoke(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Closer is implemented by executors that hold sessions open between calls.
type Closer interface {
	Close() error
}
