// Package conn is the connection orchestrator: it tests, connects to and
// disconnects from managed servers, caches successful tests per address,
// retries transient failures, and tells subscribers when the active
// connection changes.
//
// All connection-affecting work is serialized through a single gate, so
// there is at most one remote operation in flight per Orchestrator.
package conn

import (
	"fmt"
	"strconv"
	"time"
)

// Messages for the failures the orchestrator produces itself.
const (
	MsgNoCredentials = "No saved credentials found"
	MsgCancelled     = "Connection test cancelled"
)

// Result is the outcome of a test or connect. Empty strings mean absent.
// Results are values and are never mutated after construction.
type Result struct {
	Successful   bool
	Version      string
	ErrorMessage string
}

// Success builds a successful result.
func Success(version string) Result {
	return Result{Successful: true, Version: version}
}

// Failure builds a failed result.
func Failure(message string) Result {
	return Result{ErrorMessage: message}
}

func (r Result) String() string {
	if r.Successful {
		if r.Version == "" {
			return "connected"
		}
		return "connected (version " + r.Version + ")"
	}
	return "failed: " + r.ErrorMessage
}

// TimedOutMessage is the message for a test that hit its own deadline.
func TimedOutMessage(timeout time.Duration) string {
	return fmt.Sprintf("Connection timed out after %ss", strconv.FormatFloat(timeout.Seconds(), 'f', -1, 64))
}
