// Package testing provides a scripted remote executor for orchestrator tests.
package testing

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rileyhilliard/vmhop/internal/remote"
)

// Step is one scripted executor reply.
type Step struct {
	Output string
	Err    error

	// Delay holds the call open. A context that ends first wins and the
	// call returns a timeout or cancelled error.
	Delay time.Duration

	// Block holds the call open until the channel is closed or the context
	// ends.
	Block <-chan struct{}

	// Panic, when set, is raised instead of replying.
	Panic any
}

// Connected is the output of a healthy test-connection call.
func Connected(version string) Step {
	out := "Connected successfully\n"
	if version != "" {
		out += "Version: " + version + "\n"
	}
	return Step{Output: out}
}

// Failed is an executor error with the given message.
func Failed(message string) Step {
	return Step{Err: &remote.Error{Kind: remote.KindTransport, Message: message}}
}

// FakeExecutor replies to calls from a script, per operation. Once an
// operation's script runs out its last step repeats. Operations without a
// script succeed with empty output.
type FakeExecutor struct {
	mu       sync.Mutex
	scripts  map[string][]Step
	requests []remote.Request
	inFlight int
	maxSeen  int
	closed   bool
}

// NewFakeExecutor creates an executor with no scripts.
func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{scripts: make(map[string][]Step)}
}

// Script appends steps for an operation.
func (f *FakeExecutor) Script(op string, steps ...Step) *FakeExecutor {
	f.mu.Lock()
	defer f.mu.Unlock()
	op = strings.ToLower(op)
	f.scripts[op] = append(f.scripts[op], steps...)
	return f
}

// Invoke records the request and plays the next step.
func (f *FakeExecutor) Invoke(ctx context.Context, req remote.Request) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	step := f.next(strings.ToLower(req.Operation))
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if step.Delay > 0 {
		timer := time.NewTimer(step.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", ctxError(ctx)
		}
	}
	if step.Block != nil {
		select {
		case <-step.Block:
		case <-ctx.Done():
			return "", ctxError(ctx)
		}
	}
	if step.Panic != nil {
		panic(step.Panic)
	}
	return step.Output, step.Err
}

func (f *FakeExecutor) next(op string) Step {
	steps := f.scripts[op]
	switch len(steps) {
	case 0:
		return Step{}
	case 1:
		return steps[0]
	default:
		f.scripts[op] = steps[1:]
		return steps[0]
	}
}

func ctxError(ctx context.Context) error {
	if ctx.Err() == context.DeadlineExceeded {
		return &remote.Error{Kind: remote.KindTimeout, Message: "Operation timed out", Cause: ctx.Err()}
	}
	return &remote.Error{Kind: remote.KindCancelled, Message: "Operation cancelled", Cause: ctx.Err()}
}

// Requests returns every request seen so far.
func (f *FakeExecutor) Requests() []remote.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]remote.Request, len(f.requests))
	copy(out, f.requests)
	return out
}

// Calls counts requests for an operation.
func (f *FakeExecutor) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if strings.EqualFold(r.Operation, op) {
			n++
		}
	}
	return n
}

// MaxInFlight is the largest number of concurrent calls observed.
func (f *FakeExecutor) MaxInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxSeen
}

// Close marks the executor closed.
func (f *FakeExecutor) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (f *FakeExecutor) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
