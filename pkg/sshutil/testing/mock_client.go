// Package testing provides an in-memory SSH client for tests.
package testing

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"time"

	"github.com/rileyhilliard/vmhop/pkg/sshutil"
)

// CommandResponse defines a canned response for a specific command pattern.
type CommandResponse struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Error    error

	// Delay holds the command open. A context that ends first wins.
	Delay time.Duration
}

// MockClient simulates an SSH connection for testing.
// Commands are answered from registered responses; unknown commands exit 127.
type MockClient struct {
	mu        sync.Mutex
	host      string
	address   string
	closed    bool
	dead      bool
	exact     map[string]CommandResponse
	patterns  []patternResponse
	commands  []string
	keepalive int
}

type patternResponse struct {
	re   *regexp.Regexp
	resp CommandResponse
}

var _ sshutil.SSHClient = (*MockClient)(nil)

// NewMockClient creates a mock client for host.
func NewMockClient(host string) *MockClient {
	return &MockClient{
		host:    host,
		address: host + ":22",
		exact:   make(map[string]CommandResponse),
	}
}

// SetCommandResponse registers a response for an exact command.
func (m *MockClient) SetCommandResponse(cmd string, resp CommandResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exact[cmd] = resp
}

// SetPatternResponse registers a response for commands matching a regex.
// Patterns are tried in registration order after exact matches.
func (m *MockClient) SetPatternResponse(pattern string, resp CommandResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns = append(m.patterns, patternResponse{re: regexp.MustCompile(pattern), resp: resp})
}

// ExecContext answers cmd from the registered responses.
func (m *MockClient) ExecContext(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, nil, -1, errors.New("connection closed")
	}
	m.commands = append(m.commands, cmd)
	resp, ok := m.exact[cmd]
	if !ok {
		resp = CommandResponse{Stderr: []byte("command not found"), ExitCode: 127}
		for _, p := range m.patterns {
			if p.re.MatchString(cmd) {
				resp = p.resp
				break
			}
		}
	}
	m.mu.Unlock()

	if resp.Delay > 0 {
		timer := time.NewTimer(resp.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, nil, -1, context.Cause(ctx)
		case <-timer.C:
		}
	}
	if resp.Error != nil {
		return nil, nil, -1, resp.Error
	}
	return resp.Stdout, resp.Stderr, resp.ExitCode, nil
}

// SendRequest simulates a keepalive. It fails once the client is closed or
// marked dead.
func (m *MockClient) SendRequest(name string, wantReply bool, payload []byte) (bool, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keepalive++
	if m.closed || m.dead {
		return false, nil, errors.New("connection closed")
	}
	return true, nil, nil
}

// Kill makes the next keepalive fail without closing the client.
func (m *MockClient) Kill() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dead = true
}

// Close marks the connection as closed.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (m *MockClient) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Commands returns the commands run so far, in order.
func (m *MockClient) Commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.commands))
	copy(out, m.commands)
	return out
}

// KeepaliveCount returns how many keepalive probes were sent.
func (m *MockClient) KeepaliveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keepalive
}

// GetHost returns the host name.
func (m *MockClient) GetHost() string {
	return m.host
}

// GetAddress returns the host:port address.
func (m *MockClient) GetAddress() string {
	return m.address
}
