package sshutil

import "context"

// SSHClient defines the interface for SSH command execution.
// Both the real Client and the mock in pkg/sshutil/testing satisfy it.
type SSHClient interface {
	// ExecContext runs a command and returns stdout, stderr, and exit code.
	// Exit code is -1 if the command couldn't be executed at all.
	// A non-zero exit code with nil error means the command ran but failed.
	ExecContext(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error)

	// SendRequest sends a global request. Used as a keepalive probe.
	SendRequest(name string, wantReply bool, payload []byte) (bool, []byte, error)

	// Close closes the SSH connection.
	Close() error

	// GetHost returns the original host/alias used to connect.
	GetHost() string

	// GetAddress returns the resolved host:port address.
	GetAddress() string
}

var _ SSHClient = (*Client)(nil)
