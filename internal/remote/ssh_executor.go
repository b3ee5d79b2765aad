package remote

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/rileyhilliard/vmhop/internal/errors"
	"github.com/rileyhilliard/vmhop/internal/logger"
	"github.com/rileyhilliard/vmhop/pkg/sshutil"
)

// SSHOptions configures how the SSH executor reaches servers.
type SSHOptions struct {
	Port                  int
	StrictHostKeyChecking bool
	KnownHostsPath        string
	SSHConfigPath         string
}

// SSHDialer opens an SSH client. sshutil.DialContext is the production dialer.
type SSHDialer func(ctx context.Context, address string, opts sshutil.DialOptions) (sshutil.SSHClient, error)

// SSHExecutor runs registry commands on the server over SSH. Clients are
// pooled per login so repeated tests don't pay for a new handshake.
type SSHExecutor struct {
	registry *Registry
	pool     *ClientPool
	opts     SSHOptions
	dial     SSHDialer
	log      logger.Logger
}

// NewSSHExecutor creates an executor. A nil registry means the defaults.
func NewSSHExecutor(registry *Registry, opts SSHOptions, log logger.Logger) *SSHExecutor {
	return NewSSHExecutorWithDialer(registry, opts, func(ctx context.Context, address string, o sshutil.DialOptions) (sshutil.SSHClient, error) {
		return sshutil.DialContext(ctx, address, o)
	}, log)
}

// NewSSHExecutorWithDialer is NewSSHExecutor with a custom dialer, for tests.
func NewSSHExecutorWithDialer(registry *Registry, opts SSHOptions, dial SSHDialer, log logger.Logger) *SSHExecutor {
	if registry == nil {
		registry = NewRegistry(nil)
	}
	if log == nil {
		log = logger.Noop()
	}
	return &SSHExecutor{
		registry: registry,
		pool:     NewClientPool(),
		opts:     opts,
		dial:     dial,
		log:      log,
	}
}

// Invoke renders the operation's command, runs it, and returns stdout.
// A non-zero exit is a KindCommand error. After a disconnect operation the
// pooled clients for that address are closed.
func (e *SSHExecutor) Invoke(ctx context.Context, req Request) (string, error) {
	cmd, err := e.registry.Command(req)
	if err != nil {
		return "", err
	}

	key := poolKey(req)
	client, err := e.pool.Get(ctx, key, func(ctx context.Context) (sshutil.SSHClient, error) {
		e.log.Debug("dialing %s as %s", req.Address, req.Credential.Username)
		return e.dial(ctx, req.Address, sshutil.DialOptions{
			User:                  req.Credential.Username,
			Password:              req.Credential.Secret,
			Port:                  e.opts.Port,
			StrictHostKeyChecking: e.opts.StrictHostKeyChecking,
			KnownHostsPath:        e.opts.KnownHostsPath,
			SSHConfigPath:         e.opts.SSHConfigPath,
			Log:                   e.log,
		})
	})
	if err != nil {
		return "", classifyDialError(ctx, err)
	}

	if strings.EqualFold(req.Operation, OpDisconnect) {
		defer e.Release(req.Address)
	}

	e.log.Debug("running %s on %s", req.Operation, req.Address)
	stdout, stderr, code, err := client.ExecContext(ctx, cmd)
	if err != nil {
		if ctxErr := contextError(ctx); ctxErr != nil {
			return "", ctxErr
		}
		e.pool.Drop(key)
		return "", &Error{Kind: KindTransport, Message: errors.Brief(err), Cause: err}
	}
	if code != 0 {
		return string(stdout), &Error{Kind: KindCommand, Message: commandFailure(stdout, stderr, code)}
	}
	return string(stdout), nil
}

// Release closes every pooled client for address, whatever the login.
func (e *SSHExecutor) Release(address string) {
	if n := e.pool.DropMatching(func(key string) bool { return strings.HasSuffix(key, "@"+address) }); n > 0 {
		e.log.Debug("closed %d pooled session(s) to %s", n, address)
	}
}

// Close closes all pooled clients.
func (e *SSHExecutor) Close() error {
	e.pool.CloseAll()
	return nil
}

// PooledSessions returns the number of open pooled clients.
func (e *SSHExecutor) PooledSessions() int {
	return e.pool.Len()
}

// poolKey folds a fingerprint of the secret into the key so a changed
// password always triggers a fresh login.
func poolKey(req Request) string {
	sum := sha256.Sum256([]byte(req.Credential.Secret))
	return fmt.Sprintf("%s#%s@%s", req.Credential.Username, hex.EncodeToString(sum[:4]), req.Address)
}

func contextError(ctx context.Context) *Error {
	switch {
	case ctx.Err() == nil:
		return nil
	case stderrors.Is(ctx.Err(), context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Message: "Operation timed out", Cause: context.Cause(ctx)}
	default:
		return &Error{Kind: KindCancelled, Message: "Operation cancelled", Cause: context.Cause(ctx)}
	}
}

func classifyDialError(ctx context.Context, err error) *Error {
	if ctxErr := contextError(ctx); ctxErr != nil {
		return ctxErr
	}
	msg := errors.Brief(err)
	lower := strings.ToLower(msg)
	kind := KindTransport
	if strings.Contains(lower, "unable to authenticate") || strings.Contains(lower, "no ssh auth methods") {
		kind = KindAuth
	}
	return &Error{Kind: kind, Message: msg, Cause: err}
}

// commandFailure picks the most useful message from a failed command:
// an Error marker on stdout, then stderr, then the exit code.
func commandFailure(stdout, stderr []byte, code int) string {
	if msg := ErrorMarkers(string(stdout)); msg != "" {
		return msg
	}
	if msg := strings.TrimSpace(string(stderr)); msg != "" {
		return msg
	}
	return fmt.Sprintf("Remote command exited with status %d", code)
}
