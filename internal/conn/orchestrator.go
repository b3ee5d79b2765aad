package conn

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rileyhilliard/vmhop/internal/errors"
	"github.com/rileyhilliard/vmhop/internal/logger"
	"github.com/rileyhilliard/vmhop/internal/profile"
	"github.com/rileyhilliard/vmhop/internal/remote"
	"github.com/rileyhilliard/vmhop/internal/secret"
	"golang.org/x/sync/semaphore"
)

// Defaults for Options.
const (
	DefaultTestTimeout       = 30 * time.Second
	DefaultDisconnectTimeout = 10 * time.Second

	// persistTimeout bounds the best-effort LastConnected write.
	persistTimeout = 5 * time.Second
)

// errTimedOut is the cause attached to a test's own deadline, so it can be
// told apart from the caller's context ending.
var errTimedOut = stderrors.New("connection test deadline exceeded")

// Options configures an Orchestrator. Profiles, Secrets and Executor are
// required; everything else has a default.
type Options struct {
	Profiles profile.Store
	Secrets  secret.Store
	Executor remote.Executor

	// Retry classifies failures and computes backoff for
	// TestConnectionWithRetry.
	Retry RetryPolicy

	TestTimeout       time.Duration
	DisconnectTimeout time.Duration

	Logger logger.Logger

	// Now and Sleep are injectable clocks for tests.
	Now   func() time.Time
	Sleep SleepFunc
}

// Status is a consistent view of the active connection.
type Status struct {
	// Profile is nil when disconnected.
	Profile     *profile.Profile
	IsConnected bool
	Version     string
}

// Orchestrator owns the active connection. All connection-affecting work
// goes through a single gate; reads go through atomic snapshots and never
// wait on it.
type Orchestrator struct {
	profiles profile.Store
	secrets  secret.Store
	executor remote.Executor
	policy   RetryPolicy
	log      logger.Logger
	now      func() time.Time
	sleep    SleepFunc

	testTimeout       time.Duration
	disconnectTimeout time.Duration

	gate *semaphore.Weighted

	// Guarded by gate.
	cache   *Cache
	current *profile.Profile

	status atomic.Pointer[Status]
	mirror atomic.Pointer[[]profile.Profile]

	events *broadcaster
}

// New creates an orchestrator. It performs no I/O; call LoadProfiles to
// fill the profile mirror.
func New(opts Options) (*Orchestrator, error) {
	switch {
	case opts.Profiles == nil:
		return nil, errors.New(errors.ErrConnect, "No profile store configured", "")
	case opts.Secrets == nil:
		return nil, errors.New(errors.ErrConnect, "No secret store configured", "")
	case opts.Executor == nil:
		return nil, errors.New(errors.ErrConnect, "No remote executor configured", "")
	}

	if opts.TestTimeout <= 0 {
		opts.TestTimeout = DefaultTestTimeout
	}
	if opts.DisconnectTimeout <= 0 {
		opts.DisconnectTimeout = DefaultDisconnectTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.Noop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}

	o := &Orchestrator{
		profiles:          opts.Profiles,
		secrets:           opts.Secrets,
		executor:          opts.Executor,
		policy:            opts.Retry,
		log:               opts.Logger,
		now:               opts.Now,
		sleep:             opts.Sleep,
		testTimeout:       opts.TestTimeout,
		disconnectTimeout: opts.DisconnectTimeout,
		gate:              semaphore.NewWeighted(1),
		cache:             NewCache(),
		events:            newBroadcaster(opts.Logger),
	}
	o.status.Store(&Status{})
	empty := []profile.Profile{}
	o.mirror.Store(&empty)
	return o, nil
}

// TestConnection checks that the profile's server accepts its saved
// credential. A zero timeout means the configured default. Failures come
// back in the Result; nothing is returned as an error.
func (o *Orchestrator) TestConnection(ctx context.Context, p profile.Profile, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = o.testTimeout
	}

	secretValue, ok := o.lookupSecret(ctx, p)
	if !ok {
		return Failure(MsgNoCredentials)
	}

	tctx, cancel := context.WithTimeoutCause(ctx, timeout, errTimedOut)
	defer cancel()

	if err := o.gate.Acquire(tctx, 1); err != nil {
		// The test never ran, so the cache keeps whatever it had.
		return Failure(interruptedMessage(ctx, tctx, timeout, err))
	}
	defer o.gate.Release(1)

	return o.testLocked(ctx, tctx, p, secretValue, timeout)
}

// Connect tests the profile and, on success, makes it the active
// connection. It publishes exactly one StatusEvent either way. A failure
// leaves the previous connection in place.
func (o *Orchestrator) Connect(ctx context.Context, p profile.Profile) Result {
	timeout := o.testTimeout

	secretValue, ok := o.lookupSecret(ctx, p)
	if !ok {
		result := Failure(MsgNoCredentials)
		o.publish(false, p, result)
		return result
	}

	tctx, cancel := context.WithTimeoutCause(ctx, timeout, errTimedOut)
	defer cancel()

	if err := o.gate.Acquire(tctx, 1); err != nil {
		result := Failure(interruptedMessage(ctx, tctx, timeout, err))
		o.publish(false, p, result)
		return result
	}
	defer o.gate.Release(1)

	result := o.testLocked(ctx, tctx, p, secretValue, timeout)
	if result.Successful {
		connected := p.WithLastConnected(o.now())
		o.current = &connected
		o.refreshStatus()
		o.log.Info("connected to %s", p)
		o.publish(true, connected, result)
		return result
	}

	o.log.Warn("connect to %s failed: %s", p, result.ErrorMessage)
	o.publish(false, p, result)
	return result
}

// Disconnect tears down the active connection. It returns false, without
// publishing anything, when there is nothing to disconnect.
func (o *Orchestrator) Disconnect(ctx context.Context) bool {
	if o.status.Load().Profile == nil {
		o.log.Warn("disconnect requested but no server is connected")
		return false
	}

	if err := o.gate.Acquire(ctx, 1); err != nil {
		o.log.Warn("disconnect abandoned: %v", err)
		return false
	}
	defer o.gate.Release(1)

	// Someone else may have disconnected while we waited.
	if o.current == nil {
		o.log.Warn("disconnect requested but no server is connected")
		return false
	}
	prev := *o.current

	o.disconnectRemote(ctx, prev)

	o.cache.Remove(prev.ServerAddress)
	o.current = nil
	o.refreshStatus()
	o.log.Info("disconnected from %s", prev)
	o.publish(false, prev, Result{})
	return true
}

// disconnectRemote asks the server to end the session. Failures are only
// logged.
func (o *Orchestrator) disconnectRemote(ctx context.Context, p profile.Profile) {
	secretValue, ok := o.lookupSecret(ctx, p)
	if !ok {
		o.log.Debug("skipping remote disconnect for %s: no saved credentials", p.Name)
		return
	}

	dctx, cancel := context.WithTimeout(ctx, o.disconnectTimeout)
	defer cancel()

	if _, err := o.invoke(dctx, o.request(remote.OpDisconnect, p, secretValue)); err != nil {
		o.log.Warn("remote disconnect from %s failed: %v", p.ServerAddress, err)
	}
}

// ValidateCurrentConnection re-tests the active connection. It never clears
// the connection; a failed test only drops the cache entry, which makes
// IsConnected false.
func (o *Orchestrator) ValidateCurrentConnection(ctx context.Context) bool {
	p := o.status.Load().Profile
	if p == nil {
		return false
	}
	return o.TestConnection(ctx, *p, 0).Successful
}

// TestConnectionWithRetry runs TestConnection until it succeeds, the
// failure is not transient, or MaxRetries retries are used up. The last
// attempt's result is returned, also when ctx ends during a backoff sleep.
func (o *Orchestrator) TestConnectionWithRetry(ctx context.Context, p profile.Profile, opts RetryOptions) Result {
	opts = opts.withDefaults()

	for attempt := 0; ; attempt++ {
		result := o.TestConnection(ctx, p, opts.AttemptTimeout)

		last := result.Successful ||
			attempt >= opts.MaxRetries ||
			!o.policy.IsTransient(result.ErrorMessage)

		var delay time.Duration
		if !last {
			delay = o.policy.NextDelay(attempt, opts.InitialDelay)
		}
		if opts.OnAttempt != nil {
			opts.OnAttempt(Attempt{Number: attempt + 1, Result: result, NextDelay: delay})
		}
		if last {
			return result
		}

		o.log.Debug("attempt %d for %s failed (%s), retrying in %s", attempt+1, p.Name, result.ErrorMessage, delay)
		if err := o.sleep(ctx, delay); err != nil {
			return result
		}
	}
}

// Current returns the active profile, if any.
func (o *Orchestrator) Current() (profile.Profile, bool) {
	s := o.status.Load()
	if s.Profile == nil {
		return profile.Profile{}, false
	}
	return s.Profile.Clone(), true
}

// IsConnected reports whether there is an active profile whose address
// has a cached successful test.
func (o *Orchestrator) IsConnected() bool {
	return o.status.Load().IsConnected
}

// Status returns a consistent snapshot of the active connection.
func (o *Orchestrator) Status() Status {
	s := *o.status.Load()
	if s.Profile != nil {
		p := s.Profile.Clone()
		s.Profile = &p
	}
	return s
}

// Subscribe registers h for status events and returns a func that removes
// it. Handlers run on their own goroutine and may call back into the
// orchestrator.
func (o *Orchestrator) Subscribe(h StatusHandler) func() {
	return o.events.subscribe(h)
}

// Close flushes pending events and closes the executor's sessions.
func (o *Orchestrator) Close() error {
	o.events.close()
	if c, ok := o.executor.(remote.Closer); ok {
		return c.Close()
	}
	return nil
}

// testLocked runs one test. The caller holds the gate.
func (o *Orchestrator) testLocked(ctx, tctx context.Context, p profile.Profile, secretValue string, timeout time.Duration) Result {
	o.log.Debug("testing %s", p)
	out, err := o.invoke(tctx, o.request(remote.OpTestConnection, p, secretValue))

	var result Result
	switch {
	case err != nil && tctx.Err() != nil:
		result = Failure(interruptedMessage(ctx, tctx, timeout, err))
	case err != nil:
		result = Failure(errorText(err))
	default:
		parsed := remote.ParseConnectOutput(out)
		if parsed.Connected && parsed.Error == "" {
			result = Success(parsed.Version)
		} else {
			result = Failure(parsed.Error)
		}
	}

	o.cache.Put(p.ServerAddress, result)
	if result.Successful {
		o.stampLastConnected(ctx, p)
	}
	o.refreshStatus()
	return result
}

// invoke calls the executor, turning a panic into an error.
func (o *Orchestrator) invoke(ctx context.Context, req remote.Request) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("executor panicked during %s: %v", req.Operation, r)
			err = fmt.Errorf("%v", r)
		}
	}()
	return o.executor.Invoke(ctx, req)
}

func (o *Orchestrator) request(op string, p profile.Profile, secretValue string) remote.Request {
	return remote.Request{
		Operation: op,
		Address:   p.ServerAddress,
		Credential: remote.Credential{
			Username: p.Username,
			Secret:   secretValue,
		},
	}
}

// lookupSecret returns the saved secret for p. A store error counts as no
// credentials.
func (o *Orchestrator) lookupSecret(ctx context.Context, p profile.Profile) (string, bool) {
	v, err := o.secrets.Get(ctx, p.Name)
	if err != nil {
		o.log.Warn("could not read credentials for %s: %v", p.Name, err)
		return "", false
	}
	return v, v != ""
}

// refreshStatus republishes the status snapshot. The caller holds the gate.
func (o *Orchestrator) refreshStatus() {
	s := &Status{}
	if o.current != nil {
		p := o.current.Clone()
		s.Profile = &p
		if r, ok := o.cache.Get(p.ServerAddress); ok {
			s.IsConnected = true
			s.Version = r.Version
		}
	}
	o.status.Store(s)
}

func (o *Orchestrator) publish(connected bool, p profile.Profile, r Result) {
	o.events.publish(StatusEvent{
		IsConnected:  connected,
		Profile:      p.Clone(),
		Version:      r.Version,
		ErrorMessage: r.ErrorMessage,
		At:           o.now(),
	})
}

// interruptedMessage names why a test context ended: its own deadline, the
// caller, or neither (then the error speaks for itself).
func interruptedMessage(ctx, tctx context.Context, timeout time.Duration, err error) string {
	switch {
	case stderrors.Is(context.Cause(tctx), errTimedOut):
		return TimedOutMessage(timeout)
	case ctx.Err() != nil:
		return MsgCancelled
	default:
		return errorText(err)
	}
}

// errorText is the one-line message for an executor or gate error.
func errorText(err error) string {
	var rErr *remote.Error
	if stderrors.As(err, &rErr) {
		return rErr.Message
	}
	return errors.Brief(err)
}
