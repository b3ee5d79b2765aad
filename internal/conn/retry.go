package conn

import (
	"context"
	"math"
	"strings"
	"time"
)

// Classifier decides whether a failure message is worth retrying.
type Classifier interface {
	IsTransient(message string) bool
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(message string) bool

// IsTransient calls f.
func (f ClassifierFunc) IsTransient(message string) bool {
	return f(message)
}

// TransientSubstrings is the closed list of fragments that mark a failure
// as transient. Anything else is permanent.
var TransientSubstrings = []string{
	"timed out",
	"connection refused",
	"temporarily unavailable",
	"network error",
	"too many connections",
}

// DefaultClassifier matches TransientSubstrings case-insensitively.
var DefaultClassifier Classifier = ClassifierFunc(func(message string) bool {
	lower := strings.ToLower(message)
	for _, s := range TransientSubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
})

// RetryPolicy classifies failures and computes backoff delays.
type RetryPolicy struct {
	// Classifier defaults to DefaultClassifier.
	Classifier Classifier

	// MaxDelay caps NextDelay when positive. Zero means no cap.
	MaxDelay time.Duration
}

// IsTransient reports whether message should be retried.
func (p RetryPolicy) IsTransient(message string) bool {
	if p.Classifier == nil {
		return DefaultClassifier.IsTransient(message)
	}
	return p.Classifier.IsTransient(message)
}

// NextDelay returns initial * 2^attempt, without jitter. Results that would
// overflow saturate at the largest Duration before MaxDelay is applied.
func (p RetryPolicy) NextDelay(attempt int, initial time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := initial
	if initial > 0 {
		if attempt >= 63 || initial > time.Duration(math.MaxInt64>>uint(attempt)) {
			d = time.Duration(math.MaxInt64)
		} else {
			d = initial << uint(attempt)
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Defaults for TestConnectionWithRetry.
const (
	DefaultMaxRetries     = 3
	DefaultInitialDelay   = 500 * time.Millisecond
	DefaultAttemptTimeout = 15 * time.Second
)

// Attempt reports one try of TestConnectionWithRetry.
type Attempt struct {
	// Number counts from 1.
	Number int
	Result Result

	// NextDelay is how long the loop will wait before the next attempt.
	// Zero when this attempt is the last one.
	NextDelay time.Duration
}

// RetryOptions tunes TestConnectionWithRetry. MaxRetries is used as given
// (zero means a single attempt); zero InitialDelay and AttemptTimeout fall
// back to their defaults.
type RetryOptions struct {
	MaxRetries     int
	InitialDelay   time.Duration
	AttemptTimeout time.Duration

	// OnAttempt, when set, is called after every attempt.
	OnAttempt func(Attempt)
}

// DefaultRetryOptions returns three retries from 500ms with 15s attempts.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxRetries:     DefaultMaxRetries,
		InitialDelay:   DefaultInitialDelay,
		AttemptTimeout: DefaultAttemptTimeout,
	}
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = DefaultInitialDelay
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = DefaultAttemptTimeout
	}
	return o
}

// SleepFunc waits for d or until ctx ends, returning ctx's error in that case.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
