package secret

import (
	"context"

	"github.com/rileyhilliard/vmhop/internal/logger"
)

// Fallback tries a primary store first and falls back to a secondary one
// when the primary fails. It is used to prefer the OS keychain on machines
// that have one while still working on headless hosts.
type Fallback struct {
	primary   Store
	secondary Store
	log       logger.Logger
}

// NewFallback combines two stores.
func NewFallback(primary, secondary Store, log logger.Logger) *Fallback {
	if log == nil {
		log = logger.Noop()
	}
	return &Fallback{primary: primary, secondary: secondary, log: log}
}

// Get returns the primary's secret when it has one, else the secondary's.
func (f *Fallback) Get(ctx context.Context, name string) (string, error) {
	v, err := f.primary.Get(ctx, name)
	if err == nil && v != "" {
		return v, nil
	}
	if err != nil {
		f.log.Warn("primary secret store failed for %s, trying fallback: %v", name, err)
	}
	return f.secondary.Get(ctx, name)
}

// Save writes to the primary, or to the secondary if the primary fails.
// A copy left in the secondary by an earlier fallback is removed once the
// primary accepts the secret.
func (f *Fallback) Save(ctx context.Context, name, username, secret string) error {
	if err := f.primary.Save(ctx, name, username, secret); err != nil {
		f.log.Warn("primary secret store failed for %s, saving to fallback: %v", name, err)
		return f.secondary.Save(ctx, name, username, secret)
	}
	if err := f.secondary.Delete(ctx, name); err != nil {
		f.log.Debug("could not clear fallback copy for %s: %v", name, err)
	}
	return nil
}

// Delete removes the secret from both stores. A primary failure is only
// logged, since on hosts without a keychain it fails every time.
func (f *Fallback) Delete(ctx context.Context, name string) error {
	if err := f.primary.Delete(ctx, name); err != nil {
		f.log.Warn("primary secret store failed to delete %s: %v", name, err)
	}
	return f.secondary.Delete(ctx, name)
}
