package secret

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rileyhilliard/vmhop/internal/errors"
	"github.com/rileyhilliard/vmhop/internal/logger"
	"github.com/zalando/go-keyring"
)

// DefaultService is the keychain service name entries are filed under.
const DefaultService = "vmhop"

const keyringOpTimeout = 5 * time.Second

// keyringProvider abstracts go-keyring calls for testing.
type keyringProvider interface {
	Set(service, user, password string) error
	Get(service, user string) (string, error)
	Delete(service, user string) error
}

type osKeyring struct{}

func (osKeyring) Set(service, user, password string) error {
	return keyring.Set(service, user, password)
}
func (osKeyring) Get(service, user string) (string, error) { return keyring.Get(service, user) }
func (osKeyring) Delete(service, user string) error        { return keyring.Delete(service, user) }

// KeyringStore keeps secrets in the OS keychain.
//
// go-keyring calls can't be cancelled, so each one runs with a timeout. A
// timed out call disables the store for the rest of the process; callers
// that wrap it in a Fallback then go straight to the file store.
type KeyringStore struct {
	service   string
	provider  keyringProvider
	log       logger.Logger
	opTimeout time.Duration
	disabled  atomic.Bool
}

// NewKeyringStore creates a keychain-backed store under the given service name.
func NewKeyringStore(service string, log logger.Logger) *KeyringStore {
	return newKeyringStoreWithProvider(service, osKeyring{}, log)
}

func newKeyringStoreWithProvider(service string, p keyringProvider, log logger.Logger) *KeyringStore {
	if service == "" {
		service = DefaultService
	}
	if log == nil {
		log = logger.Noop()
	}
	return &KeyringStore{service: service, provider: p, log: log, opTimeout: keyringOpTimeout}
}

// Get returns the stored secret, or "" when the keychain has no entry.
func (s *KeyringStore) Get(ctx context.Context, name string) (string, error) {
	var raw string
	err := s.withTimeout(ctx, "get", func() error {
		var getErr error
		raw, getErr = s.provider.Get(s.service, Key(name))
		return getErr
	})
	if err != nil {
		if stderrors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return "", errors.WrapWithCode(err, errors.ErrSecret,
			fmt.Sprintf("Failed to read the saved password for '%s'", name),
			"Check that the OS keychain is unlocked, or set secrets.backend to 'file'.")
	}
	return decodeEntry(raw).Secret, nil
}

// Save writes the secret to the keychain, replacing any previous value.
func (s *KeyringStore) Save(ctx context.Context, name, username, secret string) error {
	data, err := json.Marshal(entry{Username: username, Secret: secret})
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrSecret, "Failed to encode secret", "")
	}
	if err := s.withTimeout(ctx, "set", func() error {
		return s.provider.Set(s.service, Key(name), string(data))
	}); err != nil {
		return errors.WrapWithCode(err, errors.ErrSecret,
			fmt.Sprintf("Failed to save the password for '%s'", name),
			"Check that the OS keychain is unlocked, or set secrets.backend to 'file'.")
	}
	s.log.Debug("saved secret for %s in keychain", name)
	return nil
}

// Delete removes the keychain entry. A missing entry is not an error.
func (s *KeyringStore) Delete(ctx context.Context, name string) error {
	err := s.withTimeout(ctx, "delete", func() error {
		return s.provider.Delete(s.service, Key(name))
	})
	if err != nil && !stderrors.Is(err, keyring.ErrNotFound) {
		return errors.WrapWithCode(err, errors.ErrSecret,
			fmt.Sprintf("Failed to delete the password for '%s'", name), "")
	}
	return nil
}

// withTimeout runs fn on its own goroutine. If ctx ends or the timeout
// fires first, the goroutine is left to finish on its own.
func (s *KeyringStore) withTimeout(ctx context.Context, op string, fn func() error) error {
	if s.disabled.Load() {
		return fmt.Errorf("keychain %s: disabled after an earlier timeout", op)
	}

	ch := make(chan error, 1)
	go func() { ch <- fn() }()

	timer := time.NewTimer(s.opTimeout)
	defer timer.Stop()

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		s.disabled.Store(true)
		s.log.Warn("keychain %s timed out after %v, disabling keychain for this session", op, s.opTimeout)
		return fmt.Errorf("keychain %s timed out after %v", op, s.opTimeout)
	}
}

// decodeEntry accepts both the JSON envelope and a bare password written by
// other tools.
func decodeEntry(raw string) entry {
	var e entry
	if err := json.Unmarshal([]byte(raw), &e); err == nil && e.Secret != "" {
		return e
	}
	return entry{Secret: raw}
}
