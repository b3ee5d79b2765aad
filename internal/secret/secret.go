// Package secret stores profile passwords outside the profile store.
//
// Secrets are keyed by profile name. Names are folded to lower case before
// they become keys, so a case-only rename of a profile keeps its secret.
package secret

import (
	"context"
	"strings"
)

// Store is the durable name -> secret mapping.
type Store interface {
	// Get returns the secret for name, or "" when none is stored.
	Get(ctx context.Context, name string) (string, error)

	// Save stores secret (and the username it belongs to) under name.
	Save(ctx context.Context, name, username, secret string) error

	// Delete removes the secret for name. Deleting a missing secret is not an error.
	Delete(ctx context.Context, name string) error
}

// KeyPrefix namespaces every key vmhop writes into a shared secret store.
const KeyPrefix = "vmhop_"

// Key returns the storage key for a profile name.
func Key(name string) string {
	return KeyPrefix + strings.ToLower(strings.TrimSpace(name))
}

// entry is what backends persist for one profile.
type entry struct {
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Secret   string `json:"secret" yaml:"secret"`
}
