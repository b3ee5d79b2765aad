// Package profile defines connection profiles and their durable stores.
//
// A profile names a remote management server and the user to log in as.
// It never carries the password: secrets live in the secret store, keyed
// by the profile name.
package profile

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/rileyhilliard/vmhop/internal/errors"
)

// Profile is a named record of a remote server address and username.
type Profile struct {
	Name          string     `yaml:"name" json:"name"`
	ServerAddress string     `yaml:"server_address" json:"server_address"`
	Username      string     `yaml:"username" json:"username"`
	LastConnected *time.Time `yaml:"last_connected,omitempty" json:"last_connected,omitempty"`
}

// Clone returns a deep copy so callers can't mutate shared timestamps.
func (p Profile) Clone() Profile {
	if p.LastConnected != nil {
		ts := *p.LastConnected
		p.LastConnected = &ts
	}
	return p
}

// WithLastConnected returns a copy stamped with the given time.
func (p Profile) WithLastConnected(at time.Time) Profile {
	at = at.UTC()
	p.LastConnected = &at
	return p
}

// String renders the profile for log lines.
func (p Profile) String() string {
	if p.Username == "" {
		return fmt.Sprintf("%s (%s)", p.Name, p.ServerAddress)
	}
	return fmt.Sprintf("%s (%s@%s)", p.Name, p.Username, p.ServerAddress)
}

// SameName compares profile names the way stores do: trimmed, case-insensitive.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func normalizeName(name string) string {
	return strings.TrimSpace(name)
}

// Validate checks the fields a profile needs before it can be saved and used.
func (p Profile) Validate() error {
	if err := ValidateName(p.Name); err != nil {
		return err
	}
	if strings.TrimSpace(p.ServerAddress) == "" {
		return errors.New(errors.ErrProfile,
			fmt.Sprintf("Profile '%s' has no server address", p.Name),
			"Set the address of the management server, like 'vcenter.lab.local' or '10.0.0.5'.")
	}
	if strings.ContainsAny(p.ServerAddress, " \t\n") {
		return errors.New(errors.ErrProfile,
			fmt.Sprintf("Server address '%s' contains whitespace", p.ServerAddress),
			"Use a bare hostname or IP, optionally with :port.")
	}
	return nil
}

// ValidateName rejects names that can't be used as store or keychain keys.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New(errors.ErrProfile,
			"Profile name cannot be empty",
			"Give the profile a short name, like 'lab' or 'prod-vcenter'.")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return errors.New(errors.ErrProfile,
				fmt.Sprintf("Profile name %q contains control characters", name),
				"Use letters, digits, spaces, dashes or underscores.")
		}
	}
	return nil
}

// Store is the durable name -> Profile mapping.
// Names are matched case-insensitively.
type Store interface {
	// List returns every stored profile.
	List(ctx context.Context) ([]Profile, error)

	// Get looks a profile up by name. The bool is false when it doesn't exist.
	Get(ctx context.Context, name string) (Profile, bool, error)

	// Save inserts or replaces the profile with the same name.
	// Empty names are rejected.
	Save(ctx context.Context, p Profile) error

	// Delete removes a profile. Deleting a missing profile is not an error.
	Delete(ctx context.Context, name string) error
}
