package doctor

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rileyhilliard/vmhop/internal/conn"
	"github.com/rileyhilliard/vmhop/internal/errors"
	"github.com/rileyhilliard/vmhop/internal/secret"
)

// ProfileStoreCheck verifies the profile store can be read.
type ProfileStoreCheck struct {
	Orch     *conn.Orchestrator
	Location string // Shown in the message
}

func (c *ProfileStoreCheck) Name() string     { return "profile_store" }
func (c *ProfileStoreCheck) Category() string { return CategoryStorage }

func (c *ProfileStoreCheck) Run(ctx context.Context) CheckResult {
	if err := c.Orch.LoadProfiles(ctx); err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    "Cannot read profiles: " + errors.Brief(err),
			Suggestion: "Check profiles.backend and profiles.path in your config",
		}
	}

	n := len(c.Orch.ServerProfiles())
	if n == 0 {
		return CheckResult{
			Status:     StatusWarn,
			Message:    "No profiles yet",
			Suggestion: "Add one with: vmhop profile add <name> --address <host>",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%d profile%s in %s", n, pluralize(n), c.Location),
	}
}

func (c *ProfileStoreCheck) Fix(context.Context) error { return nil }

// SecretsCheck verifies every profile has a readable password.
type SecretsCheck struct {
	Orch    *conn.Orchestrator
	Secrets secret.Store
}

func (c *SecretsCheck) Name() string     { return "secrets" }
func (c *SecretsCheck) Category() string { return CategoryStorage }

func (c *SecretsCheck) Run(ctx context.Context) CheckResult {
	profiles := c.Orch.ServerProfiles()
	if len(profiles) == 0 {
		return CheckResult{Status: StatusPass, Message: "No profiles to check"}
	}

	var missing []string
	for _, p := range profiles {
		v, err := c.Secrets.Get(ctx, p.Name)
		if err != nil {
			return CheckResult{
				Status:     StatusFail,
				Message:    "Cannot read secrets: " + errors.Brief(err),
				Suggestion: "Unlock your keychain, or set secrets.backend to 'file'",
			}
		}
		if v == "" {
			missing = append(missing, p.Name)
		}
	}

	if len(missing) > 0 {
		return CheckResult{
			Status:     StatusWarn,
			Message:    "No password for: " + strings.Join(missing, ", "),
			Suggestion: "Set one with: vmhop profile update <name> --password",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("Passwords stored for all %d profile%s", len(profiles), pluralize(len(profiles))),
	}
}

func (c *SecretsCheck) Fix(context.Context) error { return nil }

// SecretsFilePermissionsCheck verifies the encrypted secrets file and its
// key are private to the user.
type SecretsFilePermissionsCheck struct {
	Paths []string
}

func (c *SecretsFilePermissionsCheck) Name() string     { return "secrets_file_permissions" }
func (c *SecretsFilePermissionsCheck) Category() string { return CategoryStorage }

func (c *SecretsFilePermissionsCheck) Run(context.Context) CheckResult {
	var found bool
	var loose []string
	for _, path := range c.Paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		found = true
		if info.Mode().Perm()&0o077 != 0 {
			loose = append(loose, path)
		}
	}

	if !found {
		return CheckResult{Status: StatusPass, Message: "No secrets file in use"}
	}
	if len(loose) > 0 {
		return CheckResult{
			Status:     StatusWarn,
			Message:    fmt.Sprintf("Insecure permissions on: %s", strings.Join(loose, ", ")),
			Suggestion: "Fix: chmod 600 <file>, or run 'vmhop doctor --fix'",
			Fixable:    true,
		}
	}
	return CheckResult{Status: StatusPass, Message: "Secrets file permissions OK"}
}

func (c *SecretsFilePermissionsCheck) Fix(context.Context) error {
	for _, path := range c.Paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.Mode().Perm()&0o077 != 0 {
			if err := os.Chmod(path, 0o600); err != nil {
				return fmt.Errorf("failed to fix permissions on %s: %w", path, err)
			}
		}
	}
	return nil
}
