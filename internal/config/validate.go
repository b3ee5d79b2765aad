package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rileyhilliard/vmhop/internal/errors"
	"github.com/robfig/cron/v3"
)

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but vmhop only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Grab the latest vmhop release.")
	}

	checks := []struct {
		section string
		check   func() error
	}{
		{"profiles", func() error { return validateProfiles(cfg.Profiles) }},
		{"secrets", func() error { return validateSecrets(cfg.Secrets) }},
		{"connection", func() error { return validateConnection(cfg.Connection) }},
		{"ssh", func() error { return validateSSH(cfg.SSH) }},
		{"operations", func() error { return validateOperations(cfg.Operations) }},
		{"output", func() error { return validateOutput(cfg.Output) }},
	}
	for _, c := range checks {
		if err := c.check(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig, err.Error(),
				fmt.Sprintf("Check the '%s' section in your config.yaml.", c.section))
		}
	}
	return nil
}

func validateProfiles(p ProfilesConfig) error {
	switch p.Backend {
	case ProfilesYAML, ProfilesSQLite, "":
		return nil
	}
	return fmt.Errorf("profiles.backend '%s' isn't valid - use 'yaml' or 'sqlite'", p.Backend)
}

func validateSecrets(s SecretsConfig) error {
	switch s.Backend {
	case SecretsKeyring, SecretsFile, SecretsAuto, "":
	default:
		return fmt.Errorf("secrets.backend '%s' isn't valid - use 'keyring', 'file', or 'auto'", s.Backend)
	}
	if s.Backend != SecretsFile && strings.TrimSpace(s.Service) == "" {
		return fmt.Errorf("secrets.service can't be empty when the keychain is used")
	}
	return nil
}

func validateConnection(c ConnectionConfig) error {
	positive := []struct {
		key string
		d   time.Duration
	}{
		{"connection.test_timeout", c.TestTimeout},
		{"connection.retry_attempt_timeout", c.RetryAttemptTimeout},
		{"connection.initial_retry_delay", c.InitialRetryDelay},
		{"connection.disconnect_timeout", c.DisconnectTimeout},
	}
	for _, p := range positive {
		if p.d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", p.key, p.d)
		}
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("connection.max_retries can't be negative, got %d", c.MaxRetries)
	}
	if c.MaxRetryDelay < 0 {
		return fmt.Errorf("connection.max_retry_delay can't be negative, got %s", c.MaxRetryDelay)
	}
	if c.RefreshSchedule != "" {
		if _, err := cron.ParseStandard(c.RefreshSchedule); err != nil {
			return fmt.Errorf("connection.refresh_schedule '%s' isn't a valid schedule: %v", c.RefreshSchedule, err)
		}
	}
	return nil
}

func validateSSH(s SSHConfig) error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("ssh.port %d is out of range (1-65535)", s.Port)
	}
	return nil
}

func validateOperations(ops map[string]string) error {
	names := make([]string, 0, len(ops))
	for name := range ops {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("operation names can't be empty")
		}
		if strings.TrimSpace(ops[name]) == "" {
			return fmt.Errorf("operation '%s' has no command", name)
		}
	}
	return nil
}

func validateOutput(out OutputConfig) error {
	validColors := map[string]bool{"auto": true, "always": true, "never": true, "": true}
	if !validColors[out.Color] {
		return fmt.Errorf("output.color '%s' isn't valid - use 'auto', 'always', or 'never'", out.Color)
	}
	return nil
}
