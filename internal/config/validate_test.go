package config

import (
	"testing"
	"time"

	"github.com/rileyhilliard/vmhop/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		errContains string
	}{
		{"defaults", func(*Config) {}, ""},
		{"future version", func(c *Config) { c.Version = 99 }, "from the future"},
		{"bad profile backend", func(c *Config) { c.Profiles.Backend = "json" }, "profiles.backend 'json'"},
		{"bad secrets backend", func(c *Config) { c.Secrets.Backend = "vault" }, "secrets.backend 'vault'"},
		{"keyring needs a service", func(c *Config) { c.Secrets.Service = " " }, "secrets.service"},
		{"file backend needs no service", func(c *Config) { c.Secrets.Backend = "file"; c.Secrets.Service = "" }, ""},
		{"zero test timeout", func(c *Config) { c.Connection.TestTimeout = 0 }, "connection.test_timeout must be positive"},
		{"negative retries", func(c *Config) { c.Connection.MaxRetries = -1 }, "max_retries"},
		{"zero retries", func(c *Config) { c.Connection.MaxRetries = 0 }, ""},
		{"negative max delay", func(c *Config) { c.Connection.MaxRetryDelay = -time.Second }, "max_retry_delay"},
		{"bad schedule", func(c *Config) { c.Connection.RefreshSchedule = "sometimes" }, "refresh_schedule"},
		{"cron schedule", func(c *Config) { c.Connection.RefreshSchedule = "*/10 * * * *" }, ""},
		{"port out of range", func(c *Config) { c.SSH.Port = 70000 }, "ssh.port"},
		{"empty operation", func(c *Config) { c.Operations = map[string]string{"disconnect": " "} }, "operation 'disconnect' has no command"},
		{"bad color", func(c *Config) { c.Output.Color = "rainbow" }, "output.color"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := Validate(cfg)
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrConfig))
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}
