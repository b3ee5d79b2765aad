package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Config represents the complete vmhop configuration file.
type Config struct {
	Version    int               `yaml:"version" mapstructure:"version"`
	Profiles   ProfilesConfig    `yaml:"profiles" mapstructure:"profiles"`
	Secrets    SecretsConfig     `yaml:"secrets" mapstructure:"secrets"`
	Connection ConnectionConfig  `yaml:"connection" mapstructure:"connection"`
	SSH        SSHConfig         `yaml:"ssh" mapstructure:"ssh"`
	Operations map[string]string `yaml:"operations" mapstructure:"operations"`
	Output     OutputConfig      `yaml:"output" mapstructure:"output"`
}

// Profile store backends.
const (
	ProfilesYAML   = "yaml"
	ProfilesSQLite = "sqlite"
)

// Secret store backends.
const (
	SecretsKeyring = "keyring"
	SecretsFile    = "file"
	SecretsAuto    = "auto"
)

// ProfilesConfig picks where connection profiles are stored.
type ProfilesConfig struct {
	// Backend is "yaml" (default) or "sqlite".
	Backend string `yaml:"backend" mapstructure:"backend"`

	// Path to the profiles file. Empty means profiles.yaml or profiles.db
	// in the config directory, depending on Backend.
	Path string `yaml:"path" mapstructure:"path"`
}

// SecretsConfig picks where profile passwords are stored.
type SecretsConfig struct {
	// Backend is "keyring", "file", or "auto" (keyring, then file).
	Backend string `yaml:"backend" mapstructure:"backend"`

	// Service is the keychain service name.
	Service string `yaml:"service" mapstructure:"service"`

	// File and KeyFile locate the encrypted secrets file and its key.
	File    string `yaml:"file" mapstructure:"file"`
	KeyFile string `yaml:"key_file" mapstructure:"key_file"`
}

// ConnectionConfig tunes the orchestrator.
type ConnectionConfig struct {
	TestTimeout         time.Duration `yaml:"test_timeout" mapstructure:"test_timeout"`
	RetryAttemptTimeout time.Duration `yaml:"retry_attempt_timeout" mapstructure:"retry_attempt_timeout"`
	MaxRetries          int           `yaml:"max_retries" mapstructure:"max_retries"`
	InitialRetryDelay   time.Duration `yaml:"initial_retry_delay" mapstructure:"initial_retry_delay"`

	// MaxRetryDelay caps backoff. Zero means no cap.
	MaxRetryDelay     time.Duration `yaml:"max_retry_delay" mapstructure:"max_retry_delay"`
	DisconnectTimeout time.Duration `yaml:"disconnect_timeout" mapstructure:"disconnect_timeout"`

	// RefreshSchedule is the cron schedule for 'vmhop connect --watch'.
	RefreshSchedule string `yaml:"refresh_schedule" mapstructure:"refresh_schedule"`
}

// SSHConfig controls how servers are reached.
type SSHConfig struct {
	Port                  int    `yaml:"port" mapstructure:"port"`
	StrictHostKeyChecking bool   `yaml:"strict_host_key_checking" mapstructure:"strict_host_key_checking"`
	KnownHosts            string `yaml:"known_hosts" mapstructure:"known_hosts"`
	ConfigFile            string `yaml:"config_file" mapstructure:"config_file"`
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	// Color mode: auto, always, never.
	Color string `yaml:"color" mapstructure:"color"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Profiles: ProfilesConfig{
			Backend: ProfilesYAML,
		},
		Secrets: SecretsConfig{
			Backend: SecretsAuto,
			Service: "vmhop",
		},
		Connection: ConnectionConfig{
			TestTimeout:         30 * time.Second,
			RetryAttemptTimeout: 15 * time.Second,
			MaxRetries:          3,
			InitialRetryDelay:   500 * time.Millisecond,
			DisconnectTimeout:   10 * time.Second,
			RefreshSchedule:     "@every 1m",
		},
		SSH: SSHConfig{
			Port:                  22,
			StrictHostKeyChecking: true,
		},
		Operations: map[string]string{},
		Output: OutputConfig{
			Color: "auto",
		},
	}
}
