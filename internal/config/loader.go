package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/vmhop/internal/errors"
	"github.com/spf13/viper"
)

const (
	// GlobalConfigDir is the directory for config and local data,
	// relative to the home directory.
	GlobalConfigDir = ".config/vmhop"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix prefixes environment overrides, e.g. VMHOP_SSH_PORT.
	EnvPrefix = "VMHOP"
)

// Dir returns the vmhop config directory.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return GlobalConfigDir
	}
	return filepath.Join(home, GlobalConfigDir)
}

// Load reads config from the specified path.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found",
				"Check the path passed to --config, or drop the flag to use "+filepath.Join("~", GlobalConfigDir, GlobalConfigFile))
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is valid YAML")
	}

	return parseConfig(v, path)
}

// Find locates the config file:
// 1. Explicit path (from --config flag)
// 2. ~/.config/vmhop/config.yaml
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	global := filepath.Join(Dir(), GlobalConfigFile)
	if _, err := os.Stat(global); err == nil {
		return global, nil
	}
	return "", nil
}

// LoadOrDefault loads the config Find locates, or the defaults (with
// environment overrides applied) when there is no file.
func LoadOrDefault(explicit string) (*Config, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return parseConfig(newViper(), "")
	}
	return Load(path)
}

// newViper returns a viper instance with defaults and VMHOP_* env
// overrides registered.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// setDefaults mirrors DefaultConfig so every key is known to viper, which
// AutomaticEnv needs before Unmarshal will see an override.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("version", d.Version)
	v.SetDefault("profiles.backend", d.Profiles.Backend)
	v.SetDefault("profiles.path", "")
	v.SetDefault("secrets.backend", d.Secrets.Backend)
	v.SetDefault("secrets.service", d.Secrets.Service)
	v.SetDefault("secrets.file", "")
	v.SetDefault("secrets.key_file", "")
	v.SetDefault("connection.test_timeout", d.Connection.TestTimeout.String())
	v.SetDefault("connection.retry_attempt_timeout", d.Connection.RetryAttemptTimeout.String())
	v.SetDefault("connection.max_retries", d.Connection.MaxRetries)
	v.SetDefault("connection.initial_retry_delay", d.Connection.InitialRetryDelay.String())
	v.SetDefault("connection.max_retry_delay", "0s")
	v.SetDefault("connection.disconnect_timeout", d.Connection.DisconnectTimeout.String())
	v.SetDefault("connection.refresh_schedule", d.Connection.RefreshSchedule)
	v.SetDefault("ssh.port", d.SSH.Port)
	v.SetDefault("ssh.strict_host_key_checking", d.SSH.StrictHostKeyChecking)
	v.SetDefault("ssh.known_hosts", "")
	v.SetDefault("ssh.config_file", "")
	v.SetDefault("output.color", d.Output.Color)
}

// parseConfig converts viper config to our Config struct with defaults merged in.
func parseConfig(v *viper.Viper, path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		where := "your config"
		if path != "" {
			where = path
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+where)
	}

	cfg.ResolvePaths(Dir())
	return cfg, nil
}

// ResolvePaths fills empty file locations with their defaults under dir
// and expands ~ in the rest.
func (c *Config) ResolvePaths(dir string) {
	if c.Profiles.Path == "" {
		name := "profiles.yaml"
		if c.Profiles.Backend == ProfilesSQLite {
			name = "profiles.db"
		}
		c.Profiles.Path = filepath.Join(dir, name)
	}
	if c.Secrets.File == "" {
		c.Secrets.File = filepath.Join(dir, "secrets.yaml")
	}
	if c.Secrets.KeyFile == "" {
		c.Secrets.KeyFile = filepath.Join(dir, "secrets.key")
	}

	c.Profiles.Path = ExpandTilde(c.Profiles.Path)
	c.Secrets.File = ExpandTilde(c.Secrets.File)
	c.Secrets.KeyFile = ExpandTilde(c.Secrets.KeyFile)
	c.SSH.KnownHosts = ExpandTilde(c.SSH.KnownHosts)
	c.SSH.ConfigFile = ExpandTilde(c.SSH.ConfigFile)
}
