package doctor

import (
	"context"
	"fmt"

	"github.com/rileyhilliard/vmhop/internal/config"
	"github.com/rileyhilliard/vmhop/internal/errors"
)

// ConfigCheck verifies that the config file, if any, loads and validates.
type ConfigCheck struct {
	ConfigPath string // Explicit path, or empty to search
}

func (c *ConfigCheck) Name() string     { return "config" }
func (c *ConfigCheck) Category() string { return CategoryConfig }

func (c *ConfigCheck) Run(_ context.Context) CheckResult {
	path, err := config.Find(c.ConfigPath)
	if err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    errors.Brief(err),
			Suggestion: "Check the --config path and its permissions",
		}
	}

	cfg, err := config.LoadOrDefault(c.ConfigPath)
	if err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    errors.Brief(err),
			Suggestion: "Check the YAML syntax in your config file",
		}
	}
	if err := config.Validate(cfg); err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    errors.Brief(err),
			Suggestion: "Fix the reported setting in " + describePath(path),
		}
	}

	if path == "" {
		return CheckResult{Status: StatusPass, Message: "No config file, using defaults"}
	}
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("Config file: %s", path)}
}

func (c *ConfigCheck) Fix(context.Context) error { return nil }

func describePath(path string) string {
	if path == "" {
		return "your VMHOP_* environment"
	}
	return path
}
