package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rileyhilliard/vmhop/internal/errors"
	"github.com/rileyhilliard/vmhop/pkg/sshutil"
)

// KnownHostsCheck verifies host key checking is on and has a known_hosts
// file to check against.
type KnownHostsCheck struct {
	Path   string // Empty means ~/.ssh/known_hosts
	Strict bool
}

func (c *KnownHostsCheck) Name() string     { return "known_hosts" }
func (c *KnownHostsCheck) Category() string { return CategorySSH }

func (c *KnownHostsCheck) Run(context.Context) CheckResult {
	if !c.Strict {
		return CheckResult{
			Status:     StatusWarn,
			Message:    "Host key checking is off",
			Suggestion: "Set ssh.strict_host_key_checking: true once your servers are in known_hosts",
		}
	}

	path := c.Path
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return CheckResult{
				Status:     StatusFail,
				Message:    "Cannot determine home directory",
				Suggestion: "Check HOME environment variable, or set ssh.known_hosts",
			}
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}

	if _, err := os.Stat(path); err != nil {
		return CheckResult{
			Status:     StatusWarn,
			Message:    fmt.Sprintf("No known_hosts file at %s", path),
			Suggestion: "Add your servers with: ssh-keyscan <address> >> " + path,
		}
	}
	return CheckResult{Status: StatusPass, Message: "Host keys checked against " + path}
}

func (c *KnownHostsCheck) Fix(context.Context) error { return nil }

// SSHConfigCheck verifies the SSH config file parses.
type SSHConfigCheck struct {
	Path string // Empty means ~/.ssh/config
}

func (c *SSHConfigCheck) Name() string     { return "ssh_config" }
func (c *SSHConfigCheck) Category() string { return CategorySSH }

func (c *SSHConfigCheck) Run(context.Context) CheckResult {
	hosts, err := sshutil.ConfigHosts(c.Path)
	if err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    "Cannot parse SSH config: " + errors.Brief(err),
			Suggestion: "Check the syntax of your SSH config, or point ssh.config_file elsewhere",
		}
	}
	noun := "aliases"
	if len(hosts) == 1 {
		noun = "alias"
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("SSH config has %d host %s", len(hosts), noun),
	}
}

func (c *SSHConfigCheck) Fix(context.Context) error { return nil }
