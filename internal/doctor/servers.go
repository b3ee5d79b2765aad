package doctor

import (
	"context"
	"fmt"
	"time"

	"github.com/rileyhilliard/vmhop/internal/conn"
	"github.com/rileyhilliard/vmhop/internal/profile"
)

// ServerCheck tests one profile's login without connecting.
type ServerCheck struct {
	Orch    *conn.Orchestrator
	Profile profile.Profile
	Timeout time.Duration // Zero means the orchestrator default
}

func (c *ServerCheck) Name() string     { return "server:" + c.Profile.Name }
func (c *ServerCheck) Category() string { return CategoryServers }

func (c *ServerCheck) Run(ctx context.Context) CheckResult {
	r := c.Orch.TestConnection(ctx, c.Profile, c.Timeout)
	if r.Successful {
		msg := fmt.Sprintf("%s is reachable", c.Profile)
		if r.Version != "" {
			msg += ", version " + r.Version
		}
		return CheckResult{Status: StatusPass, Message: msg}
	}

	suggestion := fmt.Sprintf("Retry with backoff: vmhop test %s --retry", c.Profile.Name)
	if r.ErrorMessage == conn.MsgNoCredentials {
		suggestion = fmt.Sprintf("Set a password with: vmhop profile update %s --password", c.Profile.Name)
	}
	return CheckResult{
		Status:     StatusFail,
		Message:    fmt.Sprintf("%s: %s", c.Profile.Name, r.ErrorMessage),
		Suggestion: suggestion,
	}
}

func (c *ServerCheck) Fix(context.Context) error { return nil }

// NewServerChecks creates a ServerCheck per saved profile.
func NewServerChecks(o *conn.Orchestrator, timeout time.Duration) []Check {
	profiles := o.ServerProfiles()
	checks := make([]Check, len(profiles))
	for i, p := range profiles {
		checks[i] = &ServerCheck{Orch: o, Profile: p, Timeout: timeout}
	}
	return checks
}
