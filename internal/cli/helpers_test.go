package cli

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rileyhilliard/vmhop/internal/config"
	conntesting "github.com/rileyhilliard/vmhop/internal/conn/testing"
	"github.com/rileyhilliard/vmhop/internal/logger"
	"github.com/rileyhilliard/vmhop/internal/profile"
	"github.com/rileyhilliard/vmhop/internal/secret"
	"github.com/stretchr/testify/require"
)

type testApp struct {
	*App
	exec    *conntesting.FakeExecutor
	secrets *secret.Memory
	log     *logger.BufferLogger
}

// newTestApp builds an App over a temp YAML store, in-memory secrets and a
// scripted executor. Retry delays are shrunk so tests don't sleep.
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Connection.InitialRetryDelay = time.Millisecond
	cfg.Connection.RefreshSchedule = "@every 1h"

	ta := &testApp{
		exec:    conntesting.NewFakeExecutor(),
		secrets: secret.NewMemory(),
		log:     logger.NewBufferLogger(),
	}
	store := profile.NewYAMLStore(filepath.Join(t.TempDir(), "profiles.yaml"), nil)
	app, err := assembleApp(context.Background(), cfg, store, ta.secrets, ta.exec, ta.log)
	require.NoError(t, err)
	ta.App = app
	t.Cleanup(func() { _ = app.Close() })
	return ta
}

// addProfile saves a profile with a password through the orchestrator.
func (ta *testApp) addProfile(t *testing.T, name, address, user, password string) profile.Profile {
	t.Helper()
	p := profile.Profile{Name: name, ServerAddress: address, Username: user}
	require.NoError(t, ta.Orch.AddProfile(context.Background(), p, password))
	return p
}

// useApp points openAppFunc at ta for the rest of the test.
func useApp(t *testing.T, ta *testApp) {
	t.Helper()
	orig := openAppFunc
	openAppFunc = func(context.Context) (*App, error) { return ta.App, nil }
	t.Cleanup(func() { openAppFunc = orig })
}

// staticPrompter answers every prompt with fixed values.
type staticPrompter struct {
	secret  string
	confirm bool
	err     error

	asked []string
}

func (p *staticPrompter) Secret(title string) (string, error) {
	p.asked = append(p.asked, title)
	return p.secret, p.err
}

func (p *staticPrompter) Confirm(title string) (bool, error) {
	p.asked = append(p.asked, title)
	return p.confirm, p.err
}
