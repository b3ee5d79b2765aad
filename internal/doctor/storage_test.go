package doctor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rileyhilliard/vmhop/internal/conn"
	conntesting "github.com/rileyhilliard/vmhop/internal/conn/testing"
	"github.com/rileyhilliard/vmhop/internal/profile"
	"github.com/rileyhilliard/vmhop/internal/secret"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	orch    *conn.Orchestrator
	exec    *conntesting.FakeExecutor
	secrets *secret.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{exec: conntesting.NewFakeExecutor(), secrets: secret.NewMemory()}
	orch, err := conn.New(conn.Options{
		Profiles: profile.NewYAMLStore(filepath.Join(t.TempDir(), "profiles.yaml"), nil),
		Secrets:  f.secrets,
		Executor: f.exec,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = orch.Close() })
	f.orch = orch
	return f
}

func (f *fixture) add(t *testing.T, name, password string) profile.Profile {
	t.Helper()
	p := profile.Profile{Name: name, ServerAddress: name + ".lab.local", Username: "admin"}
	require.NoError(t, f.orch.AddProfile(context.Background(), p, password))
	return p
}

func TestProfileStoreCheck(t *testing.T) {
	f := newFixture(t)
	check := &ProfileStoreCheck{Orch: f.orch, Location: "profiles.yaml"}

	r := check.Run(context.Background())
	assert.Equal(t, StatusWarn, r.Status)
	assert.Equal(t, "No profiles yet", r.Message)

	f.add(t, "lab", "pw")
	r = check.Run(context.Background())
	assert.Equal(t, StatusPass, r.Status)
	assert.Equal(t, "1 profile in profiles.yaml", r.Message)
}

func TestProfileStoreCheck_Unreadable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles: [not: valid: yaml"), 0o600))

	orch, err := conn.New(conn.Options{
		Profiles: profile.NewYAMLStore(path, nil),
		Secrets:  secret.NewMemory(),
		Executor: conntesting.NewFakeExecutor(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = orch.Close() })

	r := (&ProfileStoreCheck{Orch: orch}).Run(context.Background())
	assert.Equal(t, StatusFail, r.Status)
	assert.Contains(t, r.Message, "Cannot read profiles")
}

func TestSecretsCheck(t *testing.T) {
	f := newFixture(t)
	check := &SecretsCheck{Orch: f.orch, Secrets: f.secrets}

	assert.Equal(t, StatusPass, check.Run(context.Background()).Status)

	f.add(t, "lab", "pw")
	r := check.Run(context.Background())
	assert.Equal(t, StatusPass, r.Status)
	assert.Equal(t, "Passwords stored for all 1 profile", r.Message)

	f.add(t, "prod", "")
	r = check.Run(context.Background())
	assert.Equal(t, StatusWarn, r.Status)
	assert.Equal(t, "No password for: prod", r.Message)
}

type brokenSecrets struct{ secret.Memory }

func (*brokenSecrets) Get(context.Context, string) (string, error) {
	return "", errors.New("keychain locked")
}

func TestSecretsCheck_StoreError(t *testing.T) {
	f := newFixture(t)
	f.add(t, "lab", "pw")

	r := (&SecretsCheck{Orch: f.orch, Secrets: &brokenSecrets{}}).Run(context.Background())
	assert.Equal(t, StatusFail, r.Status)
	assert.Contains(t, r.Message, "keychain locked")
}

func TestSecretsFilePermissionsCheck(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "secrets.yaml")
	key := filepath.Join(dir, "secrets.key")
	check := &SecretsFilePermissionsCheck{Paths: []string{file, key}}
	ctx := context.Background()

	r := check.Run(ctx)
	assert.Equal(t, StatusPass, r.Status)
	assert.Equal(t, "No secrets file in use", r.Message)

	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(key, []byte("k"), 0o600))
	require.NoError(t, os.Chmod(key, 0o644))

	r = check.Run(ctx)
	assert.Equal(t, StatusWarn, r.Status)
	assert.True(t, r.Fixable)
	assert.Contains(t, r.Message, key)
	assert.NotContains(t, r.Message, file)

	require.NoError(t, check.Fix(ctx))
	info, err := os.Stat(key)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	assert.Equal(t, StatusPass, check.Run(ctx).Status)
}
