package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/rileyhilliard/vmhop/internal/config"
	conntesting "github.com/rileyhilliard/vmhop/internal/conn/testing"
	"github.com/rileyhilliard/vmhop/internal/doctor"
	vmerrors "github.com/rileyhilliard/vmhop/internal/errors"
	"github.com/rileyhilliard/vmhop/internal/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkNames(checks []doctor.Check) []string {
	names := make([]string, len(checks))
	for i, c := range checks {
		names[i] = c.Name()
	}
	return names
}

func TestDoctorChecks(t *testing.T) {
	ta := newTestApp(t)
	ta.addProfile(t, "lab", "10.0.0.5", "admin", "pw")

	checks, err := doctorChecks(ta.App, DoctorOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"profile_store", "secrets", "secrets_file_permissions", "known_hosts", "ssh_config", "server:lab",
	}, checkNames(checks))

	ta.Config.Secrets.Backend = config.SecretsKeyring
	checks, err = doctorChecks(ta.App, DoctorOptions{SkipServers: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"profile_store", "secrets", "known_hosts", "ssh_config"}, checkNames(checks))

	_, err = doctorChecks(ta.App, DoctorOptions{Timeout: "soon"})
	require.Error(t, err)
}

func TestRunDoctor(t *testing.T) {
	ta := newTestApp(t)
	ta.addProfile(t, "lab", "10.0.0.5", "admin", "pw")
	ta.exec.Script(remote.OpTestConnection, conntesting.Connected("8.0"))
	ta.Config.SSH.StrictHostKeyChecking = false
	ta.Config.SSH.ConfigFile = t.TempDir() + "/ssh_config"

	checks, err := doctorChecks(ta.App, DoctorOptions{})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runDoctor(context.Background(), &out, checks, false))

	text := out.String()
	assert.Contains(t, text, "STORAGE")
	assert.Contains(t, text, "SERVERS")
	assert.Contains(t, text, "lab (admin@10.0.0.5) is reachable, version 8.0")
	assert.Contains(t, text, "Host key checking is off")
	assert.Contains(t, text, "1 issue found")
}

func TestRunDoctor_ServerFailureExits(t *testing.T) {
	ta := newTestApp(t)
	ta.addProfile(t, "lab", "10.0.0.5", "admin", "pw")
	ta.exec.Script(remote.OpTestConnection, conntesting.Failed("Authentication failed"))

	checks, err := doctorChecks(ta.App, DoctorOptions{})
	require.NoError(t, err)

	var out bytes.Buffer
	err = runDoctor(context.Background(), &out, checks, false)
	code, ok := vmerrors.GetExitCode(err)
	require.True(t, ok)
	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "lab: Authentication failed")
}
