package doctor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnownHostsCheck(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "known_hosts")
	ctx := context.Background()

	r := (&KnownHostsCheck{Path: path, Strict: false}).Run(ctx)
	assert.Equal(t, StatusWarn, r.Status)
	assert.Equal(t, "Host key checking is off", r.Message)

	r = (&KnownHostsCheck{Path: path, Strict: true}).Run(ctx)
	assert.Equal(t, StatusWarn, r.Status)
	assert.Contains(t, r.Suggestion, "ssh-keyscan")

	require.NoError(t, os.WriteFile(path, []byte("lab.local ssh-ed25519 AAAA\n"), 0o600))
	r = (&KnownHostsCheck{Path: path, Strict: true}).Run(ctx)
	assert.Equal(t, StatusPass, r.Status)
}

func TestSSHConfigCheck(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")
	ctx := context.Background()

	r := (&SSHConfigCheck{Path: path}).Run(ctx)
	assert.Equal(t, StatusPass, r.Status, "a missing file is fine")
	assert.Equal(t, "SSH config has 0 host aliases", r.Message)

	require.NoError(t, os.WriteFile(path, []byte("Host vcenter\n    HostName 10.0.0.5\n\nHost *\n    User admin\n"), 0o600))
	r = (&SSHConfigCheck{Path: path}).Run(ctx)
	assert.Equal(t, StatusPass, r.Status)
	assert.Equal(t, "SSH config has 1 host alias", r.Message)
}
