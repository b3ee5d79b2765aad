package conn

import (
	"context"
	"testing"

	conntesting "github.com/rileyhilliard/vmhop/internal/conn/testing"
	"github.com/rileyhilliard/vmhop/internal/errors"
	"github.com/rileyhilliard/vmhop/internal/profile"
	"github.com/rileyhilliard/vmhop/internal/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.orch.AddProfile(ctx, labProfile(), "pw"))
	assert.Equal(t, "admin", h.secrets.Username("Lab"))
	require.Len(t, h.orch.ServerProfiles(), 1)

	err := h.orch.AddProfile(ctx, profile.Profile{Name: "LAB", ServerAddress: "10.0.0.6"}, "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrProfile))
	assert.Contains(t, err.Error(), "already exists")

	err = h.orch.AddProfile(ctx, profile.Profile{Name: "Empty"}, "")
	assert.True(t, errors.IsCode(err, errors.ErrProfile))

	require.NoError(t, h.orch.AddProfile(ctx, profile.Profile{Name: "NoSecret", ServerAddress: "10.0.0.7"}, ""))
	v, err := h.secrets.Get(ctx, "NoSecret")
	require.NoError(t, err)
	assert.Empty(t, v)
	assert.Len(t, h.orch.ServerProfiles(), 2)
}

func TestRemoveProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addLab(t)

	require.NoError(t, h.orch.RemoveProfile(ctx, "lab"))
	assert.Empty(t, h.orch.ServerProfiles())
	v, err := h.secrets.Get(ctx, "Lab")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, h.orch.RemoveProfile(ctx, "lab"), "removing twice is fine")
}

func TestRemoveProfile_SecretFailureIsOnlyLogged(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addLab(t)
	h.orch.secrets = failingSecrets{}

	require.NoError(t, h.orch.RemoveProfile(ctx, "Lab"))
	assert.True(t, h.log.Contains("warn", "could not delete credentials"))
}

func TestLoadProfiles(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.profiles.Save(ctx, labProfile()))
	assert.Empty(t, h.orch.ServerProfiles(), "New does no I/O")

	require.NoError(t, h.orch.LoadProfiles(ctx))
	profiles := h.orch.ServerProfiles()
	require.Len(t, profiles, 1)
	assert.Equal(t, "10.0.0.5", profiles[0].ServerAddress)

	profiles[0].Name = "mutated"
	assert.Equal(t, "Lab", h.orch.ServerProfiles()[0].Name)
}

func TestUpdateProfile_RenameMovesEverything(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.addLab(t)
	h.exec.Script(remote.OpTestConnection, conntesting.Connected("8.0"))
	require.True(t, h.orch.Connect(ctx, p).Successful)

	updated := profile.Profile{Name: "Lab2", ServerAddress: "10.0.0.6", Username: "root"}
	require.True(t, h.orch.UpdateProfile(ctx, "Lab", updated, true))

	_, found, err := h.profiles.Get(ctx, "Lab")
	require.NoError(t, err)
	assert.False(t, found, "old profile deleted")
	_, found, err = h.profiles.Get(ctx, "Lab2")
	require.NoError(t, err)
	assert.True(t, found)

	v, _ := h.secrets.Get(ctx, "Lab2")
	assert.Equal(t, "pw", v)
	assert.Equal(t, "root", h.secrets.Username("Lab2"))
	v, _ = h.secrets.Get(ctx, "Lab")
	assert.Empty(t, v)

	_, ok := h.orch.cache.Get("10.0.0.5")
	assert.False(t, ok)
	_, ok = h.orch.cache.Get("10.0.0.6")
	assert.True(t, ok, "cache entry follows the address")

	cur, ok := h.orch.Current()
	require.True(t, ok)
	assert.Equal(t, "Lab2", cur.Name)
	assert.Equal(t, "10.0.0.6", cur.ServerAddress)
	assert.NotNil(t, cur.LastConnected)
	assert.True(t, h.orch.IsConnected())
	h.assertStateInvariant(t)

	require.Len(t, h.orch.ServerProfiles(), 1)
	assert.Equal(t, "Lab2", h.orch.ServerProfiles()[0].Name)
}

func TestUpdateProfile_RenameWithoutTransfer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addLab(t)

	updated := profile.Profile{Name: "Lab2", ServerAddress: "10.0.0.5", Username: "admin"}
	require.True(t, h.orch.UpdateProfile(ctx, "Lab", updated, false))

	v, _ := h.secrets.Get(ctx, "Lab2")
	assert.Empty(t, v)
	v, _ = h.secrets.Get(ctx, "Lab")
	assert.Equal(t, "pw", v, "the old secret stays where it was")
}

func TestUpdateProfile_CaseOnlyRename(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addLab(t)

	updated := profile.Profile{Name: "LAB", ServerAddress: "10.0.0.5", Username: "admin"}
	require.True(t, h.orch.UpdateProfile(ctx, "Lab", updated, true))

	profiles := h.orch.ServerProfiles()
	require.Len(t, profiles, 1, "a case-only rename is the same profile")
	v, _ := h.secrets.Get(ctx, "lab")
	assert.Equal(t, "pw", v)
}

func TestUpdateProfile_Failures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addLab(t)
	require.NoError(t, h.orch.AddProfile(ctx, profile.Profile{Name: "Prod", ServerAddress: "10.0.0.9"}, ""))

	assert.False(t, h.orch.UpdateProfile(ctx, "Missing", labProfile(), true))
	assert.True(t, h.log.Contains("error", "not found"))

	assert.False(t, h.orch.UpdateProfile(ctx, "Lab", profile.Profile{Name: "prod", ServerAddress: "10.0.0.5"}, true))
	assert.True(t, h.log.Contains("error", "already in use"))

	assert.False(t, h.orch.UpdateProfile(ctx, "Lab", profile.Profile{Name: "Lab"}, true))
	assert.Len(t, h.orch.ServerProfiles(), 2)
}

func TestUpdateProfile_NoRollback(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addLab(t)
	h.orch.secrets = failingSecrets{}

	updated := profile.Profile{Name: "Lab2", ServerAddress: "10.0.0.5", Username: "admin"}
	assert.False(t, h.orch.UpdateProfile(ctx, "Lab", updated, true))

	// The new profile was saved before the credential move failed, and stays.
	_, found, err := h.profiles.Get(ctx, "Lab2")
	require.NoError(t, err)
	assert.True(t, found)
	_, found, err = h.profiles.Get(ctx, "Lab")
	require.NoError(t, err)
	assert.True(t, found)
}
