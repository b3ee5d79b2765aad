package cli

import (
	"bytes"
	"errors"
	"testing"

	vmerrors "github.com/rileyhilliard/vmhop/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUnknownCommandError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "unknown command error", err: errors.New(`unknown command "foo" for "vmhop"`), want: true},
		{name: "unknown flag error", err: errors.New(`unknown flag: --foo`), want: true},
		{name: "other error", err: errors.New("connection failed"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUnknownCommandError(tt.err))
		})
	}
}

func TestExtractUnknownCommand(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "standard cobra format", err: errors.New(`unknown command "foo" for "vmhop"`), want: "foo"},
		{name: "command with hyphen", err: errors.New(`unknown command "log-in" for "vmhop"`), want: "log-in"},
		{name: "no quotes returns empty", err: errors.New("unknown command foo"), want: ""},
		{name: "single quote returns empty", err: errors.New(`unknown command "foo`), want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractUnknownCommand(tt.err))
		})
	}
}

func TestRenderError(t *testing.T) {
	structured := vmerrors.New(vmerrors.ErrProfile, "Profile 'lab' not found", "Run 'vmhop profile list'.")
	assert.Equal(t, structured.Error(), renderError(structured))

	wrapped := vmerrors.Wrap(errors.New("dial tcp: refused"), "Could not reach server")
	assert.Contains(t, renderError(wrapped), "dial tcp: refused")

	assert.Equal(t, "✗ boom\n", renderError(errors.New("boom")))
}

func TestRootCommand_Subcommands(t *testing.T) {
	want := []string{"profile", "test", "connect", "doctor", "version", "completion"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	for _, name := range []string{"add", "list", "remove", "update"} {
		cmd, _, err := rootCmd.Find([]string{"profile", name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestRootCommand_GlobalFlags(t *testing.T) {
	for _, name := range []string{"config", "verbose", "quiet", "no-color"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
	}
}

func TestCompletionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"completion", "bash"})
	t.Cleanup(func() { rootCmd.SetOut(nil); rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "vmhop")
}
