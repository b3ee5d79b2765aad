package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rileyhilliard/vmhop/internal/conn"
	"github.com/rileyhilliard/vmhop/internal/errors"
	"github.com/rileyhilliard/vmhop/internal/profile"
	"github.com/rileyhilliard/vmhop/internal/ui"
	"github.com/spf13/cobra"
)

// TestOptions holds options for the test command.
type TestOptions struct {
	Retry   bool
	Timeout string // Overrides connection.test_timeout, e.g. "10s"
	Retries int    // Overrides connection.max_retries when >= 0
}

var testOpts = TestOptions{Retries: -1}

var testCmd = &cobra.Command{
	Use:   "test <profile>",
	Short: "Check that a server accepts a profile's credentials",
	Long: `Log in to the profile's server once and report the outcome, without
making it the active connection.

With --retry, transient failures (timeouts, refused or reset connections,
unreachable networks) are retried with exponential backoff.

Examples:
  vmhop test lab
  vmhop test lab --timeout 10s
  vmhop test lab --retry --retries 5`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeProfileNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *App) error {
			return testProfile(ctx, cmd.OutOrStdout(), app, args[0], testOpts)
		})
	},
}

func init() {
	testCmd.Flags().BoolVar(&testOpts.Retry, "retry", false, "retry transient failures with backoff")
	testCmd.Flags().StringVar(&testOpts.Timeout, "timeout", "", "timeout for a single test (e.g., 10s, 1m)")
	testCmd.Flags().IntVar(&testOpts.Retries, "retries", -1, "retries after the first attempt (default from config)")
	rootCmd.AddCommand(testCmd)
}

// testProfile runs one test, or the retry loop, against a saved profile.
// A failed test prints its reason and exits 1.
func testProfile(ctx context.Context, out io.Writer, app *App, name string, opts TestOptions) error {
	p, ok := findProfile(app, name)
	if !ok {
		return profileNotFound(name)
	}

	timeout, err := ParseTimeout(opts.Timeout)
	if err != nil {
		return err
	}

	display := ui.NewConnectionDisplay(out)
	display.SetQuiet(quiet)
	display.Start("Testing " + p.Name)

	var r conn.Result
	if opts.Retry {
		ro := app.RetryOptions()
		if opts.Retries >= 0 {
			ro.MaxRetries = opts.Retries
		}
		if timeout > 0 {
			ro.AttemptTimeout = timeout
		}
		ro.OnAttempt = func(a conn.Attempt) {
			display.AddAttempt(attemptLine(a))
		}
		r = app.Orch.TestConnectionWithRetry(ctx, p, ro)
	} else {
		r = app.Orch.TestConnection(ctx, p, timeout)
	}

	if !r.Successful {
		display.Fail(r.ErrorMessage)
		return errors.NewExitError(1)
	}
	display.Success(reachableMessage(p, r))
	return nil
}

func attemptLine(a conn.Attempt) ui.AttemptLine {
	return ui.AttemptLine{
		Number:    a.Number,
		OK:        a.Result.Successful,
		Version:   a.Result.Version,
		Message:   a.Result.ErrorMessage,
		NextDelay: a.NextDelay,
	}
}

func reachableMessage(p profile.Profile, r conn.Result) string {
	msg := fmt.Sprintf("%s is reachable", p)
	if r.Version != "" {
		msg += ", version " + r.Version
	}
	return msg
}

// ParseTimeout parses a timeout flag. An empty flag means zero, which
// leaves the configured timeout in place.
func ParseTimeout(flag string) (time.Duration, error) {
	if flag == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(flag)
	if err != nil || d < 0 {
		if err == nil {
			err = fmt.Errorf("negative duration %s", flag)
		}
		return 0, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("'%s' doesn't look like a valid timeout", flag),
			"Try something like 5s, 2m, or 500ms.")
	}
	return d, nil
}
