package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rileyhilliard/vmhop/internal/config"
	"github.com/rileyhilliard/vmhop/internal/doctor"
	"github.com/rileyhilliard/vmhop/internal/errors"
	"github.com/rileyhilliard/vmhop/internal/ui"
	"github.com/spf13/cobra"
)

// DoctorOptions holds options for the doctor command.
type DoctorOptions struct {
	Fix         bool
	SkipServers bool
	Timeout     string
}

var doctorOpts DoctorOptions

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose configuration, storage, SSH, and server problems",
	Long: `Run diagnostic checks on your vmhop setup.

Checks:
  - Config file loads and validates
  - Profile store is readable and every profile has a password
  - Secrets file permissions (with --fix to tighten them)
  - known_hosts and SSH config
  - Each profile's server accepts its credentials

Examples:
  vmhop doctor
  vmhop doctor --skip-servers
  vmhop doctor --fix`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		// A broken config stops openApp, so report it on its own.
		configCheck := &doctor.ConfigCheck{ConfigPath: cfgFile}
		if cfgResult := doctor.RunAll(ctx, []doctor.Check{configCheck}); doctor.HasFailures(cfgResult) {
			renderDoctorResults(out, cfgResult)
			return errors.NewExitError(1)
		}

		return withApp(cmd, func(ctx context.Context, app *App) error {
			checks, err := doctorChecks(app, doctorOpts)
			if err != nil {
				return err
			}
			return runDoctor(ctx, out, append([]doctor.Check{configCheck}, checks...), doctorOpts.Fix)
		})
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorOpts.Fix, "fix", false, "fix what can be fixed automatically")
	doctorCmd.Flags().BoolVar(&doctorOpts.SkipServers, "skip-servers", false, "don't test each profile's server")
	doctorCmd.Flags().StringVar(&doctorOpts.Timeout, "timeout", "", "timeout per server test (e.g., 10s)")
	rootCmd.AddCommand(doctorCmd)
}

// doctorChecks builds the checks that need a loaded App.
func doctorChecks(app *App, opts DoctorOptions) ([]doctor.Check, error) {
	timeout, err := ParseTimeout(opts.Timeout)
	if err != nil {
		return nil, err
	}

	cfg := app.Config
	checks := []doctor.Check{
		&doctor.ProfileStoreCheck{Orch: app.Orch, Location: cfg.Profiles.Path},
		&doctor.SecretsCheck{Orch: app.Orch, Secrets: app.Secrets},
	}
	if cfg.Secrets.Backend != config.SecretsKeyring {
		checks = append(checks, &doctor.SecretsFilePermissionsCheck{Paths: []string{cfg.Secrets.File, cfg.Secrets.KeyFile}})
	}
	checks = append(checks,
		&doctor.KnownHostsCheck{Path: cfg.SSH.KnownHosts, Strict: cfg.SSH.StrictHostKeyChecking},
		&doctor.SSHConfigCheck{Path: cfg.SSH.ConfigFile},
	)
	if !opts.SkipServers {
		checks = append(checks, doctor.NewServerChecks(app.Orch, timeout)...)
	}
	return checks, nil
}

// runDoctor runs checks, applies fixes when asked, and prints the report.
// Any failure exits 1.
func runDoctor(ctx context.Context, out io.Writer, checks []doctor.Check, fix bool) error {
	results := doctor.RunAll(ctx, checks)
	if fix && doctor.FixableCount(results) > 0 {
		var err error
		results, err = doctor.FixAll(ctx, checks, results)
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig, "Automatic fix failed", "Apply the suggested fix by hand.")
		}
	}

	renderDoctorResults(out, results)
	if doctor.HasFailures(results) {
		return errors.NewExitError(1)
	}
	return nil
}

func renderDoctorResults(out io.Writer, results []doctor.CheckResult) {
	grouped := doctor.GroupByCategory(results)
	for _, cat := range doctor.Categories {
		rs := grouped[cat]
		if len(rs) == 0 {
			continue
		}
		fmt.Fprintln(out, categoryHeader(cat))
		for _, r := range rs {
			fmt.Fprintf(out, "  %s %s\n", statusSymbol(r.Status), r.Message)
			if r.Status != doctor.StatusPass && r.Suggestion != "" {
				fmt.Fprintf(out, "    %s\n", ui.MutedStyle().Render(r.Suggestion))
			}
		}
		fmt.Fprintln(out)
	}

	summary := doctor.Summary(results)
	if n := doctor.FixableCount(results); n > 0 {
		summary += fmt.Sprintf(" (%d fixable with --fix)", n)
	}
	fmt.Fprintln(out, summary)
}

func statusSymbol(s doctor.CheckStatus) string {
	switch s {
	case doctor.StatusPass:
		return ui.SuccessStyle().Render(ui.SymbolSuccess)
	case doctor.StatusWarn:
		return ui.WarningStyle().Render("!")
	default:
		return ui.ErrorStyle().Render(ui.SymbolFail)
	}
}

func categoryHeader(s string) string {
	return ui.MutedStyle().Bold(true).Render(strings.ToUpper(s))
}
