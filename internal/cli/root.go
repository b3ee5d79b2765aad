package cli

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/rileyhilliard/vmhop/internal/errors"
	"github.com/rileyhilliard/vmhop/internal/logger"
	"github.com/rileyhilliard/vmhop/internal/ui"
	"github.com/spf13/cobra"
)

// Global flags
var (
	cfgFile string
	verbose bool
	quiet   bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "vmhop",
	Short: "Manage and test connections to vCenter-style servers",
	Long: `vmhop keeps a list of server profiles, stores their passwords in the OS
keychain (or an encrypted file), and tests or holds a connection to one
server at a time.

Examples:
  vmhop profile add lab --address 10.0.0.5 --user admin
  vmhop test lab --retry
  vmhop connect lab --watch`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		applyGlobalFlags(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/vmhop/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show debug output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only print results and errors")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
}

// applyGlobalFlags turns --verbose, --quiet and --no-color into logger and
// renderer settings. The config file's output.color is applied later, once
// it is loaded, unless --no-color already decided.
func applyGlobalFlags(cmd *cobra.Command) {
	if verbose {
		_ = os.Setenv(logger.DebugEnv, "1")
	}
	if noColor {
		ui.SetColorMode(ui.ColorNever, cmd.OutOrStdout())
	}
}

// newLogger returns the logger commands hand to the app.
func newLogger(component string) logger.Logger {
	l := logger.NewEnvLogger("[" + component + "]")
	if quiet {
		return logger.Quiet(l)
	}
	return l
}

// Execute runs the root command and exits with a non-zero status on failure.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	if code, ok := errors.GetExitCode(err); ok {
		os.Exit(code)
	}

	if isUnknownCommandError(err) {
		if name := extractUnknownCommand(err); name != "" {
			fmt.Fprintf(os.Stderr, "%s Unknown command '%s'\n\n  Run 'vmhop --help' to see what's available.\n", ui.SymbolFail, name)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "%s %s\n", ui.SymbolFail, err)
		os.Exit(2)
	}

	fmt.Fprint(os.Stderr, renderError(err))
	os.Exit(1)
}

// renderError formats structured errors as-is and decorates plain ones.
func renderError(err error) string {
	var vmErr *errors.Error
	if stderrors.As(err, &vmErr) {
		return vmErr.Error()
	}
	return fmt.Sprintf("%s %s\n", ui.SymbolFail, err)
}

func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") || strings.HasPrefix(msg, "unknown flag")
}

// extractUnknownCommand pulls the command name out of cobra's
// `unknown command "foo" for "vmhop"` message.
func extractUnknownCommand(err error) string {
	msg := err.Error()
	start := strings.Index(msg, `"`)
	if start < 0 {
		return ""
	}
	end := strings.Index(msg[start+1:], `"`)
	if end < 0 {
		return ""
	}
	return msg[start+1 : start+1+end]
}
