package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rileyhilliard/vmhop/internal/conn"
	"github.com/rileyhilliard/vmhop/internal/errors"
	"github.com/rileyhilliard/vmhop/internal/ui"
	"github.com/spf13/cobra"
)

// ConnectOptions holds options for the connect command.
type ConnectOptions struct {
	Watch    bool
	Schedule string // Overrides connection.refresh_schedule
}

var connectOpts ConnectOptions

var connectCmd = &cobra.Command{
	Use:   "connect <profile>",
	Short: "Connect to a server and hold the connection",
	Long: `Make a profile the active connection and hold it until interrupted.
On Ctrl-C the server session is logged out.

With --watch the connection is re-validated on connection.refresh_schedule
(or --schedule) and a line is printed whenever it looks stale.

Examples:
  vmhop connect lab
  vmhop connect lab --watch
  vmhop connect lab --watch --schedule "*/5 * * * *"`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeProfileNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		cmd.SetContext(ctx)
		return withApp(cmd, func(ctx context.Context, app *App) error {
			return connectProfile(ctx, cmd.OutOrStdout(), app, args[0], connectOpts)
		})
	},
}

func init() {
	connectCmd.Flags().BoolVarP(&connectOpts.Watch, "watch", "w", false, "re-validate the connection periodically")
	connectCmd.Flags().StringVar(&connectOpts.Schedule, "schedule", "", "refresh schedule for --watch (cron or @every)")
	rootCmd.AddCommand(connectCmd)
}

// connectProfile connects, prints status changes as they happen, and waits
// for ctx to end before disconnecting.
func connectProfile(ctx context.Context, out io.Writer, app *App, name string, opts ConnectOptions) error {
	p, ok := findProfile(app, name)
	if !ok {
		return profileNotFound(name)
	}

	// Events are delivered on their own goroutine and the watcher reports
	// from cron's, so both write through one lock. App.Close flushes any
	// event still queued, so the subscription is left to it.
	w := &syncWriter{w: out}

	var watcher *conn.Watcher
	if opts.Watch {
		schedule := opts.Schedule
		if schedule == "" {
			schedule = app.Config.Connection.RefreshSchedule
		}
		var err error
		watcher, err = conn.NewWatcher(app.Orch, schedule, watchReporter(w), app.Log)
		if err != nil {
			return err
		}
	}

	app.Orch.Subscribe(func(ev conn.StatusEvent) {
		fmt.Fprintln(w, ui.RenderStatusLine(statusLine(ev)))
	})

	spinner := ui.NewSpinner(out, "Connecting to "+p.Name)
	spinner.Start()
	r := app.Orch.Connect(ctx, p)
	spinner.Stop()
	if !r.Successful {
		return errors.NewExitError(1)
	}

	if watcher != nil {
		if err := watcher.Start(ctx); err != nil {
			app.Orch.Disconnect(context.WithoutCancel(ctx))
			return err
		}
	}

	if !quiet {
		fmt.Fprintln(w, ui.MutedStyle().Render("  Press Ctrl-C to disconnect."))
	}
	<-ctx.Done()

	if watcher != nil {
		watcher.Stop()
	}
	app.Orch.Disconnect(context.WithoutCancel(ctx))
	return nil
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func statusLine(ev conn.StatusEvent) ui.StatusLine {
	return ui.StatusLine{
		At:        ev.At,
		Connected: ev.IsConnected,
		Profile:   ev.Profile.String(),
		Version:   ev.Version,
		Error:     ev.ErrorMessage,
	}
}

// watchReporter prints stale checks. Healthy checks only go to the debug log.
func watchReporter(out io.Writer) func(conn.WatchReport) {
	return func(r conn.WatchReport) {
		if !r.Checked || r.Healthy {
			return
		}
		fmt.Fprintln(out, ui.RenderStatusLine(ui.StatusLine{
			At:      r.At,
			Profile: r.Profile.String(),
			Error:   "connection looks stale",
		}))
	}
}
