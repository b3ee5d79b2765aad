package conn

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rileyhilliard/vmhop/internal/errors"
	"github.com/rileyhilliard/vmhop/internal/logger"
	"github.com/rileyhilliard/vmhop/internal/profile"
	"github.com/robfig/cron/v3"
)

// DefaultRefreshSchedule re-validates the active connection every minute.
const DefaultRefreshSchedule = "@every 1m"

// WatchReport is the outcome of one background validation.
type WatchReport struct {
	At time.Time

	// Checked is false when nothing was connected, so nothing was tested.
	Checked bool
	Profile profile.Profile
	Healthy bool
}

// Watcher periodically re-validates the active connection on a cron
// schedule. It only reports; a stale connection is never disconnected.
type Watcher struct {
	orch     *Orchestrator
	schedule string
	onReport func(WatchReport)
	log      logger.Logger

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

// NewWatcher checks the schedule and returns a stopped watcher. An empty
// schedule means DefaultRefreshSchedule. onReport may be nil.
func NewWatcher(o *Orchestrator, schedule string, onReport func(WatchReport), log logger.Logger) (*Watcher, error) {
	if strings.TrimSpace(schedule) == "" {
		schedule = DefaultRefreshSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Invalid refresh schedule '%s'", schedule),
			"Use a cron expression like '*/5 * * * *' or a descriptor like '@every 1m'.")
	}
	if log == nil {
		log = logger.Noop()
	}
	return &Watcher{orch: o, schedule: schedule, onReport: onReport, log: log}, nil
}

// RunOnce validates the active connection now and reports the outcome.
func (w *Watcher) RunOnce(ctx context.Context) WatchReport {
	report := WatchReport{At: w.orch.now()}

	p, ok := w.orch.Current()
	if ok {
		report.Checked = true
		report.Profile = p
		report.Healthy = w.orch.ValidateCurrentConnection(ctx)
		if !report.Healthy {
			w.log.Warn("connection to %s looks stale", p)
		}
	}

	if w.onReport != nil {
		w.onReport(report)
	}
	return report
}

// Start runs RunOnce on the schedule until Stop or until ctx ends.
// Runs that would overlap a still-running one are skipped.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cron != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	cl := cronLogger{log: w.log}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	if _, err := c.AddFunc(w.schedule, func() { w.RunOnce(runCtx) }); err != nil {
		cancel()
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Could not schedule connection refresh '%s'", w.schedule), "")
	}

	w.cron = c
	w.cancel = cancel
	c.Start()
	w.log.Debug("watching active connection on schedule %s", w.schedule)
	return nil
}

// Stop cancels any run in progress and waits for it to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	c, cancel := w.cron, w.cancel
	w.cron, w.cancel = nil, nil
	w.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
}

// cronLogger routes cron's structured logs into our Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: %s%s", msg, formatKV(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: %s: %v%s", msg, err, formatKV(keysAndValues))
}

func formatKV(kv []interface{}) string {
	var b strings.Builder
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
	}
	return b.String()
}
