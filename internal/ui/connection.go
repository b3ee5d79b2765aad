package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// AttemptLine is one connection attempt as shown to the user.
type AttemptLine struct {
	Number  int
	OK      bool
	Version string
	Message string

	// NextDelay is the wait before the next attempt, zero for the last one.
	NextDelay time.Duration
}

// ConnectionDisplay renders a connection test with its retries.
//
// Example output:
//
//	⣾ Testing Lab...
//	  ○ attempt 1                          connection refused (retry in 0.5s)
//	  ○ attempt 2                          connection refused (retry in 1.0s)
//	  ● attempt 3                                                  version 8.0
//	● Lab (admin@10.0.0.5) is reachable, version 8.0                     1.6s
type ConnectionDisplay struct {
	mu       sync.Mutex
	w        io.Writer
	attempts []AttemptLine
	spinner  *Spinner
	started  time.Time
	quiet    bool
}

// NewConnectionDisplay creates a connection display writing to w.
func NewConnectionDisplay(w io.Writer) *ConnectionDisplay {
	return &ConnectionDisplay{w: w}
}

// SetQuiet hides individual attempts; only the final line is printed.
func (cd *ConnectionDisplay) SetQuiet(quiet bool) {
	cd.mu.Lock()
	defer cd.mu.Unlock()
	cd.quiet = quiet
}

// Start shows a spinner with label.
func (cd *ConnectionDisplay) Start(label string) {
	cd.mu.Lock()
	defer cd.mu.Unlock()

	cd.started = time.Now()
	cd.spinner = NewSpinner(cd.w, label)
	cd.spinner.Start()
}

// AddAttempt records an attempt and prints it unless quiet. A single
// successful first attempt is not printed; the final line says it all.
func (cd *ConnectionDisplay) AddAttempt(a AttemptLine) {
	cd.mu.Lock()
	defer cd.mu.Unlock()

	cd.attempts = append(cd.attempts, a)
	if cd.quiet || (a.OK && len(cd.attempts) == 1) {
		return
	}

	if cd.spinner != nil {
		cd.spinner.Stop()
	}
	fmt.Fprintln(cd.w, renderAttempt(a, true))
	if !a.OK && a.NextDelay > 0 && cd.spinner != nil {
		cd.spinner.Start()
	}
}

// Success prints the final success line.
func (cd *ConnectionDisplay) Success(msg string) {
	cd.finish(true, msg)
}

// Fail prints the final failure line.
func (cd *ConnectionDisplay) Fail(errMsg string) {
	msg := "Connection failed"
	if errMsg != "" {
		msg = "Connection failed: " + errMsg
	}
	cd.finish(false, msg)
}

func (cd *ConnectionDisplay) finish(ok bool, msg string) {
	cd.mu.Lock()
	defer cd.mu.Unlock()

	if cd.spinner != nil {
		cd.spinner.Stop()
	}

	symbol, style := SymbolComplete, SuccessStyle()
	if !ok {
		symbol, style = SymbolFail, ErrorStyle()
	}
	var elapsed time.Duration
	if !cd.started.IsZero() {
		elapsed = time.Since(cd.started)
	}
	fmt.Fprintf(cd.w, "%s %s %s\n",
		style.Render(symbol),
		msg,
		MutedStyle().Render(formatDuration(elapsed)))
}

// Attempts returns a copy of all recorded attempts.
func (cd *ConnectionDisplay) Attempts() []AttemptLine {
	cd.mu.Lock()
	defer cd.mu.Unlock()

	result := make([]AttemptLine, len(cd.attempts))
	copy(result, cd.attempts)
	return result
}

// RenderAttemptLine returns a formatted attempt line without color.
func RenderAttemptLine(a AttemptLine) string {
	return renderAttempt(a, false)
}

func renderAttempt(a AttemptLine, styled bool) string {
	symbol := SymbolPending
	status := a.Message
	if status == "" {
		status = "failed"
	}
	if a.OK {
		symbol = SymbolComplete
		status = "connected"
		if a.Version != "" {
			status = "version " + a.Version
		}
	} else if a.NextDelay > 0 {
		status = fmt.Sprintf("%s (retry in %s)", status, formatDuration(a.NextDelay))
	}

	label := fmt.Sprintf("attempt %d", a.Number)
	padding := 40 - len(label)
	if padding < 2 {
		padding = 2
	}

	if styled {
		symbolStyle := MutedStyle()
		if a.OK {
			symbolStyle = SuccessStyle()
		}
		symbol = symbolStyle.Render(symbol)
		status = MutedStyle().Render(status)
	}
	return fmt.Sprintf("  %s %s%s%s", symbol, label, strings.Repeat(" ", padding), status)
}
