package ui

import (
	"fmt"
	"time"
)

// StatusLine describes the active connection for one line of output.
type StatusLine struct {
	At        time.Time
	Connected bool
	Profile   string
	Version   string
	Error     string
}

// RenderStatusLine renders a connection state change, e.g.
//
//	09:30:00 ● connected to Lab (admin@10.0.0.5), version 8.0
//	09:31:00 ○ Lab (admin@10.0.0.5) disconnected
func RenderStatusLine(s StatusLine) string {
	ts := ""
	if !s.At.IsZero() {
		ts = MutedStyle().Render(s.At.Local().Format("15:04:05")) + " "
	}

	switch {
	case s.Connected:
		msg := "connected to " + s.Profile
		if s.Version != "" {
			msg += ", version " + s.Version
		}
		return ts + SuccessStyle().Render(SymbolComplete) + " " + msg
	case s.Error != "":
		return fmt.Sprintf("%s%s %s: %s", ts, ErrorStyle().Render(SymbolFail), s.Profile, s.Error)
	default:
		return fmt.Sprintf("%s%s %s disconnected", ts, MutedStyle().Render(SymbolPending), s.Profile)
	}
}
