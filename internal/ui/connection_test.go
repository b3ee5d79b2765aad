package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderAttemptLine(t *testing.T) {
	tests := []struct {
		name string
		a    AttemptLine
		want []string
	}{
		{"retrying", AttemptLine{Number: 1, Message: "connection refused", NextDelay: 500 * time.Millisecond},
			[]string{SymbolPending, "attempt 1", "connection refused (retry in 0.5s)"}},
		{"last failure", AttemptLine{Number: 4, Message: "connection refused"},
			[]string{SymbolPending, "attempt 4", "connection refused"}},
		{"no message", AttemptLine{Number: 2}, []string{"failed"}},
		{"success", AttemptLine{Number: 3, OK: true, Version: "8.0"},
			[]string{SymbolComplete, "attempt 3", "version 8.0"}},
		{"success without version", AttemptLine{Number: 1, OK: true}, []string{"connected"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := RenderAttemptLine(tt.a)
			for _, want := range tt.want {
				assert.Contains(t, line, want)
			}
			assert.NotContains(t, line, "retry in 0.00s")
		})
	}
}

func TestConnectionDisplay_Retries(t *testing.T) {
	var buf bytes.Buffer
	cd := NewConnectionDisplay(&buf)

	cd.Start("Testing Lab")
	cd.AddAttempt(AttemptLine{Number: 1, Message: "connection refused", NextDelay: 500 * time.Millisecond})
	cd.AddAttempt(AttemptLine{Number: 2, Message: "connection refused", NextDelay: time.Second})
	cd.AddAttempt(AttemptLine{Number: 3, OK: true, Version: "8.0"})
	cd.Success("Lab is reachable")

	out := buf.String()
	assert.Contains(t, out, "attempt 1")
	assert.Contains(t, out, "retry in 1.0s")
	assert.Contains(t, out, "attempt 3")
	assert.Contains(t, out, SymbolComplete+" Lab is reachable")
	assert.Len(t, cd.Attempts(), 3)
}

func TestConnectionDisplay_FirstTrySuccessIsQuiet(t *testing.T) {
	var buf bytes.Buffer
	cd := NewConnectionDisplay(&buf)

	cd.AddAttempt(AttemptLine{Number: 1, OK: true, Version: "8.0"})
	cd.Success("Lab is reachable")

	assert.NotContains(t, buf.String(), "attempt 1")
	assert.Contains(t, buf.String(), "Lab is reachable")
}

func TestConnectionDisplay_QuietFailure(t *testing.T) {
	var buf bytes.Buffer
	cd := NewConnectionDisplay(&buf)
	cd.SetQuiet(true)

	cd.AddAttempt(AttemptLine{Number: 1, Message: "timed out", NextDelay: time.Second})
	cd.AddAttempt(AttemptLine{Number: 2, Message: "timed out"})
	cd.Fail("timed out")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], SymbolFail+" Connection failed: timed out")
}

func TestConnectionDisplay_FailWithoutMessage(t *testing.T) {
	var buf bytes.Buffer
	NewConnectionDisplay(&buf).Fail("")
	assert.Contains(t, buf.String(), "Connection failed ")
}
