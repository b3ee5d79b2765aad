package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewSpinner(t *testing.T) {
	s := NewSpinner(&bytes.Buffer{}, "Testing")
	assert.Equal(t, "Testing", s.Label())
	assert.Equal(t, SpinnerPending, s.State())
}

func TestSpinner_NonTerminalPrintsOnce(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf, "Connecting to Lab")

	s.Start()
	s.Start()
	assert.Equal(t, SpinnerInProgress, s.State())
	s.Stop()
	assert.Equal(t, SpinnerInProgress, s.State(), "Stop keeps the state")

	assert.Equal(t, 1, strings.Count(buf.String(), "Connecting to Lab..."))
	assert.NotContains(t, buf.String(), "\r", "no cursor tricks off a terminal")
}

func TestSpinner_Success(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf, "Testing")
	s.Start()
	s.Success("Connected to Lab")

	assert.Equal(t, SpinnerSuccess, s.State())
	assert.Contains(t, buf.String(), SymbolComplete+" Connected to Lab")
}

func TestSpinner_Fail(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf, "Testing")
	s.Start()
	s.Fail("")

	assert.Equal(t, SpinnerFailed, s.State())
	assert.Contains(t, buf.String(), SymbolFail+" Testing")
}

func TestSpinner_SetLabel(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf, "one")
	s.Start()
	s.SetLabel("two")
	s.Stop()

	assert.Equal(t, "two", s.Label())
	assert.Contains(t, buf.String(), "two...")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0.05s", formatDuration(50*time.Millisecond))
	assert.Equal(t, "0.3s", formatDuration(300*time.Millisecond))
	assert.Equal(t, "12.0s", formatDuration(12*time.Second))
}
