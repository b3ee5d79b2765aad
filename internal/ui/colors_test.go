package ui

import (
	"bytes"
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func TestGradientColors(t *testing.T) {
	assert.Len(t, GradientColors, 4)
	for i, color := range GradientColors {
		colorStr := string(color)
		assert.Len(t, colorStr, 7, "gradient color %d should be #RRGGBB", i)
		assert.Equal(t, byte('#'), colorStr[0])
	}
}

func TestStyles(t *testing.T) {
	for name, style := range map[string]func() string{
		"success": func() string { return SuccessStyle().Render("x") },
		"error":   func() string { return ErrorStyle().Render("x") },
		"warning": func() string { return WarningStyle().Render("x") },
		"muted":   func() string { return MutedStyle().Render("x") },
	} {
		t.Run(name, func(t *testing.T) {
			assert.Contains(t, style(), "x")
		})
	}
}

func TestColorProfile(t *testing.T) {
	var buf bytes.Buffer

	assert.Equal(t, termenv.Ascii, colorProfile(ColorNever, &buf))
	assert.Equal(t, termenv.Ascii, colorProfile(ColorAuto, &buf), "a buffer is not a terminal")
	assert.NotEqual(t, termenv.Ascii, colorProfile(ColorAlways, &buf))
}

func TestIsTerminal(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, IsTerminal(&buf))
}
