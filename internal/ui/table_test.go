package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSimpleTable(t *testing.T) {
	out := RenderSimpleTable(
		[]TableColumn{{Title: "NAME", Width: 4}, {Title: "ADDRESS"}},
		[][]string{
			{"Lab", "10.0.0.5"},
			{"production-vcenter", "vc.corp.local"},
		})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "NAME")

	// Second column lines up across rows.
	col := strings.Index(lines[2], "vc.corp.local")
	assert.Equal(t, col, strings.Index(lines[1], "10.0.0.5"))
	assert.Equal(t, col, strings.Index(lines[0], "ADDRESS"))
}

func TestRenderSimpleTable_Empty(t *testing.T) {
	assert.Empty(t, RenderSimpleTable([]TableColumn{{Title: "X"}}, nil))
}

func TestRenderProfileTable(t *testing.T) {
	out := RenderProfileTable([]ProfileRow{
		{Name: "Lab", Address: "10.0.0.5", Username: "admin", HasSecret: true, LastConnected: "2026-03-14 09:30"},
		{Name: "Prod", Address: "vc.corp.local", Username: "root"},
	})

	assert.Contains(t, out, "LAST CONNECTED")
	assert.Contains(t, out, "2026-03-14 09:30")
	assert.Contains(t, out, "never")
	assert.Contains(t, out, SymbolSuccess)
	assert.Contains(t, out, SymbolFail)

	assert.Contains(t, RenderProfileTable(nil), "vmhop profile add")
}

func TestPadRight(t *testing.T) {
	assert.Equal(t, "ab   ", padRight("ab", 5))
	assert.Equal(t, "abcdef", padRight("abcdef", 3))
}
