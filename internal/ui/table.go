package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// TableColumn defines a table column with name and minimum width.
type TableColumn struct {
	Title string
	Width int
}

// RenderSimpleTable renders a plain aligned table for CLI output.
// Columns grow to fit their widest cell.
func RenderSimpleTable(columns []TableColumn, rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = max(c.Width, lipgloss.Width(c.Title))
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			widths[i] = max(widths[i], lipgloss.Width(row[i]))
		}
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)

	var b strings.Builder
	titles := make([]string, len(columns))
	for i, c := range columns {
		titles[i] = c.Title
	}
	b.WriteString(headerStyle.Render(joinRow(titles, widths)))
	b.WriteString("\n")

	for _, row := range rows {
		b.WriteString(joinRow(row, widths))
		b.WriteString("\n")
	}
	return b.String()
}

func joinRow(cells []string, widths []int) string {
	parts := make([]string, len(widths))
	for i := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		if i == len(widths)-1 {
			parts[i] = cell
		} else {
			parts[i] = padRight(cell, widths[i])
		}
	}
	return strings.TrimRight("  "+strings.Join(parts, "   "), " ")
}

// ProfileRow is one row of 'vmhop profile list'.
type ProfileRow struct {
	Name          string
	Address       string
	Username      string
	LastConnected string
	HasSecret     bool
}

// RenderProfileTable renders the profile list.
func RenderProfileTable(rows []ProfileRow) string {
	if len(rows) == 0 {
		return "No profiles yet. Add one with 'vmhop profile add'.\n"
	}

	columns := []TableColumn{
		{Title: "NAME", Width: 12},
		{Title: "ADDRESS", Width: 16},
		{Title: "USER", Width: 8},
		{Title: "SECRET", Width: 6},
		{Title: "LAST CONNECTED"},
	}

	cells := make([][]string, len(rows))
	for i, r := range rows {
		secret := ErrorStyle().Render(SymbolFail)
		if r.HasSecret {
			secret = SuccessStyle().Render(SymbolSuccess)
		}
		last := r.LastConnected
		if last == "" {
			last = MutedStyle().Render("never")
		}
		cells[i] = []string{r.Name, r.Address, r.Username, secret, last}
	}
	return RenderSimpleTable(columns, cells)
}

// padRight pads a string to the specified visible width.
func padRight(s string, width int) string {
	visibleLen := lipgloss.Width(s)
	if visibleLen >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visibleLen)
}
