package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Table renders a simple aligned table with styled headers.
type Table struct {
	Headers []string
	Rows    [][]string
	Plain   bool // no colors, for pipes and log files
}

// NewTable creates a table with the given column headers.
func NewTable(headers ...string) *Table {
	return &Table{Headers: headers}
}

// AddRow appends one row; missing cells render empty.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// View renders the table with aligned columns.
func (t *Table) View() string {
	if len(t.Headers) == 0 {
		return ""
	}

	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i := 0; i < len(widths) && i < len(row); i++ {
			widths[i] = max(widths[i], lipgloss.Width(row[i]))
		}
	}

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.AdaptiveColor{Dark: "#AF87FF", Light: "#7B5FBF"})
	dimStyle := lipgloss.NewStyle().
		Foreground(lipgloss.AdaptiveColor{Dark: "#585858", Light: "#999999"})
	render := func(s lipgloss.Style, text string) string {
		if t.Plain {
			return text
		}
		return s.Render(text)
	}

	var b strings.Builder
	for i, h := range t.Headers {
		b.WriteString(render(headerStyle, pad(h, widths[i]+2)))
	}
	b.WriteByte('\n')

	for i, w := range widths {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(render(dimStyle, strings.Repeat("─", w)))
	}
	b.WriteByte('\n')

	for _, row := range t.Rows {
		for i := range widths {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			b.WriteString(pad(cell, widths[i]+2))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// pad right-pads s to width display columns.
func pad(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}
