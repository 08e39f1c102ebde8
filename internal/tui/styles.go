// Package tui renders wanguard's terminal output: the live check screen
// and the doctor report.
package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Adaptive colors that work on both light and dark terminals.
// First value is for dark backgrounds, second for light.
var (
	colorPrimary = lipgloss.AdaptiveColor{Dark: "#AF87FF", Light: "#7B5FBF"}
	colorGreen   = lipgloss.AdaptiveColor{Dark: "#5FD75F", Light: "#2E8B2E"}
	colorRed     = lipgloss.AdaptiveColor{Dark: "#FF5F5F", Light: "#CC3333"}
	colorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD75F", Light: "#B8860B"}
	colorDim     = lipgloss.AdaptiveColor{Dark: "#585858", Light: "#999999"}
	colorBorder  = lipgloss.AdaptiveColor{Dark: "#3A3A3A", Light: "#CCCCCC"}
)

// SuccessStyle is green text for passing checks.
var SuccessStyle = lipgloss.NewStyle().
	Foreground(colorGreen).
	Bold(true)

// ErrorStyle is red text for failures.
var ErrorStyle = lipgloss.NewStyle().
	Foreground(colorRed).
	Bold(true)

// WarningStyle is yellow text for warnings.
var WarningStyle = lipgloss.NewStyle().
	Foreground(colorYellow)

// DimStyle is de-emphasized text.
var DimStyle = lipgloss.NewStyle().
	Foreground(colorDim)

// LabelStyle is the fixed-width step or check name column.
var LabelStyle = lipgloss.NewStyle().
	Foreground(colorPrimary).
	Bold(true).
	Width(22)

// AccentStyle is for highlighted accent text.
var AccentStyle = lipgloss.NewStyle().
	Foreground(colorPrimary).
	Bold(true)

// PanelStyle is the outer bordered panel.
var PanelStyle = lipgloss.NewStyle().
	BorderStyle(lipgloss.RoundedBorder()).
	BorderForeground(colorBorder).
	Padding(1, 2)

// RenderPanel wraps content in a bordered panel with a title in the top border.
func RenderPanel(title, content string) string {
	titleStr := " " + AccentStyle.Render(title) + " "
	body := PanelStyle.Render(content)

	lines := strings.Split(body, "\n")
	runes := []rune(lines[0])
	if len(runes) <= 4 {
		return body
	}

	// Build: corner + title + rest of border + closing corner.
	var b strings.Builder
	b.WriteRune(runes[0])
	b.WriteString(titleStr)
	remaining := len(runes) - 2 - (2 + lipgloss.Width(title))
	if remaining <= 0 {
		return body
	}
	b.WriteString(strings.Repeat("─", remaining))
	b.WriteRune(runes[len(runes)-1])
	lines[0] = b.String()
	return strings.Join(lines, "\n")
}
