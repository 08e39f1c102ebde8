package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tonyperkins/homelab/internal/diag"
)

// RenderFinding renders one doctor finding with its details and hints.
// With plain set no ANSI styling is emitted.
func RenderFinding(f diag.Finding, plain bool) string {
	tag := fmt.Sprintf("[%s]", f.Status)
	if !plain {
		tag = statusStyle(f.Status).Render(tag)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %s\n", tag, f.Check, f.Summary)
	for _, d := range f.Details {
		fmt.Fprintf(&b, "       - %s\n", d)
	}
	for _, h := range f.Hints {
		hint := "       > " + h
		if !plain {
			hint = DimStyle.Render(hint)
		}
		b.WriteString(hint)
		b.WriteByte('\n')
	}
	return b.String()
}

func statusStyle(s diag.Status) lipgloss.Style {
	switch s {
	case diag.Pass:
		return SuccessStyle
	case diag.Warn:
		return WarningStyle
	case diag.Fail:
		return ErrorStyle
	default:
		return DimStyle
	}
}

// RenderSummary renders the closing doctor line.
func RenderSummary(fs []diag.Finding, plain bool) string {
	s := diag.Summary(fs)
	line := fmt.Sprintf("%d passed, %d warnings, %d failed, %d skipped",
		s[diag.Pass], s[diag.Warn], s[diag.Fail], s[diag.Skip])
	if plain {
		return line
	}
	if diag.Failed(fs) {
		return ErrorStyle.Render(line)
	}
	if s[diag.Warn] > 0 {
		return WarningStyle.Render(line)
	}
	return SuccessStyle.Render(line)
}
