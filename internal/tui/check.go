package tui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tonyperkins/homelab/internal/probe"
	"github.com/tonyperkins/homelab/internal/tui/components"
)

// StepStartMsg announces that a probe step has started.
type StepStartMsg struct {
	Name string
}

// StepDoneMsg carries a finished probe step.
type StepDoneMsg struct {
	Result probe.Result
}

// CheckDoneMsg signals that the probe has finished.
type CheckDoneMsg struct{}

// CheckModel is the live "wanguard check" screen.
type CheckModel struct {
	title   string
	spinner components.Spinner
	results probe.Results
	running bool
	done    bool
	aborted bool
}

// NewCheckModel creates the check screen for the given target.
func NewCheckModel(title string) CheckModel {
	return CheckModel{
		title:   title,
		spinner: components.NewSpinner("Starting..."),
	}
}

// Init starts the spinner.
func (m CheckModel) Init() tea.Cmd {
	return m.spinner.Init()
}

// Update handles probe progress messages and Ctrl+C.
func (m CheckModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case StepStartMsg:
		m.running = true
		m.spinner.Start(msg.Name+"...", time.Now())
		return m, nil

	case StepDoneMsg:
		m.running = false
		m.results = append(m.results, msg.Result)
		return m, nil

	case CheckDoneMsg:
		m.done = true
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.aborted = true
			return m, tea.Quit
		}
		return m, nil
	}

	// Forward spinner ticks.
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

// Results returns the steps finished so far.
func (m CheckModel) Results() probe.Results {
	return m.results
}

// Aborted reports whether the user quit before the probe finished.
func (m CheckModel) Aborted() bool {
	return m.aborted
}

// View renders the steps finished so far and the one in progress.
func (m CheckModel) View() string {
	var b strings.Builder
	for _, r := range m.results {
		b.WriteString(RenderResult(r))
		b.WriteByte('\n')
	}
	if m.running && !m.done {
		b.WriteString(m.spinner.View())
		b.WriteByte('\n')
	}
	if m.done {
		b.WriteByte('\n')
		if err := m.results.Err(); err != nil {
			b.WriteString(ErrorStyle.Render("Check failed"))
		} else {
			b.WriteString(SuccessStyle.Render("All checks passed"))
		}
	}
	return RenderPanel(m.title, strings.TrimRight(b.String(), "\n")) + "\n"
}

// RenderResult renders one probe step as a styled line.
func RenderResult(r probe.Result) string {
	elapsed := DimStyle.Render(" (" + r.Elapsed.Round(time.Millisecond).String() + ")")
	if r.Err != nil {
		return ErrorStyle.Render("✗ ") + LabelStyle.Render(r.Name) + ErrorStyle.Render(r.Err.Error()) + elapsed
	}
	return SuccessStyle.Render("✓ ") + LabelStyle.Render(r.Name) + r.Detail + elapsed
}

// PlainResult renders one probe step without styling.
func PlainResult(r probe.Result) string {
	if r.Err != nil {
		return "[FAIL] " + r.Name + ": " + r.Err.Error()
	}
	if r.Detail == "" {
		return "[ OK ] " + r.Name
	}
	return "[ OK ] " + r.Name + ": " + r.Detail
}
