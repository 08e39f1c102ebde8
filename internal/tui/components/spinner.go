package components

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Spinner is a bubbles spinner with a status line beside it and a clock
// for the step currently running.
type Spinner struct {
	spin    spinner.Model
	message string
	started time.Time
	text    lipgloss.Style
	clock   lipgloss.Style
}

// NewSpinner returns a spinner showing msg.
func NewSpinner(msg string) Spinner {
	s := spinner.New(spinner.WithSpinner(spinner.MiniDot))
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Dark: "#AF87FF", Light: "#7B5FBF"})
	return Spinner{
		spin:    s,
		message: msg,
		text:    lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Dark: "#E0E0E0", Light: "#1A1A1A"}),
		clock:   lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Dark: "#767676", Light: "#8A8A8A"}),
	}
}

// Start replaces the message and restarts the clock.
func (m *Spinner) Start(msg string, now time.Time) {
	m.message = msg
	m.started = now
}

func (m Spinner) Init() tea.Cmd {
	return m.spin.Tick
}

func (m Spinner) Update(msg tea.Msg) (Spinner, tea.Cmd) {
	var cmd tea.Cmd
	m.spin, cmd = m.spin.Update(msg)
	return m, cmd
}

func (m Spinner) View() string {
	v := m.spin.View() + " " + m.text.Render(m.message)
	if !m.started.IsZero() {
		v += " " + m.clock.Render(time.Since(m.started).Truncate(time.Second).String())
	}
	return v
}
