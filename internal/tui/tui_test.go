package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonyperkins/homelab/internal/diag"
	"github.com/tonyperkins/homelab/internal/probe"
)

func TestCheckModelFlow(t *testing.T) {
	var m tea.Model = NewCheckModel("Checking 192.168.1.10")

	m, _ = m.Update(StepStartMsg{Name: "Login"})
	assert.Contains(t, m.View(), "Login...")

	m, _ = m.Update(StepDoneMsg{Result: probe.Result{Name: "Login"}})
	m, cmd := m.Update(CheckDoneMsg{})
	require.NotNil(t, cmd)

	cm := m.(CheckModel)
	assert.Len(t, cm.Results(), 1)
	assert.False(t, cm.Aborted())
	assert.Contains(t, cm.View(), "All checks passed")
}

func TestCheckModelFailureAndAbort(t *testing.T) {
	var m tea.Model = NewCheckModel("check")
	m, _ = m.Update(StepDoneMsg{Result: probe.Result{Name: "Login", Err: errors.New("rejected")}})
	m, _ = m.Update(CheckDoneMsg{})
	assert.Contains(t, m.View(), "Check failed")

	m, cmd := NewCheckModel("check").Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.True(t, m.(CheckModel).Aborted())
}

func TestPlainResult(t *testing.T) {
	assert.Equal(t, "[ OK ] Login", PlainResult(probe.Result{Name: "Login"}))
	assert.Equal(t, "[ OK ] WAN address: 203.0.113.9 (public)",
		PlainResult(probe.Result{Name: "WAN address", Detail: "203.0.113.9 (public)"}))
	assert.Equal(t, "[FAIL] Login: nope", PlainResult(probe.Result{Name: "Login", Err: errors.New("nope")}))
}

func TestRenderFindingPlain(t *testing.T) {
	out := RenderFinding(diag.Finding{
		Check:   "Device MAC address",
		Status:  diag.Fail,
		Summary: `invalid MAC address "x"`,
		Details: []string{"d1"},
		Hints:   []string{"h1"},
	}, true)
	assert.Equal(t, "[FAIL] Device MAC address: invalid MAC address \"x\"\n       - d1\n       > h1\n", out)
}

func TestRenderFindingStyledKeepsText(t *testing.T) {
	for _, st := range []diag.Status{diag.Pass, diag.Warn, diag.Fail, diag.Skip} {
		out := RenderFinding(diag.Finding{Check: "Log directory", Status: st, Summary: "logs is writable"}, false)
		assert.Contains(t, out, "["+st.String()+"]")
		assert.Contains(t, out, "Log directory: logs is writable\n")
	}
}

func TestRenderSummaryPlain(t *testing.T) {
	fs := []diag.Finding{{Status: diag.Pass}, {Status: diag.Pass}, {Status: diag.Warn}, {Status: diag.Skip}}
	assert.Equal(t, "2 passed, 1 warnings, 0 failed, 1 skipped", RenderSummary(fs, true))
}

func TestRenderPanelKeepsContent(t *testing.T) {
	out := RenderPanel("Title", "body line")
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "body line")
	assert.GreaterOrEqual(t, len(strings.Split(out, "\n")), 3)
}
