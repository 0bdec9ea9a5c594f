// Package tui is the full-screen progress view behind `recap watch`. It
// renders exclusively from the controller's read-only snapshot on a fixed
// tick, never from the event stream directly.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lumenvid/recap/pkg/api"
	"github.com/lumenvid/recap/pkg/session"
)

const redrawInterval = 100 * time.Millisecond

var (
	colorCyan   = lipgloss.Color("#00FFFF")
	colorGreen  = lipgloss.Color("#00FF00")
	colorYellow = lipgloss.Color("#FFFF00")
	colorRed    = lipgloss.Color("#FF0000")
	colorGray   = lipgloss.Color("#666666")

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	stepDone    = lipgloss.NewStyle().Foreground(colorGreen)
	stepActive  = lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
	stepPending = lipgloss.NewStyle().Foreground(colorGray)
	stepError   = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	statusStyle = lipgloss.NewStyle().Foreground(colorGray)
	errorStyle  = lipgloss.NewStyle().Foreground(colorRed)
	barFill     = lipgloss.NewStyle().Foreground(colorCyan)
	barEmpty    = lipgloss.NewStyle().Foreground(colorGray)
	footerStyle = lipgloss.NewStyle().Foreground(colorGray)
)

// Model is the root bubbletea model for recap watch.
type Model struct {
	ctrl    *session.Controller
	videoID string
	snap    api.SessionSnapshot

	width    int
	height   int
	quitting bool
}

func New(ctrl *session.Controller, videoID string) Model {
	return Model{
		ctrl:    ctrl,
		videoID: videoID,
		snap:    ctrl.Snapshot(),
	}
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(redrawInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "p":
			m.ctrl.Pause()
		case "r":
			m.ctrl.Resume()
		case "c":
			m.ctrl.Cancel()
		case "q", "ctrl+c":
			m.ctrl.Cancel()
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.snap = m.ctrl.Snapshot()
		if m.quitting {
			return m, nil
		}
		return m, tickCmd()
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	title := "recap — " + m.videoID
	if m.snap.Metadata != nil && m.snap.Metadata.Title != "" {
		title = "recap — " + m.snap.Metadata.Title
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")

	for _, step := range m.snap.Steps {
		b.WriteString(renderStep(step))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(m.renderProgressBar())
	b.WriteString("\n\n")

	b.WriteString(statusStyle.Render(fmt.Sprintf("status: %s   elapsed: %s",
		m.snap.Status, formatElapsed(m.snap.DurationSeconds))))
	b.WriteString("\n\n")

	if m.snap.Error != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("error [%s]: %s",
			m.snap.Error.Code, m.snap.Error.Message)))
		b.WriteString("\n\n")
	}

	b.WriteString(m.renderText())
	b.WriteString("\n")
	b.WriteString(footerStyle.Render("p pause · r resume · c cancel · q quit"))

	return b.String()
}

func renderStep(step api.StepSnapshot) string {
	switch step.Status {
	case api.StepDone:
		return stepDone.Render("  ✓ " + string(step.ID))
	case api.StepActive:
		return stepActive.Render("  ▶ " + string(step.ID))
	case api.StepFailed:
		return stepError.Render("  ✗ " + string(step.ID))
	default:
		return stepPending.Render("  · " + string(step.ID))
	}
}

func (m Model) renderProgressBar() string {
	width := m.width - 10
	if width < 10 {
		width = 40
	}
	filled := width * m.snap.Progress / 100
	bar := barFill.Render(strings.Repeat("█", filled)) +
		barEmpty.Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("  %s %3d%%", bar, m.snap.Progress)
}

// renderText shows the tail of the accumulated summary, sized to what the
// terminal has room for.
func (m Model) renderText() string {
	if m.snap.Text == "" {
		return statusStyle.Render("  (waiting for summary)")
	}

	width := m.width - 4
	if width < 20 {
		width = 76
	}
	lines := wrap(m.snap.Text, width)

	visible := m.height - len(m.snap.Steps) - 10
	if visible < 3 {
		visible = 3
	}
	if len(lines) > visible {
		lines = lines[len(lines)-visible:]
	}
	return "  " + strings.Join(lines, "\n  ") + "\n"
}

func wrap(text string, width int) []string {
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		line := ""
		for _, word := range strings.Fields(paragraph) {
			if line == "" {
				line = word
				continue
			}
			if len(line)+1+len(word) > width {
				lines = append(lines, line)
				line = word
				continue
			}
			line += " " + word
		}
		lines = append(lines, line)
	}
	return lines
}

func formatElapsed(seconds int64) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
