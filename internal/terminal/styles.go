package terminal

import (
	"github.com/charmbracelet/lipgloss"

	"example.com/cosmiqlink/internal/common"
	"example.com/cosmiqlink/internal/download"
)

var (
	colorFg        = lipgloss.Color("#EDEDED")
	colorMuted     = lipgloss.Color("#666666")
	colorBorder    = lipgloss.Color("#333333")
	colorHighlight = lipgloss.Color("#00A8E8")

	colorSuccess = lipgloss.Color("#50E3C2")
	colorError   = lipgloss.Color("#E00")
	colorRunning = lipgloss.Color("#00A8E8")
)

var (
	containerStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorFg).
			Padding(0, 1)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	hintStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Italic(true)

	selectedItemStyle = lipgloss.NewStyle().
				Foreground(colorHighlight).
				Bold(true)

	normalItemStyle = lipgloss.NewStyle().
			Foreground(colorFg)

	cursorStyle = lipgloss.NewStyle().
			Foreground(colorHighlight).
			Bold(true)

	runningStyle = lipgloss.NewStyle().
			Foreground(colorRunning).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)
)

const (
	iconPending = "○"
	iconActive  = "●"
	iconDone    = "✓"
)

func renderCursor(active bool) string {
	if active {
		return cursorStyle.Render("▸")
	}
	return " "
}

func renderPortName(name string, selected bool) string {
	if selected {
		return selectedItemStyle.Render(name)
	}
	return normalItemStyle.Render(name)
}

// renderPhaseIcon marks a download phase as pending, active or done relative
// to the session's current phase.
func renderPhaseIcon(current, phase download.Phase) string {
	switch {
	case current == phase:
		return runningStyle.Render(iconActive)
	case current == download.PhaseComplete,
		phase == download.PhaseAwaitingHeader && current == download.PhaseAwaitingBody:
		return successStyle.Render(iconDone)
	default:
		return mutedStyle.Render(iconPending)
	}
}

func renderByteCount(n int) string {
	return normalItemStyle.Render(common.FormatBytes(int64(n)))
}

func renderHint(text string) string {
	return hintStyle.Render(text)
}
