package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-94/waggle-dance/internal/packet"
)

// Theme defines the color palette and styles for terminal output.
type Theme struct {
	// Color palette - honey amber on dark terminals
	Primary lipgloss.Color
	Accent  lipgloss.Color
	Muted   lipgloss.Color

	// Chrome styles
	TitleStyle lipgloss.Style
	GoalStyle  lipgloss.Style
	PanelStyle lipgloss.Style
	HelpStyle  lipgloss.Style

	// Stream styles
	SpinnerStyle lipgloss.Style
	DetailStyle  lipgloss.Style

	// Task status styles
	StatusIdle    lipgloss.Style
	StatusWorking lipgloss.Style
	StatusWait    lipgloss.Style
	StatusDone    lipgloss.Style
	StatusError   lipgloss.Style
}

// DefaultTheme returns a theme with default colors and styles.
func DefaultTheme() *Theme {
	theme := &Theme{
		Primary: lipgloss.Color("#FFD966"),
		Accent:  lipgloss.Color("#FFB000"),
		Muted:   lipgloss.Color("#805800"),
	}

	theme.TitleStyle = lipgloss.NewStyle().
		Foreground(theme.Primary).
		Bold(true)

	theme.GoalStyle = lipgloss.NewStyle().
		Foreground(theme.Accent)

	theme.PanelStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Muted).
		Padding(0, 1)

	theme.HelpStyle = lipgloss.NewStyle().
		Foreground(theme.Muted).
		Italic(true)

	theme.SpinnerStyle = lipgloss.NewStyle().
		Foreground(theme.Accent)

	theme.DetailStyle = lipgloss.NewStyle().
		Foreground(theme.Muted)

	// Status styles - brightness-based differentiation
	theme.StatusIdle = lipgloss.NewStyle().
		Foreground(theme.Muted)

	theme.StatusWorking = lipgloss.NewStyle().
		Foreground(theme.Primary).
		Bold(true)

	theme.StatusWait = lipgloss.NewStyle().
		Foreground(theme.Accent).
		Italic(true)

	theme.StatusDone = lipgloss.NewStyle().
		Foreground(theme.Accent)

	theme.StatusError = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#000000")).
		Background(lipgloss.Color("#FFD966")).
		Bold(true)

	return theme
}

// StatusStyle returns the appropriate style for a task status.
func (t *Theme) StatusStyle(status packet.Status) lipgloss.Style {
	switch status {
	case packet.StatusWorking:
		return t.StatusWorking
	case packet.StatusWait:
		return t.StatusWait
	case packet.StatusDone:
		return t.StatusDone
	case packet.StatusError:
		return t.StatusError
	default:
		return t.StatusIdle
	}
}

// FirstLine returns s up to its first line break, trimmed.
func FirstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// Ellipsize shortens s to at most width runes, appending an ellipsis when
// anything was cut. Widths too small to hold the ellipsis return it alone.
func Ellipsize(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return "..."
	}
	return string(runes[:width-3]) + "..."
}
