// Package tui is the interactive dashboard `legio feed` launches by default
// in a terminal (spec §6 CLI surface names `feed`; teacher's tui/feed
// package shows the class of TUI this kind of orchestrator ships).
package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("33")  // blue
	colorSuccess = lipgloss.Color("42")  // green
	colorWarning = lipgloss.Color("214") // yellow
	colorError   = lipgloss.Color("196") // red
	colorDim     = lipgloss.Color("243") // gray
	colorAccent  = lipgloss.Color("135") // purple
)

var (
	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Padding(0, 1)

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(0, 1)

	FocusedPanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorPrimary).
				Padding(0, 1)

	AgentNameStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	CapabilityStyle   = lipgloss.NewStyle().Foreground(colorAccent)
	StateWorkingStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	StateStalledStyle = lipgloss.NewStyle().Foreground(colorWarning)
	StateZombieStyle  = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	StateDimStyle     = lipgloss.NewStyle().Foreground(colorDim)

	TimestampStyle = lipgloss.NewStyle().Foreground(colorDim)
	ActorStyle     = lipgloss.NewStyle().Foreground(colorPrimary)

	EventStyles = map[string]lipgloss.Style{
		"tool_start":    lipgloss.NewStyle().Foreground(colorPrimary),
		"tool_end":      lipgloss.NewStyle().Foreground(colorSuccess),
		"session_start": lipgloss.NewStyle().Foreground(colorSuccess).Bold(true),
		"session_end":   lipgloss.NewStyle().Foreground(colorWarning),
		"error":         lipgloss.NewStyle().Foreground(colorError).Bold(true),
		"mail":          lipgloss.NewStyle().Foreground(colorAccent),
	}

	StatusBarStyle = lipgloss.NewStyle().Background(lipgloss.Color("236")).Foreground(colorDim).Padding(0, 1)
	HelpKeyStyle   = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	HelpDescStyle  = lipgloss.NewStyle().Foreground(colorDim)
)

// stateStyle picks the style reflecting a session's lifecycle state.
func stateStyle(state string) lipgloss.Style {
	switch state {
	case "working", "booting":
		return StateWorkingStyle
	case "stalled":
		return StateStalledStyle
	case "zombie":
		return StateZombieStyle
	default:
		return StateDimStyle
	}
}

// eventStyle picks the style for one feed entry's event type, defaulting to
// plain dim text for types it doesn't recognize (mail message types included).
func eventStyle(eventType string) lipgloss.Style {
	if s, ok := EventStyles[eventType]; ok {
		return s
	}
	return StateDimStyle
}
