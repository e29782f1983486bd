package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m *Model) renderAgents() string {
	if len(m.agents) == 0 {
		return StateDimStyle.Render("no agents running")
	}
	var b strings.Builder
	for _, s := range m.agents {
		name := AgentNameStyle.Render(s.AgentName)
		capability := CapabilityStyle.Render(s.Capability)
		state := stateStyle(string(s.State)).Render(string(s.State))
		task := s.TaskID
		if task == "" {
			task = "-"
		}
		fmt.Fprintf(&b, "%s\t%s\t%s\ttask=%s\n", name, capability, state, task)
	}
	return b.String()
}

func (m *Model) renderFeed() string {
	if len(m.events) == 0 {
		return StateDimStyle.Render("waiting for activity...")
	}
	var b strings.Builder
	for _, e := range m.events {
		ts := TimestampStyle.Render(e.Time.Format("15:04:05"))
		actor := ActorStyle.Render(e.Actor)
		typ := eventStyle(e.Type).Render(e.Type)
		fmt.Fprintf(&b, "%s  %s  %s  %s  %s\n", ts, actor, typ, e.Target, e.Message)
	}
	return b.String()
}

func (m *Model) view() string {
	if m.width == 0 {
		return "initializing..."
	}

	header := HeaderStyle.Render("legio feed")

	agentsStyle := PanelStyle
	feedStyle := PanelStyle
	if m.focused == PanelAgents {
		agentsStyle = FocusedPanelStyle
	} else {
		feedStyle = FocusedPanelStyle
	}

	agentsPanel := agentsStyle.Render(fmt.Sprintf("agents (%d)\n%s", len(m.agents), m.agentsViewport.View()))
	feedPanel := feedStyle.Render(fmt.Sprintf("feed\n%s", m.feedViewport.View()))

	status := StatusBarStyle.Width(m.width).Render("[1] agents  [2] feed  tab: switch  r: refresh  ?: help  q: quit")

	parts := []string{header, agentsPanel, feedPanel, status}
	if m.showHelp {
		parts = append(parts, m.help.View(m.keys))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
