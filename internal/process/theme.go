package process

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/legio/legio/internal/session"
)

// Theme is a tmux status-bar color scheme, letting a human glance across
// several concurrent agent panes and tell them apart (spec §4.A domain
// stack: visual distinction between concurrent agent sessions).
type Theme struct {
	Name string
	BG   string
	FG   string
}

// Palette is the curated set of visually distinct themes agents are
// assigned from.
var Palette = []Theme{
	{Name: "ocean", BG: "#1e3a5f", FG: "#e0e0e0"},
	{Name: "forest", BG: "#2d5a3d", FG: "#e0e0e0"},
	{Name: "rust", BG: "#8b4513", FG: "#f5f5dc"},
	{Name: "plum", BG: "#4a3050", FG: "#e0e0e0"},
	{Name: "slate", BG: "#4a5568", FG: "#e0e0e0"},
	{Name: "ember", BG: "#b33a00", FG: "#f5f5dc"},
	{Name: "midnight", BG: "#1a1a2e", FG: "#c0c0c0"},
	{Name: "wine", BG: "#722f37", FG: "#f5f5dc"},
	{Name: "teal", BG: "#0d5c63", FG: "#e0e0e0"},
	{Name: "copper", BG: "#6d4c41", FG: "#f5f5dc"},
}

// CoordinatorTheme is the fixed theme reserved for the project's
// coordinator session, distinct from the hashed worker palette.
func CoordinatorTheme() Theme {
	return Theme{Name: "coordinator", BG: "#3d3200", FG: "#ffd700"}
}

// SupervisorTheme is the fixed theme reserved for the supervisor session.
func SupervisorTheme() Theme {
	return Theme{Name: "supervisor", BG: "#2d1f3d", FG: "#c0b0d0"}
}

// AssignTheme deterministically picks a theme for an agent name, so the
// same agent always gets the same color across restarts.
func AssignTheme(agentName string) Theme {
	switch {
	case agentName == "":
		return Palette[0]
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(agentName))
	return Palette[int(h.Sum32())%len(Palette)]
}

// ThemeFor picks a theme for an agent, special-casing the two fixed
// capability roles that get a reserved theme instead of a hashed one.
func ThemeFor(agentName string, capability session.Capability) Theme {
	switch capability {
	case session.CapabilityCoordinator:
		return CoordinatorTheme()
	case session.CapabilitySupervisor:
		return SupervisorTheme()
	default:
		return AssignTheme(agentName)
	}
}

// Style renders the theme as a tmux status-style string, e.g.
// "bg=#1e3a5f,fg=#e0e0e0".
func (t Theme) Style() string {
	return fmt.Sprintf("bg=%s,fg=%s", t.BG, t.FG)
}

// ApplyTheme sets a session's status-style option to reflect its theme.
func (t *Tmux) ApplyTheme(ctx context.Context, sessionName string, theme Theme) error {
	_, err := t.run(ctx, "set-option", "-t", sessionName, "status-style", theme.Style())
	return err
}
