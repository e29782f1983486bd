package tui

import (
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func tabKeyMsg() tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyTab}
}

func TestAddEventCapsHistoryAt1000(t *testing.T) {
	m := NewModel(nil, nil)

	for i := 0; i < 1200; i++ {
		m.addEvent(Event{
			Time:    time.Now(),
			Type:    "tool_start",
			Actor:   "agent",
			Message: fmt.Sprintf("event-%d", i),
		})
	}

	if len(m.events) != 1000 {
		t.Fatalf("expected event history capped at 1000, got %d", len(m.events))
	}
	// oldest 200 should have been dropped, so the first retained event is event-200
	if m.events[0].Message != "event-200" {
		t.Errorf("expected oldest retained event to be event-200, got %q", m.events[0].Message)
	}
	if m.events[len(m.events)-1].Message != "event-1199" {
		t.Errorf("expected newest event to be event-1199, got %q", m.events[len(m.events)-1].Message)
	}
}

func TestRenderAgentsEmptyState(t *testing.T) {
	m := NewModel(nil, nil)
	out := m.renderAgents()
	if !strings.Contains(out, "no agents running") {
		t.Errorf("renderAgents() with no agents = %q, want it to mention no agents running", out)
	}
}

func TestRenderFeedEmptyState(t *testing.T) {
	m := NewModel(nil, nil)
	out := m.renderFeed()
	if !strings.Contains(out, "waiting for activity") {
		t.Errorf("renderFeed() with no events = %q, want it to mention waiting for activity", out)
	}
}

func TestRenderFeedFormatsEvents(t *testing.T) {
	m := NewModel(nil, nil)
	now := time.Date(2026, 7, 31, 10, 30, 0, 0, time.UTC)
	m.addEvent(Event{Time: now, Type: "tool_start", Actor: "coder-1", Target: "bash", Message: "running tests"})

	out := m.renderFeed()
	for _, want := range []string{"10:30:00", "coder-1", "tool_start", "bash", "running tests"} {
		if !strings.Contains(out, want) {
			t.Errorf("renderFeed() output missing %q, got %q", want, out)
		}
	}
}

func TestHandleKeyTabTogglesFocus(t *testing.T) {
	m := NewModel(nil, nil)
	if m.focused != PanelAgents {
		t.Fatalf("new model should default to PanelAgents focus, got %v", m.focused)
	}

	m.width, m.height = 80, 24
	m.layout()

	next, _ := m.handleKey(tabKeyMsg())
	got := next.(*Model)
	if got.focused != PanelFeed {
		t.Errorf("after tab, focus = %v, want PanelFeed", got.focused)
	}

	next, _ = got.handleKey(tabKeyMsg())
	got = next.(*Model)
	if got.focused != PanelAgents {
		t.Errorf("after second tab, focus = %v, want PanelAgents", got.focused)
	}
}
