package process

import (
	"testing"

	"github.com/legio/legio/internal/session"
)

func TestAssignThemeIsDeterministic(t *testing.T) {
	a := AssignTheme("builder-abc123")
	b := AssignTheme("builder-abc123")
	if a.Name != b.Name {
		t.Fatalf("expected same agent name to always get the same theme, got %s then %s", a.Name, b.Name)
	}
}

func TestThemeForReservesFixedCapabilities(t *testing.T) {
	if got := ThemeFor("coordinator-1", session.CapabilityCoordinator); got.Name != "coordinator" {
		t.Fatalf("expected coordinator theme, got %s", got.Name)
	}
	if got := ThemeFor("supervisor-1", session.CapabilitySupervisor); got.Name != "supervisor" {
		t.Fatalf("expected supervisor theme, got %s", got.Name)
	}
}

func TestParseTmuxNameAndTmuxNameAgree(t *testing.T) {
	name := session.TmuxName("demo", "builder-abc123")
	project, agent, err := session.ParseTmuxName(name)
	if err != nil {
		t.Fatalf("ParseTmuxName: %v", err)
	}
	if project != "demo" || agent != "builder-abc123" {
		t.Fatalf("expected round trip, got project=%s agent=%s", project, agent)
	}
}
