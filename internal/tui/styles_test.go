package tui

import "testing"

func TestStateStyle(t *testing.T) {
	tests := []struct {
		state string
		want  string
	}{
		{"working", StateWorkingStyle.Render("x")},
		{"booting", StateWorkingStyle.Render("x")},
		{"stalled", StateStalledStyle.Render("x")},
		{"zombie", StateZombieStyle.Render("x")},
		{"idle", StateDimStyle.Render("x")},
		{"", StateDimStyle.Render("x")},
	}

	for _, tc := range tests {
		t.Run(tc.state, func(t *testing.T) {
			if got := stateStyle(tc.state).Render("x"); got != tc.want {
				t.Errorf("stateStyle(%q) rendered %q, want %q", tc.state, got, tc.want)
			}
		})
	}
}

func TestEventStyle(t *testing.T) {
	known := []string{"tool_start", "tool_end", "session_start", "session_end", "error", "mail"}
	for _, typ := range known {
		t.Run(typ, func(t *testing.T) {
			want := EventStyles[typ].Render("x")
			if got := eventStyle(typ).Render("x"); got != want {
				t.Errorf("eventStyle(%q) did not return the registered style", typ)
			}
		})
	}

	t.Run("unknown falls back to dim", func(t *testing.T) {
		want := StateDimStyle.Render("x")
		if got := eventStyle("something_undeclared").Render("x"); got != want {
			t.Errorf("eventStyle(unknown) = %q, want %q", got, want)
		}
	})
}
