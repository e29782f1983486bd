package process

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestAliveSelf(t *testing.T) {
	if !Alive(os.Getpid()) {
		t.Fatal("expected processAlive(self) to always be true")
	}
}

func TestAliveRejectsNonPositive(t *testing.T) {
	if Alive(0) || Alive(-1) {
		t.Fatal("expected non-positive pids to be reported dead")
	}
}

func TestKillTreeOnAlreadyDeadRootIsNoop(t *testing.T) {
	// A pid unlikely to be alive; KillTree must not error or hang.
	done := make(chan error, 1)
	go func() { done <- KillTree(context.Background(), 999999, 10*time.Millisecond) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("KillTree on dead pid: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("KillTree did not return in time")
	}
}
