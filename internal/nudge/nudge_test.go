package nudge

import (
	"context"
	"testing"
	"time"
)

type fakeSender struct {
	hasSession bool
	sendErr    error
	sendCount  int
}

func (f *fakeSender) HasSession(ctx context.Context, name string) bool { return f.hasSession }
func (f *fakeSender) SendKeys(ctx context.Context, session, text string) error {
	f.sendCount++
	return f.sendErr
}

func TestNudgeDebouncesByDefault(t *testing.T) {
	sender := &fakeSender{hasSession: true}
	d := New(sender, nil)
	ctx := context.Background()

	first := d.Nudge(ctx, "builder-1", "legio-demo-builder-1", "check in", false)
	if !first.Delivered {
		t.Fatalf("expected first nudge delivered, got %+v", first)
	}

	second := d.Nudge(ctx, "builder-1", "legio-demo-builder-1", "check in", false)
	if second.Delivered {
		t.Fatal("expected second immediate nudge to be debounced")
	}
	if sender.sendCount != 1 {
		t.Fatalf("expected exactly one delivery, got %d", sender.sendCount)
	}
}

func TestNudgeForceSkipsDebounce(t *testing.T) {
	sender := &fakeSender{hasSession: true}
	d := New(sender, nil)
	ctx := context.Background()

	d.Nudge(ctx, "builder-1", "legio-demo-builder-1", "check in", false)
	forced := d.Nudge(ctx, "builder-1", "legio-demo-builder-1", "check in", true)
	if !forced.Delivered {
		t.Fatalf("expected forced nudge to bypass debounce, got %+v", forced)
	}
	if sender.sendCount != 2 {
		t.Fatalf("expected two deliveries, got %d", sender.sendCount)
	}
}

func TestNudgeFailsWhenSessionNotLive(t *testing.T) {
	sender := &fakeSender{hasSession: false}
	d := New(sender, nil)
	result := d.Nudge(context.Background(), "builder-1", "legio-demo-builder-1", "check in", false)
	if result.Delivered {
		t.Fatal("expected nudge to fail when session is not live")
	}
	if sender.sendCount != 0 {
		t.Fatalf("expected no send attempts against a dead session, got %d", sender.sendCount)
	}
}

func TestNudgeRetriesOnSendFailure(t *testing.T) {
	sender := &fakeSender{hasSession: true, sendErr: errAlways{}}
	d := New(sender, nil)
	d.retryGap = time.Millisecond

	result := d.Nudge(context.Background(), "builder-1", "legio-demo-builder-1", "check in", false)
	if result.Delivered {
		t.Fatal("expected delivery to fail when every send attempt errors")
	}
	if sender.sendCount != DefaultRetries {
		t.Fatalf("expected %d attempts, got %d", DefaultRetries, sender.sendCount)
	}
}

type errAlways struct{}

func (errAlways) Error() string { return "send failed" }
