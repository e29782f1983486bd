package mail

import (
	"context"
	"testing"

	"github.com/legio/legio/internal/store"
)

type fakeLister struct {
	active []store.Session
}

func (f *fakeLister) GetActive(ctx context.Context) ([]store.Session, error) {
	return f.active, nil
}

func newTestRouter(t *testing.T, active []store.Session) (*Router, *store.MailStore) {
	t.Helper()
	ms, err := store.OpenMailStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenMailStore: %v", err)
	}
	t.Cleanup(func() { ms.Close() })
	return NewRouter(ms, &fakeLister{active: active}), ms
}

func TestExpandAllExcludesSender(t *testing.T) {
	r, _ := newTestRouter(t, []store.Session{
		{AgentName: "scout-1", Capability: "scout"},
		{AgentName: "builder-2", Capability: "builder"},
	})

	got, err := r.Expand(context.Background(), "scout-1", "@all")
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(got) != 1 || got[0] != "builder-2" {
		t.Fatalf("expected sender excluded from @all expansion, got %v", got)
	}
}

func TestExpandCapabilityGroupAcceptsPlural(t *testing.T) {
	r, _ := newTestRouter(t, []store.Session{
		{AgentName: "builder-1", Capability: "builder"},
		{AgentName: "builder-2", Capability: "builder"},
		{AgentName: "reviewer-1", Capability: "reviewer"},
	})

	got, err := r.Expand(context.Background(), "reviewer-1", "@builders")
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected both builders, got %v", got)
	}
}

func TestExpandUnknownGroupErrors(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	if _, err := r.Expand(context.Background(), "scout-1", "@nonsense"); err == nil {
		t.Fatal("expected error for unknown group address")
	}
}

func TestExpandNoRecipientsErrors(t *testing.T) {
	r, _ := newTestRouter(t, []store.Session{{AgentName: "scout-1", Capability: "scout"}})
	if _, err := r.Expand(context.Background(), "scout-1", "@all"); err == nil {
		t.Fatal("expected error when expansion leaves zero recipients")
	}
}

func TestSendBroadcastSharesThreadID(t *testing.T) {
	r, _ := newTestRouter(t, []store.Session{
		{AgentName: "scout-1", Capability: "scout"},
		{AgentName: "builder-1", Capability: "builder"},
	})

	sent, err := r.Send(context.Background(), Draft{
		From: "coordinator-1", To: "@all", Subject: "status check", Type: store.MsgStatus,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(sent) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(sent))
	}
	if sent[0].ThreadID == "" || sent[0].ThreadID != sent[1].ThreadID {
		t.Fatalf("expected shared thread id across broadcast, got %q and %q", sent[0].ThreadID, sent[1].ThreadID)
	}
}

func TestSendDirectAddressSingleDelivery(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	sent, err := r.Send(context.Background(), Draft{
		From: "coordinator-1", To: "builder-1", Subject: "go", Type: store.MsgDispatch,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(sent) != 1 || sent[0].To != "builder-1" {
		t.Fatalf("expected single direct delivery, got %v", sent)
	}
}

func TestReplyDefaultsThreadToOriginalID(t *testing.T) {
	r, ms := newTestRouter(t, nil)
	orig, err := ms.Insert(context.Background(), store.Message{From: "builder-1", To: "coordinator-1", Subject: "done", Type: store.MsgResult})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	reply, err := r.Reply(context.Background(), orig, "ack", "thanks", "")
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if reply.ThreadID != orig.ID {
		t.Fatalf("expected reply threaded to original message id, got %s", reply.ThreadID)
	}
	if reply.From != orig.To || reply.To != orig.From {
		t.Fatalf("expected reply to swap from/to, got from=%s to=%s", reply.From, reply.To)
	}
}
