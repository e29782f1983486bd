package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/legio/legio/internal/store"
)

var testUpgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func newTestHub(t *testing.T) (*Hub, *store.SessionStore, *store.MailStore, *store.MergeQueueStore) {
	t.Helper()
	dir := t.TempDir()

	sessions, err := store.OpenSessionStore(dir)
	if err != nil {
		t.Fatalf("OpenSessionStore: %v", err)
	}
	t.Cleanup(func() { sessions.Close() })

	mail, err := store.OpenMailStore(dir)
	if err != nil {
		t.Fatalf("OpenMailStore: %v", err)
	}
	t.Cleanup(func() { mail.Close() })

	queue, err := store.OpenMergeQueueStore(dir)
	if err != nil {
		t.Fatalf("OpenMergeQueueStore: %v", err)
	}
	t.Cleanup(func() { queue.Close() })

	return New(sessions, mail, queue, nil, nil, time.Hour), sessions, mail, queue
}

func dialHub(t *testing.T, hub *Hub) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("upgrade: %v", err)
		}
		hub.Register(conn)
	}))
	wsURL := "ws" + srv.URL[len("http"):]
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func TestRegisterSendsCurrentSnapshotImmediately(t *testing.T) {
	hub, sessions, _, _ := newTestHub(t)
	ctx := context.Background()
	if err := sessions.Upsert(ctx, store.Session{ID: "s1", AgentName: "builder-1", State: store.StateWorking}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	// Prime lastJSON the way Run would on its first tick.
	hub.pushSnapshot(ctx, true)

	conn, cleanup := dialHub(t, hub)
	defer cleanup()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("unmarshaling frame: %v", err)
	}
	if f.Type != "snapshot" {
		t.Fatalf("expected frame type snapshot, got %q", f.Type)
	}
	if len(f.Data.Sessions) != 1 || f.Data.Sessions[0].AgentName != "builder-1" {
		t.Fatalf("expected session in snapshot, got %+v", f.Data.Sessions)
	}
}

func TestPushSnapshotSkipsWhenUnchanged(t *testing.T) {
	hub, sessions, _, _ := newTestHub(t)
	ctx := context.Background()
	if err := sessions.Upsert(ctx, store.Session{ID: "s1", AgentName: "builder-1", State: store.StateWorking}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	conn, cleanup := dialHub(t, hub)
	defer cleanup()

	hub.pushSnapshot(ctx, false) // first push: always sent, nothing to diff against
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("expected first snapshot delivered: %v", err)
	}

	hub.pushSnapshot(ctx, false) // unchanged: should not send a second message

	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected no message for an unchanged snapshot")
	}
}

func TestHandleMessageRefreshForcesPush(t *testing.T) {
	hub, sessions, _, _ := newTestHub(t)
	ctx := context.Background()
	if err := sessions.Upsert(ctx, store.Session{ID: "s1", AgentName: "builder-1", State: store.StateWorking}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	conn, cleanup := dialHub(t, hub)
	defer cleanup()

	hub.pushSnapshot(ctx, false)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("expected initial snapshot: %v", err)
	}

	hub.HandleMessage(ctx, []byte(`{"type":"refresh"}`))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("expected forced refresh to deliver a snapshot: %v", err)
	}
}

func TestHandleMessageIgnoresUnknownType(t *testing.T) {
	hub, _, _, _ := newTestHub(t)
	hub.HandleMessage(context.Background(), []byte(`{"type":"ping"}`))
	if hub.lastJSON != nil {
		t.Fatal("expected unknown message type to be a no-op")
	}
}

func TestComputeMetricsAveragesTerminalSessionsOnly(t *testing.T) {
	now := time.Now()
	sessions := []store.Session{
		{State: store.StateWorking, StartedAt: now, LastActivity: now.Add(time.Hour)}, // not terminal, excluded
		{State: store.StateCompleted, StartedAt: now, LastActivity: now.Add(10 * time.Second)},
		{State: store.StateZombie, StartedAt: now, LastActivity: now.Add(30 * time.Second)},
	}
	m := ComputeMetrics(sessions)
	if m.TotalSessions != 3 {
		t.Fatalf("expected total sessions 3, got %d", m.TotalSessions)
	}
	if m.AverageDurationSec != 20 {
		t.Fatalf("expected average duration 20s, got %v", m.AverageDurationSec)
	}
}

func TestClientCountTracksRegistrations(t *testing.T) {
	hub, _, _, _ := newTestHub(t)
	if hub.ClientCount() != 0 {
		t.Fatalf("expected zero clients initially, got %d", hub.ClientCount())
	}
	conn, cleanup := dialHub(t, hub)
	defer cleanup()
	time.Sleep(50 * time.Millisecond) // allow the server-side handler to register
	if hub.ClientCount() != 1 {
		t.Fatalf("expected one client after dial, got %d", hub.ClientCount())
	}
	_ = conn
}
