package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/legio/legio/internal/broadcast"
	"github.com/legio/legio/internal/store"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()

	sessions, err := store.OpenSessionStore(dir)
	if err != nil {
		t.Fatalf("OpenSessionStore: %v", err)
	}
	t.Cleanup(func() { sessions.Close() })

	mailStore, err := store.OpenMailStore(dir)
	if err != nil {
		t.Fatalf("OpenMailStore: %v", err)
	}
	t.Cleanup(func() { mailStore.Close() })

	queue, err := store.OpenMergeQueueStore(dir)
	if err != nil {
		t.Fatalf("OpenMergeQueueStore: %v", err)
	}
	t.Cleanup(func() { queue.Close() })

	hub := broadcast.New(sessions, mailStore, queue, nil, nil, time.Hour)

	srv := New(Config{StoreDir: dir, ProjectRoot: dir}, hub, nil, nil, nil)
	return srv, dir
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestHandleStatusReportsActiveSessionCount(t *testing.T) {
	srv, dir := newTestServer(t)
	sessions, err := store.OpenSessionStore(dir)
	if err != nil {
		t.Fatalf("OpenSessionStore: %v", err)
	}
	defer sessions.Close()
	if err := sessions.Upsert(context.Background(), store.Session{ID: "s1", AgentName: "builder-1", State: store.StateWorking}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	defer resp.Body.Close()
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if body["activeSessions"].(float64) != 1 {
		t.Fatalf("expected 1 active session, got %v", body["activeSessions"])
	}
}

func TestHandleAgentGetMissingReturns404(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/agents/does-not-exist")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestMailSendAndListRoundTrip(t *testing.T) {
	srv, dir := newTestServer(t)
	sessions, err := store.OpenSessionStore(dir)
	if err != nil {
		t.Fatalf("OpenSessionStore: %v", err)
	}
	defer sessions.Close()
	if err := sessions.Upsert(context.Background(), store.Session{ID: "s1", AgentName: "builder-1", State: store.StateWorking}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	draft := map[string]string{
		"from":    "lead-1",
		"to":      "builder-1",
		"subject": "status",
		"body":    "how's it going",
		"type":    string(store.MsgStatus),
	}
	payload, _ := json.Marshal(draft)
	resp, err := http.Post(ts.URL+"/api/mail/send", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST mail/send: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	listResp, err := http.Get(ts.URL + "/api/mail")
	if err != nil {
		t.Fatalf("GET mail: %v", err)
	}
	defer listResp.Body.Close()
	var messages []store.Message
	if err := json.NewDecoder(listResp.Body).Decode(&messages); err != nil {
		t.Fatalf("decoding mail list: %v", err)
	}
	if len(messages) != 1 || messages[0].Subject != "status" {
		t.Fatalf("expected one delivered message, got %+v", messages)
	}
}

func TestMethodDisciplineRejectsWrongVerb(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/health", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestIssuesStrategySetupStubsRespond(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	for _, path := range []string{"/api/issues", "/api/strategy", "/api/setup/status"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.StatusCode)
		}
	}
}

func TestMetricsRecordsSnapshotHistory(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	if _, err := http.Get(ts.URL + "/api/metrics"); err != nil {
		t.Fatalf("GET metrics: %v", err)
	}

	resp, err := http.Get(ts.URL + "/api/metrics/snapshots")
	if err != nil {
		t.Fatalf("GET metrics/snapshots: %v", err)
	}
	defer resp.Body.Close()
	var snaps []store.MetricsSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snaps); err != nil {
		t.Fatalf("decoding snapshots: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("expected one recorded snapshot, got %d", len(snaps))
	}
}
