// Package server exposes the REST/WS API (spec §4.N): JSON read
// endpoints over every store, a small set of write endpoints, the `/ws`
// broadcaster upgrade, and a static-file SPA fallback for the web
// client bundle. Routing is grounded on the pack's
// kadirpekel-hector chi usage (pkg/transport); unlike that repo's
// long-lived service handles, each handler here opens the stores it
// needs and closes them before returning, per spec §5's "every store
// must be opened per request... and closed on all exit paths".
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/legio/legio/internal/autopilot"
	"github.com/legio/legio/internal/broadcast"
	"github.com/legio/legio/internal/mail"
	"github.com/legio/legio/internal/process"
	"github.com/legio/legio/internal/store"
)

// Logger is the minimal logging surface the server needs.
type Logger interface {
	Errorw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
}

// Server wires the HTTP router to a project's on-disk stores. Process-
// wide state is limited to the autopilot instance, the broadcast hub,
// and the tmux adapter (spec §5 "Shared resources"); every other handler
// opens and closes its own store connections per request.
type Server struct {
	storeDir   string
	projectRoot string
	publicDir  string

	hub       *broadcast.Hub
	autopilot *autopilot.Autopilot
	tmux      *process.Tmux
	log       Logger

	upgrader websocket.Upgrader
}

// Config configures a Server.
type Config struct {
	StoreDir    string // directory holding *.db files
	ProjectRoot string // project root, for worktree-relative operations
	PublicDir   string // static SPA bundle directory; empty disables static serving
}

// New returns a Server wired to its stores and the shared broadcaster/
// autopilot/tmux process-wide instances.
func New(cfg Config, hub *broadcast.Hub, autopilotInstance *autopilot.Autopilot, tmux *process.Tmux, log Logger) *Server {
	return &Server{
		storeDir:    cfg.StoreDir,
		projectRoot: cfg.ProjectRoot,
		publicDir:   cfg.PublicDir,
		hub:         hub,
		autopilot:   autopilotInstance,
		tmux:        tmux,
		log:         log,
		upgrader:    websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// Router builds the chi mux (spec §4.N "the router uses explicit
// pattern matching; parameterised paths use :name placeholders").
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/config", s.handleConfig)

		r.Get("/agents", s.handleAgentsList)
		r.Get("/agents/active", s.handleAgentsActive)
		r.Get("/agents/{name}", s.handleAgentGet)
		r.Get("/agents/{name}/inspect", s.handleAgentInspect)
		r.Get("/agents/{name}/events", s.handleAgentEvents)

		r.Get("/mail", s.handleMailList)
		r.Get("/mail/unread", s.handleMailUnread)
		r.Get("/mail/conversations", s.handleMailConversations)
		r.Get("/mail/thread/{id}", s.handleMailThread)
		r.Get("/mail/{id}", s.handleMailGet)
		r.Post("/mail/send", s.handleMailSend)

		r.Get("/events", s.handleEvents)
		r.Get("/events/errors", s.handleEventsErrors)
		r.Get("/events/tools", s.handleEventsTools)

		r.Get("/metrics", s.handleMetrics)
		r.Get("/metrics/snapshots", s.handleMetricsSnapshots)

		r.Get("/runs", s.handleRunsList)
		r.Get("/runs/active", s.handleRunActive)
		r.Get("/runs/{id}", s.handleRunGet)

		r.Get("/merge-queue", s.handleMergeQueueList)

		r.Get("/issues", s.handleIssuesStub)
		r.Get("/issues/ready", s.handleIssuesStub)
		r.Get("/issues/{id}", s.handleIssuesStub)

		r.Get("/terminal/capture", s.handleTerminalCapture)
		r.Post("/terminal/send", s.handleTerminalSend)

		r.Get("/autopilot/status", s.handleAutopilotStatus)
		r.Post("/autopilot/start", s.handleAutopilotStart)
		r.Post("/autopilot/stop", s.handleAutopilotStop)

		r.Get("/audit", s.handleAuditList)
		r.Post("/audit", s.handleAuditRecord)

		r.Get("/strategy", s.handleStrategyStub)
		r.Post("/strategy/{id}/approve", s.handleStrategyStub)
		r.Post("/strategy/{id}/dismiss", s.handleStrategyStub)

		r.Get("/setup/status", s.handleSetupStatus)
		r.Post("/setup/init", s.handleSetupInit)
	})

	r.Get("/ws", s.handleWS)

	if s.publicDir != "" {
		r.NotFound(s.handleStatic)
	}

	return r
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) logError(msg string, err error) {
	if s.log == nil {
		return
	}
	s.log.Errorw(msg, "error", err.Error())
}

// --- health/status/config ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sessions, err := store.OpenSessionStore(s.storeDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer sessions.Close()

	active, err := sessions.GetActive(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	var autopilotState interface{}
	if s.autopilot != nil {
		state := s.autopilot.GetState()
		autopilotState = state
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"activeSessions": len(active),
		"autopilot":      autopilotState,
		"time":           time.Now(),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"projectRoot": s.projectRoot})
}

// --- agents ---

func (s *Server) handleAgentsList(w http.ResponseWriter, r *http.Request) {
	sessions, err := store.OpenSessionStore(s.storeDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer sessions.Close()

	all, err := sessions.GetAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) handleAgentsActive(w http.ResponseWriter, r *http.Request) {
	sessions, err := store.OpenSessionStore(s.storeDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer sessions.Close()

	active, err := sessions.GetActive(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, active)
}

func (s *Server) handleAgentGet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	sessions, err := store.OpenSessionStore(s.storeDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer sessions.Close()

	sess, err := sessions.GetByName(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleAgentInspect(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	sessions, err := store.OpenSessionStore(s.storeDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer sessions.Close()

	sess, err := sessions.GetByName(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	var pane string
	if s.tmux != nil {
		pane, _ = s.tmux.Capture(r.Context(), sess.TmuxSession)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"session": sess, "pane": pane})
}

func (s *Server) handleAgentEvents(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	events, err := store.OpenEventStore(s.storeDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer events.Close()

	out, err := events.GetByAgent(r.Context(), name, store.Query{Limit: queryInt(r, "limit", 200)})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// --- mail ---

func (s *Server) handleMailList(w http.ResponseWriter, r *http.Request) {
	mailStore, err := store.OpenMailStore(s.storeDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer mailStore.Close()

	f := store.Filter{From: r.URL.Query().Get("from"), To: r.URL.Query().Get("to")}
	out, err := mailStore.GetAll(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMailUnread(w http.ResponseWriter, r *http.Request) {
	agent := r.URL.Query().Get("agent")
	mailStore, err := store.OpenMailStore(s.storeDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer mailStore.Close()

	out, err := mailStore.GetUnread(r.Context(), agent)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleMailConversations groups an agent's mail by thread, newest
// thread activity first, so a client can render a conversation list
// instead of a flat inbox.
func (s *Server) handleMailConversations(w http.ResponseWriter, r *http.Request) {
	agent := r.URL.Query().Get("agent")
	mailStore, err := store.OpenMailStore(s.storeDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer mailStore.Close()

	all, err := mailStore.GetAll(r.Context(), store.Filter{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	threads := make(map[string][]store.Message)
	var order []string
	for _, m := range all {
		if agent != "" && m.From != agent && m.To != agent {
			continue
		}
		key := m.ThreadID
		if key == "" {
			key = m.ID
		}
		if _, ok := threads[key]; !ok {
			order = append(order, key)
		}
		threads[key] = append(threads[key], m)
	}

	out := make([]map[string]interface{}, 0, len(order))
	for _, key := range order {
		out = append(out, map[string]interface{}{"threadId": key, "messages": threads[key]})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMailThread(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	mailStore, err := store.OpenMailStore(s.storeDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer mailStore.Close()

	out, err := mailStore.GetByThread(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMailGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	mailStore, err := store.OpenMailStore(s.storeDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer mailStore.Close()

	m, err := mailStore.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleMailSend(w http.ResponseWriter, r *http.Request) {
	var draft mail.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	mailStore, err := store.OpenMailStore(s.storeDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer mailStore.Close()

	sessions, err := store.OpenSessionStore(s.storeDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer sessions.Close()

	router := mail.NewRouter(mailStore, sessions)
	sent, err := router.Send(r.Context(), draft)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, sent)
}

// --- events ---

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, err := store.OpenEventStore(s.storeDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer events.Close()

	out, err := events.GetTimeline(r.Context(), store.Query{
		Since: queryTime(r, "since"),
		Until: queryTime(r, "until"),
		Level: store.Level(r.URL.Query().Get("level")),
		Limit: queryInt(r, "limit", 500),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleEventsErrors(w http.ResponseWriter, r *http.Request) {
	events, err := store.OpenEventStore(s.storeDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer events.Close()

	out, err := events.GetErrors(r.Context(), store.Query{Limit: queryInt(r, "limit", 200)})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleEventsTools(w http.ResponseWriter, r *http.Request) {
	events, err := store.OpenEventStore(s.storeDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer events.Close()

	out, err := events.GetToolStats(r.Context(), r.URL.Query().Get("agent"), queryTime(r, "since"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// --- metrics ---

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	sessions, err := store.OpenSessionStore(s.storeDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer sessions.Close()

	all, err := sessions.GetAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	summary := broadcast.ComputeMetrics(all)

	if metrics, err := store.OpenMetricsStore(s.storeDir); err == nil {
		defer metrics.Close()
		if _, err := metrics.Record(r.Context(), store.MetricsSnapshot{
			TotalSessions:      summary.TotalSessions,
			AverageDurationSec: summary.AverageDurationSec,
		}); err != nil {
			s.logError("recording metrics snapshot", err)
		}
	}

	writeJSON(w, http.StatusOK, summary)
}

// handleMetricsSnapshots returns the historical trail of metrics
// summaries recorded on prior /metrics reads.
func (s *Server) handleMetricsSnapshots(w http.ResponseWriter, r *http.Request) {
	metrics, err := store.OpenMetricsStore(s.storeDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer metrics.Close()

	out, err := metrics.List(r.Context(), queryInt(r, "limit", 100))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// --- runs ---

func (s *Server) handleRunsList(w http.ResponseWriter, r *http.Request) {
	sessions, err := store.OpenSessionStore(s.storeDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer sessions.Close()

	out, err := sessions.ListRuns(r.Context(), store.RunStatus(r.URL.Query().Get("status")), queryInt(r, "limit", 100))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRunActive(w http.ResponseWriter, r *http.Request) {
	sessions, err := store.OpenSessionStore(s.storeDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer sessions.Close()

	run, err := sessions.GetActiveRun(r.Context())
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleRunGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sessions, err := store.OpenSessionStore(s.storeDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer sessions.Close()

	run, err := sessions.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// --- merge queue ---

func (s *Server) handleMergeQueueList(w http.ResponseWriter, r *http.Request) {
	queue, err := store.OpenMergeQueueStore(s.storeDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer queue.Close()

	out, err := queue.List(r.Context(), store.QueueStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// --- issues (out of scope per spec: thin wrapper over an external
// issue-tracker CLI that this module does not implement) ---

func (s *Server) handleIssuesStub(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []interface{}{})
}

// --- terminal ---

func (s *Server) handleTerminalCapture(w http.ResponseWriter, r *http.Request) {
	if s.tmux == nil {
		writeError(w, http.StatusInternalServerError, errNoTerminalAdapter)
		return
	}
	agent := r.URL.Query().Get("agent")
	out, err := s.tmux.Capture(r.Context(), agent)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"pane": out})
}

type terminalSendRequest struct {
	Session string `json:"session"`
	Text    string `json:"text"`
}

func (s *Server) handleTerminalSend(w http.ResponseWriter, r *http.Request) {
	if s.tmux == nil {
		writeError(w, http.StatusInternalServerError, errNoTerminalAdapter)
		return
	}
	var req terminalSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.tmux.SendKeys(r.Context(), req.Session, req.Text); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// --- autopilot ---

func (s *Server) handleAutopilotStatus(w http.ResponseWriter, r *http.Request) {
	if s.autopilot == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"running": false})
		return
	}
	writeJSON(w, http.StatusOK, s.autopilot.GetState())
}

func (s *Server) handleAutopilotStart(w http.ResponseWriter, r *http.Request) {
	if s.autopilot == nil {
		writeError(w, http.StatusInternalServerError, errNoAutopilot)
		return
	}
	s.autopilot.Start(context.Background())
	writeJSON(w, http.StatusOK, s.autopilot.GetState())
}

func (s *Server) handleAutopilotStop(w http.ResponseWriter, r *http.Request) {
	if s.autopilot == nil {
		writeError(w, http.StatusInternalServerError, errNoAutopilot)
		return
	}
	s.autopilot.Stop()
	writeJSON(w, http.StatusOK, s.autopilot.GetState())
}

// --- audit ---

func (s *Server) handleAuditList(w http.ResponseWriter, r *http.Request) {
	audit, err := store.OpenAuditStore(s.storeDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer audit.Close()

	out, err := audit.List(r.Context(), queryInt(r, "limit", 200))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAuditRecord(w http.ResponseWriter, r *http.Request) {
	var rec store.AuditRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	audit, err := store.OpenAuditStore(s.storeDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer audit.Close()

	saved, err := audit.Record(r.Context(), rec)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// --- strategy (out of scope: covered only as a contract; no strategy
// engine is modeled by spec §3) ---

func (s *Server) handleStrategyStub(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []interface{}{})
}

// --- setup ---

func (s *Server) handleSetupStatus(w http.ResponseWriter, r *http.Request) {
	_, err := os.Stat(filepath.Join(s.projectRoot, ".legio", "config.yaml"))
	writeJSON(w, http.StatusOK, map[string]bool{"initialized": err == nil})
}

func (s *Server) handleSetupInit(w http.ResponseWriter, r *http.Request) {
	// Doctor/init scaffolding is covered only as a contract (spec
	// Non-goals); this endpoint only creates an empty .legio directory when
	// it is missing and writes no config or other first-run scaffolding.
	if _, err := os.Stat(filepath.Join(s.projectRoot, ".legio")); err == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "already initialized"})
		return
	}
	if err := os.MkdirAll(filepath.Join(s.projectRoot, ".legio"), 0755); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "initialized"})
}

// --- websocket ---

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logError("upgrading websocket connection", err)
		return
	}
	s.hub.Register(conn)

	go func() {
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.hub.HandleMessage(r.Context(), data)
		}
	}()
}

// --- static SPA ---

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	path := filepath.Join(s.publicDir, filepath.Clean(r.URL.Path))
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		http.ServeFile(w, r, path)
		return
	}
	http.ServeFile(w, r, filepath.Join(s.publicDir, "index.html"))
}

// --- query helpers ---

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func queryTime(r *http.Request, key string) time.Time {
	v := r.URL.Query().Get(key)
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

var errNoTerminalAdapter = errNoAdapter("terminal adapter not configured")
var errNoAutopilot = errNoAdapter("autopilot not configured")

type errNoAdapter string

func (e errNoAdapter) Error() string { return string(e) }
