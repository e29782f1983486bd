// Package broadcast maintains the set of long-lived WebSocket clients
// and pushes periodic snapshot diffs to them (spec §4.M "Observability
// broadcaster"). The hub keeps its clients in a mutex-guarded map and
// drops a client whose write fails; the shape is grounded on
// the pack's codeready-toolchain-tarsy WSHub
// (pkg/api/websocket.go), adapted from an ad-hoc event hub into a
// poll-diff-push loop over Legio's stores.
package broadcast

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/legio/legio/internal/autopilot"
	"github.com/legio/legio/internal/store"
)

// Logger is the minimal logging surface the broadcaster needs.
type Logger interface {
	Errorw(msg string, keysAndValues ...interface{})
}

// Snapshot is the point-in-time digest pushed to every connected client
// (spec §4.M: "active sessions, recent mail with unread count, merge
// queue contents, metrics summary, active run, autopilot state").
type Snapshot struct {
	Sessions      []store.Session     `json:"sessions"`
	RecentMail    []store.Message     `json:"recentMail"`
	UnreadCount   int                 `json:"unreadCount"`
	MergeQueue    []store.QueueEntry  `json:"mergeQueue"`
	Metrics       Metrics             `json:"metrics"`
	ActiveRun     *store.Run          `json:"activeRun,omitempty"`
	AutopilotInfo *autopilot.State    `json:"autopilot,omitempty"`
}

// Metrics summarizes session history (spec §4.M "total sessions, average
// duration").
type Metrics struct {
	TotalSessions      int     `json:"totalSessions"`
	AverageDurationSec float64 `json:"averageDurationSec"`
}

// recentMailLimit bounds how much mail a snapshot carries.
const recentMailLimit = 20

// clientMessage is the only inbound message type clients may send (spec
// §4.M "On message: accept only {type:"refresh"}").
type clientMessage struct {
	Type string `json:"type"`
}

// Hub maintains connected clients and the poll/diff/push loop.
type Hub struct {
	sessions  *store.SessionStore
	mail      *store.MailStore
	queue     *store.MergeQueueStore
	autopilot *autopilot.Autopilot
	log       Logger
	interval  time.Duration

	mu        sync.Mutex
	clients   map[*websocket.Conn]bool
	lastJSON  []byte // last pushed snapshot payload, used to diff ticks
	lastFrame []byte // last pushed envelope, resent to newly registered clients
}

// New returns a Hub wired to the stores it polls. autopilotInstance may
// be nil if the autopilot is not running.
func New(sessions *store.SessionStore, mail *store.MailStore, queue *store.MergeQueueStore, autopilotInstance *autopilot.Autopilot, log Logger, interval time.Duration) *Hub {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Hub{
		sessions:  sessions,
		mail:      mail,
		queue:     queue,
		autopilot: autopilotInstance,
		log:       log,
		interval:  interval,
		clients:   make(map[*websocket.Conn]bool),
	}
}

// Register adds an upgraded connection to the client set and immediately
// sends it the current snapshot (spec §4.M "On connect: send the current
// snapshot immediately").
func (h *Hub) Register(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = true
	last := h.lastFrame
	h.mu.Unlock()

	if last != nil {
		if err := conn.WriteMessage(websocket.TextMessage, last); err != nil {
			h.unregister(conn)
		}
	}
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
}

// ClientCount reports how many clients are currently connected.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandleMessage processes one inbound client message. Only {"type":
// "refresh"} is recognized; anything else is ignored (spec §4.M).
func (h *Hub) HandleMessage(ctx context.Context, data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if msg.Type == "refresh" {
		h.pushSnapshot(ctx, true)
	}
}

// Run polls every configured interval until ctx is cancelled, pushing a
// snapshot whenever it differs from the previous one (spec §4.M
// "Compare the serialised snapshot against the previous one; if
// unchanged, skip broadcast").
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-ticker.C:
			h.pushSnapshot(ctx, false)
		}
	}
}

// frame is the wire envelope every message to a client is wrapped in
// (spec "First frame from server: {type:"snapshot", data, timestamp}.
// Subsequent frames same shape when data changes").
type frame struct {
	Type      string    `json:"type"`
	Data      Snapshot  `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *Hub) pushSnapshot(ctx context.Context, force bool) {
	snap, err := h.gather(ctx)
	if err != nil {
		h.logError("gathering snapshot", err)
		return
	}
	// Diff on the snapshot payload alone, not the envelope: the envelope's
	// timestamp changes on every tick and would defeat idempotence on a
	// quiescent system.
	payload, err := json.Marshal(snap)
	if err != nil {
		h.logError("marshaling snapshot", err)
		return
	}

	h.mu.Lock()
	unchanged := !force && h.lastJSON != nil && string(payload) == string(h.lastJSON)
	if unchanged {
		h.mu.Unlock()
		return
	}
	h.lastJSON = payload
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	data, err := json.Marshal(frame{Type: "snapshot", Data: snap, Timestamp: time.Now()})
	if err != nil {
		h.logError("marshaling snapshot frame", err)
		return
	}

	h.mu.Lock()
	h.lastFrame = data
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			h.unregister(c)
		}
	}
}

func (h *Hub) gather(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{}

	sessions, err := h.sessions.GetAll(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	active := make([]store.Session, 0, len(sessions))
	for _, s := range sessions {
		if !s.State.IsTerminal() {
			active = append(active, s)
		}
	}
	snap.Sessions = active
	snap.Metrics = ComputeMetrics(sessions)

	if run, err := h.sessions.GetActiveRun(ctx); err == nil {
		snap.ActiveRun = &run
	}

	if h.mail != nil {
		mail, err := h.mail.GetAll(ctx, store.Filter{})
		if err != nil {
			return Snapshot{}, err
		}
		if len(mail) > recentMailLimit {
			mail = mail[:recentMailLimit]
		}
		snap.RecentMail = mail
		for _, m := range mail {
			if !m.Read {
				snap.UnreadCount++
			}
		}
	}

	if h.queue != nil {
		entries, err := h.queue.List(ctx, "")
		if err != nil {
			return Snapshot{}, err
		}
		snap.MergeQueue = entries
	}

	if h.autopilot != nil {
		state := h.autopilot.GetState()
		snap.AutopilotInfo = &state
	}

	return snap, nil
}

// ComputeMetrics summarizes a session list; exported so other readers
// (the REST `/metrics` endpoint) can compute the same summary the
// broadcaster pushes without duplicating the aggregation logic.
func ComputeMetrics(sessions []store.Session) Metrics {
	m := Metrics{TotalSessions: len(sessions)}
	var total time.Duration
	var n int
	for _, s := range sessions {
		if s.State.IsTerminal() && !s.StartedAt.IsZero() && !s.LastActivity.IsZero() {
			total += s.LastActivity.Sub(s.StartedAt)
			n++
		}
	}
	if n > 0 {
		m.AverageDurationSec = total.Seconds() / float64(n)
	}
	return m
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.Close()
		delete(h.clients, c)
	}
}

func (h *Hub) logError(msg string, err error) {
	if h.log == nil {
		return
	}
	h.log.Errorw(msg, "error", err.Error())
}
