// Package watchdog runs the periodic liveness tick (spec §4.H): detect
// stalled and zombie agent sessions, and escalate stalled ones up a ladder
// from a nudge, to an AI triage verdict, to an escalation mail.
//
// The liveness ladder, escalation rungs, and per-agent health-state shape
// are grounded on the teacher's internal/deacon package (stuck.go's
// AgentHealthState/ConsecutiveFailures/Cooldown, heartbeat.go's periodic
// tick loop), rebuilt against internal/store instead of JSON files under
// a town root and internal/process instead of the gastown-specific
// orphan sweep.
package watchdog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/legio/legio/internal/legioerr"
	"github.com/legio/legio/internal/mail"
	"github.com/legio/legio/internal/nudge"
	"github.com/legio/legio/internal/process"
	"github.com/legio/legio/internal/store"
	"github.com/legio/legio/internal/triage"
)

// Logger is the minimal logging surface the watchdog needs; satisfied by
// *zap.SugaredLogger. Kept as an interface so this package doesn't import
// zap directly.
type Logger interface {
	Errorw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
}

// TmuxProbe is the tmux surface the watchdog needs to check liveness and
// find a session's pane root PID.
type TmuxProbe interface {
	HasSession(ctx context.Context, name string) bool
	PanePID(ctx context.Context, session string) (int, error)
}

// LogTailer reads the tail of an agent's most recent session log.
type LogTailer interface {
	Tail(agentName string, lines int) (string, error)
}

// Watchdog runs one liveness tick at a time over every active session.
type Watchdog struct {
	sessions      *store.SessionStore
	events        *store.EventStore
	tmux          TmuxProbe
	nudger        *nudge.Dispatcher
	classifier    *triage.Classifier
	router        *mail.Router
	logs          LogTailer
	log           Logger
	staleThresh   time.Duration
	maxRung       int
	killGrace     time.Duration
}

// Config bundles Watchdog's dependencies and tunables.
type Config struct {
	Sessions       *store.SessionStore
	Events         *store.EventStore
	Tmux           TmuxProbe
	Nudger         *nudge.Dispatcher
	Classifier     *triage.Classifier
	Router         *mail.Router
	Logs           LogTailer
	Log            Logger
	StaleThreshold time.Duration
	MaxRung        int
	KillGrace      time.Duration
}

// New returns a Watchdog from cfg.
func New(cfg Config) *Watchdog {
	return &Watchdog{
		sessions:    cfg.Sessions,
		events:      cfg.Events,
		tmux:        cfg.Tmux,
		nudger:      cfg.Nudger,
		classifier:  cfg.Classifier,
		router:      cfg.Router,
		logs:        cfg.Logs,
		log:         cfg.Log,
		staleThresh: cfg.StaleThreshold,
		maxRung:     cfg.MaxRung,
		killGrace:   cfg.KillGrace,
	}
}

// Tick runs one liveness pass over every active session. Errors from
// individual session checks are logged and swallowed: the watchdog must
// never propagate errors to the user path (spec §7).
func (w *Watchdog) Tick(ctx context.Context) {
	sessions, err := w.sessions.GetActive(ctx)
	if err != nil {
		w.logError("listing active sessions", err)
		return
	}
	for _, s := range sessions {
		w.checkSession(ctx, s)
	}
}

func (w *Watchdog) checkSession(ctx context.Context, s store.Session) {
	live := w.tmux.HasSession(ctx, s.TmuxSession)

	if !live {
		w.reconcileZombie(ctx, s)
		return
	}

	if s.RootPID > 0 {
		if pid, err := w.tmux.PanePID(ctx, s.TmuxSession); err != nil || pid != s.RootPID || !process.Alive(pid) {
			w.reconcileZombie(ctx, s)
			return
		}
	}

	if time.Since(s.LastActivity) <= w.staleThresh {
		return
	}

	w.handleStall(ctx, s)
}

// reconcileZombie implements spec §4.H "terminal session absent but
// session not in a terminal state -> mark state=zombie, append a synthetic
// session_end event with reason=watchdog".
func (w *Watchdog) reconcileZombie(ctx context.Context, s store.Session) {
	now := time.Now()
	if err := w.sessions.MarkTerminal(ctx, s.AgentName, store.StateZombie, now); err != nil {
		w.logError("marking zombie", err)
		return
	}
	if _, err := w.events.Insert(ctx, store.Event{
		AgentName: s.AgentName,
		SessionID: s.TmuxSession,
		RunID:     s.RunID,
		Type:      store.EventSessionEnd,
		Level:     store.LevelWarn,
		Data:      `{"reason":"watchdog"}`,
	}); err != nil {
		w.logError("logging synthetic session_end", err)
	}
}

// handleStall runs the escalation ladder (spec §4.H):
// rung 1: nudge with a default check-in message.
// rung 2: invoke triage and act on the verdict.
// rung >= 3: send escalation mail to the coordinator.
func (w *Watchdog) handleStall(ctx context.Context, s store.Session) {
	if s.State != store.StateStalled {
		s.State = store.StateStalled
		s.StalledSince = time.Now()
		s.EscalationLevel = 1
		if err := w.sessions.Upsert(ctx, s); err != nil {
			w.logError("marking stalled", err)
			return
		}
	}

	switch {
	case s.EscalationLevel <= 1:
		w.escalateNudge(ctx, s)
	case s.EscalationLevel == 2:
		w.escalateTriage(ctx, s)
	default:
		w.escalateMail(ctx, s)
	}
}

func (w *Watchdog) escalateNudge(ctx context.Context, s store.Session) {
	result := w.nudger.Nudge(ctx, s.AgentName, s.TmuxSession, "check in: are you still working?", false)
	if !result.Delivered {
		w.logError("nudge delivery failed", errors.New(result.Reason))
	}
	s.EscalationLevel = 2
	if err := w.sessions.Upsert(ctx, s); err != nil {
		w.logError("bumping escalation level", err)
	}
}

func (w *Watchdog) escalateTriage(ctx context.Context, s store.Session) {
	tail := ""
	if w.logs != nil {
		if t, err := w.logs.Tail(s.AgentName, triage.TailLines); err == nil {
			tail = t
		}
	}

	verdict := triage.VerdictExtend
	if w.classifier != nil {
		verdict = w.classifier.Classify(ctx, triage.Request{
			AgentName:    s.AgentName,
			LastActivity: s.LastActivity,
			LogTail:      tail,
		})
	}

	switch verdict {
	case triage.VerdictRetry:
		w.nudger.Nudge(ctx, s.AgentName, s.TmuxSession, "check in: are you still working?", true)
		s.EscalationLevel = 2
	case triage.VerdictTerminate:
		w.terminate(ctx, s)
		return
	default: // extend
		s.StalledSince = time.Now()
		s.EscalationLevel = 2
	}
	if err := w.sessions.Upsert(ctx, s); err != nil {
		w.logError("updating session after triage", err)
	}
}

func (w *Watchdog) terminate(ctx context.Context, s store.Session) {
	if s.RootPID > 0 {
		if err := process.KillTree(ctx, s.RootPID, w.killGrace); err != nil {
			w.logError("killing process tree", err)
		}
	}
	now := time.Now()
	if err := w.sessions.MarkTerminal(ctx, s.AgentName, store.StateZombie, now); err != nil {
		w.logError("marking terminated session zombie", err)
	}
	if _, err := w.events.Insert(ctx, store.Event{
		AgentName: s.AgentName,
		SessionID: s.TmuxSession,
		RunID:     s.RunID,
		Type:      store.EventSessionEnd,
		Level:     store.LevelWarn,
		Data:      `{"reason":"watchdog_terminate"}`,
	}); err != nil {
		w.logError("logging termination event", err)
	}
}

func (w *Watchdog) escalateMail(ctx context.Context, s store.Session) {
	if w.router != nil {
		if _, err := w.router.Send(ctx, mail.Draft{
			From:    "watchdog",
			To:      "@coordinator",
			Subject: fmt.Sprintf("agent %s stalled at escalation level %d", s.AgentName, s.EscalationLevel),
			Body:    fmt.Sprintf("agent %s has been stalled since %s with no recovery", s.AgentName, s.StalledSince.UTC().Format(time.RFC3339)),
			Type:    store.MsgEscalation,
		}); err != nil {
			w.logError("sending escalation mail", err)
		}
	}
	if s.EscalationLevel < w.maxRung {
		s.EscalationLevel++
		if err := w.sessions.Upsert(ctx, s); err != nil {
			w.logError("bumping escalation level", err)
		}
	}
}

func (w *Watchdog) logError(msg string, err error) {
	if w.log == nil {
		return
	}
	if legErr, ok := legioerr.As(err); ok {
		w.log.Errorw(msg, "kind", legErr.Kind, "error", legErr.Error())
		return
	}
	w.log.Errorw(msg, "error", err.Error())
}
