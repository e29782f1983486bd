// Package autopilot runs the in-process tick daemon (spec §4.K): drain
// typed mail addressed to the coordinator/orchestrator aliases, drive
// merges for merge_ready messages, record escalation/error messages for
// visibility, and optionally sweep completed worktrees.
//
// The claim-then-execute ordering (mark a message read before acting on
// it, so a crash mid-action never replays it on the next tick) is
// grounded on the "CRITICAL: Delete message FIRST, before executing
// action" pattern in the lifecycle daemon retrieved from the pack's
// other_examples (internal/daemon/lifecycle.go's ProcessLifecycleRequests).
package autopilot

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/legio/legio/internal/mail"
	"github.com/legio/legio/internal/merge"
	"github.com/legio/legio/internal/store"
	"github.com/legio/legio/internal/worktree"
)

// Logger is the minimal logging surface the autopilot needs.
type Logger interface {
	Errorw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
}

// Config controls autopilot behavior (spec §4.K).
type Config struct {
	TickInterval           time.Duration
	AutoMerge              bool
	AutoCleanWorktree      bool
	CanonicalBranch        string
	AssignmentStallTimeout time.Duration
}

// Action is one recorded tick outcome, exposed in State.Actions.
type Action struct {
	At      time.Time `json:"at"`
	Type    string    `json:"type"`
	Details string    `json:"details"`
}

// maxActions bounds the ring buffer of recent actions (spec §4.K "bounded
// ring of recent actions").
const maxActions = 50

// aliases are the mail addresses the autopilot drains every tick (spec
// §4.K "coordinator and orchestrator aliases").
var aliases = []string{"coordinator", "orchestrator"}

// Autopilot is the tick daemon. Zero value is not usable; construct with
// New.
type Autopilot struct {
	mail     *store.MailStore
	router   *mail.Router
	queue    *store.MergeQueueStore
	sessions *store.SessionStore
	resolver *merge.Resolver
	worktree *worktree.Manager
	log      Logger
	cfg      Config

	mu        sync.Mutex
	running   bool
	startedAt time.Time
	stoppedAt time.Time
	lastTick  time.Time
	tickCount int64
	actions   []Action

	cancel context.CancelFunc
	done   chan struct{}
}

// New returns an Autopilot wired to its stores and the merge resolver.
func New(mailStore *store.MailStore, queue *store.MergeQueueStore, sessions *store.SessionStore, resolver *merge.Resolver, wt *worktree.Manager, log Logger, cfg Config) *Autopilot {
	return &Autopilot{
		mail:     mailStore,
		router:   mail.NewRouter(mailStore, sessions),
		queue:    queue,
		sessions: sessions,
		resolver: resolver,
		worktree: wt,
		log:      log,
		cfg:      cfg,
	}
}

// State is the deep, caller-safe snapshot returned by GetState (spec
// §4.K: "getState() returns a deep snapshot so external observers cannot
// mutate internal state").
type State struct {
	Running   bool      `json:"running"`
	StartedAt time.Time `json:"startedAt"`
	StoppedAt time.Time `json:"stoppedAt"`
	LastTick  time.Time `json:"lastTick"`
	TickCount int64     `json:"tickCount"`
	Actions   []Action  `json:"actions"`
	Config    Config    `json:"config"`
}

// GetState returns a copy of the autopilot's current state.
func (a *Autopilot) GetState() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	actions := make([]Action, len(a.actions))
	copy(actions, a.actions)
	return State{
		Running:   a.running,
		StartedAt: a.startedAt,
		StoppedAt: a.stoppedAt,
		LastTick:  a.lastTick,
		TickCount: a.tickCount,
		Actions:   actions,
		Config:    a.cfg,
	}
}

// Start begins ticking on Config.TickInterval in a background goroutine.
// Calling Start while already running is a no-op (spec §5 invariant
// "autopilot.start(); start(): one running daemon").
func (a *Autopilot) Start(ctx context.Context) {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.running = true
	a.startedAt = time.Now()
	a.stoppedAt = time.Time{}
	a.done = make(chan struct{})
	a.mu.Unlock()

	go a.loop(ctx)
}

// Stop halts the tick loop and blocks until it has exited.
func (a *Autopilot) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	cancel := a.cancel
	done := a.done
	a.mu.Unlock()

	cancel()
	<-done

	a.mu.Lock()
	a.running = false
	a.stoppedAt = time.Now()
	a.mu.Unlock()
}

func (a *Autopilot) loop(ctx context.Context) {
	defer close(a.done)
	interval := a.cfg.TickInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Tick(ctx)
		}
	}
}

// Tick runs one pass: drain unread mail for the coordinator/orchestrator
// aliases, act by message type, then optionally sweep worktrees (spec
// §4.K). Tick never returns an error: every failure is absorbed and
// logged, so the interval always continues.
func (a *Autopilot) Tick(ctx context.Context) {
	a.mu.Lock()
	a.lastTick = time.Now()
	a.tickCount++
	a.mu.Unlock()

	seen := make(map[string]bool)
	for _, alias := range aliases {
		msgs, err := a.mail.GetUnread(ctx, alias)
		if err != nil {
			a.logError("fetching unread mail", err)
			continue
		}
		for _, m := range msgs {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			a.handle(ctx, m)
		}
	}

	if a.cfg.AutoCleanWorktree {
		a.cleanWorktrees(ctx)
	}

	a.CheckStalledAssignments(ctx)
}

// CheckStalledAssignments flags agents that are alive (non-terminal state)
// but bound to a task whose LastActivity has not advanced past the
// configured timeout, and escalates to the coordinator over the same mail
// channel the watchdog's stall ladder uses (spec §7 supplement: "a second
// trigger feeding it", not a new mechanism). A session already mid-escalation
// (EscalationLevel > 0) is left to the watchdog, which owns the ladder from
// there; this only raises the first alarm.
func (a *Autopilot) CheckStalledAssignments(ctx context.Context) {
	if a.cfg.AssignmentStallTimeout <= 0 {
		return
	}
	sessions, err := a.sessions.GetAll(ctx)
	if err != nil {
		a.logError("listing sessions for stalled-assignment check", err)
		return
	}
	now := time.Now()
	for _, s := range sessions {
		if s.State.IsTerminal() || s.TaskID == "" || s.EscalationLevel > 0 {
			continue
		}
		if s.LastActivity.IsZero() || now.Sub(s.LastActivity) < a.cfg.AssignmentStallTimeout {
			continue
		}
		if a.router != nil {
			if _, err := a.router.Send(ctx, mail.Draft{
				From:    "autopilot",
				To:      "@coordinator",
				Subject: fmt.Sprintf("agent %s has not advanced task %s", s.AgentName, s.TaskID),
				Body:    fmt.Sprintf("agent %s last activity at %s, bound to task %s with no progress", s.AgentName, s.LastActivity.UTC().Format(time.RFC3339), s.TaskID),
				Type:    store.MsgEscalation,
			}); err != nil {
				a.logError("sending stalled-assignment escalation", err)
				continue
			}
		}
		s.StalledSince = now
		s.EscalationLevel = 1
		if err := a.sessions.Upsert(ctx, s); err != nil {
			a.logError("recording stalled assignment", err)
			continue
		}
		a.recordAction("stalled_assignment", fmt.Sprintf("escalated %s (task %s)", s.AgentName, s.TaskID))
	}
}

func (a *Autopilot) handle(ctx context.Context, m store.Message) {
	switch m.Type {
	case store.MsgMergeReady:
		if a.cfg.AutoMerge {
			a.handleMergeReady(ctx, m)
		} else {
			a.markRead(ctx, m.ID)
		}
	case store.MsgError, store.MsgEscalation:
		a.recordAction(string(m.Type), fmt.Sprintf("from %s: %s", m.From, m.Subject))
		a.markRead(ctx, m.ID)
	default:
		a.markRead(ctx, m.ID)
	}
}

// handleMergeReady extracts the branch from the message (payload JSON
// first, subject regex fallback, body fallback, per spec §4.K), claims
// it from the merge queue, and invokes the resolver. The message is
// marked read before the merge runs ("claim then execute"): a crash
// mid-merge never replays the mail on the next tick.
func (a *Autopilot) handleMergeReady(ctx context.Context, m store.Message) {
	a.markRead(ctx, m.ID)

	branch := extractBranch(m)
	if branch == "" {
		a.recordAction("merge_ready", fmt.Sprintf("could not extract branch from message %s", m.ID))
		return
	}

	entry, err := a.queue.ClaimByBranch(ctx, branch)
	if err != nil {
		a.recordAction("merge_ready", fmt.Sprintf("branch %s not claimable: %v", branch, err))
		return
	}

	target, err := merge.Target("", "", a.cfg.CanonicalBranch)
	if err != nil {
		a.recordAction("merge_ready", fmt.Sprintf("no merge target for %s: %v", branch, err))
		return
	}

	tier, err := a.resolver.Resolve(ctx, entry, target)
	if err != nil {
		a.recordAction("merge_ready", fmt.Sprintf("merge failed for %s: %v", branch, err))
		return
	}
	a.recordAction("merge", fmt.Sprintf("Merged branch: %s (tier=%s)", branch, tier))
}

func (a *Autopilot) markRead(ctx context.Context, id string) {
	if err := a.mail.MarkRead(ctx, id); err != nil {
		a.logError("marking mail read", err)
	}
}

func (a *Autopilot) cleanWorktrees(ctx context.Context) {
	if a.worktree == nil || a.sessions == nil {
		return
	}
	sessions, err := a.sessions.GetAll(ctx)
	if err != nil {
		a.logError("listing sessions for worktree cleanup", err)
		return
	}
	for _, s := range sessions {
		if s.State != store.StateCompleted {
			continue
		}
		if err := a.worktree.Remove(ctx, s.AgentName, false); err != nil {
			continue // likely already removed; not worth recording as an action
		}
		a.recordAction("worktree_clean", fmt.Sprintf("removed worktree for %s", s.AgentName))
	}
}

func (a *Autopilot) recordAction(actionType, details string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, Action{At: time.Now(), Type: actionType, Details: details})
	if len(a.actions) > maxActions {
		a.actions = a.actions[len(a.actions)-maxActions:]
	}
}

func (a *Autopilot) logError(msg string, err error) {
	if a.log == nil {
		return
	}
	a.log.Errorw(msg, "error", err.Error())
}

type mergeReadyPayload struct {
	Branch string `json:"branch"`
}

var subjectBranchRE = regexp.MustCompile(`legio/[\w.-]+/[\w.-]+`)

// extractBranch implements spec §4.K's fallback chain: payload JSON
// first, then a branch-shaped regex over the subject, then the body.
func extractBranch(m store.Message) string {
	if m.Payload != "" {
		var p mergeReadyPayload
		if err := json.Unmarshal([]byte(m.Payload), &p); err == nil && p.Branch != "" {
			return p.Branch
		}
	}
	if b := subjectBranchRE.FindString(m.Subject); b != "" {
		return b
	}
	return subjectBranchRE.FindString(m.Body)
}
