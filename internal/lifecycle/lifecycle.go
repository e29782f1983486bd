// Package lifecycle composes the process adapter, worktree manager,
// session store, and overlay layer into the spawn/beacon operation spec
// §4.L names: validate bounds, mint a name, create a worktree and
// branch, write the overlay and identity, record a booting session row,
// start the terminal session, and deliver an activation beacon.
//
// This is the component the spec calls "L: lifecycle engine (sling/
// beacon)": "Compose A+B+D+O: spawn agent, bind task, write overlay,
// send activation beacon." The beacon text format is grounded on the
// teacher's internal/session.FormatStartupBeacon/BuildStartupPrompt
// shape (only startup_test.go survived retrieval, not its
// implementation file), adapted from gastown's recipient/sender/topic/
// molID fields to Legio's agent/task/parent/depth/startup-protocol
// fields and a "[LEGIO]" header in place of "[GAS TOWN]".
package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/legio/legio/internal/legioerr"
	"github.com/legio/legio/internal/overlay"
	"github.com/legio/legio/internal/process"
	"github.com/legio/legio/internal/session"
	"github.com/legio/legio/internal/store"
	"github.com/legio/legio/internal/worktree"
)

// Logger is the minimal logging surface the lifecycle engine needs.
type Logger interface {
	Infow(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
}

// TerminalAdapter is the subset of process.Tmux the lifecycle engine
// drives to start an agent's terminal session and deliver its beacon.
type TerminalAdapter interface {
	CreateSession(ctx context.Context, name, workdir, cmd string) error
	PanePID(ctx context.Context, name string) (int, error)
	SendKeys(ctx context.Context, session, text string) error
	ApplyTheme(ctx context.Context, sessionName string, theme process.Theme) error
}

// Config bounds spawn behavior (spec §4.L "Bounds").
type Config struct {
	MaxDepth      int
	MaxConcurrent int // max children per parent agent
	StaggerDelay  time.Duration
	LLMCommand    string        // command invoked inside the worktree, e.g. "claude"
	BeaconDelay   time.Duration // overrides the default 2s post-start delay; tests set this small
}

// Engine is the lifecycle engine. Zero value is not usable; construct
// with New.
type Engine struct {
	projectRoot string
	project     string // short project name used in tmux session names

	sessions *store.SessionStore
	events   *store.EventStore
	worktree *worktree.Manager
	tmux     TerminalAdapter
	log      Logger
	cfg      Config

	lastSpawn time.Time
}

// New returns an Engine wired to its stores and adapters.
func New(projectRoot, project string, sessions *store.SessionStore, events *store.EventStore, wt *worktree.Manager, tmux TerminalAdapter, log Logger, cfg Config) *Engine {
	return &Engine{
		projectRoot: projectRoot,
		project:     project,
		sessions:    sessions,
		events:      events,
		worktree:    wt,
		tmux:        tmux,
		log:         log,
		cfg:         cfg,
	}
}

// SpawnRequest describes a requested agent spawn (spec §4.L).
type SpawnRequest struct {
	Capability        session.Capability
	TaskID            string
	ParentAgentName   string
	Depth             int
	RunID             string
	StartPoint        string // branch to fork the worktree from; defaults to "main"
	FileScope         []string
	ActivationContext string
}

// beaconDelay is how long the engine waits after starting the terminal
// session before sending the activation beacon, giving the interactive
// LLM binary time to finish its own startup banner (spec §4.L "wait
// briefly, then send an activation beacon").
const beaconDelay = 2 * time.Second

// Spawn performs the full spawn sequence in the order spec §4.L names:
// validate, mint name, create worktree, write overlay/identity, record
// the session row, start the terminal session, send the beacon.
//
// A failure anywhere after worktree creation best-effort removes the
// worktree and branch (spec §4.L), since a half-created agent left on
// disk would confuse the next spawn attempt for the same task.
func (e *Engine) Spawn(ctx context.Context, req SpawnRequest) (store.Session, error) {
	if err := e.validate(ctx, req); err != nil {
		return store.Session{}, err
	}

	e.throttle()

	agentName, err := session.MintAgentName(req.Capability)
	if err != nil {
		return store.Session{}, fmt.Errorf("spawning %s: %w", req.Capability, err)
	}

	startPoint := req.StartPoint
	if startPoint == "" {
		startPoint = "main"
	}
	worktreePath, branch, err := e.worktree.Create(ctx, agentName, req.TaskID, startPoint)
	if err != nil {
		return store.Session{}, fmt.Errorf("spawning %s: %w", agentName, err)
	}

	sess := store.Session{
		ID:              agentName,
		AgentName:       agentName,
		Capability:      string(req.Capability),
		WorktreePath:    worktreePath,
		Branch:          branch,
		TaskID:          req.TaskID,
		TmuxSession:     session.TmuxName(e.project, agentName),
		State:           store.StateBooting,
		ParentAgentName: req.ParentAgentName,
		Depth:           req.Depth,
		RunID:           req.RunID,
		StartedAt:       time.Now(),
		LastActivity:    time.Now(),
	}

	if err := e.writeOverlay(agentName, req); err != nil {
		e.rollback(ctx, agentName)
		return store.Session{}, fmt.Errorf("spawning %s: %w", agentName, err)
	}

	if err := e.sessions.Upsert(ctx, sess); err != nil {
		e.rollback(ctx, agentName)
		return store.Session{}, fmt.Errorf("spawning %s: %w", agentName, err)
	}

	if err := e.tmux.CreateSession(ctx, sess.TmuxSession, worktreePath, e.cfg.LLMCommand); err != nil {
		e.rollback(ctx, agentName)
		return store.Session{}, fmt.Errorf("spawning %s: %w", agentName, err)
	}

	if err := e.tmux.ApplyTheme(ctx, sess.TmuxSession, process.ThemeFor(agentName, req.Capability)); err != nil {
		e.logError("applying pane theme", err)
	}

	if pid, err := e.tmux.PanePID(ctx, sess.TmuxSession); err == nil {
		sess.RootPID = pid
		if err := e.sessions.Upsert(ctx, sess); err != nil {
			e.logError("recording root pid", err)
		}
	}

	if e.events != nil {
		if _, err := e.events.Insert(ctx, store.Event{
			RunID: req.RunID, AgentName: agentName, SessionID: sess.ID,
			Type: store.EventSessionStart,
		}); err != nil {
			e.logError("recording session_start event", err)
		}
	}

	e.sendBeacon(ctx, sess)

	return sess, nil
}

func (e *Engine) validate(ctx context.Context, req SpawnRequest) error {
	if !req.Capability.Valid() {
		return legioerr.Validationf("invalid capability %q", req.Capability)
	}
	if e.cfg.MaxDepth > 0 && req.Depth >= e.cfg.MaxDepth {
		return legioerr.Validationf("depth %d exceeds max depth %d", req.Depth, e.cfg.MaxDepth)
	}
	if req.ParentAgentName != "" && e.cfg.MaxConcurrent > 0 {
		children, err := e.childCount(ctx, req.ParentAgentName)
		if err != nil {
			return fmt.Errorf("checking parent capacity: %w", err)
		}
		if children >= e.cfg.MaxConcurrent {
			return legioerr.Validationf("parent %s at max concurrent children (%d)", req.ParentAgentName, e.cfg.MaxConcurrent)
		}
	}
	return nil
}

func (e *Engine) childCount(ctx context.Context, parentAgentName string) (int, error) {
	all, err := e.sessions.GetActive(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, s := range all {
		if s.ParentAgentName == parentAgentName {
			n++
		}
	}
	return n, nil
}

// throttle enforces the configured stagger delay between successive
// spawns (spec §4.L "prevent rate-limited login storms").
func (e *Engine) throttle() {
	if e.cfg.StaggerDelay <= 0 {
		return
	}
	if e.lastSpawn.IsZero() {
		e.lastSpawn = time.Now()
		return
	}
	elapsed := time.Since(e.lastSpawn)
	if elapsed < e.cfg.StaggerDelay {
		time.Sleep(e.cfg.StaggerDelay - elapsed)
	}
	e.lastSpawn = time.Now()
}

func (e *Engine) writeOverlay(agentName string, req SpawnRequest) error {
	id, err := overlay.LoadIdentity(e.projectRoot, agentName, req.Capability)
	if err != nil {
		return fmt.Errorf("loading identity: %w", err)
	}
	if err := overlay.SaveIdentity(e.projectRoot, id); err != nil {
		return fmt.Errorf("saving identity: %w", err)
	}

	doc, err := overlay.LoadCapabilityDoc(e.projectRoot, req.Capability)
	if err != nil {
		return fmt.Errorf("loading capability doc: %w", err)
	}

	ov := overlay.Overlay{
		AgentName:         agentName,
		Capability:        req.Capability,
		TaskID:            req.TaskID,
		ParentAgentName:   req.ParentAgentName,
		Depth:             req.Depth,
		FileScope:         req.FileScope,
		ActivationContext: req.ActivationContext,
		CapabilityDoc:     doc,
	}
	return overlay.Write(e.worktree.PathFor(agentName), ov)
}

// rollback best-effort removes a partially created agent's worktree and
// branch after a failed spawn (spec §4.L).
func (e *Engine) rollback(ctx context.Context, agentName string) {
	if err := e.worktree.Remove(ctx, agentName, true); err != nil {
		e.logError("rolling back worktree after failed spawn", err)
	}
}

// BeaconFields are the structured fields Spawn renders into an
// activation beacon (spec §4.L "a structured text block identifying the
// agent, task, parent, depth, and startup protocol").
type BeaconFields struct {
	AgentName string
	TaskID    string
	Parent    string
	Depth     int
}

// FormatBeacon renders the activation beacon text sent to a newly
// created terminal session, in the teacher's "[HEADER]\nfield\nfield"
// beacon shape (internal/session.FormatStartupBeacon), adapted to
// Legio's own fields and startup protocol instead of gastown's
// recipient/sender/topic/molID.
func FormatBeacon(f BeaconFields) string {
	var b strings.Builder
	b.WriteString("[LEGIO]\n")
	fmt.Fprintf(&b, "agent: %s\n", f.AgentName)
	fmt.Fprintf(&b, "task: %s\n", f.TaskID)
	if f.Parent != "" {
		fmt.Fprintf(&b, "parent: %s\n", f.Parent)
	}
	fmt.Fprintf(&b, "depth: %d\n\n", f.Depth)
	b.WriteString("Startup protocol: read AGENTS.md in this worktree for your task briefing ")
	b.WriteString("and file scope, check mail addressed to you before starting work, and ")
	b.WriteString("report status by mailing your parent when the task completes.\n")
	return b.String()
}

func (e *Engine) sendBeacon(ctx context.Context, sess store.Session) {
	delay := e.cfg.BeaconDelay
	if delay <= 0 {
		delay = beaconDelay
	}
	time.Sleep(delay)
	text := FormatBeacon(BeaconFields{
		AgentName: sess.AgentName,
		TaskID:    sess.TaskID,
		Parent:    sess.ParentAgentName,
		Depth:     sess.Depth,
	})
	if err := e.tmux.SendKeys(ctx, sess.TmuxSession, text); err != nil {
		e.logError("sending activation beacon", err)
	}
}

func (e *Engine) logError(msg string, err error) {
	if e.log == nil {
		return
	}
	e.log.Errorw(msg, "error", err.Error())
}
