package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/legio/legio/internal/legioerr"
)

// LifecycleState is an agent session's lifecycle state (spec §3).
type LifecycleState string

const (
	StateBooting   LifecycleState = "booting"
	StateWorking   LifecycleState = "working"
	StateStalled   LifecycleState = "stalled"
	StateCompleted LifecycleState = "completed"
	StateZombie    LifecycleState = "zombie"
)

// IsTerminal reports whether s is a terminal lifecycle state.
func (s LifecycleState) IsTerminal() bool {
	return s == StateCompleted || s == StateZombie
}

// RunStatus is an orchestration run's status.
type RunStatus string

const (
	RunActive    RunStatus = "active"
	RunCompleted RunStatus = "completed"
	RunAborted   RunStatus = "aborted"
)

// Session is one running agent instance (spec §3 "Agent session").
type Session struct {
	ID              string
	AgentName       string
	Capability      string
	WorktreePath    string
	Branch          string
	TaskID          string
	TmuxSession     string
	State           LifecycleState
	RootPID         int
	ParentAgentName string // empty means no parent
	Depth           int
	RunID           string
	StartedAt       time.Time
	LastActivity    time.Time
	StalledSince    time.Time // zero if never stalled
	EscalationLevel int
}

// Run is an orchestration episode rooted at a coordinator (spec §3 "Run").
type Run struct {
	ID                string
	StartedAt         time.Time
	EndedAt           time.Time // zero if still active
	CoordinatorSessID string
	Status            RunStatus
}

const sessionsSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id                TEXT PRIMARY KEY,
	agent_name        TEXT NOT NULL UNIQUE,
	capability        TEXT NOT NULL,
	worktree_path     TEXT NOT NULL,
	branch            TEXT NOT NULL,
	task_id           TEXT NOT NULL,
	tmux_session      TEXT NOT NULL,
	state             TEXT NOT NULL,
	root_pid          INTEGER NOT NULL DEFAULT 0,
	parent_agent_name TEXT NOT NULL DEFAULT '',
	depth             INTEGER NOT NULL DEFAULT 0,
	run_id            TEXT NOT NULL,
	started_at        TEXT NOT NULL,
	last_activity      TEXT NOT NULL,
	stalled_since     TEXT,
	escalation_level  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sessions_run ON sessions(run_id);
CREATE INDEX IF NOT EXISTS idx_sessions_state ON sessions(state);

CREATE TABLE IF NOT EXISTS runs (
	id                  TEXT PRIMARY KEY,
	started_at          TEXT NOT NULL,
	ended_at            TEXT,
	coordinator_sess_id TEXT NOT NULL DEFAULT '',
	status              TEXT NOT NULL
);
`

// SessionStore is the CRUD surface for sessions and runs (spec §4.D).
type SessionStore struct {
	db *sql.DB
}

// OpenSessionStore opens sessions.db under dir.
func OpenSessionStore(dir string) (*SessionStore, error) {
	db, err := Open(dir+"/sessions.db", sessionsSchema)
	if err != nil {
		return nil, err
	}
	return &SessionStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SessionStore) Close() error { return s.db.Close() }

func timeOrNil(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeOrZero(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Upsert inserts or replaces a session row keyed by session id (spec §4.D).
func (s *SessionStore) Upsert(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, agent_name, capability, worktree_path, branch, task_id,
			tmux_session, state, root_pid, parent_agent_name, depth, run_id,
			started_at, last_activity, stalled_since, escalation_level)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			agent_name=excluded.agent_name, capability=excluded.capability,
			worktree_path=excluded.worktree_path, branch=excluded.branch,
			task_id=excluded.task_id, tmux_session=excluded.tmux_session,
			state=excluded.state, root_pid=excluded.root_pid,
			parent_agent_name=excluded.parent_agent_name, depth=excluded.depth,
			run_id=excluded.run_id, started_at=excluded.started_at,
			last_activity=excluded.last_activity, stalled_since=excluded.stalled_since,
			escalation_level=excluded.escalation_level`,
		sess.ID, sess.AgentName, sess.Capability, sess.WorktreePath, sess.Branch, sess.TaskID,
		sess.TmuxSession, string(sess.State), sess.RootPID, sess.ParentAgentName, sess.Depth, sess.RunID,
		timeOrNil(sess.StartedAt), timeOrNil(sess.LastActivity), timeOrNil(sess.StalledSince), sess.EscalationLevel,
	)
	if err != nil {
		return fmt.Errorf("upserting session %s: %w", sess.ID, err)
	}
	return nil
}

const sessionColumns = `id, agent_name, capability, worktree_path, branch, task_id,
	tmux_session, state, root_pid, parent_agent_name, depth, run_id,
	started_at, last_activity, stalled_since, escalation_level`

func scanSession(row interface{ Scan(...interface{}) error }) (Session, error) {
	var sess Session
	var state string
	var started, last, stalled sql.NullString
	err := row.Scan(&sess.ID, &sess.AgentName, &sess.Capability, &sess.WorktreePath, &sess.Branch, &sess.TaskID,
		&sess.TmuxSession, &state, &sess.RootPID, &sess.ParentAgentName, &sess.Depth, &sess.RunID,
		&started, &last, &stalled, &sess.EscalationLevel)
	if err != nil {
		return Session{}, err
	}
	sess.State = LifecycleState(state)
	sess.StartedAt = parseTimeOrZero(started)
	sess.LastActivity = parseTimeOrZero(last)
	sess.StalledSince = parseTimeOrZero(stalled)
	return sess, nil
}

// GetByName returns the session with the given agent name.
func (s *SessionStore) GetByName(ctx context.Context, name string) (Session, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE agent_name = ?", name)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return Session{}, legioerr.NotFound("session", name)
	}
	if err != nil {
		return Session{}, fmt.Errorf("getting session %s: %w", name, err)
	}
	return sess, nil
}

// GetAll returns every session, ordered by started_at ascending.
func (s *SessionStore) GetAll(ctx context.Context) ([]Session, error) {
	return s.query(ctx, "SELECT "+sessionColumns+" FROM sessions ORDER BY started_at ASC")
}

// GetActive returns sessions whose state is not completed or zombie
// (invariant 1, spec §8).
func (s *SessionStore) GetActive(ctx context.Context) ([]Session, error) {
	return s.query(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE state NOT IN (?, ?) ORDER BY started_at ASC",
		string(StateCompleted), string(StateZombie))
}

// GetByRun returns every session belonging to a run.
func (s *SessionStore) GetByRun(ctx context.Context, runID string) ([]Session, error) {
	return s.query(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE run_id = ? ORDER BY started_at ASC", runID)
}

func (s *SessionStore) query(ctx context.Context, query string, args ...interface{}) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// MarkTerminal transitions a session to a terminal state. Only the
// lifecycle engine or watchdog may call this (spec §4.D policy); the
// transition is idempotent.
func (s *SessionStore) MarkTerminal(ctx context.Context, agentName string, state LifecycleState, at time.Time) error {
	if !state.IsTerminal() {
		return fmt.Errorf("MarkTerminal: %s is not a terminal state", state)
	}
	_, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET state = ?, last_activity = ? WHERE agent_name = ?",
		string(state), timeOrNil(at), agentName)
	if err != nil {
		return fmt.Errorf("marking session %s terminal: %w", agentName, err)
	}
	return nil
}

// CreateRun inserts a new run row. At most one active run is permitted at a
// time per project (spec §3); callers should check GetActiveRun first.
func (s *SessionStore) CreateRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (id, started_at, ended_at, coordinator_sess_id, status) VALUES (?,?,?,?,?)",
		run.ID, timeOrNil(run.StartedAt), timeOrNil(run.EndedAt), run.CoordinatorSessID, string(run.Status))
	if err != nil {
		return fmt.Errorf("creating run %s: %w", run.ID, err)
	}
	return nil
}

func scanRun(row interface{ Scan(...interface{}) error }) (Run, error) {
	var run Run
	var status string
	var started, ended sql.NullString
	if err := row.Scan(&run.ID, &started, &ended, &run.CoordinatorSessID, &status); err != nil {
		return Run{}, err
	}
	run.Status = RunStatus(status)
	run.StartedAt = parseTimeOrZero(started)
	run.EndedAt = parseTimeOrZero(ended)
	return run, nil
}

// GetRun returns a run by id.
func (s *SessionStore) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, started_at, ended_at, coordinator_sess_id, status FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return Run{}, legioerr.NotFound("run", id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("getting run %s: %w", id, err)
	}
	return run, nil
}

// GetActiveRun returns the current active run, if any.
func (s *SessionStore) GetActiveRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, started_at, ended_at, coordinator_sess_id, status FROM runs WHERE status = ? ORDER BY started_at DESC LIMIT 1",
		string(RunActive))
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return Run{}, legioerr.NotFound("run", "active")
	}
	if err != nil {
		return Run{}, fmt.Errorf("getting active run: %w", err)
	}
	return run, nil
}

// ListRuns lists runs, optionally filtered by status, newest first.
func (s *SessionStore) ListRuns(ctx context.Context, status RunStatus, limit int) ([]Run, error) {
	query := "SELECT id, started_at, ended_at, coordinator_sess_id, status FROM runs"
	args := []interface{}{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY started_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// MarkEnded sets a run's status and ended-at timestamp. Idempotent.
func (s *SessionStore) MarkEnded(ctx context.Context, id string, status RunStatus, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE runs SET status = ?, ended_at = ? WHERE id = ?", string(status), timeOrNil(at), id)
	if err != nil {
		return fmt.Errorf("ending run %s: %w", id, err)
	}
	return nil
}
