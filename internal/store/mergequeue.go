package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/legio/legio/internal/legioerr"
)

// QueueStatus is a merge-queue entry's status (spec §3 "Merge-queue entry").
type QueueStatus string

const (
	QueuePending   QueueStatus = "pending"
	QueueMerging   QueueStatus = "merging"
	QueueMerged    QueueStatus = "merged"
	QueueFailed    QueueStatus = "failed"
	QueueAbandoned QueueStatus = "abandoned"
)

// Tier is a merge-resolution strategy rank (spec §4.G, glossary "Tier").
type Tier string

const (
	TierCleanMerge  Tier = "clean-merge"
	TierAutoResolve Tier = "auto-resolve"
	TierReimagine   Tier = "reimagine"
	TierManual      Tier = "manual"
)

// QueueEntry is one branch awaiting integration (spec §3 "Merge-queue entry").
type QueueEntry struct {
	Branch        string
	BeadID        string
	AgentName     string
	FilesModified []string
	EnqueuedAt    time.Time
	Status        QueueStatus
	ResolvedTier  Tier // empty means nil
}

const mergeQueueSchema = `
CREATE TABLE IF NOT EXISTS merge_queue (
	branch         TEXT PRIMARY KEY,
	bead_id        TEXT NOT NULL DEFAULT '',
	agent_name     TEXT NOT NULL DEFAULT '',
	files_modified TEXT NOT NULL DEFAULT '[]',
	enqueued_at    TEXT NOT NULL,
	status         TEXT NOT NULL,
	resolved_tier  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_merge_queue_status_enqueued ON merge_queue(status, enqueued_at);

CREATE TABLE IF NOT EXISTS conflict_history (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	file_path   TEXT NOT NULL,
	tier        TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	strategy    TEXT NOT NULL DEFAULT '',
	recorded_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conflict_history_file ON conflict_history(file_path, recorded_at);
`

// MergeQueueStore is the FIFO merge queue plus per-file conflict history
// (spec §4.F, §4.G).
type MergeQueueStore struct {
	db *sql.DB
}

// OpenMergeQueueStore opens merge-queue.db under dir.
func OpenMergeQueueStore(dir string) (*MergeQueueStore, error) {
	db, err := Open(dir+"/merge-queue.db", mergeQueueSchema)
	if err != nil {
		return nil, err
	}
	return &MergeQueueStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *MergeQueueStore) Close() error { return s.db.Close() }

// Enqueue inserts a new entry with status=pending. Only one entry per
// branch name may exist at a time (spec §3 invariant); a second enqueue for
// the same branch fails.
func (s *MergeQueueStore) Enqueue(ctx context.Context, e QueueEntry) (QueueEntry, error) {
	if e.EnqueuedAt.IsZero() {
		e.EnqueuedAt = time.Now()
	}
	e.Status = QueuePending
	filesJSON, err := json.Marshal(e.FilesModified)
	if err != nil {
		return QueueEntry{}, fmt.Errorf("encoding files modified: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO merge_queue (branch, bead_id, agent_name, files_modified, enqueued_at, status, resolved_tier)
		VALUES (?,?,?,?,?,?,?)`,
		e.Branch, e.BeadID, e.AgentName, string(filesJSON), e.EnqueuedAt.UTC().Format(time.RFC3339Nano), string(e.Status), string(e.ResolvedTier),
	)
	if err != nil {
		return QueueEntry{}, fmt.Errorf("enqueueing branch %s: %w", e.Branch, err)
	}
	return e, nil
}

func scanEntry(row interface{ Scan(...interface{}) error }) (QueueEntry, error) {
	var e QueueEntry
	var filesJSON, status, tier, enqueued string
	if err := row.Scan(&e.Branch, &e.BeadID, &e.AgentName, &filesJSON, &enqueued, &status, &tier); err != nil {
		return QueueEntry{}, err
	}
	e.Status = QueueStatus(status)
	e.ResolvedTier = Tier(tier)
	e.EnqueuedAt, _ = time.Parse(time.RFC3339Nano, enqueued)
	_ = json.Unmarshal([]byte(filesJSON), &e.FilesModified)
	return e, nil
}

const queueColumns = `branch, bead_id, agent_name, files_modified, enqueued_at, status, resolved_tier`

// Peek returns the earliest pending entry without mutating it.
func (s *MergeQueueStore) Peek(ctx context.Context) (QueueEntry, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+queueColumns+" FROM merge_queue WHERE status = ? ORDER BY enqueued_at ASC LIMIT 1", string(QueuePending))
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return QueueEntry{}, legioerr.NotFound("merge-queue entry", "pending")
	}
	if err != nil {
		return QueueEntry{}, fmt.Errorf("peeking merge queue: %w", err)
	}
	return e, nil
}

// Dequeue returns the earliest pending entry and atomically marks it
// merging. Non-pending entries are invisible here (spec §4.F invariant).
func (s *MergeQueueStore) Dequeue(ctx context.Context) (QueueEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return QueueEntry{}, fmt.Errorf("dequeueing merge queue: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		"SELECT "+queueColumns+" FROM merge_queue WHERE status = ? ORDER BY enqueued_at ASC LIMIT 1", string(QueuePending))
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return QueueEntry{}, legioerr.NotFound("merge-queue entry", "pending")
	}
	if err != nil {
		return QueueEntry{}, fmt.Errorf("dequeueing merge queue: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "UPDATE merge_queue SET status = ? WHERE branch = ?", string(QueueMerging), e.Branch); err != nil {
		return QueueEntry{}, fmt.Errorf("marking %s merging: %w", e.Branch, err)
	}
	if err := tx.Commit(); err != nil {
		return QueueEntry{}, fmt.Errorf("committing dequeue of %s: %w", e.Branch, err)
	}

	e.Status = QueueMerging
	return e, nil
}

// ClaimByBranch returns the named entry and atomically marks it merging, the
// same contract as Dequeue but targeted at a specific branch rather than
// the FIFO head. Used by the autopilot when a merge_ready mail names a
// branch out of FIFO order. An already-merging or non-pending entry is
// reported as NotFound, matching spec §4.F's "non-pending entries are
// invisible" invariant.
func (s *MergeQueueStore) ClaimByBranch(ctx context.Context, branch string) (QueueEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return QueueEntry{}, fmt.Errorf("claiming branch %s: %w", branch, err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		"SELECT "+queueColumns+" FROM merge_queue WHERE branch = ? AND status = ?", branch, string(QueuePending))
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return QueueEntry{}, legioerr.NotFound("merge-queue entry", branch)
	}
	if err != nil {
		return QueueEntry{}, fmt.Errorf("claiming branch %s: %w", branch, err)
	}

	if _, err := tx.ExecContext(ctx, "UPDATE merge_queue SET status = ? WHERE branch = ?", string(QueueMerging), e.Branch); err != nil {
		return QueueEntry{}, fmt.Errorf("marking %s merging: %w", e.Branch, err)
	}
	if err := tx.Commit(); err != nil {
		return QueueEntry{}, fmt.Errorf("committing claim of %s: %w", e.Branch, err)
	}

	e.Status = QueueMerging
	return e, nil
}

// List returns entries, optionally filtered by status, FIFO order.
func (s *MergeQueueStore) List(ctx context.Context, status QueueStatus) ([]QueueEntry, error) {
	query := "SELECT " + queueColumns + " FROM merge_queue"
	var args []interface{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY enqueued_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing merge queue: %w", err)
	}
	defer rows.Close()

	var out []QueueEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning merge queue entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateStatus sets an entry's status and, optionally, its resolved tier.
// Updating an unknown branch is an error (spec §4.F).
func (s *MergeQueueStore) UpdateStatus(ctx context.Context, branch string, status QueueStatus, tier Tier) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE merge_queue SET status = ?, resolved_tier = ? WHERE branch = ?", string(status), string(tier), branch)
	if err != nil {
		return fmt.Errorf("updating merge queue entry %s: %w", branch, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating merge queue entry %s: %w", branch, err)
	}
	if n == 0 {
		return legioerr.NotFound("merge-queue entry", branch)
	}
	return nil
}

// ConflictOutcome is one historical tier attempt against a file.
type ConflictOutcome struct {
	FilePath   string
	Tier       Tier
	Outcome    string // "success" or "failed"
	Strategy   string
	RecordedAt time.Time
}

// RecordConflictOutcome appends a history record (spec §3 "Conflict
// history record"): tier, outcome, strategy hints, keyed per file.
func (s *MergeQueueStore) RecordConflictOutcome(ctx context.Context, o ConflictOutcome) error {
	if o.RecordedAt.IsZero() {
		o.RecordedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conflict_history (file_path, tier, outcome, strategy, recorded_at) VALUES (?,?,?,?,?)`,
		o.FilePath, string(o.Tier), o.Outcome, o.Strategy, o.RecordedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("recording conflict outcome for %s: %w", o.FilePath, err)
	}
	return nil
}

// RecentFailedTiers returns the set of tiers that most recently failed for
// filePath, used to skip historically failing tiers (spec §4.G).
func (s *MergeQueueStore) RecentFailedTiers(ctx context.Context, filePath string) (map[Tier]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tier, outcome FROM conflict_history
		WHERE file_path = ?
		ORDER BY recorded_at DESC`, filePath)
	if err != nil {
		return nil, fmt.Errorf("reading conflict history for %s: %w", filePath, err)
	}
	defer rows.Close()

	seen := map[Tier]bool{}
	failed := map[Tier]bool{}
	for rows.Next() {
		var tier, outcome string
		if err := rows.Scan(&tier, &outcome); err != nil {
			return nil, fmt.Errorf("scanning conflict history: %w", err)
		}
		t := Tier(tier)
		if seen[t] {
			continue // only the most recent outcome per tier matters
		}
		seen[t] = true
		if strings.EqualFold(outcome, "failed") {
			failed[t] = true
		}
	}
	return failed, rows.Err()
}

// HasSuccessfulTierHistory reports whether filePath has ever had a
// successful conflict resolution recorded at tier, used by the reimagine
// tier to require prior successful AI resolutions before engaging the LLM
// tool on a file (spec §4.G tier 3).
func (s *MergeQueueStore) HasSuccessfulTierHistory(ctx context.Context, filePath string, tier Tier) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM conflict_history WHERE file_path = ? AND tier = ? AND outcome = 'success'`,
		filePath, string(tier)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking reimagine history for %s: %w", filePath, err)
	}
	return count > 0, nil
}
