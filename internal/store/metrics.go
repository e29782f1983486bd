package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// MetricsSnapshot is one point-in-time metrics sample persisted to
// metrics.db (spec §6 on-disk layout names `metrics.db`; the `/api/
// metrics/snapshots` endpoint reads its history). The server records one
// sample each time the live summary is served from `/api/metrics`, so the
// history is kept for inspection rather than recomputed from session
// history after the fact; old samples are not pruned.
type MetricsSnapshot struct {
	ID                 int64
	TotalSessions      int
	AverageDurationSec float64
	CreatedAt          time.Time
}

const metricsSchema = `
CREATE TABLE IF NOT EXISTS metrics_snapshots (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	total_sessions       INTEGER NOT NULL,
	average_duration_sec REAL NOT NULL,
	created_at           TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_metrics_created ON metrics_snapshots(created_at);
`

// MetricsStore is the durable trail of metrics summaries.
type MetricsStore struct {
	db *sql.DB
}

// OpenMetricsStore opens metrics.db under dir.
func OpenMetricsStore(dir string) (*MetricsStore, error) {
	db, err := Open(dir+"/metrics.db", metricsSchema)
	if err != nil {
		return nil, err
	}
	return &MetricsStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *MetricsStore) Close() error { return s.db.Close() }

// Record appends one metrics summary.
func (s *MetricsStore) Record(ctx context.Context, m MetricsSnapshot) (MetricsSnapshot, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO metrics_snapshots (total_sessions, average_duration_sec, created_at) VALUES (?,?,?)",
		m.TotalSessions, m.AverageDurationSec, m.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return MetricsSnapshot{}, fmt.Errorf("recording metrics snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return MetricsSnapshot{}, fmt.Errorf("recording metrics snapshot: %w", err)
	}
	m.ID = id
	return m, nil
}

// List returns the most recent snapshots, newest first, bounded by limit
// (0 means unlimited).
func (s *MetricsStore) List(ctx context.Context, limit int) ([]MetricsSnapshot, error) {
	query := "SELECT id, total_sessions, average_duration_sec, created_at FROM metrics_snapshots ORDER BY created_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing metrics snapshots: %w", err)
	}
	defer rows.Close()

	var out []MetricsSnapshot
	for rows.Next() {
		var m MetricsSnapshot
		var ts string
		if err := rows.Scan(&m.ID, &m.TotalSessions, &m.AverageDurationSec, &ts); err != nil {
			return nil, fmt.Errorf("scanning metrics snapshot: %w", err)
		}
		m.CreatedAt, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, m)
	}
	return out, rows.Err()
}
