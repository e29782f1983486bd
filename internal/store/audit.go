package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AuditRecord is one append-only entry in audit.db, recording a
// human-or-automation action taken against the project (spec §6's
// `audit.db` and the `POST audit`/`GET audit` endpoints). The spec names
// this surface only at the API/on-disk-layout level, not in the §3 data
// model proper, so this store is intentionally small: an id, actor,
// action, and opaque detail string.
type AuditRecord struct {
	ID        int64
	Actor     string
	Action    string
	Detail    string
	CreatedAt time.Time
}

const auditSchema = `
CREATE TABLE IF NOT EXISTS audit (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	actor      TEXT NOT NULL,
	action     TEXT NOT NULL,
	detail     TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_created ON audit(created_at);
`

// AuditStore is the durable audit log.
type AuditStore struct {
	db *sql.DB
}

// OpenAuditStore opens audit.db under dir.
func OpenAuditStore(dir string) (*AuditStore, error) {
	db, err := Open(dir+"/audit.db", auditSchema)
	if err != nil {
		return nil, err
	}
	return &AuditStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *AuditStore) Close() error { return s.db.Close() }

// Record appends an audit entry, stamping CreatedAt if zero.
func (s *AuditStore) Record(ctx context.Context, r AuditRecord) (AuditRecord, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO audit (actor, action, detail, created_at) VALUES (?,?,?,?)",
		r.Actor, r.Action, r.Detail, r.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return AuditRecord{}, fmt.Errorf("recording audit entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return AuditRecord{}, fmt.Errorf("recording audit entry: %w", err)
	}
	r.ID = id
	return r, nil
}

// List returns the most recent audit entries, newest first, bounded by
// limit (0 means unlimited).
func (s *AuditStore) List(ctx context.Context, limit int) ([]AuditRecord, error) {
	query := "SELECT id, actor, action, detail, created_at FROM audit ORDER BY created_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	var out []AuditRecord
	for rows.Next() {
		var r AuditRecord
		var ts string
		if err := rows.Scan(&r.ID, &r.Actor, &r.Action, &r.Detail, &ts); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, r)
	}
	return out, rows.Err()
}
