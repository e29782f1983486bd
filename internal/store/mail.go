package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/legio/legio/internal/legioerr"
)

// MessageType is the closed set of mail payload kinds (spec §3 "Mail message").
type MessageType string

const (
	MsgStatus      MessageType = "status"
	MsgQuestion    MessageType = "question"
	MsgResult      MessageType = "result"
	MsgError       MessageType = "error"
	MsgMergeReady  MessageType = "merge_ready"
	MsgMerged      MessageType = "merged"
	MsgMergeFailed MessageType = "merge_failed"
	MsgWorkerDone  MessageType = "worker_done"
	MsgEscalation  MessageType = "escalation"
	MsgHealthCheck MessageType = "health_check"
	MsgDispatch    MessageType = "dispatch"
	MsgAssign      MessageType = "assign"
	MsgMulchLearn  MessageType = "mulch_learn"
)

// Priority is a mail message's priority.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Message is a typed, threaded, persistent inter-agent message (spec §3
// "Mail message"). Messages are immutable once inserted except for the
// read flag, which is monotonic false->true.
type Message struct {
	ID        string
	From      string
	To        string
	Subject   string
	Body      string
	Type      MessageType
	Priority  Priority
	ThreadID  string
	Payload   string // opaque JSON, schema depends on Type
	Read      bool
	CreatedAt time.Time
}

const mailSchema = `
CREATE TABLE IF NOT EXISTS mail (
	id         TEXT PRIMARY KEY,
	from_addr  TEXT NOT NULL,
	to_addr    TEXT NOT NULL,
	subject    TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL DEFAULT '',
	type       TEXT NOT NULL,
	priority   TEXT NOT NULL DEFAULT 'normal',
	thread_id  TEXT NOT NULL DEFAULT '',
	payload    TEXT NOT NULL DEFAULT '',
	read       INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_mail_to_read_created ON mail(to_addr, read, created_at);
CREATE INDEX IF NOT EXISTS idx_mail_thread_created ON mail(thread_id, created_at);
`

// MailStore is the durable mail table (spec §4.E). Group-address expansion
// lives above this store, in the mail package's Router.
type MailStore struct {
	db *sql.DB
}

// OpenMailStore opens mail.db under dir.
func OpenMailStore(dir string) (*MailStore, error) {
	db, err := Open(dir+"/mail.db", mailSchema)
	if err != nil {
		return nil, err
	}
	return &MailStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *MailStore) Close() error { return s.db.Close() }

// NewMessageID mints an id of the form `msg-<random>`, per spec §3.
func NewMessageID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("minting message id: %w", err)
	}
	return "msg-" + hex.EncodeToString(buf), nil
}

// Insert stores a message, generating an id and created-at if absent.
func (s *MailStore) Insert(ctx context.Context, m Message) (Message, error) {
	if m.ID == "" {
		id, err := NewMessageID()
		if err != nil {
			return Message{}, err
		}
		m.ID = id
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	if m.Priority == "" {
		m.Priority = PriorityNormal
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mail (id, from_addr, to_addr, subject, body, type, priority, thread_id, payload, read, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		m.ID, m.From, m.To, m.Subject, m.Body, string(m.Type), string(m.Priority), m.ThreadID, m.Payload,
		boolToInt(m.Read), m.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return Message{}, fmt.Errorf("inserting message %s: %w", m.ID, err)
	}
	return m, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

const mailColumns = `id, from_addr, to_addr, subject, body, type, priority, thread_id, payload, read, created_at`

func scanMessage(row interface{ Scan(...interface{}) error }) (Message, error) {
	var m Message
	var typ, priority string
	var read int
	var created string
	if err := row.Scan(&m.ID, &m.From, &m.To, &m.Subject, &m.Body, &typ, &priority, &m.ThreadID, &m.Payload, &read, &created); err != nil {
		return Message{}, err
	}
	m.Type = MessageType(typ)
	m.Priority = Priority(priority)
	m.Read = read != 0
	m.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return m, nil
}

// GetByID returns a single message.
func (s *MailStore) GetByID(ctx context.Context, id string) (Message, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+mailColumns+" FROM mail WHERE id = ?", id)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return Message{}, legioerr.NotFound("message", id)
	}
	if err != nil {
		return Message{}, fmt.Errorf("getting message %s: %w", id, err)
	}
	return m, nil
}

// Filter narrows GetAll.
type Filter struct {
	From   string
	To     string
	Unread bool
}

// GetAll returns messages matching filter, newest first.
func (s *MailStore) GetAll(ctx context.Context, f Filter) ([]Message, error) {
	query := "SELECT " + mailColumns + " FROM mail"
	var clauses []string
	var args []interface{}
	if f.From != "" {
		clauses = append(clauses, "from_addr = ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		clauses = append(clauses, "to_addr = ?")
		args = append(args, f.To)
	}
	if f.Unread {
		clauses = append(clauses, "read = 0")
	}
	for i, c := range clauses {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY created_at DESC"

	return s.queryMessages(ctx, query, args...)
}

// GetUnread returns unread messages for a specific recipient, oldest first
// (the hot "unread for recipient" query, spec §4.E).
func (s *MailStore) GetUnread(ctx context.Context, agent string) ([]Message, error) {
	return s.queryMessages(ctx,
		"SELECT "+mailColumns+" FROM mail WHERE to_addr = ? AND read = 0 ORDER BY created_at ASC", agent)
}

// GetByThread returns every message in a thread, in insertion order.
func (s *MailStore) GetByThread(ctx context.Context, threadID string) ([]Message, error) {
	return s.queryMessages(ctx,
		"SELECT "+mailColumns+" FROM mail WHERE thread_id = ? ORDER BY created_at ASC", threadID)
}

func (s *MailStore) queryMessages(ctx context.Context, query string, args ...interface{}) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying mail: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkRead sets a message's read flag. Idempotent: calling it twice leaves
// the same observable state (spec §8 round-trip property).
func (s *MailStore) MarkRead(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE mail SET read = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("marking message %s read: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("marking message %s read: %w", id, err)
	}
	if n == 0 {
		return legioerr.NotFound("message", id)
	}
	return nil
}
