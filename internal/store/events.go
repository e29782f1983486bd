package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// EventType is the closed set of observable event kinds (spec §3 "Event").
type EventType string

const (
	EventToolStart    EventType = "tool_start"
	EventToolEnd      EventType = "tool_end"
	EventSessionStart EventType = "session_start"
	EventSessionEnd   EventType = "session_end"
	EventError        EventType = "error"
	EventCustom       EventType = "custom"
)

// Level is an event's severity.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Event is an append-only observation (spec §3 "Event"). IDs are
// monotonically increasing (invariant 9, spec §8); no updates or deletes
// except a whole-store purge.
type Event struct {
	ID            int64
	Timestamp     time.Time
	RunID         string
	AgentName     string
	SessionID     string
	Type          EventType
	ToolName      string
	ToolArgs      string
	ToolDurationMs int64
	Level         Level
	Data          string
}

const eventsSchema = `
CREATE TABLE IF NOT EXISTS events (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp        TEXT NOT NULL,
	run_id           TEXT NOT NULL DEFAULT '',
	agent_name       TEXT NOT NULL DEFAULT '',
	session_id       TEXT NOT NULL DEFAULT '',
	type             TEXT NOT NULL,
	tool_name        TEXT NOT NULL DEFAULT '',
	tool_args        TEXT NOT NULL DEFAULT '',
	tool_duration_ms INTEGER NOT NULL DEFAULT 0,
	level            TEXT NOT NULL DEFAULT 'info',
	data             TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_events_agent_time ON events(agent_name, timestamp);
CREATE INDEX IF NOT EXISTS idx_events_run_time ON events(run_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_events_level_time ON events(level, timestamp);
CREATE INDEX IF NOT EXISTS idx_events_type_time ON events(type, timestamp);
`

// EventStore is the append-only event log (spec §4.C).
type EventStore struct {
	db *sql.DB
}

// OpenEventStore opens events.db under dir.
func OpenEventStore(dir string) (*EventStore, error) {
	db, err := Open(dir+"/events.db", eventsSchema)
	if err != nil {
		return nil, err
	}
	return &EventStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *EventStore) Close() error { return s.db.Close() }

// Insert appends an event, assigning it a monotonic id and, if Timestamp is
// zero, the current time at microsecond resolution (spec §5 ordering
// guarantee).
func (s *EventStore) Insert(ctx context.Context, e Event) (int64, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.Level == "" {
		e.Level = LevelInfo
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events (timestamp, run_id, agent_name, session_id, type, tool_name, tool_args, tool_duration_ms, level, data)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		e.Timestamp.UTC().Format(time.RFC3339Nano), e.RunID, e.AgentName, e.SessionID, string(e.Type),
		e.ToolName, e.ToolArgs, e.ToolDurationMs, string(e.Level), e.Data,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting event: %w", err)
	}
	return res.LastInsertId()
}

// Query narrows a timeline/agent/error lookup.
type Query struct {
	Agent string
	Since time.Time
	Until time.Time
	Limit int
	Level Level
}

const eventColumns = `id, timestamp, run_id, agent_name, session_id, type, tool_name, tool_args, tool_duration_ms, level, data`

func scanEvent(row interface{ Scan(...interface{}) error }) (Event, error) {
	var e Event
	var ts string
	var typ, level string
	if err := row.Scan(&e.ID, &ts, &e.RunID, &e.AgentName, &e.SessionID, &typ,
		&e.ToolName, &e.ToolArgs, &e.ToolDurationMs, &level, &e.Data); err != nil {
		return Event{}, err
	}
	e.Type = EventType(typ)
	e.Level = Level(level)
	e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
	return e, nil
}

func (s *EventStore) queryEvents(ctx context.Context, where string, q Query) ([]Event, error) {
	query := "SELECT " + eventColumns + " FROM events"
	var args []interface{}
	var clauses []string

	if where != "" {
		clauses = append(clauses, where)
	}
	if q.Agent != "" {
		clauses = append(clauses, "agent_name = ?")
		args = append(args, q.Agent)
	}
	if !q.Since.IsZero() {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, q.Since.UTC().Format(time.RFC3339Nano))
	}
	if !q.Until.IsZero() {
		clauses = append(clauses, "timestamp <= ?")
		args = append(args, q.Until.UTC().Format(time.RFC3339Nano))
	}
	if q.Level != "" {
		clauses = append(clauses, "level = ?")
		args = append(args, string(q.Level))
	}
	for i, c := range clauses {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY timestamp ASC, id ASC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetByAgent returns events for a single agent, ascending by time.
func (s *EventStore) GetByAgent(ctx context.Context, name string, q Query) ([]Event, error) {
	q.Agent = name
	return s.queryEvents(ctx, "", q)
}

// GetTimeline returns events across all agents, ascending by time.
func (s *EventStore) GetTimeline(ctx context.Context, q Query) ([]Event, error) {
	return s.queryEvents(ctx, "", q)
}

// GetErrors returns error-level events.
func (s *EventStore) GetErrors(ctx context.Context, q Query) ([]Event, error) {
	q.Level = LevelError
	return s.queryEvents(ctx, "type = 'error' OR level = 'error'", q)
}

// ToolStat is a per-tool-name aggregate used by GetToolStats.
type ToolStat struct {
	ToolName    string
	Count       int
	AvgDuration float64
	MaxDuration int64
}

// GetToolStats returns per-tool-name counts, avg and max durations,
// optionally scoped to one agent and a since-timestamp.
func (s *EventStore) GetToolStats(ctx context.Context, agent string, since time.Time) ([]ToolStat, error) {
	query := `
		SELECT tool_name, COUNT(*), AVG(tool_duration_ms), MAX(tool_duration_ms)
		FROM events
		WHERE type = ? AND tool_name != ''`
	args := []interface{}{string(EventToolEnd)}
	if agent != "" {
		query += " AND agent_name = ?"
		args = append(args, agent)
	}
	if !since.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, since.UTC().Format(time.RFC3339Nano))
	}
	query += " GROUP BY tool_name ORDER BY tool_name ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("computing tool stats: %w", err)
	}
	defer rows.Close()

	var out []ToolStat
	for rows.Next() {
		var t ToolStat
		if err := rows.Scan(&t.ToolName, &t.Count, &t.AvgDuration, &t.MaxDuration); err != nil {
			return nil, fmt.Errorf("scanning tool stat: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
