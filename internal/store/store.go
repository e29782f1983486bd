// Package store is the embedded, WAL-mode SQL backing for every durable
// Legio record: sessions and runs (spec §4.D), events (§4.C), mail
// (§4.E), the merge queue (§4.F), and conflict history (§4.G). Every
// store owns one database file and its own connections (spec §3
// "Ownership"); callers open a store, use it, and close it on every exit
// path (spec §5 "Scoped resource acquisition").
//
// The driver is ncruces/go-sqlite3: a pure-Go, CGO-free SQLite engine that
// natively supports journal_mode=WAL and busy_timeout, which is what lets
// the server process and ad-hoc CLI invocations share these files as
// concurrent readers with serialized writers (spec §5).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// BusyTimeout is the busy-wait window writers use before giving up on a
// lock held by another connection (spec §4.D, §5: "5-second busy timeout").
const BusyTimeout = 5 * time.Second

// Open opens (creating if necessary) a single-file SQLite database at path
// in write-ahead-log journal mode with BusyTimeout configured, and applies
// schema. Callers must Close the returned *sql.DB on every exit path.
func Open(path string, schema string) (*sql.DB, error) {
	dsn := "file:" + path + "?" + url.Values{
		"_pragma": {
			"journal_mode(WAL)",
			fmt.Sprintf("busy_timeout(%d)", BusyTimeout.Milliseconds()),
			"foreign_keys(ON)",
		},
	}.Encode()

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	// Writers serialize through the engine's locking (busy_timeout); the pool
	// holds up to 8 connections so readers can proceed concurrently under WAL.
	db.SetMaxOpenConns(8)

	ctx, cancel := context.WithTimeout(context.Background(), BusyTimeout)
	defer cancel()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema to %s: %w", path, err)
	}

	return db, nil
}
