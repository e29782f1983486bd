package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/legio/legio/internal/store"
)

// Event is one entry in the dashboard's feed panel: an event-store row or a
// mail message, normalized to a common shape (adapted from the teacher's
// tui/feed.Event, dropping the beads-specific Rig/Role fields this system
// has no equivalent of).
type Event struct {
	Time    time.Time
	Type    string
	Actor   string
	Target  string
	Message string
}

// Source streams dashboard events, mirroring the teacher's
// tui/feed.EventSource: one implementation per backing store, merged by a
// caller into a single channel.
type Source interface {
	Events() <-chan Event
	Close() error
}

// StorePoller polls the event and mail stores on an interval and emits any
// rows newer than the last poll, since Legio's stores are sqlite tables
// rather than an appendable log a source could tail (grounded on
// internal/cli/logs.go's since-cursor polling loop).
type StorePoller struct {
	events chan Event
	cancel context.CancelFunc
}

// NewStorePoller starts polling immediately and returns a Source that emits
// until Close is called.
func NewStorePoller(eventStore *store.EventStore, mailStore *store.MailStore, interval time.Duration) *StorePoller {
	ctx, cancel := context.WithCancel(context.Background())
	p := &StorePoller{events: make(chan Event, 256), cancel: cancel}
	go p.run(ctx, eventStore, mailStore, interval)
	return p
}

func (p *StorePoller) run(ctx context.Context, eventStore *store.EventStore, mailStore *store.MailStore, interval time.Duration) {
	defer close(p.events)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sinceEvents := time.Now().Add(-interval)
	sinceMail := sinceEvents

	poll := func() {
		if eventStore != nil {
			rows, err := eventStore.GetTimeline(ctx, store.Query{Since: sinceEvents, Limit: 200})
			if err == nil {
				for _, e := range rows {
					if !p.emit(ctx, Event{
						Time:    e.Timestamp,
						Type:    string(e.Type),
						Actor:   e.AgentName,
						Target:  e.ToolName,
						Message: e.Data,
					}) {
						return
					}
					if e.Timestamp.After(sinceEvents) {
						sinceEvents = e.Timestamp
					}
				}
			}
		}
		if mailStore != nil {
			rows, err := mailStore.GetAll(ctx, store.Filter{})
			if err == nil {
				for _, m := range rows {
					if !m.CreatedAt.After(sinceMail) {
						continue
					}
					if !p.emit(ctx, Event{
						Time:    m.CreatedAt,
						Type:    "mail",
						Actor:   m.From,
						Target:  m.To,
						Message: fmt.Sprintf("[%s] %s", m.Type, m.Subject),
					}) {
						return
					}
					if m.CreatedAt.After(sinceMail) {
						sinceMail = m.CreatedAt
					}
				}
			}
		}
	}

	poll()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			poll()
		}
	}
}

func (p *StorePoller) emit(ctx context.Context, e Event) bool {
	select {
	case p.events <- e:
		return true
	case <-ctx.Done():
		return false
	}
}

// Events returns the combined event channel.
func (p *StorePoller) Events() <-chan Event {
	return p.events
}

// Close stops polling.
func (p *StorePoller) Close() error {
	p.cancel()
	return nil
}
