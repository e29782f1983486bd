// Package mail expands group addresses into individual deliveries and
// threads replies (spec §3 "Mail message", §4.E "Mail store"). The
// underlying persistence is internal/store.MailStore; this package is the
// pure address-resolution layer above it, grounded on the teacher's
// internal/mail Router (its addressing grammar covered town/rig/role
// groups, mailing lists, queues, and announce channels — this rewrite
// narrows that to the spec's closed `@all` / `@<capability>` /
// `@<capability>s` grammar, since Legio has no town/rig hierarchy).
package mail

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/legio/legio/internal/session"
	"github.com/legio/legio/internal/store"
)

// SessionLister is the minimal view of active sessions the Router needs to
// expand a group address. *store.SessionStore satisfies it.
type SessionLister interface {
	GetActive(ctx context.Context) ([]store.Session, error)
}

// Router expands group addresses and sends threaded mail.
type Router struct {
	mail     *store.MailStore
	sessions SessionLister
}

// NewRouter returns a Router backed by the given mail store and session
// lister.
func NewRouter(mailStore *store.MailStore, sessions SessionLister) *Router {
	return &Router{mail: mailStore, sessions: sessions}
}

// ErrNoRecipients is returned when a group address expands to zero agents.
var ErrNoRecipients = fmt.Errorf("group address resolved to no recipients")

// Expand resolves an address into concrete agent names, excluding sender.
// A non-group address resolves to itself unconditionally (validity against
// the session table is the caller's concern, not this function's — compare
// the teacher's separate validateRecipient step).
func (r *Router) Expand(ctx context.Context, sender, addr string) ([]string, error) {
	if !session.IsGroupAddress(addr) {
		return []string{addr}, nil
	}

	active, err := r.sessions.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("expanding %s: listing active sessions: %w", addr, err)
	}

	var matches []string
	seen := map[string]bool{}
	add := func(name string) {
		if name == sender || seen[name] {
			return
		}
		seen[name] = true
		matches = append(matches, name)
	}

	if addr == session.AllAddress {
		for _, s := range active {
			add(s.AgentName)
		}
	} else {
		cap, ok := session.ParseCapabilityGroup(addr)
		if !ok {
			return nil, fmt.Errorf("expanding %s: unknown group address", addr)
		}
		for _, s := range active {
			if s.Capability == string(cap) {
				add(s.AgentName)
			}
		}
	}

	if len(matches) == 0 {
		return nil, fmt.Errorf("expanding %s: %w", addr, ErrNoRecipients)
	}
	return matches, nil
}

// Draft is the caller-supplied content of a send, before address expansion.
type Draft struct {
	From     string
	To       string // may be a group address
	Subject  string
	Body     string
	Type     store.MessageType
	Priority store.Priority
	ThreadID string // empty mints a new thread id when broadcasting
	Payload  string
}

// Send expands d.To and inserts one message per recipient. A broadcast
// (group address) shares one subject/body and a single newly minted thread
// id across every resulting message (spec §3 invariant).
func (r *Router) Send(ctx context.Context, d Draft) ([]store.Message, error) {
	recipients, err := r.Expand(ctx, d.From, d.To)
	if err != nil {
		return nil, err
	}

	threadID := d.ThreadID
	if session.IsGroupAddress(d.To) && threadID == "" {
		threadID = uuid.NewString()
	}

	var sent []store.Message
	for _, to := range recipients {
		m, err := r.mail.Insert(ctx, store.Message{
			From:     d.From,
			To:       to,
			Subject:  d.Subject,
			Body:     d.Body,
			Type:     d.Type,
			Priority: d.Priority,
			ThreadID: threadID,
			Payload:  d.Payload,
		})
		if err != nil {
			return sent, fmt.Errorf("sending to %s: %w", to, err)
		}
		sent = append(sent, m)
	}
	return sent, nil
}

// Reply inserts a response in the same thread as orig, defaulting To to
// orig's From and using orig's ID as the thread id when orig has none; orig
// itself is not updated (spec §4.E threading).
func (r *Router) Reply(ctx context.Context, orig store.Message, subject, body string, payload string) (store.Message, error) {
	threadID := orig.ThreadID
	if threadID == "" {
		threadID = orig.ID
	}
	return r.mail.Insert(ctx, store.Message{
		From:     orig.To,
		To:       orig.From,
		Subject:  subject,
		Body:     body,
		Type:     orig.Type,
		Priority: orig.Priority,
		ThreadID: threadID,
		Payload:  payload,
	})
}
