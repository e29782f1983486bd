// Package nudge delivers re-prompt text into a live agent session (spec
// §4.J). Delivery is debounced per agent so the watchdog and autopilot
// ticking concurrently can't double-send, and retried a bounded number of
// times since a tmux session accepting keys is not instantaneous.
package nudge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/legio/legio/internal/store"
)

// SessionSender is the minimal tmux surface a Dispatcher needs.
type SessionSender interface {
	HasSession(ctx context.Context, name string) bool
	SendKeys(ctx context.Context, session, text string) error
}

// DefaultDebounce matches spec §4.J's default debounce window.
const DefaultDebounce = 500 * time.Millisecond

// DefaultRetries matches spec §4.J's "up to 3 retries spaced 500ms apart".
const DefaultRetries = 3

// DefaultRetryDelay is the spacing between delivery retries.
const DefaultRetryDelay = 500 * time.Millisecond

// Dispatcher delivers nudges with debounce, liveness check, and retry.
type Dispatcher struct {
	tmux     SessionSender
	events   *store.EventStore
	debounce time.Duration
	retries  int
	retryGap time.Duration

	mu   sync.Mutex
	last map[string]time.Time // agentName -> last nudge time
}

// New returns a Dispatcher with spec-default debounce/retry parameters.
func New(tmux SessionSender, events *store.EventStore) *Dispatcher {
	return &Dispatcher{
		tmux:     tmux,
		events:   events,
		debounce: DefaultDebounce,
		retries:  DefaultRetries,
		retryGap: DefaultRetryDelay,
		last:     make(map[string]time.Time),
	}
}

// Result is the outcome of a nudge delivery attempt.
type Result struct {
	Delivered bool
	Reason    string
}

// Nudge resolves the agent's tmux session, checks (unless force) the
// debounce window, verifies liveness, and sends text with up to
// Dispatcher.retries attempts spaced Dispatcher.retryGap apart. Event
// logging is fire-and-forget: a logging failure never changes the
// returned Result (spec §4.J).
func (d *Dispatcher) Nudge(ctx context.Context, agentName, tmuxSession, text string, force bool) Result {
	if !force {
		d.mu.Lock()
		last, seen := d.last[agentName]
		d.mu.Unlock()
		if seen && time.Since(last) < d.debounce {
			return Result{Delivered: false, Reason: "debounced"}
		}
	}

	if !d.tmux.HasSession(ctx, tmuxSession) {
		return Result{Delivered: false, Reason: "session not live"}
	}

	var lastErr error
	for attempt := 0; attempt < d.retries; attempt++ {
		if attempt > 0 {
			time.Sleep(d.retryGap)
		}
		if err := d.tmux.SendKeys(ctx, tmuxSession, text); err != nil {
			lastErr = err
			continue
		}

		d.mu.Lock()
		d.last[agentName] = time.Now()
		d.mu.Unlock()

		d.logEvent(ctx, agentName, tmuxSession, text)
		return Result{Delivered: true}
	}

	return Result{Delivered: false, Reason: fmt.Sprintf("send failed after %d attempts: %v", d.retries, lastErr)}
}

func (d *Dispatcher) logEvent(ctx context.Context, agentName, tmuxSession, text string) {
	if d.events == nil {
		return
	}
	_, _ = d.events.Insert(ctx, store.Event{
		AgentName: agentName,
		SessionID: tmuxSession,
		Type:      store.EventCustom,
		Data:      fmt.Sprintf(`{"kind":"nudge","text":%q}`, text),
	})
}
