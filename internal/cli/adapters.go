package cli

import (
	"context"
	"fmt"

	"github.com/legio/legio/internal/mail"
	"github.com/legio/legio/internal/store"
)

// mailNotifier satisfies merge.Notifier by sending merge_failed mail to the
// coordinator alias. It lives here rather than in internal/merge so the
// resolver keeps no direct mail dependency, the same separation that keeps
// internal/triage behind the Triager interface.
type mailNotifier struct {
	router *mail.Router
}

func newMailNotifier(router *mail.Router) *mailNotifier {
	return &mailNotifier{router: router}
}

func (n *mailNotifier) NotifyMergeFailed(ctx context.Context, branch string, tier store.Tier, reason string) {
	if n == nil || n.router == nil {
		return
	}
	_, _ = n.router.Send(ctx, mail.Draft{
		From:     "coordinator",
		To:       "coordinator",
		Subject:  fmt.Sprintf("merge failed: %s", branch),
		Body:     fmt.Sprintf("branch %s exhausted tier %s: %s", branch, tier, reason),
		Type:     store.MsgMergeFailed,
		Priority: store.PriorityHigh,
	})
}
