// Package notify delivers notifications produced by the forecast generator
// and the alert evaluator. Delivery is fire-and-forget: failures are logged
// and dropped, never surfaced to the producing code path.
package notify

import (
	"context"
	"log"

	"github.com/hydronote/groundwatch/internal/domain"
	"github.com/hydronote/groundwatch/internal/metrics"
	"github.com/hydronote/groundwatch/internal/store"
)

type Sink interface {
	Emit(ctx context.Context, n *domain.Notification)
}

// Dispatcher writes every notification to the in-app inbox and additionally
// sends email when a sender is configured and the notification asks for it.
type Dispatcher struct {
	store  *store.Store
	sender *EmailSender
}

// NewDispatcher creates a dispatcher. The sender may be nil, which makes
// email delivery a no-op.
func NewDispatcher(st *store.Store, sender *EmailSender) *Dispatcher {
	return &Dispatcher{
		store:  st,
		sender: sender,
	}
}

func (d *Dispatcher) Emit(ctx context.Context, n *domain.Notification) {
	if err := d.store.AppendNotification(ctx, n); err != nil {
		log.Printf("Failed to store notification %s: %v", n.ID, err)
		return
	}

	metrics.RecordNotificationEmitted(string(n.Severity))

	if n.Email && d.sender != nil {
		if err := d.sender.Send(n); err != nil {
			log.Printf("Failed to email notification %s: %v", n.ID, err)
		}
	}
}
