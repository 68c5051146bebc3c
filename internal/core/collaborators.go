package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
)

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared query helpers.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type EventType string

const (
	EventNewOrder        EventType = "NEW_ORDER"
	EventOrderCompleted  EventType = "ORDER_COMPLETED"
	EventInventoryUpdate EventType = "INVENTORY_UPDATE"
)

// Event is a fire-and-forget notification about an order.
type Event struct {
	Type       EventType `json:"type"`
	OrderID    uuid.UUID `json:"order_id"`
	AgentID    uuid.UUID `json:"agent_id"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Notifier delivers events. Delivery failures never fail the operation that raised them.
type Notifier interface {
	Notify(ctx context.Context, evt Event) error
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) error { return nil }

// notifyAll sends events after commit and logs delivery failures.
func notifyAll(ctx context.Context, n Notifier, log logrus.FieldLogger, events ...Event) {
	if n == nil {
		return
	}
	for _, evt := range events {
		if err := n.Notify(ctx, evt); err != nil {
			log.WithFields(logrus.Fields{
				"event":    evt.Type,
				"order_id": evt.OrderID,
			}).WithError(err).Warn("notification delivery failed")
		}
	}
}
