package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the settlement engine. Consumers (notification
// delivery, analytics) subscribe downstream; the engine only publishes.
const (
	TypeTransactionCreated   = "transaction.created"
	TypeTransactionApproved  = "transaction.approved"
	TypeTransactionRejected  = "transaction.rejected"
	TypeTransactionCancelled = "transaction.cancelled"
	TypeTransactionCompleted = "transaction.completed"
	TypeTransactionFailed    = "transaction.failed"
	TypeInstallmentSettled   = "installment.settled"
	TypeInstallmentFailed    = "installment.failed"
)

// Event is a lifecycle event payload.
type Event struct {
	ID            uuid.UUID              `json:"id"`
	Type          string                 `json:"type"`
	TransactionID uuid.UUID              `json:"transaction_id"`
	UserID        uuid.UUID              `json:"user_id"`
	OccurredAt    time.Time              `json:"occurred_at"`
	Data          map[string]interface{} `json:"data,omitempty"`
}

// New builds an event with a fresh id and timestamp.
func New(eventType string, transactionID, userID uuid.UUID, data map[string]interface{}) Event {
	return Event{
		ID:            uuid.New(),
		Type:          eventType,
		TransactionID: transactionID,
		UserID:        userID,
		OccurredAt:    time.Now().UTC(),
		Data:          data,
	}
}

// Sink receives lifecycle events. Implementations must be fire-and-forget:
// Emit never blocks the settlement path and errors are swallowed after logging.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// Noop discards all events.
type Noop struct{}

func (Noop) Emit(context.Context, Event) {}

// Fanout emits to every configured sink.
type Fanout []Sink

func (f Fanout) Emit(ctx context.Context, event Event) {
	for _, s := range f {
		s.Emit(ctx, event)
	}
}
