package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	TypeReceivableCreated   = "receivable.created"
	TypeReceivableRepayment = "receivable.repayment"
	TypeReceivableUpdated   = "receivable.updated"
	TypeReceivableDeleted   = "receivable.deleted"
)

// Event notifies downstream consumers (dashboards, list refreshers) that a
// ledger entry changed. Events are advisory: the ledger itself is the source
// of truth.
type Event struct {
	Type         string    `json:"type"`
	ReceivableID uuid.UUID `json:"receivableId"`
	Code         string    `json:"codigo"`
	Actor        string    `json:"actor,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher is the wiring default when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event Event) error { return nil }
