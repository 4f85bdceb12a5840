package port

import (
	"context"

	"github.com/rl1809/orderflow/internal/core/domain"
)

// EventPublisher hands an event over for asynchronous delivery. It must not wait for consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.OrderCreatedEvent) error
}

type Notifier interface {
	// Notify delivers a message to the customer-facing channel
	Notify(ctx context.Context, notification domain.Notification) error
}

type AuditSink interface {
	// Record appends an entry to the audit trail
	Record(ctx context.Context, record domain.AuditRecord) error
}

type IdempotencyStore interface {
	// Claim sets a key for idempotency check, returns false if already claimed
	Claim(ctx context.Context, key string) (bool, error)

	// Release drops a claim so a later delivery can retry the work
	Release(ctx context.Context, key string) error
}
