package listener

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rl1809/orderflow/internal/core/domain"
	"github.com/rl1809/orderflow/internal/port"
)

// AuditListener writes an audit record for every created order.
type AuditListener struct {
	sink   port.AuditSink
	logger *zap.Logger
}

func NewAuditListener(sink port.AuditSink, logger *zap.Logger) *AuditListener {
	return &AuditListener{sink: sink, logger: logger}
}

func (l *AuditListener) Name() string { return "audit" }

func (l *AuditListener) Handle(ctx context.Context, ev domain.OrderCreatedEvent) error {
	record := domain.NewAuditRecord(ev.Order)
	if err := l.sink.Record(ctx, record); err != nil {
		return fmt.Errorf("record audit entry for order %s: %w", ev.Order.ID, err)
	}
	l.logger.Debug("audit entry recorded", zap.String("order_id", ev.Order.ID))
	return nil
}
