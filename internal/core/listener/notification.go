package listener

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rl1809/orderflow/internal/core/domain"
	"github.com/rl1809/orderflow/internal/port"
)

// NotificationListener sends the order confirmation to the customer.
type NotificationListener struct {
	notifier port.Notifier
	logger   *zap.Logger
}

func NewNotificationListener(notifier port.Notifier, logger *zap.Logger) *NotificationListener {
	return &NotificationListener{notifier: notifier, logger: logger}
}

func (l *NotificationListener) Name() string { return "notification" }

func (l *NotificationListener) Handle(ctx context.Context, ev domain.OrderCreatedEvent) error {
	msg := domain.NewOrderConfirmation(ev.Order)

	l.logger.Info("sending order confirmation",
		zap.String("order_id", ev.Order.ID),
		zap.String("customer_email", msg.To),
	)
	if err := l.notifier.Notify(ctx, msg); err != nil {
		return fmt.Errorf("notify %s: %w", msg.To, err)
	}
	l.logger.Info("order confirmation sent", zap.String("order_id", ev.Order.ID), zap.String("customer_email", msg.To))
	return nil
}
