package messaging

import (
	"context"

	"go.uber.org/zap"

	"github.com/rl1809/orderflow/internal/core/domain"
)

// LogAuditSink writes the audit block to the application log.
type LogAuditSink struct {
	logger *zap.Logger
}

func NewLogAuditSink(logger *zap.Logger) *LogAuditSink {
	return &LogAuditSink{logger: logger.Named("audit")}
}

func (s *LogAuditSink) Record(ctx context.Context, record domain.AuditRecord) error {
	s.logger.Info("\n"+record.String(),
		zap.String("order_id", record.OrderID),
		zap.String("total", record.Total),
	)
	return nil
}

// LogNotifier stands in for an email gateway by logging the rendered message.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notification")}
}

func (n *LogNotifier) Notify(ctx context.Context, notification domain.Notification) error {
	n.logger.Info("=== EMAIL NOTIFICATION ===",
		zap.String("order_id", notification.OrderID),
		zap.String("to", notification.To),
		zap.String("subject", notification.Subject),
		zap.String("body", notification.Body),
	)
	return nil
}
