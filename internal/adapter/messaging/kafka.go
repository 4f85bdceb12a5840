package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	otelkafka "github.com/Trendyol/otel-kafka-konsumer"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/orderflow/internal/core/domain"
)

// MessageWriter is the part of the traced Kafka writer the sink needs.
type MessageWriter interface {
	WriteMessage(ctx context.Context, msg kafkago.Message) error
	Close() error
}

// NewKafkaWriter builds a Kafka writer that injects the active span into message headers.
func NewKafkaWriter(broker, topic, clientID string, tp trace.TracerProvider) (*otelkafka.Writer, error) {
	base := &kafkago.Writer{
		Addr:         kafkago.TCP(broker),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
		RequiredAcks: kafkago.RequireOne,
	}

	writer, err := otelkafka.NewWriter(base,
		otelkafka.WithTracerProvider(tp),
		otelkafka.WithPropagator(propagation.TraceContext{}),
		otelkafka.WithAttributes(
			[]attribute.KeyValue{
				semconv.MessagingDestinationNameKey.String(topic),
				attribute.String("messaging.kafka.client_id", clientID),
			},
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka writer: %w", err)
	}
	return writer, nil
}

// KafkaAuditSink publishes audit records as JSON, keyed by order id so one order's entries stay
// on one partition.
type KafkaAuditSink struct {
	writer MessageWriter
	logger *zap.Logger
}

func NewKafkaAuditSink(writer MessageWriter, logger *zap.Logger) *KafkaAuditSink {
	return &KafkaAuditSink{writer: writer, logger: logger}
}

func (s *KafkaAuditSink) Record(ctx context.Context, record domain.AuditRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(record.OrderID),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: "event-type", Value: []byte("order.created.audit")},
		},
	}
	if err := s.writer.WriteMessage(ctx, msg); err != nil {
		s.logger.Error("failed to publish audit record",
			zap.String("order_id", record.OrderID),
			zap.Error(err),
		)
		return fmt.Errorf("write audit message: %w", err)
	}

	s.logger.Debug("audit record published", zap.String("order_id", record.OrderID))
	return nil
}

func (s *KafkaAuditSink) Close() error {
	return s.writer.Close()
}
