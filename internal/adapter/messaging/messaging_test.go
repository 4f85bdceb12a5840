package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rl1809/orderflow/internal/core/domain"
)

type fakeWriter struct {
	messages []kafkago.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessage(ctx context.Context, msg kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msg)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type fakePublisher struct {
	exchange   string
	routingKey string
	published  []amqp.Publishing
	err        error
}

func (p *fakePublisher) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if p.err != nil {
		return p.err
	}
	p.exchange = exchange
	p.routingKey = key
	p.published = append(p.published, msg)
	return nil
}

func testOrder(t *testing.T) domain.Order {
	t.Helper()
	order, err := domain.NewOrder("buyer@example.com", []domain.OrderItem{
		{ID: "i1", ProductID: "p1", ProductName: "Smartphone", Quantity: 1, UnitPrice: decimal.NewFromInt(800)},
	}).Persisted("order-1", time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	return order
}

func TestKafkaAuditSink_WritesJSONKeyedByOrder(t *testing.T) {
	w := &fakeWriter{}
	sink := NewKafkaAuditSink(w, zap.NewNop())

	require.NoError(t, sink.Record(context.Background(), domain.NewAuditRecord(testOrder(t))))
	require.Len(t, w.messages, 1)
	assert.Equal(t, "order-1", string(w.messages[0].Key))

	var got domain.AuditRecord
	require.NoError(t, json.Unmarshal(w.messages[0].Value, &got))
	assert.Equal(t, "order-1", got.OrderID)
	assert.Equal(t, "800.00", got.Total)

	require.NoError(t, sink.Close())
	assert.True(t, w.closed)
}

func TestKafkaAuditSink_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker unreachable")}
	sink := NewKafkaAuditSink(w, zap.NewNop())

	err := sink.Record(context.Background(), domain.NewAuditRecord(testOrder(t)))
	assert.ErrorContains(t, err, "broker unreachable")
}

func TestAMQPNotifier_PublishesPersistentJSON(t *testing.T) {
	p := &fakePublisher{}
	n := NewAMQPNotifier(p, "order_exchange", zap.NewNop())

	notification := domain.NewOrderConfirmation(testOrder(t))
	require.NoError(t, n.Notify(context.Background(), notification))

	assert.Equal(t, "order_exchange", p.exchange)
	assert.Equal(t, OrderConfirmationRoutingKey, p.routingKey)
	require.Len(t, p.published, 1)
	assert.Equal(t, "application/json", p.published[0].ContentType)
	assert.Equal(t, amqp.Persistent, p.published[0].DeliveryMode)

	var got domain.Notification
	require.NoError(t, json.Unmarshal(p.published[0].Body, &got))
	assert.Equal(t, notification, got)
}

func TestAMQPNotifier_PublishError(t *testing.T) {
	n := NewAMQPNotifier(&fakePublisher{err: amqp.ErrClosed}, "order_exchange", zap.NewNop())
	err := n.Notify(context.Background(), domain.NewOrderConfirmation(testOrder(t)))
	assert.ErrorIs(t, err, amqp.ErrClosed)
}

func TestLogSinks(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)
	order := testOrder(t)

	require.NoError(t, NewLogAuditSink(logger).Record(context.Background(), domain.NewAuditRecord(order)))
	require.NoError(t, NewLogNotifier(logger).Notify(context.Background(), domain.NewOrderConfirmation(order)))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Contains(t, entries[0].Message, "=== AUDIT LOG: ORDER CREATED ===")
	assert.Equal(t, "=== EMAIL NOTIFICATION ===", entries[1].Message)
	assert.Equal(t, "buyer@example.com", entries[1].ContextMap()["to"])
}

func TestAuditSinks_JoinsFailures(t *testing.T) {
	ok := &fakeWriter{}
	failing := &fakeWriter{err: errors.New("down")}
	sinks := AuditSinks{
		NewKafkaAuditSink(ok, zap.NewNop()),
		NewKafkaAuditSink(failing, zap.NewNop()),
	}

	err := sinks.Record(context.Background(), domain.NewAuditRecord(testOrder(t)))
	assert.ErrorContains(t, err, "down")
	assert.Len(t, ok.messages, 1)
}
