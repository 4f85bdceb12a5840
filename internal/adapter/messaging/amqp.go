package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/rl1809/orderflow/internal/core/domain"
)

const OrderConfirmationRoutingKey = "order.confirmation"

// Publisher is satisfied by *amqp.Channel.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPConnection owns the connection and channel used by the notifier.
type AMQPConnection struct {
	conn    *amqp.Connection
	Channel *amqp.Channel
}

// DialAMQP connects with retry and declares a durable topic exchange.
func DialAMQP(ctx context.Context, url, exchange string, logger *zap.Logger) (*AMQPConnection, error) {
	if exchange == "" {
		return nil, fmt.Errorf("exchange name cannot be empty")
	}

	var (
		conn *amqp.Connection
		err  error
	)
	for i := 0; i < 5; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		retry := time.Duration(i*i)*time.Second + time.Second
		logger.Warn("failed to connect to RabbitMQ, retrying", zap.Duration("retry_in", retry), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retry):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &AMQPConnection{conn: conn, Channel: ch}, nil
}

func (c *AMQPConnection) Close() error {
	if err := c.Channel.Close(); err != nil {
		return err
	}
	return c.conn.Close()
}

// AMQPNotifier hands confirmation messages to the mail workers listening on the exchange.
type AMQPNotifier struct {
	publisher Publisher
	exchange  string
	logger    *zap.Logger
	now       func() time.Time
}

func NewAMQPNotifier(publisher Publisher, exchange string, logger *zap.Logger) *AMQPNotifier {
	return &AMQPNotifier{publisher: publisher, exchange: exchange, logger: logger, now: time.Now}
}

func (n *AMQPNotifier) Notify(ctx context.Context, notification domain.Notification) error {
	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	err = n.publisher.PublishWithContext(ctx,
		n.exchange,
		OrderConfirmationRoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    notification.OrderID,
			Timestamp:    n.now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish to exchange %s with routing key %s: %w",
			n.exchange, OrderConfirmationRoutingKey, err)
	}

	n.logger.Debug("notification published",
		zap.String("order_id", notification.OrderID),
		zap.String("exchange", n.exchange),
	)
	return nil
}
