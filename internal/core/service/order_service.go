package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/orderflow/internal/core/domain"
	"github.com/rl1809/orderflow/internal/port"
)

const tracerName = "github.com/rl1809/orderflow/internal/core/service"

type OrderService struct {
	orders    port.OrderRepository
	assembler *Assembler
	publisher port.EventPublisher
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

func NewOrderService(orders port.OrderRepository, assembler *Assembler, publisher port.EventPublisher, logger *zap.Logger) *OrderService {
	return &OrderService{
		orders:    orders,
		assembler: assembler,
		publisher: publisher,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}
}

// PlaceOrder assembles the request against the catalog and creates the order.
func (s *OrderService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (domain.Order, error) {
	order, err := s.assembler.Assemble(ctx, req)
	if err != nil {
		return domain.Order{}, err
	}
	return s.CreateOrder(ctx, order)
}

// CreateOrder persists the order and hands an OrderCreated event to the publisher. It returns
// once the event is handed off; the outcome of the consumers never reaches the caller.
func (s *OrderService) CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.create")
	defer span.End()

	if err := order.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return domain.Order{}, err
	}
	if order.IsPersisted() {
		span.SetStatus(codes.Error, domain.ErrOrderPersisted.Error())
		return domain.Order{}, domain.ErrOrderPersisted
	}

	s.logger.Info("creating order", zap.String("customer_email", order.CustomerEmail))

	saved, err := s.orders.SaveOrder(ctx, order)
	if err != nil {
		err = domain.NewPersistenceError("save order", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "save order failed")
		s.logger.Error("failed to save order", zap.String("customer_email", order.CustomerEmail), zap.Error(err))
		return domain.Order{}, err
	}

	span.SetAttributes(
		attribute.String("order.id", saved.ID),
		attribute.Int("order.items", len(saved.Items())),
		attribute.String("order.total", saved.Total().String()),
	)
	s.logger.Info("order created", zap.String("order_id", saved.ID), zap.String("total", saved.Total().StringFixed(2)))

	ev := domain.NewOrderCreatedEvent(uuid.NewString(), saved, s.now())
	if err := s.publisher.Publish(ctx, ev); err != nil {
		// The order is committed; a lost delivery is logged, not returned.
		s.logger.Error("failed to publish OrderCreated event",
			zap.String("order_id", saved.ID),
			zap.String("event_id", ev.ID),
			zap.Error(err),
		)
	} else {
		s.logger.Info("published OrderCreated event", zap.String("order_id", saved.ID), zap.String("event_id", ev.ID))
	}

	span.SetStatus(codes.Ok, "order created")
	return saved, nil
}

func (s *OrderService) GetAllOrders(ctx context.Context) ([]domain.Order, error) {
	orders, err := s.orders.FindAllOrders(ctx)
	if err != nil {
		return nil, domain.NewPersistenceError("find orders", err)
	}
	return orders, nil
}

// GetOrder reports false when no order has the id; that is not an error.
func (s *OrderService) GetOrder(ctx context.Context, id string) (domain.Order, bool, error) {
	order, err := s.orders.FindOrder(ctx, id)
	if err != nil {
		return domain.Order{}, false, domain.NewPersistenceError("find order", err)
	}
	if order == nil {
		return domain.Order{}, false, nil
	}
	return *order, true, nil
}

func (s *OrderService) GetOrdersByEmail(ctx context.Context, email string) ([]domain.Order, error) {
	orders, err := s.orders.FindOrdersByEmail(ctx, email)
	if err != nil {
		return nil, domain.NewPersistenceError("find orders by email", err)
	}
	return orders, nil
}

func (s *OrderService) DeleteOrder(ctx context.Context, id string) error {
	if err := s.orders.DeleteOrder(ctx, id); err != nil {
		return domain.NewPersistenceError("delete order", err)
	}
	s.logger.Info("order deleted", zap.String("order_id", id))
	return nil
}
