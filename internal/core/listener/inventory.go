package listener

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rl1809/orderflow/internal/core/domain"
	"github.com/rl1809/orderflow/internal/port"
)

// InventoryListener decrements catalog stock for each item of a created order. It is the only
// place the stock invariant is enforced: an item whose product lacks stock is logged and
// skipped, the order itself stays committed.
type InventoryListener struct {
	catalog port.CatalogRepository
	claims  port.IdempotencyStore
	logger  *zap.Logger
}

// NewInventoryListener builds the listener. claims may be nil, in which case duplicate
// deliveries of the same event are not detected.
func NewInventoryListener(catalog port.CatalogRepository, claims port.IdempotencyStore, logger *zap.Logger) *InventoryListener {
	return &InventoryListener{
		catalog: catalog,
		claims:  claims,
		logger:  logger,
	}
}

func (l *InventoryListener) Name() string { return "inventory" }

func (l *InventoryListener) Handle(ctx context.Context, ev domain.OrderCreatedEvent) error {
	orderID := ev.Order.ID
	l.logger.Info("updating inventory for order", zap.String("order_id", orderID))

	var errs []error
	for i, item := range ev.Order.Items() {
		if err := l.applyItem(ctx, orderID, i, item); err != nil {
			errs = append(errs, err)
		}
	}

	l.logger.Info("inventory update completed",
		zap.String("order_id", orderID),
		zap.Int("items", len(ev.Order.Items())),
		zap.Int("failed", len(errs)),
	)
	return errors.Join(errs...)
}

func claimKey(orderID string, index int, item domain.OrderItem) string {
	if item.ID != "" {
		return fmt.Sprintf("inventory:%s:%s", orderID, item.ID)
	}
	return fmt.Sprintf("inventory:%s:%d", orderID, index)
}

// final reports whether a failed decrement would fail the same way on redelivery.
func final(err error) bool {
	return errors.Is(err, domain.ErrInsufficientStock) ||
		errors.Is(err, domain.ErrProductNotFound) ||
		errors.Is(err, domain.ErrValidation)
}

func (l *InventoryListener) applyItem(ctx context.Context, orderID string, index int, item domain.OrderItem) error {
	log := l.logger.With(
		zap.String("order_id", orderID),
		zap.String("product_id", item.ProductID),
		zap.Int("quantity", item.Quantity),
	)

	key := claimKey(orderID, index, item)
	if l.claims != nil {
		ok, err := l.claims.Claim(ctx, key)
		if err != nil {
			log.Error("idempotency check failed", zap.Error(err))
			return fmt.Errorf("claim item %d of order %s: %w", index, orderID, err)
		}
		if !ok {
			log.Info("stock already decremented for item, skipping")
			return nil
		}
	}

	remaining, err := l.catalog.DecreaseStock(ctx, item.ProductID, item.Quantity)
	if err == nil {
		log.Info("stock updated", zap.Int("stock", remaining))
		return nil
	}
	if final(err) {
		log.Error("failed to update stock", zap.Error(err))
		return fmt.Errorf("order %s: %w", orderID, err)
	}

	log.Error("failed to save stock", zap.Error(err))
	err = domain.NewPersistenceError("decrease stock", err)
	if l.claims != nil {
		// the item was not decremented; let a redelivery try again
		if relErr := l.claims.Release(context.WithoutCancel(ctx), key); relErr != nil {
			log.Error("failed to release idempotency claim", zap.Error(relErr))
			err = errors.Join(err, fmt.Errorf("release claim: %w", relErr))
		}
	}
	return err
}
