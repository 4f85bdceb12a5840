package port

import (
	"context"

	"github.com/rl1809/orderflow/internal/core/domain"
)

type OrderRepository interface {
	// SaveOrder persists the order and its items atomically, assigning ID and CreatedAt
	SaveOrder(ctx context.Context, order domain.Order) (domain.Order, error)

	// FindOrder returns nil, nil when the order does not exist
	FindOrder(ctx context.Context, id string) (*domain.Order, error)

	// FindAllOrders returns every order
	FindAllOrders(ctx context.Context) ([]domain.Order, error)

	// FindOrdersByEmail returns the orders of one customer, possibly none
	FindOrdersByEmail(ctx context.Context, email string) ([]domain.Order, error)

	// DeleteOrder removes an order together with its items
	DeleteOrder(ctx context.Context, id string) error
}
