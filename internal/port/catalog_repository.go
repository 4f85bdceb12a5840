package port

import (
	"context"

	"github.com/rl1809/orderflow/internal/core/domain"
)

type CatalogRepository interface {
	// FindProduct returns nil, nil when the product does not exist
	FindProduct(ctx context.Context, id string) (*domain.Product, error)

	// ListProducts returns every product in the catalog
	ListProducts(ctx context.Context) ([]domain.Product, error)

	// SaveProduct inserts a product without ID (assigning one) or overwrites an existing one
	SaveProduct(ctx context.Context, product domain.Product) (domain.Product, error)

	// DecreaseStock removes quantity units in one conditional write and returns the remaining
	// stock. It fails with *domain.InsufficientStockError when fewer units are left and with
	// domain.ErrProductNotFound when the product does not exist
	DecreaseStock(ctx context.Context, id string, quantity int) (int, error)

	// DeleteProduct removes a product, deleting a missing product is not an error
	DeleteProduct(ctx context.Context, id string) error

	// CountProducts returns the number of products in the catalog
	CountProducts(ctx context.Context) (int, error)
}
