package service

import (
	"context"
	"fmt"

	"github.com/rl1809/orderflow/internal/core/domain"
	"github.com/rl1809/orderflow/internal/port"
)

type ItemRequest struct {
	ProductID string
	Quantity  int
}

type PlaceOrderRequest struct {
	CustomerEmail string
	Items         []ItemRequest
}

// Assembler prices an order request against the catalog. It never touches stock: availability
// is only enforced when the inventory listener decrements after commit.
type Assembler struct {
	catalog port.CatalogRepository
}

func NewAssembler(catalog port.CatalogRepository) *Assembler {
	return &Assembler{catalog: catalog}
}

func (a *Assembler) Assemble(ctx context.Context, req PlaceOrderRequest) (domain.Order, error) {
	if err := domain.ValidateEmail(req.CustomerEmail); err != nil {
		return domain.Order{}, err
	}
	if len(req.Items) == 0 {
		return domain.Order{}, &domain.ValidationError{Field: "items", Reason: "order must contain at least one item"}
	}
	for i, item := range req.Items {
		if item.ProductID == "" {
			return domain.Order{}, &domain.ValidationError{Field: fmt.Sprintf("items[%d].product_id", i), Reason: "is required"}
		}
		if item.Quantity <= 0 {
			return domain.Order{}, &domain.ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Reason: "must be positive"}
		}
	}

	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		product, err := a.catalog.FindProduct(ctx, item.ProductID)
		if err != nil {
			return domain.Order{}, domain.NewPersistenceError("find product", err)
		}
		if product == nil {
			return domain.Order{}, domain.ProductNotFound(item.ProductID)
		}

		items = append(items, domain.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    item.Quantity,
			UnitPrice:   product.Price,
		})
	}

	return domain.NewOrder(req.CustomerEmail, items), nil
}
