package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Stock is never negative.
type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Stock     int
	Version   int // bumped on every write
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the fields a caller may set.
func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if p.Price.IsNegative() {
		return &ValidationError{Field: "price", Reason: "must be greater than or equal to 0"}
	}
	if p.Stock < 0 {
		return &ValidationError{Field: "stock", Reason: "must be greater than or equal to 0"}
	}
	return nil
}

// DecreaseStock returns a copy of p with quantity units removed. The receiver is never
// modified, and the stock never goes below zero.
func (p Product) DecreaseStock(quantity int) (Product, error) {
	if quantity <= 0 {
		return p, &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if p.Stock < quantity {
		return p, &InsufficientStockError{ProductID: p.ID, Available: p.Stock, Requested: quantity}
	}
	p.Stock -= quantity
	return p, nil
}
