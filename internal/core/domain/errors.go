package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrProductNotFound   = errors.New("product not found")
	ErrPersistence       = errors.New("persistence failure")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrOrderPersisted    = errors.New("order already persisted")
)

// ValidationError reports a malformed field. It matches ErrValidation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InsufficientStockError is returned when a decrement would take stock below zero. It matches ErrInsufficientStock.
type InsufficientStockError struct {
	ProductID string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// NewPersistenceError wraps a store failure so it matches both ErrPersistence and cause.
func NewPersistenceError(op string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, cause)
}

// ProductNotFound builds an error matching ErrProductNotFound for the given id.
func ProductNotFound(id string) error {
	return fmt.Errorf("%w: %s", ErrProductNotFound, id)
}
