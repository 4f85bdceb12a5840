package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecreaseStock_Success(t *testing.T) {
	p := Product{ID: "p1", Name: "Laptop", Price: decimal.NewFromInt(1200), Stock: 10}

	updated, err := p.DecreaseStock(2)
	require.NoError(t, err)
	assert.Equal(t, 8, updated.Stock)
	assert.Equal(t, 10, p.Stock)
}

func TestDecreaseStock_Insufficient(t *testing.T) {
	p := Product{ID: "p1", Name: "Laptop", Stock: 1}

	updated, err := p.DecreaseStock(2)
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 1, updated.Stock)

	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, "p1", stockErr.ProductID)
	assert.Equal(t, 1, stockErr.Available)
	assert.Equal(t, 2, stockErr.Requested)
}

func TestDecreaseStock_ExactlyAll(t *testing.T) {
	p := Product{ID: "p1", Name: "Laptop", Stock: 3}

	updated, err := p.DecreaseStock(3)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.Stock)
}

func TestDecreaseStock_NonPositive(t *testing.T) {
	p := Product{ID: "p1", Name: "Laptop", Stock: 3}

	_, err := p.DecreaseStock(0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestProductValidate(t *testing.T) {
	assert.NoError(t, Product{Name: "Keyboard", Price: decimal.NewFromInt(80), Stock: 25}.Validate())
	assert.ErrorIs(t, Product{Name: " ", Stock: 1}.Validate(), ErrValidation)
	assert.ErrorIs(t, Product{Name: "x", Price: decimal.NewFromInt(-1)}.Validate(), ErrValidation)
	assert.ErrorIs(t, Product{Name: "x", Stock: -1}.Validate(), ErrValidation)
}

func TestPersistenceError_MatchesBoth(t *testing.T) {
	cause := errors.New("disk full")
	err := NewPersistenceError("save order", cause)

	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "save order")
}
