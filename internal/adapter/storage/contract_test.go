package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/orderflow/internal/core/domain"
	"github.com/rl1809/orderflow/internal/port"
)

// Behaviour every CatalogRepository must share. The checks are relative so they also hold on a
// database that already contains rows.
func runCatalogContract(t *testing.T, repo port.CatalogRepository) {
	ctx := context.Background()

	t.Run("save assigns id and finds it", func(t *testing.T) {
		before, err := repo.CountProducts(ctx)
		require.NoError(t, err)

		saved, err := repo.SaveProduct(ctx, domain.Product{Name: "Laptop", Price: decimal.RequireFromString("1200.50"), Stock: 10})
		require.NoError(t, err)
		require.NotEmpty(t, saved.ID)
		assert.Equal(t, 0, saved.Version)
		assert.False(t, saved.CreatedAt.IsZero())

		got, err := repo.FindProduct(ctx, saved.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Laptop", got.Name)
		assert.True(t, decimal.RequireFromString("1200.50").Equal(got.Price), "price %s", got.Price)
		assert.Equal(t, 10, got.Stock)

		after, err := repo.CountProducts(ctx)
		require.NoError(t, err)
		assert.Equal(t, before+1, after)

		all, err := repo.ListProducts(ctx)
		require.NoError(t, err)
		assert.Contains(t, productIDs(all), saved.ID)
	})

	t.Run("missing product is nil without error", func(t *testing.T) {
		got, err := repo.FindProduct(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("overwrite bumps version and keeps created_at", func(t *testing.T) {
		saved, err := repo.SaveProduct(ctx, domain.Product{Name: "Monitor", Price: decimal.NewFromInt(300), Stock: 15})
		require.NoError(t, err)

		saved.Name = "Monitor 4K"
		saved.Stock = 12
		updated, err := repo.SaveProduct(ctx, saved)
		require.NoError(t, err)
		assert.Equal(t, saved.ID, updated.ID)
		assert.Equal(t, saved.Version+1, updated.Version)
		assert.True(t, saved.CreatedAt.Equal(updated.CreatedAt))
		assert.Equal(t, "Monitor 4K", updated.Name)
	})

	t.Run("decrease stock is conditional", func(t *testing.T) {
		saved, err := repo.SaveProduct(ctx, domain.Product{Name: "Keyboard", Price: decimal.NewFromInt(80), Stock: 25})
		require.NoError(t, err)

		remaining, err := repo.DecreaseStock(ctx, saved.ID, 5)
		require.NoError(t, err)
		assert.Equal(t, 20, remaining)

		remaining, err = repo.DecreaseStock(ctx, saved.ID, 21)
		var insufficient *domain.InsufficientStockError
		require.ErrorAs(t, err, &insufficient)
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)
		assert.Equal(t, 20, insufficient.Available)
		assert.Equal(t, 21, insufficient.Requested)
		assert.Equal(t, 20, remaining)

		remaining, err = repo.DecreaseStock(ctx, saved.ID, 20)
		require.NoError(t, err)
		assert.Equal(t, 0, remaining)

		got, err := repo.FindProduct(ctx, saved.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, got.Stock)
		assert.Equal(t, saved.Version+2, got.Version)
	})

	t.Run("decrease stock of missing product", func(t *testing.T) {
		_, err := repo.DecreaseStock(ctx, uuid.NewString(), 1)
		assert.ErrorIs(t, err, domain.ErrProductNotFound)
	})

	t.Run("decrease stock rejects non-positive quantity", func(t *testing.T) {
		saved, err := repo.SaveProduct(ctx, domain.Product{Name: "Mouse", Price: decimal.NewFromInt(25), Stock: 3})
		require.NoError(t, err)
		_, err = repo.DecreaseStock(ctx, saved.ID, 0)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("delete", func(t *testing.T) {
		saved, err := repo.SaveProduct(ctx, domain.Product{Name: "Headphones", Price: decimal.NewFromInt(150), Stock: 30})
		require.NoError(t, err)

		require.NoError(t, repo.DeleteProduct(ctx, saved.ID))
		got, err := repo.FindProduct(ctx, saved.ID)
		require.NoError(t, err)
		assert.Nil(t, got)

		require.NoError(t, repo.DeleteProduct(ctx, saved.ID))
	})

	t.Run("concurrent decrements never oversell", func(t *testing.T) {
		saved, err := repo.SaveProduct(ctx, domain.Product{Name: "Smartphone", Price: decimal.NewFromInt(800), Stock: 20})
		require.NoError(t, err)

		var (
			wg           sync.WaitGroup
			succeeded    atomic.Int32
			insufficient atomic.Int32
		)
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.DecreaseStock(ctx, saved.ID, 1)
				switch {
				case err == nil:
					succeeded.Add(1)
				case errors.Is(err, domain.ErrInsufficientStock):
					insufficient.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		got, err := repo.FindProduct(ctx, saved.ID)
		require.NoError(t, err)
		assert.Equal(t, int32(20), succeeded.Load())
		assert.Equal(t, int32(30), insufficient.Load())
		assert.Equal(t, 0, got.Stock)
	})
}

func runOrderContract(t *testing.T, repo port.OrderRepository) {
	ctx := context.Background()
	email := uuid.NewString() + "@example.com"

	newOrder := func() domain.Order { return sampleOrder(email) }

	t.Run("save assigns identity and round-trips items", func(t *testing.T) {
		saved, err := repo.SaveOrder(ctx, newOrder())
		require.NoError(t, err)
		require.NotEmpty(t, saved.ID)
		assert.False(t, saved.CreatedAt.IsZero())
		for _, item := range saved.Items() {
			assert.NotEmpty(t, item.ID)
		}

		got, err := repo.FindOrder(ctx, saved.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, email, got.CustomerEmail)
		require.Len(t, got.Items(), 2)
		assert.Equal(t, "Laptop", got.Items()[0].ProductName)
		assert.Equal(t, "Keyboard", got.Items()[1].ProductName)
		assert.True(t, decimal.RequireFromString("2480.50").Equal(got.Total()), "total %s", got.Total())
	})

	t.Run("saving a persisted order is rejected", func(t *testing.T) {
		saved, err := repo.SaveOrder(ctx, newOrder())
		require.NoError(t, err)
		_, err = repo.SaveOrder(ctx, saved)
		assert.ErrorIs(t, err, domain.ErrOrderPersisted)
	})

	t.Run("missing order is nil without error", func(t *testing.T) {
		got, err := repo.FindOrder(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("find by email and all", func(t *testing.T) {
		saved, err := repo.SaveOrder(ctx, newOrder())
		require.NoError(t, err)

		byEmail, err := repo.FindOrdersByEmail(ctx, email)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(byEmail), 1)
		for _, o := range byEmail {
			assert.Equal(t, email, o.CustomerEmail)
		}
		assert.Contains(t, orderIDs(byEmail), saved.ID)

		none, err := repo.FindOrdersByEmail(ctx, "nobody-"+uuid.NewString()+"@example.com")
		require.NoError(t, err)
		assert.Empty(t, none)

		all, err := repo.FindAllOrders(ctx)
		require.NoError(t, err)
		assert.Contains(t, orderIDs(all), saved.ID)
	})

	t.Run("delete", func(t *testing.T) {
		saved, err := repo.SaveOrder(ctx, newOrder())
		require.NoError(t, err)

		require.NoError(t, repo.DeleteOrder(ctx, saved.ID))
		got, err := repo.FindOrder(ctx, saved.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func sampleOrder(email string) domain.Order {
	return domain.NewOrder(email, []domain.OrderItem{
		{ProductID: "p1", ProductName: "Laptop", Quantity: 2, UnitPrice: decimal.RequireFromString("1200.00")},
		{ProductID: "p2", ProductName: "Keyboard", Quantity: 1, UnitPrice: decimal.RequireFromString("80.50")},
	})
}

func productIDs(products []domain.Product) []string {
	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	return ids
}

func orderIDs(orders []domain.Order) []string {
	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	return ids
}
