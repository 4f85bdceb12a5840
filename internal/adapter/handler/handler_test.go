package handler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/orderflow/internal/adapter/storage"
	"github.com/rl1809/orderflow/internal/core/domain"
	"github.com/rl1809/orderflow/internal/core/service"
	"github.com/rl1809/orderflow/internal/port"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.OrderCreatedEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, ev domain.OrderCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

// brokenOrders fails every call, standing in for an unreachable database.
type brokenOrders struct{}

var errDatabaseDown = errors.New("database down")

func (brokenOrders) SaveOrder(ctx context.Context, o domain.Order) (domain.Order, error) {
	return domain.Order{}, errDatabaseDown
}
func (brokenOrders) FindOrder(ctx context.Context, id string) (*domain.Order, error) {
	return nil, errDatabaseDown
}
func (brokenOrders) FindAllOrders(ctx context.Context) ([]domain.Order, error) {
	return nil, errDatabaseDown
}
func (brokenOrders) FindOrdersByEmail(ctx context.Context, email string) ([]domain.Order, error) {
	return nil, errDatabaseDown
}
func (brokenOrders) DeleteOrder(ctx context.Context, id string) error { return errDatabaseDown }

type fixture struct {
	orders    *service.OrderService
	catalog   *service.CatalogService
	publisher *recordingPublisher
	products  map[string]domain.Product
}

func newFixture(t *testing.T, orders port.OrderRepository) *fixture {
	t.Helper()
	ctx := context.Background()
	catalogRepo := storage.NewMemoryCatalog()
	products := make(map[string]domain.Product)
	for _, p := range []domain.Product{
		{Name: "Laptop", Price: decimal.NewFromInt(100), Stock: 10},
		{Name: "Monitor", Price: decimal.NewFromInt(200), Stock: 5},
	} {
		saved, err := catalogRepo.SaveProduct(ctx, p)
		require.NoError(t, err)
		products[p.Name] = saved
	}
	if orders == nil {
		orders = storage.NewMemoryOrders()
	}

	publisher := &recordingPublisher{}
	return &fixture{
		orders:    service.NewOrderService(orders, service.NewAssembler(catalogRepo), publisher, zap.NewNop()),
		catalog:   service.NewCatalogService(catalogRepo, zap.NewNop()),
		publisher: publisher,
		products:  products,
	}
}
