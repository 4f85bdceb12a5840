package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/orderflow/internal/core/domain"
)

// MemoryCatalog keeps products in a map. Stock writes are compare-and-swap on Version under
// the write lock.
type MemoryCatalog struct {
	mu       sync.RWMutex
	products map[string]domain.Product
	now      func() time.Time
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{products: make(map[string]domain.Product), now: time.Now}
}

func (c *MemoryCatalog) FindProduct(ctx context.Context, id string) (*domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (c *MemoryCatalog) ListProducts(ctx context.Context) ([]domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p)
	}
	sortProducts(out)
	return out, nil
}

func (c *MemoryCatalog) SaveProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	if existing, ok := c.products[product.ID]; ok {
		product.CreatedAt = existing.CreatedAt
		product.Version = existing.Version + 1
	} else {
		product.CreatedAt = now
		product.Version = 0
	}
	product.UpdatedAt = now
	c.products[product.ID] = product
	return product, nil
}

func (c *MemoryCatalog) DecreaseStock(ctx context.Context, id string, quantity int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	current, ok := c.products[id]
	if !ok {
		return 0, domain.ProductNotFound(id)
	}
	next, err := current.DecreaseStock(quantity)
	if err != nil {
		return current.Stock, err
	}
	next.Version++
	next.UpdatedAt = c.now()
	c.products[id] = next
	return next.Stock, nil
}

func (c *MemoryCatalog) DeleteProduct(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.products, id)
	return nil
}

func (c *MemoryCatalog) CountProducts(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.products), nil
}

// MemoryOrders is the in-process order store.
type MemoryOrders struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
	now    func() time.Time
}

func NewMemoryOrders() *MemoryOrders {
	return &MemoryOrders{orders: make(map[string]domain.Order), now: time.Now}
}

func (s *MemoryOrders) SaveOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	saved, err := order.Persisted(uuid.NewString(), s.now())
	if err != nil {
		return domain.Order{}, err
	}
	saved = saved.WithItemIDs(uuid.NewString)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[saved.ID] = saved
	return saved, nil
}

func (s *MemoryOrders) FindOrder(ctx context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (s *MemoryOrders) FindAllOrders(ctx context.Context) ([]domain.Order, error) {
	return s.filter(func(domain.Order) bool { return true }), nil
}

func (s *MemoryOrders) FindOrdersByEmail(ctx context.Context, email string) ([]domain.Order, error) {
	return s.filter(func(o domain.Order) bool { return o.CustomerEmail == email }), nil
}

func (s *MemoryOrders) filter(keep func(domain.Order) bool) []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Order, 0)
	for _, o := range s.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *MemoryOrders) DeleteOrder(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orders, id)
	return nil
}

// MemoryIdempotency remembers claimed keys until their TTL passes.
type MemoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryIdempotency(ttl time.Duration) *MemoryIdempotency {
	if ttl <= 0 {
		ttl = idempotencyKeyTTL
	}
	return &MemoryIdempotency{keys: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

func (m *MemoryIdempotency) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

func (m *MemoryIdempotency) Claim(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if expires, ok := m.keys[key]; ok && now.Before(expires) {
		return false, nil
	}
	m.keys[key] = now.Add(m.ttl)
	return true, nil
}

func sortProducts(products []domain.Product) {
	sort.Slice(products, func(i, j int) bool {
		if products[i].Name == products[j].Name {
			return products[i].ID < products[j].ID
		}
		return products[i].Name < products[j].Name
	})
}
