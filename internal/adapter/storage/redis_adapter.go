package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rl1809/orderflow/internal/core/domain"
)

const (
	productKeyPrefix     = "product:"
	productSetKey        = "products"
	idempotencyKeyPrefix = "idempotency:"
	idempotencyKeyTTL    = 24 * time.Hour
)

// KEYS[1] product hash, ARGV[1] quantity, ARGV[2] updated_at.
// Returns {1, remaining} on write, {0, available} when stock is short, {-1, 0} when the product
// is missing.
var decreaseStockScript = redis.NewScript(`
local key = KEYS[1]
local quantity = tonumber(ARGV[1])

local current = redis.call('HGET', key, 'stock')
if not current then
	return {-1, 0}
end

current = tonumber(current)
if current < quantity then
	return {0, current}
end

local remaining = redis.call('HINCRBY', key, 'stock', -quantity)
redis.call('HINCRBY', key, 'version', 1)
redis.call('HSET', key, 'updated_at', ARGV[2])
return {1, remaining}
`)

// RedisCatalog stores each product as a hash and keeps the ids in a set.
type RedisCatalog struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisCatalog namespaces all keys with prefix, which may be empty.
func NewRedisCatalog(client *redis.Client, prefix string) *RedisCatalog {
	return &RedisCatalog{client: client, prefix: prefix, now: time.Now}
}

func (r *RedisCatalog) productKey(id string) string {
	return r.prefix + productKeyPrefix + id
}

func (r *RedisCatalog) setKey() string {
	return r.prefix + productSetKey
}

func (r *RedisCatalog) FindProduct(ctx context.Context, id string) (*domain.Product, error) {
	fields, err := r.client.HGetAll(ctx, r.productKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall product: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	p, err := decodeProduct(id, fields)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *RedisCatalog) ListProducts(ctx context.Context) ([]domain.Product, error) {
	ids, err := r.client.SMembers(ctx, r.setKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers products: %w", err)
	}

	cmds, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.HGetAll(ctx, r.productKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	products := make([]domain.Product, 0, len(ids))
	for i, cmd := range cmds {
		fields, err := cmd.(*redis.MapStringStringCmd).Result()
		if err != nil {
			return nil, fmt.Errorf("load product %s: %w", ids[i], err)
		}
		if len(fields) == 0 {
			continue
		}
		p, err := decodeProduct(ids[i], fields)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	sortProducts(products)
	return products, nil
}

func (r *RedisCatalog) SaveProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	now := r.now().UTC()
	if product.ID == "" {
		product.ID = uuid.NewString()
	}

	existing, err := r.FindProduct(ctx, product.ID)
	if err != nil {
		return domain.Product{}, err
	}
	if existing != nil {
		product.CreatedAt = existing.CreatedAt
		product.Version = existing.Version + 1
	} else {
		product.CreatedAt = now
		product.Version = 0
	}
	product.UpdatedAt = now

	key := r.productKey(product.ID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, encodeProduct(product))
		pipe.SAdd(ctx, r.setKey(), product.ID)
		return nil
	})
	if err != nil {
		return domain.Product{}, fmt.Errorf("save product: %w", err)
	}
	return product, nil
}

func (r *RedisCatalog) DecreaseStock(ctx context.Context, id string, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, &domain.ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	result, err := decreaseStockScript.Run(ctx, r.client, []string{r.productKey(id)},
		quantity, r.now().UTC().Format(time.RFC3339Nano)).Int64Slice()
	if err != nil {
		return 0, fmt.Errorf("decrease stock: %w", err)
	}
	if len(result) != 2 {
		return 0, fmt.Errorf("decrease stock: unexpected script reply %v", result)
	}

	stock := int(result[1])
	switch result[0] {
	case 1:
		return stock, nil
	case 0:
		return stock, &domain.InsufficientStockError{ProductID: id, Available: stock, Requested: quantity}
	default:
		return 0, domain.ProductNotFound(id)
	}
}

func (r *RedisCatalog) DeleteProduct(ctx context.Context, id string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.productKey(id))
		pipe.SRem(ctx, r.setKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

func (r *RedisCatalog) CountProducts(ctx context.Context) (int, error) {
	n, err := r.client.SCard(ctx, r.setKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("scard products: %w", err)
	}
	return int(n), nil
}

func (r *RedisCatalog) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func encodeProduct(p domain.Product) map[string]any {
	return map[string]any{
		"name":       p.Name,
		"price":      p.Price.String(),
		"stock":      p.Stock,
		"version":    p.Version,
		"created_at": p.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": p.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func decodeProduct(id string, fields map[string]string) (domain.Product, error) {
	p := domain.Product{ID: id, Name: fields["name"]}
	var errs []error
	var err error
	if p.Price, err = decimal.NewFromString(fields["price"]); err != nil {
		errs = append(errs, fmt.Errorf("price: %w", err))
	}
	if p.Stock, err = strconv.Atoi(fields["stock"]); err != nil {
		errs = append(errs, fmt.Errorf("stock: %w", err))
	}
	if p.Version, err = strconv.Atoi(fields["version"]); err != nil {
		errs = append(errs, fmt.Errorf("version: %w", err))
	}
	if p.CreatedAt, err = time.Parse(time.RFC3339Nano, fields["created_at"]); err != nil {
		errs = append(errs, fmt.Errorf("created_at: %w", err))
	}
	if p.UpdatedAt, err = time.Parse(time.RFC3339Nano, fields["updated_at"]); err != nil {
		errs = append(errs, fmt.Errorf("updated_at: %w", err))
	}
	if len(errs) > 0 {
		return domain.Product{}, fmt.Errorf("decode product %s: %w", id, errors.Join(errs...))
	}
	return p, nil
}

// RedisIdempotency claims keys with SETNX so concurrent consumers agree on one winner.
type RedisIdempotency struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisIdempotency(client *redis.Client, prefix string, ttl time.Duration) *RedisIdempotency {
	if ttl <= 0 {
		ttl = idempotencyKeyTTL
	}
	return &RedisIdempotency{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisIdempotency) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+idempotencyKeyPrefix+key).Err()
}

func (r *RedisIdempotency) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.prefix+idempotencyKeyPrefix+key, 1, r.ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}
