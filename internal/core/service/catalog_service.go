package service

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/orderflow/internal/core/domain"
	"github.com/rl1809/orderflow/internal/port"
)

// SampleProducts is the catalog seeded into an empty store.
var SampleProducts = []domain.Product{
	{Name: "Laptop", Price: decimal.NewFromInt(1200), Stock: 10},
	{Name: "Smartphone", Price: decimal.NewFromInt(800), Stock: 20},
	{Name: "Headphones", Price: decimal.NewFromInt(150), Stock: 30},
	{Name: "Monitor", Price: decimal.NewFromInt(300), Stock: 15},
	{Name: "Keyboard", Price: decimal.NewFromInt(80), Stock: 25},
}

type CatalogService struct {
	catalog port.CatalogRepository
	logger  *zap.Logger
}

func NewCatalogService(catalog port.CatalogRepository, logger *zap.Logger) *CatalogService {
	return &CatalogService{catalog: catalog, logger: logger}
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.catalog.ListProducts(ctx)
	if err != nil {
		return nil, domain.NewPersistenceError("list products", err)
	}
	return products, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (domain.Product, bool, error) {
	product, err := s.catalog.FindProduct(ctx, id)
	if err != nil {
		return domain.Product{}, false, domain.NewPersistenceError("find product", err)
	}
	if product == nil {
		return domain.Product{}, false, nil
	}
	return *product, true, nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	product.ID = ""
	return s.save(ctx, product)
}

// UpdateProduct overwrites an existing product, failing with ErrProductNotFound otherwise.
func (s *CatalogService) UpdateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	existing, err := s.catalog.FindProduct(ctx, product.ID)
	if err != nil {
		return domain.Product{}, domain.NewPersistenceError("find product", err)
	}
	if existing == nil {
		return domain.Product{}, domain.ProductNotFound(product.ID)
	}
	product.CreatedAt = existing.CreatedAt
	return s.save(ctx, product)
}

func (s *CatalogService) save(ctx context.Context, product domain.Product) (domain.Product, error) {
	if err := product.Validate(); err != nil {
		return domain.Product{}, err
	}
	saved, err := s.catalog.SaveProduct(ctx, product)
	if err != nil {
		return domain.Product{}, domain.NewPersistenceError("save product", err)
	}
	s.logger.Info("product saved", zap.String("product_id", saved.ID), zap.Int("stock", saved.Stock))
	return saved, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.catalog.DeleteProduct(ctx, id); err != nil {
		return domain.NewPersistenceError("delete product", err)
	}
	return nil
}

// Seed inserts products when the catalog is empty and reports how many were created.
func (s *CatalogService) Seed(ctx context.Context, products []domain.Product) (int, error) {
	count, err := s.catalog.CountProducts(ctx)
	if err != nil {
		return 0, domain.NewPersistenceError("count products", err)
	}
	if count > 0 {
		s.logger.Info("products already exist, skipping initialization", zap.Int("count", count))
		return 0, nil
	}

	for _, p := range products {
		if _, err := s.CreateProduct(ctx, p); err != nil {
			return 0, err
		}
	}
	s.logger.Info("sample products created", zap.Int("count", len(products)))
	return len(products), nil
}
