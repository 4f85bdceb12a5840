package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/orderflow/internal/app"
	"github.com/rl1809/orderflow/internal/config"
	"github.com/rl1809/orderflow/internal/core/domain"
	"github.com/rl1809/orderflow/internal/core/service"
)

const (
	initialStock  = 20
	totalRequests = 50
)

// Places many single-unit orders for one product at once and checks that inventory updates never
// oversell it. Backends come from the usual environment variables.
func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	cfg.SeedCatalog = false

	container, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to build service: %v", err)
	}
	defer container.Shutdown(context.Background())

	product, err := container.CatalogService.CreateProduct(ctx, domain.Product{
		Name:  fmt.Sprintf("Stress Item %d", time.Now().UnixNano()),
		Price: decimal.NewFromInt(100),
		Stock: initialStock,
	})
	if err != nil {
		log.Fatalf("failed to create product: %v", err)
	}

	var successCount atomic.Int32
	var failCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()

			_, err := container.OrderService.PlaceOrder(ctx, service.PlaceOrderRequest{
				CustomerEmail: fmt.Sprintf("user-%d@example.com", userID),
				Items:         []service.ItemRequest{{ProductID: product.ID, Quantity: 1}},
			})
			if err == nil {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}(i)
	}
	wg.Wait()

	drainCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()
	if err := container.DrainEvents(drainCtx); err != nil {
		log.Fatalf("event handlers did not finish: %v", err)
	}
	elapsed := time.Since(start)

	final, _, err := container.CatalogService.GetProduct(ctx, product.ID)
	if err != nil {
		log.Fatalf("failed to read final stock: %v", err)
	}
	fulfilled := initialStock - final.Stock

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Store Backend:    %s\n", cfg.StoreBackend)
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Orders Placed:    %d\n", successCount.Load())
	fmt.Printf("Rejected:         %d\n", failCount.Load())
	fmt.Printf("Units Decremented:%d\n", fulfilled)
	fmt.Printf("Final Stock:      %d\n", final.Stock)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if final.Stock >= 0 && fulfilled <= initialStock {
		fmt.Println("PASS: stock never went below zero")
	} else {
		fmt.Printf("FAIL: oversold, final stock %d\n", final.Stock)
	}

	if final.Stock == 0 {
		fmt.Println("PASS: Stock depleted to 0")
	} else {
		fmt.Printf("FAIL: Expected stock 0, got %d\n", final.Stock)
	}
}
