package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/orderflow/internal/core/domain"
	"github.com/rl1809/orderflow/internal/core/service"
)

type OrderItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type CreateOrderRequest struct {
	CustomerEmail string             `json:"customerEmail"`
	Items         []OrderItemRequest `json:"items"`
}

func (r CreateOrderRequest) toPlaceOrder() service.PlaceOrderRequest {
	items := make([]service.ItemRequest, len(r.Items))
	for i, item := range r.Items {
		items[i] = service.ItemRequest{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return service.PlaceOrderRequest{CustomerEmail: r.CustomerEmail, Items: items}
}

type OrderItemDTO struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type OrderDTO struct {
	ID            string          `json:"id"`
	CustomerEmail string          `json:"customerEmail"`
	Items         []OrderItemDTO  `json:"items"`
	CreatedAt     time.Time       `json:"createdAt"`
	Total         decimal.Decimal `json:"total"`
}

func toOrderDTO(o domain.Order) OrderDTO {
	items := o.Items()
	dto := OrderDTO{
		ID:            o.ID,
		CustomerEmail: o.CustomerEmail,
		Items:         make([]OrderItemDTO, len(items)),
		CreatedAt:     o.CreatedAt,
		Total:         o.Total(),
	}
	for i, item := range items {
		dto.Items[i] = OrderItemDTO{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Subtotal:    item.Subtotal(),
		}
	}
	return dto
}

func toOrderDTOs(orders []domain.Order) []OrderDTO {
	out := make([]OrderDTO, len(orders))
	for i, o := range orders {
		out[i] = toOrderDTO(o)
	}
	return out
}

type ProductDTO struct {
	ID      string          `json:"id,omitempty"`
	Name    string          `json:"name"`
	Price   decimal.Decimal `json:"price"`
	Stock   int             `json:"stock"`
	Version int             `json:"version"`
}

func toProductDTO(p domain.Product) ProductDTO {
	return ProductDTO{ID: p.ID, Name: p.Name, Price: p.Price, Stock: p.Stock, Version: p.Version}
}

func (d ProductDTO) toDomain() domain.Product {
	return domain.Product{ID: d.ID, Name: d.Name, Price: d.Price, Stock: d.Stock}
}

type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}
