package domain

import (
	"fmt"
	"strings"
	"time"
)

const auditTimeLayout = "2006-01-02 15:04:05"

// OrderCreatedEvent is published once per committed order. Order is a value copy, so
// consumers cannot mutate what the others see.
type OrderCreatedEvent struct {
	ID         string
	Order      Order
	OccurredAt time.Time
}

func NewOrderCreatedEvent(id string, order Order, at time.Time) OrderCreatedEvent {
	return OrderCreatedEvent{ID: id, Order: order, OccurredAt: at}
}

type AuditLine struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Subtotal    string `json:"subtotal"`
}

// AuditRecord is the audit trail entry for one created order.
type AuditRecord struct {
	OrderID       string      `json:"order_id"`
	CustomerEmail string      `json:"customer_email"`
	Timestamp     time.Time   `json:"timestamp"`
	Items         []AuditLine `json:"items"`
	Total         string      `json:"total"`
}

func NewAuditRecord(order Order) AuditRecord {
	items := order.Items()
	lines := make([]AuditLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, AuditLine{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.StringFixed(2),
			Subtotal:    item.Subtotal().StringFixed(2),
		})
	}
	return AuditRecord{
		OrderID:       order.ID,
		CustomerEmail: order.CustomerEmail,
		Timestamp:     order.CreatedAt,
		Items:         lines,
		Total:         order.Total().StringFixed(2),
	}
}

func (r AuditRecord) String() string {
	var b strings.Builder
	b.WriteString("=== AUDIT LOG: ORDER CREATED ===\n")
	fmt.Fprintf(&b, "Timestamp: %s\n", r.Timestamp.Format(auditTimeLayout))
	fmt.Fprintf(&b, "Order ID: %s\n", r.OrderID)
	fmt.Fprintf(&b, "Customer Email: %s\n", r.CustomerEmail)
	b.WriteString("Items:\n")
	for _, line := range r.Items {
		fmt.Fprintf(&b, "  - Product: %s (ID: %s)\n", line.ProductName, line.ProductID)
		fmt.Fprintf(&b, "    Quantity: %d\n", line.Quantity)
		fmt.Fprintf(&b, "    Price per unit: $%s\n", line.UnitPrice)
		fmt.Fprintf(&b, "    Subtotal: $%s\n", line.Subtotal)
	}
	fmt.Fprintf(&b, "Total Order Value: $%s\n", r.Total)
	b.WriteString("=== END AUDIT LOG ===")
	return b.String()
}

// Notification is a customer-facing message ready for a delivery channel.
type Notification struct {
	OrderID string `json:"order_id"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func NewOrderConfirmation(order Order) Notification {
	var b strings.Builder
	b.WriteString("Dear Customer,\n\n")
	b.WriteString("Thank you for your order. Your order details are as follows:\n\n")
	fmt.Fprintf(&b, "Order ID: %s\n", order.ID)
	fmt.Fprintf(&b, "Order Date: %s\n\n", order.CreatedAt.Format(time.RFC3339))
	b.WriteString("Items:\n")
	for _, item := range order.Items() {
		fmt.Fprintf(&b, "- %d x %s (%s each): $%s\n",
			item.Quantity, item.ProductName, item.UnitPrice.StringFixed(2), item.Subtotal().StringFixed(2))
	}
	fmt.Fprintf(&b, "\nTotal: $%s\n\n", order.Total().StringFixed(2))
	b.WriteString("Thank you for shopping with us!\n")
	b.WriteString("The Team")

	return Notification{
		OrderID: order.ID,
		To:      order.CustomerEmail,
		Subject: fmt.Sprintf("Your Order #%s has been confirmed", order.ID),
		Body:    b.String(),
	}
}
