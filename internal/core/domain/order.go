package domain

import (
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderItem is a line of an order. ProductID, ProductName and UnitPrice are snapshots of the
// catalog taken when the order was assembled; later catalog changes never reach them.
type OrderItem struct {
	ID          string
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (i OrderItem) Validate() error {
	if i.ProductID == "" {
		return &ValidationError{Field: "product_id", Reason: "is required"}
	}
	if i.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if i.UnitPrice.IsNegative() {
		return &ValidationError{Field: "price", Reason: "must be greater than or equal to 0"}
	}
	return nil
}

// Order owns its items. The item slice is fixed at construction and only copies leave the
// aggregate, so Total can never drift from the items it is derived from.
type Order struct {
	ID            string
	CustomerEmail string
	CreatedAt     time.Time
	items         []OrderItem
}

func NewOrder(customerEmail string, items []OrderItem) Order {
	return Order{
		CustomerEmail: customerEmail,
		items:         append([]OrderItem(nil), items...),
	}
}

// RestoreOrder rebuilds a persisted order from storage.
func RestoreOrder(id, customerEmail string, createdAt time.Time, items []OrderItem) Order {
	o := NewOrder(customerEmail, items)
	o.ID = id
	o.CreatedAt = createdAt
	return o
}

func (o Order) Items() []OrderItem {
	return append([]OrderItem(nil), o.items...)
}

func (o Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.items {
		total = total.Add(item.Subtotal())
	}
	return total
}

func (o Order) IsPersisted() bool { return o.ID != "" }

// Persisted stamps the identity and creation time. Stores call it exactly once, inside the
// transaction that writes the order.
func (o Order) Persisted(id string, at time.Time) (Order, error) {
	if o.IsPersisted() {
		return o, ErrOrderPersisted
	}
	o.ID = id
	o.CreatedAt = at
	o.items = o.Items()
	return o, nil
}

// WithItemIDs assigns ids to items that have none, using next for each.
func (o Order) WithItemIDs(next func() string) Order {
	items := o.Items()
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = next()
		}
	}
	o.items = items
	return o
}

func (o Order) Validate() error {
	if err := ValidateEmail(o.CustomerEmail); err != nil {
		return err
	}
	if len(o.items) == 0 {
		return &ValidationError{Field: "items", Reason: "order must contain at least one item"}
	}
	for _, item := range o.items {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func ValidateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return &ValidationError{Field: "customer_email", Reason: "is required"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return &ValidationError{Field: "customer_email", Reason: "invalid email format"}
	}
	return nil
}
