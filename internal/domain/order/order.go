package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storesync/internal/domain/product"
	"github.com/xenking/storesync/internal/sanitize"
)

// StatusPending is the status of a freshly created order.
const StatusPending = "pending"

// DefaultCurrency is used when an order is created without a currency.
const DefaultCurrency = "USD"

var (
	// ErrNotFound is returned when a requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrNoCustomer is returned by the store for orders without an owner.
	ErrNoCustomer = errors.New("order has no customer")
	// ErrNoItems is returned by the store for orders without product lines.
	ErrNoItems = errors.New("order has no line items")
	// ErrInvalidQuantity is returned when a line item quantity is not positive.
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
)

// AddressKind selects the billing or shipping address of an order.
type AddressKind string

const (
	AddressBilling  AddressKind = "billing"
	AddressShipping AddressKind = "shipping"
)

// Order is an order being assembled for, or loaded from, the Order Store.
type Order struct {
	ID            int64
	Key           string
	CustomerID    int64
	Status        string
	Currency      string
	Billing       sanitize.Address
	Shipping      sanitize.Address
	Items         []LineItem
	ShippingLines []ShippingLine
	Subtotal      decimal.Decimal
	ShippingTotal decimal.Decimal
	Total         decimal.Decimal
	CreatedAt     time.Time
}

// LineItem is a product entry on an order.
type LineItem struct {
	ProductID int64
	Name      string
	SKU       string
	Quantity  int
	Subtotal  decimal.Decimal
	Total     decimal.Decimal
}

// ShippingLine is a shipping charge on an order.
type ShippingLine struct {
	MethodTitle string
	Total       decimal.Decimal
}

// New starts an order owned by the given customer.
func New(customerID int64) *Order {
	return &Order{
		Key:        NewKey(),
		CustomerID: customerID,
		Status:     StatusPending,
		Currency:   DefaultCurrency,
	}
}

// NewKey returns a random order key.
func NewKey() string {
	return "wc_order_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:13]
}

// AddProduct appends a line item for qty units of p at its current price.
func (o *Order) AddProduct(p *product.Product, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	line := p.Price().Mul(decimal.NewFromInt(int64(qty)))
	o.Items = append(o.Items, LineItem{
		ProductID: p.ID,
		Name:      p.Name,
		SKU:       p.SKU,
		Quantity:  qty,
		Subtotal:  line,
		Total:     line,
	})
	return nil
}

// SetAddress replaces the billing or shipping address with a sanitized copy
// of addr.
func (o *Order) SetAddress(kind AddressKind, addr sanitize.Address) {
	clean := sanitize.CleanAddress(addr)
	switch kind {
	case AddressBilling:
		o.Billing = clean
	case AddressShipping:
		o.Shipping = clean
	}
}

// AddShipping appends a shipping line.
func (o *Order) AddShipping(title string, total decimal.Decimal) {
	o.ShippingLines = append(o.ShippingLines, ShippingLine{
		MethodTitle: title,
		Total:       total,
	})
}

// CalculateTotals recomputes subtotal, shipping and grand total from the
// items. Tax is left to the store's own rules and is not added here.
func (o *Order) CalculateTotals() {
	subtotal := decimal.Zero
	for _, it := range o.Items {
		subtotal = subtotal.Add(it.Total)
	}
	shipping := decimal.Zero
	for _, s := range o.ShippingLines {
		shipping = shipping.Add(s.Total)
	}
	o.Subtotal = subtotal.Round(2)
	o.ShippingTotal = shipping.Round(2)
	o.Total = o.Subtotal.Add(o.ShippingTotal)
}

// ItemCount returns the number of product and shipping lines on the order.
func (o *Order) ItemCount() int {
	return len(o.Items) + len(o.ShippingLines)
}

// Validate reports whether the store would accept o.
func (o *Order) Validate() error {
	if o.CustomerID <= 0 {
		return ErrNoCustomer
	}
	if len(o.Items) == 0 {
		return ErrNoItems
	}
	return nil
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create persists the order with its addresses and items and returns the
	// new order ID.
	Create(ctx context.Context, o *Order) (int64, error)
	GetByID(ctx context.Context, id int64) (*Order, error)
}
