package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storesync/internal/domain/pricing"
	"github.com/xenking/storesync/internal/sanitize"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrInvalidSKU is returned by the store when a product has an empty SKU
	// or one already taken by another product.
	ErrInvalidSKU = errors.New("invalid or duplicated SKU")
	// ErrNegativePrice is returned by the store for prices below zero.
	ErrNegativePrice = errors.New("price must not be negative")
)

// TypeSimple is the only product type the sync creates.
const TypeSimple = "simple"

// Product represents a catalog item stored in the commerce store.
type Product struct {
	ID            int64
	SKU           string
	Type          string
	Name          string
	Description   string
	RegularPrice  decimal.Decimal
	SalePrice     decimal.Decimal
	StockQuantity int
	ManageStock   bool
	Weight        decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Input carries the catalog fields supplied by a sync request.
type Input struct {
	SKU           string
	Title         string
	Description   string
	Price         decimal.Decimal
	StockQuantity int
	Weight        decimal.Decimal
}

// New returns an unsaved simple product with the given SKU.
func New(sku string) *Product {
	return &Product{
		SKU:  sku,
		Type: TypeSimple,
	}
}

// Apply overwrites the catalog fields of p with in. The sale price is always
// derived from the regular price as stored, and stock is always managed.
func (p *Product) Apply(in Input) {
	p.Name = sanitize.Text(in.Title)
	p.Description = sanitize.Textarea(in.Description)
	p.RegularPrice = pricing.RoundPrice(in.Price)
	p.SalePrice = pricing.SalePrice(p.RegularPrice)
	p.StockQuantity = in.StockQuantity
	p.ManageStock = true
	p.Weight = in.Weight
}

// Price returns the price a customer pays: the sale price when one is set,
// otherwise the regular price.
func (p *Product) Price() decimal.Decimal {
	if p.SalePrice.IsPositive() {
		return p.SalePrice
	}
	return p.RegularPrice
}

// Validate reports whether the store would accept p.
func (p *Product) Validate() error {
	if p.SKU == "" {
		return ErrInvalidSKU
	}
	if p.RegularPrice.IsNegative() || p.SalePrice.IsNegative() {
		return ErrNegativePrice
	}
	return nil
}

// Repository defines the Product Store operations the sync needs.
type Repository interface {
	// FindIDBySKU returns the ID of the product with the given SKU, or
	// ErrNotFound.
	FindIDBySKU(ctx context.Context, sku string) (int64, error)
	GetByID(ctx context.Context, id int64) (*Product, error)
	// Save inserts p when p.ID is zero and updates it otherwise, returning the
	// product ID.
	Save(ctx context.Context, p *Product) (int64, error)
}
