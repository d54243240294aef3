package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storesync/internal/domain/order"
	"github.com/xenking/storesync/internal/sanitize"
)

const (
	itemTypeLine     = "line_item"
	itemTypeShipping = "shipping"

	insertOrderSQL = `INSERT INTO orders
		(order_key, customer_id, status, currency, subtotal, shipping_total, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	insertOrderAddressSQL = `INSERT INTO order_addresses
		(order_id, kind, first_name, last_name, company, address_1, address_2,
		 city, state, postcode, country, email, phone)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	insertOrderItemSQL = `INSERT INTO order_items
		(order_id, position, item_type, product_id, name, sku, quantity, subtotal, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	getOrderSQL = `SELECT id, order_key, customer_id, status, currency, subtotal, shipping_total, total, created_at
		FROM orders WHERE id = $1`

	getOrderAddressesSQL = `SELECT kind, first_name, last_name, company, address_1, address_2,
		city, state, postcode, country, email, phone
		FROM order_addresses WHERE order_id = $1`

	getOrderItemsSQL = `SELECT item_type, product_id, name, sku, quantity, subtotal, total
		FROM order_items WHERE order_id = $1 ORDER BY position`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order, its addresses and its items in one
// transaction.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) (int64, error) {
	if err := o.Validate(); err != nil {
		return 0, err
	}

	var id int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, insertOrderSQL,
			o.Key, o.CustomerID, o.Status, o.Currency, o.Subtotal, o.ShippingTotal, o.Total,
		).Scan(&id, &o.CreatedAt); err != nil {
			return fmt.Errorf("inserting order: %w", err)
		}

		b := &pgx.Batch{}
		queueAddress(b, id, order.AddressBilling, o.Billing)
		queueAddress(b, id, order.AddressShipping, o.Shipping)

		pos := 0
		for _, it := range o.Items {
			pos++
			b.Queue(insertOrderItemSQL, id, pos, itemTypeLine, it.ProductID, it.Name, it.SKU,
				it.Quantity, it.Subtotal, it.Total)
		}
		for _, s := range o.ShippingLines {
			pos++
			b.Queue(insertOrderItemSQL, id, pos, itemTypeShipping, nil, s.MethodTitle, "",
				0, s.Total, s.Total)
		}

		if err := tx.SendBatch(ctx, b).Close(); err != nil {
			return fmt.Errorf("inserting order lines: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("creating order %q: %w", o.Key, err)
	}

	return id, nil
}

func queueAddress(b *pgx.Batch, orderID int64, kind order.AddressKind, a sanitize.Address) {
	b.Queue(insertOrderAddressSQL, orderID, string(kind),
		a.FirstName, a.LastName, a.Company, a.Address1, a.Address2,
		a.City, a.State, a.Postcode, a.Country, a.Email, a.Phone,
	)
}

// GetByID loads an order with its addresses and items.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	var o order.Order
	err := r.pool.QueryRow(ctx, getOrderSQL, id).Scan(
		&o.ID, &o.Key, &o.CustomerID, &o.Status, &o.Currency,
		&o.Subtotal, &o.ShippingTotal, &o.Total, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}

	if err := r.loadAddresses(ctx, &o); err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) loadAddresses(ctx context.Context, o *order.Order) error {
	rows, err := r.pool.Query(ctx, getOrderAddressesSQL, o.ID)
	if err != nil {
		return fmt.Errorf("getting addresses of order %d: %w", o.ID, err)
	}

	var (
		kind string
		a    sanitize.Address
	)
	_, err = pgx.ForEachRow(rows, []any{
		&kind, &a.FirstName, &a.LastName, &a.Company, &a.Address1, &a.Address2,
		&a.City, &a.State, &a.Postcode, &a.Country, &a.Email, &a.Phone,
	}, func() error {
		switch order.AddressKind(kind) {
		case order.AddressBilling:
			o.Billing = a
		case order.AddressShipping:
			o.Shipping = a
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("getting addresses of order %d: %w", o.ID, err)
	}
	return nil
}

func (r *OrderRepository) loadItems(ctx context.Context, o *order.Order) error {
	rows, err := r.pool.Query(ctx, getOrderItemsSQL, o.ID)
	if err != nil {
		return fmt.Errorf("getting items of order %d: %w", o.ID, err)
	}

	var (
		itemType  string
		productID *int64
		name, sku string
		quantity  int
		subtotal  decimal.Decimal
		total     decimal.Decimal
	)
	_, err = pgx.ForEachRow(rows, []any{&itemType, &productID, &name, &sku, &quantity, &subtotal, &total}, func() error {
		if itemType == itemTypeShipping {
			o.ShippingLines = append(o.ShippingLines, order.ShippingLine{MethodTitle: name, Total: total})
			return nil
		}
		var pid int64
		if productID != nil {
			pid = *productID
		}
		o.Items = append(o.Items, order.LineItem{
			ProductID: pid,
			Name:      name,
			SKU:       sku,
			Quantity:  quantity,
			Subtotal:  subtotal,
			Total:     total,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("getting items of order %d: %w", o.ID, err)
	}
	return nil
}
