package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storesync/internal/domain/product"
)

const (
	findProductIDBySKUSQL = `SELECT id FROM products WHERE sku = $1`

	getProductByIDSQL = `SELECT id, sku, type, name, description, regular_price, sale_price,
		stock_quantity, manage_stock, weight, created_at, updated_at
		FROM products WHERE id = $1`

	insertProductSQL = `INSERT INTO products
		(sku, type, name, description, regular_price, sale_price, stock_quantity, manage_stock, weight)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	updateProductSQL = `UPDATE products SET
		sku = $2, type = $3, name = $4, description = $5, regular_price = $6, sale_price = $7,
		stock_quantity = $8, manage_stock = $9, weight = $10, updated_at = now()
		WHERE id = $1`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// FindIDBySKU returns the ID of the product with the given SKU.
func (r *ProductRepository) FindIDBySKU(ctx context.Context, sku string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, findProductIDBySKUSQL, sku).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, product.ErrNotFound
		}
		return 0, fmt.Errorf("finding product by sku %q: %w", sku, err)
	}
	return id, nil
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	return &p, nil
}

// Save inserts p when it has no ID and updates it otherwise.
func (r *ProductRepository) Save(ctx context.Context, p *product.Product) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	if p.ID == 0 {
		var id int64
		err := r.pool.QueryRow(ctx, insertProductSQL,
			p.SKU, p.Type, p.Name, p.Description, p.RegularPrice, p.SalePrice,
			p.StockQuantity, p.ManageStock, p.Weight,
		).Scan(&id)
		if err != nil {
			return 0, mapProductError(err, fmt.Sprintf("creating product %q", p.SKU))
		}
		return id, nil
	}

	tag, err := r.pool.Exec(ctx, updateProductSQL,
		p.ID, p.SKU, p.Type, p.Name, p.Description, p.RegularPrice, p.SalePrice,
		p.StockQuantity, p.ManageStock, p.Weight,
	)
	if err != nil {
		return 0, mapProductError(err, fmt.Sprintf("updating product %d", p.ID))
	}
	if tag.RowsAffected() == 0 {
		return 0, product.ErrNotFound
	}
	return p.ID, nil
}

func mapProductError(err error, op string) error {
	if _, ok := constraintViolation(err, uniqueViolation); ok {
		return product.ErrInvalidSKU
	}
	if name, ok := constraintViolation(err, checkViolation); ok {
		if name == "products_sku_check" {
			return product.ErrInvalidSKU
		}
		return product.ErrNegativePrice
	}
	return fmt.Errorf("%s: %w", op, err)
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.SKU, &p.Type, &p.Name, &p.Description, &p.RegularPrice, &p.SalePrice,
		&p.StockQuantity, &p.ManageStock, &p.Weight, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}
