package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const getProduct = `
SELECT id, company_id, code, name, price_cents, is_active, stock_qty, stock_min, category_id, created_at
FROM products
WHERE id = $1 AND company_id = $2
`

type GetProductParams struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
}

func (q *Queries) GetProduct(ctx context.Context, arg GetProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, getProduct, arg.ID, arg.CompanyID)
	var p Product
	err := row.Scan(&p.ID, &p.CompanyID, &p.Code, &p.Name, &p.PriceCents, &p.IsActive,
		&p.StockQty, &p.StockMin, &p.CategoryID, &p.CreatedAt)
	return p, err
}

const listActiveProducts = `
SELECT id, company_id, code, name, price_cents, is_active, stock_qty, stock_min, category_id, created_at
FROM products
WHERE company_id = $1
  AND is_active = true
  AND (NOT $2::bool OR stock_qty > 0)
  AND ($3::uuid IS NULL OR category_id = $3)
ORDER BY name ASC
`

type ListActiveProductsParams struct {
	CompanyID     uuid.UUID
	OnlyAvailable bool
	CategoryID    pgtype.UUID
}

func (q *Queries) ListActiveProducts(ctx context.Context, arg ListActiveProductsParams) ([]Product, error) {
	rows, err := q.db.Query(ctx, listActiveProducts, arg.CompanyID, arg.OnlyAvailable, arg.CategoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.Code, &p.Name, &p.PriceCents, &p.IsActive,
			&p.StockQty, &p.StockMin, &p.CategoryID, &p.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// decrementProductStock only succeeds when enough stock remains. Running the
// guard and the decrement as one statement is what makes concurrent
// settlements safe: two racing transactions cannot both pass the check.
const decrementProductStock = `
UPDATE products
SET stock_qty = stock_qty - $3
WHERE id = $1 AND company_id = $2 AND stock_qty >= $3
`

type DecrementProductStockParams struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	Qty       int32
}

// DecrementProductStock returns the number of rows updated: 1 on success,
// 0 when stock was insufficient.
func (q *Queries) DecrementProductStock(ctx context.Context, arg DecrementProductStockParams) (int64, error) {
	tag, err := q.db.Exec(ctx, decrementProductStock, arg.ID, arg.CompanyID, arg.Qty)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const productCodeTaken = `
SELECT EXISTS(SELECT 1 FROM products WHERE company_id = $1 AND code = $2)
`

type ProductCodeTakenParams struct {
	CompanyID uuid.UUID
	Code      string
}

func (q *Queries) ProductCodeTaken(ctx context.Context, arg ProductCodeTakenParams) (bool, error) {
	row := q.db.QueryRow(ctx, productCodeTaken, arg.CompanyID, arg.Code)
	var taken bool
	err := row.Scan(&taken)
	return taken, err
}
