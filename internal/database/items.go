package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const itemColumns = `id, order_id, product_id, qty, note, sent_to_kitchen_at, prepared_at,
canceled_at, canceled_reason, canceled_by, created_at`

const createOrderItem = `
INSERT INTO order_items (order_id, product_id, qty, note)
VALUES ($1, $2, $3, $4)
RETURNING ` + itemColumns

type CreateOrderItemParams struct {
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Qty       int32
	Note      pgtype.Text
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem, arg.OrderID, arg.ProductID, arg.Qty, arg.Note)
	var it OrderItem
	err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Qty, &it.Note,
		&it.SentToKitchenAt, &it.PreparedAt, &it.CanceledAt, &it.CanceledReason,
		&it.CanceledBy, &it.CreatedAt)
	return it, err
}

const getOrderItem = `
SELECT ` + itemColumns + `
FROM order_items
WHERE id = $1 AND order_id = $2
`

type GetOrderItemParams struct {
	ID      uuid.UUID
	OrderID uuid.UUID
}

func (q *Queries) GetOrderItem(ctx context.Context, arg GetOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, getOrderItem, arg.ID, arg.OrderID)
	var it OrderItem
	err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Qty, &it.Note,
		&it.SentToKitchenAt, &it.PreparedAt, &it.CanceledAt, &it.CanceledReason,
		&it.CanceledBy, &it.CreatedAt)
	return it, err
}

// OrderItemWithProduct carries the product name and unit price alongside the
// item, for totals, receipts and kitchen views.
type OrderItemWithProduct struct {
	OrderItem
	ProductName       string
	ProductPriceCents int64
}

const listOrderItemsWithProduct = `
SELECT i.id, i.order_id, i.product_id, i.qty, i.note, i.sent_to_kitchen_at, i.prepared_at,
       i.canceled_at, i.canceled_reason, i.canceled_by, i.created_at,
       p.name, p.price_cents
FROM order_items i
JOIN products p ON p.id = i.product_id
WHERE i.order_id = $1
ORDER BY i.created_at ASC
`

func (q *Queries) ListOrderItemsWithProduct(ctx context.Context, orderID uuid.UUID) ([]OrderItemWithProduct, error) {
	rows, err := q.db.Query(ctx, listOrderItemsWithProduct, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItemWithProduct
	for rows.Next() {
		var it OrderItemWithProduct
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Qty, &it.Note,
			&it.SentToKitchenAt, &it.PreparedAt, &it.CanceledAt, &it.CanceledReason,
			&it.CanceledBy, &it.CreatedAt, &it.ProductName, &it.ProductPriceCents); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// markItemsSent stamps every item not yet sent and not canceled; the prepared
// timestamp is cleared so re-sent items show up fresh on the kitchen display.
const markItemsSent = `
UPDATE order_items
SET sent_to_kitchen_at = now(), prepared_at = NULL
WHERE order_id = $1 AND sent_to_kitchen_at IS NULL AND canceled_at IS NULL
`

func (q *Queries) MarkItemsSent(ctx context.Context, orderID uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, markItemsSent, orderID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const markItemsPrepared = `
UPDATE order_items
SET prepared_at = now()
WHERE order_id = $1 AND sent_to_kitchen_at IS NOT NULL
  AND prepared_at IS NULL AND canceled_at IS NULL
`

func (q *Queries) MarkItemsPrepared(ctx context.Context, orderID uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, markItemsPrepared, orderID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// cancelOrderItem refuses items already canceled or already prepared; either
// produces ErrNoRows.
const cancelOrderItem = `
UPDATE order_items
SET canceled_at = now(), canceled_reason = $3, canceled_by = $4
WHERE id = $1 AND order_id = $2 AND canceled_at IS NULL AND prepared_at IS NULL
RETURNING ` + itemColumns

type CancelOrderItemParams struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	Reason     pgtype.Text
	CanceledBy pgtype.Text
}

func (q *Queries) CancelOrderItem(ctx context.Context, arg CancelOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, cancelOrderItem, arg.ID, arg.OrderID, arg.Reason, arg.CanceledBy)
	var it OrderItem
	err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Qty, &it.Note,
		&it.SentToKitchenAt, &it.PreparedAt, &it.CanceledAt, &it.CanceledReason,
		&it.CanceledBy, &it.CreatedAt)
	return it, err
}
