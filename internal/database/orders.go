package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, company_id, code, table_id, user_id, status, service_enabled, service_rate_bps,
subtotal_cents, service_cents, total_cents, payment_method, created_at, closed_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.CompanyID, &o.Code, &o.TableID, &o.UserID, &o.Status,
		&o.ServiceEnabled, &o.ServiceRateBps, &o.SubtotalCents, &o.ServiceCents,
		&o.TotalCents, &o.PaymentMethod, &o.CreatedAt, &o.ClosedAt)
	return o, err
}

const getOrder = `
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1 AND company_id = $2
`

type GetOrderParams struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, arg.ID, arg.CompanyID))
}

// getOrderForUpdate locks the order row for the duration of the transaction,
// serializing concurrent transitions on the same order.
const getOrderForUpdate = `
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1 AND company_id = $2
FOR NO KEY UPDATE
`

type GetOrderForUpdateParams struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
}

func (q *Queries) GetOrderForUpdate(ctx context.Context, arg GetOrderForUpdateParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, arg.ID, arg.CompanyID))
}

// findOpenOrderByTable returns the most recent order still being waited on at
// the table. WAITING_PAYMENT is deliberately excluded: once an order is at the
// cashier a new tab may be opened for the next customers.
const findOpenOrderByTable = `
SELECT ` + orderColumns + `
FROM orders
WHERE table_id = $1 AND company_id = $2
  AND status IN ('OPEN', 'SENT_TO_KITCHEN', 'READY')
  AND closed_at IS NULL
ORDER BY created_at DESC
LIMIT 1
`

type FindOpenOrderByTableParams struct {
	TableID   uuid.UUID
	CompanyID uuid.UUID
}

func (q *Queries) FindOpenOrderByTable(ctx context.Context, arg FindOpenOrderByTableParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, findOpenOrderByTable, arg.TableID, arg.CompanyID))
}

const createOrder = `
INSERT INTO orders (company_id, code, table_id, user_id, status, service_enabled, service_rate_bps)
VALUES ($1, $2, $3, $4, 'OPEN', true, $5)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	CompanyID      uuid.UUID
	Code           string
	TableID        uuid.UUID
	UserID         pgtype.UUID
	ServiceRateBps int32
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder,
		arg.CompanyID, arg.Code, arg.TableID, arg.UserID, arg.ServiceRateBps))
}

// assignOrderUser attaches a staff user only when none is assigned yet.
const assignOrderUser = `
UPDATE orders
SET user_id = $2
WHERE id = $1 AND user_id IS NULL
RETURNING ` + orderColumns

type AssignOrderUserParams struct {
	ID     uuid.UUID
	UserID uuid.UUID
}

func (q *Queries) AssignOrderUser(ctx context.Context, arg AssignOrderUserParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, assignOrderUser, arg.ID, arg.UserID))
}

const updateOrderStatus = `
UPDATE orders
SET status = $3
WHERE id = $1 AND company_id = $2
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	Status    string
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.CompanyID, arg.Status))
}

// cancelOrder is only legal from a non-terminal status; terminal orders
// produce ErrNoRows.
const cancelOrder = `
UPDATE orders
SET status = 'CANCELED', closed_at = now()
WHERE id = $1 AND company_id = $2
  AND status NOT IN ('CLOSED', 'CANCELED')
RETURNING ` + orderColumns

type CancelOrderParams struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
}

func (q *Queries) CancelOrder(ctx context.Context, arg CancelOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, cancelOrder, arg.ID, arg.CompanyID))
}

const updateOrderService = `
UPDATE orders
SET service_enabled = $3, subtotal_cents = $4, service_cents = $5, total_cents = $6
WHERE id = $1 AND company_id = $2
RETURNING ` + orderColumns

type UpdateOrderServiceParams struct {
	ID             uuid.UUID
	CompanyID      uuid.UUID
	ServiceEnabled bool
	SubtotalCents  int64
	ServiceCents   int64
	TotalCents     int64
}

func (q *Queries) UpdateOrderService(ctx context.Context, arg UpdateOrderServiceParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderService,
		arg.ID, arg.CompanyID, arg.ServiceEnabled, arg.SubtotalCents, arg.ServiceCents, arg.TotalCents))
}

const setOrderPaymentMethod = `
UPDATE orders
SET payment_method = $3
WHERE id = $1 AND company_id = $2
RETURNING ` + orderColumns

type SetOrderPaymentMethodParams struct {
	ID            uuid.UUID
	CompanyID     uuid.UUID
	PaymentMethod string
}

func (q *Queries) SetOrderPaymentMethod(ctx context.Context, arg SetOrderPaymentMethodParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, setOrderPaymentMethod, arg.ID, arg.CompanyID, arg.PaymentMethod))
}

const closeOrder = `
UPDATE orders
SET status = 'CLOSED', closed_at = now(), subtotal_cents = $3, service_cents = $4, total_cents = $5
WHERE id = $1 AND company_id = $2
RETURNING ` + orderColumns

type CloseOrderParams struct {
	ID            uuid.UUID
	CompanyID     uuid.UUID
	SubtotalCents int64
	ServiceCents  int64
	TotalCents    int64
}

func (q *Queries) CloseOrder(ctx context.Context, arg CloseOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, closeOrder,
		arg.ID, arg.CompanyID, arg.SubtotalCents, arg.ServiceCents, arg.TotalCents))
}

// cancelSiblingOrders invalidates every other live order on the table once one
// order proceeds to payment. Keeps the one-live-order-per-table invariant.
const cancelSiblingOrders = `
UPDATE orders
SET status = 'CANCELED', closed_at = now()
WHERE table_id = $1 AND company_id = $2 AND id <> $3
  AND status IN ('OPEN', 'SENT_TO_KITCHEN', 'READY', 'WAITING_PAYMENT')
  AND closed_at IS NULL
`

type CancelSiblingOrdersParams struct {
	TableID   uuid.UUID
	CompanyID uuid.UUID
	ExcludeID uuid.UUID
}

func (q *Queries) CancelSiblingOrders(ctx context.Context, arg CancelSiblingOrdersParams) (int64, error) {
	tag, err := q.db.Exec(ctx, cancelSiblingOrders, arg.TableID, arg.CompanyID, arg.ExcludeID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const listOrders = `
SELECT ` + orderColumns + `
FROM orders
WHERE company_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

type ListOrdersParams struct {
	CompanyID uuid.UUID
	Limit     int32
	Offset    int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.CompanyID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

// listKitchenOrders feeds the kitchen display poll: everything not yet at the
// cashier, oldest first.
const listKitchenOrders = `
SELECT ` + orderColumns + `
FROM orders
WHERE company_id = $1
  AND status IN ('OPEN', 'SENT_TO_KITCHEN', 'READY')
ORDER BY created_at ASC
`

func (q *Queries) ListKitchenOrders(ctx context.Context, companyID uuid.UUID) ([]Order, error) {
	rows, err := q.db.Query(ctx, listKitchenOrders, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

// getTableCurrentOrder picks the order a cashier or waiter cares about for a
// table overview: payment first, then kitchen progress, newest wins.
const getTableCurrentOrder = `
SELECT ` + orderColumns + `
FROM orders
WHERE table_id = $1 AND company_id = $2
  AND status IN ('SENT_TO_KITCHEN', 'READY', 'WAITING_PAYMENT')
  AND closed_at IS NULL
ORDER BY CASE status
	WHEN 'WAITING_PAYMENT' THEN 0
	WHEN 'READY' THEN 1
	ELSE 2
END, created_at DESC
LIMIT 1
`

type GetTableCurrentOrderParams struct {
	TableID   uuid.UUID
	CompanyID uuid.UUID
}

func (q *Queries) GetTableCurrentOrder(ctx context.Context, arg GetTableCurrentOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getTableCurrentOrder, arg.TableID, arg.CompanyID))
}

const orderCodeTaken = `
SELECT EXISTS(SELECT 1 FROM orders WHERE company_id = $1 AND code = $2)
`

type OrderCodeTakenParams struct {
	CompanyID uuid.UUID
	Code      string
}

func (q *Queries) OrderCodeTaken(ctx context.Context, arg OrderCodeTakenParams) (bool, error) {
	row := q.db.QueryRow(ctx, orderCodeTaken, arg.CompanyID, arg.Code)
	var taken bool
	err := row.Scan(&taken)
	return taken, err
}
