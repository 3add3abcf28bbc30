package database

import (
	"context"

	"github.com/google/uuid"
)

const printJobColumns = `id, order_id, type, status, printed_at, created_at`

const createPrintJob = `
INSERT INTO print_jobs (order_id, type, status)
VALUES ($1, $2, 'PENDING')
RETURNING ` + printJobColumns

type CreatePrintJobParams struct {
	OrderID uuid.UUID
	Type    string
}

func (q *Queries) CreatePrintJob(ctx context.Context, arg CreatePrintJobParams) (PrintJob, error) {
	row := q.db.QueryRow(ctx, createPrintJob, arg.OrderID, arg.Type)
	var pj PrintJob
	err := row.Scan(&pj.ID, &pj.OrderID, &pj.Type, &pj.Status, &pj.PrintedAt, &pj.CreatedAt)
	return pj, err
}

const getPendingPrintJobByOrder = `
SELECT ` + printJobColumns + `
FROM print_jobs
WHERE order_id = $1 AND status = 'PENDING'
ORDER BY created_at DESC
LIMIT 1
`

func (q *Queries) GetPendingPrintJobByOrder(ctx context.Context, orderID uuid.UUID) (PrintJob, error) {
	row := q.db.QueryRow(ctx, getPendingPrintJobByOrder, orderID)
	var pj PrintJob
	err := row.Scan(&pj.ID, &pj.OrderID, &pj.Type, &pj.Status, &pj.PrintedAt, &pj.CreatedAt)
	return pj, err
}

// getPrintJob is scoped through the owning order's company so one tenant can
// never touch another tenant's jobs.
const getPrintJob = `
SELECT pj.id, pj.order_id, pj.type, pj.status, pj.printed_at, pj.created_at
FROM print_jobs pj
JOIN orders o ON o.id = pj.order_id
WHERE pj.id = $1 AND o.company_id = $2
`

type GetPrintJobParams struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
}

func (q *Queries) GetPrintJob(ctx context.Context, arg GetPrintJobParams) (PrintJob, error) {
	row := q.db.QueryRow(ctx, getPrintJob, arg.ID, arg.CompanyID)
	var pj PrintJob
	err := row.Scan(&pj.ID, &pj.OrderID, &pj.Type, &pj.Status, &pj.PrintedAt, &pj.CreatedAt)
	return pj, err
}

const markPrintJobPrinted = `
UPDATE print_jobs
SET status = 'PRINTED', printed_at = now()
WHERE id = $1
RETURNING ` + printJobColumns

func (q *Queries) MarkPrintJobPrinted(ctx context.Context, id uuid.UUID) (PrintJob, error) {
	row := q.db.QueryRow(ctx, markPrintJobPrinted, id)
	var pj PrintJob
	err := row.Scan(&pj.ID, &pj.OrderID, &pj.Type, &pj.Status, &pj.PrintedAt, &pj.CreatedAt)
	return pj, err
}

// ListPrintJobsRow includes enough order context for the printing collaborator
// to render a receipt header without extra lookups.
type ListPrintJobsRow struct {
	PrintJob
	OrderCode string
	TableID   uuid.UUID
	TableName string
}

const listPrintJobsByStatus = `
SELECT pj.id, pj.order_id, pj.type, pj.status, pj.printed_at, pj.created_at,
       o.code, t.id, t.name
FROM print_jobs pj
JOIN orders o ON o.id = pj.order_id
JOIN tables t ON t.id = o.table_id
WHERE o.company_id = $1 AND pj.status = $2
ORDER BY pj.created_at DESC
`

type ListPrintJobsByStatusParams struct {
	CompanyID uuid.UUID
	Status    string
}

func (q *Queries) ListPrintJobsByStatus(ctx context.Context, arg ListPrintJobsByStatusParams) ([]ListPrintJobsRow, error) {
	rows, err := q.db.Query(ctx, listPrintJobsByStatus, arg.CompanyID, arg.Status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListPrintJobsRow
	for rows.Next() {
		var r ListPrintJobsRow
		if err := rows.Scan(&r.ID, &r.OrderID, &r.Type, &r.Status, &r.PrintedAt, &r.CreatedAt,
			&r.OrderCode, &r.TableID, &r.TableName); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
