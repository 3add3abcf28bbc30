package database

import (
	"context"

	"github.com/google/uuid"
)

const getActiveTable = `
SELECT id, company_id, name, is_active, created_at
FROM tables
WHERE id = $1 AND company_id = $2 AND is_active = true
`

type GetActiveTableParams struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
}

func (q *Queries) GetActiveTable(ctx context.Context, arg GetActiveTableParams) (Table, error) {
	row := q.db.QueryRow(ctx, getActiveTable, arg.ID, arg.CompanyID)
	var t Table
	err := row.Scan(&t.ID, &t.CompanyID, &t.Name, &t.IsActive, &t.CreatedAt)
	return t, err
}

const getTable = `
SELECT id, company_id, name, is_active, created_at
FROM tables
WHERE id = $1 AND company_id = $2
`

type GetTableParams struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
}

func (q *Queries) GetTable(ctx context.Context, arg GetTableParams) (Table, error) {
	row := q.db.QueryRow(ctx, getTable, arg.ID, arg.CompanyID)
	var t Table
	err := row.Scan(&t.ID, &t.CompanyID, &t.Name, &t.IsActive, &t.CreatedAt)
	return t, err
}

const listActiveTables = `
SELECT id, company_id, name, is_active, created_at
FROM tables
WHERE company_id = $1 AND is_active = true
ORDER BY name ASC
`

func (q *Queries) ListActiveTables(ctx context.Context, companyID uuid.UUID) ([]Table, error) {
	rows, err := q.db.Query(ctx, listActiveTables, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Table
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.ID, &t.CompanyID, &t.Name, &t.IsActive, &t.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}
