package database

import (
	"context"

	"github.com/google/uuid"
)

const getActiveCompany = `
SELECT id, name, code, is_active, created_at
FROM companies
WHERE id = $1 AND is_active = true
`

func (q *Queries) GetActiveCompany(ctx context.Context, id uuid.UUID) (Company, error) {
	row := q.db.QueryRow(ctx, getActiveCompany, id)
	var c Company
	err := row.Scan(&c.ID, &c.Name, &c.Code, &c.IsActive, &c.CreatedAt)
	return c, err
}

const getActiveCompanyByCode = `
SELECT id, name, code, is_active, created_at
FROM companies
WHERE code = $1 AND is_active = true
`

func (q *Queries) GetActiveCompanyByCode(ctx context.Context, code string) (Company, error) {
	row := q.db.QueryRow(ctx, getActiveCompanyByCode, code)
	var c Company
	err := row.Scan(&c.ID, &c.Name, &c.Code, &c.IsActive, &c.CreatedAt)
	return c, err
}

const listActiveCompanies = `
SELECT id, name, code, is_active, created_at
FROM companies
WHERE is_active = true
ORDER BY created_at ASC
LIMIT $1
`

func (q *Queries) ListActiveCompanies(ctx context.Context, limit int32) ([]Company, error) {
	rows, err := q.db.Query(ctx, listActiveCompanies, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Company
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.Name, &c.Code, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}
