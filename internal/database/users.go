package database

import (
	"context"

	"github.com/google/uuid"
)

const getActiveUser = `
SELECT id, company_id, name, role, pin_hash, is_active, created_at
FROM users
WHERE id = $1 AND company_id = $2 AND is_active = true
`

type GetActiveUserParams struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
}

func (q *Queries) GetActiveUser(ctx context.Context, arg GetActiveUserParams) (User, error) {
	row := q.db.QueryRow(ctx, getActiveUser, arg.ID, arg.CompanyID)
	var u User
	err := row.Scan(&u.ID, &u.CompanyID, &u.Name, &u.Role, &u.PinHash, &u.IsActive, &u.CreatedAt)
	return u, err
}
