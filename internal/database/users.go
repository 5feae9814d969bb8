package database

import (
	"context"

	"github.com/google/uuid"
)

const listUsers = `
SELECT id, full_name, role, pin_hash, is_active, created_at
FROM users
WHERE is_active
ORDER BY full_name
`

func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.Query(ctx, listUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.FullName, &u.Role, &u.PinHash, &u.IsActive, &u.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

const getUserByID = `
SELECT id, full_name, role, pin_hash, is_active, created_at
FROM users
WHERE id = $1 AND is_active
`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRow(ctx, getUserByID, id)
	var u User
	err := row.Scan(&u.ID, &u.FullName, &u.Role, &u.PinHash, &u.IsActive, &u.CreatedAt)
	return u, err
}
