package database

import (
	"context"

	"github.com/google/uuid"
)

const tableColumns = `id, number, name, status, current_sale_id, opened_at, is_merged, merged_into_table_id`

const listTables = `
SELECT ` + tableColumns + `
FROM restaurant_tables
ORDER BY number
`

func (q *Queries) ListTables(ctx context.Context) ([]RestaurantTable, error) {
	rows, err := q.db.Query(ctx, listTables)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RestaurantTable
	for rows.Next() {
		var t RestaurantTable
		if err := scanTable(rows, &t); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const getTable = `
SELECT ` + tableColumns + `
FROM restaurant_tables
WHERE id = $1
`

func (q *Queries) GetTable(ctx context.Context, id uuid.UUID) (RestaurantTable, error) {
	var t RestaurantTable
	err := scanTable(q.db.QueryRow(ctx, getTable, id), &t)
	return t, err
}

type ClaimTableParams struct {
	ID     uuid.UUID
	SaleID uuid.UUID
}

// claimTable only succeeds while the table is free on both occupancy
// signals; zero rows means another terminal got there first.
const claimTable = `
UPDATE restaurant_tables
SET status = 'occupied', current_sale_id = $2, opened_at = now()
WHERE id = $1 AND status = 'available' AND current_sale_id IS NULL
RETURNING ` + tableColumns

func (q *Queries) ClaimTable(ctx context.Context, arg ClaimTableParams) (RestaurantTable, error) {
	var t RestaurantTable
	err := scanTable(q.db.QueryRow(ctx, claimTable, arg.ID, arg.SaleID), &t)
	return t, err
}

type ReleaseTableParams struct {
	ID     uuid.UUID
	SaleID uuid.UUID
}

const releaseTable = `
UPDATE restaurant_tables
SET status = 'available', current_sale_id = NULL, opened_at = NULL
WHERE id = $1 AND current_sale_id = $2
RETURNING ` + tableColumns

func (q *Queries) ReleaseTable(ctx context.Context, arg ReleaseTableParams) (RestaurantTable, error) {
	var t RestaurantTable
	err := scanTable(q.db.QueryRow(ctx, releaseTable, arg.ID, arg.SaleID), &t)
	return t, err
}

type FreeMergedTableParams struct {
	ID                uuid.UUID
	SaleID            uuid.UUID
	MergedIntoTableID uuid.UUID
}

const freeMergedTable = `
UPDATE restaurant_tables
SET status = 'available', current_sale_id = NULL, opened_at = NULL,
    is_merged = TRUE, merged_into_table_id = $3
WHERE id = $1 AND current_sale_id = $2
RETURNING ` + tableColumns

func (q *Queries) FreeMergedTable(ctx context.Context, arg FreeMergedTableParams) (RestaurantTable, error) {
	var t RestaurantTable
	err := scanTable(q.db.QueryRow(ctx, freeMergedTable, arg.ID, arg.SaleID, arg.MergedIntoTableID), &t)
	return t, err
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanTable(row scannable, t *RestaurantTable) error {
	return row.Scan(
		&t.ID, &t.Number, &t.Name, &t.Status,
		&t.CurrentSaleID, &t.OpenedAt, &t.IsMerged, &t.MergedIntoTableID,
	)
}
