package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const saleItemColumns = `id, sale_id, product_id, qty, unit_price, line_total,
discount_type, discount_value, created_at`

type CreateSaleItemParams struct {
	SaleID        uuid.UUID
	ProductID     uuid.UUID
	Qty           int32
	UnitPrice     pgtype.Numeric
	LineTotal     pgtype.Numeric
	DiscountType  pgtype.Text
	DiscountValue pgtype.Numeric
}

const createSaleItem = `
INSERT INTO sale_items (sale_id, product_id, qty, unit_price, line_total, discount_type, discount_value)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + saleItemColumns

func (q *Queries) CreateSaleItem(ctx context.Context, arg CreateSaleItemParams) (SaleItem, error) {
	row := q.db.QueryRow(ctx, createSaleItem,
		arg.SaleID, arg.ProductID, arg.Qty, arg.UnitPrice, arg.LineTotal,
		arg.DiscountType, arg.DiscountValue,
	)
	var it SaleItem
	err := scanSaleItem(row, &it)
	return it, err
}

type SaleItemWithProductRow struct {
	SaleItem
	ProductName string
}

const listSaleItemsBySale = `
SELECT si.id, si.sale_id, si.product_id, si.qty, si.unit_price, si.line_total,
       si.discount_type, si.discount_value, si.created_at, p.name
FROM sale_items si
JOIN products p ON p.id = si.product_id
WHERE si.sale_id = $1
ORDER BY si.created_at, si.id
`

func (q *Queries) ListSaleItemsBySale(ctx context.Context, saleID uuid.UUID) ([]SaleItemWithProductRow, error) {
	rows, err := q.db.Query(ctx, listSaleItemsBySale, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SaleItemWithProductRow
	for rows.Next() {
		var r SaleItemWithProductRow
		if err := rows.Scan(
			&r.ID, &r.SaleID, &r.ProductID, &r.Qty, &r.UnitPrice, &r.LineTotal,
			&r.DiscountType, &r.DiscountValue, &r.CreatedAt, &r.ProductName,
		); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

type SaleItemAmountRow struct {
	LineTotal     pgtype.Numeric
	DiscountType  pgtype.Text
	DiscountValue pgtype.Numeric
}

const listSaleItemAmounts = `
SELECT line_total, discount_type, discount_value
FROM sale_items
WHERE sale_id = $1
`

// ListSaleItemAmounts is the narrow projection recalculation needs.
func (q *Queries) ListSaleItemAmounts(ctx context.Context, saleID uuid.UUID) ([]SaleItemAmountRow, error) {
	rows, err := q.db.Query(ctx, listSaleItemAmounts, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SaleItemAmountRow
	for rows.Next() {
		var r SaleItemAmountRow
		if err := rows.Scan(&r.LineTotal, &r.DiscountType, &r.DiscountValue); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

type UpdateSaleItemDiscountParams struct {
	ID            uuid.UUID
	SaleID        uuid.UUID
	DiscountType  pgtype.Text
	DiscountValue pgtype.Numeric
}

const updateSaleItemDiscount = `
UPDATE sale_items
SET discount_type = $3, discount_value = $4
WHERE id = $1 AND sale_id = $2
RETURNING ` + saleItemColumns

func (q *Queries) UpdateSaleItemDiscount(ctx context.Context, arg UpdateSaleItemDiscountParams) (SaleItem, error) {
	row := q.db.QueryRow(ctx, updateSaleItemDiscount, arg.ID, arg.SaleID, arg.DiscountType, arg.DiscountValue)
	var it SaleItem
	err := scanSaleItem(row, &it)
	return it, err
}

type DeleteSaleItemParams struct {
	ID     uuid.UUID
	SaleID uuid.UUID
}

const deleteSaleItem = `
DELETE FROM sale_items
WHERE id = $1 AND sale_id = $2
RETURNING id
`

func (q *Queries) DeleteSaleItem(ctx context.Context, arg DeleteSaleItemParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx, deleteSaleItem, arg.ID, arg.SaleID).Scan(&id)
	return id, err
}

func scanSaleItem(row scannable, it *SaleItem) error {
	return row.Scan(
		&it.ID, &it.SaleID, &it.ProductID, &it.Qty, &it.UnitPrice, &it.LineTotal,
		&it.DiscountType, &it.DiscountValue, &it.CreatedAt,
	)
}
