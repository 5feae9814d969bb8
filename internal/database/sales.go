package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const saleColumns = `id, total_amount, final_amount, discount_type, discount_value,
payment_status, is_paid, payment_method, user_id, opened_at, paid_at, merged_into_sale_id`

type CreateSaleParams struct {
	TotalAmount pgtype.Numeric
	FinalAmount pgtype.Numeric
	UserID      uuid.UUID
}

const createSale = `
INSERT INTO sales (total_amount, final_amount, payment_status, is_paid, user_id, opened_at)
VALUES ($1, $2, 'pending', FALSE, $3, now())
RETURNING ` + saleColumns

func (q *Queries) CreateSale(ctx context.Context, arg CreateSaleParams) (Sale, error) {
	var s Sale
	err := scanSale(q.db.QueryRow(ctx, createSale, arg.TotalAmount, arg.FinalAmount, arg.UserID), &s)
	return s, err
}

const getSale = `
SELECT ` + saleColumns + `
FROM sales
WHERE id = $1
`

func (q *Queries) GetSale(ctx context.Context, id uuid.UUID) (Sale, error) {
	var s Sale
	err := scanSale(q.db.QueryRow(ctx, getSale, id), &s)
	return s, err
}

// GetOpenSale locks the row so concurrent terminals serialize on the same
// open sale during submit, discount, and settlement.
const getOpenSale = `
SELECT ` + saleColumns + `
FROM sales
WHERE id = $1 AND payment_status = 'pending'
FOR NO KEY UPDATE
`

func (q *Queries) GetOpenSale(ctx context.Context, id uuid.UUID) (Sale, error) {
	var s Sale
	err := scanSale(q.db.QueryRow(ctx, getOpenSale, id), &s)
	return s, err
}

type UpdateSaleTotalsParams struct {
	ID          uuid.UUID
	TotalAmount pgtype.Numeric
	FinalAmount pgtype.Numeric
}

const updateSaleTotals = `
UPDATE sales
SET total_amount = $2, final_amount = $3
WHERE id = $1
RETURNING ` + saleColumns

func (q *Queries) UpdateSaleTotals(ctx context.Context, arg UpdateSaleTotalsParams) (Sale, error) {
	var s Sale
	err := scanSale(q.db.QueryRow(ctx, updateSaleTotals, arg.ID, arg.TotalAmount, arg.FinalAmount), &s)
	return s, err
}

type UpdateSaleDiscountParams struct {
	ID            uuid.UUID
	DiscountType  pgtype.Text
	DiscountValue pgtype.Numeric
}

const updateSaleDiscount = `
UPDATE sales
SET discount_type = $2, discount_value = $3
WHERE id = $1 AND payment_status = 'pending'
RETURNING ` + saleColumns

func (q *Queries) UpdateSaleDiscount(ctx context.Context, arg UpdateSaleDiscountParams) (Sale, error) {
	var s Sale
	err := scanSale(q.db.QueryRow(ctx, updateSaleDiscount, arg.ID, arg.DiscountType, arg.DiscountValue), &s)
	return s, err
}

type MarkSalePaidParams struct {
	ID            uuid.UUID
	PaymentMethod string
}

// Zero rows means the sale was already settled or merged by another
// terminal between read and write.
const markSalePaid = `
UPDATE sales
SET payment_status = 'paid', is_paid = TRUE, payment_method = $2, paid_at = now()
WHERE id = $1 AND payment_status = 'pending'
RETURNING ` + saleColumns

func (q *Queries) MarkSalePaid(ctx context.Context, arg MarkSalePaidParams) (Sale, error) {
	var s Sale
	err := scanSale(q.db.QueryRow(ctx, markSalePaid, arg.ID, arg.PaymentMethod), &s)
	return s, err
}

type MarkSaleMergedParams struct {
	ID               uuid.UUID
	MergedIntoSaleID uuid.UUID
}

const markSaleMerged = `
UPDATE sales
SET payment_status = 'merged', merged_into_sale_id = $2
WHERE id = $1 AND payment_status = 'pending'
RETURNING ` + saleColumns

func (q *Queries) MarkSaleMerged(ctx context.Context, arg MarkSaleMergedParams) (Sale, error) {
	var s Sale
	err := scanSale(q.db.QueryRow(ctx, markSaleMerged, arg.ID, arg.MergedIntoSaleID), &s)
	return s, err
}

const listAbsorbedSales = `
SELECT ` + saleColumns + `
FROM sales
WHERE merged_into_sale_id = $1
ORDER BY opened_at
`

// ListAbsorbedSales returns the merge audit trail for a target sale: every
// sale that was folded into it, in the order they were opened.
func (q *Queries) ListAbsorbedSales(ctx context.Context, targetSaleID uuid.UUID) ([]Sale, error) {
	rows, err := q.db.Query(ctx, listAbsorbedSales, targetSaleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Sale
	for rows.Next() {
		var s Sale
		if err := scanSale(rows, &s); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

type DailySalesSummaryRow struct {
	SaleCount int64
	TotalPaid pgtype.Numeric
}

const dailySalesSummary = `
SELECT COUNT(*), COALESCE(SUM(final_amount), 0)
FROM sales
WHERE is_paid AND paid_at >= date_trunc('day', now())
`

func (q *Queries) DailySalesSummary(ctx context.Context) (DailySalesSummaryRow, error) {
	var r DailySalesSummaryRow
	err := q.db.QueryRow(ctx, dailySalesSummary).Scan(&r.SaleCount, &r.TotalPaid)
	return r, err
}

func scanSale(row scannable, s *Sale) error {
	return row.Scan(
		&s.ID, &s.TotalAmount, &s.FinalAmount, &s.DiscountType, &s.DiscountValue,
		&s.PaymentStatus, &s.IsPaid, &s.PaymentMethod, &s.UserID,
		&s.OpenedAt, &s.PaidAt, &s.MergedIntoSaleID,
	)
}
