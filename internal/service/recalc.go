package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sofra-pos/api/internal/database"
	"github.com/sofra-pos/api/internal/pricing"
)

// RecalcStore defines the DB methods sale recalculation needs.
// Satisfied by *database.Queries (and its WithTx variant).
type RecalcStore interface {
	ListSaleItemAmounts(ctx context.Context, saleID uuid.UUID) ([]database.SaleItemAmountRow, error)
	GetSale(ctx context.Context, id uuid.UUID) (database.Sale, error)
	UpdateSaleTotals(ctx context.Context, arg database.UpdateSaleTotalsParams) (database.Sale, error)
}

// RecalculateSale re-derives a sale's totals from its stored line items and
// persists them: total_amount is the sum of discounted line totals,
// final_amount is that sum after the sale-level discount, floored at zero.
// A sale with no line items is left untouched. Idempotent.
//
// It runs against whatever store it is handed, so callers invoke it inside
// their own transaction and a failure rolls the whole operation back.
func RecalculateSale(ctx context.Context, store RecalcStore, saleID uuid.UUID) error {
	items, err := store.ListSaleItemAmounts(ctx, saleID)
	if err != nil {
		return fmt.Errorf("list sale item amounts: %w", err)
	}
	if len(items) == 0 {
		return nil
	}

	amounts := make([]pricing.ItemAmount, len(items))
	for i, it := range items {
		amounts[i] = pricing.ItemAmount{
			LineTotal: numericToDecimal(it.LineTotal),
			Discount:  discountFromColumns(it.DiscountType, it.DiscountValue),
		}
	}
	itemsTotal := pricing.ExistingItemsTotal(amounts)

	sale, err := store.GetSale(ctx, saleID)
	if err != nil {
		return fmt.Errorf("get sale: %w", err)
	}

	finalAmount := pricing.Apply(itemsTotal, discountFromColumns(sale.DiscountType, sale.DiscountValue))
	if finalAmount.IsNegative() {
		finalAmount = decimal.Zero
	}

	if _, err := store.UpdateSaleTotals(ctx, database.UpdateSaleTotalsParams{
		ID:          saleID,
		TotalAmount: decimalToNumeric(itemsTotal),
		FinalAmount: decimalToNumeric(finalAmount),
	}); err != nil {
		return fmt.Errorf("update sale totals: %w", err)
	}
	return nil
}
