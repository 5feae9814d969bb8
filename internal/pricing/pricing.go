// Package pricing holds the pure money arithmetic for carts and sales:
// the discount rule, cart aggregation, and the grand-total calculation.
package pricing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sofra-pos/api/internal/enum"
)

// Discount is a percentage-or-fixed deduction. A percentage value is read
// as 0-100; entry validation is the caller's job.
type Discount struct {
	Type  string
	Value decimal.Decimal
}

// Apply returns base after the discount. A nil discount or a non-positive
// value leaves base unchanged. The result is deliberately not clamped at
// zero; the clamp happens once, at the grand-total level.
func Apply(base decimal.Decimal, d *Discount) decimal.Decimal {
	if d == nil || !d.Value.IsPositive() {
		return base
	}
	if d.Type == enum.DiscountTypePercentage {
		return base.Sub(base.Mul(d.Value).Div(decimal.NewFromInt(100)))
	}
	// Anything else is a fixed deduction.
	return base.Sub(d.Value)
}

// CartEntry is one unit of a product as tapped on the terminal. A product
// without a price contributes a zero unit price.
type CartEntry struct {
	ProductID uuid.UUID
	Name      string
	UnitPrice decimal.Decimal
}

// CartLine is an aggregated cart row.
type CartLine struct {
	ProductID uuid.UUID
	Name      string
	UnitPrice decimal.Decimal
	Qty       int32
	LineTotal decimal.Decimal
}

// AggregateCart groups repeated entries by product id, preserving the order
// in which each product first appeared.
func AggregateCart(entries []CartEntry) []CartLine {
	index := make(map[uuid.UUID]int, len(entries))
	var lines []CartLine
	for _, e := range entries {
		i, ok := index[e.ProductID]
		if !ok {
			index[e.ProductID] = len(lines)
			lines = append(lines, CartLine{ProductID: e.ProductID, Name: e.Name, UnitPrice: e.UnitPrice})
			i = len(lines) - 1
		}
		lines[i].Qty++
		lines[i].LineTotal = e.UnitPrice.Mul(decimal.NewFromInt32(lines[i].Qty))
	}
	return lines
}

func NewItemsTotal(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineTotal)
	}
	return total
}

// ItemAmount is the slice of a stored line item that totals care about.
type ItemAmount struct {
	LineTotal decimal.Decimal
	Discount  *Discount
}

// ExistingItemsTotal sums discounted line totals. Individual items may go
// negative under a large fixed discount and silently subsidize the rest;
// only the grand total is floored.
func ExistingItemsTotal(items []ItemAmount) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(Apply(it.LineTotal, it.Discount))
	}
	return total
}

// GrandTotal applies the sale-level discount over everything on the bill
// and clamps the result at zero.
func GrandTotal(existingTotal, newItemsTotal decimal.Decimal, saleDiscount *Discount) decimal.Decimal {
	total := Apply(existingTotal.Add(newItemsTotal), saleDiscount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}
