package service

import (
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/sofra-pos/api/internal/pricing"
)

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

func pgtypeText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: true}
}

// discountFromColumns rebuilds a pricing.Discount from the nullable pair of
// DB columns. Either column missing means no discount.
func discountFromColumns(t pgtype.Text, v pgtype.Numeric) *pricing.Discount {
	if !t.Valid || !v.Valid {
		return nil
	}
	return &pricing.Discount{Type: t.String, Value: numericToDecimal(v)}
}
