package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID        uuid.UUID
	FullName  string
	Role      string
	PinHash   pgtype.Text
	IsActive  bool
	CreatedAt time.Time
}

type RestaurantTable struct {
	ID                uuid.UUID
	Number            int32
	Name              pgtype.Text
	Status            string
	CurrentSaleID     pgtype.UUID
	OpenedAt          pgtype.Timestamptz
	IsMerged          bool
	MergedIntoTableID pgtype.UUID
}

type Category struct {
	ID        uuid.UUID
	Name      string
	SortOrder int32
}

type Product struct {
	ID         uuid.UUID
	Name       string
	SellPrice  pgtype.Numeric
	CategoryID pgtype.UUID
	IsActive   bool
}

type Sale struct {
	ID               uuid.UUID
	TotalAmount      pgtype.Numeric
	FinalAmount      pgtype.Numeric
	DiscountType     pgtype.Text
	DiscountValue    pgtype.Numeric
	PaymentStatus    string
	IsPaid           bool
	PaymentMethod    pgtype.Text
	UserID           uuid.UUID
	OpenedAt         time.Time
	PaidAt           pgtype.Timestamptz
	MergedIntoSaleID pgtype.UUID
}

type SaleItem struct {
	ID            uuid.UUID
	SaleID        uuid.UUID
	ProductID     uuid.UUID
	Qty           int32
	UnitPrice     pgtype.Numeric
	LineTotal     pgtype.Numeric
	DiscountType  pgtype.Text
	DiscountValue pgtype.Numeric
	CreatedAt     time.Time
}
