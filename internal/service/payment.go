package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sofra-pos/api/internal/database"
	"github.com/sofra-pos/api/internal/enum"
)

var ErrInvalidPaymentMethod = errors.New("invalid payment method")

// PaymentStore defines the DB methods settlement needs.
// Satisfied by *database.Queries (and its WithTx variant).
type PaymentStore interface {
	MarkSalePaid(ctx context.Context, arg database.MarkSalePaidParams) (database.Sale, error)
	ReleaseTable(ctx context.Context, arg database.ReleaseTableParams) (database.RestaurantTable, error)
}

// NewPaymentStore creates a PaymentStore from a DBTX (pool or tx).
type NewPaymentStore func(db database.DBTX) PaymentStore

// PaymentService settles sales and releases their tables.
type PaymentService struct {
	pool     TxBeginner
	newStore NewPaymentStore
}

func NewPaymentService(pool TxBeginner, newStore NewPaymentStore) *PaymentService {
	return &PaymentService{pool: pool, newStore: newStore}
}

type PayRequest struct {
	SaleID  uuid.UUID
	TableID uuid.UUID
	Method  string
}

// Pay marks the sale paid and frees its table in one transaction. The sale
// update is conditional on the sale still being open, so a double settle
// from two terminals yields a conflict rather than a silent overwrite.
func (s *PaymentService) Pay(ctx context.Context, req PayRequest) (database.Sale, error) {
	if req.Method != enum.PaymentMethodCash && req.Method != enum.PaymentMethodCreditCard {
		return database.Sale{}, ErrInvalidPaymentMethod
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Sale{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	sale, err := store.MarkSalePaid(ctx, database.MarkSalePaidParams{
		ID:            req.SaleID,
		PaymentMethod: req.Method,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Sale{}, ErrSaleNotOpen
		}
		return database.Sale{}, fmt.Errorf("mark sale paid: %w", err)
	}

	if _, err := store.ReleaseTable(ctx, database.ReleaseTableParams{ID: req.TableID, SaleID: req.SaleID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Sale{}, ErrTableConflict
		}
		return database.Sale{}, fmt.Errorf("release table: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Sale{}, fmt.Errorf("commit tx: %w", err)
	}
	return sale, nil
}
