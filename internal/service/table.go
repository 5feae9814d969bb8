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

var (
	ErrSameTable      = errors.New("cannot transfer to the same table")
	ErrTargetOccupied = errors.New("target table is occupied")
	ErrTargetNotOpen  = errors.New("target table has no open sale")
	ErrNoMergeTables  = errors.New("no tables selected for merge")
)

// TableStore defines the DB methods the table workflow needs.
// Satisfied by *database.Queries (and its WithTx variant).
type TableStore interface {
	RecalcStore
	GetTable(ctx context.Context, id uuid.UUID) (database.RestaurantTable, error)
	GetOpenSale(ctx context.Context, id uuid.UUID) (database.Sale, error)
	ClaimTable(ctx context.Context, arg database.ClaimTableParams) (database.RestaurantTable, error)
	ReleaseTable(ctx context.Context, arg database.ReleaseTableParams) (database.RestaurantTable, error)
	FreeMergedTable(ctx context.Context, arg database.FreeMergedTableParams) (database.RestaurantTable, error)
	MarkSaleMerged(ctx context.Context, arg database.MarkSaleMergedParams) (database.Sale, error)
	ListSaleItemsBySale(ctx context.Context, saleID uuid.UUID) ([]database.SaleItemWithProductRow, error)
	CreateSaleItem(ctx context.Context, arg database.CreateSaleItemParams) (database.SaleItem, error)
}

// NewTableStore creates a TableStore from a DBTX (pool or tx).
type NewTableStore func(db database.DBTX) TableStore

// TableService handles table occupancy, transfer, and merge.
type TableService struct {
	pool     TxBeginner
	newStore NewTableStore
}

func NewTableService(pool TxBeginner, newStore NewTableStore) *TableService {
	return &TableService{pool: pool, newStore: newStore}
}

// IsOccupied treats either occupancy signal as sufficient, tolerating the
// status column and the sale reference drifting apart.
func IsOccupied(t database.RestaurantTable) bool {
	return t.Status == enum.TableStatusOccupied || t.CurrentSaleID.Valid
}

type TransferRequest struct {
	SourceTableID uuid.UUID
	TargetTableID uuid.UUID
	SaleID        uuid.UUID
}

// Transfer moves an open sale from one table to a free one. Both occupancy
// writes are conditional and share a transaction, so a race with another
// terminal surfaces as a conflict instead of leaving the sale on zero or
// two tables.
func (s *TableService) Transfer(ctx context.Context, req TransferRequest) (database.RestaurantTable, error) {
	if req.SourceTableID == req.TargetTableID {
		return database.RestaurantTable{}, ErrSameTable
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.RestaurantTable{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	target, err := store.GetTable(ctx, req.TargetTableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.RestaurantTable{}, ErrTableConflict
		}
		return database.RestaurantTable{}, fmt.Errorf("get target table: %w", err)
	}
	if IsOccupied(target) {
		return database.RestaurantTable{}, ErrTargetOccupied
	}

	if _, err := store.ReleaseTable(ctx, database.ReleaseTableParams{ID: req.SourceTableID, SaleID: req.SaleID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.RestaurantTable{}, ErrTableConflict
		}
		return database.RestaurantTable{}, fmt.Errorf("release source table: %w", err)
	}

	claimed, err := store.ClaimTable(ctx, database.ClaimTableParams{ID: req.TargetTableID, SaleID: req.SaleID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.RestaurantTable{}, ErrTableConflict
		}
		return database.RestaurantTable{}, fmt.Errorf("claim target table: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.RestaurantTable{}, fmt.Errorf("commit tx: %w", err)
	}
	return claimed, nil
}

type MergeRequest struct {
	TargetTableID  uuid.UUID
	TargetSaleID   uuid.UUID
	SourceTableIDs []uuid.UUID
}

type MergeResult struct {
	Sale           database.Sale
	AbsorbedTables int
}

// Merge folds each selected table's open sale into the target sale: line
// items are copied as new records, the absorbed sale is marked merged with
// a back-reference to the target, and the source table is freed. Everything
// runs in one transaction, including the final recalculation.
func (s *TableService) Merge(ctx context.Context, req MergeRequest) (*MergeResult, error) {
	if len(req.SourceTableIDs) == 0 {
		return nil, ErrNoMergeTables
	}
	for _, id := range req.SourceTableIDs {
		if id == req.TargetTableID {
			return nil, ErrSameTable
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	if _, err := store.GetOpenSale(ctx, req.TargetSaleID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTargetNotOpen
		}
		return nil, fmt.Errorf("get target sale: %w", err)
	}

	// The sale must be the one currently on the target table, or sources
	// would fold into an unrelated open sale.
	targetTable, err := store.GetTable(ctx, req.TargetTableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableConflict
		}
		return nil, fmt.Errorf("get target table: %w", err)
	}
	if !targetTable.CurrentSaleID.Valid || uuid.UUID(targetTable.CurrentSaleID.Bytes) != req.TargetSaleID {
		return nil, ErrTableConflict
	}

	absorbed := 0
	for _, tableID := range req.SourceTableIDs {
		table, err := store.GetTable(ctx, tableID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			return nil, fmt.Errorf("get source table: %w", err)
		}
		// Tables without an open sale have nothing to fold in.
		if !table.CurrentSaleID.Valid {
			continue
		}
		sourceSaleID := uuid.UUID(table.CurrentSaleID.Bytes)

		items, err := store.ListSaleItemsBySale(ctx, sourceSaleID)
		if err != nil {
			return nil, fmt.Errorf("list source items: %w", err)
		}
		for _, it := range items {
			if _, err := store.CreateSaleItem(ctx, database.CreateSaleItemParams{
				SaleID:        req.TargetSaleID,
				ProductID:     it.ProductID,
				Qty:           it.Qty,
				UnitPrice:     it.UnitPrice,
				LineTotal:     it.LineTotal,
				DiscountType:  it.DiscountType,
				DiscountValue: it.DiscountValue,
			}); err != nil {
				return nil, fmt.Errorf("copy sale item: %w", err)
			}
		}

		if _, err := store.MarkSaleMerged(ctx, database.MarkSaleMergedParams{
			ID:               sourceSaleID,
			MergedIntoSaleID: req.TargetSaleID,
		}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrSaleConflict
			}
			return nil, fmt.Errorf("mark sale merged: %w", err)
		}

		if _, err := store.FreeMergedTable(ctx, database.FreeMergedTableParams{
			ID:                tableID,
			SaleID:            sourceSaleID,
			MergedIntoTableID: req.TargetTableID,
		}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrTableConflict
			}
			return nil, fmt.Errorf("free merged table: %w", err)
		}
		absorbed++
	}

	if err := RecalculateSale(ctx, store, req.TargetSaleID); err != nil {
		return nil, fmt.Errorf("recalculate: %w", err)
	}

	sale, err := store.GetSale(ctx, req.TargetSaleID)
	if err != nil {
		return nil, fmt.Errorf("reload sale: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &MergeResult{Sale: sale, AbsorbedTables: absorbed}, nil
}
