package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/sofra-pos/api/internal/database"
	"github.com/sofra-pos/api/internal/enum"
	"github.com/sofra-pos/api/internal/pricing"
)

// Errors returned by the workflow services.
var (
	ErrNoTableOrUser         = errors.New("table and user are required")
	ErrEmptyCart             = errors.New("cart is empty")
	ErrInvalidProductID      = errors.New("invalid product_id")
	ErrProductNotFound       = errors.New("product not found")
	ErrSaleNotOpen           = errors.New("sale is not open")
	ErrItemNotFound          = errors.New("sale item not found")
	ErrTableConflict         = errors.New("table state changed, please retry")
	ErrSaleConflict          = errors.New("sale state changed, please retry")
	ErrInvalidDiscountType   = errors.New("invalid discount type")
	ErrInvalidDiscountValue  = errors.New("discount value must be a positive number")
	ErrInvalidDiscountTarget = errors.New("invalid discount target")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods the order workflow needs.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	RecalcStore
	GetProductsForOrder(ctx context.Context, ids []uuid.UUID) ([]database.Product, error)
	CreateSale(ctx context.Context, arg database.CreateSaleParams) (database.Sale, error)
	GetOpenSale(ctx context.Context, id uuid.UUID) (database.Sale, error)
	ClaimTable(ctx context.Context, arg database.ClaimTableParams) (database.RestaurantTable, error)
	CreateSaleItem(ctx context.Context, arg database.CreateSaleItemParams) (database.SaleItem, error)
	UpdateSaleDiscount(ctx context.Context, arg database.UpdateSaleDiscountParams) (database.Sale, error)
	UpdateSaleItemDiscount(ctx context.Context, arg database.UpdateSaleItemDiscountParams) (database.SaleItem, error)
	DeleteSaleItem(ctx context.Context, arg database.DeleteSaleItemParams) (uuid.UUID, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// OrderService orchestrates cart submission, line-item deletion, and
// discount application.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
}

func NewOrderService(pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, newStore: newStore}
}

// SubmitOrderRequest carries a cart to submit. ProductIDs holds one entry
// per unit tapped on the terminal; repeats of the same product collapse
// into a single line with a quantity. SaleID, when set, appends to that
// open sale instead of opening a new one.
type SubmitOrderRequest struct {
	TableID    string
	UserID     uuid.UUID
	SaleID     string
	ProductIDs []string
}

type SubmitOrderResult struct {
	Sale  database.Sale
	Items []database.SaleItem
}

// SubmitOrder validates the cart and commits the whole submission in one
// transaction: sale creation (or append), table claim, line-item inserts,
// and recalculation all land together or not at all.
func (s *OrderService) SubmitOrder(ctx context.Context, req SubmitOrderRequest) (*SubmitOrderResult, error) {
	if req.TableID == "" || req.UserID == uuid.Nil {
		return nil, ErrNoTableOrUser
	}
	if len(req.ProductIDs) == 0 {
		return nil, ErrEmptyCart
	}

	tableID, err := uuid.Parse(req.TableID)
	if err != nil {
		return nil, ErrNoTableOrUser
	}

	var existingSaleID uuid.UUID
	if req.SaleID != "" {
		existingSaleID, err = uuid.Parse(req.SaleID)
		if err != nil {
			return nil, ErrSaleNotOpen
		}
	}

	productIDs := make([]uuid.UUID, len(req.ProductIDs))
	for i, s := range req.ProductIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("cart[%d]: %w", i, ErrInvalidProductID)
		}
		productIDs[i] = id
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	lines, err := buildCart(ctx, store, productIDs)
	if err != nil {
		return nil, err
	}
	newItemsTotal := pricing.NewItemsTotal(lines)

	var sale database.Sale
	if existingSaleID == uuid.Nil {
		sale, err = store.CreateSale(ctx, database.CreateSaleParams{
			TotalAmount: decimalToNumeric(newItemsTotal),
			FinalAmount: decimalToNumeric(newItemsTotal),
			UserID:      req.UserID,
		})
		if err != nil {
			return nil, fmt.Errorf("create sale: %w", err)
		}
		if _, err := store.ClaimTable(ctx, database.ClaimTableParams{ID: tableID, SaleID: sale.ID}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrTableConflict
			}
			return nil, fmt.Errorf("claim table: %w", err)
		}
	} else {
		sale, err = store.GetOpenSale(ctx, existingSaleID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrSaleNotOpen
			}
			return nil, fmt.Errorf("get open sale: %w", err)
		}
	}

	items := make([]database.SaleItem, len(lines))
	for i, line := range lines {
		items[i], err = store.CreateSaleItem(ctx, database.CreateSaleItemParams{
			SaleID:    sale.ID,
			ProductID: line.ProductID,
			Qty:       line.Qty,
			UnitPrice: decimalToNumeric(line.UnitPrice),
			LineTotal: decimalToNumeric(line.LineTotal),
		})
		if err != nil {
			return nil, fmt.Errorf("create sale item: %w", err)
		}
	}

	if err := RecalculateSale(ctx, store, sale.ID); err != nil {
		return nil, fmt.Errorf("recalculate: %w", err)
	}

	sale, err = store.GetSale(ctx, sale.ID)
	if err != nil {
		return nil, fmt.Errorf("reload sale: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &SubmitOrderResult{Sale: sale, Items: items}, nil
}

// buildCart resolves prices for each tapped unit and aggregates them.
// Products missing a price count as zero.
func buildCart(ctx context.Context, store OrderStore, productIDs []uuid.UUID) ([]pricing.CartLine, error) {
	seen := make(map[uuid.UUID]bool, len(productIDs))
	var distinct []uuid.UUID
	for _, id := range productIDs {
		if !seen[id] {
			seen[id] = true
			distinct = append(distinct, id)
		}
	}

	products, err := store.GetProductsForOrder(ctx, distinct)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	byID := make(map[uuid.UUID]database.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	entries := make([]pricing.CartEntry, len(productIDs))
	for i, id := range productIDs {
		p, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("cart[%d]: %w", i, ErrProductNotFound)
		}
		unit := decimal.Zero
		if p.SellPrice.Valid {
			unit = numericToDecimal(p.SellPrice)
		}
		entries[i] = pricing.CartEntry{ProductID: p.ID, Name: p.Name, UnitPrice: unit}
	}
	return pricing.AggregateCart(entries), nil
}

// DeleteItem removes a line item and recalculates the owning sale in one
// transaction. The confirmation dialog is the terminal's concern; this call
// is the confirmed action.
func (s *OrderService) DeleteItem(ctx context.Context, saleID, itemID uuid.UUID) (database.Sale, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Sale{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	if _, err := store.DeleteSaleItem(ctx, database.DeleteSaleItemParams{ID: itemID, SaleID: saleID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Sale{}, ErrItemNotFound
		}
		return database.Sale{}, fmt.Errorf("delete sale item: %w", err)
	}

	if err := RecalculateSale(ctx, store, saleID); err != nil {
		return database.Sale{}, fmt.Errorf("recalculate: %w", err)
	}

	sale, err := store.GetSale(ctx, saleID)
	if err != nil {
		return database.Sale{}, fmt.Errorf("reload sale: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Sale{}, fmt.Errorf("commit tx: %w", err)
	}
	return sale, nil
}

// Discount targets.
const (
	DiscountTargetSale = "sale"
	DiscountTargetItem = "item"
)

type ApplyDiscountRequest struct {
	SaleID uuid.UUID
	Target string
	ItemID string // required when Target is "item"
	Type   string
	Value  string
}

// ApplyDiscount validates and persists a discount on the sale or on one of
// its line items, then recalculates the sale. No state changes on a
// validation failure.
func (s *OrderService) ApplyDiscount(ctx context.Context, req ApplyDiscountRequest) (database.Sale, error) {
	if req.Type != enum.DiscountTypePercentage && req.Type != enum.DiscountTypeAmount {
		return database.Sale{}, ErrInvalidDiscountType
	}
	value, err := decimal.NewFromString(req.Value)
	if err != nil || !value.IsPositive() {
		return database.Sale{}, ErrInvalidDiscountValue
	}
	if req.Type == enum.DiscountTypePercentage && value.GreaterThan(decimal.NewFromInt(100)) {
		return database.Sale{}, ErrInvalidDiscountValue
	}

	var itemID uuid.UUID
	switch req.Target {
	case DiscountTargetSale:
	case DiscountTargetItem:
		itemID, err = uuid.Parse(req.ItemID)
		if err != nil {
			return database.Sale{}, ErrItemNotFound
		}
	default:
		return database.Sale{}, ErrInvalidDiscountTarget
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Sale{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	discountType := pgtypeText(req.Type)
	discountValue := decimalToNumeric(value)

	if req.Target == DiscountTargetSale {
		if _, err := store.UpdateSaleDiscount(ctx, database.UpdateSaleDiscountParams{
			ID:            req.SaleID,
			DiscountType:  discountType,
			DiscountValue: discountValue,
		}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return database.Sale{}, ErrSaleNotOpen
			}
			return database.Sale{}, fmt.Errorf("update sale discount: %w", err)
		}
	} else {
		if _, err := store.UpdateSaleItemDiscount(ctx, database.UpdateSaleItemDiscountParams{
			ID:            itemID,
			SaleID:        req.SaleID,
			DiscountType:  discountType,
			DiscountValue: discountValue,
		}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return database.Sale{}, ErrItemNotFound
			}
			return database.Sale{}, fmt.Errorf("update item discount: %w", err)
		}
	}

	if err := RecalculateSale(ctx, store, req.SaleID); err != nil {
		return database.Sale{}, fmt.Errorf("recalculate: %w", err)
	}

	sale, err := store.GetSale(ctx, req.SaleID)
	if err != nil {
		return database.Sale{}, fmt.Errorf("reload sale: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Sale{}, fmt.Errorf("commit tx: %w", err)
	}
	return sale, nil
}
