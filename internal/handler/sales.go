package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/sofra-pos/api/internal/database"
	"github.com/sofra-pos/api/internal/middleware"
	"github.com/sofra-pos/api/internal/pricing"
	"github.com/sofra-pos/api/internal/service"
	"github.com/sofra-pos/api/internal/ws"
)

// SaleStore defines the database methods needed by sale read endpoints.
// Satisfied by *database.Queries; narrow interface for testability.
type SaleStore interface {
	GetSale(ctx context.Context, id uuid.UUID) (database.Sale, error)
	ListSaleItemsBySale(ctx context.Context, saleID uuid.UUID) ([]database.SaleItemWithProductRow, error)
	ListAbsorbedSales(ctx context.Context, targetSaleID uuid.UUID) ([]database.Sale, error)
}

// SaleHandler handles sale endpoints: cart submission, reads, line-item
// deletion, and discounts.
type SaleHandler struct {
	store    SaleStore
	orders   *service.OrderService
	notifier Notifier
}

// NewSaleHandler creates a new SaleHandler.
func NewSaleHandler(store SaleStore, orders *service.OrderService, notifier Notifier) *SaleHandler {
	return &SaleHandler{store: store, orders: orders, notifier: notifier}
}

// RegisterRoutes registers sale endpoints on the given Chi router.
// Expected to be mounted at /sales.
func (h *SaleHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}/items/{itemID}", h.DeleteItem)
	r.Put("/{id}/discount", h.ApplyDiscount)
}

// --- Request / Response types ---

type createSaleRequest struct {
	TableID    string   `json:"table_id"`
	SaleID     string   `json:"sale_id"`
	ProductIDs []string `json:"product_ids"`
}

type applyDiscountRequest struct {
	Target string `json:"target"`
	ItemID string `json:"item_id"`
	Type   string `json:"type"`
	Value  string `json:"value"`
}

type saleItemResponse struct {
	ID            uuid.UUID `json:"id"`
	ProductID     uuid.UUID `json:"product_id"`
	ProductName   string    `json:"product_name,omitempty"`
	Qty           int32     `json:"qty"`
	UnitPrice     string    `json:"unit_price"`
	LineTotal     string    `json:"line_total"`
	DiscountType  *string   `json:"discount_type,omitempty"`
	DiscountValue *string   `json:"discount_value,omitempty"`
}

type saleResponse struct {
	ID               uuid.UUID          `json:"id"`
	TotalAmount      string             `json:"total_amount"`
	FinalAmount      string             `json:"final_amount"`
	DiscountType     *string            `json:"discount_type,omitempty"`
	DiscountValue    *string            `json:"discount_value,omitempty"`
	PaymentStatus    string             `json:"payment_status"`
	IsPaid           bool               `json:"is_paid"`
	PaymentMethod    *string            `json:"payment_method,omitempty"`
	UserID           uuid.UUID          `json:"user_id"`
	OpenedAt         time.Time          `json:"opened_at"`
	PaidAt           *time.Time         `json:"paid_at,omitempty"`
	MergedIntoSaleID *uuid.UUID         `json:"merged_into_sale_id,omitempty"`
	Items            []saleItemResponse `json:"items,omitempty"`
	GrandTotal       string             `json:"grand_total,omitempty"`
	AbsorbedSaleIDs  []uuid.UUID        `json:"absorbed_sale_ids,omitempty"`
}

func toSaleItemResponse(it database.SaleItem, productName string) saleItemResponse {
	return saleItemResponse{
		ID:            it.ID,
		ProductID:     it.ProductID,
		ProductName:   productName,
		Qty:           it.Qty,
		UnitPrice:     numericToString(it.UnitPrice),
		LineTotal:     numericToString(it.LineTotal),
		DiscountType:  textPtr(it.DiscountType),
		DiscountValue: numericPtr(it.DiscountValue),
	}
}

func toSaleResponse(s database.Sale) saleResponse {
	resp := saleResponse{
		ID:            s.ID,
		TotalAmount:   numericToString(s.TotalAmount),
		FinalAmount:   numericToString(s.FinalAmount),
		DiscountType:  textPtr(s.DiscountType),
		DiscountValue: numericPtr(s.DiscountValue),
		PaymentStatus: s.PaymentStatus,
		IsPaid:        s.IsPaid,
		PaymentMethod: textPtr(s.PaymentMethod),
		UserID:        s.UserID,
		OpenedAt:      s.OpenedAt,
	}
	if s.PaidAt.Valid {
		resp.PaidAt = &s.PaidAt.Time
	}
	if s.MergedIntoSaleID.Valid {
		id := uuid.UUID(s.MergedIntoSaleID.Bytes)
		resp.MergedIntoSaleID = &id
	}
	return resp
}

// --- Handlers ---

// Create handles POST /sales: submit the terminal's cart. The acting user
// comes from the access token, not the body.
func (h *SaleHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	res, err := h.orders.SubmitOrder(r.Context(), service.SubmitOrderRequest{
		TableID:    req.TableID,
		UserID:     claims.UserID,
		SaleID:     req.SaleID,
		ProductIDs: req.ProductIDs,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoTableOrUser),
			errors.Is(err, service.ErrEmptyCart),
			errors.Is(err, service.ErrInvalidProductID):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrProductNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrTableConflict), errors.Is(err, service.ErrSaleNotOpen):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: submit order: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	h.notifier.Broadcast(ws.NewEvent("sale.submitted", map[string]string{
		"sale_id":  res.Sale.ID.String(),
		"table_id": req.TableID,
	}))

	resp := toSaleResponse(res.Sale)
	resp.Items = make([]saleItemResponse, len(res.Items))
	for i, it := range res.Items {
		resp.Items[i] = toSaleItemResponse(it, "")
	}

	writeJSON(w, http.StatusCreated, resp)
}

// Get handles GET /sales/{id}: the sale with its line items, the recomputed
// grand total, and any sales absorbed into it by a merge.
func (h *SaleHandler) Get(w http.ResponseWriter, r *http.Request) {
	saleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sale ID"})
		return
	}

	sale, err := h.store.GetSale(r.Context(), saleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "sale not found"})
			return
		}
		log.Printf("ERROR: get sale: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListSaleItemsBySale(r.Context(), saleID)
	if err != nil {
		log.Printf("ERROR: list sale items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	absorbed, err := h.store.ListAbsorbedSales(r.Context(), saleID)
	if err != nil {
		log.Printf("ERROR: list absorbed sales: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := toSaleResponse(sale)
	resp.Items = make([]saleItemResponse, len(items))
	for i, it := range items {
		resp.Items[i] = toSaleItemResponse(it.SaleItem, it.ProductName)
	}
	resp.GrandTotal = grandTotalFor(sale, items)
	for _, a := range absorbed {
		resp.AbsorbedSaleIDs = append(resp.AbsorbedSaleIDs, a.ID)
	}

	writeJSON(w, http.StatusOK, resp)
}

// DeleteItem handles DELETE /sales/{id}/items/{itemID}.
func (h *SaleHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	saleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sale ID"})
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	sale, err := h.orders.DeleteItem(r.Context(), saleID, itemID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrItemNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: delete sale item: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	h.notifier.Broadcast(ws.NewEvent("sale.updated", map[string]string{"sale_id": saleID.String()}))

	writeJSON(w, http.StatusOK, toSaleResponse(sale))
}

// ApplyDiscount handles PUT /sales/{id}/discount for both the sale and
// single line items (target "item" with item_id set).
func (h *SaleHandler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	saleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sale ID"})
		return
	}

	var req applyDiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	sale, err := h.orders.ApplyDiscount(r.Context(), service.ApplyDiscountRequest{
		SaleID: saleID,
		Target: req.Target,
		ItemID: req.ItemID,
		Type:   req.Type,
		Value:  req.Value,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidDiscountType),
			errors.Is(err, service.ErrInvalidDiscountValue),
			errors.Is(err, service.ErrInvalidDiscountTarget):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrItemNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrSaleNotOpen):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: apply discount: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	h.notifier.Broadcast(ws.NewEvent("sale.updated", map[string]string{"sale_id": saleID.String()}))

	writeJSON(w, http.StatusOK, toSaleResponse(sale))
}

// grandTotalFor recomputes the amount due from the line items and sale
// discount. It matches final_amount; the read path recomputes so stale
// persisted totals can never reach a receipt.
func grandTotalFor(sale database.Sale, items []database.SaleItemWithProductRow) string {
	amounts := make([]pricing.ItemAmount, len(items))
	for i, it := range items {
		amounts[i] = pricing.ItemAmount{
			LineTotal: numericToDecimalValue(it.LineTotal),
			Discount:  discountFor(it.SaleItem),
		}
	}

	var saleDiscount *pricing.Discount
	if sale.DiscountType.Valid && sale.DiscountValue.Valid {
		saleDiscount = &pricing.Discount{
			Type:  sale.DiscountType.String,
			Value: numericToDecimalValue(sale.DiscountValue),
		}
	}

	// No unsent cart on the read path.
	return pricing.GrandTotal(pricing.ExistingItemsTotal(amounts), decimal.Zero, saleDiscount).StringFixed(2)
}

func discountFor(it database.SaleItem) *pricing.Discount {
	if !it.DiscountType.Valid || !it.DiscountValue.Valid {
		return nil
	}
	return &pricing.Discount{
		Type:  it.DiscountType.String,
		Value: numericToDecimalValue(it.DiscountValue),
	}
}
