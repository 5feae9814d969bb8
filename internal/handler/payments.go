package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sofra-pos/api/internal/service"
	"github.com/sofra-pos/api/internal/ws"
)

// PaymentHandler handles settling a sale.
type PaymentHandler struct {
	payments *service.PaymentService
	notifier Notifier
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(payments *service.PaymentService, notifier Notifier) *PaymentHandler {
	return &PaymentHandler{payments: payments, notifier: notifier}
}

// RegisterRoutes registers payment endpoints on the given Chi router.
// Expected to be mounted at /sales.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/{id}/payment", h.Pay)
}

type payRequest struct {
	TableID string `json:"table_id"`
	Method  string `json:"method"`
}

// Pay handles POST /sales/{id}/payment: mark the sale paid and free its table.
func (h *PaymentHandler) Pay(w http.ResponseWriter, r *http.Request) {
	saleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sale ID"})
		return
	}

	var req payRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	tableID, err := uuid.Parse(req.TableID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table_id"})
		return
	}

	sale, err := h.payments.Pay(r.Context(), service.PayRequest{
		SaleID:  saleID,
		TableID: tableID,
		Method:  req.Method,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPaymentMethod):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrSaleNotOpen), errors.Is(err, service.ErrTableConflict):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: pay sale: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	h.notifier.Broadcast(ws.NewEvent("sale.paid", map[string]string{
		"sale_id":  saleID.String(),
		"table_id": req.TableID,
	}))

	writeJSON(w, http.StatusOK, toSaleResponse(sale))
}
