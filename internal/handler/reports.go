package handler

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sofra-pos/api/internal/database"
)

// ReportsStore defines the database methods needed by report handlers.
type ReportsStore interface {
	DailySalesSummary(ctx context.Context) (database.DailySalesSummaryRow, error)
}

// ReportsHandler serves the end-of-day summary.
type ReportsHandler struct {
	store ReportsStore
}

// NewReportsHandler creates a new ReportsHandler.
func NewReportsHandler(store ReportsStore) *ReportsHandler {
	return &ReportsHandler{store: store}
}

// RegisterRoutes registers report endpoints on the given Chi router.
// Expected to be mounted at /reports.
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/daily", h.Daily)
}

type dailySummaryResponse struct {
	SaleCount int64  `json:"sale_count"`
	TotalPaid string `json:"total_paid"`
}

// Daily returns the count and revenue of sales settled since midnight.
func (h *ReportsHandler) Daily(w http.ResponseWriter, r *http.Request) {
	row, err := h.store.DailySalesSummary(r.Context())
	if err != nil {
		log.Printf("ERROR: daily sales summary: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dailySummaryResponse{
		SaleCount: row.SaleCount,
		TotalPaid: numericToString(row.TotalPaid),
	})
}
