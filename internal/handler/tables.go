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

	"github.com/sofra-pos/api/internal/database"
	"github.com/sofra-pos/api/internal/service"
	"github.com/sofra-pos/api/internal/ws"
)

// TableStore defines the database methods needed by table handlers.
type TableStore interface {
	ListTables(ctx context.Context) ([]database.RestaurantTable, error)
}

// TableHandler serves the floor plan and the transfer/merge actions.
type TableHandler struct {
	store    TableStore
	tables   *service.TableService
	notifier Notifier
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(store TableStore, tables *service.TableService, notifier Notifier) *TableHandler {
	return &TableHandler{store: store, tables: tables, notifier: notifier}
}

// RegisterRoutes registers table endpoints on the given Chi router.
// Expected to be mounted at /tables.
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/{id}/transfer", h.Transfer)
	r.Post("/{id}/merge", h.Merge)
}

// --- Request / Response types ---

type transferRequest struct {
	TargetTableID string `json:"target_table_id"`
	SaleID        string `json:"sale_id"`
}

type mergeRequest struct {
	SaleID         string   `json:"sale_id"`
	SourceTableIDs []string `json:"source_table_ids"`
}

type tableResponse struct {
	ID                uuid.UUID  `json:"id"`
	Number            int32      `json:"number"`
	Name              *string    `json:"name,omitempty"`
	Status            string     `json:"status"`
	CurrentSaleID     *uuid.UUID `json:"current_sale_id,omitempty"`
	IsOccupied        bool       `json:"is_occupied"`
	OpenedAt          *time.Time `json:"opened_at,omitempty"`
	IsMerged          bool       `json:"is_merged"`
	MergedIntoTableID *uuid.UUID `json:"merged_into_table_id,omitempty"`
}

func toTableResponse(t database.RestaurantTable) tableResponse {
	resp := tableResponse{
		ID:         t.ID,
		Number:     t.Number,
		Name:       textPtr(t.Name),
		Status:     t.Status,
		IsOccupied: service.IsOccupied(t),
		IsMerged:   t.IsMerged,
	}
	if t.CurrentSaleID.Valid {
		id := uuid.UUID(t.CurrentSaleID.Bytes)
		resp.CurrentSaleID = &id
	}
	if t.OpenedAt.Valid {
		resp.OpenedAt = &t.OpenedAt.Time
	}
	if t.MergedIntoTableID.Valid {
		id := uuid.UUID(t.MergedIntoTableID.Bytes)
		resp.MergedIntoTableID = &id
	}
	return resp
}

// --- Handlers ---

// List returns every table with its computed occupancy.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	tables, err := h.store.ListTables(r.Context())
	if err != nil {
		log.Printf("ERROR: list tables: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]tableResponse, len(tables))
	for i, t := range tables {
		resp[i] = toTableResponse(t)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Transfer handles POST /tables/{id}/transfer, moving the open sale on
// table {id} to the requested free table.
func (h *TableHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	sourceID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	targetID, err := uuid.Parse(req.TargetTableID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid target_table_id"})
		return
	}
	saleID, err := uuid.Parse(req.SaleID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sale_id"})
		return
	}

	claimed, err := h.tables.Transfer(r.Context(), service.TransferRequest{
		SourceTableID: sourceID,
		TargetTableID: targetID,
		SaleID:        saleID,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSameTable):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrTargetOccupied):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrTableConflict):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: transfer table: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	h.notifier.Broadcast(ws.NewEvent("table.transferred", map[string]string{
		"source_table_id": sourceID.String(),
		"target_table_id": targetID.String(),
		"sale_id":         saleID.String(),
	}))

	writeJSON(w, http.StatusOK, toTableResponse(claimed))
}

// Merge handles POST /tables/{id}/merge, folding the selected tables'
// open sales into the sale on table {id}.
func (h *TableHandler) Merge(w http.ResponseWriter, r *http.Request) {
	targetID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	var req mergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	saleID, err := uuid.Parse(req.SaleID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sale_id"})
		return
	}

	sourceIDs := make([]uuid.UUID, len(req.SourceTableIDs))
	for i, s := range req.SourceTableIDs {
		sourceIDs[i], err = uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid source_table_ids"})
			return
		}
	}

	res, err := h.tables.Merge(r.Context(), service.MergeRequest{
		TargetTableID:  targetID,
		TargetSaleID:   saleID,
		SourceTableIDs: sourceIDs,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoMergeTables), errors.Is(err, service.ErrSameTable):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrTargetNotOpen),
			errors.Is(err, service.ErrSaleConflict),
			errors.Is(err, service.ErrTableConflict):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: merge tables: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	h.notifier.Broadcast(ws.NewEvent("tables.merged", map[string]interface{}{
		"target_table_id": targetID.String(),
		"sale_id":         saleID.String(),
		"absorbed_tables": res.AbsorbedTables,
	}))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sale":            toSaleResponse(res.Sale),
		"absorbed_tables": res.AbsorbedTables,
	})
}
