package handler

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sofra-pos/api/internal/database"
)

// ProductStore defines the database methods needed by product handlers.
type ProductStore interface {
	ListProducts(ctx context.Context) ([]database.Product, error)
	ListProductsByCategory(ctx context.Context, categoryID uuid.UUID) ([]database.Product, error)
}

// ProductHandler serves the menu grid.
type ProductHandler struct {
	store ProductStore
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(store ProductStore) *ProductHandler {
	return &ProductHandler{store: store}
}

// RegisterRoutes registers product endpoints on the given Chi router.
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
}

type productResponse struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	SellPrice  string     `json:"sell_price"`
	CategoryID *uuid.UUID `json:"category_id,omitempty"`
}

func toProductResponse(p database.Product) productResponse {
	resp := productResponse{
		ID:        p.ID,
		Name:      p.Name,
		SellPrice: numericToString(p.SellPrice),
	}
	if p.CategoryID.Valid {
		id := uuid.UUID(p.CategoryID.Bytes)
		resp.CategoryID = &id
	}
	return resp
}

// List returns active products, optionally filtered by ?category_id=.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		products []database.Product
		err      error
	)

	if s := r.URL.Query().Get("category_id"); s != "" {
		categoryID, parseErr := uuid.Parse(s)
		if parseErr != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid category_id"})
			return
		}
		products, err = h.store.ListProductsByCategory(r.Context(), categoryID)
	} else {
		products, err = h.store.ListProducts(r.Context())
	}
	if err != nil {
		log.Printf("ERROR: list products: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = toProductResponse(p)
	}

	writeJSON(w, http.StatusOK, resp)
}
