package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dinesync/api/internal/database"
)

// MenuStore reads the catalog. Satisfied by *database.Queries; the catalog is
// managed elsewhere, this API only serves it.
type MenuStore interface {
	ListVisibleMenuItems(ctx context.Context) ([]database.MenuItem, error)
}

type MenuHandler struct {
	store MenuStore
}

func NewMenuHandler(store MenuStore) *MenuHandler {
	return &MenuHandler{store: store}
}

func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
}

type menuItemResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Price       string    `json:"price"`
	Category    string    `json:"category"`
	KitchenType string    `json:"kitchen_type"`
	IsAvailable bool      `json:"is_available"`
	ImageURL    *string   `json:"image_url"`
	IsSpicy     bool      `json:"is_spicy"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// List is the customer menu poll. Unavailable items are included so the
// client can render them greyed out; hidden items are not.
func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListVisibleMenuItems(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := make([]menuItemResponse, 0, len(items))
	for _, m := range items {
		resp = append(resp, menuItemResponse{
			ID:          m.ID,
			Name:        m.Name,
			Description: textOrNil(m.Description),
			Price:       numericToString(m.Price),
			Category:    m.Category,
			KitchenType: m.KitchenType,
			IsAvailable: m.IsAvailable,
			ImageURL:    textOrNil(m.ImageUrl),
			IsSpicy:     m.IsSpicy,
			UpdatedAt:   m.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
