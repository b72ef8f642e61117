package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dinesync/api/internal/database"
	"github.com/dinesync/api/internal/ws"
)

// ItemServicer defines the service methods needed by order item handlers.
// Satisfied by *service.ItemService.
type ItemServicer interface {
	UpdateStatus(ctx context.Context, itemID uuid.UUID, status database.OrderItemStatus) (database.OrderItem, bool, error)
	Withdraw(ctx context.Context, itemID uuid.UUID) (database.OrderItem, bool, error)
}

// ItemHandler handles per-line endpoints: kitchen status updates and
// customer withdrawals.
type ItemHandler struct {
	svc ItemServicer
	hub Broadcaster
}

func NewItemHandler(svc ItemServicer, hub Broadcaster) *ItemHandler {
	return &ItemHandler{svc: svc, hub: hub}
}

// RegisterStaffRoutes registers the authenticated item endpoints.
func (h *ItemHandler) RegisterStaffRoutes(r chi.Router) {
	r.Patch("/{id}/status", h.UpdateStatus)
}

// RegisterCustomerRoutes registers the tableside withdrawal endpoint.
func (h *ItemHandler) RegisterCustomerRoutes(r chi.Router) {
	r.Delete("/{id}", h.Withdraw)
}

type itemResponse struct {
	ID        uuid.UUID `json:"id"`
	OrderID   uuid.UUID `json:"order_id"`
	Quantity  int32     `json:"quantity"`
	Note      *string   `json:"note"`
	Status    string    `json:"status"`
	Price     string    `json:"price"`
	OrderedAt time.Time `json:"ordered_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toItemResponse(it database.OrderItem) itemResponse {
	return itemResponse{
		ID:        it.ID,
		OrderID:   it.OrderID,
		Quantity:  it.Quantity,
		Note:      textOrNil(it.Note),
		Status:    string(it.Status),
		Price:     numericToString(it.Price),
		OrderedAt: it.OrderedAt,
		UpdatedAt: it.UpdatedAt,
	}
}

type updateItemStatusRequest struct {
	Status string `json:"status"`
}

func (h *ItemHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "item ID")
	if !ok {
		return
	}
	var req updateItemStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return
	}
	item, changed, err := h.svc.UpdateStatus(r.Context(), id, database.OrderItemStatus(req.Status))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if changed {
		notify(h.hub, ws.ChannelKitchen, "item.status_changed", toItemResponse(item))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"item":    toItemResponse(item),
		"changed": changed,
	})
}

func (h *ItemHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "item ID")
	if !ok {
		return
	}
	item, changed, err := h.svc.Withdraw(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if changed {
		notify(h.hub, ws.ChannelKitchen, "item.withdrawn", toItemResponse(item))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"item":    toItemResponse(item),
		"changed": changed,
	})
}
