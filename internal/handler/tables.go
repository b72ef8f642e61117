package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dinesync/api/internal/database"
	"github.com/dinesync/api/internal/service"
	"github.com/dinesync/api/internal/ws"
)

// TableServicer defines the service methods needed by table handlers.
// Satisfied by *service.TableService; narrow interface for testability.
type TableServicer interface {
	Open(ctx context.Context, id uuid.UUID) (database.Table, bool, error)
	Occupy(ctx context.Context, id uuid.UUID) (database.Table, bool, error)
	Close(ctx context.Context, id uuid.UUID) (database.Table, bool, error)
	AssignWaiter(ctx context.Context, id, waiterID uuid.UUID) (database.Table, error)
	Hide(ctx context.Context, id uuid.UUID) (database.Table, error)
	Show(ctx context.Context, id uuid.UUID) (database.Table, error)
	Provision(ctx context.Context, req service.ProvisionTableRequest) (database.Table, error)
	UpdateInfo(ctx context.Context, id uuid.UUID, req service.ProvisionTableRequest) (database.Table, error)
	Get(ctx context.Context, id uuid.UUID) (database.Table, error)
	GetByNumber(ctx context.Context, tableNumber string) (database.Table, error)
	List(ctx context.Context, includeHidden bool, status database.TableStatus) ([]database.Table, error)
}

// TableHandler handles floor plan endpoints.
type TableHandler struct {
	svc TableServicer
	hub Broadcaster
}

func NewTableHandler(svc TableServicer, hub Broadcaster) *TableHandler {
	return &TableHandler{svc: svc, hub: hub}
}

// RegisterStaffRoutes registers the authenticated table endpoints. Role
// gating happens in the router.
func (h *TableHandler) RegisterStaffRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/open", h.Open)
	r.Post("/{id}/occupy", h.Occupy)
	r.Post("/{id}/close", h.Close)
	r.Post("/{id}/assign-waiter", h.AssignWaiter)
}

// RegisterAdminRoutes registers the manager-only table endpoints.
func (h *TableHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/", h.Provision)
	r.Put("/{id}", h.UpdateInfo)
	r.Post("/{id}/hide", h.Hide)
	r.Post("/{id}/show", h.Show)
}

type tableResponse struct {
	ID               uuid.UUID  `json:"id"`
	TableNumber      string     `json:"table_number"`
	Zone             string     `json:"zone"`
	Capacity         int32      `json:"capacity"`
	Status           string     `json:"status"`
	AssignedWaiterID *uuid.UUID `json:"assigned_waiter_id"`
	OccupiedAt       *time.Time `json:"occupied_at"`
	IsActive         bool       `json:"is_active"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func toTableResponse(t database.Table) tableResponse {
	return tableResponse{
		ID:               t.ID,
		TableNumber:      t.TableNumber,
		Zone:             t.Zone,
		Capacity:         t.Capacity,
		Status:           string(t.Status),
		AssignedWaiterID: uuidOrNil(t.AssignedWaiterID),
		OccupiedAt:       timeOrNil(t.OccupiedAt),
		IsActive:         t.IsActive,
		UpdatedAt:        t.UpdatedAt,
	}
}

// List is the floor plan poll. Staff may ask for hidden tables or filter by
// status; the customer-facing route reuses it without those knobs.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	includeHidden := r.URL.Query().Get("include_hidden") == "true"
	status := database.TableStatus(r.URL.Query().Get("status"))

	tables, err := h.svc.List(r.Context(), includeHidden, status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := make([]tableResponse, 0, len(tables))
	for _, t := range tables {
		resp = append(resp, toTableResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListPublic is the unauthenticated floor plan view: active tables only.
func (h *TableHandler) ListPublic(w http.ResponseWriter, r *http.Request) {
	tables, err := h.svc.List(r.Context(), false, "")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := make([]tableResponse, 0, len(tables))
	for _, t := range tables {
		resp = append(resp, toTableResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetByNumber is the customer tablet's own-table view.
func (h *TableHandler) GetByNumber(w http.ResponseWriter, r *http.Request) {
	table, err := h.svc.GetByNumber(r.Context(), chi.URLParam(r, "tableNumber"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTableResponse(table))
}

func (h *TableHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "table ID")
	if !ok {
		return
	}
	table, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTableResponse(table))
}

func (h *TableHandler) Open(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "table.opened", h.svc.Open)
}

func (h *TableHandler) Occupy(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "table.occupied", h.svc.Occupy)
}

func (h *TableHandler) Close(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "table.closed", h.svc.Close)
}

// transition runs one of the idempotent lifecycle calls and reports whether
// this request did the work.
func (h *TableHandler) transition(w http.ResponseWriter, r *http.Request, eventType string, fn func(ctx context.Context, id uuid.UUID) (database.Table, bool, error)) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "table ID")
	if !ok {
		return
	}
	table, changed, err := fn(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if changed {
		notify(h.hub, ws.ChannelTables, eventType, toTableResponse(table))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"table":   toTableResponse(table),
		"changed": changed,
	})
}

type assignWaiterRequest struct {
	WaiterID string `json:"waiter_id"`
}

func (h *TableHandler) AssignWaiter(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "table ID")
	if !ok {
		return
	}
	var req assignWaiterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return
	}
	waiterID, err := uuid.Parse(req.WaiterID)
	if err != nil {
		writeServiceError(w, service.ErrWaiterRequired)
		return
	}
	table, err := h.svc.AssignWaiter(r.Context(), id, waiterID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	notify(h.hub, ws.ChannelTables, "table.updated", toTableResponse(table))
	writeJSON(w, http.StatusOK, toTableResponse(table))
}

type provisionTableRequest struct {
	TableNumber string `json:"table_number"`
	Zone        string `json:"zone"`
	Capacity    int32  `json:"capacity"`
}

func (h *TableHandler) Provision(w http.ResponseWriter, r *http.Request) {
	var req provisionTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return
	}
	table, err := h.svc.Provision(r.Context(), service.ProvisionTableRequest{
		TableNumber: req.TableNumber,
		Zone:        req.Zone,
		Capacity:    req.Capacity,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTableResponse(table))
}

func (h *TableHandler) UpdateInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "table ID")
	if !ok {
		return
	}
	var req provisionTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return
	}
	table, err := h.svc.UpdateInfo(r.Context(), id, service.ProvisionTableRequest{
		TableNumber: req.TableNumber,
		Zone:        req.Zone,
		Capacity:    req.Capacity,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTableResponse(table))
}

func (h *TableHandler) Hide(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "table ID")
	if !ok {
		return
	}
	table, err := h.svc.Hide(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	notify(h.hub, ws.ChannelTables, "table.hidden", toTableResponse(table))
	writeJSON(w, http.StatusOK, toTableResponse(table))
}

func (h *TableHandler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "table ID")
	if !ok {
		return
	}
	table, err := h.svc.Show(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	notify(h.hub, ws.ChannelTables, "table.shown", toTableResponse(table))
	writeJSON(w, http.StatusOK, toTableResponse(table))
}
