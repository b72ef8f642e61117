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

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	SubmitCart(ctx context.Context, req service.SubmitCartRequest) (*service.OrderDetail, error)
	Cancel(ctx context.Context, orderID uuid.UUID) (database.Order, bool, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status database.OrderStatus) (database.Order, bool, error)
	SetAssistanceByTable(ctx context.Context, tableNumber string, needed bool) (database.Order, error)
	SetAssistance(ctx context.Context, orderID uuid.UUID, needed bool) (database.Order, error)
	CurrentByTable(ctx context.Context, tableNumber string) (*service.OrderDetail, error)
	Detail(ctx context.Context, orderID uuid.UUID) (*service.OrderDetail, error)
	ListActive(ctx context.Context) ([]database.Order, error)
	List(ctx context.Context) ([]database.Order, error)
	ListByTable(ctx context.Context, tableID uuid.UUID) ([]database.Order, error)
}

// OrderEventStore reads the audit trail. Satisfied by *database.Queries.
type OrderEventStore interface {
	ListOrderEvents(ctx context.Context, arg database.ListOrderEventsParams) ([]database.OrderEvent, error)
}

// Scheduler arms the auto-kitchen timer for fresh orders. Satisfied by
// *service.AutoKitchen.
type Scheduler interface {
	Schedule(orderID uuid.UUID)
}

// OrderHandler handles order endpoints, both customer and staff facing.
type OrderHandler struct {
	svc     OrderServicer
	events  OrderEventStore
	kitchen Scheduler
	hub     Broadcaster
}

func NewOrderHandler(svc OrderServicer, events OrderEventStore, kitchen Scheduler, hub Broadcaster) *OrderHandler {
	return &OrderHandler{svc: svc, events: events, kitchen: kitchen, hub: hub}
}

// RegisterCustomerRoutes registers the unauthenticated tableside endpoints,
// mounted under /customer/tables/{tableNumber}.
func (h *OrderHandler) RegisterCustomerRoutes(r chi.Router) {
	r.Post("/cart", h.SubmitCart)
	r.Get("/order", h.CurrentOrder)
	r.Post("/assistance", h.RequestAssistance)
}

// RegisterStaffRoutes registers the authenticated order endpoints.
func (h *OrderHandler) RegisterStaffRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/table/{tableID}", h.ListByTable)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/events", h.ListEvents)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Patch("/{id}/assistance", h.SetAssistance)
	r.Delete("/{id}", h.Cancel)
}

// --- Request / Response types ---

type submitCartRequest struct {
	Items []submitCartItem `json:"items"`
}

type submitCartItem struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int32  `json:"quantity"`
	Note       string `json:"note"`
}

type orderResponse struct {
	ID             uuid.UUID           `json:"id"`
	TableID        uuid.UUID           `json:"table_id"`
	WaiterID       *uuid.UUID          `json:"waiter_id"`
	Status         string              `json:"status"`
	IsPaid         bool                `json:"is_paid"`
	NeedAssistance bool                `json:"need_assistance"`
	TotalAmount    string              `json:"total_amount"`
	OrderTime      time.Time           `json:"order_time"`
	UpdatedAt      time.Time           `json:"updated_at"`
	Items          []orderItemResponse `json:"items,omitempty"`
}

type orderItemResponse struct {
	ID           uuid.UUID `json:"id"`
	MenuItemID   uuid.UUID `json:"menu_item_id"`
	MenuItemName string    `json:"menu_item_name,omitempty"`
	KitchenType  string    `json:"kitchen_type,omitempty"`
	Quantity     int32     `json:"quantity"`
	Note         *string   `json:"note"`
	Status       string    `json:"status"`
	Price        string    `json:"price"`
	OrderedAt    time.Time `json:"ordered_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toOrderResponse(o database.Order) orderResponse {
	return orderResponse{
		ID:             o.ID,
		TableID:        o.TableID,
		WaiterID:       uuidOrNil(o.WaiterID),
		Status:         string(o.Status),
		IsPaid:         o.IsPaid,
		NeedAssistance: o.NeedAssistance,
		TotalAmount:    numericToString(o.TotalAmount),
		OrderTime:      o.OrderTime,
		UpdatedAt:      o.UpdatedAt,
	}
}

func toOrderDetailResponse(d *service.OrderDetail) orderResponse {
	resp := toOrderResponse(d.Order)
	resp.Items = make([]orderItemResponse, 0, len(d.Items))
	for _, it := range d.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ID:           it.ID,
			MenuItemID:   it.MenuItemID,
			MenuItemName: it.MenuItemName,
			KitchenType:  it.KitchenType,
			Quantity:     it.Quantity,
			Note:         textOrNil(it.Note),
			Status:       string(it.Status),
			Price:        numericToString(it.Price),
			OrderedAt:    it.OrderedAt,
			UpdatedAt:    it.UpdatedAt,
		})
	}
	return resp
}

// --- Customer endpoints ---

// SubmitCart appends a cart to the table's open order, creating it first if
// needed. A brand new order arms the auto-kitchen timer.
func (h *OrderHandler) SubmitCart(w http.ResponseWriter, r *http.Request) {
	tableNumber := chi.URLParam(r, "tableNumber")
	var req submitCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return
	}
	items := make([]service.CartItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, service.CartItem{
			MenuItemID: it.MenuItemID,
			Quantity:   it.Quantity,
			Note:       it.Note,
		})
	}
	detail, err := h.svc.SubmitCart(r.Context(), service.SubmitCartRequest{
		TableNumber: tableNumber,
		Items:       items,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if detail.NewOrder && h.kitchen != nil {
		h.kitchen.Schedule(detail.Order.ID)
	}
	notify(h.hub, ws.ChannelKitchen, "order.cart_submitted", toOrderDetailResponse(detail))
	notify(h.hub, ws.ChannelTables, "table.updated", toTableResponse(detail.Table))

	status := http.StatusOK
	if detail.NewOrder {
		status = http.StatusCreated
	}
	writeJSON(w, status, toOrderDetailResponse(detail))
}

// CurrentOrder is the customer polling read. 204 means no open order.
func (h *OrderHandler) CurrentOrder(w http.ResponseWriter, r *http.Request) {
	tableNumber := chi.URLParam(r, "tableNumber")
	detail, err := h.svc.CurrentByTable(r.Context(), tableNumber)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if detail == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDetailResponse(detail))
}

type assistanceRequest struct {
	Needed bool `json:"needed"`
}

// RequestAssistance flips the call-waiter flag on the table's open order.
func (h *OrderHandler) RequestAssistance(w http.ResponseWriter, r *http.Request) {
	tableNumber := chi.URLParam(r, "tableNumber")
	var req assistanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return
	}
	order, err := h.svc.SetAssistanceByTable(r.Context(), tableNumber, req.Needed)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	notify(h.hub, ws.ChannelTables, "order.assistance", toOrderResponse(order))
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// --- Staff endpoints ---

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		orders []database.Order
		err    error
	)
	if r.URL.Query().Get("active") == "true" {
		orders, err = h.svc.ListActive(r.Context())
	} else {
		orders, err = h.svc.List(r.Context())
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListByTable returns a table's order history, paid and cancelled included.
func (h *OrderHandler) ListByTable(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "tableID"), "table ID")
	if !ok {
		return
	}
	orders, err := h.svc.ListByTable(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "order ID")
	if !ok {
		return
	}
	detail, err := h.svc.Detail(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDetailResponse(detail))
}

type orderEventResponse struct {
	ID        int64           `json:"id"`
	EventType string          `json:"event_type"`
	Detail    json.RawMessage `json:"detail"`
	CreatedAt time.Time       `json:"created_at"`
}

func (h *OrderHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "order ID")
	if !ok {
		return
	}
	events, err := h.events.ListOrderEvents(r.Context(), database.ListOrderEventsParams{
		EntityType: "order",
		EntityID:   id,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := make([]orderEventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, orderEventResponse{
			ID:        e.ID,
			EventType: e.EventType,
			Detail:    json.RawMessage(e.Detail),
			CreatedAt: e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "order ID")
	if !ok {
		return
	}
	var req updateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return
	}
	order, changed, err := h.svc.UpdateStatus(r.Context(), id, database.OrderStatus(req.Status))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if changed {
		notify(h.hub, ws.ChannelKitchen, "order.status_changed", toOrderResponse(order))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"order":   toOrderResponse(order),
		"changed": changed,
	})
}

func (h *OrderHandler) SetAssistance(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "order ID")
	if !ok {
		return
	}
	var req assistanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return
	}
	order, err := h.svc.SetAssistance(r.Context(), id, req.Needed)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	notify(h.hub, ws.ChannelTables, "order.assistance", toOrderResponse(order))
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "order ID")
	if !ok {
		return
	}
	order, changed, err := h.svc.Cancel(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if changed {
		notify(h.hub, ws.ChannelKitchen, "order.cancelled", toOrderResponse(order))
		notify(h.hub, ws.ChannelTables, "order.cancelled", toOrderResponse(order))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"order":   toOrderResponse(order),
		"changed": changed,
	})
}
