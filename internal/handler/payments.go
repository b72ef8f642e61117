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

// CheckoutServicer defines the service methods needed by payment handlers.
// Satisfied by *service.CheckoutService.
type CheckoutServicer interface {
	MarkPaid(ctx context.Context, orderID uuid.UUID, method string) (database.Payment, database.Order, error)
	Finish(ctx context.Context, orderID uuid.UUID, method string) (service.FinishResult, error)
	Payment(ctx context.Context, id uuid.UUID) (database.Payment, error)
	ListPayments(ctx context.Context) ([]database.Payment, error)
	PaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error)
	PaymentsByDateRange(ctx context.Context, start, end time.Time) ([]database.Payment, error)
}

// PaymentHandler handles the cashier endpoints.
type PaymentHandler struct {
	svc CheckoutServicer
	hub Broadcaster
}

func NewPaymentHandler(svc CheckoutServicer, hub Broadcaster) *PaymentHandler {
	return &PaymentHandler{svc: svc, hub: hub}
}

// RegisterOrderRoutes registers the settlement endpoints, mounted under the
// staff /orders tree.
func (h *PaymentHandler) RegisterOrderRoutes(r chi.Router) {
	r.Post("/{id}/payment", h.MarkPaid)
	r.Post("/{id}/finish", h.Finish)
	r.Get("/{id}/payments", h.ListByOrder)
}

// RegisterPaymentRoutes registers the payment reads.
func (h *PaymentHandler) RegisterPaymentRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

type paymentResponse struct {
	ID            uuid.UUID `json:"id"`
	OrderID       uuid.UUID `json:"order_id"`
	Amount        string    `json:"amount"`
	PaymentMethod string    `json:"payment_method"`
	ReceiptNumber string    `json:"receipt_number"`
	ProcessedAt   time.Time `json:"processed_at"`
}

func toPaymentResponse(p database.Payment) paymentResponse {
	return paymentResponse{
		ID:            p.ID,
		OrderID:       p.OrderID,
		Amount:        numericToString(p.Amount),
		PaymentMethod: p.PaymentMethod,
		ReceiptNumber: p.ReceiptNumber,
		ProcessedAt:   p.ProcessedAt,
	}
}

type paymentRequest struct {
	PaymentMethod string `json:"payment_method"`
}

// MarkPaid settles the order without closing the table.
func (h *PaymentHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "order ID")
	if !ok {
		return
	}
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return
	}
	payment, order, err := h.svc.MarkPaid(r.Context(), id, req.PaymentMethod)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	notify(h.hub, ws.ChannelCashier, "order.paid", toOrderResponse(order))
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"payment": toPaymentResponse(payment),
		"order":   toOrderResponse(order),
	})
}

// Finish settles the order and closes its table. A close failure after a
// committed payment surfaces as PARTIAL_FAILURE with "paid": true; the
// cashier retries and only the close runs again.
func (h *PaymentHandler) Finish(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "order ID")
	if !ok {
		return
	}
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return
	}
	result, err := h.svc.Finish(r.Context(), id, req.PaymentMethod)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	notify(h.hub, ws.ChannelCashier, "order.paid", toOrderResponse(result.Order))
	notify(h.hub, ws.ChannelTables, "table.closed", toTableResponse(result.Table))

	resp := map[string]interface{}{
		"order": toOrderResponse(result.Order),
		"table": toTableResponse(result.Table),
	}
	if result.Payment != nil {
		resp["payment"] = toPaymentResponse(*result.Payment)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "payment ID")
	if !ok {
		return
	}
	payment, err := h.svc.Payment(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(payment))
}

// List returns payments, optionally bounded by ?start=...&end=... (RFC 3339).
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	startRaw := r.URL.Query().Get("start")
	endRaw := r.URL.Query().Get("end")

	var (
		payments []database.Payment
		err      error
	)
	if startRaw != "" || endRaw != "" {
		start, perr := time.Parse(time.RFC3339, startRaw)
		if perr != nil {
			writeError(w, http.StatusBadRequest, codeValidation, "invalid start time")
			return
		}
		end, perr := time.Parse(time.RFC3339, endRaw)
		if perr != nil {
			writeError(w, http.StatusBadRequest, codeValidation, "invalid end time")
			return
		}
		payments, err = h.svc.PaymentsByDateRange(r.Context(), start, end)
	} else {
		payments, err = h.svc.ListPayments(r.Context())
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		resp = append(resp, toPaymentResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *PaymentHandler) ListByOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "order ID")
	if !ok {
		return
	}
	payments, err := h.svc.PaymentsByOrder(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		resp = append(resp, toPaymentResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}
