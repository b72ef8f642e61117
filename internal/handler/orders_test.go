package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dinesync/api/internal/auth"
	"github.com/dinesync/api/internal/database"
	"github.com/dinesync/api/internal/handler"
	"github.com/dinesync/api/internal/lifecycle"
	"github.com/dinesync/api/internal/middleware"
	"github.com/dinesync/api/internal/service"
	"github.com/dinesync/api/internal/ws"
)

// --- Shared helpers ---

const testJWTSecret = "test-secret-for-handlers"

func testNumeric(t *testing.T, s string) pgtype.Numeric {
	t.Helper()
	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		t.Fatalf("scan numeric %q: %v", s, err)
	}
	return n
}

// recordingHub captures broadcast events for assertions.
type recordingHub struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	Channel string
	Type    string
}

func (h *recordingHub) Broadcast(channel string, event ws.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, recordedEvent{Channel: channel, Type: event.Type})
}

func (h *recordingHub) recorded() []recordedEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]recordedEvent(nil), h.events...)
}

func doRequest(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func doAuthRequest(t *testing.T, router http.Handler, method, path string, body interface{}, role string) *httptest.ResponseRecorder {
	t.Helper()
	token, err := auth.GenerateToken(testJWTSecret, uuid.New(), "Test Staff", role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

// --- Mock OrderServicer ---

type mockOrderServicer struct {
	submitCartFn           func(ctx context.Context, req service.SubmitCartRequest) (*service.OrderDetail, error)
	cancelFn               func(ctx context.Context, orderID uuid.UUID) (database.Order, bool, error)
	updateStatusFn         func(ctx context.Context, orderID uuid.UUID, status database.OrderStatus) (database.Order, bool, error)
	setAssistanceByTableFn func(ctx context.Context, tableNumber string, needed bool) (database.Order, error)
	setAssistanceFn        func(ctx context.Context, orderID uuid.UUID, needed bool) (database.Order, error)
	currentByTableFn       func(ctx context.Context, tableNumber string) (*service.OrderDetail, error)
	detailFn               func(ctx context.Context, orderID uuid.UUID) (*service.OrderDetail, error)
	listActiveFn           func(ctx context.Context) ([]database.Order, error)
	listFn                 func(ctx context.Context) ([]database.Order, error)
	listByTableFn          func(ctx context.Context, tableID uuid.UUID) ([]database.Order, error)
}

func (m *mockOrderServicer) SubmitCart(ctx context.Context, req service.SubmitCartRequest) (*service.OrderDetail, error) {
	return m.submitCartFn(ctx, req)
}

func (m *mockOrderServicer) Cancel(ctx context.Context, orderID uuid.UUID) (database.Order, bool, error) {
	return m.cancelFn(ctx, orderID)
}

func (m *mockOrderServicer) UpdateStatus(ctx context.Context, orderID uuid.UUID, status database.OrderStatus) (database.Order, bool, error) {
	return m.updateStatusFn(ctx, orderID, status)
}

func (m *mockOrderServicer) SetAssistanceByTable(ctx context.Context, tableNumber string, needed bool) (database.Order, error) {
	return m.setAssistanceByTableFn(ctx, tableNumber, needed)
}

func (m *mockOrderServicer) SetAssistance(ctx context.Context, orderID uuid.UUID, needed bool) (database.Order, error) {
	return m.setAssistanceFn(ctx, orderID, needed)
}

func (m *mockOrderServicer) CurrentByTable(ctx context.Context, tableNumber string) (*service.OrderDetail, error) {
	return m.currentByTableFn(ctx, tableNumber)
}

func (m *mockOrderServicer) Detail(ctx context.Context, orderID uuid.UUID) (*service.OrderDetail, error) {
	return m.detailFn(ctx, orderID)
}

func (m *mockOrderServicer) ListActive(ctx context.Context) ([]database.Order, error) {
	if m.listActiveFn != nil {
		return m.listActiveFn(ctx)
	}
	return []database.Order{}, nil
}

func (m *mockOrderServicer) List(ctx context.Context) ([]database.Order, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []database.Order{}, nil
}

func (m *mockOrderServicer) ListByTable(ctx context.Context, tableID uuid.UUID) ([]database.Order, error) {
	if m.listByTableFn != nil {
		return m.listByTableFn(ctx, tableID)
	}
	return []database.Order{}, nil
}

type mockEventStore struct {
	listOrderEventsFn func(ctx context.Context, arg database.ListOrderEventsParams) ([]database.OrderEvent, error)
}

func (m *mockEventStore) ListOrderEvents(ctx context.Context, arg database.ListOrderEventsParams) ([]database.OrderEvent, error) {
	if m.listOrderEventsFn != nil {
		return m.listOrderEventsFn(ctx, arg)
	}
	return []database.OrderEvent{}, nil
}

type mockScheduler struct {
	mu        sync.Mutex
	scheduled []uuid.UUID
}

func (m *mockScheduler) Schedule(orderID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scheduled = append(m.scheduled, orderID)
}

func (m *mockScheduler) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.scheduled)
}

// --- Test data ---

func testOrder(t *testing.T) database.Order {
	t.Helper()
	return database.Order{
		ID:          uuid.New(),
		TableID:     uuid.New(),
		Status:      database.OrderStatusPENDING,
		TotalAmount: testNumeric(t, "90.00"),
		OrderTime:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

func testDetail(t *testing.T, newOrder bool) *service.OrderDetail {
	t.Helper()
	order := testOrder(t)
	return &service.OrderDetail{
		Order: order,
		Table: database.Table{
			ID:          order.TableID,
			TableNumber: "A_01",
			Zone:        "Main Hall",
			Capacity:    4,
			Status:      database.TableStatusOCCUPIED,
			IsActive:    true,
		},
		Items: []database.ListOrderItemDetailsByOrderRow{
			{
				OrderItem: database.OrderItem{
					ID:         uuid.New(),
					OrderID:    order.ID,
					MenuItemID: uuid.New(),
					Quantity:   2,
					Status:     database.OrderItemStatusPENDING,
					Price:      testNumeric(t, "45.00"),
				},
				MenuItemName: "Pho Bo",
				KitchenType:  "HOT_KITCHEN",
			},
		},
		NewOrder: newOrder,
	}
}

func setupCustomerRouter(svc *mockOrderServicer, kitchen handler.Scheduler, hub handler.Broadcaster) *chi.Mux {
	h := handler.NewOrderHandler(svc, &mockEventStore{}, kitchen, hub)
	r := chi.NewRouter()
	r.Route("/customer/tables/{tableNumber}", h.RegisterCustomerRoutes)
	return r
}

func setupStaffOrderRouter(svc *mockOrderServicer, events handler.OrderEventStore, hub handler.Broadcaster) *chi.Mux {
	h := handler.NewOrderHandler(svc, events, nil, hub)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/orders", h.RegisterStaffRoutes)
	return r
}

// --- Customer tests ---

func TestSubmitCart_NewOrderCreatedAndScheduled(t *testing.T) {
	detail := testDetail(t, true)
	svc := &mockOrderServicer{
		submitCartFn: func(ctx context.Context, req service.SubmitCartRequest) (*service.OrderDetail, error) {
			if req.TableNumber != "A_01" {
				t.Errorf("table number: got %q, want A_01", req.TableNumber)
			}
			if len(req.Items) != 1 || req.Items[0].Quantity != 2 {
				t.Errorf("unexpected items: %+v", req.Items)
			}
			return detail, nil
		},
	}
	kitchen := &mockScheduler{}
	hub := &recordingHub{}
	router := setupCustomerRouter(svc, kitchen, hub)

	rr := doRequest(t, router, "POST", "/customer/tables/A_01/cart", map[string]interface{}{
		"items": []map[string]interface{}{
			{"menu_item_id": detail.Items[0].MenuItemID.String(), "quantity": 2},
		},
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201: %s", rr.Code, rr.Body.String())
	}
	if kitchen.count() != 1 {
		t.Errorf("auto-kitchen schedules: got %d, want 1", kitchen.count())
	}
	resp := decodeResponse(t, rr)
	if resp["total_amount"] != "90.00" {
		t.Errorf("total_amount: got %v, want 90.00", resp["total_amount"])
	}
	items := resp["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("items: got %d, want 1", len(items))
	}
	item := items[0].(map[string]interface{})
	if item["menu_item_name"] != "Pho Bo" {
		t.Errorf("menu_item_name: got %v, want Pho Bo", item["menu_item_name"])
	}
}

func TestSubmitCart_AddOnDoesNotReschedule(t *testing.T) {
	detail := testDetail(t, false)
	svc := &mockOrderServicer{
		submitCartFn: func(ctx context.Context, req service.SubmitCartRequest) (*service.OrderDetail, error) {
			return detail, nil
		},
	}
	kitchen := &mockScheduler{}
	router := setupCustomerRouter(svc, kitchen, &recordingHub{})

	rr := doRequest(t, router, "POST", "/customer/tables/A_01/cart", map[string]interface{}{
		"items": []map[string]interface{}{
			{"menu_item_id": uuid.New().String(), "quantity": 1},
		},
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200: %s", rr.Code, rr.Body.String())
	}
	if kitchen.count() != 0 {
		t.Errorf("auto-kitchen schedules: got %d, want 0", kitchen.count())
	}
}

func TestSubmitCart_InvalidBody(t *testing.T) {
	router := setupCustomerRouter(&mockOrderServicer{}, nil, &recordingHub{})

	req := httptest.NewRequest("POST", "/customer/tables/A_01/cart", bytes.NewReader([]byte("{not json")))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rr.Code)
	}
	resp := decodeResponse(t, rr)
	if resp["code"] != "VALIDATION" {
		t.Errorf("code: got %v, want VALIDATION", resp["code"])
	}
}

func TestSubmitCart_ClosedTable(t *testing.T) {
	svc := &mockOrderServicer{
		submitCartFn: func(ctx context.Context, req service.SubmitCartRequest) (*service.OrderDetail, error) {
			return nil, service.ErrTableNotOpen
		},
	}
	router := setupCustomerRouter(svc, nil, &recordingHub{})

	rr := doRequest(t, router, "POST", "/customer/tables/A_01/cart", map[string]interface{}{
		"items": []map[string]interface{}{
			{"menu_item_id": uuid.New().String(), "quantity": 1},
		},
	})

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want 409: %s", rr.Code, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["code"] != "PRECONDITION_FAILED" {
		t.Errorf("code: got %v, want PRECONDITION_FAILED", resp["code"])
	}
}

func TestCurrentOrder_NoOpenOrderIs204(t *testing.T) {
	svc := &mockOrderServicer{
		currentByTableFn: func(ctx context.Context, tableNumber string) (*service.OrderDetail, error) {
			return nil, nil
		},
	}
	router := setupCustomerRouter(svc, nil, &recordingHub{})

	rr := doRequest(t, router, "GET", "/customer/tables/A_01/order", nil)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want 204", rr.Code)
	}
	if rr.Body.Len() != 0 {
		t.Errorf("body should be empty, got %q", rr.Body.String())
	}
}

func TestCurrentOrder_Found(t *testing.T) {
	detail := testDetail(t, false)
	svc := &mockOrderServicer{
		currentByTableFn: func(ctx context.Context, tableNumber string) (*service.OrderDetail, error) {
			if tableNumber != "A_01" {
				t.Errorf("table number: got %q, want A_01", tableNumber)
			}
			return detail, nil
		},
	}
	router := setupCustomerRouter(svc, nil, &recordingHub{})

	rr := doRequest(t, router, "GET", "/customer/tables/A_01/order", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200: %s", rr.Code, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["id"] != detail.Order.ID.String() {
		t.Errorf("id: got %v, want %v", resp["id"], detail.Order.ID)
	}
}

func TestRequestAssistance_NotifiesTablesChannel(t *testing.T) {
	order := testOrder(t)
	order.NeedAssistance = true
	svc := &mockOrderServicer{
		setAssistanceByTableFn: func(ctx context.Context, tableNumber string, needed bool) (database.Order, error) {
			if !needed {
				t.Error("needed: got false, want true")
			}
			return order, nil
		},
	}
	hub := &recordingHub{}
	router := setupCustomerRouter(svc, nil, hub)

	rr := doRequest(t, router, "POST", "/customer/tables/A_01/assistance", map[string]interface{}{
		"needed": true,
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200: %s", rr.Code, rr.Body.String())
	}
	events := hub.recorded()
	if len(events) != 1 || events[0].Channel != ws.ChannelTables || events[0].Type != "order.assistance" {
		t.Errorf("unexpected broadcasts: %+v", events)
	}
}

// --- Staff tests ---

func TestOrderUpdateStatus_Changed(t *testing.T) {
	order := testOrder(t)
	order.Status = database.OrderStatusSERVING
	svc := &mockOrderServicer{
		updateStatusFn: func(ctx context.Context, orderID uuid.UUID, status database.OrderStatus) (database.Order, bool, error) {
			if status != database.OrderStatusSERVING {
				t.Errorf("status: got %v, want SERVING", status)
			}
			return order, true, nil
		},
	}
	hub := &recordingHub{}
	router := setupStaffOrderRouter(svc, &mockEventStore{}, hub)

	rr := doAuthRequest(t, router, "PATCH", "/orders/"+order.ID.String()+"/status",
		map[string]interface{}{"status": "SERVING"}, "KITCHEN_STAFF")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200: %s", rr.Code, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["changed"] != true {
		t.Errorf("changed: got %v, want true", resp["changed"])
	}
	events := hub.recorded()
	if len(events) != 1 || events[0].Channel != ws.ChannelKitchen {
		t.Errorf("unexpected broadcasts: %+v", events)
	}
}

func TestOrderUpdateStatus_RepeatDoesNotBroadcast(t *testing.T) {
	order := testOrder(t)
	order.Status = database.OrderStatusSERVING
	svc := &mockOrderServicer{
		updateStatusFn: func(ctx context.Context, orderID uuid.UUID, status database.OrderStatus) (database.Order, bool, error) {
			return order, false, nil
		},
	}
	hub := &recordingHub{}
	router := setupStaffOrderRouter(svc, &mockEventStore{}, hub)

	rr := doAuthRequest(t, router, "PATCH", "/orders/"+order.ID.String()+"/status",
		map[string]interface{}{"status": "SERVING"}, "KITCHEN_STAFF")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200: %s", rr.Code, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["changed"] != false {
		t.Errorf("changed: got %v, want false", resp["changed"])
	}
	if len(hub.recorded()) != 0 {
		t.Errorf("no-op should not broadcast, got %+v", hub.recorded())
	}
}

func TestOrderUpdateStatus_BackwardIs409(t *testing.T) {
	svc := &mockOrderServicer{
		updateStatusFn: func(ctx context.Context, orderID uuid.UUID, status database.OrderStatus) (database.Order, bool, error) {
			return database.Order{}, false, &lifecycle.ErrInvalidTransition{
				Entity: "order", From: "SERVING", To: "PENDING",
			}
		},
	}
	router := setupStaffOrderRouter(svc, &mockEventStore{}, &recordingHub{})

	rr := doAuthRequest(t, router, "PATCH", "/orders/"+uuid.New().String()+"/status",
		map[string]interface{}{"status": "PENDING"}, "KITCHEN_STAFF")

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want 409: %s", rr.Code, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["code"] != "INVALID_TRANSITION" {
		t.Errorf("code: got %v, want INVALID_TRANSITION", resp["code"])
	}
}

func TestOrderCancel(t *testing.T) {
	order := testOrder(t)
	order.Status = database.OrderStatusCANCELLED
	svc := &mockOrderServicer{
		cancelFn: func(ctx context.Context, orderID uuid.UUID) (database.Order, bool, error) {
			return order, true, nil
		},
	}
	hub := &recordingHub{}
	router := setupStaffOrderRouter(svc, &mockEventStore{}, hub)

	rr := doAuthRequest(t, router, "DELETE", "/orders/"+order.ID.String(), nil, "WAITER")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200: %s", rr.Code, rr.Body.String())
	}
	events := hub.recorded()
	if len(events) != 2 {
		t.Fatalf("broadcasts: got %d, want 2 (kitchen + tables)", len(events))
	}
}

func TestOrderGet_BadID(t *testing.T) {
	router := setupStaffOrderRouter(&mockOrderServicer{}, &mockEventStore{}, &recordingHub{})

	rr := doAuthRequest(t, router, "GET", "/orders/not-a-uuid", nil, "WAITER")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400: %s", rr.Code, rr.Body.String())
	}
}

func TestOrderListEvents(t *testing.T) {
	orderID := uuid.New()
	events := &mockEventStore{
		listOrderEventsFn: func(ctx context.Context, arg database.ListOrderEventsParams) ([]database.OrderEvent, error) {
			if arg.EntityType != "order" || arg.EntityID != orderID {
				t.Errorf("unexpected params: %+v", arg)
			}
			return []database.OrderEvent{
				{ID: 1, EntityType: "order", EntityID: orderID, EventType: "cart_submitted", Detail: []byte(`{"items":2}`), CreatedAt: time.Now()},
				{ID: 2, EntityType: "order", EntityID: orderID, EventType: "status_changed", Detail: []byte(`{"to":"SERVING"}`), CreatedAt: time.Now()},
			}, nil
		},
	}
	router := setupStaffOrderRouter(&mockOrderServicer{}, events, &recordingHub{})

	rr := doAuthRequest(t, router, "GET", "/orders/"+orderID.String()+"/events", nil, "MANAGER")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200: %s", rr.Code, rr.Body.String())
	}
	var resp []map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("events: got %d, want 2", len(resp))
	}
	if resp[0]["event_type"] != "cart_submitted" {
		t.Errorf("event_type: got %v, want cart_submitted", resp[0]["event_type"])
	}
}

func TestOrderList_ActiveFilter(t *testing.T) {
	called := false
	svc := &mockOrderServicer{
		listActiveFn: func(ctx context.Context) ([]database.Order, error) {
			called = true
			return []database.Order{}, nil
		},
	}
	router := setupStaffOrderRouter(svc, &mockEventStore{}, &recordingHub{})

	rr := doAuthRequest(t, router, "GET", "/orders/?active=true", nil, "WAITER")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200: %s", rr.Code, rr.Body.String())
	}
	if !called {
		t.Error("active=true should route to the active listing")
	}
}

func TestStaffOrders_RequireAuth(t *testing.T) {
	router := setupStaffOrderRouter(&mockOrderServicer{}, &mockEventStore{}, &recordingHub{})

	rr := doRequest(t, router, "GET", "/orders/", nil)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", rr.Code)
	}
}
