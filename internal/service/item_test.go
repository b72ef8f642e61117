package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dinesync/api/internal/database"
	"github.com/dinesync/api/internal/lifecycle"
)

type mockItemStore struct {
	getOrderItemFn          func(ctx context.Context, id uuid.UUID) (database.OrderItem, error)
	getOrderItemForUpdateFn func(ctx context.Context, id uuid.UUID) (database.OrderItem, error)
	getOrderForUpdateFn     func(ctx context.Context, id uuid.UUID) (database.Order, error)
	updateOrderItemStatusFn func(ctx context.Context, arg database.UpdateOrderItemStatusParams) (database.OrderItem, error)
	sumOrderItemsFn         func(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error)
	setOrderTotalFn         func(ctx context.Context, arg database.SetOrderTotalParams) (database.Order, error)
	createOrderEventFn      func(ctx context.Context, arg database.CreateOrderEventParams) (database.OrderEvent, error)
}

func (m *mockItemStore) GetOrderItem(ctx context.Context, id uuid.UUID) (database.OrderItem, error) {
	if m.getOrderItemFn != nil {
		return m.getOrderItemFn(ctx, id)
	}
	return database.OrderItem{}, pgx.ErrNoRows
}

func (m *mockItemStore) GetOrderItemForUpdate(ctx context.Context, id uuid.UUID) (database.OrderItem, error) {
	if m.getOrderItemForUpdateFn != nil {
		return m.getOrderItemForUpdateFn(ctx, id)
	}
	if m.getOrderItemFn != nil {
		return m.getOrderItemFn(ctx, id)
	}
	return database.OrderItem{}, pgx.ErrNoRows
}

func (m *mockItemStore) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error) {
	if m.getOrderForUpdateFn != nil {
		return m.getOrderForUpdateFn(ctx, id)
	}
	return database.Order{ID: id, Status: database.OrderStatusSERVING}, nil
}

func (m *mockItemStore) UpdateOrderItemStatus(ctx context.Context, arg database.UpdateOrderItemStatusParams) (database.OrderItem, error) {
	if m.updateOrderItemStatusFn != nil {
		return m.updateOrderItemStatusFn(ctx, arg)
	}
	return database.OrderItem{ID: arg.ID, Status: arg.Status}, nil
}

func (m *mockItemStore) SumOrderItems(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error) {
	if m.sumOrderItemsFn != nil {
		return m.sumOrderItemsFn(ctx, orderID)
	}
	return makeNumeric("0"), nil
}

func (m *mockItemStore) SetOrderTotal(ctx context.Context, arg database.SetOrderTotalParams) (database.Order, error) {
	if m.setOrderTotalFn != nil {
		return m.setOrderTotalFn(ctx, arg)
	}
	return database.Order{ID: arg.ID, TotalAmount: arg.TotalAmount}, nil
}

func (m *mockItemStore) CreateOrderEvent(ctx context.Context, arg database.CreateOrderEventParams) (database.OrderEvent, error) {
	if m.createOrderEventFn != nil {
		return m.createOrderEventFn(ctx, arg)
	}
	return database.OrderEvent{EntityType: arg.EntityType, EntityID: arg.EntityID, EventType: arg.EventType}, nil
}

func newTestItemService(store *mockItemStore) *ItemService {
	pool := &mockTxBeginner{}
	newStore := func(db database.DBTX) ItemStore { return store }
	return NewItemService(store, pool, newStore)
}

func itemInStatus(id, orderID uuid.UUID, status database.OrderItemStatus) func(ctx context.Context, _ uuid.UUID) (database.OrderItem, error) {
	return func(ctx context.Context, _ uuid.UUID) (database.OrderItem, error) {
		return database.OrderItem{ID: id, OrderID: orderID, Quantity: 1, Status: status, Price: makeNumeric("45.00")}, nil
	}
}

func TestItemUpdateStatus_Forward(t *testing.T) {
	itemID := uuid.New()
	orderID := uuid.New()
	store := &mockItemStore{
		getOrderItemFn: itemInStatus(itemID, orderID, database.OrderItemStatusCOOKING),
	}
	svc := newTestItemService(store)

	item, changed, err := svc.UpdateStatus(context.Background(), itemID, database.OrderItemStatusREADY)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed {
		t.Error("forward transition should report changed")
	}
	if item.Status != database.OrderItemStatusREADY {
		t.Errorf("item status = %s, want READY", item.Status)
	}
}

func TestItemUpdateStatus_RepeatIsNoOp(t *testing.T) {
	itemID := uuid.New()
	orderID := uuid.New()
	var wrote bool
	store := &mockItemStore{
		getOrderItemFn: itemInStatus(itemID, orderID, database.OrderItemStatusREADY),
		updateOrderItemStatusFn: func(ctx context.Context, arg database.UpdateOrderItemStatusParams) (database.OrderItem, error) {
			wrote = true
			return database.OrderItem{ID: arg.ID, Status: arg.Status}, nil
		},
	}
	svc := newTestItemService(store)

	item, changed, err := svc.UpdateStatus(context.Background(), itemID, database.OrderItemStatusREADY)
	if err != nil {
		t.Fatalf("repeat must succeed, got: %v", err)
	}
	if changed {
		t.Error("repeat must report changed=false")
	}
	if wrote {
		t.Error("repeat must not write")
	}
	if item.Status != database.OrderItemStatusREADY {
		t.Errorf("item status = %s, want READY", item.Status)
	}
}

func TestItemUpdateStatus_BackwardRejected(t *testing.T) {
	itemID := uuid.New()
	store := &mockItemStore{
		getOrderItemFn: itemInStatus(itemID, uuid.New(), database.OrderItemStatusREADY),
	}
	svc := newTestItemService(store)

	_, _, err := svc.UpdateStatus(context.Background(), itemID, database.OrderItemStatusCOOKING)
	var inv *lifecycle.ErrInvalidTransition
	if !errors.As(err, &inv) {
		t.Fatalf("expected ErrInvalidTransition, got: %v", err)
	}
}

func TestItemUpdateStatus_OutOfStockRefreshesTotal(t *testing.T) {
	itemID := uuid.New()
	orderID := uuid.New()
	var totalRewritten bool
	store := &mockItemStore{
		getOrderItemFn: itemInStatus(itemID, orderID, database.OrderItemStatusCOOKING),
		sumOrderItemsFn: func(ctx context.Context, id uuid.UUID) (pgtype.Numeric, error) {
			return makeNumeric("45.00"), nil
		},
		setOrderTotalFn: func(ctx context.Context, arg database.SetOrderTotalParams) (database.Order, error) {
			totalRewritten = true
			if !numericEquals(arg.TotalAmount, "45.00") {
				t.Errorf("total = %v, want 45.00", arg.TotalAmount)
			}
			return database.Order{ID: arg.ID, TotalAmount: arg.TotalAmount}, nil
		},
	}
	svc := newTestItemService(store)

	_, changed, err := svc.UpdateStatus(context.Background(), itemID, database.OrderItemStatusOUTOFSTOCK)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed {
		t.Error("out-of-stock transition should report changed")
	}
	if !totalRewritten {
		t.Error("voiding a line must rewrite the order total")
	}
}

func TestItemUpdateStatus_ServedDoesNotTouchTotal(t *testing.T) {
	itemID := uuid.New()
	store := &mockItemStore{
		getOrderItemFn: itemInStatus(itemID, uuid.New(), database.OrderItemStatusREADY),
		setOrderTotalFn: func(ctx context.Context, arg database.SetOrderTotalParams) (database.Order, error) {
			t.Error("serving an item must not rewrite the total")
			return database.Order{}, nil
		},
	}
	svc := newTestItemService(store)

	if _, _, err := svc.UpdateStatus(context.Background(), itemID, database.OrderItemStatusSERVED); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestItemUpdateStatus_InvalidValue(t *testing.T) {
	svc := newTestItemService(&mockItemStore{})

	_, _, err := svc.UpdateStatus(context.Background(), uuid.New(), database.OrderItemStatus("BURNT"))
	if !errors.Is(err, ErrInvalidStatusValue) {
		t.Fatalf("expected ErrInvalidStatusValue, got: %v", err)
	}
}

func TestItemUpdateStatus_NotFound(t *testing.T) {
	svc := newTestItemService(&mockItemStore{})

	_, _, err := svc.UpdateStatus(context.Background(), uuid.New(), database.OrderItemStatusCOOKING)
	if !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got: %v", err)
	}
}

func TestWithdraw_Pending(t *testing.T) {
	itemID := uuid.New()
	orderID := uuid.New()
	store := &mockItemStore{
		getOrderItemFn: itemInStatus(itemID, orderID, database.OrderItemStatusPENDING),
	}
	svc := newTestItemService(store)

	item, changed, err := svc.Withdraw(context.Background(), itemID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed || item.Status != database.OrderItemStatusCANCELLED {
		t.Errorf("withdraw result = (%s, %v), want (CANCELLED, true)", item.Status, changed)
	}
}

func TestWithdraw_CookingRefused(t *testing.T) {
	itemID := uuid.New()
	store := &mockItemStore{
		getOrderItemFn: itemInStatus(itemID, uuid.New(), database.OrderItemStatusCOOKING),
	}
	svc := newTestItemService(store)

	_, _, err := svc.Withdraw(context.Background(), itemID)
	if !errors.Is(err, ErrItemNotPending) {
		t.Fatalf("expected ErrItemNotPending, got: %v", err)
	}
}

func TestWithdraw_PaidOrderRefused(t *testing.T) {
	itemID := uuid.New()
	orderID := uuid.New()
	store := &mockItemStore{
		getOrderItemFn: itemInStatus(itemID, orderID, database.OrderItemStatusPENDING),
		getOrderForUpdateFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
			return database.Order{ID: id, Status: database.OrderStatusPAID, IsPaid: true}, nil
		},
	}
	svc := newTestItemService(store)

	_, _, err := svc.Withdraw(context.Background(), itemID)
	if !errors.Is(err, ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid, got: %v", err)
	}
}

func TestWithdraw_RepeatIsNoOp(t *testing.T) {
	itemID := uuid.New()
	store := &mockItemStore{
		getOrderItemFn: itemInStatus(itemID, uuid.New(), database.OrderItemStatusCANCELLED),
	}
	svc := newTestItemService(store)

	_, changed, err := svc.Withdraw(context.Background(), itemID)
	if err != nil {
		t.Fatalf("repeat withdraw must succeed, got: %v", err)
	}
	if changed {
		t.Error("repeat withdraw must report changed=false")
	}
}
