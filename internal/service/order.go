package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dinesync/api/internal/database"
	"github.com/dinesync/api/internal/lifecycle"
)

// addOnNotePrefix marks items ordered after the first round so the kitchen
// can tell a follow-up from the opening cart.
const addOnNotePrefix = "ADD-ON"

const maxNoteLength = 500

// submitRetries bounds the retry loop for the open-order unique index race.
const submitRetries = 3

type OrderStore interface {
	GetTableByNumber(ctx context.Context, tableNumber string) (database.Table, error)
	GetTableByNumberForUpdate(ctx context.Context, tableNumber string) (database.Table, error)
	OccupyTable(ctx context.Context, id uuid.UUID) (database.Table, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOpenOrderByTable(ctx context.Context, tableID uuid.UUID) (database.Order, error)
	GetOpenOrderByTableForUpdate(ctx context.Context, tableID uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context) ([]database.Order, error)
	ListActiveOrders(ctx context.Context) ([]database.Order, error)
	ListOrdersByTable(ctx context.Context, tableID uuid.UUID) ([]database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	SetOrderTotal(ctx context.Context, arg database.SetOrderTotalParams) (database.Order, error)
	SetOrderAssistance(ctx context.Context, arg database.SetOrderAssistanceParams) (database.Order, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	ListOrderItemDetailsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.ListOrderItemDetailsByOrderRow, error)
	SumOrderItems(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error)
	StartCookingPendingItems(ctx context.Context, orderID uuid.UUID) (int64, error)
	CancelOpenItemsByOrder(ctx context.Context, orderID uuid.UUID) (int64, error)
	HasServedItem(ctx context.Context, orderID uuid.UUID) (bool, error)
	CreateOrderEvent(ctx context.Context, arg database.CreateOrderEventParams) (database.OrderEvent, error)
}

type NewOrderStore func(db database.DBTX) OrderStore

type OrderService struct {
	store    OrderStore
	pool     TxBeginner
	newStore NewOrderStore
}

func NewOrderService(store OrderStore, pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{store: store, pool: pool, newStore: newStore}
}

type CartItem struct {
	MenuItemID string
	Quantity   int32
	Note       string
}

type SubmitCartRequest struct {
	TableNumber string
	WaiterID    pgtype.UUID
	Items       []CartItem
}

// OrderDetail bundles an order with its table and item lines, the shape every
// polling client consumes.
type OrderDetail struct {
	Order    database.Order
	Table    database.Table
	Items    []database.ListOrderItemDetailsByOrderRow
	NewOrder bool
}

// SubmitCart appends a cart of items to the table's open order, creating the
// order first if none exists. The table row lock serializes concurrent carts
// for the same table; the one_open_order_per_table index catches the rest,
// and the loop retries the lookup after a duplicate insert.
func (s *OrderService) SubmitCart(ctx context.Context, req SubmitCartRequest) (*OrderDetail, error) {
	if req.TableNumber == "" {
		return nil, ErrTableNumberRequired
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	ids := make([]uuid.UUID, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}
		if len(item.Note) > maxNoteLength {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrNoteTooLong)
		}
		id, err := uuid.Parse(item.MenuItemID)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidMenuItemID)
		}
		ids[i] = id
	}

	var lastErr error
	for attempt := 0; attempt < submitRetries; attempt++ {
		detail, err := s.submitCartTx(ctx, req, ids)
		if isUniqueViolation(err, "one_open_order_per_table") {
			lastErr = err
			continue
		}
		return detail, err
	}
	return nil, fmt.Errorf("submit cart: %w", lastErr)
}

func (s *OrderService) submitCartTx(ctx context.Context, req SubmitCartRequest, ids []uuid.UUID) (*OrderDetail, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)
	store := s.newStore(tx)

	table, err := store.GetTableByNumberForUpdate(ctx, req.TableNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTableNotFound
	}
	if err != nil {
		return nil, err
	}
	if !table.IsActive {
		return nil, ErrTableNotFound
	}
	if table.Status == database.TableStatusCLOSED {
		return nil, ErrTableNotOpen
	}

	order, err := store.GetOpenOrderByTableForUpdate(ctx, table.ID)
	newOrder := errors.Is(err, pgx.ErrNoRows)
	if err != nil && !newOrder {
		return nil, err
	}
	if newOrder {
		waiterID := req.WaiterID
		if !waiterID.Valid {
			waiterID = table.AssignedWaiterID
		}
		order, err = store.CreateOrder(ctx, database.CreateOrderParams{
			TableID:  table.ID,
			WaiterID: waiterID,
		})
		if err != nil {
			return nil, err
		}
		if table.Status == database.TableStatusOPENED {
			table, err = store.OccupyTable(ctx, table.ID)
			if err != nil {
				return nil, err
			}
		}
	} else if order.IsPaid {
		return nil, ErrOrderClosed
	}

	for i, item := range req.Items {
		menuItem, err := store.GetMenuItem(ctx, ids[i])
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrMenuItemNotFound)
		}
		if err != nil {
			return nil, err
		}
		if !menuItem.IsAvailable || menuItem.IsHidden {
			return nil, fmt.Errorf("items[%d] %q: %w", i, menuItem.Name, ErrMenuItemUnavailable)
		}
		note := item.Note
		if !newOrder {
			if note == "" {
				note = addOnNotePrefix
			} else {
				note = addOnNotePrefix + ": " + note
			}
		}
		if _, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:    order.ID,
			MenuItemID: menuItem.ID,
			Quantity:   item.Quantity,
			Note:       pgtype.Text{String: note, Valid: note != ""},
			Price:      menuItem.Price,
		}); err != nil {
			return nil, err
		}
	}

	order, err = s.refreshTotal(ctx, store, order.ID)
	if err != nil {
		return nil, err
	}

	eventDetail, _ := json.Marshal(map[string]any{
		"items":     len(req.Items),
		"new_order": newOrder,
	})
	if _, err := store.CreateOrderEvent(ctx, database.CreateOrderEventParams{
		EntityType: "order",
		EntityID:   order.ID,
		EventType:  "cart_submitted",
		Detail:     eventDetail,
	}); err != nil {
		return nil, err
	}

	items, err := store.ListOrderItemDetailsByOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &OrderDetail{Order: order, Table: table, Items: items, NewOrder: newOrder}, nil
}

// Cancel voids an open order and sweeps every non-terminal item to CANCELLED
// in the same transaction. Refused once any item has been SERVED; repeating
// the cancel is a no-op.
func (s *OrderService) Cancel(ctx context.Context, orderID uuid.UUID) (database.Order, bool, error) {
	var order database.Order
	var changed bool
	err := s.inTx(ctx, func(store OrderStore) error {
		o, err := store.GetOrderForUpdate(ctx, orderID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		if o.Status == database.OrderStatusCANCELLED {
			order = o
			return nil
		}
		if o.IsPaid || o.Status == database.OrderStatusPAID {
			return ErrAlreadyPaid
		}
		served, err := store.HasServedItem(ctx, o.ID)
		if err != nil {
			return err
		}
		if served {
			return ErrOrderHasServedItems
		}
		swept, err := store.CancelOpenItemsByOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		o, err = store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
			ID:         o.ID,
			Status:     database.OrderStatusCANCELLED,
			FromStatus: o.Status,
		})
		if err != nil {
			return err
		}
		o, err = s.refreshTotal(ctx, store, o.ID)
		if err != nil {
			return err
		}
		detail, _ := json.Marshal(map[string]any{"items_swept": swept})
		if _, err := store.CreateOrderEvent(ctx, database.CreateOrderEventParams{
			EntityType: "order",
			EntityID:   o.ID,
			EventType:  "order_cancelled",
			Detail:     detail,
		}); err != nil {
			return err
		}
		order = o
		changed = true
		return nil
	})
	return order, changed, err
}

// UpdateStatus applies a validated order transition. Moving to SERVING
// cascades every still-PENDING item to COOKING. PAID is not reachable here
// until the payment has actually been recorded; CANCELLED routes through the
// full cancel path.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status database.OrderStatus) (database.Order, bool, error) {
	if !lifecycle.ValidOrderStatus(status) {
		return database.Order{}, false, ErrInvalidStatusValue
	}
	if status == database.OrderStatusCANCELLED {
		return s.Cancel(ctx, orderID)
	}
	var order database.Order
	var changed bool
	err := s.inTx(ctx, func(store OrderStore) error {
		o, err := store.GetOrderForUpdate(ctx, orderID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		if o.Status == status {
			order = o
			return nil
		}
		if err := lifecycle.CheckOrder(o.Status, status); err != nil {
			return err
		}
		if status == database.OrderStatusPAID && !o.IsPaid {
			return ErrPaymentRequired
		}
		from := o.Status
		o, err = store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
			ID:         o.ID,
			Status:     status,
			FromStatus: from,
		})
		if err != nil {
			return err
		}
		var started int64
		if status == database.OrderStatusSERVING {
			started, err = store.StartCookingPendingItems(ctx, o.ID)
			if err != nil {
				return err
			}
		}
		detail, _ := json.Marshal(map[string]any{
			"from":          string(from),
			"to":            string(status),
			"items_started": started,
		})
		if _, err := store.CreateOrderEvent(ctx, database.CreateOrderEventParams{
			EntityType: "order",
			EntityID:   o.ID,
			EventType:  "status_changed",
			Detail:     detail,
		}); err != nil {
			return err
		}
		order = o
		changed = true
		return nil
	})
	return order, changed, err
}

// SetAssistanceByTable flips the assistance flag on the table's open order.
// Last write wins; there is no counter to balance.
func (s *OrderService) SetAssistanceByTable(ctx context.Context, tableNumber string, needed bool) (database.Order, error) {
	var order database.Order
	err := s.inTx(ctx, func(store OrderStore) error {
		table, err := store.GetTableByNumber(ctx, tableNumber)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrTableNotFound
		}
		if err != nil {
			return err
		}
		o, err := store.GetOpenOrderByTable(ctx, table.ID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNoOpenOrder
		}
		if err != nil {
			return err
		}
		o, err = store.SetOrderAssistance(ctx, database.SetOrderAssistanceParams{
			ID:             o.ID,
			NeedAssistance: needed,
		})
		if err != nil {
			return err
		}
		order = o
		return nil
	})
	return order, err
}

// SetAssistance is the staff-side variant, addressed by order rather than
// table, used to clear the flag after helping.
func (s *OrderService) SetAssistance(ctx context.Context, orderID uuid.UUID, needed bool) (database.Order, error) {
	o, err := s.store.SetOrderAssistance(ctx, database.SetOrderAssistanceParams{
		ID:             orderID,
		NeedAssistance: needed,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return database.Order{}, ErrOrderNotFound
	}
	return o, err
}

// CurrentByTable is the customer polling read. A nil detail with nil error
// means the table simply has no open order right now.
func (s *OrderService) CurrentByTable(ctx context.Context, tableNumber string) (*OrderDetail, error) {
	table, err := s.store.GetTableByNumber(ctx, tableNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTableNotFound
	}
	if err != nil {
		return nil, err
	}
	if !table.IsActive {
		return nil, ErrTableNotFound
	}
	order, err := s.store.GetOpenOrderByTable(ctx, table.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListOrderItemDetailsByOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return &OrderDetail{Order: order, Table: table, Items: items}, nil
}

// Detail fetches one order with its lines, for staff views.
func (s *OrderService) Detail(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListOrderItemDetailsByOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return &OrderDetail{Order: order, Items: items}, nil
}

// ListActive returns every open order, the kitchen and waiter polling feed.
func (s *OrderService) ListActive(ctx context.Context) ([]database.Order, error) {
	return s.store.ListActiveOrders(ctx)
}

func (s *OrderService) List(ctx context.Context) ([]database.Order, error) {
	return s.store.ListOrders(ctx)
}

func (s *OrderService) ListByTable(ctx context.Context, tableID uuid.UUID) ([]database.Order, error) {
	return s.store.ListOrdersByTable(ctx, tableID)
}

// refreshTotal rewrites the stored total from the item lines.
func (s *OrderService) refreshTotal(ctx context.Context, store OrderStore, orderID uuid.UUID) (database.Order, error) {
	total, err := store.SumOrderItems(ctx, orderID)
	if err != nil {
		return database.Order{}, err
	}
	return store.SetOrderTotal(ctx, database.SetOrderTotalParams{ID: orderID, TotalAmount: total})
}

func (s *OrderService) inTx(ctx context.Context, fn func(store OrderStore) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)
	if err := fn(s.newStore(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
