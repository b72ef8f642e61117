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

type ItemStore interface {
	GetOrderItem(ctx context.Context, id uuid.UUID) (database.OrderItem, error)
	GetOrderItemForUpdate(ctx context.Context, id uuid.UUID) (database.OrderItem, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	UpdateOrderItemStatus(ctx context.Context, arg database.UpdateOrderItemStatusParams) (database.OrderItem, error)
	SumOrderItems(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error)
	SetOrderTotal(ctx context.Context, arg database.SetOrderTotalParams) (database.Order, error)
	CreateOrderEvent(ctx context.Context, arg database.CreateOrderEventParams) (database.OrderEvent, error)
}

type NewItemStore func(db database.DBTX) ItemStore

type ItemService struct {
	store    ItemStore
	pool     TxBeginner
	newStore NewItemStore
}

func NewItemService(store ItemStore, pool TxBeginner, newStore NewItemStore) *ItemService {
	return &ItemService{store: store, pool: pool, newStore: newStore}
}

// UpdateStatus advances one item along the kitchen progression. A repeat of
// the current status is an idempotent success with changed=false, so a
// double-tapped kitchen terminal never sees an error. Backward and undefined
// edges are rejected.
//
// The parent order row is locked before the item row; every multi-item writer
// follows that same order, which keeps deadlock off the table.
func (s *ItemService) UpdateStatus(ctx context.Context, itemID uuid.UUID, status database.OrderItemStatus) (database.OrderItem, bool, error) {
	if !lifecycle.ValidItemStatus(status) {
		return database.OrderItem{}, false, ErrInvalidStatusValue
	}
	var item database.OrderItem
	var changed bool
	err := s.inTx(ctx, func(store ItemStore) error {
		it, err := s.lockItem(ctx, store, itemID)
		if err != nil {
			return err
		}
		if it.Status == status {
			item = it
			return nil
		}
		if err := lifecycle.CheckItem(it.Status, status); err != nil {
			return err
		}
		from := it.Status
		it, err = store.UpdateOrderItemStatus(ctx, database.UpdateOrderItemStatusParams{
			ID:         it.ID,
			Status:     status,
			FromStatus: from,
		})
		if err != nil {
			return err
		}
		// A voided line changes what the table owes.
		if status == database.OrderItemStatusCANCELLED || status == database.OrderItemStatusOUTOFSTOCK {
			if err := s.refreshTotal(ctx, store, it.OrderID); err != nil {
				return err
			}
		}
		detail, _ := json.Marshal(map[string]string{"from": string(from), "to": string(status)})
		if _, err := store.CreateOrderEvent(ctx, database.CreateOrderEventParams{
			EntityType: "order_item",
			EntityID:   it.ID,
			EventType:  "status_changed",
			Detail:     detail,
		}); err != nil {
			return err
		}
		item = it
		changed = true
		return nil
	})
	return item, changed, err
}

// Withdraw is the customer-side cancellation of a single line. Only legal
// while the item is still PENDING and the order unpaid; repeating a withdraw
// is a no-op.
func (s *ItemService) Withdraw(ctx context.Context, itemID uuid.UUID) (database.OrderItem, bool, error) {
	var item database.OrderItem
	var changed bool
	err := s.inTx(ctx, func(store ItemStore) error {
		it, err := s.lockItem(ctx, store, itemID)
		if err != nil {
			return err
		}
		if it.Status == database.OrderItemStatusCANCELLED {
			item = it
			return nil
		}
		if it.Status != database.OrderItemStatusPENDING {
			return ErrItemNotPending
		}
		order, err := store.GetOrderForUpdate(ctx, it.OrderID)
		if err != nil {
			return err
		}
		if order.IsPaid {
			return ErrAlreadyPaid
		}
		it, err = store.UpdateOrderItemStatus(ctx, database.UpdateOrderItemStatusParams{
			ID:         it.ID,
			Status:     database.OrderItemStatusCANCELLED,
			FromStatus: database.OrderItemStatusPENDING,
		})
		if err != nil {
			return err
		}
		if err := s.refreshTotal(ctx, store, it.OrderID); err != nil {
			return err
		}
		if _, err := store.CreateOrderEvent(ctx, database.CreateOrderEventParams{
			EntityType: "order_item",
			EntityID:   it.ID,
			EventType:  "item_withdrawn",
			Detail:     nil,
		}); err != nil {
			return err
		}
		item = it
		changed = true
		return nil
	})
	return item, changed, err
}

// lockItem takes the parent order lock first, then re-reads the item under
// its own lock.
func (s *ItemService) lockItem(ctx context.Context, store ItemStore, itemID uuid.UUID) (database.OrderItem, error) {
	it, err := store.GetOrderItem(ctx, itemID)
	if errors.Is(err, pgx.ErrNoRows) {
		return database.OrderItem{}, ErrItemNotFound
	}
	if err != nil {
		return database.OrderItem{}, err
	}
	if _, err := store.GetOrderForUpdate(ctx, it.OrderID); err != nil {
		return database.OrderItem{}, err
	}
	it, err = store.GetOrderItemForUpdate(ctx, itemID)
	if errors.Is(err, pgx.ErrNoRows) {
		return database.OrderItem{}, ErrItemNotFound
	}
	return it, err
}

func (s *ItemService) refreshTotal(ctx context.Context, store ItemStore, orderID uuid.UUID) error {
	total, err := store.SumOrderItems(ctx, orderID)
	if err != nil {
		return err
	}
	_, err = store.SetOrderTotal(ctx, database.SetOrderTotalParams{ID: orderID, TotalAmount: total})
	return err
}

func (s *ItemService) inTx(ctx context.Context, fn func(store ItemStore) error) error {
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
