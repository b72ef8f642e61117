package service

import (
	"errors"
	"fmt"

	"github.com/dinesync/api/internal/database"
)

// Errors returned by the lifecycle services. Handlers map these onto the
// wire taxonomy (NOT_FOUND, PRECONDITION_FAILED, INVALID_TRANSITION, ...).
var (
	ErrTableNotFound    = errors.New("table not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrItemNotFound     = errors.New("order item not found")
	ErrMenuItemNotFound = errors.New("menu item not found")
	ErrWaiterRequired   = errors.New("waiter_id is required")

	ErrTableNotOpen        = errors.New("table is not open")
	ErrTableClosed         = errors.New("table is closed")
	ErrTableNotClosed      = errors.New("table must be closed before hiding")
	ErrTableHasUnpaidOrder = errors.New("table has an outstanding order")
	ErrNoOpenOrder         = errors.New("table has no open order")

	ErrOrderClosed         = errors.New("order is settled, no further items may be added")
	ErrAlreadyPaid         = errors.New("order is already paid")
	ErrOrderCancelled      = errors.New("order is cancelled")
	ErrUnfinishedItems     = errors.New("order has items still in preparation")
	ErrOrderHasServedItems = errors.New("order has served items and cannot be cancelled")
	ErrItemNotPending      = errors.New("only pending items can be withdrawn")
	ErrPaymentRequired     = errors.New("order must be settled through payment processing")

	ErrEmptyItems           = errors.New("items are required")
	ErrInvalidQuantity      = errors.New("quantity must be > 0")
	ErrInvalidMenuItemID    = errors.New("invalid menu_item_id")
	ErrMenuItemUnavailable  = errors.New("menu item is unavailable")
	ErrNoteTooLong          = errors.New("note exceeds maximum length")
	ErrInvalidStatusValue   = errors.New("invalid status")
	ErrInvalidPaymentMethod = errors.New("invalid payment_method")

	ErrTableNumberRequired  = errors.New("table_number is required")
	ErrZoneRequired         = errors.New("zone is required")
	ErrInvalidCapacity      = errors.New("capacity must be > 0")
	ErrDuplicateTableNumber = errors.New("table number already exists")
)

// PartialFailureError reports a finish-order run where the payment landed but
// closing the table did not. The payment is never rolled back; the caller
// retries the close step alone.
type PartialFailureError struct {
	Order   database.Order
	Payment *database.Payment
	Err     error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("order %s is paid but the table was not closed: %v", e.Order.ID, e.Err)
}

func (e *PartialFailureError) Unwrap() error { return e.Err }
