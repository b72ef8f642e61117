package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/dinesync/api/internal/database"
	"github.com/dinesync/api/internal/lifecycle"
)

// OrderAdvancer is the slice of OrderService the scheduler uses.
type OrderAdvancer interface {
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status database.OrderStatus) (database.Order, bool, error)
}

// AutoKitchen pushes a newly created order to SERVING after a grace window,
// covering floors where nobody works a waiter screen. The window gives the
// customer a moment to withdraw a mistaken item before the kitchen starts.
//
// The transition is the same guarded write staff use, so losing the race to a
// human (or to a cancellation) is a silent no-op.
type AutoKitchen struct {
	orders OrderAdvancer
	delay  time.Duration
}

// NewAutoKitchen returns nil when delay is zero or negative, which disables
// scheduling entirely.
func NewAutoKitchen(orders OrderAdvancer, delay time.Duration) *AutoKitchen {
	if delay <= 0 {
		return nil
	}
	return &AutoKitchen{orders: orders, delay: delay}
}

// Schedule arms a one-shot timer for the order. Timers are not persisted; an
// order orphaned by a restart stays PENDING until staff advance it.
func (a *AutoKitchen) Schedule(orderID uuid.UUID) {
	if a == nil {
		return
	}
	time.AfterFunc(a.delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, changed, err := a.orders.UpdateStatus(ctx, orderID, database.OrderStatusSERVING)
		if err != nil {
			var inv *lifecycle.ErrInvalidTransition
			if errors.As(err, &inv) || errors.Is(err, ErrOrderNotFound) {
				return
			}
			log.Printf("ERROR: auto-advance order %s: %v", orderID, err)
			return
		}
		if changed {
			log.Printf("order %s auto-advanced to SERVING", orderID)
		}
	})
}
