// Package lifecycle holds the forward-only transition tables for tables,
// orders, and order items. Every status write in the system is validated here
// before it reaches the store; an edge missing from these maps is illegal and
// must be rejected, never coerced.
package lifecycle

import (
	"fmt"

	"github.com/dinesync/api/internal/database"
)

// ErrInvalidTransition marks an attempted backward or undefined status edge.
// Callers recover by re-fetching current state.
type ErrInvalidTransition struct {
	Entity string
	From   string
	To     string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("%s cannot transition from %s to %s", e.Entity, e.From, e.To)
}

// tableTransitions: CLOSED → OPENED → OCCUPIED → CLOSED. An OPENED table that
// never gets an order may also close directly.
var tableTransitions = map[database.TableStatus][]database.TableStatus{
	database.TableStatusCLOSED:   {database.TableStatusOPENED},
	database.TableStatusOPENED:   {database.TableStatusOCCUPIED, database.TableStatusCLOSED},
	database.TableStatusOCCUPIED: {database.TableStatusCLOSED},
}

// orderTransitions: PAID and CANCELLED are terminal. PENDING → PAID covers an
// order whose every item resolved without the kitchen starting (all cancelled
// or out of stock would normally cancel, but payment of a never-served round
// stays expressible).
var orderTransitions = map[database.OrderStatus][]database.OrderStatus{
	database.OrderStatusPENDING: {database.OrderStatusSERVING, database.OrderStatusPAID, database.OrderStatusCANCELLED},
	database.OrderStatusSERVING: {database.OrderStatusPAID, database.OrderStatusCANCELLED},
}

// itemTransitions: the kitchen drives PENDING → COOKING → READY → SERVED;
// a PENDING item may still be withdrawn; any non-terminal item may be marked
// OUT_OF_STOCK. No edge moves a status backward.
var itemTransitions = map[database.OrderItemStatus][]database.OrderItemStatus{
	database.OrderItemStatusPENDING: {database.OrderItemStatusCOOKING, database.OrderItemStatusCANCELLED, database.OrderItemStatusOUTOFSTOCK},
	database.OrderItemStatusCOOKING: {database.OrderItemStatusREADY, database.OrderItemStatusOUTOFSTOCK},
	database.OrderItemStatusREADY:   {database.OrderItemStatusSERVED, database.OrderItemStatusOUTOFSTOCK},
}

func allowed[S comparable](table map[S][]S, from, to S) bool {
	for _, s := range table[from] {
		if s == to {
			return true
		}
	}
	return false
}

func CheckTable(from, to database.TableStatus) error {
	if !allowed(tableTransitions, from, to) {
		return &ErrInvalidTransition{Entity: "table", From: string(from), To: string(to)}
	}
	return nil
}

func CheckOrder(from, to database.OrderStatus) error {
	if !allowed(orderTransitions, from, to) {
		return &ErrInvalidTransition{Entity: "order", From: string(from), To: string(to)}
	}
	return nil
}

func CheckItem(from, to database.OrderItemStatus) error {
	if !allowed(itemTransitions, from, to) {
		return &ErrInvalidTransition{Entity: "order item", From: string(from), To: string(to)}
	}
	return nil
}

func OrderTerminal(s database.OrderStatus) bool {
	return s == database.OrderStatusPAID || s == database.OrderStatusCANCELLED
}

func ItemTerminal(s database.OrderItemStatus) bool {
	switch s {
	case database.OrderItemStatusSERVED,
		database.OrderItemStatusCANCELLED,
		database.OrderItemStatusOUTOFSTOCK:
		return true
	}
	return false
}

func ValidOrderStatus(s database.OrderStatus) bool {
	switch s {
	case database.OrderStatusPENDING,
		database.OrderStatusSERVING,
		database.OrderStatusPAID,
		database.OrderStatusCANCELLED:
		return true
	}
	return false
}

func ValidItemStatus(s database.OrderItemStatus) bool {
	switch s {
	case database.OrderItemStatusPENDING,
		database.OrderItemStatusCOOKING,
		database.OrderItemStatusREADY,
		database.OrderItemStatusSERVED,
		database.OrderItemStatusCANCELLED,
		database.OrderItemStatusOUTOFSTOCK:
		return true
	}
	return false
}

func ValidTableStatus(s database.TableStatus) bool {
	switch s {
	case database.TableStatusCLOSED,
		database.TableStatusOPENED,
		database.TableStatusOCCUPIED:
		return true
	}
	return false
}
