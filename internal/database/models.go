package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type TableStatus string

const (
	TableStatusCLOSED   TableStatus = "CLOSED"
	TableStatusOPENED   TableStatus = "OPENED"
	TableStatusOCCUPIED TableStatus = "OCCUPIED"
)

type OrderStatus string

const (
	OrderStatusPENDING   OrderStatus = "PENDING"
	OrderStatusSERVING   OrderStatus = "SERVING"
	OrderStatusPAID      OrderStatus = "PAID"
	OrderStatusCANCELLED OrderStatus = "CANCELLED"
)

type OrderItemStatus string

const (
	OrderItemStatusPENDING    OrderItemStatus = "PENDING"
	OrderItemStatusCOOKING    OrderItemStatus = "COOKING"
	OrderItemStatusREADY      OrderItemStatus = "READY"
	OrderItemStatusSERVED     OrderItemStatus = "SERVED"
	OrderItemStatusCANCELLED  OrderItemStatus = "CANCELLED"
	OrderItemStatusOUTOFSTOCK OrderItemStatus = "OUT_OF_STOCK"
)

// Table is a physical seating unit. Never hard-deleted; hidden via IsActive.
type Table struct {
	ID               uuid.UUID
	TableNumber      string
	Zone             string
	Capacity         int32
	Status           TableStatus
	AssignedWaiterID pgtype.UUID
	OccupiedAt       pgtype.Timestamptz
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Order is the billing unit for one table occupancy. TotalAmount is derived
// from the items and rewritten on every item mutation, never authored directly.
type Order struct {
	ID             uuid.UUID
	TableID        uuid.UUID
	WaiterID       pgtype.UUID
	Status         OrderStatus
	IsPaid         bool
	NeedAssistance bool
	TotalAmount    pgtype.Numeric
	OrderTime      time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OrderItem is one line of an order. Price is snapshotted from the menu at
// creation time and never follows later menu edits.
type OrderItem struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Quantity   int32
	Note       pgtype.Text
	Status     OrderItemStatus
	Price      pgtype.Numeric
	OrderedAt  time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type MenuItem struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
	Category    string
	KitchenType string
	IsAvailable bool
	IsHidden    bool
	ImageUrl    pgtype.Text
	IsSpicy     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Payment struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	Amount        pgtype.Numeric
	PaymentMethod string
	ReceiptNumber string
	ProcessedAt   time.Time
}

// OrderEvent is an append-only audit row written in the same transaction as
// the mutation it records.
type OrderEvent struct {
	ID         int64
	EntityType string
	EntityID   uuid.UUID
	EventType  string
	Detail     []byte
	CreatedAt  time.Time
}
