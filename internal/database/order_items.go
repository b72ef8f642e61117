package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderItemColumns = `id, order_id, menu_item_id, quantity, note, status, price, ordered_at, created_at, updated_at`

func scanOrderItem(row interface{ Scan(dest ...any) error }) (OrderItem, error) {
	var it OrderItem
	err := row.Scan(
		&it.ID,
		&it.OrderID,
		&it.MenuItemID,
		&it.Quantity,
		&it.Note,
		&it.Status,
		&it.Price,
		&it.OrderedAt,
		&it.CreatedAt,
		&it.UpdatedAt,
	)
	return it, err
}

type CreateOrderItemParams struct {
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Quantity   int32
	Note       pgtype.Text
	Price      pgtype.Numeric
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO order_items (order_id, menu_item_id, quantity, note, price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+orderItemColumns,
		arg.OrderID, arg.MenuItemID, arg.Quantity, arg.Note, arg.Price)
	return scanOrderItem(row)
}

func (q *Queries) GetOrderItem(ctx context.Context, id uuid.UUID) (OrderItem, error) {
	row := q.db.QueryRow(ctx, `SELECT `+orderItemColumns+` FROM order_items WHERE id = $1`, id)
	return scanOrderItem(row)
}

// GetOrderItemForUpdate locks the item row; two kitchen terminals racing the
// same item are processed one at a time.
func (q *Queries) GetOrderItemForUpdate(ctx context.Context, id uuid.UUID) (OrderItem, error) {
	row := q.db.QueryRow(ctx, `SELECT `+orderItemColumns+` FROM order_items WHERE id = $1 FOR NO KEY UPDATE`, id)
	return scanOrderItem(row)
}

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+orderItemColumns+` FROM order_items
		WHERE order_id = $1
		ORDER BY ordered_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		it, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListOrderItemDetailsByOrderRow carries the menu item name alongside the
// line, for customer and kitchen polling responses.
type ListOrderItemDetailsByOrderRow struct {
	OrderItem
	MenuItemName string
	KitchenType  string
}

func (q *Queries) ListOrderItemDetailsByOrder(ctx context.Context, orderID uuid.UUID) ([]ListOrderItemDetailsByOrderRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT oi.id, oi.order_id, oi.menu_item_id, oi.quantity, oi.note, oi.status,
		       oi.price, oi.ordered_at, oi.created_at, oi.updated_at,
		       mi.name, mi.kitchen_type
		FROM order_items oi
		JOIN menu_items mi ON mi.id = oi.menu_item_id
		WHERE oi.order_id = $1
		ORDER BY oi.ordered_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListOrderItemDetailsByOrderRow
	for rows.Next() {
		var r ListOrderItemDetailsByOrderRow
		if err := rows.Scan(
			&r.ID,
			&r.OrderID,
			&r.MenuItemID,
			&r.Quantity,
			&r.Note,
			&r.Status,
			&r.Price,
			&r.OrderedAt,
			&r.CreatedAt,
			&r.UpdatedAt,
			&r.MenuItemName,
			&r.KitchenType,
		); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

type UpdateOrderItemStatusParams struct {
	ID         uuid.UUID
	Status     OrderItemStatus
	FromStatus OrderItemStatus
}

func (q *Queries) UpdateOrderItemStatus(ctx context.Context, arg UpdateOrderItemStatusParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE order_items
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING `+orderItemColumns,
		arg.ID, arg.Status, arg.FromStatus)
	return scanOrderItem(row)
}

// CancelOpenItemsByOrder sweeps every non-terminal item to CANCELLED in one
// statement, so no poller ever observes a half-cancelled order.
func (q *Queries) CancelOpenItemsByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE order_items
		SET status = 'CANCELLED', updated_at = now()
		WHERE order_id = $1 AND status IN ('PENDING', 'COOKING', 'READY')`, orderID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// StartCookingPendingItems moves every PENDING item to COOKING when the order
// enters SERVING. Already-advanced items are untouched.
func (q *Queries) StartCookingPendingItems(ctx context.Context, orderID uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE order_items
		SET status = 'COOKING', updated_at = now()
		WHERE order_id = $1 AND status = 'PENDING'`, orderID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountUnfinishedItems counts items the kitchen has not finished with; any
// such item blocks payment.
func (q *Queries) CountUnfinishedItems(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM order_items
		WHERE order_id = $1 AND status IN ('PENDING', 'COOKING')`, orderID).Scan(&n)
	return n, err
}

// HasServedItem reports whether any item already reached SERVED, which blocks
// whole-order cancellation.
func (q *Queries) HasServedItem(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM order_items WHERE order_id = $1 AND status = 'SERVED'
		)`, orderID).Scan(&exists)
	return exists, err
}

// SumOrderItems recomputes the order total from source of truth: cancelled and
// out-of-stock lines do not count.
func (q *Queries) SumOrderItems(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error) {
	var total pgtype.Numeric
	err := q.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(price * quantity), 0)
		FROM order_items
		WHERE order_id = $1 AND status NOT IN ('CANCELLED', 'OUT_OF_STOCK')`, orderID).Scan(&total)
	return total, err
}
