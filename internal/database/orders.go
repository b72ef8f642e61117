package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, table_id, waiter_id, status, is_paid, need_assistance, total_amount, order_time, created_at, updated_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.TableID,
		&o.WaiterID,
		&o.Status,
		&o.IsPaid,
		&o.NeedAssistance,
		&o.TotalAmount,
		&o.OrderTime,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	return o, err
}

func (q *Queries) scanOrders(ctx context.Context, sql string, args ...any) ([]Order, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

type CreateOrderParams struct {
	TableID  uuid.UUID
	WaiterID pgtype.UUID
}

// CreateOrder inserts a fresh PENDING order. The one_open_order_per_table
// index makes a concurrent duplicate fail with SQLSTATE 23505; callers retry
// the open-order lookup on that error.
func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO orders (table_id, waiter_id)
		VALUES ($1, $2)
		RETURNING `+orderColumns,
		arg.TableID, arg.WaiterID)
	return scanOrder(row)
}

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR NO KEY UPDATE`, id)
	return scanOrder(row)
}

// GetOpenOrderByTable returns the single non-terminal order for a table, if any.
func (q *Queries) GetOpenOrderByTable(ctx context.Context, tableID uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE table_id = $1 AND status IN ('PENDING', 'SERVING')`, tableID)
	return scanOrder(row)
}

func (q *Queries) GetOpenOrderByTableForUpdate(ctx context.Context, tableID uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE table_id = $1 AND status IN ('PENDING', 'SERVING')
		FOR NO KEY UPDATE`, tableID)
	return scanOrder(row)
}

func (q *Queries) ListOrders(ctx context.Context) ([]Order, error) {
	return q.scanOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY order_time DESC`)
}

func (q *Queries) ListActiveOrders(ctx context.Context) ([]Order, error) {
	return q.scanOrders(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status IN ('PENDING', 'SERVING')
		ORDER BY order_time`)
}

func (q *Queries) ListOrdersByTable(ctx context.Context, tableID uuid.UUID) ([]Order, error) {
	return q.scanOrders(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE table_id = $1
		ORDER BY order_time DESC`, tableID)
}

type UpdateOrderStatusParams struct {
	ID         uuid.UUID
	Status     OrderStatus
	FromStatus OrderStatus
}

// UpdateOrderStatus is the guarded transition write; a stale writer whose
// FromStatus no longer matches gets pgx.ErrNoRows.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING `+orderColumns,
		arg.ID, arg.Status, arg.FromStatus)
	return scanOrder(row)
}

type SetOrderTotalParams struct {
	ID          uuid.UUID
	TotalAmount pgtype.Numeric
}

func (q *Queries) SetOrderTotal(ctx context.Context, arg SetOrderTotalParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders
		SET total_amount = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns,
		arg.ID, arg.TotalAmount)
	return scanOrder(row)
}

type SetOrderAssistanceParams struct {
	ID             uuid.UUID
	NeedAssistance bool
}

// SetOrderAssistance is last-write-wins on purpose; see the polling contract.
func (q *Queries) SetOrderAssistance(ctx context.Context, arg SetOrderAssistanceParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders
		SET need_assistance = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns,
		arg.ID, arg.NeedAssistance)
	return scanOrder(row)
}

// MarkOrderPaid settles the payment flag and moves the order to its terminal
// PAID status in one write. Guarded on is_paid so a double payment attempt
// surfaces as pgx.ErrNoRows.
func (q *Queries) MarkOrderPaid(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders
		SET is_paid = true, status = 'PAID', updated_at = now()
		WHERE id = $1 AND NOT is_paid
		RETURNING `+orderColumns, id)
	return scanOrder(row)
}

// HasUnpaidOrder reports whether the table still has a non-terminal order,
// which blocks closing it.
func (q *Queries) HasUnpaidOrder(ctx context.Context, tableID uuid.UUID) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM orders
			WHERE table_id = $1 AND status IN ('PENDING', 'SERVING') AND NOT is_paid
		)`, tableID).Scan(&exists)
	return exists, err
}
