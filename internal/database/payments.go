package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const paymentColumns = `id, order_id, amount, payment_method, receipt_number, processed_at`

func scanPayment(row interface{ Scan(dest ...any) error }) (Payment, error) {
	var p Payment
	err := row.Scan(
		&p.ID,
		&p.OrderID,
		&p.Amount,
		&p.PaymentMethod,
		&p.ReceiptNumber,
		&p.ProcessedAt,
	)
	return p, err
}

func (q *Queries) scanPayments(ctx context.Context, sql string, args ...any) ([]Payment, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

type CreatePaymentParams struct {
	OrderID       uuid.UUID
	Amount        pgtype.Numeric
	PaymentMethod string
	ReceiptNumber string
}

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO payments (order_id, amount, payment_method, receipt_number)
		VALUES ($1, $2, $3, $4)
		RETURNING `+paymentColumns,
		arg.OrderID, arg.Amount, arg.PaymentMethod, arg.ReceiptNumber)
	return scanPayment(row)
}

func (q *Queries) GetPayment(ctx context.Context, id uuid.UUID) (Payment, error) {
	row := q.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	return scanPayment(row)
}

func (q *Queries) ListPayments(ctx context.Context) ([]Payment, error) {
	return q.scanPayments(ctx, `SELECT `+paymentColumns+` FROM payments ORDER BY processed_at DESC`)
}

func (q *Queries) ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]Payment, error) {
	return q.scanPayments(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE order_id = $1
		ORDER BY processed_at`, orderID)
}

type ListPaymentsByDateRangeParams struct {
	StartDate time.Time
	EndDate   time.Time
}

func (q *Queries) ListPaymentsByDateRange(ctx context.Context, arg ListPaymentsByDateRangeParams) ([]Payment, error) {
	return q.scanPayments(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE processed_at BETWEEN $1 AND $2
		ORDER BY processed_at`, arg.StartDate, arg.EndDate)
}
