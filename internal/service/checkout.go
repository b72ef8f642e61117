package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dinesync/api/internal/database"
	"github.com/dinesync/api/internal/enum"
)

// receiptRetries bounds the retry loop for the receipt number unique index.
const receiptRetries = 3

var paymentMethods = map[string]bool{
	enum.PaymentMethodCash:       true,
	enum.PaymentMethodCreditCard: true,
	enum.PaymentMethodDebitCard:  true,
	enum.PaymentMethodMomo:       true,
	enum.PaymentMethodVNPay:      true,
	enum.PaymentMethodZaloPay:    true,
}

type CheckoutStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	CountUnfinishedItems(ctx context.Context, orderID uuid.UUID) (int64, error)
	SumOrderItems(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error)
	SetOrderTotal(ctx context.Context, arg database.SetOrderTotalParams) (database.Order, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	MarkOrderPaid(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetPayment(ctx context.Context, id uuid.UUID) (database.Payment, error)
	ListPayments(ctx context.Context) ([]database.Payment, error)
	ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error)
	ListPaymentsByDateRange(ctx context.Context, arg database.ListPaymentsByDateRangeParams) ([]database.Payment, error)
	CreateOrderEvent(ctx context.Context, arg database.CreateOrderEventParams) (database.OrderEvent, error)
}

type NewCheckoutStore func(db database.DBTX) CheckoutStore

// TableCloser closes out the table once its order is settled.
type TableCloser interface {
	Close(ctx context.Context, tableID uuid.UUID) (database.Table, bool, error)
}

// CheckoutService settles orders. MarkPaid is atomic; Finish is deliberately
// not, because a recorded payment must survive a failed table close.
type CheckoutService struct {
	store    CheckoutStore
	pool     TxBeginner
	newStore NewCheckoutStore
	tables   TableCloser
}

func NewCheckoutService(store CheckoutStore, pool TxBeginner, newStore NewCheckoutStore, tables TableCloser) *CheckoutService {
	return &CheckoutService{store: store, pool: pool, newStore: newStore, tables: tables}
}

// MarkPaid records the payment and moves the order to PAID in one
// transaction. The total is recomputed from the items first so the receipt
// reflects any line voided since the last write. A receipt number collision
// aborts the transaction, so the whole thing retries with a fresh number.
func (s *CheckoutService) MarkPaid(ctx context.Context, orderID uuid.UUID, method string) (database.Payment, database.Order, error) {
	if !paymentMethods[method] {
		return database.Payment{}, database.Order{}, ErrInvalidPaymentMethod
	}
	var lastErr error
	for attempt := 0; attempt < receiptRetries; attempt++ {
		payment, order, err := s.markPaidTx(ctx, orderID, method)
		if isUniqueViolation(err, "payments_receipt_number_key") {
			lastErr = err
			continue
		}
		return payment, order, err
	}
	return database.Payment{}, database.Order{}, fmt.Errorf("mark paid: %w", lastErr)
}

func (s *CheckoutService) markPaidTx(ctx context.Context, orderID uuid.UUID, method string) (database.Payment, database.Order, error) {
	var payment database.Payment
	var order database.Order
	err := s.inTx(ctx, func(store CheckoutStore) error {
		o, err := store.GetOrderForUpdate(ctx, orderID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		if o.IsPaid {
			return ErrAlreadyPaid
		}
		if o.Status == database.OrderStatusCANCELLED {
			return ErrOrderCancelled
		}
		unfinished, err := store.CountUnfinishedItems(ctx, o.ID)
		if err != nil {
			return err
		}
		if unfinished > 0 {
			return ErrUnfinishedItems
		}
		total, err := store.SumOrderItems(ctx, o.ID)
		if err != nil {
			return err
		}
		if _, err := store.SetOrderTotal(ctx, database.SetOrderTotalParams{ID: o.ID, TotalAmount: total}); err != nil {
			return err
		}
		p, err := store.CreatePayment(ctx, database.CreatePaymentParams{
			OrderID:       o.ID,
			Amount:        total,
			PaymentMethod: method,
			ReceiptNumber: receiptNumber(time.Now()),
		})
		if err != nil {
			return err
		}
		o, err = store.MarkOrderPaid(ctx, o.ID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAlreadyPaid
		}
		if err != nil {
			return err
		}
		detail, _ := json.Marshal(map[string]string{
			"receipt_number": p.ReceiptNumber,
			"payment_method": method,
		})
		if _, err := store.CreateOrderEvent(ctx, database.CreateOrderEventParams{
			EntityType: "order",
			EntityID:   o.ID,
			EventType:  "order_paid",
			Detail:     detail,
		}); err != nil {
			return err
		}
		payment = p
		order = o
		return nil
	})
	return payment, order, err
}

type FinishResult struct {
	Order   database.Order
	Payment *database.Payment
	Table   database.Table
}

// Finish settles the order, then closes its table. The two steps commit
// separately: if the close fails the payment stands and the error is a
// *PartialFailureError, so the caller retries Finish and only the close runs
// again.
func (s *CheckoutService) Finish(ctx context.Context, orderID uuid.UUID, method string) (FinishResult, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return FinishResult{}, ErrOrderNotFound
	}
	if err != nil {
		return FinishResult{}, err
	}

	var payment *database.Payment
	if !order.IsPaid {
		p, o, err := s.MarkPaid(ctx, orderID, method)
		if errors.Is(err, ErrAlreadyPaid) {
			// Lost a race with another cashier; the close step still runs.
			o, err = s.store.GetOrder(ctx, orderID)
			if err != nil {
				return FinishResult{}, err
			}
			order = o
		} else if err != nil {
			return FinishResult{}, err
		} else {
			order = o
			payment = &p
		}
	}

	table, _, err := s.tables.Close(ctx, order.TableID)
	if err != nil {
		return FinishResult{Order: order, Payment: payment},
			&PartialFailureError{Order: order, Payment: payment, Err: err}
	}
	return FinishResult{Order: order, Payment: payment, Table: table}, nil
}

func (s *CheckoutService) Payment(ctx context.Context, id uuid.UUID) (database.Payment, error) {
	p, err := s.store.GetPayment(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return database.Payment{}, ErrOrderNotFound
	}
	return p, err
}

func (s *CheckoutService) ListPayments(ctx context.Context) ([]database.Payment, error) {
	return s.store.ListPayments(ctx)
}

func (s *CheckoutService) PaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error) {
	return s.store.ListPaymentsByOrder(ctx, orderID)
}

func (s *CheckoutService) PaymentsByDateRange(ctx context.Context, start, end time.Time) ([]database.Payment, error) {
	return s.store.ListPaymentsByDateRange(ctx, database.ListPaymentsByDateRangeParams{
		StartDate: start,
		EndDate:   end,
	})
}

// receiptNumber formats PMT-YYYYMMDD-nnnnnn. Six random digits per day make a
// collision rare but not impossible; the unique index plus the retry in
// MarkPaid covers the rest.
func receiptNumber(now time.Time) string {
	return fmt.Sprintf("PMT-%s-%06d", now.Format("20060102"), rand.Intn(1000000))
}

func (s *CheckoutService) inTx(ctx context.Context, fn func(store CheckoutStore) error) error {
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
