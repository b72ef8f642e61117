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

// TableStore is the slice of database.Queries the table lifecycle needs.
type TableStore interface {
	CreateTable(ctx context.Context, arg database.CreateTableParams) (database.Table, error)
	GetTable(ctx context.Context, id uuid.UUID) (database.Table, error)
	GetTableByNumber(ctx context.Context, tableNumber string) (database.Table, error)
	GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.Table, error)
	ListActiveTables(ctx context.Context) ([]database.Table, error)
	ListAllTables(ctx context.Context) ([]database.Table, error)
	ListTablesByStatus(ctx context.Context, status database.TableStatus) ([]database.Table, error)
	UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.Table, error)
	OccupyTable(ctx context.Context, id uuid.UUID) (database.Table, error)
	CloseTable(ctx context.Context, id uuid.UUID) (database.Table, error)
	AssignWaiter(ctx context.Context, arg database.AssignWaiterParams) (database.Table, error)
	SetTableActive(ctx context.Context, arg database.SetTableActiveParams) (database.Table, error)
	UpdateTableInfo(ctx context.Context, arg database.UpdateTableInfoParams) (database.Table, error)
	GetOpenOrderByTable(ctx context.Context, tableID uuid.UUID) (database.Order, error)
	HasUnpaidOrder(ctx context.Context, tableID uuid.UUID) (bool, error)
	CreateOrderEvent(ctx context.Context, arg database.CreateOrderEventParams) (database.OrderEvent, error)
}

// NewTableStore builds a TableStore bound to a pool or transaction.
type NewTableStore func(db database.DBTX) TableStore

type TableService struct {
	store    TableStore
	pool     TxBeginner
	newStore NewTableStore
}

func NewTableService(store TableStore, pool TxBeginner, newStore NewTableStore) *TableService {
	return &TableService{store: store, pool: pool, newStore: newStore}
}

// Open moves a table to OPENED for a new seating. Repeating the call on an
// already-open table is a no-op; changed reports whether this call did the
// transition.
func (s *TableService) Open(ctx context.Context, id uuid.UUID) (database.Table, bool, error) {
	var table database.Table
	var changed bool
	err := s.inTx(ctx, func(store TableStore) error {
		t, err := store.GetTableForUpdate(ctx, id)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrTableNotFound
		}
		if err != nil {
			return err
		}
		if t.Status == database.TableStatusOPENED {
			table = t
			return nil
		}
		if err := lifecycle.CheckTable(t.Status, database.TableStatusOPENED); err != nil {
			return err
		}
		t, err = store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{
			ID:         id,
			Status:     database.TableStatusOPENED,
			FromStatus: t.Status,
		})
		if err != nil {
			return err
		}
		if err := s.recordTableEvent(ctx, store, t, "table_opened"); err != nil {
			return err
		}
		table = t
		changed = true
		return nil
	})
	return table, changed, err
}

// Occupy marks the table as seated with an active order. The transition is
// only legal once the table actually has an open order.
func (s *TableService) Occupy(ctx context.Context, id uuid.UUID) (database.Table, bool, error) {
	var table database.Table
	var changed bool
	err := s.inTx(ctx, func(store TableStore) error {
		t, err := store.GetTableForUpdate(ctx, id)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrTableNotFound
		}
		if err != nil {
			return err
		}
		if t.Status == database.TableStatusOCCUPIED {
			table = t
			return nil
		}
		if err := lifecycle.CheckTable(t.Status, database.TableStatusOCCUPIED); err != nil {
			return err
		}
		if _, err := store.GetOpenOrderByTable(ctx, t.ID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNoOpenOrder
			}
			return err
		}
		t, err = store.OccupyTable(ctx, id)
		if err != nil {
			return err
		}
		if err := s.recordTableEvent(ctx, store, t, "table_occupied"); err != nil {
			return err
		}
		table = t
		changed = true
		return nil
	})
	return table, changed, err
}

// Close resets the table at the end of a seating. Refused while the table
// still has an unpaid open order; closing an already-closed table is a no-op.
func (s *TableService) Close(ctx context.Context, id uuid.UUID) (database.Table, bool, error) {
	var table database.Table
	var changed bool
	err := s.inTx(ctx, func(store TableStore) error {
		t, err := store.GetTableForUpdate(ctx, id)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrTableNotFound
		}
		if err != nil {
			return err
		}
		if t.Status == database.TableStatusCLOSED {
			table = t
			return nil
		}
		unpaid, err := store.HasUnpaidOrder(ctx, t.ID)
		if err != nil {
			return err
		}
		if unpaid {
			return ErrTableHasUnpaidOrder
		}
		t, err = store.CloseTable(ctx, id)
		if err != nil {
			return err
		}
		if err := s.recordTableEvent(ctx, store, t, "table_closed"); err != nil {
			return err
		}
		table = t
		changed = true
		return nil
	})
	return table, changed, err
}

// AssignWaiter is last-write-wins metadata; only a CLOSED table refuses it.
func (s *TableService) AssignWaiter(ctx context.Context, id, waiterID uuid.UUID) (database.Table, error) {
	var table database.Table
	err := s.inTx(ctx, func(store TableStore) error {
		t, err := store.AssignWaiter(ctx, database.AssignWaiterParams{
			ID:       id,
			WaiterID: pgtype.UUID{Bytes: waiterID, Valid: true},
		})
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := store.GetTable(ctx, id); errors.Is(getErr, pgx.ErrNoRows) {
				return ErrTableNotFound
			}
			return ErrTableClosed
		}
		if err != nil {
			return err
		}
		detail, _ := json.Marshal(map[string]string{"waiter_id": waiterID.String()})
		if _, err := store.CreateOrderEvent(ctx, database.CreateOrderEventParams{
			EntityType: "table",
			EntityID:   t.ID,
			EventType:  "waiter_assigned",
			Detail:     detail,
		}); err != nil {
			return err
		}
		table = t
		return nil
	})
	return table, err
}

// Hide removes a table from service without deleting its history. Only a
// CLOSED table may be hidden.
func (s *TableService) Hide(ctx context.Context, id uuid.UUID) (database.Table, error) {
	var table database.Table
	err := s.inTx(ctx, func(store TableStore) error {
		t, err := store.GetTableForUpdate(ctx, id)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrTableNotFound
		}
		if err != nil {
			return err
		}
		if t.Status != database.TableStatusCLOSED {
			return ErrTableNotClosed
		}
		t, err = store.SetTableActive(ctx, database.SetTableActiveParams{ID: id, IsActive: false})
		if err != nil {
			return err
		}
		table = t
		return nil
	})
	return table, err
}

// Show returns a hidden table to the floor plan.
func (s *TableService) Show(ctx context.Context, id uuid.UUID) (database.Table, error) {
	t, err := s.store.SetTableActive(ctx, database.SetTableActiveParams{ID: id, IsActive: true})
	if errors.Is(err, pgx.ErrNoRows) {
		return database.Table{}, ErrTableNotFound
	}
	return t, err
}

type ProvisionTableRequest struct {
	TableNumber string
	Zone        string
	Capacity    int32
}

func (r ProvisionTableRequest) validate() error {
	if r.TableNumber == "" {
		return ErrTableNumberRequired
	}
	if r.Zone == "" {
		return ErrZoneRequired
	}
	if r.Capacity <= 0 {
		return ErrInvalidCapacity
	}
	return nil
}

// Provision registers a new physical table, born CLOSED and active.
func (s *TableService) Provision(ctx context.Context, req ProvisionTableRequest) (database.Table, error) {
	if err := req.validate(); err != nil {
		return database.Table{}, err
	}
	t, err := s.store.CreateTable(ctx, database.CreateTableParams{
		TableNumber: req.TableNumber,
		Zone:        req.Zone,
		Capacity:    req.Capacity,
	})
	if isUniqueViolation(err, "tables_table_number_key") {
		return database.Table{}, ErrDuplicateTableNumber
	}
	return t, err
}

// UpdateInfo edits table metadata. Status and activity are untouched.
func (s *TableService) UpdateInfo(ctx context.Context, id uuid.UUID, req ProvisionTableRequest) (database.Table, error) {
	if err := req.validate(); err != nil {
		return database.Table{}, err
	}
	t, err := s.store.UpdateTableInfo(ctx, database.UpdateTableInfoParams{
		ID:          id,
		TableNumber: req.TableNumber,
		Zone:        req.Zone,
		Capacity:    req.Capacity,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return database.Table{}, ErrTableNotFound
	}
	if isUniqueViolation(err, "tables_table_number_key") {
		return database.Table{}, ErrDuplicateTableNumber
	}
	return t, err
}

func (s *TableService) Get(ctx context.Context, id uuid.UUID) (database.Table, error) {
	t, err := s.store.GetTable(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return database.Table{}, ErrTableNotFound
	}
	return t, err
}

// GetByNumber is the customer-facing lookup. Hidden tables are invisible, the
// tablet on a retired table just sees "not found".
func (s *TableService) GetByNumber(ctx context.Context, tableNumber string) (database.Table, error) {
	t, err := s.store.GetTableByNumber(ctx, tableNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		return database.Table{}, ErrTableNotFound
	}
	if err != nil {
		return database.Table{}, err
	}
	if !t.IsActive {
		return database.Table{}, ErrTableNotFound
	}
	return t, nil
}

// List returns the floor plan. Staff views may include hidden tables and
// filter by status; customers only ever see active ones.
func (s *TableService) List(ctx context.Context, includeHidden bool, status database.TableStatus) ([]database.Table, error) {
	if status != "" {
		if !lifecycle.ValidTableStatus(status) {
			return nil, ErrInvalidStatusValue
		}
		return s.store.ListTablesByStatus(ctx, status)
	}
	if includeHidden {
		return s.store.ListAllTables(ctx)
	}
	return s.store.ListActiveTables(ctx)
}

func (s *TableService) recordTableEvent(ctx context.Context, store TableStore, t database.Table, eventType string) error {
	detail, _ := json.Marshal(map[string]string{"status": string(t.Status)})
	_, err := store.CreateOrderEvent(ctx, database.CreateOrderEventParams{
		EntityType: "table",
		EntityID:   t.ID,
		EventType:  eventType,
		Detail:     detail,
	})
	return err
}

func (s *TableService) inTx(ctx context.Context, fn func(store TableStore) error) error {
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
