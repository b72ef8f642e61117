package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const tableColumns = `id, table_number, zone, capacity, status, assigned_waiter_id, occupied_at, is_active, created_at, updated_at`

func scanTable(row interface{ Scan(dest ...any) error }) (Table, error) {
	var t Table
	err := row.Scan(
		&t.ID,
		&t.TableNumber,
		&t.Zone,
		&t.Capacity,
		&t.Status,
		&t.AssignedWaiterID,
		&t.OccupiedAt,
		&t.IsActive,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	return t, err
}

type CreateTableParams struct {
	TableNumber string
	Zone        string
	Capacity    int32
}

func (q *Queries) CreateTable(ctx context.Context, arg CreateTableParams) (Table, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO tables (table_number, zone, capacity)
		VALUES ($1, $2, $3)
		RETURNING `+tableColumns,
		arg.TableNumber, arg.Zone, arg.Capacity)
	return scanTable(row)
}

func (q *Queries) GetTable(ctx context.Context, id uuid.UUID) (Table, error) {
	row := q.db.QueryRow(ctx, `SELECT `+tableColumns+` FROM tables WHERE id = $1`, id)
	return scanTable(row)
}

func (q *Queries) GetTableByNumber(ctx context.Context, tableNumber string) (Table, error) {
	row := q.db.QueryRow(ctx, `SELECT `+tableColumns+` FROM tables WHERE table_number = $1`, tableNumber)
	return scanTable(row)
}

// GetTableForUpdate locks the table row for the duration of the transaction,
// serializing concurrent lifecycle writes for the same table.
func (q *Queries) GetTableForUpdate(ctx context.Context, id uuid.UUID) (Table, error) {
	row := q.db.QueryRow(ctx, `SELECT `+tableColumns+` FROM tables WHERE id = $1 FOR NO KEY UPDATE`, id)
	return scanTable(row)
}

func (q *Queries) GetTableByNumberForUpdate(ctx context.Context, tableNumber string) (Table, error) {
	row := q.db.QueryRow(ctx, `SELECT `+tableColumns+` FROM tables WHERE table_number = $1 FOR NO KEY UPDATE`, tableNumber)
	return scanTable(row)
}

func (q *Queries) ListActiveTables(ctx context.Context) ([]Table, error) {
	rows, err := q.db.Query(ctx, `SELECT `+tableColumns+` FROM tables WHERE is_active ORDER BY table_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

func (q *Queries) ListAllTables(ctx context.Context) ([]Table, error) {
	rows, err := q.db.Query(ctx, `SELECT `+tableColumns+` FROM tables ORDER BY table_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

func (q *Queries) ListTablesByStatus(ctx context.Context, status TableStatus) ([]Table, error) {
	rows, err := q.db.Query(ctx, `SELECT `+tableColumns+` FROM tables WHERE status = $1 AND is_active ORDER BY table_number`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

type UpdateTableStatusParams struct {
	ID         uuid.UUID
	Status     TableStatus
	FromStatus TableStatus
}

// UpdateTableStatus applies a guarded status transition: the write lands only
// if the row still holds FromStatus, so a stale writer gets pgx.ErrNoRows
// instead of clobbering a newer state.
func (q *Queries) UpdateTableStatus(ctx context.Context, arg UpdateTableStatusParams) (Table, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE tables
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING `+tableColumns,
		arg.ID, arg.Status, arg.FromStatus)
	return scanTable(row)
}

func (q *Queries) OccupyTable(ctx context.Context, id uuid.UUID) (Table, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE tables
		SET status = 'OCCUPIED', occupied_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'OPENED'
		RETURNING `+tableColumns, id)
	return scanTable(row)
}

func (q *Queries) CloseTable(ctx context.Context, id uuid.UUID) (Table, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE tables
		SET status = 'CLOSED', assigned_waiter_id = NULL, occupied_at = NULL, updated_at = now()
		WHERE id = $1 AND status <> 'CLOSED'
		RETURNING `+tableColumns, id)
	return scanTable(row)
}

type AssignWaiterParams struct {
	ID       uuid.UUID
	WaiterID pgtype.UUID
}

// AssignWaiter is a last-write-wins metadata update, legal in any status
// except CLOSED.
func (q *Queries) AssignWaiter(ctx context.Context, arg AssignWaiterParams) (Table, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE tables
		SET assigned_waiter_id = $2, updated_at = now()
		WHERE id = $1 AND status <> 'CLOSED'
		RETURNING `+tableColumns,
		arg.ID, arg.WaiterID)
	return scanTable(row)
}

type SetTableActiveParams struct {
	ID       uuid.UUID
	IsActive bool
}

func (q *Queries) SetTableActive(ctx context.Context, arg SetTableActiveParams) (Table, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE tables
		SET is_active = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+tableColumns,
		arg.ID, arg.IsActive)
	return scanTable(row)
}

type UpdateTableInfoParams struct {
	ID          uuid.UUID
	TableNumber string
	Zone        string
	Capacity    int32
}

func (q *Queries) UpdateTableInfo(ctx context.Context, arg UpdateTableInfoParams) (Table, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE tables
		SET table_number = $2, zone = $3, capacity = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+tableColumns,
		arg.ID, arg.TableNumber, arg.Zone, arg.Capacity)
	return scanTable(row)
}
