package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const menuItemColumns = `id, name, description, price, category, kitchen_type, is_available, is_hidden, image_url, is_spicy, created_at, updated_at`

func scanMenuItem(row interface{ Scan(dest ...any) error }) (MenuItem, error) {
	var m MenuItem
	err := row.Scan(
		&m.ID,
		&m.Name,
		&m.Description,
		&m.Price,
		&m.Category,
		&m.KitchenType,
		&m.IsAvailable,
		&m.IsHidden,
		&m.ImageUrl,
		&m.IsSpicy,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	return m, err
}

func (q *Queries) GetMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error) {
	row := q.db.QueryRow(ctx, `SELECT `+menuItemColumns+` FROM menu_items WHERE id = $1`, id)
	return scanMenuItem(row)
}

// ListVisibleMenuItems is the customer-facing menu: hidden entries excluded.
func (q *Queries) ListVisibleMenuItems(ctx context.Context) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+menuItemColumns+` FROM menu_items
		WHERE NOT is_hidden
		ORDER BY category, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MenuItem
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

type CreateMenuItemParams struct {
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
	Category    string
	KitchenType string
	IsAvailable bool
	ImageUrl    pgtype.Text
	IsSpicy     bool
}

// CreateMenuItem exists for seeding; catalog management is an external system.
func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO menu_items (name, description, price, category, kitchen_type, is_available, image_url, is_spicy)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+menuItemColumns,
		arg.Name, arg.Description, arg.Price, arg.Category, arg.KitchenType,
		arg.IsAvailable, arg.ImageUrl, arg.IsSpicy)
	return scanMenuItem(row)
}
