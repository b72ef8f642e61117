package database

import (
	"context"

	"github.com/google/uuid"
)

const orderEventColumns = `id, entity_type, entity_id, event_type, detail, created_at`

type CreateOrderEventParams struct {
	EntityType string
	EntityID   uuid.UUID
	EventType  string
	Detail     []byte
}

// CreateOrderEvent appends an audit row. Called inside the same transaction
// as the mutation it records so the trail cannot diverge from the state.
func (q *Queries) CreateOrderEvent(ctx context.Context, arg CreateOrderEventParams) (OrderEvent, error) {
	var e OrderEvent
	err := q.db.QueryRow(ctx, `
		INSERT INTO order_events (entity_type, entity_id, event_type, detail)
		VALUES ($1, $2, $3, $4)
		RETURNING `+orderEventColumns,
		arg.EntityType, arg.EntityID, arg.EventType, arg.Detail).Scan(
		&e.ID, &e.EntityType, &e.EntityID, &e.EventType, &e.Detail, &e.CreatedAt)
	return e, err
}

type ListOrderEventsParams struct {
	EntityType string
	EntityID   uuid.UUID
}

func (q *Queries) ListOrderEvents(ctx context.Context, arg ListOrderEventsParams) ([]OrderEvent, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+orderEventColumns+` FROM order_events
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY id`, arg.EntityType, arg.EntityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderEvent
	for rows.Next() {
		var e OrderEvent
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.EventType, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}
