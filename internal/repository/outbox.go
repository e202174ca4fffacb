package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/kennethcatiis/ecommerce-platform/internal/apperr"
	"github.com/kennethcatiis/ecommerce-platform/internal/events"
)

func insertEvent(ctx context.Context, q querier, e events.Event) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO outbox_events (event_type, aggregate_id, payload, created_at)
		VALUES (?, ?, ?, ?)`,
		e.Type, e.AggregateID, []byte(e.Payload), createdAt.UTC(),
	)
	return classify("insert outbox event", err)
}

func (s *Store) PendingEvents(ctx context.Context, limit int) ([]events.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, aggregate_id, payload, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT ?`, limit)
	if err != nil {
		return nil, classify("fetch outbox events", err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var e events.Event
		var payload []byte
		if err := rows.Scan(&e.ID, &e.Type, &e.AggregateID, &payload, &e.CreatedAt); err != nil {
			return nil, classify("scan outbox event", err)
		}
		e.Payload = payload
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("fetch outbox events", err)
	}
	return out, nil
}

func (s *Store) MarkPublished(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE outbox_events SET published_at = UTC_TIMESTAMP(6) WHERE id = ? AND published_at IS NULL", id)
	if err != nil {
		return classify("mark event published", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify("mark event published", err)
	}
	if n == 0 {
		return fmt.Errorf("event %d: %w", id, apperr.ErrNotFound)
	}
	return nil
}
