package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"driftchat/internal/domain"
)

type outboxRepository struct {
	db *sql.DB
}

func NewOutboxRepository(db *sql.DB) OutboxRepository {
	return &outboxRepository{db: db}
}

func (r *outboxRepository) GetPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_type, aggregate_type, aggregate_id, payload, status, retry_count, error, created_at, updated_at, processed_at
		FROM outbox_events
		WHERE status = 'PENDING'
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending outbox events: %w", err)
	}
	defer rows.Close()

	var events []domain.OutboxEvent
	for rows.Next() {
		var ev domain.OutboxEvent
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.AggregateType, &ev.AggregateID, &ev.Payload,
			&ev.Status, &ev.RetryCount, &ev.Error, &ev.CreatedAt, &ev.UpdatedAt, &ev.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE outbox_events
		SET status = 'COMPLETED', processed_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`, id)
	return err
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, terminal bool) error {
	status := domain.OutboxPending
	if terminal {
		status = domain.OutboxFailed
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE outbox_events
		SET retry_count = retry_count + 1, error = $2, status = $3, updated_at = NOW()
		WHERE id = $1
	`, id, reason, status)
	return err
}
