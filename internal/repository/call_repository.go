package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"driftchat/internal/domain"
)

type callRepository struct {
	db *sql.DB
}

func NewCallRepository(db *sql.DB) CallRepository {
	return &callRepository{db: db}
}

func (r *callRepository) CreateRecord(ctx context.Context, rec *domain.CallRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO call_history (id, initiator_id, receiver_id, call_type, status, start_time, end_time, duration_sec, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`, rec.ID, rec.InitiatorID, rec.ReceiverID, rec.CallType, rec.Status, rec.StartTime, rec.EndTime, rec.DurationSec)
	if err != nil {
		return fmt.Errorf("insert call record: %w", err)
	}
	return nil
}

func (r *callRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.CallRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ch.id, ch.initiator_id, ch.receiver_id, ch.call_type, ch.status,
		       ch.start_time, ch.end_time, ch.duration_sec, ch.created_at,
		       iu.username, iu.avatar_url,
		       ru.username, ru.avatar_url
		FROM call_history ch
		JOIN users iu ON iu.id = ch.initiator_id
		JOIN users ru ON ru.id = ch.receiver_id
		WHERE ch.initiator_id = $1 OR ch.receiver_id = $1
		ORDER BY ch.start_time DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list call history: %w", err)
	}
	defer rows.Close()

	var recs []domain.CallRecord
	for rows.Next() {
		var rec domain.CallRecord
		if err := rows.Scan(&rec.ID, &rec.InitiatorID, &rec.ReceiverID, &rec.CallType, &rec.Status,
			&rec.StartTime, &rec.EndTime, &rec.DurationSec, &rec.CreatedAt,
			&rec.Initiator.Username, &rec.Initiator.AvatarURL,
			&rec.Receiver.Username, &rec.Receiver.AvatarURL); err != nil {
			return nil, fmt.Errorf("scan call record: %w", err)
		}
		rec.Initiator.ID = rec.InitiatorID
		rec.Receiver.ID = rec.ReceiverID
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
