package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"driftchat/internal/domain"
	drift_errors "driftchat/pkg/errors"
)

type messageRepository struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) MessageRepository {
	return &messageRepository{db: db}
}

const messageColumns = `id, conversation_id, sender_id, receiver_id, message_type,
	content, url, thumbnail_url, is_seen, mirror_doc_id, created_at`

func (r *messageRepository) CreateWithOutbox(ctx context.Context, msg *domain.Message, intents []domain.OutboxEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, receiver_id, message_type, content, url, thumbnail_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`, msg.ID, msg.ConversationID, msg.SenderID, msg.ReceiverID, msg.Type, msg.Content, msg.URL, msg.ThumbnailURL); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE conversations SET updated_at = NOW() WHERE id = $1
	`, msg.ConversationID); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}

	for _, intent := range intents {
		if err := insertOutbox(ctx, tx, intent); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *messageRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Message, error) {
	var m domain.Message
	err := r.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id).
		Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.ReceiverID, &m.Type,
			&m.Content, &m.URL, &m.ThumbnailURL, &m.IsSeen, &m.MirrorDocID, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return domain.Message{}, drift_errors.ErrNotFound
	}
	if err != nil {
		return domain.Message{}, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

func (r *messageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.ReceiverID, &m.Type,
			&m.Content, &m.URL, &m.ThumbnailURL, &m.IsSeen, &m.MirrorDocID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (r *messageRepository) CountByConversation(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages WHERE conversation_id = $1
	`, conversationID).Scan(&n)
	return n, err
}

func (r *messageRepository) MarkSeen(ctx context.Context, id uuid.UUID, intent domain.OutboxEvent) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// The WHERE clause makes repeated calls no-ops, so the intent is only
	// enqueued on the actual false-to-true flip.
	res, err := tx.ExecContext(ctx, `
		UPDATE messages SET is_seen = TRUE WHERE id = $1 AND is_seen = FALSE
	`, id)
	if err != nil {
		return false, fmt.Errorf("mark seen: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, tx.Commit()
	}

	if err := insertOutbox(ctx, tx, intent); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (r *messageRepository) SetMirrorDocID(ctx context.Context, id uuid.UUID, mirrorDocID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages SET mirror_doc_id = $2 WHERE id = $1
	`, id, mirrorDocID)
	return err
}

func insertOutbox(ctx context.Context, tx *sql.Tx, ev domain.OutboxEvent) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO outbox_events (id, event_type, aggregate_type, aggregate_id, payload, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'PENDING', NOW(), NOW())
	`, ev.ID, ev.EventType, ev.AggregateType, ev.AggregateID, ev.Payload); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}
