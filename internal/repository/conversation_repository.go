package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"driftchat/internal/domain"
	drift_errors "driftchat/pkg/errors"
)

type conversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) FindOrCreateDirect(ctx context.Context, a, b uuid.UUID) (domain.Conversation, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Conversation{}, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Advisory lock on the normalized pair so two racing find-or-create
	// calls cannot both miss the lookup and insert duplicates.
	lo, hi := orderPair(a, b)
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lo.String()+":"+hi.String()); err != nil {
		return domain.Conversation{}, false, fmt.Errorf("advisory lock: %w", err)
	}

	var conv domain.Conversation
	err = tx.QueryRowContext(ctx, `
		SELECT c.id, c.is_group, c.group_name, c.group_admin, c.group_avatar, c.created_at, c.updated_at
		FROM conversations c
		WHERE c.is_group = FALSE
		  AND EXISTS (SELECT 1 FROM conversation_participants cp WHERE cp.conversation_id = c.id AND cp.user_id = $1)
		  AND EXISTS (SELECT 1 FROM conversation_participants cp WHERE cp.conversation_id = c.id AND cp.user_id = $2)
		LIMIT 1
	`, a, b).Scan(&conv.ID, &conv.IsGroup, &conv.GroupName, &conv.GroupAdmin, &conv.GroupAvatar, &conv.CreatedAt, &conv.UpdatedAt)

	created := false
	switch err {
	case nil:
	case sql.ErrNoRows:
		conv = domain.Conversation{ID: uuid.New(), IsGroup: false, CreatedAt: time.Now(), UpdatedAt: time.Now()}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO conversations (id, is_group, created_at, updated_at) VALUES ($1, FALSE, NOW(), NOW())
		`, conv.ID); err != nil {
			return domain.Conversation{}, false, fmt.Errorf("insert conversation: %w", err)
		}
		for _, uid := range []uuid.UUID{a, b} {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2)
				ON CONFLICT DO NOTHING
			`, conv.ID, uid); err != nil {
				return domain.Conversation{}, false, fmt.Errorf("insert participant: %w", err)
			}
		}
		created = true
	default:
		return domain.Conversation{}, false, fmt.Errorf("find direct conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Conversation{}, false, fmt.Errorf("commit: %w", err)
	}

	full, err := r.GetByID(ctx, conv.ID)
	if err != nil {
		return domain.Conversation{}, false, err
	}
	return full, created, nil
}

func (r *conversationRepository) CreateGroup(ctx context.Context, conv *domain.Conversation, participantIDs []uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (id, is_group, group_name, group_admin, group_avatar, created_at, updated_at)
		VALUES ($1, TRUE, $2, $3, $4, NOW(), NOW())
	`, conv.ID, conv.GroupName, conv.GroupAdmin, conv.GroupAvatar); err != nil {
		return fmt.Errorf("insert group: %w", err)
	}

	for _, uid := range participantIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, conv.ID, uid); err != nil {
			return fmt.Errorf("insert participant %s: %w", uid, err)
		}
	}

	return tx.Commit()
}

func (r *conversationRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Conversation, error) {
	var conv domain.Conversation
	err := r.db.QueryRowContext(ctx, `
		SELECT id, is_group, group_name, group_admin, group_avatar, created_at, updated_at
		FROM conversations WHERE id = $1
	`, id).Scan(&conv.ID, &conv.IsGroup, &conv.GroupName, &conv.GroupAdmin, &conv.GroupAvatar, &conv.CreatedAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return domain.Conversation{}, drift_errors.ErrNotFound
	}
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("get conversation: %w", err)
	}

	participants, err := r.participants(ctx, conv.ID)
	if err != nil {
		return domain.Conversation{}, err
	}
	conv.Participants = participants
	return conv, nil
}

func (r *conversationRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.is_group, c.group_name, c.group_admin, c.group_avatar, c.created_at, c.updated_at
		FROM conversations c
		JOIN conversation_participants cp ON cp.conversation_id = c.id
		WHERE cp.user_id = $1
		ORDER BY c.updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var convs []domain.Conversation
	for rows.Next() {
		var conv domain.Conversation
		if err := rows.Scan(&conv.ID, &conv.IsGroup, &conv.GroupName, &conv.GroupAdmin, &conv.GroupAvatar, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range convs {
		participants, err := r.participants(ctx, convs[i].ID)
		if err != nil {
			return nil, err
		}
		convs[i].Participants = participants
	}
	return convs, nil
}

func (r *conversationRepository) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2
		)
	`, conversationID, userID).Scan(&exists)
	return exists, err
}

func (r *conversationRepository) ParticipantIDs(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id FROM conversation_participants WHERE conversation_id = $1
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("participant ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *conversationRepository) Touch(ctx context.Context, conversationID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE conversations SET updated_at = NOW() WHERE id = $1`, conversationID)
	return err
}

func (r *conversationRepository) DeleteWithMessages(ctx context.Context, conversationID uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = $1`, conversationID); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversation_participants WHERE conversation_id = $1`, conversationID); err != nil {
		return fmt.Errorf("delete participants: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, conversationID); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return tx.Commit()
}

func (r *conversationRepository) participants(ctx context.Context, conversationID uuid.UUID) ([]domain.Profile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.avatar_url
		FROM users u
		JOIN conversation_participants cp ON cp.user_id = u.id
		WHERE cp.conversation_id = $1
		ORDER BY u.username
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("participants: %w", err)
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		var p domain.Profile
		if err := rows.Scan(&p.ID, &p.Username, &p.AvatarURL); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func orderPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() < b.String() {
		return a, b
	}
	return b, a
}
