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

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, username, email, password_hash, avatar_url, is_verified,
	verification_token, reset_token, reset_token_expires, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, avatar_url, verification_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`, u.ID, u.Username, u.Email, u.PasswordHash, u.AvatarURL, u.VerificationToken)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *userRepository) GetByResetToken(ctx context.Context, token string) (domain.User, error) {
	return r.getOne(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE reset_token = $1 AND reset_token_expires > NOW()
	`, token)
}

func (r *userRepository) GetByVerificationToken(ctx context.Context, token string) (domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE verification_token = $1`, token)
}

func (r *userRepository) ListOthers(ctx context.Context, selfID uuid.UUID) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE id != $1 ORDER BY username
	`, selfID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *userRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET password_hash = $2, reset_token = NULL, reset_token_expires = NULL, updated_at = NOW()
		WHERE id = $1
	`, id, passwordHash)
	return err
}

func (r *userRepository) SetResetToken(ctx context.Context, id uuid.UUID, token string, expires time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET reset_token = $2, reset_token_expires = $3, updated_at = NOW() WHERE id = $1
	`, id, token, expires)
	return err
}

func (r *userRepository) MarkVerified(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET is_verified = TRUE, verification_token = NULL, updated_at = NOW() WHERE id = $1
	`, id)
	return err
}

func (r *userRepository) getOne(ctx context.Context, query string, arg any) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, query, arg)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return domain.User{}, drift_errors.ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.AvatarURL, &u.IsVerified,
		&u.VerificationToken, &u.ResetToken, &u.ResetTokenExpires, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}
