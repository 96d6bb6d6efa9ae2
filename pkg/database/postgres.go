package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"driftchat/config"
)

// Open opens a PostgreSQL database using the pgx stdlib driver.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(100)
	db.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// Migrate runs idempotent DDL migrations for the driftchat schema.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id                  UUID         PRIMARY KEY,
			username            VARCHAR(50)  UNIQUE NOT NULL,
			email               VARCHAR(100) UNIQUE NOT NULL,
			password_hash       VARCHAR(255) NOT NULL,
			avatar_url          TEXT         NOT NULL DEFAULT '',
			is_verified         BOOLEAN      NOT NULL DEFAULT FALSE,
			verification_token  VARCHAR(64),
			reset_token         VARCHAR(64),
			reset_token_expires TIMESTAMPTZ,
			created_at          TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			updated_at          TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS conversations (
			id           UUID        PRIMARY KEY,
			is_group     BOOLEAN     NOT NULL DEFAULT FALSE,
			group_name   VARCHAR(100) NOT NULL DEFAULT '',
			group_admin  UUID        REFERENCES users(id),
			group_avatar TEXT        NOT NULL DEFAULT '',
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS conversation_participants (
			conversation_id UUID        NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			user_id         UUID        NOT NULL REFERENCES users(id),
			joined_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (conversation_id, user_id)
		)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id              UUID        PRIMARY KEY,
			conversation_id UUID        NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			sender_id       UUID        NOT NULL REFERENCES users(id),
			receiver_id     UUID        REFERENCES users(id),
			message_type    VARCHAR(10) NOT NULL,
			content         TEXT        NOT NULL DEFAULT '',
			url             TEXT        NOT NULL DEFAULT '',
			thumbnail_url   TEXT        NOT NULL DEFAULT '',
			is_seen         BOOLEAN     NOT NULL DEFAULT FALSE,
			mirror_doc_id   VARCHAR(64) NOT NULL DEFAULT '',
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS call_history (
			id           UUID        PRIMARY KEY,
			initiator_id UUID        NOT NULL REFERENCES users(id),
			receiver_id  UUID        NOT NULL REFERENCES users(id),
			call_type    VARCHAR(10) NOT NULL,
			status       VARCHAR(10) NOT NULL,
			start_time   TIMESTAMPTZ NOT NULL,
			end_time     TIMESTAMPTZ NOT NULL,
			duration_sec BIGINT      NOT NULL DEFAULT 0,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS outbox_events (
			id             UUID        PRIMARY KEY,
			event_type     VARCHAR(50) NOT NULL,
			aggregate_type VARCHAR(50) NOT NULL,
			aggregate_id   VARCHAR(64) NOT NULL,
			payload        JSONB       NOT NULL,
			status         VARCHAR(20) NOT NULL DEFAULT 'PENDING',
			retry_count    INT         NOT NULL DEFAULT 0,
			error          TEXT        NOT NULL DEFAULT '',
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			processed_at   TIMESTAMPTZ
		)`,

		`CREATE INDEX IF NOT EXISTS idx_participants_user ON conversation_participants(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_call_history_parties ON call_history(initiator_id, receiver_id, start_time DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox_events(status, created_at)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
