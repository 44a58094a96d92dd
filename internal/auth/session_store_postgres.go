package auth

import (
	"context"
	"database/sql"
	"fmt"
)

type SessionStore interface {
	Load(ctx context.Context) (map[string]Session, error)
	Save(ctx context.Context, sessions map[string]Session) error
}

type PostgresSessionStore struct {
	db *sql.DB
}

func NewPostgresSessionStore(db *sql.DB) (*PostgresSessionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &PostgresSessionStore{db: db}, nil
}

func (s *PostgresSessionStore) Load(ctx context.Context) (map[string]Session, error) {
	const q = `
SELECT token, session_id, user_id, email, created_at, expires_at
FROM auth_sessions`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Session)
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.Token, &sess.ID, &sess.UserID, &sess.Email, &sess.CreatedAt, &sess.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out[sess.Token] = sess
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// Save replaces the whole table with sessions in one transaction.
func (s *PostgresSessionStore) Save(ctx context.Context, sessions map[string]Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM auth_sessions`); err != nil {
		return fmt.Errorf("clear sessions: %w", err)
	}

	const q = `
INSERT INTO auth_sessions (token, session_id, user_id, email, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	for token, sess := range sessions {
		if _, err := tx.ExecContext(ctx, q, token, sess.ID, sess.UserID, sess.Email, sess.CreatedAt, sess.ExpiresAt); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session tx: %w", err)
	}
	return nil
}
