package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// PostgresUserStore reads auth_users. The table is created by the
// migrations package.
type PostgresUserStore struct {
	db *sql.DB
}

func NewPostgresUserStore(db *sql.DB) (*PostgresUserStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &PostgresUserStore{db: db}, nil
}

func (s *PostgresUserStore) GetByLogin(ctx context.Context, login string) (User, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return User{}, ErrUserNotFound
	}

	var u User
	var username, name, team, company sql.NullString
	var rolesJSON []byte
	const q = `
SELECT id, email, username, name, team, company, password_hash, roles
FROM auth_users
WHERE email = lower($1) OR username = $1
LIMIT 1`
	err := s.db.QueryRowContext(ctx, q, login).Scan(
		&u.ID, &u.Email, &username, &name, &team, &company, &u.PasswordHash, &rolesJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("query auth user: %w", err)
	}
	u.Username, u.Name, u.Team, u.Company = username.String, name.String, team.String, company.String
	if len(rolesJSON) > 0 {
		if err := json.Unmarshal(rolesJSON, &u.Roles); err != nil {
			return User{}, fmt.Errorf("decode roles: %w", err)
		}
	}
	return u, nil
}

func (s *PostgresUserStore) Put(ctx context.Context, user User) error {
	user.Email = normalizeEmail(user.Email)
	if user.ID == "" || user.Email == "" || user.PasswordHash == "" {
		return fmt.Errorf("id, email, and password hash are required")
	}

	rolesJSON, err := json.Marshal(user.Roles)
	if err != nil {
		return fmt.Errorf("encode roles: %w", err)
	}

	const q = `
INSERT INTO auth_users (id, email, username, name, team, company, password_hash, roles, updated_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, NOW())
ON CONFLICT (email) DO UPDATE
SET username = EXCLUDED.username,
	name = EXCLUDED.name,
	team = EXCLUDED.team,
	company = EXCLUDED.company,
	password_hash = EXCLUDED.password_hash,
	roles = EXCLUDED.roles,
	updated_at = NOW()`
	if _, err := s.db.ExecContext(ctx, q,
		user.ID, user.Email, user.Username, user.Name, user.Team, user.Company, user.PasswordHash, rolesJSON,
	); err != nil {
		return fmt.Errorf("upsert auth user: %w", err)
	}
	return nil
}
