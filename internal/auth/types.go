package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"redwhite/dashboard-bff/internal/profile"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("invalid session")
	ErrUpstream           = errors.New("authority unavailable")
)

// Credentials is the login form. Either Email or Usuario identifies the user.
type Credentials struct {
	Email    string `json:"email" validate:"omitempty,email"`
	Usuario  string `json:"usuario" validate:"required_without=Email"`
	Password string `json:"password" validate:"required"`
}

// Login returns the identifier to look the user up by.
func (c Credentials) Login() string {
	if c.Email != "" {
		return c.Email
	}
	return c.Usuario
}

// Grant is a successful login: the opaque session id that goes into the
// cookie plus display data for the client.
type Grant struct {
	SessionID string
	ExpiresAt time.Time
	Profile   profile.Profile
}

// Authenticator is the authority the BFF defers credential and session
// decisions to.
type Authenticator interface {
	Login(ctx context.Context, creds Credentials) (Grant, error)
	CheckSession(ctx context.Context, sessionID string) (bool, error)
	Logout(ctx context.Context, sessionID string) error
	Refresh(ctx context.Context, sessionID string) (time.Time, error)
}

// RejectedError carries the authority's reason for refusing a login.
type RejectedError struct {
	Status int
	Reason string
}

func (e *RejectedError) Error() string {
	if e.Reason == "" {
		return ErrInvalidCredentials.Error()
	}
	return fmt.Sprintf("%s: %s", ErrInvalidCredentials, e.Reason)
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrInvalidCredentials
}

type User struct {
	ID           string   `json:"id"`
	Email        string   `json:"email"`
	Username     string   `json:"username,omitempty"`
	Name         string   `json:"name,omitempty"`
	Team         string   `json:"team,omitempty"`
	Company      string   `json:"company,omitempty"`
	PasswordHash string   `json:"password_hash"`
	Roles        []string `json:"roles"`
}

type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionView omits the token.
type SessionView struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
