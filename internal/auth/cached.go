package auth

import (
	"context"
	"log/slog"
	"time"
)

// SessionCache remembers session ids that recently passed a check.
type SessionCache interface {
	Contains(ctx context.Context, sessionID string) (bool, error)
	Add(ctx context.Context, sessionID string) error
	Remove(ctx context.Context, sessionID string) error
}

// CachedAuthenticator short-circuits repeated session checks for the same
// cookie. Only positive results are cached; a denial always goes to the
// authority again.
type CachedAuthenticator struct {
	next   Authenticator
	cache  SessionCache
	logger *slog.Logger
}

func NewCachedAuthenticator(next Authenticator, cache SessionCache, logger *slog.Logger) *CachedAuthenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedAuthenticator{next: next, cache: cache, logger: logger}
}

func (c *CachedAuthenticator) Login(ctx context.Context, creds Credentials) (Grant, error) {
	return c.next.Login(ctx, creds)
}

func (c *CachedAuthenticator) CheckSession(ctx context.Context, sessionID string) (bool, error) {
	hit, err := c.cache.Contains(ctx, sessionID)
	if err != nil {
		c.logger.Warn("session cache read failed", "error", err)
	} else if hit {
		return true, nil
	}

	ok, err := c.next.CheckSession(ctx, sessionID)
	if err != nil || !ok {
		return ok, err
	}
	if err := c.cache.Add(ctx, sessionID); err != nil {
		c.logger.Warn("session cache write failed", "error", err)
	}
	return true, nil
}

func (c *CachedAuthenticator) Logout(ctx context.Context, sessionID string) error {
	if err := c.cache.Remove(ctx, sessionID); err != nil {
		c.logger.Warn("session cache invalidate failed", "error", err)
	}
	return c.next.Logout(ctx, sessionID)
}

func (c *CachedAuthenticator) Refresh(ctx context.Context, sessionID string) (time.Time, error) {
	exp, err := c.next.Refresh(ctx, sessionID)
	if err != nil {
		if rmErr := c.cache.Remove(ctx, sessionID); rmErr != nil {
			c.logger.Warn("session cache invalidate failed", "error", rmErr)
		}
		return time.Time{}, err
	}
	return exp, nil
}
