// Package profile caches non-sensitive display attributes of the signed-in
// user. The cache is cosmetic: the session cookie decides whether the user is
// authenticated, never this package.
package profile

import (
	"context"
	"log/slog"

	"redwhite/dashboard-bff/internal/kv"
)

const (
	Namespace = "profile"
	key       = "current"
)

type Profile struct {
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	Team      string `json:"team,omitempty"`
	Company   string `json:"company,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// DisplayName falls back through the available fields.
func (p Profile) DisplayName() string {
	switch {
	case p.Name != "":
		return p.Name
	case p.Email != "":
		return p.Email
	default:
		return "usuario"
	}
}

// Affiliation renders "company / team" with whichever parts are present.
func (p Profile) Affiliation() string {
	switch {
	case p.Company != "" && p.Team != "":
		return p.Company + " / " + p.Team
	case p.Company != "":
		return p.Company
	default:
		return p.Team
	}
}

type Cache struct {
	store  kv.Store
	logger *slog.Logger
}

func NewCache(store kv.Store, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{store: kv.Namespace(store, Namespace), logger: logger}
}

// Save is best-effort: failures are logged and swallowed.
func (c *Cache) Save(ctx context.Context, p Profile) {
	if err := kv.SetJSON(ctx, c.store, key, p); err != nil {
		c.logger.Warn("profile cache write failed", "error", err)
	}
}

// Load reports ok=false for an absent or unreadable profile.
func (c *Cache) Load(ctx context.Context) (Profile, bool) {
	var p Profile
	if err := kv.GetJSON(ctx, c.store, key, &p); err != nil {
		return Profile{}, false
	}
	return p, true
}

func (c *Cache) Clear(ctx context.Context) {
	if err := c.store.Delete(ctx, key); err != nil {
		c.logger.Warn("profile cache clear failed", "error", err)
	}
}
