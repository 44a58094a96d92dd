package apiclient

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"redwhite/dashboard-bff/internal/kv"
)

const (
	CookieNamespace = "cookies"
	jarKey          = "jar"
)

type storedCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Expires time.Time `json:"expires,omitempty"`
}

// Jar is an http.CookieJar for a single backend origin whose contents live
// in a kv.Store, so a session survives process restarts. Domain and path
// scoping are ignored: every cookie the backend sets is sent back to it.
type Jar struct {
	store   kv.Store
	logger  *slog.Logger
	nowFunc func() time.Time

	mu sync.Mutex
}

func NewJar(store kv.Store, logger *slog.Logger) *Jar {
	if logger == nil {
		logger = slog.Default()
	}
	return &Jar{
		store:   kv.Namespace(store, CookieNamespace),
		logger:  logger,
		nowFunc: time.Now,
	}
}

func (j *Jar) SetCookies(_ *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	ctx := context.Background()
	current := j.loadLocked(ctx)
	now := j.nowFunc()
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		expired := c.MaxAge < 0 || (!c.Expires.IsZero() && !c.Expires.After(now))
		if expired {
			delete(current, c.Name)
			continue
		}
		sc := storedCookie{Name: c.Name, Value: c.Value}
		switch {
		case c.MaxAge > 0:
			sc.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		case !c.Expires.IsZero():
			sc.Expires = c.Expires
		}
		current[c.Name] = sc
	}
	j.saveLocked(ctx, current)
}

func (j *Jar) Cookies(_ *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	current := j.loadLocked(context.Background())
	now := j.nowFunc()
	out := make([]*http.Cookie, 0, len(current))
	for _, sc := range current {
		if !sc.Expires.IsZero() && !sc.Expires.After(now) {
			continue
		}
		out = append(out, &http.Cookie{Name: sc.Name, Value: sc.Value})
	}
	return out
}

// Value returns the live value of the named cookie, or "".
func (j *Jar) Value(name string) string {
	for _, c := range j.Cookies(nil) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func (j *Jar) Clear(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.store.Delete(ctx, jarKey)
}

// loadLocked treats an unreadable jar as empty.
func (j *Jar) loadLocked(ctx context.Context) map[string]storedCookie {
	var list []storedCookie
	if err := kv.GetJSON(ctx, j.store, jarKey, &list); err != nil && !errors.Is(err, kv.ErrNotFound) {
		j.logger.Warn("cookie jar unreadable, starting empty", "error", err)
	}
	out := make(map[string]storedCookie, len(list))
	for _, sc := range list {
		out[sc.Name] = sc
	}
	return out
}

func (j *Jar) saveLocked(ctx context.Context, cookies map[string]storedCookie) {
	if len(cookies) == 0 {
		if err := j.store.Delete(ctx, jarKey); err != nil {
			j.logger.Warn("cookie jar clear failed", "error", err)
		}
		return
	}
	list := make([]storedCookie, 0, len(cookies))
	for _, sc := range cookies {
		list = append(list, sc)
	}
	if err := kv.SetJSON(ctx, j.store, jarKey, list); err != nil {
		j.logger.Warn("cookie jar write failed", "error", err)
	}
}
