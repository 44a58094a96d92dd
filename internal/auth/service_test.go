package auth

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T, cfg ServiceConfig) (*Service, *InMemoryUserStore) {
	t.Helper()
	store := NewInMemoryUserStore()
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 2 * time.Minute
	}
	cfg.BcryptCost = bcrypt.MinCost
	svc, err := NewService(store, cfg)
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}
	if err := svc.EnsureUser(context.Background(), User{
		Email:    "Admin@Example.com",
		Username: "admin",
		Name:     "Ada",
		Team:     "Growth",
		Company:  "RW",
	}, "secret123"); err != nil {
		t.Fatalf("EnsureUser() error: %v", err)
	}
	return svc, store
}

func TestLoginAndCheckSession(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, ServiceConfig{})

	grant, err := svc.Login(ctx, Credentials{Email: "admin@example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if grant.SessionID == "" {
		t.Fatalf("expected non-empty session id")
	}
	if grant.Profile.Email != "admin@example.com" || grant.Profile.Team != "Growth" {
		t.Fatalf("unexpected profile: %+v", grant.Profile)
	}

	ok, err := svc.CheckSession(ctx, grant.SessionID)
	if err != nil || !ok {
		t.Fatalf("expected live session, got ok=%v err=%v", ok, err)
	}
	ok, err = svc.CheckSession(ctx, "forged")
	if err != nil || ok {
		t.Fatalf("expected unknown session to be false without error, got ok=%v err=%v", ok, err)
	}
}

func TestLoginByUsuario(t *testing.T) {
	svc, _ := newTestService(t, ServiceConfig{})

	if _, err := svc.Login(context.Background(), Credentials{Usuario: "admin", Password: "secret123"}); err != nil {
		t.Fatalf("Login() by usuario error: %v", err)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	svc, _ := newTestService(t, ServiceConfig{})

	for _, creds := range []Credentials{
		{Email: "admin@example.com", Password: "badpass"},
		{Email: "nobody@example.com", Password: "secret123"},
	} {
		_, err := svc.Login(context.Background(), creds)
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials for %q, got %v", creds.Login(), err)
		}
		var rejected *RejectedError
		if !errors.As(err, &rejected) || rejected.Reason == "" {
			t.Fatalf("expected a rejection reason, got %v", err)
		}
	}
}

func TestExpiredSessionIsPurged(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, ServiceConfig{SessionTTL: time.Second})

	fakeNow := time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC)
	svc.nowFunc = func() time.Time { return fakeNow }
	grant, err := svc.Login(ctx, Credentials{Email: "admin@example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}

	svc.nowFunc = func() time.Time { return fakeNow.Add(2 * time.Second) }
	if _, err := svc.ValidateToken(ctx, grant.SessionID); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
	if n := len(svc.ListSessions(ctx)); n != 0 {
		t.Fatalf("expected expired session purged, got %d", n)
	}
}

func TestRefreshExtendsExpiry(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, ServiceConfig{SessionTTL: time.Minute})

	fakeNow := time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC)
	svc.nowFunc = func() time.Time { return fakeNow }
	grant, _ := svc.Login(ctx, Credentials{Email: "admin@example.com", Password: "secret123"})

	svc.nowFunc = func() time.Time { return fakeNow.Add(50 * time.Second) }
	exp, err := svc.Refresh(ctx, grant.SessionID)
	if err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if want := fakeNow.Add(110 * time.Second); !exp.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, exp)
	}

	svc.nowFunc = func() time.Time { return fakeNow.Add(100 * time.Second) }
	if ok, _ := svc.CheckSession(ctx, grant.SessionID); !ok {
		t.Fatalf("expected refreshed session to outlive the original TTL")
	}
	if _, err := svc.Refresh(ctx, "forged"); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession refreshing unknown session, got %v", err)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, ServiceConfig{})

	grant, _ := svc.Login(ctx, Credentials{Email: "admin@example.com", Password: "secret123"})
	if err := svc.Logout(ctx, grant.SessionID); err != nil {
		t.Fatalf("Logout() error: %v", err)
	}
	if ok, _ := svc.CheckSession(ctx, grant.SessionID); ok {
		t.Fatalf("expected session revoked")
	}
	if err := svc.Logout(ctx, grant.SessionID); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession on second logout, got %v", err)
	}
}

func TestEnsureUserKeepsExistingAccount(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, ServiceConfig{})

	if err := svc.EnsureUser(ctx, User{Email: "admin@example.com"}, "another-password"); err != nil {
		t.Fatalf("EnsureUser() error: %v", err)
	}
	u, err := store.GetByLogin(ctx, "admin@example.com")
	if err != nil {
		t.Fatalf("GetByLogin() error: %v", err)
	}
	if !svc.VerifyPassword("secret123", u.PasswordHash) {
		t.Fatalf("expected original password to survive bootstrap")
	}
}

func TestSessionStatePersistsToFile(t *testing.T) {
	ctx := context.Background()
	stateFile := filepath.Join(t.TempDir(), "sessions.json")
	svc, store := newTestService(t, ServiceConfig{SessionStateFile: stateFile})

	grant, err := svc.Login(ctx, Credentials{Email: "admin@example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}

	b, err := os.ReadFile(stateFile)
	if err != nil {
		t.Fatalf("read state file: %v", err)
	}
	var persisted map[string]Session
	if err := json.Unmarshal(b, &persisted); err != nil {
		t.Fatalf("decode state file: %v", err)
	}
	if _, ok := persisted[grant.SessionID]; !ok {
		t.Fatalf("expected session in state file")
	}

	restarted, err := NewService(store, ServiceConfig{SessionTTL: time.Minute, SessionStateFile: stateFile})
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}
	if err := restarted.LoadSessionState(ctx); err != nil {
		t.Fatalf("LoadSessionState() error: %v", err)
	}
	if ok, _ := restarted.CheckSession(ctx, grant.SessionID); !ok {
		t.Fatalf("expected session to survive restart")
	}
	if views := restarted.ListSessionViews(ctx); len(views) != 1 || views[0].Email != "admin@example.com" {
		t.Fatalf("unexpected session views: %+v", views)
	}
}

type failingSessionStore struct{}

func (failingSessionStore) Load(context.Context) (map[string]Session, error) {
	return map[string]Session{}, nil
}

func (failingSessionStore) Save(context.Context, map[string]Session) error {
	return errors.New("db down")
}

func TestLoginRollsBackWhenPersistFails(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, ServiceConfig{SessionStore: failingSessionStore{}})

	if _, err := svc.Login(ctx, Credentials{Email: "admin@example.com", Password: "secret123"}); err == nil {
		t.Fatalf("expected persist error")
	}
	if n := len(svc.ListSessions(ctx)); n != 0 {
		t.Fatalf("expected no sessions after failed persist, got %d", n)
	}
}
