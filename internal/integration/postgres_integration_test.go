package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"

	"redwhite/dashboard-bff/internal/auth"
	"redwhite/dashboard-bff/internal/experiments"
	"redwhite/dashboard-bff/internal/migrations"
)

func openTestPostgres(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping Postgres integration tests")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("sql.Open() error: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	if err := db.Ping(); err != nil {
		t.Fatalf("db.Ping() error: %v", err)
	}
	if err := migrations.Up(db); err != nil {
		t.Fatalf("migrations.Up() error: %v", err)
	}
	return db
}

func TestPostgresMigrationsAreCurrent(t *testing.T) {
	db := openTestPostgres(t)

	status, err := migrations.CurrentStatus(db)
	if err != nil {
		t.Fatalf("CurrentStatus() error: %v", err)
	}
	if status.Dirty || status.Pending || status.Version != status.Latest {
		t.Fatalf("expected schema at latest version, got %+v", status)
	}
}

func TestPostgresAuthUserAndSessionRoundTrip(t *testing.T) {
	db := openTestPostgres(t)
	ctx := context.Background()

	userStore, err := auth.NewPostgresUserStore(db)
	if err != nil {
		t.Fatalf("NewPostgresUserStore() error: %v", err)
	}
	sessionStore, err := auth.NewPostgresSessionStore(db)
	if err != nil {
		t.Fatalf("NewPostgresSessionStore() error: %v", err)
	}

	svc, err := auth.NewService(userStore, auth.ServiceConfig{
		SessionTTL:   time.Minute,
		SessionStore: sessionStore,
		BcryptCost:   4,
	})
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}

	email := fmt.Sprintf("itest_auth_%d@example.com", time.Now().UnixNano())
	if err := svc.EnsureUser(ctx, auth.User{Email: email, Team: "QA"}, "Password123!"); err != nil {
		t.Fatalf("EnsureUser() error: %v", err)
	}
	t.Cleanup(func() {
		_, _ = db.Exec("DELETE FROM auth_sessions WHERE email = $1", email)
		_, _ = db.Exec("DELETE FROM auth_users WHERE email = $1", email)
	})

	grant, err := svc.Login(ctx, auth.Credentials{Email: email, Password: "Password123!"})
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if grant.SessionID == "" || grant.Profile.Team != "QA" {
		t.Fatalf("unexpected grant %+v", grant)
	}

	svc2, err := auth.NewService(userStore, auth.ServiceConfig{
		SessionTTL:   time.Minute,
		SessionStore: sessionStore,
	})
	if err != nil {
		t.Fatalf("NewService() second instance error: %v", err)
	}
	if err := svc2.LoadSessionState(ctx); err != nil {
		t.Fatalf("LoadSessionState() error: %v", err)
	}
	ok, err := svc2.CheckSession(ctx, grant.SessionID)
	if err != nil || !ok {
		t.Fatalf("expected session to survive restart, ok=%v err=%v", ok, err)
	}

	if err := svc2.Logout(ctx, grant.SessionID); err != nil {
		t.Fatalf("Logout() error: %v", err)
	}
	var remaining int
	if err := db.QueryRow("SELECT COUNT(*) FROM auth_sessions WHERE email = $1", email).Scan(&remaining); err != nil {
		t.Fatalf("count sessions: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected session rows to be removed, got %d", remaining)
	}
}

func TestPostgresExperimentsCRUD(t *testing.T) {
	db := openTestPostgres(t)
	ctx := context.Background()

	svc, err := experiments.NewPGService(db)
	if err != nil {
		t.Fatalf("NewPGService() error: %v", err)
	}

	created, err := svc.Create(ctx, experiments.Input{Nombre: fmt.Sprintf("itest_exp_%d", time.Now().UnixNano())})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	t.Cleanup(func() {
		_ = svc.Delete(ctx, created.ID)
	})
	if created.Estado != experiments.EstadoPendiente {
		t.Fatalf("expected default estado pendiente, got %q", created.Estado)
	}

	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Nombre != created.Nombre {
		t.Fatalf("expected nombre %q, got %q", created.Nombre, got.Nombre)
	}

	updated, err := svc.Update(ctx, created.ID, experiments.Input{Nombre: created.Nombre, Estado: experiments.EstadoCompletado})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if updated.Estado != experiments.EstadoCompletado {
		t.Fatalf("expected estado completado, got %q", updated.Estado)
	}

	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := svc.Get(ctx, created.ID); !errors.Is(err, experiments.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
