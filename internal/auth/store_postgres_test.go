package auth

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPostgresUserStoreGetByLogin(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()

	store, err := NewPostgresUserStore(db)
	if err != nil {
		t.Fatalf("NewPostgresUserStore() error: %v", err)
	}

	rows := sqlmock.NewRows([]string{"id", "email", "username", "name", "team", "company", "password_hash", "roles"}).
		AddRow("u1", "admin@example.com", "admin", "Ada", nil, "RW", "hash", []byte(`["admin"]`))
	mock.ExpectQuery("SELECT id, email, username, name, team, company, password_hash, roles FROM auth_users").
		WithArgs("admin@example.com").
		WillReturnRows(rows)

	u, err := store.GetByLogin(context.Background(), "admin@example.com")
	if err != nil {
		t.Fatalf("GetByLogin() error: %v", err)
	}
	if u.ID != "u1" || u.Team != "" || u.Company != "RW" || len(u.Roles) != 1 {
		t.Fatalf("unexpected user: %+v", u)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestPostgresUserStoreGetByLoginNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()

	store, err := NewPostgresUserStore(db)
	if err != nil {
		t.Fatalf("NewPostgresUserStore() error: %v", err)
	}

	mock.ExpectQuery("SELECT id, email, username, name, team, company, password_hash, roles FROM auth_users").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err = store.GetByLogin(context.Background(), "missing")
	if err != ErrUserNotFound {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestPostgresUserStorePut(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()

	store, err := NewPostgresUserStore(db)
	if err != nil {
		t.Fatalf("NewPostgresUserStore() error: %v", err)
	}

	mock.ExpectExec("INSERT INTO auth_users").
		WithArgs("u1", "admin@example.com", "admin", "Ada", "Growth", "RW", "hash", []byte(`["admin"]`)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.Put(context.Background(), User{
		ID:           "u1",
		Email:        " Admin@Example.com ",
		Username:     "admin",
		Name:         "Ada",
		Team:         "Growth",
		Company:      "RW",
		PasswordHash: "hash",
		Roles:        []string{"admin"},
	}); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestPostgresUserStorePutRejectsIncompleteUser(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()

	store, _ := NewPostgresUserStore(db)
	if err := store.Put(context.Background(), User{ID: "u1", Email: "a@b.com"}); err == nil {
		t.Fatalf("expected error for missing password hash")
	}
}
