package experiments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockPG(t *testing.T) (*PGService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	svc, err := NewPGService(db)
	if err != nil {
		t.Fatalf("NewPGService() error: %v", err)
	}
	svc.nowFunc = func() time.Time { return time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC) }
	return svc, mock
}

func TestPGServiceCreate(t *testing.T) {
	svc, mock := newMockPG(t)
	now := time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO experiments").
		WithArgs(sqlmock.AnyArg(), "Pricing A/B", "activo", now, now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	e, err := svc.Create(context.Background(), Input{Nombre: "Pricing A/B", Estado: "activo"})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if e.ID == "" {
		t.Fatalf("expected generated id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestPGServiceList(t *testing.T) {
	svc, mock := newMockPG(t)
	now := time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "nombre", "estado", "created_at", "updated_at"}).
		AddRow("e1", "Pricing A/B", "activo", now, now).
		AddRow("e2", "Hero banner", "pendiente", now.Add(time.Minute), now.Add(time.Minute))
	mock.ExpectQuery("SELECT id, nombre, estado, created_at, updated_at FROM experiments ORDER BY").
		WillReturnRows(rows)

	items, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(items) != 2 || items[1].Nombre != "Hero banner" {
		t.Fatalf("unexpected items: %+v", items)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestPGServiceUpdateMissing(t *testing.T) {
	svc, mock := newMockPG(t)

	mock.ExpectExec("UPDATE experiments").
		WithArgs("missing", "x", "pendiente", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if _, err := svc.Update(context.Background(), "missing", Input{Nombre: "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestPGServiceDelete(t *testing.T) {
	svc, mock := newMockPG(t)

	mock.ExpectExec("DELETE FROM experiments WHERE id = \\$1").
		WithArgs("e1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := svc.Delete(context.Background(), "e1"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if err := svc.Delete(context.Background(), " "); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for blank id, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestPGServiceEnsureSeed(t *testing.T) {
	svc, mock := newMockPG(t)

	mock.ExpectExec("INSERT INTO experiments .* WHERE NOT EXISTS").
		WithArgs(sqlmock.AnyArg(), "Pricing A/B", "activo", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := svc.EnsureSeed(context.Background()); err != nil {
		t.Fatalf("EnsureSeed() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}
