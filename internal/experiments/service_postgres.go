package experiments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type PGService struct {
	db      *sql.DB
	nowFunc func() time.Time
}

// NewPGService expects the experiments table from the migrations package.
func NewPGService(db *sql.DB) (*PGService, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &PGService{db: db, nowFunc: time.Now}, nil
}

func (s *PGService) EnsureSeed(ctx context.Context) error {
	now := s.nowFunc().UTC()
	const q = `
INSERT INTO experiments (id, nombre, estado, created_at, updated_at)
SELECT $1, $2, $3, $4, $4
WHERE NOT EXISTS (SELECT 1 FROM experiments)`
	if _, err := s.db.ExecContext(ctx, q, uuid.NewString(), Seed.Nombre, Seed.Estado, now); err != nil {
		return fmt.Errorf("seed experiments: %w", err)
	}
	return nil
}

func (s *PGService) Create(ctx context.Context, in Input) (Experiment, error) {
	in, err := normalize(in)
	if err != nil {
		return Experiment{}, err
	}
	now := s.nowFunc().UTC()
	e := Experiment{
		ID:        uuid.NewString(),
		Nombre:    in.Nombre,
		Estado:    in.Estado,
		CreatedAt: now,
		UpdatedAt: now,
	}

	const q = `
INSERT INTO experiments (id, nombre, estado, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.db.ExecContext(ctx, q, e.ID, e.Nombre, e.Estado, e.CreatedAt, e.UpdatedAt); err != nil {
		return Experiment{}, fmt.Errorf("insert experiment: %w", err)
	}
	return e, nil
}

func (s *PGService) List(ctx context.Context) ([]Experiment, error) {
	const q = `
SELECT id, nombre, estado, created_at, updated_at
FROM experiments
ORDER BY created_at ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query experiments: %w", err)
	}
	defer rows.Close()

	out := make([]Experiment, 0)
	for rows.Next() {
		var e Experiment
		if err := rows.Scan(&e.ID, &e.Nombre, &e.Estado, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan experiment: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate experiments: %w", err)
	}
	return out, nil
}

func (s *PGService) Get(ctx context.Context, id string) (Experiment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Experiment{}, ErrNotFound
	}
	const q = `
SELECT id, nombre, estado, created_at, updated_at
FROM experiments
WHERE id = $1`
	var e Experiment
	if err := s.db.QueryRowContext(ctx, q, id).Scan(&e.ID, &e.Nombre, &e.Estado, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Experiment{}, ErrNotFound
		}
		return Experiment{}, fmt.Errorf("get experiment: %w", err)
	}
	return e, nil
}

func (s *PGService) Update(ctx context.Context, id string, in Input) (Experiment, error) {
	in, err := normalize(in)
	if err != nil {
		return Experiment{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Experiment{}, ErrNotFound
	}

	const q = `
UPDATE experiments
SET nombre = $2,
	estado = $3,
	updated_at = $4
WHERE id = $1`
	res, err := s.db.ExecContext(ctx, q, id, in.Nombre, in.Estado, s.nowFunc().UTC())
	if err != nil {
		return Experiment{}, fmt.Errorf("update experiment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Experiment{}, fmt.Errorf("read update affected rows: %w", err)
	}
	if affected == 0 {
		return Experiment{}, ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *PGService) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM experiments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete experiment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read delete affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
