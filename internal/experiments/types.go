package experiments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	ErrNotFound     = errors.New("experiment not found")
	ErrInvalidInput = errors.New("invalid experiment input")
)

const (
	EstadoActivo     = "activo"
	EstadoPendiente  = "pendiente"
	EstadoInactivo   = "inactivo"
	EstadoCompletado = "completado"

	maxNombreLen = 120
)

var allowedEstados = map[string]struct{}{
	EstadoActivo:     {},
	EstadoPendiente:  {},
	EstadoInactivo:   {},
	EstadoCompletado: {},
}

type Experiment struct {
	ID        string    `json:"id"`
	Nombre    string    `json:"nombre"`
	Estado    string    `json:"estado"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Input is the writable part of an experiment. An empty Estado means
// pendiente.
type Input struct {
	Nombre string `json:"nombre"`
	Estado string `json:"estado"`
}

type Store interface {
	List(ctx context.Context) ([]Experiment, error)
	Get(ctx context.Context, id string) (Experiment, error)
	Create(ctx context.Context, in Input) (Experiment, error)
	Update(ctx context.Context, id string, in Input) (Experiment, error)
	Delete(ctx context.Context, id string) error
	EnsureSeed(ctx context.Context) error
}

// Seed is created in an empty store.
var Seed = Input{Nombre: "Pricing A/B", Estado: EstadoActivo}

func normalize(in Input) (Input, error) {
	in.Nombre = strings.TrimSpace(in.Nombre)
	in.Estado = strings.ToLower(strings.TrimSpace(in.Estado))
	if in.Nombre == "" {
		return Input{}, fmt.Errorf("%w: nombre is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(in.Nombre) > maxNombreLen {
		return Input{}, fmt.Errorf("%w: nombre must be at most %d characters", ErrInvalidInput, maxNombreLen)
	}
	if in.Estado == "" {
		in.Estado = EstadoPendiente
	}
	if _, ok := allowedEstados[in.Estado]; !ok {
		return Input{}, fmt.Errorf("%w: estado must be activo, pendiente, inactivo, or completado", ErrInvalidInput)
	}
	return in, nil
}
