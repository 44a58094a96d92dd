// Package experiments keeps the list of A/B experiments shown on the
// dashboard. Service is the file-backed store; PGService is the Postgres one.
package experiments

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	nowFunc   func() time.Time
	stateFile string

	mu    sync.RWMutex
	items map[string]Experiment
}

// NewService keeps experiments in memory only.
func NewService() *Service {
	return &Service{
		nowFunc: time.Now,
		items:   make(map[string]Experiment),
	}
}

func NewServiceWithFile(stateFile string) (*Service, error) {
	s := &Service{
		nowFunc:   time.Now,
		stateFile: strings.TrimSpace(stateFile),
		items:     make(map[string]Experiment),
	}
	if s.stateFile == "" {
		return nil, fmt.Errorf("state file path is required")
	}
	if err := s.loadState(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) EnsureSeed(ctx context.Context) error {
	s.mu.RLock()
	empty := len(s.items) == 0
	s.mu.RUnlock()
	if !empty {
		return nil
	}
	_, err := s.Create(ctx, Seed)
	return err
}

func (s *Service) Create(_ context.Context, in Input) (Experiment, error) {
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

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[e.ID] = e
	if err := s.persistLocked(); err != nil {
		delete(s.items, e.ID)
		return Experiment{}, err
	}
	return e, nil
}

func (s *Service) List(context.Context) ([]Experiment, error) {
	s.mu.RLock()
	out := make([]Experiment, 0, len(s.items))
	for _, e := range s.items {
		out = append(out, e)
	}
	s.mu.RUnlock()

	sortByCreated(out)
	return out, nil
}

func (s *Service) Get(_ context.Context, id string) (Experiment, error) {
	s.mu.RLock()
	e, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return Experiment{}, ErrNotFound
	}
	return e, nil
}

func (s *Service) Update(_ context.Context, id string, in Input) (Experiment, error) {
	in, err := normalize(in)
	if err != nil {
		return Experiment{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.items[id]
	if !ok {
		return Experiment{}, ErrNotFound
	}
	next := prev
	next.Nombre = in.Nombre
	next.Estado = in.Estado
	next.UpdatedAt = s.nowFunc().UTC()
	s.items[id] = next
	if err := s.persistLocked(); err != nil {
		s.items[id] = prev
		return Experiment{}, err
	}
	return next, nil
}

func (s *Service) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	if err := s.persistLocked(); err != nil {
		s.items[id] = prev
		return err
	}
	return nil
}

func (s *Service) loadState() error {
	b, err := os.ReadFile(s.stateFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read experiments state: %w", err)
	}
	if len(b) == 0 {
		return nil
	}
	var decoded []Experiment
	if err := json.Unmarshal(b, &decoded); err != nil {
		return fmt.Errorf("decode experiments state: %w", err)
	}
	for _, e := range decoded {
		if e.ID == "" {
			continue
		}
		s.items[e.ID] = e
	}
	return nil
}

func (s *Service) persistLocked() error {
	if s.stateFile == "" {
		return nil
	}
	out := make([]Experiment, 0, len(s.items))
	for _, e := range s.items {
		out = append(out, e)
	}
	sortByCreated(out)

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode experiments state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.stateFile), 0o755); err != nil {
		return fmt.Errorf("mkdir experiments state dir: %w", err)
	}
	if err := os.WriteFile(s.stateFile, b, 0o644); err != nil {
		return fmt.Errorf("write experiments state: %w", err)
	}
	return nil
}

func sortByCreated(items []Experiment) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}
