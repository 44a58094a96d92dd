// Package timer implements a stopwatch whose state lives in a kv.Store so it
// survives restarts. Elapsed time is always recomputed from the persisted
// start marker; nothing counts ticks.
package timer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"redwhite/dashboard-bff/internal/kv"
)

const (
	Namespace = "timer"

	keyStartedAt   = "started_at_ms"
	keyAccumulated = "accumulated_s"
)

type State struct {
	StartedAt   *time.Time
	Accumulated time.Duration
}

func (s State) Running() bool {
	return s.StartedAt != nil
}

type Timer struct {
	store   kv.Store
	nowFunc func() time.Time

	mu sync.Mutex
}

// New scopes store under the timer namespace.
func New(store kv.Store) *Timer {
	return &Timer{
		store:   kv.Namespace(store, Namespace),
		nowFunc: time.Now,
	}
}

func (t *Timer) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, err := t.load(ctx)
	if err != nil {
		return err
	}
	if st.Running() {
		return nil
	}
	if err := kv.SetInt64(ctx, t.store, keyStartedAt, t.nowFunc().UnixMilli()); err != nil {
		return fmt.Errorf("persist start marker: %w", err)
	}
	return nil
}

func (t *Timer) Pause(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, err := t.load(ctx)
	if err != nil {
		return err
	}
	if !st.Running() {
		return nil
	}
	// Rounded so repeated pauses stay within half a second of real time.
	total := (st.Accumulated + sinceMarker(*st.StartedAt, t.nowFunc())).Round(time.Second)
	if err := kv.SetInt64(ctx, t.store, keyAccumulated, int64(total/time.Second)); err != nil {
		return fmt.Errorf("persist accumulated time: %w", err)
	}
	if err := t.store.Delete(ctx, keyStartedAt); err != nil {
		return fmt.Errorf("clear start marker: %w", err)
	}
	return nil
}

// Stop is a full reset, unlike Pause.
func (t *Timer) Stop(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.store.Delete(ctx, keyStartedAt); err != nil {
		return fmt.Errorf("clear start marker: %w", err)
	}
	if err := kv.SetInt64(ctx, t.store, keyAccumulated, 0); err != nil {
		return fmt.Errorf("reset accumulated time: %w", err)
	}
	return nil
}

func (t *Timer) State(ctx context.Context) (State, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load(ctx)
}

func (t *Timer) Elapsed(ctx context.Context) (time.Duration, error) {
	st, err := t.State(ctx)
	if err != nil {
		return 0, err
	}
	return st.ElapsedAt(t.nowFunc()), nil
}

// Display returns the elapsed time as HH:MM:SS.
func (t *Timer) Display(ctx context.Context) (string, error) {
	d, err := t.Elapsed(ctx)
	if err != nil {
		return "", err
	}
	return Format(d), nil
}

// Watch calls fn immediately and then on every tick of every until ctx is
// done. Each call re-reads the persisted state.
func (t *Timer) Watch(ctx context.Context, every time.Duration, fn func(string)) error {
	if every <= 0 {
		every = time.Second
	}
	emit := func() error {
		s, err := t.Display(ctx)
		if err != nil {
			return err
		}
		fn(s)
		return nil
	}
	if err := emit(); err != nil {
		return err
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := emit(); err != nil {
				return err
			}
		}
	}
}

func (s State) ElapsedAt(now time.Time) time.Duration {
	if s.StartedAt == nil {
		return s.Accumulated
	}
	return s.Accumulated + sinceMarker(*s.StartedAt, now)
}

func (t *Timer) load(ctx context.Context) (State, error) {
	var st State

	acc, ok, err := t.readInt(ctx, keyAccumulated)
	if err != nil {
		return State{}, fmt.Errorf("read accumulated time: %w", err)
	}
	if ok && acc > 0 {
		st.Accumulated = time.Duration(acc) * time.Second
	}

	startMs, ok, err := t.readInt(ctx, keyStartedAt)
	if err != nil {
		return State{}, fmt.Errorf("read start marker: %w", err)
	}
	if ok {
		started := time.UnixMilli(startMs)
		st.StartedAt = &started
	}
	return st, nil
}

// readInt treats an unparsable value like an absent one.
func (t *Timer) readInt(ctx context.Context, key string) (int64, bool, error) {
	raw, err := t.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return n, true, nil
}

// sinceMarker clamps clock skew (a marker in the future) to zero.
func sinceMarker(start, now time.Time) time.Duration {
	d := now.Sub(start)
	if d < 0 {
		return 0
	}
	return d
}

func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
