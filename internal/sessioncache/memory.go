// Package sessioncache holds short-lived positive session checks so that
// every page load does not hit the authority.
package sessioncache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

type Memory struct {
	ttl     time.Duration
	nowFunc func() time.Time

	mu      sync.RWMutex
	entries map[string]time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		nowFunc: time.Now,
		entries: make(map[string]time.Time),
	}
}

func (m *Memory) Contains(_ context.Context, sessionID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	exp, ok := m.entries[digest(sessionID)]
	return ok && m.nowFunc().Before(exp), nil
}

func (m *Memory) Add(_ context.Context, sessionID string) error {
	if m.ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[digest(sessionID)] = m.nowFunc().Add(m.ttl)
	return nil
}

func (m *Memory) Remove(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, digest(sessionID))
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.nowFunc()
	for k, exp := range m.entries {
		if !now.Before(exp) {
			delete(m.entries, k)
		}
	}
}

// Run evicts expired entries every interval until ctx is done.
func (m *Memory) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.cleanup()
		}
	}
}

// digest keeps raw session ids out of cache keys.
func digest(sessionID string) string {
	sum := sha256.Sum256([]byte(sessionID))
	return hex.EncodeToString(sum[:])
}
