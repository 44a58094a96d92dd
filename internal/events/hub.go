// Package events fans broadcast payloads out to Server-Sent Events
// subscribers. Delivery is best-effort: a subscriber whose buffer is full
// misses the message rather than stalling the publisher.
package events

import (
	"context"
	"log/slog"
	"sync"

	"redwhite/dashboard-bff/internal/observability"
)

const DefaultBuffer = 16

// Broadcaster accepts a payload for every connected subscriber and reports
// how many subscribers it was offered to.
type Broadcaster interface {
	Broadcast(ctx context.Context, payload []byte) (int, error)
}

type Hub struct {
	buffer int
	logger *slog.Logger

	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		buffer: buffer,
		logger: logger,
		subs:   make(map[*Subscription]struct{}),
	}
}

type Subscription struct {
	hub  *Hub
	ch   chan []byte
	once sync.Once
}

// C yields payloads until the subscription is closed.
func (s *Subscription) C() <-chan []byte {
	return s.ch
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		close(s.ch)
		s.hub.mu.Unlock()
		observability.SSESubscribers.Dec()
	})
}

func (h *Hub) Subscribe() *Subscription {
	s := &Subscription{hub: h, ch: make(chan []byte, h.buffer)}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	observability.SSESubscribers.Inc()
	return s
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish offers payload to every local subscriber.
func (h *Hub) Publish(payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		select {
		case s.ch <- payload:
		default:
			h.logger.Debug("sse subscriber too slow, dropping event")
		}
	}
	return len(h.subs)
}

func (h *Hub) Broadcast(_ context.Context, payload []byte) (int, error) {
	return h.Publish(payload), nil
}
