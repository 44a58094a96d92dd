package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, s *Subscription) string {
	t.Helper()
	select {
	case msg := <-s.C():
		return string(msg)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
		return ""
	}
}

func TestHubFanOut(t *testing.T) {
	hub := NewHub(4, nil)
	a := hub.Subscribe()
	b := hub.Subscribe()
	defer a.Close()
	defer b.Close()

	n, err := hub.Broadcast(context.Background(), []byte(`{"type":"refresh"}`))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, `{"type":"refresh"}`, receive(t, a))
	assert.Equal(t, `{"type":"refresh"}`, receive(t, b))
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewHub(1, nil)
	s := hub.Subscribe()
	defer s.Close()

	hub.Publish([]byte("first"))
	hub.Publish([]byte("second"))

	assert.Equal(t, "first", receive(t, s))
	select {
	case msg := <-s.C():
		t.Fatalf("expected second event dropped, got %q", msg)
	default:
	}
}

func TestSubscriptionClose(t *testing.T) {
	hub := NewHub(1, nil)
	s := hub.Subscribe()
	assert.Equal(t, 1, hub.Count())

	s.Close()
	s.Close()
	assert.Equal(t, 0, hub.Count())
	_, open := <-s.C()
	assert.False(t, open)
	assert.Equal(t, 0, hub.Publish([]byte("x")))
}

func TestRedisBridgeDeliversAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hubA := NewHub(4, nil)
	hubB := NewHub(4, nil)
	bridgeA := NewRedisBridge(client, "test:events", hubA, nil)
	bridgeB := NewRedisBridge(client, "test:events", hubB, nil)
	done := make(chan error, 2)
	go func() { done <- bridgeA.Run(ctx) }()
	go func() { done <- bridgeB.Run(ctx) }()

	require.Eventually(t, func() bool {
		return mr.PubSubNumSub("test:events")["test:events"] == 2
	}, 2*time.Second, 10*time.Millisecond)

	sub := hubB.Subscribe()
	defer sub.Close()

	n, err := bridgeA.Broadcast(ctx, []byte(`{"msg":"hola"}`))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, `{"msg":"hola"}`, receive(t, sub))

	cancel()
	for i := 0; i < 2; i++ {
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatalf("bridge did not stop")
		}
	}
}
