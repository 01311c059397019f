package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/getpaseo/paseod/internal/logging"
)

func TestMemoryBus_PublishDeliversToMatchingSubscriber(t *testing.T) {
	bus := NewMemoryBus(logging.Default())
	defer bus.Close()

	var mu sync.Mutex
	var received *Event
	done := make(chan struct{})

	sub, err := bus.Subscribe("agent.created", func(ctx context.Context, e *Event) error {
		mu.Lock()
		received = e
		mu.Unlock()
		close(done)
		return nil
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	evt := New("agent.created", "manager", map[string]any{"agent_id": "a1"})
	require.NoError(t, bus.Publish(context.Background(), "agent.created", evt))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, received)
	require.Equal(t, evt.ID, received.ID)
}

func TestMemoryBus_WildcardSubjectMatching(t *testing.T) {
	bus := NewMemoryBus(logging.Default())
	defer bus.Close()

	done := make(chan string, 1)
	sub, err := bus.Subscribe("agent.*.attention", func(ctx context.Context, e *Event) error {
		done <- e.Type
		return nil
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), "agent.abc123.attention", New("needs_attention", "manager", nil)))

	select {
	case typ := <-done:
		require.Equal(t, "needs_attention", typ)
	case <-time.After(time.Second):
		t.Fatal("wildcard subscription was not matched")
	}
}

func TestMemoryBus_UnsubscribeStopsDelivery(t *testing.T) {
	bus := NewMemoryBus(logging.Default())
	defer bus.Close()

	calls := make(chan struct{}, 4)
	sub, err := bus.Subscribe("x", func(ctx context.Context, e *Event) error {
		calls <- struct{}{}
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), "x", New("t", "s", nil)))
	<-calls

	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, bus.Publish(context.Background(), "x", New("t", "s", nil)))

	select {
	case <-calls:
		t.Fatal("handler fired after unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMemoryBus_PublishAfterCloseErrors(t *testing.T) {
	bus := NewMemoryBus(logging.Default())
	bus.Close()

	err := bus.Publish(context.Background(), "x", New("t", "s", nil))
	require.Error(t, err)
}
