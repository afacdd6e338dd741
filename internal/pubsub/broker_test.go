package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBroker_Subscribe(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := broker.Subscribe(ctx)

	delivered := broker.Publish(RegisteredEvent, "App")
	require.Equal(t, 1, delivered)

	select {
	case event := <-ch:
		require.Equal(t, "App", event.Payload)
		require.Equal(t, RegisteredEvent, event.Type)
		require.False(t, event.Timestamp.IsZero())
	case <-time.After(100 * time.Millisecond):
		require.Fail(t, "timeout waiting for event")
	}
}

func TestBroker_MultipleSubscribers(t *testing.T) {
	broker := NewBroker[int]()
	defer broker.Close()

	ctx := context.Background()

	ch1 := broker.Subscribe(ctx)
	ch2 := broker.Subscribe(ctx)
	ch3 := broker.Subscribe(ctx)

	require.Equal(t, 3, broker.SubscriberCount())

	require.Equal(t, 3, broker.Publish(InstantiatedEvent, 42))

	for i, ch := range []<-chan Event[int]{ch1, ch2, ch3} {
		select {
		case event := <-ch:
			require.Equal(t, 42, event.Payload, "subscriber %d", i)
			require.Equal(t, InstantiatedEvent, event.Type, "subscriber %d", i)
		case <-time.After(100 * time.Millisecond):
			require.Fail(t, "timeout waiting for event", "subscriber %d", i)
		}
	}
}

func TestBroker_ContextCancellation(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())

	ch := broker.Subscribe(ctx)
	require.Equal(t, 1, broker.SubscriberCount())

	cancel()
	require.Eventually(t, func() bool {
		return broker.SubscriberCount() == 0
	}, time.Second, 5*time.Millisecond)

	_, ok := <-ch
	require.False(t, ok, "channel should be closed")
}

func TestBroker_NonBlocking(t *testing.T) {
	broker := NewBrokerWithBuffer[int](1)
	defer broker.Close()

	ch := broker.Subscribe(context.Background())

	require.Equal(t, 1, broker.Publish(LoadingEvent, 1))

	done := make(chan int)
	go func() {
		done <- broker.Publish(LoadingEvent, 2) + broker.Publish(LoadingEvent, 3)
	}()

	select {
	case delivered := <-done:
		require.Equal(t, 0, delivered, "full buffer drops events")
	case <-time.After(100 * time.Millisecond):
		require.Fail(t, "Publish blocked")
	}
	require.Equal(t, uint64(2), broker.Dropped())

	event := <-ch
	require.Equal(t, 1, event.Payload)
}

func TestBroker_SubscribeToTypes(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx := context.Background()
	loads := broker.Subscribe(ctx, LoadingEvent, LoadedEvent)
	all := broker.Subscribe(ctx)

	require.Equal(t, 1, broker.Publish(RegisteredEvent, "App"))
	require.Equal(t, 2, broker.Publish(LoadedEvent, "App"))

	event := <-loads
	require.Equal(t, LoadedEvent, event.Type)
	require.Empty(t, loads)

	require.Equal(t, RegisteredEvent, (<-all).Type)
	require.Equal(t, LoadedEvent, (<-all).Type)
	require.Zero(t, broker.Dropped())
}

func TestBroker_Close(t *testing.T) {
	broker := NewBroker[string]()
	ctx := context.Background()

	ch1 := broker.Subscribe(ctx)
	ch2 := broker.Subscribe(ctx)
	require.Equal(t, 2, broker.SubscriberCount())

	broker.Close()
	broker.Close()

	_, ok1 := <-ch1
	_, ok2 := <-ch2
	require.False(t, ok1, "ch1 should be closed")
	require.False(t, ok2, "ch2 should be closed")
	require.Equal(t, 0, broker.SubscriberCount())

	ch3 := broker.Subscribe(ctx)
	_, ok3 := <-ch3
	require.False(t, ok3, "subscribe after close returns a closed channel")

	require.Equal(t, 0, broker.Publish(LoadedEvent, "App"))
}

func TestListener_Next(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	listener := NewListener[string](ctx, broker)

	broker.Publish(LoggedEvent, "first")
	broker.Publish(LoggedEvent, "second")

	event, ok := listener.Next()
	require.True(t, ok)
	require.Equal(t, "first", event.Payload)

	event, ok = listener.Next()
	require.True(t, ok)
	require.Equal(t, "second", event.Payload)

	cancel()
	_, ok = listener.Next()
	require.False(t, ok)
}
