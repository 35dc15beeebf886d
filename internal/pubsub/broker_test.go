package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func receive[T any](t *testing.T, ch <-chan Event[T]) Event[T] {
	t.Helper()
	select {
	case event, ok := <-ch:
		require.True(t, ok, "channel closed")
		return event
	case <-time.After(100 * time.Millisecond):
		require.Fail(t, "timeout waiting for event")
		return Event[T]{}
	}
}

func drain[T any](ch <-chan Event[T]) []T {
	var payloads []T
	for {
		select {
		case event := <-ch:
			payloads = append(payloads, event.Payload)
		default:
			return payloads
		}
	}
}

func TestBroker_Subscribe(t *testing.T) {
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	broker := NewBroker[string](WithClock(func() time.Time { return fixed }))
	defer broker.Close()

	ch := broker.Subscribe(context.Background())
	broker.Publish(UpdatedEvent, "hello")

	event := receive(t, ch)
	require.Equal(t, "hello", event.Payload)
	require.Equal(t, UpdatedEvent, event.Type)
	require.Equal(t, fixed, event.Timestamp)
}

func TestBroker_FanOut(t *testing.T) {
	broker := NewBroker[int]()
	defer broker.Close()

	ctx := context.Background()
	subs := []<-chan Event[int]{broker.Subscribe(ctx), broker.Subscribe(ctx), broker.Subscribe(ctx)}
	require.Equal(t, 3, broker.SubscriberCount())

	broker.Publish(ErrorEvent, 42)

	for i, ch := range subs {
		event := receive(t, ch)
		require.Equal(t, 42, event.Payload, "subscriber %d", i)
		require.Equal(t, ErrorEvent, event.Type, "subscriber %d", i)
	}
}

func TestBroker_OnlyLaterEvents(t *testing.T) {
	broker := NewBroker[int]()
	defer broker.Close()

	broker.Publish(UpdatedEvent, 1)
	ch := broker.Subscribe(context.Background())
	broker.Publish(UpdatedEvent, 2)

	require.Equal(t, []int{2}, drain(ch))
}

func TestBroker_ContextCancellation(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := broker.Subscribe(ctx)
	require.Equal(t, 1, broker.SubscriberCount())

	cancel()
	require.Eventually(t, func() bool { return broker.SubscriberCount() == 0 },
		time.Second, 5*time.Millisecond)

	_, ok := <-ch
	require.False(t, ok, "channel should be closed")

	// Publishing to the remaining (empty) set must not panic.
	broker.Publish(UpdatedEvent, "after")
}

func TestBroker_DropNewest(t *testing.T) {
	broker := NewBroker[int](WithBufferSize(2))
	defer broker.Close()

	ch := broker.Subscribe(context.Background())

	done := make(chan struct{})
	go func() {
		for i := 1; i <= 5; i++ {
			broker.Publish(UpdatedEvent, i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		require.Fail(t, "Publish blocked")
	}

	require.Equal(t, []int{1, 2}, drain(ch))
	require.Equal(t, int64(3), broker.Dropped())
}

func TestBroker_DropOldest(t *testing.T) {
	broker := NewBroker[int](WithBufferSize(2), WithOverflow(DropOldest))
	defer broker.Close()

	ch := broker.Subscribe(context.Background())
	for i := 1; i <= 5; i++ {
		broker.Publish(UpdatedEvent, i)
	}

	require.Equal(t, []int{4, 5}, drain(ch))
	require.Equal(t, int64(3), broker.Dropped())
}

func TestBroker_BufferSizeFloor(t *testing.T) {
	broker := NewBroker[int](WithBufferSize(0), WithOverflow(DropOldest))
	defer broker.Close()

	ch := broker.Subscribe(context.Background())
	broker.Publish(UpdatedEvent, 1)
	broker.Publish(UpdatedEvent, 2)

	require.Equal(t, []int{2}, drain(ch))
}

func TestBroker_Close(t *testing.T) {
	broker := NewBroker[string]()

	ctx := context.Background()
	ch1 := broker.Subscribe(ctx)
	ch2 := broker.Subscribe(ctx)

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

	broker.Publish(UpdatedEvent, "ignored")
}

func TestBroker_CancelAfterClose(t *testing.T) {
	broker := NewBroker[string]()
	ctx, cancel := context.WithCancel(context.Background())
	ch := broker.Subscribe(ctx)

	broker.Close()
	cancel()

	// The cleanup goroutine must not close the channel a second time.
	time.Sleep(20 * time.Millisecond)
	_, ok := <-ch
	require.False(t, ok)
}

// A subscriber that never reads ends up with the last min(n, buffer) events
// under DropOldest and the first min(n, buffer) under DropNewest.
func TestBroker_OverflowProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		size := rapid.IntRange(1, 8).Draw(t, "size")
		n := rapid.IntRange(0, 32).Draw(t, "n")
		keepLatest := rapid.Bool().Draw(t, "keepLatest")

		policy := DropNewest
		if keepLatest {
			policy = DropOldest
		}
		broker := NewBroker[int](WithBufferSize(size), WithOverflow(policy))
		defer broker.Close()
		ch := broker.Subscribe(context.Background())

		for i := range n {
			broker.Publish(UpdatedEvent, i)
		}

		kept := min(n, size)
		var want []int
		start := 0
		if keepLatest {
			start = n - kept
		}
		for i := start; i < start+kept; i++ {
			want = append(want, i)
		}

		got := drain(ch)
		if len(want) == 0 {
			require.Empty(t, got)
		} else {
			require.Equal(t, want, got)
		}
		require.Equal(t, int64(n-kept), broker.Dropped())
	})
}
