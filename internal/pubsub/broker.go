package pubsub

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const defaultBufferSize = 64

// Overflow decides what Publish does when a subscriber's buffer is full.
type Overflow int

const (
	// DropNewest discards the event being published.
	DropNewest Overflow = iota
	// DropOldest discards the oldest queued event to make room, so a slow
	// subscriber always ends up holding the most recent state.
	DropOldest
)

// Option configures a Broker.
type Option func(*options)

type options struct {
	bufferSize int
	overflow   Overflow
	now        func() time.Time
}

// WithBufferSize sets the per-subscriber channel capacity. Values below 1 are raised to 1.
func WithBufferSize(n int) Option {
	return func(o *options) {
		o.bufferSize = max(n, 1)
	}
}

// WithOverflow sets the policy applied when a subscriber falls behind.
func WithOverflow(policy Overflow) Option {
	return func(o *options) {
		o.overflow = policy
	}
}

// WithClock replaces time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Broker fans events out to any number of subscribers without ever blocking the publisher.
type Broker[T any] struct {
	opts    options
	mu      sync.Mutex
	subs    map[chan Event[T]]struct{}
	closed  bool
	dropped atomic.Int64
}

// NewBroker creates a broker. Defaults: 64-event buffers, DropNewest.
func NewBroker[T any](opts ...Option) *Broker[T] {
	o := options{bufferSize: defaultBufferSize, overflow: DropNewest, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Broker[T]{
		opts: o,
		subs: make(map[chan Event[T]]struct{}),
	}
}

// Subscribe returns a channel that receives every event published after the call.
// The channel is closed when ctx is done or the broker is closed.
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan Event[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan Event[T])
		close(ch)
		return ch
	}

	sub := make(chan Event[T], b.opts.bufferSize)
	b.subs[sub] = struct{}{}

	go func() {
		<-ctx.Done()
		b.unsubscribe(sub)
	}()

	return sub
}

func (b *Broker[T]) unsubscribe(sub chan Event[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub)
}

// Publish delivers an event to all subscribers, applying the overflow policy
// to any whose buffer is full.
func (b *Broker[T]) Publish(eventType EventType, payload T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	event := Event[T]{
		Type:      eventType,
		Payload:   payload,
		Timestamp: b.opts.now(),
	}
	for sub := range b.subs {
		b.deliver(sub, event)
	}
}

// deliver must be called with b.mu held. Holding the lock makes this the only
// sender on sub, so after one eviction the retry cannot fail.
func (b *Broker[T]) deliver(sub chan Event[T], event Event[T]) {
	select {
	case sub <- event:
		return
	default:
	}

	b.dropped.Add(1)
	if b.opts.overflow != DropOldest {
		return
	}
	select {
	case <-sub:
	default:
	}
	select {
	case sub <- event:
	default:
	}
}

// Dropped returns how many events were discarded because a subscriber fell behind.
func (b *Broker[T]) Dropped() int64 {
	return b.dropped.Load()
}

// Close closes every subscriber channel. Later Publish calls are no-ops and later
// Subscribe calls return a closed channel. Close is idempotent.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub)
	}
	b.subs = nil
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker[T]) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
