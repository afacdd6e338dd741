package pubsub

import "context"

// Next blocks until the next event arrives on ch.
// It returns false when ctx is cancelled or the channel is closed.
func Next[T any](ctx context.Context, ch <-chan Event[T]) (Event[T], bool) {
	select {
	case <-ctx.Done():
		return Event[T]{}, false
	case event, ok := <-ch:
		return event, ok
	}
}

// Listener keeps a broker subscription open and hands out events one by one.
type Listener[T any] struct {
	ctx context.Context
	ch  <-chan Event[T]
}

// NewListener subscribes to broker for the lifetime of ctx.
func NewListener[T any](ctx context.Context, broker Subscriber[T]) *Listener[T] {
	return &Listener[T]{
		ctx: ctx,
		ch:  broker.Subscribe(ctx),
	}
}

// Next waits for the next event.
func (l *Listener[T]) Next() (Event[T], bool) {
	return Next(l.ctx, l.ch)
}
