// Package events provides a synchronous, token-based publish/subscribe bus.
//
// Every bus instance hands out its own strictly increasing tokens starting at 1.
// Event names are matched exactly; channel routing ("namespace.", "load.")
// happens one layer up in the facade.
package events

import "sync"

// Callback receives the arguments passed to Trigger, spread positionally.
type Callback func(args ...any)

type subscription struct {
	token    int
	callback Callback
}

// UnlistenResult reports the outcome of Unlisten. Found is false when no
// subscription carried the token; Token is only meaningful when Found is true.
type UnlistenResult struct {
	Token int
	Found bool
}

// Bus is a token-based event bus. The zero value is not usable; call New.
type Bus struct {
	mu     sync.Mutex
	events map[string][]subscription
	order  []string // event names in first-listen order
	token  int
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		events: make(map[string][]subscription),
	}
}

// Listen registers callback for event and returns its token.
func (b *Bus) Listen(event string, callback Callback) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.events[event]; !ok {
		b.order = append(b.order, event)
	}
	b.token++
	b.events[event] = append(b.events[event], subscription{
		token:    b.token,
		callback: callback,
	})
	return b.token
}

// Trigger calls every callback registered for event, in registration order.
// It returns false when the event has no listeners.
//
// Callbacks run against a snapshot of the listener list taken before the first
// call, so a callback that unlistens (itself or a sibling) does not shift the
// iteration.
func (b *Bus) Trigger(event string, args ...any) bool {
	b.mu.Lock()
	subs := b.events[event]
	if len(subs) == 0 {
		b.mu.Unlock()
		return false
	}
	snapshot := make([]subscription, len(subs))
	copy(snapshot, subs)
	b.mu.Unlock()

	for _, sub := range snapshot {
		if sub.callback != nil {
			sub.callback(args...)
		}
	}
	return true
}

// Unlisten removes the first subscription carrying token, scanning events in
// the order they were first listened to.
func (b *Bus) Unlisten(token int) UnlistenResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, event := range b.order {
		subs := b.events[event]
		for i, sub := range subs {
			if sub.token != token {
				continue
			}
			b.events[event] = append(subs[:i:i], subs[i+1:]...)
			return UnlistenResult{Token: token, Found: true}
		}
	}
	return UnlistenResult{}
}

// Count returns the number of listeners registered for event.
func (b *Bus) Count(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events[event])
}

// Events returns the names of events that currently have listeners.
func (b *Bus) Events() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	names := make([]string, 0, len(b.order))
	for _, event := range b.order {
		if len(b.events[event]) > 0 {
			names = append(names, event)
		}
	}
	return names
}
