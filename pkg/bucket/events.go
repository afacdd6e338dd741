package bucket

import (
	"context"
	"strconv"
	"strings"

	"github.com/heywhy/bucket/internal/events"
	"github.com/heywhy/bucket/internal/log"
	"github.com/heywhy/bucket/internal/pubsub"
)

// Channel prefixes routing Listen and Unlisten to the registry or loader bus.
const (
	ChannelNamespace = "namespace"
	ChannelLoad      = "load"
)

// Callback receives the arguments of a triggered event.
type Callback = events.Callback

// UnlistenResult reports the outcome of Unlisten. Token echoes the routed
// token when Found is true.
type UnlistenResult struct {
	Token string
	Found bool
}

// Notification is the payload streamed by Events.
//
// Event types: pubsub.RegisteredEvent and pubsub.InstantiatedEvent carry an
// ID (and the Instance for the latter); pubsub.LoadingEvent and
// pubsub.LoadedEvent carry the ID and the source Location.
type Notification struct {
	ID       string
	Location string
	Instance any
}

// Listen subscribes callback to event and returns a token for Unlisten.
//
// "namespace.<event>" subscribes to registry events ("add.<id>",
// "create.<id>") and "load.<event>" to loader events ("beforeload.<id>",
// "afterload.<id>"); the channel is matched case-insensitively and the
// token carries it as a prefix. Any other name goes to the general bus and
// yields a bare numeric token.
func (b *Bucket) Listen(event string, callback Callback) string {
	channel, rest, _ := strings.Cut(event, ".")
	switch strings.ToLower(channel) {
	case ChannelLoad:
		return ChannelLoad + strconv.Itoa(b.loader.Listen(rest, callback))
	case ChannelNamespace:
		return ChannelNamespace + strconv.Itoa(b.registry.Listen(rest, callback))
	default:
		return strconv.Itoa(b.general.Listen(event, callback))
	}
}

// Unlisten removes the subscription behind a token returned by Listen.
func (b *Bucket) Unlisten(token string) UnlistenResult {
	var (
		result events.UnlistenResult
		prefix string
	)
	lower := strings.ToLower(token)
	switch {
	case strings.HasPrefix(lower, ChannelNamespace):
		prefix = token[:len(ChannelNamespace)]
		n, err := strconv.Atoi(token[len(ChannelNamespace):])
		if err != nil {
			return UnlistenResult{}
		}
		result = b.registry.Unlisten(n)
	case strings.HasPrefix(lower, ChannelLoad):
		prefix = token[:len(ChannelLoad)]
		n, err := strconv.Atoi(token[len(ChannelLoad):])
		if err != nil {
			return UnlistenResult{}
		}
		result = b.loader.Unlisten(n)
	default:
		n, err := strconv.Atoi(token)
		if err != nil {
			return UnlistenResult{}
		}
		result = b.general.Unlisten(n)
	}
	if !result.Found {
		return UnlistenResult{}
	}
	return UnlistenResult{Token: prefix + strconv.Itoa(result.Token), Found: true}
}

// Trigger fires event on the general bus. Registry and loader events are
// internal and cannot be triggered from here.
func (b *Bucket) Trigger(event string, args ...any) bool {
	return b.general.Trigger(event, args...)
}

// Events streams registry and loader activity until ctx is done, limited to
// types when any are given. Slow consumers miss events rather than block
// resolution.
func (b *Bucket) Events(ctx context.Context, types ...pubsub.EventType) <-chan pubsub.Event[Notification] {
	return b.broker.Subscribe(ctx, types...)
}

// ComponentRegistered implements registry.Observer.
func (b *Bucket) ComponentRegistered(id string) {
	b.broker.Publish(pubsub.RegisteredEvent, Notification{ID: id})
}

// ComponentCreated implements registry.Observer.
func (b *Bucket) ComponentCreated(id string, instance any) {
	b.broker.Publish(pubsub.InstantiatedEvent, Notification{ID: id, Instance: instance})
}

// SourceLoading implements loader.Observer.
func (b *Bucket) SourceLoading(id, location string) {
	log.Debug(log.CatLoader, "loading source", "id", id, "location", location)
	b.broker.Publish(pubsub.LoadingEvent, Notification{ID: id, Location: location})
}

// SourceLoaded implements loader.Observer.
func (b *Bucket) SourceLoaded(id, location string) {
	b.broker.Publish(pubsub.LoadedEvent, Notification{ID: id, Location: location})
}
