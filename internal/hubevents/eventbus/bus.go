// Package eventbus fans committed events out to typed subscribers, in the
// same commit order the commit coordinator hands them over (spec §4.6).
package eventbus

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/timjrobinson/hub-monorepo/internal/hubevents/errs"
	"github.com/timjrobinson/hub-monorepo/internal/hubevents/eventlog"
)

// Subscriber processes events on the bus. Unlike the priority-ordered
// dispatch of a generic handler chain, store-event subscribers are called
// in registration order — spec §4.6 requires a subscriber that cares about
// commit order to see every kind of event it's registered for in that
// order, and priority reordering would break that guarantee.
type Subscriber interface {
	// ID returns a unique identifier for this subscriber.
	ID() string
	// Kinds returns the event kinds this subscriber processes.
	Kinds() []eventlog.Kind
	// Handle processes a single event. Returning an error is logged and
	// does not stop the chain, nor does it affect the commit that produced
	// the event — the commit has already durably happened (spec §4.6).
	Handle(ctx context.Context, event eventlog.Event) error
}

// Bus dispatches committed events to registered subscribers.
type Bus struct {
	mu          sync.RWMutex
	subscribers []Subscriber
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{}
}

// Register adds a subscriber to the bus. Subscribers are invoked in
// registration order for any event kind they declare in Kinds().
func (b *Bus) Register(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, s)
}

// Unregister removes a subscriber by ID. Returns true if one was removed.
func (b *Bus) Unregister(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subscribers {
		if s.ID() == id {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			return true
		}
	}
	return false
}

// Broadcast delivers event to every subscriber registered for its kind, in
// registration order. A subscriber's error (or panic) is logged and
// swallowed — one misbehaving subscriber must not stall or fail the
// delivery of an already-durable commit to the rest (spec §4.6). An event
// whose kind matches none of the five channels is a programmer error and
// surfaces as errs.ErrInvalidParam rather than being silently dropped.
func (b *Bus) Broadcast(ctx context.Context, event eventlog.Event) error {
	if !validKind(event.Kind) {
		return errs.Wrap(errs.ErrInvalidParam, "eventbus: broadcast: unrecognized event kind %s", event.Kind)
	}

	b.mu.RLock()
	matching := b.matchingSubscribers(event.Kind)
	b.mu.RUnlock()

	if len(matching) == 0 {
		return nil
	}

	for _, s := range matching {
		if err := ctx.Err(); err != nil {
			return errs.Wrap(errs.ErrStorageFailure, "eventbus: context canceled mid-broadcast: %v", err)
		}
		b.deliver(ctx, s, event)
	}
	return nil
}

func (b *Bus) deliver(ctx context.Context, s Subscriber, event eventlog.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("eventbus: subscriber %q panicked on event %s: %v", s.ID(), event.ID, r)
		}
	}()
	if err := s.Handle(ctx, event); err != nil {
		log.Printf("eventbus: subscriber %q error for event %s (kind=%s): %v", s.ID(), event.ID, event.Kind, err)
	}
}

// Subscribers returns all registered subscribers, for introspection.
func (b *Bus) Subscribers() []Subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Subscriber, len(b.subscribers))
	copy(out, b.subscribers)
	return out
}

// validKind reports whether kind is one of the five store-event channels
// (spec §4.6) — KindUnknown and anything out of range are not.
func validKind(kind eventlog.Kind) bool {
	switch kind {
	case eventlog.KindMergeMessage, eventlog.KindPruneMessage, eventlog.KindRevokeMessage,
		eventlog.KindMergeUsernameProof, eventlog.KindMergeOnChainEvent:
		return true
	default:
		return false
	}
}

func (b *Bus) matchingSubscribers(kind eventlog.Kind) []Subscriber {
	var matched []Subscriber
	for _, s := range b.subscribers {
		for _, k := range s.Kinds() {
			if k == kind {
				matched = append(matched, s)
				break
			}
		}
	}
	return matched
}

// Func adapts a plain function into a Subscriber for the given kinds, the
// way callers that only need one handler usually want to register one.
type Func struct {
	id      string
	kinds   []eventlog.Kind
	handle  func(ctx context.Context, event eventlog.Event) error
}

// NewFunc builds a Subscriber from a bare function.
func NewFunc(id string, kinds []eventlog.Kind, handle func(ctx context.Context, event eventlog.Event) error) *Func {
	return &Func{id: id, kinds: kinds, handle: handle}
}

func (f *Func) ID() string                { return f.id }
func (f *Func) Kinds() []eventlog.Kind    { return f.kinds }
func (f *Func) Handle(ctx context.Context, event eventlog.Event) error {
	if f.handle == nil {
		return fmt.Errorf("eventbus: subscriber %q has no handler func", f.id)
	}
	return f.handle(ctx, event)
}
