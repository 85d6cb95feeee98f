package eventbus

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/timjrobinson/hub-monorepo/internal/hubevents/errs"
	"github.com/timjrobinson/hub-monorepo/internal/hubevents/eventlog"
)

func TestNew(t *testing.T) {
	bus := New()
	if bus == nil {
		t.Fatal("New() returned nil")
	}
}

func TestBroadcastNoSubscribers(t *testing.T) {
	bus := New()
	err := bus.Broadcast(context.Background(), eventlog.Event{Kind: eventlog.KindMergeMessage})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBroadcastRegistrationOrder(t *testing.T) {
	bus := New()
	var mu sync.Mutex
	var order []string

	for _, id := range []string{"a", "b", "c"} {
		id := id
		bus.Register(NewFunc(id, []eventlog.Kind{eventlog.KindMergeMessage}, func(_ context.Context, _ eventlog.Event) error {
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			return nil
		}))
	}

	if err := bus.Broadcast(context.Background(), eventlog.Event{Kind: eventlog.KindMergeMessage}); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	want := []string{"a", "b", "c"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestBroadcastSkipsUnmatchedKind(t *testing.T) {
	bus := New()
	called := false
	bus.Register(NewFunc("only-prune", []eventlog.Kind{eventlog.KindPruneMessage}, func(_ context.Context, _ eventlog.Event) error {
		called = true
		return nil
	}))

	if err := bus.Broadcast(context.Background(), eventlog.Event{Kind: eventlog.KindMergeMessage}); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if called {
		t.Fatal("subscriber for PruneMessage should not see a MergeMessage event")
	}
}

func TestBroadcastSubscriberErrorDoesNotStopChain(t *testing.T) {
	bus := New()
	var secondCalled bool
	bus.Register(NewFunc("failing", []eventlog.Kind{eventlog.KindMergeMessage}, func(_ context.Context, _ eventlog.Event) error {
		return errors.New("boom")
	}))
	bus.Register(NewFunc("ok", []eventlog.Kind{eventlog.KindMergeMessage}, func(_ context.Context, _ eventlog.Event) error {
		secondCalled = true
		return nil
	}))

	if err := bus.Broadcast(context.Background(), eventlog.Event{Kind: eventlog.KindMergeMessage}); err != nil {
		t.Fatalf("broadcast should not surface subscriber errors: %v", err)
	}
	if !secondCalled {
		t.Fatal("second subscriber should still run after the first errors")
	}
}

func TestBroadcastSubscriberPanicDoesNotStopChain(t *testing.T) {
	bus := New()
	var secondCalled bool
	bus.Register(NewFunc("panics", []eventlog.Kind{eventlog.KindMergeMessage}, func(_ context.Context, _ eventlog.Event) error {
		panic("boom")
	}))
	bus.Register(NewFunc("ok", []eventlog.Kind{eventlog.KindMergeMessage}, func(_ context.Context, _ eventlog.Event) error {
		secondCalled = true
		return nil
	}))

	if err := bus.Broadcast(context.Background(), eventlog.Event{Kind: eventlog.KindMergeMessage}); err != nil {
		t.Fatalf("broadcast should not propagate a subscriber panic: %v", err)
	}
	if !secondCalled {
		t.Fatal("second subscriber should still run after the first panics")
	}
}

func TestBroadcastRejectsUnrecognizedKind(t *testing.T) {
	bus := New()
	err := bus.Broadcast(context.Background(), eventlog.Event{Kind: eventlog.KindUnknown})
	if !errors.Is(err, errs.ErrInvalidParam) {
		t.Fatalf("got %v, want errs.ErrInvalidParam for an event matching no channel", err)
	}
}

func TestUnregister(t *testing.T) {
	bus := New()
	bus.Register(NewFunc("x", []eventlog.Kind{eventlog.KindMergeMessage}, func(context.Context, eventlog.Event) error { return nil }))

	if !bus.Unregister("x") {
		t.Fatal("expected Unregister to report removal")
	}
	if bus.Unregister("x") {
		t.Fatal("expected second Unregister of the same id to report false")
	}
	if len(bus.Subscribers()) != 0 {
		t.Fatalf("expected no subscribers left, got %d", len(bus.Subscribers()))
	}
}
