package commit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/timjrobinson/hub-monorepo/internal/hubevents/errs"
	"github.com/timjrobinson/hub-monorepo/internal/hubevents/eventbus"
	"github.com/timjrobinson/hub-monorepo/internal/hubevents/eventid"
	"github.com/timjrobinson/hub-monorepo/internal/hubevents/eventlog"
	"github.com/timjrobinson/hub-monorepo/internal/hubevents/storecache"
	"github.com/timjrobinson/hub-monorepo/internal/hubkv"
)

func newTestCoordinator(t *testing.T, cfg Config) (*Coordinator, *hubkv.Store, *storecache.Cache, *eventbus.Bus) {
	t.Helper()
	kv, err := hubkv.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open kv: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })

	cache := storecache.New(nil)
	bus := eventbus.New()
	gen := eventid.New(0)

	c := New(cfg, gen, cache, bus)
	t.Cleanup(c.Close)
	return c, kv, cache, bus
}

func TestCommitAssignsIDAndAppendsEvent(t *testing.T) {
	c, kv, _, _ := newTestCoordinator(t, Config{LockMaxPending: 10, LockTimeout: time.Second})

	batch := kv.NewBatch()
	id, err := c.Commit(context.Background(), batch, eventlog.Args{
		Kind:    eventlog.KindMergeMessage,
		Account: 1,
		Store:   eventlog.StoreCasts,
		Payload: storecache.EncodeMessagePayload(storecache.MessagePayload{TsHash: []byte{0, 0, 0, 1, 'a'}}),
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if id == 0 {
		t.Fatal("commit assigned id 0, which is reserved")
	}

	log := eventlog.NewLog(kv)
	stored, err := log.GetEvent(id)
	if err != nil {
		t.Fatalf("get committed event: %v", err)
	}
	if stored.Account != 1 || stored.Kind != eventlog.KindMergeMessage {
		t.Fatalf("stored event = %+v, want account=1 kind=MergeMessage", stored)
	}
}

func TestCommitUpdatesCacheInPostCommitHook(t *testing.T) {
	c, kv, cache, _ := newTestCoordinator(t, Config{LockMaxPending: 10, LockTimeout: time.Second})

	batch := kv.NewBatch()
	_, err := c.Commit(context.Background(), batch, eventlog.Args{
		Kind:    eventlog.KindMergeMessage,
		Account: 9,
		Store:   eventlog.StoreCasts,
		Payload: storecache.EncodeMessagePayload(storecache.MessagePayload{TsHash: []byte{0, 0, 0, 1, 'a'}}),
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cache.GetMessageCount(9, eventlog.StoreCasts) == 1 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("post-commit cache update did not land within timeout")
}

func TestAdmitRejectsWhenPendingQueueFull(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t, Config{LockMaxPending: 1, LockTimeout: time.Second})

	// Simulate lockMaxPending already-waiting attempts without needing real
	// concurrent goroutines blocked on the semaphore.
	c.pending.Store(c.lockMaxPending)

	err := c.admit(context.Background())
	if err == nil {
		t.Fatal("expected an error when lock_max_pending is exhausted")
	}
	if !errors.Is(err, errs.ErrTooBusy) {
		t.Fatalf("got %v, want errs.ErrTooBusy", err)
	}
}

func TestAdmitTimesOutWhenSlotHeld(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t, Config{LockMaxPending: 10, LockTimeout: 20 * time.Millisecond})

	if !c.sem.TryAcquire(1) {
		t.Fatal("expected to acquire the free slot")
	}
	defer c.sem.Release(1)

	err := c.admit(context.Background())
	if err == nil {
		t.Fatal("expected a timeout error when the slot is already held")
	}
	if !errors.Is(err, errs.ErrTooBusy) {
		t.Fatalf("got %v, want errs.ErrTooBusy", err)
	}
}
