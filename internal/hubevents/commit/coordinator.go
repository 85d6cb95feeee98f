// Package commit implements the single bounded commit slot that serializes
// every durable mutation to the store: generate an ID, append the event,
// commit the caller's batch, then fan the result out to the usage cache and
// the subscriber bus in the same order commits happened (spec §4.5/§4.6).
package commit

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/semaphore"

	"github.com/timjrobinson/hub-monorepo/internal/hubevents/errs"
	"github.com/timjrobinson/hub-monorepo/internal/hubevents/eventbus"
	"github.com/timjrobinson/hub-monorepo/internal/hubevents/eventid"
	"github.com/timjrobinson/hub-monorepo/internal/hubevents/eventlog"
	"github.com/timjrobinson/hub-monorepo/internal/hubevents/storecache"
)

var commitMetrics struct {
	waitMs    metric.Float64Histogram
	committed metric.Int64Counter
	tooBusy   metric.Int64Counter
	dropped   metric.Int64Counter
}

func init() {
	m := otel.Meter("github.com/timjrobinson/hub-monorepo/hubevents/commit")
	commitMetrics.waitMs, _ = m.Float64Histogram("bd.events.commit_wait_ms",
		metric.WithDescription("Time spent waiting to acquire the commit slot"),
		metric.WithUnit("ms"),
	)
	commitMetrics.committed, _ = m.Int64Counter("bd.events.committed_total",
		metric.WithDescription("Events successfully committed"),
		metric.WithUnit("{event}"),
	)
	commitMetrics.tooBusy, _ = m.Int64Counter("bd.events.too_busy_total",
		metric.WithDescription("Commit attempts rejected because the pending queue was full or the slot timed out"),
		metric.WithUnit("{attempt}"),
	)
	commitMetrics.dropped, _ = m.Int64Counter("bd.events.post_commit_errors_total",
		metric.WithDescription("Post-commit cache updates that failed after a successful commit"),
		metric.WithUnit("{event}"),
	)
}

// Queuer is the narrow slice of *hubkv.Batch a caller needs to append an
// event to the same batch it will commit, so Commit can't reach for
// unrelated Batch methods mid-commit.
type Queuer interface {
	Set(key, value []byte) error
	Commit() error
}

// Config controls a Coordinator's admission policy (spec §6).
type Config struct {
	// LockMaxPending bounds how many commit attempts may be waiting for the
	// slot at once. Attempts beyond this are rejected immediately with
	// ErrTooBusy rather than queued unboundedly.
	LockMaxPending int64
	// LockTimeout bounds how long a single attempt waits for the slot
	// before giving up with ErrTooBusy.
	LockTimeout time.Duration
	// PostCommitBuffer sizes the channel the single post-commit goroutine
	// drains. It only needs to absorb a short burst, since that goroutine
	// does no blocking I/O beyond subscriber calls.
	PostCommitBuffer int
}

// Coordinator serializes commits through a single bounded slot: at most one
// commit proceeds at a time, and at most LockMaxPending commits may be
// waiting for that slot before new attempts are rejected outright (spec
// §4.5).
type Coordinator struct {
	sem            *semaphore.Weighted
	lockTimeout    time.Duration
	lockMaxPending int64
	pending        atomic.Int64

	gen   *eventid.Generator
	cache *storecache.Cache
	bus   *eventbus.Bus

	postCommit chan postCommitJob
	done       chan struct{}
}

type postCommitJob struct {
	event eventlog.Event
}

// New builds a Coordinator and starts its post-commit goroutine. Close must
// be called on shutdown to stop that goroutine cleanly.
func New(cfg Config, gen *eventid.Generator, cache *storecache.Cache, bus *eventbus.Bus) *Coordinator {
	if cfg.PostCommitBuffer <= 0 {
		cfg.PostCommitBuffer = 1024
	}
	if cfg.LockMaxPending <= 0 {
		cfg.LockMaxPending = 1000
	}
	c := &Coordinator{
		sem:            semaphore.NewWeighted(1),
		lockTimeout:    cfg.LockTimeout,
		lockMaxPending: cfg.LockMaxPending,
		gen:            gen,
		cache:          cache,
		bus:            bus,
		postCommit:     make(chan postCommitJob, cfg.PostCommitBuffer),
		done:           make(chan struct{}),
	}
	go c.runPostCommit()
	return c
}

// Close stops the post-commit goroutine after draining jobs already queued.
func (c *Coordinator) Close() {
	close(c.postCommit)
	<-c.done
}

// Commit performs spec §4.5's six steps: acquire the commit slot, mint an
// ID, encode and append the event to batch, commit batch, then queue the
// committed event for ordered post-commit fan-out. The caller owns batch's
// lifecycle up to calling Commit; Commit appends to it and triggers the
// final Batch.Commit call itself, so callers must not call batch.Commit
// separately.
func (c *Coordinator) Commit(ctx context.Context, batch Queuer, args eventlog.Args) (eventid.ID, error) {
	start := time.Now()
	if err := c.admit(ctx); err != nil {
		commitMetrics.tooBusy.Add(ctx, 1)
		return 0, err
	}
	defer c.sem.Release(1)
	commitMetrics.waitMs.Record(ctx, float64(time.Since(start).Milliseconds()))

	id, err := c.gen.Next(time.Now().UnixMilli())
	if err != nil {
		return 0, err
	}

	event := eventlog.Event{
		ID:      id,
		Kind:    args.Kind,
		Account: args.Account,
		Store:   args.Store,
		Payload: args.Payload,
	}

	raw, err := eventlog.Encode(event)
	if err != nil {
		return 0, err
	}
	if err := batch.Set(eventlog.MakeEventKey(id), raw); err != nil {
		return 0, errs.Wrap(errs.ErrStorageFailure, "commit: append event %s: %v", id, err)
	}
	if err := batch.Commit(); err != nil {
		return 0, errs.Wrap(errs.ErrStorageFailure, "commit: commit batch for event %s: %v", id, err)
	}

	commitMetrics.committed.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", event.Kind.String())))

	c.postCommit <- postCommitJob{event: event}

	return id, nil
}

// admit blocks until the commit slot is free, rejecting immediately with
// ErrTooBusy if lockMaxPending attempts are already waiting, and bounding
// its own wait by lockTimeout.
func (c *Coordinator) admit(ctx context.Context) error {
	if c.pending.Add(1) > c.lockMaxPending {
		c.pending.Add(-1)
		return errs.Wrap(errs.ErrTooBusy, "commit: pending queue depth exceeds lock_max_pending")
	}
	defer c.pending.Add(-1)

	waitCtx := ctx
	if c.lockTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.lockTimeout)
		defer cancel()
	}
	if err := c.sem.Acquire(waitCtx, 1); err != nil {
		return errs.Wrap(errs.ErrTooBusy, "commit: commit slot unavailable: %v", err)
	}
	return nil
}

// runPostCommit drains queued events in commit order, applying them to the
// cache and broadcasting them to subscribers — preserving commit order even
// though this work happens outside the commit slot (spec §4.6/§5).
func (c *Coordinator) runPostCommit() {
	defer close(c.done)
	ctx := context.Background()
	for job := range c.postCommit {
		if c.cache != nil {
			if err := c.cache.ProcessEvent(job.event); err != nil {
				commitMetrics.dropped.Add(ctx, 1)
				log.Printf("commit: post-commit cache update failed for event %s: %v", job.event.ID, err)
				continue
			}
		}
		if c.bus != nil {
			_ = c.bus.Broadcast(ctx, job.event)
		}
	}
}
