package dataset

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/shelter-status-service/internal/domain"
	"github.com/couchcryptid/shelter-status-service/internal/observability"
)

// Fetcher retrieves the raw upstream dataset.
type Fetcher interface {
	FetchAll(ctx context.Context) ([]domain.RawShelterRecord, error)
}

// SnapshotStore persists the canonical dataset for warm starts. Optional.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap *domain.Snapshot) error
}

// SnapshotPublisher forwards the canonical dataset to downstream consumers.
// Optional.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, snap *domain.Snapshot) error
}

// Refresher runs the fetch-normalize-swap cycle on a timer and on manual
// trigger. At most one cycle is in flight; a trigger during a running cycle
// is coalesced into it, never queued. Failures leave the published snapshot
// untouched and the timer unaffected.
type Refresher struct {
	fetcher   Fetcher
	cache     *Cache
	store     SnapshotStore
	publisher SnapshotPublisher
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics

	interval atomic.Int64 // nanoseconds; read each tick so SetInterval applies next tick
	inFlight atomic.Bool
	trigger  chan struct{}
}

// NewRefresher wires a refresher. store and publisher may be nil; their
// failures never fail a cycle that already swapped the in-memory snapshot.
func NewRefresher(fetcher Fetcher, cache *Cache, store SnapshotStore, publisher SnapshotPublisher,
	interval time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Refresher {
	r := &Refresher{
		fetcher:   fetcher,
		cache:     cache,
		store:     store,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
		trigger:   make(chan struct{}, 1),
	}
	r.interval.Store(int64(interval))
	return r
}

// Interval returns the effective refresh interval.
func (r *Refresher) Interval() time.Duration {
	return time.Duration(r.interval.Load())
}

// SetInterval reconfigures the refresh interval without restarting the
// scheduler; it takes effect from the next tick. Returns the effective value.
func (r *Refresher) SetInterval(d time.Duration) time.Duration {
	r.interval.Store(int64(d))
	return d
}

// Trigger requests a refresh cycle without blocking. Returns false when the
// request coalesced into an in-flight or already-pending cycle.
func (r *Refresher) Trigger() bool {
	if r.inFlight.Load() {
		return false
	}
	select {
	case r.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// CheckReadiness reports ready once a snapshot has been published.
func (r *Refresher) CheckReadiness(_ context.Context) error {
	if r.cache.Current() == nil {
		return errors.New("no dataset snapshot published yet")
	}
	return nil
}

// Run executes the refresh loop until the context is cancelled. An initial
// cycle runs immediately when no snapshot is published (cold start); warm
// starts wait for the first tick.
func (r *Refresher) Run(ctx context.Context) error {
	r.logger.Info("refresher started", "interval", r.Interval())

	if r.cache.Current() == nil {
		r.runCycle(ctx)
	}

	timer := r.clock.NewTimer(r.Interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresher stopping", "reason", ctx.Err())
			return nil
		case <-timer.Chan():
			r.runCycle(ctx)
			timer.Reset(r.Interval())
		case <-r.trigger:
			// Manual trigger; the interval timer keeps its schedule.
			r.runCycle(ctx)
		}
	}
}

// runCycle guards the single-flight invariant and runs one cycle.
func (r *Refresher) runCycle(ctx context.Context) {
	if !r.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer r.inFlight.Store(false)

	if err := r.refresh(ctx); err != nil && ctx.Err() == nil {
		r.logger.Error("refresh cycle failed", "error", err)
	}
}

// refresh is one Fetching -> Normalizing -> Swapping pass. Any failure
// returns to idle with the previous snapshot still published.
func (r *Refresher) refresh(ctx context.Context) error {
	start := r.clock.Now()

	records, err := r.fetcher.FetchAll(ctx)
	if err != nil {
		r.metrics.RefreshCycles.WithLabelValues("upstream_error").Inc()
		return err
	}

	snap, dropped, err := domain.Normalize(records, r.clock.Now().UTC())
	if err != nil {
		r.metrics.RefreshCycles.WithLabelValues("normalize_error").Inc()
		return err
	}

	r.cache.Publish(snap)

	r.metrics.RefreshCycles.WithLabelValues("success").Inc()
	r.metrics.RefreshDuration.Observe(r.clock.Since(start).Seconds())
	r.metrics.SnapshotSize.Set(float64(len(snap.Shelters)))
	r.metrics.RecordsDropped.Add(float64(dropped))

	r.logger.Info("refresh cycle complete",
		"shelters", len(snap.Shelters),
		"dropped", dropped,
		"refreshed_at", snap.RefreshedAt,
	)

	r.propagate(ctx, snap)
	return nil
}

// propagate forwards a freshly swapped snapshot to the secondary sinks.
// Sink errors are logged and counted, never unwound: the in-memory swap
// already succeeded and readers must keep seeing it.
func (r *Refresher) propagate(ctx context.Context, snap *domain.Snapshot) {
	if r.store != nil {
		if err := r.store.SaveSnapshot(ctx, snap); err != nil {
			r.metrics.SnapshotPublish.WithLabelValues("store", "error").Inc()
			r.logger.Error("snapshot store write failed", "error", err)
		} else {
			r.metrics.SnapshotPublish.WithLabelValues("store", "success").Inc()
		}
	}
	if r.publisher != nil {
		if err := r.publisher.PublishSnapshot(ctx, snap); err != nil {
			r.metrics.SnapshotPublish.WithLabelValues("kafka", "error").Inc()
			r.logger.Error("snapshot publish failed", "error", err)
		} else {
			r.metrics.SnapshotPublish.WithLabelValues("kafka", "success").Inc()
		}
	}
}
