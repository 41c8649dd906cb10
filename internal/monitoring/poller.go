// Package monitoring runs the background poll loop: fetch the latest host
// snapshots, evaluate them against the configured thresholds and publish
// the resulting alert set.
package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/CoffeeShop-Development/watchtower/internal/alerts"
	"github.com/CoffeeShop-Development/watchtower/internal/logging"
	"github.com/CoffeeShop-Development/watchtower/internal/metrics"
	"github.com/CoffeeShop-Development/watchtower/internal/models"
)

// Fetcher pulls the latest per-host snapshot from the metrics source.
type Fetcher interface {
	FetchLatest(ctx context.Context) (map[string]models.MetricSnapshot, error)
}

// HistorySink receives published alerts for durable logging. Failures are
// logged but never affect the cycle outcome.
type HistorySink interface {
	Record(alerts []models.Alert) error
}

// Broadcaster pushes the published alert snapshot to live subscribers.
type Broadcaster interface {
	BroadcastAlerts(alerts []models.Alert)
}

// Options configures a Poller.
type Options struct {
	Interval     time.Duration // cycle cadence; default 10s
	FetchTimeout time.Duration // per-cycle fetch bound; default 5s
	History      HistorySink   // optional
	Broadcaster  Broadcaster   // optional
}

// Poller owns the fetch/evaluate/publish cycle. One background goroutine
// runs the loop; every other accessor is safe for concurrent use. The
// single goroutine serializes cycles, and the ticker drops ticks that fire
// while a slow cycle is still running, so cycles never overlap.
type Poller struct {
	client      Fetcher
	thresholds  *alerts.ThresholdStore
	store       *alerts.Store
	history     HistorySink
	broadcaster Broadcaster

	interval     time.Duration
	fetchTimeout time.Duration

	mu        sync.RWMutex
	latest    map[string]models.MetricSnapshot
	lastFetch time.Time

	startOnce sync.Once
	done      chan struct{}
}

// New creates a Poller.
func New(client Fetcher, thresholds *alerts.ThresholdStore, store *alerts.Store, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 5 * time.Second
	}
	return &Poller{
		client:       client,
		thresholds:   thresholds,
		store:        store,
		history:      opts.History,
		broadcaster:  opts.Broadcaster,
		interval:     opts.Interval,
		fetchTimeout: opts.FetchTimeout,
		done:         make(chan struct{}),
	}
}

// Start launches the poll loop. It returns immediately; the loop runs until
// ctx is canceled. Start is idempotent.
func (p *Poller) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		go p.run(ctx)
	})
}

// Done is closed once the poll loop has exited.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	log.Info().
		Dur("interval", p.interval).
		Dur("fetchTimeout", p.fetchTimeout).
		Msg("Poll loop started")

	// First cycle fires immediately so the dashboard has data without
	// waiting a full interval.
	p.runCycle(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Poll loop stopped")
			return
		case <-ticker.C:
			p.runCycle(ctx)
		}
	}
}

// runCycle performs one fetch/evaluate/publish cycle. Any failure abandons
// the cycle: the error is logged, the alert store and the latest cache keep
// their previous values, and the next tick proceeds on schedule.
func (p *Poller) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	started := time.Now()

	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	snapshots, err := p.client.FetchLatest(fetchCtx)
	cancel()
	if err != nil {
		metrics.RecordCycleFailure(time.Since(started))
		log.Error().Err(err).Msg("Poll cycle abandoned; keeping last published alerts")
		return
	}

	// Snapshot the thresholds once so the whole evaluation observes a
	// single configuration version.
	violations := alerts.Evaluate(snapshots, p.thresholds.Current(), time.Now())

	p.store.Publish(violations)
	p.setLatest(snapshots, started)

	metrics.RecordCycleSuccess(time.Since(started), len(snapshots))
	metrics.RecordActiveAlerts(violations)

	if p.history != nil && len(violations) > 0 {
		if err := p.history.Record(violations); err != nil {
			log.Warn().Err(err).Msg("Failed to record alerts in history")
		}
	}
	if p.broadcaster != nil {
		p.broadcaster.BroadcastAlerts(p.store.Active())
	}

	if logging.IsLevelEnabled(zerolog.DebugLevel) {
		log.Debug().
			Int("hosts", len(snapshots)).
			Int("alerts", len(violations)).
			Dur("duration", time.Since(started)).
			Msg("Poll cycle completed")
	}
}

func (p *Poller) setLatest(snapshots map[string]models.MetricSnapshot, fetchedAt time.Time) {
	cached := make(map[string]models.MetricSnapshot, len(snapshots))
	for hostname, snapshot := range snapshots {
		cached[hostname] = snapshot
	}

	p.mu.Lock()
	p.latest = cached
	p.lastFetch = fetchedAt
	p.mu.Unlock()
}

// Latest returns a copy of the most recent successful snapshot map. ok is
// false until the first successful cycle.
func (p *Poller) Latest() (map[string]models.MetricSnapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.latest == nil {
		return nil, false
	}
	out := make(map[string]models.MetricSnapshot, len(p.latest))
	for hostname, snapshot := range p.latest {
		out[hostname] = snapshot
	}
	return out, true
}

// LastFetch reports when the cached snapshot was fetched; the zero time
// means no cycle has succeeded yet.
func (p *Poller) LastFetch() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastFetch
}
