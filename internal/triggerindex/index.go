// Package triggerindex maintains the in-memory symbol -> []Trigger map the
// Evaluator consults on every tick. The map is derived entirely from the
// authoritative store; nothing here is persisted.
package triggerindex

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/metrics"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/models"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/repository"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/pkg/retry"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/pkg/scheduler"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/pkg/utils"
)

// Config controls rebuild cadence and retry backoff.
type Config struct {
	RebuildInterval   time.Duration
	RebuildBackoffMin time.Duration
	RebuildBackoffMax time.Duration
}

// Index is a lock-free-read symbol -> []Trigger map. Reads (Snapshot) are a
// single atomic load; writes either replace the whole map (Rebuild) under a
// brief exclusive lock, or copy-on-write a single symbol's slice
// (AddFor/RemoveFor).
type Index struct {
	current atomic.Pointer[map[string][]models.Trigger]

	cfg Config
	log *utils.Logger

	recRepo   repository.RecommendationRepositoryInterface
	tradeRepo repository.UserTradeRepositoryInterface

	mu sync.Mutex // guards incremental add/remove + publish
}

func New(cfg Config, recRepo repository.RecommendationRepositoryInterface, tradeRepo repository.UserTradeRepositoryInterface) *Index {
	idx := &Index{
		cfg:       cfg,
		log:       utils.L().WithComponent("triggerindex"),
		recRepo:   recRepo,
		tradeRepo: tradeRepo,
	}
	empty := make(map[string][]models.Trigger)
	idx.current.Store(&empty)
	return idx
}

// Symbols returns every symbol currently holding at least one trigger. The
// Price Aggregator polls this to detect when its watch set must change.
func (idx *Index) Symbols() []string {
	m := *idx.current.Load()
	symbols := make([]string, 0, len(m))
	for symbol := range m {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// Snapshot returns the triggers currently registered for symbol. The
// returned slice is a copy and safe to range over without holding any lock.
func (idx *Index) Snapshot(symbol string) []models.Trigger {
	m := *idx.current.Load()
	triggers := m[symbol]
	out := make([]models.Trigger, len(triggers))
	copy(out, triggers)
	return out
}

// rebuildJob adapts Index.rebuildWithRetry to the scheduler.Job interface.
type rebuildJob struct {
	ctx context.Context
	idx *Index
}

func (j rebuildJob) Name() string { return "triggerindex-rebuild" }
func (j rebuildJob) Run() error   { return j.idx.rebuildWithRetry(j.ctx) }

// Run performs an immediate rebuild, registers the periodic rebuild as a
// named cron entry, and blocks until ctx is cancelled.
func (idx *Index) Run(ctx context.Context, sched *scheduler.Scheduler) error {
	if err := idx.rebuildWithRetry(ctx); err != nil {
		idx.log.Error("initial rebuild failed", utils.Err(err))
	}

	spec := fmt.Sprintf("@every %s", idx.cfg.RebuildInterval)
	if err := sched.AddJob(spec, rebuildJob{ctx: ctx, idx: idx}); err != nil {
		return fmt.Errorf("triggerindex: registering rebuild job: %w", err)
	}

	<-ctx.Done()
	return ctx.Err()
}

func (idx *Index) rebuildWithRetry(ctx context.Context) error {
	cfg := retry.Config{
		MaxRetries:   0, // unlimited: the index must eventually converge
		InitialDelay: idx.cfg.RebuildBackoffMin,
		MaxDelay:     idx.cfg.RebuildBackoffMax,
		Multiplier:   2.0,
		JitterFactor: 0.1,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			metrics.RebuildFailures.Inc()
			idx.log.Warn("rebuild retry", utils.Int("attempt", attempt), utils.Err(err), utils.String("delay", delay.String()))
		},
	}
	return retry.Do(ctx, func() error { return idx.Rebuild(ctx) }, cfg)
}

// Rebuild fetches every live Recommendation and UserTrade, derives their
// triggers, and atomically swaps the whole map in one exclusive-lock step.
// The Evaluator is never blocked mid-rebuild: the new map is built fully
// off to the side before the swap.
func (idx *Index) Rebuild(ctx context.Context) error {
	start := time.Now()

	recs, err := idx.recRepo.ListLive(ctx)
	if err != nil {
		return err
	}
	trades, err := idx.tradeRepo.ListLive(ctx)
	if err != nil {
		return err
	}

	next := make(map[string][]models.Trigger)
	seen := make(map[models.DedupKey]struct{})

	for _, rec := range recs {
		for _, t := range derivedTriggersForRecommendation(rec) {
			addDeduped(next, seen, t)
		}
	}
	for _, trade := range trades {
		for _, t := range derivedTriggersForUserTrade(trade) {
			addDeduped(next, seen, t)
		}
	}

	idx.mu.Lock()
	idx.current.Store(&next)
	idx.mu.Unlock()

	metrics.RebuildDuration.Observe(float64(time.Since(start).Microseconds()) / 1000)
	setActiveTriggersGauge(next)

	idx.log.Info("trigger index rebuilt", utils.Int("symbols", len(next)))
	return nil
}

func addDeduped(m map[string][]models.Trigger, seen map[models.DedupKey]struct{}, t models.Trigger) {
	key := t.DedupKey()
	if _, ok := seen[key]; ok {
		return
	}
	seen[key] = struct{}{}
	m[t.Symbol] = append(m[t.Symbol], t)
}

// AddFor registers every trigger derived from rec/trade's current state,
// called by Lifecycle immediately after a successful transition commits.
func (idx *Index) AddFor(kind models.EntityKind, triggers []models.Trigger) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	old := *idx.current.Load()
	next := copyMap(old)

	for _, t := range triggers {
		next[t.Symbol] = appendUnique(next[t.Symbol], t)
	}

	idx.current.Store(&next)
	setActiveTriggersGauge(next)
}

// RemoveFor drops every trigger belonging to the given entity, called before
// AddFor re-registers its post-transition set (or alone, on terminal close).
func (idx *Index) RemoveFor(kind models.EntityKind, entityID int64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	old := *idx.current.Load()
	next := make(map[string][]models.Trigger, len(old))

	for symbol, triggers := range old {
		filtered := make([]models.Trigger, 0, len(triggers))
		for _, t := range triggers {
			if t.EntityKind == kind && t.EntityID == entityID {
				continue
			}
			filtered = append(filtered, t)
		}
		if len(filtered) > 0 {
			next[symbol] = filtered
		}
	}

	idx.current.Store(&next)
	setActiveTriggersGauge(next)
}

func setActiveTriggersGauge(m map[string][]models.Trigger) {
	total := 0
	for _, triggers := range m {
		total += len(triggers)
	}
	metrics.ActiveTriggers.Set(float64(total))
}

func copyMap(m map[string][]models.Trigger) map[string][]models.Trigger {
	next := make(map[string][]models.Trigger, len(m))
	for k, v := range m {
		cp := make([]models.Trigger, len(v))
		copy(cp, v)
		next[k] = cp
	}
	return next
}

func appendUnique(triggers []models.Trigger, t models.Trigger) []models.Trigger {
	for _, existing := range triggers {
		if existing.DedupKey() == t.DedupKey() {
			return triggers
		}
	}
	return append(triggers, t)
}
