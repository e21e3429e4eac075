// Package aggregator owns the set of symbols the system must watch, fans out
// to one Exchange Adapter per source, and forwards enriched ticks onto a
// single in-process channel for the Evaluator to consume.
package aggregator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/exchange"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/models"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/pkg/scheduler"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/pkg/utils"
)

// Config controls the Aggregator's reconciliation cadence and buffering.
type Config struct {
	ReconcileInterval time.Duration
	TickBufferSize    int
}

// SymbolSource reports the set of symbols currently requiring live prices.
// In production this is triggerindex.Index.Symbols; tests supply a stub.
type SymbolSource func() []string

// Aggregator coordinates every Exchange Adapter and exposes a single bounded
// stream of enriched ticks.
type Aggregator struct {
	cfg      Config
	adapters map[models.Source]exchange.Adapter
	symbols  SymbolSource
	log      *utils.Logger

	ticks chan exchange.Tick

	mu          sync.Mutex
	watching    []string
	cancelAll   context.CancelFunc
	adapterDone sync.WaitGroup

	priceMu sync.RWMutex
	prices  map[string]decimal.Decimal
}

func New(cfg Config, adapters map[models.Source]exchange.Adapter, symbols SymbolSource) *Aggregator {
	return &Aggregator{
		cfg:      cfg,
		adapters: adapters,
		symbols:  symbols,
		log:      utils.L().WithComponent("aggregator"),
		ticks:    make(chan exchange.Tick, cfg.TickBufferSize),
		prices:   make(map[string]decimal.Decimal),
	}
}

// Ticks is the single channel every adapter's enriched output is merged onto.
func (a *Aggregator) Ticks() <-chan exchange.Tick {
	return a.ticks
}

// LatestPrice returns the most recent mid-of-range price observed for
// symbol, used by the Creation Service to fill a MARKET order's entry. The
// second return is false if no tick for symbol has been seen yet.
func (a *Aggregator) LatestPrice(symbol string) (decimal.Decimal, bool) {
	a.priceMu.RLock()
	defer a.priceMu.RUnlock()
	p, ok := a.prices[symbol]
	return p, ok
}

// reconcileJob adapts EnsureWatching to scheduler.Job.
type reconcileJob struct {
	ctx context.Context
	agg *Aggregator
}

func (j reconcileJob) Name() string { return "aggregator-reconcile" }
func (j reconcileJob) Run() error   { j.agg.EnsureWatching(j.ctx, j.agg.symbols()); return nil }

// Run starts watching the initial symbol set and registers the periodic
// reconciler as a named cron entry, returning when ctx is cancelled.
func (a *Aggregator) Run(ctx context.Context, sched *scheduler.Scheduler) error {
	a.EnsureWatching(ctx, a.symbols())

	spec := fmt.Sprintf("@every %s", a.cfg.ReconcileInterval)
	if err := sched.AddJob(spec, reconcileJob{ctx: ctx, agg: a}); err != nil {
		return fmt.Errorf("aggregator: registering reconcile job: %w", err)
	}

	<-ctx.Done()

	a.mu.Lock()
	if a.cancelAll != nil {
		a.cancelAll()
	}
	a.mu.Unlock()
	a.adapterDone.Wait()

	return ctx.Err()
}

// EnsureWatching reconciles adapter subscriptions against the requested
// symbol set: on steady state it does nothing; on a changed set it tears
// down every adapter stream and launches fresh ones against the new set.
func (a *Aggregator) EnsureWatching(ctx context.Context, symbols []string) {
	sorted := append([]string(nil), symbols...)
	sort.Strings(sorted)

	a.mu.Lock()
	if sameSymbolSet(a.watching, sorted) {
		a.mu.Unlock()
		return
	}

	if a.cancelAll != nil {
		a.cancelAll()
	}
	a.mu.Unlock()
	a.adapterDone.Wait()

	streamCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.watching = sorted
	a.cancelAll = cancel
	a.mu.Unlock()

	for source, adapter := range a.adapters {
		a.adapterDone.Add(1)
		go a.runAdapter(streamCtx, source, adapter, sorted)
	}

	a.log.Info("watch set updated", utils.Int("symbols", len(sorted)))
}

func (a *Aggregator) runAdapter(ctx context.Context, source models.Source, adapter exchange.Adapter, symbols []string) {
	defer a.adapterDone.Done()

	handler := func(tick exchange.Tick) {
		tick.Source = source
		tick.Timestamp = time.Now()
		a.recordPrice(tick)
		a.enqueue(tick)
	}

	if err := adapter.Stream(ctx, symbols, handler); err != nil && ctx.Err() == nil {
		a.log.Error("adapter stream ended", utils.String("source", string(source)), utils.Err(err))
	}
}

// recordPrice keeps the mid of the tick's observed range as the latest
// known price for its symbol, overwriting regardless of source — this
// module makes no attempt to reconcile differing exchange quotes, the same
// simplification the Evaluator's trigger matching already makes per tick.
func (a *Aggregator) recordPrice(tick exchange.Tick) {
	mid := tick.Low.Add(tick.High).Div(decimal.NewFromInt(2))
	a.priceMu.Lock()
	a.prices[tick.Symbol] = mid
	a.priceMu.Unlock()
}

// enqueue applies the lossy-newest policy: if the buffer is full, the oldest
// buffered tick is dropped to make room rather than blocking the producer.
func (a *Aggregator) enqueue(tick exchange.Tick) {
	select {
	case a.ticks <- tick:
		return
	default:
	}

	select {
	case <-a.ticks:
	default:
	}

	select {
	case a.ticks <- tick:
	default:
		a.log.Warn("tick dropped under sustained backpressure", utils.String("symbol", tick.Symbol))
	}
}

func sameSymbolSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
