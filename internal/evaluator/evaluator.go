// Package evaluator consumes enriched ticks, matches them against the
// Trigger Index, and dispatches the corresponding Lifecycle transition. It
// never mutates entity state itself.
package evaluator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/exchange"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/metrics"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/models"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/pkg/utils"
)

// TriggerSource is the read side of the Trigger Index the Evaluator depends on.
type TriggerSource interface {
	Snapshot(symbol string) []models.Trigger
}

// LifecycleDispatcher is the narrow view of internal/lifecycle the Evaluator
// calls into. Declaring it here (rather than importing lifecycle directly)
// avoids an import cycle, the same inversion the lineage uses for
// service.BotEngine vs. bot.Engine.
type LifecycleDispatcher interface {
	Activate(ctx context.Context, kind models.EntityKind, entityID int64, tick exchange.Tick) error
	Invalidate(ctx context.Context, kind models.EntityKind, entityID int64) error
	HitTakeProfit(ctx context.Context, kind models.EntityKind, entityID int64, index int) error
	HitStopLoss(ctx context.Context, kind models.EntityKind, entityID int64) error
	HitProfitStop(ctx context.Context, kind models.EntityKind, entityID int64) error
}

// Config controls debounce behavior.
type Config struct {
	DebounceWindow time.Duration
}

// Evaluator matches ticks against the Trigger Index and dispatches hits.
type Evaluator struct {
	cfg        Config
	index      TriggerSource
	dispatcher LifecycleDispatcher
	log        *utils.Logger

	mu           sync.Mutex
	lastDispatch map[models.Key]time.Time
}

func New(cfg Config, index TriggerSource, dispatcher LifecycleDispatcher) *Evaluator {
	return &Evaluator{
		cfg:          cfg,
		index:        index,
		dispatcher:   dispatcher,
		log:          utils.L().WithComponent("evaluator"),
		lastDispatch: make(map[models.Key]time.Time),
	}
}

// Run consumes ticks until the channel closes or ctx is cancelled. A single
// stop signal — ctx cancellation — terminates the consumer loop; the
// producing adapters return independently on their own channel close.
func (e *Evaluator) Run(ctx context.Context, ticks <-chan exchange.Tick) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick, ok := <-ticks:
			if !ok {
				return nil
			}
			e.Evaluate(ctx, tick)
		}
	}
}

// Evaluate runs one tick against every trigger registered for its symbol,
// in ENTRY → SL → PROFIT_STOP → TP-ascending order, dispatching at most one
// hit per (entity_id, type) even if multiple triggers of that pair matched.
func (e *Evaluator) Evaluate(ctx context.Context, tick exchange.Tick) {
	metrics.TicksProcessed.WithLabelValues(string(tick.Source)).Inc()

	triggers := e.index.Snapshot(tick.Symbol)
	sort.Slice(triggers, func(i, j int) bool {
		return tieBreakRank(triggers[i]) < tieBreakRank(triggers[j])
	})

	firedThisTick := make(map[models.Key]struct{}, len(triggers))

	for _, trig := range triggers {
		key := trig.Key()
		if _, done := firedThisTick[key]; done {
			continue
		}
		if !isHit(trig, tick.Low, tick.High) {
			continue
		}
		if e.debounced(key) {
			metrics.DebounceDrops.WithLabelValues(string(trig.Type)).Inc()
			continue
		}

		firedThisTick[key] = struct{}{}
		e.markDispatched(key)
		e.dispatch(ctx, trig, tick)
	}
}

func (e *Evaluator) dispatch(ctx context.Context, trig models.Trigger, tick exchange.Tick) {
	metrics.HitsDispatched.WithLabelValues(string(trig.Type)).Inc()

	var err error
	switch trig.Type {
	case models.TriggerEntry:
		err = e.dispatcher.Activate(ctx, trig.EntityKind, trig.EntityID, tick)
	case models.TriggerSL:
		err = e.dispatcher.HitStopLoss(ctx, trig.EntityKind, trig.EntityID)
	case models.TriggerProfitStop:
		err = e.dispatcher.HitProfitStop(ctx, trig.EntityKind, trig.EntityID)
	case models.TriggerTakeProfit:
		err = e.dispatcher.HitTakeProfit(ctx, trig.EntityKind, trig.EntityID, trig.Index)
	}

	if err != nil {
		e.log.Error("lifecycle dispatch failed",
			utils.String("entity_kind", string(trig.EntityKind)),
			utils.Int64("entity_id", trig.EntityID),
			utils.String("trigger_type", string(trig.Type)),
			utils.Err(err))
	}
}

func (e *Evaluator) debounced(key models.Key) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	last, ok := e.lastDispatch[key]
	return ok && time.Since(last) < e.cfg.DebounceWindow
}

func (e *Evaluator) markDispatched(key models.Key) {
	e.mu.Lock()
	e.lastDispatch[key] = time.Now()
	e.mu.Unlock()
}

// tieBreakRank orders ENTRY before SL before PROFIT_STOP before TP-ascending,
// per §4.4's documented tie-break order.
func tieBreakRank(t models.Trigger) int {
	switch t.Type {
	case models.TriggerEntry:
		return 0
	case models.TriggerSL:
		return 1
	case models.TriggerProfitStop:
		return 2
	case models.TriggerTakeProfit:
		return 100 + t.Index
	default:
		return 1000
	}
}

// isHit applies the side/type condition table: TP and the opposite-direction
// ENTRY cross in the profit direction, SL/PROFIT_STOP/same-direction ENTRY
// cross in the adverse direction.
func isHit(t models.Trigger, low, high decimal.Decimal) bool {
	switch t.Side {
	case models.SideLong:
		switch t.Type {
		case models.TriggerTakeProfit:
			return high.GreaterThanOrEqual(t.Price)
		case models.TriggerSL, models.TriggerProfitStop:
			return low.LessThanOrEqual(t.Price)
		case models.TriggerEntry:
			if t.OrderType == models.OrderTypeStopMarket {
				return high.GreaterThanOrEqual(t.Price)
			}
			return low.LessThanOrEqual(t.Price)
		}
	case models.SideShort:
		switch t.Type {
		case models.TriggerTakeProfit:
			return low.LessThanOrEqual(t.Price)
		case models.TriggerSL, models.TriggerProfitStop:
			return high.GreaterThanOrEqual(t.Price)
		case models.TriggerEntry:
			if t.OrderType == models.OrderTypeStopMarket {
				return low.LessThanOrEqual(t.Price)
			}
			return high.GreaterThanOrEqual(t.Price)
		}
	}
	return false
}
