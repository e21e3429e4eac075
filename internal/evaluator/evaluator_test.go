package evaluator

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/exchange"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/models"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fakeTriggerSource struct {
	triggers []models.Trigger
}

func (f *fakeTriggerSource) Snapshot(symbol string) []models.Trigger {
	return f.triggers
}

type fakeDispatcher struct {
	activated    []int64
	invalidated  []int64
	tpHits       []int64
	slHits       []int64
	profitStops  []int64
	returnErr    error
}

func (f *fakeDispatcher) Activate(ctx context.Context, kind models.EntityKind, id int64, tick exchange.Tick) error {
	f.activated = append(f.activated, id)
	return f.returnErr
}
func (f *fakeDispatcher) Invalidate(ctx context.Context, kind models.EntityKind, id int64) error {
	f.invalidated = append(f.invalidated, id)
	return f.returnErr
}
func (f *fakeDispatcher) HitTakeProfit(ctx context.Context, kind models.EntityKind, id int64, index int) error {
	f.tpHits = append(f.tpHits, id)
	return f.returnErr
}
func (f *fakeDispatcher) HitStopLoss(ctx context.Context, kind models.EntityKind, id int64) error {
	f.slHits = append(f.slHits, id)
	return f.returnErr
}
func (f *fakeDispatcher) HitProfitStop(ctx context.Context, kind models.EntityKind, id int64) error {
	f.profitStops = append(f.profitStops, id)
	return f.returnErr
}

func TestIsHitLongConditions(t *testing.T) {
	tests := []struct {
		name      string
		trigger   models.Trigger
		low, high decimal.Decimal
		want      bool
	}{
		{"LONG TP hit", models.Trigger{Side: models.SideLong, Type: models.TriggerTakeProfit, Price: dec("110")}, dec("105"), dec("111"), true},
		{"LONG TP miss", models.Trigger{Side: models.SideLong, Type: models.TriggerTakeProfit, Price: dec("110")}, dec("105"), dec("109"), false},
		{"LONG SL hit", models.Trigger{Side: models.SideLong, Type: models.TriggerSL, Price: dec("90")}, dec("89"), dec("95"), true},
		{"LONG ENTRY limit hit", models.Trigger{Side: models.SideLong, Type: models.TriggerEntry, OrderType: models.OrderTypeLimit, Price: dec("100")}, dec("99"), dec("101"), true},
		{"LONG ENTRY stop_market hit", models.Trigger{Side: models.SideLong, Type: models.TriggerEntry, OrderType: models.OrderTypeStopMarket, Price: dec("100")}, dec("98"), dec("101"), true},
		{"LONG ENTRY stop_market miss", models.Trigger{Side: models.SideLong, Type: models.TriggerEntry, OrderType: models.OrderTypeStopMarket, Price: dec("100")}, dec("98"), dec("99"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isHit(tt.trigger, tt.low, tt.high); got != tt.want {
				t.Errorf("isHit() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsHitShortConditions(t *testing.T) {
	tests := []struct {
		name      string
		trigger   models.Trigger
		low, high decimal.Decimal
		want      bool
	}{
		{"SHORT TP hit", models.Trigger{Side: models.SideShort, Type: models.TriggerTakeProfit, Price: dec("90")}, dec("89"), dec("95"), true},
		{"SHORT SL hit", models.Trigger{Side: models.SideShort, Type: models.TriggerSL, Price: dec("110")}, dec("95"), dec("111"), true},
		{"SHORT ENTRY limit hit", models.Trigger{Side: models.SideShort, Type: models.TriggerEntry, OrderType: models.OrderTypeLimit, Price: dec("100")}, dec("99"), dec("101"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isHit(tt.trigger, tt.low, tt.high); got != tt.want {
				t.Errorf("isHit() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTieBreakRankOrder(t *testing.T) {
	entry := models.Trigger{Type: models.TriggerEntry}
	sl := models.Trigger{Type: models.TriggerSL}
	ps := models.Trigger{Type: models.TriggerProfitStop}
	tp1 := models.Trigger{Type: models.TriggerTakeProfit, Index: 1}
	tp2 := models.Trigger{Type: models.TriggerTakeProfit, Index: 2}

	if !(tieBreakRank(entry) < tieBreakRank(sl) && tieBreakRank(sl) < tieBreakRank(ps) && tieBreakRank(ps) < tieBreakRank(tp1) && tieBreakRank(tp1) < tieBreakRank(tp2)) {
		t.Error("tie-break order is not ENTRY < SL < PROFIT_STOP < TP ascending")
	}
}

func TestEvaluateDispatchesOncePerEntityType(t *testing.T) {
	triggers := []models.Trigger{
		{EntityKind: models.EntityRecommendation, EntityID: 1, Symbol: "BTCUSDT", Side: models.SideLong, Type: models.TriggerTakeProfit, Index: 1, Price: dec("100")},
		{EntityKind: models.EntityRecommendation, EntityID: 1, Symbol: "BTCUSDT", Side: models.SideLong, Type: models.TriggerTakeProfit, Index: 2, Price: dec("100")},
	}
	dispatcher := &fakeDispatcher{}
	e := New(Config{DebounceWindow: time.Second}, &fakeTriggerSource{triggers: triggers}, dispatcher)

	e.Evaluate(context.Background(), exchange.Tick{Symbol: "BTCUSDT", Low: dec("99"), High: dec("101")})

	if len(dispatcher.tpHits) != 1 {
		t.Fatalf("got %d TP dispatches, want 1 (same entity_id+type fires once per tick)", len(dispatcher.tpHits))
	}
}

func TestEvaluateDebounceSuppressesRepeat(t *testing.T) {
	triggers := []models.Trigger{
		{EntityKind: models.EntityRecommendation, EntityID: 1, Symbol: "BTCUSDT", Side: models.SideLong, Type: models.TriggerSL, Price: dec("90")},
	}
	dispatcher := &fakeDispatcher{}
	e := New(Config{DebounceWindow: time.Minute}, &fakeTriggerSource{triggers: triggers}, dispatcher)

	tick := exchange.Tick{Symbol: "BTCUSDT", Low: dec("89"), High: dec("91")}
	e.Evaluate(context.Background(), tick)
	e.Evaluate(context.Background(), tick)

	if len(dispatcher.slHits) != 1 {
		t.Errorf("got %d SL dispatches, want 1 (second hit within debounce window should be dropped)", len(dispatcher.slHits))
	}
}

func TestEvaluateEntryAndSLBothFireDifferentTypes(t *testing.T) {
	triggers := []models.Trigger{
		{EntityKind: models.EntityRecommendation, EntityID: 1, Symbol: "BTCUSDT", Side: models.SideLong, Type: models.TriggerEntry, OrderType: models.OrderTypeLimit, Price: dec("100")},
		{EntityKind: models.EntityRecommendation, EntityID: 2, Symbol: "BTCUSDT", Side: models.SideLong, Type: models.TriggerSL, Price: dec("90")},
	}
	dispatcher := &fakeDispatcher{}
	e := New(Config{DebounceWindow: time.Second}, &fakeTriggerSource{triggers: triggers}, dispatcher)

	e.Evaluate(context.Background(), exchange.Tick{Symbol: "BTCUSDT", Low: dec("89"), High: dec("100")})

	if len(dispatcher.activated) != 1 || len(dispatcher.slHits) != 1 {
		t.Errorf("expected one ACTIVATE and one SL hit, got activated=%v slHits=%v", dispatcher.activated, dispatcher.slHits)
	}
}
