package triggerindex

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/models"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestDerivedTriggersForRecommendationPending(t *testing.T) {
	rec := &models.Recommendation{
		ID:        1,
		AnalystID: 9,
		Symbol:    "BTCUSDT",
		Side:      models.SideLong,
		Entry:     dec("50000"),
		Status:    models.RecommendationPending,
		OrderType: models.OrderTypeLimit,
	}

	triggers := derivedTriggersForRecommendation(rec)
	if len(triggers) != 1 {
		t.Fatalf("got %d triggers, want 1", len(triggers))
	}
	if triggers[0].Type != models.TriggerEntry {
		t.Errorf("Type = %s, want ENTRY", triggers[0].Type)
	}
	if !triggers[0].Price.Equal(dec("50000")) {
		t.Errorf("Price = %s, want 50000", triggers[0].Price)
	}
}

func TestDerivedTriggersForRecommendationActive(t *testing.T) {
	rec := &models.Recommendation{
		ID:       2,
		Symbol:   "ETHUSDT",
		Side:     models.SideShort,
		StopLoss: dec("2100"),
		Status:   models.RecommendationActive,
		Targets: models.TargetList{
			{Price: dec("1900"), ClosePercent: dec("50")},
			{Price: dec("1800"), ClosePercent: dec("50")},
		},
		ProfitStop: models.ProfitStopColumn{
			Mode:   models.ProfitStopFixed,
			Price:  dec("2000"),
			Active: true,
		},
	}

	triggers := derivedTriggersForRecommendation(rec)
	if len(triggers) != 4 {
		t.Fatalf("got %d triggers, want 4 (SL + PROFIT_STOP + TP1 + TP2)", len(triggers))
	}

	counts := map[models.TriggerType]int{}
	for _, tr := range triggers {
		counts[tr.Type]++
	}
	if counts[models.TriggerSL] != 1 || counts[models.TriggerProfitStop] != 1 || counts[models.TriggerTakeProfit] != 2 {
		t.Errorf("unexpected trigger type distribution: %v", counts)
	}
}

func TestDerivedTriggersForRecommendationClosed(t *testing.T) {
	rec := &models.Recommendation{ID: 3, Status: models.RecommendationClosed}
	if got := derivedTriggersForRecommendation(rec); len(got) != 0 {
		t.Errorf("CLOSED recommendation produced %d triggers, want 0", len(got))
	}
}

func TestDerivedTriggersForUserTradeWatchlist(t *testing.T) {
	trade := &models.UserTrade{ID: 4, Status: models.UserTradeWatchlist}
	if got := derivedTriggersForUserTrade(trade); len(got) != 0 {
		t.Errorf("WATCHLIST trade produced %d triggers, want 0", len(got))
	}
}

func TestDerivedTriggersForUserTradePendingActivation(t *testing.T) {
	trade := &models.UserTrade{
		ID:        5,
		Symbol:    "SOLUSDT",
		Side:      models.SideLong,
		Entry:     dec("100"),
		Status:    models.UserTradePendingActivation,
		OrderType: models.OrderTypeStopMarket,
	}

	triggers := derivedTriggersForUserTrade(trade)
	if len(triggers) != 1 || triggers[0].Type != models.TriggerEntry {
		t.Fatalf("got %+v, want single ENTRY trigger", triggers)
	}
	if triggers[0].OrderType != models.OrderTypeStopMarket {
		t.Errorf("OrderType = %s, want STOP_MARKET", triggers[0].OrderType)
	}
}

func TestDerivedTriggersForUserTradeActivatedNoProfitStop(t *testing.T) {
	trade := &models.UserTrade{
		ID:       6,
		Symbol:   "SOLUSDT",
		Side:     models.SideLong,
		StopLoss: dec("90"),
		Status:   models.UserTradeActivated,
		Targets: models.TargetList{
			{Price: dec("120"), ClosePercent: dec("100")},
		},
		ProfitStop: models.ProfitStopColumn{Mode: models.ProfitStopNone},
	}

	triggers := derivedTriggersForUserTrade(trade)
	if len(triggers) != 2 {
		t.Fatalf("got %d triggers, want 2 (SL + TP1)", len(triggers))
	}
	for _, tr := range triggers {
		if tr.Type == models.TriggerProfitStop {
			t.Errorf("inactive profit stop should not produce a trigger")
		}
	}
}
