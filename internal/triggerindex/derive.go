package triggerindex

import (
	"github.com/shopspring/decimal"

	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/models"
)

// derivedTriggersForRecommendation maps one Recommendation's current status
// onto the trigger set described in SPEC_FULL.md §4.3: PENDING gets a single
// ENTRY trigger; ACTIVE gets SL, an optional PROFIT_STOP, and one TP per
// target; CLOSED produces nothing.
func derivedTriggersForRecommendation(rec *models.Recommendation) []models.Trigger {
	base := models.Trigger{
		EntityKind: models.EntityRecommendation,
		EntityID:   rec.ID,
		UserID:     rec.AnalystID,
		Symbol:     rec.Symbol,
		Side:       rec.Side,
	}

	switch rec.Status {
	case models.RecommendationPending:
		t := base
		t.Type = models.TriggerEntry
		t.Price = rec.Entry
		t.OrderType = rec.OrderType
		return []models.Trigger{t}

	case models.RecommendationActive:
		return activeTriggers(base, rec.StopLoss, rec.Targets, rec.ProfitStop)

	default: // CLOSED
		return nil
	}
}

// derivedTriggersForUserTrade mirrors derivedTriggersForRecommendation for the
// UserTrade status taxonomy (WATCHLIST/PENDING_ACTIVATION/ACTIVATED/CLOSED).
func derivedTriggersForUserTrade(trade *models.UserTrade) []models.Trigger {
	base := models.Trigger{
		EntityKind: models.EntityUserTrade,
		EntityID:   trade.ID,
		UserID:     trade.UserID,
		Symbol:     trade.Symbol,
		Side:       trade.Side,
	}

	switch trade.Status {
	case models.UserTradePendingActivation:
		t := base
		t.Type = models.TriggerEntry
		t.Price = trade.Entry
		t.OrderType = trade.OrderType
		return []models.Trigger{t}

	case models.UserTradeActivated:
		return activeTriggers(base, trade.StopLoss, trade.Targets, trade.ProfitStop)

	default: // WATCHLIST, CLOSED
		return nil
	}
}

func activeTriggers(base models.Trigger, stopLoss decimal.Decimal, targets models.TargetList, ps models.ProfitStopColumn) []models.Trigger {
	triggers := make([]models.Trigger, 0, 2+len(targets))

	sl := base
	sl.Type = models.TriggerSL
	sl.Price = stopLoss
	triggers = append(triggers, sl)

	if models.ProfitStop(ps).Enabled() {
		p := base
		p.Type = models.TriggerProfitStop
		p.Price = models.ProfitStop(ps).Price
		triggers = append(triggers, p)
	}

	for i, target := range targets {
		t := base
		t.Type = models.TriggerTakeProfit
		t.Index = i + 1
		t.Price = target.Price
		triggers = append(triggers, t)
	}

	return triggers
}
