package lifecycle

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/exchange"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/metrics"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/models"
)

// ActivateUserTrade mirrors ActivateRecommendation for the personal-copy side:
// PENDING_ACTIVATION -> ACTIVATED on an ENTRY hit, or -> CLOSED if the same
// tick already breached the stop-loss.
func (s *Service) ActivateUserTrade(ctx context.Context, id int64, tick exchange.Tick) error {
	var (
		invalidated    bool
		alreadyHandled bool
		triggers       []models.Trigger
		snapshot       *models.UserTrade
	)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		trade, err := s.tradeRepo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		snapshot = trade
		if trade.Status != models.UserTradePendingActivation {
			alreadyHandled = true
			return nil
		}

		now := time.Now()

		if entryGapsPastStopLoss(trade.Side, trade.StopLoss, tick.Low, tick.High) {
			invalidated = true
			trade.Status = models.UserTradeClosed
			trade.ExitPrice = decimalPtr(trade.StopLoss)
			trade.ClosedAt = &now
			trade.OpenSizePct = decimal.Zero
			if err := s.tradeRepo.Update(ctx, tx, trade); err != nil {
				return err
			}
			return s.tradeRepo.AppendEvent(ctx, tx, &models.UserTradeEvent{
				UserTradeID: id,
				Type:        models.EventInvalidated,
				Timestamp:   now,
				Data:        models.EventData{"reason": "sl_before_entry"},
			})
		}

		trade.Status = models.UserTradeActivated
		trade.ActivatedAt = &now
		if err := s.tradeRepo.Update(ctx, tx, trade); err != nil {
			return err
		}
		if err := s.tradeRepo.AppendEvent(ctx, tx, &models.UserTradeEvent{
			UserTradeID: id,
			Type:        models.EventActivated,
			Timestamp:   now,
		}); err != nil {
			return err
		}

		triggers = userTradeActiveTriggers(trade)
		return nil
	})
	if err != nil || alreadyHandled {
		return err
	}

	s.index.RemoveFor(models.EntityUserTrade, id)
	if invalidated {
		s.notifyPrivate(ctx, tradeNotifyChannel(snapshot), "Trade invalidated: stop-loss breached before entry filled")
		return nil
	}
	if len(triggers) > 0 {
		s.index.AddFor(models.EntityUserTrade, triggers)
	}
	s.notifyPrivate(ctx, tradeNotifyChannel(snapshot), "Trade activated")
	return nil
}

// InvalidateUserTrade closes a trade still awaiting entry, with zero PnL.
func (s *Service) InvalidateUserTrade(ctx context.Context, id int64) error {
	var (
		alreadyHandled bool
		snapshot       *models.UserTrade
	)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		trade, err := s.tradeRepo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		snapshot = trade
		if trade.Status != models.UserTradePendingActivation {
			alreadyHandled = true
			return nil
		}

		now := time.Now()
		trade.Status = models.UserTradeClosed
		trade.ClosedAt = &now
		trade.OpenSizePct = decimal.Zero
		if err := s.tradeRepo.Update(ctx, tx, trade); err != nil {
			return err
		}
		return s.tradeRepo.AppendEvent(ctx, tx, &models.UserTradeEvent{
			UserTradeID: id,
			Type:        models.EventInvalidated,
			Timestamp:   now,
		})
	})
	if err != nil || alreadyHandled {
		return err
	}

	s.index.RemoveFor(models.EntityUserTrade, id)
	s.notifyPrivate(ctx, tradeNotifyChannel(snapshot), "Trade invalidated")
	return nil
}

// HitTakeProfitUserTrade mirrors HitTakeProfitRecommendation.
func (s *Service) HitTakeProfitUserTrade(ctx context.Context, id int64, index int) error {
	var (
		alreadyHandled bool
		fullClose      bool
		closeReason    models.CloseReason
		triggers       []models.Trigger
		removeFirst    bool
		snapshot       *models.UserTrade
	)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		trade, err := s.tradeRepo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		snapshot = trade
		if trade.Status != models.UserTradeActivated {
			alreadyHandled = true
			return nil
		}

		events, err := s.tradeRepo.ListEvents(ctx, id)
		if err != nil {
			return err
		}
		if hasTakeProfitHitEventUT(events, index) {
			alreadyHandled = true
			return nil
		}

		if index < 1 || index > len(trade.Targets) {
			alreadyHandled = true
			return nil
		}
		target := trade.Targets[index-1]
		now := time.Now()

		if err := s.tradeRepo.AppendEvent(ctx, tx, &models.UserTradeEvent{
			UserTradeID: id,
			Type:        models.EventTakeProfitHit,
			Timestamp:   now,
			Data:        models.EventData{"index": index, "price": target.Price.String()},
		}); err != nil {
			return err
		}

		if target.ClosePercent.GreaterThan(decimal.Zero) {
			result := computePartialClose(trade.Side, trade.Entry, target.Price, trade.OpenSizePct, target.ClosePercent)
			trade.OpenSizePct = result.NewOpenPct
			if err := s.tradeRepo.Update(ctx, tx, trade); err != nil {
				return err
			}
			if err := s.tradeRepo.AppendEvent(ctx, tx, &models.UserTradeEvent{
				UserTradeID: id,
				Type:        models.EventPartial,
				Timestamp:   now,
				Data:        models.EventData{"close_percent": target.ClosePercent.String(), "pnl_percent": result.PnLPercent.String()},
			}); err != nil {
				return err
			}
			if result.IsDust {
				fullClose = true
				closeReason = models.CloseReasonViaPartial
			}
		}

		if shouldAutoCloseOnFinalTarget(trade.ExitStrategy, index, len(trade.Targets)) {
			fullClose = true
			closeReason = models.CloseReasonAutoFinalTP
		}

		if fullClose {
			trade.Status = models.UserTradeClosed
			trade.ExitPrice = decimalPtr(target.Price)
			trade.ClosedAt = &now
			trade.OpenSizePct = decimal.Zero
			trade.ProfitStop.Active = false
			if err := s.tradeRepo.Update(ctx, tx, trade); err != nil {
				return err
			}
			if err := s.tradeRepo.AppendEvent(ctx, tx, &models.UserTradeEvent{
				UserTradeID: id,
				Type:        models.EventFinalClose,
				Timestamp:   now,
				Data:        models.EventData{"reason": string(closeReason)},
			}); err != nil {
				return err
			}
			removeFirst = true
		} else {
			triggers = userTradeActiveTriggers(trade)
		}

		return nil
	})
	if err != nil || alreadyHandled {
		return err
	}

	if removeFirst {
		s.index.RemoveFor(models.EntityUserTrade, id)
	} else if len(triggers) > 0 {
		s.index.RemoveFor(models.EntityUserTrade, id)
		s.index.AddFor(models.EntityUserTrade, triggers)
	}

	s.notifyPrivate(ctx, tradeNotifyChannel(snapshot), "Take-profit hit")
	return nil
}

// CloseUserTrade is the manual close operation: a user-initiated exit at the
// given price, independent of any trigger hit.
func (s *Service) CloseUserTrade(ctx context.Context, id int64, exitPrice decimal.Decimal) error {
	return s.closeUserTrade(ctx, id, models.CloseReasonManualClose, &exitPrice)
}

// HitStopLossUserTrade closes an ACTIVATED trade on SL hit.
func (s *Service) HitStopLossUserTrade(ctx context.Context, id int64) error {
	return s.closeUserTrade(ctx, id, models.CloseReasonStopLossHit, nil)
}

// HitProfitStopUserTrade closes an ACTIVATED trade on profit-stop hit.
func (s *Service) HitProfitStopUserTrade(ctx context.Context, id int64) error {
	return s.closeUserTrade(ctx, id, models.CloseReasonStopLossHit, nil)
}

func (s *Service) closeUserTrade(ctx context.Context, id int64, reason models.CloseReason, exitPrice *decimal.Decimal) error {
	var (
		alreadyHandled bool
		snapshot       *models.UserTrade
	)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		trade, err := s.tradeRepo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		snapshot = trade
		if trade.Status != models.UserTradeActivated {
			alreadyHandled = true
			return nil
		}

		now := time.Now()
		if exitPrice != nil {
			trade.ExitPrice = exitPrice
		} else {
			trade.ExitPrice = decimalPtr(trade.StopLoss)
		}
		trade.Status = models.UserTradeClosed
		trade.ClosedAt = &now
		trade.OpenSizePct = decimal.Zero
		trade.ProfitStop.Active = false
		if err := s.tradeRepo.Update(ctx, tx, trade); err != nil {
			return err
		}
		return s.tradeRepo.AppendEvent(ctx, tx, &models.UserTradeEvent{
			UserTradeID: id,
			Type:        models.EventFinalClose,
			Timestamp:   now,
			Data:        models.EventData{"reason": string(reason)},
		})
	})
	if err != nil || alreadyHandled {
		return err
	}

	s.index.RemoveFor(models.EntityUserTrade, id)
	s.notifyPrivate(ctx, tradeNotifyChannel(snapshot), "Position closed: "+string(reason))
	return nil
}

// UpdateUserTradeStopLoss mirrors UpdateRecommendationStopLoss.
func (s *Service) UpdateUserTradeStopLoss(ctx context.Context, id int64, newSL decimal.Decimal) error {
	return s.mutateUserTrade(ctx, id, models.EventSLUpdated, models.EventData{"stop_loss": newSL.String()}, func(trade *models.UserTrade) error {
		trade.StopLoss = newSL
		return nil
	})
}

// UpdateUserTradeEntry is only valid before activation.
func (s *Service) UpdateUserTradeEntry(ctx context.Context, id int64, newEntry decimal.Decimal) error {
	return s.mutateUserTradeIf(ctx, id, models.UserTradePendingActivation, models.EventEntryUpdated, models.EventData{"entry": newEntry.String()}, func(trade *models.UserTrade) error {
		trade.Entry = newEntry
		return nil
	})
}

// UpdateUserTradeTargets replaces the target ladder.
func (s *Service) UpdateUserTradeTargets(ctx context.Context, id int64, targets models.TargetList) error {
	return s.mutateUserTrade(ctx, id, models.EventTPUpdated, nil, func(trade *models.UserTrade) error {
		trade.Targets = targets
		return nil
	})
}

// SetUserTradeExitStrategy updates the post-final-TP behavior.
func (s *Service) SetUserTradeExitStrategy(ctx context.Context, id int64, strategy models.ExitStrategy) error {
	return s.mutateUserTrade(ctx, id, models.EventExitStrategySet, models.EventData{"exit_strategy": string(strategy)}, func(trade *models.UserTrade) error {
		trade.ExitStrategy = strategy
		return nil
	})
}

// MoveUserTradeSLToBreakEven sets stop-loss to entry plus the fee buffer.
func (s *Service) MoveUserTradeSLToBreakEven(ctx context.Context, id int64) error {
	return s.mutateUserTrade(ctx, id, models.EventSLUpdated, models.EventData{"reason": "break_even"}, func(trade *models.UserTrade) error {
		trade.StopLoss = computeBreakEven(trade.Entry, trade.Side)
		return nil
	})
}

func (s *Service) mutateUserTrade(ctx context.Context, id int64, eventType models.EventType, data models.EventData, mutate func(*models.UserTrade) error) error {
	return s.mutateUserTradeIf(ctx, id, "", eventType, data, mutate)
}

func (s *Service) mutateUserTradeIf(ctx context.Context, id int64, requiredStatus models.UserTradeStatus, eventType models.EventType, data models.EventData, mutate func(*models.UserTrade) error) error {
	var (
		triggers       []models.Trigger
		alreadyHandled bool
	)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		trade, err := s.tradeRepo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if trade.Status == models.UserTradeClosed {
			alreadyHandled = true
			return nil
		}
		if requiredStatus != "" && trade.Status != requiredStatus {
			alreadyHandled = true
			return nil
		}

		if err := mutate(trade); err != nil {
			return err
		}
		if err := s.tradeRepo.Update(ctx, tx, trade); err != nil {
			return err
		}
		if err := s.tradeRepo.AppendEvent(ctx, tx, &models.UserTradeEvent{
			UserTradeID: id,
			Type:        eventType,
			Timestamp:   time.Now(),
			Data:        data,
		}); err != nil {
			return err
		}
		metrics.EventAppends.WithLabelValues(string(models.EntityUserTrade)).Inc()
		metrics.Transitions.WithLabelValues(string(models.EntityUserTrade), string(eventType)).Inc()

		switch trade.Status {
		case models.UserTradeActivated:
			triggers = userTradeActiveTriggers(trade)
		case models.UserTradePendingActivation:
			triggers = []models.Trigger{{
				EntityKind: models.EntityUserTrade,
				EntityID:   trade.ID,
				UserID:     trade.UserID,
				Symbol:     trade.Symbol,
				Side:       trade.Side,
				Type:       models.TriggerEntry,
				Price:      trade.Entry,
				OrderType:  trade.OrderType,
			}}
		}
		return nil
	})
	if err != nil || alreadyHandled {
		return err
	}

	s.index.RemoveFor(models.EntityUserTrade, id)
	if len(triggers) > 0 {
		s.index.AddFor(models.EntityUserTrade, triggers)
	}
	return nil
}

func userTradeActiveTriggers(trade *models.UserTrade) []models.Trigger {
	base := models.Trigger{
		EntityKind: models.EntityUserTrade,
		EntityID:   trade.ID,
		UserID:     trade.UserID,
		Symbol:     trade.Symbol,
		Side:       trade.Side,
	}

	triggers := make([]models.Trigger, 0, 2+len(trade.Targets))
	sl := base
	sl.Type = models.TriggerSL
	sl.Price = trade.StopLoss
	triggers = append(triggers, sl)

	if models.ProfitStop(trade.ProfitStop).Enabled() {
		ps := base
		ps.Type = models.TriggerProfitStop
		ps.Price = trade.ProfitStop.Price
		triggers = append(triggers, ps)
	}

	for i, t := range trade.Targets {
		tp := base
		tp.Type = models.TriggerTakeProfit
		tp.Index = i + 1
		tp.Price = t.Price
		triggers = append(triggers, tp)
	}

	return triggers
}

func hasTakeProfitHitEventUT(events []*models.UserTradeEvent, index int) bool {
	for _, ev := range events {
		if ev.Type != models.EventTakeProfitHit {
			continue
		}
		if eventIndex, ok := eventDataIndex(ev.Data); ok && eventIndex == index {
			return true
		}
	}
	return false
}

// tradeNotifyChannel resolves the owning user's chat ID for a private
// lifecycle notification. Personal trades always have an owner, so this
// has no nil guard the way recNotifyChannel does for optional ChannelID.
func tradeNotifyChannel(trade *models.UserTrade) int64 {
	return trade.UserID
}
