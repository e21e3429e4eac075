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

// ActivateRecommendation transitions PENDING -> ACTIVE on an ENTRY hit,
// unless the same tick already breached the stop-loss (the SL-before-ENTRY
// gap case), in which case it invalidates instead.
func (s *Service) ActivateRecommendation(ctx context.Context, id int64, tick exchange.Tick) error {
	var (
		invalidated    bool
		alreadyHandled bool
		triggers       []models.Trigger
		snapshot       *models.Recommendation
	)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rec, err := s.recRepo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		snapshot = rec
		if rec.Status != models.RecommendationPending {
			alreadyHandled = true
			return nil // already transitioned; idempotent no-op
		}

		now := time.Now()

		if entryGapsPastStopLoss(rec.Side, rec.StopLoss, tick.Low, tick.High) {
			invalidated = true
			rec.Status = models.RecommendationClosed
			rec.ExitPrice = decimalPtr(rec.StopLoss)
			rec.ClosedAt = &now
			rec.OpenSizePct = decimal.Zero
			if err := s.recRepo.Update(ctx, tx, rec); err != nil {
				return err
			}
			return s.recRepo.AppendEvent(ctx, tx, &models.RecommendationEvent{
				RecommendationID: id,
				Type:             models.EventInvalidated,
				Timestamp:        now,
				Data:             models.EventData{"reason": "sl_before_entry"},
			})
		}

		rec.Status = models.RecommendationActive
		rec.ActivatedAt = &now
		if err := s.recRepo.Update(ctx, tx, rec); err != nil {
			return err
		}
		if err := s.recRepo.AppendEvent(ctx, tx, &models.RecommendationEvent{
			RecommendationID: id,
			Type:             models.EventActivated,
			Timestamp:        now,
		}); err != nil {
			return err
		}

		triggers = recommendationActiveTriggers(rec)
		return nil
	})
	if err != nil || alreadyHandled {
		return err
	}

	s.index.RemoveFor(models.EntityRecommendation, id)
	if invalidated {
		s.notifyReply(ctx, recNotifyChannel(snapshot), "Recommendation invalidated: stop-loss breached before entry filled")
		return nil
	}
	if len(triggers) > 0 {
		s.index.AddFor(models.EntityRecommendation, triggers)
	}
	s.notifyReply(ctx, recNotifyChannel(snapshot), "Recommendation activated")
	return nil
}

// InvalidateRecommendation transitions PENDING -> CLOSED with zero PnL, used
// when the stop-loss is hit before the entry ever fills.
func (s *Service) InvalidateRecommendation(ctx context.Context, id int64) error {
	var (
		alreadyHandled bool
		snapshot       *models.Recommendation
	)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rec, err := s.recRepo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		snapshot = rec
		if rec.Status != models.RecommendationPending {
			alreadyHandled = true
			return nil
		}

		now := time.Now()
		rec.Status = models.RecommendationClosed
		rec.ClosedAt = &now
		rec.OpenSizePct = decimal.Zero
		if err := s.recRepo.Update(ctx, tx, rec); err != nil {
			return err
		}
		return s.recRepo.AppendEvent(ctx, tx, &models.RecommendationEvent{
			RecommendationID: id,
			Type:             models.EventInvalidated,
			Timestamp:        now,
		})
	})
	if err != nil || alreadyHandled {
		return err
	}

	s.index.RemoveFor(models.EntityRecommendation, id)
	s.notifyReply(ctx, recNotifyChannel(snapshot), "Recommendation invalidated")
	return nil
}

// HitTakeProfitRecommendation handles a TP{n} hit: idempotent on repeat,
// appends a TP_HIT event carrying the target index, partially closes the target's share, and escalates to
// a full close when the exit strategy or remaining size calls for it.
func (s *Service) HitTakeProfitRecommendation(ctx context.Context, id int64, index int) error {
	var (
		alreadyHandled bool
		fullClose      bool
		closeReason    models.CloseReason
		triggers       []models.Trigger
		removeFirst    bool
		snapshot       *models.Recommendation
	)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rec, err := s.recRepo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		snapshot = rec
		if rec.Status != models.RecommendationActive {
			alreadyHandled = true
			return nil
		}

		events, err := s.recRepo.ListEvents(ctx, id)
		if err != nil {
			return err
		}
		if hasTakeProfitHitEvent(events, index) {
			alreadyHandled = true
			return nil
		}

		if index < 1 || index > len(rec.Targets) {
			alreadyHandled = true
			return nil
		}
		target := rec.Targets[index-1]
		now := time.Now()

		if err := s.recRepo.AppendEvent(ctx, tx, &models.RecommendationEvent{
			RecommendationID: id,
			Type:             models.EventTakeProfitHit,
			Timestamp:        now,
			Data:             models.EventData{"index": index, "price": target.Price.String()},
		}); err != nil {
			return err
		}

		if target.ClosePercent.GreaterThan(decimal.Zero) {
			result := computePartialClose(rec.Side, rec.Entry, target.Price, rec.OpenSizePct, target.ClosePercent)
			rec.OpenSizePct = result.NewOpenPct
			if err := s.recRepo.Update(ctx, tx, rec); err != nil {
				return err
			}
			if err := s.recRepo.AppendEvent(ctx, tx, &models.RecommendationEvent{
				RecommendationID: id,
				Type:             models.EventPartial,
				Timestamp:        now,
				Data:             models.EventData{"close_percent": target.ClosePercent.String(), "pnl_percent": result.PnLPercent.String()},
			}); err != nil {
				return err
			}
			if result.IsDust {
				fullClose = true
				closeReason = models.CloseReasonViaPartial
			}
		}

		if shouldAutoCloseOnFinalTarget(rec.ExitStrategy, index, len(rec.Targets)) {
			fullClose = true
			closeReason = models.CloseReasonAutoFinalTP
		}

		if fullClose {
			rec.Status = models.RecommendationClosed
			rec.ExitPrice = decimalPtr(target.Price)
			rec.ClosedAt = &now
			rec.OpenSizePct = decimal.Zero
			rec.ProfitStop.Active = false
			if err := s.recRepo.Update(ctx, tx, rec); err != nil {
				return err
			}
			if err := s.recRepo.AppendEvent(ctx, tx, &models.RecommendationEvent{
				RecommendationID: id,
				Type:             models.EventFinalClose,
				Timestamp:        now,
				Data:             models.EventData{"reason": string(closeReason)},
			}); err != nil {
				return err
			}
			removeFirst = true
		} else {
			triggers = recommendationActiveTriggers(rec)
		}

		return nil
	})
	if err != nil || alreadyHandled {
		return err
	}

	if removeFirst {
		s.index.RemoveFor(models.EntityRecommendation, id)
	} else if len(triggers) > 0 {
		s.index.RemoveFor(models.EntityRecommendation, id)
		s.index.AddFor(models.EntityRecommendation, triggers)
	}

	s.notifyReply(ctx, recNotifyChannel(snapshot), "Take-profit hit")
	return nil
}

// CloseRecommendation is the manual close operation: a user-initiated exit
// at the given price, independent of any trigger hit.
func (s *Service) CloseRecommendation(ctx context.Context, id int64, exitPrice decimal.Decimal) error {
	return s.closeRecommendation(ctx, id, models.CloseReasonManualClose, &exitPrice)
}

// HitStopLossRecommendation closes an ACTIVE recommendation on SL hit.
func (s *Service) HitStopLossRecommendation(ctx context.Context, id int64) error {
	return s.closeRecommendation(ctx, id, models.CloseReasonStopLossHit, nil)
}

// HitProfitStopRecommendation closes an ACTIVE recommendation on the
// protective profit-stop hit (same terminal effect as a stop-loss hit, just
// triggered by the trailing/fixed profit-stop price instead of the original SL).
func (s *Service) HitProfitStopRecommendation(ctx context.Context, id int64) error {
	return s.closeRecommendation(ctx, id, models.CloseReasonStopLossHit, nil)
}

// closeRecommendation is the shared Close transition: ACTIVE -> CLOSED,
// recording exit price, clearing open size, deactivating the profit stop.
func (s *Service) closeRecommendation(ctx context.Context, id int64, reason models.CloseReason, exitPrice *decimal.Decimal) error {
	var (
		alreadyHandled bool
		snapshot       *models.Recommendation
	)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rec, err := s.recRepo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		snapshot = rec
		if rec.Status != models.RecommendationActive {
			alreadyHandled = true
			return nil
		}

		now := time.Now()
		if exitPrice != nil {
			rec.ExitPrice = exitPrice
		} else {
			rec.ExitPrice = decimalPtr(rec.StopLoss)
		}
		rec.Status = models.RecommendationClosed
		rec.ClosedAt = &now
		rec.OpenSizePct = decimal.Zero
		rec.ProfitStop.Active = false
		if err := s.recRepo.Update(ctx, tx, rec); err != nil {
			return err
		}
		return s.recRepo.AppendEvent(ctx, tx, &models.RecommendationEvent{
			RecommendationID: id,
			Type:             models.EventFinalClose,
			Timestamp:        now,
			Data:             models.EventData{"reason": string(reason)},
		})
	})
	if err != nil || alreadyHandled {
		return err
	}

	s.index.RemoveFor(models.EntityRecommendation, id)
	s.notifyReply(ctx, recNotifyChannel(snapshot), "Position closed: "+string(reason))
	return nil
}

// UpdateRecommendationStopLoss applies a new stop-loss without validating
// it, then refreshes the entity's triggers.
func (s *Service) UpdateRecommendationStopLoss(ctx context.Context, id int64, newSL decimal.Decimal) error {
	return s.mutateRecommendation(ctx, id, models.EventSLUpdated, models.EventData{"stop_loss": newSL.String()}, func(rec *models.Recommendation) error {
		rec.StopLoss = newSL
		return nil
	})
}

// UpdateRecommendationEntry is only valid while PENDING.
func (s *Service) UpdateRecommendationEntry(ctx context.Context, id int64, newEntry decimal.Decimal) error {
	return s.mutateRecommendationIf(ctx, id, models.RecommendationPending, models.EventEntryUpdated, models.EventData{"entry": newEntry.String()}, func(rec *models.Recommendation) error {
		rec.Entry = newEntry
		return nil
	})
}

// UpdateRecommendationTargets replaces the target ladder and refreshes triggers.
func (s *Service) UpdateRecommendationTargets(ctx context.Context, id int64, targets models.TargetList) error {
	return s.mutateRecommendation(ctx, id, models.EventTPUpdated, nil, func(rec *models.Recommendation) error {
		rec.Targets = targets
		return nil
	})
}

// SetRecommendationExitStrategy updates the post-final-TP behavior.
func (s *Service) SetRecommendationExitStrategy(ctx context.Context, id int64, strategy models.ExitStrategy) error {
	return s.mutateRecommendation(ctx, id, models.EventExitStrategySet, models.EventData{"exit_strategy": string(strategy)}, func(rec *models.Recommendation) error {
		rec.ExitStrategy = strategy
		return nil
	})
}

// MoveRecommendationSLToBreakEven sets stop-loss to entry plus the
// configured fee buffer on the profit side.
func (s *Service) MoveRecommendationSLToBreakEven(ctx context.Context, id int64) error {
	return s.mutateRecommendation(ctx, id, models.EventSLUpdated, models.EventData{"reason": "break_even"}, func(rec *models.Recommendation) error {
		rec.StopLoss = computeBreakEven(rec.Entry, rec.Side)
		return nil
	})
}

// mutateRecommendation re-reads, applies mutate under lock, appends the
// event, and republishes triggers — the shared shape behind every "Update
// SL/Entry/Targets/ExitStrategy" operation that doesn't change status.
func (s *Service) mutateRecommendation(ctx context.Context, id int64, eventType models.EventType, data models.EventData, mutate func(*models.Recommendation) error) error {
	return s.mutateRecommendationIf(ctx, id, "", eventType, data, mutate)
}

func (s *Service) mutateRecommendationIf(ctx context.Context, id int64, requiredStatus models.RecommendationStatus, eventType models.EventType, data models.EventData, mutate func(*models.Recommendation) error) error {
	var (
		triggers       []models.Trigger
		alreadyHandled bool
	)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rec, err := s.recRepo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if rec.Status == models.RecommendationClosed {
			alreadyHandled = true
			return nil
		}
		if requiredStatus != "" && rec.Status != requiredStatus {
			alreadyHandled = true
			return nil
		}

		if err := mutate(rec); err != nil {
			return err
		}
		if err := s.recRepo.Update(ctx, tx, rec); err != nil {
			return err
		}
		if err := s.recRepo.AppendEvent(ctx, tx, &models.RecommendationEvent{
			RecommendationID: id,
			Type:             eventType,
			Timestamp:        time.Now(),
			Data:             data,
		}); err != nil {
			return err
		}
		metrics.EventAppends.WithLabelValues(string(models.EntityRecommendation)).Inc()
		metrics.Transitions.WithLabelValues(string(models.EntityRecommendation), string(eventType)).Inc()

		if rec.Status == models.RecommendationActive {
			triggers = recommendationActiveTriggers(rec)
		} else if rec.Status == models.RecommendationPending {
			triggers = []models.Trigger{{
				EntityKind: models.EntityRecommendation,
				EntityID:   rec.ID,
				UserID:     rec.AnalystID,
				Symbol:     rec.Symbol,
				Side:       rec.Side,
				Type:       models.TriggerEntry,
				Price:      rec.Entry,
				OrderType:  rec.OrderType,
			}}
		}
		return nil
	})
	if err != nil || alreadyHandled {
		return err
	}

	s.index.RemoveFor(models.EntityRecommendation, id)
	if len(triggers) > 0 {
		s.index.AddFor(models.EntityRecommendation, triggers)
	}
	return nil
}

func recommendationActiveTriggers(rec *models.Recommendation) []models.Trigger {
	base := models.Trigger{
		EntityKind: models.EntityRecommendation,
		EntityID:   rec.ID,
		UserID:     rec.AnalystID,
		Symbol:     rec.Symbol,
		Side:       rec.Side,
	}

	triggers := make([]models.Trigger, 0, 2+len(rec.Targets))
	sl := base
	sl.Type = models.TriggerSL
	sl.Price = rec.StopLoss
	triggers = append(triggers, sl)

	if models.ProfitStop(rec.ProfitStop).Enabled() {
		ps := base
		ps.Type = models.TriggerProfitStop
		ps.Price = rec.ProfitStop.Price
		triggers = append(triggers, ps)
	}

	for i, t := range rec.Targets {
		tp := base
		tp.Type = models.TriggerTakeProfit
		tp.Index = i + 1
		tp.Price = t.Price
		triggers = append(triggers, tp)
	}

	return triggers
}

func hasTakeProfitHitEvent(events []*models.RecommendationEvent, index int) bool {
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

// eventDataIndex extracts the "index" field jsoniter decoded as float64 into
// the event's free-form jsonb payload.
func eventDataIndex(data models.EventData) (int, bool) {
	raw, ok := data["index"]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

func decimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}

// recNotifyChannel resolves which broadcast channel to post a lifecycle
// reply to; recommendations published to no channel (shadow, or a channel
// never confirmed) simply get no notification, handled by notifyReply's
// channelID == 0 guard.
func recNotifyChannel(rec *models.Recommendation) int64 {
	if rec.ChannelID == nil {
		return 0
	}
	return *rec.ChannelID
}
