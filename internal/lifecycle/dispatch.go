package lifecycle

import (
	"context"
	"fmt"

	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/exchange"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/models"
)

// Activate implements evaluator.LifecycleDispatcher, routing an ENTRY hit to
// the Recommendation or UserTrade transition depending on entity kind.
func (s *Service) Activate(ctx context.Context, kind models.EntityKind, entityID int64, tick exchange.Tick) error {
	switch kind {
	case models.EntityRecommendation:
		return s.ActivateRecommendation(ctx, entityID, tick)
	case models.EntityUserTrade:
		return s.ActivateUserTrade(ctx, entityID, tick)
	default:
		return fmt.Errorf("lifecycle: unknown entity kind %q", kind)
	}
}

// Invalidate implements evaluator.LifecycleDispatcher.
func (s *Service) Invalidate(ctx context.Context, kind models.EntityKind, entityID int64) error {
	switch kind {
	case models.EntityRecommendation:
		return s.InvalidateRecommendation(ctx, entityID)
	case models.EntityUserTrade:
		return s.InvalidateUserTrade(ctx, entityID)
	default:
		return fmt.Errorf("lifecycle: unknown entity kind %q", kind)
	}
}

// HitTakeProfit implements evaluator.LifecycleDispatcher.
func (s *Service) HitTakeProfit(ctx context.Context, kind models.EntityKind, entityID int64, index int) error {
	switch kind {
	case models.EntityRecommendation:
		return s.HitTakeProfitRecommendation(ctx, entityID, index)
	case models.EntityUserTrade:
		return s.HitTakeProfitUserTrade(ctx, entityID, index)
	default:
		return fmt.Errorf("lifecycle: unknown entity kind %q", kind)
	}
}

// HitStopLoss implements evaluator.LifecycleDispatcher.
func (s *Service) HitStopLoss(ctx context.Context, kind models.EntityKind, entityID int64) error {
	switch kind {
	case models.EntityRecommendation:
		return s.HitStopLossRecommendation(ctx, entityID)
	case models.EntityUserTrade:
		return s.HitStopLossUserTrade(ctx, entityID)
	default:
		return fmt.Errorf("lifecycle: unknown entity kind %q", kind)
	}
}

// HitProfitStop implements evaluator.LifecycleDispatcher.
func (s *Service) HitProfitStop(ctx context.Context, kind models.EntityKind, entityID int64) error {
	switch kind {
	case models.EntityRecommendation:
		return s.HitProfitStopRecommendation(ctx, entityID)
	case models.EntityUserTrade:
		return s.HitProfitStopUserTrade(ctx, entityID)
	default:
		return fmt.Errorf("lifecycle: unknown entity kind %q", kind)
	}
}
