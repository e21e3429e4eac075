// Package lifecycle is the sole mutator of Recommendations and UserTrades.
// Every transition runs inside a transaction against a row-scoped lock,
// re-reads state, validates, writes the new state plus an event-log row,
// and only afterward — post-commit — touches the Trigger Index and the
// Notifier. A post-commit failure in either is logged, never rolled back.
package lifecycle

import (
	"context"
	"database/sql"

	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/config"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/models"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/repository"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/pkg/utils"
)

// TriggerUpdater is the write side of the Trigger Index Lifecycle depends on.
type TriggerUpdater interface {
	AddFor(kind models.EntityKind, triggers []models.Trigger)
	RemoveFor(kind models.EntityKind, entityID int64)
}

// Notifier is the narrow view of internal/notifier Lifecycle calls into,
// declared locally to avoid a lifecycle->notifier->lifecycle import cycle
// should the notifier package ever need lifecycle types.
type Notifier interface {
	PostReply(ctx context.Context, channelID int64, messageID, text string) error
	SendPrivateText(ctx context.Context, chatID int64, text string) error
}

// Service implements every Recommendation/UserTrade state transition.
type Service struct {
	db        *sql.DB
	recRepo   repository.RecommendationRepositoryInterface
	tradeRepo repository.UserTradeRepositoryInterface
	index     TriggerUpdater
	notifier  Notifier
	cfg       config.LifecycleConfig
	log       *utils.Logger
}

func New(
	db *sql.DB,
	recRepo repository.RecommendationRepositoryInterface,
	tradeRepo repository.UserTradeRepositoryInterface,
	index TriggerUpdater,
	notifier Notifier,
	cfg config.LifecycleConfig,
) *Service {
	if cfg.BreakEvenBufferBPS.IsPositive() {
		breakEvenBufferBPS = cfg.BreakEvenBufferBPS
	}
	return &Service{
		db:        db,
		recRepo:   recRepo,
		tradeRepo: tradeRepo,
		index:     index,
		notifier:  notifier,
		cfg:       cfg,
		log:       utils.L().WithComponent("lifecycle"),
	}
}

// withTx is a thin alias kept so every transition method reads the same way
// regardless of which repository package's WithTx happens to back it.
func (s *Service) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return repository.WithTx(ctx, s.db, fn)
}

// notifyReply sends a post-commit reply for a lifecycle event. It passes no
// message ID, so the reply is posted to the channel on its own and is not
// threaded under the published card. The error is logged and swallowed: the
// Notifier never affects authoritative state.
func (s *Service) notifyReply(ctx context.Context, channelID int64, text string) {
	if s.notifier == nil || channelID == 0 {
		return
	}
	if err := s.notifier.PostReply(ctx, channelID, "", text); err != nil {
		s.log.Warn("notifier post-reply failed", utils.Err(err))
	}
}

// notifyPrivate sends a post-commit private message for a UserTrade
// lifecycle event, mirroring notifyReply's swallow-and-log error handling.
func (s *Service) notifyPrivate(ctx context.Context, chatID int64, text string) {
	if s.notifier == nil || chatID == 0 {
		return
	}
	if err := s.notifier.SendPrivateText(ctx, chatID, text); err != nil {
		s.log.Warn("notifier private-text failed", utils.Err(err))
	}
}
