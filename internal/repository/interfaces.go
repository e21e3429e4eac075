package repository

import (
	"context"
	"database/sql"

	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/models"
)

// RecommendationRepositoryInterface narrows RecommendationRepository to what
// the Lifecycle and Creation services depend on, so tests can substitute a
// fake without pulling in *sql.DB.
type RecommendationRepositoryInterface interface {
	Create(ctx context.Context, rec *models.Recommendation) error
	GetByID(ctx context.Context, id int64) (*models.Recommendation, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*models.Recommendation, error)
	Update(ctx context.Context, tx *sql.Tx, rec *models.Recommendation) error
	ListLive(ctx context.Context) ([]*models.Recommendation, error)
	AppendEvent(ctx context.Context, tx *sql.Tx, ev *models.RecommendationEvent) error
	ListEvents(ctx context.Context, recommendationID int64) ([]*models.RecommendationEvent, error)
}

// UserTradeRepositoryInterface narrows UserTradeRepository for the same reason.
type UserTradeRepositoryInterface interface {
	Create(ctx context.Context, t *models.UserTrade) error
	GetByID(ctx context.Context, id int64) (*models.UserTrade, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*models.UserTrade, error)
	Update(ctx context.Context, tx *sql.Tx, t *models.UserTrade) error
	ListLive(ctx context.Context) ([]*models.UserTrade, error)
	AppendEvent(ctx context.Context, tx *sql.Tx, ev *models.UserTradeEvent) error
	ListEvents(ctx context.Context, userTradeID int64) ([]*models.UserTradeEvent, error)
}

// PublishedMessageRepositoryInterface narrows PublishedMessageRepository.
type PublishedMessageRepositoryInterface interface {
	Create(ctx context.Context, m *models.PublishedMessage) error
	ListByRecommendation(ctx context.Context, recommendationID int64) ([]*models.PublishedMessage, error)
}

// WatchedChannelRepositoryInterface narrows WatchedChannelRepository.
type WatchedChannelRepositoryInterface interface {
	Create(ctx context.Context, c *models.WatchedChannel) error
	GetByID(ctx context.Context, id int64) (*models.WatchedChannel, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.WatchedChannel, error)
}

var (
	_ RecommendationRepositoryInterface = (*RecommendationRepository)(nil)
	_ UserTradeRepositoryInterface      = (*UserTradeRepository)(nil)
	_ PublishedMessageRepositoryInterface = (*PublishedMessageRepository)(nil)
	_ WatchedChannelRepositoryInterface = (*WatchedChannelRepository)(nil)
)
