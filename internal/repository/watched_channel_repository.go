package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/errs"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/models"
)

// WatchedChannelRepository tracks the external broadcast channels a user
// forwards signals from, the provenance behind a forwarded-text UserTrade.
type WatchedChannelRepository struct {
	db *sql.DB
}

func NewWatchedChannelRepository(db *sql.DB) *WatchedChannelRepository {
	return &WatchedChannelRepository{db: db}
}

func (r *WatchedChannelRepository) Create(ctx context.Context, c *models.WatchedChannel) error {
	query := `
		INSERT INTO watched_channels (user_id, platform_channel_id, display_name)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, query, c.UserID, c.PlatformChannelID, c.DisplayName).
		Scan(&c.ID, &c.CreatedAt)
}

func (r *WatchedChannelRepository) GetByID(ctx context.Context, id int64) (*models.WatchedChannel, error) {
	query := `SELECT id, user_id, platform_channel_id, display_name, created_at FROM watched_channels WHERE id = $1`
	c := &models.WatchedChannel{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.UserID, &c.PlatformChannelID, &c.DisplayName, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrWatchedChannelNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *WatchedChannelRepository) ListByUser(ctx context.Context, userID int64) ([]*models.WatchedChannel, error) {
	query := `SELECT id, user_id, platform_channel_id, display_name, created_at
		FROM watched_channels WHERE user_id = $1 ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.WatchedChannel
	for rows.Next() {
		c := &models.WatchedChannel{}
		if err := rows.Scan(&c.ID, &c.UserID, &c.PlatformChannelID, &c.DisplayName, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
