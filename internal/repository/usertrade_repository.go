package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/errs"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/models"
)

const userTradeColumns = `id, user_id, watched_channel_id, source_recommendation_id, source_forwarded_text,
	symbol, side, entry, stop_loss, targets, order_type, status, open_size_percent, exit_strategy,
	profit_stop, exit_price, created_at, activated_at, closed_at, updated_at`

// UserTradeRepository is the data access layer for a subscriber's personal tracked trades.
type UserTradeRepository struct {
	db *sql.DB
}

func NewUserTradeRepository(db *sql.DB) *UserTradeRepository {
	return &UserTradeRepository{db: db}
}

func (r *UserTradeRepository) Create(ctx context.Context, t *models.UserTrade) error {
	query := `
		INSERT INTO user_trades (user_id, watched_channel_id, source_recommendation_id, source_forwarded_text,
			symbol, side, entry, stop_loss, targets, order_type, status, open_size_percent, exit_strategy,
			profit_stop, exit_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		t.UserID, t.WatchedChannelID, t.SourceRecommendationID, t.SourceForwardedText,
		t.Symbol, t.Side, t.Entry, t.StopLoss, t.Targets, t.OrderType, t.Status, t.OpenSizePct, t.ExitStrategy,
		t.ProfitStop, t.ExitPrice,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

func scanUserTrade(scan func(...interface{}) error) (*models.UserTrade, error) {
	t := &models.UserTrade{}
	err := scan(
		&t.ID, &t.UserID, &t.WatchedChannelID, &t.SourceRecommendationID, &t.SourceForwardedText,
		&t.Symbol, &t.Side, &t.Entry, &t.StopLoss, &t.Targets, &t.OrderType, &t.Status, &t.OpenSizePct, &t.ExitStrategy,
		&t.ProfitStop, &t.ExitPrice, &t.CreatedAt, &t.ActivatedAt, &t.ClosedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrUserTradeNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *UserTradeRepository) GetByID(ctx context.Context, id int64) (*models.UserTrade, error) {
	query := `SELECT ` + userTradeColumns + ` FROM user_trades WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)
	return scanUserTrade(row.Scan)
}

// GetForUpdate locks the row within tx for a Lifecycle transition.
func (r *UserTradeRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*models.UserTrade, error) {
	query := `SELECT ` + userTradeColumns + ` FROM user_trades WHERE id = $1 FOR UPDATE`
	row := tx.QueryRowContext(ctx, query, id)
	return scanUserTrade(row.Scan)
}

func (r *UserTradeRepository) Update(ctx context.Context, tx *sql.Tx, t *models.UserTrade) error {
	query := `
		UPDATE user_trades SET
			symbol = $1, side = $2, entry = $3, stop_loss = $4, targets = $5,
			order_type = $6, status = $7, open_size_percent = $8, exit_strategy = $9,
			profit_stop = $10, exit_price = $11, activated_at = $12, closed_at = $13, updated_at = now()
		WHERE id = $14
		RETURNING updated_at`

	return tx.QueryRowContext(ctx, query,
		t.Symbol, t.Side, t.Entry, t.StopLoss, t.Targets,
		t.OrderType, t.Status, t.OpenSizePct, t.ExitStrategy,
		t.ProfitStop, t.ExitPrice, t.ActivatedAt, t.ClosedAt, t.ID,
	).Scan(&t.UpdatedAt)
}

// ListLive returns every non-terminal user trade.
func (r *UserTradeRepository) ListLive(ctx context.Context) ([]*models.UserTrade, error) {
	query := `SELECT ` + userTradeColumns + ` FROM user_trades WHERE status != $1`
	rows, err := r.db.QueryContext(ctx, query, models.UserTradeClosed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.UserTrade
	for rows.Next() {
		t, err := scanUserTrade(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *UserTradeRepository) AppendEvent(ctx context.Context, tx *sql.Tx, ev *models.UserTradeEvent) error {
	query := `
		INSERT INTO user_trade_events (user_trade_id, type, timestamp, data)
		VALUES ($1, $2, now(), $3)
		RETURNING id, timestamp`
	return tx.QueryRowContext(ctx, query, ev.UserTradeID, ev.Type, ev.Data).Scan(&ev.ID, &ev.Timestamp)
}

func (r *UserTradeRepository) ListEvents(ctx context.Context, userTradeID int64) ([]*models.UserTradeEvent, error) {
	query := `SELECT id, user_trade_id, type, timestamp, data FROM user_trade_events
		WHERE user_trade_id = $1 ORDER BY timestamp ASC`
	rows, err := r.db.QueryContext(ctx, query, userTradeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.UserTradeEvent
	for rows.Next() {
		ev := &models.UserTradeEvent{}
		if err := rows.Scan(&ev.ID, &ev.UserTradeID, &ev.Type, &ev.Timestamp, &ev.Data); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
