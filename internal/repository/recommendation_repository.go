package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/errs"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/models"
)

const recommendationColumns = `id, analyst_id, channel_id, symbol, side, entry, stop_loss, targets,
	order_type, status, open_size_percent, exit_strategy, profit_stop, exit_price, is_shadow,
	created_at, activated_at, closed_at, updated_at`

// RecommendationRepository is the data access layer for analyst recommendations.
type RecommendationRepository struct {
	db *sql.DB
}

func NewRecommendationRepository(db *sql.DB) *RecommendationRepository {
	return &RecommendationRepository{db: db}
}

// Create inserts a new recommendation, shadow or published, and populates
// its generated fields.
func (r *RecommendationRepository) Create(ctx context.Context, rec *models.Recommendation) error {
	query := `
		INSERT INTO recommendations (analyst_id, channel_id, symbol, side, entry, stop_loss, targets,
			order_type, status, open_size_percent, exit_strategy, profit_stop, exit_price, is_shadow)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		rec.AnalystID, rec.ChannelID, rec.Symbol, rec.Side, rec.Entry, rec.StopLoss, rec.Targets,
		rec.OrderType, rec.Status, rec.OpenSizePct, rec.ExitStrategy, rec.ProfitStop, rec.ExitPrice, rec.IsShadow,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
}

func (r *RecommendationRepository) scanRow(row *sql.Row) (*models.Recommendation, error) {
	rec := &models.Recommendation{}
	err := row.Scan(
		&rec.ID, &rec.AnalystID, &rec.ChannelID, &rec.Symbol, &rec.Side, &rec.Entry, &rec.StopLoss, &rec.Targets,
		&rec.OrderType, &rec.Status, &rec.OpenSizePct, &rec.ExitStrategy, &rec.ProfitStop, &rec.ExitPrice, &rec.IsShadow,
		&rec.CreatedAt, &rec.ActivatedAt, &rec.ClosedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrRecommendationNotFound
		}
		return nil, err
	}
	return rec, nil
}

// GetByID returns a recommendation without locking it.
func (r *RecommendationRepository) GetByID(ctx context.Context, id int64) (*models.Recommendation, error) {
	query := `SELECT ` + recommendationColumns + ` FROM recommendations WHERE id = $1`
	return r.scanRow(r.db.QueryRowContext(ctx, query, id))
}

// GetForUpdate locks the row within tx for the duration of a Lifecycle
// transition, per §4.5's row-lock transactional pattern.
func (r *RecommendationRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*models.Recommendation, error) {
	query := `SELECT ` + recommendationColumns + ` FROM recommendations WHERE id = $1 FOR UPDATE`
	rec := &models.Recommendation{}
	err := tx.QueryRowContext(ctx, query, id).Scan(
		&rec.ID, &rec.AnalystID, &rec.ChannelID, &rec.Symbol, &rec.Side, &rec.Entry, &rec.StopLoss, &rec.Targets,
		&rec.OrderType, &rec.Status, &rec.OpenSizePct, &rec.ExitStrategy, &rec.ProfitStop, &rec.ExitPrice, &rec.IsShadow,
		&rec.CreatedAt, &rec.ActivatedAt, &rec.ClosedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrRecommendationNotFound
		}
		return nil, err
	}
	return rec, nil
}

// Update persists every mutable field of rec within tx, used by every
// Lifecycle transition after it has locked the row.
func (r *RecommendationRepository) Update(ctx context.Context, tx *sql.Tx, rec *models.Recommendation) error {
	query := `
		UPDATE recommendations SET
			symbol = $1, side = $2, entry = $3, stop_loss = $4, targets = $5,
			order_type = $6, status = $7, open_size_percent = $8, exit_strategy = $9,
			profit_stop = $10, exit_price = $11, activated_at = $12, closed_at = $13,
			is_shadow = $14, channel_id = $15, updated_at = now()
		WHERE id = $16
		RETURNING updated_at`

	return tx.QueryRowContext(ctx, query,
		rec.Symbol, rec.Side, rec.Entry, rec.StopLoss, rec.Targets,
		rec.OrderType, rec.Status, rec.OpenSizePct, rec.ExitStrategy,
		rec.ProfitStop, rec.ExitPrice, rec.ActivatedAt, rec.ClosedAt,
		rec.IsShadow, rec.ChannelID, rec.ID,
	).Scan(&rec.UpdatedAt)
}

// ListLive returns every non-terminal recommendation, the universe the
// Trigger Index rebuilds its derived triggers from.
func (r *RecommendationRepository) ListLive(ctx context.Context) ([]*models.Recommendation, error) {
	query := `SELECT ` + recommendationColumns + ` FROM recommendations WHERE status != $1`
	rows, err := r.db.QueryContext(ctx, query, models.RecommendationClosed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Recommendation
	for rows.Next() {
		rec := &models.Recommendation{}
		if err := rows.Scan(
			&rec.ID, &rec.AnalystID, &rec.ChannelID, &rec.Symbol, &rec.Side, &rec.Entry, &rec.StopLoss, &rec.Targets,
			&rec.OrderType, &rec.Status, &rec.OpenSizePct, &rec.ExitStrategy, &rec.ProfitStop, &rec.ExitPrice, &rec.IsShadow,
			&rec.CreatedAt, &rec.ActivatedAt, &rec.ClosedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// AppendEvent appends one row to the recommendation's immutable event log.
func (r *RecommendationRepository) AppendEvent(ctx context.Context, tx *sql.Tx, ev *models.RecommendationEvent) error {
	query := `
		INSERT INTO recommendation_events (recommendation_id, type, timestamp, data)
		VALUES ($1, $2, now(), $3)
		RETURNING id, timestamp`
	return tx.QueryRowContext(ctx, query, ev.RecommendationID, ev.Type, ev.Data).Scan(&ev.ID, &ev.Timestamp)
}

// ListEvents returns a recommendation's event log in chronological order.
func (r *RecommendationRepository) ListEvents(ctx context.Context, recommendationID int64) ([]*models.RecommendationEvent, error) {
	query := `SELECT id, recommendation_id, type, timestamp, data FROM recommendation_events
		WHERE recommendation_id = $1 ORDER BY timestamp ASC`
	rows, err := r.db.QueryContext(ctx, query, recommendationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.RecommendationEvent
	for rows.Next() {
		ev := &models.RecommendationEvent{}
		if err := rows.Scan(&ev.ID, &ev.RecommendationID, &ev.Type, &ev.Timestamp, &ev.Data); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
