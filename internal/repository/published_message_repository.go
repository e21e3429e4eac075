package repository

import (
	"context"
	"database/sql"

	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/models"
)

// PublishedMessageRepository tracks which broadcast channels a recommendation
// has been rendered to, used by Creation's shadow-then-publish fan-out.
type PublishedMessageRepository struct {
	db *sql.DB
}

func NewPublishedMessageRepository(db *sql.DB) *PublishedMessageRepository {
	return &PublishedMessageRepository{db: db}
}

func (r *PublishedMessageRepository) Create(ctx context.Context, m *models.PublishedMessage) error {
	query := `
		INSERT INTO published_messages (recommendation_id, channel_id, message_id)
		VALUES ($1, $2, $3)
		RETURNING id, published_at`
	return r.db.QueryRowContext(ctx, query, m.RecommendationID, m.ChannelID, m.MessageID).
		Scan(&m.ID, &m.PublishedAt)
}

func (r *PublishedMessageRepository) ListByRecommendation(ctx context.Context, recommendationID int64) ([]*models.PublishedMessage, error) {
	query := `SELECT id, recommendation_id, channel_id, message_id, published_at
		FROM published_messages WHERE recommendation_id = $1 ORDER BY published_at ASC`
	rows, err := r.db.QueryContext(ctx, query, recommendationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.PublishedMessage
	for rows.Next() {
		m := &models.PublishedMessage{}
		if err := rows.Scan(&m.ID, &m.RecommendationID, &m.ChannelID, &m.MessageID, &m.PublishedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
