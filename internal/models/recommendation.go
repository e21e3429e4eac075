package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Recommendation is an analyst's signal, published to one or more broadcast channels.
//
// db tags follow the lineage's column-naming convention (snake_case, explicit
// even where it mirrors the Go field name) so the repository layer can scan
// rows positionally without a separate mapping table.
type Recommendation struct {
	ID             int64                `json:"id" db:"id"`
	AnalystID      int64                `json:"analyst_id" db:"analyst_id"`
	ChannelID      *int64               `json:"channel_id,omitempty" db:"channel_id"`
	Symbol         string               `json:"symbol" db:"symbol"`
	Side           Side                 `json:"side" db:"side"`
	Entry          decimal.Decimal      `json:"entry" db:"entry"`
	StopLoss       decimal.Decimal      `json:"stop_loss" db:"stop_loss"`
	Targets        TargetList           `json:"targets" db:"targets"`
	OrderType      OrderType            `json:"order_type" db:"order_type"`
	Status         RecommendationStatus `json:"status" db:"status"`
	OpenSizePct    decimal.Decimal      `json:"open_size_percent" db:"open_size_percent"`
	ExitStrategy   ExitStrategy         `json:"exit_strategy" db:"exit_strategy"`
	ProfitStop     ProfitStopColumn     `json:"profit_stop" db:"profit_stop"`
	ExitPrice      *decimal.Decimal     `json:"exit_price,omitempty" db:"exit_price"`
	IsShadow       bool                 `json:"is_shadow" db:"is_shadow"`
	CreatedAt      time.Time            `json:"created_at" db:"created_at"`
	ActivatedAt    *time.Time           `json:"activated_at,omitempty" db:"activated_at"`
	ClosedAt       *time.Time           `json:"closed_at,omitempty" db:"closed_at"`
	UpdatedAt      time.Time            `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether the recommendation currently holds an open position.
func (r *Recommendation) IsActive() bool {
	return r.Status == RecommendationActive
}

// IsTerminal reports whether no further transitions are possible.
func (r *Recommendation) IsTerminal() bool {
	return r.Status == RecommendationClosed
}

// RecommendationEvent is one append-only row in a Recommendation's event log.
type RecommendationEvent struct {
	ID              int64     `json:"id" db:"id"`
	RecommendationID int64    `json:"recommendation_id" db:"recommendation_id"`
	Type            EventType `json:"type" db:"type"`
	Timestamp       time.Time `json:"timestamp" db:"timestamp"`
	Data            EventData `json:"data" db:"data"`
}

// PublishedMessage maps a Recommendation to one rendered card on a broadcast channel.
type PublishedMessage struct {
	ID               int64     `json:"id" db:"id"`
	RecommendationID int64     `json:"recommendation_id" db:"recommendation_id"`
	ChannelID        int64     `json:"channel_id" db:"channel_id"`
	MessageID        string    `json:"message_id" db:"message_id"`
	PublishedAt      time.Time `json:"published_at" db:"published_at"`
}
