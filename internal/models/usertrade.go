package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserTrade is a subscriber's personal tracked copy of a signal: same shape as
// Recommendation minus the publishing concern, with its own status taxonomy.
type UserTrade struct {
	ID                     int64            `json:"id" db:"id"`
	UserID                 int64            `json:"user_id" db:"user_id"`
	WatchedChannelID       *int64           `json:"watched_channel_id,omitempty" db:"watched_channel_id"`
	SourceRecommendationID *int64           `json:"source_recommendation_id,omitempty" db:"source_recommendation_id"`
	SourceForwardedText    string           `json:"source_forwarded_text,omitempty" db:"source_forwarded_text"`
	Symbol                 string           `json:"symbol" db:"symbol"`
	Side                   Side             `json:"side" db:"side"`
	Entry                  decimal.Decimal  `json:"entry" db:"entry"`
	StopLoss               decimal.Decimal  `json:"stop_loss" db:"stop_loss"`
	Targets                TargetList       `json:"targets" db:"targets"`
	OrderType              OrderType        `json:"order_type" db:"order_type"`
	Status                 UserTradeStatus  `json:"status" db:"status"`
	OpenSizePct            decimal.Decimal  `json:"open_size_percent" db:"open_size_percent"`
	ExitStrategy           ExitStrategy     `json:"exit_strategy" db:"exit_strategy"`
	ProfitStop             ProfitStopColumn `json:"profit_stop" db:"profit_stop"`
	ExitPrice              *decimal.Decimal `json:"exit_price,omitempty" db:"exit_price"`
	CreatedAt              time.Time        `json:"created_at" db:"created_at"`
	ActivatedAt            *time.Time       `json:"activated_at,omitempty" db:"activated_at"`
	ClosedAt               *time.Time       `json:"closed_at,omitempty" db:"closed_at"`
	UpdatedAt              time.Time        `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether the trade currently holds an open position.
func (u *UserTrade) IsActive() bool {
	return u.Status == UserTradeActivated
}

// IsTerminal reports whether no further transitions are possible.
func (u *UserTrade) IsTerminal() bool {
	return u.Status == UserTradeClosed
}

// IsPendingEntry reports whether the trade is still awaiting its ENTRY trigger.
func (u *UserTrade) IsPendingEntry() bool {
	return u.Status == UserTradeWatchlist || u.Status == UserTradePendingActivation
}

// UserTradeEvent is one append-only row in a UserTrade's event log.
type UserTradeEvent struct {
	ID          int64     `json:"id" db:"id"`
	UserTradeID int64     `json:"user_trade_id" db:"user_trade_id"`
	Type        EventType `json:"type" db:"type"`
	Timestamp   time.Time `json:"timestamp" db:"timestamp"`
	Data        EventData `json:"data" db:"data"`
}

// WatchedChannel links a UserTrade's forwarding provenance to a broadcast channel.
type WatchedChannel struct {
	ID                int64     `json:"id" db:"id"`
	UserID            int64     `json:"user_id" db:"user_id"`
	PlatformChannelID string    `json:"platform_channel_id" db:"platform_channel_id"`
	DisplayName       string    `json:"display_name" db:"display_name"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}
