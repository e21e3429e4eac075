package models

// Side задаёт направление сделки.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// OrderType описывает тип ордера на вход.
type OrderType string

const (
	OrderTypeMarket     OrderType = "MARKET"
	OrderTypeLimit      OrderType = "LIMIT"
	OrderTypeStopMarket OrderType = "STOP_MARKET"
)

// RecommendationStatus - статусы рекомендации аналитика.
type RecommendationStatus string

const (
	RecommendationPending RecommendationStatus = "PENDING"
	RecommendationActive  RecommendationStatus = "ACTIVE"
	RecommendationClosed  RecommendationStatus = "CLOSED"
)

// UserTradeStatus - статусы личной копии сделки подписчика.
type UserTradeStatus string

const (
	UserTradeWatchlist         UserTradeStatus = "WATCHLIST"
	UserTradePendingActivation UserTradeStatus = "PENDING_ACTIVATION"
	UserTradeActivated         UserTradeStatus = "ACTIVATED"
	UserTradeClosed            UserTradeStatus = "CLOSED"
)

// ExitStrategy определяет поведение после последнего тейк-профита.
type ExitStrategy string

const (
	ExitStrategyCloseAtFinalTP   ExitStrategy = "CLOSE_AT_FINAL_TP"
	ExitStrategyManualCloseOnly  ExitStrategy = "MANUAL_CLOSE_ONLY"
)

// ProfitStopMode выбирает поведение защитного профит-стопа.
type ProfitStopMode string

const (
	ProfitStopNone     ProfitStopMode = "NONE"
	ProfitStopFixed    ProfitStopMode = "FIXED"
	ProfitStopTrailing ProfitStopMode = "TRAILING"
)

// TrailingUnit снимает двусмысленность единиц trailing-значения (см. DESIGN.md, Open Question c).
type TrailingUnit string

const (
	TrailingUnitPercent  TrailingUnit = "PERCENT"
	TrailingUnitAbsolute TrailingUnit = "ABSOLUTE"
)

// EntityKind различает семейства сущностей, прогоняемые через общий жизненный цикл.
type EntityKind string

const (
	EntityRecommendation EntityKind = "RECOMMENDATION"
	EntityUserTrade      EntityKind = "USER_TRADE"
)

// TriggerType — тип ценового триггера, производного от состояния сущности.
type TriggerType string

const (
	TriggerEntry       TriggerType = "ENTRY"
	TriggerSL          TriggerType = "SL"
	TriggerProfitStop  TriggerType = "PROFIT_STOP"
	TriggerTakeProfit  TriggerType = "TP"
)

// EventType перечисляет типы строк в неизменяемом журнале событий сущности.
type EventType string

const (
	EventCreatedShadow  EventType = "CREATED_SHADOW"
	EventCreatedActive  EventType = "CREATED_ACTIVE"
	EventCreatedWatched EventType = "CREATED_WATCHLIST"
	EventActivated      EventType = "ACTIVATED"
	EventInvalidated    EventType = "INVALIDATED"
	EventTakeProfitHit  EventType = "TP_HIT"
	EventStopLossHit    EventType = "SL_HIT"
	EventPartial        EventType = "PARTIAL"
	EventSLUpdated      EventType = "SL_UPDATED"
	EventTPUpdated      EventType = "TP_UPDATED"
	EventEntryUpdated   EventType = "ENTRY_UPDATED"
	EventExitStrategySet EventType = "EXIT_STRATEGY_SET"
	EventFinalClose     EventType = "FINAL_CLOSE"
)

// CloseReason documents why a Close transition happened, carried in a FINAL_CLOSE event's data payload.
type CloseReason string

const (
	CloseReasonAutoFinalTP   CloseReason = "AUTO_CLOSE_FINAL_TP"
	CloseReasonViaPartial    CloseReason = "CLOSED_VIA_PARTIAL"
	CloseReasonStopLossHit   CloseReason = "SL_HIT"
	CloseReasonManualClose   CloseReason = "MANUAL_CLOSE"
)

// Source identifies the exchange that produced a tick.
type Source string

const (
	SourceBinance Source = "BINANCE"
	SourceBybit   Source = "BYBIT"
)
