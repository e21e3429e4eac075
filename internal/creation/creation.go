// Package creation validates and persists new Recommendations and
// UserTrades. Recommendations follow a shadow-then-publish protocol: the
// row commits immediately with is_shadow=true, and a detached background
// task fans out to every target channel before the entity becomes visible
// to the rest of the core.
package creation

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/errs"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/models"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/notifier"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/repository"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/pkg/utils"
)

// PriceFetcher resolves a live price for MARKET-order entry, satisfied by
// internal/aggregator.Aggregator's LatestPrice without either package
// importing the other's concrete type.
type PriceFetcher interface {
	LatestPrice(symbol string) (decimal.Decimal, bool)
}

// TriggerAdder is the narrow write side of the Trigger Index Creation needs:
// only adding triggers for a freshly published entity, never removing.
type TriggerAdder interface {
	AddFor(kind models.EntityKind, triggers []models.Trigger)
}

// CardPoster is the subset of notifier.Client the background publish task
// calls, declared locally per this module's no-import-cycle convention.
type CardPoster interface {
	PostToChannel(ctx context.Context, channelID int64, view notifier.RecommendationView, keyboard notifier.Keyboard) (string, error)
}

// PublishTarget names one channel a new Recommendation should be posted to.
type PublishTarget struct {
	ChannelID   int64
	AnalystName string
}

// Config controls timeouts for the detached background publish task.
type Config struct {
	PublishTimeout time.Duration
}

// Service implements Recommendation and UserTrade creation.
type Service struct {
	cfg           Config
	db            *sql.DB
	recRepo       repository.RecommendationRepositoryInterface
	tradeRepo     repository.UserTradeRepositoryInterface
	publishedRepo repository.PublishedMessageRepositoryInterface
	channelRepo   repository.WatchedChannelRepositoryInterface
	prices        PriceFetcher
	index         TriggerAdder
	poster        CardPoster
	log           *utils.Logger
}

func New(
	cfg Config,
	db *sql.DB,
	recRepo repository.RecommendationRepositoryInterface,
	tradeRepo repository.UserTradeRepositoryInterface,
	publishedRepo repository.PublishedMessageRepositoryInterface,
	channelRepo repository.WatchedChannelRepositoryInterface,
	prices PriceFetcher,
	index TriggerAdder,
	poster CardPoster,
) *Service {
	return &Service{
		cfg:           cfg,
		db:            db,
		recRepo:       recRepo,
		tradeRepo:     tradeRepo,
		publishedRepo: publishedRepo,
		channelRepo:   channelRepo,
		prices:        prices,
		index:         index,
		poster:        poster,
		log:           utils.L().WithComponent("creation"),
	}
}

// withTx is the same thin alias internal/lifecycle uses: every method that
// needs to pair a row write with an event-log append runs one transaction.
func (s *Service) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return repository.WithTx(ctx, s.db, fn)
}

// NewRecommendationInput carries everything an analyst supplies to create a
// new signal, before entry is resolved for MARKET orders.
type NewRecommendationInput struct {
	AnalystID      int64
	AnalystName    string
	Symbol         string
	Side           models.Side
	OrderType      models.OrderType
	Entry          decimal.Decimal // ignored for MARKET orders
	StopLoss       decimal.Decimal
	Targets        models.TargetList
	ExitStrategy   models.ExitStrategy
	ProfitStop     models.ProfitStop
	PublishTargets []PublishTarget
}

// CreateRecommendation validates the input, resolves a live entry price for
// MARKET orders, and persists the recommendation as a shadow row. A MARKET
// order fills immediately, so it is created ACTIVE with its SL/TP trigger
// set rather than PENDING with an ENTRY trigger; a LIMIT order waits for
// price to reach Entry, so it stays PENDING. It launches the background
// publish task and returns as soon as the shadow row commits — publish
// latency never blocks the caller.
func (s *Service) CreateRecommendation(ctx context.Context, in NewRecommendationInput) (*models.Recommendation, error) {
	entry := in.Entry
	isMarket := in.OrderType == models.OrderTypeMarket
	if isMarket {
		price, ok := s.prices.LatestPrice(in.Symbol)
		if !ok {
			return nil, fmt.Errorf("creation: no live price available for %s", in.Symbol)
		}
		entry = price
	}

	status := models.RecommendationPending
	if isMarket {
		status = models.RecommendationActive
	}

	rec := &models.Recommendation{
		AnalystID:    in.AnalystID,
		Symbol:       in.Symbol,
		Side:         in.Side,
		Entry:        entry,
		StopLoss:     in.StopLoss,
		Targets:      in.Targets,
		OrderType:    in.OrderType,
		Status:       status,
		OpenSizePct:  decimal.NewFromInt(100),
		ExitStrategy: in.ExitStrategy,
		ProfitStop:   models.ProfitStopColumn(in.ProfitStop),
		IsShadow:     true,
	}

	if err := validateRecommendation(rec); err != nil {
		return nil, err
	}

	if err := s.recRepo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("creation: persisting recommendation: %w", err)
	}

	eventType := models.EventCreatedShadow
	if isMarket {
		eventType = models.EventCreatedActive
	}
	if err := s.withTx(ctx, func(tx *sql.Tx) error {
		return s.recRepo.AppendEvent(ctx, tx, &models.RecommendationEvent{
			RecommendationID: rec.ID,
			Type:             eventType,
			Timestamp:        time.Now(),
		})
	}); err != nil {
		s.log.Warn("failed to append creation event", utils.Err(err))
	}

	go s.publish(context.WithoutCancel(ctx), rec, in.PublishTargets)

	return rec, nil
}

// publish is the detached background task: post the card to every target
// channel in parallel, record each PublishedMessage, add the entity's
// triggers to the index, and clear is_shadow.
func (s *Service) publish(ctx context.Context, rec *models.Recommendation, targets []PublishTarget) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.PublishTimeout)
	defer cancel()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		okCount int
	)

	for _, target := range targets {
		wg.Add(1)
		go func(target PublishTarget) {
			defer wg.Done()

			view := notifier.RecommendationView{Recommendation: rec, AnalystName: target.AnalystName}
			messageID, err := s.poster.PostToChannel(ctx, target.ChannelID, view, nil)
			if err != nil {
				s.log.Warn("publish to channel failed",
					utils.String("symbol", rec.Symbol), utils.Err(err))
				return
			}

			if err := s.publishedRepo.Create(ctx, &models.PublishedMessage{
				RecommendationID: rec.ID,
				ChannelID:        target.ChannelID,
				MessageID:        messageID,
				PublishedAt:      time.Now(),
			}); err != nil {
				s.log.Warn("recording published message failed", utils.Err(err))
				return
			}

			mu.Lock()
			okCount++
			mu.Unlock()
		}(target)
	}

	wg.Wait()

	if okCount == 0 && len(targets) > 0 {
		s.log.Error("recommendation published to no channel", utils.String("symbol", rec.Symbol))
		return
	}

	if rec.Status == models.RecommendationActive {
		s.index.AddFor(models.EntityRecommendation, recommendationActiveTriggers(rec))
	} else {
		s.index.AddFor(models.EntityRecommendation, recommendationEntryTrigger(rec))
	}

	rec.IsShadow = false
	if err := s.withTx(ctx, func(tx *sql.Tx) error {
		return s.recRepo.Update(ctx, tx, rec)
	}); err != nil {
		s.log.Warn("clearing is_shadow failed", utils.Err(err))
	}
}

// FindOrCreateWatchedChannel resolves the WatchedChannel a forwarded
// UserTrade references, by the chat platform's own channel identifier,
// creating one on first sight. Called by the caller wiring a forwarded
// message into NewUserTradeInput.WatchedChannelID before CreateUserTrade.
func (s *Service) FindOrCreateWatchedChannel(ctx context.Context, userID int64, platformChannelID, displayName string) (*models.WatchedChannel, error) {
	existing, err := s.channelRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("creation: listing watched channels: %w", err)
	}
	for _, ch := range existing {
		if ch.PlatformChannelID == platformChannelID {
			return ch, nil
		}
	}

	ch := &models.WatchedChannel{
		UserID:            userID,
		PlatformChannelID: platformChannelID,
		DisplayName:       displayName,
	}
	if err := s.channelRepo.Create(ctx, ch); err != nil {
		return nil, fmt.Errorf("creation: creating watched channel: %w", err)
	}
	return ch, nil
}

// NewUserTradeInput carries a subscriber's personal copy of a signal,
// optionally sourced from a forwarded chat message.
type NewUserTradeInput struct {
	UserID                 int64
	WatchedChannelID       *int64
	SourceRecommendationID *int64
	SourceForwardedText    string
	Symbol                 string
	Side                   models.Side
	OrderType              models.OrderType
	Entry                  decimal.Decimal
	StopLoss               decimal.Decimal
	Targets                models.TargetList
	ExitStrategy           models.ExitStrategy
	ProfitStop             models.ProfitStop
	Watchlist              bool // true: status WATCHLIST; false: PENDING_ACTIVATION
}

// CreateUserTrade validates and persists a personal trade copy, adding its
// ENTRY trigger immediately if the caller requested PENDING_ACTIVATION
// (a WATCHLIST entry holds no trigger until the subscriber promotes it).
func (s *Service) CreateUserTrade(ctx context.Context, in NewUserTradeInput) (*models.UserTrade, error) {
	status := models.UserTradeWatchlist
	if !in.Watchlist {
		status = models.UserTradePendingActivation
	}

	trade := &models.UserTrade{
		UserID:                 in.UserID,
		WatchedChannelID:       in.WatchedChannelID,
		SourceRecommendationID: in.SourceRecommendationID,
		SourceForwardedText:    in.SourceForwardedText,
		Symbol:                 in.Symbol,
		Side:                   in.Side,
		Entry:                  in.Entry,
		StopLoss:               in.StopLoss,
		Targets:                in.Targets,
		OrderType:              in.OrderType,
		Status:                 status,
		OpenSizePct:            decimal.NewFromInt(100),
		ExitStrategy:           in.ExitStrategy,
		ProfitStop:             models.ProfitStopColumn(in.ProfitStop),
	}

	if err := validateUserTrade(trade); err != nil {
		return nil, err
	}

	if err := s.tradeRepo.Create(ctx, trade); err != nil {
		return nil, fmt.Errorf("creation: persisting user trade: %w", err)
	}

	eventType := models.EventCreatedWatched
	if status == models.UserTradePendingActivation {
		eventType = models.EventCreatedActive
	}
	if err := s.withTx(ctx, func(tx *sql.Tx) error {
		return s.tradeRepo.AppendEvent(ctx, tx, &models.UserTradeEvent{
			UserTradeID: trade.ID,
			Type:        eventType,
			Timestamp:   time.Now(),
		})
	}); err != nil {
		s.log.Warn("failed to append creation event", utils.Err(err))
	}

	if status == models.UserTradePendingActivation {
		s.index.AddFor(models.EntityUserTrade, userTradeEntryTrigger(trade))
	}

	return trade, nil
}

func recommendationEntryTrigger(rec *models.Recommendation) []models.Trigger {
	return []models.Trigger{{
		EntityKind: models.EntityRecommendation,
		EntityID:   rec.ID,
		UserID:     rec.AnalystID,
		Symbol:     rec.Symbol,
		Side:       rec.Side,
		Type:       models.TriggerEntry,
		Price:      rec.Entry,
		OrderType:  rec.OrderType,
	}}
}

// recommendationActiveTriggers builds the SL/PROFIT_STOP/TP-per-target set a
// freshly-filled MARKET recommendation needs in the index, mirroring
// internal/lifecycle's post-activation trigger set.
func recommendationActiveTriggers(rec *models.Recommendation) []models.Trigger {
	base := models.Trigger{
		EntityKind: models.EntityRecommendation,
		EntityID:   rec.ID,
		UserID:     rec.AnalystID,
		Symbol:     rec.Symbol,
		Side:       rec.Side,
	}

	triggers := make([]models.Trigger, 0, 2+len(rec.Targets))
	sl := base
	sl.Type = models.TriggerSL
	sl.Price = rec.StopLoss
	triggers = append(triggers, sl)

	if models.ProfitStop(rec.ProfitStop).Enabled() {
		ps := base
		ps.Type = models.TriggerProfitStop
		ps.Price = rec.ProfitStop.Price
		triggers = append(triggers, ps)
	}

	for i, t := range rec.Targets {
		tp := base
		tp.Type = models.TriggerTakeProfit
		tp.Index = i + 1
		tp.Price = t.Price
		triggers = append(triggers, tp)
	}

	return triggers
}

func userTradeEntryTrigger(trade *models.UserTrade) []models.Trigger {
	return []models.Trigger{{
		EntityKind: models.EntityUserTrade,
		EntityID:   trade.ID,
		UserID:     trade.UserID,
		Symbol:     trade.Symbol,
		Side:       trade.Side,
		Type:       models.TriggerEntry,
		Price:      trade.Entry,
		OrderType:  trade.OrderType,
	}}
}

func validateRecommendation(rec *models.Recommendation) error {
	if err := validatePriceLadder(rec.Side, rec.Entry, rec.StopLoss, rec.Targets); err != nil {
		return err
	}
	return nil
}

func validateUserTrade(trade *models.UserTrade) error {
	return validatePriceLadder(trade.Side, trade.Entry, trade.StopLoss, trade.Targets)
}

// validatePriceLadder enforces the §3 price-ordering invariants common to
// both entities: finite positive prices, SL on the loss side of entry,
// every target on the profit side, and close percentages summing to ≤100.
func validatePriceLadder(side models.Side, entry, stopLoss decimal.Decimal, targets models.TargetList) error {
	if entry.LessThanOrEqual(decimal.Zero) {
		return errs.NewValidationError("entry", "must be a positive price")
	}
	if stopLoss.LessThanOrEqual(decimal.Zero) {
		return errs.NewValidationError("stop_loss", "must be a positive price")
	}

	sumClose := decimal.Zero
	for i, t := range targets {
		if t.Price.LessThanOrEqual(decimal.Zero) {
			return errs.NewValidationError(fmt.Sprintf("targets[%d].price", i), "must be a positive price")
		}
		sumClose = sumClose.Add(t.ClosePercent)
	}
	if sumClose.GreaterThan(decimal.NewFromInt(100)) {
		return errs.NewValidationError("targets", "close percentages sum to more than 100")
	}

	switch side {
	case models.SideLong:
		if !stopLoss.LessThan(entry) {
			return errs.NewValidationError("stop_loss", "must be below entry for a LONG")
		}
		for i, t := range targets {
			if !t.Price.GreaterThan(entry) {
				return errs.NewValidationError(fmt.Sprintf("targets[%d].price", i), "must be above entry for a LONG")
			}
		}
	case models.SideShort:
		if !stopLoss.GreaterThan(entry) {
			return errs.NewValidationError("stop_loss", "must be above entry for a SHORT")
		}
		for i, t := range targets {
			if !t.Price.LessThan(entry) {
				return errs.NewValidationError(fmt.Sprintf("targets[%d].price", i), "must be below entry for a SHORT")
			}
		}
	default:
		return errs.NewValidationError("side", "must be LONG or SHORT")
	}

	return nil
}
