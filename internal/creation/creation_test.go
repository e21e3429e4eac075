package creation

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"

	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/errs"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/models"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/notifier"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// fakeRecRepo is the same style of in-memory stand-in lifecycle's tests use:
// GetForUpdate/Update/AppendEvent ignore the *sql.Tx, since locking semantics
// are the real repository's concern, not the Service's.
type fakeRecRepo struct {
	mu     sync.Mutex
	nextID int64
	recs   map[int64]*models.Recommendation
	events map[int64][]*models.RecommendationEvent
}

func newFakeRecRepo() *fakeRecRepo {
	return &fakeRecRepo{recs: map[int64]*models.Recommendation{}, events: map[int64][]*models.RecommendationEvent{}}
}

func (f *fakeRecRepo) Create(ctx context.Context, rec *models.Recommendation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	rec.ID = f.nextID
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	f.recs[rec.ID] = rec
	return nil
}

func (f *fakeRecRepo) GetByID(ctx context.Context, id int64) (*models.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.recs[id]
	if !ok {
		return nil, errs.ErrRecommendationNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRecRepo) GetForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*models.Recommendation, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeRecRepo) Update(ctx context.Context, tx *sql.Tx, rec *models.Recommendation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rec
	f.recs[rec.ID] = &cp
	return nil
}

func (f *fakeRecRepo) ListLive(ctx context.Context) ([]*models.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Recommendation
	for _, r := range f.recs {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRecRepo) AppendEvent(ctx context.Context, tx *sql.Tx, ev *models.RecommendationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[ev.RecommendationID] = append(f.events[ev.RecommendationID], ev)
	return nil
}

func (f *fakeRecRepo) ListEvents(ctx context.Context, recommendationID int64) ([]*models.RecommendationEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[recommendationID], nil
}

func (f *fakeRecRepo) snapshot(id int64) *models.Recommendation {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.recs[id]
	if !ok {
		return nil
	}
	cp := *r
	return &cp
}

type fakeTradeRepo struct {
	mu     sync.Mutex
	nextID int64
	trades map[int64]*models.UserTrade
	events map[int64][]*models.UserTradeEvent
}

func newFakeTradeRepo() *fakeTradeRepo {
	return &fakeTradeRepo{trades: map[int64]*models.UserTrade{}, events: map[int64][]*models.UserTradeEvent{}}
}

func (f *fakeTradeRepo) Create(ctx context.Context, t *models.UserTrade) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	t.ID = f.nextID
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	f.trades[t.ID] = t
	return nil
}

func (f *fakeTradeRepo) GetByID(ctx context.Context, id int64) (*models.UserTrade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trades[id]
	if !ok {
		return nil, errs.ErrUserTradeNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTradeRepo) GetForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*models.UserTrade, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeTradeRepo) Update(ctx context.Context, tx *sql.Tx, t *models.UserTrade) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *t
	f.trades[t.ID] = &cp
	return nil
}

func (f *fakeTradeRepo) ListLive(ctx context.Context) ([]*models.UserTrade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.UserTrade
	for _, t := range f.trades {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeTradeRepo) AppendEvent(ctx context.Context, tx *sql.Tx, ev *models.UserTradeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[ev.UserTradeID] = append(f.events[ev.UserTradeID], ev)
	return nil
}

func (f *fakeTradeRepo) ListEvents(ctx context.Context, userTradeID int64) ([]*models.UserTradeEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[userTradeID], nil
}

type fakePublishedRepo struct {
	mu      sync.Mutex
	created []*models.PublishedMessage
}

func (f *fakePublishedRepo) Create(ctx context.Context, m *models.PublishedMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, m)
	return nil
}

func (f *fakePublishedRepo) ListByRecommendation(ctx context.Context, recommendationID int64) ([]*models.PublishedMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.PublishedMessage
	for _, m := range f.created {
		if m.RecommendationID == recommendationID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakePublishedRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

type fakeChannelRepo struct {
	mu       sync.Mutex
	nextID   int64
	channels map[int64]*models.WatchedChannel
}

func newFakeChannelRepo() *fakeChannelRepo {
	return &fakeChannelRepo{channels: map[int64]*models.WatchedChannel{}}
}

func (f *fakeChannelRepo) Create(ctx context.Context, c *models.WatchedChannel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c.ID = f.nextID
	c.CreatedAt = time.Now()
	f.channels[c.ID] = c
	return nil
}

func (f *fakeChannelRepo) GetByID(ctx context.Context, id int64) (*models.WatchedChannel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.channels[id]
	if !ok {
		return nil, errs.ErrWatchedChannelNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeChannelRepo) ListByUser(ctx context.Context, userID int64) ([]*models.WatchedChannel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.WatchedChannel
	for _, c := range f.channels {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

// fakePrices is a PriceFetcher stand-in for internal/aggregator.Aggregator.
type fakePrices struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
}

func (f *fakePrices) LatestPrice(symbol string) (decimal.Decimal, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prices[symbol]
	return p, ok
}

// fakeIndex records every AddFor call the Service makes.
type fakeIndex struct {
	mu    sync.Mutex
	added [][]models.Trigger
}

func (f *fakeIndex) AddFor(kind models.EntityKind, triggers []models.Trigger) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, triggers)
}

func (f *fakeIndex) lastAdded() []models.Trigger {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.added) == 0 {
		return nil
	}
	return f.added[len(f.added)-1]
}

func (f *fakeIndex) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.added)
}

// fakePoster is a CardPoster stand-in for notifier.Client. By channel ID it
// can be configured to fail, letting the partial/total-publish-failure paths
// be exercised without a real HTTP round trip.
type fakePoster struct {
	mu     sync.Mutex
	fail   map[int64]bool
	posted []int64
}

func newFakePoster(failChannels ...int64) *fakePoster {
	fail := map[int64]bool{}
	for _, id := range failChannels {
		fail[id] = true
	}
	return &fakePoster{fail: fail}
}

func (f *fakePoster) PostToChannel(ctx context.Context, channelID int64, view notifier.RecommendationView, keyboard notifier.Keyboard) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[channelID] {
		return "", errors.New("post failed")
	}
	f.posted = append(f.posted, channelID)
	return "msg-1", nil
}

func (f *fakePoster) postedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.posted)
}

// testDeps bundles every dependency newTestService wires, so a test can reach
// into any of them after driving the Service under test.
type testDeps struct {
	recRepo       *fakeRecRepo
	tradeRepo     *fakeTradeRepo
	publishedRepo *fakePublishedRepo
	channelRepo   *fakeChannelRepo
	prices        *fakePrices
	index         *fakeIndex
	poster        *fakePoster
	mock          sqlmock.Sqlmock
}

// newTestService builds a Service backed by a sqlmock *sql.DB, so withTx's
// BeginTx/Commit calls succeed, plus in-memory fakes for everything else.
// CreateRecommendation and CreateUserTrade each perform exactly one
// transaction inline (plus, for CreateRecommendation, a second inside the
// detached publish task), so callers queue one ExpectBegin/ExpectCommit pair
// per transaction; FindOrCreateWatchedChannel runs none.
func newTestService(t *testing.T, poster *fakePoster) (*Service, *testDeps) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	deps := &testDeps{
		recRepo:       newFakeRecRepo(),
		tradeRepo:     newFakeTradeRepo(),
		publishedRepo: &fakePublishedRepo{},
		channelRepo:   newFakeChannelRepo(),
		prices:        &fakePrices{prices: map[string]decimal.Decimal{}},
		index:         &fakeIndex{},
		poster:        poster,
		mock:          mock,
	}
	svc := New(Config{PublishTimeout: time.Second}, db, deps.recRepo, deps.tradeRepo, deps.publishedRepo, deps.channelRepo, deps.prices, deps.index, deps.poster)
	return svc, deps
}

func expectTx(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectCommit()
}

func baseRecInput() NewRecommendationInput {
	return NewRecommendationInput{
		AnalystID:   1,
		AnalystName: "Jane",
		Symbol:      "BTCUSDT",
		Side:        models.SideLong,
		OrderType:   models.OrderTypeLimit,
		Entry:       d("100"),
		StopLoss:    d("90"),
		Targets:     models.TargetList{{Price: d("120"), ClosePercent: d("50")}},
	}
}

func TestCreateRecommendationPersistsShadowRow(t *testing.T) {
	poster := newFakePoster()
	svc, deps := newTestService(t, poster)
	expectTx(deps.mock) // CREATED_SHADOW event
	expectTx(deps.mock) // publish clearing is_shadow (no targets, still runs)

	rec, err := svc.CreateRecommendation(context.Background(), baseRecInput())
	if err != nil {
		t.Fatalf("CreateRecommendation() error = %v", err)
	}
	if !rec.IsShadow {
		t.Fatal("expected IsShadow = true immediately after creation")
	}

	waitForCondition(t, func() bool { return !deps.recRepo.snapshot(rec.ID).IsShadow })
}

func TestCreateRecommendationMarketOrderResolvesEntryFromLivePrice(t *testing.T) {
	poster := newFakePoster()
	svc, deps := newTestService(t, poster)
	deps.prices.prices["BTCUSDT"] = d("105")
	expectTx(deps.mock)
	expectTx(deps.mock)

	in := baseRecInput()
	in.OrderType = models.OrderTypeMarket
	in.Entry = decimal.Zero

	rec, err := svc.CreateRecommendation(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateRecommendation() error = %v", err)
	}
	if !rec.Entry.Equal(d("105")) {
		t.Errorf("entry = %v, want 105 (resolved from live price)", rec.Entry)
	}
}

func TestCreateRecommendationMarketOrderFailsWithoutLivePrice(t *testing.T) {
	poster := newFakePoster()
	svc, _ := newTestService(t, poster)

	in := baseRecInput()
	in.OrderType = models.OrderTypeMarket
	in.Entry = decimal.Zero

	if _, err := svc.CreateRecommendation(context.Background(), in); err == nil {
		t.Fatal("expected an error when no live price is available")
	}
}

func TestCreateRecommendationMarketOrderIsActiveWithSLTPTriggers(t *testing.T) {
	poster := newFakePoster()
	svc, deps := newTestService(t, poster)
	deps.prices.prices["BTCUSDT"] = d("105")
	expectTx(deps.mock) // CREATED_ACTIVE event
	expectTx(deps.mock) // publish clearing is_shadow

	in := baseRecInput()
	in.OrderType = models.OrderTypeMarket
	in.Entry = decimal.Zero

	rec, err := svc.CreateRecommendation(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateRecommendation() error = %v", err)
	}
	if rec.Status != models.RecommendationActive {
		t.Fatalf("status = %v, want ACTIVE (a MARKET order fills at creation)", rec.Status)
	}

	events, err := deps.recRepo.ListEvents(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	if len(events) != 1 || events[0].Type != models.EventCreatedActive {
		t.Fatalf("events = %+v, want a single CREATED_ACTIVE event", events)
	}

	waitForCondition(t, func() bool { return deps.index.count() == 1 })
	triggers := deps.index.lastAdded()
	if len(triggers) != 2 {
		t.Fatalf("triggers = %+v, want SL + one TP per target", triggers)
	}
	if triggers[0].Type != models.TriggerSL {
		t.Errorf("triggers[0].Type = %v, want SL", triggers[0].Type)
	}
	if triggers[1].Type != models.TriggerTakeProfit {
		t.Errorf("triggers[1].Type = %v, want TP", triggers[1].Type)
	}
}

func TestCreateRecommendationRejectsInvalidLadder(t *testing.T) {
	poster := newFakePoster()
	svc, _ := newTestService(t, poster)

	in := baseRecInput()
	in.StopLoss = d("110") // above entry on a LONG: invalid

	_, err := svc.CreateRecommendation(context.Background(), in)
	if err == nil {
		t.Fatal("expected a validation error")
	}
	var ve *errs.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("error = %v, want *errs.ValidationError", err)
	}
}

func TestPublishAddsTriggerAndClearsShadowOnSuccess(t *testing.T) {
	poster := newFakePoster()
	svc, deps := newTestService(t, poster)
	expectTx(deps.mock)
	expectTx(deps.mock)

	in := baseRecInput()
	in.PublishTargets = []PublishTarget{{ChannelID: 555, AnalystName: "Jane"}}

	rec, err := svc.CreateRecommendation(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateRecommendation() error = %v", err)
	}

	waitForCondition(t, func() bool { return deps.index.count() == 1 })
	waitForCondition(t, func() bool { return !deps.recRepo.snapshot(rec.ID).IsShadow })

	if got := deps.publishedRepo.count(); got != 1 {
		t.Errorf("published message count = %d, want 1", got)
	}
	triggers := deps.index.lastAdded()
	if len(triggers) != 1 || triggers[0].Type != models.TriggerEntry {
		t.Fatalf("triggers = %+v, want a single ENTRY trigger", triggers)
	}
}

func TestPublishPartialFailureStillAddsTrigger(t *testing.T) {
	poster := newFakePoster(2) // channel 2 fails to post
	svc, deps := newTestService(t, poster)
	expectTx(deps.mock)
	expectTx(deps.mock)

	in := baseRecInput()
	in.PublishTargets = []PublishTarget{
		{ChannelID: 1, AnalystName: "Jane"},
		{ChannelID: 2, AnalystName: "Jane"},
	}

	rec, err := svc.CreateRecommendation(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateRecommendation() error = %v", err)
	}

	waitForCondition(t, func() bool { return deps.index.count() == 1 })
	waitForCondition(t, func() bool { return !deps.recRepo.snapshot(rec.ID).IsShadow })

	if got := deps.publishedRepo.count(); got != 1 {
		t.Errorf("published message count = %d, want 1 (only channel 1 succeeded)", got)
	}
}

func TestPublishTotalFailureLeavesShadowAndNoTrigger(t *testing.T) {
	poster := newFakePoster(1, 2)
	svc, deps := newTestService(t, poster)
	expectTx(deps.mock) // CREATED_SHADOW event only; publish never reaches its own tx

	in := baseRecInput()
	in.PublishTargets = []PublishTarget{
		{ChannelID: 1, AnalystName: "Jane"},
		{ChannelID: 2, AnalystName: "Jane"},
	}

	rec, err := svc.CreateRecommendation(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateRecommendation() error = %v", err)
	}

	time.Sleep(50 * time.Millisecond) // let the detached publish task run to completion

	if deps.index.count() != 0 {
		t.Error("expected no trigger to be added when every channel post failed")
	}
	if !deps.recRepo.snapshot(rec.ID).IsShadow {
		t.Error("expected the row to remain a shadow when every channel post failed")
	}
}

func baseTradeInput() NewUserTradeInput {
	return NewUserTradeInput{
		UserID:    7,
		Symbol:    "ETHUSDT",
		Side:      models.SideShort,
		OrderType: models.OrderTypeLimit,
		Entry:     d("2000"),
		StopLoss:  d("2100"),
		Targets:   models.TargetList{{Price: d("1800"), ClosePercent: d("100")}},
	}
}

func TestCreateUserTradeWatchlistAddsNoTrigger(t *testing.T) {
	poster := newFakePoster()
	svc, deps := newTestService(t, poster)
	expectTx(deps.mock)

	in := baseTradeInput()
	in.Watchlist = true

	trade, err := svc.CreateUserTrade(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateUserTrade() error = %v", err)
	}
	if trade.Status != models.UserTradeWatchlist {
		t.Errorf("status = %s, want WATCHLIST", trade.Status)
	}
	if deps.index.count() != 0 {
		t.Error("expected no trigger added for a WATCHLIST trade")
	}
}

func TestCreateUserTradePendingActivationAddsTrigger(t *testing.T) {
	poster := newFakePoster()
	svc, deps := newTestService(t, poster)
	expectTx(deps.mock)

	in := baseTradeInput()
	in.Watchlist = false

	trade, err := svc.CreateUserTrade(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateUserTrade() error = %v", err)
	}
	if trade.Status != models.UserTradePendingActivation {
		t.Errorf("status = %s, want PENDING_ACTIVATION", trade.Status)
	}
	if deps.index.count() != 1 {
		t.Fatalf("trigger add count = %d, want 1", deps.index.count())
	}
	triggers := deps.index.lastAdded()
	if len(triggers) != 1 || triggers[0].EntityKind != models.EntityUserTrade {
		t.Fatalf("triggers = %+v, want a single USER_TRADE ENTRY trigger", triggers)
	}
}

func TestCreateUserTradeRejectsInvalidLadder(t *testing.T) {
	poster := newFakePoster()
	svc, _ := newTestService(t, poster)

	in := baseTradeInput()
	in.StopLoss = d("1900") // below entry on a SHORT: invalid

	if _, err := svc.CreateUserTrade(context.Background(), in); err == nil {
		t.Fatal("expected a validation error")
	}
}

func TestFindOrCreateWatchedChannelReusesExistingMatch(t *testing.T) {
	poster := newFakePoster()
	svc, deps := newTestService(t, poster)

	existing := &models.WatchedChannel{UserID: 7, PlatformChannelID: "tg:123", DisplayName: "Alpha Calls"}
	deps.channelRepo.Create(context.Background(), existing)

	got, err := svc.FindOrCreateWatchedChannel(context.Background(), 7, "tg:123", "ignored")
	if err != nil {
		t.Fatalf("FindOrCreateWatchedChannel() error = %v", err)
	}
	if got.ID != existing.ID {
		t.Errorf("got channel %d, want the existing channel %d", got.ID, existing.ID)
	}
	if len(deps.channelRepo.channels) != 1 {
		t.Errorf("channel count = %d, want 1 (no new row created)", len(deps.channelRepo.channels))
	}
}

func TestFindOrCreateWatchedChannelCreatesOnFirstSight(t *testing.T) {
	poster := newFakePoster()
	svc, deps := newTestService(t, poster)

	got, err := svc.FindOrCreateWatchedChannel(context.Background(), 7, "tg:999", "Beta Calls")
	if err != nil {
		t.Fatalf("FindOrCreateWatchedChannel() error = %v", err)
	}
	if got.ID == 0 {
		t.Error("expected a freshly assigned ID")
	}
	if len(deps.channelRepo.channels) != 1 {
		t.Errorf("channel count = %d, want 1", len(deps.channelRepo.channels))
	}
}

func TestValidatePriceLadder(t *testing.T) {
	tests := []struct {
		name     string
		side     models.Side
		entry    decimal.Decimal
		stopLoss decimal.Decimal
		targets  models.TargetList
		wantErr  bool
	}{
		{
			name: "valid long", side: models.SideLong,
			entry: d("100"), stopLoss: d("90"),
			targets: models.TargetList{{Price: d("110"), ClosePercent: d("50")}},
		},
		{
			name: "valid short", side: models.SideShort,
			entry: d("100"), stopLoss: d("110"),
			targets: models.TargetList{{Price: d("90"), ClosePercent: d("50")}},
		},
		{
			name: "long stop loss above entry", side: models.SideLong,
			entry: d("100"), stopLoss: d("105"),
			targets: models.TargetList{{Price: d("110"), ClosePercent: d("50")}},
			wantErr: true,
		},
		{
			name: "long target below entry", side: models.SideLong,
			entry: d("100"), stopLoss: d("90"),
			targets: models.TargetList{{Price: d("95"), ClosePercent: d("50")}},
			wantErr: true,
		},
		{
			name: "short stop loss below entry", side: models.SideShort,
			entry: d("100"), stopLoss: d("95"),
			targets: models.TargetList{{Price: d("90"), ClosePercent: d("50")}},
			wantErr: true,
		},
		{
			name: "zero entry", side: models.SideLong,
			entry: decimal.Zero, stopLoss: d("90"),
			targets: models.TargetList{{Price: d("110"), ClosePercent: d("50")}},
			wantErr: true,
		},
		{
			name: "close percentages oversum", side: models.SideLong,
			entry: d("100"), stopLoss: d("90"),
			targets: models.TargetList{
				{Price: d("110"), ClosePercent: d("60")},
				{Price: d("120"), ClosePercent: d("60")},
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePriceLadder(tt.side, tt.entry, tt.stopLoss, tt.targets)
			if (err != nil) != tt.wantErr {
				t.Errorf("validatePriceLadder() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// waitForCondition polls cond for up to a second, used to observe effects of
// the detached publish goroutine without a fixed sleep.
func waitForCondition(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !cond() {
		t.Fatal("condition not satisfied within timeout")
	}
}
