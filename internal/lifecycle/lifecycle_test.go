package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"

	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/config"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/models"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// fakeRecRepo is an in-memory stand-in for RecommendationRepositoryInterface;
// GetForUpdate/Update/AppendEvent ignore the *sql.Tx argument entirely since
// locking semantics are the real repository's concern, not the Service's.
type fakeRecRepo struct {
	mu     sync.Mutex
	recs   map[int64]*models.Recommendation
	events map[int64][]*models.RecommendationEvent
}

func newFakeRecRepo(recs ...*models.Recommendation) *fakeRecRepo {
	f := &fakeRecRepo{recs: map[int64]*models.Recommendation{}, events: map[int64][]*models.RecommendationEvent{}}
	for _, r := range recs {
		f.recs[r.ID] = r
	}
	return f
}

func (f *fakeRecRepo) Create(ctx context.Context, rec *models.Recommendation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs[rec.ID] = rec
	return nil
}

func (f *fakeRecRepo) GetByID(ctx context.Context, id int64) (*models.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.recs[id]
	if !ok {
		return nil, errors.New("not found")
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
		if !r.IsTerminal() {
			out = append(out, r)
		}
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

// fakeTradeRepo mirrors fakeRecRepo for UserTrade.
type fakeTradeRepo struct {
	mu     sync.Mutex
	trades map[int64]*models.UserTrade
	events map[int64][]*models.UserTradeEvent
}

func newFakeTradeRepo(trades ...*models.UserTrade) *fakeTradeRepo {
	f := &fakeTradeRepo{trades: map[int64]*models.UserTrade{}, events: map[int64][]*models.UserTradeEvent{}}
	for _, t := range trades {
		f.trades[t.ID] = t
	}
	return f
}

func (f *fakeTradeRepo) Create(ctx context.Context, t *models.UserTrade) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trades[t.ID] = t
	return nil
}

func (f *fakeTradeRepo) GetByID(ctx context.Context, id int64) (*models.UserTrade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trades[id]
	if !ok {
		return nil, errors.New("not found")
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
		if !t.IsTerminal() {
			out = append(out, t)
		}
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

// fakeIndex records every AddFor/RemoveFor call the Service makes post-commit.
type fakeIndex struct {
	mu      sync.Mutex
	added   [][]models.Trigger
	removed []models.EntityKind
}

func (f *fakeIndex) AddFor(kind models.EntityKind, triggers []models.Trigger) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, triggers)
}

func (f *fakeIndex) RemoveFor(kind models.EntityKind, entityID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, kind)
}

func (f *fakeIndex) lastAdded() []models.Trigger {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.added) == 0 {
		return nil
	}
	return f.added[len(f.added)-1]
}

// fakeNotifier is a no-op Notifier that records calls for assertions.
type fakeNotifier struct {
	mu    sync.Mutex
	posts []string
}

func (f *fakeNotifier) PostReply(ctx context.Context, channelID int64, messageID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, text)
	return nil
}

func (f *fakeNotifier) SendPrivateText(ctx context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, text)
	return nil
}

// newTestService builds a Service backed by a sqlmock *sql.DB (so withTx's
// BeginTx/Commit calls succeed) plus in-memory fakes for everything else.
// Each lifecycle operation under test performs exactly one transaction, so
// callers should queue one ExpectBegin/ExpectCommit pair per call.
func newTestService(t *testing.T, recRepo *fakeRecRepo, tradeRepo *fakeTradeRepo) (*Service, sqlmock.Sqlmock, *fakeIndex, *fakeNotifier) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	idx := &fakeIndex{}
	notifier := &fakeNotifier{}
	svc := New(db, recRepo, tradeRepo, idx, notifier, config.LifecycleConfig{})
	return svc, mock, idx, notifier
}

func expectTx(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectCommit()
}
