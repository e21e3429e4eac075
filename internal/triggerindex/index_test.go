package triggerindex

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/models"
)

type fakeRecRepo struct {
	live []*models.Recommendation
}

func (f *fakeRecRepo) Create(ctx context.Context, rec *models.Recommendation) error { return nil }
func (f *fakeRecRepo) GetByID(ctx context.Context, id int64) (*models.Recommendation, error) {
	return nil, nil
}
func (f *fakeRecRepo) GetForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*models.Recommendation, error) {
	return nil, nil
}
func (f *fakeRecRepo) Update(ctx context.Context, tx *sql.Tx, rec *models.Recommendation) error {
	return nil
}
func (f *fakeRecRepo) ListLive(ctx context.Context) ([]*models.Recommendation, error) {
	return f.live, nil
}
func (f *fakeRecRepo) AppendEvent(ctx context.Context, tx *sql.Tx, ev *models.RecommendationEvent) error {
	return nil
}
func (f *fakeRecRepo) ListEvents(ctx context.Context, id int64) ([]*models.RecommendationEvent, error) {
	return nil, nil
}

type fakeTradeRepo struct {
	live []*models.UserTrade
}

func (f *fakeTradeRepo) Create(ctx context.Context, t *models.UserTrade) error { return nil }
func (f *fakeTradeRepo) GetByID(ctx context.Context, id int64) (*models.UserTrade, error) {
	return nil, nil
}
func (f *fakeTradeRepo) GetForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*models.UserTrade, error) {
	return nil, nil
}
func (f *fakeTradeRepo) Update(ctx context.Context, tx *sql.Tx, t *models.UserTrade) error {
	return nil
}
func (f *fakeTradeRepo) ListLive(ctx context.Context) ([]*models.UserTrade, error) {
	return f.live, nil
}
func (f *fakeTradeRepo) AppendEvent(ctx context.Context, tx *sql.Tx, ev *models.UserTradeEvent) error {
	return nil
}
func (f *fakeTradeRepo) ListEvents(ctx context.Context, id int64) ([]*models.UserTradeEvent, error) {
	return nil, nil
}

func testConfig() Config {
	return Config{
		RebuildInterval:   time.Hour,
		RebuildBackoffMin: time.Millisecond,
		RebuildBackoffMax: time.Millisecond,
	}
}

func TestIndexRebuildAndSnapshot(t *testing.T) {
	recs := &fakeRecRepo{live: []*models.Recommendation{
		{ID: 1, Symbol: "BTCUSDT", Status: models.RecommendationPending, Entry: dec("50000"), OrderType: models.OrderTypeLimit},
	}}
	trades := &fakeTradeRepo{}

	idx := New(testConfig(), recs, trades)
	if err := idx.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	snap := idx.Snapshot("BTCUSDT")
	if len(snap) != 1 {
		t.Fatalf("Snapshot() returned %d triggers, want 1", len(snap))
	}

	if len(idx.Snapshot("ETHUSDT")) != 0 {
		t.Error("Snapshot() for untracked symbol should be empty, not nil-panic")
	}
}

func TestIndexRebuildKeepsSamePriceTriggersOfDifferentEntities(t *testing.T) {
	recs := &fakeRecRepo{live: []*models.Recommendation{
		{ID: 1, Symbol: "BTCUSDT", Status: models.RecommendationActive, StopLoss: dec("49000"),
			Targets: models.TargetList{{Price: dec("52000"), ClosePercent: dec("100")}}},
	}}
	trades := &fakeTradeRepo{live: []*models.UserTrade{
		{ID: 1, Symbol: "BTCUSDT", Status: models.UserTradeActivated, StopLoss: dec("49000"),
			Targets: models.TargetList{{Price: dec("52000"), ClosePercent: dec("100")}}},
	}}

	idx := New(testConfig(), recs, trades)
	if err := idx.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	// Recommendation ID 1 and UserTrade ID 1 are different entities (different
	// EntityKind), so both SL triggers survive dedup despite the same price.
	snap := idx.Snapshot("BTCUSDT")
	if len(snap) != 4 {
		t.Fatalf("got %d triggers, want 4 (SL+TP1 per entity)", len(snap))
	}
}

func TestIndexAddForAndRemoveFor(t *testing.T) {
	idx := New(testConfig(), &fakeRecRepo{}, &fakeTradeRepo{})

	trigger := models.Trigger{
		EntityKind: models.EntityRecommendation,
		EntityID:   42,
		Symbol:     "BTCUSDT",
		Type:       models.TriggerSL,
		Price:      dec("49000"),
	}
	idx.AddFor(models.EntityRecommendation, []models.Trigger{trigger})

	if len(idx.Snapshot("BTCUSDT")) != 1 {
		t.Fatalf("AddFor() did not register trigger")
	}

	idx.AddFor(models.EntityRecommendation, []models.Trigger{trigger})
	if len(idx.Snapshot("BTCUSDT")) != 1 {
		t.Error("AddFor() should not duplicate an identical trigger")
	}

	idx.RemoveFor(models.EntityRecommendation, 42)
	if len(idx.Snapshot("BTCUSDT")) != 0 {
		t.Error("RemoveFor() did not clear the entity's triggers")
	}
}
