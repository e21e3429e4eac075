package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"

	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/errs"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/models"
)

func TestUserTradeRepositoryCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	trade := &models.UserTrade{
		UserID:      7,
		Symbol:      "ETHUSDT",
		Side:        models.SideShort,
		Entry:       decimal.NewFromInt(2000),
		StopLoss:    decimal.NewFromInt(2100),
		OrderType:   models.OrderTypeMarket,
		Status:      models.UserTradeWatchlist,
		OpenSizePct: decimal.NewFromInt(100),
	}

	mock.ExpectQuery(`INSERT INTO user_trades`).
		WithArgs(trade.UserID, trade.WatchedChannelID, trade.SourceRecommendationID, trade.SourceForwardedText,
			trade.Symbol, trade.Side, trade.Entry, trade.StopLoss, trade.Targets, trade.OrderType, trade.Status,
			trade.OpenSizePct, trade.ExitStrategy, trade.ProfitStop, trade.ExitPrice).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(9, time.Now(), time.Now()))

	repo := NewUserTradeRepository(db)
	if err := repo.Create(context.Background(), trade); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if trade.ID != 9 {
		t.Errorf("ID = %d, want 9", trade.ID)
	}
}

func TestUserTradeRepositoryGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM user_trades WHERE id = \$1`).
		WithArgs(int64(1)).
		WillReturnError(sql.ErrNoRows)

	repo := NewUserTradeRepository(db)
	_, err = repo.GetByID(context.Background(), 1)
	if !errors.Is(err, errs.ErrUserTradeNotFound) {
		t.Errorf("GetByID() error = %v, want ErrUserTradeNotFound", err)
	}
}
