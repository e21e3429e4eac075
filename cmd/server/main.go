package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/aggregator"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/api"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/config"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/creation"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/evaluator"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/exchange"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/lifecycle"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/notifier"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/repository"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/triggerindex"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/pkg/scheduler"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/pkg/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := utils.InitGlobalLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}).WithComponent("main")

	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatal("failed to connect to store", utils.Err(err))
	}
	defer db.Close()
	log.Info("connected to store")

	recRepo := repository.NewRecommendationRepository(db)
	tradeRepo := repository.NewUserTradeRepository(db)
	publishedRepo := repository.NewPublishedMessageRepository(db)
	channelRepo := repository.NewWatchedChannelRepository(db)

	adapters, err := exchange.NewAll(cfg.Exchange)
	if err != nil {
		log.Fatal("failed to build exchange adapters", utils.Err(err))
	}

	index := triggerindex.New(triggerindex.Config{
		RebuildInterval:   cfg.Trigger.RebuildInterval,
		RebuildBackoffMin: cfg.Trigger.RebuildBackoffMin,
		RebuildBackoffMax: cfg.Trigger.RebuildBackoffMax,
	}, recRepo, tradeRepo)

	agg := aggregator.New(aggregator.Config{
		ReconcileInterval: cfg.Aggregator.ReconcileInterval,
		TickBufferSize:    cfg.Aggregator.TickBufferSize,
	}, adapters, index.Symbols)

	notifierClient := notifier.New(cfg.Notifier)

	lifecycleSvc := lifecycle.New(db, recRepo, tradeRepo, index, notifierClient, cfg.Lifecycle)

	eval := evaluator.New(evaluator.Config{
		DebounceWindow: cfg.Evaluator.DebounceWindow,
	}, index, lifecycleSvc)

	creationSvc := creation.New(
		creation.Config{PublishTimeout: 30 * time.Second},
		db,
		recRepo,
		tradeRepo,
		publishedRepo,
		channelRepo,
		agg,
		index,
		notifierClient,
	)
	sched := scheduler.New()
	sched.Start()

	ctx, cancel := context.WithCancel(context.Background())

	runErrs := make(chan error, 3)
	go func() { runErrs <- agg.Run(ctx, sched) }()
	go func() { runErrs <- index.Run(ctx, sched) }()
	go func() { runErrs <- eval.Run(ctx, agg.Ticks()) }()
	go func() {
		for err := range runErrs {
			if err != nil && err != context.Canceled {
				log.Error("core component exited", utils.Err(err))
			}
		}
	}()

	router := api.SetupRoutes(&api.Dependencies{
		DB:                db,
		Creation:          creationSvc,
		WebhookSecretHash: cfg.Server.WebhookSecretHash,
	})
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("starting ops server", utils.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("ops server failed", utils.Err(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("ops server forced shutdown", utils.Err(err))
	}

	log.Info("shutdown complete")
}

// initDatabase opens and verifies the Postgres connection every repository
// and transition runs against.
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Store.Host,
		cfg.Store.Port,
		cfg.Store.User,
		cfg.Store.Password,
		cfg.Store.Name,
		cfg.Store.SSLMode,
	)

	db, err := sql.Open(cfg.Store.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping store: %w", err)
	}

	return db, nil
}
