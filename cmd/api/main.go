package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/stablestation/backend/internal/actions"
	"github.com/stablestation/backend/internal/auth"
	"github.com/stablestation/backend/internal/cache"
	"github.com/stablestation/backend/internal/config"
	"github.com/stablestation/backend/internal/kits"
	"github.com/stablestation/backend/internal/middleware"
	"github.com/stablestation/backend/internal/payments"
	"github.com/stablestation/backend/internal/router"
	"github.com/stablestation/backend/internal/store"
	"github.com/stablestation/backend/migrations"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Cannot reach PostgreSQL (connection refused or invalid). Ensure Postgres is running, e.g. docker-compose up -d", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	slog.Info("Connected to PostgreSQL database successfully!")

	if err := store.RunMigrations(cfg.DatabaseURL, migrations.FS); err != nil {
		slog.Error("Schema migrations failed", "error", err)
		os.Exit(1)
	}

	// River migrations
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed. If the error is 'connection refused', start PostgreSQL first", "error", err)
		os.Exit(1)
	}
	slog.Info("River migrations applied")

	// Cache: Redis when configured, in-process otherwise.
	var kitCache cache.Cache
	if cfg.RedisAddr != "" {
		redisCache, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			slog.Error("Cannot reach Redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		defer redisCache.Close()
		kitCache = redisCache
		slog.Info("Connected to Redis", "addr", cfg.RedisAddr)
	} else {
		kitCache = cache.NewMemory()
		slog.Info("REDIS_ADDR not set, using in-process cache")
	}

	// Starter-kit and user-action ledgers
	kitsRepo := kits.NewRepository(pool)
	kitsSvc := kits.NewService(kitsRepo, kitCache)
	kitsHandler := kits.NewHandler(kitsSvc, logger)

	actionsRepo := actions.NewRepository(pool)
	actionsSvc := actions.NewService(actionsRepo)
	actionsHandler := actions.NewHandler(actionsSvc, logger)

	// Payments: insert func is set after the River client is created (breaks init cycle)
	var insertMu sync.Mutex
	var insertFn payments.InsertFulfillChargeTxFunc
	insertFulfillCharge := func(ctx context.Context, tx pgx.Tx, args payments.FulfillChargeArgs) error {
		insertMu.Lock()
		fn := insertFn
		insertMu.Unlock()
		if fn == nil {
			panic("river insert not wired")
		}
		return fn(ctx, tx, args)
	}

	paymentsRepo := payments.NewRepository(pool)
	paymentsHandler := payments.NewHandler(paymentsRepo, insertFulfillCharge, cfg.WebhookSecret, logger)

	workers := river.NewWorkers()
	river.AddWorker(workers, payments.NewFulfillChargeWorker(kitsSvc, logger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	insertMu.Lock()
	insertFn = func(ctx context.Context, tx pgx.Tx, args payments.FulfillChargeArgs) error {
		_, err := riverClient.InsertTx(ctx, tx, args, nil)
		return err
	}
	insertMu.Unlock()

	// Auth
	authRepo := auth.NewRepository(pool)
	authSvc := auth.NewService(authRepo, cfg.JWTSecret)
	authHandler := auth.NewHandler(authSvc, logger)

	authMW := middleware.Auth(authSvc)
	apiRouter := router.New(authHandler, kitsHandler, actionsHandler, paymentsHandler, authMW)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", payments.SignatureHeader},
		AllowCredentials: true,
	}).Handler(apiRouter)

	// Start River client (processes fulfillment jobs)
	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	serverAddr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	slog.Info("Starting HTTP server", "addr", serverAddr)
	if err := http.ListenAndServe(serverAddr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
