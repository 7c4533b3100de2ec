package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/escrow-storefront/backend/internal/config"
	"github.com/escrow-storefront/backend/internal/db"
	"github.com/escrow-storefront/backend/internal/escrow"
	"github.com/escrow-storefront/backend/internal/events"
	"github.com/escrow-storefront/backend/internal/paystack"
	"github.com/escrow-storefront/backend/internal/repositories"
	"github.com/escrow-storefront/backend/internal/services"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// references younger than this may still be on the payment page
	settleAfter = 5 * time.Minute
	batchSize   = 50
	lastRunKey  = "reconciler:last_run"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	if err := cfg.RequirePaystack(); err != nil {
		log.Fatal("reconciler cannot start", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	publisher := events.NewRedisPublisher(rdb, log)
	engine, err := escrow.NewEngine(repositories.NewEscrowStore(pool), cfg.PlatformFeePercent, publisher, log)
	if err != nil {
		log.Fatal("invalid escrow configuration", zap.Error(err))
	}

	paymentService := services.NewPaymentService(
		paystack.NewClient(cfg.PaystackBaseURL, cfg.PaystackSecretKey, log),
		engine,
		repositories.NewTransactionRepo(pool),
		repositories.NewWalletRepo(pool),
		services.NewRedisProcessedCache(rdb, "paystack"),
		services.PaymentConfig{
			SecretKey:       cfg.PaystackSecretKey,
			PublicKey:       cfg.PaystackPublicKey,
			DefaultCurrency: cfg.DefaultCurrency,
			FrontendURL:     cfg.FrontendURL,
		},
		log,
	)

	log.Info("reconciler started", zap.Duration("interval", cfg.ReconcileInterval))

	ticker := time.NewTicker(cfg.ReconcileInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			runReconcile(ctx, paymentService, rdb, log)
		case <-sigCh:
			log.Info("shutting down reconciler")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

func runReconcile(ctx context.Context, paymentService *services.PaymentService, rdb *redis.Client, log *zap.Logger) {
	started := time.Now()
	stats, err := paymentService.Reconcile(ctx, settleAfter, batchSize)
	if err != nil {
		log.Error("reconcile pass failed", zap.Error(err))
		return
	}

	if stats.Checked > 0 {
		log.Info("reconcile pass",
			zap.Int("checked", stats.Checked),
			zap.Int("captured", stats.Captured),
			zap.Int("topped_up", stats.ToppedUp),
			zap.Int("skipped", stats.Skipped),
			zap.Int("failed", stats.Failed),
			zap.Duration("took", time.Since(started)),
		)
	}

	// last run summary for the ops dashboard
	if err := rdb.HSet(ctx, lastRunKey,
		"at", started.UTC().Format(time.RFC3339),
		"checked", stats.Checked,
		"captured", stats.Captured,
		"topped_up", stats.ToppedUp,
		"failed", stats.Failed,
	).Err(); err != nil {
		log.Warn("failed to record reconcile run", zap.Error(err))
	}
}
