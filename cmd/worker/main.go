package main

import (
	"context"
	"fmt"
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
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const batchSize = 100

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
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

	txRepo := repositories.NewTransactionRepo(pool)
	publisher := events.NewRedisPublisher(rdb, log)
	engine, err := escrow.NewEngine(repositories.NewEscrowStore(pool), cfg.PlatformFeePercent, publisher, log)
	if err != nil {
		log.Fatal("invalid escrow configuration", zap.Error(err))
	}

	// without Paystack credentials, checkouts that reached the provider are
	// never expired since their charge cannot be checked
	var charges services.ChargeSettler
	if err := cfg.RequirePaystack(); err != nil {
		log.Warn("paystack not configured, initialized checkouts will not expire", zap.Error(err))
	} else {
		charges = services.NewPaymentService(
			paystack.NewClient(cfg.PaystackBaseURL, cfg.PaystackSecretKey, log),
			engine,
			txRepo,
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
	}
	timers := services.NewTimerService(txRepo, engine, charges, log)

	go serveMetrics(cfg.WorkerPort, log)

	log.Info("worker started",
		zap.Duration("interval", cfg.WorkerInterval),
		zap.Duration("checkout_expiry", cfg.CheckoutExpiry),
		zap.Duration("auto_release_after", cfg.AutoReleaseAfter),
	)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			runTimers(ctx, timers, cfg, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

func runTimers(ctx context.Context, timers *services.TimerService, cfg *config.Config, log *zap.Logger) {
	if stats, err := timers.ExpireCheckouts(ctx, cfg.CheckoutExpiry, batchSize); err != nil {
		log.Error("checkout expiry failed", zap.Error(err))
	} else if stats.Checked > 0 {
		log.Info("checkout expiry pass",
			zap.Int("checked", stats.Checked),
			zap.Int("expired", stats.Expired),
			zap.Int("captured", stats.Captured),
			zap.Int("failed", stats.Failed),
		)
	}

	if stats, err := timers.ReleaseDelivered(ctx, cfg.AutoReleaseAfter, batchSize); err != nil {
		log.Error("auto-release failed", zap.Error(err))
	} else if stats.Checked > 0 {
		log.Info("auto-release pass",
			zap.Int("checked", stats.Checked),
			zap.Int("released", stats.Released),
			zap.Int("skipped", stats.Skipped),
			zap.Int("failed", stats.Failed),
		)
	}
}

func serveMetrics(port string, log *zap.Logger) {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	if err := app.Listen(fmt.Sprintf(":%s", port)); err != nil {
		log.Error("metrics server stopped", zap.Error(err))
	}
}
