package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/escrow-storefront/backend/internal/config"
	"github.com/escrow-storefront/backend/internal/db"
	"github.com/escrow-storefront/backend/internal/escrow"
	"github.com/escrow-storefront/backend/internal/events"
	apphttp "github.com/escrow-storefront/backend/internal/http"
	"github.com/escrow-storefront/backend/internal/http/handlers"
	"github.com/escrow-storefront/backend/internal/linkpreview"
	"github.com/escrow-storefront/backend/internal/paystack"
	"github.com/escrow-storefront/backend/internal/repositories"
	"github.com/escrow-storefront/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, cfg.MigrationsDir, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	txRepo := repositories.NewTransactionRepo(pool)
	walletRepo := repositories.NewWalletRepo(pool)
	disputeRepo := repositories.NewDisputeRepo(pool)
	methodRepo := repositories.NewPaymentMethodRepo(pool)
	storeRepo := repositories.NewStoreRepo(pool)
	reviewRepo := repositories.NewReviewRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Events
	publishers := events.MultiPublisher{events.NewRedisPublisher(rdb, log)}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		defer kp.Close()
		publishers = append(publishers, kp)
	}
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Escrow engine
	engine, err := escrow.NewEngine(repositories.NewEscrowStore(pool), cfg.PlatformFeePercent, publishers, log)
	if err != nil {
		log.Fatal("invalid escrow configuration", zap.Error(err))
	}

	// Services
	gateway := paystack.NewClient(cfg.PaystackBaseURL, cfg.PaystackSecretKey, log)
	paymentService := services.NewPaymentService(gateway, engine, txRepo, walletRepo,
		services.NewRedisProcessedCache(rdb, "paystack"),
		services.PaymentConfig{
			SecretKey:       cfg.PaystackSecretKey,
			PublicKey:       cfg.PaystackPublicKey,
			DefaultCurrency: cfg.DefaultCurrency,
			FrontendURL:     cfg.FrontendURL,
		}, log)
	storefrontService := services.NewStorefrontService(storeRepo, reviewRepo, txRepo, log)
	fetcher := linkpreview.NewFetcher(cfg.LinkPreviewTimeoutMS, cfg.LinkPreviewMaxRetries, log)
	storeService := services.NewStoreService(storeRepo, engine, fetcher, cfg.DefaultCurrency, log)
	methodService := services.NewPaymentMethodService(methodRepo, auditRepo, log)
	transactionService := services.NewTransactionService(engine, txRepo, auditRepo, log)
	disputeService := services.NewDisputeService(engine, disputeRepo, txRepo, publishers, log)
	walletService := services.NewWalletService(engine, walletRepo, methodRepo, cfg.DefaultCurrency, log)

	// Handlers
	wsHub := handlers.NewWSHub(cfg, subscriber, log)
	h := apphttp.Handlers{
		Paystack:     handlers.NewPaystackHandler(paymentService, log),
		Storefront:   handlers.NewStorefrontHandler(storefrontService, log),
		Account:      handlers.NewAccountHandler(storeService, methodService, log),
		Transactions: handlers.NewTransactionHandler(transactionService, disputeService, log),
		Wallet:       handlers.NewWalletHandler(walletService, log),
		Admin:        handlers.NewAdminHandler(transactionService, disputeService, walletService, log),
		User:         handlers.NewUserHandler(log),
		WS:           wsHub,
	}

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, h)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
