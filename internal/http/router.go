package http

import (
	"time"

	"github.com/escrow-storefront/backend/internal/config"
	"github.com/escrow-storefront/backend/internal/http/handlers"
	"github.com/escrow-storefront/backend/internal/middleware"
	"github.com/escrow-storefront/backend/internal/rbac"
	"github.com/escrow-storefront/backend/internal/services"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Handlers struct {
	Paystack     *handlers.PaystackHandler
	Storefront   *handlers.StorefrontHandler
	Account      *handlers.AccountHandler
	Transactions *handlers.TransactionHandler
	Wallet       *handlers.WalletHandler
	Admin        *handlers.AdminHandler
	User         *handlers.UserHandler
	WS           *handlers.WSHub
}

func SetupRouter(app *fiber.App, cfg *config.Config, log *zap.Logger, rdb *redis.Client, h Handlers) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID, apikey, x-client-info",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	authRequired := middleware.AuthMiddleware(cfg, log)
	authOptional := middleware.OptionalAuthMiddleware(cfg, log)

	// Paystack gateway. The webhook is authenticated by its signature only.
	pay := app.Group("/paystack-api")
	pay.Post("/webhook", h.Paystack.Webhook)
	pay.Get("/config", h.Paystack.GetConfig)
	pay.Post("/initialize", middleware.RateLimitMiddleware(rdb, "pay", cfg.RateLimitPerMinute, time.Minute), authOptional, h.Paystack.Initialize)
	pay.Post("/verify", authOptional, h.Paystack.Verify)
	pay.Post("/wallet-topup/initialize", authRequired, h.Paystack.InitializeTopUp)
	pay.Post("/wallet-topup/verify", authRequired, h.Paystack.VerifyTopUp)

	// Public storefront
	shop := app.Group("/storefront-api",
		middleware.RateLimitMiddleware(rdb, "storefront", cfg.RateLimitPerMinute, time.Minute),
		authOptional,
	)
	metaHandler := handlers.NewMetaHandler()
	shop.Get("/meta/categories", metaHandler.GetCategories)
	shop.Get("/meta/countries", metaHandler.GetCountries)
	shop.Get("/stores/:slug", h.Storefront.GetStore)
	shop.Get("/stores/:slug/products/:productId", h.Storefront.GetProduct)
	shop.Get("/stores/:slug/products/:productId/reviews", h.Storefront.ListReviews)
	shop.Post("/stores/:slug/products/:productId/reviews", h.Storefront.CreateReview)
	shop.Put("/reviews/:id", authRequired, h.Storefront.UpdateReview)
	shop.Delete("/reviews/:id", authRequired, h.Storefront.DeleteReview)
	shop.Get("/stores/:slug/products/:productId/questions", h.Storefront.ListQuestions)
	shop.Post("/stores/:slug/products/:productId/questions", h.Storefront.AskQuestion)
	shop.Post("/questions/:id/answer", authRequired, h.Storefront.AnswerQuestion)
	shop.Delete("/questions/:id", authRequired, h.Storefront.DeleteQuestion)
	shop.Post("/checkout/:slug/:productId", h.Storefront.Checkout)

	// Signed-in users
	api := app.Group("/api/v1", authRequired)
	api.Get("/me", h.User.GetMe)

	api.Post("/stores", h.Account.CreateStore)
	api.Get("/stores/mine", h.Account.MyStores)
	api.Put("/stores/:id", h.Account.UpdateStore)
	api.Post("/stores/:id/products", h.Account.AddProduct)
	api.Delete("/stores/:id/products/:productId", h.Account.RemoveProduct)
	api.Post("/products/import", h.Account.ImportProduct)

	api.Get("/payment-methods", h.Account.ListPaymentMethods)
	api.Post("/payment-methods", h.Account.CreatePaymentMethod)
	api.Get("/payment-methods/:id", h.Account.GetPaymentMethod)
	api.Put("/payment-methods/:id", h.Account.UpdatePaymentMethod)
	api.Delete("/payment-methods/:id", h.Account.DeletePaymentMethod)
	api.Post("/payment-methods/:id/default", h.Account.SetDefaultPaymentMethod)

	api.Get("/transactions", h.Transactions.ListTransactions)
	api.Get("/transactions/:id", h.Transactions.GetTransaction)
	api.Post("/transactions/:id/confirm-delivery", h.Transactions.ConfirmDelivery)
	api.Post("/transactions/:id/disputes", h.Transactions.OpenDispute)
	api.Get("/disputes/:id", h.Transactions.GetDispute)
	api.Get("/disputes/:id/messages", h.Transactions.ListDisputeMessages)
	api.Post("/disputes/:id/messages", h.Transactions.PostDisputeMessage)

	api.Get("/wallet", h.Wallet.GetWallet)
	api.Get("/wallet/transactions", h.Wallet.ListTransactions)
	api.Post("/wallet/payouts", h.Wallet.RequestPayout)

	// Oversight. Support may read and message; moving money needs admin.
	admin := app.Group("/admin-api", authRequired, middleware.StaffMiddleware())
	moveFunds := middleware.RequirePermission(rbac.PermMoveFunds)

	admin.Get("/transactions", h.Admin.ListTransactions)
	admin.Get("/transactions/:id", h.Transactions.GetTransaction)
	admin.Get("/escrow-deposits", h.Admin.ListEscrowDeposits)
	for _, action := range []string{services.ActionApprove, services.ActionReject, services.ActionRelease, services.ActionRefund, services.ActionClose} {
		admin.Post("/transactions/:id/"+action, moveFunds, h.Admin.TransactionAction(action))
	}

	admin.Get("/disputes", h.Admin.ListDisputes)
	admin.Get("/disputes/:id", h.Transactions.GetDispute)
	admin.Post("/disputes/:id/resolve", middleware.RequirePermission(rbac.PermResolveDispute), h.Admin.ResolveDispute)
	admin.Post("/disputes/:id/messages", middleware.RequirePermission(rbac.PermMessageDispute), h.Transactions.PostDisputeMessage)

	managePayouts := middleware.RequirePermission(rbac.PermManagePayouts)
	admin.Get("/payouts", h.Admin.ListPayouts)
	admin.Post("/payouts/:reference/complete", managePayouts, h.Admin.CompletePayout)
	admin.Post("/payouts/:reference/fail", managePayouts, h.Admin.FailPayout)

	admin.Get("/audit/:entityType/:id", middleware.RequirePermission(rbac.PermViewAudit), h.Admin.AuditTrail)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(h.WS.HandleWS))
}
