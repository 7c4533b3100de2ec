package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/escrow-storefront/backend/internal/config"
	"github.com/escrow-storefront/backend/internal/db"
	"github.com/escrow-storefront/backend/internal/events"
	"github.com/escrow-storefront/backend/internal/services"
	"go.uber.org/zap"
)

// Notify bridge: subscribes to Redis events and forwards the ones users care
// about to the Supabase notify function.

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	if cfg.SupabaseURL == "" || cfg.SupabaseServiceRoleKey == "" {
		log.Fatal("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	subscriber := events.NewRedisSubscriber(rdb, log)
	notifier := services.NewNotifyClient(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey, log)

	forward := func(event events.Event) {
		n, ok := services.NotificationFor(event)
		if !ok {
			return
		}
		sendCtx, done := context.WithTimeout(ctx, 20*time.Second)
		defer done()
		if err := notifier.Send(sendCtx, n); err != nil {
			log.Warn("failed to forward notification", zap.String("type", event.Type), zap.Error(err))
			return
		}
		log.Info("notification forwarded", zap.String("type", event.Type), zap.Int("recipients", len(n.UserIDs)))
	}

	for _, stream := range events.Streams {
		if err := subscriber.Subscribe(ctx, stream, forward); err != nil {
			log.Fatal("failed to subscribe", zap.String("stream", stream), zap.Error(err))
		}
	}

	log.Info("notify-bridge started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down notify-bridge")
	cancel()
}
