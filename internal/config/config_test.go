package config

import (
	"testing"
	"time"

	"github.com/escrow-storefront/backend/internal/apperr"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestLoadFromEnv(t *testing.T) {
	admin := uuid.New()
	t.Setenv("PLATFORM_FEE_PERCENT", "2.5")
	t.Setenv("ADMIN_USER_IDS", admin.String()+", not-a-uuid ,")
	t.Setenv("AUTO_RELEASE_HOURS", "48")
	t.Setenv("DEFAULT_CURRENCY", "ngn")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("FRONTEND_URL", "https://shop.example.com/")

	cfg := Load()

	if !cfg.PlatformFeePercent.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("PlatformFeePercent = %s, want 2.5", cfg.PlatformFeePercent)
	}
	if len(cfg.AdminUserIDs) != 1 || !cfg.IsAdmin(admin) {
		t.Errorf("AdminUserIDs = %v, want [%s]", cfg.AdminUserIDs, admin)
	}
	if cfg.IsSupport(admin) {
		t.Error("admin reported as support")
	}
	if cfg.AutoReleaseAfter != 48*time.Hour {
		t.Errorf("AutoReleaseAfter = %s", cfg.AutoReleaseAfter)
	}
	if cfg.DefaultCurrency != "NGN" {
		t.Errorf("DefaultCurrency = %s", cfg.DefaultCurrency)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("KafkaBrokers = %v", cfg.KafkaBrokers)
	}
	if cfg.FrontendURL != "https://shop.example.com" {
		t.Errorf("FrontendURL = %s", cfg.FrontendURL)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PLATFORM_FEE_PERCENT", "five")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "")

	cfg := Load()
	if !cfg.PlatformFeePercent.Equal(decimal.NewFromInt(5)) {
		t.Errorf("PlatformFeePercent = %s, want default 5", cfg.PlatformFeePercent)
	}
	if cfg.RateLimitPerMinute != 60 {
		t.Errorf("RateLimitPerMinute = %d, want 60", cfg.RateLimitPerMinute)
	}
}

func TestRequirePaystack(t *testing.T) {
	cfg := &Config{}
	if err := cfg.RequirePaystack(); !apperr.HasCode(err, apperr.CodeConfig) {
		t.Errorf("expected CONFIG_ERROR, got %v", err)
	}
	cfg.PaystackSecretKey = "sk_test"
	if err := cfg.RequirePaystack(); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}
