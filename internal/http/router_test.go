package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/escrow-storefront/backend/internal/auth"
	"github.com/escrow-storefront/backend/internal/config"
	"github.com/escrow-storefront/backend/internal/http/dto"
	"github.com/escrow-storefront/backend/internal/http/handlers"
	"github.com/escrow-storefront/backend/internal/paystack"
	"github.com/escrow-storefront/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	testSecret    = "sk_test_webhook"
	testJWTSecret = "jwt-test-secret"
)

// newTestApp mounts the router with a payment service that has no gateway,
// engine or stores; any request that reaches them would panic and surface as
// a 500 through the recover middleware.
func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	log := zap.NewNop()
	cfg := &config.Config{JWTSecret: testJWTSecret, RateLimitPerMinute: 0}

	payments := services.NewPaymentService(nil, nil, nil, nil, nil, services.PaymentConfig{SecretKey: testSecret}, log)
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = rdb.Close() })

	app := fiber.New()
	SetupRouter(app, cfg, log, rdb, Handlers{
		Paystack: handlers.NewPaystackHandler(payments, log),
		User:     handlers.NewUserHandler(log),
	})
	return app
}

func postWebhook(t *testing.T, app *fiber.App, body []byte, signature string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest("POST", "/paystack-api/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Paystack-Signature", signature)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	app := newTestApp(t)
	body := []byte(`{"event":"charge.success","data":{"reference":"TXN-1","status":"success","amount":150000,"currency":"KES"}}`)

	tests := []struct {
		name      string
		signature string
	}{
		{"missing", ""},
		{"wrong secret", paystack.Sign("sk_other", body)},
		{"garbage", "deadbeef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := postWebhook(t, app, body, tt.signature)
			if status != fiber.StatusUnauthorized {
				t.Errorf("status = %d, want 401", status)
			}
		})
	}
}

func TestWebhookAcknowledgesIgnoredEvent(t *testing.T) {
	app := newTestApp(t)
	body := []byte(`{"event":"subscription.create","data":{}}`)

	status, out := postWebhook(t, app, body, paystack.Sign(testSecret, body))
	if status != fiber.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", status, out)
	}
	var ack dto.WebhookAck
	if err := json.Unmarshal(out, &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if !ack.Received || ack.Result != services.WebhookIgnored {
		t.Errorf("ack = %+v", ack)
	}
}

func TestWebhookMalformedPayload(t *testing.T) {
	app := newTestApp(t)
	body := []byte(`{not json`)

	status, _ := postWebhook(t, app, body, paystack.Sign(testSecret, body))
	if status != fiber.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
}

func TestAuthGuards(t *testing.T) {
	app := newTestApp(t)
	userToken, err := auth.GenerateJWT(testJWTSecret, uuid.New(), "seller@example.com", "", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	adminToken, err := auth.GenerateJWT(testJWTSecret, uuid.New(), "ops@example.com", "admin", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"health is public", "GET", "/health", "", fiber.StatusOK},
		{"api needs a token", "GET", "/api/v1/me", "", fiber.StatusUnauthorized},
		{"api rejects bad token", "GET", "/api/v1/me", "nope", fiber.StatusUnauthorized},
		{"api accepts user", "GET", "/api/v1/me", userToken, fiber.StatusOK},
		{"admin api refuses users", "GET", "/admin-api/transactions", userToken, fiber.StatusForbidden},
		{"top-up needs a token", "POST", "/paystack-api/wallet-topup/verify", "", fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			resp, err := app.Test(req, -1)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}

	req := httptest.NewRequest("GET", "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	var me struct {
		Data struct {
			Role        string   `json:"role"`
			Permissions []string `json:"permissions"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if me.Data.Role != "admin" || len(me.Data.Permissions) == 0 {
		t.Errorf("me = %+v", me.Data)
	}
}
