package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/escrow-storefront/backend/internal/apperr"
	"github.com/escrow-storefront/backend/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultBaseURL = "https://api.paystack.co"

// Metadata purposes
const (
	PurposeCheckout    = "checkout"
	PurposeWalletTopUp = "wallet_topup"
)

// Client talks to the Paystack REST API with the secret key.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	log        *zap.Logger
}

func NewClient(baseURL, secretKey string, log *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

type InitializeRequest struct {
	Email       string
	Amount      decimal.Decimal
	Currency    string
	Reference   string
	CallbackURL string
	Channels    []string
	Metadata    Metadata
}

type InitializeResult struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Initialize creates a provider-side charge and returns the hosted checkout URL.
func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	minor, err := ToMinorUnits(req.Amount)
	if err != nil {
		return nil, err
	}
	body := map[string]any{
		"email":     req.Email,
		"amount":    minor,
		"currency":  strings.ToUpper(req.Currency),
		"reference": req.Reference,
		"metadata":  req.Metadata,
	}
	if req.CallbackURL != "" {
		body["callback_url"] = req.CallbackURL
	}
	if len(req.Channels) > 0 {
		body["channels"] = req.Channels
	}

	var out InitializeResult
	if err := c.do(ctx, "initialize", http.MethodPost, "/transaction/initialize", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Verification is the provider's view of a charge.
type Verification struct {
	Reference     string
	Status        string
	Paid          bool
	Amount        decimal.Decimal
	Currency      string
	Channel       string
	PaidAt        *time.Time
	CustomerEmail string
	CustomerName  string
	Metadata      Metadata
}

// Verify fetches the charge for reference. An unknown reference is NOT_FOUND.
func (c *Client) Verify(ctx context.Context, reference string) (*Verification, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, apperr.Validation("payment reference is required")
	}
	var ch Charge
	if err := c.do(ctx, "verify", http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &ch); err != nil {
		return nil, err
	}
	return ch.Verification(), nil
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	if c.secretKey == "" {
		return apperr.New(apperr.CodeConfig, "paystack secret key is not configured")
	}
	timer := prometheus.NewTimer(metrics.PaystackRequestDuration.WithLabelValues(op))
	defer timer.ObserveDuration()

	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.CodePaystack, "paystack unavailable", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperr.Wrap(apperr.CodePaystack, "read paystack response", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return apperr.NotFound("payment")
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return apperr.Wrap(apperr.CodePaystack, fmt.Sprintf("paystack returned %d", resp.StatusCode), err)
	}
	if resp.StatusCode != http.StatusOK || !env.Status {
		c.log.Warn("paystack request failed",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.String("message", env.Message),
		)
		msg := env.Message
		if msg == "" {
			msg = fmt.Sprintf("paystack returned %d", resp.StatusCode)
		}
		return apperr.New(apperr.CodePaystack, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return apperr.Wrap(apperr.CodePaystack, "decode paystack "+op+" response", err)
	}
	return nil
}

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts a major-unit amount (e.g. 1500.50 KES) to the integer
// subunits Paystack expects. Fractions of a subunit are rejected.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, apperr.Validation("amount must be positive")
	}
	minor := amount.Mul(hundred)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, apperr.Validation("amount has more than two decimal places")
	}
	return minor.IntPart(), nil
}

// FromMinorUnits converts Paystack subunits back to a major-unit amount.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
