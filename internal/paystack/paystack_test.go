package paystack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/escrow-storefront/backend/internal/apperr"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		amount  string
		want    int64
		wantErr bool
	}{
		{"1000", 100000, false},
		{"1500.50", 150050, false},
		{"0.01", 1, false},
		{"10.005", 0, true},
		{"0", 0, true},
		{"-5", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got, err := ToMinorUnits(decimal.RequireFromString(tt.amount))
			if tt.wantErr {
				if err == nil {
					t.Errorf("ToMinorUnits(%s) = %d, want error", tt.amount, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ToMinorUnits(%s): %v", tt.amount, err)
			}
			if got != tt.want {
				t.Errorf("ToMinorUnits(%s) = %d, want %d", tt.amount, got, tt.want)
			}
		})
	}
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event":"charge.success","data":{"reference":"R1"}}`)
	sig := Sign("sk_test", body)

	tests := []struct {
		name   string
		secret string
		body   []byte
		sig    string
		want   bool
	}{
		{"valid", "sk_test", body, sig, true},
		{"wrong secret", "sk_other", body, sig, false},
		{"tampered body", "sk_test", []byte(`{"event":"charge.success","data":{"reference":"R2"}}`), sig, false},
		{"not hex", "sk_test", body, "zz", false},
		{"empty signature", "sk_test", body, "", false},
		{"empty secret", "", body, sig, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifySignature(tt.secret, tt.body, tt.sig); got != tt.want {
				t.Errorf("VerifySignature = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseEventMetadataShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Metadata
	}{
		{
			"object",
			`{"event":"charge.success","data":{"reference":"R","metadata":{"purpose":"checkout","transaction_id":"abc"}}}`,
			Metadata{Purpose: PurposeCheckout, TransactionID: "abc"},
		},
		{
			"encoded string",
			`{"event":"charge.success","data":{"reference":"R","metadata":"{\"purpose\":\"wallet_topup\",\"user_id\":\"u1\"}"}}`,
			Metadata{Purpose: PurposeWalletTopUp, UserID: "u1"},
		},
		{
			"empty string",
			`{"event":"charge.success","data":{"reference":"R","metadata":""}}`,
			Metadata{},
		},
		{
			"null",
			`{"event":"charge.success","data":{"reference":"R","metadata":null}}`,
			Metadata{},
		},
		{
			"unexpected array",
			`{"event":"charge.success","data":{"reference":"R","metadata":[1,2]}}`,
			Metadata{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseEvent([]byte(tt.body))
			if err != nil {
				t.Fatalf("ParseEvent: %v", err)
			}
			ch, err := ev.Charge()
			if err != nil {
				t.Fatalf("Charge: %v", err)
			}
			if ch.Metadata != tt.want {
				t.Errorf("metadata = %+v, want %+v", ch.Metadata, tt.want)
			}
		})
	}
}

func TestParseEventRejectsGarbage(t *testing.T) {
	if _, err := ParseEvent([]byte("not json")); !apperr.HasCode(err, apperr.CodeValidation) {
		t.Errorf("expected VALIDATION_ERROR, got %v", err)
	}
	if _, err := ParseEvent([]byte(`{"data":{}}`)); !apperr.HasCode(err, apperr.CodeValidation) {
		t.Errorf("expected VALIDATION_ERROR for missing event, got %v", err)
	}
	ev, _ := ParseEvent([]byte(`{"event":"transfer.success","data":{"amount":100}}`))
	if _, err := ev.Transfer(); !apperr.HasCode(err, apperr.CodeValidation) {
		t.Errorf("expected VALIDATION_ERROR for missing reference, got %v", err)
	}
}

func TestInitialize(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/initialize" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk_test" {
			t.Errorf("Authorization = %q", auth)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"status":true,"message":"Authorization URL created","data":{"authorization_url":"https://checkout.paystack.com/x","access_code":"x","reference":"TX-1"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk_test", zap.NewNop())
	res, err := c.Initialize(context.Background(), InitializeRequest{
		Email:     "buyer@example.com",
		Amount:    decimal.RequireFromString("1500.50"),
		Currency:  "kes",
		Reference: "TX-1",
		Metadata:  Metadata{Purpose: PurposeCheckout, TransactionID: "t-1"},
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if res.AuthorizationURL != "https://checkout.paystack.com/x" || res.Reference != "TX-1" {
		t.Errorf("unexpected result %+v", res)
	}
	if got["amount"] != float64(150050) {
		t.Errorf("amount sent = %v, want 150050", got["amount"])
	}
	if got["currency"] != "KES" {
		t.Errorf("currency sent = %v, want KES", got["currency"])
	}
	meta, _ := got["metadata"].(map[string]any)
	if meta["purpose"] != PurposeCheckout || meta["transaction_id"] != "t-1" {
		t.Errorf("metadata sent = %v", got["metadata"])
	}
}

func TestVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/transaction/verify/PAID-1":
			_, _ = w.Write([]byte(`{"status":true,"message":"Verification successful","data":{
				"status":"success","reference":"PAID-1","amount":100000,"currency":"KES","channel":"mobile_money",
				"paid_at":"2026-03-01T10:00:00.000Z","customer":{"email":"b@example.com","first_name":"Ann","last_name":"Buyer"},
				"metadata":{"purpose":"checkout","transaction_id":"t-9"}}}`))
		case "/transaction/verify/ABANDONED-1":
			_, _ = w.Write([]byte(`{"status":true,"message":"Verification successful","data":{"status":"abandoned","reference":"ABANDONED-1","amount":100000,"currency":"KES"}}`))
		case "/transaction/verify/BAD-1":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"status":false,"message":"Transaction reference not found"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk_test", zap.NewNop())
	ctx := context.Background()

	v, err := c.Verify(ctx, "PAID-1")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !v.Paid || !v.Amount.Equal(decimal.NewFromInt(1000)) || v.Currency != "KES" {
		t.Errorf("unexpected verification %+v", v)
	}
	if v.PaidAt == nil || v.CustomerName != "Ann Buyer" || v.Metadata.TransactionID != "t-9" {
		t.Errorf("unexpected verification details %+v", v)
	}

	v, err = c.Verify(ctx, "ABANDONED-1")
	if err != nil {
		t.Fatalf("Verify abandoned: %v", err)
	}
	if v.Paid {
		t.Error("abandoned charge reported as paid")
	}

	if _, err := c.Verify(ctx, "BAD-1"); !apperr.HasCode(err, apperr.CodePaystack) {
		t.Errorf("expected PAYSTACK_ERROR, got %v", err)
	}
	if _, err := c.Verify(ctx, "MISSING"); !apperr.HasCode(err, apperr.CodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestClientWithoutSecret(t *testing.T) {
	c := NewClient("http://127.0.0.1:0", "", zap.NewNop())
	if _, err := c.Verify(context.Background(), "R"); !apperr.HasCode(err, apperr.CodeConfig) {
		t.Errorf("expected CONFIG_ERROR, got %v", err)
	}
}
