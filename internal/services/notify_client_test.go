package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/escrow-storefront/backend/internal/events"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func TestNotificationFor(t *testing.T) {
	seller, buyer := uuid.New(), uuid.New()
	ids := []string{seller.String(), buyer.String()}

	tests := []struct {
		name      string
		ev        events.Event
		wantOK    bool
		wantTitle string
	}{
		{
			name:      "payment captured",
			ev:        events.Event{Type: events.EventPaymentCaptured, Payload: map[string]any{"amount": "1500.00", "currency": "KES", "user_ids": ids}},
			wantOK:    true,
			wantTitle: "Payment received",
		},
		{
			name:      "released",
			ev:        events.Event{Type: events.EventTransactionStatusChanged, Payload: map[string]any{"new_status": "completed", "user_ids": ids}},
			wantOK:    true,
			wantTitle: "Funds released",
		},
		{
			name:   "uninteresting status",
			ev:     events.Event{Type: events.EventTransactionStatusChanged, Payload: map[string]any{"new_status": "closed", "user_ids": ids}},
			wantOK: false,
		},
		{
			name:      "payout",
			ev:        events.Event{Type: events.EventPayoutUpdated, Payload: map[string]any{"status": "completed", "reference": "PAY-1", "user_ids": []any{seller.String()}}},
			wantOK:    true,
			wantTitle: "Payout completed",
		},
		{
			name:   "wallet balance is silent",
			ev:     events.Event{Type: events.EventWalletUpdated, Payload: map[string]any{"user_ids": ids}},
			wantOK: false,
		},
		{
			name:   "no recipients",
			ev:     events.Event{Type: events.EventDisputeOpened, Payload: map[string]any{"reason": "never arrived"}},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := NotificationFor(tt.ev)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if n.Title != tt.wantTitle {
				t.Errorf("title = %q, want %q", n.Title, tt.wantTitle)
			}
			if len(n.UserIDs) == 0 {
				t.Error("no recipients")
			}
		})
	}
}

func TestNotifyClientSend(t *testing.T) {
	var (
		gotAuth string
		gotKey  string
		got     Notification
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/functions/v1/notify" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("apikey")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewNotifyClient(srv.URL+"/", "service-key", zap.NewNop())
	n := Notification{UserIDs: []string{uuid.NewString()}, Type: events.EventDisputeOpened, Title: "Dispute opened", Body: "late"}
	if err := c.Send(context.Background(), n); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotAuth != "Bearer service-key" || gotKey != "service-key" {
		t.Errorf("headers = %q, %q", gotAuth, gotKey)
	}
	if got.Title != n.Title || len(got.UserIDs) != 1 {
		t.Errorf("body = %+v", got)
	}
}

func TestNotifyClientSendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewNotifyClient(srv.URL, "k", zap.NewNop())
	if err := c.Send(context.Background(), Notification{Type: "x"}); err == nil {
		t.Fatal("expected an error for a 502 response")
	}
}
