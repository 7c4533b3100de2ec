package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/escrow-storefront/backend/internal/events"
	"go.uber.org/zap"
)

// NotifyClient calls the Supabase edge function that delivers in-app, email
// and push notifications.
type NotifyClient struct {
	endpoint   string
	serviceKey string
	httpClient *http.Client
	log        *zap.Logger
}

func NewNotifyClient(supabaseURL, serviceKey string, log *zap.Logger) *NotifyClient {
	return &NotifyClient{
		endpoint:   strings.TrimRight(supabaseURL, "/") + "/functions/v1/notify",
		serviceKey: serviceKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

type Notification struct {
	UserIDs []string       `json:"user_ids"`
	Type    string         `json:"type"`
	Title   string         `json:"title"`
	Body    string         `json:"body"`
	Data    map[string]any `json:"data,omitempty"`
}

func (c *NotifyClient) Send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify function unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notify function returned %d: %s", resp.StatusCode, string(b))
	}
	return nil
}

// NotificationFor turns a domain event into a user-facing notification.
// Events nobody needs to hear about return false.
func NotificationFor(ev events.Event) (Notification, bool) {
	recipients := ev.Recipients()
	if len(recipients) == 0 {
		return Notification{}, false
	}
	ids := make([]string, len(recipients))
	for i, id := range recipients {
		ids[i] = id.String()
	}
	str := func(k string) string {
		s, _ := ev.Payload[k].(string)
		return s
	}

	n := Notification{UserIDs: ids, Type: ev.Type, Data: ev.Payload}
	switch ev.Type {
	case events.EventPaymentCaptured:
		n.Title = "Payment received"
		n.Body = fmt.Sprintf("%s %s is held in escrow until delivery is confirmed.", str("currency"), str("amount"))
	case events.EventTransactionStatusChanged:
		switch str("new_status") {
		case "paid":
			n.Title, n.Body = "Payment approved", "The payment was approved. The seller can now deliver."
		case "delivered":
			n.Title, n.Body = "Order delivered", "The buyer confirmed delivery."
		case "completed":
			n.Title, n.Body = "Funds released", "Escrow was released to the seller."
		case "refunded":
			n.Title, n.Body = "Payment refunded", "The escrowed payment was refunded."
		case "cancelled":
			n.Title, n.Body = "Checkout expired", "The order was cancelled before payment."
		default:
			return Notification{}, false
		}
	case events.EventDisputeOpened:
		n.Title = "Dispute opened"
		n.Body = str("reason")
	case events.EventDisputeMessage:
		n.Title = "New dispute message"
		n.Body = str("body")
	case events.EventDisputeResolved:
		n.Title = "Dispute resolved"
		n.Body = "Outcome: " + str("outcome")
	case events.EventPayoutUpdated:
		n.Title = "Payout " + str("status")
		n.Body = fmt.Sprintf("Payout %s of %s %s is %s.", str("reference"), str("currency"), str("amount"), str("status"))
	default:
		return Notification{}, false
	}
	return n, true
}
