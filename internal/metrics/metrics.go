package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PaymentsCaptured = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_captured_total",
			Help: "Payments moved into escrow, by source (verify/webhook/reconcile)",
		},
		[]string{"source"},
	)

	PaymentCaptureFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_capture_failures_total",
			Help: "Rejected capture attempts by error code",
		},
		[]string{"code"},
	)

	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Paystack webhook deliveries by event and result",
		},
		[]string{"event", "result"},
	)

	EscrowTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_transitions_total",
			Help: "Transaction status transitions",
		},
		[]string{"from", "to"},
	)

	WalletCredits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_credits_total",
			Help: "Wallet mutations applied, by wallet transaction type",
		},
		[]string{"kind"},
	)

	PaystackRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paystack_request_duration_seconds",
			Help:    "Latency of Paystack API calls",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
		},
		[]string{"op"},
	)
)
