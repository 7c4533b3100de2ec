package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		// Happy path
		{TxStatusPending, TxStatusProcessing, true},
		{TxStatusProcessing, TxStatusPaid, true},
		{TxStatusPaid, TxStatusDelivered, true},
		{TxStatusDelivered, TxStatusCompleted, true},
		{TxStatusCompleted, TxStatusClosed, true},

		// Admin shortcuts
		{TxStatusProcessing, TxStatusCompleted, true},
		{TxStatusProcessing, TxStatusRefunded, true},
		{TxStatusPaid, TxStatusCompleted, true},

		// Disputes
		{TxStatusProcessing, TxStatusDisputed, true},
		{TxStatusPaid, TxStatusDisputed, true},
		{TxStatusDelivered, TxStatusDisputed, true},
		{TxStatusDisputed, TxStatusCompleted, true},
		{TxStatusDisputed, TxStatusRefunded, true},
		{TxStatusRefunded, TxStatusClosed, true},

		// Cancellation
		{TxStatusPending, TxStatusCancelled, true},
		{TxStatusProcessing, TxStatusCancelled, false},
		{TxStatusCancelled, TxStatusProcessing, true},
		{TxStatusCancelled, TxStatusPaid, false},
		{TxStatusCancelled, TxStatusRefunded, false},

		// Invalid
		{TxStatusPending, TxStatusPaid, false},
		{TxStatusPending, TxStatusCompleted, false},
		{TxStatusProcessing, TxStatusProcessing, false},
		{TxStatusCompleted, TxStatusRefunded, false},
		{TxStatusRefunded, TxStatusCompleted, false},
		{TxStatusDisputed, TxStatusDelivered, false},
		{TxStatusClosed, TxStatusPending, false},
		{"nonexistent", TxStatusPaid, false},
		{TxStatusPending, "nonexistent", false},

		// Mixed casing from legacy rows
		{"PENDING", "Processing", true},
		{"PAID", "delivered", true},
		{" Completed ", "CLOSED", true},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := CanTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestTransitionTargetsAreKnownStatuses(t *testing.T) {
	for from, targets := range ValidTxTransitions {
		for _, to := range targets {
			if _, ok := ValidTxTransitions[to]; !ok {
				t.Errorf("%s -> %s: target missing from ValidTxTransitions", from, to)
			}
		}
	}
}

func TestTerminalTxStatusesHaveNoTransitions(t *testing.T) {
	if n := len(ValidTxTransitions[TxStatusClosed]); n != 0 {
		t.Errorf("closed should have no transitions, got %d", n)
	}
	// a cancelled checkout can only be revived by a capture
	if got := ValidTxTransitions[TxStatusCancelled]; len(got) != 1 || got[0] != TxStatusProcessing {
		t.Errorf("cancelled transitions = %v, want [processing]", got)
	}
}

func TestNormalizeEscrowStatus(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		ok       bool
	}{
		{"pending", EscrowStatusPending, true},
		{"locked", EscrowStatusPending, true},
		{"LOCKED", EscrowStatusPending, true},
		{"Released", EscrowStatusReleased, true},
		{"refunded", EscrowStatusRefunded, true},
		{"held", "held", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := NormalizeEscrowStatus(tt.input)
			if got != tt.expected || ok != tt.ok {
				t.Errorf("NormalizeEscrowStatus(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestWalletDeltaApply(t *testing.T) {
	w := Wallet{
		AvailableBalance: decimal.NewFromInt(100),
		PendingBalance:   decimal.NewFromInt(950),
	}

	release := WalletDelta{
		Pending:     decimal.NewFromInt(-950),
		Available:   decimal.NewFromInt(950),
		TotalEarned: decimal.NewFromInt(950),
	}
	got, ok := release.Apply(w)
	if !ok {
		t.Fatal("release should be allowed")
	}
	if !got.AvailableBalance.Equal(decimal.NewFromInt(1050)) || !got.PendingBalance.IsZero() {
		t.Errorf("after release: available=%s pending=%s", got.AvailableBalance, got.PendingBalance)
	}

	overdraw := WalletDelta{Available: decimal.NewFromInt(-101)}
	if _, ok := overdraw.Apply(w); ok {
		t.Error("overdraw should be rejected")
	}
}

func TestPaymentMethodMissingField(t *testing.T) {
	s := func(v string) *string { return &v }
	tests := []struct {
		name     string
		pm       PaymentMethod
		expected string
	}{
		{"paybill ok", PaymentMethod{Kind: PaymentMethodPaybill, PaybillNumber: s("247247"), AccountNumber: s("0712")}, ""},
		{"paybill no account", PaymentMethod{Kind: PaymentMethodPaybill, PaybillNumber: s("247247")}, "account_number"},
		{"till", PaymentMethod{Kind: PaymentMethodTill}, "till_number"},
		{"phone", PaymentMethod{Kind: PaymentMethodPhone, PhoneNumber: s("")}, "phone_number"},
		{"bank no code", PaymentMethod{Kind: PaymentMethodBankAccount, AccountNumber: s("0123")}, "bank_code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pm.MissingField(); got != tt.expected {
				t.Errorf("MissingField() = %q, want %q", got, tt.expected)
			}
		})
	}
}
