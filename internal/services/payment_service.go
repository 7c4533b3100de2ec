package services

import (
	"context"
	"strings"
	"time"

	"github.com/escrow-storefront/backend/internal/apperr"
	"github.com/escrow-storefront/backend/internal/escrow"
	"github.com/escrow-storefront/backend/internal/metrics"
	"github.com/escrow-storefront/backend/internal/models"
	"github.com/escrow-storefront/backend/internal/paystack"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Reference prefixes
const (
	RefPrefixCheckout = "TXN-"
	RefPrefixTopUp    = "TOP-"
	RefPrefixPayout   = "PAY-"
)

// Webhook results
const (
	WebhookProcessed = "processed"
	WebhookDuplicate = "duplicate"
	WebhookIgnored   = "ignored"
	WebhookRejected  = "rejected"
)

func NewReference(prefix string) string {
	return prefix + ulid.Make().String()
}

// Gateway is the part of the Paystack client the payment flows need.
type Gateway interface {
	Initialize(ctx context.Context, req paystack.InitializeRequest) (*paystack.InitializeResult, error)
	Verify(ctx context.Context, reference string) (*paystack.Verification, error)
}

// PaymentEngine is the subset of the escrow engine driven by gateway events.
type PaymentEngine interface {
	FeePercent() decimal.Decimal
	CapturePayment(ctx context.Context, c escrow.Capture) (*escrow.CaptureResult, error)
	InitiateTopUp(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, currency, reference string) (*models.WalletTransaction, error)
	CompleteTopUp(ctx context.Context, c escrow.TopUpCompletion) (*escrow.WalletResult, error)
	CompletePayout(ctx context.Context, reference string, actor models.Actor) (*escrow.WalletResult, error)
	FailPayout(ctx context.Context, reference string, actor models.Actor, reason string) (*escrow.WalletResult, error)
}

type TransactionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	GetByReference(ctx context.Context, reference string) (*models.Transaction, error)
	SetPaymentReference(ctx context.Context, id uuid.UUID, reference string) error
	ListPendingWithReference(ctx context.Context, updatedBefore time.Time, limit int) ([]models.Transaction, error)
}

type TopUpStore interface {
	ListPendingTopUps(ctx context.Context, limit int) ([]models.WalletTransaction, error)
}

type PaymentConfig struct {
	SecretKey       string
	PublicKey       string
	DefaultCurrency string
	FrontendURL     string
}

type PaymentService struct {
	gateway Gateway
	engine  PaymentEngine
	txs     TransactionStore
	topUps  TopUpStore
	cache   ProcessedCache
	cfg     PaymentConfig
	log     *zap.Logger
}

func NewPaymentService(gateway Gateway, engine PaymentEngine, txs TransactionStore, topUps TopUpStore, cache ProcessedCache, cfg PaymentConfig, log *zap.Logger) *PaymentService {
	if cache == nil {
		cache = noopCache{}
	}
	return &PaymentService{
		gateway: gateway,
		engine:  engine,
		txs:     txs,
		topUps:  topUps,
		cache:   cache,
		cfg:     cfg,
		log:     log,
	}
}

type PublicConfig struct {
	PublicKey  string          `json:"public_key"`
	Currency   string          `json:"currency"`
	FeePercent decimal.Decimal `json:"fee_percent"`
}

// PublicConfig is what the browser needs to open the Paystack popup.
func (s *PaymentService) PublicConfig() (*PublicConfig, error) {
	if s.cfg.PublicKey == "" {
		return nil, apperr.New(apperr.CodeConfig, "PAYSTACK_PUBLIC_KEY is not configured")
	}
	return &PublicConfig{
		PublicKey:  s.cfg.PublicKey,
		Currency:   s.cfg.DefaultCurrency,
		FeePercent: s.engine.FeePercent(),
	}, nil
}

type CheckoutSession struct {
	AuthorizationURL string          `json:"authorization_url"`
	AccessCode       string          `json:"access_code"`
	Reference        string          `json:"reference"`
	TransactionID    *uuid.UUID      `json:"transaction_id,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
}

// InitializeCheckout starts a provider charge for a pending transaction.
// Every call issues a fresh reference; Paystack refuses to reuse one.
func (s *PaymentService) InitializeCheckout(ctx context.Context, txID uuid.UUID, email, callbackURL string, callerID *uuid.UUID) (*CheckoutSession, error) {
	t, err := s.txs.GetByID(ctx, txID)
	if err != nil {
		return nil, err
	}
	if err := checkBuyer(t, callerID); err != nil {
		return nil, err
	}
	if status, _ := models.NormalizeTxStatus(t.Status); status != models.TxStatusPending {
		return nil, apperr.New(apperr.CodeInvalidStatus, "transaction is "+status+", not pending")
	}

	email = strings.TrimSpace(email)
	if email == "" {
		email = t.BuyerEmail
	}
	if email == "" {
		return nil, apperr.Validation("buyer email is required")
	}

	ref := NewReference(RefPrefixCheckout)
	if err := s.txs.SetPaymentReference(ctx, t.ID, ref); err != nil {
		return nil, err
	}

	res, err := s.gateway.Initialize(ctx, paystack.InitializeRequest{
		Email:       email,
		Amount:      t.Amount,
		Currency:    t.Currency,
		Reference:   ref,
		CallbackURL: s.callbackURL(callbackURL, "/checkout/callback"),
		Metadata: paystack.Metadata{
			Purpose:       paystack.PurposeCheckout,
			TransactionID: t.ID.String(),
		},
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("checkout initialized",
		zap.String("transaction_id", t.ID.String()),
		zap.String("reference", ref),
	)
	return &CheckoutSession{
		AuthorizationURL: res.AuthorizationURL,
		AccessCode:       res.AccessCode,
		Reference:        ref,
		TransactionID:    &t.ID,
		Amount:           t.Amount,
		Currency:         t.Currency,
	}, nil
}

type VerifyResult struct {
	Paid        bool                  `json:"paid"`
	Status      string                `json:"status"`
	Reference   string                `json:"reference"`
	Amount      decimal.Decimal       `json:"amount"`
	Currency    string                `json:"currency"`
	Transaction *models.Transaction   `json:"transaction,omitempty"`
	Deposit     *models.EscrowDeposit `json:"escrow_deposit,omitempty"`
	Duplicate   bool                  `json:"duplicate"`
}

// VerifyCheckout asks Paystack about reference and, if the charge succeeded,
// captures it into escrow. Unpaid charges are reported without any change.
func (s *PaymentService) VerifyCheckout(ctx context.Context, reference string, callerID *uuid.UUID) (*VerifyResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, apperr.Validation("reference is required")
	}
	v, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		return nil, err
	}
	if isTopUp(v.Metadata, reference) {
		return nil, apperr.Validation("reference belongs to a wallet top-up")
	}

	t, err := s.resolveTransaction(ctx, v.Metadata, reference)
	if err != nil {
		return nil, err
	}
	if err := checkBuyer(t, callerID); err != nil {
		return nil, err
	}

	out := &VerifyResult{
		Paid:        v.Paid,
		Status:      v.Status,
		Reference:   reference,
		Amount:      v.Amount,
		Currency:    v.Currency,
		Transaction: viewFor(t, callerID),
	}
	if !v.Paid {
		return out, nil
	}

	res, err := s.capture(ctx, t.ID, reference, v, escrow.SourceVerify)
	if err != nil {
		return nil, err
	}
	out.Transaction = viewFor(res.Transaction, callerID)
	out.Deposit = res.Deposit
	if callerID == nil && out.Deposit != nil {
		d := *out.Deposit
		d.PayerEmail = ""
		d.PayerName = ""
		out.Deposit = &d
	}
	out.Duplicate = res.Duplicate
	return out, nil
}

// InitializeTopUp records a pending top-up and opens a provider charge for it.
func (s *PaymentService) InitializeTopUp(ctx context.Context, userID uuid.UUID, email string, amount decimal.Decimal, currency, callbackURL string) (*CheckoutSession, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperr.Validation("email is required")
	}
	if _, err := paystack.ToMinorUnits(amount); err != nil {
		return nil, err
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}

	ref := NewReference(RefPrefixTopUp)
	if _, err := s.engine.InitiateTopUp(ctx, userID, amount, currency, ref); err != nil {
		return nil, err
	}

	res, err := s.gateway.Initialize(ctx, paystack.InitializeRequest{
		Email:       email,
		Amount:      amount,
		Currency:    currency,
		Reference:   ref,
		CallbackURL: s.callbackURL(callbackURL, "/wallet/topup/callback"),
		Metadata: paystack.Metadata{
			Purpose: paystack.PurposeWalletTopUp,
			UserID:  userID.String(),
		},
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("wallet top-up initialized",
		zap.String("user_id", userID.String()),
		zap.String("reference", ref),
		zap.String("amount", amount.String()),
	)
	return &CheckoutSession{
		AuthorizationURL: res.AuthorizationURL,
		AccessCode:       res.AccessCode,
		Reference:        ref,
		Amount:           amount,
		Currency:         currency,
	}, nil
}

type TopUpResult struct {
	Paid              bool                      `json:"paid"`
	Status            string                    `json:"status"`
	Reference         string                    `json:"reference"`
	Wallet            *models.Wallet            `json:"wallet,omitempty"`
	WalletTransaction *models.WalletTransaction `json:"wallet_transaction,omitempty"`
	Duplicate         bool                      `json:"duplicate"`
}

// VerifyTopUp credits the caller's wallet once the provider reports the charge paid.
func (s *PaymentService) VerifyTopUp(ctx context.Context, userID uuid.UUID, reference string) (*TopUpResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, apperr.Validation("reference is required")
	}
	v, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		return nil, err
	}
	if v.Metadata.Purpose == paystack.PurposeCheckout {
		return nil, apperr.Validation("reference belongs to a checkout")
	}

	out := &TopUpResult{Paid: v.Paid, Status: v.Status, Reference: reference}
	if !v.Paid {
		return out, nil
	}

	res, err := s.engine.CompleteTopUp(ctx, escrow.TopUpCompletion{
		Reference:  reference,
		PaidAmount: v.Amount,
		Currency:   v.Currency,
		UserID:     &userID,
		Source:     escrow.SourceVerify,
	})
	if err != nil {
		return nil, err
	}
	out.Wallet = res.Wallet
	out.WalletTransaction = res.WalletTransaction
	out.Duplicate = res.Duplicate
	return out, nil
}

// HandleWebhook authenticates and applies one Paystack delivery. The returned
// error is non-nil only when the provider should retry (or the request is
// unauthenticated); rejections that a retry cannot fix are acknowledged.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) (string, error) {
	if s.cfg.SecretKey == "" {
		return "", apperr.New(apperr.CodeConfig, "PAYSTACK_SECRET_KEY is not configured")
	}
	if !paystack.VerifySignature(s.cfg.SecretKey, body, signature) {
		metrics.WebhookEvents.WithLabelValues("unknown", "unauthorized").Inc()
		return "", apperr.New(apperr.CodeUnauthorized, "invalid webhook signature")
	}

	ev, err := paystack.ParseEvent(body)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("unknown", "invalid").Inc()
		return "", err
	}

	result, err := s.dispatchEvent(ctx, ev)
	if err != nil {
		if !isFinal(err) {
			metrics.WebhookEvents.WithLabelValues(ev.Event, "error").Inc()
			s.log.Error("webhook processing failed", zap.String("event", ev.Event), zap.Error(err))
			return "", err
		}
		s.log.Warn("webhook rejected",
			zap.String("event", ev.Event),
			zap.String("code", string(apperr.CodeOf(err))),
			zap.Error(err),
		)
		result = WebhookRejected
	}

	metrics.WebhookEvents.WithLabelValues(ev.Event, result).Inc()
	return result, nil
}

func (s *PaymentService) dispatchEvent(ctx context.Context, ev *paystack.Event) (string, error) {
	switch ev.Event {
	case paystack.EventChargeSuccess:
		ch, err := ev.Charge()
		if err != nil {
			return "", err
		}
		if !ch.Succeeded() {
			return WebhookIgnored, nil
		}
		key := "charge:" + ch.Reference
		if s.cache.Seen(ctx, key) {
			return WebhookDuplicate, nil
		}

		v := ch.Verification()
		var dup bool
		if isTopUp(ch.Metadata, ch.Reference) {
			res, err := s.engine.CompleteTopUp(ctx, escrow.TopUpCompletion{
				Reference:  ch.Reference,
				PaidAmount: v.Amount,
				Currency:   v.Currency,
				UserID:     parseOptionalID(ch.Metadata.UserID),
				Source:     escrow.SourceWebhook,
			})
			if err != nil {
				return "", err
			}
			dup = res.Duplicate
			s.cache.Mark(ctx, key, "topup")
		} else {
			t, err := s.resolveTransaction(ctx, ch.Metadata, ch.Reference)
			if err != nil {
				return "", err
			}
			res, err := s.capture(ctx, t.ID, ch.Reference, v, escrow.SourceWebhook)
			if err != nil {
				return "", err
			}
			dup = res.Duplicate
			s.cache.Mark(ctx, key, "captured:"+t.ID.String())
		}
		if dup {
			return WebhookDuplicate, nil
		}
		return WebhookProcessed, nil

	case paystack.EventTransferSuccess:
		tr, err := ev.Transfer()
		if err != nil {
			return "", err
		}
		res, err := s.engine.CompletePayout(ctx, tr.Reference, models.Actor{Type: models.ActorWebhook})
		if err != nil {
			return "", err
		}
		return resultOf(res.Duplicate), nil

	case paystack.EventTransferFailed, paystack.EventTransferReversed:
		tr, err := ev.Transfer()
		if err != nil {
			return "", err
		}
		reason := tr.Reason
		if reason == "" {
			reason = ev.Event
		}
		res, err := s.engine.FailPayout(ctx, tr.Reference, models.Actor{Type: models.ActorWebhook}, reason)
		if err != nil {
			return "", err
		}
		return resultOf(res.Duplicate), nil
	}

	return WebhookIgnored, nil
}

type ReconcileStats struct {
	Checked  int
	Captured int
	ToppedUp int
	Skipped  int
	Failed   int
}

// Reconcile re-verifies checkouts and top-ups whose webhook never arrived.
// Only references untouched for settleAfter are considered so a buyer still
// on the payment page is left alone.
func (s *PaymentService) Reconcile(ctx context.Context, settleAfter time.Duration, limit int) (ReconcileStats, error) {
	var stats ReconcileStats

	txs, err := s.txs.ListPendingWithReference(ctx, time.Now().Add(-settleAfter), limit)
	if err != nil {
		return stats, err
	}
	for i := range txs {
		t := &txs[i]
		ref := *t.PaymentReference
		stats.Checked++
		if s.cache.Seen(ctx, "charge:"+ref) {
			stats.Skipped++
			continue
		}
		v, err := s.gateway.Verify(ctx, ref)
		if err != nil {
			s.logReconcileError("verify checkout", ref, err)
			stats.Failed++
			continue
		}
		if !v.Paid {
			stats.Skipped++
			continue
		}
		if _, err := s.capture(ctx, t.ID, ref, v, escrow.SourceReconcile); err != nil {
			s.logReconcileError("capture", ref, err)
			stats.Failed++
			continue
		}
		s.cache.Mark(ctx, "charge:"+ref, "captured:"+t.ID.String())
		stats.Captured++
	}

	topUps, err := s.topUps.ListPendingTopUps(ctx, limit)
	if err != nil {
		return stats, err
	}
	cutoff := time.Now().Add(-settleAfter)
	for _, wt := range topUps {
		if wt.UpdatedAt.After(cutoff) {
			continue
		}
		stats.Checked++
		if s.cache.Seen(ctx, "charge:"+wt.Reference) {
			stats.Skipped++
			continue
		}
		v, err := s.gateway.Verify(ctx, wt.Reference)
		if err != nil {
			s.logReconcileError("verify top-up", wt.Reference, err)
			stats.Failed++
			continue
		}
		if !v.Paid {
			stats.Skipped++
			continue
		}
		userID := wt.UserID
		if _, err := s.engine.CompleteTopUp(ctx, escrow.TopUpCompletion{
			Reference:  wt.Reference,
			PaidAmount: v.Amount,
			Currency:   v.Currency,
			UserID:     &userID,
			Source:     escrow.SourceReconcile,
		}); err != nil {
			s.logReconcileError("complete top-up", wt.Reference, err)
			stats.Failed++
			continue
		}
		s.cache.Mark(ctx, "charge:"+wt.Reference, "topup")
		stats.ToppedUp++
	}

	return stats, nil
}

// SettleCharge asks Paystack about the charge last issued for t and captures
// it when paid. It reports whether the checkout is now in escrow.
func (s *PaymentService) SettleCharge(ctx context.Context, t *models.Transaction) (bool, error) {
	if t.PaymentReference == nil {
		return false, nil
	}
	ref := *t.PaymentReference
	v, err := s.gateway.Verify(ctx, ref)
	if err != nil {
		return false, err
	}
	if !v.Paid {
		return false, nil
	}
	if _, err := s.capture(ctx, t.ID, ref, v, escrow.SourceReconcile); err != nil {
		return false, err
	}
	s.cache.Mark(ctx, "charge:"+ref, "captured:"+t.ID.String())
	return true, nil
}

func (s *PaymentService) logReconcileError(step, reference string, err error) {
	fields := []zap.Field{zap.String("step", step), zap.String("reference", reference), zap.Error(err)}
	if isFinal(err) {
		s.log.Warn("reconcile skipped reference", fields...)
		return
	}
	s.log.Error("reconcile failed", fields...)
}

func (s *PaymentService) capture(ctx context.Context, txID uuid.UUID, reference string, v *paystack.Verification, source string) (*escrow.CaptureResult, error) {
	if v.Reference != "" {
		reference = v.Reference
	}
	return s.engine.CapturePayment(ctx, escrow.Capture{
		TransactionID: txID,
		Reference:     reference,
		PaidAmount:    v.Amount,
		Currency:      v.Currency,
		Channel:       v.Channel,
		PayerEmail:    v.CustomerEmail,
		PayerName:     v.CustomerName,
		Source:        source,
	})
}

// resolveTransaction prefers the id carried in metadata and falls back to the
// reference stored at initialize time.
func (s *PaymentService) resolveTransaction(ctx context.Context, meta paystack.Metadata, reference string) (*models.Transaction, error) {
	if id, err := uuid.Parse(meta.TransactionID); err == nil {
		return s.txs.GetByID(ctx, id)
	}
	return s.txs.GetByReference(ctx, reference)
}

func (s *PaymentService) callbackURL(requested, path string) string {
	if requested != "" {
		return requested
	}
	if s.cfg.FrontendURL == "" {
		return ""
	}
	return s.cfg.FrontendURL + path
}

// checkBuyer lets anyone drive a guest checkout but only its buyer drive a
// signed-in one.
func checkBuyer(t *models.Transaction, callerID *uuid.UUID) error {
	if t.BuyerID == nil {
		return nil
	}
	if callerID == nil {
		return apperr.New(apperr.CodeUnauthorized, "sign in to pay for this order")
	}
	if *t.BuyerID != *callerID {
		return apperr.New(apperr.CodeUserMismatch, "transaction belongs to another buyer")
	}
	return nil
}

// viewFor hides buyer contact details from anonymous callers.
func viewFor(t *models.Transaction, callerID *uuid.UUID) *models.Transaction {
	if t == nil || callerID != nil {
		return t
	}
	v := *t
	v.BuyerEmail = ""
	v.BuyerName = ""
	v.BuyerPhone = nil
	return &v
}

func isTopUp(meta paystack.Metadata, reference string) bool {
	if meta.Purpose != "" {
		return meta.Purpose == paystack.PurposeWalletTopUp
	}
	return strings.HasPrefix(reference, RefPrefixTopUp)
}

func parseOptionalID(s string) *uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	return &id
}

func resultOf(duplicate bool) string {
	if duplicate {
		return WebhookDuplicate
	}
	return WebhookProcessed
}

// isFinal reports whether err is a business rejection that no retry can change.
func isFinal(err error) bool {
	switch apperr.CodeOf(err) {
	case apperr.CodeDuplicate, apperr.CodeAmountMismatch, apperr.CodeNotFound, apperr.CodeInvalidStatus,
		apperr.CodeUserMismatch, apperr.CodeValidation, apperr.CodeInsufficientFunds:
		return true
	}
	return false
}
