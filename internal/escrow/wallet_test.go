package escrow

import (
	"context"
	"sync"
	"testing"

	"github.com/escrow-storefront/backend/internal/apperr"
	"github.com/escrow-storefront/backend/internal/models"
	"github.com/google/uuid"
)

func TestGetBalanceWithoutWallet(t *testing.T) {
	e, _, _ := newTestEngine(t, "5")
	user := uuid.New()

	w, err := e.GetBalance(context.Background(), user)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if w.UserID != user || !w.AvailableBalance.IsZero() || !w.PendingBalance.IsZero() {
		t.Errorf("expected zero wallet, got %+v", w)
	}
}

func TestTopUpVerifiedTwiceCreditsOnce(t *testing.T) {
	e, _, _ := newTestEngine(t, "5")
	ctx := context.Background()
	user := uuid.New()

	if _, err := e.InitiateTopUp(ctx, user, dec("500"), "KES", "TOP-1"); err != nil {
		t.Fatalf("InitiateTopUp: %v", err)
	}

	completion := TopUpCompletion{Reference: "TOP-1", PaidAmount: dec("500"), Currency: "KES", UserID: &user, Source: SourceVerify}
	first, err := e.CompleteTopUp(ctx, completion)
	if err != nil {
		t.Fatalf("first verify: %v", err)
	}
	if first.Duplicate {
		t.Error("first verify reported duplicate")
	}

	second, err := e.CompleteTopUp(ctx, completion)
	if err != nil {
		t.Fatalf("second verify: %v", err)
	}
	if !second.Duplicate {
		t.Error("second verify not reported as duplicate")
	}
	if !second.Wallet.AvailableBalance.Equal(dec("500")) {
		t.Errorf("duplicate result wallet = %s, want 500", second.Wallet.AvailableBalance)
	}
	expectBalance(t, e, user, "500", "0")
}

func TestTopUpWebhookAndVerifyRace(t *testing.T) {
	e, _, _ := newTestEngine(t, "5")
	ctx := context.Background()
	user := uuid.New()

	if _, err := e.InitiateTopUp(ctx, user, dec("500"), "KES", "TOP-RACE"); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := TopUpCompletion{Reference: "TOP-RACE", PaidAmount: dec("500"), Currency: "KES", UserID: &user, Source: SourceVerify}
			if i%2 == 1 {
				c.Source = SourceWebhook
			}
			if _, err := e.CompleteTopUp(ctx, c); err != nil {
				t.Errorf("completion %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	expectBalance(t, e, user, "500", "0")
}

func TestTopUpWithoutInitializeRecordsOnFirstSight(t *testing.T) {
	e, _, _ := newTestEngine(t, "5")
	ctx := context.Background()
	user := uuid.New()

	c := TopUpCompletion{Reference: "TOP-WH", PaidAmount: dec("250"), Currency: "KES", UserID: &user, Source: SourceWebhook}
	if _, err := e.CompleteTopUp(ctx, c); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	res, err := e.CompleteTopUp(ctx, c)
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if !res.Duplicate {
		t.Error("second delivery not reported as duplicate")
	}
	expectBalance(t, e, user, "250", "0")

	_, err = e.CompleteTopUp(ctx, TopUpCompletion{Reference: "TOP-UNKNOWN", PaidAmount: dec("1"), Currency: "KES"})
	expectCode(t, err, apperr.CodeNotFound)
}

func TestTopUpRejections(t *testing.T) {
	e, _, _ := newTestEngine(t, "5")
	ctx := context.Background()
	owner := uuid.New()
	other := uuid.New()

	if _, err := e.InitiateTopUp(ctx, owner, dec("500"), "KES", "TOP-2"); err != nil {
		t.Fatal(err)
	}

	_, err := e.InitiateTopUp(ctx, owner, dec("500"), "KES", "TOP-2")
	expectCode(t, err, apperr.CodeDuplicate)

	_, err = e.CompleteTopUp(ctx, TopUpCompletion{Reference: "TOP-2", PaidAmount: dec("500"), Currency: "KES", UserID: &other})
	expectCode(t, err, apperr.CodeUserMismatch)

	_, err = e.CompleteTopUp(ctx, TopUpCompletion{Reference: "TOP-2", PaidAmount: dec("499"), Currency: "KES", UserID: &owner})
	expectCode(t, err, apperr.CodeAmountMismatch)

	expectBalance(t, e, owner, "0", "0")
	expectBalance(t, e, other, "0", "0")
}

func TestWalletRejectsForeignCurrency(t *testing.T) {
	e, _, _ := newTestEngine(t, "5")
	ctx := context.Background()
	user := uuid.New()

	if _, err := e.CompleteTopUp(ctx, TopUpCompletion{Reference: "TOP-KES", PaidAmount: dec("250"), Currency: "KES", UserID: &user}); err != nil {
		t.Fatalf("CompleteTopUp: %v", err)
	}

	_, err := e.CompleteTopUp(ctx, TopUpCompletion{Reference: "TOP-NGN", PaidAmount: dec("9000"), Currency: "NGN", UserID: &user})
	expectCode(t, err, apperr.CodeAmountMismatch)

	_, err = e.Credit(ctx, user, dec("10"), models.BucketAvailable, "GHS", "ADJ-GHS", models.AdminActor(uuid.New()))
	expectCode(t, err, apperr.CodeAmountMismatch)

	expectBalance(t, e, user, "250", "0")

	_, err = e.InitiateTopUp(ctx, user, dec("50"), "NGN", "TOP-NGN-2")
	expectCode(t, err, apperr.CodeValidation)

	// the rejected charge can still be recorded once the currency matches
	if _, err := e.CompleteTopUp(ctx, TopUpCompletion{Reference: "TOP-NGN", PaidAmount: dec("100"), Currency: "kes", UserID: &user}); err != nil {
		t.Fatalf("CompleteTopUp after rejection: %v", err)
	}
	expectBalance(t, e, user, "350", "0")
}

func TestCreditDebitByReference(t *testing.T) {
	e, _, _ := newTestEngine(t, "5")
	ctx := context.Background()
	user := uuid.New()
	admin := models.AdminActor(uuid.New())

	if _, err := e.Credit(ctx, user, dec("100"), models.BucketAvailable, "KES", "adj-1", admin); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	res, err := e.Credit(ctx, user, dec("100"), models.BucketAvailable, "KES", "adj-1", admin)
	if err != nil {
		t.Fatalf("repeated Credit: %v", err)
	}
	if !res.Duplicate {
		t.Error("repeated reference not reported as duplicate")
	}
	expectBalance(t, e, user, "100", "0")

	if _, err := e.Debit(ctx, user, dec("40"), models.BucketAvailable, "KES", "adj-2", admin); err != nil {
		t.Fatalf("Debit: %v", err)
	}
	expectBalance(t, e, user, "60", "0")

	_, err = e.Debit(ctx, user, dec("61"), models.BucketAvailable, "KES", "adj-3", admin)
	expectCode(t, err, apperr.CodeInsufficientFunds)
	expectBalance(t, e, user, "60", "0")

	// the failed debit must not burn its reference
	if _, err := e.Credit(ctx, user, dec("1"), models.BucketAvailable, "KES", "adj-3", admin); err != nil {
		t.Fatalf("credit reusing rolled-back reference: %v", err)
	}
	expectBalance(t, e, user, "61", "0")

	_, err = e.Credit(ctx, user, dec("1"), "savings", "KES", "adj-4", admin)
	expectCode(t, err, apperr.CodeValidation)
	_, err = e.Credit(ctx, user, dec("0"), models.BucketAvailable, "KES", "adj-5", admin)
	expectCode(t, err, apperr.CodeValidation)
}

func TestPayoutLifecycle(t *testing.T) {
	e, _, _ := newTestEngine(t, "5")
	ctx := context.Background()
	seller := uuid.New()
	method := uuid.New()
	admin := models.AdminActor(uuid.New())

	if _, err := e.Credit(ctx, seller, dec("1000"), models.BucketAvailable, "KES", "seed", admin); err != nil {
		t.Fatal(err)
	}

	_, err := e.RequestPayout(ctx, seller, dec("2000"), "KES", method, "PAY-0")
	expectCode(t, err, apperr.CodeInsufficientFunds)

	if _, err := e.RequestPayout(ctx, seller, dec("400"), "KES", method, "PAY-1"); err != nil {
		t.Fatalf("RequestPayout: %v", err)
	}
	expectBalance(t, e, seller, "600", "0")

	if _, err := e.FailPayout(ctx, "PAY-1", admin, "invalid till"); err != nil {
		t.Fatalf("FailPayout: %v", err)
	}
	expectBalance(t, e, seller, "1000", "0")

	res, err := e.FailPayout(ctx, "PAY-1", admin, "invalid till")
	if err != nil {
		t.Fatalf("repeated FailPayout: %v", err)
	}
	if !res.Duplicate {
		t.Error("repeated FailPayout not reported as duplicate")
	}
	expectBalance(t, e, seller, "1000", "0")

	_, err = e.CompletePayout(ctx, "PAY-1", admin)
	expectCode(t, err, apperr.CodeInvalidStatus)

	if _, err := e.RequestPayout(ctx, seller, dec("300"), "KES", method, "PAY-2"); err != nil {
		t.Fatal(err)
	}
	done, err := e.CompletePayout(ctx, "PAY-2", admin)
	if err != nil {
		t.Fatalf("CompletePayout: %v", err)
	}
	if !done.Wallet.TotalSpent.Equal(dec("300")) {
		t.Errorf("total_spent = %s, want 300", done.Wallet.TotalSpent)
	}
	expectBalance(t, e, seller, "700", "0")

	_, err = e.CompletePayout(ctx, "seed", admin)
	expectCode(t, err, apperr.CodeValidation)
}
