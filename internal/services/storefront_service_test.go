package services

import (
	"strings"
	"testing"

	"github.com/escrow-storefront/backend/internal/apperr"
	"github.com/escrow-storefront/backend/internal/models"
	"github.com/escrow-storefront/backend/internal/rbac"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func testListing() (*models.Store, *models.StoreProduct) {
	store := &models.Store{ID: uuid.New(), OwnerID: uuid.New(), Slug: "kiondo-hub", Currency: "KES", IsActive: true}
	sp := &models.StoreProduct{
		Product: models.Product{ID: uuid.New(), Name: "Kiondo Basket", BasePrice: decimal.NewFromInt(2000), Images: []string{"https://img/1.jpg"}},
		StoreID: store.ID,
		Price:   decimal.RequireFromString("2450.50"),
	}
	return store, sp
}

func TestBuildCheckout(t *testing.T) {
	store, sp := testListing()
	buyer := uuid.New()

	tr, err := BuildCheckout(store, sp, CheckoutInput{
		BuyerID:    &buyer,
		BuyerEmail: " Amina@Example.com ",
		BuyerName:  "Amina",
		Quantity:   3,
	})
	if err != nil {
		t.Fatalf("BuildCheckout: %v", err)
	}
	if !tr.Amount.Equal(decimal.RequireFromString("7351.50")) {
		t.Errorf("amount = %s, want 7351.50", tr.Amount)
	}
	if tr.SellerID != store.OwnerID || tr.Status != models.TxStatusPending || tr.Currency != "KES" {
		t.Errorf("unexpected transaction %+v", tr)
	}
	if tr.Item.Name != "Kiondo Basket" || !tr.Item.Price.Equal(sp.Price) || len(tr.Item.Images) != 1 {
		t.Errorf("snapshot = %+v", tr.Item)
	}
	if tr.BuyerEmail != "amina@example.com" {
		t.Errorf("buyer email = %q", tr.BuyerEmail)
	}

	// snapshot must not follow later listing edits
	sp.Price = decimal.NewFromInt(9999)
	sp.Images[0] = "https://img/changed.jpg"
	if tr.Item.Price.Equal(sp.Price) || tr.Item.Images[0] != "https://img/1.jpg" {
		t.Error("snapshot shares state with the listing")
	}
}

func TestBuildCheckoutGuestDefaultsQuantity(t *testing.T) {
	store, sp := testListing()
	tr, err := BuildCheckout(store, sp, CheckoutInput{BuyerEmail: "guest@example.com", BuyerName: "Guest"})
	if err != nil {
		t.Fatalf("BuildCheckout: %v", err)
	}
	if tr.BuyerID != nil || tr.Quantity != 1 || !tr.Amount.Equal(sp.Price) {
		t.Errorf("unexpected guest checkout %+v", tr)
	}
}

func TestBuildCheckoutRejects(t *testing.T) {
	store, sp := testListing()
	owner := store.OwnerID

	tests := []struct {
		name string
		in   CheckoutInput
	}{
		{"bad email", CheckoutInput{BuyerEmail: "not-an-email", BuyerName: "A"}},
		{"missing name", CheckoutInput{BuyerEmail: "a@example.com"}},
		{"negative quantity", CheckoutInput{BuyerEmail: "a@example.com", BuyerName: "A", Quantity: -1}},
		{"too many", CheckoutInput{BuyerEmail: "a@example.com", BuyerName: "A", Quantity: 101}},
		{"own store", CheckoutInput{BuyerID: &owner, BuyerEmail: "a@example.com", BuyerName: "A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := BuildCheckout(store, sp, tt.in); !apperr.HasCode(err, apperr.CodeValidation) {
				t.Errorf("expected VALIDATION_ERROR, got %v", err)
			}
		})
	}
}

func TestNewStore(t *testing.T) {
	owner := uuid.New()

	tests := []struct {
		name     string
		in       StoreInput
		currency string
		wantErr  bool
	}{
		{"kenya", StoreInput{Slug: "Mama-Mboga", Name: "Mama Mboga", Country: "ke"}, "KES", false},
		{"nigeria", StoreInput{Slug: "lagos-wears", Name: "Lagos Wears", Country: "NG"}, "NGN", false},
		{"explicit currency", StoreInput{Slug: "dollar-shop", Name: "Dollar", Country: "KE", Currency: "usd"}, "USD", false},
		{"unknown country uses default", StoreInput{Slug: "ug-shop", Name: "UG", Country: "UG"}, "KES", false},
		{"short slug", StoreInput{Slug: "ab", Name: "x", Country: "KE"}, "", true},
		{"slug with space", StoreInput{Slug: "my shop", Name: "x", Country: "KE"}, "", true},
		{"trailing dash", StoreInput{Slug: "shop-", Name: "x", Country: "KE"}, "", true},
		{"no name", StoreInput{Slug: "shop", Country: "KE"}, "", true},
		{"bad country", StoreInput{Slug: "shop", Name: "x", Country: "Kenya"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewStore(owner, tt.in, "KES")
			if tt.wantErr {
				if !apperr.HasCode(err, apperr.CodeValidation) {
					t.Errorf("expected VALIDATION_ERROR, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewStore: %v", err)
			}
			if s.Currency != tt.currency {
				t.Errorf("currency = %q, want %q", s.Currency, tt.currency)
			}
			if !s.IsActive || s.OwnerID != owner {
				t.Errorf("unexpected store %+v", s)
			}
		})
	}
}

func TestCheckSettlementCurrency(t *testing.T) {
	kes := []models.Store{{Currency: "KES"}}
	tests := []struct {
		name     string
		currency string
		existing []models.Store
		wallet   *models.Wallet
		wantErr  bool
	}{
		{"first store", "NGN", nil, &models.Wallet{}, false},
		{"same currency", "KES", kes, &models.Wallet{Currency: "KES"}, false},
		{"case differs only", "kes", kes, nil, false},
		{"second country", "NGN", kes, &models.Wallet{Currency: "KES"}, true},
		{"wallet from a top-up", "NGN", nil, &models.Wallet{Currency: "KES"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckSettlementCurrency(tt.currency, tt.existing, tt.wallet)
			if tt.wantErr {
				if !apperr.HasCode(err, apperr.CodeValidation) {
					t.Errorf("expected VALIDATION_ERROR, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func strPtr(s string) *string { return &s }

func TestNormalizePaymentMethod(t *testing.T) {
	tests := []struct {
		name    string
		pm      models.PaymentMethod
		wantErr bool
	}{
		{"paybill", models.PaymentMethod{Country: "ke", Kind: "mobile_money_paybill", Label: "Shop", PaybillNumber: strPtr("247247"), AccountNumber: strPtr("0712")}, false},
		{"paybill without account", models.PaymentMethod{Country: "KE", Kind: "mobile_money_paybill", Label: "Shop", PaybillNumber: strPtr("247247"), AccountNumber: strPtr("  ")}, true},
		{"till", models.PaymentMethod{Country: "KE", Kind: "MOBILE_MONEY_TILL", Label: "Till", TillNumber: strPtr("123456")}, false},
		{"phone", models.PaymentMethod{Country: "KE", Kind: "mobile_money_phone", Label: "M-Pesa", PhoneNumber: strPtr("+254712000000")}, false},
		{"bank without code", models.PaymentMethod{Country: "NG", Kind: "bank_account", Label: "GTB", AccountNumber: strPtr("0123456789")}, true},
		{"unknown kind", models.PaymentMethod{Country: "KE", Kind: "crypto", Label: "x"}, true},
		{"missing label", models.PaymentMethod{Country: "KE", Kind: "mobile_money_till", TillNumber: strPtr("1")}, true},
		{"bad country", models.PaymentMethod{Country: "KEN", Kind: "mobile_money_till", Label: "x", TillNumber: strPtr("1")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pm := tt.pm
			err := NormalizePaymentMethod(&pm)
			if tt.wantErr {
				if !apperr.HasCode(err, apperr.CodeValidation) {
					t.Errorf("expected VALIDATION_ERROR, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizePaymentMethod: %v", err)
			}
			if pm.Country != "KE" || pm.Kind != strings.ToLower(tt.pm.Kind) {
				t.Errorf("not normalized: %+v", pm)
			}
		})
	}
}

func TestParticipantRole(t *testing.T) {
	buyer := uuid.New()
	tr := &models.Transaction{SellerID: uuid.New(), BuyerID: &buyer}

	tests := []struct {
		name   string
		userID uuid.UUID
		role   string
		want   string
		ok     bool
	}{
		{"seller", tr.SellerID, rbac.RoleUser, "seller", true},
		{"buyer", buyer, rbac.RoleUser, "buyer", true},
		{"stranger", uuid.New(), rbac.RoleUser, "", false},
		{"support", uuid.New(), rbac.RoleSupport, "support", true},
		{"admin", uuid.New(), rbac.RoleAdmin, "admin", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParticipantRole(tr, tt.userID, tt.role)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ParticipantRole = %q, %v; want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}

	guest := &models.Transaction{SellerID: uuid.New()}
	if _, ok := ParticipantRole(guest, uuid.New(), rbac.RoleUser); ok {
		t.Error("stranger matched a guest checkout")
	}
}
