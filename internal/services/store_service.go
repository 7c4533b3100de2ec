package services

import (
	"context"
	"regexp"
	"strings"

	"github.com/escrow-storefront/backend/internal/apperr"
	"github.com/escrow-storefront/backend/internal/linkpreview"
	"github.com/escrow-storefront/backend/internal/models"
	"github.com/escrow-storefront/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var slugRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{1,46}[a-z0-9])$`)

// currencyByCountry covers the Paystack markets.
var currencyByCountry = map[string]string{
	"KE": "KES",
	"NG": "NGN",
	"GH": "GHS",
	"ZA": "ZAR",
	"CI": "XOF",
}

// WalletReader is how the store service learns a seller's settlement currency.
type WalletReader interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
}

// StoreService is the seller's side of the storefront: stores and listings.
type StoreService struct {
	storeRepo       *repositories.StoreRepo
	wallets         WalletReader
	fetcher         *linkpreview.Fetcher
	defaultCurrency string
	log             *zap.Logger
}

func NewStoreService(storeRepo *repositories.StoreRepo, wallets WalletReader, fetcher *linkpreview.Fetcher, defaultCurrency string, log *zap.Logger) *StoreService {
	return &StoreService{
		storeRepo:       storeRepo,
		wallets:         wallets,
		fetcher:         fetcher,
		defaultCurrency: defaultCurrency,
		log:             log,
	}
}

type StoreInput struct {
	Slug        string
	Name        string
	Description *string
	Country     string
	Currency    string
	LogoURL     *string
}

func (s *StoreService) CreateStore(ctx context.Context, ownerID uuid.UUID, in StoreInput) (*models.Store, error) {
	store, err := NewStore(ownerID, in, s.defaultCurrency)
	if err != nil {
		return nil, err
	}
	existing, err := s.storeRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	wallet, err := s.wallets.GetBalance(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if err := CheckSettlementCurrency(store.Currency, existing, wallet); err != nil {
		return nil, err
	}
	if err := s.storeRepo.Create(ctx, store); err != nil {
		return nil, err
	}
	s.log.Info("store created", zap.String("store_id", store.ID.String()), zap.String("slug", store.Slug))
	return store, nil
}

// NewStore validates in and fills the currency from the country when absent.
func NewStore(ownerID uuid.UUID, in StoreInput, defaultCurrency string) (*models.Store, error) {
	slug := strings.ToLower(strings.TrimSpace(in.Slug))
	if !slugRe.MatchString(slug) {
		return nil, apperr.Validation("slug must be 3-48 lowercase letters, digits or dashes")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	country := strings.ToUpper(strings.TrimSpace(in.Country))
	if len(country) != 2 {
		return nil, apperr.Validation("country must be an ISO 3166 alpha-2 code")
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = currencyByCountry[country]
	}
	if currency == "" {
		currency = defaultCurrency
	}
	if len(currency) != 3 {
		return nil, apperr.Validation("currency must be an ISO 4217 code")
	}

	return &models.Store{
		OwnerID:     ownerID,
		Slug:        slug,
		Name:        name,
		Description: trimmed(in.Description),
		Country:     country,
		Currency:    currency,
		LogoURL:     trimmed(in.LogoURL),
		IsActive:    true,
	}, nil
}

// CheckSettlementCurrency keeps a seller on one currency: escrow credits land
// in a single wallet and are never converted.
func CheckSettlementCurrency(currency string, existing []models.Store, wallet *models.Wallet) error {
	for _, st := range existing {
		if !strings.EqualFold(st.Currency, currency) {
			return apperr.Validation("your stores settle in " + st.Currency + ", a new store must use the same currency")
		}
	}
	if wallet != nil && wallet.Currency != "" && !strings.EqualFold(wallet.Currency, currency) {
		return apperr.Validation("your wallet holds " + wallet.Currency + ", a new store must use the same currency")
	}
	return nil
}

func (s *StoreService) ListMine(ctx context.Context, ownerID uuid.UUID) ([]models.Store, error) {
	return s.storeRepo.ListByOwner(ctx, ownerID)
}

func (s *StoreService) UpdateStore(ctx context.Context, storeID, ownerID uuid.UUID, name string, description, logoURL *string, isActive *bool) (*models.Store, error) {
	store, err := s.ownedStore(ctx, storeID, ownerID)
	if err != nil {
		return nil, err
	}
	if n := strings.TrimSpace(name); n != "" {
		store.Name = n
	}
	if description != nil {
		store.Description = trimmed(description)
	}
	if logoURL != nil {
		store.LogoURL = trimmed(logoURL)
	}
	if isActive != nil {
		store.IsActive = *isActive
	}
	if err := s.storeRepo.Update(ctx, store); err != nil {
		return nil, err
	}
	return store, nil
}

type ListingInput struct {
	ProductID   *uuid.UUID
	Name        string
	Description *string
	BasePrice   decimal.Decimal
	Images      []string
	Category    *string
	Price       *decimal.Decimal
	Visible     *bool
}

// AddProduct lists an existing catalog product in the store, or creates the
// catalog entry first when no ProductID is given.
func (s *StoreService) AddProduct(ctx context.Context, storeID, ownerID uuid.UUID, in ListingInput) (*models.StoreProduct, error) {
	store, err := s.ownedStore(ctx, storeID, ownerID)
	if err != nil {
		return nil, err
	}

	var product *models.Product
	if in.ProductID != nil {
		product, err = s.storeRepo.GetProduct(ctx, *in.ProductID)
		if err != nil {
			return nil, err
		}
	} else {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			return nil, apperr.Validation("name is required for a new product")
		}
		product = &models.Product{
			Name:        name,
			Description: trimmed(in.Description),
			BasePrice:   in.BasePrice,
			Currency:    store.Currency,
			Images:      in.Images,
			Category:    trimmed(in.Category),
		}
		if err := s.storeRepo.CreateProduct(ctx, product); err != nil {
			return nil, err
		}
	}

	return s.list(ctx, store, product, in.Price, in.Visible)
}

func (s *StoreService) RemoveProduct(ctx context.Context, storeID, ownerID, productID uuid.UUID) error {
	if _, err := s.ownedStore(ctx, storeID, ownerID); err != nil {
		return err
	}
	return s.storeRepo.RemoveStoreProduct(ctx, storeID, productID)
}

type ImportResult struct {
	Product *models.Product      `json:"product"`
	Preview *linkpreview.Preview `json:"preview"`
	Listing *models.StoreProduct `json:"listing,omitempty"`
}

// ImportProduct creates a catalog product from a product page and, when
// storeID is set, lists it there at the scraped price.
func (s *StoreService) ImportProduct(ctx context.Context, ownerID uuid.UUID, rawURL string, storeID *uuid.UUID) (*ImportResult, error) {
	var store *models.Store
	if storeID != nil {
		st, err := s.ownedStore(ctx, *storeID, ownerID)
		if err != nil {
			return nil, err
		}
		store = st
	}

	preview, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:      preview.Title,
		Images:    preview.Images,
		Currency:  preview.Currency,
		SourceURL: &preview.URL,
	}
	if preview.Description != "" {
		product.Description = &preview.Description
	}
	if preview.Price != nil {
		product.BasePrice = *preview.Price
	}
	if product.Currency == "" {
		product.Currency = s.defaultCurrency
		if store != nil {
			product.Currency = store.Currency
		}
	}
	if err := s.storeRepo.CreateProduct(ctx, product); err != nil {
		return nil, err
	}
	s.log.Info("product imported", zap.String("product_id", product.ID.String()), zap.String("url", preview.URL))

	res := &ImportResult{Product: product, Preview: preview}
	if store != nil && product.BasePrice.IsPositive() {
		listing, err := s.list(ctx, store, product, nil, nil)
		if err != nil {
			return nil, err
		}
		res.Listing = listing
	}
	return res, nil
}

func (s *StoreService) list(ctx context.Context, store *models.Store, product *models.Product, price *decimal.Decimal, visible *bool) (*models.StoreProduct, error) {
	p := product.BasePrice
	if price != nil {
		p = *price
	}
	if !p.IsPositive() {
		return nil, apperr.Validation("price must be positive")
	}
	if !p.Equal(p.Round(2)) {
		return nil, apperr.Validation("price has more than two decimal places")
	}
	vis := true
	if visible != nil {
		vis = *visible
	}
	if err := s.storeRepo.UpsertStoreProduct(ctx, store.ID, product.ID, p, vis); err != nil {
		return nil, err
	}
	return &models.StoreProduct{Product: *product, StoreID: store.ID, Price: p, IsVisible: vis}, nil
}

func (s *StoreService) ownedStore(ctx context.Context, storeID, ownerID uuid.UUID) (*models.Store, error) {
	store, err := s.storeRepo.GetByID(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if store.OwnerID != ownerID {
		return nil, apperr.New(apperr.CodeForbidden, "you do not own this store")
	}
	return store, nil
}
