package services

import (
	"context"
	"net/mail"
	"strings"

	"github.com/escrow-storefront/backend/internal/apperr"
	"github.com/escrow-storefront/backend/internal/models"
	"github.com/escrow-storefront/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxQuantity = 100

// StorefrontService serves the public shop pages and turns a checkout into a
// pending transaction.
type StorefrontService struct {
	storeRepo  *repositories.StoreRepo
	reviewRepo *repositories.ReviewRepo
	txRepo     *repositories.TransactionRepo
	log        *zap.Logger
}

func NewStorefrontService(storeRepo *repositories.StoreRepo, reviewRepo *repositories.ReviewRepo, txRepo *repositories.TransactionRepo, log *zap.Logger) *StorefrontService {
	return &StorefrontService{
		storeRepo:  storeRepo,
		reviewRepo: reviewRepo,
		txRepo:     txRepo,
		log:        log,
	}
}

func (s *StorefrontService) GetStore(ctx context.Context, slug string) (*models.StoreWithProducts, error) {
	store, err := s.storeRepo.GetActiveBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	products, err := s.storeRepo.ListProducts(ctx, store.ID, true)
	if err != nil {
		return nil, err
	}
	return &models.StoreWithProducts{Store: *store, Products: products}, nil
}

func (s *StorefrontService) GetProduct(ctx context.Context, slug string, productID uuid.UUID) (*models.Store, *models.StoreProduct, error) {
	store, err := s.storeRepo.GetActiveBySlug(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	sp, err := s.storeRepo.GetVisibleProduct(ctx, store.ID, productID)
	if err != nil {
		return nil, nil, err
	}
	return store, sp, nil
}

type CheckoutInput struct {
	BuyerID    *uuid.UUID
	BuyerEmail string
	BuyerName  string
	BuyerPhone *string
	Quantity   int
}

// Checkout freezes the product as currently listed into a pending transaction.
func (s *StorefrontService) Checkout(ctx context.Context, slug string, productID uuid.UUID, in CheckoutInput) (*models.Transaction, error) {
	store, sp, err := s.GetProduct(ctx, slug, productID)
	if err != nil {
		return nil, err
	}
	t, err := BuildCheckout(store, sp, in)
	if err != nil {
		return nil, err
	}
	if err := s.txRepo.Create(ctx, t); err != nil {
		return nil, err
	}

	s.log.Info("checkout created",
		zap.String("transaction_id", t.ID.String()),
		zap.String("store", store.Slug),
		zap.String("amount", t.Amount.StringFixed(2)),
		zap.Bool("guest", t.BuyerID == nil),
	)
	return t, nil
}

// BuildCheckout validates a checkout request against the listing and returns
// the transaction to insert.
func BuildCheckout(store *models.Store, sp *models.StoreProduct, in CheckoutInput) (*models.Transaction, error) {
	email := strings.TrimSpace(in.BuyerEmail)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.Validation("a valid buyer_email is required")
	}
	name := strings.TrimSpace(in.BuyerName)
	if name == "" {
		return nil, apperr.Validation("buyer_name is required")
	}
	qty := in.Quantity
	if qty == 0 {
		qty = 1
	}
	if qty < 1 || qty > maxQuantity {
		return nil, apperr.Validation("quantity must be between 1 and 100")
	}
	if in.BuyerID != nil && *in.BuyerID == store.OwnerID {
		return nil, apperr.Validation("you cannot buy from your own store")
	}
	if !sp.Price.IsPositive() {
		return nil, apperr.Validation("product has no price")
	}

	images := make([]string, len(sp.Images))
	copy(images, sp.Images)
	return &models.Transaction{
		StoreID:    store.ID,
		ProductID:  sp.ID,
		SellerID:   store.OwnerID,
		BuyerID:    in.BuyerID,
		BuyerEmail: strings.ToLower(email),
		BuyerName:  name,
		BuyerPhone: in.BuyerPhone,
		Item: models.ItemSnapshot{
			Name:     sp.Name,
			Price:    sp.Price,
			Currency: store.Currency,
			Images:   images,
		},
		Quantity: qty,
		Amount:   sp.Price.Mul(decimal.NewFromInt(int64(qty))).Round(2),
		Currency: store.Currency,
		Status:   models.TxStatusPending,
	}, nil
}

// --- Reviews ---

type ReviewInput struct {
	UserID       *uuid.UUID
	ReviewerName string
	Rating       int
	Comment      *string
}

func (s *StorefrontService) ListReviews(ctx context.Context, slug string, productID uuid.UUID, limit, offset int) ([]models.Review, error) {
	store, sp, err := s.GetProduct(ctx, slug, productID)
	if err != nil {
		return nil, err
	}
	return s.reviewRepo.ListReviews(ctx, store.ID, sp.ID, limit, offset)
}

func (s *StorefrontService) CreateReview(ctx context.Context, slug string, productID uuid.UUID, in ReviewInput) (*models.Review, error) {
	if err := validateRating(in.Rating); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.ReviewerName)
	if name == "" {
		return nil, apperr.Validation("reviewer_name is required")
	}
	store, sp, err := s.GetProduct(ctx, slug, productID)
	if err != nil {
		return nil, err
	}
	if in.UserID != nil && *in.UserID == store.OwnerID {
		return nil, apperr.Validation("you cannot review your own product")
	}

	rv := &models.Review{
		StoreID:      store.ID,
		ProductID:    sp.ID,
		UserID:       in.UserID,
		ReviewerName: name,
		Rating:       in.Rating,
		Comment:      trimmed(in.Comment),
	}
	if err := s.reviewRepo.CreateReview(ctx, rv); err != nil {
		return nil, err
	}
	return rv, nil
}

func (s *StorefrontService) UpdateReview(ctx context.Context, id, userID uuid.UUID, rating int, comment *string) (*models.Review, error) {
	if err := validateRating(rating); err != nil {
		return nil, err
	}
	rv, err := s.reviewRepo.GetReview(ctx, id)
	if err != nil {
		return nil, err
	}
	if rv.UserID == nil || *rv.UserID != userID {
		return nil, apperr.New(apperr.CodeForbidden, "you can only edit your own review")
	}
	rv.Rating = rating
	rv.Comment = trimmed(comment)
	if err := s.reviewRepo.UpdateReview(ctx, rv); err != nil {
		return nil, err
	}
	return rv, nil
}

func (s *StorefrontService) DeleteReview(ctx context.Context, id, userID uuid.UUID) error {
	rv, err := s.reviewRepo.GetReview(ctx, id)
	if err != nil {
		return err
	}
	if rv.UserID == nil || *rv.UserID != userID {
		return apperr.New(apperr.CodeForbidden, "you can only delete your own review")
	}
	return s.reviewRepo.DeleteReview(ctx, id, userID)
}

func validateRating(r int) error {
	if r < 1 || r > 5 {
		return apperr.Validation("rating must be between 1 and 5")
	}
	return nil
}

// --- Questions ---

func (s *StorefrontService) ListQuestions(ctx context.Context, slug string, productID uuid.UUID, limit, offset int) ([]models.Question, error) {
	store, sp, err := s.GetProduct(ctx, slug, productID)
	if err != nil {
		return nil, err
	}
	return s.reviewRepo.ListQuestions(ctx, store.ID, sp.ID, limit, offset)
}

func (s *StorefrontService) AskQuestion(ctx context.Context, slug string, productID uuid.UUID, userID *uuid.UUID, askerName, question string) (*models.Question, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperr.Validation("question is required")
	}
	askerName = strings.TrimSpace(askerName)
	if askerName == "" {
		return nil, apperr.Validation("asker_name is required")
	}
	store, sp, err := s.GetProduct(ctx, slug, productID)
	if err != nil {
		return nil, err
	}

	q := &models.Question{
		StoreID:   store.ID,
		ProductID: sp.ID,
		UserID:    userID,
		AskerName: askerName,
		Question:  question,
	}
	if err := s.reviewRepo.CreateQuestion(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// AnswerQuestion is reserved to the owner of the store the question was asked in.
func (s *StorefrontService) AnswerQuestion(ctx context.Context, id, userID uuid.UUID, answer string) (*models.Question, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, apperr.Validation("answer is required")
	}
	q, err := s.reviewRepo.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	store, err := s.storeRepo.GetByID(ctx, q.StoreID)
	if err != nil {
		return nil, err
	}
	if store.OwnerID != userID {
		return nil, apperr.New(apperr.CodeForbidden, "only the seller can answer questions")
	}
	return s.reviewRepo.AnswerQuestion(ctx, id, userID, answer)
}

// DeleteQuestion may be done by whoever asked it or by the store owner.
func (s *StorefrontService) DeleteQuestion(ctx context.Context, id, userID uuid.UUID) error {
	q, err := s.reviewRepo.GetQuestion(ctx, id)
	if err != nil {
		return err
	}
	if q.UserID == nil || *q.UserID != userID {
		store, err := s.storeRepo.GetByID(ctx, q.StoreID)
		if err != nil {
			return err
		}
		if store.OwnerID != userID {
			return apperr.New(apperr.CodeForbidden, "you cannot delete this question")
		}
	}
	return s.reviewRepo.DeleteQuestion(ctx, id)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
