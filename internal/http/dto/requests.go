package dto

import "github.com/shopspring/decimal"

// Paystack

type InitializePaymentRequest struct {
	TransactionID string `json:"transaction_id"`
	Email         string `json:"email,omitempty"`
	CallbackURL   string `json:"callback_url,omitempty"`
}

type VerifyPaymentRequest struct {
	Reference string `json:"reference"`
}

type TopUpInitializeRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency,omitempty"`
	Email       string          `json:"email,omitempty"`
	CallbackURL string          `json:"callback_url,omitempty"`
}

// Storefront

type CheckoutRequest struct {
	BuyerEmail string  `json:"buyer_email"`
	BuyerName  string  `json:"buyer_name"`
	BuyerPhone *string `json:"buyer_phone,omitempty"`
	Quantity   int     `json:"quantity"`
}

type ReviewRequest struct {
	ReviewerName string  `json:"reviewer_name"`
	Rating       int     `json:"rating"`
	Comment      *string `json:"comment,omitempty"`
}

type QuestionRequest struct {
	AskerName string `json:"asker_name"`
	Question  string `json:"question"`
}

type AnswerRequest struct {
	Answer string `json:"answer"`
}

// Stores

type CreateStoreRequest struct {
	Slug        string  `json:"slug"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Country     string  `json:"country"`
	Currency    string  `json:"currency,omitempty"`
	LogoURL     *string `json:"logo_url,omitempty"`
}

type UpdateStoreRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	LogoURL     *string `json:"logo_url,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// AddStoreProductRequest lists an existing catalog product (ProductID) or
// creates a new one from Name/BasePrice.
type AddStoreProductRequest struct {
	ProductID   string           `json:"product_id,omitempty"`
	Name        string           `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	BasePrice   decimal.Decimal  `json:"base_price,omitempty"`
	Images      []string         `json:"images,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Visible     *bool            `json:"visible,omitempty"`
}

type ImportProductRequest struct {
	URL     string `json:"url"`
	StoreID string `json:"store_id,omitempty"`
}

// Payment methods

type PaymentMethodRequest struct {
	Country       string  `json:"country"`
	Kind          string  `json:"kind"`
	Label         string  `json:"label"`
	Provider      *string `json:"provider,omitempty"`
	AccountName   *string `json:"account_name,omitempty"`
	AccountNumber *string `json:"account_number,omitempty"`
	BankCode      *string `json:"bank_code,omitempty"`
	PhoneNumber   *string `json:"phone_number,omitempty"`
	PaybillNumber *string `json:"paybill_number,omitempty"`
	TillNumber    *string `json:"till_number,omitempty"`
	IsDefault     bool    `json:"is_default"`
}

// Transactions, disputes, wallet

type OpenDisputeRequest struct {
	Reason string `json:"reason"`
}

type DisputeMessageRequest struct {
	Body string `json:"body"`
}

type ResolveDisputeRequest struct {
	Outcome    string `json:"outcome"` // release / refund
	Resolution string `json:"resolution"`
}

type RefundRequest struct {
	Reason string `json:"reason,omitempty"`
}

type PayoutRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	PaymentMethodID string          `json:"payment_method_id,omitempty"`
}

type FailPayoutRequest struct {
	Reason string `json:"reason,omitempty"`
}
