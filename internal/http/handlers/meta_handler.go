package handlers

import (
	"github.com/escrow-storefront/backend/internal/http/dto"
	"github.com/escrow-storefront/backend/internal/models"
	"github.com/gofiber/fiber/v2"
)

type MetaHandler struct{}

func NewMetaHandler() *MetaHandler {
	return &MetaHandler{}
}

type MetaCategory struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type MetaCountry struct {
	Code          string   `json:"code"`
	Label         string   `json:"label"`
	Currency      string   `json:"currency"`
	PayoutMethods []string `json:"payout_methods"`
}

var predefinedCategories = []MetaCategory{
	{ID: "fashion", Label: "Fashion & Apparel"},
	{ID: "beauty", Label: "Beauty & Personal Care"},
	{ID: "electronics", Label: "Electronics"},
	{ID: "phones", Label: "Phones & Accessories"},
	{ID: "home", Label: "Home & Kitchen"},
	{ID: "crafts", Label: "Arts & Crafts"},
	{ID: "food", Label: "Food & Groceries"},
	{ID: "health", Label: "Health & Wellness"},
	{ID: "kids", Label: "Baby & Kids"},
	{ID: "sports", Label: "Sports & Outdoors"},
	{ID: "books", Label: "Books & Stationery"},
	{ID: "auto", Label: "Automotive"},
	{ID: "services", Label: "Services"},
	{ID: "other", Label: "Other"},
}

var mobileMoney = []string{
	models.PaymentMethodPaybill,
	models.PaymentMethodTill,
	models.PaymentMethodPhone,
	models.PaymentMethodBankAccount,
}

var bankOnly = []string{models.PaymentMethodBankAccount}

var supportedCountries = []MetaCountry{
	{Code: "KE", Label: "Kenya", Currency: "KES", PayoutMethods: mobileMoney},
	{Code: "NG", Label: "Nigeria", Currency: "NGN", PayoutMethods: bankOnly},
	{Code: "GH", Label: "Ghana", Currency: "GHS", PayoutMethods: []string{models.PaymentMethodPhone, models.PaymentMethodBankAccount}},
	{Code: "ZA", Label: "South Africa", Currency: "ZAR", PayoutMethods: bankOnly},
	{Code: "CI", Label: "Côte d'Ivoire", Currency: "XOF", PayoutMethods: []string{models.PaymentMethodPhone}},
}

// GET /storefront-api/meta/categories
func (h *MetaHandler) GetCategories(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: predefinedCategories})
}

// GET /storefront-api/meta/countries
func (h *MetaHandler) GetCountries(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: supportedCountries})
}
