package handlers

import (
	"strings"

	"github.com/escrow-storefront/backend/internal/http/dto"
	"github.com/escrow-storefront/backend/internal/middleware"
	"github.com/escrow-storefront/backend/internal/models"
	"github.com/escrow-storefront/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AccountHandler covers the seller back office: stores, listings and payout
// destinations.
type AccountHandler struct {
	stores  *services.StoreService
	methods *services.PaymentMethodService
	log     *zap.Logger
}

func NewAccountHandler(stores *services.StoreService, methods *services.PaymentMethodService, log *zap.Logger) *AccountHandler {
	return &AccountHandler{stores: stores, methods: methods, log: log}
}

// POST /api/v1/stores
func (h *AccountHandler) CreateStore(c *fiber.Ctx) error {
	var req dto.CreateStoreRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	store, err := h.stores.CreateStore(c.UserContext(), middleware.GetUserID(c), services.StoreInput{
		Slug:        req.Slug,
		Name:        req.Name,
		Description: req.Description,
		Country:     req.Country,
		Currency:    req.Currency,
		LogoURL:     req.LogoURL,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return created(c, store)
}

// GET /api/v1/stores/mine
func (h *AccountHandler) MyStores(c *fiber.Ctx) error {
	stores, err := h.stores.ListMine(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	if stores == nil {
		stores = []models.Store{}
	}
	return ok(c, stores)
}

// PUT /api/v1/stores/:id
func (h *AccountHandler) UpdateStore(c *fiber.Ctx) error {
	id, valid := paramUUID(c, "id")
	if !valid {
		return badRequest(c, "invalid store id")
	}
	var req dto.UpdateStoreRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	store, err := h.stores.UpdateStore(c.UserContext(), id, middleware.GetUserID(c), req.Name, req.Description, req.LogoURL, req.IsActive)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, store)
}

// POST /api/v1/stores/:id/products
func (h *AccountHandler) AddProduct(c *fiber.Ctx) error {
	storeID, valid := paramUUID(c, "id")
	if !valid {
		return badRequest(c, "invalid store id")
	}
	var req dto.AddStoreProductRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	in := services.ListingInput{
		Name:        req.Name,
		Description: req.Description,
		BasePrice:   req.BasePrice,
		Images:      req.Images,
		Category:    req.Category,
		Price:       req.Price,
		Visible:     req.Visible,
	}
	if req.ProductID != "" {
		pid, err := uuid.Parse(req.ProductID)
		if err != nil {
			return badRequest(c, "invalid product_id")
		}
		in.ProductID = &pid
	}

	sp, err := h.stores.AddProduct(c.UserContext(), storeID, middleware.GetUserID(c), in)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return created(c, sp)
}

// DELETE /api/v1/stores/:id/products/:productId
func (h *AccountHandler) RemoveProduct(c *fiber.Ctx) error {
	storeID, valid := paramUUID(c, "id")
	if !valid {
		return badRequest(c, "invalid store id")
	}
	productID, valid := paramUUID(c, "productId")
	if !valid {
		return badRequest(c, "invalid product id")
	}
	if err := h.stores.RemoveProduct(c.UserContext(), storeID, middleware.GetUserID(c), productID); err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, nil)
}

// ImportProduct scrapes a product page into the catalog.
// POST /api/v1/products/import
func (h *AccountHandler) ImportProduct(c *fiber.Ctx) error {
	var req dto.ImportProductRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(req.URL) == "" {
		return badRequest(c, "url is required")
	}
	var storeID *uuid.UUID
	if req.StoreID != "" {
		id, err := uuid.Parse(req.StoreID)
		if err != nil {
			return badRequest(c, "invalid store_id")
		}
		storeID = &id
	}

	res, err := h.stores.ImportProduct(c.UserContext(), middleware.GetUserID(c), req.URL, storeID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return created(c, res)
}

// --- Payment methods ---

func paymentMethodFromRequest(req dto.PaymentMethodRequest) *models.PaymentMethod {
	return &models.PaymentMethod{
		Country:       req.Country,
		Kind:          req.Kind,
		Label:         req.Label,
		Provider:      req.Provider,
		AccountName:   req.AccountName,
		AccountNumber: req.AccountNumber,
		BankCode:      req.BankCode,
		PhoneNumber:   req.PhoneNumber,
		PaybillNumber: req.PaybillNumber,
		TillNumber:    req.TillNumber,
		IsDefault:     req.IsDefault,
	}
}

// GET /api/v1/payment-methods
func (h *AccountHandler) ListPaymentMethods(c *fiber.Ctx) error {
	methods, err := h.methods.List(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	if methods == nil {
		methods = []models.PaymentMethod{}
	}
	return ok(c, methods)
}

// GET /api/v1/payment-methods/:id
func (h *AccountHandler) GetPaymentMethod(c *fiber.Ctx) error {
	id, valid := paramUUID(c, "id")
	if !valid {
		return badRequest(c, "invalid payment method id")
	}
	pm, err := h.methods.Get(c.UserContext(), middleware.GetUserID(c), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, pm)
}

// POST /api/v1/payment-methods
func (h *AccountHandler) CreatePaymentMethod(c *fiber.Ctx) error {
	var req dto.PaymentMethodRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	pm := paymentMethodFromRequest(req)
	if err := h.methods.Create(c.UserContext(), middleware.GetUserID(c), pm); err != nil {
		return respondError(c, h.log, err)
	}
	return created(c, pm)
}

// PUT /api/v1/payment-methods/:id
func (h *AccountHandler) UpdatePaymentMethod(c *fiber.Ctx) error {
	id, valid := paramUUID(c, "id")
	if !valid {
		return badRequest(c, "invalid payment method id")
	}
	var req dto.PaymentMethodRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	pm := paymentMethodFromRequest(req)
	if err := h.methods.Update(c.UserContext(), middleware.GetUserID(c), id, pm); err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, pm)
}

// POST /api/v1/payment-methods/:id/default
func (h *AccountHandler) SetDefaultPaymentMethod(c *fiber.Ctx) error {
	id, valid := paramUUID(c, "id")
	if !valid {
		return badRequest(c, "invalid payment method id")
	}
	if err := h.methods.SetDefault(c.UserContext(), middleware.GetUserID(c), id); err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, nil)
}

// DELETE /api/v1/payment-methods/:id
func (h *AccountHandler) DeletePaymentMethod(c *fiber.Ctx) error {
	id, valid := paramUUID(c, "id")
	if !valid {
		return badRequest(c, "invalid payment method id")
	}
	if err := h.methods.Delete(c.UserContext(), middleware.GetUserID(c), id); err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, nil)
}
