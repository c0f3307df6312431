package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/discount"
)

const guestHeader = "X-Guest-Token"

// Handler exposes the cart over HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

func identity(r *http.Request) (userID, anonID *string) {
	if id, ok := common.UserID(r.Context()); ok {
		return &id, nil
	}
	if tok := strings.TrimSpace(r.Header.Get(guestHeader)); tok != "" {
		return nil, &tok
	}
	if c, err := r.Cookie("guest_token"); err == nil && c.Value != "" {
		v := c.Value
		return nil, &v
	}
	return nil, nil
}

func (h *Handler) resolveCart(w http.ResponseWriter, r *http.Request) (Cart, bool) {
	userID, anonID := identity(r)
	if userID == nil && anonID == nil {
		common.JSONError(w, http.StatusUnauthorized, "NO_CART_IDENTITY", "login or supply a guest token", nil)
		return Cart{}, false
	}
	c, err := h.Svc.Ensure(r.Context(), userID, anonID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load cart", nil)
		return Cart{}, false
	}
	return c, true
}

type cartResponse struct {
	Cart  Cart  `json:"cart"`
	Quote Quote `json:"quote"`
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, c Cart) {
	q, err := h.Svc.Quote(r.Context(), c)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to price cart", nil)
		return
	}
	common.JSONData(w, http.StatusOK, cartResponse{Cart: c, Quote: q})
}

// Get returns the caller's cart with a fresh quote.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := h.resolveCart(w, r)
	if !ok {
		return
	}
	h.respond(w, r, c)
}

type addItemRequest struct {
	MenuItemID *string `json:"menuItemId" validate:"omitempty,uuid"`
	Name       string  `json:"name" validate:"omitempty,max=200"`
	UnitPrice  *string `json:"unitPrice" validate:"omitempty"`
	ImageURL   string  `json:"imageUrl" validate:"omitempty,url"`
	Qty        int32   `json:"qty" validate:"required,min=1"`
}

// AddItem appends a dish to the cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	c, ok := h.resolveCart(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid cart item", err.Error())
		return
	}
	in := AddItemInput{
		MenuItemID: req.MenuItemID,
		Name:       req.Name,
		ImageURL:   req.ImageURL,
		Qty:        req.Qty,
	}
	if req.UnitPrice != nil {
		p, err := decimal.NewFromString(*req.UnitPrice)
		if err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "unitPrice is not a valid amount", nil)
			return
		}
		in.UnitPrice = &p
	}
	if _, err := h.Svc.AddItem(r.Context(), c.ID, in); err != nil {
		switch {
		case errors.Is(err, ErrInvalidQty), errors.Is(err, ErrEmptyAdd):
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", err.Error(), nil)
		default:
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to add item", nil)
		}
		return
	}
	h.respond(w, r, c)
}

type updateQtyRequest struct {
	Qty int32 `json:"qty" validate:"min=0"`
}

// UpdateItem changes a row's quantity; zero removes it.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	c, ok := h.resolveCart(w, r)
	if !ok {
		return
	}
	var req updateQtyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	err := h.Svc.UpdateQty(r.Context(), c.ID, chi.URLParam(r, "itemID"), req.Qty)
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart item not found", nil)
		return
	case errors.Is(err, ErrInvalidQty):
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", err.Error(), nil)
		return
	case err != nil:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update item", nil)
		return
	}
	h.respond(w, r, c)
}

// RemoveItem deletes a row.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	c, ok := h.resolveCart(w, r)
	if !ok {
		return
	}
	if err := h.Svc.RemoveItem(r.Context(), c.ID, chi.URLParam(r, "itemID")); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to remove item", nil)
		return
	}
	h.respond(w, r, c)
}

type applyDiscountRequest struct {
	Code string `json:"code" validate:"required,min=2,max=64"`
}

// ApplyDiscount validates and attaches a code to the cart.
func (h *Handler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	c, ok := h.resolveCart(w, r)
	if !ok {
		return
	}
	var req applyDiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid discount code", err.Error())
		return
	}
	if err := h.Svc.ApplyDiscount(r.Context(), c, req.Code); err != nil {
		writeDiscountError(w, err)
		return
	}
	code := discount.CanonicalCode(req.Code)
	c.DiscountCode = &code
	h.respond(w, r, c)
}

// RemoveDiscount clears the applied code.
func (h *Handler) RemoveDiscount(w http.ResponseWriter, r *http.Request) {
	c, ok := h.resolveCart(w, r)
	if !ok {
		return
	}
	if err := h.Svc.RemoveDiscount(r.Context(), c.ID); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to remove discount", nil)
		return
	}
	c.DiscountCode = nil
	h.respond(w, r, c)
}

// Merge folds the guest cart named by the guest token into the logged-in
// user's cart. Requires auth.
func (h *Handler) Merge(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "login required", nil)
		return
	}
	tok := strings.TrimSpace(r.Header.Get(guestHeader))
	if tok == "" {
		if c, err := r.Cookie("guest_token"); err == nil {
			tok = c.Value
		}
	}
	if tok == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "guest token required", nil)
		return
	}
	c, err := h.Svc.Merge(r.Context(), tok, userID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to merge carts", nil)
		return
	}
	h.respond(w, r, c)
}

func writeDiscountError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, discount.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "DISCOUNT_NOT_FOUND", "discount code not found", nil)
	case errors.Is(err, discount.ErrMalformed):
		common.JSONError(w, http.StatusBadRequest, "INVALID_DISCOUNT", "discount code is malformed", nil)
	case errors.Is(err, discount.ErrExpired), errors.Is(err, discount.ErrInactive),
		errors.Is(err, discount.ErrMinimumNotMet):
		common.JSONError(w, http.StatusUnprocessableEntity, "DISCOUNT_NOT_ELIGIBLE", err.Error(), nil)
	case errors.Is(err, discount.ErrUsageLimitReached), errors.Is(err, discount.ErrPerUserLimitReached):
		common.JSONError(w, http.StatusUnprocessableEntity, "DISCOUNT_LIMIT_REACHED", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to apply discount", nil)
	}
}
