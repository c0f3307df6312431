package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-resto/internal/cart"
	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/order"
)

// Handler exposes checkout over HTTP.
type Handler struct {
	Svc      *Service
	Carts    *cart.Service
	Validate *validator.Validate
}

type placeOrderRequest struct {
	FulfillmentMode string          `json:"fulfillmentMode" validate:"required,oneof=delivery pickup"`
	Address         json.RawMessage `json:"address" validate:"required_if=FulfillmentMode delivery"`
	Notes           string          `json:"notes" validate:"max=2000"`
}

// PlaceOrder freezes the caller's active cart into an order.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "login required to checkout", nil)
		return
	}
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid checkout request", err.Error())
		return
	}

	c, err := h.Carts.Ensure(r.Context(), &userID, nil)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load cart", nil)
		return
	}

	res, err := h.Svc.PlaceOrder(r.Context(), Input{
		UserID:          userID,
		Cart:            c,
		FulfillmentMode: order.FulfillmentMode(req.FulfillmentMode),
		Address:         req.Address,
		Notes:           req.Notes,
	})
	if errors.Is(err, ErrEmptyCart) {
		common.JSONError(w, http.StatusUnprocessableEntity, "EMPTY_CART", "cart has nothing to order", nil)
		return
	}
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout failed", nil)
		return
	}
	common.JSONData(w, http.StatusCreated, res)
}
