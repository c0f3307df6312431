package discount

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/pricing"
)

// Handler wires discount administration and preview to HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type rulePayload struct {
	Code          string     `json:"code" validate:"required,min=2,max=32"`
	Kind          string     `json:"kind" validate:"required,oneof=percentage fixed"`
	Value         string     `json:"value" validate:"required"`
	MinOrderTotal string     `json:"minOrderTotal"`
	ValidFrom     *time.Time `json:"validFrom"`
	ValidTo       *time.Time `json:"validTo"`
	UsageLimit    *int32     `json:"usageLimit"`
	PerUserLimit  *int32     `json:"perUserLimit"`
}

// Upsert creates or replaces a discount code (admin only).
func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	var payload rulePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
	}
	value, err := decimal.NewFromString(payload.Value)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "value must be a decimal string", nil)
		return
	}
	minTotal := decimal.Zero
	if payload.MinOrderTotal != "" {
		minTotal, err = decimal.NewFromString(payload.MinOrderTotal)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "minOrderTotal must be a decimal string", nil)
			return
		}
	}
	rule := Rule{
		Code:          payload.Code,
		Kind:          pricing.DiscountKind(payload.Kind),
		Value:         value,
		MinOrderTotal: minTotal,
		ValidFrom:     payload.ValidFrom,
		ValidTo:       payload.ValidTo,
		UsageLimit:    payload.UsageLimit,
		PerUserLimit:  payload.PerUserLimit,
	}
	if err := h.Svc.Save(r.Context(), rule); err != nil {
		if errors.Is(err, ErrMalformed) {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "discount code malformed", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to save discount code", nil)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]any{"code": CanonicalCode(payload.Code)})
}

type previewPayload struct {
	Code  string `json:"code" validate:"required"`
	Total string `json:"total" validate:"required"`
}

// Preview validates a code against a hypothetical pre-discount total and
// returns the amount it would take off.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var payload previewPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
	}
	total, err := decimal.NewFromString(payload.Total)
	if err != nil || total.IsNegative() {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "total must be a non-negative decimal string", nil)
		return
	}
	var userID *string
	if id, ok := common.UserID(r.Context()); ok {
		userID = &id
	}
	rule, err := h.Svc.Resolve(r.Context(), payload.Code, userID, total)
	if err != nil {
		writeRuleError(w, err)
		return
	}
	amount, err := pricing.DiscountAmount(*rule.PricingDiscount(), total)
	if err != nil {
		writeRuleError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]any{
		"code":           rule.Code,
		"kind":           rule.Kind,
		"discountAmount": amount,
		"total":          total.Sub(amount),
	})
}

func writeRuleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "discount code not found", nil)
	case errors.Is(err, ErrMinimumNotMet):
		common.JSONError(w, http.StatusUnprocessableEntity, "DISCOUNT_NOT_ELIGIBLE", "order total below the code minimum", nil)
	case errors.Is(err, ErrInactive), errors.Is(err, ErrExpired):
		common.JSONError(w, http.StatusUnprocessableEntity, "DISCOUNT_NOT_ELIGIBLE", err.Error(), nil)
	case errors.Is(err, ErrUsageLimitReached), errors.Is(err, ErrPerUserLimitReached):
		common.JSONError(w, http.StatusUnprocessableEntity, "DISCOUNT_LIMIT_REACHED", err.Error(), nil)
	case errors.Is(err, ErrMalformed), errors.Is(err, pricing.ErrInvalidDiscount):
		common.JSONError(w, http.StatusBadRequest, "INVALID_DISCOUNT", "discount code malformed", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to evaluate discount code", nil)
	}
}
