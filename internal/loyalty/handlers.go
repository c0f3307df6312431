package loyalty

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-resto/internal/common"
)

// Handler exposes the loyalty program over HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// Me returns the caller's account, standing, and recent ledger.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "login required", nil)
		return
	}
	overview, err := h.Svc.Me(r.Context(), userID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load loyalty account", nil)
		return
	}
	common.JSONData(w, http.StatusOK, overview)
}

// Preview projects the caller's standing after a hypothetical order total.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "login required", nil)
		return
	}
	total, err := decimal.NewFromString(r.URL.Query().Get("total"))
	if err != nil || total.IsNegative() {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "total must be a non-negative amount", nil)
		return
	}
	snap, err := h.Svc.SnapshotFor(r.Context(), userID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load loyalty account", nil)
		return
	}
	common.JSONData(w, http.StatusOK, Project(total, snap, h.Svc.Table))
}

type referralRequest struct {
	Code string `json:"code" validate:"required,min=4,max=32"`
}

// ClaimReferral links the caller to the referrer named by the code.
func (h *Handler) ClaimReferral(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "login required", nil)
		return
	}
	var req referralRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid referral code", err.Error())
		return
	}
	err := h.Svc.ClaimReferral(r.Context(), userID, req.Code)
	switch {
	case errors.Is(err, ErrBadReferral):
		common.JSONError(w, http.StatusNotFound, "REFERRAL_NOT_FOUND", "referral code not found", nil)
	case errors.Is(err, ErrSelfReferral):
		common.JSONError(w, http.StatusUnprocessableEntity, "SELF_REFERRAL", "cannot claim your own code", nil)
	case errors.Is(err, ErrAlreadyRef):
		common.JSONError(w, http.StatusConflict, "REFERRAL_CLAIMED", "referral already claimed", nil)
	case err != nil:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to claim referral", nil)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}
