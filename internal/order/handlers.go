package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-resto/internal/common"
)

// Handler exposes order history and lifecycle over HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
	Now      func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func isStaff(r *http.Request) bool {
	role, _ := common.Role(r.Context())
	return role == "admin" || role == "staff"
}

// History lists the caller's orders.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "login required", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20, 100)
	orders, total, err := h.Svc.History(r.Context(), userID, perPage, (page-1)*perPage)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list orders", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       orders,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: total},
	})
}

// Detail returns one order.
func (h *Handler) Detail(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	o, err := h.Svc.Get(r.Context(), chi.URLParam(r, "orderID"), userID, isStaff(r))
	if err != nil {
		writeOrderError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, o)
}

// Cancel aborts an unpaid order.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "login required", nil)
		return
	}
	o, err := h.Svc.Cancel(r.Context(), chi.URLParam(r, "orderID"), userID)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, o)
}

type transitionRequest struct {
	Status Status `json:"status" validate:"required,oneof=SETTLEMENT PREPARING COMPLETED CANCELLED"`
}

// Transition is the staff endpoint that moves an order along the lifecycle.
func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid status", err.Error())
		return
	}
	o, err := h.Svc.Transition(r.Context(), chi.URLParam(r, "orderID"), req.Status)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, o)
}

type feedbackRequest struct {
	Rating  int32  `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// Feedback records the caller's rating of a completed order.
func (h *Handler) Feedback(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "login required", nil)
		return
	}
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid feedback", err.Error())
		return
	}
	fb, err := h.Svc.Rate(r.Context(), chi.URLParam(r, "orderID"), userID, req.Rating, req.Comment)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, fb)
}

type returnRequestBody struct {
	Reason string `json:"reason" validate:"required,min=5,max=2000"`
}

// RequestReturn opens a return for a paid order.
func (h *Handler) RequestReturn(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "login required", nil)
		return
	}
	var req returnRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid return request", err.Error())
		return
	}
	rr, err := h.Svc.RequestReturn(r.Context(), chi.URLParam(r, "orderID"), userID, req.Reason, h.now())
	if err != nil {
		writeOrderError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, rr)
}

func writeOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
	case errors.Is(err, ErrForbidden):
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "order belongs to another user", nil)
	case errors.Is(err, ErrInvalidTransition):
		common.JSONError(w, http.StatusConflict, "INVALID_TRANSITION", "order status cannot change that way", nil)
	case errors.Is(err, ErrNotRateable):
		common.JSONError(w, http.StatusUnprocessableEntity, "NOT_RATEABLE", err.Error(), nil)
	case errors.Is(err, ErrNotReturnable):
		common.JSONError(w, http.StatusUnprocessableEntity, "NOT_RETURNABLE", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order operation failed", nil)
	}
}
