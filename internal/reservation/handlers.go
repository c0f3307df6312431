package reservation

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-resto/internal/common"
)

// Handler exposes table bookings over HTTP. All routes require auth.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type bookRequest struct {
	PartySize  int32     `json:"partySize" validate:"required,min=1"`
	ReservedAt time.Time `json:"reservedAt" validate:"required"`
	Notes      string    `json:"notes" validate:"max=2000"`
}

// Book creates a reservation.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid reservation", err.Error())
		return
	}
	res, err := h.Svc.Book(r.Context(), userID, req.PartySize, req.ReservedAt, req.Notes)
	if err != nil {
		writeReservationError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, res)
}

// List returns the caller's reservations.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	page, perPage := common.ParsePagination(r, 20, 100)
	out, err := h.Svc.List(r.Context(), userID, perPage, (page-1)*perPage)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list reservations", nil)
		return
	}
	common.JSONData(w, http.StatusOK, out)
}

// Cancel releases a booking.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	res, err := h.Svc.Cancel(r.Context(), chi.URLParam(r, "reservationID"), userID)
	if err != nil {
		writeReservationError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, res)
}

func writeReservationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "reservation not found", nil)
	case errors.Is(err, ErrForbidden):
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "reservation belongs to another user", nil)
	case errors.Is(err, ErrTooSoon), errors.Is(err, ErrPartyTooBig), errors.Is(err, ErrPastDate):
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", err.Error(), nil)
	case errors.Is(err, ErrNotCancelable):
		common.JSONError(w, http.StatusConflict, "NOT_CANCELABLE", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "reservation operation failed", nil)
	}
}
