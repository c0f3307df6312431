package user

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-resto/internal/common"
)

// Querier is the storage surface the handlers need. *Store satisfies it.
type Querier interface {
	List(ctx context.Context, userID string) ([]Address, error)
	Get(ctx context.Context, userID, id string) (Address, error)
	Create(ctx context.Context, a Address) (Address, error)
	Update(ctx context.Context, a Address) (Address, error)
	Delete(ctx context.Context, userID, id string) error
	SetDefault(ctx context.Context, userID, id string) (Address, error)
}

// Handler exposes the address book over HTTP. All routes require auth.
type Handler struct {
	Q        Querier
	Validate *validator.Validate
}

type addressRequest struct {
	Label        string `json:"label" validate:"max=64"`
	ReceiverName string `json:"receiverName" validate:"required,max=200"`
	Phone        string `json:"phone" validate:"required,max=32"`
	City         string `json:"city" validate:"max=128"`
	PostalCode   string `json:"postalCode" validate:"max=16"`
	AddressLine1 string `json:"addressLine1" validate:"required,max=500"`
	AddressLine2 string `json:"addressLine2" validate:"max=500"`
	IsDefault    bool   `json:"isDefault"`
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (addressRequest, bool) {
	var req addressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return req, false
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid address", err.Error())
		return req, false
	}
	return req, true
}

// List returns the caller's addresses.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	addrs, err := h.Q.List(r.Context(), userID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list addresses", nil)
		return
	}
	common.JSONData(w, http.StatusOK, addrs)
}

// Create adds an address.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	a, err := h.Q.Create(r.Context(), Address{
		UserID:       userID,
		Label:        req.Label,
		ReceiverName: req.ReceiverName,
		Phone:        req.Phone,
		City:         req.City,
		PostalCode:   req.PostalCode,
		AddressLine1: req.AddressLine1,
		AddressLine2: req.AddressLine2,
		IsDefault:    req.IsDefault,
	})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create address", nil)
		return
	}
	common.JSONData(w, http.StatusCreated, a)
}

// Update rewrites an address.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	a, err := h.Q.Update(r.Context(), Address{
		ID:           chi.URLParam(r, "addressID"),
		UserID:       userID,
		Label:        req.Label,
		ReceiverName: req.ReceiverName,
		Phone:        req.Phone,
		City:         req.City,
		PostalCode:   req.PostalCode,
		AddressLine1: req.AddressLine1,
		AddressLine2: req.AddressLine2,
		IsDefault:    req.IsDefault,
	})
	if errors.Is(err, ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "address not found", nil)
		return
	}
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update address", nil)
		return
	}
	common.JSONData(w, http.StatusOK, a)
}

// Delete removes an address.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	err := h.Q.Delete(r.Context(), userID, chi.URLParam(r, "addressID"))
	if errors.Is(err, ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "address not found", nil)
		return
	}
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete address", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetDefault promotes an address.
func (h *Handler) SetDefault(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	a, err := h.Q.SetDefault(r.Context(), userID, chi.URLParam(r, "addressID"))
	if errors.Is(err, ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "address not found", nil)
		return
	}
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to set default", nil)
		return
	}
	common.JSONData(w, http.StatusOK, a)
}
