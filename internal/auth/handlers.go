package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-resto/internal/common"
)

// Handler exposes registration and login.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	FullName string `json:"fullName" validate:"max=200"`
	Phone    string `json:"phone" validate:"max=32"`
}

// Register creates an account.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid registration", err.Error())
		return
	}
	pair, err := h.Svc.Register(r.Context(), req.Email, req.Password, req.FullName, req.Phone)
	if errors.Is(err, ErrEmailTaken) {
		common.JSONError(w, http.StatusConflict, "EMAIL_TAKEN", "email already registered", nil)
		return
	}
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to register", nil)
		return
	}
	common.JSONData(w, http.StatusCreated, pair)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login checks credentials and returns a token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid login", err.Error())
		return
	}
	pair, err := h.Svc.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, ErrBadCredentials) {
		common.JSONError(w, http.StatusUnauthorized, "BAD_CREDENTIALS", "invalid email or password", nil)
		return
	}
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to login", nil)
		return
	}
	common.JSONData(w, http.StatusOK, pair)
}

// Me returns the caller's profile.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "login required", nil)
		return
	}
	u, err := h.Svc.Me(r.Context(), userID)
	if errors.Is(err, ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "user not found", nil)
		return
	}
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load profile", nil)
		return
	}
	common.JSONData(w, http.StatusOK, u)
}
