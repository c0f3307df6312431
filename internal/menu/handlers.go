package menu

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-resto/internal/common"
)

// Handler exposes menu browsing over HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// Categories lists menu categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Svc.Categories(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load categories", nil)
		return
	}
	common.JSONData(w, http.StatusOK, categories)
}

// Items lists menu items with filtering and pagination.
func (h *Handler) Items(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20, 100)
	items, total, err := h.Svc.Items(r.Context(),
		r.URL.Query().Get("category"),
		r.URL.Query().Get("q"),
		page, perPage)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load menu", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       items,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: total},
	})
}

// ItemDetail returns one menu item by slug.
func (h *Handler) ItemDetail(w http.ResponseWriter, r *http.Request) {
	item, err := h.Svc.ItemDetail(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "menu item not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load menu item", nil)
		return
	}
	common.JSONData(w, http.StatusOK, item)
}

type upsertItemRequest struct {
	CategoryID  *string `json:"categoryId" validate:"omitempty,uuid"`
	Name        string  `json:"name" validate:"required,max=200"`
	Slug        string  `json:"slug" validate:"required,max=200"`
	Description string  `json:"description" validate:"max=2000"`
	Price       string  `json:"price" validate:"required"`
	ImageURL    string  `json:"imageUrl" validate:"omitempty,url"`
	IsAvailable bool    `json:"isAvailable"`
	StockLimit  *int32  `json:"stockLimit" validate:"omitempty,min=0"`
}

// Upsert creates or replaces a menu item by slug (staff only).
func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	var payload upsertItemRequest
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
	price, err := decimal.NewFromString(payload.Price)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "price must be a decimal string", nil)
		return
	}
	item, err := h.Svc.UpsertItem(r.Context(), Item{
		CategoryID:  payload.CategoryID,
		Name:        payload.Name,
		Slug:        payload.Slug,
		Description: payload.Description,
		Price:       price,
		ImageURL:    payload.ImageURL,
		IsAvailable: payload.IsAvailable,
		StockLimit:  payload.StockLimit,
	})
	if err != nil {
		common.JSONAppError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, item)
}
