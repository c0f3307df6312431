package menu

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	validator "github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

func TestUpsertHandlerMapsAppError(t *testing.T) {
	h := &Handler{Svc: newTestService(t, &stubQuerier{}), Validate: validator.New()}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/menu/items",
		strings.NewReader(`{"name":"Bad Price","slug":"bad-price","price":"-5"}`))
	h.Upsert(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "INVALID_MENU_ITEM")
}

func TestUpsertHandlerValidatesPayload(t *testing.T) {
	h := &Handler{Svc: newTestService(t, &stubQuerier{}), Validate: validator.New()}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/menu/items",
		strings.NewReader(`{"slug":"no-name","price":"10"}`))
	h.Upsert(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpsertHandlerPersistsItem(t *testing.T) {
	h := &Handler{Svc: newTestService(t, &stubQuerier{}), Validate: validator.New()}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/menu/items",
		strings.NewReader(`{"name":"Gado Gado","slug":"gado-gado","price":"40000","isAvailable":true}`))
	h.Upsert(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"gado-gado"`)
}
