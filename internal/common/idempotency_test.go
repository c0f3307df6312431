package common

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newIdem(t *testing.T) (Idem, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return Idem{R: client, TTL: time.Hour}, mr
}

func TestIdemReplaysCachedResponse(t *testing.T) {
	idem, _ := newIdem(t)

	var hits int
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"order":"o-%d"}`, hits)
	}))

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
	req.Header.Set("Idempotency-Key", "k-1")
	handler.ServeHTTP(first, req)
	require.Equal(t, http.StatusCreated, first.Code)
	require.Equal(t, `{"order":"o-1"}`, first.Body.String())

	second := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/checkout", nil)
	req.Header.Set("Idempotency-Key", "k-1")
	handler.ServeHTTP(second, req)
	require.Equal(t, 1, hits, "handler must not run again")
	require.Equal(t, http.StatusCreated, second.Code)
	require.Equal(t, `{"order":"o-1"}`, second.Body.String())
	require.Equal(t, "true", second.Header().Get("Idempotency-Replayed"))
	require.Equal(t, "application/json", second.Header().Get("Content-Type"))
}

func TestIdemDistinctKeysRunIndependently(t *testing.T) {
	idem, _ := newIdem(t)

	var hits int
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusCreated)
	}))

	for _, key := range []string{"k-1", "k-2"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
		req.Header.Set("Idempotency-Key", key)
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	require.Equal(t, 2, hits)
}

func TestIdemConflictWhileInFlight(t *testing.T) {
	idem, mr := newIdem(t)
	require.NoError(t, mr.Set(idemKey("k-1"), idemInFlight))

	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run while the original request is in flight")
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
	req.Header.Set("Idempotency-Key", "k-1")
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestIdemDoesNotCacheServerErrors(t *testing.T) {
	idem, _ := newIdem(t)

	var hits int
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	for _, want := range []int{http.StatusInternalServerError, http.StatusCreated} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
		req.Header.Set("Idempotency-Key", "k-1")
		handler.ServeHTTP(rec, req)
		require.Equal(t, want, rec.Code)
	}
	require.Equal(t, 2, hits)
}

func TestIdemPassThroughWithoutKey(t *testing.T) {
	idem, _ := newIdem(t)

	var hits int
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	require.Equal(t, 2, hits)
}
