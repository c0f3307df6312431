package common

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Idem enforces Idempotency-Key semantics for write endpoints using Redis.
// The first request under a key runs the handler and caches its response;
// repeats within the TTL replay that response byte for byte. A repeat that
// arrives while the original is still running gets a 409.
type Idem struct {
	R   *redis.Client
	TTL time.Duration
}

const idemInFlight = "in-flight"

func idemKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return "idem:" + hex.EncodeToString(sum[:])
}

type idemRecord struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

// idemRecorder tees the response so it can be cached after the handler runs.
type idemRecorder struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (r *idemRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *idemRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.buf.Write(p)
	return r.ResponseWriter.Write(p)
}

// Middleware applies Idempotency-Key handling. Requests without the header
// pass through untouched.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Idempotency-Key")
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		key := idemKey(header)
		ttl := i.TTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}

		raw, err := i.R.Get(r.Context(), key).Bytes()
		switch {
		case err == nil && string(raw) == idemInFlight:
			JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "original request still in flight", nil)
			return
		case err == nil:
			var rec idemRecord
			if json.Unmarshal(raw, &rec) == nil && rec.Status != 0 {
				if rec.ContentType != "" {
					w.Header().Set("Content-Type", rec.ContentType)
				}
				w.Header().Set("Idempotency-Replayed", "true")
				w.WriteHeader(rec.Status)
				_, _ = w.Write(rec.Body)
				return
			}
		case !errors.Is(err, redis.Nil):
			JSONError(w, http.StatusInternalServerError, "INTERNAL", "idempotency store error", nil)
			return
		}

		ok, err := i.R.SetNX(r.Context(), key, idemInFlight, ttl).Result()
		if err != nil {
			JSONError(w, http.StatusInternalServerError, "INTERNAL", "idempotency store error", nil)
			return
		}
		if !ok {
			JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "original request still in flight", nil)
			return
		}

		rec := &idemRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		// 5xx responses are not cached so the client can retry the key.
		if rec.status >= http.StatusInternalServerError {
			_ = i.R.Del(context.Background(), key).Err()
			return
		}
		payload, err := json.Marshal(idemRecord{
			Status:      rec.status,
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.buf.Bytes(),
		})
		if err != nil {
			_ = i.R.Del(context.Background(), key).Err()
			return
		}
		_ = i.R.Set(context.Background(), key, payload, ttl).Err()
	})
}
