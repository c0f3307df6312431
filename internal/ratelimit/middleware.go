package ratelimit

import (
	"net/http"
	"strconv"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/noah-isme/backend-resto/internal/common"
)

// New builds a redis-backed limiter from a rate string like "10-M".
func New(rdb *redis.Client, rate string) (*limiter.Limiter, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, err
	}
	store, err := limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{
		Prefix: "ratelimit",
	})
	if err != nil {
		return nil, err
	}
	return limiter.New(store, parsed), nil
}

// Middleware enforces the limit per client IP. Limiter errors fail open:
// losing redis should not take the login endpoint down with it.
func Middleware(l *limiter.Limiter, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx, err := l.Get(r.Context(), l.GetIPKey(r))
			if err != nil {
				log.Error().Err(err).Msg("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			headers := w.Header()
			headers.Set("X-RateLimit-Limit", strconv.FormatInt(ctx.Limit, 10))
			headers.Set("X-RateLimit-Remaining", strconv.FormatInt(ctx.Remaining, 10))
			headers.Set("X-RateLimit-Reset", strconv.FormatInt(ctx.Reset, 10))
			if ctx.Reached {
				common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
