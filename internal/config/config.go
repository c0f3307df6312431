package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	CORSAllowedOrigins []string

	AccessTokenTTL time.Duration

	// Pricing policy applied to every checkout computation.
	TaxRatePercent        decimal.Decimal
	FlatShippingFee       decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	CurrencyCode          string

	CartTTL        time.Duration
	IdempotencyTTL time.Duration

	MenuCacheTTL     time.Duration
	MenuDefaultLimit int
	MenuMaxLimit     int

	DiscountPerUserLimit int

	LoyaltyPointsPerUnit decimal.Decimal
	ReferralBonusPoints  int64

	ReservationMinNotice time.Duration
	ReservationMaxParty  int

	AuthRateLimit    string
	QueueConcurrency int
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		AccessTokenTTL: parseDuration(k.String("ACCESS_TOKEN_TTL"), "15m"),

		TaxRatePercent:        parseDecimal(k.String("PRICING_TAX_RATE_PERCENT"), "5"),
		FlatShippingFee:       parseDecimal(k.String("PRICING_FLAT_SHIPPING_FEE"), "100"),
		FreeShippingThreshold: parseDecimal(k.String("PRICING_FREE_SHIPPING_THRESHOLD"), "1000"),
		CurrencyCode:          valueOrDefault(k.String("CURRENCY_CODE"), "IDR"),

		CartTTL:        parseDuration(k.String("CART_TTL"), "168h"),
		IdempotencyTTL: parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),

		MenuCacheTTL:     parseDuration(k.String("MENU_CACHE_TTL"), "5m"),
		MenuDefaultLimit: intOrDefault(k.Int("MENU_DEFAULT_LIMIT"), 20),
		MenuMaxLimit:     intOrDefault(k.Int("MENU_MAX_LIMIT"), 100),

		DiscountPerUserLimit: intOrDefault(k.Int("DISCOUNT_PER_USER_LIMIT"), 1),

		LoyaltyPointsPerUnit: parseDecimal(k.String("LOYALTY_POINTS_PER_UNIT"), "1"),
		ReferralBonusPoints:  int64(intOrDefault(k.Int("LOYALTY_REFERRAL_BONUS_POINTS"), 100)),

		ReservationMinNotice: parseDuration(k.String("RESERVATION_MIN_NOTICE"), "1h"),
		ReservationMaxParty:  intOrDefault(k.Int("RESERVATION_MAX_PARTY"), 12),

		AuthRateLimit:    valueOrDefault(k.String("AUTH_RATE_LIMIT"), "10-M"),
		QueueConcurrency: intOrDefault(k.Int("QUEUE_CONCURRENCY"), 10),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.TaxRatePercent.IsNegative() {
		return nil, errors.New("PRICING_TAX_RATE_PERCENT must not be negative")
	}
	if cfg.FlatShippingFee.IsNegative() || cfg.FreeShippingThreshold.IsNegative() {
		return nil, errors.New("shipping fee and threshold must not be negative")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func intOrDefault(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseDecimal(value, fallback string) decimal.Decimal {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := decimal.NewFromString(base)
	if err != nil {
		d, _ = decimal.NewFromString(fallback)
	}
	return d
}

// MustLoad behaves like Load but panics on error. Useful for command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests overrides environment variables for the duration of one Load call.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
