package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-resto/internal/auth"
	"github.com/noah-isme/backend-resto/internal/cart"
	"github.com/noah-isme/backend-resto/internal/checkout"
	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/config"
	"github.com/noah-isme/backend-resto/internal/db"
	"github.com/noah-isme/backend-resto/internal/discount"
	"github.com/noah-isme/backend-resto/internal/events"
	"github.com/noah-isme/backend-resto/internal/health"
	"github.com/noah-isme/backend-resto/internal/loyalty"
	"github.com/noah-isme/backend-resto/internal/menu"
	"github.com/noah-isme/backend-resto/internal/obs"
	"github.com/noah-isme/backend-resto/internal/order"
	"github.com/noah-isme/backend-resto/internal/pricing"
	"github.com/noah-isme/backend-resto/internal/ratelimit"
	"github.com/noah-isme/backend-resto/internal/reservation"
	"github.com/noah-isme/backend-resto/internal/tasks"
	"github.com/noah-isme/backend-resto/internal/user"
)

const serviceName = "resto-api"

func main() {
	cfg := config.MustLoad()

	logger := obs.NewLogger("json", "info").With().Str("env", cfg.AppEnv).Logger()

	shutdownTracer, err := obs.InitTracer(context.Background(), obs.TracingConfig{
		ServiceName:   serviceName,
		SamplingRatio: 1.0,
		Environment:   cfg.AppEnv,
	})
	if err != nil {
		logger.Error().Err(err).Msg("initialise tracing")
	} else {
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				logger.Error().Err(err).Msg("shutdown tracer")
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL, serviceName)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	if err := redisotel.InstrumentTracing(rdb); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	queueOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for queue")
	}
	queueClient := asynq.NewClient(queueOpt)
	defer queueClient.Close()

	validate := validator.New()

	policy := pricing.Policy{
		TaxRatePercent:        cfg.TaxRatePercent,
		FlatShippingFee:       cfg.FlatShippingFee,
		FreeShippingThreshold: cfg.FreeShippingThreshold,
	}

	menuStore := &menu.Store{Pool: pool}
	menuSvc, err := menu.NewService(menu.ServiceConfig{
		Queries:      menuStore,
		Cache:        menu.NewCache(rdb, cfg.MenuCacheTTL),
		DefaultLimit: cfg.MenuDefaultLimit,
		MaxLimit:     cfg.MenuMaxLimit,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise menu service")
	}
	menuHandler := &menu.Handler{Svc: menuSvc, Validate: validate}

	discountSvc := &discount.Service{
		Q:                   &discount.Store{Pool: pool},
		DefaultPerUserLimit: int32(cfg.DiscountPerUserLimit),
	}
	discountHandler := &discount.Handler{Svc: discountSvc, Validate: validate}

	cartSvc := &cart.Service{
		Q:         &cart.Store{Pool: pool},
		Menu:      menuSvc,
		Discounts: discountSvc,
		Policy:    policy,
		TTL:       cfg.CartTTL,
	}
	cartHandler := &cart.Handler{Svc: cartSvc, Validate: validate}

	authSvc := &auth.Service{
		Q:        &auth.Store{Pool: pool},
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   serviceName,
		TokenTTL: cfg.AccessTokenTTL,
	}
	authHandler := &auth.Handler{Svc: authSvc, Validate: validate}
	authMW := auth.Middleware{Service: authSvc, AccessCookie: "access_token"}

	loyaltySvc := &loyalty.Service{
		Q:             &loyalty.Store{Pool: pool},
		Table:         loyalty.DefaultTierTable(),
		Rate:          cfg.LoyaltyPointsPerUnit,
		ReferralBonus: cfg.ReferralBonusPoints,
		Log:           logger,
	}
	loyaltyHandler := &loyalty.Handler{Svc: loyaltySvc, Validate: validate}

	eventStore := &events.PgStore{Pool: pool}
	bus := &events.Bus{Store: eventStore, Log: logger}
	bus.Subscribe(events.TopicOrderSettled, func(_ context.Context, e events.Event) {
		logger.Info().Str("orderId", e.AggregateID).Msg("order settled")
	})
	eventsHandler := &events.Handler{Store: eventStore}
	queue := &tasks.Client{A: queueClient}

	checkoutMetrics := obs.NewCheckoutMetrics("resto", nil)

	orderStore := &order.Store{Pool: pool}
	checkoutSvc := &checkout.Service{
		Carts:     cartSvc,
		Discounts: discountSvc,
		Loyalty:   loyaltySvc,
		Orders:    orderStore,
		Queue:     queue,
		Events:    bus,
		Metrics:   checkoutMetrics,
		Policy:    policy,
		Tiers:     loyalty.DefaultTierTable(),
		Currency:  cfg.CurrencyCode,
		Log:       logger,
	}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc, Carts: cartSvc, Validate: validate}

	orderSvc := &order.Service{
		Q:         orderStore,
		Discounts: discountSvc,
		Queue:     queue,
		Events:    bus,
		Log:       logger,
	}
	orderHandler := &order.Handler{Svc: orderSvc, Validate: validate}

	reservationSvc := &reservation.Service{
		Q:         &reservation.Store{Pool: pool},
		Events:    bus,
		MinNotice: cfg.ReservationMinNotice,
		MaxParty:  int32(cfg.ReservationMaxParty),
		Log:       logger,
	}
	reservationHandler := &reservation.Handler{Svc: reservationSvc, Validate: validate}

	addressHandler := &user.Handler{Q: &user.Store{Pool: pool}, Validate: validate}

	idem := common.Idem{R: rdb, TTL: cfg.IdempotencyTTL}

	authLimiter, err := ratelimit.New(rdb, cfg.AuthRateLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}
	limitAuth := ratelimit.Middleware(authLimiter, logger)

	httpMetrics := obs.NewHTTPMetrics("resto", nil, nil)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	r.Use(obs.TracingMiddleware)
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Guest-Token", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())

	healthHandler := health.Handler{Checker: health.Deps{Pool: pool, Redis: rdb}}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/menu/categories", menuHandler.Categories)
		v.Get("/menu/items", menuHandler.Items)
		v.Get("/menu/items/{slug}", menuHandler.ItemDetail)

		v.Route("/auth", func(a chi.Router) {
			a.With(limitAuth).Post("/register", authHandler.Register)
			a.With(limitAuth).Post("/login", authHandler.Login)
			a.With(authMW.RequireAuth).Get("/me", authHandler.Me)
		})

		v.Route("/cart", func(c chi.Router) {
			c.Use(authMW.Authenticate)
			c.Get("/", cartHandler.Get)
			c.Post("/items", cartHandler.AddItem)
			c.Patch("/items/{itemID}", cartHandler.UpdateItem)
			c.Delete("/items/{itemID}", cartHandler.RemoveItem)
			c.Post("/discount", cartHandler.ApplyDiscount)
			c.Delete("/discount", cartHandler.RemoveDiscount)
			c.With(authMW.RequireAuth).Post("/merge", cartHandler.Merge)
		})

		v.With(authMW.Authenticate, authMW.RequireAuth, idem.Middleware).
			Post("/checkout", checkoutHandler.PlaceOrder)

		v.Group(func(p chi.Router) {
			p.Use(authMW.Authenticate, authMW.RequireAuth)

			p.Get("/orders", orderHandler.History)
			p.Get("/orders/{orderID}", orderHandler.Detail)
			p.Post("/orders/{orderID}/cancel", orderHandler.Cancel)
			p.Post("/orders/{orderID}/feedback", orderHandler.Feedback)
			p.Post("/orders/{orderID}/return", orderHandler.RequestReturn)

			p.Get("/loyalty/me", loyaltyHandler.Me)
			p.Get("/loyalty/preview", loyaltyHandler.Preview)
			p.Post("/loyalty/referral/claim", loyaltyHandler.ClaimReferral)

			p.Post("/reservations", reservationHandler.Book)
			p.Get("/reservations", reservationHandler.List)
			p.Post("/reservations/{reservationID}/cancel", reservationHandler.Cancel)

			p.Route("/users/me/addresses", func(a chi.Router) {
				a.Get("/", addressHandler.List)
				a.Post("/", addressHandler.Create)
				a.Patch("/{addressID}", addressHandler.Update)
				a.Delete("/{addressID}", addressHandler.Delete)
				a.Post("/{addressID}/default", addressHandler.SetDefault)
			})
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMW.Authenticate, authMW.RequireAuth, authMW.RequireRole("admin", "staff"))
			admin.Post("/discounts", discountHandler.Upsert)
			admin.Post("/discounts/preview", discountHandler.Preview)
			admin.Post("/menu/items", menuHandler.Upsert)
			admin.Patch("/orders/{orderID}/status", orderHandler.Transition)
			admin.Get("/events", eventsHandler.List)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	<-runCtx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
