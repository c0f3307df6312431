package main

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/backend-resto/internal/auth"
	"github.com/noah-isme/backend-resto/internal/config"
	"github.com/noah-isme/backend-resto/internal/db"
	"github.com/noah-isme/backend-resto/internal/loyalty"
	"github.com/noah-isme/backend-resto/internal/notify"
	"github.com/noah-isme/backend-resto/internal/obs"
	"github.com/noah-isme/backend-resto/internal/order"
	"github.com/noah-isme/backend-resto/internal/tasks"
)

func main() {
	cfg := config.MustLoad()

	logger := obs.NewLogger("json", "info").With().
		Str("env", cfg.AppEnv).
		Str("component", "worker").
		Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL, "resto-worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	queueOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}

	loyaltySvc := &loyalty.Service{
		Q:             &loyalty.Store{Pool: pool},
		Table:         loyalty.DefaultTierTable(),
		Rate:          cfg.LoyaltyPointsPerUnit,
		ReferralBonus: cfg.ReferralBonusPoints,
		Log:           logger,
	}

	handlers := &tasks.Handlers{
		Orders:  &order.Store{Pool: pool},
		Users:   &auth.Store{Pool: pool},
		Loyalty: loyaltySvc,
		Mailer:  &notify.LogSender{Log: logger},
		Log:     logger,
	}

	srv := asynq.NewServer(queueOpt, asynq.Config{
		Concurrency: cfg.QueueConcurrency,
		Queues: map[string]int{
			tasks.QueueCritical: 6,
			tasks.QueueDefault:  3,
		},
	})

	logger.Info().Int("concurrency", cfg.QueueConcurrency).Msg("worker starting")
	if err := srv.Run(handlers.Mux()); err != nil {
		logger.Fatal().Err(err).Msg("worker exited unexpectedly")
	}
}
