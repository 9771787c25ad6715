package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"

	"store-assistant/handler"
	"store-assistant/internal/app"
	"store-assistant/internal/config"
	logx "store-assistant/pkg/logger"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		logx.Init()
		logx.Fatal().Err(err).Msg("failed to load configuration")
	}
	logx.Init(logx.LoggerOpts{Environment: cfg.Env})

	// ---- Services ----
	a, err := app.New(ctx, cfg)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to wire application")
	}

	// ---- Handler ----
	h, err := handler.NewHandler(handler.Dependencies{
		Chat:     a.Chat,
		Orders:   a.Orders,
		Settings: a.Settings,
		Nonces:   a.Signer,
	}, handler.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		NonceTTL:       cfg.NonceTTL,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to create handler")
	}

	lambda.Start(h.Handle)
}
