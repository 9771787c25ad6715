package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"store-assistant/handler"
	"store-assistant/internal/app"
	"store-assistant/internal/config"
	logx "store-assistant/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logx.Init()
		logx.Warn().Err(err).Msg("could not load .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		logx.Init()
		logx.Fatal().Err(err).Msg("failed to load configuration")
	}
	logx.Init(logx.LoggerOpts{Environment: cfg.Env})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wireCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	a, err := app.New(wireCtx, cfg)
	cancel()
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to wire application")
	}
	defer func() {
		if err := a.Close(); err != nil {
			logx.Warn().Err(err).Msg("close backends")
		}
	}()

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

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	go func() {
		logx.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logx.Error().Err(err).Msg("graceful shutdown failed")
	}
}
