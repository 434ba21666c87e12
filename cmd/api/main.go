package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"guidance-llm/internal/app"
	"guidance-llm/internal/config"
	apihttp "guidance-llm/internal/http"
	"guidance-llm/internal/service"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	a, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		logger.Fatal("init", zap.Error(err))
	}
	a.Start()

	var scheduler *service.OptimizerScheduler
	if cfg.OptimizerCron != "" {
		scheduler, err = service.NewOptimizerScheduler(a.Optimizer, cfg.OptimizerCron, cfg.OptimizerWindowDays, logger)
		if err != nil {
			logger.Fatal("optimizer scheduler", zap.Error(err))
		}
		scheduler.Start()
	} else {
		logger.Info("optimizer schedule disabled (OPTIMIZER_CRON empty)")
	}
	if cfg.OperatorToken == "" {
		logger.Warn("operator token not configured, /cache/flush is disabled")
	}

	router := apihttp.NewRouter(
		logger,
		apihttp.NewGuidanceHandler(logger, a.Recovery, a.Cache, a.Limiter),
		apihttp.NewFeedbackHandler(logger, a.Feedback),
		apihttp.NewPersonalityHandler(logger, a.Personality),
		a.Registry,
		cfg.OperatorToken,
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if scheduler != nil {
		if err := scheduler.Shutdown(); err != nil {
			logger.Warn("scheduler shutdown", zap.Error(err))
		}
	}
	if err := a.Close(shutdownCtx); err != nil {
		logger.Warn("close", zap.Error(err))
	}
}
