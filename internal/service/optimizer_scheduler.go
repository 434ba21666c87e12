package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

const optimizerRunTimeout = 30 * time.Minute

// OptimizerRunner es lo que el scheduler ejecuta en cada disparo.
type OptimizerRunner interface {
	Run(ctx context.Context, windowDays int, dryRun bool) (OptimizerReport, error)
}

// OptimizerScheduler corre el optimizador con una expresion cron. Las corridas nunca se solapan.
type OptimizerScheduler struct {
	scheduler gocron.Scheduler
	logger    *zap.Logger
}

func NewOptimizerScheduler(optimizer OptimizerRunner, cronExpr string, windowDays int, logger *zap.Logger) (*OptimizerScheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cronExpr = strings.TrimSpace(cronExpr)
	if cronExpr == "" {
		return nil, fmt.Errorf("optimizer cron expression is empty")
	}

	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), optimizerRunTimeout)
			defer cancel()
			if _, err := optimizer.Run(ctx, windowDays, false); err != nil {
				logger.Error("scheduled optimizer run failed", zap.Error(err))
			}
		}),
		gocron.WithName("trait-optimizer"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return nil, fmt.Errorf("schedule optimizer (%q): %w", cronExpr, err)
	}

	return &OptimizerScheduler{scheduler: scheduler, logger: logger}, nil
}

func (s *OptimizerScheduler) Start() {
	s.scheduler.Start()
	s.logger.Info("optimizer scheduler started")
}

func (s *OptimizerScheduler) Shutdown() error {
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("shutdown optimizer scheduler: %w", err)
	}
	return nil
}
