package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"guidance-llm/internal/engine"
)

// EngineRunner ejecuta en paralelo los motores del plan.
// Por defecto el join es parcial: un motor que falla se registra y el resto sigue.
// Con strict, el primer error cancela a los demas y aborta la solicitud.
type EngineRunner struct {
	engines map[string]engine.Engine
	timeout time.Duration
	strict  bool
	logger  *zap.Logger
	metrics *Metrics
}

func NewEngineRunner(engines []engine.Engine, timeout time.Duration, strict bool, logger *zap.Logger, metrics *Metrics) *EngineRunner {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	byName := make(map[string]engine.Engine, len(engines))
	for _, e := range engines {
		byName[e.Name()] = e
	}
	return &EngineRunner{engines: byName, timeout: timeout, strict: strict, logger: logger, metrics: metrics}
}

// Run devuelve los resultados en orden de invocacion, solo de los motores que no fallaron.
func (r *EngineRunner) Run(ctx context.Context, plan ResponsePlan, in engine.Input) ([]engine.Result, error) {
	var selected []engine.Engine
	for _, name := range plan.Enabled() {
		e, ok := r.engines[name]
		if !ok {
			r.logger.Warn("engine enabled but not registered", zap.String("engine", name))
			continue
		}
		selected = append(selected, e)
	}
	if len(selected) == 0 {
		return nil, nil
	}

	results := make([]engine.Result, len(selected))
	errs := make([]error, len(selected))

	var g *errgroup.Group
	gctx := ctx
	if r.strict {
		g, gctx = errgroup.WithContext(ctx)
	} else {
		g = &errgroup.Group{}
	}

	for i, e := range selected {
		i, e := i, e
		g.Go(func() error {
			res, err := r.runOne(gctx, e, in)
			if err != nil {
				errs[i] = err
				if r.strict {
					return fmt.Errorf("engine %s: %w", e.Name(), err)
				}
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]engine.Result, 0, len(selected))
	var failed []error
	for i := range selected {
		if errs[i] != nil {
			failed = append(failed, fmt.Errorf("%s: %w", selected[i].Name(), errs[i]))
			continue
		}
		out = append(out, results[i])
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrAllEnginesFailed, errors.Join(failed...))
	}
	return out, nil
}

func (r *EngineRunner) runOne(ctx context.Context, e engine.Engine, in engine.Input) (res engine.Result, err error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("engine panic: %v", p)
		}
		outcome := "answered"
		switch {
		case err != nil:
			outcome = "error"
			r.logger.Warn("engine failed",
				zap.String("engine", e.Name()),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
		case !res.Answered():
			outcome = "empty"
		}
		r.metrics.Engine(e.Name(), outcome)
	}()

	res, err = e.Run(ctx, in)
	if err == nil {
		res.Engine = e.Name()
		res.Confidence = clamp01(res.Confidence)
	}
	return res, err
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
