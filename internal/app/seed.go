package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"guidance-llm/internal/domain"
	"guidance-llm/internal/service"
)

// TemplateSeeder es la parte del almacen de templates que usa la siembra inicial.
type TemplateSeeder interface {
	Count(ctx context.Context) (int, error)
	Upsert(ctx context.Context, t domain.Template) error
}

// SeedTemplates carga los templates por defecto solo si el almacen esta vacio.
func SeedTemplates(ctx context.Context, store TemplateSeeder, logger *zap.Logger) error {
	n, err := store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count templates: %w", err)
	}
	if n > 0 {
		return nil
	}
	templates := service.DefaultTemplates()
	for _, t := range templates {
		if err := store.Upsert(ctx, t); err != nil {
			return fmt.Errorf("seed template %s: %w", t.ID, err)
		}
	}
	logger.Info("seeded default templates", zap.Int("count", len(templates)))
	return nil
}
