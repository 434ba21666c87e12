package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// GuidanceEvent resume una respuesta entregada, para analitica y hooks de actualizacion.
type GuidanceEvent struct {
	RequestID   string
	MessageID   string
	UserID      string
	SessionID   string
	Source      string
	Strategy    string
	Confidence  float64
	TemplateID  string
	SearchPath  string
	Adjustments []string
	Topics      []string
	Cached      bool
	Duration    time.Duration
}

// Hook recibe cada GuidanceEvent fuera del camino de la respuesta. Sus errores se registran y se descartan.
type Hook func(ctx context.Context, ev GuidanceEvent) error

// NamedHook permite identificar el hook en logs y metricas de tareas.
type NamedHook struct {
	Name string
	Fn   Hook
}

// AnalyticsLogHook deja un registro estructurado por respuesta.
func AnalyticsLogHook(logger *zap.Logger) NamedHook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return NamedHook{Name: "analytics", Fn: func(_ context.Context, ev GuidanceEvent) error {
		logger.Info("guidance delivered",
			zap.String("request_id", ev.RequestID),
			zap.String("user_id", ev.UserID),
			zap.String("source", ev.Source),
			zap.String("strategy", ev.Strategy),
			zap.Float64("confidence", ev.Confidence),
			zap.String("template_id", ev.TemplateID),
			zap.String("search_path", ev.SearchPath),
			zap.Strings("adjustments", ev.Adjustments),
			zap.Bool("cached", ev.Cached),
			zap.Duration("duration", ev.Duration),
		)
		return nil
	}}
}

// TemplateUsageHook cuenta las rutas de seleccion de template que alimentan al optimizador.
func TemplateUsageHook(metrics *Metrics) NamedHook {
	return NamedHook{Name: "template_usage", Fn: func(_ context.Context, ev GuidanceEvent) error {
		if ev.SearchPath != "" && !ev.Cached {
			metrics.TemplateSelection(ev.SearchPath)
		}
		return nil
	}}
}
