package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics agrupa las metricas Prometheus del servicio. Un *Metrics nil es valido y no registra nada.
type Metrics struct {
	requests        *prometheus.CounterVec
	phaseDuration   *prometheus.HistogramVec
	engineOutcomes  *prometheus.CounterVec
	recoveryTiers   *prometheus.CounterVec
	cacheEvents     *prometheus.CounterVec
	feedback        *prometheus.CounterVec
	tasks           *prometheus.CounterVec
	templateUpdates *prometheus.CounterVec
	optimizerRuns   *prometheus.CounterVec
	templatePaths   *prometheus.CounterVec
}

// NewMetrics registra las metricas en reg (prometheus.DefaultRegisterer si es nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "guidance_requests_total",
			Help: "Guidance responses by source (pipeline, cache, recovery)",
		}, []string{"source"}),
		phaseDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "guidance_phase_duration_seconds",
			Help:    "Duration of each orchestration phase",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		}, []string{"phase"}),
		engineOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "guidance_engine_outcomes_total",
			Help: "Strategy engine results by engine and outcome (answered, empty, error)",
		}, []string{"engine", "outcome"}),
		recoveryTiers: f.NewCounterVec(prometheus.CounterOpts{
			Name: "guidance_recovery_total",
			Help: "Recovery chain tier attempts by tier and outcome",
		}, []string{"tier", "outcome"}),
		cacheEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "guidance_cache_events_total",
			Help: "Fingerprint cache events (hit, miss, bypass, store, skip, error)",
		}, []string{"event"}),
		feedback: f.NewCounterVec(prometheus.CounterOpts{
			Name: "guidance_feedback_total",
			Help: "Feedback submissions by result",
		}, []string{"result"}),
		tasks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "guidance_background_tasks_total",
			Help: "Background tasks by name and outcome (ok, failed, dropped)",
		}, []string{"task", "outcome"}),
		templateUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "guidance_template_weight_updates_total",
			Help: "Template weight updates written by the optimizer",
		}, []string{"direction"}),
		optimizerRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "guidance_optimizer_runs_total",
			Help: "Optimizer batch runs by outcome",
		}, []string{"outcome"}),
		templatePaths: f.NewCounterVec(prometheus.CounterOpts{
			Name: "guidance_template_selections_total",
			Help: "Template selections by search path (direct, secondary, fallback, generic)",
		}, []string{"path"}),
	}
}

func (m *Metrics) Request(source string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(source).Inc()
}

func (m *Metrics) Phase(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

func (m *Metrics) Engine(engine, outcome string) {
	if m == nil {
		return
	}
	m.engineOutcomes.WithLabelValues(engine, outcome).Inc()
}

func (m *Metrics) Recovery(tier, outcome string) {
	if m == nil {
		return
	}
	m.recoveryTiers.WithLabelValues(tier, outcome).Inc()
}

func (m *Metrics) Cache(event string) {
	if m == nil {
		return
	}
	m.cacheEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) Feedback(result string) {
	if m == nil {
		return
	}
	m.feedback.WithLabelValues(result).Inc()
}

func (m *Metrics) Task(name, outcome string) {
	if m == nil {
		return
	}
	m.tasks.WithLabelValues(name, outcome).Inc()
}

func (m *Metrics) TemplateUpdate(direction string) {
	if m == nil {
		return
	}
	m.templateUpdates.WithLabelValues(direction).Inc()
}

func (m *Metrics) OptimizerRun(outcome string) {
	if m == nil {
		return
	}
	m.optimizerRuns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) TemplateSelection(path string) {
	if m == nil {
		return
	}
	m.templatePaths.WithLabelValues(path).Inc()
}
