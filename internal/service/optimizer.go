package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"guidance-llm/internal/domain"
)

const (
	minTemplateSamples = 3
	minUserSamples     = 3

	boostedWeight    = 1.5
	suppressedWeight = 0.5
	boostAbove       = 0.8
	suppressBelow    = 0.5

	recommendationGap        = 20.0
	recommendationMaxPosRate = 0.5
)

// FeedbackHistory es la lectura del log que necesita el optimizador.
type FeedbackHistory interface {
	ListWithFeedbackSince(ctx context.Context, since time.Time) ([]domain.Interaction, error)
}

// TemplateWeightWriter solo toca el campo weight.
type TemplateWeightWriter interface {
	UpdateWeight(ctx context.Context, id string, weight float64) error
}

// RecommendationWriter adjunta recomendaciones al perfil sin aplicarlas.
type RecommendationWriter interface {
	GetByUserID(ctx context.Context, userID string) (domain.PersonalityProfile, error)
	SaveRecommendations(ctx context.Context, profile domain.PersonalityProfile) error
}

type TraitEffectiveness struct {
	Trait         string  `json:"trait"`
	Samples       int     `json:"samples"`
	AverageValue  float64 `json:"averageValue"`
	PositiveRatio float64 `json:"positiveRatio"`
	Effectiveness float64 `json:"effectiveness"`
}

type TemplateEffectiveness struct {
	TemplateID    string  `json:"templateId"`
	Samples       int     `json:"samples"`
	AvgRating     float64 `json:"avgRating"`
	Effectiveness float64 `json:"effectiveness"`
	Weight        float64 `json:"weight,omitempty"` // 0 = sin cambio
}

type OptimizerReport struct {
	WindowDays      int                                     `json:"windowDays"`
	Since           time.Time                               `json:"since"`
	DryRun          bool                                    `json:"dryRun"`
	Interactions    int                                     `json:"interactions"`
	Traits          []TraitEffectiveness                    `json:"traits"`
	Templates       []TemplateEffectiveness                 `json:"templates"`
	Recommendations map[string][]domain.TraitRecommendation `json:"recommendations"`
	Failures        int                                     `json:"failures"`
}

// Optimizer recalcula la efectividad de rasgos y templates a partir del feedback historico.
type Optimizer struct {
	history   FeedbackHistory
	templates TemplateWeightWriter
	profiles  RecommendationWriter
	clock     Clock
	metrics   *Metrics
	logger    *zap.Logger
}

func NewOptimizer(history FeedbackHistory, templates TemplateWeightWriter, profiles RecommendationWriter, clock Clock, metrics *Metrics, logger *zap.Logger) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{
		history:   history,
		templates: templates,
		profiles:  profiles,
		clock:     clockOrSystem(clock),
		metrics:   metrics,
		logger:    logger,
	}
}

type tally struct {
	weighted float64
	rated    int
	positive int
	negative int
}

func (t *tally) add(value int, fb domain.Feedback) {
	if fb.Rating > 0 {
		t.weighted += float64(value * fb.Rating)
		t.rated++
	}
	if fb.IsPositive() {
		t.positive++
	} else {
		t.negative++
	}
}

func (t tally) averageValue() float64 {
	if t.rated == 0 {
		return 0
	}
	return t.weighted / float64(t.rated*5)
}

func (t tally) positiveRatio() float64 {
	if t.positive+t.negative == 0 {
		return 0
	}
	return float64(t.positive) / float64(t.positive+t.negative)
}

type userSamples struct {
	count  int
	latest domain.Interaction
	traits map[string]*tally
}

// Run procesa una ventana de windowDays. Un fallo al escribir un template o usuario se registra y se
// saltea; solo un fallo al leer el historial aborta la corrida.
func (o *Optimizer) Run(ctx context.Context, windowDays int, dryRun bool) (OptimizerReport, error) {
	if windowDays <= 0 {
		return OptimizerReport{}, &ValidationError{Field: "windowDays", Message: "windowDays must be positive"}
	}
	now := o.clock.Now()
	since := now.Add(-time.Duration(windowDays) * 24 * time.Hour)
	report := OptimizerReport{
		WindowDays:      windowDays,
		Since:           since,
		DryRun:          dryRun,
		Recommendations: map[string][]domain.TraitRecommendation{},
	}

	interactions, err := o.history.ListWithFeedbackSince(ctx, since)
	if err != nil {
		o.metrics.OptimizerRun("failed")
		return report, fmt.Errorf("list feedback: %w", err)
	}

	global := map[string]*tally{}
	templates := map[string]*tally{}
	users := map[string]*userSamples{}
	for _, name := range domain.TraitNames {
		global[name] = &tally{}
	}

	for _, it := range interactions {
		if it.Feedback == nil || it.Response == nil || it.Feedback.SubmittedAt.Before(since) {
			continue
		}
		report.Interactions++
		fb := *it.Feedback
		traits := it.Response.Traits.Clamped()

		u, ok := users[it.UserID]
		if !ok {
			u = &userSamples{traits: map[string]*tally{}}
			users[it.UserID] = u
		}
		u.count++
		if it.CreatedAt.After(u.latest.CreatedAt) || u.latest.ID == "" {
			u.latest = it
		}

		for _, tv := range traits.Ordered() {
			global[tv.Name].add(tv.Value, fb)
			ut, ok := u.traits[tv.Name]
			if !ok {
				ut = &tally{}
				u.traits[tv.Name] = ut
			}
			ut.add(tv.Value, fb)
		}

		if id := it.Response.TemplateID; id != "" && fb.Rating > 0 {
			tt, ok := templates[id]
			if !ok {
				tt = &tally{}
				templates[id] = tt
			}
			tt.add(1, fb)
		}
	}

	globalAverage := map[string]float64{}
	for _, name := range domain.TraitNames {
		t := global[name]
		avg := t.averageValue()
		ratio := t.positiveRatio()
		globalAverage[name] = avg
		report.Traits = append(report.Traits, TraitEffectiveness{
			Trait:         name,
			Samples:       t.rated,
			AverageValue:  avg,
			PositiveRatio: ratio,
			Effectiveness: avg * ratio,
		})
	}

	report.Templates, report.Failures = o.updateTemplates(ctx, templates, dryRun)

	userIDs := make([]string, 0, len(users))
	for id := range users {
		userIDs = append(userIDs, id)
	}
	sort.Strings(userIDs)
	for _, userID := range userIDs {
		u := users[userID]
		if u.count < minUserSamples {
			continue
		}
		recs, err := o.recommend(ctx, userID, u, globalAverage, now, dryRun)
		if err != nil {
			report.Failures++
			o.logger.Warn("optimizer user update failed", zap.String("user_id", userID), zap.Error(err))
			continue
		}
		if len(recs) > 0 {
			report.Recommendations[userID] = recs
		}
	}

	o.metrics.OptimizerRun("ok")
	o.logger.Info("optimizer run finished",
		zap.Int("window_days", windowDays),
		zap.Int("interactions", report.Interactions),
		zap.Int("templates", len(report.Templates)),
		zap.Int("users_with_recommendations", len(report.Recommendations)),
		zap.Int("failures", report.Failures),
		zap.Bool("dry_run", dryRun),
	)
	return report, nil
}

// TemplateWeightFor devuelve el nuevo peso o 0 si no cambia.
func TemplateWeightFor(effectiveness float64) float64 {
	switch {
	case effectiveness > boostAbove:
		return boostedWeight
	case effectiveness < suppressBelow:
		return suppressedWeight
	default:
		return 0
	}
}

func (o *Optimizer) updateTemplates(ctx context.Context, templates map[string]*tally, dryRun bool) ([]TemplateEffectiveness, int) {
	ids := make([]string, 0, len(templates))
	for id := range templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []TemplateEffectiveness
	failures := 0
	for _, id := range ids {
		t := templates[id]
		if t.rated < minTemplateSamples {
			continue
		}
		avg := t.weighted / float64(t.rated)
		eff := TemplateEffectiveness{
			TemplateID:    id,
			Samples:       t.rated,
			AvgRating:     avg,
			Effectiveness: avg / 5,
			Weight:        TemplateWeightFor(avg / 5),
		}
		out = append(out, eff)
		if eff.Weight == 0 || dryRun || o.templates == nil {
			continue
		}
		if err := o.templates.UpdateWeight(ctx, id, eff.Weight); err != nil {
			failures++
			o.logger.Warn("optimizer template update failed", zap.String("template_id", id), zap.Error(err))
			continue
		}
		direction := "boost"
		if eff.Weight < 1 {
			direction = "suppress"
		}
		o.metrics.TemplateUpdate(direction)
	}
	return out, failures
}

func (o *Optimizer) recommend(ctx context.Context, userID string, u *userSamples, globalAverage map[string]float64, now time.Time, dryRun bool) ([]domain.TraitRecommendation, error) {
	profile := domain.DefaultProfile(userID)
	profile.Traits = u.latest.Response.Traits.Clamped()
	if o.profiles != nil {
		stored, err := o.profiles.GetByUserID(ctx, userID)
		switch {
		case err == nil:
			profile = stored
		case !errors.Is(err, pgx.ErrNoRows):
			return nil, fmt.Errorf("get profile: %w", err)
		}
	}

	var recs []domain.TraitRecommendation
	for _, tv := range profile.Traits.Clamped().Ordered() {
		target := globalAverage[tv.Name]
		ut := u.traits[tv.Name]
		if ut == nil || target == 0 {
			continue
		}
		ratio := ut.positiveRatio()
		if math.Abs(float64(tv.Value)-target) <= recommendationGap || ratio >= recommendationMaxPosRate {
			continue
		}
		recs = append(recs, domain.TraitRecommendation{
			Trait:            tv.Name,
			CurrentValue:     tv.Value,
			RecommendedValue: domain.ClampTrait(target),
			Reason: fmt.Sprintf("%s at %d differs from the effective average %.0f and only %.0f%% of your feedback was positive",
				tv.Name, tv.Value, target, ratio*100),
			CreatedAt: now,
		})
	}
	if len(recs) == 0 || dryRun || o.profiles == nil {
		return recs, nil
	}
	profile.Recommendations = recs
	if err := o.profiles.SaveRecommendations(ctx, profile); err != nil {
		return nil, fmt.Errorf("save recommendations: %w", err)
	}
	return recs, nil
}
