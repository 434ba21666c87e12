package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"guidance-llm/internal/domain"
)

func ratedInteraction(id, userID, templateID string, traits domain.PersonalityTraits, rating int, at time.Time) domain.Interaction {
	return domain.Interaction{
		ID:              id,
		UserID:          userID,
		ConfidenceScore: 0.8,
		CreatedAt:       at,
		Response:        &domain.InteractionResponse{Message: "ok", Traits: traits, TemplateID: templateID},
		Feedback:        &domain.Feedback{Rating: rating, SubmittedAt: at},
	}
}

func TestTemplateWeightFor(t *testing.T) {
	tests := []struct {
		eff  float64
		want float64
	}{
		{0.9, 1.5},
		{0.8, 0},
		{0.5, 0},
		{0.4, 0.5},
	}
	for _, tt := range tests {
		if got := TemplateWeightFor(tt.eff); got != tt.want {
			t.Errorf("TemplateWeightFor(%v) = %v, want %v", tt.eff, got, tt.want)
		}
	}
}

func TestOptimizerTemplateWeights(t *testing.T) {
	clock := newFakeClock()
	now := clock.Now()
	traits := domain.DefaultTraits()

	var items []domain.Interaction
	add := func(templateID string, ratings ...int) {
		for i, r := range ratings {
			items = append(items, ratedInteraction(fmt.Sprintf("%s-%d", templateID, i), fmt.Sprintf("user-%s-%d", templateID, i), templateID, traits, r, now.Add(-time.Hour)))
		}
	}
	add("t-good", 5, 4, 5, 4)
	add("t-bad", 2, 2, 2, 2)
	add("t-few", 5, 5)
	add("t-mid", 3, 3, 3)
	// fuera de la ventana
	items = append(items, ratedInteraction("old", "u-old", "t-few", traits, 5, now.Add(-30*24*time.Hour)))

	weights := &fakeTemplateWeights{}
	opt := NewOptimizer(newFakeInteractionStore(items...), weights, newFakeProfileStore(), clock, nil, nil)

	report, err := opt.Run(context.Background(), 7, false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Interactions != 13 {
		t.Fatalf("expected 13 interactions in window, got %d", report.Interactions)
	}
	if got := weights.weights["t-good"]; got != 1.5 {
		t.Fatalf("t-good weight = %v, want 1.5", got)
	}
	if got := weights.weights["t-bad"]; got != 0.5 {
		t.Fatalf("t-bad weight = %v, want 0.5", got)
	}
	if _, ok := weights.weights["t-few"]; ok {
		t.Fatalf("t-few has too few samples and must not be updated")
	}
	if _, ok := weights.weights["t-mid"]; ok {
		t.Fatalf("t-mid is in the neutral band and must not be updated")
	}
	if len(report.Templates) != 3 {
		t.Fatalf("expected 3 evaluated templates, got %+v", report.Templates)
	}
}

func TestOptimizerRecommendations(t *testing.T) {
	clock := newFakeClock()
	now := clock.Now()
	high := domain.PersonalityTraits{Honesty: 50, Humor: 90, Formality: 50, Encouragement: 50, Detail: 50}
	low := domain.PersonalityTraits{Honesty: 50, Humor: 30, Formality: 50, Encouragement: 50, Detail: 50}

	var items []domain.Interaction
	for i := 0; i < 3; i++ {
		items = append(items, ratedInteraction(fmt.Sprintf("u1-%d", i), "u1", "", high, 1, now.Add(-time.Duration(i+1)*time.Hour)))
	}
	for i := 0; i < 5; i++ {
		items = append(items, ratedInteraction(fmt.Sprintf("u2-%d", i), "u2", "", low, 5, now.Add(-time.Duration(i+1)*time.Hour)))
	}
	profiles := newFakeProfileStore()
	opt := NewOptimizer(newFakeInteractionStore(items...), &fakeTemplateWeights{}, profiles, clock, nil, nil)

	t.Run("dry run writes nothing", func(t *testing.T) {
		report, err := opt.Run(context.Background(), 7, true)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if len(report.Recommendations["u1"]) != 1 {
			t.Fatalf("expected a recommendation in the report, got %+v", report.Recommendations)
		}
		if len(profiles.recsFor) != 0 {
			t.Fatalf("dry run saved recommendations for %v", profiles.recsFor)
		}
	})

	t.Run("recommends the effective humor level", func(t *testing.T) {
		report, err := opt.Run(context.Background(), 7, false)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if len(report.Recommendations) != 1 {
			t.Fatalf("expected recommendations for u1 only, got %+v", report.Recommendations)
		}
		recs := report.Recommendations["u1"]
		if len(recs) != 1 || recs[0].Trait == "" {
			t.Fatalf("unexpected recommendations %+v", recs)
		}
		rec := recs[0]
		if rec.Trait != "humor" || rec.CurrentValue != 90 || rec.RecommendedValue != 26 {
			t.Fatalf("unexpected recommendation %+v", rec)
		}
		stored, err := profiles.GetByUserID(context.Background(), "u1")
		if err != nil || len(stored.Recommendations) != 1 {
			t.Fatalf("recommendations not stored: %+v %v", stored, err)
		}
		if stored.Traits.Humor != 90 {
			t.Fatalf("recommendations must not change the active traits, got %+v", stored.Traits)
		}
	})
}

func TestOptimizerContinuesAfterWriteFailure(t *testing.T) {
	clock := newFakeClock()
	now := clock.Now()
	traits := domain.DefaultTraits()
	var items []domain.Interaction
	for i, tpl := range []string{"t-a", "t-a", "t-a", "t-b", "t-b", "t-b"} {
		items = append(items, ratedInteraction(fmt.Sprintf("i-%d", i), fmt.Sprintf("user-%d", i), tpl, traits, 5, now))
	}
	weights := &fakeTemplateWeights{failFor: map[string]bool{"t-a": true}}
	opt := NewOptimizer(newFakeInteractionStore(items...), weights, newFakeProfileStore(), clock, nil, nil)

	report, err := opt.Run(context.Background(), 7, false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Failures != 1 {
		t.Fatalf("expected one failure, got %d", report.Failures)
	}
	if weights.weights["t-b"] != 1.5 {
		t.Fatalf("t-b should still be updated, got %v", weights.weights)
	}
}

func TestOptimizerErrors(t *testing.T) {
	store := newFakeInteractionStore()
	opt := NewOptimizer(store, nil, nil, newFakeClock(), nil, nil)
	if _, err := opt.Run(context.Background(), 0, false); !IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	store.listErr = errors.New("db down")
	if _, err := opt.Run(context.Background(), 7, false); err == nil {
		t.Fatalf("expected list error")
	}
}

func TestOptimizerSchedulerRequiresCron(t *testing.T) {
	opt := NewOptimizer(newFakeInteractionStore(), nil, nil, nil, nil, nil)
	if _, err := NewOptimizerScheduler(opt, "  ", 7, nil); err == nil {
		t.Fatalf("expected error for empty cron expression")
	}
	if _, err := NewOptimizerScheduler(opt, "not a cron", 7, nil); err == nil {
		t.Fatalf("expected error for invalid cron expression")
	}

	sched, err := NewOptimizerScheduler(opt, "0 3 * * *", 7, nil)
	if err != nil {
		t.Fatalf("valid cron: %v", err)
	}
	sched.Start()
	if err := sched.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
