package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"guidance-llm/internal/domain"
)

func boolPtr(v bool) *bool { return &v }

func TestNudgeConfidence(t *testing.T) {
	tests := []struct {
		name    string
		current float64
		helpful *bool
		want    float64
	}{
		{"negative lowers by 0.1", 0.85, boolPtr(false), 0.75},
		{"negative floors at 0.5", 0.55, boolPtr(false), 0.5},
		{"positive raises by 0.05", 0.85, boolPtr(true), 0.9},
		{"positive caps at 1", 0.98, boolPtr(true), 1.0},
		{"neutral keeps value", 0.7, nil, 0.7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NudgeConfidence(tt.current, tt.helpful); got != tt.want {
				t.Fatalf("got %v want %v", got, tt.want)
			}
		})
	}
}

func newFeedbackFixture(confidence float64) (*FeedbackService, *fakeInteractionStore, *FeedbackTokenService) {
	clock := newFakeClock()
	store := newFakeInteractionStore(domain.Interaction{ID: "m1", UserID: "u1", ConfidenceScore: confidence, CreatedAt: clock.Now()})
	tokens := NewFeedbackTokenService("secret", time.Hour, nil, clock)
	return NewFeedbackService(store, tokens, clock, nil, nil), store, tokens
}

func TestFeedbackServiceAdjustsConfidence(t *testing.T) {
	ctx := context.Background()

	svc, store, _ := newFeedbackFixture(0.85)
	res, err := svc.Submit(ctx, FeedbackRequest{MessageID: "m1", Helpful: boolPtr(false), Comments: " too vague "})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	stored, _ := store.get("m1")
	if res.Confidence != 0.75 || stored.ConfidenceScore != 0.75 {
		t.Fatalf("expected 0.75, got result %v stored %v", res.Confidence, stored.ConfidenceScore)
	}
	if stored.Feedback == nil || stored.Feedback.Comments != "too vague" {
		t.Fatalf("feedback not stored: %+v", stored.Feedback)
	}

	svc, store, _ = newFeedbackFixture(0.85)
	if _, err := svc.Submit(ctx, FeedbackRequest{MessageID: "m1", Rating: 5}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	stored, _ = store.get("m1")
	if stored.ConfidenceScore != 0.9 || stored.Feedback.Helpful == nil || !*stored.Feedback.Helpful {
		t.Fatalf("rating 5 should count as helpful, got %+v", stored)
	}
}

func TestFeedbackServiceWithToken(t *testing.T) {
	ctx := context.Background()
	svc, _, tokens := newFeedbackFixture(0.8)
	token, err := tokens.Issue(ctx, "m1", "u1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	res, err := svc.Submit(ctx, FeedbackRequest{FeedbackToken: token, Helpful: boolPtr(true)})
	if err != nil || res.InteractionID != "m1" {
		t.Fatalf("submit with token: %+v %v", res, err)
	}
	if _, err := svc.Submit(ctx, FeedbackRequest{FeedbackToken: token, Helpful: boolPtr(true)}); !errors.Is(err, ErrFeedbackTokenUsed) {
		t.Fatalf("expected ErrFeedbackTokenUsed, got %v", err)
	}
}

func TestFeedbackServiceTokenSurvivesFailedSubmit(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newFakeInteractionStore()
	tokens := NewFeedbackTokenService("secret", time.Hour, nil, clock)
	svc := NewFeedbackService(store, tokens, clock, nil, nil)

	token, err := tokens.Issue(ctx, "int-1", "u1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	req := FeedbackRequest{FeedbackToken: token, Rating: 4}

	// la tarea que persiste la interaccion todavia no corrio
	if _, err := svc.Submit(ctx, req); !errors.Is(err, ErrInteractionNotFound) {
		t.Fatalf("expected ErrInteractionNotFound, got %v", err)
	}
	if err := store.Create(ctx, domain.Interaction{ID: "int-1", UserID: "u1", ConfidenceScore: 0.8}); err != nil {
		t.Fatalf("create: %v", err)
	}

	store.feedbackErr = errors.New("connection reset")
	if _, err := svc.Submit(ctx, req); !errors.As(err, new(*PersistenceError)) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	store.feedbackErr = nil

	res, err := svc.Submit(ctx, req)
	if err != nil {
		t.Fatalf("retry after interaction persisted: %v", err)
	}
	if res.InteractionID != "int-1" || res.Confidence != 0.85 {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, err := svc.Submit(ctx, req); !errors.Is(err, ErrFeedbackTokenUsed) {
		t.Fatalf("expected ErrFeedbackTokenUsed after success, got %v", err)
	}
}

func TestFeedbackServiceErrors(t *testing.T) {
	ctx := context.Background()
	svc, _, tokens := newFeedbackFixture(0.8)

	tests := []struct {
		name  string
		req   FeedbackRequest
		check func(error) bool
	}{
		{"missing reference", FeedbackRequest{Helpful: boolPtr(true)}, IsValidationError},
		{"rating out of range", FeedbackRequest{MessageID: "m1", Rating: 7}, IsValidationError},
		{"nothing to record", FeedbackRequest{MessageID: "m1"}, IsValidationError},
		{"unknown interaction", FeedbackRequest{MessageID: "missing", Rating: 3}, func(err error) bool { return errors.Is(err, ErrInteractionNotFound) }},
		{"garbage token", FeedbackRequest{FeedbackToken: "not-a-jwt", Rating: 3}, func(err error) bool { return errors.Is(err, ErrFeedbackTokenInvalid) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Submit(ctx, tt.req); !tt.check(err) {
				t.Fatalf("unexpected error %v", err)
			}
		})
	}

	token, _ := tokens.Issue(ctx, "m1", "u1")
	if _, err := svc.Submit(ctx, FeedbackRequest{FeedbackToken: token, MessageID: "other", Rating: 4}); !IsValidationError(err) {
		t.Fatalf("expected mismatch validation error, got %v", err)
	}

	if _, err := svc.Submit(ctx, FeedbackRequest{MessageID: "m1", Rating: 4}); err != nil {
		t.Fatalf("first feedback: %v", err)
	}
	if _, err := svc.Submit(ctx, FeedbackRequest{MessageID: "m1", Rating: 1}); !errors.Is(err, ErrFeedbackAlreadySubmitted) {
		t.Fatalf("expected ErrFeedbackAlreadySubmitted, got %v", err)
	}
}
