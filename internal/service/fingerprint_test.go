package service

import (
	"testing"

	"guidance-llm/internal/domain"
)

func TestFingerprintDeterministic(t *testing.T) {
	ctx := domain.RequestContext{Area: "training", Attributes: map[string]string{"b": "2", "a": "1"}}
	first := Fingerprint("u-1", "How do I dock?", ctx)
	for i := 0; i < 10; i++ {
		if got := Fingerprint("u-1", "How do I dock?", ctx); got != first {
			t.Fatalf("fingerprint changed between calls: %s vs %s", got, first)
		}
	}
	if len(first) != 64 {
		t.Fatalf("expected 32-byte hex digest, got %d chars", len(first))
	}
}

func TestFingerprintNormalization(t *testing.T) {
	base := Fingerprint("u-1", "How do I dock?", domain.RequestContext{Area: "Training"})

	tests := []struct {
		name     string
		userID   string
		question string
		ctx      domain.RequestContext
		same     bool
	}{
		{name: "whitespace and case", userID: "u-1", question: "  how   DO i dock? ", ctx: domain.RequestContext{Area: "training"}, same: true},
		{name: "bypass flag ignored", userID: "u-1", question: "How do I dock?", ctx: domain.RequestContext{Area: "training", SkipCache: true}, same: true},
		{name: "other user", userID: "u-2", question: "How do I dock?", ctx: domain.RequestContext{Area: "training"}},
		{name: "other context", userID: "u-1", question: "How do I dock?", ctx: domain.RequestContext{Area: "mission"}},
		{name: "other question", userID: "u-1", question: "How do I undock?", ctx: domain.RequestContext{Area: "training"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fingerprint(tt.userID, tt.question, tt.ctx)
			if (got == base) != tt.same {
				t.Fatalf("same=%v, want %v", got == base, tt.same)
			}
		})
	}
}
