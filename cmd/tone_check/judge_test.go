package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"guidance-llm/internal/domain"
	"guidance-llm/internal/llm"
	"guidance-llm/internal/service"
)

func TestEvaluateResponseParsesAndClamps(t *testing.T) {
	judge := &llm.MockProvider{Response: "Sure!\n```json\n{\"reasoning\":\"ok\",\"trait_score\":9,\"clarity_score\":0,\"empathy_score\":4}\n```"}
	sc := scenarios()[0]

	jr, err := evaluateResponse(context.Background(), judge, sc, "Keep the closing rate low.", nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if jr.TraitScore != 5 || jr.ClarityScore != 1 || jr.EmpathyScore != 4 {
		t.Fatalf("unexpected scores %+v", jr)
	}
	if len(judge.Requests) != 1 || !strings.Contains(judge.Requests[0][0].Content, "honesty: 85/100") {
		t.Fatalf("prompt should carry the trait settings")
	}
}

func TestEvaluateResponseCapsEmpathyForChallengedDiscouragedUser(t *testing.T) {
	judge := &llm.MockProvider{Response: `{"reasoning":"fine","trait_score":4,"clarity_score":4,"empathy_score":5}`}
	sc := Scenario{Traits: domain.DefaultTraits(), EmotionalState: domain.EmotionDiscouraged}

	jr, err := evaluateResponse(context.Background(), judge, sc, "Good. "+service.ChallengeLine, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if jr.EmpathyScore != 2 {
		t.Fatalf("expected empathy capped at 2, got %d", jr.EmpathyScore)
	}
}

func TestEvaluateResponseErrors(t *testing.T) {
	sc := scenarios()[0]
	if _, err := evaluateResponse(context.Background(), &llm.MockProvider{Response: "no json here"}, sc, "x", nil); err == nil {
		t.Fatalf("expected error for non-json judge output")
	}
	if _, err := evaluateResponse(context.Background(), &llm.MockProvider{Err: errors.New("down")}, sc, "x", nil); err == nil {
		t.Fatalf("expected provider error")
	}
}

func TestExtractFirstJSONObject(t *testing.T) {
	tests := map[string]string{
		`prefix {"a":{"b":1}} suffix {"c":2}`: `{"a":{"b":1}}`,
		`no braces`:                           "",
		`{"unbalanced":`:                      "",
	}
	for in, want := range tests {
		if got := extractFirstJSONObject(in); got != want {
			t.Errorf("extractFirstJSONObject(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEnhanceSoftensChallengeForDiscouragedScenario(t *testing.T) {
	personality := service.NewPersonalityEngine(
		service.NewTemplateSelector(service.NewMemoryTemplateStore(service.DefaultTemplates()), nil),
		service.NewToneTransformer(func(int) int { return 0 }),
	)
	for _, sc := range scenarios() {
		enh := enhance(context.Background(), personality, sc)
		if enh.Message == "" {
			t.Fatalf("%s: empty message", sc.Name)
		}
		if sc.EmotionalState == domain.EmotionDiscouraged && strings.Contains(enh.Message, service.ChallengeLine) {
			t.Fatalf("%s: discouraged trainee received a challenge line", sc.Name)
		}
	}
}
