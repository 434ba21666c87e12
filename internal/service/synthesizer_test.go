package service

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"guidance-llm/internal/engine"
)

func TestSynthesizeIgnoresEmptyContent(t *testing.T) {
	got := Synthesize([]engine.Result{
		{Engine: engine.NameVector, Content: "", Confidence: 0.9},
		{Engine: engine.NameGenerative, Content: "A", Confidence: 0.6},
	})
	if got.Content != "A" || got.Confidence != 0.6 || got.PrimaryStrategy != engine.NameGenerative {
		t.Fatalf("unexpected synthesis %+v", got)
	}
	if diff := cmp.Diff([]string{engine.NameGenerative}, got.EnginesUsed); diff != "" {
		t.Fatalf("engines used mismatch (-want +got):\n%s", diff)
	}
	if got.ConfidenceByEngine[engine.NameVector] != 0.9 {
		t.Fatalf("expected confidence recorded for every engine")
	}
}

func TestSynthesizeFallback(t *testing.T) {
	for _, results := range [][]engine.Result{
		nil,
		{{Engine: engine.NameVector, Confidence: 0.9}, {Engine: engine.NameGenerative, Content: "   ", Confidence: 0.4}},
	} {
		got := Synthesize(results)
		if got.Content != FallbackMessage || got.Confidence != 0.5 || got.PrimaryStrategy != "fallback" {
			t.Fatalf("unexpected fallback synthesis %+v", got)
		}
	}
}

func TestSynthesizeTieBreakFirstSeen(t *testing.T) {
	got := Synthesize([]engine.Result{
		{Engine: engine.NameKnowledgeGraph, Content: "first", Confidence: 0.7},
		{Engine: engine.NameMissionSimulation, Content: "second", Confidence: 0.7},
	})
	if got.Content != "first" {
		t.Fatalf("expected first-seen engine to win tie, got %q", got.Content)
	}
}
