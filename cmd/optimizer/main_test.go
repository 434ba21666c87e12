package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"guidance-llm/internal/domain"
	"guidance-llm/internal/service"
)

func sampleReport() service.OptimizerReport {
	return service.OptimizerReport{
		WindowDays:   7,
		Since:        time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		DryRun:       true,
		Interactions: 12,
		Traits:       []service.TraitEffectiveness{{Trait: "humor", Samples: 12, AverageValue: 25.5, PositiveRatio: 0.5, Effectiveness: 12.75}},
		Templates:    []service.TemplateEffectiveness{{TemplateID: "humor-high-general", Samples: 4, AvgRating: 4.5, Effectiveness: 0.9, Weight: 1.5}},
		Recommendations: map[string][]domain.TraitRecommendation{
			"u1": {{Trait: "humor", CurrentValue: 90, RecommendedValue: 26}},
		},
	}
}

func TestPrintReportText(t *testing.T) {
	var buf bytes.Buffer
	if err := printReport(&buf, sampleReport(), false); err != nil {
		t.Fatalf("print: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"dry run", "humor-high-general", "weight=1.5", "u1: humor 90 -> 26"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintReportJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := printReport(&buf, sampleReport(), true); err != nil {
		t.Fatalf("print: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if decoded["windowDays"] != float64(7) || decoded["dryRun"] != true {
		t.Fatalf("unexpected report %v", decoded)
	}
}

func TestRunCmdRejectsNonPositiveWindow(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"run", "--window-days", "0"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "window-days") {
		t.Fatalf("expected window-days error, got %v", err)
	}
}
