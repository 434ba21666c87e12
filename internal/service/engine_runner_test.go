package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"

	"guidance-llm/internal/engine"
)

func allEnginesPlan() ResponsePlan {
	return ResponsePlan{Vector: true, KnowledgeGraph: true, ModuleAnalysis: true, Generative: true, MissionSimulation: true}
}

func TestEngineRunnerPartialJoin(t *testing.T) {
	defer goleak.VerifyNone(t)

	vector := &fakeEngine{name: engine.NameVector, result: engine.Result{Content: "from docs", Confidence: 1.4}}
	graph := &fakeEngine{name: engine.NameKnowledgeGraph, err: errors.New("graph down")}
	modules := &fakeEngine{name: engine.NameModuleAnalysis, panics: true}
	gen := &fakeEngine{name: engine.NameGenerative, result: engine.Result{Content: "generated", Confidence: 0.7}}
	slow := &fakeEngine{name: engine.NameMissionSimulation, delay: time.Second}

	runner := NewEngineRunner([]engine.Engine{gen, slow, modules, graph, vector}, 50*time.Millisecond, false, nil, nil)
	results, err := runner.Run(context.Background(), allEnginesPlan(), engine.Input{Question: "q"})
	if err != nil {
		t.Fatalf("partial join should not fail: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected two results, got %+v", results)
	}
	if results[0].Engine != engine.NameVector || results[1].Engine != engine.NameGenerative {
		t.Fatalf("results must follow invocation order, got %s, %s", results[0].Engine, results[1].Engine)
	}
	if results[0].Confidence != 1 {
		t.Fatalf("confidence should be clamped to 1, got %v", results[0].Confidence)
	}
	for _, e := range []*fakeEngine{vector, graph, modules, gen, slow} {
		if e.Calls() != 1 {
			t.Fatalf("engine %s called %d times", e.name, e.Calls())
		}
	}
}

func TestEngineRunnerSkipsDisabledAndUnregistered(t *testing.T) {
	vector := &fakeEngine{name: engine.NameVector, result: engine.Result{Content: "a", Confidence: 0.5}}
	gen := &fakeEngine{name: engine.NameGenerative, result: engine.Result{Content: "b", Confidence: 0.5}}
	runner := NewEngineRunner([]engine.Engine{vector, gen}, time.Second, false, nil, nil)

	results, err := runner.Run(context.Background(), ResponsePlan{Vector: true, KnowledgeGraph: true}, engine.Input{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(results) != 1 || gen.Calls() != 0 {
		t.Fatalf("only the vector engine should run, got %+v", results)
	}

	results, err = runner.Run(context.Background(), ResponsePlan{}, engine.Input{})
	if err != nil || results != nil {
		t.Fatalf("empty plan should return nothing, got %+v %v", results, err)
	}
}

func TestEngineRunnerAllFail(t *testing.T) {
	runner := NewEngineRunner([]engine.Engine{
		&fakeEngine{name: engine.NameVector, err: errors.New("no index")},
		&fakeEngine{name: engine.NameGenerative, err: errors.New("rate limited")},
	}, time.Second, false, nil, nil)

	_, err := runner.Run(context.Background(), allEnginesPlan(), engine.Input{})
	if !errors.Is(err, ErrAllEnginesFailed) {
		t.Fatalf("expected ErrAllEnginesFailed, got %v", err)
	}
}

func TestEngineRunnerStrictCancelsOthers(t *testing.T) {
	defer goleak.VerifyNone(t)

	slow := &fakeEngine{name: engine.NameGenerative, delay: 5 * time.Second}
	runner := NewEngineRunner([]engine.Engine{
		&fakeEngine{name: engine.NameVector, err: errors.New("no index")},
		slow,
	}, 10*time.Second, true, nil, nil)

	start := time.Now()
	_, err := runner.Run(context.Background(), allEnginesPlan(), engine.Input{})
	if err == nil {
		t.Fatalf("strict mode should fail on the first engine error")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("strict mode did not cancel the slow engine")
	}
}
