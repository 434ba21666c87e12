package engine

import (
	"context"
	"errors"
	"testing"

	pgvector "github.com/pgvector/pgvector-go"

	"guidance-llm/internal/domain"
	"guidance-llm/internal/llm"
)

type fakeKnowledge struct {
	vectorDocs []domain.ScoredDocument
	textDocs   []domain.ScoredDocument
	entityDocs []domain.KnowledgeDocument
	err        error
	textCalls  int
}

func (f *fakeKnowledge) SearchByVector(ctx context.Context, embedding pgvector.Vector, k int) ([]domain.ScoredDocument, error) {
	return f.vectorDocs, f.err
}

func (f *fakeKnowledge) SearchText(ctx context.Context, text string, k int) ([]domain.ScoredDocument, error) {
	f.textCalls++
	return f.textDocs, f.err
}

func (f *fakeKnowledge) FindByEntities(ctx context.Context, entities []string, k int) ([]domain.KnowledgeDocument, error) {
	return f.entityDocs, f.err
}

type fakeModules struct {
	modules []domain.TrainingModule
	err     error
}

func (f *fakeModules) FindByTopics(ctx context.Context, topics []string, limit int) ([]domain.TrainingModule, error) {
	return f.modules, f.err
}

func doc(content string, sim float64) domain.ScoredDocument {
	return domain.ScoredDocument{KnowledgeDocument: domain.KnowledgeDocument{ID: "d", Content: content}, Similarity: sim}
}

func TestVectorEngine(t *testing.T) {
	tests := []struct {
		name       string
		docs       []domain.ScoredDocument
		degraded   bool
		wantAnswer bool
		wantConf   float64
	}{
		{name: "best match", docs: []domain.ScoredDocument{doc("A", 0.8)}, wantAnswer: true, wantConf: 0.8},
		{name: "below threshold", docs: []domain.ScoredDocument{doc("A", 0.2)}},
		{name: "no docs"},
		{name: "degraded halves confidence", docs: []domain.ScoredDocument{doc("A", 0.8)}, degraded: true, wantAnswer: true, wantConf: 0.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewVectorEngine(&fakeKnowledge{vectorDocs: tt.docs})
			in := Input{Question: "q", Analysis: domain.QueryAnalysis{Embedding: []float32{1, 0}, EmbeddingDegraded: tt.degraded}}
			res, err := e.Run(context.Background(), in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Answered() != tt.wantAnswer {
				t.Fatalf("answered=%v want %v", res.Answered(), tt.wantAnswer)
			}
			if tt.wantAnswer && res.Confidence != tt.wantConf {
				t.Fatalf("confidence=%v want %v", res.Confidence, tt.wantConf)
			}
		})
	}
}

func TestVectorEngineFallsBackToTextSearch(t *testing.T) {
	fk := &fakeKnowledge{textDocs: []domain.ScoredDocument{doc("text hit", 0.5)}}
	res, err := NewVectorEngine(fk).Run(context.Background(), Input{Question: "docking"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fk.textCalls != 1 || res.Source != "text_search" || res.Content != "text hit" {
		t.Fatalf("expected text search result, got %+v", res)
	}
}

func TestKnowledgeGraphConfidenceCapped(t *testing.T) {
	var docs []domain.KnowledgeDocument
	for i := 0; i < 5; i++ {
		docs = append(docs, domain.KnowledgeDocument{Title: "Doc", Content: "Body. More.", Entities: []string{"ISS"}})
	}
	e := NewKnowledgeGraphEngine(&fakeKnowledge{entityDocs: docs})
	res, err := e.Run(context.Background(), Input{Analysis: domain.QueryAnalysis{Entities: []string{"iss"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Confidence != 0.85 {
		t.Fatalf("expected capped confidence 0.85, got %v", res.Confidence)
	}

	none, _ := e.Run(context.Background(), Input{})
	if none.Answered() {
		t.Fatalf("expected no answer without entities")
	}
}

func TestModuleAnalysisConfidenceRange(t *testing.T) {
	modules := []domain.TrainingModule{
		{ID: "m1", Title: "EVA Basics", Difficulty: domain.StageIntermediate, DurationMinutes: 30},
		{ID: "m2", Title: "EVA Advanced", Difficulty: domain.StageAdvanced, DurationMinutes: 45},
		{ID: "m3", Title: "Suit Check", Difficulty: domain.StageBeginner, DurationMinutes: 15},
	}
	e := NewModuleAnalysisEngine(&fakeModules{modules: modules})
	res, err := e.Run(context.Background(), Input{UserState: domain.UserState{Stage: domain.StageIntermediate}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Confidence < 0.6 || res.Confidence > 0.8 {
		t.Fatalf("confidence out of range: %v", res.Confidence)
	}

	_, err = NewModuleAnalysisEngine(&fakeModules{err: errors.New("db down")}).Run(context.Background(), Input{})
	if err == nil {
		t.Fatalf("expected error to propagate")
	}
}

func TestGenerativeEngineUsesHistory(t *testing.T) {
	provider := &llm.MockProvider{Response: "  Drink water.  "}
	in := Input{
		Question: "How do I stay hydrated?",
		History:  []domain.HistoryMessage{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}},
	}
	res, err := NewGenerativeEngine(provider).Run(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Content != "Drink water." || res.Confidence != generativeConfidence {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := len(provider.Requests[0]); got != 4 {
		t.Fatalf("expected system + 2 history + question, got %d messages", got)
	}

	provider.Err = errors.New("timeout")
	if _, err := NewMissionSimulationEngine(provider).Run(context.Background(), in); err == nil {
		t.Fatalf("expected provider error")
	}
}
