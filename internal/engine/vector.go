package engine

import (
	"context"
	"fmt"

	pgvector "github.com/pgvector/pgvector-go"

	"guidance-llm/internal/domain"
	"guidance-llm/internal/repository"
)

const minVectorSimilarity = 0.35

// VectorEngine busca el documento mas parecido en el almacen de conocimiento.
// Sin embedding usa busqueda de texto; con embedding degradado la confianza se reduce a la mitad.
type VectorEngine struct {
	docs repository.KnowledgeRepository
}

func NewVectorEngine(docs repository.KnowledgeRepository) *VectorEngine {
	return &VectorEngine{docs: docs}
}

func (e *VectorEngine) Name() string { return NameVector }

func (e *VectorEngine) Run(ctx context.Context, in Input) (Result, error) {
	var (
		docs   []domain.ScoredDocument
		err    error
		source = "vector_search"
	)
	if len(in.Analysis.Embedding) > 0 {
		docs, err = e.docs.SearchByVector(ctx, pgvector.NewVector(in.Analysis.Embedding), 3)
	} else {
		source = "text_search"
		docs, err = e.docs.SearchText(ctx, in.Question, 3)
	}
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", source, err)
	}
	if len(docs) == 0 || docs[0].Similarity < minVectorSimilarity {
		return empty(NameVector, source), nil
	}

	best := docs[0]
	confidence := best.Similarity
	if in.Analysis.EmbeddingDegraded {
		confidence /= 2
	}
	return Result{
		Engine:     NameVector,
		Content:    best.Content,
		Confidence: clampConfidence(confidence),
		Source:     source,
		Metadata: map[string]any{
			"document":   best.ID,
			"similarity": best.Similarity,
			"degraded":   in.Analysis.EmbeddingDegraded,
		},
	}, nil
}
