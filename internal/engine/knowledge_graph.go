package engine

import (
	"context"
	"fmt"
	"strings"

	"guidance-llm/internal/repository"
)

// KnowledgeGraphEngine relaciona las entidades de la pregunta con los documentos que las mencionan.
type KnowledgeGraphEngine struct {
	docs repository.KnowledgeRepository
}

func NewKnowledgeGraphEngine(docs repository.KnowledgeRepository) *KnowledgeGraphEngine {
	return &KnowledgeGraphEngine{docs: docs}
}

func (e *KnowledgeGraphEngine) Name() string { return NameKnowledgeGraph }

func (e *KnowledgeGraphEngine) Run(ctx context.Context, in Input) (Result, error) {
	if len(in.Analysis.Entities) == 0 {
		return empty(NameKnowledgeGraph, "entity_graph"), nil
	}
	docs, err := e.docs.FindByEntities(ctx, in.Analysis.Entities, 5)
	if err != nil {
		return Result{}, fmt.Errorf("find by entities: %w", err)
	}
	if len(docs) == 0 {
		return empty(NameKnowledgeGraph, "entity_graph"), nil
	}

	wanted := make(map[string]struct{}, len(in.Analysis.Entities))
	for _, ent := range in.Analysis.Entities {
		wanted[strings.ToLower(ent)] = struct{}{}
	}

	var sb strings.Builder
	matches := 0
	for _, d := range docs {
		var linked []string
		for _, ent := range d.Entities {
			if _, ok := wanted[strings.ToLower(ent)]; ok {
				linked = append(linked, ent)
			}
		}
		if len(linked) == 0 {
			continue
		}
		matches++
		fmt.Fprintf(&sb, "%s (%s): %s\n", d.Title, strings.Join(linked, ", "), firstSentence(d.Content))
	}
	if matches == 0 {
		return empty(NameKnowledgeGraph, "entity_graph"), nil
	}

	confidence := 0.5 + 0.1*float64(matches)
	if confidence > 0.85 {
		confidence = 0.85
	}
	return Result{
		Engine:     NameKnowledgeGraph,
		Content:    strings.TrimSpace(sb.String()),
		Confidence: confidence,
		Source:     "entity_graph",
		Metadata:   map[string]any{"matches": matches},
	}, nil
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.IndexAny(text, ".!?"); idx >= 0 {
		return text[:idx+1]
	}
	return text
}
