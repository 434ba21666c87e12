package engine

import (
	"context"
	"fmt"
	"strings"

	"guidance-llm/internal/domain"
	"guidance-llm/internal/repository"
)

// ModuleAnalysisEngine recomienda modulos de entrenamiento segun los topics de la pregunta.
type ModuleAnalysisEngine struct {
	modules repository.ModuleRepository
}

func NewModuleAnalysisEngine(modules repository.ModuleRepository) *ModuleAnalysisEngine {
	return &ModuleAnalysisEngine{modules: modules}
}

func (e *ModuleAnalysisEngine) Name() string { return NameModuleAnalysis }

func (e *ModuleAnalysisEngine) Run(ctx context.Context, in Input) (Result, error) {
	modules, err := e.modules.FindByTopics(ctx, in.Analysis.Topics, 3)
	if err != nil {
		return Result{}, fmt.Errorf("find modules: %w", err)
	}
	if len(modules) == 0 {
		return empty(NameModuleAnalysis, "module_catalog"), nil
	}

	var sb strings.Builder
	sb.WriteString("These training modules cover your question:\n")
	ids := make([]string, 0, len(modules))
	for _, m := range modules {
		fmt.Fprintf(&sb, "- %s (%s, %d min): %s\n", m.Title, m.Difficulty, m.DurationMinutes, m.Summary)
		ids = append(ids, m.ID)
	}

	// 0.6 base; mas cerca de 0.8 si el nivel del modulo coincide con la etapa del usuario.
	confidence := 0.6 + 0.05*float64(len(modules)-1)
	if modules[0].Difficulty == in.UserState.Stage {
		confidence += 0.1
	}
	if in.UserState.InAssessment && in.UserState.Stage == domain.StageBeginner {
		confidence -= 0.05
	}
	if confidence < 0.6 {
		confidence = 0.6
	}
	if confidence > 0.8 {
		confidence = 0.8
	}

	return Result{
		Engine:     NameModuleAnalysis,
		Content:    strings.TrimSpace(sb.String()),
		Confidence: confidence,
		Source:     "module_catalog",
		Metadata:   map[string]any{"modules": ids},
	}, nil
}
