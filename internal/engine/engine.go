// Package engine contiene las estrategias que proponen respuestas candidatas.
// Cada motor es independiente y sin estado; Content vacio significa "sin respuesta", no error.
package engine

import (
	"context"
	"strings"

	"guidance-llm/internal/domain"
)

const (
	NameVector            = "vector"
	NameKnowledgeGraph    = "knowledge_graph"
	NameModuleAnalysis    = "module_analysis"
	NameGenerative        = "generative"
	NameMissionSimulation = "mission_simulation"
)

// Names lista los motores en orden de invocacion; el sintetizador desempata por este orden.
var Names = []string{NameVector, NameKnowledgeGraph, NameModuleAnalysis, NameGenerative, NameMissionSimulation}

type Input struct {
	UserID    string
	Question  string
	Context   domain.RequestContext
	History   []domain.HistoryMessage
	UserState domain.UserState
	Analysis  domain.QueryAnalysis
}

type Result struct {
	Engine     string         `json:"engine"`
	Content    string         `json:"content,omitempty"`
	Confidence float64        `json:"confidence"`
	Source     string         `json:"source"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Answered indica si el motor produjo contenido.
func (r Result) Answered() bool {
	return strings.TrimSpace(r.Content) != ""
}

type Engine interface {
	Name() string
	Run(ctx context.Context, in Input) (Result, error)
}

func empty(name, source string) Result {
	return Result{Engine: name, Source: source}
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
