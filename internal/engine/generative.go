package engine

import (
	"context"
	"fmt"
	"strings"

	"guidance-llm/internal/llm"
)

const (
	generativeConfidence = 0.75
	missionConfidence    = 0.7
	maxHistoryTurns      = 10
)

const generativeSystemPrompt = `You are a guidance assistant for a training platform. Answer the learner's question clearly and accurately.
If you are not sure, say so. Keep the answer under 200 words.`

const missionSystemPrompt = `You are a mission instructor. Walk the learner through the scenario implied by the question as numbered steps:
situation, objective, actions, and what could go wrong. Keep it under 200 words.`

// GenerativeEngine pide la respuesta directamente al modelo usando el historial.
type GenerativeEngine struct {
	provider llm.Provider
}

func NewGenerativeEngine(provider llm.Provider) *GenerativeEngine {
	return &GenerativeEngine{provider: provider}
}

func (e *GenerativeEngine) Name() string { return NameGenerative }

func (e *GenerativeEngine) Run(ctx context.Context, in Input) (Result, error) {
	return complete(ctx, e.provider, NameGenerative, generativeSystemPrompt, in, generativeConfidence)
}

// MissionSimulationEngine genera un recorrido de escenario para preguntas de mision.
type MissionSimulationEngine struct {
	provider llm.Provider
}

func NewMissionSimulationEngine(provider llm.Provider) *MissionSimulationEngine {
	return &MissionSimulationEngine{provider: provider}
}

func (e *MissionSimulationEngine) Name() string { return NameMissionSimulation }

func (e *MissionSimulationEngine) Run(ctx context.Context, in Input) (Result, error) {
	return complete(ctx, e.provider, NameMissionSimulation, missionSystemPrompt, in, missionConfidence)
}

func complete(ctx context.Context, provider llm.Provider, name, system string, in Input, confidence float64) (Result, error) {
	messages := []llm.Message{{Role: llm.RoleSystem, Content: system}}
	history := in.History
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	for _, h := range history {
		role := llm.RoleUser
		if h.Role == llm.RoleAssistant {
			role = llm.RoleAssistant
		}
		if strings.TrimSpace(h.Content) == "" {
			continue
		}
		messages = append(messages, llm.Message{Role: role, Content: h.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: in.Question})

	out, err := provider.Complete(ctx, messages)
	if err != nil {
		return Result{}, fmt.Errorf("%s complete: %w", name, err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return empty(name, "llm"), nil
	}
	return Result{Engine: name, Content: out, Confidence: confidence, Source: "llm"}, nil
}
