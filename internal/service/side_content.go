package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"guidance-llm/internal/domain"
)

const (
	maxActionItems      = 3
	maxSuggestedModules = 3
)

// ModuleFinder es la parte del catalogo de modulos que usan las sugerencias.
type ModuleFinder interface {
	FindByTopics(ctx context.Context, topics []string, limit int) ([]domain.TrainingModule, error)
}

var (
	listLinePattern = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.+)$`)
	imperativeVerbs = map[string]struct{}{
		"review": {}, "practice": {}, "try": {}, "start": {}, "check": {}, "complete": {}, "focus": {},
		"use": {}, "schedule": {}, "repeat": {}, "read": {}, "watch": {}, "perform": {}, "do": {},
		"keep": {}, "ask": {}, "follow": {}, "plan": {}, "train": {}, "take": {}, "run": {},
	}
	defaultActionItems = map[string][]string{
		"how_to":         {"Follow the steps above in order", "Practice the procedure once in a low-stakes setting"},
		"explanation":    {"Summarize the explanation in your own words", "Review the related module material"},
		"recommendation": {"Pick one option and try it this week", "Note how it works for you"},
		"help":           {"Break the problem into smaller steps", "Ask your instructor about the step that blocks you"},
	}
)

// ExtractActionItems toma items de lista u oraciones imperativas de la respuesta. Sin coincidencias usa los
// items por defecto de la intencion.
func ExtractActionItems(text, intent string) []string {
	var items []string
	for _, line := range strings.Split(text, "\n") {
		if m := listLinePattern.FindStringSubmatch(line); m != nil {
			items = appendItem(items, m[1])
		}
		if len(items) == maxActionItems {
			return items
		}
	}
	if len(items) == 0 {
		for _, sentence := range splitSentences(text) {
			fields := strings.Fields(sentence)
			if len(fields) < 2 {
				continue
			}
			if _, ok := imperativeVerbs[strings.ToLower(fields[0])]; ok {
				items = appendItem(items, sentence)
			}
			if len(items) == maxActionItems {
				return items
			}
		}
	}
	if len(items) == 0 {
		if defaults, ok := defaultActionItems[intent]; ok {
			return append([]string(nil), defaults...)
		}
		return []string{"Review the guidance above and apply it in your next session"}
	}
	return items
}

func appendItem(items []string, s string) []string {
	s = strings.TrimRight(strings.TrimSpace(s), ".!")
	if s == "" {
		return items
	}
	for _, it := range items {
		if strings.EqualFold(it, s) {
			return items
		}
	}
	return append(items, s)
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			if s := strings.TrimSpace(text[start : i+1]); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

// NextSteps sugiere como seguir segun etapa e intencion.
func NextSteps(state domain.UserState, intent string) []string {
	var steps []string
	switch state.Stage {
	case domain.StageBeginner:
		steps = append(steps, "Complete the next foundational module before moving to simulations")
	case domain.StageIntermediate:
		steps = append(steps, "Apply this in a practice scenario to consolidate it")
	default:
		steps = append(steps, "Challenge yourself with an advanced mission simulation")
	}
	switch {
	case state.InAssessment:
		steps = append(steps, "Finish your current assessment before exploring new material")
	case intent == "help" || state.EmotionalState == domain.EmotionDiscouraged || state.EmotionalState == domain.EmotionFrustrated:
		steps = append(steps, "Take a short break, then revisit the hardest step with fresh eyes")
	case intent == "how_to":
		steps = append(steps, "Write down the procedure as a checklist you can reuse")
	default:
		steps = append(steps, "Ask a follow-up question if anything is still unclear")
	}
	return steps
}

// PredictImpact estima la utilidad esperada y si el tono necesita suavizarse para el estado del usuario.
func PredictImpact(confidence float64, message string, adjustments []string, state domain.UserState) domain.ImpactPrediction {
	pred := domain.ImpactPrediction{ExpectedHelpfulness: clamp01(confidence)}
	vulnerable := state.EmotionalState == domain.EmotionDiscouraged || state.EmotionalState == domain.EmotionFrustrated
	if !vulnerable {
		return pred
	}
	switch {
	case strings.Contains(message, ChallengeLine) || hasAdjustment(adjustments, AdjustChallenge):
		pred.Reason = "challenge line for a " + state.EmotionalState + " user"
	case hasAdjustment(adjustments, AdjustHedgingRemoved):
		pred.Reason = "overconfident tone for a " + state.EmotionalState + " user"
	case !containsAny(message, encouragementLines):
		pred.Reason = "no encouragement for a " + state.EmotionalState + " user"
	default:
		return pred
	}
	pred.NeedsToneAdjustment = true
	pred.ExpectedHelpfulness = clamp01(pred.ExpectedHelpfulness - 0.15)
	return pred
}

func hasAdjustment(adjustments []string, want string) bool {
	for _, a := range adjustments {
		if a == want {
			return true
		}
	}
	return false
}

// ModuleSuggester busca modulos relacionados con los topics de la pregunta.
type ModuleSuggester struct {
	modules ModuleFinder
	logger  *zap.Logger
}

func NewModuleSuggester(modules ModuleFinder, logger *zap.Logger) *ModuleSuggester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModuleSuggester{modules: modules, logger: logger}
}

// Suggest nunca falla: un error del catalogo se registra y devuelve lista vacia.
func (s *ModuleSuggester) Suggest(ctx context.Context, topics []string, completed []string) []domain.ModuleSuggestion {
	if s.modules == nil || len(topics) == 0 {
		return []domain.ModuleSuggestion{}
	}
	mods, err := s.modules.FindByTopics(ctx, topics, maxSuggestedModules+len(completed))
	if err != nil {
		s.logger.Warn("module suggestion failed", zap.Strings("topics", topics), zap.Error(err))
		return []domain.ModuleSuggestion{}
	}
	done := make(map[string]struct{}, len(completed))
	for _, id := range completed {
		done[id] = struct{}{}
	}
	out := make([]domain.ModuleSuggestion, 0, maxSuggestedModules)
	for _, m := range mods {
		if _, ok := done[m.ID]; ok {
			continue
		}
		out = append(out, domain.ModuleSuggestion{
			ID:     m.ID,
			Title:  m.Title,
			Reason: fmt.Sprintf("Covers %s", strings.Join(sharedTopics(m.Topics, topics), ", ")),
		})
		if len(out) == maxSuggestedModules {
			break
		}
	}
	return out
}

func sharedTopics(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, t := range b {
		set[t] = struct{}{}
	}
	var out []string
	for _, t := range a {
		if _, ok := set[t]; ok {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return []string{"related topics"}
	}
	return out
}
