package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"guidance-llm/internal/domain"
	"guidance-llm/internal/llm"
)

// judgeResponse representa la respuesta estructurada del juez evaluador en formato JSON.
type judgeResponse struct {
	Reasoning    string `json:"reasoning"`
	TraitScore   int    `json:"trait_score"`
	ClarityScore int    `json:"clarity_score"`
	EmpathyScore int    `json:"empathy_score"`
}

type heuristics struct {
	Hedged      bool
	Encouraging bool
	Challenge   bool
	Formal      bool
}

var (
	hedgeMarkers        = []string{"i think", "it seems", "might", "may be", "not entirely sure", "i believe"}
	encouragementMarker = []string{"you're doing", "keep going", "great progress", "you've got this", "well done", "nice work"}
	challengeMarkers    = []string{"ready for more?", "try applying this on your own"}
	casualMarkers       = []string{"isn't", "don't", "can't", "you'll", "let's", "gonna"}
)

func evaluateResponse(ctx context.Context, judge llm.Provider, sc Scenario, response string, adjustments []string) (judgeResponse, error) {
	h := detectHeuristics(response)
	heuristicLine := fmt.Sprintf(
		"Heuristic indicators: hedged=%t, encouraging=%t, challenge_line=%t, formal_register=%t, adjustments=%s",
		h.Hedged, h.Encouraging, h.Challenge, h.Formal, strings.Join(adjustments, ","),
	)

	prompt := buildJudgePrompt(formatTraits(sc.Traits), sc.EmotionalState, heuristicLine, sc.Question, response, sc.Expected)
	raw, err := judge.Complete(ctx, llm.Prompt("", prompt))
	if err != nil {
		return judgeResponse{}, err
	}

	jsonStr := extractFirstJSONObject(raw)
	if jsonStr == "" {
		return judgeResponse{}, fmt.Errorf("judge returned no json: %q", raw)
	}

	var jr judgeResponse
	if err := json.Unmarshal([]byte(jsonStr), &jr); err != nil {
		return judgeResponse{}, fmt.Errorf("parse judge json: %w (raw=%q)", err, jsonStr)
	}

	jr.TraitScore = clamp1to5(jr.TraitScore)
	jr.ClarityScore = clamp1to5(jr.ClarityScore)
	jr.EmpathyScore = clamp1to5(jr.EmpathyScore)

	// un usuario desanimado que recibe un desafio nunca puntua alto en empatia
	if h.Challenge && (sc.EmotionalState == domain.EmotionDiscouraged || sc.EmotionalState == domain.EmotionFrustrated) && jr.EmpathyScore > 2 {
		jr.EmpathyScore = 2
	}
	return jr, nil
}

func detectHeuristics(response string) heuristics {
	l := strings.ToLower(response)
	return heuristics{
		Hedged:      containsAnyMarker(l, hedgeMarkers),
		Encouraging: containsAnyMarker(l, encouragementMarker),
		Challenge:   containsAnyMarker(l, challengeMarkers),
		Formal:      !containsAnyMarker(l, casualMarkers),
	}
}

func containsAnyMarker(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func clamp1to5(v int) int {
	if v < 1 {
		return 1
	}
	if v > 5 {
		return 5
	}
	return v
}

func formatTraits(traits domain.PersonalityTraits) string {
	var parts []string
	for _, t := range traits.Ordered() {
		parts = append(parts, fmt.Sprintf("%s: %d/100", t.Name, t.Value))
	}
	return strings.Join(parts, ", ")
}

func buildJudgePrompt(traitsStr, emotionalState, heuristicLine, question, response, expected string) string {
	return fmt.Sprintf(
		`You are an expert reviewer of tutoring assistants for an astronaut training platform.

Personality settings (0-100): %s
Trainee emotional state: %s
%s

Trainee question: %q
Assistant answer: %q
Scenario expectation: %s

Score each dimension from 1 to 5:
1) trait_score: does the tone match the personality settings? High formality means a professional register,
   high humor allows one light remark, high honesty flags uncertainty when confidence is low, high encouragement
   adds motivating language, detail decides between a short answer and a fuller explanation.
2) clarity_score: is the answer easy to follow and actionable?
3) empathy_score: is the tone appropriate for the trainee's emotional state? A discouraged or frustrated trainee
   must not receive a challenge.

Reply with JSON only (no markdown):
{
  "reasoning": "...",
  "trait_score": 0,
  "clarity_score": 0,
  "empathy_score": 0
}`,
		traitsStr, emotionalState, heuristicLine, question, response, expected,
	)
}

// extractFirstJSONObject devuelve el primer objeto {...} balanceado.
func extractFirstJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
