package service

import (
	"math/rand"
	"strings"

	"guidance-llm/internal/domain"
)

const (
	highTraitThreshold = 70
	lowTraitThreshold  = 30

	detailLengthFloor   = 300
	detailLengthCeiling = 600
	lowConfidence       = 0.7

	AdjustFormal         = "formality:formal"
	AdjustCasual         = "formality:casual"
	AdjustElaborated     = "detail:elaborated"
	AdjustCondensed      = "detail:condensed"
	AdjustUncertainty    = "honesty:uncertainty_acknowledged"
	AdjustHedgingRemoved = "honesty:hedging_removed"
	AdjustHumor          = "humor:added"
	AdjustEncouragement  = "encouragement:added"
	AdjustChallenge      = "encouragement:challenge"
	AdjustToneSoftened   = "tone:softened"

	uncertaintyPrefix = "I'm not completely certain about this, so please double-check it with your instructor. "
	ChallengeLine     = "Ready for more? Try applying this on your own before checking the reference material."
	empatheticOpener  = "This is a tough one, and it's completely normal to find it hard. "
)

// HumorLines es el pool fijo de lineas de humor.
var HumorLines = []string{
	"Remember: in space, no one can hear you forget your checklist. 😄",
	"Think of it as gym day, except the dumbbells float away if you let go. 😄",
	"Pro tip: gravity is optional up there, but preparation isn't. 😄",
	"If it were easy, they'd call it ground control. 😄",
}

var encouragementLines = []string{
	"You've got this, and every question like this one moves you forward.",
}

var elaborations = map[string]string{
	"exercise":     "Consistency matters more than intensity: short daily sessions of resistance and cardio work preserve muscle and bone mass far better than occasional long ones.",
	"zero-gravity": "Your vestibular system needs a few days to adapt, so plan lighter workloads early and increase gradually as spatial orientation improves.",
	"training":     "Revisit the module's practice exercises after a day or two; spaced repetition is what turns procedures into reflexes.",
	"mission":      "Walk through each phase of the scenario and note the decision points, because that's where most errors happen under time pressure.",
	"assessment":   "Focus on the reasoning behind each step, since assessors look for why you chose an action as much as the action itself.",
	"general":      "If any part of this is unclear, break it into smaller steps and check each one against your training materials.",
}

// HumorPicker elige un indice en [0,n).
type HumorPicker func(n int) int

func randomPicker(n int) int { return rand.Intn(n) }

type ToneInput struct {
	Traits     domain.PersonalityTraits
	Confidence float64
	Topics     []string
	UserState  domain.UserState
}

// ToneTransformer aplica los ajustes de tono en orden fijo: formalidad, detalle, honestidad, humor, aliento.
type ToneTransformer struct {
	pickHumor HumorPicker
}

func NewToneTransformer(picker HumorPicker) *ToneTransformer {
	if picker == nil {
		picker = randomPicker
	}
	return &ToneTransformer{pickHumor: picker}
}

// Transform devuelve el texto ajustado y las categorias de ajuste que se aplicaron.
func (t *ToneTransformer) Transform(text string, in ToneInput) (string, []string) {
	traits := in.Traits.Clamped()
	var adjustments []string

	switch {
	case traits.Formality >= highTraitThreshold:
		if out := ApplyPhraseRules(text, formalRules); out != text {
			text = out
			adjustments = append(adjustments, AdjustFormal)
		}
	case traits.Formality <= lowTraitThreshold:
		if out := ApplyPhraseRules(text, casualRules); out != text {
			text = out
			adjustments = append(adjustments, AdjustCasual)
		}
	}

	switch {
	case traits.Detail >= highTraitThreshold && len(text) < detailLengthFloor:
		text = strings.TrimSpace(text) + " " + elaborationFor(in.Topics)
		adjustments = append(adjustments, AdjustElaborated)
	case traits.Detail <= lowTraitThreshold && len(text) > detailLengthCeiling:
		if out := firstSentences(text, 3); out != text {
			text = out
			adjustments = append(adjustments, AdjustCondensed)
		}
	}

	if in.Confidence < lowConfidence {
		switch {
		case traits.Honesty >= highTraitThreshold:
			text = uncertaintyPrefix + text
			adjustments = append(adjustments, AdjustUncertainty)
		case traits.Honesty <= lowTraitThreshold:
			if out := ApplyPhraseRules(text, hedgingRules); out != text {
				text = capitalizeSentences(out)
				adjustments = append(adjustments, AdjustHedgingRemoved)
			}
		}
	}

	if traits.Humor >= highTraitThreshold && humorAllowed(text, in.Topics) {
		text = strings.TrimSpace(text) + "\n\n" + HumorLines[t.pickHumor(len(HumorLines))]
		adjustments = append(adjustments, AdjustHumor)
	}

	switch {
	case traits.Encouragement >= highTraitThreshold:
		if !containsAny(text, encouragementLines) {
			text = strings.TrimSpace(text) + "\n\n" + encouragementLines[0]
			adjustments = append(adjustments, AdjustEncouragement)
		}
	case traits.Encouragement <= lowTraitThreshold:
		if !in.UserState.InAssessment && in.UserState.EmotionalState != domain.EmotionDiscouraged && !strings.Contains(text, ChallengeLine) {
			text = strings.TrimSpace(text) + "\n\n" + ChallengeLine
			adjustments = append(adjustments, AdjustChallenge)
		}
	}

	return text, adjustments
}

// Soften es la unica reescritura extra cuando la prediccion de impacto pide ajustar el tono.
func (t *ToneTransformer) Soften(text string) string {
	text = strings.TrimSpace(strings.ReplaceAll(text, ChallengeLine, ""))
	if !strings.HasPrefix(text, empatheticOpener) {
		text = empatheticOpener + text
	}
	if !containsAny(text, encouragementLines) {
		text += "\n\n" + encouragementLines[0]
	}
	return text
}

func humorAllowed(text string, topics []string) bool {
	if strings.Contains(strings.ToLower(text), "error") {
		return false
	}
	for _, topic := range topics {
		if topic == TopicEmergency || topic == TopicDanger {
			return false
		}
	}
	return !containsAny(text, HumorLines) && !strings.Contains(text, "😄")
}

func elaborationFor(topics []string) string {
	for _, topic := range topics {
		if e, ok := elaborations[topic]; ok {
			return e
		}
	}
	return elaborations["general"]
}

func containsAny(text string, lines []string) bool {
	for _, l := range lines {
		if strings.Contains(text, l) {
			return true
		}
	}
	return false
}

// firstSentences corta el texto despues de la n-esima oracion.
func firstSentences(text string, n int) string {
	count := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			next := i + 1
			if next < len(text) && text[next] != ' ' && text[next] != '\n' {
				continue
			}
			count++
			if count == n {
				return strings.TrimSpace(text[:next])
			}
		}
	}
	return text
}
