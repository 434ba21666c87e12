package service

import (
	"context"

	"guidance-llm/internal/domain"
)

type EnhanceInput struct {
	Base       string
	Confidence float64
	Traits     domain.PersonalityTraits
	Area       string
	Analysis   domain.QueryAnalysis
	UserState  domain.UserState
}

type Enhancement struct {
	Message     string
	TemplateID  string
	SearchPath  string
	Primary     string
	Secondary   string
	Adjustments []string
}

// PersonalityEngine es la unica implementacion de la mejora de personalidad: seleccion de template,
// mezcla y transformacion de tono.
type PersonalityEngine struct {
	selector *TemplateSelector
	tone     *ToneTransformer
}

func NewPersonalityEngine(selector *TemplateSelector, tone *ToneTransformer) *PersonalityEngine {
	if tone == nil {
		tone = NewToneTransformer(nil)
	}
	return &PersonalityEngine{selector: selector, tone: tone}
}

func (e *PersonalityEngine) Enhance(ctx context.Context, in EnhanceInput) Enhancement {
	sel := e.selector.Select(ctx, in.Traits, in.Area, in.Analysis.Topics)

	text := in.Base
	if sel.SearchPath == SearchPathDirect || sel.SearchPath == SearchPathSecondary {
		text = BlendTemplate(sel.Content, text)
	}

	text, adjustments := e.tone.Transform(text, ToneInput{
		Traits:     in.Traits,
		Confidence: in.Confidence,
		Topics:     in.Analysis.Topics,
		UserState:  in.UserState,
	})

	out := Enhancement{
		Message:     text,
		SearchPath:  sel.SearchPath,
		Primary:     sel.Primary.Name,
		Secondary:   sel.Secondary.Name,
		Adjustments: adjustments,
	}
	if sel.Template != nil {
		out.TemplateID = sel.Template.ID
	}
	return out
}

// Soften aplica la reescritura de tono unica y registra el ajuste.
func (e *PersonalityEngine) Soften(enh Enhancement) Enhancement {
	enh.Message = e.tone.Soften(enh.Message)
	enh.Adjustments = append(enh.Adjustments, AdjustToneSoftened)
	return enh
}
