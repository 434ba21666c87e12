package service

import (
	"context"
	"sort"
	"sync"

	"guidance-llm/internal/domain"
)

// TemplateFinder es la parte del almacen de templates que usa la seleccion.
type TemplateFinder interface {
	FindMatching(ctx context.Context, trait string, min, max int, tags []string) ([]domain.Template, error)
	FindByTraits(ctx context.Context, traits []string, limit int) ([]domain.Template, error)
}

// genericTemplates se usan cuando el almacen no tiene nada para ninguno de los dos rasgos.
var genericTemplates = map[string]string{
	"training":   "Let's work through this step by step so it sticks for your next session.",
	"mission":    "Here's how this plays out in an operational setting.",
	"assessment": "Here's what matters most for your evaluation.",
	"general":    "Here's what I can tell you.",
}

func genericTemplateFor(area string, topics []string) (string, string) {
	if t, ok := genericTemplates[area]; ok {
		return area, t
	}
	for _, topic := range topics {
		if t, ok := genericTemplates[topic]; ok {
			return topic, t
		}
	}
	return "general", genericTemplates["general"]
}

// DefaultTemplates es el set inicial que se siembra cuando la tabla esta vacia.
func DefaultTemplates() []domain.Template {
	return []domain.Template{
		{ID: "humor-high-general", Subcategory: domain.TraitHumor, IntensityMin: 75, IntensityMax: 100, ContextTags: []string{"general", "training", "exercise"},
			Content: "Good news: this one's easier than finding your floating pen in zero-g. Here's the plan."},
		{ID: "humor-mid-general", Subcategory: domain.TraitHumor, IntensityMin: 40, IntensityMax: 74, ContextTags: []string{"general", "training"},
			Content: "Let's keep it light while we get this right."},
		{ID: "humor-low-general", Subcategory: domain.TraitHumor, IntensityMin: 0, IntensityMax: 39, ContextTags: []string{"general"},
			Content: "Here is the information you need."},
		{ID: "honesty-high-general", Subcategory: domain.TraitHonesty, IntensityMin: 75, IntensityMax: 100, ContextTags: []string{"general", "assessment", "mission"},
			Content: "I'll be straight with you about what works and what doesn't. Nothing sugar-coated."},
		{ID: "honesty-mid-general", Subcategory: domain.TraitHonesty, IntensityMin: 40, IntensityMax: 74, ContextTags: []string{"general"},
			Content: "Here's an honest take, including the trade-offs."},
		{ID: "formality-high-general", Subcategory: domain.TraitFormality, IntensityMin: 70, IntensityMax: 100, ContextTags: []string{"general", "assessment", "mission"},
			Content: "Please find below a structured summary of the relevant procedure."},
		{ID: "formality-low-general", Subcategory: domain.TraitFormality, IntensityMin: 0, IntensityMax: 35, ContextTags: []string{"general", "training"},
			Content: "Okay, here's the deal."},
		{ID: "encouragement-high-training", Subcategory: domain.TraitEncouragement, IntensityMin: 70, IntensityMax: 100, ContextTags: []string{"general", "training", "assessment"},
			Content: "You're making real progress, and this question shows you're thinking like a crew member. Let's build on that."},
		{ID: "encouragement-mid-general", Subcategory: domain.TraitEncouragement, IntensityMin: 35, IntensityMax: 69, ContextTags: []string{"general"},
			Content: "You're on the right track."},
		{ID: "detail-high-general", Subcategory: domain.TraitDetail, IntensityMin: 70, IntensityMax: 100, ContextTags: []string{"general", "mission", "training"},
			Content: "Let's go through this thoroughly, covering the why as well as the how, so nothing is left ambiguous."},
		{ID: "detail-low-general", Subcategory: domain.TraitDetail, IntensityMin: 0, IntensityMax: 35, ContextTags: []string{"general"},
			Content: "Short version:"},
	}
}

// MemoryTemplateStore implementa el almacen en memoria para CLIs y tests, con el mismo orden que Postgres.
type MemoryTemplateStore struct {
	mu        sync.RWMutex
	templates map[string]domain.Template
}

// NewMemoryTemplateStore descarta los templates con rango invalido, igual que el CHECK de la tabla.
func NewMemoryTemplateStore(templates []domain.Template) *MemoryTemplateStore {
	s := &MemoryTemplateStore{templates: make(map[string]domain.Template, len(templates))}
	for _, t := range templates {
		if t.Validate() != nil {
			continue
		}
		if t.Weight <= 0 {
			t.Weight = 1
		}
		s.templates[t.ID] = t
	}
	return s
}

func (s *MemoryTemplateStore) FindMatching(_ context.Context, trait string, min, max int, tags []string) ([]domain.Template, error) {
	tagSet := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		tagSet[t] = struct{}{}
	}
	return s.filter(func(t domain.Template) bool {
		return t.Subcategory == trait && t.Overlaps(min, max) && t.HasAnyTag(tagSet)
	}, 0), nil
}

func (s *MemoryTemplateStore) FindByTraits(_ context.Context, traits []string, limit int) ([]domain.Template, error) {
	wanted := make(map[string]struct{}, len(traits))
	for _, t := range traits {
		wanted[t] = struct{}{}
	}
	return s.filter(func(t domain.Template) bool {
		_, ok := wanted[t.Subcategory]
		return ok
	}, limit), nil
}

func (s *MemoryTemplateStore) UpdateWeight(_ context.Context, id string, weight float64) error {
	if weight < 0 {
		weight = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.templates[id]; ok {
		t.Weight = weight
		s.templates[id] = t
	}
	return nil
}

func (s *MemoryTemplateStore) Upsert(_ context.Context, t domain.Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.templates[t.ID]; ok {
		t.Weight = prev.Weight
	} else if t.Weight <= 0 {
		t.Weight = 1
	}
	s.templates[t.ID] = t
	return nil
}

func (s *MemoryTemplateStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.templates), nil
}

// Get devuelve un template por id.
func (s *MemoryTemplateStore) Get(id string) (domain.Template, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	return t, ok
}

func (s *MemoryTemplateStore) filter(keep func(domain.Template) bool, limit int) []domain.Template {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Template
	for _, t := range s.templates {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
