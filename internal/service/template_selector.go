package service

import (
	"context"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"guidance-llm/internal/domain"
)

const (
	SearchPathDirect    = "direct"
	SearchPathSecondary = "secondary"
	SearchPathFallback  = "fallback"
	SearchPathGeneric   = "generic"
)

// relatedContexts amplia las etiquetas de contexto con sinonimos conocidos.
var relatedContexts = map[string][]string{
	"training":   {"learning", "practice", "course"},
	"mission":    {"operations", "eva", "scenario"},
	"assessment": {"exam", "evaluation", "test"},
	"exercise":   {"fitness", "workout"},
	"emergency":  {"safety", "crisis"},
}

type TemplateSelection struct {
	Template   *domain.Template // nil en la ruta generic
	Content    string
	SearchPath string
	Primary    domain.TraitValue
	Secondary  domain.TraitValue
}

type TemplateSelector struct {
	store  TemplateFinder
	logger *zap.Logger
}

func NewTemplateSelector(store TemplateFinder, logger *zap.Logger) *TemplateSelector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateSelector{store: store, logger: logger}
}

// RankTraits ordena por puntaje ponderado descendente; los empates conservan el orden canonico.
func RankTraits(traits domain.PersonalityTraits) []domain.TraitValue {
	ranked := traits.Clamped().Ordered()
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].WeightedScore() > ranked[j].WeightedScore()
	})
	return ranked
}

// SearchWindow es mas angosta en los extremos: ±10, ±15 o ±20.
func SearchWindow(v int) int {
	switch {
	case v <= 20 || v >= 80:
		return 10
	case v <= 35 || v >= 65:
		return 15
	default:
		return 20
	}
}

func windowBounds(v int) (int, int) {
	w := SearchWindow(v)
	lo, hi := v-w, v+w
	if lo < 0 {
		lo = 0
	}
	if hi > 100 {
		hi = 100
	}
	return lo, hi
}

// BuildContextTags une el area (con variantes singular/plural y sinonimos) con los topics extraidos.
func BuildContextTags(area string, topics []string) []string {
	var tags []string
	area = strings.ToLower(strings.TrimSpace(area))
	if area != "" {
		tags = append(tags, area)
		if strings.HasSuffix(area, "s") {
			tags = append(tags, strings.TrimSuffix(area, "s"))
		} else {
			tags = append(tags, area+"s")
		}
		singular := strings.TrimSuffix(area, "s")
		tags = append(tags, relatedContexts[area]...)
		if singular != area {
			tags = append(tags, relatedContexts[singular]...)
		}
	}
	tags = append(tags, topics...)
	tags = append(tags, "general")
	return mergeUnique(tags, nil)
}

func (s *TemplateSelector) Select(ctx context.Context, traits domain.PersonalityTraits, area string, topics []string) TemplateSelection {
	ranked := RankTraits(traits)
	sel := TemplateSelection{Primary: ranked[0], Secondary: ranked[1]}
	tags := BuildContextTags(area, topics)

	if s.store != nil {
		for _, step := range []struct {
			trait domain.TraitValue
			path  string
		}{
			{sel.Primary, SearchPathDirect},
			{sel.Secondary, SearchPathSecondary},
		} {
			lo, hi := windowBounds(step.trait.Value)
			candidates, err := s.store.FindMatching(ctx, step.trait.Name, lo, hi, tags)
			if err != nil {
				s.logger.Warn("template lookup failed", zap.String("trait", step.trait.Name), zap.Error(err))
				return s.generic(sel, area, topics)
			}
			if best, ok := closestTemplate(candidates, step.trait.Value); ok {
				sel.Template = &best
				sel.Content = best.Content
				sel.SearchPath = step.path
				return sel
			}
		}

		loose, err := s.store.FindByTraits(ctx, []string{sel.Primary.Name, sel.Secondary.Name}, 1)
		if err != nil {
			s.logger.Warn("fallback template lookup failed", zap.Error(err))
			return s.generic(sel, area, topics)
		}
		if len(loose) > 0 {
			t := loose[0]
			sel.Template = &t
			sel.Content = t.Content
			sel.SearchPath = SearchPathFallback
			return sel
		}
	}
	return s.generic(sel, area, topics)
}

func (s *TemplateSelector) generic(sel TemplateSelection, area string, topics []string) TemplateSelection {
	_, content := genericTemplateFor(strings.ToLower(strings.TrimSpace(area)), topics)
	sel.Template = nil
	sel.Content = content
	sel.SearchPath = SearchPathGeneric
	return sel
}

// closestTemplate elige el centro de intensidad mas cercano a v. Los candidatos vienen por peso
// descendente, asi que en empate de distancia gana el de mayor peso.
func closestTemplate(candidates []domain.Template, v int) (domain.Template, bool) {
	best := -1
	bestDist := math.MaxFloat64
	for i, c := range candidates {
		d := math.Abs(c.Center() - float64(v))
		if d < bestDist || (d == bestDist && c.Weight > candidates[best].Weight) {
			best = i
			bestDist = d
		}
	}
	if best == -1 {
		return domain.Template{}, false
	}
	return candidates[best], true
}
