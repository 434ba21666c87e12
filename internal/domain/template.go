package domain

import (
	"errors"
	"fmt"
)

const TemplateCategoryPersonality = "personality"

var ErrInvalidTemplateRange = errors.New("template intensity range is invalid")

// Template es un fragmento de respuesta asociado a un rasgo y un rango de intensidad.
type Template struct {
	ID           string   `json:"id"`
	Content      string   `json:"content"`
	Subcategory  string   `json:"subcategory"` // nombre del rasgo
	IntensityMin int      `json:"intensityMin"`
	IntensityMax int      `json:"intensityMax"`
	ContextTags  []string `json:"contextTags"`
	Weight       float64  `json:"weight"`
	ContentType  string   `json:"contentType"`
}

// Validate exige un rango de intensidad bien formado dentro de [0,100].
func (t Template) Validate() error {
	if t.IntensityMin < 0 || t.IntensityMax > 100 || t.IntensityMin > t.IntensityMax {
		return fmt.Errorf("%w: %s [%d,%d]", ErrInvalidTemplateRange, t.ID, t.IntensityMin, t.IntensityMax)
	}
	return nil
}

// Overlaps indica si el rango de intensidad se solapa con [min,max].
func (t Template) Overlaps(min, max int) bool {
	return t.IntensityMin <= max && t.IntensityMax >= min
}

// Center es el punto medio del rango de intensidad.
func (t Template) Center() float64 {
	return float64(t.IntensityMin+t.IntensityMax) / 2
}

// HasAnyTag indica si el template comparte al menos una etiqueta con tags.
func (t Template) HasAnyTag(tags map[string]struct{}) bool {
	for _, tag := range t.ContextTags {
		if _, ok := tags[tag]; ok {
			return true
		}
	}
	return false
}
