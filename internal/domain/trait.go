package domain

import "math"

const (
	TraitHonesty       = "honesty"
	TraitHumor         = "humor"
	TraitFormality     = "formality"
	TraitEncouragement = "encouragement"
	TraitDetail        = "detail"
)

// TraitNames es el orden canonico de los cinco rasgos.
var TraitNames = []string{TraitHonesty, TraitHumor, TraitFormality, TraitEncouragement, TraitDetail}

// Coeficientes de importancia usados al elegir rasgo primario y secundario.
var traitImportance = map[string]float64{
	TraitHumor:         1.0,
	TraitHonesty:       0.9,
	TraitEncouragement: 0.9,
	TraitDetail:        0.85,
	TraitFormality:     0.8,
}

// PersonalityTraits son los cinco rasgos del asistente, cada uno en [0,100].
type PersonalityTraits struct {
	Honesty       int `json:"honesty"`
	Humor         int `json:"humor"`
	Formality     int `json:"formality"`
	Encouragement int `json:"encouragement"`
	Detail        int `json:"detail"`
}

// TraitValue es la tupla (nombre, valor, importancia) usada en el ponderado.
type TraitValue struct {
	Name       string
	Value      int
	Importance float64
}

// WeightedScore = valor * importancia.
func (t TraitValue) WeightedScore() float64 {
	return float64(t.Value) * t.Importance
}

// ClampTrait redondea y limita un valor al rango [0,100].
func ClampTrait(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	r := math.Round(v)
	if r < 0 {
		return 0
	}
	if r > 100 {
		return 100
	}
	return int(r)
}

// Clamped devuelve una copia con todos los rasgos dentro de [0,100].
func (t PersonalityTraits) Clamped() PersonalityTraits {
	return PersonalityTraits{
		Honesty:       ClampTrait(float64(t.Honesty)),
		Humor:         ClampTrait(float64(t.Humor)),
		Formality:     ClampTrait(float64(t.Formality)),
		Encouragement: ClampTrait(float64(t.Encouragement)),
		Detail:        ClampTrait(float64(t.Detail)),
	}
}

// Ordered devuelve los rasgos en orden canonico junto con su importancia.
func (t PersonalityTraits) Ordered() []TraitValue {
	out := make([]TraitValue, 0, len(TraitNames))
	for _, name := range TraitNames {
		v, _ := t.Value(name)
		out = append(out, TraitValue{Name: name, Value: v, Importance: traitImportance[name]})
	}
	return out
}

// Value devuelve el valor de un rasgo por nombre.
func (t PersonalityTraits) Value(name string) (int, bool) {
	switch name {
	case TraitHonesty:
		return t.Honesty, true
	case TraitHumor:
		return t.Humor, true
	case TraitFormality:
		return t.Formality, true
	case TraitEncouragement:
		return t.Encouragement, true
	case TraitDetail:
		return t.Detail, true
	}
	return 0, false
}

// Set asigna un rasgo por nombre (ya limitado). Devuelve false si el nombre no existe.
func (t *PersonalityTraits) Set(name string, v int) bool {
	v = ClampTrait(float64(v))
	switch name {
	case TraitHonesty:
		t.Honesty = v
	case TraitHumor:
		t.Humor = v
	case TraitFormality:
		t.Formality = v
	case TraitEncouragement:
		t.Encouragement = v
	case TraitDetail:
		t.Detail = v
	default:
		return false
	}
	return true
}

// IsTraitName indica si name es uno de los cinco rasgos.
func IsTraitName(name string) bool {
	_, ok := traitImportance[name]
	return ok
}
