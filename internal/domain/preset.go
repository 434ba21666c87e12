package domain

import "strings"

// Preset es un conjunto con nombre de los cinco rasgos.
type Preset struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Traits      PersonalityTraits `json:"traits"`
}

const DefaultPresetName = "Balanced"

var presets = []Preset{
	{
		Name:        "Balanced",
		Description: "Even-handed guidance with moderate detail and warmth.",
		Traits:      PersonalityTraits{Honesty: 70, Humor: 40, Formality: 50, Encouragement: 60, Detail: 50},
	},
	{
		Name:        "Technical Expert",
		Description: "Precise, formal and thorough explanations.",
		Traits:      PersonalityTraits{Honesty: 85, Humor: 15, Formality: 80, Encouragement: 40, Detail: 90},
	},
	{
		Name:        "Supportive Coach",
		Description: "Warm, encouraging and relaxed.",
		Traits:      PersonalityTraits{Honesty: 65, Humor: 50, Formality: 30, Encouragement: 95, Detail: 55},
	},
	{
		Name:        "Direct Instructor",
		Description: "Blunt, brief and to the point.",
		Traits:      PersonalityTraits{Honesty: 90, Humor: 10, Formality: 60, Encouragement: 30, Detail: 35},
	},
	{
		Name:        "Friendly Assistant",
		Description: "Casual, upbeat and light-hearted.",
		Traits:      PersonalityTraits{Honesty: 60, Humor: 80, Formality: 20, Encouragement: 80, Detail: 50},
	},
}

// Presets devuelve una copia de la enumeracion fija.
func Presets() []Preset {
	out := make([]Preset, len(presets))
	copy(out, presets)
	return out
}

// PresetByName busca un preset ignorando mayusculas y espacios.
func PresetByName(name string) (Preset, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	for _, p := range presets {
		if strings.ToLower(p.Name) == needle {
			return p, true
		}
	}
	return Preset{}, false
}

// DefaultTraits son los rasgos aplicados cuando el usuario no tiene perfil.
func DefaultTraits() PersonalityTraits {
	p, _ := PresetByName(DefaultPresetName)
	return p.Traits
}
