package domain

import "time"

type PersonalityProfile struct {
	UserID          string                `json:"userId"`
	Traits          PersonalityTraits     `json:"traits"`
	PresetName      string                `json:"presetName,omitempty"`
	Recommendations []TraitRecommendation `json:"recommendations,omitempty"`
	LastUpdated     time.Time             `json:"lastUpdated"`
}

// TraitRecommendation la escribe solo el optimizador; nunca se aplica automaticamente.
type TraitRecommendation struct {
	Trait            string    `json:"trait"`
	CurrentValue     int       `json:"currentValue"`
	RecommendedValue int       `json:"recommendedValue"`
	Reason           string    `json:"reason"`
	CreatedAt        time.Time `json:"createdAt"`
}

// DefaultProfile construye el perfil implicito de un usuario sin configuracion.
func DefaultProfile(userID string) PersonalityProfile {
	return PersonalityProfile{
		UserID:     userID,
		Traits:     DefaultTraits(),
		PresetName: DefaultPresetName,
	}
}
