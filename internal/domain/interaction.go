package domain

import "time"

// Interaction registra una solicitud de guia. Se crea antes de responder, se completa una vez con la
// respuesta y solo admite una actualizacion posterior: el feedback.
type Interaction struct {
	ID              string               `json:"id"`
	RequestID       string               `json:"requestId"`
	UserID          string               `json:"userId"`
	SessionID       string               `json:"sessionId,omitempty"`
	Question        string               `json:"question"`
	UserState       UserState            `json:"userState"`
	QueryAnalysis   QueryAnalysis        `json:"queryAnalysis"`
	Response        *InteractionResponse `json:"response,omitempty"`
	ConfidenceScore float64              `json:"confidenceScore"` // ajustado por feedback
	Feedback        *Feedback            `json:"feedback,omitempty"`
	CreatedAt       time.Time            `json:"createdAt"`
}

type InteractionResponse struct {
	Message            string            `json:"message"`
	Strategy           string            `json:"strategy"`
	EnginesUsed        []string          `json:"enginesUsed"`
	Confidence         float64           `json:"confidence"`
	Traits             PersonalityTraits `json:"traits"`
	TemplateID         string            `json:"templateId,omitempty"`
	TemplateSearchPath string            `json:"templateSearchPath,omitempty"`
	Adjustments        []string          `json:"adjustments,omitempty"`
	RecoveryType       string            `json:"recoveryType,omitempty"`
}

type Feedback struct {
	Helpful     *bool     `json:"helpful,omitempty"`
	Rating      int       `json:"rating,omitempty"`
	Comments    string    `json:"comments,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// IsPositive: rating >= 4 o helpful == true.
func (f Feedback) IsPositive() bool {
	if f.Rating >= 4 {
		return true
	}
	return f.Helpful != nil && *f.Helpful
}

// HistoryMessage es un turno previo de la conversacion.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
