package domain

import (
	"time"

	pgvector "github.com/pgvector/pgvector-go"
)

// KnowledgeDocument es una entrada del almacen de conocimiento consultado por los motores.
type KnowledgeDocument struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Content   string          `json:"content"`
	Topics    []string        `json:"topics"`
	Entities  []string        `json:"entities"`
	Embedding pgvector.Vector `json:"-"`
	CreatedAt time.Time       `json:"createdAt"`
}

// ScoredDocument agrega la similitud devuelta por la busqueda.
type ScoredDocument struct {
	KnowledgeDocument
	Similarity float64 `json:"similarity"`
}

type TrainingModule struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Summary         string   `json:"summary"`
	Topics          []string `json:"topics"`
	Difficulty      string   `json:"difficulty"`
	DurationMinutes int      `json:"durationMinutes"`
}
