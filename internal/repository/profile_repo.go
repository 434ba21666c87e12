package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"guidance-llm/internal/domain"
)

// ProfileRepository guarda un perfil de personalidad por usuario (upsert).
// GetByUserID devuelve pgx.ErrNoRows si el usuario nunca configuro su perfil.
type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID string) (domain.PersonalityProfile, error)
	Upsert(ctx context.Context, profile domain.PersonalityProfile) error
	SaveRecommendations(ctx context.Context, profile domain.PersonalityProfile) error
}

type PgProfileRepository struct {
	pool *pgxpool.Pool
}

func NewPgProfileRepository(pool *pgxpool.Pool) *PgProfileRepository {
	return &PgProfileRepository{pool: pool}
}

func (r *PgProfileRepository) GetByUserID(ctx context.Context, userID string) (domain.PersonalityProfile, error) {
	const query = `
		SELECT user_id, honesty, humor, formality, encouragement, detail, preset_name, recommendations, last_updated
		FROM personality_profiles
		WHERE user_id = $1
	`
	var p domain.PersonalityProfile
	var recommendations []byte
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&p.Traits.Honesty,
		&p.Traits.Humor,
		&p.Traits.Formality,
		&p.Traits.Encouragement,
		&p.Traits.Detail,
		&p.PresetName,
		&recommendations,
		&p.LastUpdated,
	)
	if err != nil {
		return domain.PersonalityProfile{}, err
	}
	if len(recommendations) > 0 {
		if err := json.Unmarshal(recommendations, &p.Recommendations); err != nil {
			return domain.PersonalityProfile{}, fmt.Errorf("decode recommendations: %w", err)
		}
	}
	p.Traits = p.Traits.Clamped()
	return p, nil
}

// Upsert escribe rasgos y preset. Las recomendaciones no se tocan: solo las escribe el optimizador.
func (r *PgProfileRepository) Upsert(ctx context.Context, profile domain.PersonalityProfile) error {
	const query = `
		INSERT INTO personality_profiles (user_id, honesty, humor, formality, encouragement, detail, preset_name, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id)
		DO UPDATE SET
			honesty = EXCLUDED.honesty,
			humor = EXCLUDED.humor,
			formality = EXCLUDED.formality,
			encouragement = EXCLUDED.encouragement,
			detail = EXCLUDED.detail,
			preset_name = EXCLUDED.preset_name,
			last_updated = EXCLUDED.last_updated
	`
	t := profile.Traits.Clamped()
	_, err := r.pool.Exec(ctx, query,
		profile.UserID,
		t.Honesty,
		t.Humor,
		t.Formality,
		t.Encouragement,
		t.Detail,
		profile.PresetName,
		profile.LastUpdated,
	)
	return err
}

// SaveRecommendations reemplaza solo el campo recommendations; si el perfil no existe lo crea con los rasgos dados.
func (r *PgProfileRepository) SaveRecommendations(ctx context.Context, profile domain.PersonalityProfile) error {
	const query = `
		INSERT INTO personality_profiles (user_id, honesty, humor, formality, encouragement, detail, preset_name, recommendations, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id)
		DO UPDATE SET recommendations = EXCLUDED.recommendations
	`
	recs := profile.Recommendations
	if recs == nil {
		recs = []domain.TraitRecommendation{}
	}
	payload, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("marshal recommendations: %w", err)
	}
	t := profile.Traits.Clamped()
	_, err = r.pool.Exec(ctx, query,
		profile.UserID,
		t.Honesty,
		t.Humor,
		t.Formality,
		t.Encouragement,
		t.Detail,
		profile.PresetName,
		payload,
		profile.LastUpdated,
	)
	return err
}
