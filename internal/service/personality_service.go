package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"guidance-llm/internal/domain"
)

// ProfileStore lee y escribe perfiles de personalidad.
type ProfileStore interface {
	GetByUserID(ctx context.Context, userID string) (domain.PersonalityProfile, error)
	Upsert(ctx context.Context, profile domain.PersonalityProfile) error
}

// PersonalityUpdate aplica primero el preset (si viene) y despues los rasgos explicitos.
// Los rasgos ausentes conservan su valor previo.
type PersonalityUpdate struct {
	UserID string             `json:"userId"`
	Preset string             `json:"preset,omitempty"`
	Traits map[string]float64 `json:"traits,omitempty"`
}

type PersonalityService struct {
	profiles ProfileStore
	clock    Clock
	logger   *zap.Logger
}

func NewPersonalityService(profiles ProfileStore, clock Clock, logger *zap.Logger) *PersonalityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PersonalityService{profiles: profiles, clock: clockOrSystem(clock), logger: logger}
}

// Get devuelve el perfil guardado o el perfil por defecto si el usuario no tiene uno.
func (s *PersonalityService) Get(ctx context.Context, userID string) (domain.PersonalityProfile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.PersonalityProfile{}, &ValidationError{Field: "userId", Message: "userId is required"}
	}
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DefaultProfile(userID), nil
		}
		return domain.PersonalityProfile{}, fmt.Errorf("get profile: %w", err)
	}
	profile.Traits = profile.Traits.Clamped()
	return profile, nil
}

func (s *PersonalityService) Update(ctx context.Context, upd PersonalityUpdate) (domain.PersonalityProfile, error) {
	for name := range upd.Traits {
		if !domain.IsTraitName(name) {
			return domain.PersonalityProfile{}, &ValidationError{Field: "traits." + name, Message: "unknown trait"}
		}
	}

	profile, err := s.Get(ctx, upd.UserID)
	if err != nil {
		return domain.PersonalityProfile{}, err
	}

	if strings.TrimSpace(upd.Preset) != "" {
		preset, ok := domain.PresetByName(upd.Preset)
		if !ok {
			return domain.PersonalityProfile{}, fmt.Errorf("%w: %s", ErrUnknownPreset, upd.Preset)
		}
		profile.Traits = preset.Traits
		profile.PresetName = preset.Name
	}

	if len(upd.Traits) > 0 {
		for _, name := range domain.TraitNames {
			v, ok := upd.Traits[name]
			if !ok {
				continue
			}
			profile.Traits.Set(name, domain.ClampTrait(v))
		}
		if strings.TrimSpace(upd.Preset) == "" || !matchesPreset(profile) {
			profile.PresetName = "custom"
		}
	}

	profile.Traits = profile.Traits.Clamped()
	profile.LastUpdated = s.clock.Now()
	if err := s.profiles.Upsert(ctx, profile); err != nil {
		return domain.PersonalityProfile{}, &PersistenceError{Op: "upsert profile", Err: err}
	}
	s.logger.Info("personality profile updated",
		zap.String("user_id", profile.UserID),
		zap.String("preset", profile.PresetName),
	)
	return profile, nil
}

func (s *PersonalityService) Presets() []domain.Preset {
	return domain.Presets()
}

func matchesPreset(profile domain.PersonalityProfile) bool {
	p, ok := domain.PresetByName(profile.PresetName)
	return ok && p.Traits == profile.Traits
}
