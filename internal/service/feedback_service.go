package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"guidance-llm/internal/domain"
)

const (
	feedbackPenalty    = 0.1
	feedbackBonus      = 0.05
	minConfidenceNudge = 0.5
	maxConfidenceNudge = 1.0
	maxCommentLength   = 2000
)

// FeedbackStore es la parte del log de interacciones que toca el feedback.
type FeedbackStore interface {
	GetByID(ctx context.Context, id string) (domain.Interaction, error)
	SaveFeedback(ctx context.Context, id string, feedback domain.Feedback, confidence float64) (bool, error)
}

type FeedbackRequest struct {
	FeedbackToken string `json:"feedbackToken,omitempty"`
	MessageID     string `json:"messageId,omitempty"`
	Helpful       *bool  `json:"helpful,omitempty"`
	Rating        int    `json:"rating,omitempty"`
	Comments      string `json:"comments,omitempty"`
}

type FeedbackResult struct {
	InteractionID string
	Confidence    float64
}

// FeedbackService registra el feedback de una interaccion (una sola vez) y ajusta su confianza guardada.
type FeedbackService struct {
	interactions FeedbackStore
	tokens       *FeedbackTokenService
	clock        Clock
	metrics      *Metrics
	logger       *zap.Logger
}

func NewFeedbackService(interactions FeedbackStore, tokens *FeedbackTokenService, clock Clock, metrics *Metrics, logger *zap.Logger) *FeedbackService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedbackService{
		interactions: interactions,
		tokens:       tokens,
		clock:        clockOrSystem(clock),
		metrics:      metrics,
		logger:       logger,
	}
}

func (s *FeedbackService) Submit(ctx context.Context, req FeedbackRequest) (FeedbackResult, error) {
	result, err := s.submit(ctx, req)
	switch {
	case err == nil:
		s.metrics.Feedback("accepted")
	case IsValidationError(err):
		s.metrics.Feedback("invalid")
	case errors.Is(err, ErrFeedbackAlreadySubmitted), errors.Is(err, ErrFeedbackTokenUsed):
		s.metrics.Feedback("duplicate")
	default:
		s.metrics.Feedback("rejected")
	}
	return result, err
}

func (s *FeedbackService) submit(ctx context.Context, req FeedbackRequest) (FeedbackResult, error) {
	if err := validateFeedback(req); err != nil {
		return FeedbackResult{}, err
	}

	interactionID := strings.TrimSpace(req.MessageID)
	var claims *FeedbackClaims
	if token := strings.TrimSpace(req.FeedbackToken); token != "" {
		if s.tokens == nil {
			return FeedbackResult{}, ErrFeedbackTokenInvalid
		}
		c, err := s.tokens.Verify(token)
		if err != nil {
			return FeedbackResult{}, err
		}
		if interactionID != "" && interactionID != c.InteractionID {
			return FeedbackResult{}, &ValidationError{Field: "messageId", Message: "messageId does not match feedback token"}
		}
		interactionID = c.InteractionID
		claims = &c
	}

	// El token se consume recien cuando la interaccion existe; asi un reintento sigue siendo valido.
	interaction, err := s.interactions.GetByID(ctx, interactionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FeedbackResult{}, ErrInteractionNotFound
		}
		return FeedbackResult{}, fmt.Errorf("get interaction: %w", err)
	}
	if claims != nil {
		if err := s.tokens.Consume(ctx, *claims); err != nil {
			return FeedbackResult{}, err
		}
	}
	if interaction.Feedback != nil {
		return FeedbackResult{}, ErrFeedbackAlreadySubmitted
	}

	helpful := req.Helpful
	if helpful == nil {
		helpful = helpfulFromRating(req.Rating)
	}
	fb := domain.Feedback{
		Helpful:     helpful,
		Rating:      req.Rating,
		Comments:    strings.TrimSpace(req.Comments),
		SubmittedAt: s.clock.Now(),
	}
	confidence := NudgeConfidence(interaction.ConfidenceScore, helpful)

	ok, err := s.interactions.SaveFeedback(ctx, interactionID, fb, confidence)
	if err != nil {
		if claims != nil {
			if relErr := s.tokens.Release(ctx, *claims); relErr != nil {
				s.logger.Warn("release feedback token failed", zap.String("interaction_id", interactionID), zap.Error(relErr))
			}
		}
		return FeedbackResult{}, &PersistenceError{Op: "save feedback", Err: err}
	}
	if !ok {
		return FeedbackResult{}, ErrFeedbackAlreadySubmitted
	}

	s.logger.Info("feedback recorded",
		zap.String("interaction_id", interactionID),
		zap.Int("rating", req.Rating),
		zap.Float64("confidence", confidence),
	)
	return FeedbackResult{InteractionID: interactionID, Confidence: confidence}, nil
}

func validateFeedback(req FeedbackRequest) error {
	if strings.TrimSpace(req.FeedbackToken) == "" && strings.TrimSpace(req.MessageID) == "" {
		return &ValidationError{Field: "feedbackToken", Message: "feedbackToken or messageId is required"}
	}
	if req.Rating < 0 || req.Rating > 5 {
		return &ValidationError{Field: "rating", Message: "rating must be between 1 and 5"}
	}
	if req.Helpful == nil && req.Rating == 0 {
		return &ValidationError{Field: "helpful", Message: "helpful or rating is required"}
	}
	if len(req.Comments) > maxCommentLength {
		return &ValidationError{Field: "comments", Message: "comments are too long"}
	}
	return nil
}

// helpfulFromRating: 4-5 util, 1-2 no util, 3 neutral.
func helpfulFromRating(rating int) *bool {
	var v bool
	switch {
	case rating >= 4:
		v = true
	case rating >= 1 && rating <= 2:
		v = false
	default:
		return nil
	}
	return &v
}

// NudgeConfidence baja 0.1 ante feedback negativo y sube 0.05 ante positivo, dentro de [0.5, 1].
func NudgeConfidence(current float64, helpful *bool) float64 {
	next := current
	if helpful != nil {
		if *helpful {
			next += feedbackBonus
		} else {
			next -= feedbackPenalty
		}
	}
	next = math.Round(next*1e4) / 1e4
	return math.Max(minConfidenceNudge, math.Min(maxConfidenceNudge, next))
}
