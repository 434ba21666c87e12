package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"guidance-llm/internal/domain"
)

// InteractionCounter es la parte del log de interacciones que necesita el analisis de estado.
type InteractionCounter interface {
	CountByUser(ctx context.Context, userID string) (int, error)
}

// UserStateAnalyzer deriva etapa, estado emocional y si el usuario esta en evaluacion.
type UserStateAnalyzer struct {
	interactions InteractionCounter
	logger       *zap.Logger
}

func NewUserStateAnalyzer(interactions InteractionCounter, logger *zap.Logger) *UserStateAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserStateAnalyzer{interactions: interactions, logger: logger}
}

var emotionSignals = []struct {
	state   string
	signals []string
}{
	// el orden importa: desanimo pesa mas que frustracion
	{domain.EmotionDiscouraged, []string{
		"give up", "giving up", "can't do this", "cannot do this", "hopeless", "i failed", "failing",
		"not good enough", "too hard", "i'm bad at", "i am bad at", "pointless", "never get",
	}},
	{domain.EmotionFrustrated, []string{
		"frustrat", "annoying", "doesn't work", "does not work", "not working", "stuck", "confus",
		"again and again", "why won't", "makes no sense", "still wrong",
	}},
	{domain.EmotionConfident, []string{
		"got it", "easy", "confident", "i'm ready", "i am ready", "mastered", "understand now", "nailed",
	}},
}

func (a *UserStateAnalyzer) Analyze(ctx context.Context, req domain.GuidanceRequest, history []domain.HistoryMessage) domain.UserState {
	past := 0
	if a.interactions != nil {
		n, err := a.interactions.CountByUser(ctx, req.UserID)
		if err != nil {
			a.logger.Warn("count interactions failed", zap.String("user_id", req.UserID), zap.Error(err))
		} else {
			past = n
		}
	}
	completed := len(req.UserActivity.CompletedModules)

	return domain.UserState{
		Stage:            DetermineStage(completed, past),
		EmotionalState:   DetectEmotionalState(req.Question, history, req.UserActivity.RecentScores),
		InAssessment:     strings.EqualFold(req.UserActivity.CurrentActivity, "assessment") || strings.EqualFold(req.Context.Area, "assessment"),
		CompletedModules: completed,
		PastInteractions: past,
	}
}

// DetermineStage usa los modulos completados; sin modulos reportados cae a la cantidad de interacciones.
func DetermineStage(completedModules, pastInteractions int) string {
	progress := completedModules
	if progress == 0 {
		progress = pastInteractions
	}
	switch {
	case progress < 5:
		return domain.StageBeginner
	case progress < 20:
		return domain.StageIntermediate
	default:
		return domain.StageAdvanced
	}
}

// DetectEmotionalState mira la pregunta y los ultimos tres mensajes del usuario.
func DetectEmotionalState(question string, history []domain.HistoryMessage, recentScores []int) string {
	texts := []string{strings.ToLower(question)}
	seen := 0
	for i := len(history) - 1; i >= 0 && seen < 3; i-- {
		if history[i].Role == "user" {
			texts = append(texts, strings.ToLower(history[i].Content))
			seen++
		}
	}

	for _, group := range emotionSignals {
		for _, text := range texts {
			for _, s := range group.signals {
				if strings.Contains(text, s) {
					return group.state
				}
			}
		}
	}

	if len(recentScores) >= 2 {
		total := 0
		for _, s := range recentScores {
			total += s
		}
		if total/len(recentScores) < 50 {
			return domain.EmotionDiscouraged
		}
	}
	return domain.EmotionNeutral
}
