package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"guidance-llm/internal/domain"
)

const maxHistoryMessages = 10

// SessionLister es la parte del log de interacciones que necesita el historial.
type SessionLister interface {
	ListRecentBySession(ctx context.Context, sessionID string, limit int) ([]domain.Interaction, error)
}

// HistoryLoader devuelve el historial enviado por el cliente o, si no vino, lo reconstruye desde la sesion.
type HistoryLoader struct {
	interactions SessionLister
	logger       *zap.Logger
}

func NewHistoryLoader(interactions SessionLister, logger *zap.Logger) *HistoryLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryLoader{interactions: interactions, logger: logger}
}

func (l *HistoryLoader) Load(ctx context.Context, req domain.GuidanceRequest) []domain.HistoryMessage {
	if len(req.ConversationHistory) > 0 {
		history := req.ConversationHistory
		if len(history) > maxHistoryMessages {
			history = history[len(history)-maxHistoryMessages:]
		}
		return history
	}
	if strings.TrimSpace(req.SessionID) == "" || l.interactions == nil {
		return nil
	}

	items, err := l.interactions.ListRecentBySession(ctx, req.SessionID, maxHistoryMessages)
	if err != nil {
		l.logger.Warn("load session history failed", zap.String("session_id", req.SessionID), zap.Error(err))
		return nil
	}

	history := make([]domain.HistoryMessage, 0, len(items)*2)
	for _, it := range items {
		history = append(history, domain.HistoryMessage{Role: "user", Content: it.Question})
		if it.Response != nil && strings.TrimSpace(it.Response.Message) != "" {
			history = append(history, domain.HistoryMessage{Role: "assistant", Content: it.Response.Message})
		}
	}
	return history
}
