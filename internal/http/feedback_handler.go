package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"guidance-llm/internal/service"
)

type FeedbackHandler struct {
	logger   *zap.Logger
	feedback *service.FeedbackService
}

func NewFeedbackHandler(logger *zap.Logger, feedback *service.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{logger: logger, feedback: feedback}
}

// PostFeedback maneja POST /feedback.
func (h *FeedbackHandler) PostFeedback(c *gin.Context) {
	var req service.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid feedback request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request"})
		return
	}

	if _, err := h.feedback.Submit(c.Request.Context(), req); err != nil {
		status, msg := feedbackErrorStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("submit feedback failed", zap.Error(err))
		}
		c.JSON(status, gin.H{"success": false, "error": msg})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Feedback recorded. Thank you!"})
}

func feedbackErrorStatus(err error) (int, string) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, validationErr.Error()
	case errors.Is(err, service.ErrFeedbackTokenInvalid):
		return http.StatusBadRequest, "invalid feedback token"
	case errors.Is(err, service.ErrFeedbackTokenExpired):
		return http.StatusGone, "feedback token expired"
	case errors.Is(err, service.ErrFeedbackTokenUsed), errors.Is(err, service.ErrFeedbackAlreadySubmitted):
		return http.StatusConflict, "feedback already submitted"
	case errors.Is(err, service.ErrInteractionNotFound):
		return http.StatusNotFound, "message not found"
	default:
		return http.StatusInternalServerError, "could not record feedback"
	}
}
