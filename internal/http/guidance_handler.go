package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"guidance-llm/internal/domain"
	"guidance-llm/internal/service"
)

// CacheFlusher vacia la cache de respuestas.
type CacheFlusher interface {
	Flush(ctx context.Context) error
}

// GuidanceHandler expone la cadena de recuperacion que envuelve al orquestador.
type GuidanceHandler struct {
	logger   *zap.Logger
	guidance service.GuidanceHandler
	cache    CacheFlusher
	limiter  service.UserRateLimiter
}

// NewGuidanceHandler acepta limiter nil (sin limite por usuario).
func NewGuidanceHandler(logger *zap.Logger, guidance service.GuidanceHandler, cache CacheFlusher, limiter service.UserRateLimiter) *GuidanceHandler {
	return &GuidanceHandler{logger: logger, guidance: guidance, cache: cache, limiter: limiter}
}

// PostGuidance maneja POST /guidance.
func (h *GuidanceHandler) PostGuidance(c *gin.Context) {
	var req domain.GuidanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid guidance request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request"})
		return
	}
	req.RequestID = strings.TrimSpace(c.GetHeader("X-Request-ID"))

	if h.limiter != nil && strings.TrimSpace(req.UserID) != "" && !h.limiter.Allow(c.Request.Context(), req.UserID) {
		h.logger.Warn("guidance rate limited", zap.String("user_id", req.UserID))
		c.JSON(http.StatusTooManyRequests, gin.H{"success": false, "error": "too many requests, please slow down"})
		return
	}

	resp, err := h.guidance.Handle(c.Request.Context(), req)
	if err != nil {
		var validationErr *service.ValidationError
		var exhausted *service.RecoveryExhaustedError
		switch {
		case errors.As(err, &validationErr):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": validationErr.Error()})
		case errors.As(err, &exhausted):
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   "guidance is temporarily unavailable",
				"errorId": exhausted.ErrorID,
			})
		default:
			h.logger.Error("guidance failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "guidance is temporarily unavailable"})
		}
		return
	}

	if resp.RequestID != "" {
		c.Header("X-Request-ID", resp.RequestID)
	}
	c.JSON(http.StatusOK, resp)
}

// FlushCache maneja POST /cache/flush.
func (h *GuidanceHandler) FlushCache(c *gin.Context) {
	if h.cache == nil {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}
	if err := h.cache.Flush(c.Request.Context()); err != nil {
		h.logger.Error("cache flush failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "could not flush cache"})
		return
	}
	h.logger.Info("response cache flushed")
	c.JSON(http.StatusOK, gin.H{"success": true})
}
