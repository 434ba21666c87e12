package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"guidance-llm/internal/service"
)

type PersonalityHandler struct {
	logger      *zap.Logger
	personality *service.PersonalityService
}

func NewPersonalityHandler(logger *zap.Logger, personality *service.PersonalityService) *PersonalityHandler {
	return &PersonalityHandler{logger: logger, personality: personality}
}

// GetSettings maneja GET /personality/settings?userId=.
func (h *PersonalityHandler) GetSettings(c *gin.Context) {
	profile, err := h.personality.Get(c.Request.Context(), c.Query("userId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "settings": profile})
}

// UpdateSettings maneja POST /personality/update.
func (h *PersonalityHandler) UpdateSettings(c *gin.Context) {
	var req struct {
		UserID string             `json:"userId"`
		Preset string             `json:"preset"`
		Traits map[string]float64 `json:"traits"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid personality update request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request"})
		return
	}

	profile, err := h.personality.Update(c.Request.Context(), service.PersonalityUpdate{
		UserID: req.UserID,
		Preset: req.Preset,
		Traits: req.Traits,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "settings": profile})
}

// ListPresets maneja GET /personality/presets.
func (h *PersonalityHandler) ListPresets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "presets": h.personality.Presets()})
}

func (h *PersonalityHandler) writeError(c *gin.Context, err error) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": validationErr.Error()})
	case errors.Is(err, service.ErrUnknownPreset):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	default:
		h.logger.Error("personality settings failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "could not load personality settings"})
	}
}
