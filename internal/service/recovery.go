package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"guidance-llm/internal/domain"
	"guidance-llm/internal/llm"
)

const (
	RecoveryAlternativeModel = "alternative_model"
	RecoveryBasicVector      = "basic_vector"
	RecoveryStatic           = "static"

	TierNormal = "normal"
	Tier1      = "tier1"
	Tier2      = "tier2"
	Tier3      = "tier3"
	TierFailed = "failed"

	alternativeModelConfidence = 0.6
	basicVectorConfidence      = 0.4
	staticConfidence           = 0.3

	StaticRecoveryMessage = "I'm sorry, I can't put together a full answer right now. Please try again in a few minutes, or reach out to your instructor if it's urgent."

	recoverySystemPrompt = "You are a concise assistant for an astronaut training platform. Answer the trainee's question in at most four sentences. If you are unsure, say so."
)

// KnowledgeSearcher es la busqueda de texto basica que usa el segundo nivel.
type KnowledgeSearcher interface {
	SearchText(ctx context.Context, text string, k int) ([]domain.ScoredDocument, error)
}

// StaticResponder construye la respuesta de ultimo recurso.
type StaticResponder func(req domain.GuidanceRequest) (domain.GuidanceResponse, error)

type RecoveryDeps struct {
	Primary      GuidanceHandler
	Fallback     llm.Provider
	Knowledge    KnowledgeSearcher
	Static       StaticResponder
	Interactions InteractionWriter
	Tokens       *FeedbackTokenService
	Tasks        TaskRunner
	Clock        Clock
	Metrics      *Metrics
	Logger       *zap.Logger
}

// RecoveryChain envuelve al orquestador: Normal -> Tier1 -> Tier2 -> Tier3 -> Failed.
// Cada nivel se intenta como maximo una vez por solicitud.
type RecoveryChain struct {
	deps RecoveryDeps
}

func NewRecoveryChain(deps RecoveryDeps) *RecoveryChain {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Static == nil {
		deps.Static = StaticResponse
	}
	if deps.Tasks == nil {
		deps.Tasks = NewInlineRunner(1, deps.Logger)
	}
	deps.Clock = clockOrSystem(deps.Clock)
	return &RecoveryChain{deps: deps}
}

// Handle solo devuelve error para validacion (sin recuperacion) o *RecoveryExhaustedError.
func (c *RecoveryChain) Handle(ctx context.Context, req domain.GuidanceRequest) (domain.GuidanceResponse, error) {
	if err := ValidateRequest(req); err != nil {
		return domain.GuidanceResponse{}, err
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	// El orquestador crea la interaccion con este id; la recuperacion completa esa misma fila.
	if req.InteractionID == "" {
		req.InteractionID = uuid.NewString()
	}
	start := time.Now()

	resp, err := guard(func() (domain.GuidanceResponse, error) {
		return c.deps.Primary.Handle(ctx, req)
	})
	if err == nil {
		return resp, nil
	}
	if IsValidationError(err) {
		return domain.GuidanceResponse{}, err
	}

	correlationID := "rcv-" + uuid.NewString()
	logger := c.deps.Logger.With(
		zap.String("request_id", req.RequestID),
		zap.String("correlation_id", correlationID),
		zap.String("user_id", req.UserID),
	)
	logger.Warn("guidance pipeline failed, entering recovery",
		zap.String("tier", TierNormal),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err),
	)

	tiers := []struct {
		name string
		kind string
		run  func() (string, float64, error)
	}{
		{Tier1, RecoveryAlternativeModel, func() (string, float64, error) { return c.alternativeModel(ctx, req) }},
		{Tier2, RecoveryBasicVector, func() (string, float64, error) { return c.basicLookup(ctx, req) }},
	}
	for _, tier := range tiers {
		tierStart := time.Now()
		var message string
		var confidence float64
		_, tierErr := guard(func() (domain.GuidanceResponse, error) {
			var err error
			message, confidence, err = tier.run()
			return domain.GuidanceResponse{}, err
		})
		if tierErr == nil {
			c.deps.Metrics.Recovery(tier.name, "ok")
			c.deps.Metrics.Request(SourceRecovery)
			logger.Info("recovery tier succeeded",
				zap.String("tier", tier.name),
				zap.Duration("duration", time.Since(tierStart)),
			)
			return c.recovered(ctx, req, message, confidence, tier.kind, correlationID, start, logger), nil
		}
		c.deps.Metrics.Recovery(tier.name, "failed")
		logger.Warn("recovery tier failed",
			zap.String("tier", tier.name),
			zap.Duration("duration", time.Since(tierStart)),
			zap.Error(tierErr),
		)
	}

	tierStart := time.Now()
	resp, err = guard(func() (domain.GuidanceResponse, error) { return c.deps.Static(req) })
	if err == nil {
		c.deps.Metrics.Recovery(Tier3, "ok")
		c.deps.Metrics.Request(SourceRecovery)
		logger.Info("recovery tier succeeded", zap.String("tier", Tier3), zap.Duration("duration", time.Since(tierStart)))
		resp.MessageID = req.InteractionID
		resp.Guidance.Meta.Source = SourceRecovery
		resp.Guidance.Meta.RecoveryType = RecoveryStatic
		resp.Guidance.Meta.CorrelationID = correlationID
		resp.ProcessingTime = time.Since(start).Milliseconds()
		c.saveResponse(req, resp.Guidance.Message, resp.Guidance.Confidence, RecoveryStatic)
		return resp, nil
	}

	c.deps.Metrics.Recovery(Tier3, "failed")
	errorID := uuid.NewString()
	logger.Error("recovery exhausted",
		zap.String("tier", TierFailed),
		zap.String("error_id", errorID),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err),
	)
	return domain.GuidanceResponse{}, &RecoveryExhaustedError{ErrorID: errorID, Err: err}
}

func (c *RecoveryChain) alternativeModel(ctx context.Context, req domain.GuidanceRequest) (string, float64, error) {
	if c.deps.Fallback == nil {
		return "", 0, &ProviderError{Op: "alternative model", Err: errors.New("not configured")}
	}
	text, err := c.deps.Fallback.Complete(ctx, llm.Prompt(recoverySystemPrompt, req.Question))
	if err != nil {
		return "", 0, &ProviderError{Op: "alternative model", Err: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", 0, &ProviderError{Op: "alternative model", Err: errors.New("empty completion")}
	}
	return text, alternativeModelConfidence, nil
}

func (c *RecoveryChain) basicLookup(ctx context.Context, req domain.GuidanceRequest) (string, float64, error) {
	if c.deps.Knowledge == nil {
		return "", 0, &ProviderError{Op: "knowledge lookup", Err: errors.New("not configured")}
	}
	docs, err := c.deps.Knowledge.SearchText(ctx, req.Question, 1)
	if err != nil {
		return "", 0, &ProviderError{Op: "knowledge lookup", Err: err}
	}
	for _, d := range docs {
		if content := strings.TrimSpace(d.Content); content != "" {
			return firstSentences(content, 3), basicVectorConfidence, nil
		}
	}
	return "", 0, ErrNoKnowledgeMatch
}

func (c *RecoveryChain) recovered(ctx context.Context, req domain.GuidanceRequest, message string, confidence float64, kind, correlationID string, start time.Time, logger *zap.Logger) domain.GuidanceResponse {
	interactionID := req.InteractionID
	var token string
	if c.deps.Tokens != nil {
		t, err := c.deps.Tokens.Issue(ctx, interactionID, req.UserID)
		if err != nil {
			logger.Warn("issue feedback token failed", zap.Error(err))
		} else {
			token = t
		}
	}
	c.saveResponse(req, message, confidence, kind)

	return domain.GuidanceResponse{
		Success:        true,
		RequestID:      req.RequestID,
		ProcessingTime: time.Since(start).Milliseconds(),
		MessageID:      interactionID,
		SessionID:      req.SessionID,
		FeedbackToken:  token,
		Guidance: domain.Guidance{
			Message:          message,
			Confidence:       confidence,
			ActionItems:      []string{},
			SuggestedModules: []domain.ModuleSuggestion{},
			Meta: domain.GuidanceMeta{
				Source:          SourceRecovery,
				PrimaryStrategy: kind,
				RecoveryType:    kind,
				CorrelationID:   correlationID,
			},
		},
	}
}

// saveResponse completa la interaccion del pedido. Si el orquestador no llego a crearla, la inserta.
func (c *RecoveryChain) saveResponse(req domain.GuidanceRequest, message string, confidence float64, kind string) {
	if c.deps.Interactions == nil {
		return
	}
	interaction := domain.Interaction{
		ID:              req.InteractionID,
		RequestID:       req.RequestID,
		UserID:          req.UserID,
		SessionID:       req.SessionID,
		Question:        strings.TrimSpace(req.Question),
		ConfidenceScore: confidence,
		CreatedAt:       c.deps.Clock.Now(),
		Response: &domain.InteractionResponse{
			Message:      message,
			Strategy:     kind,
			Confidence:   confidence,
			RecoveryType: kind,
		},
	}
	c.deps.Tasks.Submit("save_recovery_response", func(ctx context.Context) error {
		if err := c.deps.Interactions.SaveResponse(ctx, interaction); err != nil {
			return &PersistenceError{Op: "save recovery response", Err: err}
		}
		return nil
	})
}

// StaticResponse es el tercer nivel: disculpa fija, sin dependencias externas.
func StaticResponse(req domain.GuidanceRequest) (domain.GuidanceResponse, error) {
	return domain.GuidanceResponse{
		Success:   true,
		RequestID: req.RequestID,
		MessageID: uuid.NewString(),
		SessionID: req.SessionID,
		Guidance: domain.Guidance{
			Message:          StaticRecoveryMessage,
			Confidence:       staticConfidence,
			ActionItems:      []string{},
			SuggestedModules: []domain.ModuleSuggestion{},
			Meta: domain.GuidanceMeta{
				Source:          SourceRecovery,
				PrimaryStrategy: RecoveryStatic,
				RecoveryType:    RecoveryStatic,
			},
		},
	}, nil
}

// guard convierte un panic en error de la etapa.
func guard(fn func() (domain.GuidanceResponse, error)) (resp domain.GuidanceResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
