package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"guidance-llm/internal/domain"
	"guidance-llm/internal/engine"
)

const (
	SourcePipeline = "pipeline"
	SourceCache    = "cache"
	SourceRecovery = "recovery"

	maxQuestionLength = 4000
)

// GuidanceHandler es el contrato que comparten el orquestador y la cadena de recuperacion.
type GuidanceHandler interface {
	Handle(ctx context.Context, req domain.GuidanceRequest) (domain.GuidanceResponse, error)
}

// ProfileReader devuelve pgx.ErrNoRows si el usuario no tiene perfil.
type ProfileReader interface {
	GetByUserID(ctx context.Context, userID string) (domain.PersonalityProfile, error)
}

// InteractionWriter es la parte del log de interacciones que escribe el orquestador.
type InteractionWriter interface {
	Create(ctx context.Context, interaction domain.Interaction) error
	SaveResponse(ctx context.Context, interaction domain.Interaction) error
}

type GuidanceDeps struct {
	Cache        ResponseCache
	Interactions InteractionWriter
	Profiles     ProfileReader
	UserState    *UserStateAnalyzer
	History      *HistoryLoader
	Analyzer     *QueryAnalyzer
	Engines      *EngineRunner
	Personality  *PersonalityEngine
	Modules      *ModuleSuggester
	Tokens       *FeedbackTokenService
	Tasks        TaskRunner
	Hooks        []NamedHook
	Clock        Clock
	Metrics      *Metrics
	Logger       *zap.Logger
}

type GuidanceOptions struct {
	CacheTTL                 time.Duration
	CacheConfidenceThreshold float64
}

// GuidanceService orquesta analisis, motores, sintesis, personalidad y contenido lateral.
// Es dueño de los efectos de cache y persistencia; los fallos del pipeline se devuelven para que
// los maneje la cadena de recuperacion.
type GuidanceService struct {
	deps GuidanceDeps
	opts GuidanceOptions
}

func NewGuidanceService(deps GuidanceDeps, opts GuidanceOptions) *GuidanceService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	deps.Clock = clockOrSystem(deps.Clock)
	if deps.Tasks == nil {
		deps.Tasks = NewInlineRunner(1, deps.Logger)
	}
	if deps.UserState == nil {
		deps.UserState = NewUserStateAnalyzer(nil, deps.Logger)
	}
	if deps.History == nil {
		deps.History = NewHistoryLoader(nil, deps.Logger)
	}
	if deps.Analyzer == nil {
		deps.Analyzer = NewQueryAnalyzer(nil, nil, deps.Logger)
	}
	if deps.Modules == nil {
		deps.Modules = NewModuleSuggester(nil, deps.Logger)
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	if opts.CacheConfidenceThreshold <= 0 {
		opts.CacheConfidenceThreshold = 0.8
	}
	return &GuidanceService{deps: deps, opts: opts}
}

// ValidateRequest corta antes de cualquier efecto lateral.
func ValidateRequest(req domain.GuidanceRequest) error {
	q := strings.TrimSpace(req.Question)
	if q == "" {
		return &ValidationError{Field: "question", Message: "question is required"}
	}
	if len(q) > maxQuestionLength {
		return &ValidationError{Field: "question", Message: "question is too long"}
	}
	if strings.TrimSpace(req.UserID) == "" {
		return &ValidationError{Field: "userId", Message: "userId is required"}
	}
	return nil
}

type phaseTimer struct {
	metrics *Metrics
	timing  map[string]int64
	last    time.Time
}

func newPhaseTimer(metrics *Metrics) *phaseTimer {
	return &phaseTimer{metrics: metrics, timing: map[string]int64{}, last: time.Now()}
}

// mark cierra la fase en curso y arranca la siguiente.
func (t *phaseTimer) mark(phase string) {
	now := time.Now()
	d := now.Sub(t.last)
	t.last = now
	t.timing[phase] = d.Milliseconds()
	t.metrics.Phase(phase, d)
}

func (s *GuidanceService) Handle(ctx context.Context, req domain.GuidanceRequest) (domain.GuidanceResponse, error) {
	if err := ValidateRequest(req); err != nil {
		return domain.GuidanceResponse{}, err
	}
	start := time.Now()
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	logger := s.deps.Logger.With(zap.String("request_id", req.RequestID), zap.String("user_id", req.UserID))
	timer := newPhaseTimer(s.deps.Metrics)

	fingerprint := Fingerprint(req.UserID, req.Question, req.Context)
	if req.Context.SkipCache {
		s.deps.Metrics.Cache("bypass")
	} else if resp, ok := s.fromCache(ctx, fingerprint, logger); ok {
		timer.mark("cache")
		s.deps.Metrics.Request(SourceCache)
		s.dispatchHooks(GuidanceEvent{
			RequestID:  req.RequestID,
			MessageID:  resp.MessageID,
			UserID:     req.UserID,
			SessionID:  req.SessionID,
			Source:     SourceCache,
			Strategy:   resp.Guidance.Meta.PrimaryStrategy,
			Confidence: resp.Guidance.Confidence,
			Cached:     true,
			Duration:   time.Since(start),
		})
		return resp, nil
	}
	timer.mark("cache")

	history := s.deps.History.Load(ctx, req)
	state := s.deps.UserState.Analyze(ctx, req, history)
	timer.mark("user_state")

	profile := s.loadProfile(ctx, req.UserID, logger)
	timer.mark("profile")

	analysis := s.deps.Analyzer.Analyze(ctx, req.Question, req.Context)
	timer.mark("query_analysis")

	interactionID := req.InteractionID
	if interactionID == "" {
		interactionID = uuid.NewString()
	}
	interaction := domain.Interaction{
		ID:            interactionID,
		RequestID:     req.RequestID,
		UserID:        req.UserID,
		SessionID:     req.SessionID,
		Question:      strings.TrimSpace(req.Question),
		UserState:     state,
		QueryAnalysis: analysis,
		CreatedAt:     s.deps.Clock.Now(),
	}
	if s.deps.Interactions != nil {
		pending := interaction
		s.deps.Tasks.Submit("persist_interaction", func(ctx context.Context) error {
			if err := s.deps.Interactions.Create(ctx, pending); err != nil {
				return &PersistenceError{Op: "create interaction", Err: err}
			}
			return nil
		})
	}

	plan := BuildResponsePlan(analysis, state)
	if s.deps.Engines == nil {
		return domain.GuidanceResponse{}, &ProviderError{Op: "engines", Err: ErrAllEnginesFailed}
	}
	results, err := s.deps.Engines.Run(ctx, plan, engine.Input{
		UserID:    req.UserID,
		Question:  req.Question,
		Context:   req.Context,
		History:   history,
		UserState: state,
		Analysis:  analysis,
	})
	timer.mark("engines")
	if err != nil {
		return domain.GuidanceResponse{}, &ProviderError{Op: "engines", Err: err}
	}

	synthesis := Synthesize(results)
	timer.mark("synthesis")

	enhancement := Enhancement{Message: synthesis.Content}
	if s.deps.Personality != nil {
		enhancement = s.deps.Personality.Enhance(ctx, EnhanceInput{
			Base:       synthesis.Content,
			Confidence: synthesis.Confidence,
			Traits:     profile.Traits,
			Area:       req.Context.Area,
			Analysis:   analysis,
			UserState:  state,
		})
	}
	timer.mark("enhancement")

	var (
		actionItems []string
		modules     []domain.ModuleSuggestion
		nextSteps   []string
		impact      domain.ImpactPrediction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		actionItems = ExtractActionItems(enhancement.Message, analysis.Intent)
		return nil
	})
	g.Go(func() error {
		modules = s.deps.Modules.Suggest(gctx, analysis.Topics, req.UserActivity.CompletedModules)
		return nil
	})
	g.Go(func() error {
		nextSteps = NextSteps(state, analysis.Intent)
		return nil
	})
	g.Go(func() error {
		impact = PredictImpact(synthesis.Confidence, enhancement.Message, enhancement.Adjustments, state)
		return nil
	})
	_ = g.Wait()

	if impact.NeedsToneAdjustment && s.deps.Personality != nil {
		enhancement = s.deps.Personality.Soften(enhancement)
		logger.Info("tone softened", zap.String("reason", impact.Reason))
	}
	timer.mark("side_content")

	var feedbackToken string
	if s.deps.Tokens != nil {
		feedbackToken, err = s.deps.Tokens.Issue(ctx, interaction.ID, req.UserID)
		if err != nil {
			logger.Warn("issue feedback token failed", zap.Error(err))
			feedbackToken = ""
		}
	}

	embeddingQuality := "ok"
	if analysis.EmbeddingDegraded {
		embeddingQuality = "degraded"
	} else if analysis.EmbeddingSource == "" {
		embeddingQuality = "none"
	}

	resp := domain.GuidanceResponse{
		Success:       true,
		RequestID:     req.RequestID,
		MessageID:     interaction.ID,
		SessionID:     req.SessionID,
		FeedbackToken: feedbackToken,
		Guidance: domain.Guidance{
			Message:          enhancement.Message,
			Confidence:       synthesis.Confidence,
			ActionItems:      actionItems,
			SuggestedModules: modules,
			NextSteps:        nextSteps,
			Meta: domain.GuidanceMeta{
				Source:                  SourcePipeline,
				PrimaryStrategy:         synthesis.PrimaryStrategy,
				EnginesUsed:             synthesis.EnginesUsed,
				ConfidenceByEngine:      synthesis.ConfidenceByEngine,
				TemplateID:              enhancement.TemplateID,
				TemplateSearchPath:      enhancement.SearchPath,
				PrimaryTrait:            enhancement.Primary,
				SecondaryTrait:          enhancement.Secondary,
				AdaptiveToneAdjustments: enhancement.Adjustments,
				EmbeddingQuality:        embeddingQuality,
			},
		},
		AdaptiveLearning: domain.AdaptiveLearning{
			Traits:          profile.Traits,
			PresetName:      profile.PresetName,
			UserStage:       state.Stage,
			EmotionalState:  state.EmotionalState,
			Impact:          impact,
			Recommendations: len(profile.Recommendations),
		},
	}
	timer.mark("finalize")
	resp.Timing = timer.timing
	resp.ProcessingTime = time.Since(start).Milliseconds()

	interaction.ConfidenceScore = synthesis.Confidence
	interaction.Response = &domain.InteractionResponse{
		Message:            enhancement.Message,
		Strategy:           synthesis.PrimaryStrategy,
		EnginesUsed:        synthesis.EnginesUsed,
		Confidence:         synthesis.Confidence,
		Traits:             profile.Traits,
		TemplateID:         enhancement.TemplateID,
		TemplateSearchPath: enhancement.SearchPath,
		Adjustments:        enhancement.Adjustments,
	}
	if s.deps.Interactions != nil {
		saved := interaction
		s.deps.Tasks.Submit("save_response", func(ctx context.Context) error {
			if err := s.deps.Interactions.SaveResponse(ctx, saved); err != nil {
				return &PersistenceError{Op: "save response", Err: err}
			}
			return nil
		})
	}

	s.storeInCache(fingerprint, resp, analysis, logger)
	s.deps.Metrics.Request(SourcePipeline)
	s.dispatchHooks(GuidanceEvent{
		RequestID:   req.RequestID,
		MessageID:   interaction.ID,
		UserID:      req.UserID,
		SessionID:   req.SessionID,
		Source:      SourcePipeline,
		Strategy:    synthesis.PrimaryStrategy,
		Confidence:  synthesis.Confidence,
		TemplateID:  enhancement.TemplateID,
		SearchPath:  enhancement.SearchPath,
		Adjustments: enhancement.Adjustments,
		Topics:      analysis.Topics,
		Duration:    time.Since(start),
	})

	logger.Info("guidance generated",
		zap.String("strategy", synthesis.PrimaryStrategy),
		zap.Float64("confidence", synthesis.Confidence),
		zap.String("search_path", enhancement.SearchPath),
		zap.Int64("processing_ms", resp.ProcessingTime),
	)
	return resp, nil
}

func (s *GuidanceService) fromCache(ctx context.Context, fingerprint string, logger *zap.Logger) (domain.GuidanceResponse, bool) {
	if s.deps.Cache == nil {
		return domain.GuidanceResponse{}, false
	}
	entry, ok, err := s.deps.Cache.Get(ctx, fingerprint)
	if err != nil {
		logger.Warn("cache read failed", zap.Error(err))
		s.deps.Metrics.Cache("error")
		return domain.GuidanceResponse{}, false
	}
	if !ok {
		s.deps.Metrics.Cache("miss")
		return domain.GuidanceResponse{}, false
	}
	var resp domain.GuidanceResponse
	if err := json.Unmarshal(entry.Payload, &resp); err != nil {
		logger.Warn("cache payload decode failed", zap.Error(err))
		s.deps.Metrics.Cache("error")
		return domain.GuidanceResponse{}, false
	}
	s.deps.Metrics.Cache("hit")
	resp.Cached = true
	return resp, true
}

// IsCacheable: confianza sobre el umbral, sin contenido sensible al tiempo ni personal.
func IsCacheable(confidence, threshold float64, filters domain.ContentFilters) bool {
	return confidence >= threshold && !filters.TimeSensitive && !filters.Personal
}

func (s *GuidanceService) storeInCache(fingerprint string, resp domain.GuidanceResponse, analysis domain.QueryAnalysis, logger *zap.Logger) {
	if s.deps.Cache == nil {
		return
	}
	if !IsCacheable(resp.Guidance.Confidence, s.opts.CacheConfidenceThreshold, analysis.Filters) {
		s.deps.Metrics.Cache("skip")
		return
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		logger.Warn("cache payload encode failed", zap.Error(err))
		return
	}
	ttl := s.opts.CacheTTL
	s.deps.Tasks.Submit("cache_write", func(ctx context.Context) error {
		if err := s.deps.Cache.Set(ctx, fingerprint, payload, ttl); err != nil {
			s.deps.Metrics.Cache("error")
			return err
		}
		s.deps.Metrics.Cache("store")
		return nil
	})
}

// loadProfile aplica el perfil por defecto si no existe o si el almacen falla.
func (s *GuidanceService) loadProfile(ctx context.Context, userID string, logger *zap.Logger) domain.PersonalityProfile {
	if s.deps.Profiles == nil {
		return domain.DefaultProfile(userID)
	}
	profile, err := s.deps.Profiles.GetByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			logger.Warn("load personality profile failed, using defaults", zap.Error(err))
		}
		return domain.DefaultProfile(userID)
	}
	profile.Traits = profile.Traits.Clamped()
	return profile
}

func (s *GuidanceService) dispatchHooks(ev GuidanceEvent) {
	for _, h := range s.deps.Hooks {
		hook := h
		s.deps.Tasks.Submit("hook:"+hook.Name, func(ctx context.Context) error {
			return hook.Fn(ctx, ev)
		})
	}
}
