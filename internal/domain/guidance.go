package domain

import "time"

const (
	StageBeginner     = "beginner"
	StageIntermediate = "intermediate"
	StageAdvanced     = "advanced"

	EmotionNeutral     = "neutral"
	EmotionDiscouraged = "discouraged"
	EmotionFrustrated  = "frustrated"
	EmotionConfident   = "confident"
)

// RequestContext describe donde esta el usuario dentro de la plataforma.
type RequestContext struct {
	Area       string            `json:"area,omitempty"` // training, mission, assessment...
	ModuleID   string            `json:"moduleId,omitempty"`
	SkipCache  bool              `json:"skipCache,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type UserActivity struct {
	CurrentActivity  string   `json:"currentActivity,omitempty"`
	CompletedModules []string `json:"completedModules,omitempty"`
	RecentScores     []int    `json:"recentScores,omitempty"`
}

type GuidanceRequest struct {
	RequestID            string           `json:"-"`
	InteractionID        string           `json:"-"` // lo asigna la cadena de recuperacion
	UserID               string           `json:"userId"`
	Question             string           `json:"question"`
	Context              RequestContext   `json:"context"`
	SessionID            string           `json:"sessionId,omitempty"`
	ConversationHistory  []HistoryMessage `json:"conversationHistory,omitempty"`
	UserActivity         UserActivity     `json:"userActivity"`
	DeviceInfo           map[string]any   `json:"deviceInfo,omitempty"`
	EnvironmentalFactors map[string]any   `json:"environmentalFactors,omitempty"`
}

type UserState struct {
	Stage            string `json:"stage"`
	EmotionalState   string `json:"emotionalState"`
	InAssessment     bool   `json:"inAssessment"`
	CompletedModules int    `json:"completedModules"`
	PastInteractions int    `json:"pastInteractions"`
}

type ContentFilters struct {
	Sensitive     bool     `json:"sensitive"`
	TimeSensitive bool     `json:"timeSensitive"`
	Personal      bool     `json:"personal"`
	Flags         []string `json:"flags,omitempty"`
}

type QueryAnalysis struct {
	Intent            string         `json:"intent"`
	Topics            []string       `json:"topics"`
	Entities          []string       `json:"entities"`
	Embedding         []float32      `json:"-"`
	EmbeddingSource   string         `json:"embeddingSource,omitempty"`
	EmbeddingDegraded bool           `json:"embeddingDegraded"`
	Filters           ContentFilters `json:"filters"`
}

// HasTopic compara en minusculas exactas.
func (q QueryAnalysis) HasTopic(topic string) bool {
	for _, t := range q.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

type ModuleSuggestion struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

type GuidanceMeta struct {
	Source                  string             `json:"source"` // pipeline, cache, recovery
	PrimaryStrategy         string             `json:"primaryStrategy,omitempty"`
	EnginesUsed             []string           `json:"enginesUsed,omitempty"`
	ConfidenceByEngine      map[string]float64 `json:"confidenceByEngine,omitempty"`
	TemplateID              string             `json:"templateId,omitempty"`
	TemplateSearchPath      string             `json:"templateSearchPath,omitempty"`
	PrimaryTrait            string             `json:"primaryTrait,omitempty"`
	SecondaryTrait          string             `json:"secondaryTrait,omitempty"`
	AdaptiveToneAdjustments []string           `json:"adaptiveToneAdjustments,omitempty"`
	EmbeddingQuality        string             `json:"embeddingQuality,omitempty"`
	RecoveryType            string             `json:"recoveryType,omitempty"`
	CorrelationID           string             `json:"correlationId,omitempty"`
}

type Guidance struct {
	Message          string             `json:"message"`
	Confidence       float64            `json:"confidence"`
	ActionItems      []string           `json:"actionItems"`
	SuggestedModules []ModuleSuggestion `json:"suggestedModules"`
	NextSteps        []string           `json:"nextSteps,omitempty"`
	Meta             GuidanceMeta       `json:"meta"`
}

type ImpactPrediction struct {
	ExpectedHelpfulness float64 `json:"expectedHelpfulness"`
	NeedsToneAdjustment bool    `json:"needsToneAdjustment"`
	Reason              string  `json:"reason,omitempty"`
}

type AdaptiveLearning struct {
	Traits          PersonalityTraits `json:"traits"`
	PresetName      string            `json:"presetName,omitempty"`
	UserStage       string            `json:"userStage"`
	EmotionalState  string            `json:"emotionalState"`
	Impact          ImpactPrediction  `json:"impact"`
	Recommendations int               `json:"pendingRecommendations"`
}

type GuidanceResponse struct {
	Success          bool             `json:"success"`
	RequestID        string           `json:"requestId"`
	ProcessingTime   int64            `json:"processingTime"` // ms
	MessageID        string           `json:"messageId"`
	SessionID        string           `json:"sessionId,omitempty"`
	FeedbackToken    string           `json:"feedbackToken,omitempty"`
	Cached           bool             `json:"cached"`
	Guidance         Guidance         `json:"guidance"`
	AdaptiveLearning AdaptiveLearning `json:"adaptiveLearning"`
	Timing           map[string]int64 `json:"timing,omitempty"`
}

// CacheEntry nunca se actualiza parcialmente: se reemplaza o expira.
type CacheEntry struct {
	Fingerprint string    `json:"fingerprint"`
	Payload     []byte    `json:"payload"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Expired indica si la entrada vencio en el instante now.
func (e CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
