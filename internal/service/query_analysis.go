package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"guidance-llm/internal/domain"
	"guidance-llm/internal/llm"
)

const (
	TopicTraining   = "training"
	TopicAssessment = "assessment"
	TopicMission    = "mission"
	TopicEmergency  = "emergency"
	TopicDanger     = "danger"
	TopicMedical    = "medical"
)

// topicLexicon asocia topics con palabras clave. Las claves con espacio o guion se buscan como frase.
var topicLexicon = map[string][]string{
	TopicTraining:   {"train", "training", "course", "module", "lesson", "practice", "learn", "drill"},
	TopicAssessment: {"assessment", "exam", "test", "quiz", "evaluation", "score", "certification", "grade"},
	TopicMission:    {"mission", "eva", "spacewalk", "launch", "docking", "dock", "orbit", "scenario", "rendezvous"},
	TopicEmergency:  {"emergency", "evacuate", "evacuation", "fire", "leak", "depressurization", "alarm", "abort"},
	TopicDanger:     {"danger", "dangerous", "hazard", "risk", "unsafe", "toxic"},
	TopicMedical:    {"medical", "injury", "injured", "sick", "nausea", "symptom", "medication", "pain"},
	"exercise":      {"exercise", "workout", "fitness", "physical", "muscle", "strength", "cardio"},
	"zero-gravity":  {"zero-gravity", "zero gravity", "microgravity", "weightless", "weightlessness"},
	"navigation":    {"navigation", "trajectory", "course correction", "heading", "star tracker"},
	"equipment":     {"suit", "equipment", "tool", "gear", "helmet", "tether"},
	"nutrition":     {"nutrition", "food", "diet", "hydration", "water", "calorie"},
}

var sensitiveTopics = map[string]struct{}{TopicEmergency: {}, TopicDanger: {}, TopicMedical: {}}

// Marcadores de una palabra se comparan por token; los de varias palabras como frase.
var personalMarkers = []string{"my", "mine", "i feel", "i'm feeling", "about me", "for me"}

var timeSensitiveMarkers = []string{
	"today", "tomorrow", "tonight", "right now", "currently", "current", "latest", "this week",
	"next week", "deadline", "schedule", "when is", "due",
}

const queryAnalysisPrompt = `Classify the learner question. Respond ONLY with JSON in this format:
{"intent": "how_to|explanation|recommendation|help|question", "topics": ["lowercase topic"], "entities": ["named things"]}`

// QueryAnalyzer produce intent, topics, entidades, embedding y filtros de contenido.
type QueryAnalyzer struct {
	provider   llm.Provider
	embeddings *llm.EmbeddingChain
	logger     *zap.Logger
}

func NewQueryAnalyzer(provider llm.Provider, embeddings *llm.EmbeddingChain, logger *zap.Logger) *QueryAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryAnalyzer{provider: provider, embeddings: embeddings, logger: logger}
}

type classification struct {
	Intent   string   `json:"intent"`
	Topics   []string `json:"topics"`
	Entities []string `json:"entities"`
}

// Analyze nunca falla: si el modelo no responde usa el lexico, y el embedding degrada por su cadena.
func (a *QueryAnalyzer) Analyze(ctx context.Context, question string, reqCtx domain.RequestContext) domain.QueryAnalysis {
	var (
		cls       classification
		clsErr    error
		embedding llm.Embedding
		hasEmbed  bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cls, clsErr = a.classify(gctx, question)
		return nil
	})
	if a.embeddings != nil {
		g.Go(func() error {
			embedding = a.embeddings.Resolve(gctx, question)
			hasEmbed = true
			return nil
		})
	}
	_ = g.Wait()

	if clsErr != nil {
		a.logger.Warn("query classification failed, using lexicon", zap.Error(clsErr))
		cls = classification{Intent: lexiconIntent(question), Entities: lexiconEntities(question)}
	}

	topics := mergeUnique(normalizeList(cls.Topics), lexiconTopics(question, reqCtx))
	entities := mergeUnique(normalizeList(cls.Entities), nil)
	intent := strings.ToLower(strings.TrimSpace(cls.Intent))
	if intent == "" {
		intent = lexiconIntent(question)
	}

	analysis := domain.QueryAnalysis{
		Intent:   intent,
		Topics:   topics,
		Entities: entities,
		Filters:  contentFilters(question, topics),
	}
	if hasEmbed {
		analysis.Embedding = embedding.Vector
		analysis.EmbeddingSource = embedding.Source
		analysis.EmbeddingDegraded = embedding.Degraded
	}
	return analysis
}

func (a *QueryAnalyzer) classify(ctx context.Context, question string) (classification, error) {
	if a.provider == nil {
		return classification{}, fmt.Errorf("no provider")
	}
	raw, err := a.provider.Complete(ctx, llm.Prompt(queryAnalysisPrompt, question))
	if err != nil {
		return classification{}, fmt.Errorf("llm complete: %w", err)
	}
	body := jsonPayload(raw)
	if body == "" {
		return classification{}, fmt.Errorf("no json object in classification")
	}
	var cls classification
	if err := json.Unmarshal([]byte(body), &cls); err != nil {
		return classification{}, fmt.Errorf("parse classification: %w", err)
	}
	return cls, nil
}

func lexiconTopics(question string, reqCtx domain.RequestContext) []string {
	lower := strings.ToLower(question)
	tokens := map[string]struct{}{}
	for _, tok := range tokenize(lower) {
		tokens[tok] = struct{}{}
		tokens[strings.TrimSuffix(tok, "s")] = struct{}{}
	}

	var topics []string
	for topic, keywords := range topicLexicon {
		for _, kw := range keywords {
			matched := false
			if strings.ContainsAny(kw, " -") {
				matched = strings.Contains(lower, kw)
			} else {
				_, matched = tokens[kw]
			}
			if matched {
				topics = append(topics, topic)
				break
			}
		}
	}
	if area := strings.ToLower(strings.TrimSpace(reqCtx.Area)); area != "" {
		if _, known := topicLexicon[area]; known {
			topics = append(topics, area)
		}
	}
	sort.Strings(topics)
	return topics
}

func lexiconIntent(question string) string {
	lower := strings.ToLower(strings.TrimSpace(question))
	switch {
	case strings.Contains(lower, "help") || strings.Contains(lower, "stuck"):
		return "help"
	case strings.Contains(lower, "recommend") || strings.Contains(lower, "should i") || strings.Contains(lower, "best"):
		return "recommendation"
	case strings.HasPrefix(lower, "how"):
		return "how_to"
	case strings.HasPrefix(lower, "what") || strings.HasPrefix(lower, "why") || strings.HasPrefix(lower, "explain"):
		return "explanation"
	default:
		return "question"
	}
}

// lexiconEntities toma siglas y palabras capitalizadas que no abren la oracion.
func lexiconEntities(question string) []string {
	words := strings.Fields(question)
	var entities []string
	for i, w := range words {
		w = strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		if len(w) < 2 {
			continue
		}
		runes := []rune(w)
		isAcronym := strings.ToUpper(w) == w && unicode.IsLetter(runes[0])
		isProper := unicode.IsUpper(runes[0]) && i > 0
		if isAcronym || isProper {
			entities = append(entities, strings.ToLower(w))
		}
	}
	return mergeUnique(entities, nil)
}

func contentFilters(question string, topics []string) domain.ContentFilters {
	lower := strings.ToLower(question)
	tokens := map[string]struct{}{}
	for _, tok := range tokenize(lower) {
		tokens[tok] = struct{}{}
	}
	hasMarker := func(markers []string) bool {
		for _, m := range markers {
			if strings.Contains(m, " ") {
				if strings.Contains(lower, m) {
					return true
				}
				continue
			}
			if _, ok := tokens[m]; ok {
				return true
			}
		}
		return false
	}

	var f domain.ContentFilters
	for _, t := range topics {
		if _, ok := sensitiveTopics[t]; ok {
			f.Sensitive = true
			f.Flags = append(f.Flags, "sensitive:"+t)
		}
	}
	if hasMarker(personalMarkers) {
		f.Personal = true
		f.Flags = append(f.Flags, "personal")
	}
	if hasMarker(timeSensitiveMarkers) {
		f.TimeSensitive = true
		f.Flags = append(f.Flags, "time_sensitive")
	}
	return f
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func mergeUnique(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
