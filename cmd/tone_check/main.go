package main

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"guidance-llm/internal/config"
	"guidance-llm/internal/domain"
	"guidance-llm/internal/llm"
	"guidance-llm/internal/service"
)

const (
	colorGreen = "\033[32m"
	colorCyan  = "\033[36m"
	colorReset = "\033[0m"
)

// Scenario es una respuesta base fija que se pasa por la mejora de personalidad.
type Scenario struct {
	Name           string
	Question       string
	Base           string
	Confidence     float64
	Area           string
	Topics         []string
	Traits         domain.PersonalityTraits
	EmotionalState string
	Expected       string
}

func scenarios() []Scenario {
	preset := func(name string) domain.PersonalityTraits {
		p, _ := domain.PresetByName(name)
		return p.Traits
	}
	return []Scenario{
		{
			Name:           "technical docking",
			Question:       "How should I approach the docking port during the final phase?",
			Base:           "Keep the closing rate below 0.1 m/s. Align the target cross before the last 10 meters. Abort if the cross drifts outside the ring.",
			Confidence:     0.85,
			Area:           "Missions",
			Topics:         []string{"mission"},
			Traits:         preset("Technical Expert"),
			EmotionalState: domain.EmotionNeutral,
			Expected:       "Formal, detailed, no jokes",
		},
		{
			Name:           "discouraged trainee",
			Question:       "I failed the navigation quiz again, maybe this isn't for me.",
			Base:           "Review the star tracker chapter. Practice the three reference fixes until you can do them without notes.",
			Confidence:     0.7,
			Area:           "Assessment",
			Topics:         []string{"assessment"},
			Traits:         preset("Supportive Coach"),
			EmotionalState: domain.EmotionDiscouraged,
			Expected:       "Warm and encouraging, no challenge line",
		},
		{
			Name:           "zero gravity humor",
			Question:       "Why do fluids behave strangely in zero gravity?",
			Base:           "Without gravity, surface tension dominates, so liquids form spheres and cling to surfaces.",
			Confidence:     0.9,
			Area:           "Science",
			Topics:         []string{"science"},
			Traits:         preset("Friendly Assistant"),
			EmotionalState: domain.EmotionConfident,
			Expected:       "Casual with one light remark about zero gravity",
		},
		{
			Name:           "uncertain answer",
			Question:       "Will the new EVA suits be ready for next month's exercise?",
			Base:           "The suits are scheduled for certification this month, but the final date depends on the test results.",
			Confidence:     0.4,
			Area:           "Missions",
			Topics:         []string{"mission"},
			Traits:         preset("Direct Instructor"),
			EmotionalState: domain.EmotionNeutral,
			Expected:       "Direct and honest about the uncertainty",
		},
	}
}

func main() {
	ctx := context.Background()
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	judge := llm.NewHTTPClient(llm.ClientOptions{
		BaseURL:           cfg.LLMBaseURL,
		APIKey:            cfg.LLMAPIKey,
		Model:             cfg.LLMModel,
		RequestsPerSecond: cfg.LLMRequestsPerSecond,
		Logger:            logger,
	})

	personality := service.NewPersonalityEngine(
		service.NewTemplateSelector(service.NewMemoryTemplateStore(service.DefaultTemplates()), logger),
		service.NewToneTransformer(nil),
	)

	all := scenarios()
	var totalTrait, totalClarity, totalEmpathy int
	for _, sc := range all {
		fmt.Printf("%s[%s]%s %s\n", colorCyan, sc.Name, colorReset, sc.Question)

		enh := enhance(ctx, personality, sc)
		fmt.Printf("%s[guide]%s %s\n", colorGreen, colorReset, enh.Message)
		fmt.Printf("template=%s path=%s adjustments=%v\n", enh.TemplateID, enh.SearchPath, enh.Adjustments)

		jr, err := evaluateResponse(ctx, judge, sc, enh.Message, enh.Adjustments)
		if err != nil {
			log.Fatalf("judge failed: %v", err)
		}
		fmt.Printf("%sJudge%s %q\n", colorCyan, colorReset, jr.Reasoning)
		fmt.Printf("Scores: traits %d/5 | clarity %d/5 | empathy %d/5\n\n", jr.TraitScore, jr.ClarityScore, jr.EmpathyScore)

		totalTrait += jr.TraitScore
		totalClarity += jr.ClarityScore
		totalEmpathy += jr.EmpathyScore
	}

	n := float64(len(all))
	fmt.Println("==== Averages ====")
	fmt.Printf("Traits: %.2f/5 | Clarity: %.2f/5 | Empathy: %.2f/5\n",
		float64(totalTrait)/n, float64(totalClarity)/n, float64(totalEmpathy)/n)
}

// enhance reproduce el paso de personalidad del orquestador, incluido el suavizado para usuarios vulnerables.
func enhance(ctx context.Context, personality *service.PersonalityEngine, sc Scenario) service.Enhancement {
	state := domain.UserState{Stage: domain.StageIntermediate, EmotionalState: sc.EmotionalState}
	enh := personality.Enhance(ctx, service.EnhanceInput{
		Base:       sc.Base,
		Confidence: sc.Confidence,
		Traits:     sc.Traits,
		Area:       sc.Area,
		Analysis:   domain.QueryAnalysis{Topics: sc.Topics},
		UserState:  state,
	})
	if service.PredictImpact(sc.Confidence, enh.Message, enh.Adjustments, state).NeedsToneAdjustment {
		enh = personality.Soften(enh)
	}
	return enh
}
