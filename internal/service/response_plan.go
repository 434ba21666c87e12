package service

import (
	"guidance-llm/internal/domain"
	"guidance-llm/internal/engine"
)

// ResponsePlan dice que motores corren para una pregunta.
type ResponsePlan struct {
	Vector            bool
	KnowledgeGraph    bool
	ModuleAnalysis    bool
	Generative        bool
	MissionSimulation bool
}

func BuildResponsePlan(analysis domain.QueryAnalysis, state domain.UserState) ResponsePlan {
	return ResponsePlan{
		Vector:            true,
		KnowledgeGraph:    len(analysis.Entities) > 0,
		ModuleAnalysis:    analysis.HasTopic(TopicTraining) || analysis.HasTopic(TopicAssessment),
		Generative:        true,
		MissionSimulation: analysis.HasTopic(TopicMission) && state.Stage != domain.StageBeginner,
	}
}

// Enabled devuelve los motores habilitados en orden de invocacion.
func (p ResponsePlan) Enabled() []string {
	flags := map[string]bool{
		engine.NameVector:            p.Vector,
		engine.NameKnowledgeGraph:    p.KnowledgeGraph,
		engine.NameModuleAnalysis:    p.ModuleAnalysis,
		engine.NameGenerative:        p.Generative,
		engine.NameMissionSimulation: p.MissionSimulation,
	}
	out := make([]string, 0, len(engine.Names))
	for _, name := range engine.Names {
		if flags[name] {
			out = append(out, name)
		}
	}
	return out
}
