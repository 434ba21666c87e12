package service

import "guidance-llm/internal/engine"

const (
	FallbackStrategy   = "fallback"
	FallbackMessage    = "I don't have enough information to answer that confidently yet. Could you add a bit more detail about what you're working on?"
	FallbackConfidence = 0.5
)

type Synthesis struct {
	Content            string
	Confidence         float64
	PrimaryStrategy    string
	EnginesUsed        []string
	ConfidenceByEngine map[string]float64
}

// Synthesize elige el resultado con contenido de mayor confianza. Los resultados sin contenido se ignoran
// sin importar su confianza; en empate exacto gana el primero en orden de invocacion.
func Synthesize(results []engine.Result) Synthesis {
	out := Synthesis{ConfidenceByEngine: make(map[string]float64, len(results))}
	bestIdx := -1
	for i, r := range results {
		out.ConfidenceByEngine[r.Engine] = r.Confidence
		if !r.Answered() {
			continue
		}
		out.EnginesUsed = append(out.EnginesUsed, r.Engine)
		if bestIdx == -1 || r.Confidence > results[bestIdx].Confidence {
			bestIdx = i
		}
	}

	if bestIdx == -1 {
		out.Content = FallbackMessage
		out.Confidence = FallbackConfidence
		out.PrimaryStrategy = FallbackStrategy
		return out
	}
	best := results[bestIdx]
	out.Content = best.Content
	out.Confidence = best.Confidence
	out.PrimaryStrategy = best.Engine
	return out
}
