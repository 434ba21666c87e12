package service

import "strings"

const (
	shortTemplateLen   = 50
	shortResponseLen   = 200
	blendLeadingWords  = 15
	blendTrailingWords = 10
	blendResponseCap   = 800
)

// BlendTemplate mezcla el estilo del template con la respuesta base.
func BlendTemplate(template, response string) string {
	template = strings.TrimSpace(template)
	response = strings.TrimSpace(response)
	if template == "" {
		return response
	}
	if len(template) < shortTemplateLen {
		return template + " " + response
	}
	if len(response) < shortResponseLen {
		return sentenceOf(template) + " " + response
	}

	words := strings.Fields(template)
	lead := words
	if len(lead) > blendLeadingWords {
		lead = lead[:blendLeadingWords]
	}
	var trail []string
	if len(words) > blendLeadingWords {
		start := len(words) - blendTrailingWords
		if start < blendLeadingWords {
			start = blendLeadingWords
		}
		trail = words[start:]
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(lead, " "))
	sb.WriteString("\n\n")
	sb.WriteString(capText(response, blendResponseCap))
	if len(trail) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(strings.Join(trail, " "))
	}
	return sb.String()
}

func sentenceOf(text string) string {
	if idx := strings.IndexAny(text, ".!?"); idx >= 0 {
		return strings.TrimSpace(text[:idx+1])
	}
	return text
}

// capText corta en el ultimo espacio antes de max.
func capText(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := text[:max]
	if idx := strings.LastIndexAny(cut, " \n"); idx > max/2 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut) + "..."
}
