package service

import (
	"regexp"
	"strings"
)

var (
	fenceOpen  = regexp.MustCompile("(?is)^\\s*```(?:json)?\\s*")
	fenceClose = regexp.MustCompile("(?is)\\s*```\\s*$")
)

// jsonPayload devuelve el primer objeto JSON balanceado de una completion, ignorando fences y BOM.
// Devuelve "" si no hay objeto completo.
func jsonPayload(raw string) string {
	s := strings.TrimPrefix(strings.TrimSpace(raw), "\uFEFF")
	s = fenceClose.ReplaceAllString(fenceOpen.ReplaceAllString(s, ""), "")

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	quoted, escaped := false, false
	for i := start; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			escaped = false
		case quoted && ch == '\\':
			escaped = true
		case ch == '"':
			quoted = !quoted
		case quoted:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
