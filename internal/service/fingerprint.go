package service

import (
	"encoding/hex"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"

	"guidance-llm/internal/domain"
)

// Fingerprint es la clave de cache: blake2b-256 de usuario, pregunta normalizada y contexto normalizado.
// SkipCache no participa: pedir bypass no cambia la identidad de la pregunta.
func Fingerprint(userID, question string, reqCtx domain.RequestContext) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(strings.TrimSpace(userID)))
	h.Write([]byte{0})
	h.Write([]byte(normalizeQuestion(question)))
	h.Write([]byte{0})
	h.Write([]byte(normalizeContext(reqCtx)))
	return hex.EncodeToString(h.Sum(nil))
}

func normalizeQuestion(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}

func normalizeContext(c domain.RequestContext) string {
	parts := []string{
		"area=" + strings.ToLower(strings.TrimSpace(c.Area)),
		"module=" + strings.TrimSpace(c.ModuleID),
	}
	keys := make([]string, 0, len(c.Attributes))
	for k := range c.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, strings.ToLower(strings.TrimSpace(k))+"="+strings.TrimSpace(c.Attributes[k]))
	}
	return strings.Join(parts, "&")
}
