package service

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// PhraseRule es una sustitucion declarativa. Las reglas se aplican en orden.
type PhraseRule struct {
	Pattern     *regexp.Regexp
	Replacement string
}

func rule(pattern, replacement string) PhraseRule {
	return PhraseRule{Pattern: regexp.MustCompile(`(?i)` + pattern), Replacement: replacement}
}

// ApplyPhraseRules aplica las reglas y conserva la mayuscula inicial de cada coincidencia.
func ApplyPhraseRules(text string, rules []PhraseRule) string {
	for _, r := range rules {
		repl := r.Replacement
		text = r.Pattern.ReplaceAllStringFunc(text, func(match string) string {
			first, _ := utf8.DecodeRuneInString(match)
			if unicode.IsUpper(first) {
				return capitalize(repl)
			}
			return repl
		})
	}
	return text
}

var formalRules = []PhraseRule{
	rule(`\bcan't\b`, "cannot"),
	rule(`\bdon't\b`, "do not"),
	rule(`\bdoesn't\b`, "does not"),
	rule(`\bwon't\b`, "will not"),
	rule(`\bisn't\b`, "is not"),
	rule(`\bit's\b`, "it is"),
	rule(`\byou're\b`, "you are"),
	rule(`\bgonna\b`, "going to"),
	rule(`\bwanna\b`, "want to"),
	rule(`\bkinda\b`, "somewhat"),
	rule(`\byeah\b`, "yes"),
	rule(`\bhey\b`, "hello"),
	rule(`\bstuff\b`, "material"),
	rule(`\ba lot of\b`, "a significant amount of"),
}

var casualRules = []PhraseRule{
	rule(`\bcannot\b`, "can't"),
	rule(`\bdo not\b`, "don't"),
	rule(`\bdoes not\b`, "doesn't"),
	rule(`\bwill not\b`, "won't"),
	rule(`\bis not\b`, "isn't"),
	rule(`\bit is\b`, "it's"),
	rule(`\byou are\b`, "you're"),
	rule(`\bhowever,?`, "but"),
	rule(`\btherefore,?`, "so"),
	rule(`\badditionally,?`, "also"),
	rule(`\butilize\b`, "use"),
	rule(`\bassist\b`, "help"),
	rule(`\bapproximately\b`, "about"),
	rule(`\bprior to\b`, "before"),
}

var hedgingRules = []PhraseRule{
	rule(`\bI think,?\s*`, ""),
	rule(`\bI believe,?\s*`, ""),
	rule(`\bit seems( that)?\s*`, ""),
	rule(`\bperhaps,?\s*`, ""),
	rule(`\bpossibly\s+`, ""),
	rule(`\bprobably\s+`, ""),
	rule(`\bmight\b`, "will"),
	rule(`\bmaybe,?\s*`, ""),
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// capitalizeSentences corrige la mayuscula al inicio del texto y despues de cada punto final.
func capitalizeSentences(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	upper := true
	for _, r := range text {
		if upper && unicode.IsLetter(r) {
			sb.WriteRune(unicode.ToUpper(r))
			upper = false
			continue
		}
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			upper = true
		} else if !unicode.IsSpace(r) {
			upper = false
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
