package hallucination

// #region imports
import (
	"strings"
	"unicode"
)

// #endregion

// #region creativity

// creativityMarkers are flourishes that read as invention rather than recall.
var creativityMarkers = []string{
	"imagine", "picture this", "legend has it", "once upon",
	"magical", "mystical", "epic tale", "story goes",
	"as if", "like a", "dreamed", "fantastical",
}

// CreativityMarkers counts creative-language flourishes in text.
func CreativityMarkers(text string) int {
	lower := strings.ToLower(text)
	count := 0
	for _, m := range creativityMarkers {
		count += strings.Count(lower, m)
	}
	return count
}

// #endregion creativity

// #region factual-density

// FactualDensity estimates the share of tokens that carry checkable
// facts: numbers and mid-sentence capitalized names. Returns -1 for
// empty text (unknown).
func FactualDensity(text string) float64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return -1
	}

	factual := 0
	for i, f := range fields {
		runes := []rune(strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		}))
		if len(runes) == 0 {
			continue
		}
		if unicode.IsNumber(runes[0]) {
			factual++
			continue
		}
		// Capitalized mid-sentence tokens look like proper nouns
		if i > 0 && unicode.IsUpper(runes[0]) && !strings.HasSuffix(fields[i-1], ".") {
			factual++
		}
	}
	return float64(factual) / float64(len(fields))
}

// #endregion factual-density
