package support

// #region imports
import (
	"strings"
)

// #endregion

// #region types

// Memory is the slice of a provenance record the matcher needs: the claim
// text and whether the memory itself is trustworthy enough to count.
type Memory struct {
	ID         string
	Content    string
	Confidence float64
}

// Evidence summarizes how stored memories bear on a claim.
type Evidence struct {
	Matches        int      // memories whose content overlaps the claim
	Contradictions int      // overlapping memories that negate the claim
	MatchedIDs     []string // ids of supporting memories
	ContradictIDs  []string // ids of contradicting memories
}

// MatcherConfig tunes the lexical matcher.
type MatcherConfig struct {
	MinSharedKeywords int     // overlap below this does not count as a match
	MinConfidence     float64 // memories below this confidence never support a claim
}

// DefaultMatcherConfig returns sensible defaults.
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		MinSharedKeywords: 2,
		MinConfidence:     0.3,
	}
}

// #endregion types

// #region negation

// negationMarkers flag a sentence asserting the opposite of something.
var negationMarkers = []string{
	"not ", "n't ", "never ", "no longer", "didn't", "did not",
	"wasn't", "was not", "isn't", "is not", "won't", "will not",
	"false", "incorrect", "wrong",
}

func negationCount(lower string) int {
	count := 0
	for _, m := range negationMarkers {
		count += strings.Count(lower, m)
	}
	return count
}

// #endregion negation

// #region matcher

// Matcher counts memory support and contradictions for a claim via
// keyword overlap. It is a pluggable heuristic — callers depend only on
// Assess, so a better classifier can replace the internals.
type Matcher struct {
	config MatcherConfig
}

// NewMatcher creates a Matcher with the given configuration.
func NewMatcher(config MatcherConfig) *Matcher {
	return &Matcher{config: config}
}

// Assess scores a claim against stored memories. A memory supports the
// claim when its content shares enough keywords and both sides agree on
// polarity; shared keywords with opposite polarity count as a
// contradiction instead.
func (m *Matcher) Assess(claim string, memories []Memory) Evidence {
	claimTokens := Tokenize(claim)
	claimNegations := negationCount(strings.ToLower(claim))

	var ev Evidence
	if len(claimTokens) == 0 {
		return ev
	}

	for _, mem := range memories {
		if mem.Confidence < m.config.MinConfidence {
			continue
		}
		shared := sharedKeywords(claimTokens, Tokenize(mem.Content))
		if shared < m.config.MinSharedKeywords {
			continue
		}

		memNegations := negationCount(strings.ToLower(mem.Content))
		// Same topic, opposite polarity → contradiction
		if (claimNegations > 0) != (memNegations > 0) {
			ev.Contradictions++
			ev.ContradictIDs = append(ev.ContradictIDs, mem.ID)
			continue
		}
		ev.Matches++
		ev.MatchedIDs = append(ev.MatchedIDs, mem.ID)
	}
	return ev
}

// #endregion matcher
