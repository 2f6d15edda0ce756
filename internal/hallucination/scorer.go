package hallucination

// #region imports
import (
	"fmt"
	"strings"
	"time"
)

// #endregion

// #region scorer

// Scorer maps signals to a risk score and response policy. Pure: no store
// access, no I/O, deterministic for a given input.
type Scorer struct {
	config ScorerConfig
}

// NewScorer creates a scorer with the given configuration.
func NewScorer(config ScorerConfig) *Scorer {
	return &Scorer{config: config}
}

// #endregion scorer

// #region score

// Score sums banded signal contributions and caps the result at 1.0.
// Monotonically non-decreasing in contradictions, non-increasing in
// confidence.
func (s *Scorer) Score(sig Signals) Result {
	var score float64
	var recs []string

	// Low generation confidence: +0.2 to +0.4 banded
	switch {
	case sig.Confidence < 0.3:
		score += 0.4
		recs = append(recs, "generation confidence very low; defer or request guidance")
	case sig.Confidence < 0.5:
		score += 0.3
		recs = append(recs, "generation confidence low; hedge the claim")
	case sig.Confidence < 0.7:
		score += 0.2
	}

	// Weak memory support: +0.2 to +0.4 banded
	switch sig.MemoryMatches {
	case 0:
		score += 0.4
		recs = append(recs, "no supporting memory; claim is ungrounded")
	case 1:
		score += 0.3
	case 2:
		score += 0.2
	}

	// Contradictions: per-contradiction weight, capped
	if sig.ContradictionCount > 0 {
		contribution := float64(sig.ContradictionCount) * s.config.ContradictionWeight
		if contribution > s.config.ContradictionCap {
			contribution = s.config.ContradictionCap
		}
		score += contribution
		recs = append(recs, fmt.Sprintf("%d stored memories contradict the claim", sig.ContradictionCount))
	}

	// Secondary penalties
	if sig.LogProbability < -4.0 {
		score += 0.1
	}
	if sig.Entropy > 0.8 {
		score += 0.1
	}
	if sig.CreativityMarkers >= 3 {
		score += 0.1
		recs = append(recs, "heavy creative language on a factual claim")
	}
	if sig.FactualDensity >= 0 && sig.FactualDensity < 0.2 {
		score += 0.1
	}

	if score > 1.0 {
		score = 1.0
	}

	return Result{
		Score:           score,
		Risk:            s.riskFor(score),
		Recommendations: recs,
		DetectedAt:      time.Now().UTC(),
	}
}

func (s *Scorer) riskFor(score float64) Risk {
	switch {
	case score >= s.config.HighRisk:
		return RiskHigh
	case score >= s.config.MediumRisk:
		return RiskMedium
	default:
		return RiskLow
	}
}

// #endregion score

// #region modifiers

// hedgeModifiers soften a medium-risk claim.
var hedgeModifiers = []string{
	"If I'm remembering this right —",
	"I might be off here, but",
	"Take this with a grain of salt:",
	"As far as I can tell,",
}

// deferModifiers state uncertainty outright and ask for guidance.
var deferModifiers = []string{
	"I'm honestly not sure about this one — someone double-check me:",
	"I can't back this up from what I remember, so don't take it as fact:",
	"Low confidence on my end — tell me if I've got this wrong:",
}

// #endregion modifiers

// #region policy

// PolicyFor derives the response policy from a scored result.
// Proceed iff the score stayed under the high band; defer exactly when
// risk is high.
func (s *Scorer) PolicyFor(result Result) ResponsePolicy {
	switch result.Risk {
	case RiskHigh:
		return ResponsePolicy{
			ShouldProceed:      false,
			ShouldHedge:        false,
			ShouldDefer:        true,
			SuggestedModifiers: deferModifiers,
		}
	case RiskMedium:
		return ResponsePolicy{
			ShouldProceed:      true,
			ShouldHedge:        true,
			ShouldDefer:        false,
			SuggestedModifiers: hedgeModifiers,
		}
	default:
		return ResponsePolicy{ShouldProceed: true}
	}
}

// ApplyPolicy rewrites the output text per the policy: deferral preamble
// at high risk, hedge at medium, untouched at low. Content is always
// preserved — the modifier is prepended, never substituted.
func ApplyPolicy(policy ResponsePolicy, text string) string {
	if len(policy.SuggestedModifiers) == 0 {
		return text
	}
	// Deterministic pick so replays reproduce the exact output
	modifier := policy.SuggestedModifiers[len(text)%len(policy.SuggestedModifiers)]
	if strings.TrimSpace(text) == "" {
		return modifier
	}
	return modifier + " " + text
}

// #endregion policy
