package replay

// #region imports
import (
	"fmt"
	"math"

	"github.com/aceylabs/cognition/internal/hallucination"
)

// #endregion

// #region report

// Divergence is one mismatch between a recorded outcome and the replay.
type Divergence struct {
	ActionID string
	Field    string
	Expected string
	Got      string
}

// Report summarizes one fixture replay.
type Report struct {
	Fixture     string
	Total       int
	Divergent   int
	Divergences []Divergence
}

// Clean reports whether the replay reproduced every recorded decision.
func (r Report) Clean() bool { return r.Divergent == 0 }

// #endregion report

// #region runner

// scoreTolerance absorbs float formatting differences between the
// recorded score and the recomputation.
const scoreTolerance = 1e-9

// Runner replays recorded scorer inputs and checks the loop still makes
// the same decisions. The scorer is pure, so any divergence means the
// scoring configuration or code changed since the fixture was recorded.
type Runner struct {
	scorer *hallucination.Scorer
}

// NewRunner creates a Runner over the given scorer.
func NewRunner(scorer *hallucination.Scorer) *Runner {
	return &Runner{scorer: scorer}
}

// Run replays every fixture entry and collects divergences.
func (r *Runner) Run(f Fixture) Report {
	report := Report{Fixture: f.Name, Total: len(f.Entries)}

	for _, e := range f.Entries {
		result := r.scorer.Score(e.Signals)
		policy := r.scorer.PolicyFor(result)

		var divs []Divergence
		if string(result.Risk) != e.ExpectedRisk {
			divs = append(divs, Divergence{e.ActionID, "risk", e.ExpectedRisk, string(result.Risk)})
		}
		if math.Abs(result.Score-e.ExpectedScore) > scoreTolerance {
			divs = append(divs, Divergence{e.ActionID, "score",
				fmt.Sprintf("%.4f", e.ExpectedScore), fmt.Sprintf("%.4f", result.Score)})
		}
		if got := decisionFor(policy); got != e.ExpectedDecision {
			divs = append(divs, Divergence{e.ActionID, "decision", e.ExpectedDecision, got})
		}
		if e.RawOutput != "" && e.ExpectedOutput != "" {
			if got := hallucination.ApplyPolicy(policy, e.RawOutput); got != e.ExpectedOutput {
				divs = append(divs, Divergence{e.ActionID, "output", e.ExpectedOutput, got})
			}
		}

		if len(divs) > 0 {
			report.Divergent++
			report.Divergences = append(report.Divergences, divs...)
		}
	}
	return report
}

func decisionFor(policy hallucination.ResponsePolicy) string {
	switch {
	case policy.ShouldDefer:
		return "deferred"
	case policy.ShouldHedge:
		return "hedged"
	default:
		return "shipped"
	}
}

// #endregion runner
