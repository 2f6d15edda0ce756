package hallucination

// #region imports
import "time"

// #endregion

// #region signals

// Signals carries the observable inputs to the risk scorer. Confidence
// comes from the upstream generation call; the rest are derived locally.
type Signals struct {
	Confidence         float64 // provided scalar, [0, 1]
	MemoryMatches      int     // supporting provenance records
	ContradictionCount int     // provenance records contradicting the claim

	// Secondary signals. LogProbability is 0 when unknown (real values are
	// negative). FactualDensity is negative when unknown.
	LogProbability    float64
	Entropy           float64
	CreativityMarkers int
	FactualDensity    float64
}

// #endregion signals

// #region risk

// Risk buckets the score.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Result is the scorer output.
type Result struct {
	Score           float64 // capped additive sum, [0, 1]
	Risk            Risk
	Recommendations []string
	DetectedAt      time.Time
}

// #endregion risk

// #region policy

// ResponsePolicy tells the caller what to do with the generated output.
type ResponsePolicy struct {
	ShouldProceed      bool
	ShouldHedge        bool
	ShouldDefer        bool
	SuggestedModifiers []string
}

// #endregion policy

// #region config

// ScorerConfig holds band cutoffs and contradiction weighting.
type ScorerConfig struct {
	MediumRisk          float64 // score >= this is at least medium
	HighRisk            float64 // score >= this is high
	ContradictionWeight float64 // added per contradiction
	ContradictionCap    float64 // cap on total contradiction contribution
}

// DefaultScorerConfig returns the documented operating points.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		MediumRisk:          0.4,
		HighRisk:            0.8,
		ContradictionWeight: 0.3,
		ContradictionCap:    0.6,
	}
}

// #endregion config
