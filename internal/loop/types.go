package loop

// #region imports
import (
	"time"

	"github.com/aceylabs/cognition/internal/evals"
	"github.com/aceylabs/cognition/internal/feedback"
	"github.com/aceylabs/cognition/internal/hallucination"
	"github.com/aceylabs/cognition/internal/provenance"
)

// #endregion

// #region action

// Action is one AI-generated action arriving from the upstream caller.
// Output and Confidence come from the already-made generation call; the
// loop never generates.
type Action struct {
	ID           string
	Type         provenance.Source // becomes the provenance source
	Input        string            // prompt or trigger context
	Output       string            // raw generated text, pre-governance
	Confidence   float64
	CausedBy     []string // prior memory ids this action built on
	ModelVersion string
	IsTask       bool
}

// #endregion action

// #region stages

// Stage names the per-action state machine positions.
type Stage string

const (
	StageReceived           Stage = "received"
	StageProvenanceRecorded Stage = "provenance-recorded"
	StageRiskScored         Stage = "risk-scored"
	StagePolicyApplied      Stage = "policy-applied"
	StageEvalGenerated      Stage = "eval-generated"
	StageFeedbackFolded     Stage = "feedback-folded"
	StageComplete           Stage = "complete"
)

// #endregion stages

// #region result

// ActionResult is everything the loop decided about one action.
type ActionResult struct {
	Success       bool
	FailureReason string
	Stage         Stage // last stage reached

	Provenance    provenance.Record
	Hallucination hallucination.Result
	Policy        hallucination.ResponsePolicy
	EvalCases     []evals.Case
	FinalOutput   string

	FeedbackSignal *feedback.Signal
	Reinforcement  *feedback.Reinforcement

	LoopTime time.Duration
}

// #endregion result

// #region gate

// SubsystemHealth is one favorable/unfavorable verdict with context.
type SubsystemHealth struct {
	Favorable bool
	Detail    string
}

// GateResult combines the three gate inputs. CanProceed requires all
// three favorable.
type GateResult struct {
	CanProceed          bool
	Reason              string
	EvaluationStatus    evals.GateStatus
	HallucinationStatus SubsystemHealth
	FeedbackStatus      SubsystemHealth
}

// #endregion gate

// #region health

// Health is the operational dashboard rollup.
type Health string

const (
	HealthHealthy  Health = "healthy"
	HealthWarning  Health = "warning"
	HealthCritical Health = "critical"
)

// worse returns the more severe of two health states.
func worse(a, b Health) Health {
	rank := map[Health]int{HealthHealthy: 0, HealthWarning: 1, HealthCritical: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// SystemStatus rolls all subsystem health into one verdict using
// worst-of-all semantics.
type SystemStatus struct {
	Overall       Health
	Provenance    Health
	Hallucination Health
	Evaluation    Health
	Feedback      Health
	Detail        map[string]string
}

// #endregion health

// #region config

// Config holds the orchestrator's health cutoffs.
type Config struct {
	WarnAvgRisk     float64 // recent mean risk above this → warning, gate unfavorable
	CriticalAvgRisk float64 // recent mean risk above this → critical
	RiskWindow      int     // recent actions considered for risk health
}

// DefaultConfig returns sensible cutoffs.
func DefaultConfig() Config {
	return Config{
		WarnAvgRisk:     0.5,
		CriticalAvgRisk: 0.75,
		RiskWindow:      20,
	}
}

// #endregion config
