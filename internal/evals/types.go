package evals

// #region imports
import (
	"errors"
	"time"
)

// #endregion

// #region case-type

// CaseType enumerates self-test case categories.
type CaseType string

const (
	CaseConsistency     CaseType = "consistency"
	CaseTaskAccuracy    CaseType = "task-accuracy"
	CasePersonaDrift    CaseType = "persona-drift"
	CaseHallucination   CaseType = "hallucination"
	CaseSafety          CaseType = "safety"
	CaseRegression      CaseType = "regression"
	CaseResponseQuality CaseType = "response-quality"
)

// #endregion case-type

// #region case

// PlaceholderScore marks a case that has not been run yet.
const PlaceholderScore = -1.0

// Metadata carries optional per-case context.
type Metadata struct {
	Confidence float64  `json:"confidence,omitempty"`
	Context    string   `json:"context,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// Case is one generated self-test.
type Case struct {
	ID               string
	Type             CaseType
	Input            string
	ExpectedBehavior string
	GeneratedOutput  string
	Score            float64 // PlaceholderScore until the suite runs
	ModelVersion     string
	CreatedAt        time.Time
	Metadata         Metadata
}

// #endregion case

// #region suite

// SuiteStatus is the 4-state machine: pending → running → completed | failed.
type SuiteStatus string

const (
	StatusPending   SuiteStatus = "pending"
	StatusRunning   SuiteStatus = "running"
	StatusCompleted SuiteStatus = "completed"
	StatusFailed    SuiteStatus = "failed"
)

// Suite groups cases under one id with aggregate results.
type Suite struct {
	ID           string
	Cases        []Case
	AverageScore float64
	LastRun      time.Time
	Status       SuiteStatus
}

// #endregion suite

// #region interaction

// Interaction is a live exchange the generator derives cases from.
type Interaction struct {
	ActionID     string
	Input        string
	Output       string
	Confidence   float64
	IsTask       bool // the interaction concerns an action or task
	ModelVersion string
}

// #endregion interaction

// #region gate

// GateStatus answers "can the system proceed to train?".
type GateStatus struct {
	CanProceed   bool
	Reason       string
	AverageScore float64 // case-count-weighted mean over completed suites
	SuiteCount   int
	CaseCount    int
}

// #endregion gate

// #region config

// ManagerConfig holds generation odds, pass thresholds and gate bands.
type ManagerConfig struct {
	ConsistencyChance  float64
	PersonaDriftChance float64
	HallucinationBelow float64 // emit a hallucination case when confidence < this
	CasePassThreshold  float64
	GateRollbackBelow  float64
	GateProceedAt      float64
	HeuristicFailScore float64 // conservative score when an evaluator fails
}

// DefaultManagerConfig returns the documented operating points.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		ConsistencyChance:  0.3,
		PersonaDriftChance: 0.2,
		HallucinationBelow: 0.7,
		CasePassThreshold:  0.55,
		GateRollbackBelow:  0.5,
		GateProceedAt:      0.7,
		HeuristicFailScore: 0.3,
	}
}

// #endregion config

// #region errors

var (
	// ErrSuiteNotFound means the suite id does not exist.
	ErrSuiteNotFound = errors.New("suite not found")
	// ErrSuiteRunning rejects a run while another run holds the suite.
	ErrSuiteRunning = errors.New("suite already running")
)

// #endregion errors
