package evals

// #region imports
import (
	"fmt"
	"sync"
)

// #endregion

// #region manager

// Manager owns eval case generation, suite runs, and the training gate.
type Manager struct {
	mu         sync.Mutex // serializes suite runs per manager
	store      *SuiteStore
	generator  *Generator
	evaluators map[CaseType]EvaluatorFunc
	config     ManagerConfig
}

// NewManager wires a manager with the default evaluator set.
// personaLexicon may be nil; the drift evaluator then scores neutrally.
func NewManager(store *SuiteStore, generator *Generator, config ManagerConfig, personaLexicon func() (map[string]bool, error)) *Manager {
	if personaLexicon == nil {
		personaLexicon = func() (map[string]bool, error) { return nil, nil }
	}
	return &Manager{
		store:     store,
		generator: generator,
		config:    config,
		evaluators: map[CaseType]EvaluatorFunc{
			CaseConsistency:     EvaluateConsistency,
			CaseTaskAccuracy:    EvaluateTaskAccuracy,
			CasePersonaDrift:    NewPersonaDriftEvaluator(personaLexicon),
			CaseHallucination:   EvaluateHallucination,
			CaseSafety:          EvaluateSafety,
			CaseRegression:      EvaluateRegression,
			CaseResponseQuality: EvaluateResponseQuality,
		},
	}
}

// SetEvaluator swaps the scorer for one case type. Heuristics are
// replaceable without touching the run loop.
func (m *Manager) SetEvaluator(t CaseType, fn EvaluatorFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evaluators[t] = fn
}

// #endregion manager

// #region generate-and-store

// GenerateAndStore derives cases from an interaction and appends them to
// the suite, durably, before returning them.
func (m *Manager) GenerateAndStore(suiteID string, in Interaction) ([]Case, error) {
	cases := m.generator.GenerateCases(in)
	if err := m.store.AddCases(suiteID, cases); err != nil {
		return nil, fmt.Errorf("store cases: %w", err)
	}
	return cases, nil
}

// #endregion generate-and-store

// #region run-suite

// RunSuite evaluates every case in the suite, writes back scores and the
// aggregate, and completes the status machine. A running suite cannot be
// re-entered; completed suites only re-run through this explicit call.
// An evaluator failure scores its case conservatively instead of
// aborting the run.
func (m *Manager) RunSuite(suiteID string) (Suite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	suite, err := m.store.GetSuite(suiteID)
	if err != nil {
		return Suite{}, err
	}
	if suite.Status == StatusRunning {
		return Suite{}, fmt.Errorf("%w: %s", ErrSuiteRunning, suiteID)
	}
	if err := m.store.SetStatus(suiteID, StatusRunning); err != nil {
		return Suite{}, err
	}

	var sum float64
	for i := range suite.Cases {
		c := &suite.Cases[i]
		fn, ok := m.evaluators[c.Type]
		if !ok {
			c.Score = m.config.HeuristicFailScore
			sum += c.Score
			continue
		}
		score, err := fn(*c)
		if err != nil {
			// HeuristicFailure: conservative default, never aborts the run
			c.Score = m.config.HeuristicFailScore
		} else {
			c.Score = score
		}
		sum += c.Score
	}

	average := 0.0
	if len(suite.Cases) > 0 {
		average = sum / float64(len(suite.Cases))
	}

	if err := m.store.RecordRun(suiteID, suite.Cases, average, StatusCompleted); err != nil {
		// The store is the authority; mark the run failed rather than
		// reporting scores that were never persisted.
		_ = m.store.SetStatus(suiteID, StatusFailed)
		return Suite{}, fmt.Errorf("record run: %w", err)
	}

	return m.store.GetSuite(suiteID)
}

// #endregion run-suite

// #region training-gate

// TrainingGateStatus aggregates completed suites into the single
// authoritative go/no-go answer for training. The mean is weighted by
// case count so a one-case suite cannot outvote a fifty-case suite.
func (m *Manager) TrainingGateStatus() (GateStatus, error) {
	completed, err := m.store.CompletedSuites()
	if err != nil {
		return GateStatus{}, fmt.Errorf("gate aggregate: %w", err)
	}

	if len(completed) == 0 {
		return GateStatus{
			CanProceed: false,
			Reason:     "no completed evaluation suites — nothing to judge",
		}, nil
	}

	var weightedSum float64
	var totalCases int
	for _, s := range completed {
		weightedSum += s.AverageScore * float64(s.CaseCount)
		totalCases += s.CaseCount
	}
	if totalCases == 0 {
		return GateStatus{
			CanProceed: false,
			Reason:     "completed suites contain no cases",
			SuiteCount: len(completed),
		}, nil
	}
	average := weightedSum / float64(totalCases)

	status := GateStatus{
		AverageScore: average,
		SuiteCount:   len(completed),
		CaseCount:    totalCases,
	}
	switch {
	case average < m.config.GateRollbackBelow:
		status.CanProceed = false
		status.Reason = fmt.Sprintf("average score %.2f too low — rollback", average)
	case average < m.config.GateProceedAt:
		status.CanProceed = false
		status.Reason = fmt.Sprintf("average score %.2f below threshold — block fine-tuning", average)
	default:
		status.CanProceed = true
		status.Reason = fmt.Sprintf("average score %.2f acceptable across %d cases", average, totalCases)
	}
	return status, nil
}

// #endregion training-gate
