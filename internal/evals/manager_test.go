package evals

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupManager(t *testing.T) *Manager {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewSuiteStore(db)
	require.NoError(t, err)

	gen := NewGenerator(DefaultManagerConfig(), 42)
	return NewManager(store, gen, DefaultManagerConfig(), nil)
}

func fixedEvaluator(score float64) EvaluatorFunc {
	return func(Case) (float64, error) { return score, nil }
}

func addFixedCases(t *testing.T, m *Manager, suiteID string, types []CaseType) {
	t.Helper()
	var cases []Case
	for i, typ := range types {
		cases = append(cases, Case{
			ID:              suiteID + "-c" + string(rune('a'+i)),
			Type:            typ,
			Input:           "what was the last hand",
			GeneratedOutput: "the last hand ended with a flush on the river",
			Score:           PlaceholderScore,
		})
	}
	require.NoError(t, m.store.AddCases(suiteID, cases))
}

// #region test-run-suite
func TestRunSuiteCompletesAndWritesBack(t *testing.T) {
	m := setupManager(t)
	m.SetEvaluator(CaseConsistency, fixedEvaluator(0.9))
	addFixedCases(t, m, "s1", []CaseType{CaseConsistency, CaseConsistency, CaseConsistency})

	suite, err := m.RunSuite("s1")
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, suite.Status)
	assert.InDelta(t, 0.9, suite.AverageScore, 1e-9)
	assert.False(t, suite.LastRun.IsZero())
	for _, c := range suite.Cases {
		assert.InDelta(t, 0.9, c.Score, 1e-9, "placeholder must be resolved on run")
	}
}

func TestRunSuiteUnknownSuite(t *testing.T) {
	m := setupManager(t)
	_, err := m.RunSuite("missing")
	assert.True(t, errors.Is(err, ErrSuiteNotFound))
}

func TestRunSuiteHeuristicFailureScoresConservatively(t *testing.T) {
	m := setupManager(t)
	m.SetEvaluator(CaseConsistency, func(Case) (float64, error) {
		return 0, errors.New("classifier exploded")
	})
	m.SetEvaluator(CaseSafety, fixedEvaluator(1.0))
	addFixedCases(t, m, "s1", []CaseType{CaseConsistency, CaseSafety})

	suite, err := m.RunSuite("s1")
	require.NoError(t, err, "an evaluator failure must not abort the run")

	assert.Equal(t, StatusCompleted, suite.Status)
	assert.InDelta(t, (0.3+1.0)/2, suite.AverageScore, 1e-9)
}

func TestRunSuiteExplicitReRun(t *testing.T) {
	m := setupManager(t)
	m.SetEvaluator(CaseConsistency, fixedEvaluator(0.4))
	addFixedCases(t, m, "s1", []CaseType{CaseConsistency})

	first, err := m.RunSuite("s1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, first.Status)

	// A completed suite stays completed until an explicit re-run
	m.SetEvaluator(CaseConsistency, fixedEvaluator(0.8))
	second, err := m.RunSuite("s1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, second.Status)
	assert.InDelta(t, 0.8, second.AverageScore, 1e-9)
}

// #endregion test-run-suite

// #region test-gate
func TestTrainingGateHighScores(t *testing.T) {
	m := setupManager(t)
	m.SetEvaluator(CaseConsistency, fixedEvaluator(0.9))
	addFixedCases(t, m, "s1", []CaseType{CaseConsistency, CaseConsistency, CaseConsistency})
	_, err := m.RunSuite("s1")
	require.NoError(t, err)

	gate, err := m.TrainingGateStatus()
	require.NoError(t, err)
	assert.True(t, gate.CanProceed)
	assert.Contains(t, gate.Reason, "acceptable")
	assert.Equal(t, 3, gate.CaseCount)
}

func TestTrainingGateRollback(t *testing.T) {
	m := setupManager(t)
	m.SetEvaluator(CaseConsistency, fixedEvaluator(0.3))
	addFixedCases(t, m, "s1", []CaseType{CaseConsistency, CaseConsistency, CaseConsistency})
	_, err := m.RunSuite("s1")
	require.NoError(t, err)

	gate, err := m.TrainingGateStatus()
	require.NoError(t, err)
	assert.False(t, gate.CanProceed)
	assert.Contains(t, gate.Reason, "rollback")
}

func TestTrainingGateBlockBand(t *testing.T) {
	m := setupManager(t)
	m.SetEvaluator(CaseConsistency, fixedEvaluator(0.6))
	addFixedCases(t, m, "s1", []CaseType{CaseConsistency})
	_, err := m.RunSuite("s1")
	require.NoError(t, err)

	gate, err := m.TrainingGateStatus()
	require.NoError(t, err)
	assert.False(t, gate.CanProceed)
	assert.Contains(t, gate.Reason, "block fine-tuning")
}

func TestTrainingGateCaseWeighted(t *testing.T) {
	m := setupManager(t)
	// One big strong suite should outvote one tiny weak suite
	m.SetEvaluator(CaseConsistency, fixedEvaluator(0.9))
	addFixedCases(t, m, "big", []CaseType{CaseConsistency, CaseConsistency, CaseConsistency, CaseConsistency})
	_, err := m.RunSuite("big")
	require.NoError(t, err)

	m.SetEvaluator(CaseConsistency, fixedEvaluator(0.1))
	addFixedCases(t, m, "tiny", []CaseType{CaseConsistency})
	_, err = m.RunSuite("tiny")
	require.NoError(t, err)

	gate, err := m.TrainingGateStatus()
	require.NoError(t, err)
	// (0.9*4 + 0.1*1) / 5 = 0.74
	assert.InDelta(t, 0.74, gate.AverageScore, 1e-9)
	assert.True(t, gate.CanProceed)
}

func TestTrainingGateNoSuites(t *testing.T) {
	m := setupManager(t)
	gate, err := m.TrainingGateStatus()
	require.NoError(t, err)
	assert.False(t, gate.CanProceed)
}

// #endregion test-gate

// #region test-generator
func TestGenerateCasesHallucinationTrigger(t *testing.T) {
	gen := NewGenerator(DefaultManagerConfig(), 7)

	cases := gen.GenerateCases(Interaction{
		ActionID:   "a1",
		Input:      "who won the last hand",
		Output:     "pretty sure it was chip leader dana",
		Confidence: 0.4,
	})

	found := false
	for _, c := range cases {
		if c.Type == CaseHallucination {
			found = true
			assert.Equal(t, PlaceholderScore, c.Score)
			assert.NotEmpty(t, c.ExpectedBehavior)
		}
	}
	assert.True(t, found, "confidence < 0.7 must emit a hallucination case")
}

func TestGenerateCasesTaskTrigger(t *testing.T) {
	gen := NewGenerator(DefaultManagerConfig(), 7)
	cases := gen.GenerateCases(Interaction{
		Input:      "announce the next blind level",
		Output:     "blinds are up, two hundred four hundred",
		Confidence: 0.9,
		IsTask:     true,
	})

	found := false
	for _, c := range cases {
		if c.Type == CaseTaskAccuracy {
			found = true
		}
	}
	assert.True(t, found, "task interactions must emit a task-accuracy case")
}

func TestGenerateCasesBounded(t *testing.T) {
	gen := NewGenerator(DefaultManagerConfig(), 99)
	for i := 0; i < 50; i++ {
		cases := gen.GenerateCases(Interaction{
			Input:      "table talk",
			Output:     "dealer shuffles",
			Confidence: 0.2,
			IsTask:     true,
		})
		require.LessOrEqual(t, len(cases), 4)
		require.GreaterOrEqual(t, len(cases), 2, "task + low confidence always emit")
	}
}

func TestGenerateCasesDeterministicForSeed(t *testing.T) {
	in := Interaction{Input: "x", Output: "y", Confidence: 0.9}
	a := NewGenerator(DefaultManagerConfig(), 1234)
	b := NewGenerator(DefaultManagerConfig(), 1234)

	for i := 0; i < 20; i++ {
		ca := a.GenerateCases(in)
		cb := b.GenerateCases(in)
		require.Equal(t, len(ca), len(cb), "same seed must roll the same cases")
	}
}

// #endregion test-generator
