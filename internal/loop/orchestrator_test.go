package loop

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/aceylabs/cognition/internal/audit"
	"github.com/aceylabs/cognition/internal/evals"
	"github.com/aceylabs/cognition/internal/feedback"
	"github.com/aceylabs/cognition/internal/hallucination"
	"github.com/aceylabs/cognition/internal/provenance"
	"github.com/aceylabs/cognition/internal/support"
)

// harness bundles the orchestrator with the subsystems tests poke at
// directly.
type harness struct {
	orch      *Orchestrator
	provStore *provenance.Store
	evalMgr   *evals.Manager
	evalStore *evals.SuiteStore
	auditLog  *audit.Log
}

func setupOrchestrator(t *testing.T) *harness {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	provStore, err := provenance.NewStore(db, 0.4)
	require.NoError(t, err)
	evalStore, err := evals.NewSuiteStore(db)
	require.NoError(t, err)
	fbStore, err := feedback.NewStore(db)
	require.NoError(t, err)
	auditLog, err := audit.NewLog(db)
	require.NoError(t, err)

	evalConfig := evals.DefaultManagerConfig()
	evalMgr := evals.NewManager(evalStore, evals.NewGenerator(evalConfig, 42), evalConfig, nil)

	orch := NewOrchestrator(
		provStore,
		support.NewMatcher(support.DefaultMatcherConfig()),
		hallucination.NewScorer(hallucination.DefaultScorerConfig()),
		evalMgr,
		feedback.NewAggregator(fbStore, feedback.DefaultConfig()),
		auditLog,
		zap.NewNop(),
		DefaultConfig(),
	)
	return &harness{orch: orch, provStore: provStore, evalMgr: evalMgr, evalStore: evalStore, auditLog: auditLog}
}

func seedMemories(t *testing.T, store *provenance.Store, contents ...string) {
	t.Helper()
	for i, c := range contents {
		require.NoError(t, store.AddMemory(provenance.Record{
			MemoryID:   "seed-" + string(rune('a'+i)),
			Source:     provenance.SourceSystem,
			Confidence: 0.9,
			Content:    c,
		}))
	}
}

// #region test-process

func TestProcessActionShipsSupportedClaim(t *testing.T) {
	h := setupOrchestrator(t)
	seedMemories(t, h.provStore,
		"alice won the final pot with a flush on the river",
		"alice flush river pot final hand",
		"the final river card completed alice's flush",
	)

	res := h.orch.ProcessAction(Action{
		ID:         "act-1",
		Type:       provenance.SourceSelfGenerated,
		Input:      "recap the hand",
		Output:     "alice took the final pot with a flush on the river",
		Confidence: 0.9,
	}, nil, nil)

	require.True(t, res.Success, "reason: %s", res.FailureReason)
	assert.Equal(t, StageComplete, res.Stage)
	assert.Equal(t, hallucination.RiskLow, res.Hallucination.Risk)
	assert.True(t, res.Policy.ShouldProceed)
	assert.Equal(t, "alice took the final pot with a flush on the river", res.FinalOutput,
		"low-risk output ships untouched")
	assert.Greater(t, res.LoopTime, time.Duration(0))
}

func TestProcessActionDefersUngroundedClaim(t *testing.T) {
	h := setupOrchestrator(t)

	raw := "the ace of spades has appeared twelve times tonight"
	res := h.orch.ProcessAction(Action{
		ID:         "act-risky",
		Output:     raw,
		Confidence: 0.2,
	}, nil, nil)

	require.True(t, res.Success)
	assert.Equal(t, hallucination.RiskHigh, res.Hallucination.Risk)
	assert.True(t, res.Policy.ShouldDefer)
	assert.NotEqual(t, raw, res.FinalOutput)
	assert.Contains(t, res.FinalOutput, raw, "deferral prepends, never drops content")
}

func TestProcessActionRecordsProvenanceChain(t *testing.T) {
	h := setupOrchestrator(t)

	parent := h.orch.ProcessAction(Action{ID: "parent", Output: "bob folded pocket kings preflop", Confidence: 0.8}, nil, nil)
	require.True(t, parent.Success)

	child := h.orch.ProcessAction(Action{
		ID:         "child",
		Output:     "bob has been folding strong hands all night",
		Confidence: 0.8,
		CausedBy:   []string{"parent"},
	}, nil, nil)
	require.True(t, child.Success)
	assert.Equal(t, []string{"parent"}, child.Provenance.CausedBy)

	ancestors, err := h.provStore.Ancestors("child")
	require.NoError(t, err)
	assert.Equal(t, []string{"parent"}, ancestors)
}

func TestProcessActionFailSafeOnDuplicate(t *testing.T) {
	h := setupOrchestrator(t)

	raw := "the blinds double every twenty minutes"
	first := h.orch.ProcessAction(Action{ID: "dup", Output: raw, Confidence: 0.8}, nil, nil)
	require.True(t, first.Success)

	second := h.orch.ProcessAction(Action{ID: "dup", Output: raw, Confidence: 0.8}, nil, nil)
	assert.False(t, second.Success)
	assert.NotEmpty(t, second.FailureReason)
	assert.Equal(t, StageReceived, second.Stage, "failure before the provenance write")
	assert.True(t, second.Policy.ShouldDefer, "failures fall back to the deferral policy")
	assert.Contains(t, second.FinalOutput, raw)
}

func TestProcessActionFailSafeOnUnknownParent(t *testing.T) {
	h := setupOrchestrator(t)

	res := h.orch.ProcessAction(Action{
		ID:         "orphan",
		Output:     "carol is on a heater",
		Confidence: 0.8,
		CausedBy:   []string{"never-stored"},
	}, nil, nil)
	assert.False(t, res.Success)

	count, err := h.provStore.Count()
	require.NoError(t, err)
	assert.Zero(t, count, "rejected writes leave nothing behind")
}

func TestProcessActionFoldsFeedback(t *testing.T) {
	h := setupOrchestrator(t)

	events := []feedback.ChatEvent{
		{Type: feedback.EventMessage, Content: "pog what a call", Timestamp: time.Now().UTC()},
		{Type: feedback.EventClip, Content: "clip-9"},
	}
	res := h.orch.ProcessAction(Action{ID: "hyped", Output: "dave snap-calls the all-in", Confidence: 0.8}, nil, events)

	require.True(t, res.Success)
	require.NotNil(t, res.FeedbackSignal)
	require.NotNil(t, res.Reinforcement)
	assert.Equal(t, "hyped", res.FeedbackSignal.ActionID)
	assert.Greater(t, res.FeedbackSignal.HypeLevel, 0.0)
}

func TestProcessActionAudited(t *testing.T) {
	h := setupOrchestrator(t)

	h.orch.ProcessAction(Action{ID: "logged", Output: "eve checks in the dark", Confidence: 0.2}, nil, nil)

	entries, err := h.auditLog.Recent(5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "logged", entries[0].ActionID)
	assert.Equal(t, "deferred", entries[0].Decision)
	assert.NotEmpty(t, entries[0].SignalsJSON, "scorer inputs are kept for replay")
}

func TestProcessActionPriorTelemetry(t *testing.T) {
	h := setupOrchestrator(t)

	calm := h.orch.ProcessAction(Action{ID: "calm", Output: "frank raises to 300 from the button", Confidence: 0.9}, nil, nil)
	shaky := h.orch.ProcessAction(Action{ID: "shaky", Output: "frank raises to 400 from the button", Confidence: 0.9},
		&hallucination.Signals{LogProbability: -6.5, Entropy: 0.95}, nil)

	require.True(t, calm.Success)
	require.True(t, shaky.Success)
	assert.Greater(t, shaky.Hallucination.Score, calm.Hallucination.Score,
		"weak generation telemetry raises the score")
}

// #endregion test-process

// #region test-gate

// completeSuite seeds and runs one suite where every case scores fixed.
func completeSuite(t *testing.T, h *harness, suiteID string, fixed float64) {
	t.Helper()
	h.evalMgr.SetEvaluator(evals.CaseConsistency, func(evals.Case) (float64, error) { return fixed, nil })
	var cases []evals.Case
	for _, id := range []string{suiteID + "-c1", suiteID + "-c2", suiteID + "-c3"} {
		cases = append(cases, evals.Case{
			ID: id, Type: evals.CaseConsistency,
			Input: "q", ExpectedBehavior: "stays on topic", GeneratedOutput: "a",
			Score: evals.PlaceholderScore,
		})
	}
	require.NoError(t, h.evalStore.AddCases(suiteID, cases))
	_, err := h.evalMgr.RunSuite(suiteID)
	require.NoError(t, err)
}

func TestRunTrainingGateAllClear(t *testing.T) {
	h := setupOrchestrator(t)
	completeSuite(t, h, "suite-good", 0.9)

	gate, err := h.orch.RunTrainingGate()
	require.NoError(t, err)
	assert.True(t, gate.CanProceed)
	assert.True(t, gate.HallucinationStatus.Favorable)
	assert.True(t, gate.FeedbackStatus.Favorable)
}

func TestRunTrainingGateBlockedWithoutSuites(t *testing.T) {
	h := setupOrchestrator(t)

	gate, err := h.orch.RunTrainingGate()
	require.NoError(t, err)
	assert.False(t, gate.CanProceed)
	assert.Contains(t, gate.Reason, "evaluations")
}

func TestRunTrainingGateBlockedByRecentRisk(t *testing.T) {
	h := setupOrchestrator(t)
	completeSuite(t, h, "suite-good", 0.9)

	// A run of ungrounded low-confidence actions drives the recent mean up
	for _, id := range []string{"r1", "r2", "r3", "r4"} {
		res := h.orch.ProcessAction(Action{ID: id, Output: "wild unsupported claim about " + id, Confidence: 0.2}, nil, nil)
		require.True(t, res.Success)
	}

	gate, err := h.orch.RunTrainingGate()
	require.NoError(t, err)
	assert.False(t, gate.CanProceed)
	assert.False(t, gate.HallucinationStatus.Favorable)
	assert.Contains(t, gate.Reason, "hallucination")
}

// #endregion test-gate

// #region test-status

func TestStatusWarnsWithoutEvalCoverage(t *testing.T) {
	h := setupOrchestrator(t)

	status, err := h.orch.Status()
	require.NoError(t, err)
	assert.Equal(t, HealthWarning, status.Evaluation)
	assert.Equal(t, HealthWarning, status.Overall, "overall is the worst subsystem")
	assert.Equal(t, HealthHealthy, status.Provenance)
}

func TestStatusCriticalOnRollbackScores(t *testing.T) {
	h := setupOrchestrator(t)
	completeSuite(t, h, "suite-bad", 0.2)

	status, err := h.orch.Status()
	require.NoError(t, err)
	assert.Equal(t, HealthCritical, status.Evaluation)
	assert.Equal(t, HealthCritical, status.Overall)
}

func TestStatusHealthyWhenAllClear(t *testing.T) {
	h := setupOrchestrator(t)
	completeSuite(t, h, "suite-good", 0.9)

	status, err := h.orch.Status()
	require.NoError(t, err)
	assert.Equal(t, HealthHealthy, status.Overall)
}

func TestStatusFlagsSuspiciousProvenance(t *testing.T) {
	h := setupOrchestrator(t)
	completeSuite(t, h, "suite-good", 0.9)

	res := h.orch.ProcessAction(Action{ID: "sketchy", Output: "somebody definitely cheated", Confidence: 0.1}, nil, nil)
	require.True(t, res.Success)

	status, err := h.orch.Status()
	require.NoError(t, err)
	assert.Equal(t, HealthWarning, status.Provenance)

	chains, err := h.orch.FindSuspiciousChains()
	require.NoError(t, err)
	require.Len(t, chains, 1)
	assert.Equal(t, "sketchy", chains[0].Chain[0])
}

// #endregion test-status
