package replay

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aceylabs/cognition/internal/audit"
	"github.com/aceylabs/cognition/internal/hallucination"
)

func scoredEntry(t *testing.T, scorer *hallucination.Scorer, id string, sig hallucination.Signals) Entry {
	t.Helper()
	result := scorer.Score(sig)
	policy := scorer.PolicyFor(result)
	return Entry{
		ActionID:         id,
		Signals:          sig,
		ExpectedRisk:     string(result.Risk),
		ExpectedScore:    result.Score,
		ExpectedDecision: decisionFor(policy),
	}
}

func TestRunCleanReplay(t *testing.T) {
	scorer := hallucination.NewScorer(hallucination.DefaultScorerConfig())
	f := Fixture{
		Name: "nightly",
		Entries: []Entry{
			scoredEntry(t, scorer, "a1", hallucination.Signals{Confidence: 0.9, MemoryMatches: 3}),
			scoredEntry(t, scorer, "a2", hallucination.Signals{Confidence: 0.45, MemoryMatches: 1}),
			scoredEntry(t, scorer, "a3", hallucination.Signals{Confidence: 0.2, ContradictionCount: 2}),
		},
	}

	report := NewRunner(scorer).Run(f)
	assert.True(t, report.Clean(), "divergences: %+v", report.Divergences)
	assert.Equal(t, 3, report.Total)
}

func TestRunDetectsConfigDrift(t *testing.T) {
	recorded := hallucination.NewScorer(hallucination.DefaultScorerConfig())
	f := Fixture{Entries: []Entry{
		scoredEntry(t, recorded, "a1", hallucination.Signals{Confidence: 0.2, ContradictionCount: 1}),
	}}

	// Replaying under a different contradiction weight changes the score
	drifted := hallucination.DefaultScorerConfig()
	drifted.ContradictionWeight = 0.1
	report := NewRunner(hallucination.NewScorer(drifted)).Run(f)

	assert.False(t, report.Clean())
	require.NotEmpty(t, report.Divergences)
	assert.Equal(t, "a1", report.Divergences[0].ActionID)
}

func TestRunChecksOutputRewrite(t *testing.T) {
	scorer := hallucination.NewScorer(hallucination.DefaultScorerConfig())
	sig := hallucination.Signals{Confidence: 0.2} // low conf + no matches → high
	result := scorer.Score(sig)
	policy := scorer.PolicyFor(result)
	raw := "the river card was the ten of hearts"

	e := scoredEntry(t, scorer, "a1", sig)
	e.RawOutput = raw
	e.ExpectedOutput = hallucination.ApplyPolicy(policy, raw)

	report := NewRunner(scorer).Run(Fixture{Entries: []Entry{e}})
	assert.True(t, report.Clean())

	e.ExpectedOutput = raw // pretend the rewrite never happened
	report = NewRunner(scorer).Run(Fixture{Entries: []Entry{e}})
	assert.False(t, report.Clean())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	scorer := hallucination.NewScorer(hallucination.DefaultScorerConfig())
	f := Fixture{Name: "export", Entries: []Entry{
		scoredEntry(t, scorer, "a1", hallucination.Signals{Confidence: 0.8, MemoryMatches: 2}),
	}}

	path := filepath.Join(t.TempDir(), "fixture.json")
	require.NoError(t, Save(f, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, f, loaded)

	report := NewRunner(scorer).Run(loaded)
	assert.True(t, report.Clean())
}

func TestFromAuditLog(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	log, err := audit.NewLog(db)
	require.NoError(t, err)

	scorer := hallucination.NewScorer(hallucination.DefaultScorerConfig())
	sig := hallucination.Signals{Confidence: 0.9, MemoryMatches: 3}
	result := scorer.Score(sig)
	require.NoError(t, log.Record(audit.Entry{
		ActionID: "a1", ActionType: "self-generated", Stage: "complete",
		Risk: string(result.Risk), RiskScore: result.Score, Decision: "shipped",
		SignalsJSON: `{"Confidence":0.9,"MemoryMatches":3}`,
	}))
	require.NoError(t, log.Record(audit.Entry{
		ActionID: "a2", ActionType: "self-generated", Stage: "received",
		Decision: "failed", Reason: "duplicate id",
	}))

	f, err := FromAuditLog(log, "from-audit", 10)
	require.NoError(t, err)
	require.Len(t, f.Entries, 1, "failed decisions carry no scorer inputs")
	assert.Equal(t, "a1", f.Entries[0].ActionID)

	report := NewRunner(scorer).Run(f)
	assert.True(t, report.Clean())
}
