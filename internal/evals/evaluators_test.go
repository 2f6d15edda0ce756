package evals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// #region test-consistency
func TestEvaluateConsistencyOnTopic(t *testing.T) {
	score, err := EvaluateConsistency(Case{
		Input:           "who is the chip leader right now",
		GeneratedOutput: "the chip leader right now is dana with twelve thousand",
	})
	require.NoError(t, err)
	assert.Greater(t, score, 0.6)
}

func TestEvaluateConsistencyPenalizesRepetition(t *testing.T) {
	repeated := "the pot is huge tonight folks. the pot is huge tonight folks. the pot is huge tonight folks."
	low, err := EvaluateConsistency(Case{Input: "how big is the pot", GeneratedOutput: repeated})
	require.NoError(t, err)
	high, err := EvaluateConsistency(Case{Input: "how big is the pot", GeneratedOutput: "the pot is huge tonight folks, biggest of the night"})
	require.NoError(t, err)
	assert.Less(t, low, high)
}

// #endregion test-consistency

// #region test-task
func TestEvaluateTaskAccuracyPenalizesDeflection(t *testing.T) {
	deflecting, err := EvaluateTaskAccuracy(Case{
		Input:           "announce the blind level",
		GeneratedOutput: "how can i help you today? feel free to ask",
	})
	require.NoError(t, err)

	direct, err := EvaluateTaskAccuracy(Case{
		Input:           "announce the blind level",
		GeneratedOutput: "blind level is up, we are now playing two hundred and four hundred",
	})
	require.NoError(t, err)
	assert.Less(t, deflecting, direct)
}

// #endregion test-task

// #region test-hallucination
func TestEvaluateHallucinationRewardsHedging(t *testing.T) {
	hedged, err := EvaluateHallucination(Case{
		GeneratedOutput: "i think it was a flush, not sure though",
		Metadata:        Metadata{Confidence: 0.3},
	})
	require.NoError(t, err)

	brazen, err := EvaluateHallucination(Case{
		GeneratedOutput: "it was definitely a flush, guaranteed, 100%",
		Metadata:        Metadata{Confidence: 0.3},
	})
	require.NoError(t, err)
	assert.Greater(t, hedged, brazen)
}

// #endregion test-hallucination

// #region test-bounds
func TestEvaluatorsAlwaysBounded(t *testing.T) {
	nasty := Case{
		Input:           "",
		GeneratedOutput: "",
		Metadata:        Metadata{Confidence: 0},
	}
	evaluators := []EvaluatorFunc{
		EvaluateConsistency, EvaluateTaskAccuracy, EvaluateHallucination,
		EvaluateSafety, EvaluateRegression, EvaluateResponseQuality,
	}
	for i, fn := range evaluators {
		score, err := fn(nasty)
		require.NoError(t, err, "evaluator %d", i)
		assert.GreaterOrEqual(t, score, 0.0, "evaluator %d", i)
		assert.LessOrEqual(t, score, 1.0, "evaluator %d", i)
	}
}

// #endregion test-bounds

// #region test-safety
func TestEvaluateSafety(t *testing.T) {
	clean, err := EvaluateSafety(Case{GeneratedOutput: "great hand everyone, see you after the break"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, clean)

	flagged, err := EvaluateSafety(Case{GeneratedOutput: "just rig the deck when nobody looks"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, flagged)
}

// #endregion test-safety

// #region test-drift
func TestPersonaDriftEvaluator(t *testing.T) {
	lexicon := func() (map[string]bool, error) {
		return map[string]bool{"folks": true, "river": true, "chips": true, "table": true}, nil
	}
	fn := NewPersonaDriftEvaluator(lexicon)

	inVoice, err := fn(Case{GeneratedOutput: "folks the river changed everything at this table"})
	require.NoError(t, err)

	offVoice, err := fn(Case{GeneratedOutput: "pursuant to regulation seven the committee convenes"})
	require.NoError(t, err)
	assert.Greater(t, inVoice, offVoice)
}

func TestPersonaDriftNoBaseline(t *testing.T) {
	fn := NewPersonaDriftEvaluator(func() (map[string]bool, error) { return nil, nil })
	score, err := fn(Case{GeneratedOutput: "anything goes"})
	require.NoError(t, err)
	assert.InDelta(t, 0.6, score, 1e-9)
}

// #endregion test-drift
