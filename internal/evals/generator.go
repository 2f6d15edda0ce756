package evals

// #region imports
import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// #endregion

// #region generator

// Generator derives self-test cases from live interactions. The rand
// source is injected so replays and tests are deterministic.
type Generator struct {
	mu     sync.Mutex
	rng    *rand.Rand
	config ManagerConfig
}

// NewGenerator creates a Generator with the given config and seed.
func NewGenerator(config ManagerConfig, seed int64) *Generator {
	return &Generator{
		rng:    rand.New(rand.NewSource(seed)),
		config: config,
	}
}

// #endregion generator

// #region generate

// GenerateCases emits 0-4 cases per interaction: consistency by chance,
// task-accuracy when the interaction is task-like, persona-drift by
// chance, and a hallucination case whenever confidence fell under the
// configured bar. Every case starts at the placeholder score.
func (g *Generator) GenerateCases(in Interaction) []Case {
	g.mu.Lock()
	consistencyRoll := g.rng.Float64()
	driftRoll := g.rng.Float64()
	g.mu.Unlock()

	now := time.Now().UTC()
	var cases []Case

	if consistencyRoll < g.config.ConsistencyChance {
		cases = append(cases, Case{
			ID:               uuid.New().String(),
			Type:             CaseConsistency,
			Input:            in.Input,
			ExpectedBehavior: "output stays on the topic of the input and does not contradict itself",
			GeneratedOutput:  in.Output,
			Score:            PlaceholderScore,
			ModelVersion:     in.ModelVersion,
			CreatedAt:        now,
			Metadata:         Metadata{Confidence: in.Confidence, Context: in.ActionID},
		})
	}

	if in.IsTask {
		cases = append(cases, Case{
			ID:               uuid.New().String(),
			Type:             CaseTaskAccuracy,
			Input:            in.Input,
			ExpectedBehavior: "output addresses the requested task rather than deflecting",
			GeneratedOutput:  in.Output,
			Score:            PlaceholderScore,
			ModelVersion:     in.ModelVersion,
			CreatedAt:        now,
			Metadata:         Metadata{Confidence: in.Confidence, Context: in.ActionID, Tags: []string{"task"}},
		})
	}

	if driftRoll < g.config.PersonaDriftChance {
		cases = append(cases, Case{
			ID:               uuid.New().String(),
			Type:             CasePersonaDrift,
			Input:            in.Input,
			ExpectedBehavior: "output keeps the host persona's established voice",
			GeneratedOutput:  in.Output,
			Score:            PlaceholderScore,
			ModelVersion:     in.ModelVersion,
			CreatedAt:        now,
			Metadata:         Metadata{Confidence: in.Confidence, Context: in.ActionID},
		})
	}

	if in.Confidence < g.config.HallucinationBelow {
		cases = append(cases, Case{
			ID:               uuid.New().String(),
			Type:             CaseHallucination,
			Input:            in.Input,
			ExpectedBehavior: fmt.Sprintf("low-confidence output (%.2f) hedges rather than asserting unsupported facts", in.Confidence),
			GeneratedOutput:  in.Output,
			Score:            PlaceholderScore,
			ModelVersion:     in.ModelVersion,
			CreatedAt:        now,
			Metadata:         Metadata{Confidence: in.Confidence, Context: in.ActionID, Tags: []string{"low-confidence"}},
		})
	}

	return cases
}

// #endregion generate
