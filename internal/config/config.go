package config

// #region imports
import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// #endregion

// #region config

// Config bundles every tunable threshold in the governance loop.
// The numeric defaults are hand-tuned operating points, not protocol
// constants — deployments override them via cognition.toml.
type Config struct {
	DBPath   string `toml:"db_path"`
	LogLevel string `toml:"log_level"`

	Provenance    ProvenanceConfig    `toml:"provenance"`
	Hallucination HallucinationConfig `toml:"hallucination"`
	Evals         EvalsConfig         `toml:"evals"`
	Feedback      FeedbackConfig      `toml:"feedback"`
	Loop          LoopConfig          `toml:"loop"`
}

// ProvenanceConfig holds thresholds for the causal memory store.
type ProvenanceConfig struct {
	SuspiciousConfidence float64 `toml:"suspicious_confidence"` // self-generated nodes below this are flagged
	PruneMaxAgeHours     float64 `toml:"prune_max_age_hours"`   // 0 disables age-based pruning
}

// HallucinationConfig holds risk-band cutoffs and contribution weights.
type HallucinationConfig struct {
	MediumRisk float64 `toml:"medium_risk"` // score >= this is at least medium
	HighRisk   float64 `toml:"high_risk"`   // score >= this is high; defer

	ContradictionWeight float64 `toml:"contradiction_weight"` // added per contradiction
	ContradictionCap    float64 `toml:"contradiction_cap"`    // total contradiction contribution cap
}

// EvalsConfig holds case-generation odds and training-gate bands.
type EvalsConfig struct {
	ConsistencyChance    float64 `toml:"consistency_chance"`
	PersonaDriftChance   float64 `toml:"persona_drift_chance"`
	HallucinationBelow   float64 `toml:"hallucination_below"` // emit a hallucination case when confidence < this
	CasePassThreshold    float64 `toml:"case_pass_threshold"`
	GateRollbackBelow    float64 `toml:"gate_rollback_below"`
	GateProceedAt        float64 `toml:"gate_proceed_at"`
	HeuristicFailScore   float64 `toml:"heuristic_fail_score"` // conservative score recorded when an evaluator fails
}

// FeedbackConfig bounds reinforcement so one viral event cannot run away.
type FeedbackConfig struct {
	MaxTrustDelta      float64 `toml:"max_trust_delta"`
	MaxConfidenceDelta float64 `toml:"max_confidence_delta"`
	MaxPacingDelta     float64 `toml:"max_pacing_delta"`
	MaxToneDelta       float64 `toml:"max_tone_delta"`
	DecayHalfLifeHours float64 `toml:"decay_half_life_hours"`
}

// LoopConfig holds the orchestrator's health cutoffs.
type LoopConfig struct {
	WarnAvgRisk     float64 `toml:"warn_avg_risk"`     // recent mean risk above this → warning
	CriticalAvgRisk float64 `toml:"critical_avg_risk"` // recent mean risk above this → critical
	RiskWindow      int     `toml:"risk_window"`       // number of recent actions in the health window
}

// #endregion config

// #region defaults

// Default returns the operating-point defaults.
func Default() Config {
	return Config{
		DBPath:   "cognition.db",
		LogLevel: "info",
		Provenance: ProvenanceConfig{
			SuspiciousConfidence: 0.4,
			PruneMaxAgeHours:     0,
		},
		Hallucination: HallucinationConfig{
			MediumRisk:          0.4,
			HighRisk:            0.8,
			ContradictionWeight: 0.3,
			ContradictionCap:    0.6,
		},
		Evals: EvalsConfig{
			ConsistencyChance:  0.3,
			PersonaDriftChance: 0.2,
			HallucinationBelow: 0.7,
			CasePassThreshold:  0.55,
			GateRollbackBelow:  0.5,
			GateProceedAt:      0.7,
			HeuristicFailScore: 0.3,
		},
		Feedback: FeedbackConfig{
			MaxTrustDelta:      0.1,
			MaxConfidenceDelta: 0.1,
			MaxPacingDelta:     0.2,
			MaxToneDelta:       0.2,
			DecayHalfLifeHours: 24,
		},
		Loop: LoopConfig{
			WarnAvgRisk:     0.5,
			CriticalAvgRisk: 0.75,
			RiskWindow:      20,
		},
	}
}

// #endregion defaults

// #region load

// Load reads a TOML config file over the defaults.
// A missing file is not an error — defaults apply.
// COGNITION_DB overrides db_path from the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if v := os.Getenv("COGNITION_DB"); v != "" {
		cfg.DBPath = v
	}
	return cfg, nil
}

// #endregion load
