// Command cognition runs the cognitive governance loop for an AI table
// host: it records action provenance, scores hallucination risk, applies
// response policies, generates self-evaluation cases, folds audience
// feedback, and gates fine-tuning on the combined result.
package main

// #region imports
import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/aceylabs/cognition/internal/audit"
	"github.com/aceylabs/cognition/internal/config"
	"github.com/aceylabs/cognition/internal/evals"
	"github.com/aceylabs/cognition/internal/feedback"
	"github.com/aceylabs/cognition/internal/hallucination"
	"github.com/aceylabs/cognition/internal/logging"
	"github.com/aceylabs/cognition/internal/loop"
	"github.com/aceylabs/cognition/internal/persona"
	"github.com/aceylabs/cognition/internal/provenance"
	"github.com/aceylabs/cognition/internal/support"
)

// #endregion

// #region app

// app bundles the wired subsystems behind one open/close pair.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	db       *sql.DB
	orch     *loop.Orchestrator
	prov     *provenance.Store
	evalMgr  *evals.Manager
	evalSt   *evals.SuiteStore
	agg      *feedback.Aggregator
	auditLog *audit.Log
	persona  *persona.Store
	scorer   *hallucination.Scorer
}

func openApp(cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open db %s: %w", cfg.DBPath, err)
	}
	for _, pragma := range []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA busy_timeout=5000`,
		`PRAGMA foreign_keys=ON`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	prov, err := provenance.NewStore(db, cfg.Provenance.SuspiciousConfidence)
	if err != nil {
		db.Close()
		return nil, err
	}
	evalSt, err := evals.NewSuiteStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	fbStore, err := feedback.NewStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	auditLog, err := audit.NewLog(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	personaStore, err := persona.NewStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	scorer := hallucination.NewScorer(hallucination.ScorerConfig{
		MediumRisk:          cfg.Hallucination.MediumRisk,
		HighRisk:            cfg.Hallucination.HighRisk,
		ContradictionWeight: cfg.Hallucination.ContradictionWeight,
		ContradictionCap:    cfg.Hallucination.ContradictionCap,
	})
	evalCfg := evals.ManagerConfig{
		ConsistencyChance:  cfg.Evals.ConsistencyChance,
		PersonaDriftChance: cfg.Evals.PersonaDriftChance,
		HallucinationBelow: cfg.Evals.HallucinationBelow,
		CasePassThreshold:  cfg.Evals.CasePassThreshold,
		GateRollbackBelow:  cfg.Evals.GateRollbackBelow,
		GateProceedAt:      cfg.Evals.GateProceedAt,
		HeuristicFailScore: cfg.Evals.HeuristicFailScore,
	}
	evalMgr := evals.NewManager(evalSt, evals.NewGenerator(evalCfg, time.Now().UnixNano()), evalCfg, personaStore.Lexicon)
	agg := feedback.NewAggregator(fbStore, feedback.Config{
		MaxTrustDelta:      cfg.Feedback.MaxTrustDelta,
		MaxConfidenceDelta: cfg.Feedback.MaxConfidenceDelta,
		MaxPacingDelta:     cfg.Feedback.MaxPacingDelta,
		MaxToneDelta:       cfg.Feedback.MaxToneDelta,
		DecayHalfLifeHours: cfg.Feedback.DecayHalfLifeHours,
	})

	orch := loop.NewOrchestrator(
		prov,
		support.NewMatcher(support.DefaultMatcherConfig()),
		scorer,
		evalMgr,
		agg,
		auditLog,
		logger,
		loop.Config{
			WarnAvgRisk:     cfg.Loop.WarnAvgRisk,
			CriticalAvgRisk: cfg.Loop.CriticalAvgRisk,
			RiskWindow:      cfg.Loop.RiskWindow,
		},
	)

	return &app{
		cfg: cfg, logger: logger, db: db, orch: orch,
		prov: prov, evalMgr: evalMgr, evalSt: evalSt, agg: agg,
		auditLog: auditLog, persona: personaStore, scorer: scorer,
	}, nil
}

func (a *app) close() {
	a.logger.Sync()
	a.db.Close()
}

// #endregion app

// #region root

func main() {
	var cfgPath string

	root := &cobra.Command{
		Use:           "cognition",
		Short:         "Cognitive governance loop for the AI table host",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "cognition.toml", "path to TOML config")

	root.AddCommand(
		newProcessCmd(&cfgPath),
		newHostCmd(&cfgPath),
		newGateCmd(&cfgPath),
		newStatusCmd(&cfgPath),
		newSuspiciousCmd(&cfgPath),
		newSuitesCmd(&cfgPath),
		newReplayCmd(&cfgPath),
		newExportFixtureCmd(&cfgPath),
		newPersonaCmd(&cfgPath),
		newPruneCmd(&cfgPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// #endregion root
