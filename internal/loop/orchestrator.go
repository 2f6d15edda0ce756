package loop

// #region imports
import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aceylabs/cognition/internal/audit"
	"github.com/aceylabs/cognition/internal/evals"
	"github.com/aceylabs/cognition/internal/feedback"
	"github.com/aceylabs/cognition/internal/hallucination"
	"github.com/aceylabs/cognition/internal/provenance"
	"github.com/aceylabs/cognition/internal/support"
)

// #endregion

// #region orchestrator

// Orchestrator drives each action through the governed pipeline:
// provenance write, support assessment, risk scoring, policy rewrite,
// eval generation, optional feedback fold, audit. It holds no pipeline
// state of its own; the stores are the authority.
type Orchestrator struct {
	provStore  *provenance.Store
	matcher    *support.Matcher
	scorer     *hallucination.Scorer
	evalMgr    *evals.Manager
	aggregator *feedback.Aggregator
	auditLog   *audit.Log
	logger     *zap.Logger
	config     Config
}

// NewOrchestrator wires the five subsystems together.
func NewOrchestrator(
	provStore *provenance.Store,
	matcher *support.Matcher,
	scorer *hallucination.Scorer,
	evalMgr *evals.Manager,
	aggregator *feedback.Aggregator,
	auditLog *audit.Log,
	logger *zap.Logger,
	config Config,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		provStore:  provStore,
		matcher:    matcher,
		scorer:     scorer,
		evalMgr:    evalMgr,
		aggregator: aggregator,
		auditLog:   auditLog,
		logger:     logger,
		config:     config,
	}
}

// #endregion orchestrator

// #region process

// ProcessAction runs one action through the full loop. priorSignals may
// carry generation-time telemetry (log probability, entropy); nil means
// none available. chatEvents, when present, are folded into the feedback
// aggregate for this action after governance completes.
//
// On any subsystem failure the action is marked failed, later stages are
// skipped, and the final output falls back to the deferral rewrite so a
// broken pipeline never ships an ungoverned claim.
func (o *Orchestrator) ProcessAction(action Action, priorSignals *hallucination.Signals, chatEvents []feedback.ChatEvent) ActionResult {
	start := time.Now()
	res := ActionResult{Stage: StageReceived}

	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	if action.Type == "" {
		action.Type = provenance.SourceSelfGenerated
	}

	// Snapshot memories before the write so the new claim cannot count as
	// its own support.
	existing, err := o.provStore.All()
	if err != nil {
		return o.fail(res, action, start, fmt.Errorf("snapshot memories: %w", err))
	}

	rec := provenance.Record{
		MemoryID:   action.ID,
		Source:     action.Type,
		Confidence: action.Confidence,
		CausedBy:   action.CausedBy,
		Content:    action.Output,
	}
	if err := o.provStore.AddMemory(rec); err != nil {
		return o.fail(res, action, start, fmt.Errorf("record provenance: %w", err))
	}
	stored, err := o.provStore.Get(action.ID)
	if err != nil {
		return o.fail(res, action, start, err)
	}
	res.Provenance = stored
	res.Stage = StageProvenanceRecorded

	signals, err := o.buildSignals(action, existing, priorSignals)
	if err != nil {
		return o.fail(res, action, start, err)
	}
	res.Hallucination = o.scorer.Score(signals)
	res.Stage = StageRiskScored

	res.Policy = o.scorer.PolicyFor(res.Hallucination)
	res.FinalOutput = hallucination.ApplyPolicy(res.Policy, action.Output)
	res.Stage = StagePolicyApplied

	cases, err := o.evalMgr.GenerateAndStore(liveSuiteID(start), evals.Interaction{
		ActionID:     action.ID,
		Input:        action.Input,
		Output:       action.Output,
		Confidence:   action.Confidence,
		IsTask:       action.IsTask,
		ModelVersion: action.ModelVersion,
	})
	if err != nil {
		return o.fail(res, action, start, fmt.Errorf("generate evals: %w", err))
	}
	res.EvalCases = cases
	res.Stage = StageEvalGenerated

	if len(chatEvents) > 0 {
		sig, err := o.aggregator.ProcessChatEvents(chatEvents, action.ID)
		if err != nil {
			return o.fail(res, action, start, fmt.Errorf("fold feedback: %w", err))
		}
		reinf, err := o.aggregator.Reinforcement(action.ID)
		if err != nil {
			return o.fail(res, action, start, fmt.Errorf("reinforcement: %w", err))
		}
		res.FeedbackSignal = &sig
		res.Reinforcement = &reinf
		res.Stage = StageFeedbackFolded
	}

	res.Success = true
	res.Stage = StageComplete
	res.LoopTime = time.Since(start)

	o.audit(action, res, signals)
	o.logger.Info("action processed",
		zap.String("action_id", action.ID),
		zap.Float64("risk_score", res.Hallucination.Score),
		zap.String("risk", string(res.Hallucination.Risk)),
		zap.String("decision", decisionFor(res)),
		zap.Duration("loop_time", res.LoopTime),
	)
	return res
}

// buildSignals assembles the scorer inputs from the claim text, the
// pre-write memory snapshot, and the store's ancestry confidence. Prior
// telemetry, when present, contributes log probability and entropy.
func (o *Orchestrator) buildSignals(action Action, existing []provenance.Record, prior *hallucination.Signals) (hallucination.Signals, error) {
	memories := make([]support.Memory, 0, len(existing))
	for _, r := range existing {
		memories = append(memories, support.Memory{ID: r.MemoryID, Content: r.Content, Confidence: r.Confidence})
	}
	ev := o.matcher.Assess(action.Output, memories)

	ancestry, err := o.provStore.AncestryConfidence(action.ID)
	if err != nil {
		return hallucination.Signals{}, fmt.Errorf("ancestry confidence: %w", err)
	}

	sig := hallucination.Signals{
		Confidence:         ancestry,
		MemoryMatches:      ev.Matches,
		ContradictionCount: ev.Contradictions,
		CreativityMarkers:  hallucination.CreativityMarkers(action.Output),
		FactualDensity:     hallucination.FactualDensity(action.Output),
	}
	if prior != nil {
		sig.LogProbability = prior.LogProbability
		sig.Entropy = prior.Entropy
	}
	return sig, nil
}

// fail finalizes a mid-pipeline failure: the output falls back to the
// deferral rewrite and the decision log records how far the action got.
func (o *Orchestrator) fail(res ActionResult, action Action, start time.Time, err error) ActionResult {
	res.Success = false
	res.FailureReason = err.Error()
	res.Policy = o.scorer.PolicyFor(hallucination.Result{Risk: hallucination.RiskHigh})
	res.FinalOutput = hallucination.ApplyPolicy(res.Policy, action.Output)
	res.LoopTime = time.Since(start)

	o.audit(action, res, hallucination.Signals{})
	o.logger.Warn("action failed",
		zap.String("action_id", action.ID),
		zap.String("stage", string(res.Stage)),
		zap.Error(err),
	)
	return res
}

// audit writes the decision log entry. Best effort: a decision that
// already happened is not un-made because the log write failed.
func (o *Orchestrator) audit(action Action, res ActionResult, signals hallucination.Signals) {
	signalsJSON, _ := json.Marshal(signals)
	entry := audit.Entry{
		ActionID:    action.ID,
		ActionType:  string(action.Type),
		Stage:       string(res.Stage),
		Risk:        string(res.Hallucination.Risk),
		RiskScore:   res.Hallucination.Score,
		Decision:    decisionFor(res),
		Reason:      res.FailureReason,
		SignalsJSON: string(signalsJSON),
		Input:       action.Input,
		FinalOutput: res.FinalOutput,
	}
	if err := o.auditLog.Record(entry); err != nil {
		o.logger.Error("audit write failed", zap.String("action_id", action.ID), zap.Error(err))
	}
}

func decisionFor(res ActionResult) string {
	switch {
	case !res.Success:
		return "failed"
	case res.Policy.ShouldDefer:
		return "deferred"
	case res.Policy.ShouldHedge:
		return "hedged"
	default:
		return "shipped"
	}
}

// liveSuiteID buckets continuously generated eval cases into one suite
// per day.
func liveSuiteID(t time.Time) string {
	return "live-" + t.UTC().Format("2006-01-02")
}

// #endregion process

// #region training-gate

// RunTrainingGate combines the three go/no-go inputs: the evaluation
// gate, recent hallucination risk, and audience feedback health. All
// three must be favorable for training to proceed.
func (o *Orchestrator) RunTrainingGate() (GateResult, error) {
	evalStatus, err := o.evalMgr.TrainingGateStatus()
	if err != nil {
		return GateResult{}, fmt.Errorf("evaluation gate: %w", err)
	}

	riskHealth, _, err := o.riskHealth()
	if err != nil {
		return GateResult{}, err
	}

	stats, err := o.aggregator.Stats()
	if err != nil {
		return GateResult{}, fmt.Errorf("feedback health: %w", err)
	}
	fbHealth := SubsystemHealth{Favorable: true, Detail: "no audience feedback recorded"}
	if stats.ActionsTracked > 0 {
		fbHealth.Detail = fmt.Sprintf("mean positive ratio %.2f across %d actions", stats.MeanPositiveRatio, stats.ActionsTracked)
		fbHealth.Favorable = stats.MeanPositiveRatio >= 0.4
	}

	result := GateResult{
		EvaluationStatus:    evalStatus,
		HallucinationStatus: riskHealth,
		FeedbackStatus:      fbHealth,
		CanProceed:          evalStatus.CanProceed && riskHealth.Favorable && fbHealth.Favorable,
	}

	var blocked []string
	if !evalStatus.CanProceed {
		blocked = append(blocked, "evaluations: "+evalStatus.Reason)
	}
	if !riskHealth.Favorable {
		blocked = append(blocked, "hallucination: "+riskHealth.Detail)
	}
	if !fbHealth.Favorable {
		blocked = append(blocked, "feedback: "+fbHealth.Detail)
	}
	if result.CanProceed {
		result.Reason = "all gates clear: " + evalStatus.Reason
	} else {
		result.Reason = strings.Join(blocked, "; ")
	}

	o.logger.Info("training gate evaluated",
		zap.Bool("can_proceed", result.CanProceed),
		zap.String("reason", result.Reason),
	)
	return result, nil
}

// riskHealth reports the mean risk score over the recent decision
// window. No recent decisions is favorable — nothing indicates risk.
func (o *Orchestrator) riskHealth() (SubsystemHealth, float64, error) {
	scores, err := o.auditLog.RecentRiskScores(o.config.RiskWindow)
	if err != nil {
		return SubsystemHealth{}, 0, fmt.Errorf("recent risk: %w", err)
	}
	if len(scores) == 0 {
		return SubsystemHealth{Favorable: true, Detail: "no recent decisions"}, 0, nil
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	avg := sum / float64(len(scores))
	h := SubsystemHealth{
		Favorable: avg < o.config.WarnAvgRisk,
		Detail:    fmt.Sprintf("mean risk %.2f over last %d decisions", avg, len(scores)),
	}
	return h, avg, nil
}

// #endregion training-gate

// #region status

// Status rolls every subsystem into one health report. The overall
// verdict is the worst individual verdict.
func (o *Orchestrator) Status() (SystemStatus, error) {
	status := SystemStatus{
		Provenance:    HealthHealthy,
		Hallucination: HealthHealthy,
		Evaluation:    HealthHealthy,
		Feedback:      HealthHealthy,
		Detail:        make(map[string]string),
	}

	chains, err := o.provStore.FindSuspiciousChains()
	if err != nil {
		return SystemStatus{}, fmt.Errorf("suspicious chains: %w", err)
	}
	switch {
	case len(chains) > 3:
		status.Provenance = HealthCritical
	case len(chains) > 0:
		status.Provenance = HealthWarning
	}
	status.Detail["provenance"] = fmt.Sprintf("%d suspicious chains", len(chains))

	riskHealth, avg, err := o.riskHealth()
	if err != nil {
		return SystemStatus{}, err
	}
	switch {
	case avg >= o.config.CriticalAvgRisk:
		status.Hallucination = HealthCritical
	case !riskHealth.Favorable:
		status.Hallucination = HealthWarning
	}
	status.Detail["hallucination"] = riskHealth.Detail

	evalStatus, err := o.evalMgr.TrainingGateStatus()
	if err != nil {
		return SystemStatus{}, fmt.Errorf("evaluation status: %w", err)
	}
	switch {
	case evalStatus.CanProceed:
		// healthy
	case strings.Contains(evalStatus.Reason, "rollback"):
		status.Evaluation = HealthCritical
	default:
		status.Evaluation = HealthWarning
	}
	status.Detail["evaluation"] = evalStatus.Reason

	stats, err := o.aggregator.Stats()
	if err != nil {
		return SystemStatus{}, fmt.Errorf("feedback status: %w", err)
	}
	if stats.ActionsTracked > 0 {
		switch {
		case stats.MeanPositiveRatio < 0.3:
			status.Feedback = HealthCritical
		case stats.MeanPositiveRatio < 0.5:
			status.Feedback = HealthWarning
		}
	}
	status.Detail["feedback"] = fmt.Sprintf("%d actions tracked, mean positive ratio %.2f", stats.ActionsTracked, stats.MeanPositiveRatio)

	status.Overall = status.Provenance
	status.Overall = worse(status.Overall, status.Hallucination)
	status.Overall = worse(status.Overall, status.Evaluation)
	status.Overall = worse(status.Overall, status.Feedback)
	return status, nil
}

// FindSuspiciousChains surfaces low-confidence self-generated ancestry
// for operator review.
func (o *Orchestrator) FindSuspiciousChains() ([]provenance.SuspiciousChain, error) {
	return o.provStore.FindSuspiciousChains()
}

// #endregion status
