package feedback

// #region imports
import (
	"fmt"
	"math"
	"sort"
	"time"
)

// #endregion

// #region aggregator

// Aggregator turns raw chat events into bounded feedback signals and
// reinforcement deltas.
type Aggregator struct {
	store  *Store
	config Config
}

// NewAggregator creates an Aggregator over the given store.
func NewAggregator(store *Store, config Config) *Aggregator {
	return &Aggregator{store: store, config: config}
}

// #endregion aggregator

// #region process

// ProcessChatEvents classifies a batch of events for one action into a
// single bounded Signal and folds it into the running per-action
// aggregate. The per-batch signal is a share, not a raw count, so the
// signal stays in [0,1] no matter how loud the chat gets.
func (a *Aggregator) ProcessChatEvents(events []ChatEvent, actionID string) (Signal, error) {
	sig := Signal{ActionID: actionID, Timestamp: time.Now().UTC()}
	if len(events) == 0 {
		return sig, nil
	}

	var pos, neg, hype, peak float64
	for _, ev := range events {
		c := classifyEvent(ev)
		pos += c.positive
		neg += c.negative
		hype += c.hype
		if c.hype > peak {
			peak = c.hype
		}
	}

	n := float64(len(events))
	sig.Positive = clamp01(pos / n)
	sig.Negative = clamp01(neg / n)
	// Mean hype with a peak bump: one explosive moment matters
	sig.HypeLevel = clamp01(0.7*(hype/n) + 0.3*peak)

	if err := a.store.Accumulate(sig, len(events)); err != nil {
		return Signal{}, err
	}
	return sig, nil
}

// #endregion process

// #region reinforcement

// Reinforcement maps an action's aggregate into bounded behavior deltas.
// Deltas scale with the positive-to-negative ratio and hype level,
// decay with time since the last reaction, and are clamped so no single
// viral event can run reinforcement away.
func (a *Aggregator) Reinforcement(actionID string) (Reinforcement, error) {
	agg, found, err := a.store.Get(actionID)
	if err != nil {
		return Reinforcement{}, err
	}
	if !found || agg.Batches == 0 {
		return Reinforcement{}, nil
	}
	return a.reinforcementFrom(agg, time.Now().UTC()), nil
}

func (a *Aggregator) reinforcementFrom(agg Aggregate, now time.Time) Reinforcement {
	// Signed crowd verdict in (-1, 1); +1 smooths a silent crowd to zero
	ratio := (agg.Positive - agg.Negative) / (agg.Positive + agg.Negative + 1)

	meanHype := agg.HypeSum / float64(agg.Batches)
	// Volatility of hype across batches
	variance := agg.HypeSqSum/float64(agg.Batches) - meanHype*meanHype
	if variance < 0 {
		variance = 0
	}
	volatility := math.Sqrt(variance)

	decay := 1.0
	if a.config.DecayHalfLifeHours > 0 {
		ageHours := now.Sub(agg.LastSeen).Hours()
		if ageHours > 0 {
			decay = math.Exp(-ageHours * math.Ln2 / a.config.DecayHalfLifeHours)
		}
	}

	return Reinforcement{
		TrustDelta:           clampRange(ratio*a.config.MaxTrustDelta*decay, a.config.MaxTrustDelta),
		ConfidenceAdjustment: clampRange(ratio*(0.5+0.5*meanHype)*a.config.MaxConfidenceDelta*decay, a.config.MaxConfidenceDelta),
		PacingAdjustment:     clampRange((meanHype-0.5)*2*a.config.MaxPacingDelta*decay, a.config.MaxPacingDelta),
		ToneAdjustment:       clampRange(ratio*a.config.MaxToneDelta*decay, a.config.MaxToneDelta),
		DifficultyAdjustment: clampRange((meanHype-volatility-0.3)*a.config.MaxPacingDelta*decay, a.config.MaxPacingDelta),
	}
}

// #endregion reinforcement

// #region stats

// Stats rolls up aggregate feedback health for dashboards and the
// orchestrator's health report. Up to five top and bottom actions are
// ranked by positive ratio.
func (a *Aggregator) Stats() (Stats, error) {
	aggs, err := a.store.All()
	if err != nil {
		return Stats{}, fmt.Errorf("feedback stats: %w", err)
	}

	stats := Stats{ActionsTracked: len(aggs)}
	if len(aggs) == 0 {
		return stats, nil
	}

	ranks := make([]ActionRank, 0, len(aggs))
	var ratioSum, hypeSum float64
	for _, agg := range aggs {
		ratio := 0.5
		if agg.Positive+agg.Negative > 0 {
			ratio = agg.Positive / (agg.Positive + agg.Negative)
		}
		meanHype := 0.0
		if agg.Batches > 0 {
			meanHype = agg.HypeSum / float64(agg.Batches)
		}
		ratioSum += ratio
		hypeSum += meanHype
		ranks = append(ranks, ActionRank{ActionID: agg.ActionID, PositiveRatio: ratio, MeanHype: meanHype})
	}
	stats.MeanPositiveRatio = ratioSum / float64(len(aggs))
	stats.MeanHype = hypeSum / float64(len(aggs))

	sort.Slice(ranks, func(i, j int) bool { return ranks[i].PositiveRatio > ranks[j].PositiveRatio })
	top := len(ranks)
	if top > 5 {
		top = 5
	}
	stats.TopActions = append(stats.TopActions, ranks[:top]...)
	for i := len(ranks) - 1; i >= 0 && len(stats.BottomActions) < 5; i-- {
		stats.BottomActions = append(stats.BottomActions, ranks[i])
	}
	return stats, nil
}

// #endregion stats
