package feedback

// #region imports
import "time"

// #endregion

// #region events

// EventType enumerates audience reaction events from the chat bridge.
type EventType string

const (
	EventMessage EventType = "message"
	EventEmote   EventType = "emote"
	EventClip    EventType = "clip"
)

// ChatEvent is one raw audience reaction.
type ChatEvent struct {
	Type      EventType
	Content   string
	Timestamp time.Time
}

// #endregion events

// #region signal

// Signal is the bounded classification of one batch of chat events for
// one action.
type Signal struct {
	ActionID  string
	Positive  float64 // [0, 1] share of positive reactions
	Negative  float64 // [0, 1] share of negative reactions
	HypeLevel float64 // [0, 1]
	Timestamp time.Time
}

// Aggregate is the running per-action accumulation of signals.
type Aggregate struct {
	ActionID   string
	Positive   float64
	Negative   float64
	HypeSum    float64
	HypeSqSum  float64 // for volatility
	Batches    int
	EventCount int
	FirstSeen  time.Time
	LastSeen   time.Time
}

// #endregion signal

// #region reinforcement

// Reinforcement holds the bounded behavior deltas derived from audience
// reaction. All fields are clamped and decay with time since the last
// observed reaction.
type Reinforcement struct {
	TrustDelta           float64
	ConfidenceAdjustment float64
	PacingAdjustment     float64
	ToneAdjustment       float64
	DifficultyAdjustment float64
}

// #endregion reinforcement

// #region stats

// ActionRank pairs an action with its positive ratio for dashboards.
type ActionRank struct {
	ActionID      string
	PositiveRatio float64
	MeanHype      float64
}

// Stats is the aggregate health rollup.
type Stats struct {
	ActionsTracked    int
	MeanPositiveRatio float64
	MeanHype          float64
	TopActions        []ActionRank
	BottomActions     []ActionRank
}

// #endregion stats

// #region config

// Config bounds reinforcement so a single viral event cannot run away.
type Config struct {
	MaxTrustDelta      float64
	MaxConfidenceDelta float64
	MaxPacingDelta     float64
	MaxToneDelta       float64
	DecayHalfLifeHours float64
}

// DefaultConfig returns sensible bounds.
func DefaultConfig() Config {
	return Config{
		MaxTrustDelta:      0.1,
		MaxConfidenceDelta: 0.1,
		MaxPacingDelta:     0.2,
		MaxToneDelta:       0.2,
		DecayHalfLifeHours: 24,
	}
}

// #endregion config
