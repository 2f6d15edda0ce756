package feedback

// #region imports
import (
	"database/sql"
	"fmt"
	"time"
)

// #endregion

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS feedback_aggregates (
    action_id   TEXT PRIMARY KEY,
    positive    REAL NOT NULL DEFAULT 0,
    negative    REAL NOT NULL DEFAULT 0,
    hype_sum    REAL NOT NULL DEFAULT 0,
    hype_sq_sum REAL NOT NULL DEFAULT 0,
    batches     INTEGER NOT NULL DEFAULT 0,
    event_count INTEGER NOT NULL DEFAULT 0,
    first_seen  TEXT NOT NULL,
    last_seen   TEXT NOT NULL
);
`

// #endregion schema

// #region store

// Store persists per-action feedback aggregates in SQLite. Accumulation
// is a single UPSERT, so concurrent batches for the same action serialize
// in the database without an application lock.
type Store struct {
	db *sql.DB
}

// NewStore creates the aggregates table and returns a Store.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("feedback schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Accumulate folds one signal batch into the per-action aggregate —
// sums, never overwrites.
func (s *Store) Accumulate(sig Signal, eventCount int) error {
	now := sig.Timestamp
	if now.IsZero() {
		now = time.Now().UTC()
	}
	nowStr := now.Format(time.RFC3339Nano)

	_, err := s.db.Exec(
		`INSERT INTO feedback_aggregates
		 (action_id, positive, negative, hype_sum, hype_sq_sum, batches, event_count, first_seen, last_seen)
		 VALUES (?, ?, ?, ?, ?, 1, ?, ?, ?)
		 ON CONFLICT(action_id) DO UPDATE SET
		   positive    = positive + excluded.positive,
		   negative    = negative + excluded.negative,
		   hype_sum    = hype_sum + excluded.hype_sum,
		   hype_sq_sum = hype_sq_sum + excluded.hype_sq_sum,
		   batches     = batches + 1,
		   event_count = event_count + excluded.event_count,
		   last_seen   = excluded.last_seen`,
		sig.ActionID, sig.Positive, sig.Negative, sig.HypeLevel, sig.HypeLevel*sig.HypeLevel,
		eventCount, nowStr, nowStr,
	)
	if err != nil {
		return fmt.Errorf("accumulate feedback %s: %w", sig.ActionID, err)
	}
	return nil
}

// Get returns the aggregate for an action, or zero-valued with found=false.
func (s *Store) Get(actionID string) (Aggregate, bool, error) {
	var agg Aggregate
	var first, last string
	err := s.db.QueryRow(
		`SELECT action_id, positive, negative, hype_sum, hype_sq_sum, batches, event_count, first_seen, last_seen
		 FROM feedback_aggregates WHERE action_id = ?`, actionID,
	).Scan(&agg.ActionID, &agg.Positive, &agg.Negative, &agg.HypeSum, &agg.HypeSqSum,
		&agg.Batches, &agg.EventCount, &first, &last)
	if err == sql.ErrNoRows {
		return Aggregate{}, false, nil
	}
	if err != nil {
		return Aggregate{}, false, fmt.Errorf("get feedback %s: %w", actionID, err)
	}
	agg.FirstSeen, _ = time.Parse(time.RFC3339Nano, first)
	agg.LastSeen, _ = time.Parse(time.RFC3339Nano, last)
	return agg, true, nil
}

// All returns every aggregate ordered by first observation.
func (s *Store) All() ([]Aggregate, error) {
	rows, err := s.db.Query(
		`SELECT action_id, positive, negative, hype_sum, hype_sq_sum, batches, event_count, first_seen, last_seen
		 FROM feedback_aggregates ORDER BY first_seen`,
	)
	if err != nil {
		return nil, fmt.Errorf("scan feedback: %w", err)
	}
	defer rows.Close()

	var out []Aggregate
	for rows.Next() {
		var agg Aggregate
		var first, last string
		if err := rows.Scan(&agg.ActionID, &agg.Positive, &agg.Negative, &agg.HypeSum, &agg.HypeSqSum,
			&agg.Batches, &agg.EventCount, &first, &last); err != nil {
			return nil, err
		}
		agg.FirstSeen, _ = time.Parse(time.RFC3339Nano, first)
		agg.LastSeen, _ = time.Parse(time.RFC3339Nano, last)
		out = append(out, agg)
	}
	return out, rows.Err()
}

// #endregion store
