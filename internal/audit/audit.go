package audit

// #region imports
import (
	"database/sql"
	"fmt"
	"time"
)

// #endregion

// #region types

// Entry is a single row in the decision_log table — one processed action
// with the stage it reached and the decision the loop made.
type Entry struct {
	ActionID    string
	ActionType  string
	Stage       string // last stage reached before success or failure
	Risk        string
	RiskScore   float64
	Decision    string // "shipped" | "hedged" | "deferred" | "failed"
	Reason      string
	SignalsJSON string // exact scorer inputs, for deterministic replay
	Input       string
	FinalOutput string
	CreatedAt   time.Time
}

// #endregion types

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS decision_log (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    action_id    TEXT NOT NULL,
    action_type  TEXT NOT NULL,
    stage        TEXT NOT NULL,
    risk         TEXT NOT NULL,
    risk_score   REAL NOT NULL,
    decision     TEXT NOT NULL,
    reason       TEXT,
    signals_json TEXT,
    input        TEXT,
    final_output TEXT,
    created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decision_log_action ON decision_log(action_id);
`

// #endregion schema

// #region log

// Log manages the decision_log table.
type Log struct {
	db *sql.DB
}

// NewLog creates the table and returns a Log.
func NewLog(db *sql.DB) (*Log, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("audit schema: %w", err)
	}
	return &Log{db: db}, nil
}

// Record appends one decision entry.
func (l *Log) Record(e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := l.db.Exec(
		`INSERT INTO decision_log
		 (action_id, action_type, stage, risk, risk_score, decision, reason, signals_json, input, final_output, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ActionID, e.ActionType, e.Stage, e.Risk, e.RiskScore, e.Decision,
		nullIfEmpty(e.Reason), nullIfEmpty(e.SignalsJSON), nullIfEmpty(e.Input), nullIfEmpty(e.FinalOutput),
		e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	return nil
}

// Recent returns the latest entries, newest first.
func (l *Log) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.Query(
		`SELECT action_id, action_type, stage, risk, risk_score, decision, reason, signals_json, input, final_output, created_at
		 FROM decision_log ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent decisions: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var reason, signals, input, output sql.NullString
		var createdStr string
		if err := rows.Scan(&e.ActionID, &e.ActionType, &e.Stage, &e.Risk, &e.RiskScore,
			&e.Decision, &reason, &signals, &input, &output, &createdStr); err != nil {
			return nil, err
		}
		e.Reason = reason.String
		e.SignalsJSON = signals.String
		e.Input = input.String
		e.FinalOutput = output.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecentRiskScores returns the risk scores of the latest successful
// decisions, for the orchestrator's health window.
func (l *Log) RecentRiskScores(limit int) ([]float64, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.Query(
		`SELECT risk_score FROM decision_log WHERE decision != 'failed' ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent risk scores: %w", err)
	}
	defer rows.Close()

	var scores []float64
	for rows.Next() {
		var s float64
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

// #endregion log

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
