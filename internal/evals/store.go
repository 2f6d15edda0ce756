package evals

// #region imports
import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// #endregion

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS eval_suites (
    suite_id      TEXT PRIMARY KEY,
    status        TEXT NOT NULL DEFAULT 'pending',
    average_score REAL NOT NULL DEFAULT 0,
    last_run      TEXT,
    created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS eval_cases (
    case_id       TEXT PRIMARY KEY,
    suite_id      TEXT NOT NULL,
    case_type     TEXT NOT NULL,
    input         TEXT NOT NULL,
    expected      TEXT NOT NULL,
    output        TEXT NOT NULL,
    score         REAL NOT NULL DEFAULT -1,
    model_version TEXT NOT NULL DEFAULT '',
    metadata_json TEXT,
    created_at    TEXT NOT NULL,
    FOREIGN KEY (suite_id) REFERENCES eval_suites(suite_id)
);
CREATE INDEX IF NOT EXISTS idx_eval_cases_suite ON eval_cases(suite_id);
`

// #endregion schema

// #region store-struct

// SuiteStore persists evaluation suites and cases in SQLite.
type SuiteStore struct {
	db *sql.DB
}

// NewSuiteStore creates tables and returns a SuiteStore.
func NewSuiteStore(db *sql.DB) (*SuiteStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("evals schema: %w", err)
	}
	return &SuiteStore{db: db}, nil
}

// #endregion store-struct

// #region ensure-suite

// EnsureSuite creates a pending suite row if one does not exist.
func (s *SuiteStore) EnsureSuite(suiteID string) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO eval_suites (suite_id, status, created_at) VALUES (?, ?, ?)`,
		suiteID, string(StatusPending), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("ensure suite %s: %w", suiteID, err)
	}
	return nil
}

// #endregion ensure-suite

// #region add-cases

// AddCases appends cases to a suite atomically.
func (s *SuiteStore) AddCases(suiteID string, cases []Case) error {
	if len(cases) == 0 {
		return nil
	}
	if err := s.EnsureSuite(suiteID); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, c := range cases {
		metaJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		created := c.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		_, err = tx.Exec(
			`INSERT INTO eval_cases
			 (case_id, suite_id, case_type, input, expected, output, score, model_version, metadata_json, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, suiteID, string(c.Type), c.Input, c.ExpectedBehavior, c.GeneratedOutput,
			c.Score, c.ModelVersion, string(metaJSON), created.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert case %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// #endregion add-cases

// #region get-suite

// GetSuite loads a suite with all its cases.
func (s *SuiteStore) GetSuite(suiteID string) (Suite, error) {
	var suite Suite
	var lastRun sql.NullString
	var status string
	err := s.db.QueryRow(
		`SELECT suite_id, status, average_score, last_run FROM eval_suites WHERE suite_id = ?`,
		suiteID,
	).Scan(&suite.ID, &status, &suite.AverageScore, &lastRun)
	if err == sql.ErrNoRows {
		return Suite{}, fmt.Errorf("%w: %s", ErrSuiteNotFound, suiteID)
	}
	if err != nil {
		return Suite{}, fmt.Errorf("get suite %s: %w", suiteID, err)
	}
	suite.Status = SuiteStatus(status)
	if lastRun.Valid {
		suite.LastRun, _ = time.Parse(time.RFC3339Nano, lastRun.String)
	}

	rows, err := s.db.Query(
		`SELECT case_id, case_type, input, expected, output, score, model_version, metadata_json, created_at
		 FROM eval_cases WHERE suite_id = ? ORDER BY created_at`, suiteID,
	)
	if err != nil {
		return Suite{}, fmt.Errorf("suite cases: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c Case
		var caseType, createdStr string
		var metaJSON sql.NullString
		if err := rows.Scan(&c.ID, &caseType, &c.Input, &c.ExpectedBehavior, &c.GeneratedOutput,
			&c.Score, &c.ModelVersion, &metaJSON, &createdStr); err != nil {
			return Suite{}, err
		}
		c.Type = CaseType(caseType)
		c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		if metaJSON.Valid && metaJSON.String != "" {
			_ = json.Unmarshal([]byte(metaJSON.String), &c.Metadata)
		}
		suite.Cases = append(suite.Cases, c)
	}
	return suite, rows.Err()
}

// ListSuiteIDs returns all suite ids ordered by creation.
func (s *SuiteStore) ListSuiteIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT suite_id FROM eval_suites ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list suites: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// #endregion get-suite

// #region status

// SetStatus transitions a suite's status.
func (s *SuiteStore) SetStatus(suiteID string, status SuiteStatus) error {
	res, err := s.db.Exec(
		`UPDATE eval_suites SET status = ? WHERE suite_id = ?`,
		string(status), suiteID,
	)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSuiteNotFound, suiteID)
	}
	return nil
}

// #endregion status

// #region writeback

// RecordRun writes back case scores and the suite aggregate in one
// transaction, stamping last_run and the terminal status.
func (s *SuiteStore) RecordRun(suiteID string, cases []Case, average float64, status SuiteStatus) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, c := range cases {
		if _, err := tx.Exec(
			`UPDATE eval_cases SET score = ? WHERE case_id = ?`, c.Score, c.ID,
		); err != nil {
			return fmt.Errorf("writeback case %s: %w", c.ID, err)
		}
	}

	_, err = tx.Exec(
		`UPDATE eval_suites SET average_score = ?, last_run = ?, status = ? WHERE suite_id = ?`,
		average, time.Now().UTC().Format(time.RFC3339Nano), string(status), suiteID,
	)
	if err != nil {
		return fmt.Errorf("writeback suite %s: %w", suiteID, err)
	}
	return tx.Commit()
}

// #endregion writeback

// #region completed

// CompletedSuites returns the average score and case count of every
// completed suite, for gate aggregation.
func (s *SuiteStore) CompletedSuites() ([]struct {
	SuiteID      string
	AverageScore float64
	CaseCount    int
}, error) {
	rows, err := s.db.Query(
		`SELECT s.suite_id, s.average_score, COUNT(c.case_id)
		 FROM eval_suites s
		 LEFT JOIN eval_cases c ON c.suite_id = s.suite_id
		 WHERE s.status = ?
		 GROUP BY s.suite_id`, string(StatusCompleted),
	)
	if err != nil {
		return nil, fmt.Errorf("completed suites: %w", err)
	}
	defer rows.Close()

	var out []struct {
		SuiteID      string
		AverageScore float64
		CaseCount    int
	}
	for rows.Next() {
		var row struct {
			SuiteID      string
			AverageScore float64
			CaseCount    int
		}
		if err := rows.Scan(&row.SuiteID, &row.AverageScore, &row.CaseCount); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// #endregion completed
