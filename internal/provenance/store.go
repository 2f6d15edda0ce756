package provenance

// #region imports
import (
	"database/sql"
	"fmt"
	"math"
	"time"
)

// #endregion

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS memory_nodes (
    memory_id   TEXT PRIMARY KEY,
    source      TEXT NOT NULL,
    confidence  REAL NOT NULL,
    content     TEXT NOT NULL DEFAULT '',
    created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS causal_edges (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    parent_id   TEXT NOT NULL,
    child_id    TEXT NOT NULL,
    created_at  TEXT NOT NULL,
    UNIQUE(parent_id, child_id),
    FOREIGN KEY (parent_id) REFERENCES memory_nodes(memory_id),
    FOREIGN KEY (child_id) REFERENCES memory_nodes(memory_id)
);
CREATE INDEX IF NOT EXISTS idx_causal_parent ON causal_edges(parent_id);
CREATE INDEX IF NOT EXISTS idx_causal_child ON causal_edges(child_id);
`

// #endregion schema

// #region store-struct

// Store manages the causal memory graph in SQLite. Writes commit their
// transaction before returning, so an acknowledged memory survives restart.
type Store struct {
	db                   *sql.DB
	suspiciousConfidence float64
}

// #endregion store-struct

// #region constructor

// NewStore creates tables and returns a Store.
// suspiciousConfidence is the cutoff for FindSuspiciousChains.
func NewStore(db *sql.DB, suspiciousConfidence float64) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("provenance schema: %w", err)
	}
	return &Store{db: db, suspiciousConfidence: suspiciousConfidence}, nil
}

// #endregion constructor

// #region add-memory

// AddMemory validates and inserts a record with its causal edges.
// It rejects duplicate ids, unknown parents, and any edge that would make
// the graph cyclic — checked by walking ancestors of each proposed parent
// before insertion. Nothing is written on rejection.
func (s *Store) AddMemory(rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	var count int
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM memory_nodes WHERE memory_id = ?`, rec.MemoryID,
	).Scan(&count); err != nil {
		return fmt.Errorf("check duplicate: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicate, rec.MemoryID)
	}

	for _, parent := range rec.CausedBy {
		if parent == rec.MemoryID {
			return fmt.Errorf("%w: %s causes itself", ErrCycle, rec.MemoryID)
		}
		var exists int
		if err := s.db.QueryRow(
			`SELECT COUNT(*) FROM memory_nodes WHERE memory_id = ?`, parent,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check parent: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("%w: parent %s", ErrNotFound, parent)
		}
		// Reachability check: if the new id is already an ancestor of a
		// proposed parent, the edge would close a cycle.
		ancestors, err := s.Ancestors(parent)
		if err != nil {
			return fmt.Errorf("cycle check: %w", err)
		}
		for _, a := range ancestors {
			if a == rec.MemoryID {
				return fmt.Errorf("%w: %s reachable from parent %s", ErrCycle, rec.MemoryID, parent)
			}
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := rec.CreatedAt.Format(time.RFC3339Nano)
	_, err = tx.Exec(
		`INSERT INTO memory_nodes (memory_id, source, confidence, content, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.MemoryID, string(rec.Source), rec.Confidence, rec.Content, now,
	)
	if err != nil {
		return fmt.Errorf("insert node: %w", err)
	}

	for _, parent := range rec.CausedBy {
		_, err = tx.Exec(
			`INSERT OR IGNORE INTO causal_edges (parent_id, child_id, created_at)
			 VALUES (?, ?, ?)`,
			parent, rec.MemoryID, now,
		)
		if err != nil {
			return fmt.Errorf("insert edge %s→%s: %w", parent, rec.MemoryID, err)
		}
	}

	return tx.Commit()
}

// #endregion add-memory

// #region get

// Get retrieves a single record with its direct parents.
func (s *Store) Get(id string) (Record, error) {
	var rec Record
	var source, createdStr string
	err := s.db.QueryRow(
		`SELECT memory_id, source, confidence, content, created_at
		 FROM memory_nodes WHERE memory_id = ?`, id,
	).Scan(&rec.MemoryID, &source, &rec.Confidence, &rec.Content, &createdStr)
	if err == sql.ErrNoRows {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get %s: %w", id, err)
	}
	rec.Source = Source(source)
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)

	rec.CausedBy, err = s.parents(id)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// parents returns the direct parent ids of a node.
func (s *Store) parents(id string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT parent_id FROM causal_edges WHERE child_id = ? ORDER BY id`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("parents of %s: %w", id, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// children returns the direct child ids of a node.
func (s *Store) children(id string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT child_id FROM causal_edges WHERE parent_id = ? ORDER BY id`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("children of %s: %w", id, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// #endregion get

// #region traversal

// Ancestors returns the full transitive ancestor set of id in BFS order.
// Finite because the graph is acyclic.
func (s *Store) Ancestors(id string) ([]string, error) {
	return s.traverse(id, s.parents)
}

// Descendants returns the full transitive descendant set of id in BFS order.
func (s *Store) Descendants(id string) ([]string, error) {
	return s.traverse(id, s.children)
}

func (s *Store) traverse(id string, next func(string) ([]string, error)) ([]string, error) {
	visited := map[string]bool{id: true}
	var result []string
	queue := []string{id}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		neighbors, err := next(current)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbors {
			if visited[n] {
				continue
			}
			visited[n] = true
			result = append(result, n)
			queue = append(queue, n)
		}
	}
	return result, nil
}

// #endregion traversal

// #region ancestry-confidence

// AncestryConfidence estimates a node's confidence accounting for the
// reliability of its causal parents: the geometric blend of the node's own
// confidence with the mean ancestry confidence of its direct parents. With
// no parents it is the node's own confidence; otherwise it lands strictly
// between the node's own value and its weakest ancestor's (when they differ),
// never simply inheriting either.
func (s *Store) AncestryConfidence(id string) (float64, error) {
	memo := make(map[string]float64)
	return s.ancestryConfidence(id, memo)
}

func (s *Store) ancestryConfidence(id string, memo map[string]float64) (float64, error) {
	if v, ok := memo[id]; ok {
		return v, nil
	}

	var own float64
	err := s.db.QueryRow(
		`SELECT confidence FROM memory_nodes WHERE memory_id = ?`, id,
	).Scan(&own)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return 0, fmt.Errorf("ancestry confidence %s: %w", id, err)
	}

	parents, err := s.parents(id)
	if err != nil {
		return 0, err
	}
	if len(parents) == 0 {
		memo[id] = own
		return own, nil
	}

	var sum float64
	for _, p := range parents {
		pc, err := s.ancestryConfidence(p, memo)
		if err != nil {
			return 0, err
		}
		sum += pc
	}
	mean := sum / float64(len(parents))

	blended := math.Sqrt(own * mean)
	memo[id] = blended
	return blended, nil
}

// #endregion ancestry-confidence

// #region suspicious

// FindSuspiciousChains scans self-generated nodes whose own or ancestry
// confidence falls below the store's threshold and returns each with its
// ancestor chain.
func (s *Store) FindSuspiciousChains() ([]SuspiciousChain, error) {
	rows, err := s.db.Query(
		`SELECT memory_id, confidence FROM memory_nodes
		 WHERE source = ? ORDER BY created_at`, string(SourceSelfGenerated),
	)
	if err != nil {
		return nil, fmt.Errorf("scan self-generated: %w", err)
	}
	defer rows.Close()

	type candidate struct {
		id   string
		conf float64
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.id, &c.conf); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var chains []SuspiciousChain
	for _, c := range candidates {
		ancestry, err := s.AncestryConfidence(c.id)
		if err != nil {
			return nil, err
		}

		var reason string
		switch {
		case c.conf < s.suspiciousConfidence:
			reason = fmt.Sprintf("self-generated with creation confidence %.2f below %.2f", c.conf, s.suspiciousConfidence)
		case ancestry < s.suspiciousConfidence:
			reason = fmt.Sprintf("self-generated with ancestry confidence %.2f below %.2f", ancestry, s.suspiciousConfidence)
		default:
			continue
		}

		ancestors, err := s.Ancestors(c.id)
		if err != nil {
			return nil, err
		}
		chains = append(chains, SuspiciousChain{
			Chain:      append([]string{c.id}, ancestors...),
			Reason:     reason,
			Confidence: math.Min(c.conf, ancestry),
		})
	}
	return chains, nil
}

// #endregion suspicious

// #region prune

// Prune deletes nodes older than maxAge together with any edge touching
// them. Returns the number of nodes removed. maxAge <= 0 is a no-op.
func (s *Store) Prune(maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-maxAge).Format(time.RFC3339Nano)

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`DELETE FROM causal_edges WHERE parent_id IN
		   (SELECT memory_id FROM memory_nodes WHERE created_at < ?)
		 OR child_id IN
		   (SELECT memory_id FROM memory_nodes WHERE created_at < ?)`,
		cutoff, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("prune edges: %w", err)
	}

	res, err := tx.Exec(`DELETE FROM memory_nodes WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune nodes: %w", err)
	}
	removed, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return removed, nil
}

// #endregion prune

// #region scan

// All returns every record ordered by creation time. Used by the support
// matcher and the inspect CLI.
func (s *Store) All() ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT memory_id, source, confidence, content, created_at
		 FROM memory_nodes ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("scan nodes: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var source, createdStr string
		if err := rows.Scan(&rec.MemoryID, &source, &rec.Confidence, &rec.Content, &createdStr); err != nil {
			return nil, err
		}
		rec.Source = Source(source)
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range records {
		records[i].CausedBy, err = s.parents(records[i].MemoryID)
		if err != nil {
			return nil, err
		}
	}
	return records, nil
}

// Count returns the number of stored nodes.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM memory_nodes`).Scan(&n)
	return n, err
}

// #endregion scan
