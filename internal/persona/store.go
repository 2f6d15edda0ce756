package persona

// #region imports
import (
	"database/sql"
	"time"

	"github.com/aceylabs/cognition/internal/support"
)

// #endregion imports

// #region types

// Utterance is one baseline sample of the host persona's voice.
type Utterance struct {
	ID        int64
	Text      string
	CreatedAt time.Time
}

// #endregion types

// #region store

// Store persists baseline persona utterances in SQLite. The drift
// evaluator compares generated output against this baseline lexicon.
type Store struct {
	db *sql.DB
}

// NewStore creates the persona_baseline table if needed and returns a store.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS persona_baseline (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		text TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`)
	return err
}

// Add stores a baseline utterance.
func (s *Store) Add(text string) error {
	_, err := s.db.Exec(
		`INSERT INTO persona_baseline (text, created_at) VALUES (?, ?)`,
		text, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// All returns every baseline utterance in insertion order.
func (s *Store) All() ([]Utterance, error) {
	rows, err := s.db.Query(`SELECT id, text, created_at FROM persona_baseline ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Utterance
	for rows.Next() {
		var u Utterance
		var createdAt string
		if err := rows.Scan(&u.ID, &u.Text, &createdAt); err != nil {
			return nil, err
		}
		u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, u)
	}
	return out, rows.Err()
}

// #endregion store

// #region lexicon

// Lexicon flattens the baseline into the persona's working vocabulary.
func (s *Store) Lexicon() (map[string]bool, error) {
	utterances, err := s.All()
	if err != nil {
		return nil, err
	}
	lex := make(map[string]bool)
	for _, u := range utterances {
		for _, tok := range support.Tokenize(u.Text) {
			lex[tok] = true
		}
	}
	return lex, nil
}

// #endregion lexicon
