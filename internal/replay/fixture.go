package replay

// #region imports
import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aceylabs/cognition/internal/audit"
	"github.com/aceylabs/cognition/internal/hallucination"
)

// #endregion

// #region fixture

// Entry is one recorded decision: the exact scorer inputs plus the
// outcome the loop produced at the time.
type Entry struct {
	ActionID  string                `json:"actionId"`
	Input     string                `json:"input,omitempty"`
	RawOutput string                `json:"rawOutput,omitempty"`
	Signals   hallucination.Signals `json:"signals"`

	ExpectedRisk     string  `json:"expectedRisk"`
	ExpectedScore    float64 `json:"expectedScore"`
	ExpectedDecision string  `json:"expectedDecision"`
	ExpectedOutput   string  `json:"expectedOutput,omitempty"` // checked only when RawOutput is set
}

// Fixture is a replayable batch of recorded decisions.
type Fixture struct {
	Name    string  `json:"name"`
	Entries []Entry `json:"entries"`
}

// #endregion fixture

// #region io

// Load reads a fixture from a JSON file.
func Load(path string) (Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("read fixture: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return Fixture{}, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return f, nil
}

// Save writes a fixture as indented JSON.
func Save(f Fixture, path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}
	return nil
}

// #endregion io

// #region export

// FromAuditLog snapshots the most recent successful decisions into a
// fixture. Failed actions carry no scorer inputs and are skipped.
func FromAuditLog(log *audit.Log, name string, limit int) (Fixture, error) {
	entries, err := log.Recent(limit)
	if err != nil {
		return Fixture{}, fmt.Errorf("export fixture: %w", err)
	}

	f := Fixture{Name: name}
	for _, e := range entries {
		if e.Decision == "failed" || e.SignalsJSON == "" {
			continue
		}
		var sig hallucination.Signals
		if err := json.Unmarshal([]byte(e.SignalsJSON), &sig); err != nil {
			return Fixture{}, fmt.Errorf("parse signals for %s: %w", e.ActionID, err)
		}
		f.Entries = append(f.Entries, Entry{
			ActionID:         e.ActionID,
			Input:            e.Input,
			Signals:          sig,
			ExpectedRisk:     e.Risk,
			ExpectedScore:    e.RiskScore,
			ExpectedDecision: e.Decision,
		})
	}
	return f, nil
}

// #endregion export
