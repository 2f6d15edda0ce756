package provenance

// #region imports
import (
	"errors"
	"fmt"
	"time"
)

// #endregion

// #region source

// Source identifies where a memory record came from.
type Source string

const (
	SourceSystem        Source = "system"
	SourceChat          Source = "chat"
	SourceSelfGenerated Source = "self-generated"
	SourceInference     Source = "inference"
)

// knownSources guards the boundary — records carrying anything else are rejected.
var knownSources = map[Source]bool{
	SourceSystem:        true,
	SourceChat:          true,
	SourceSelfGenerated: true,
	SourceInference:     true,
}

// #endregion source

// #region record

// Record is one node in the causal memory graph. Records are immutable
// after insertion; only age-based pruning ever removes them.
type Record struct {
	MemoryID   string
	Source     Source
	Confidence float64 // confidence at creation, [0, 1]
	CausedBy   []string
	Content    string // the claim or output text this memory captures
	CreatedAt  time.Time
}

// #endregion record

// #region suspicious

// SuspiciousChain flags a self-generated memory whose own or ancestry
// confidence fell below the configured threshold.
type SuspiciousChain struct {
	Chain      []string // the node followed by its ancestors in BFS order
	Reason     string
	Confidence float64 // the weaker of own and ancestry confidence
}

// #endregion suspicious

// #region errors

var (
	// ErrValidation covers malformed records: missing id, unknown source,
	// confidence outside [0, 1].
	ErrValidation = errors.New("invalid provenance record")
	// ErrDuplicate means the memory id already exists.
	ErrDuplicate = errors.New("memory id already exists")
	// ErrCycle means a proposed causal edge would make the graph cyclic.
	ErrCycle = errors.New("causal edge would create a cycle")
	// ErrNotFound means the memory id does not exist.
	ErrNotFound = errors.New("memory not found")
)

// Validate rejects malformed records at the boundary, before any write.
func (r Record) Validate() error {
	if r.MemoryID == "" {
		return fmt.Errorf("%w: empty memory id", ErrValidation)
	}
	if !knownSources[r.Source] {
		return fmt.Errorf("%w: unknown source %q", ErrValidation, r.Source)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("%w: confidence %.4f outside [0,1]", ErrValidation, r.Confidence)
	}
	for _, p := range r.CausedBy {
		if p == "" {
			return fmt.Errorf("%w: empty parent id in causedBy", ErrValidation)
		}
	}
	return nil
}

// #endregion errors
