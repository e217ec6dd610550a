// Package store persists finished optimization runs and their evaluation traces.
package store

// Store defines the interface for run persistence operations.
// Implementations must be safe for concurrent use.
//
// Error handling conventions:
//   - Return ErrNotFound if the run doesn't exist (for Load/Delete)
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// Save atomically writes the record under record.ID, replacing any
	// previous record with the same ID.
	Save(record *RunRecord) error

	// Load retrieves the record for the given run.
	Load(runID string) (*RunRecord, error)

	// List returns metadata for all stored runs, oldest first.
	List() ([]RunInfo, error)

	// Delete removes the run and all associated artifacts (run.json, trace.jsonl).
	Delete(runID string) error
}

// ErrNotFound is returned when a requested run does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing run.
type NotFoundError struct {
	RunID string
}

func (e *NotFoundError) Error() string {
	if e.RunID != "" {
		return "run not found: " + e.RunID
	}
	return "run not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
