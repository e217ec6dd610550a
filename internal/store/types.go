package store

import (
	"math"
	"time"

	"github.com/cwbudde/varopt/internal/optimize"
	"github.com/cwbudde/varopt/internal/variable"
	"github.com/google/uuid"
)

// NamedValue is one value of the variable tree at the end of a run.
type NamedValue struct {
	Path  string `json:"path"`
	Kind  string `json:"kind"`
	Value any    `json:"value"`
}

// RunRecord is the persisted outcome of an optimization run.
//
// Only the outcome is kept: the free values before and after, the merit
// figures and a snapshot of every value in the tree. "varopt resume" continues
// from X using the problem file named by Problem.
type RunRecord struct {
	// ID is the unique identifier for this run
	ID string `json:"id"`

	// Name is the optimizer name, usually the problem name
	Name string `json:"name"`

	// Problem is the path of the problem file the run was loaded from
	Problem string `json:"problem,omitempty"`

	// Backend is the backend name, e.g. "gonum:Nelder-Mead"
	Backend string `json:"backend"`

	// FreePaths are the dotted paths of the free values, in the order of X0 and X
	FreePaths []string  `json:"freePaths"`
	X0        []float64 `json:"x0"`
	X         []float64 `json:"x"`

	InitialMerit float64 `json:"initialMerit"`
	FinalMerit   float64 `json:"finalMerit"`
	BestMerit    float64 `json:"bestMerit"`
	Evaluations  int     `json:"evaluations"`

	// ElapsedMs is the wall time of the run in milliseconds
	ElapsedMs int64 `json:"elapsedMs"`

	// Values is a snapshot of every value after the final commit
	Values []NamedValue `json:"values,omitempty"`

	// Timestamp records when the run finished
	Timestamp time.Time `json:"timestamp"`
}

// RunInfo contains metadata about a run without the value vectors.
type RunInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Problem     string    `json:"problem,omitempty"`
	Backend     string    `json:"backend"`
	FinalMerit  float64   `json:"finalMerit"`
	Evaluations int       `json:"evaluations"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewRunID returns a fresh random run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// NewRunRecord creates a record stamped with the current time.
func NewRunRecord(id, name, problem, backend string) *RunRecord {
	return &RunRecord{
		ID:        id,
		Name:      name,
		Problem:   problem,
		Backend:   backend,
		Timestamp: time.Now(),
	}
}

// RecordFromResult builds the record of a finished run. freePaths are the
// paths of result.X in order; entries is the snapshot taken after the run.
func RecordFromResult(id, problem string, result *optimize.Result, freePaths []string, entries []variable.Entry) *RunRecord {
	r := NewRunRecord(id, result.Name, problem, result.Backend)
	r.FreePaths = freePaths
	r.X0 = result.X0
	r.X = result.X
	r.InitialMerit = result.InitialMerit
	r.FinalMerit = result.FinalMerit
	r.BestMerit = result.BestMerit
	r.Evaluations = result.Evaluations
	r.ElapsedMs = result.Elapsed.Milliseconds()
	for _, e := range entries {
		r.Values = append(r.Values, NamedValue{
			Path:  e.Path,
			Kind:  e.Kind.String(),
			Value: e.Value,
		})
	}
	return r
}

// ToInfo converts a full RunRecord to RunInfo (metadata only).
func (r *RunRecord) ToInfo() RunInfo {
	return RunInfo{
		ID:          r.ID,
		Name:        r.Name,
		Problem:     r.Problem,
		Backend:     r.Backend,
		FinalMerit:  r.FinalMerit,
		Evaluations: r.Evaluations,
		Timestamp:   r.Timestamp,
	}
}

// Validate checks that the record is complete and encodable.
func (r *RunRecord) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "ID", Reason: "cannot be empty"}
	}
	if r.Backend == "" {
		return &ValidationError{Field: "Backend", Reason: "cannot be empty"}
	}
	if len(r.X) != len(r.FreePaths) {
		return &ValidationError{Field: "X", Reason: "length must match FreePaths"}
	}
	if len(r.X0) != len(r.X) {
		return &ValidationError{Field: "X0", Reason: "length must match X"}
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"InitialMerit", r.InitialMerit},
		{"FinalMerit", r.FinalMerit},
		{"BestMerit", r.BestMerit},
	} {
		// JSON has no encoding for these
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return &ValidationError{Field: f.name, Reason: "must be finite"}
		}
	}
	if r.Evaluations < 0 {
		return &ValidationError{Field: "Evaluations", Reason: "cannot be negative"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	return nil
}

// ValidationError represents a run record validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}
