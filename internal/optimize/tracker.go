package optimize

import (
	"log/slog"
	"math"
)

// Evaluation is one merit function call made during a run.
type Evaluation struct {
	Index int
	X     []float64
	Merit float64
}

// Tracker records the merit history of a run and the best point seen.
type Tracker struct {
	history []float64
	best    float64
	bestX   []float64
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		history: []float64{},
		best:    math.Inf(1),
	}
}

// Update records an evaluation and reports whether it improved on the best merit.
func (t *Tracker) Update(x []float64, merit float64) bool {
	t.history = append(t.history, merit)

	if merit < t.best {
		slog.Debug("Merit improved", "evaluation", len(t.history), "merit", merit, "previous", t.best)
		t.best = merit
		t.bestX = append(t.bestX[:0], x...)
		return true
	}
	return false
}

// Count returns the number of recorded evaluations.
func (t *Tracker) Count() int {
	return len(t.history)
}

// Best returns the lowest merit seen and the vector that produced it.
func (t *Tracker) Best() (float64, []float64) {
	return t.best, append([]float64(nil), t.bestX...)
}

// History returns the full merit history
func (t *Tracker) History() []float64 {
	return append([]float64{}, t.history...) // Return copy
}
