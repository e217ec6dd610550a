// Package optimize drives a Backend over the free variables of a container.
package optimize

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cwbudde/varopt/internal/opt"
	"github.com/cwbudde/varopt/internal/variable"
)

// ErrRunning is returned when Run is called on an optimizer that is already running.
var ErrRunning = errors.New("optimizer is already running")

// MeritFunc computes the scalar objective from the live state of a container.
type MeritFunc func(c *variable.Container) (float64, error)

// UpdateFunc lets the owner of a container re-derive cached state after the
// free values have been written.
type UpdateFunc func(c *variable.Container) error

// Optimizer minimizes Merit over the free variables of Target using Backend.
// Target, Merit and Backend may be swapped between runs; each Run uses what
// is set at the time. Run is synchronous and an Optimizer runs at most once
// at a time. Runs sharing a container must be serialized by the caller.
type Optimizer struct {
	Name    string
	Target  *variable.Container
	Merit   MeritFunc
	Backend opt.Backend

	// Update, if set, runs after every write of the free values.
	Update UpdateFunc

	// Observer, if set, receives every merit evaluation made by the backend.
	Observer func(Evaluation)

	running sync.Mutex
}

// Result summarizes a finished run.
type Result struct {
	Name         string
	Backend      string
	X0           []float64
	X            []float64
	InitialMerit float64
	FinalMerit   float64
	BestMerit    float64
	Evaluations  int
	History      []float64
	Elapsed      time.Duration
}

// New creates an optimizer.
func New(name string, target *variable.Container, merit MeritFunc, backend opt.Backend) *Optimizer {
	return &Optimizer{
		Name:    name,
		Target:  target,
		Merit:   merit,
		Backend: backend,
	}
}

// Run extracts the free values, lets the backend search from them with every
// trial vector written into the container before the merit is evaluated,
// and commits the backend's result.
//
// Errors from the merit function, the update hook or the backend are
// returned unchanged. On error the container keeps the last trial values.
func (o *Optimizer) Run() (*Result, error) {
	if !o.running.TryLock() {
		return nil, ErrRunning
	}
	defer o.running.Unlock()

	target, merit, backend := o.Target, o.Merit, o.Backend
	switch {
	case target == nil:
		return nil, fmt.Errorf("optimizer %q: no target container", o.Name)
	case merit == nil:
		return nil, fmt.Errorf("optimizer %q: no merit function", o.Name)
	case backend == nil:
		return nil, fmt.Errorf("optimizer %q: no backend", o.Name)
	}

	x0, err := target.FreeValues()
	if err != nil {
		return nil, err
	}

	initial, err := merit(target)
	if err != nil {
		return nil, err
	}

	slog.Info("Starting optimization",
		"optimizer", o.Name,
		"backend", backend.Name(),
		"dim", len(x0),
		"initial_merit", initial,
	)
	start := time.Now()

	tracker := NewTracker()
	f := func(x []float64) (float64, error) {
		if err := o.write(target, x); err != nil {
			return 0, err
		}
		m, err := merit(target)
		if err != nil {
			return 0, err
		}
		tracker.Update(x, m)
		if o.Observer != nil {
			o.Observer(Evaluation{
				Index: tracker.Count(),
				X:     append([]float64(nil), x...),
				Merit: m,
			})
		}
		return m, nil
	}

	x, err := backend.Minimize(f, append([]float64(nil), x0...))
	if err != nil {
		return nil, err
	}

	// The backend's last evaluation is not necessarily at x.
	if err := o.write(target, x); err != nil {
		return nil, err
	}

	final, err := merit(target)
	if err != nil {
		return nil, err
	}

	best, _ := tracker.Best()
	if final < best {
		best = final
	}

	result := &Result{
		Name:         o.Name,
		Backend:      backend.Name(),
		X0:           x0,
		X:            append([]float64(nil), x...),
		InitialMerit: initial,
		FinalMerit:   final,
		BestMerit:    best,
		Evaluations:  tracker.Count(),
		History:      tracker.History(),
		Elapsed:      time.Since(start),
	}

	slog.Info("Optimization complete",
		"optimizer", o.Name,
		"backend", result.Backend,
		"elapsed", result.Elapsed,
		"evaluations", result.Evaluations,
		"initial_merit", result.InitialMerit,
		"final_merit", result.FinalMerit,
	)

	return result, nil
}

func (o *Optimizer) write(target *variable.Container, x []float64) error {
	if err := target.SetFreeValues(x); err != nil {
		return err
	}
	if o.Update != nil {
		return o.Update(target)
	}
	return nil
}
