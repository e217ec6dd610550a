package opt

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
)

// DefaultMethod is the derivative-free simplex search.
const DefaultMethod = "Nelder-Mead"

// Recognized keys of the gonum options bag.
const (
	OptMaxIter     = "maxiter"      // major iterations
	OptMaxFev      = "maxfev"       // function evaluations
	OptFAbsTol     = "fatol"        // absolute function convergence tolerance
	OptFRelTol     = "frtol"        // relative function convergence tolerance
	OptPatience    = "patience"     // iterations the function tolerance must hold
	OptGradTol     = "gtol"         // gradient norm threshold (gradient methods)
	OptSimplexSize = "simplex_size" // initial simplex size (Nelder-Mead)
	OptDisp        = "disp"         // print progress to stdout
)

var gonumKeys = []string{OptMaxIter, OptMaxFev, OptFAbsTol, OptFRelTol, OptPatience, OptGradTol, OptSimplexSize, OptDisp}

// GonumBackend minimizes with a gonum/optimize method. Nelder-Mead needs only
// function values; gradient methods get a central finite-difference gradient.
//
// Evaluations never overlap: the search runs with Concurrent = 0.
type GonumBackend struct {
	Method  string
	Options Options
}

// NewGonum creates a backend for method (DefaultMethod if empty) with the
// given method-specific options.
func NewGonum(method string, options Options) *GonumBackend {
	if method == "" {
		method = DefaultMethod
	}
	if options == nil {
		options = Options{}
	}
	return &GonumBackend{Method: method, Options: options}
}

// Name returns "gonum:<method>".
func (b *GonumBackend) Name() string {
	return "gonum:" + b.Method
}

// Minimize runs the configured method from x0.
func (b *GonumBackend) Minimize(f Objective, x0 []float64) ([]float64, error) {
	if len(x0) == 0 {
		return []float64{}, nil
	}

	method, needsGrad, err := gonumMethod(b.Method, b.Options)
	if err != nil {
		return nil, err
	}
	settings, err := gonumSettings(b.Options)
	if err != nil {
		return nil, err
	}
	logUnknown(b.Name(), b.Options, gonumKeys...)

	// The first objective error stops the search and is returned as is.
	var evalErr error
	fn := func(x []float64) float64 {
		if evalErr != nil {
			return math.Inf(1)
		}
		v, err := f(x)
		if err != nil {
			evalErr = err
			return math.Inf(1)
		}
		return v
	}

	problem := optimize.Problem{
		Func: fn,
		Status: func() (optimize.Status, error) {
			if evalErr != nil {
				return optimize.Failure, evalErr
			}
			return optimize.NotTerminated, nil
		},
	}
	if needsGrad {
		problem.Grad = func(grad, x []float64) {
			fd.Gradient(grad, fn, x, &fd.Settings{Formula: fd.Central})
		}
	}

	slog.Debug("Starting gonum search", "method", b.Method, "dim", len(x0),
		"max_iterations", settings.MajorIterations, "max_evaluations", settings.FuncEvaluations)

	result, err := optimize.Minimize(problem, append([]float64(nil), x0...), settings, method)
	if evalErr != nil {
		return nil, evalErr
	}
	if err != nil {
		return nil, err
	}

	slog.Debug("Gonum search finished",
		"method", b.Method,
		"status", result.Status.String(),
		"f", result.F,
		"iterations", result.Stats.MajorIterations,
		"evaluations", result.Stats.FuncEvaluations,
	)

	return result.X, nil
}

func normalizeMethod(method string) string {
	r := strings.NewReplacer("-", "", "_", "", " ", "")
	return strings.ToLower(r.Replace(method))
}

func gonumMethod(name string, options Options) (optimize.Method, bool, error) {
	switch normalizeMethod(name) {
	case "", "neldermead", "simplex":
		size, err := options.Float(OptSimplexSize, 0)
		if err != nil {
			return nil, false, err
		}
		return &optimize.NelderMead{SimplexSize: size}, false, nil
	case "cmaes":
		return &optimize.CmaEsChol{}, false, nil
	case "bfgs":
		return &optimize.BFGS{}, true, nil
	case "lbfgs":
		return &optimize.LBFGS{}, true, nil
	case "cg":
		return &optimize.CG{}, true, nil
	case "gradientdescent":
		return &optimize.GradientDescent{}, true, nil
	default:
		return nil, false, fmt.Errorf("%w: %q", ErrUnknownMethod, name)
	}
}

func gonumSettings(options Options) (*optimize.Settings, error) {
	maxIter, err := options.Int(OptMaxIter, 0)
	if err != nil {
		return nil, err
	}
	maxFev, err := options.Int(OptMaxFev, 0)
	if err != nil {
		return nil, err
	}
	gtol, err := options.Float(OptGradTol, 0)
	if err != nil {
		return nil, err
	}
	disp, err := options.Bool(OptDisp, false)
	if err != nil {
		return nil, err
	}

	settings := &optimize.Settings{
		MajorIterations:   maxIter,
		FuncEvaluations:   maxFev,
		GradientThreshold: gtol,
		Concurrent:        0,
	}
	if disp {
		settings.Recorder = optimize.NewPrinter()
	}

	_, hasAbs := options[OptFAbsTol]
	_, hasRel := options[OptFRelTol]
	_, hasPatience := options[OptPatience]
	if hasAbs || hasRel || hasPatience {
		abs, err := options.Float(OptFAbsTol, 1e-10)
		if err != nil {
			return nil, err
		}
		rel, err := options.Float(OptFRelTol, 0)
		if err != nil {
			return nil, err
		}
		patience, err := options.Int(OptPatience, 100)
		if err != nil {
			return nil, err
		}
		settings.Converger = &optimize.FunctionConverge{
			Absolute:   abs,
			Relative:   rel,
			Iterations: patience,
		}
	}

	return settings, nil
}
