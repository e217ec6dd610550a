package opt

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Backend kinds understood by FromConfig.
const (
	KindGonum    = "gonum"
	KindNewton1D = "newton1d"
	KindMayfly   = "mayfly"
)

// FromConfig builds a backend from a kind and its configuration bag.
//
//	gonum:    method, options{maxiter, maxfev, fatol, frtol, patience, gtol, simplex_size, disp}
//	newton1d: dx, iterations, tol
//	mayfly:   iterations, population, seed, lower, upper, span
func FromConfig(kind string, options Options) (Backend, error) {
	if options == nil {
		options = Options{}
	}

	switch strings.ToLower(kind) {
	case "", KindGonum, "neldermead", "nelder-mead":
		method, err := options.String("method", DefaultMethod)
		if err != nil {
			return nil, err
		}
		inner, err := options.Sub("options")
		if err != nil {
			return nil, err
		}
		logUnknown(KindGonum, options, "method", "options")
		return NewGonum(method, inner), nil

	case KindNewton1D, "newton":
		cfg := DefaultNewton1DConfig()
		var err error
		if cfg.Dx, err = options.Float("dx", cfg.Dx); err != nil {
			return nil, err
		}
		if cfg.Iterations, err = options.Int("iterations", cfg.Iterations); err != nil {
			return nil, err
		}
		if cfg.Tolerance, err = options.Float("tol", cfg.Tolerance); err != nil {
			return nil, err
		}
		logUnknown(KindNewton1D, options, "dx", "iterations", "tol")
		return NewNewton1D(cfg), nil

	case KindMayfly:
		cfg := DefaultMayflyConfig()
		var err error
		if cfg.MaxIterations, err = options.Int("iterations", cfg.MaxIterations); err != nil {
			return nil, err
		}
		if cfg.PopSize, err = options.Int("population", cfg.PopSize); err != nil {
			return nil, err
		}
		seed, err := options.Int("seed", int(cfg.Seed))
		if err != nil {
			return nil, err
		}
		cfg.Seed = int64(seed)
		if cfg.Lower, err = options.Float("lower", cfg.Lower); err != nil {
			return nil, err
		}
		if cfg.Upper, err = options.Float("upper", cfg.Upper); err != nil {
			return nil, err
		}
		if cfg.Span, err = options.Float("span", cfg.Span); err != nil {
			return nil, err
		}
		logUnknown(KindMayfly, options, "iterations", "population", "seed", "lower", "upper", "span")
		return NewMayfly(cfg), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, kind)
	}
}

// ParseConfigYAML reads a backend description such as
//
//	kind: gonum
//	method: Nelder-Mead
//	options:
//	  maxiter: 1000
//
// and returns its kind and the remaining keys as the configuration bag.
func ParseConfigYAML(data []byte) (string, Options, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return "", nil, fmt.Errorf("failed to parse backend yaml: %w", err)
	}
	options := Options(raw)
	if options == nil {
		options = Options{}
	}

	kind, err := options.String("kind", KindGonum)
	if err != nil {
		return "", nil, err
	}
	delete(options, "kind")
	return kind, options, nil
}

// BackendFromYAML is ParseConfigYAML followed by FromConfig.
func BackendFromYAML(data []byte) (Backend, error) {
	kind, options, err := ParseConfigYAML(data)
	if err != nil {
		return nil, err
	}
	return FromConfig(kind, options)
}
