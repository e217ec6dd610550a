package opt

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
)

// Options is a name/value configuration bag. Recognized keys depend on the
// backend; unrecognized keys are ignored after a debug log entry.
type Options map[string]any

// Float returns the number under key, or def if the key is absent.
func (o Options) Float(key string, def float64) (float64, error) {
	raw, ok := o[key]
	if !ok || raw == nil {
		return def, nil
	}
	switch x := raw.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, fmt.Errorf("option %q: %w", key, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("option %q: expected number, got %T", key, raw)
	}
}

// Int returns the integer under key, or def if the key is absent.
func (o Options) Int(key string, def int) (int, error) {
	raw, ok := o[key]
	if !ok || raw == nil {
		return def, nil
	}
	switch x := raw.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		if x != float64(int(x)) {
			return 0, fmt.Errorf("option %q: expected integer, got %v", key, x)
		}
		return int(x), nil
	case string:
		n, err := strconv.Atoi(x)
		if err != nil {
			return 0, fmt.Errorf("option %q: %w", key, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("option %q: expected integer, got %T", key, raw)
	}
}

// Bool returns the boolean under key, or def if the key is absent.
func (o Options) Bool(key string, def bool) (bool, error) {
	raw, ok := o[key]
	if !ok || raw == nil {
		return def, nil
	}
	switch x := raw.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(x)
		if err != nil {
			return false, fmt.Errorf("option %q: %w", key, err)
		}
		return b, nil
	default:
		return false, fmt.Errorf("option %q: expected bool, got %T", key, raw)
	}
}

// String returns the string under key, or def if the key is absent.
func (o Options) String(key string, def string) (string, error) {
	raw, ok := o[key]
	if !ok || raw == nil {
		return def, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("option %q: expected string, got %T", key, raw)
	}
	return s, nil
}

// Sub returns the nested bag under key. An absent key yields an empty bag.
func (o Options) Sub(key string) (Options, error) {
	raw, ok := o[key]
	if !ok || raw == nil {
		return Options{}, nil
	}
	switch x := raw.(type) {
	case Options:
		return x, nil
	case map[string]any:
		return Options(x), nil
	default:
		return nil, fmt.Errorf("option %q: expected a map, got %T", key, raw)
	}
}

// Unknown returns the keys not in known, sorted.
func (o Options) Unknown(known ...string) []string {
	var unknown []string
	for key := range o {
		found := false
		for _, k := range known {
			if k == key {
				found = true
				break
			}
		}
		if !found {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown
}

func logUnknown(backend string, o Options, known ...string) {
	if unknown := o.Unknown(known...); len(unknown) > 0 {
		slog.Debug("Ignoring unrecognized backend options", "backend", backend, "keys", unknown)
	}
}
