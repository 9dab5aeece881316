package parse

import (
	"encoding/json"
	"math"
)

// Typed accessors over decoded NDJSON objects. These centralize the
// missing-key / wrong-type taxonomy so the merge logic stays readable:
// booleans are never numbers, integer fields accept integer-valued floats,
// and container fields must be the right JSON container type. Every violation
// names the offending key.

func jsonInt(obj map[string]any, key string) (int, error) {
	v, ok := obj[key]
	if !ok {
		return 0, errorf("wrkr json: missing key %q", key)
	}

	return coerceInt(key, v)
}

// jsonOptInt is like jsonInt but treats a missing key as absent, not an error.
func jsonOptInt(obj map[string]any, key string) (*int, error) {
	v, ok := obj[key]
	if !ok {
		return nil, nil
	}

	n, err := coerceInt(key, v)
	if err != nil {
		return nil, err
	}

	return &n, nil
}

func coerceInt(key string, v any) (int, error) {
	switch n := v.(type) {
	case bool:
		return 0, errorf("wrkr json: key %q must be an int, got bool", key)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), nil
		}
		// Integer-valued floats (e.g. 600.0) are accepted as ints.
		if f, err := n.Float64(); err == nil && f == math.Trunc(f) {
			return int(f), nil
		}
		return 0, errorf("wrkr json: key %q must be an int, got %v", key, n)
	default:
		return 0, errorf("wrkr json: key %q must be an int, got %T", key, v)
	}
}

// jsonOptFloat returns nil when the key is absent.
func jsonOptFloat(obj map[string]any, key string) (*float64, error) {
	v, ok := obj[key]
	if !ok {
		return nil, nil
	}

	switch n := v.(type) {
	case bool:
		return nil, errorf("wrkr json: key %q must be a float, got bool", key)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return nil, errorf("wrkr json: key %q must be a float, got %v", key, n)
		}
		return &f, nil
	default:
		return nil, errorf("wrkr json: key %q must be a float, got %T", key, v)
	}
}

func jsonObject(obj map[string]any, key string) (map[string]any, error) {
	v, ok := obj[key]
	if !ok {
		return nil, errorf("wrkr json: missing key %q", key)
	}

	m, ok := v.(map[string]any)
	if !ok {
		return nil, errorf("wrkr json: key %q must be an object", key)
	}

	return m, nil
}

func jsonList(obj map[string]any, key string) ([]any, error) {
	v, ok := obj[key]
	if !ok {
		return nil, errorf("wrkr json: missing key %q", key)
	}

	l, ok := v.([]any)
	if !ok {
		return nil, errorf("wrkr json: key %q must be a list", key)
	}

	return l, nil
}
