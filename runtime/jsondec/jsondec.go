// Package jsondec holds the coercion helpers generated JSON parsers call on
// the raw values of a decoded body. Decode produces json.Number numbers so
// integral precision survives; the typed helpers reject mismatched kinds with
// descriptive errors instead of panicking.
package jsondec

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"math"

	"github.com/goccy/go-json"
)

// Decode parses a JSON body into the generic tree generated parsers walk.
func Decode(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("jsondec: %w", err)
	}
	return v, nil
}

// Object asserts an object value.
func Object(v any) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("jsondec: expected object, got %T", v)
	}
	return m, nil
}

// Array asserts an array value.
func Array(v any) ([]any, error) {
	a, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("jsondec: expected array, got %T", v)
	}
	return a, nil
}

// String asserts a string value.
func String(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("jsondec: expected string, got %T", v)
	}
	return s, nil
}

// Bool asserts a boolean value.
func Bool(v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("jsondec: expected boolean, got %T", v)
	}
	return b, nil
}

// Long coerces an integral number.
func Long(v any) (int64, error) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("jsondec: expected number, got %T", v)
	}
	i, err := n.Int64()
	if err != nil {
		return 0, fmt.Errorf("jsondec: expected integer, got %q", n.String())
	}
	return i, nil
}

// Double coerces a floating point number, accepting the string encodings of
// non-finite values.
func Double(v any) (float64, error) {
	switch t := v.(type) {
	case json.Number:
		return t.Float64()
	case string:
		switch t {
		case "NaN":
			return math.NaN(), nil
		case "Infinity":
			return math.Inf(1), nil
		case "-Infinity":
			return math.Inf(-1), nil
		}
	}
	return 0, fmt.Errorf("jsondec: expected number, got %T", v)
}

// Number returns the raw number text (epoch-seconds timestamps).
func Number(v any) (string, error) {
	n, ok := v.(json.Number)
	if !ok {
		return "", fmt.Errorf("jsondec: expected number, got %T", v)
	}
	return n.String(), nil
}

// Blob decodes a base64 string value.
func Blob(v any) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("jsondec: expected base64 string, got %T", v)
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("jsondec: invalid base64: %w", err)
	}
	return b, nil
}
