// Package document implements the schema-free value type some protocols
// carry: a dynamically typed tree of JSON-representable values. Marshalling a
// host value outside the representable set is a typed error, never a panic.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/goccy/go-json"
)

// Document is a schema-free value: nil, bool, string, a number, []Document or
// map[string]Document. Numbers decode as json.Number so precision survives
// round-trips.
type Document = any

// ErrNotRepresentable reports a host value that has no document encoding.
var ErrNotRepresentable = errors.New("document: value not representable")

// Marshal encodes a document value as JSON bytes. Values outside the
// representable set (channels, funcs, NaN/Inf floats, non-string-keyed maps)
// fail with ErrNotRepresentable.
func Marshal(v Document) ([]byte, error) {
	if err := check(v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// Unmarshal decodes JSON bytes into a document value with json.Number
// numbers.
func Unmarshal(data []byte) (Document, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("document: decode: %w", err)
	}
	return v, nil
}

func check(v any) error {
	switch t := v.(type) {
	case nil, bool, string, json.Number:
		return nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return nil
	case float32:
		return checkFloat(float64(t))
	case float64:
		return checkFloat(t)
	case []any:
		for _, e := range t {
			if err := check(e); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		for _, e := range t {
			if err := check(e); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %T", ErrNotRepresentable, v)
	}
}

func checkFloat(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: non-finite float", ErrNotRepresentable)
	}
	return nil
}
