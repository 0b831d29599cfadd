// Package jsonenc is the ordered JSON writer generated serializers target.
// Objects emit keys in the order the generated code writes them — member
// declaration order — which a map-based encoder cannot guarantee. Non-finite
// floats are encoded as the strings "NaN", "Infinity" and "-Infinity"; this
// is deliberately lossy and documented as such.
package jsonenc

import (
	"bytes"
	"encoding/base64"
	"math"
	"strconv"

	"github.com/goccy/go-json"
)

// Value writes exactly one JSON value into the underlying buffer.
type Value struct {
	buf *bytes.Buffer
}

// NewValue returns a writer for one value backed by buf.
func NewValue(buf *bytes.Buffer) Value { return Value{buf: buf} }

// String writes an escaped JSON string.
func (v Value) String(s string) {
	b, _ := json.Marshal(s) // string marshalling cannot fail
	v.buf.Write(b)
}

// Bool writes true or false.
func (v Value) Bool(b bool) {
	if b {
		v.buf.WriteString("true")
		return
	}
	v.buf.WriteString("false")
}

// Long writes an integral number.
func (v Value) Long(n int64) {
	v.buf.WriteString(strconv.FormatInt(n, 10))
}

// Double writes a floating point number; NaN and infinities become strings.
func (v Value) Double(f float64) {
	switch {
	case math.IsNaN(f):
		v.buf.WriteString(`"NaN"`)
	case math.IsInf(f, 1):
		v.buf.WriteString(`"Infinity"`)
	case math.IsInf(f, -1):
		v.buf.WriteString(`"-Infinity"`)
	default:
		v.buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	}
}

// Base64 writes a blob as a base64 string.
func (v Value) Base64(b []byte) {
	v.buf.WriteByte('"')
	v.buf.WriteString(base64.StdEncoding.EncodeToString(b))
	v.buf.WriteByte('"')
}

// Null writes null.
func (v Value) Null() { v.buf.WriteString("null") }

// Raw writes pre-encoded JSON verbatim (document values, epoch-seconds
// numbers).
func (v Value) Raw(b []byte) { v.buf.Write(b) }

// Object starts an object; Close must be called after the last key.
func (v Value) Object() *Object {
	v.buf.WriteByte('{')
	return &Object{buf: v.buf}
}

// Array starts an array; Close must be called after the last element.
func (v Value) Array() *Array {
	v.buf.WriteByte('[')
	return &Array{buf: v.buf}
}

// Object writes key/value pairs in call order.
type Object struct {
	buf   *bytes.Buffer
	comma bool
}

// Key writes the key and returns the writer for its value.
func (o *Object) Key(name string) Value {
	if o.comma {
		o.buf.WriteByte(',')
	}
	o.comma = true
	NewValue(o.buf).String(name)
	o.buf.WriteByte(':')
	return Value{buf: o.buf}
}

// Close terminates the object.
func (o *Object) Close() { o.buf.WriteByte('}') }

// Array writes elements in call order.
type Array struct {
	buf   *bytes.Buffer
	comma bool
}

// Value returns the writer for the next element.
func (a *Array) Value() Value {
	if a.comma {
		a.buf.WriteByte(',')
	}
	a.comma = true
	return Value{buf: a.buf}
}

// Close terminates the array.
func (a *Array) Close() { a.buf.WriteByte(']') }
