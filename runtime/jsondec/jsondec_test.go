package jsondec

import (
	"math"
	"testing"
)

func TestDecodeEmptyBodyIsNil(t *testing.T) {
	for _, in := range [][]byte{nil, {}, []byte("   \n")} {
		v, err := Decode(in)
		if err != nil || v != nil {
			t.Fatalf("Decode(%q) = %v, %v; want nil, nil", in, v, err)
		}
	}
}

func TestDecodeKeepsNumberPrecision(t *testing.T) {
	v, err := Decode([]byte(`{"big":9007199254740993}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	obj, err := Object(v)
	if err != nil {
		t.Fatalf("object: %v", err)
	}
	n, err := Long(obj["big"])
	if err != nil {
		t.Fatalf("long: %v", err)
	}
	if n != 9007199254740993 {
		t.Fatalf("precision lost: %d", n)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("{")); err == nil {
		t.Fatalf("want error for truncated body")
	}
}

func TestTypedAccessorsRejectMismatches(t *testing.T) {
	v, err := Decode([]byte(`{"s":"x","b":true,"n":3,"a":[1],"f":1.5}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	obj, _ := Object(v)

	if s, err := String(obj["s"]); err != nil || s != "x" {
		t.Fatalf("string: %q %v", s, err)
	}
	if _, err := String(obj["b"]); err == nil {
		t.Fatalf("String must reject bool")
	}
	if b, err := Bool(obj["b"]); err != nil || !b {
		t.Fatalf("bool: %v %v", b, err)
	}
	if _, err := Long(obj["f"]); err == nil {
		t.Fatalf("Long must reject fractional numbers")
	}
	if _, err := Array(obj["s"]); err == nil {
		t.Fatalf("Array must reject string")
	}
	if a, err := Array(obj["a"]); err != nil || len(a) != 1 {
		t.Fatalf("array: %v %v", a, err)
	}
	if raw, err := Number(obj["f"]); err != nil || raw != "1.5" {
		t.Fatalf("number: %q %v", raw, err)
	}
}

func TestDoubleAcceptsNonFiniteStrings(t *testing.T) {
	v, err := Decode([]byte(`{"nan":"NaN","inf":"Infinity","ninf":"-Infinity","plain":2.5,"other":"x"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	obj, _ := Object(v)
	if f, err := Double(obj["nan"]); err != nil || !math.IsNaN(f) {
		t.Fatalf("NaN: %v %v", f, err)
	}
	if f, err := Double(obj["inf"]); err != nil || !math.IsInf(f, 1) {
		t.Fatalf("Infinity: %v %v", f, err)
	}
	if f, err := Double(obj["ninf"]); err != nil || !math.IsInf(f, -1) {
		t.Fatalf("-Infinity: %v %v", f, err)
	}
	if f, err := Double(obj["plain"]); err != nil || f != 2.5 {
		t.Fatalf("plain: %v %v", f, err)
	}
	if _, err := Double(obj["other"]); err == nil {
		t.Fatalf("Double must reject arbitrary strings")
	}
}

func TestBlob(t *testing.T) {
	b, err := Blob("aGk=")
	if err != nil || string(b) != "hi" {
		t.Fatalf("blob: %q %v", b, err)
	}
	if _, err := Blob("%%%"); err == nil {
		t.Fatalf("want error for invalid base64")
	}
	if _, err := Blob(42); err == nil {
		t.Fatalf("want error for non-string")
	}
}
