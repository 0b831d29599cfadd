package document

import (
	"errors"
	"math"
	"testing"

	"github.com/goccy/go-json"
)

func TestMarshalRepresentableValues(t *testing.T) {
	in := map[string]any{
		"name":  "box",
		"count": 3,
		"ratio": 0.5,
		"tags":  []any{"a", "b"},
		"ok":    true,
		"gone":  nil,
	}
	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	obj, ok := back.(map[string]any)
	if !ok {
		t.Fatalf("got %T", back)
	}
	if obj["name"] != "box" || obj["ok"] != true || obj["gone"] != nil {
		t.Fatalf("round trip lost values: %v", obj)
	}
	if n, ok := obj["count"].(json.Number); !ok || n.String() != "3" {
		t.Fatalf("numbers must decode as json.Number, got %T", obj["count"])
	}
}

func TestUnmarshalKeepsPrecision(t *testing.T) {
	v, err := Unmarshal([]byte(`9007199254740993`))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	n, ok := v.(json.Number)
	if !ok {
		t.Fatalf("got %T", v)
	}
	if i, err := n.Int64(); err != nil || i != 9007199254740993 {
		t.Fatalf("precision lost: %d %v", i, err)
	}
}

func TestMarshalRejectsUnrepresentable(t *testing.T) {
	cases := []any{
		math.NaN(),
		math.Inf(1),
		make(chan int),
		func() {},
		[]any{1, math.Inf(-1)},
		map[string]any{"deep": map[string]any{"bad": math.NaN()}},
		struct{ X int }{1},
	}
	for _, c := range cases {
		if _, err := Marshal(c); !errors.Is(err, ErrNotRepresentable) {
			t.Errorf("Marshal(%T) = %v, want ErrNotRepresentable", c, err)
		}
	}
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	if _, err := Unmarshal([]byte(`{"a":`)); err == nil {
		t.Fatalf("want error for truncated document")
	}
}
