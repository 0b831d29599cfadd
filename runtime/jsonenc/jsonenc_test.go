package jsonenc

import (
	"bytes"
	"math"
	"testing"
)

func TestObjectKeysStayInCallOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	o := NewValue(buf).Object()
	o.Key("zebra").String("z")
	o.Key("alpha").Long(1)
	o.Key("mid").Bool(true)
	o.Close()
	want := `{"zebra":"z","alpha":1,"mid":true}`
	if buf.String() != want {
		t.Fatalf("got %s, want %s", buf.String(), want)
	}
}

func TestArrayCommas(t *testing.T) {
	buf := &bytes.Buffer{}
	a := NewValue(buf).Array()
	a.Value().Long(1)
	a.Value().Null()
	a.Value().String("x")
	a.Close()
	if got, want := buf.String(), `[1,null,"x"]`; got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestEmptyContainers(t *testing.T) {
	buf := &bytes.Buffer{}
	NewValue(buf).Object().Close()
	NewValue(buf).Array().Close()
	if got := buf.String(); got != "{}[]" {
		t.Fatalf("got %s", got)
	}
}

func TestStringEscaping(t *testing.T) {
	buf := &bytes.Buffer{}
	NewValue(buf).String("a\"b\n")
	if got := buf.String(); got != `"a\"b\n"` {
		t.Fatalf("got %s", got)
	}
}

func TestNonFiniteDoubles(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{math.NaN(), `"NaN"`},
		{math.Inf(1), `"Infinity"`},
		{math.Inf(-1), `"-Infinity"`},
		{1.5, "1.5"},
	}
	for _, c := range cases {
		buf := &bytes.Buffer{}
		NewValue(buf).Double(c.in)
		if buf.String() != c.want {
			t.Errorf("Double(%v) = %s, want %s", c.in, buf.String(), c.want)
		}
	}
}

func TestBase64AndRaw(t *testing.T) {
	buf := &bytes.Buffer{}
	o := NewValue(buf).Object()
	o.Key("data").Base64([]byte("hi"))
	o.Key("when").Raw([]byte("1398796238.52"))
	o.Close()
	if got, want := buf.String(), `{"data":"aGk=","when":1398796238.52}`; got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}
