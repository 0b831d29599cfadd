package gen

import (
	"strings"
	"testing"
)

func TestWriterIndentsBraces(t *testing.T) {
	w := NewWriter()
	w.W("func f() {")
	w.W("if x {")
	w.W("y()")
	w.W("}")
	w.W("}")
	got := w.String()
	want := "func f() {\n\tif x {\n\t\ty()\n\t}\n}\n"
	if got != want {
		t.Fatalf("indentation mismatch:\ngot %q\nwant %q", got, want)
	}
}

func TestWriterImportDedupes(t *testing.T) {
	w := NewWriter()
	if name := w.Import("net/http"); name != "http" {
		t.Fatalf("want package name http, got %q", name)
	}
	w.Import("net/http")
	w.Import("strings")
	if n := len(w.Imports()); n != 2 {
		t.Fatalf("want 2 imports, got %d", n)
	}
}

func TestRenderFileFormatsAndSortsImports(t *testing.T) {
	out, err := RenderFile(File{
		Package: "serializers",
		Funcs: []Func{
			{
				Name:    "f",
				Body:    "func f(r *http.Request) string {\nreturn strings.ToLower(r.Method)\n}\n",
				Imports: map[string]string{"strings": "strings", "net/http": "http"},
			},
		},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	src := string(out)
	if !strings.HasPrefix(src, "// Code generated by wiregen. DO NOT EDIT.") {
		t.Fatalf("missing generated header:\n%s", src)
	}
	if !strings.Contains(src, "package serializers") {
		t.Fatalf("missing package clause:\n%s", src)
	}
	if strings.Index(src, `"net/http"`) > strings.Index(src, `"strings"`) {
		t.Fatalf("imports not sorted:\n%s", src)
	}
}

func TestRenderFileRejectsBadSource(t *testing.T) {
	_, err := RenderFile(File{
		Package: "deserializers",
		Funcs:   []Func{{Name: "broken", Body: "func broken( {\n}\n"}},
	})
	if err == nil {
		t.Fatalf("want formatting error for invalid source")
	}
}
