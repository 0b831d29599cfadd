// Package gen provides the low-level writer used to assemble generated Go
// source: an indentation-aware line writer with import tracking, a Func unit
// carrying one generated function, and a File renderer that produces
// gofmt-formatted output. This package is internal and not part of the public
// API.
package gen

import (
	"bytes"
	"fmt"
	"go/format"
	"path"
	"sort"
	"strings"
)

// Writer accumulates the source text of a single generated function. It is
// not safe for concurrent use; the registry guarantees each writer is driven
// by exactly one builder invocation.
type Writer struct {
	buf     bytes.Buffer
	indent  int
	imports map[string]string // import path -> local package name
}

// NewWriter returns an empty function writer.
func NewWriter() *Writer {
	return &Writer{imports: map[string]string{}}
}

// W writes one line at the current indentation. A trailing '{' increases the
// indent for subsequent lines; a leading '}' decreases it first. That covers
// the block structure generated code actually uses without a full AST.
func (w *Writer) W(format string, args ...any) {
	line := format
	if len(args) > 0 {
		line = fmt.Sprintf(format, args...)
	}
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "}") {
		w.indent--
	}
	if trimmed != "" {
		w.buf.WriteString(strings.Repeat("\t", max(w.indent, 0)))
		w.buf.WriteString(trimmed)
	}
	w.buf.WriteByte('\n')
	if strings.HasSuffix(trimmed, "{") {
		w.indent++
	}
}

// Import records a dependency of the function being written and returns the
// name to qualify identifiers with.
func (w *Writer) Import(importPath string) string {
	name := path.Base(importPath)
	w.imports[importPath] = name
	return name
}

// Imports returns the import set collected so far.
func (w *Writer) Imports() map[string]string {
	out := make(map[string]string, len(w.imports))
	for k, v := range w.imports {
		out[k] = v
	}
	return out
}

// String returns the accumulated source text.
func (w *Writer) String() string { return w.buf.String() }

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Func is one generated function: the unit the registry interns and the file
// renderer emits.
type Func struct {
	Module  string // logical module (file) the function belongs to
	Name    string
	Body    string            // complete function declaration
	Imports map[string]string // import path -> package name
}

// File is a logical module rendered to one Go source file.
type File struct {
	Package string
	Funcs   []Func
}

// RenderFile assembles the file and formats it with go/format. Formatting
// failures indicate a generator bug and surface with the offending source
// attached.
func RenderFile(f File) ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "// Code generated by wiregen. DO NOT EDIT.\n\n")
	fmt.Fprintf(&b, "package %s\n\n", f.Package)

	merged := map[string]string{}
	for _, fn := range f.Funcs {
		for p, n := range fn.Imports {
			merged[p] = n
		}
	}
	if len(merged) > 0 {
		paths := make([]string, 0, len(merged))
		for p := range merged {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		b.WriteString("import (\n")
		for _, p := range paths {
			fmt.Fprintf(&b, "\t%q\n", p)
		}
		b.WriteString(")\n\n")
	}
	for _, fn := range f.Funcs {
		b.WriteString(fn.Body)
		b.WriteByte('\n')
	}
	src, err := format.Source(b.Bytes())
	if err != nil {
		return nil, fmt.Errorf("gen: format %s: %w\n%s", f.Package, err, b.String())
	}
	return src, nil
}
