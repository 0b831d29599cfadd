// Package xmlgen implements the recursive serializer/parser generation the
// XML-bodied protocols share. REST XML uses it for both directions; the
// form-encoded query protocol borrows its response side. Unlike the JSON
// generators, lists and maps are emitted inline by their containing
// structure: XML element names come from member context, so a standalone
// list function would not know its tags. Structures and unions become
// functions taking the element tag as a parameter, which lets one function
// serve every member name the shape appears under.
package xmlgen

import (
	"fmt"

	wiregen "github.com/wiregen/wiregen"
	"github.com/wiregen/wiregen/binding"
	"github.com/wiregen/wiregen/internal/gen"
	"github.com/wiregen/wiregen/model"
)

// Generator emits XML marshalling functions for one protocol.
type Generator struct {
	Proto            string
	TimestampDefault model.TimestampFormat
}

func (g *Generator) timestampFormat(mem *model.Member) model.TimestampFormat {
	if mem != nil && mem.TimestampFormat != model.TimestampDefault {
		return mem.TimestampFormat
	}
	return g.TimestampDefault
}

type emitter struct {
	st      *wiregen.GenState
	g       *Generator
	w       *gen.Writer
	n       int
	retZero string
}

func (e *emitter) tmp(prefix string) string {
	e.n++
	return fmt.Sprintf("%s%d", prefix, e.n)
}

func (e *emitter) fail(errVar string) {
	e.w.W("if %s != nil {", errVar)
	e.w.W("return %s%s", e.retZero, errVar)
	e.w.W("}")
}

func wireName(mem *model.Member) string {
	if mem.WireName != "" {
		return mem.WireName
	}
	return mem.Name
}

// elementDescriptors filters the document descriptors of a resolved binding
// set; the XML body only ever sees those.
func elementDescriptors(descs []binding.Descriptor) []binding.Descriptor {
	return binding.DocumentDescriptors(descs)
}
