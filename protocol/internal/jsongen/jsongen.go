// Package jsongen implements the recursive serializer/parser generation the
// JSON-based protocols share. The RPC flavor and the REST flavor differ in
// binding style, content types and error envelopes, but produce identical
// document-body marshalling: one Generator parametrized with the protocol's
// name fragment and timestamp default serves both.
package jsongen

import (
	"fmt"
	"strings"

	wiregen "github.com/wiregen/wiregen"
	"github.com/wiregen/wiregen/binding"
	"github.com/wiregen/wiregen/internal/gen"
	"github.com/wiregen/wiregen/model"
)

// Generator emits JSON marshalling functions for one protocol.
type Generator struct {
	// Proto is the protocol's function-name fragment ("AwsJson", "RestJson").
	Proto string
	// TimestampDefault applies to timestamp members without a format override.
	TimestampDefault model.TimestampFormat
}

// TimestampFormat resolves the effective format for a member: the member
// override wins, then the generator default.
func (g *Generator) TimestampFormat(mem *model.Member) model.TimestampFormat {
	if mem != nil && mem.TimestampFormat != model.TimestampDefault {
		return mem.TimestampFormat
	}
	return g.TimestampDefault
}

// emitter carries per-function state: the writer plus a counter for unique
// temporaries. Temporaries are numbered in emission order, so bodies are
// deterministic.
type emitter struct {
	st *wiregen.GenState
	g  *Generator
	w  *gen.Writer
	n  int
	// retZero prefixes error returns: "nil, " in value-returning functions,
	// "" in builder-mutating ones.
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

// AllDescriptors synthesizes document descriptors for every member of a
// shape, used when a whole structure (not an operation body subset) is
// marshalled: nested structures, RPC-bound operation shapes, event payloads.
func AllDescriptors(shape *model.Shape) []binding.Descriptor {
	descs := make([]binding.Descriptor, 0, len(shape.Members))
	for i := range shape.Members {
		mem := &shape.Members[i]
		name := mem.WireName
		if name == "" {
			name = mem.Name
		}
		descs = append(descs, binding.Descriptor{Member: mem, Location: binding.LocationDocument, LocationName: name})
	}
	return descs
}

// unionVariantType derives the variant wrapper type for a union member.
func unionVariantType(st *wiregen.GenState, union model.ShapeID, mem *model.Member) string {
	base := strings.TrimPrefix(st.Symbols.ShapeType(union), "*")
	return base + "Member" + wiregen.GoName(mem.Name)
}
