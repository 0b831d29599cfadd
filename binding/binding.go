// Package binding computes per-operation HTTP binding descriptors from the
// schema's HTTP traits. Descriptors are computed once per operation and are
// consumed, never mutated, by the generation algorithms. Protocols without
// native HTTP bindings synthesize a uniform binding instead of reading
// per-member traits.
package binding

import (
	"fmt"
	"strings"

	"github.com/wiregen/wiregen/model"
)

// Location is where in an HTTP-style message a member's value is carried.
type Location int

const (
	LocationDocument Location = iota // document body field
	LocationHeader
	LocationPrefixHeaders
	LocationQuery
	LocationLabel
	LocationPayload
	LocationStatusCode
)

var locationNames = map[Location]string{
	LocationDocument:      "document",
	LocationHeader:        "header",
	LocationPrefixHeaders: "prefix-headers",
	LocationQuery:         "query",
	LocationLabel:         "uri-path",
	LocationPayload:       "payload",
	LocationStatusCode:    "status-code",
}

func (l Location) String() string { return locationNames[l] }

// Descriptor binds one member to one location under a wire location name
// (header name, query key, label name, or body field name).
type Descriptor struct {
	Member       *model.Member
	Location     Location
	LocationName string
}

// Segment is one path segment of the URI template: either a literal or a
// label reference ({name}, greedy when {name+}).
type Segment struct {
	Literal string
	Label   string
	Greedy  bool
}

// Operation is the resolved binding set for one operation: the HTTP
// method/path/status template and the descriptor lists for input, output and
// each declared error shape.
type Operation struct {
	ID     model.ShapeID
	Method string
	Path   []Segment
	// Query holds constant key=value pairs from the URI template's query
	// suffix.
	Query  [][2]string
	Status int

	Input  []Descriptor
	Output []Descriptor
	Errors map[model.ShapeID][]Descriptor
}

// PayloadDescriptor returns the payload-bound descriptor of the given list,
// or nil.
func PayloadDescriptor(descs []Descriptor) *Descriptor {
	for i := range descs {
		if descs[i].Location == LocationPayload {
			return &descs[i]
		}
	}
	return nil
}

// DocumentDescriptors filters the document-bound descriptors, preserving
// declaration order.
func DocumentDescriptors(descs []Descriptor) []Descriptor {
	var out []Descriptor
	for _, d := range descs {
		if d.Location == LocationDocument {
			out = append(out, d)
		}
	}
	return out
}

// Resolve reads the operation's native HTTP traits and computes descriptors
// for its input, output, and error shapes. Operations without an HTTP trait
// are rejected; protocols that need uniform bindings use Synthesize.
func Resolve(m *model.Model, op *model.Shape) (*Operation, error) {
	if op.HTTP == nil {
		return nil, fmt.Errorf("binding: operation %q has no http trait", op.ID)
	}
	out := &Operation{
		ID:     op.ID,
		Method: op.HTTP.Method,
		Status: op.HTTP.Code,
		Errors: map[model.ShapeID][]Descriptor{},
	}
	var err error
	if out.Path, out.Query, err = parseURI(op.HTTP.URI); err != nil {
		return nil, fmt.Errorf("binding: operation %q: %w", op.ID, err)
	}
	if op.Input != "" {
		if out.Input, err = resolveMembers(m.Expect(op.Input), true); err != nil {
			return nil, err
		}
		if err := checkLabels(out); err != nil {
			return nil, err
		}
	}
	if op.Output != "" {
		if out.Output, err = resolveMembers(m.Expect(op.Output), false); err != nil {
			return nil, err
		}
	}
	for _, errID := range op.Errors {
		descs, err := resolveMembers(m.Expect(errID), false)
		if err != nil {
			return nil, err
		}
		out.Errors[errID] = descs
	}
	return out, nil
}

// Synthesize produces the uniform binding used by RPC protocols with no
// native HTTP traits: POST to the root path, every member bound to the
// document body under its declared (or overridden) wire name.
func Synthesize(m *model.Model, op *model.Shape) (*Operation, error) {
	out := &Operation{
		ID:     op.ID,
		Method: "POST",
		Path:   []Segment{},
		Status: 200,
		Errors: map[model.ShapeID][]Descriptor{},
	}
	synth := func(id model.ShapeID) []Descriptor {
		if id == "" {
			return nil
		}
		shape := m.Expect(id)
		descs := make([]Descriptor, 0, len(shape.Members))
		for i := range shape.Members {
			mem := &shape.Members[i]
			descs = append(descs, Descriptor{Member: mem, Location: LocationDocument, LocationName: wireName(mem)})
		}
		return descs
	}
	out.Input = synth(op.Input)
	out.Output = synth(op.Output)
	for _, errID := range op.Errors {
		out.Errors[errID] = synth(errID)
	}
	return out, nil
}

// RequestContentType resolves the request body content type for resolved
// bindings, given the protocol default.
func RequestContentType(m *model.Model, op *Operation, def string) string {
	return payloadContentType(m, PayloadDescriptor(op.Input), def, false)
}

// ResponseContentType resolves the response body content type. A member
// explicitly bound to the response payload whose target is a non-streaming,
// non-media-typed blob must not force a non-default content type; this is a
// deliberate special case kept for wire compatibility.
func ResponseContentType(m *model.Model, op *Operation, def string) string {
	return payloadContentType(m, PayloadDescriptor(op.Output), def, true)
}

func payloadContentType(m *model.Model, d *Descriptor, def string, response bool) string {
	if d == nil {
		return def
	}
	if d.Member.MediaType != "" {
		return d.Member.MediaType
	}
	target := m.Expect(d.Member.Target)
	switch target.Kind {
	case model.KindString, model.KindEnum:
		return "text/plain"
	case model.KindBlob:
		if response && !d.Member.Streaming {
			return def
		}
		return "application/octet-stream"
	default:
		return def
	}
}

func resolveMembers(shape *model.Shape, input bool) ([]Descriptor, error) {
	descs := make([]Descriptor, 0, len(shape.Members))
	var payload, document int
	var eventPayload bool
	for i := range shape.Members {
		mem := &shape.Members[i]
		d := Descriptor{Member: mem}
		switch {
		case mem.HTTPHeader != "":
			d.Location, d.LocationName = LocationHeader, mem.HTTPHeader
		case mem.HTTPPrefixHeaders != "":
			d.Location, d.LocationName = LocationPrefixHeaders, mem.HTTPPrefixHeaders
		case mem.HTTPQuery != "":
			if !input {
				return nil, fmt.Errorf("binding: %q/%s: query bindings are input-only", shape.ID, mem.Name)
			}
			d.Location, d.LocationName = LocationQuery, mem.HTTPQuery
		case mem.HTTPLabel:
			if !input {
				return nil, fmt.Errorf("binding: %q/%s: label bindings are input-only", shape.ID, mem.Name)
			}
			d.Location, d.LocationName = LocationLabel, mem.Name
		case mem.HTTPResponseCode:
			if input {
				return nil, fmt.Errorf("binding: %q/%s: response-code bindings are output-only", shape.ID, mem.Name)
			}
			d.Location, d.LocationName = LocationStatusCode, mem.Name
		case mem.HTTPPayload || mem.Streaming || mem.EventStream:
			d.Location, d.LocationName = LocationPayload, mem.Name
			payload++
			if mem.EventStream {
				eventPayload = true
			}
		default:
			d.Location, d.LocationName = LocationDocument, wireName(mem)
			document++
		}
		descs = append(descs, d)
	}
	if payload > 1 {
		return nil, fmt.Errorf("binding: %q binds multiple members to the payload", shape.ID)
	}
	// Document members of an event-stream operation travel in the initial
	// frame, so the two bindings coexist there.
	if payload == 1 && document > 0 && !eventPayload {
		return nil, fmt.Errorf("binding: %q mixes payload and document bindings", shape.ID)
	}
	return descs, nil
}

func checkLabels(op *Operation) error {
	labels := map[string]bool{}
	for _, seg := range op.Path {
		if seg.Label != "" {
			labels[seg.Label] = true
		}
	}
	for _, d := range op.Input {
		if d.Location == LocationLabel {
			if !labels[d.Member.Name] {
				return fmt.Errorf("binding: %q: label member %s not present in uri", op.ID, d.Member.Name)
			}
			delete(labels, d.Member.Name)
		}
	}
	for name := range labels {
		return fmt.Errorf("binding: %q: uri label {%s} has no bound member", op.ID, name)
	}
	return nil
}

func parseURI(uri string) ([]Segment, [][2]string, error) {
	pathPart := uri
	var query [][2]string
	if i := strings.IndexByte(uri, '?'); i >= 0 {
		pathPart = uri[:i]
		for _, kv := range strings.Split(uri[i+1:], "&") {
			if kv == "" {
				continue
			}
			k, v, _ := strings.Cut(kv, "=")
			query = append(query, [2]string{k, v})
		}
	}
	var segs []Segment
	for _, raw := range strings.Split(strings.Trim(pathPart, "/"), "/") {
		if raw == "" {
			continue
		}
		if strings.HasPrefix(raw, "{") && strings.HasSuffix(raw, "}") {
			label := raw[1 : len(raw)-1]
			greedy := strings.HasSuffix(label, "+")
			label = strings.TrimSuffix(label, "+")
			if label == "" {
				return nil, nil, fmt.Errorf("empty uri label in %q", uri)
			}
			segs = append(segs, Segment{Label: label, Greedy: greedy})
			continue
		}
		if strings.ContainsAny(raw, "{}") {
			return nil, nil, fmt.Errorf("malformed uri segment %q", raw)
		}
		segs = append(segs, Segment{Literal: raw})
	}
	return segs, query, nil
}

func wireName(mem *model.Member) string {
	if mem.WireName != "" {
		return mem.WireName
	}
	return mem.Name
}
