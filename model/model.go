// Package model holds the immutable schema graph consumed by the code
// generators: shapes, members, traits, and the operation/service metadata
// they hang off of. The graph is built once by Load (or by tests assembling
// shapes directly), is never mutated afterwards, and carries no behavior
// beyond lookups.
package model

import (
	"fmt"
	"strings"
)

// ShapeID identifies a shape as "namespace#Name". IDs are stable for the
// lifetime of a model and are the unit of reference between shapes.
type ShapeID string

// Name returns the part after '#', or the whole id when no namespace is set.
func (id ShapeID) Name() string {
	if i := strings.IndexByte(string(id), '#'); i >= 0 {
		return string(id)[i+1:]
	}
	return string(id)
}

// Namespace returns the part before '#', or "" when no namespace is set.
func (id ShapeID) Namespace() string {
	if i := strings.IndexByte(string(id), '#'); i >= 0 {
		return string(id)[:i]
	}
	return ""
}

// ShapeKind enumerates every shape variant the generators understand. The set
// is closed: generator recursions switch exhaustively over it so adding or
// removing a kind is a single-point, compile-checked change.
type ShapeKind int

const (
	KindStructure ShapeKind = iota
	KindUnion
	KindList
	KindMap
	KindString
	KindEnum
	KindBlob
	KindDocument
	KindTimestamp
	KindBoolean
	KindByte
	KindShort
	KindInteger
	KindLong
	KindFloat
	KindDouble
	KindBigInteger
	KindBigDecimal
	KindOperation
	KindService
)

var kindNames = map[ShapeKind]string{
	KindStructure:  "structure",
	KindUnion:      "union",
	KindList:       "list",
	KindMap:        "map",
	KindString:     "string",
	KindEnum:       "enum",
	KindBlob:       "blob",
	KindDocument:   "document",
	KindTimestamp:  "timestamp",
	KindBoolean:    "boolean",
	KindByte:       "byte",
	KindShort:      "short",
	KindInteger:    "integer",
	KindLong:       "long",
	KindFloat:      "float",
	KindDouble:     "double",
	KindBigInteger: "bigInteger",
	KindBigDecimal: "bigDecimal",
	KindOperation:  "operation",
	KindService:    "service",
}

func (k ShapeKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ShapeKind(%d)", int(k))
}

// IsNumeric reports whether the kind is one of the numeric primitives.
func (k ShapeKind) IsNumeric() bool {
	switch k {
	case KindByte, KindShort, KindInteger, KindLong, KindFloat, KindDouble, KindBigInteger, KindBigDecimal:
		return true
	}
	return false
}

// TimestampFormat selects one of the supported timestamp encodings. The empty
// value means "no override": the protocol (or binding location) default wins.
type TimestampFormat string

const (
	TimestampDefault      TimestampFormat = ""
	TimestampEpochSeconds TimestampFormat = "epoch-seconds"
	TimestampDateTime     TimestampFormat = "date-time"
	TimestampHTTPDate     TimestampFormat = "http-date"
)

// Member is a named edge from a container shape to a target shape, carrying
// the member-local traits the generators consult. Optional members may be
// absent at runtime; non-optional members must be set before a builder can
// finalize.
type Member struct {
	Name     string
	Target   ShapeID
	Optional bool

	// Default is the declared default value in wire shape (bool, string,
	// json-compatible number), or nil when the member has none. A member equal
	// to its default is still serialized as-is; defaults are never substituted
	// for absent fields.
	Default any

	// WireName overrides the derived field name on the wire (jsonName/xmlName).
	WireName string

	// TimestampFormat overrides the protocol default for timestamp targets.
	TimestampFormat TimestampFormat

	// HTTP binding traits. At most one of the location traits is set; the
	// binding resolver turns these into Descriptors and validates the
	// combinations.
	HTTPHeader        string
	HTTPPrefixHeaders string
	HTTPQuery         string
	HTTPLabel         bool
	HTTPPayload       bool
	HTTPResponseCode  bool

	// Streaming marks a blob member whose value is transferred without
	// buffering; EventStream marks a union member transferred as framed
	// messages. Both imply a payload binding.
	Streaming   bool
	EventStream bool

	MediaType string
	Sensitive bool

	// Flattened collapses the wrapping level for lists and maps in the XML and
	// query serializations.
	Flattened bool

	// XMLAttribute binds the member to an attribute of the enclosing element
	// instead of a child element (restxml only).
	XMLAttribute bool
}

// HTTPTrait is the method/uri/status template of an operation with native
// HTTP bindings. URI may contain {label} segments and a ?key=value constant
// query suffix.
type HTTPTrait struct {
	Method string
	URI    string
	Code   int
}

// Shape is one node of the schema graph. Exactly the fields relevant to the
// shape's Kind are populated; everything else stays zero.
type Shape struct {
	ID   ShapeID
	Kind ShapeKind

	// Structure/union members in declaration order. Emission follows this
	// order; it is part of the reproducibility contract.
	Members []Member

	// List element and map key/value edges. Map keys are always strings.
	ListMember *Member
	MapKey     *Member
	MapValue   *Member

	// Enum value set (string enums only).
	EnumValues []string

	// Error trait data. Fault is "client" or "server" for error shapes and ""
	// otherwise. ErrorCode is the explicit wire error-code trait; when empty
	// the shape name is the code.
	Fault     string
	ErrorCode string

	// Operation metadata.
	HTTP   *HTTPTrait
	Input  ShapeID
	Output ShapeID
	Errors []ShapeID

	// Service metadata.
	Operations []ShapeID
	Version    string
	Protocol   string
}

// Member returns the named member, or nil.
func (s *Shape) Member(name string) *Member {
	for i := range s.Members {
		if s.Members[i].Name == name {
			return &s.Members[i]
		}
	}
	return nil
}

// IsError reports whether the shape carries the error trait.
func (s *Shape) IsError() bool { return s.Fault != "" }

// Model is the immutable shape table plus the service entry point.
type Model struct {
	shapes  map[ShapeID]*Shape
	order   []ShapeID
	service ShapeID
}

// New assembles a model from pre-built shapes. The slice order becomes the
// declaration order. The service shape, when present, becomes the entry
// point. Referential integrity is checked; full schema validation is the
// loader collaborator's concern, not ours.
func New(shapes []*Shape) (*Model, error) {
	m := &Model{shapes: make(map[ShapeID]*Shape, len(shapes))}
	for _, s := range shapes {
		if _, dup := m.shapes[s.ID]; dup {
			return nil, fmt.Errorf("model: duplicate shape id %q", s.ID)
		}
		m.shapes[s.ID] = s
		m.order = append(m.order, s.ID)
		if s.Kind == KindService {
			if m.service != "" {
				return nil, fmt.Errorf("model: multiple service shapes (%q, %q)", m.service, s.ID)
			}
			m.service = s.ID
		}
	}
	registerPrelude(m)
	if err := m.checkRefs(); err != nil {
		return nil, err
	}
	return m, nil
}

// Shape looks a shape up by id.
func (m *Model) Shape(id ShapeID) (*Shape, bool) {
	s, ok := m.shapes[id]
	return s, ok
}

// Expect returns the shape for id and panics when it is missing. A dangling
// reference in a loaded model is a programming error, not a runtime
// condition, so generators use Expect on edges the loader already verified.
func (m *Model) Expect(id ShapeID) *Shape {
	s, ok := m.shapes[id]
	if !ok {
		panic(fmt.Sprintf("model: unknown shape id %q", id))
	}
	return s
}

// Service returns the service shape, or nil when the model has none.
func (m *Model) Service() *Shape {
	if m.service == "" {
		return nil
	}
	return m.shapes[m.service]
}

// Operations returns the service's operations in declaration order.
func (m *Model) Operations() []*Shape {
	svc := m.Service()
	if svc == nil {
		return nil
	}
	ops := make([]*Shape, 0, len(svc.Operations))
	for _, id := range svc.Operations {
		ops = append(ops, m.Expect(id))
	}
	return ops
}

// Shapes returns every shape in declaration order (prelude shapes last).
func (m *Model) Shapes() []*Shape {
	out := make([]*Shape, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.shapes[id])
	}
	return out
}

func (m *Model) checkRefs() error {
	check := func(from ShapeID, to ShapeID) error {
		if to == "" {
			return nil
		}
		if _, ok := m.shapes[to]; !ok {
			return fmt.Errorf("model: shape %q references unknown shape %q", from, to)
		}
		return nil
	}
	for _, id := range m.order {
		s := m.shapes[id]
		for i := range s.Members {
			if err := check(id, s.Members[i].Target); err != nil {
				return err
			}
		}
		for _, mm := range []*Member{s.ListMember, s.MapKey, s.MapValue} {
			if mm != nil {
				if err := check(id, mm.Target); err != nil {
					return err
				}
			}
		}
		for _, ref := range append([]ShapeID{s.Input, s.Output}, s.Errors...) {
			if err := check(id, ref); err != nil {
				return err
			}
		}
		for _, ref := range s.Operations {
			if err := check(id, ref); err != nil {
				return err
			}
		}
	}
	return nil
}

// Prelude shape ids. Every model gets these registered so member targets can
// reference primitives without declaring them.
const (
	PreludeString     ShapeID = "wiregen#String"
	PreludeBoolean    ShapeID = "wiregen#Boolean"
	PreludeByte       ShapeID = "wiregen#Byte"
	PreludeShort      ShapeID = "wiregen#Short"
	PreludeInteger    ShapeID = "wiregen#Integer"
	PreludeLong       ShapeID = "wiregen#Long"
	PreludeFloat      ShapeID = "wiregen#Float"
	PreludeDouble     ShapeID = "wiregen#Double"
	PreludeBlob       ShapeID = "wiregen#Blob"
	PreludeTimestamp  ShapeID = "wiregen#Timestamp"
	PreludeDocument   ShapeID = "wiregen#Document"
	PreludeBigInteger ShapeID = "wiregen#BigInteger"
	PreludeBigDecimal ShapeID = "wiregen#BigDecimal"
)

var preludeKinds = []struct {
	id   ShapeID
	kind ShapeKind
}{
	{PreludeString, KindString},
	{PreludeBoolean, KindBoolean},
	{PreludeByte, KindByte},
	{PreludeShort, KindShort},
	{PreludeInteger, KindInteger},
	{PreludeLong, KindLong},
	{PreludeFloat, KindFloat},
	{PreludeDouble, KindDouble},
	{PreludeBlob, KindBlob},
	{PreludeTimestamp, KindTimestamp},
	{PreludeDocument, KindDocument},
	{PreludeBigInteger, KindBigInteger},
	{PreludeBigDecimal, KindBigDecimal},
}

func registerPrelude(m *Model) {
	for _, p := range preludeKinds {
		if _, ok := m.shapes[p.id]; ok {
			continue
		}
		m.shapes[p.id] = &Shape{ID: p.id, Kind: p.kind}
		m.order = append(m.order, p.id)
	}
}
