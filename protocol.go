package wiregen

import (
	"strings"

	"go.uber.org/zap"

	"github.com/wiregen/wiregen/model"
)

// ContentTypes carries a protocol's default media types. Binding resolution
// may override them per operation (string/blob payloads).
type ContentTypes struct {
	Request     string
	Response    string
	EventStream string
}

// Protocol is the capability interface every wire protocol implements. A
// protocol knows its content types, its default timestamp encoding, how to
// derive the wire error code for an error shape, and how to produce the
// serializer/parser entry points for an operation. Implementations live in
// the protocol/ subpackages and are composed by the driver; they share no
// state beyond the registry inside GenState.
type Protocol interface {
	// Name identifies the protocol ("awsjson", "restxml", ...). It participates
	// in generated function names, so it must be stable across runs.
	Name() string

	ContentTypes() ContentTypes

	// TimestampFormat is the protocol default; member-level overrides win.
	TimestampFormat() model.TimestampFormat

	// SerializerFor interns and returns the request serializer entry point for
	// an operation shape.
	SerializerFor(g *GenState, op model.ShapeID) (FuncHandle, error)

	// ParserFor interns and returns the response parser entry point for an
	// operation shape, including the error-discrimination dispatch over the
	// operation's declared error shapes.
	ParserFor(g *GenState, op model.ShapeID) (FuncHandle, error)

	// GenericErrorParser interns the protocol-wide error envelope parser used
	// as the discrimination fallback.
	GenericErrorParser(g *GenState) (FuncHandle, error)

	// ErrorCode returns the wire code an error shape is matched by. The shape
	// name is the default; an explicit error-code trait takes precedence. This
	// is a dedicated policy, deliberately separate from general field-name
	// derivation.
	ErrorCode(shape *model.Shape) string
}

// SymbolResolver is the boundary to the symbol-resolution and name-escaping
// collaborators: it maps shapes to target-language types and decides how
// optionality is represented. The generator core never invents type names
// itself.
type SymbolResolver interface {
	// ShapeType returns the Go type expression for values of the shape
	// (structures as pointers to their struct type).
	ShapeType(id model.ShapeID) string
	// BuilderType returns the builder type the parser mutates before Build().
	BuilderType(id model.ShapeID) string
	// PointerOptional reports whether optional values of the shape are
	// pointer-wrapped (true) or present-by-default (false, e.g. slices, maps,
	// blobs and unions, which are nil-able already).
	PointerOptional(id model.ShapeID) bool
	// EscapeWireName escapes a member's wire name for embedding in generated
	// string literals.
	EscapeWireName(name string) string
	// TypesImport is the import path of the package holding the generated
	// value types and builders.
	TypesImport() string
}

// GenState bundles everything a protocol needs while generating: the model,
// the function registry, the symbol collaborator, and a logger. One GenState
// may be shared across concurrently generated operations; the registry is the
// only mutable field.
type GenState struct {
	Model    *model.Model
	Registry *Registry
	Symbols  SymbolResolver
	Log      *zap.Logger
}

// DefaultSymbols is the symbol resolver used by tests and the CLI when no
// external resolver is wired: primitives map to Go natives, declared
// structures/unions/enums to types.<Name>, lists and maps to their element
// compositions, and optional scalars are pointer-wrapped.
type DefaultSymbols struct {
	Model *model.Model
	// Types is the import path of the generated types package; the default is
	// a placeholder the output writer rewrites.
	Types string
}

// NewDefaultSymbols returns a resolver over m.
func NewDefaultSymbols(m *model.Model) *DefaultSymbols {
	return &DefaultSymbols{Model: m, Types: "example.com/generated/types"}
}

func (s *DefaultSymbols) ShapeType(id model.ShapeID) string {
	shape := s.Model.Expect(id)
	switch shape.Kind {
	case model.KindStructure:
		return "*types." + id.Name()
	case model.KindUnion, model.KindEnum:
		return "types." + id.Name()
	case model.KindList:
		return "[]" + s.ShapeType(shape.ListMember.Target)
	case model.KindMap:
		return "map[string]" + s.ShapeType(shape.MapValue.Target)
	case model.KindString:
		return "string"
	case model.KindBoolean:
		return "bool"
	case model.KindByte:
		return "int8"
	case model.KindShort:
		return "int16"
	case model.KindInteger:
		return "int32"
	case model.KindLong:
		return "int64"
	case model.KindFloat:
		return "float32"
	case model.KindDouble:
		return "float64"
	case model.KindBlob:
		return "[]byte"
	case model.KindTimestamp:
		return "time.Time"
	case model.KindDocument:
		return "document.Document"
	case model.KindBigInteger:
		return "*big.Int"
	case model.KindBigDecimal:
		return "*big.Float"
	default:
		return "any"
	}
}

func (s *DefaultSymbols) BuilderType(id model.ShapeID) string {
	return "types." + id.Name() + "Builder"
}

func (s *DefaultSymbols) PointerOptional(id model.ShapeID) bool {
	switch s.Model.Expect(id).Kind {
	case model.KindStructure, model.KindUnion, model.KindList, model.KindMap, model.KindBlob, model.KindDocument, model.KindBigInteger, model.KindBigDecimal:
		return false
	}
	return true
}

func (s *DefaultSymbols) EscapeWireName(name string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return r.Replace(name)
}

func (s *DefaultSymbols) TypesImport() string { return s.Types }

// FuncName derives a generated function name from its parts: the verb
// ("serialize"/"parse"), the protocol name, and the shape/member path plus
// any protocol-specific context such as a timestamp format. Names are fully
// deterministic; colliding human-readable names for unrelated shapes are
// disambiguated by their path, never by a counter.
func FuncName(verb, protocol string, parts ...string) string {
	var b strings.Builder
	b.WriteString(verb)
	b.WriteString(GoName(protocol))
	for _, p := range parts {
		b.WriteString(GoName(p))
	}
	return b.String()
}

// BuilderNew derives the builder constructor expression from the resolver's
// builder type: "types.XBuilder" becomes "types.NewXBuilder()".
func BuilderNew(s SymbolResolver, id model.ShapeID) string {
	bt := s.BuilderType(id)
	if i := strings.LastIndexByte(bt, '.'); i >= 0 {
		return bt[:i+1] + "New" + bt[i+1:] + "()"
	}
	return "New" + bt + "()"
}

// GoName converts a shape, member or protocol name into an exported Go
// identifier fragment: separators are dropped and the following rune is
// upper-cased.
func GoName(s string) string {
	out := make([]rune, 0, len(s))
	upper := true
	for _, r := range s {
		switch {
		case r == '-' || r == '_' || r == '#' || r == '.' || r == ' ':
			upper = true
		case upper:
			out = append(out, toUpper(r))
			upper = false
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

func toUpper(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - ('a' - 'A')
	}
	return r
}
