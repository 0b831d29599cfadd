package jsongen

import (
	"fmt"

	wiregen "github.com/wiregen/wiregen"
	"github.com/wiregen/wiregen/binding"
	"github.com/wiregen/wiregen/internal/gen"
	"github.com/wiregen/wiregen/model"
	"github.com/wiregen/wiregen/protocol/internal/rt"
)

// ShapeSerializer interns the serializer for a container shape and returns
// its handle. Scalar leaves are always emitted inline by the caller; only
// structures, unions, lists and maps become functions.
func (g *Generator) ShapeSerializer(st *wiregen.GenState, id model.ShapeID) (wiregen.FuncHandle, error) {
	shape := st.Model.Expect(id)
	name := wiregen.FuncName("serialize", g.Proto, id.Name())
	return st.Registry.Intern(rt.ModuleSerializers, name, func(w *gen.Writer) error {
		e := &emitter{st: st, g: g, w: w, retZero: ""}
		switch shape.Kind {
		case model.KindStructure:
			return e.structSerializer(name, shape, AllDescriptors(shape))
		case model.KindUnion:
			return e.unionSerializer(name, shape)
		case model.KindList:
			return e.listSerializer(name, shape)
		case model.KindMap:
			return e.mapSerializer(name, shape)
		default:
			return wiregen.Unsupported(g.Proto, string(id), "shape kind "+shape.Kind.String()+" has no standalone serializer")
		}
	})
}

// BodySerializer interns the document-body serializer for an operation
// structure: only the document-bound descriptors are emitted. Protocols with
// synthesized bindings pass every member; REST protocols pass the subset left
// after headers, query, labels and payload are peeled off.
func (g *Generator) BodySerializer(st *wiregen.GenState, id model.ShapeID, descs []binding.Descriptor) (wiregen.FuncHandle, error) {
	shape := st.Model.Expect(id)
	name := wiregen.FuncName("serialize", g.Proto, id.Name(), "Body")
	return st.Registry.Intern(rt.ModuleSerializers, name, func(w *gen.Writer) error {
		e := &emitter{st: st, g: g, w: w, retZero: ""}
		return e.structSerializer(name, shape, binding.DocumentDescriptors(descs))
	})
}

func (e *emitter) structSerializer(name string, shape *model.Shape, descs []binding.Descriptor) error {
	e.w.Import(e.st.Symbols.TypesImport())
	e.w.Import(rt.JSONEnc)
	e.w.W("func %s(v %s, jv jsonenc.Value) error {", name, e.st.Symbols.ShapeType(shape.ID))
	e.w.W("obj := jv.Object()")
	if len(descs) == 0 {
		e.w.W("_ = v")
	}
	for _, d := range descs {
		if err := e.serializeMember(d.Member, d.LocationName); err != nil {
			return err
		}
	}
	e.w.W("obj.Close()")
	e.w.W("return nil")
	e.w.W("}")
	return nil
}

func (e *emitter) serializeMember(mem *model.Member, wire string) error {
	if mem.Streaming || mem.EventStream {
		return wiregen.Unsupported(e.g.Proto, string(mem.Target), "streaming member "+mem.Name+" cannot be document-bound")
	}
	field := "v." + wiregen.GoName(mem.Name)
	expr := field
	guarded := mem.Optional
	if guarded && e.st.Symbols.PointerOptional(mem.Target) {
		expr = "*" + field
	}
	dst := fmt.Sprintf("obj.Key(\"%s\")", e.st.Symbols.EscapeWireName(wire))
	if guarded {
		e.w.W("if %s != nil {", field)
	}
	if err := e.serializeValue(mem, expr, dst); err != nil {
		return err
	}
	if guarded {
		e.w.W("}")
	}
	return nil
}

// serializeValue emits statements that write expr (already dereferenced) into
// dst, a jsonenc.Value expression.
func (e *emitter) serializeValue(mem *model.Member, expr, dst string) error {
	target := e.st.Model.Expect(mem.Target)
	switch target.Kind {
	case model.KindString:
		e.w.W("%s.String(%s)", dst, expr)
	case model.KindEnum:
		e.w.W("%s.String(string(%s))", dst, expr)
	case model.KindBoolean:
		e.w.W("%s.Bool(%s)", dst, expr)
	case model.KindByte, model.KindShort, model.KindInteger, model.KindLong:
		e.w.W("%s.Long(int64(%s))", dst, expr)
	case model.KindFloat, model.KindDouble:
		e.w.W("%s.Double(float64(%s))", dst, expr)
	case model.KindBlob:
		e.w.W("%s.Base64(%s)", dst, expr)
	case model.KindTimestamp:
		e.w.Import(rt.Wiretime)
		switch e.g.TimestampFormat(mem) {
		case model.TimestampEpochSeconds:
			e.w.W("%s.Raw([]byte(wiretime.FormatEpochSeconds(%s)))", dst, expr)
		case model.TimestampHTTPDate:
			e.w.W("%s.String(wiretime.FormatHTTPDate(%s))", dst, expr)
		default:
			e.w.W("%s.String(wiretime.FormatDateTime(%s))", dst, expr)
		}
	case model.KindDocument:
		e.w.Import(rt.Document)
		d := e.tmp("doc")
		e.w.W("%s, %sErr := document.Marshal(%s)", d, d, expr)
		e.fail(d + "Err")
		e.w.W("%s.Raw(%s)", dst, d)
	case model.KindBigInteger, model.KindBigDecimal:
		return wiregen.NotImplemented(e.g.Proto, string(target.ID), "arbitrary-precision numbers are not supported in JSON bodies")
	case model.KindStructure, model.KindUnion, model.KindList, model.KindMap:
		handle, err := e.g.ShapeSerializer(e.st, target.ID)
		if err != nil {
			return err
		}
		e.w.W("if err := %s(%s, %s); err != nil {", handle, expr, dst)
		e.w.W("return %serr", e.retZero)
		e.w.W("}")
	default:
		return wiregen.Unsupported(e.g.Proto, string(target.ID), "unexpected shape kind "+target.Kind.String())
	}
	return nil
}

func (e *emitter) unionSerializer(name string, shape *model.Shape) error {
	e.w.Import(e.st.Symbols.TypesImport())
	e.w.Import(rt.JSONEnc)
	e.w.Import("fmt")
	unionType := e.st.Symbols.ShapeType(shape.ID)
	e.w.W("func %s(v %s, jv jsonenc.Value) error {", name, unionType)
	e.w.W("obj := jv.Object()")
	e.w.W("switch uv := v.(type) {")
	for i := range shape.Members {
		mem := &shape.Members[i]
		e.w.W("case *%s:", unionVariantType(e.st, shape.ID, mem))
		// av may go unused when the variant target carries no data.
		e.w.W("av := uv.Value")
		e.w.W("_ = av")
		wire := mem.WireName
		if wire == "" {
			wire = mem.Name
		}
		dst := fmt.Sprintf("obj.Key(\"%s\")", e.st.Symbols.EscapeWireName(wire))
		if err := e.serializeValue(mem, "av", dst); err != nil {
			return err
		}
	}
	e.w.W("default:")
	e.w.W("return fmt.Errorf(\"unknown variant for union %s\")", unionType)
	e.w.W("}")
	e.w.W("obj.Close()")
	e.w.W("return nil")
	e.w.W("}")
	return nil
}

func (e *emitter) listSerializer(name string, shape *model.Shape) error {
	e.w.Import(e.st.Symbols.TypesImport())
	e.w.Import(rt.JSONEnc)
	e.w.W("func %s(v %s, jv jsonenc.Value) error {", name, e.st.Symbols.ShapeType(shape.ID))
	e.w.W("arr := jv.Array()")
	e.w.W("for _, item := range v {")
	if err := e.serializeValue(shape.ListMember, "item", "arr.Value()"); err != nil {
		return err
	}
	e.w.W("}")
	e.w.W("arr.Close()")
	e.w.W("return nil")
	e.w.W("}")
	return nil
}

func (e *emitter) mapSerializer(name string, shape *model.Shape) error {
	e.w.Import(e.st.Symbols.TypesImport())
	e.w.Import(rt.JSONEnc)
	e.w.W("func %s(v %s, jv jsonenc.Value) error {", name, e.st.Symbols.ShapeType(shape.ID))
	e.w.W("obj := jv.Object()")
	e.w.W("for k, item := range v {")
	if err := e.serializeValue(shape.MapValue, "item", "obj.Key(k)"); err != nil {
		return err
	}
	e.w.W("}")
	e.w.W("obj.Close()")
	e.w.W("return nil")
	e.w.W("}")
	return nil
}
