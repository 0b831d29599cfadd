package jsongen

import (
	"fmt"

	wiregen "github.com/wiregen/wiregen"
	"github.com/wiregen/wiregen/binding"
	"github.com/wiregen/wiregen/internal/gen"
	"github.com/wiregen/wiregen/model"
	"github.com/wiregen/wiregen/protocol/internal/rt"
)

// ShapeDeserializer interns the parser for a container shape. Structures
// return built values (the builder runs internally); unions, lists and maps
// return their natural representations.
func (g *Generator) ShapeDeserializer(st *wiregen.GenState, id model.ShapeID) (wiregen.FuncHandle, error) {
	shape := st.Model.Expect(id)
	name := wiregen.FuncName("deserialize", g.Proto, id.Name())
	return st.Registry.Intern(rt.ModuleDeserializers, name, func(w *gen.Writer) error {
		e := &emitter{st: st, g: g, w: w, retZero: "nil, "}
		switch shape.Kind {
		case model.KindStructure:
			return e.structDeserializer(name, shape)
		case model.KindUnion:
			return e.unionDeserializer(name, shape)
		case model.KindList:
			return e.listDeserializer(name, shape)
		case model.KindMap:
			return e.mapDeserializer(name, shape)
		default:
			return wiregen.Unsupported(g.Proto, string(id), "shape kind "+shape.Kind.String()+" has no standalone deserializer")
		}
	})
}

// BodyDeserializer interns the single-pass document-body decoder for an
// operation structure: it mutates the caller's builder so header/query-bound
// fields decoded elsewhere survive, and only touches the document-bound
// descriptors.
func (g *Generator) BodyDeserializer(st *wiregen.GenState, id model.ShapeID, descs []binding.Descriptor) (wiregen.FuncHandle, error) {
	shape := st.Model.Expect(id)
	name := wiregen.FuncName("deserialize", g.Proto, id.Name(), "Body")
	return st.Registry.Intern(rt.ModuleDeserializers, name, func(w *gen.Writer) error {
		if shape.Kind != model.KindStructure {
			return wiregen.Unsupported(g.Proto, string(id), "operation body must be a structure")
		}
		e := &emitter{st: st, g: g, w: w, retZero: ""}
		e.w.Import(e.st.Symbols.TypesImport())
		e.w.Import(rt.JSONDec)
		e.w.W("func %s(raw any, b *%s) error {", name, st.Symbols.BuilderType(id))
		e.w.W("obj, err := jsondec.Object(raw)")
		e.w.W("if err != nil {")
		e.w.W("return err")
		e.w.W("}")
		docs := binding.DocumentDescriptors(descs)
		if len(docs) == 0 {
			e.w.W("_ = obj")
		}
		for _, d := range docs {
			if err := e.deserializeMember(d.Member, d.LocationName); err != nil {
				return err
			}
		}
		e.w.W("return nil")
		e.w.W("}")
		return nil
	})
}

func (e *emitter) structDeserializer(name string, shape *model.Shape) error {
	e.w.Import(e.st.Symbols.TypesImport())
	e.w.Import(rt.JSONDec)
	e.w.W("func %s(raw any) (%s, error) {", name, e.st.Symbols.ShapeType(shape.ID))
	e.w.W("obj, err := jsondec.Object(raw)")
	e.w.W("if err != nil {")
	e.w.W("return nil, err")
	e.w.W("}")
	e.w.W("b := %s", wiregen.BuilderNew(e.st.Symbols, shape.ID))
	if len(shape.Members) == 0 {
		e.w.W("_ = obj")
	}
	for i := range shape.Members {
		mem := &shape.Members[i]
		wire := mem.WireName
		if wire == "" {
			wire = mem.Name
		}
		if err := e.deserializeMember(mem, wire); err != nil {
			return err
		}
	}
	e.w.W("return b.Build()")
	e.w.W("}")
	return nil
}

func (e *emitter) deserializeMember(mem *model.Member, wire string) error {
	if mem.Streaming || mem.EventStream {
		return wiregen.Unsupported(e.g.Proto, string(mem.Target), "streaming member "+mem.Name+" cannot be document-bound")
	}
	e.w.W("if rv, ok := obj[\"%s\"]; ok && rv != nil {", e.st.Symbols.EscapeWireName(wire))
	expr, err := e.deserializeValue(mem, "rv")
	if err != nil {
		return err
	}
	e.w.W("b.Set%s(%s)", wiregen.GoName(mem.Name), expr)
	e.w.W("}")
	return nil
}

// deserializeValue emits statements decoding src (a raw JSON tree value) and
// returns the expression holding the decoded result.
func (e *emitter) deserializeValue(mem *model.Member, src string) (string, error) {
	target := e.st.Model.Expect(mem.Target)
	switch target.Kind {
	case model.KindString:
		v := e.tmp("s")
		e.w.W("%s, %sErr := jsondec.String(%s)", v, v, src)
		e.fail(v + "Err")
		return v, nil
	case model.KindEnum:
		v := e.tmp("s")
		e.w.W("%s, %sErr := jsondec.String(%s)", v, v, src)
		e.fail(v + "Err")
		return fmt.Sprintf("%s(%s)", e.st.Symbols.ShapeType(target.ID), v), nil
	case model.KindBoolean:
		v := e.tmp("bv")
		e.w.W("%s, %sErr := jsondec.Bool(%s)", v, v, src)
		e.fail(v + "Err")
		return v, nil
	case model.KindByte, model.KindShort, model.KindInteger, model.KindLong:
		v := e.tmp("n")
		e.w.W("%s, %sErr := jsondec.Long(%s)", v, v, src)
		e.fail(v + "Err")
		return fmt.Sprintf("%s(%s)", e.st.Symbols.ShapeType(target.ID), v), nil
	case model.KindFloat, model.KindDouble:
		v := e.tmp("f")
		e.w.W("%s, %sErr := jsondec.Double(%s)", v, v, src)
		e.fail(v + "Err")
		if target.Kind == model.KindFloat {
			return fmt.Sprintf("float32(%s)", v), nil
		}
		return v, nil
	case model.KindBlob:
		v := e.tmp("bl")
		e.w.W("%s, %sErr := jsondec.Blob(%s)", v, v, src)
		e.fail(v + "Err")
		return v, nil
	case model.KindTimestamp:
		return e.deserializeTimestamp(mem, src)
	case model.KindDocument:
		return src, nil
	case model.KindBigInteger, model.KindBigDecimal:
		return "", wiregen.NotImplemented(e.g.Proto, string(target.ID), "arbitrary-precision numbers are not supported in JSON bodies")
	case model.KindStructure, model.KindUnion, model.KindList, model.KindMap:
		handle, err := e.g.ShapeDeserializer(e.st, target.ID)
		if err != nil {
			return "", err
		}
		v := e.tmp("c")
		e.w.W("%s, %sErr := %s(%s)", v, v, handle, src)
		e.fail(v + "Err")
		return v, nil
	default:
		return "", wiregen.Unsupported(e.g.Proto, string(target.ID), "unexpected shape kind "+target.Kind.String())
	}
}

func (e *emitter) deserializeTimestamp(mem *model.Member, src string) (string, error) {
	e.w.Import(rt.Wiretime)
	switch e.g.TimestampFormat(mem) {
	case model.TimestampEpochSeconds:
		raw := e.tmp("tsr")
		e.w.W("%s, %sErr := jsondec.Number(%s)", raw, raw, src)
		e.fail(raw + "Err")
		v := e.tmp("ts")
		e.w.W("%s, %sErr := wiretime.ParseEpochSeconds(%s)", v, v, raw)
		e.fail(v + "Err")
		return v, nil
	case model.TimestampHTTPDate:
		raw := e.tmp("tsr")
		e.w.W("%s, %sErr := jsondec.String(%s)", raw, raw, src)
		e.fail(raw + "Err")
		v := e.tmp("ts")
		e.w.W("%s, %sErr := wiretime.ParseHTTPDate(%s)", v, v, raw)
		e.fail(v + "Err")
		return v, nil
	default:
		raw := e.tmp("tsr")
		e.w.W("%s, %sErr := jsondec.String(%s)", raw, raw, src)
		e.fail(raw + "Err")
		v := e.tmp("ts")
		e.w.W("%s, %sErr := wiretime.ParseDateTime(%s)", v, v, raw)
		e.fail(v + "Err")
		return v, nil
	}
}

func (e *emitter) unionDeserializer(name string, shape *model.Shape) error {
	e.w.Import(e.st.Symbols.TypesImport())
	e.w.Import(rt.JSONDec)
	e.w.Import("fmt")
	unionType := e.st.Symbols.ShapeType(shape.ID)
	e.w.W("func %s(raw any) (%s, error) {", name, unionType)
	e.w.W("obj, err := jsondec.Object(raw)")
	e.w.W("if err != nil {")
	e.w.W("return nil, err")
	e.w.W("}")
	e.w.W("if len(obj) != 1 {")
	e.w.W("return nil, fmt.Errorf(\"expected exactly one member for union %s, got %%d\", len(obj))", unionType)
	e.w.W("}")
	e.w.W("var key string")
	e.w.W("var rv any")
	e.w.W("for k, v := range obj {")
	e.w.W("key, rv = k, v")
	e.w.W("}")
	e.w.W("switch key {")
	for i := range shape.Members {
		mem := &shape.Members[i]
		wire := mem.WireName
		if wire == "" {
			wire = mem.Name
		}
		e.w.W("case \"%s\":", e.st.Symbols.EscapeWireName(wire))
		expr, err := e.deserializeValue(mem, "rv")
		if err != nil {
			return err
		}
		e.w.W("return &%s{Value: %s}, nil", unionVariantType(e.st, shape.ID, mem), expr)
	}
	e.w.W("}")
	e.w.W("return nil, fmt.Errorf(\"unknown variant %%q for union %s\", key)", unionType)
	e.w.W("}")
	return nil
}

func (e *emitter) listDeserializer(name string, shape *model.Shape) error {
	e.w.Import(e.st.Symbols.TypesImport())
	e.w.Import(rt.JSONDec)
	elemType := e.st.Symbols.ShapeType(shape.ListMember.Target)
	e.w.W("func %s(raw any) (%s, error) {", name, e.st.Symbols.ShapeType(shape.ID))
	e.w.W("arr, err := jsondec.Array(raw)")
	e.w.W("if err != nil {")
	e.w.W("return nil, err")
	e.w.W("}")
	e.w.W("out := make([]%s, 0, len(arr))", elemType)
	e.w.W("for _, item := range arr {")
	expr, err := e.deserializeValue(shape.ListMember, "item")
	if err != nil {
		return err
	}
	e.w.W("out = append(out, %s)", expr)
	e.w.W("}")
	e.w.W("return out, nil")
	e.w.W("}")
	return nil
}

func (e *emitter) mapDeserializer(name string, shape *model.Shape) error {
	e.w.Import(e.st.Symbols.TypesImport())
	e.w.Import(rt.JSONDec)
	valType := e.st.Symbols.ShapeType(shape.MapValue.Target)
	e.w.W("func %s(raw any) (%s, error) {", name, e.st.Symbols.ShapeType(shape.ID))
	e.w.W("obj, err := jsondec.Object(raw)")
	e.w.W("if err != nil {")
	e.w.W("return nil, err")
	e.w.W("}")
	e.w.W("out := make(map[string]%s, len(obj))", valType)
	e.w.W("for k, item := range obj {")
	expr, err := e.deserializeValue(shape.MapValue, "item")
	if err != nil {
		return err
	}
	e.w.W("out[k] = %s", expr)
	e.w.W("}")
	e.w.W("return out, nil")
	e.w.W("}")
	return nil
}
