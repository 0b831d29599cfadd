package xmlgen

import (
	wiregen "github.com/wiregen/wiregen"
	"github.com/wiregen/wiregen/binding"
	"github.com/wiregen/wiregen/internal/gen"
	"github.com/wiregen/wiregen/model"
	"github.com/wiregen/wiregen/protocol/internal/rt"
)

// ShapeDeserializer interns the parser for a structure or union over one
// parsed element node.
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
		default:
			return wiregen.Unsupported(g.Proto, string(id), "shape kind "+shape.Kind.String()+" has no standalone XML deserializer")
		}
	})
}

// BodyDeserializer interns the document-body decoder for an operation
// structure, mutating the caller's builder so non-body bindings survive.
func (g *Generator) BodyDeserializer(st *wiregen.GenState, id model.ShapeID, descs []binding.Descriptor) (wiregen.FuncHandle, error) {
	shape := st.Model.Expect(id)
	name := wiregen.FuncName("deserialize", g.Proto, id.Name(), "Body")
	return st.Registry.Intern(rt.ModuleDeserializers, name, func(w *gen.Writer) error {
		if shape.Kind != model.KindStructure {
			return wiregen.Unsupported(g.Proto, string(id), "operation body must be a structure")
		}
		e := &emitter{st: st, g: g, w: w, retZero: ""}
		w.Import(st.Symbols.TypesImport())
		w.Import(rt.XMLCodec)
		w.W("func %s(n *xmlcodec.Node, b *%s) error {", name, st.Symbols.BuilderType(id))
		docs := elementDescriptors(descs)
		if len(docs) == 0 {
			w.W("_ = n")
		}
		for _, d := range docs {
			if err := e.deserializeMember(d.Member, wireNameOf(d)); err != nil {
				return err
			}
		}
		w.W("return nil")
		w.W("}")
		return nil
	})
}

func (e *emitter) structDeserializer(name string, shape *model.Shape) error {
	e.w.Import(e.st.Symbols.TypesImport())
	e.w.Import(rt.XMLCodec)
	e.w.W("func %s(n *xmlcodec.Node) (%s, error) {", name, e.st.Symbols.ShapeType(shape.ID))
	e.w.W("b := %s", wiregen.BuilderNew(e.st.Symbols, shape.ID))
	if len(shape.Members) == 0 {
		e.w.W("_ = n")
	}
	for i := range shape.Members {
		mem := &shape.Members[i]
		if err := e.deserializeMember(mem, wireName(mem)); err != nil {
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
	target := e.st.Model.Expect(mem.Target)
	tag := e.st.Symbols.EscapeWireName(wire)
	set := "b.Set" + wiregen.GoName(mem.Name)

	if mem.XMLAttribute {
		if target.Kind != model.KindString && target.Kind != model.KindEnum {
			return wiregen.Unsupported(e.g.Proto, string(mem.Target), "attribute member "+mem.Name+" must target a string")
		}
		e.w.W("if s, ok := n.Attrs[\"%s\"]; ok {", tag)
		if target.Kind == model.KindEnum {
			e.w.W("%s(%s(s))", set, e.st.Symbols.ShapeType(target.ID))
		} else {
			e.w.W("%s(s)", set)
		}
		e.w.W("}")
		return nil
	}

	switch target.Kind {
	case model.KindList:
		return e.deserializeList(mem, target, tag, set)
	case model.KindMap:
		return e.deserializeMap(mem, target, tag, set)
	case model.KindStructure, model.KindUnion:
		handle, err := e.g.ShapeDeserializer(e.st, target.ID)
		if err != nil {
			return err
		}
		c := e.tmp("c")
		e.w.W("if %s := n.Child(\"%s\"); %s != nil {", c, tag, c)
		v := e.tmp("sv")
		e.w.W("%s, %sErr := %s(%s)", v, v, handle, c)
		e.fail(v + "Err")
		e.w.W("%s(%s)", set, v)
		e.w.W("}")
		return nil
	case model.KindDocument:
		return wiregen.Unsupported(e.g.Proto, string(target.ID), "document values cannot be expressed in XML bodies")
	case model.KindBigInteger, model.KindBigDecimal:
		return wiregen.NotImplemented(e.g.Proto, string(target.ID), "arbitrary-precision numbers are not supported in XML bodies")
	default:
		c := e.tmp("c")
		e.w.W("if %s := n.Child(\"%s\"); %s != nil {", c, tag, c)
		expr, err := e.parseLeaf(mem, c+".Text")
		if err != nil {
			return err
		}
		e.w.W("%s(%s)", set, expr)
		e.w.W("}")
		return nil
	}
}

func (e *emitter) deserializeList(mem *model.Member, target *model.Shape, tag, set string) error {
	elemType := e.st.Symbols.ShapeType(target.ListMember.Target)
	out := e.tmp("xs")

	itemsExpr := "n.ChildAll(\"" + tag + "\")"
	if !mem.Flattened {
		elemTag := e.st.Symbols.EscapeWireName(wireName(target.ListMember))
		if target.ListMember.WireName == "" {
			elemTag = "member"
		}
		c := e.tmp("c")
		e.w.W("if %s := n.Child(\"%s\"); %s != nil {", c, tag, c)
		itemsExpr = c + ".ChildAll(\"" + elemTag + "\")"
		defer func() {
			e.w.W("}")
		}()
	}
	e.w.W("var %s []%s", out, elemType)
	item := e.tmp("it")
	e.w.W("for _, %s := range %s {", item, itemsExpr)
	expr, err := e.decodeNode(target.ListMember, item)
	if err != nil {
		return err
	}
	e.w.W("%s = append(%s, %s)", out, out, expr)
	e.w.W("}")
	e.w.W("%s(%s)", set, out)
	return nil
}

func (e *emitter) deserializeMap(mem *model.Member, target *model.Shape, tag, set string) error {
	valType := e.st.Symbols.ShapeType(target.MapValue.Target)
	out := e.tmp("xm")

	entriesExpr := "n.ChildAll(\"" + tag + "\")"
	if !mem.Flattened {
		c := e.tmp("c")
		e.w.W("if %s := n.Child(\"%s\"); %s != nil {", c, tag, c)
		entriesExpr = c + `.ChildAll("entry")`
		defer func() {
			e.w.W("}")
		}()
	}
	e.w.W("%s := map[string]%s{}", out, valType)
	en := e.tmp("en")
	e.w.W("for _, %s := range %s {", en, entriesExpr)
	e.w.W("key, ok := %s.ChildText(\"key\")", en)
	e.w.W("if !ok {")
	e.w.W("continue")
	e.w.W("}")
	val := e.tmp("vn")
	e.w.W("%s := %s.Child(\"value\")", val, en)
	e.w.W("if %s == nil {", val)
	e.w.W("continue")
	e.w.W("}")
	expr, err := e.decodeNode(target.MapValue, val)
	if err != nil {
		return err
	}
	e.w.W("%s[key] = %s", out, expr)
	e.w.W("}")
	e.w.W("%s(%s)", set, out)
	return nil
}

// decodeNode returns the expression decoding one element node into the
// member's value, emitting statements as needed.
func (e *emitter) decodeNode(mem *model.Member, node string) (string, error) {
	target := e.st.Model.Expect(mem.Target)
	switch target.Kind {
	case model.KindStructure, model.KindUnion:
		handle, err := e.g.ShapeDeserializer(e.st, target.ID)
		if err != nil {
			return "", err
		}
		v := e.tmp("sv")
		e.w.W("%s, %sErr := %s(%s)", v, v, handle, node)
		e.fail(v + "Err")
		return v, nil
	case model.KindList, model.KindMap:
		return "", wiregen.Unsupported(e.g.Proto, string(target.ID), "directly nested collections need a named wrapper structure")
	default:
		return e.parseLeaf(mem, node+".Text")
	}
}

func (e *emitter) unionDeserializer(name string, shape *model.Shape) error {
	e.w.Import(e.st.Symbols.TypesImport())
	e.w.Import(rt.XMLCodec)
	e.w.Import("fmt")
	unionType := e.st.Symbols.ShapeType(shape.ID)
	e.w.W("func %s(n *xmlcodec.Node) (%s, error) {", name, unionType)
	e.w.W("if len(n.Children) != 1 {")
	e.w.W("return nil, fmt.Errorf(\"expected exactly one member element for union %s, got %%d\", len(n.Children))", unionType)
	e.w.W("}")
	e.w.W("c := n.Children[0]")
	e.w.W("switch c.Name {")
	for i := range shape.Members {
		mem := &shape.Members[i]
		e.w.W("case \"%s\":", e.st.Symbols.EscapeWireName(wireName(mem)))
		expr, err := e.decodeNode(mem, "c")
		if err != nil {
			return err
		}
		e.w.W("return &%sMember%s{Value: %s}, nil", unionType, wiregen.GoName(mem.Name), expr)
	}
	e.w.W("}")
	e.w.W("return nil, fmt.Errorf(\"unknown variant %%q for union %s\", c.Name)", unionType)
	e.w.W("}")
	return nil
}

// parseLeaf returns the expression decoding scalar text, emitting parse
// statements and error checks.
func (e *emitter) parseLeaf(mem *model.Member, src string) (string, error) {
	target := e.st.Model.Expect(mem.Target)
	switch target.Kind {
	case model.KindString:
		return src, nil
	case model.KindEnum:
		return e.st.Symbols.ShapeType(target.ID) + "(" + src + ")", nil
	case model.KindBoolean:
		e.w.Import("strconv")
		v := e.tmp("xb")
		e.w.W("%s, %sErr := strconv.ParseBool(%s)", v, v, src)
		e.fail(v + "Err")
		return v, nil
	case model.KindByte, model.KindShort, model.KindInteger, model.KindLong:
		e.w.Import("strconv")
		v := e.tmp("xn")
		e.w.W("%s, %sErr := strconv.ParseInt(%s, 10, 64)", v, v, src)
		e.fail(v + "Err")
		if target.Kind == model.KindLong {
			return v, nil
		}
		return e.st.Symbols.ShapeType(target.ID) + "(" + v + ")", nil
	case model.KindFloat, model.KindDouble:
		e.w.Import("strconv")
		v := e.tmp("xf")
		e.w.W("%s, %sErr := strconv.ParseFloat(%s, 64)", v, v, src)
		e.fail(v + "Err")
		if target.Kind == model.KindFloat {
			return "float32(" + v + ")", nil
		}
		return v, nil
	case model.KindBlob:
		e.w.Import("encoding/base64")
		v := e.tmp("xd")
		e.w.W("%s, %sErr := base64.StdEncoding.DecodeString(%s)", v, v, src)
		e.fail(v + "Err")
		return v, nil
	case model.KindTimestamp:
		e.w.Import(rt.Wiretime)
		v := e.tmp("xt")
		switch e.g.timestampFormat(mem) {
		case model.TimestampEpochSeconds:
			e.w.W("%s, %sErr := wiretime.ParseEpochSeconds(%s)", v, v, src)
		case model.TimestampHTTPDate:
			e.w.W("%s, %sErr := wiretime.ParseHTTPDate(%s)", v, v, src)
		default:
			e.w.W("%s, %sErr := wiretime.ParseDateTime(%s)", v, v, src)
		}
		e.fail(v + "Err")
		return v, nil
	default:
		return "", wiregen.Unsupported(e.g.Proto, string(target.ID), "not a scalar kind: "+target.Kind.String())
	}
}
