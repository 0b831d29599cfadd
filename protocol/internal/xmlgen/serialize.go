package xmlgen

import (
	wiregen "github.com/wiregen/wiregen"
	"github.com/wiregen/wiregen/binding"
	"github.com/wiregen/wiregen/internal/gen"
	"github.com/wiregen/wiregen/model"
	"github.com/wiregen/wiregen/protocol/internal/rt"
)

// ShapeSerializer interns the serializer for a structure or union: it writes
// one element named by the tag argument containing the shape's members.
func (g *Generator) ShapeSerializer(st *wiregen.GenState, id model.ShapeID) (wiregen.FuncHandle, error) {
	shape := st.Model.Expect(id)
	name := wiregen.FuncName("serialize", g.Proto, id.Name())
	return st.Registry.Intern(rt.ModuleSerializers, name, func(w *gen.Writer) error {
		e := &emitter{st: st, g: g, w: w, retZero: ""}
		switch shape.Kind {
		case model.KindStructure:
			return e.structSerializer(name, shape)
		case model.KindUnion:
			return e.unionSerializer(name, shape)
		default:
			return wiregen.Unsupported(g.Proto, string(id), "shape kind "+shape.Kind.String()+" has no standalone XML serializer")
		}
	})
}

// BodySerializer interns the operation body serializer: one root element
// named after the operation structure, holding the document-bound members.
func (g *Generator) BodySerializer(st *wiregen.GenState, id model.ShapeID, descs []binding.Descriptor) (wiregen.FuncHandle, error) {
	shape := st.Model.Expect(id)
	name := wiregen.FuncName("serialize", g.Proto, id.Name(), "Body")
	return st.Registry.Intern(rt.ModuleSerializers, name, func(w *gen.Writer) error {
		e := &emitter{st: st, g: g, w: w, retZero: ""}
		w.Import(st.Symbols.TypesImport())
		w.Import(rt.XMLCodec)
		root := st.Symbols.EscapeWireName(id.Name())
		w.W("func %s(v %s, xw *xmlcodec.Writer) error {", name, st.Symbols.ShapeType(id))
		docs := elementDescriptors(descs)
		if err := e.openElement(shape, docs, "\""+root+"\""); err != nil {
			return err
		}
		for _, d := range docs {
			if err := e.serializeMember(d.Member, wireNameOf(d)); err != nil {
				return err
			}
		}
		w.W("xw.End(\"%s\")", root)
		w.W("return nil")
		w.W("}")
		return nil
	})
}

func wireNameOf(d binding.Descriptor) string {
	if d.LocationName != "" {
		return d.LocationName
	}
	return wireName(d.Member)
}

func (e *emitter) structSerializer(name string, shape *model.Shape) error {
	e.w.Import(e.st.Symbols.TypesImport())
	e.w.Import(rt.XMLCodec)
	e.w.W("func %s(v %s, xw *xmlcodec.Writer, tag string) error {", name, e.st.Symbols.ShapeType(shape.ID))
	descs := make([]binding.Descriptor, 0, len(shape.Members))
	for i := range shape.Members {
		mem := &shape.Members[i]
		descs = append(descs, binding.Descriptor{Member: mem, Location: binding.LocationDocument, LocationName: wireName(mem)})
	}
	if err := e.openElement(shape, descs, "tag"); err != nil {
		return err
	}
	used := false
	for _, d := range descs {
		if d.Member.XMLAttribute {
			continue
		}
		used = true
		if err := e.serializeMember(d.Member, d.LocationName); err != nil {
			return err
		}
	}
	if !used && !hasAttributes(descs) {
		e.w.W("_ = v")
	}
	e.w.W("xw.End(tag)")
	e.w.W("return nil")
	e.w.W("}")
	return nil
}

// openElement emits the Start call, collecting attribute-bound members
// first. The tagExpr is either a quoted literal or the tag parameter.
func (e *emitter) openElement(shape *model.Shape, descs []binding.Descriptor, tagExpr string) error {
	if !hasAttributes(descs) {
		e.w.W("xw.Start(%s)", tagExpr)
		return nil
	}
	e.w.W("var attrs []xmlcodec.Attr")
	for _, d := range descs {
		mem := d.Member
		if !mem.XMLAttribute {
			continue
		}
		target := e.st.Model.Expect(mem.Target)
		if target.Kind != model.KindString && target.Kind != model.KindEnum {
			return wiregen.Unsupported(e.g.Proto, string(mem.Target), "attribute member "+mem.Name+" must target a string")
		}
		field := "v." + wiregen.GoName(mem.Name)
		expr := field
		if mem.Optional && e.st.Symbols.PointerOptional(mem.Target) {
			expr = "*" + field
		}
		if target.Kind == model.KindEnum {
			expr = "string(" + expr + ")"
		}
		if mem.Optional {
			e.w.W("if %s != nil {", field)
		}
		e.w.W("attrs = append(attrs, xmlcodec.Attr{Name: \"%s\", Value: %s})", e.st.Symbols.EscapeWireName(wireNameOf(d)), expr)
		if mem.Optional {
			e.w.W("}")
		}
	}
	e.w.W("xw.Start(%s, attrs...)", tagExpr)
	return nil
}

func hasAttributes(descs []binding.Descriptor) bool {
	for _, d := range descs {
		if d.Member.XMLAttribute {
			return true
		}
	}
	return false
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
	if guarded {
		e.w.W("if %s != nil {", field)
	}
	if err := e.serializeValue(mem, expr, wire); err != nil {
		return err
	}
	if guarded {
		e.w.W("}")
	}
	return nil
}

// serializeValue emits statements writing expr under the wire element name.
func (e *emitter) serializeValue(mem *model.Member, expr, wire string) error {
	target := e.st.Model.Expect(mem.Target)
	tag := e.st.Symbols.EscapeWireName(wire)
	switch target.Kind {
	case model.KindString, model.KindEnum, model.KindBoolean, model.KindByte,
		model.KindShort, model.KindInteger, model.KindLong, model.KindFloat,
		model.KindDouble, model.KindBlob, model.KindTimestamp:
		str, err := e.formatLeaf(mem, expr)
		if err != nil {
			return err
		}
		e.w.W("xw.Element(\"%s\", %s)", tag, str)
	case model.KindStructure, model.KindUnion:
		handle, err := e.g.ShapeSerializer(e.st, target.ID)
		if err != nil {
			return err
		}
		e.w.W("if err := %s(%s, xw, \"%s\"); err != nil {", handle, expr, tag)
		e.w.W("return %serr", e.retZero)
		e.w.W("}")
	case model.KindList:
		return e.serializeList(mem, target, expr, tag)
	case model.KindMap:
		return e.serializeMap(mem, target, expr, tag)
	case model.KindDocument:
		return wiregen.Unsupported(e.g.Proto, string(target.ID), "document values cannot be expressed in XML bodies")
	case model.KindBigInteger, model.KindBigDecimal:
		return wiregen.NotImplemented(e.g.Proto, string(target.ID), "arbitrary-precision numbers are not supported in XML bodies")
	default:
		return wiregen.Unsupported(e.g.Proto, string(target.ID), "unexpected shape kind "+target.Kind.String())
	}
	return nil
}

func (e *emitter) serializeList(mem *model.Member, target *model.Shape, expr, tag string) error {
	item := e.tmp("it")
	elemTag := tag
	if !mem.Flattened {
		e.w.W("xw.Start(\"%s\")", tag)
		elemTag = e.st.Symbols.EscapeWireName(wireName(target.ListMember))
		if target.ListMember.WireName == "" {
			elemTag = "member"
		}
	}
	e.w.W("for _, %s := range %s {", item, expr)
	if err := e.serializeValue(target.ListMember, item, elemTag); err != nil {
		return err
	}
	e.w.W("}")
	if !mem.Flattened {
		e.w.W("xw.End(\"%s\")", tag)
	}
	return nil
}

func (e *emitter) serializeMap(mem *model.Member, target *model.Shape, expr, tag string) error {
	e.w.Import("sort")
	keys := e.tmp("ks")
	e.w.W("%s := make([]string, 0, len(%s))", keys, expr)
	e.w.W("for k := range %s {", expr)
	e.w.W("%s = append(%s, k)", keys, keys)
	e.w.W("}")
	e.w.W("sort.Strings(%s)", keys)

	entryTag := "entry"
	if !mem.Flattened {
		e.w.W("xw.Start(\"%s\")", tag)
	} else {
		entryTag = tag
	}
	k := e.tmp("mk")
	e.w.W("for _, %s := range %s {", k, keys)
	e.w.W("xw.Start(\"%s\")", entryTag)
	e.w.W("xw.Element(\"key\", %s)", k)
	if err := e.serializeValue(target.MapValue, expr+"["+k+"]", "value"); err != nil {
		return err
	}
	e.w.W("xw.End(\"%s\")", entryTag)
	e.w.W("}")
	if !mem.Flattened {
		e.w.W("xw.End(\"%s\")", tag)
	}
	return nil
}

func (e *emitter) unionSerializer(name string, shape *model.Shape) error {
	e.w.Import(e.st.Symbols.TypesImport())
	e.w.Import(rt.XMLCodec)
	e.w.Import("fmt")
	unionType := e.st.Symbols.ShapeType(shape.ID)
	e.w.W("func %s(v %s, xw *xmlcodec.Writer, tag string) error {", name, unionType)
	e.w.W("xw.Start(tag)")
	e.w.W("switch uv := v.(type) {")
	base := unionType
	for i := range shape.Members {
		mem := &shape.Members[i]
		e.w.W("case *%sMember%s:", base, wiregen.GoName(mem.Name))
		e.w.W("av := uv.Value")
		e.w.W("_ = av")
		if err := e.serializeValue(mem, "av", wireName(mem)); err != nil {
			return err
		}
	}
	e.w.W("default:")
	e.w.W("return fmt.Errorf(\"unknown variant %%T for union %s\", uv)", unionType)
	e.w.W("}")
	e.w.W("xw.End(tag)")
	e.w.W("return nil")
	e.w.W("}")
	return nil
}

// formatLeaf returns the string expression encoding a scalar member for
// element or attribute text.
func (e *emitter) formatLeaf(mem *model.Member, expr string) (string, error) {
	target := e.st.Model.Expect(mem.Target)
	switch target.Kind {
	case model.KindString:
		return expr, nil
	case model.KindEnum:
		return "string(" + expr + ")", nil
	case model.KindBoolean:
		e.w.Import("strconv")
		return "strconv.FormatBool(" + expr + ")", nil
	case model.KindByte, model.KindShort, model.KindInteger, model.KindLong:
		e.w.Import("strconv")
		return "strconv.FormatInt(int64(" + expr + "), 10)", nil
	case model.KindFloat:
		e.w.Import("strconv")
		return "strconv.FormatFloat(float64(" + expr + "), 'g', -1, 32)", nil
	case model.KindDouble:
		e.w.Import("strconv")
		return "strconv.FormatFloat(" + expr + ", 'g', -1, 64)", nil
	case model.KindBlob:
		e.w.Import("encoding/base64")
		return "base64.StdEncoding.EncodeToString(" + expr + ")", nil
	case model.KindTimestamp:
		e.w.Import(rt.Wiretime)
		switch e.g.timestampFormat(mem) {
		case model.TimestampEpochSeconds:
			return "wiretime.FormatEpochSeconds(" + expr + ")", nil
		case model.TimestampHTTPDate:
			return "wiretime.FormatHTTPDate(" + expr + ")", nil
		default:
			return "wiretime.FormatDateTime(" + expr + ")", nil
		}
	default:
		return "", wiregen.Unsupported(e.g.Proto, string(target.ID), "not a scalar kind: "+target.Kind.String())
	}
}
