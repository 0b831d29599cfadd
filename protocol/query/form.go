package query

import (
	"fmt"

	wiregen "github.com/wiregen/wiregen"
	"github.com/wiregen/wiregen/internal/gen"
	"github.com/wiregen/wiregen/model"
	"github.com/wiregen/wiregen/protocol/internal/rt"
)

// The form encoding flattens the whole input into dotted key paths on a
// url.Values: structure members append their wire name, wrapped lists
// insert a member segment plus a 1-based index, maps an entry segment plus
// key/value leaves. Structures and unions become shared functions taking
// the accumulated prefix as a parameter; lists and maps are emitted inline
// by their containing shape, since the path segment depends on member
// context.

type formEmitter struct {
	st *wiregen.GenState
	p  *Protocol
	w  *gen.Writer
	n  int
}

func (e *formEmitter) tmp(prefix string) string {
	e.n++
	return fmt.Sprintf("%s%d", prefix, e.n)
}

// keyHelper interns the prefix join used by every shape serializer.
func keyHelper(st *wiregen.GenState) (wiregen.FuncHandle, error) {
	return st.Registry.Intern(rt.ModuleSerializers, "queryKey", func(w *gen.Writer) error {
		w.W("func queryKey(prefix, name string) string {")
		w.W(`if prefix == "" {`)
		w.W("return name")
		w.W("}")
		w.W(`return prefix + "." + name`)
		w.W("}")
		return nil
	})
}

// shapeSerializer interns the form serializer for a structure or union:
// func serializeQueryXxx(v types.Xxx, vals url.Values, prefix string) error.
func (p *Protocol) shapeSerializer(st *wiregen.GenState, id model.ShapeID) (wiregen.FuncHandle, error) {
	shape := st.Model.Expect(id)
	name := wiregen.FuncName("serialize", protoFragment, id.Name())
	return st.Registry.Intern(rt.ModuleSerializers, name, func(w *gen.Writer) error {
		if _, err := keyHelper(st); err != nil {
			return err
		}
		e := &formEmitter{st: st, p: p, w: w}
		switch shape.Kind {
		case model.KindStructure:
			return e.structSerializer(name, shape)
		case model.KindUnion:
			return e.unionSerializer(name, shape)
		default:
			return wiregen.Unsupported(p.Name(), string(id), "shape kind "+shape.Kind.String()+" has no standalone form serializer")
		}
	})
}

// bodySerializer interns the top-level form serializer for an operation
// input; keys start at the member wire names with no prefix.
func (p *Protocol) bodySerializer(st *wiregen.GenState, id model.ShapeID) (wiregen.FuncHandle, error) {
	shape := st.Model.Expect(id)
	name := wiregen.FuncName("serialize", protoFragment, id.Name(), "Body")
	return st.Registry.Intern(rt.ModuleSerializers, name, func(w *gen.Writer) error {
		if shape.Kind != model.KindStructure {
			return wiregen.Unsupported(p.Name(), string(id), "operation input must be a structure")
		}
		e := &formEmitter{st: st, p: p, w: w}
		w.Import(st.Symbols.TypesImport())
		w.Import("net/url")
		w.W("func %s(v %s, vals url.Values) error {", name, st.Symbols.ShapeType(id))
		if len(shape.Members) == 0 {
			w.W("_ = v")
			w.W("_ = vals")
		}
		for i := range shape.Members {
			mem := &shape.Members[i]
			if err := e.serializeMember(mem, fmt.Sprintf("%q", formWireName(mem))); err != nil {
				return err
			}
		}
		w.W("return nil")
		w.W("}")
		return nil
	})
}

func (e *formEmitter) structSerializer(name string, shape *model.Shape) error {
	e.w.Import(e.st.Symbols.TypesImport())
	e.w.Import("net/url")
	e.w.W("func %s(v %s, vals url.Values, prefix string) error {", name, e.st.Symbols.ShapeType(shape.ID))
	if len(shape.Members) == 0 {
		e.w.W("_ = v")
		e.w.W("_ = vals")
		e.w.W("_ = prefix")
	}
	for i := range shape.Members {
		mem := &shape.Members[i]
		if err := e.serializeMember(mem, fmt.Sprintf("queryKey(prefix, %q)", formWireName(mem))); err != nil {
			return err
		}
	}
	e.w.W("return nil")
	e.w.W("}")
	return nil
}

func (e *formEmitter) unionSerializer(name string, shape *model.Shape) error {
	e.w.Import(e.st.Symbols.TypesImport())
	e.w.Import("net/url")
	e.w.Import("fmt")
	unionType := e.st.Symbols.ShapeType(shape.ID)
	e.w.W("func %s(v %s, vals url.Values, prefix string) error {", name, unionType)
	e.w.W("switch uv := v.(type) {")
	for i := range shape.Members {
		mem := &shape.Members[i]
		e.w.W("case *%sMember%s:", unionType, wiregen.GoName(mem.Name))
		e.w.W("av := uv.Value")
		e.w.W("_ = av")
		key := e.tmp("k")
		e.w.W("%s := queryKey(prefix, %q)", key, formWireName(mem))
		if err := e.serializeValue(mem, "av", key); err != nil {
			return err
		}
	}
	e.w.W("default:")
	e.w.W("return fmt.Errorf(\"unknown variant %%T for union %s\", uv)", unionType)
	e.w.W("}")
	e.w.W("return nil")
	e.w.W("}")
	return nil
}

// serializeMember emits the optional guard plus a key binding, then the
// value statements. keyExpr is any Go string expression.
func (e *formEmitter) serializeMember(mem *model.Member, keyExpr string) error {
	if mem.Streaming || mem.EventStream {
		return wiregen.Unsupported(e.p.Name(), string(mem.Target), "streaming member "+mem.Name+" cannot be form-encoded")
	}
	field := "v." + wiregen.GoName(mem.Name)
	expr := field
	if mem.Optional && e.st.Symbols.PointerOptional(mem.Target) {
		expr = "*" + field
	}
	if mem.Optional {
		e.w.W("if %s != nil {", field)
	}
	key := e.tmp("k")
	e.w.W("%s := %s", key, keyExpr)
	if err := e.serializeValue(mem, expr, key); err != nil {
		return err
	}
	if mem.Optional {
		e.w.W("}")
	}
	return nil
}

// serializeValue emits statements setting expr under the key path held by
// the keyVar variable.
func (e *formEmitter) serializeValue(mem *model.Member, expr, keyVar string) error {
	target := e.st.Model.Expect(mem.Target)
	switch target.Kind {
	case model.KindString, model.KindEnum, model.KindBoolean, model.KindByte,
		model.KindShort, model.KindInteger, model.KindLong, model.KindFloat,
		model.KindDouble, model.KindBlob, model.KindTimestamp:
		str, err := e.formatLeaf(mem, expr)
		if err != nil {
			return err
		}
		e.w.W("vals.Set(%s, %s)", keyVar, str)
	case model.KindStructure, model.KindUnion:
		handle, err := e.p.shapeSerializer(e.st, target.ID)
		if err != nil {
			return err
		}
		e.w.W("if err := %s(%s, vals, %s); err != nil {", handle, expr, keyVar)
		e.w.W("return err")
		e.w.W("}")
	case model.KindList:
		return e.serializeList(mem, target, expr, keyVar)
	case model.KindMap:
		return e.serializeMap(mem, target, expr, keyVar)
	case model.KindDocument:
		return wiregen.Unsupported(e.p.Name(), string(target.ID), "document values cannot be form-encoded")
	case model.KindBigInteger, model.KindBigDecimal:
		return wiregen.NotImplemented(e.p.Name(), string(target.ID), "arbitrary-precision numbers are not supported in form bodies")
	default:
		return wiregen.Unsupported(e.p.Name(), string(target.ID), "unexpected shape kind "+target.Kind.String())
	}
	return nil
}

// serializeList indexes items from 1; wrapped lists insert a member segment
// (or the element's wire name), flattened lists index the member path
// directly. An empty list still sets its bare key so presence survives the
// round trip.
func (e *formEmitter) serializeList(mem *model.Member, target *model.Shape, expr, keyVar string) error {
	e.w.Import("strconv")
	seg := "member"
	if target.ListMember.WireName != "" {
		seg = target.ListMember.WireName
	}
	e.w.W("if len(%s) == 0 {", expr)
	e.w.W(`vals.Set(%s, "")`, keyVar)
	e.w.W("}")
	idx := e.tmp("i")
	item := e.tmp("it")
	e.w.W("for %s, %s := range %s {", idx, item, expr)
	entry := e.tmp("k")
	if mem.Flattened {
		e.w.W("%s := %s + \".\" + strconv.Itoa(%s+1)", entry, keyVar, idx)
	} else {
		e.w.W("%s := %s + \".%s.\" + strconv.Itoa(%s+1)", entry, keyVar, seg, idx)
	}
	if err := e.serializeValue(target.ListMember, item, entry); err != nil {
		return err
	}
	e.w.W("}")
	return nil
}

// serializeMap sorts keys so the encoded body is deterministic; entries
// index from 1 with key/value leaves.
func (e *formEmitter) serializeMap(mem *model.Member, target *model.Shape, expr, keyVar string) error {
	e.w.Import("sort")
	e.w.Import("strconv")
	keys := e.tmp("ks")
	e.w.W("%s := make([]string, 0, len(%s))", keys, expr)
	e.w.W("for k := range %s {", expr)
	e.w.W("%s = append(%s, k)", keys, keys)
	e.w.W("}")
	e.w.W("sort.Strings(%s)", keys)
	idx := e.tmp("i")
	k := e.tmp("mk")
	e.w.W("for %s, %s := range %s {", idx, k, keys)
	entry := e.tmp("k")
	if mem.Flattened {
		e.w.W("%s := %s + \".\" + strconv.Itoa(%s+1)", entry, keyVar, idx)
	} else {
		e.w.W("%s := %s + \".entry.\" + strconv.Itoa(%s+1)", entry, keyVar, idx)
	}
	e.w.W("vals.Set(%s+\".key\", %s)", entry, k)
	val := e.tmp("k")
	e.w.W("%s := %s + \".value\"", val, entry)
	if err := e.serializeValue(target.MapValue, expr+"["+k+"]", val); err != nil {
		return err
	}
	e.w.W("}")
	return nil
}

// formatLeaf returns the string expression encoding a scalar member for a
// form value.
func (e *formEmitter) formatLeaf(mem *model.Member, expr string) (string, error) {
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
		format := mem.TimestampFormat
		if format == model.TimestampDefault {
			format = model.TimestampDateTime
		}
		switch format {
		case model.TimestampEpochSeconds:
			return "wiretime.FormatEpochSeconds(" + expr + ")", nil
		case model.TimestampHTTPDate:
			return "wiretime.FormatHTTPDate(" + expr + ")", nil
		default:
			return "wiretime.FormatDateTime(" + expr + ")", nil
		}
	default:
		return "", wiregen.Unsupported(e.p.Name(), string(target.ID), "not a scalar kind: "+target.Kind.String())
	}
}

func formWireName(mem *model.Member) string {
	if mem.WireName != "" {
		return mem.WireName
	}
	return mem.Name
}
