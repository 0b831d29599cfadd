package rpcbin

import (
	"fmt"

	wiregen "github.com/wiregen/wiregen"
	"github.com/wiregen/wiregen/internal/gen"
	"github.com/wiregen/wiregen/model"
	"github.com/wiregen/wiregen/protocol/internal/rt"
)

// Framing conventions, composed from bincodec primitives: structures start
// with a presence bitmap covering every member in declaration order, present
// fields follow in that order; unions are a u16 variant tag plus the value;
// lists and maps are a u32 count plus entries, map keys written in sorted
// order. Timestamps are always int64 epoch millis, whatever the member's
// declared format says.

type codecEmitter struct {
	st *wiregen.GenState
	p  *Protocol
	w  *gen.Writer
	n  int
}

func (e *codecEmitter) tmp(prefix string) string {
	e.n++
	return fmt.Sprintf("%s%d", prefix, e.n)
}

func (e *codecEmitter) fail(errVar, retZero string) {
	e.w.W("if %s != nil {", errVar)
	e.w.W("return %s%s", retZero, errVar)
	e.w.W("}")
}

// shapeSerializer interns the encoder for a structure, union, list or map:
// func serializeRpcBinXxx(v types.Xxx, bw *bincodec.Writer) error.
func (p *Protocol) shapeSerializer(st *wiregen.GenState, id model.ShapeID) (wiregen.FuncHandle, error) {
	shape := st.Model.Expect(id)
	name := wiregen.FuncName("serialize", protoFragment, id.Name())
	return st.Registry.Intern(rt.ModuleSerializers, name, func(w *gen.Writer) error {
		e := &codecEmitter{st: st, p: p, w: w}
		switch shape.Kind {
		case model.KindStructure:
			return e.structSerializer(name, shape)
		case model.KindUnion:
			return e.unionSerializer(name, shape)
		case model.KindList:
			return e.listSerializer(name, shape)
		case model.KindMap:
			return e.mapSerializer(name, shape)
		default:
			return wiregen.Unsupported(p.Name(), string(id), "shape kind "+shape.Kind.String()+" has no binary serializer")
		}
	})
}

func (e *codecEmitter) structSerializer(name string, shape *model.Shape) error {
	e.w.Import(e.st.Symbols.TypesImport())
	e.w.Import(rt.Bincodec)
	e.w.W("func %s(v %s, bw *bincodec.Writer) error {", name, e.st.Symbols.ShapeType(shape.ID))
	if len(shape.Members) == 0 {
		e.w.W("_ = v")
		e.w.W("bw.ReserveFlags(0)")
		e.w.W("return nil")
		e.w.W("}")
		return nil
	}
	e.w.W("flags := bw.ReserveFlags(%d)", len(shape.Members))
	for i := range shape.Members {
		mem := &shape.Members[i]
		if mem.Streaming || mem.EventStream {
			return wiregen.Unsupported(e.p.Name(), string(mem.Target), "streaming member "+mem.Name+" cannot be binary-encoded")
		}
		field := "v." + wiregen.GoName(mem.Name)
		expr := field
		if mem.Optional && e.st.Symbols.PointerOptional(mem.Target) {
			expr = "*" + field
		}
		if mem.Optional {
			e.w.W("if %s != nil {", field)
		}
		e.w.W("bw.SetFlag(flags, %d)", i)
		if err := e.writeValue(mem, expr); err != nil {
			return err
		}
		if mem.Optional {
			e.w.W("}")
		}
	}
	e.w.W("return nil")
	e.w.W("}")
	return nil
}

func (e *codecEmitter) unionSerializer(name string, shape *model.Shape) error {
	e.w.Import(e.st.Symbols.TypesImport())
	e.w.Import(rt.Bincodec)
	e.w.Import("fmt")
	unionType := e.st.Symbols.ShapeType(shape.ID)
	e.w.W("func %s(v %s, bw *bincodec.Writer) error {", name, unionType)
	e.w.W("switch uv := v.(type) {")
	for i := range shape.Members {
		mem := &shape.Members[i]
		e.w.W("case *%sMember%s:", unionType, wiregen.GoName(mem.Name))
		e.w.W("bw.WriteUint16(%d)", i)
		e.w.W("av := uv.Value")
		e.w.W("_ = av")
		if err := e.writeValue(mem, "av"); err != nil {
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

func (e *codecEmitter) listSerializer(name string, shape *model.Shape) error {
	e.w.Import(e.st.Symbols.TypesImport())
	e.w.Import(rt.Bincodec)
	e.w.W("func %s(v %s, bw *bincodec.Writer) error {", name, e.st.Symbols.ShapeType(shape.ID))
	e.w.W("bw.WriteUint32(uint32(len(v)))")
	item := e.tmp("it")
	e.w.W("for _, %s := range v {", item)
	if err := e.writeValue(shape.ListMember, item); err != nil {
		return err
	}
	e.w.W("}")
	e.w.W("return nil")
	e.w.W("}")
	return nil
}

func (e *codecEmitter) mapSerializer(name string, shape *model.Shape) error {
	e.w.Import(e.st.Symbols.TypesImport())
	e.w.Import(rt.Bincodec)
	e.w.Import("sort")
	e.w.W("func %s(v %s, bw *bincodec.Writer) error {", name, e.st.Symbols.ShapeType(shape.ID))
	e.w.W("bw.WriteUint32(uint32(len(v)))")
	keys := e.tmp("ks")
	e.w.W("%s := make([]string, 0, len(v))", keys)
	e.w.W("for k := range v {")
	e.w.W("%s = append(%s, k)", keys, keys)
	e.w.W("}")
	e.w.W("sort.Strings(%s)", keys)
	k := e.tmp("mk")
	e.w.W("for _, %s := range %s {", k, keys)
	e.w.W("bw.WriteString(%s)", k)
	if err := e.writeValue(shape.MapValue, "v["+k+"]"); err != nil {
		return err
	}
	e.w.W("}")
	e.w.W("return nil")
	e.w.W("}")
	return nil
}

// writeValue emits the statements encoding expr.
func (e *codecEmitter) writeValue(mem *model.Member, expr string) error {
	target := e.st.Model.Expect(mem.Target)
	switch target.Kind {
	case model.KindString:
		e.w.W("bw.WriteString(%s)", expr)
	case model.KindEnum:
		e.w.W("bw.WriteString(string(%s))", expr)
	case model.KindBoolean:
		e.w.W("bw.WriteBool(%s)", expr)
	case model.KindByte:
		e.w.W("bw.WriteInt8(%s)", expr)
	case model.KindShort:
		e.w.W("bw.WriteInt16(%s)", expr)
	case model.KindInteger:
		e.w.W("bw.WriteInt32(%s)", expr)
	case model.KindLong:
		e.w.W("bw.WriteInt64(%s)", expr)
	case model.KindFloat:
		e.w.W("bw.WriteFloat32(%s)", expr)
	case model.KindDouble:
		e.w.W("bw.WriteFloat64(%s)", expr)
	case model.KindBlob:
		e.w.W("bw.WriteBytes(%s)", expr)
	case model.KindTimestamp:
		e.w.W("bw.WriteTime(%s)", expr)
	case model.KindStructure, model.KindUnion, model.KindList, model.KindMap:
		handle, err := e.p.shapeSerializer(e.st, target.ID)
		if err != nil {
			return err
		}
		e.w.W("if err := %s(%s, bw); err != nil {", handle, expr)
		e.w.W("return err")
		e.w.W("}")
	case model.KindDocument:
		return wiregen.Unsupported(e.p.Name(), string(target.ID), "document values cannot be binary-encoded")
	case model.KindBigInteger, model.KindBigDecimal:
		return wiregen.NotImplemented(e.p.Name(), string(target.ID), "arbitrary-precision numbers are not supported in binary bodies")
	default:
		return wiregen.Unsupported(e.p.Name(), string(target.ID), "unexpected shape kind "+target.Kind.String())
	}
	return nil
}

// shapeDeserializer interns the decoder:
// func deserializeRpcBinXxx(br *bincodec.Reader) (types.Xxx, error).
// Structure decoding routes through the builder-mutating body function so
// error parsing can preset fields before the bitmap is consulted.
func (p *Protocol) shapeDeserializer(st *wiregen.GenState, id model.ShapeID) (wiregen.FuncHandle, error) {
	shape := st.Model.Expect(id)
	name := wiregen.FuncName("deserialize", protoFragment, id.Name())
	return st.Registry.Intern(rt.ModuleDeserializers, name, func(w *gen.Writer) error {
		e := &codecEmitter{st: st, p: p, w: w}
		switch shape.Kind {
		case model.KindStructure:
			body, err := p.bodyDeserializer(st, id)
			if err != nil {
				return err
			}
			w.Import(st.Symbols.TypesImport())
			w.Import(rt.Bincodec)
			w.W("func %s(br *bincodec.Reader) (%s, error) {", name, st.Symbols.ShapeType(id))
			w.W("b := %s", wiregen.BuilderNew(st.Symbols, id))
			w.W("if err := %s(br, b); err != nil {", body)
			w.W("return nil, err")
			w.W("}")
			w.W("return b.Build()")
			w.W("}")
			return nil
		case model.KindUnion:
			return e.unionDeserializer(name, shape)
		case model.KindList:
			return e.listDeserializer(name, shape)
		case model.KindMap:
			return e.mapDeserializer(name, shape)
		default:
			return wiregen.Unsupported(p.Name(), string(id), "shape kind "+shape.Kind.String()+" has no binary deserializer")
		}
	})
}

// bodyDeserializer interns the builder-mutating structure decoder:
// func deserializeRpcBinXxxBody(br *bincodec.Reader, b *types.XxxBuilder) error.
func (p *Protocol) bodyDeserializer(st *wiregen.GenState, id model.ShapeID) (wiregen.FuncHandle, error) {
	shape := st.Model.Expect(id)
	name := wiregen.FuncName("deserialize", protoFragment, id.Name(), "Body")
	return st.Registry.Intern(rt.ModuleDeserializers, name, func(w *gen.Writer) error {
		if shape.Kind != model.KindStructure {
			return wiregen.Unsupported(p.Name(), string(id), "binary body must be a structure")
		}
		e := &codecEmitter{st: st, p: p, w: w}
		w.Import(st.Symbols.TypesImport())
		w.Import(rt.Bincodec)
		w.W("func %s(br *bincodec.Reader, b *%s) error {", name, st.Symbols.BuilderType(id))
		w.W("flags, flagsErr := br.ReadFlags(%d)", len(shape.Members))
		e.fail("flagsErr", "")
		if len(shape.Members) == 0 {
			w.W("_ = flags")
			w.W("_ = b")
		}
		for i := range shape.Members {
			mem := &shape.Members[i]
			if mem.Streaming || mem.EventStream {
				return wiregen.Unsupported(p.Name(), string(mem.Target), "streaming member "+mem.Name+" cannot be binary-encoded")
			}
			w.W("if flags.Has(%d) {", i)
			expr, err := e.readValue(mem, "")
			if err != nil {
				return err
			}
			w.W("b.Set%s(%s)", wiregen.GoName(mem.Name), expr)
			w.W("}")
		}
		w.W("return nil")
		w.W("}")
		return nil
	})
}

func (e *codecEmitter) unionDeserializer(name string, shape *model.Shape) error {
	e.w.Import(e.st.Symbols.TypesImport())
	e.w.Import(rt.Bincodec)
	e.w.Import("fmt")
	unionType := e.st.Symbols.ShapeType(shape.ID)
	e.w.W("func %s(br *bincodec.Reader) (%s, error) {", name, unionType)
	e.w.W("tag, tagErr := br.ReadUint16()")
	e.fail("tagErr", "nil, ")
	e.w.W("switch tag {")
	for i := range shape.Members {
		mem := &shape.Members[i]
		e.w.W("case %d:", i)
		expr, err := e.readValue(mem, "nil, ")
		if err != nil {
			return err
		}
		e.w.W("return &%sMember%s{Value: %s}, nil", unionType, wiregen.GoName(mem.Name), expr)
	}
	e.w.W("}")
	e.w.W("return nil, fmt.Errorf(\"unknown variant tag %%d for union %s\", tag)", unionType)
	e.w.W("}")
	return nil
}

func (e *codecEmitter) listDeserializer(name string, shape *model.Shape) error {
	e.w.Import(e.st.Symbols.TypesImport())
	e.w.Import(rt.Bincodec)
	elemType := e.st.Symbols.ShapeType(shape.ID)
	e.w.W("func %s(br *bincodec.Reader) (%s, error) {", name, elemType)
	e.w.W("n, nErr := br.ReadUint32()")
	e.fail("nErr", "nil, ")
	e.w.W("out := make(%s, 0, n)", elemType)
	e.w.W("for i := uint32(0); i < n; i++ {")
	expr, err := e.readValue(shape.ListMember, "nil, ")
	if err != nil {
		return err
	}
	e.w.W("out = append(out, %s)", expr)
	e.w.W("}")
	e.w.W("return out, nil")
	e.w.W("}")
	return nil
}

func (e *codecEmitter) mapDeserializer(name string, shape *model.Shape) error {
	e.w.Import(e.st.Symbols.TypesImport())
	e.w.Import(rt.Bincodec)
	mapType := e.st.Symbols.ShapeType(shape.ID)
	e.w.W("func %s(br *bincodec.Reader) (%s, error) {", name, mapType)
	e.w.W("n, nErr := br.ReadUint32()")
	e.fail("nErr", "nil, ")
	e.w.W("out := make(%s, n)", mapType)
	e.w.W("for i := uint32(0); i < n; i++ {")
	e.w.W("mk, mkErr := br.ReadString()")
	e.fail("mkErr", "nil, ")
	expr, err := e.readValue(shape.MapValue, "nil, ")
	if err != nil {
		return err
	}
	e.w.W("out[mk] = %s", expr)
	e.w.W("}")
	e.w.W("return out, nil")
	e.w.W("}")
	return nil
}

// readValue emits the statements decoding one value and returns the
// expression holding the result.
func (e *codecEmitter) readValue(mem *model.Member, retZero string) (string, error) {
	target := e.st.Model.Expect(mem.Target)
	switch target.Kind {
	case model.KindString:
		v := e.tmp("s")
		e.w.W("%s, %sErr := br.ReadString()", v, v)
		e.fail(v+"Err", retZero)
		return v, nil
	case model.KindEnum:
		v := e.tmp("s")
		e.w.W("%s, %sErr := br.ReadString()", v, v)
		e.fail(v+"Err", retZero)
		return fmt.Sprintf("%s(%s)", e.st.Symbols.ShapeType(target.ID), v), nil
	case model.KindBoolean:
		v := e.tmp("bv")
		e.w.W("%s, %sErr := br.ReadBool()", v, v)
		e.fail(v+"Err", retZero)
		return v, nil
	case model.KindByte:
		return e.readInt("ReadInt8", retZero)
	case model.KindShort:
		return e.readInt("ReadInt16", retZero)
	case model.KindInteger:
		return e.readInt("ReadInt32", retZero)
	case model.KindLong:
		return e.readInt("ReadInt64", retZero)
	case model.KindFloat:
		v := e.tmp("f")
		e.w.W("%s, %sErr := br.ReadFloat32()", v, v)
		e.fail(v+"Err", retZero)
		return v, nil
	case model.KindDouble:
		v := e.tmp("f")
		e.w.W("%s, %sErr := br.ReadFloat64()", v, v)
		e.fail(v+"Err", retZero)
		return v, nil
	case model.KindBlob:
		v := e.tmp("bl")
		e.w.W("%s, %sErr := br.ReadBytes()", v, v)
		e.fail(v+"Err", retZero)
		return v, nil
	case model.KindTimestamp:
		v := e.tmp("ts")
		e.w.W("%s, %sErr := br.ReadTime()", v, v)
		e.fail(v+"Err", retZero)
		return v, nil
	case model.KindStructure, model.KindUnion, model.KindList, model.KindMap:
		handle, err := e.p.shapeDeserializer(e.st, target.ID)
		if err != nil {
			return "", err
		}
		v := e.tmp("c")
		e.w.W("%s, %sErr := %s(br)", v, v, handle)
		e.fail(v+"Err", retZero)
		return v, nil
	case model.KindDocument:
		return "", wiregen.Unsupported(e.p.Name(), string(target.ID), "document values cannot be binary-encoded")
	case model.KindBigInteger, model.KindBigDecimal:
		return "", wiregen.NotImplemented(e.p.Name(), string(target.ID), "arbitrary-precision numbers are not supported in binary bodies")
	default:
		return "", wiregen.Unsupported(e.p.Name(), string(target.ID), "unexpected shape kind "+target.Kind.String())
	}
}

func (e *codecEmitter) readInt(reader, retZero string) (string, error) {
	v := e.tmp("n")
	e.w.W("%s, %sErr := br.%s()", v, v, reader)
	e.fail(v+"Err", retZero)
	return v, nil
}
