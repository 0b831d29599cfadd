// Package streamgen emits the event-stream halves of operations whose input
// or output carries an event-stream union. Stream members are represented as
// channels of the union type on the input side; on the output side the
// parser hands the caller a *eventstream.Decoder positioned after the
// initial-response frame, and the per-frame unmarshal function turns decoded
// messages back into union values.
package streamgen

import (
	wiregen "github.com/wiregen/wiregen"
	"github.com/wiregen/wiregen/binding"
	"github.com/wiregen/wiregen/internal/gen"
	"github.com/wiregen/wiregen/model"
	"github.com/wiregen/wiregen/protocol/internal/errgen"
	"github.com/wiregen/wiregen/protocol/internal/jsongen"
	"github.com/wiregen/wiregen/protocol/internal/rt"
)

// Generator emits event-stream functions for one JSON-bodied protocol.
type Generator struct {
	Proto string
	JSON  *jsongen.Generator
	// PayloadContentType is stamped into the :content-type header of
	// structure-payload frames.
	PayloadContentType string
}

// EventSerializer interns the per-frame marshal function for a stream union:
// it maps one union value onto one framed message, setting :message-type,
// :event-type (or :exception-type for fault variants) and :content-type.
func (g *Generator) EventSerializer(st *wiregen.GenState, id model.ShapeID) (wiregen.FuncHandle, error) {
	shape := st.Model.Expect(id)
	name := wiregen.FuncName("serialize", g.Proto, id.Name(), "Event")
	return st.Registry.Intern(rt.ModuleSerializers, name, func(w *gen.Writer) error {
		if shape.Kind != model.KindUnion {
			return wiregen.InvalidBinding(g.Proto, string(id), "event stream member must target a union")
		}
		w.Import(st.Symbols.TypesImport())
		w.Import(rt.EventStream)
		w.Import("fmt")
		unionType := st.Symbols.ShapeType(id)
		w.W("func %s(v %s) (*eventstream.Message, error) {", name, unionType)
		w.W("msg := &eventstream.Message{}")
		w.W("switch uv := v.(type) {")
		for i := range shape.Members {
			if err := g.serializeVariant(st, w, shape, &shape.Members[i]); err != nil {
				return err
			}
		}
		w.W("default:")
		w.W("return nil, fmt.Errorf(\"unknown variant %%T for union %s\", uv)", unionType)
		w.W("}")
		w.W("return msg, nil")
		w.W("}")
		return nil
	})
}

func (g *Generator) serializeVariant(st *wiregen.GenState, w *gen.Writer, union *model.Shape, mem *model.Member) error {
	target := st.Model.Expect(mem.Target)
	variant := unionVariant(st, union.ID, mem)
	w.W("case *%s:", variant)
	w.W("av := uv.Value")
	w.W("_ = av")
	if target.IsError() {
		w.W("msg.AddHeader(eventstream.HeaderMessageType, eventstream.StringValue(eventstream.MessageTypeException))")
		w.W("msg.AddHeader(eventstream.HeaderExceptionType, eventstream.StringValue(\"%s\"))", st.Symbols.EscapeWireName(mem.Name))
	} else {
		w.W("msg.AddHeader(eventstream.HeaderMessageType, eventstream.StringValue(eventstream.MessageTypeEvent))")
		w.W("msg.AddHeader(eventstream.HeaderEventType, eventstream.StringValue(\"%s\"))", st.Symbols.EscapeWireName(mem.Name))
	}
	switch target.Kind {
	case model.KindStructure:
		handle, err := g.JSON.ShapeSerializer(st, target.ID)
		if err != nil {
			return err
		}
		w.Import("bytes")
		w.Import(rt.JSONEnc)
		w.W("msg.AddHeader(eventstream.HeaderContentType, eventstream.StringValue(%q))", g.PayloadContentType)
		w.W("var buf bytes.Buffer")
		w.W("if err := %s(av, jsonenc.NewValue(&buf)); err != nil {", handle)
		w.W("return nil, err")
		w.W("}")
		w.W("msg.Payload = buf.Bytes()")
	case model.KindBlob:
		w.W(`msg.AddHeader(eventstream.HeaderContentType, eventstream.StringValue("application/octet-stream"))`)
		w.W("msg.Payload = av")
	case model.KindString:
		w.W(`msg.AddHeader(eventstream.HeaderContentType, eventstream.StringValue("text/plain"))`)
		w.W("msg.Payload = []byte(av)")
	default:
		return wiregen.Unsupported(g.Proto, string(target.ID), "event payload kind "+target.Kind.String())
	}
	return nil
}

// RequestStream interns the function pumping an operation's input onto an
// event-stream request body: one initial-request frame carrying the
// document-bound members, then one frame per value received on the stream
// member's channel. The channel closing ends the stream; the returned error
// (nil on clean close) belongs on the write side of the body pipe.
func (g *Generator) RequestStream(st *wiregen.GenState, op model.ShapeID, streamMem *model.Member, docDescs []binding.Descriptor) (wiregen.FuncHandle, error) {
	opShape := st.Model.Expect(op)
	name := wiregen.FuncName("serialize", g.Proto, op.Name(), "EventStream")
	return st.Registry.Intern(rt.ModuleSerializers, name, func(w *gen.Writer) error {
		frame, err := g.EventSerializer(st, streamMem.Target)
		if err != nil {
			return err
		}
		body, err := g.JSON.BodySerializer(st, opShape.Input, docDescs)
		if err != nil {
			return err
		}
		w.Import(st.Symbols.TypesImport())
		w.Import(rt.EventStream)
		w.Import(rt.JSONEnc)
		w.Import("bytes")
		w.Import("io")
		w.W("func %s(v %s, sign eventstream.SignFunc, w io.Writer) error {", name, st.Symbols.ShapeType(opShape.Input))
		w.W("enc := eventstream.NewEncoder(w, sign)")
		w.W("initial := &eventstream.Message{}")
		w.W("initial.AddHeader(eventstream.HeaderMessageType, eventstream.StringValue(eventstream.MessageTypeEvent))")
		w.W(`initial.AddHeader(eventstream.HeaderEventType, eventstream.StringValue("initial-request"))`)
		w.W("initial.AddHeader(eventstream.HeaderContentType, eventstream.StringValue(%q))", g.PayloadContentType)
		w.W("var buf bytes.Buffer")
		w.W("if err := %s(v, jsonenc.NewValue(&buf)); err != nil {", body)
		w.W("return err")
		w.W("}")
		w.W("initial.Payload = buf.Bytes()")
		w.W("if err := enc.Encode(initial); err != nil {")
		w.W("return err")
		w.W("}")
		w.W("for ev := range v.%s {", wiregen.GoName(streamMem.Name))
		w.W("msg, err := %s(ev)", frame)
		w.W("if err != nil {")
		w.W("return err")
		w.W("}")
		w.W("if err := enc.Encode(msg); err != nil {")
		w.W("return err")
		w.W("}")
		w.W("}")
		w.W("return nil")
		w.W("}")
		return nil
	})
}

// ResponseStream emits the statements (inside a response parser, with resp, b
// and the surrounding "nil, " error arity in scope) that position a decoder
// over resp.Body: a leading initial-response frame is folded into the builder
// via the operation's body deserializer, any other first frame is pushed
// back, and the decoder itself lands on the stream member's setter.
func (g *Generator) ResponseStream(st *wiregen.GenState, w *gen.Writer, output model.ShapeID, streamMem *model.Member, docDescs []binding.Descriptor) error {
	body, err := g.JSON.BodyDeserializer(st, output, docDescs)
	if err != nil {
		return err
	}
	// The per-frame unmarshal function is part of the operation's surface
	// even though the parser itself only positions the decoder.
	if _, err := g.EventDeserializer(st, streamMem.Target); err != nil {
		return err
	}
	w.Import(rt.EventStream)
	w.Import(rt.JSONDec)
	w.Import("io")
	w.W("dec := eventstream.NewDecoder(resp.Body)")
	w.W("first, firstErr := dec.Decode()")
	w.W("if firstErr != nil && firstErr != io.EOF {")
	w.W("return nil, firstErr")
	w.W("}")
	w.W("if firstErr == nil {")
	w.W("et := first.Header(eventstream.HeaderEventType)")
	w.W(`if et != nil && et.Str == "initial-response" {`)
	w.W("raw, rawErr := jsondec.Decode(first.Payload)")
	errgen.FailUnhandled(w, "nil, ", "rawErr", "response body")
	w.W("if raw != nil {")
	w.W("if err := %s(raw, b); err != nil {", body)
	w.W(`return nil, &apierr.UnhandledError{Location: "response body", Cause: err}`)
	w.W("}")
	w.W("}")
	w.W("} else {")
	w.W("dec.Unread(first)")
	w.W("}")
	w.W("}")
	w.W("b.Set%s(dec)", wiregen.GoName(streamMem.Name))
	return nil
}

// EventDeserializer interns the per-frame unmarshal function for a stream
// union. Exception frames come back as (nil, typed error); unmodeled error
// frames surface the :error-code/:error-message pair as a GenericAPIError.
func (g *Generator) EventDeserializer(st *wiregen.GenState, id model.ShapeID) (wiregen.FuncHandle, error) {
	shape := st.Model.Expect(id)
	name := wiregen.FuncName("deserialize", g.Proto, id.Name(), "Event")
	return st.Registry.Intern(rt.ModuleDeserializers, name, func(w *gen.Writer) error {
		if shape.Kind != model.KindUnion {
			return wiregen.InvalidBinding(g.Proto, string(id), "event stream member must target a union")
		}
		w.Import(st.Symbols.TypesImport())
		w.Import(rt.EventStream)
		w.Import(rt.APIErr)
		w.Import("fmt")
		unionType := st.Symbols.ShapeType(id)
		w.W("func %s(msg *eventstream.Message) (%s, error) {", name, unionType)
		w.W("mt := msg.Header(eventstream.HeaderMessageType)")
		w.W("if mt == nil {")
		w.W(`return nil, fmt.Errorf("event frame missing message-type header")`)
		w.W("}")
		w.W("switch mt.Str {")
		w.W("case eventstream.MessageTypeEvent:")
		w.W("et := msg.Header(eventstream.HeaderEventType)")
		w.W("if et == nil {")
		w.W(`return nil, fmt.Errorf("event frame missing event-type header")`)
		w.W("}")
		w.W("switch et.Str {")
		for i := range shape.Members {
			mem := &shape.Members[i]
			if st.Model.Expect(mem.Target).IsError() {
				continue
			}
			if err := g.deserializeVariant(st, w, shape, mem, false); err != nil {
				return err
			}
		}
		w.W("}")
		w.W(`return nil, fmt.Errorf("unknown event type %%q", et.Str)`)
		w.W("case eventstream.MessageTypeException:")
		w.W("xt := msg.Header(eventstream.HeaderExceptionType)")
		w.W("if xt == nil {")
		w.W(`return nil, fmt.Errorf("exception frame missing exception-type header")`)
		w.W("}")
		w.W("switch xt.Str {")
		for i := range shape.Members {
			mem := &shape.Members[i]
			if !st.Model.Expect(mem.Target).IsError() {
				continue
			}
			if err := g.deserializeVariant(st, w, shape, mem, true); err != nil {
				return err
			}
		}
		w.W("}")
		w.W(`return nil, &apierr.GenericAPIError{Code: xt.Str}`)
		w.W("default:")
		w.W("code, message := msg.Header(\":error-code\"), msg.Header(\":error-message\")")
		w.W("err := &apierr.GenericAPIError{}")
		w.W("if code != nil {")
		w.W("err.Code = code.Str")
		w.W("}")
		w.W("if message != nil {")
		w.W("err.Message = message.Str")
		w.W("}")
		w.W("return nil, err")
		w.W("}")
		w.W("}")
		return nil
	})
}

func (g *Generator) deserializeVariant(st *wiregen.GenState, w *gen.Writer, union *model.Shape, mem *model.Member, exception bool) error {
	target := st.Model.Expect(mem.Target)
	variant := unionVariant(st, union.ID, mem)
	w.W("case \"%s\":", st.Symbols.EscapeWireName(mem.Name))
	switch target.Kind {
	case model.KindStructure:
		w.Import(rt.JSONDec)
		handle, err := g.JSON.ShapeDeserializer(st, target.ID)
		if err != nil {
			return err
		}
		w.W("raw, rawErr := jsondec.Decode(msg.Payload)")
		w.W("if rawErr != nil {")
		w.W("return nil, rawErr")
		w.W("}")
		w.W("pv, pvErr := %s(raw)", handle)
		w.W("if pvErr != nil {")
		w.W("return nil, pvErr")
		w.W("}")
		if exception {
			w.W("return nil, pv")
		} else {
			w.W("return &%s{Value: pv}, nil", variant)
		}
	case model.KindBlob:
		w.W("return &%s{Value: msg.Payload}, nil", variant)
	case model.KindString:
		w.W("return &%s{Value: string(msg.Payload)}, nil", variant)
	default:
		return wiregen.Unsupported(g.Proto, string(target.ID), "event payload kind "+target.Kind.String())
	}
	return nil
}

func unionVariant(st *wiregen.GenState, union model.ShapeID, mem *model.Member) string {
	base := st.Symbols.ShapeType(union)
	if len(base) > 0 && base[0] == '*' {
		base = base[1:]
	}
	return base + "Member" + wiregen.GoName(mem.Name)
}
