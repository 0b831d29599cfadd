// Package restjson implements the REST JSON protocol: operations carry
// native HTTP bindings, so members split across the URI path, query string,
// headers and a JSON document body (or a single payload member). Errors are
// discriminated by the X-Amzn-Errortype header before the body envelope is
// consulted.
package restjson

import (
	wiregen "github.com/wiregen/wiregen"
	"github.com/wiregen/wiregen/binding"
	"github.com/wiregen/wiregen/internal/gen"
	"github.com/wiregen/wiregen/model"
	"github.com/wiregen/wiregen/protocol/internal/errgen"
	"github.com/wiregen/wiregen/protocol/internal/httpgen"
	"github.com/wiregen/wiregen/protocol/internal/jsongen"
	"github.com/wiregen/wiregen/protocol/internal/rt"
	"github.com/wiregen/wiregen/protocol/internal/streamgen"
)

const protoFragment = "RestJson"

type Protocol struct {
	json   *jsongen.Generator
	stream *streamgen.Generator
}

func New() *Protocol {
	p := &Protocol{}
	p.json = &jsongen.Generator{Proto: protoFragment, TimestampDefault: model.TimestampEpochSeconds}
	p.stream = &streamgen.Generator{Proto: protoFragment, JSON: p.json, PayloadContentType: "application/json"}
	return p
}

func (p *Protocol) Name() string { return "restjson" }

func (p *Protocol) ContentTypes() wiregen.ContentTypes {
	return wiregen.ContentTypes{
		Request:     "application/json",
		Response:    "application/json",
		EventStream: "application/vnd.amazon.eventstream",
	}
}

func (p *Protocol) TimestampFormat() model.TimestampFormat { return model.TimestampEpochSeconds }

func (p *Protocol) ErrorCode(shape *model.Shape) string {
	if shape.ErrorCode != "" {
		return shape.ErrorCode
	}
	return shape.ID.Name()
}

func (p *Protocol) GenericErrorParser(st *wiregen.GenState) (wiregen.FuncHandle, error) {
	return p.json.ErrorEnvelope(st)
}

// httpEmitter applies the location timestamp defaults this protocol uses:
// http-date in headers, date-time in the query string and path labels.
func (p *Protocol) httpEmitter(st *wiregen.GenState, w *gen.Writer, retZero string) *httpgen.Emitter {
	return &httpgen.Emitter{
		St:              st,
		W:               w,
		Proto:           protoFragment,
		HeaderTimestamp: model.TimestampHTTPDate,
		QueryTimestamp:  model.TimestampDateTime,
		RetZero:         retZero,
	}
}

func (p *Protocol) resolve(st *wiregen.GenState, op *model.Shape) (*binding.Operation, error) {
	bindOp, err := binding.Resolve(st.Model, op)
	if err != nil {
		return nil, wiregen.InvalidBinding(p.Name(), string(op.ID), err.Error())
	}
	return bindOp, nil
}

func (p *Protocol) SerializerFor(st *wiregen.GenState, opID model.ShapeID) (wiregen.FuncHandle, error) {
	op := st.Model.Expect(opID)
	if op.Kind != model.KindOperation {
		return wiregen.FuncHandle{}, wiregen.InvalidBinding(p.Name(), string(opID), "not an operation shape")
	}
	name := wiregen.FuncName("serialize", protoFragment, opID.Name(), "Request")
	return st.Registry.Intern(rt.ModuleSerializers, name, func(w *gen.Writer) error {
		bindOp, err := p.resolve(st, op)
		if err != nil {
			return err
		}
		return p.serializeRequest(st, w, name, op, bindOp)
	})
}

func (p *Protocol) serializeRequest(st *wiregen.GenState, w *gen.Writer, name string, op *model.Shape, bindOp *binding.Operation) error {
	w.Import("net/http")
	w.Import("net/url")

	payload := binding.PayloadDescriptor(bindOp.Input)
	var streamMem *model.Member
	if payload != nil && payload.Member.EventStream {
		streamMem = payload.Member
	}

	switch {
	case op.Input == "":
		w.W("func %s(base *url.URL) (*http.Request, error) {", name)
	case streamMem != nil:
		w.Import(st.Symbols.TypesImport())
		w.Import(rt.EventStream)
		w.W("func %s(v %s, base *url.URL, sign eventstream.SignFunc) (*http.Request, error) {", name, st.Symbols.ShapeType(op.Input))
	default:
		w.Import(st.Symbols.TypesImport())
		w.W("func %s(v %s, base *url.URL) (*http.Request, error) {", name, st.Symbols.ShapeType(op.Input))
	}

	e := p.httpEmitter(st, w, "nil, ")
	if err := e.RequestURL(bindOp); err != nil {
		return err
	}

	contentType := binding.RequestContentType(st.Model, bindOp, p.ContentTypes().Request)
	bodyExpr := "nil"
	hasBody := false

	switch {
	case op.Input == "":
	case streamMem != nil:
		pump, err := p.stream.RequestStream(st, op.ID, streamMem, binding.DocumentDescriptors(bindOp.Input))
		if err != nil {
			return err
		}
		w.Import("io")
		w.W("pr, pw := io.Pipe()")
		w.W("go func() {")
		w.W("pw.CloseWithError(%s(v, sign, pw))", pump)
		w.W("}()")
		bodyExpr, hasBody = "pr", true
		contentType = p.ContentTypes().EventStream
	case payload != nil:
		expr, has, err := p.serializedPayload(st, w, payload)
		if err != nil {
			return err
		}
		bodyExpr, hasBody = expr, has
	default:
		docs := binding.DocumentDescriptors(bindOp.Input)
		if len(docs) > 0 {
			body, err := p.json.BodySerializer(st, op.Input, bindOp.Input)
			if err != nil {
				return err
			}
			w.Import("bytes")
			w.Import(rt.JSONEnc)
			w.W("buf := &bytes.Buffer{}")
			w.W("if err := %s(v, jsonenc.NewValue(buf)); err != nil {", body)
			w.W("return nil, err")
			w.W("}")
			bodyExpr, hasBody = "buf", true
		}
	}

	w.W("req, reqErr := http.NewRequest(%q, u.String(), %s)", bindOp.Method, bodyExpr)
	w.W("if reqErr != nil {")
	w.W("return nil, reqErr")
	w.W("}")
	if hasBody {
		w.W(`req.Header.Set("Content-Type", "%s")`, contentType)
	}
	if err := e.RequestHeaders(bindOp.Input); err != nil {
		return err
	}
	w.W("return req, nil")
	w.W("}")
	return nil
}

// serializedPayload emits the statements producing the request body reader
// for an explicit payload binding and returns (body expression, body
// present).
func (p *Protocol) serializedPayload(st *wiregen.GenState, w *gen.Writer, d *binding.Descriptor) (string, bool, error) {
	mem := d.Member
	target := st.Model.Expect(mem.Target)
	field := "v." + wiregen.GoName(mem.Name)

	switch {
	case mem.Streaming:
		w.Import("io")
		w.W("var body io.Reader")
		w.W("if %s != nil {", field)
		w.W("body = %s", field)
		w.W("}")
		return "body", true, nil
	case target.Kind == model.KindBlob:
		w.Import("bytes")
		w.W("body := bytes.NewReader(%s)", field)
		return "body", true, nil
	case target.Kind == model.KindString || target.Kind == model.KindEnum:
		w.Import("io")
		w.Import("strings")
		expr := field
		if target.Kind == model.KindEnum {
			expr = "string(" + field + ")"
		}
		if mem.Optional && st.Symbols.PointerOptional(mem.Target) {
			deref := "*" + field
			if target.Kind == model.KindEnum {
				deref = "string(*" + field + ")"
			}
			w.W("var body io.Reader")
			w.W("if %s != nil {", field)
			w.W("body = strings.NewReader(%s)", deref)
			w.W("}")
			return "body", true, nil
		}
		w.W("body := strings.NewReader(%s)", expr)
		return "body", true, nil
	case target.Kind == model.KindStructure || target.Kind == model.KindUnion:
		handle, err := p.json.ShapeSerializer(st, target.ID)
		if err != nil {
			return "", false, err
		}
		w.Import("bytes")
		w.Import(rt.JSONEnc)
		w.W("buf := &bytes.Buffer{}")
		if mem.Optional {
			w.W("if %s != nil {", field)
		}
		w.W("if err := %s(%s, jsonenc.NewValue(buf)); err != nil {", handle, field)
		w.W("return nil, err")
		w.W("}")
		if mem.Optional {
			w.W("}")
		}
		return "buf", true, nil
	case target.Kind == model.KindDocument:
		w.Import("bytes")
		w.Import(rt.Document)
		w.W("docBytes, docErr := document.Marshal(%s)", field)
		w.W("if docErr != nil {")
		w.W("return nil, docErr")
		w.W("}")
		w.W("body := bytes.NewReader(docBytes)")
		return "body", true, nil
	default:
		return "", false, wiregen.Unsupported(p.Name(), string(target.ID), "payload kind "+target.Kind.String())
	}
}

func (p *Protocol) ParserFor(st *wiregen.GenState, opID model.ShapeID) (wiregen.FuncHandle, error) {
	op := st.Model.Expect(opID)
	if op.Kind != model.KindOperation {
		return wiregen.FuncHandle{}, wiregen.InvalidBinding(p.Name(), string(opID), "not an operation shape")
	}
	name := wiregen.FuncName("parse", protoFragment, opID.Name(), "Response")
	return st.Registry.Intern(rt.ModuleDeserializers, name, func(w *gen.Writer) error {
		bindOp, err := p.resolve(st, op)
		if err != nil {
			return err
		}
		return p.parseResponse(st, w, name, op, bindOp)
	})
}

func (p *Protocol) parseResponse(st *wiregen.GenState, w *gen.Writer, name string, op *model.Shape, bindOp *binding.Operation) error {
	dispatch, err := errgen.Dispatch(st, protoFragment, p, op, func(id model.ShapeID) (wiregen.FuncHandle, error) {
		descs := bindOp.Errors[id]
		return p.json.ErrorParser(st, id, descs, func(ew *gen.Writer) error {
			return p.httpEmitter(st, ew, "").ResponseBindings(descs)
		})
	})
	if err != nil {
		return err
	}
	w.Import("net/http")

	if op.Output == "" {
		w.Import("io")
		w.W("func %s(resp *http.Response) error {", name)
		w.W("if resp.StatusCode < 200 || resp.StatusCode >= 300 {")
		w.W("return %s(resp)", dispatch)
		w.W("}")
		w.W("_, _ = io.Copy(io.Discard, resp.Body)")
		w.W("return nil")
		w.W("}")
		return nil
	}

	w.Import(st.Symbols.TypesImport())
	w.W("func %s(resp *http.Response) (%s, error) {", name, st.Symbols.ShapeType(op.Output))
	w.W("if resp.StatusCode < 200 || resp.StatusCode >= 300 {")
	w.W("return nil, %s(resp)", dispatch)
	w.W("}")
	w.W("b := %s", wiregen.BuilderNew(st.Symbols, op.Output))

	e := p.httpEmitter(st, w, "nil, ")
	if err := e.ResponseBindings(bindOp.Output); err != nil {
		return err
	}

	payload := binding.PayloadDescriptor(bindOp.Output)
	switch {
	case payload != nil && payload.Member.EventStream:
		if err := p.stream.ResponseStream(st, w, op.Output, payload.Member, binding.DocumentDescriptors(bindOp.Output)); err != nil {
			return err
		}
	case payload != nil:
		if err := p.parsedPayload(st, w, payload); err != nil {
			return err
		}
	default:
		docs := binding.DocumentDescriptors(bindOp.Output)
		if len(docs) > 0 {
			body, err := p.json.BodyDeserializer(st, op.Output, bindOp.Output)
			if err != nil {
				return err
			}
			w.Import("io")
			w.Import(rt.JSONDec)
			w.W("data, readErr := io.ReadAll(resp.Body)")
			errgen.FailUnhandled(w, "nil, ", "readErr", "response body")
			w.W("raw, rawErr := jsondec.Decode(data)")
			errgen.FailUnhandled(w, "nil, ", "rawErr", "response body")
			w.W("if raw != nil {")
			w.W("if err := %s(raw, b); err != nil {", body)
			w.W(`return nil, &apierr.UnhandledError{Location: "response body", Cause: err}`)
			w.W("}")
			w.W("}")
		}
	}
	w.W("return b.Build()")
	w.W("}")
	return nil
}

// parsedPayload emits the statements decoding the response body into the
// payload member's setter. Streaming blobs hand resp.Body straight through;
// everything else buffers.
func (p *Protocol) parsedPayload(st *wiregen.GenState, w *gen.Writer, d *binding.Descriptor) error {
	mem := d.Member
	target := st.Model.Expect(mem.Target)
	set := "b.Set" + wiregen.GoName(mem.Name)

	if mem.Streaming {
		w.W("%s(resp.Body)", set)
		return nil
	}

	w.Import("io")
	w.W("data, readErr := io.ReadAll(resp.Body)")
	errgen.FailUnhandled(w, "nil, ", "readErr", "response body")

	switch target.Kind {
	case model.KindBlob:
		w.W("%s(data)", set)
	case model.KindString:
		w.W("%s(string(data))", set)
	case model.KindEnum:
		w.W("%s(%s(data))", set, st.Symbols.ShapeType(target.ID))
	case model.KindStructure, model.KindUnion:
		handle, err := p.json.ShapeDeserializer(st, target.ID)
		if err != nil {
			return err
		}
		w.Import(rt.JSONDec)
		w.W("raw, rawErr := jsondec.Decode(data)")
		errgen.FailUnhandled(w, "nil, ", "rawErr", "response body")
		w.W("if raw != nil {")
		w.W("pv, pvErr := %s(raw)", handle)
		errgen.FailUnhandled(w, "nil, ", "pvErr", "response body")
		w.W("%s(pv)", set)
		w.W("}")
	case model.KindDocument:
		w.Import(rt.JSONDec)
		w.W("raw, rawErr := jsondec.Decode(data)")
		errgen.FailUnhandled(w, "nil, ", "rawErr", "response body")
		w.W("%s(raw)", set)
	default:
		return wiregen.Unsupported(p.Name(), string(target.ID), "payload kind "+target.Kind.String())
	}
	return nil
}
