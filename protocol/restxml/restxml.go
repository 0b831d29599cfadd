// Package restxml implements the REST XML protocol: operations carry native
// HTTP bindings like the REST JSON flavor, but document bodies and payload
// structures are XML. Errors arrive as an Error element, optionally wrapped
// in ErrorResponse, carrying Code and Message children.
package restxml

import (
	wiregen "github.com/wiregen/wiregen"
	"github.com/wiregen/wiregen/binding"
	"github.com/wiregen/wiregen/internal/gen"
	"github.com/wiregen/wiregen/model"
	"github.com/wiregen/wiregen/protocol/internal/errgen"
	"github.com/wiregen/wiregen/protocol/internal/httpgen"
	"github.com/wiregen/wiregen/protocol/internal/rt"
	"github.com/wiregen/wiregen/protocol/internal/xmlgen"
)

const protoFragment = "RestXml"

type Protocol struct {
	xml *xmlgen.Generator
}

func New() *Protocol {
	return &Protocol{
		xml: &xmlgen.Generator{Proto: protoFragment, TimestampDefault: model.TimestampDateTime},
	}
}

func (p *Protocol) Name() string { return "restxml" }

func (p *Protocol) ContentTypes() wiregen.ContentTypes {
	return wiregen.ContentTypes{
		Request:     "application/xml",
		Response:    "application/xml",
		EventStream: "application/vnd.amazon.eventstream",
	}
}

func (p *Protocol) TimestampFormat() model.TimestampFormat { return model.TimestampDateTime }

func (p *Protocol) ErrorCode(shape *model.Shape) string {
	if shape.ErrorCode != "" {
		return shape.ErrorCode
	}
	return shape.ID.Name()
}

func (p *Protocol) GenericErrorParser(st *wiregen.GenState) (wiregen.FuncHandle, error) {
	return p.xml.ErrorEnvelope(st)
}

// httpEmitter applies the location timestamp defaults this protocol uses:
// http-date in headers, date-time everywhere else.
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
	if payload != nil && payload.Member.EventStream {
		return wiregen.Unsupported(p.Name(), string(op.ID), "event streams are not defined for the XML protocol")
	}

	if op.Input == "" {
		w.W("func %s(base *url.URL) (*http.Request, error) {", name)
	} else {
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
	case payload != nil:
		expr, has, err := p.serializedPayload(st, w, payload)
		if err != nil {
			return err
		}
		bodyExpr, hasBody = expr, has
	default:
		docs := binding.DocumentDescriptors(bindOp.Input)
		if len(docs) > 0 {
			body, err := p.xml.BodySerializer(st, op.Input, bindOp.Input)
			if err != nil {
				return err
			}
			w.Import("bytes")
			w.Import(rt.XMLCodec)
			w.W("xw := xmlcodec.NewWriter()")
			w.W("if err := %s(v, xw); err != nil {", body)
			w.W("return nil, err")
			w.W("}")
			w.W("body := bytes.NewReader(xw.Bytes())")
			bodyExpr, hasBody = "body", true
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
// present). Structure payloads serialize under an element named by the
// payload binding, not the operation.
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
		handle, err := p.xml.ShapeSerializer(st, target.ID)
		if err != nil {
			return "", false, err
		}
		tag := st.Symbols.EscapeWireName(payloadTag(d, target))
		w.Import("bytes")
		w.Import(rt.XMLCodec)
		w.W("xw := xmlcodec.NewWriter()")
		if mem.Optional {
			w.W("if %s != nil {", field)
		}
		w.W("if err := %s(%s, xw, \"%s\"); err != nil {", handle, field, tag)
		w.W("return nil, err")
		w.W("}")
		if mem.Optional {
			w.W("}")
		}
		w.W("body := bytes.NewReader(xw.Bytes())")
		return "body", true, nil
	default:
		return "", false, wiregen.Unsupported(p.Name(), string(target.ID), "payload kind "+target.Kind.String())
	}
}

// payloadTag names the root element of a structure payload: the binding
// location name wins, then the member's wire name, then the shape name.
func payloadTag(d *binding.Descriptor, target *model.Shape) string {
	if d.LocationName != "" {
		return d.LocationName
	}
	if d.Member.WireName != "" {
		return d.Member.WireName
	}
	return target.ID.Name()
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
		return p.xml.ErrorParser(st, id, descs, func(ew *gen.Writer) error {
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

	payload := binding.PayloadDescriptor(bindOp.Output)
	if payload != nil && payload.Member.EventStream {
		return wiregen.Unsupported(p.Name(), string(op.ID), "event streams are not defined for the XML protocol")
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

	switch {
	case payload != nil:
		if err := p.parsedPayload(st, w, payload); err != nil {
			return err
		}
	default:
		docs := binding.DocumentDescriptors(bindOp.Output)
		if len(docs) > 0 {
			body, err := p.xml.BodyDeserializer(st, op.Output, bindOp.Output)
			if err != nil {
				return err
			}
			w.Import("io")
			w.Import(rt.XMLCodec)
			w.W("data, readErr := io.ReadAll(resp.Body)")
			errgen.FailUnhandled(w, "nil, ", "readErr", "response body")
			w.W("if len(data) > 0 {")
			w.W("root, rootErr := xmlcodec.Parse(data)")
			errgen.FailUnhandled(w, "nil, ", "rootErr", "response body")
			w.W("if err := %s(root, b); err != nil {", body)
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
		handle, err := p.xml.ShapeDeserializer(st, target.ID)
		if err != nil {
			return err
		}
		w.Import(rt.XMLCodec)
		w.W("if len(data) > 0 {")
		w.W("root, rootErr := xmlcodec.Parse(data)")
		errgen.FailUnhandled(w, "nil, ", "rootErr", "response body")
		w.W("pv, pvErr := %s(root)", handle)
		errgen.FailUnhandled(w, "nil, ", "pvErr", "response body")
		w.W("%s(pv)", set)
		w.W("}")
	default:
		return wiregen.Unsupported(p.Name(), string(target.ID), "payload kind "+target.Kind.String())
	}
	return nil
}
