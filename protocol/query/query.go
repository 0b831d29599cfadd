// Package query implements the form-encoded RPC protocol: every request is
// a POST whose body flattens the input into Action/Version pairs plus dotted
// member paths, and every response is an XML document whose operation result
// sits under an OpNameResult wrapper. Errors share the XML envelope of the
// REST XML flavor.
package query

import (
	wiregen "github.com/wiregen/wiregen"
	"github.com/wiregen/wiregen/binding"
	"github.com/wiregen/wiregen/internal/gen"
	"github.com/wiregen/wiregen/model"
	"github.com/wiregen/wiregen/protocol/internal/errgen"
	"github.com/wiregen/wiregen/protocol/internal/rt"
	"github.com/wiregen/wiregen/protocol/internal/xmlgen"
)

const protoFragment = "Query"

type Protocol struct {
	xml *xmlgen.Generator
}

func New() *Protocol {
	return &Protocol{
		xml: &xmlgen.Generator{Proto: protoFragment, TimestampDefault: model.TimestampDateTime},
	}
}

func (p *Protocol) Name() string { return "query" }

func (p *Protocol) ContentTypes() wiregen.ContentTypes {
	return wiregen.ContentTypes{
		Request:  "application/x-www-form-urlencoded",
		Response: "text/xml",
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

func (p *Protocol) SerializerFor(st *wiregen.GenState, opID model.ShapeID) (wiregen.FuncHandle, error) {
	op := st.Model.Expect(opID)
	if op.Kind != model.KindOperation {
		return wiregen.FuncHandle{}, wiregen.InvalidBinding(p.Name(), string(opID), "not an operation shape")
	}
	name := wiregen.FuncName("serialize", protoFragment, opID.Name(), "Request")
	return st.Registry.Intern(rt.ModuleSerializers, name, func(w *gen.Writer) error {
		return p.serializeRequest(st, w, name, op)
	})
}

func (p *Protocol) serializeRequest(st *wiregen.GenState, w *gen.Writer, name string, op *model.Shape) error {
	version := ""
	if svc := st.Model.Service(); svc != nil {
		version = svc.Version
	}

	w.Import("net/http")
	w.Import("net/url")
	w.Import("strings")

	if op.Input == "" {
		w.W("func %s(base *url.URL) (*http.Request, error) {", name)
	} else {
		w.Import(st.Symbols.TypesImport())
		w.W("func %s(v %s, base *url.URL) (*http.Request, error) {", name, st.Symbols.ShapeType(op.Input))
	}
	w.W("u := *base")
	w.W(`u.Path = strings.TrimSuffix(u.Path, "/") + "/"`)
	w.W("vals := url.Values{}")
	w.W(`vals.Set("Action", "%s")`, op.ID.Name())
	w.W(`vals.Set("Version", "%s")`, version)

	if op.Input != "" {
		body, err := p.bodySerializer(st, op.Input)
		if err != nil {
			return err
		}
		w.W("if v != nil {")
		w.W("if err := %s(v, vals); err != nil {", body)
		w.W("return nil, err")
		w.W("}")
		w.W("}")
	}

	w.W(`req, reqErr := http.NewRequest("POST", u.String(), strings.NewReader(vals.Encode()))`)
	w.W("if reqErr != nil {")
	w.W("return nil, reqErr")
	w.W("}")
	w.W(`req.Header.Set("Content-Type", "%s")`, p.ContentTypes().Request)
	w.W("return req, nil")
	w.W("}")
	return nil
}

func (p *Protocol) ParserFor(st *wiregen.GenState, opID model.ShapeID) (wiregen.FuncHandle, error) {
	op := st.Model.Expect(opID)
	if op.Kind != model.KindOperation {
		return wiregen.FuncHandle{}, wiregen.InvalidBinding(p.Name(), string(opID), "not an operation shape")
	}
	name := wiregen.FuncName("parse", protoFragment, opID.Name(), "Response")
	return st.Registry.Intern(rt.ModuleDeserializers, name, func(w *gen.Writer) error {
		bindOp, err := binding.Synthesize(st.Model, op)
		if err != nil {
			return wiregen.InvalidBinding(p.Name(), string(op.ID), err.Error())
		}
		return p.parseResponse(st, w, name, op, bindOp)
	})
}

func (p *Protocol) parseResponse(st *wiregen.GenState, w *gen.Writer, name string, op *model.Shape, bindOp *binding.Operation) error {
	dispatch, err := errgen.Dispatch(st, protoFragment, p, op, func(id model.ShapeID) (wiregen.FuncHandle, error) {
		return p.xml.ErrorParser(st, id, bindOp.Errors[id], nil)
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

	body, err := p.xml.BodyDeserializer(st, op.Output, bindOp.Output)
	if err != nil {
		return err
	}

	w.Import(st.Symbols.TypesImport())
	w.Import("io")
	w.Import(rt.XMLCodec)
	w.W("func %s(resp *http.Response) (%s, error) {", name, st.Symbols.ShapeType(op.Output))
	w.W("if resp.StatusCode < 200 || resp.StatusCode >= 300 {")
	w.W("return nil, %s(resp)", dispatch)
	w.W("}")
	w.W("b := %s", wiregen.BuilderNew(st.Symbols, op.Output))
	w.W("data, readErr := io.ReadAll(resp.Body)")
	errgen.FailUnhandled(w, "nil, ", "readErr", "response body")
	w.W("if len(data) > 0 {")
	w.W("root, rootErr := xmlcodec.Parse(data)")
	errgen.FailUnhandled(w, "nil, ", "rootErr", "response body")
	w.W("doc := root")
	w.W(`if c := root.Child("%sResult"); c != nil {`, op.ID.Name())
	w.W("doc = c")
	w.W("}")
	w.W("if err := %s(doc, b); err != nil {", body)
	w.W(`return nil, &apierr.UnhandledError{Location: "response body", Cause: err}`)
	w.W("}")
	w.W("}")
	w.W("return b.Build()")
	w.W("}")
	return nil
}
