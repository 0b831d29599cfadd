// Package awsjson implements the RPC-over-JSON protocol family (wire
// versions 1.0 and 1.1). Operations have no native HTTP bindings: every
// request is a POST to the service root with the operation named in the
// X-Amz-Target header and all input members carried in the JSON document
// body. Absent input still produces a "{}" body. Event-stream members move
// the body onto a framed pipe with an initial-request frame.
package awsjson

import (
	wiregen "github.com/wiregen/wiregen"
	"github.com/wiregen/wiregen/binding"
	"github.com/wiregen/wiregen/internal/gen"
	"github.com/wiregen/wiregen/model"
	"github.com/wiregen/wiregen/protocol/internal/errgen"
	"github.com/wiregen/wiregen/protocol/internal/jsongen"
	"github.com/wiregen/wiregen/protocol/internal/rt"
	"github.com/wiregen/wiregen/protocol/internal/streamgen"
)

const protoFragment = "AwsJson"

// Protocol is one wire version of the family.
type Protocol struct {
	version string
	json    *jsongen.Generator
	stream  *streamgen.Generator
}

// New returns the protocol for wire version "1.0" or "1.1".
func New(version string) *Protocol {
	p := &Protocol{version: version}
	p.json = &jsongen.Generator{Proto: protoFragment, TimestampDefault: model.TimestampEpochSeconds}
	p.stream = &streamgen.Generator{Proto: protoFragment, JSON: p.json, PayloadContentType: "application/x-amz-json-" + version}
	return p
}

func (p *Protocol) Name() string { return "awsjson" }

func (p *Protocol) ContentTypes() wiregen.ContentTypes {
	ct := "application/x-amz-json-" + p.version
	return wiregen.ContentTypes{
		Request:     ct,
		Response:    ct,
		EventStream: "application/vnd.amazon.eventstream",
	}
}

func (p *Protocol) TimestampFormat() model.TimestampFormat { return model.TimestampEpochSeconds }

// ErrorCode prefers the explicit error-code trait over the shape name.
func (p *Protocol) ErrorCode(shape *model.Shape) string {
	if shape.ErrorCode != "" {
		return shape.ErrorCode
	}
	return shape.ID.Name()
}

func (p *Protocol) GenericErrorParser(st *wiregen.GenState) (wiregen.FuncHandle, error) {
	return p.json.ErrorEnvelope(st)
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
	target := st.Model.Service()
	targetName := op.ID.Namespace()
	if target != nil {
		targetName = target.ID.Name()
	}
	targetName += "." + op.ID.Name()

	w.Import("net/http")
	w.Import("net/url")
	w.Import("strings")
	ct := p.ContentTypes().Request

	var streamMem *model.Member
	if op.Input != "" {
		input := st.Model.Expect(op.Input)
		for i := range input.Members {
			mem := &input.Members[i]
			if mem.Streaming && !mem.EventStream {
				return wiregen.Unsupported(p.Name(), string(op.ID), "streaming blob members require a REST protocol")
			}
			if mem.EventStream {
				streamMem = mem
			}
		}
	}

	switch {
	case op.Input == "":
		w.Import("bytes")
		w.W("func %s(base *url.URL) (*http.Request, error) {", name)
		w.W("u := *base")
		w.W(`u.Path = strings.TrimSuffix(u.Path, "/") + "/"`)
		w.W(`req, reqErr := http.NewRequest("POST", u.String(), bytes.NewReader([]byte("{}")))`)
	case streamMem != nil:
		input := st.Model.Expect(op.Input)
		pump, err := p.stream.RequestStream(st, op.ID, streamMem, docDescriptors(input))
		if err != nil {
			return err
		}
		w.Import(st.Symbols.TypesImport())
		w.Import(rt.EventStream)
		w.Import("io")
		w.W("func %s(v %s, base *url.URL, sign eventstream.SignFunc) (*http.Request, error) {", name, st.Symbols.ShapeType(op.Input))
		w.W("u := *base")
		w.W(`u.Path = strings.TrimSuffix(u.Path, "/") + "/"`)
		w.W("pr, pw := io.Pipe()")
		w.W("go func() {")
		w.W("pw.CloseWithError(%s(v, sign, pw))", pump)
		w.W("}()")
		w.W(`req, reqErr := http.NewRequest("POST", u.String(), pr)`)
		ct = p.ContentTypes().EventStream
	default:
		input := st.Model.Expect(op.Input)
		body, err := p.json.BodySerializer(st, op.Input, docDescriptors(input))
		if err != nil {
			return err
		}
		w.Import(st.Symbols.TypesImport())
		w.Import(rt.JSONEnc)
		w.Import("bytes")
		w.W("func %s(v %s, base *url.URL) (*http.Request, error) {", name, st.Symbols.ShapeType(op.Input))
		w.W("u := *base")
		w.W(`u.Path = strings.TrimSuffix(u.Path, "/") + "/"`)
		w.W("buf := &bytes.Buffer{}")
		w.W("if v == nil {")
		w.W(`buf.WriteString("{}")`)
		w.W("} else {")
		w.W("if err := %s(v, jsonenc.NewValue(buf)); err != nil {", body)
		w.W("return nil, err")
		w.W("}")
		w.W("}")
		w.W(`req, reqErr := http.NewRequest("POST", u.String(), buf)`)
	}

	w.W("if reqErr != nil {")
	w.W("return nil, reqErr")
	w.W("}")
	w.W(`req.Header.Set("Content-Type", "%s")`, ct)
	w.W(`req.Header.Set("X-Amz-Target", "%s")`, targetName)
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
		return p.parseResponse(st, w, name, op)
	})
}

func (p *Protocol) parseResponse(st *wiregen.GenState, w *gen.Writer, name string, op *model.Shape) error {
	dispatch, err := errgen.Dispatch(st, protoFragment, p, op, func(id model.ShapeID) (wiregen.FuncHandle, error) {
		return p.json.ErrorParser(st, id, jsongen.AllDescriptors(st.Model.Expect(id)), nil)
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

	output := st.Model.Expect(op.Output)
	var streamMem *model.Member
	for i := range output.Members {
		mem := &output.Members[i]
		if mem.Streaming && !mem.EventStream {
			return wiregen.Unsupported(p.Name(), string(op.ID), "streaming blob members require a REST protocol")
		}
		if mem.EventStream {
			streamMem = mem
		}
	}

	w.Import(st.Symbols.TypesImport())
	w.W("func %s(resp *http.Response) (%s, error) {", name, st.Symbols.ShapeType(op.Output))
	w.W("if resp.StatusCode < 200 || resp.StatusCode >= 300 {")
	w.W("return nil, %s(resp)", dispatch)
	w.W("}")
	w.W("b := %s", wiregen.BuilderNew(st.Symbols, op.Output))

	if streamMem != nil {
		if err := p.stream.ResponseStream(st, w, op.Output, streamMem, docDescriptors(output)); err != nil {
			return err
		}
	} else {
		body, err := p.json.BodyDeserializer(st, op.Output, docDescriptors(output))
		if err != nil {
			return err
		}
		w.Import(rt.JSONDec)
		w.Import("io")
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
	w.W("return b.Build()")
	w.W("}")
	return nil
}

// docDescriptors synthesizes document descriptors for the non-stream members
// of an operation structure.
func docDescriptors(shape *model.Shape) []binding.Descriptor {
	var descs []binding.Descriptor
	for _, d := range jsongen.AllDescriptors(shape) {
		if d.Member.Streaming || d.Member.EventStream {
			continue
		}
		descs = append(descs, d)
	}
	return descs
}
