// Package rpcbin implements the length-prefixed binary RPC protocol: every
// request is a POST whose body is the bincodec encoding of the input
// structure, the target operation rides in a header, and error responses
// carry a binary envelope of code and message strings ahead of the encoded
// error shape.
package rpcbin

import (
	"strings"

	wiregen "github.com/wiregen/wiregen"
	"github.com/wiregen/wiregen/internal/gen"
	"github.com/wiregen/wiregen/model"
	"github.com/wiregen/wiregen/protocol/internal/errgen"
	"github.com/wiregen/wiregen/protocol/internal/rt"
)

const protoFragment = "RpcBin"

const contentType = "application/vnd.wiregen-rpcbin"

type Protocol struct{}

func New() *Protocol { return &Protocol{} }

func (p *Protocol) Name() string { return "rpcbin" }

func (p *Protocol) ContentTypes() wiregen.ContentTypes {
	return wiregen.ContentTypes{
		Request:  contentType,
		Response: contentType,
	}
}

func (p *Protocol) TimestampFormat() model.TimestampFormat { return model.TimestampEpochSeconds }

func (p *Protocol) ErrorCode(shape *model.Shape) string {
	if shape.ErrorCode != "" {
		return shape.ErrorCode
	}
	return shape.ID.Name()
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
	target := op.ID.Namespace()
	if svc := st.Model.Service(); svc != nil {
		target = svc.ID.Name()
	}
	target += "." + op.ID.Name()

	w.Import("net/http")
	w.Import("net/url")
	w.Import("strings")
	w.Import("bytes")

	if op.Input == "" {
		w.W("func %s(base *url.URL) (*http.Request, error) {", name)
		w.W("u := *base")
		w.W(`u.Path = strings.TrimSuffix(u.Path, "/") + "/"`)
		w.W(`req, reqErr := http.NewRequest("POST", u.String(), bytes.NewReader(nil))`)
	} else {
		input := st.Model.Expect(op.Input)
		body, err := p.shapeSerializer(st, op.Input)
		if err != nil {
			return err
		}
		w.Import(st.Symbols.TypesImport())
		w.Import(rt.Bincodec)
		w.W("func %s(v %s, base *url.URL) (*http.Request, error) {", name, st.Symbols.ShapeType(op.Input))
		w.W("u := *base")
		w.W(`u.Path = strings.TrimSuffix(u.Path, "/") + "/"`)
		w.W("bw := &bincodec.Writer{}")
		w.W("if v == nil {")
		w.W("bw.ReserveFlags(%d)", len(input.Members))
		w.W("} else if err := %s(v, bw); err != nil {", body)
		w.W("return nil, err")
		w.W("}")
		w.W(`req, reqErr := http.NewRequest("POST", u.String(), bytes.NewReader(bw.Bytes()))`)
	}

	w.W("if reqErr != nil {")
	w.W("return nil, reqErr")
	w.W("}")
	w.W(`req.Header.Set("Content-Type", "%s")`, contentType)
	w.W(`req.Header.Set("X-Wiregen-Target", "%s")`, target)
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
		return p.errorParser(st, id)
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

	body, err := p.shapeDeserializer(st, op.Output)
	if err != nil {
		return err
	}

	w.Import(st.Symbols.TypesImport())
	w.Import("io")
	w.Import(rt.Bincodec)
	w.W("func %s(resp *http.Response) (%s, error) {", name, st.Symbols.ShapeType(op.Output))
	w.W("if resp.StatusCode < 200 || resp.StatusCode >= 300 {")
	w.W("return nil, %s(resp)", dispatch)
	w.W("}")
	w.W("data, readErr := io.ReadAll(resp.Body)")
	errgen.FailUnhandled(w, "nil, ", "readErr", "response body")
	w.W("br := bincodec.NewReader(data)")
	w.W("out, outErr := %s(br)", body)
	errgen.FailUnhandled(w, "nil, ", "outErr", "response body")
	w.W("return out, nil")
	w.W("}")
	return nil
}

// GenericErrorParser interns the binary envelope sniffer: a code string then
// a message string lead the error body. A short or garbled body yields an
// empty pair; envelope sniffing is best-effort.
func (p *Protocol) GenericErrorParser(st *wiregen.GenState) (wiregen.FuncHandle, error) {
	name := wiregen.FuncName("parse", protoFragment, "ErrorEnvelope")
	return st.Registry.Intern(rt.ModuleDeserializers, name, func(w *gen.Writer) error {
		w.Import(rt.Bincodec)
		w.Import(rt.APIErr)
		w.Import("net/http")
		w.W("func %s(resp *http.Response, body []byte) (string, string) {", name)
		w.W("_ = resp")
		w.W("br := bincodec.NewReader(body)")
		w.W("code, codeErr := br.ReadString()")
		w.W("if codeErr != nil {")
		w.W(`return "", ""`)
		w.W("}")
		w.W("msg, msgErr := br.ReadString()")
		w.W("if msgErr != nil {")
		w.W(`return apierr.SanitizeCode(code), ""`)
		w.W("}")
		w.W("return apierr.SanitizeCode(code), msg")
		w.W("}")
		return nil
	})
}

// errorParser interns the typed parser for one error shape: skip the two
// envelope strings, preset the message, then decode the shape.
func (p *Protocol) errorParser(st *wiregen.GenState, id model.ShapeID) (wiregen.FuncHandle, error) {
	shape := st.Model.Expect(id)
	name := wiregen.FuncName("parse", protoFragment, id.Name())
	return st.Registry.Intern(rt.ModuleDeserializers, name, func(w *gen.Writer) error {
		body, err := p.bodyDeserializer(st, id)
		if err != nil {
			return err
		}
		w.Import(st.Symbols.TypesImport())
		w.Import(rt.Bincodec)
		w.Import(rt.APIErr)
		w.Import("net/http")
		w.W("func %s(resp *http.Response, body []byte, msg string) error {", name)
		w.W("_ = resp")
		w.W("br := bincodec.NewReader(body)")
		w.W("if _, err := br.ReadString(); err != nil {")
		w.W(`return &apierr.UnhandledError{Location: "error response body", Cause: err}`)
		w.W("}")
		w.W("if _, err := br.ReadString(); err != nil {")
		w.W(`return &apierr.UnhandledError{Location: "error response body", Cause: err}`)
		w.W("}")
		w.W("b := %s", wiregen.BuilderNew(st.Symbols, id))
		if setter := errMessageSetter(shape); setter != "" {
			w.W(`if msg != "" {`)
			w.W("b.%s(msg)", setter)
			w.W("}")
		} else {
			w.W("_ = msg")
		}
		w.W("if br.Remaining() > 0 {")
		w.W("if err := %s(br, b); err != nil {", body)
		w.W("return err")
		w.W("}")
		w.W("}")
		w.W("v, buildErr := b.Build()")
		w.W("if buildErr != nil {")
		w.W("return buildErr")
		w.W("}")
		w.W("return v")
		w.W("}")
		return nil
	})
}

// errMessageSetter finds the builder setter of the error shape's
// human-readable message member, or "".
func errMessageSetter(shape *model.Shape) string {
	for i := range shape.Members {
		switch strings.ToLower(shape.Members[i].Name) {
		case "message", "errormessage", "error_message":
			return "Set" + wiregen.GoName(shape.Members[i].Name)
		}
	}
	return ""
}
