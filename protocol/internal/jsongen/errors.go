package jsongen

import (
	"strings"

	wiregen "github.com/wiregen/wiregen"
	"github.com/wiregen/wiregen/binding"
	"github.com/wiregen/wiregen/internal/gen"
	"github.com/wiregen/wiregen/model"
	"github.com/wiregen/wiregen/protocol/internal/rt"
)

// ErrorParser interns the typed parser for one error shape. The envelope
// message is applied to the builder before the body is decoded, so a modeled
// message field always wins over the envelope. The bindings hook, when
// non-nil, emits header/status-code extraction from resp (REST protocols);
// its statements run before the body decode for the same reason.
func (g *Generator) ErrorParser(st *wiregen.GenState, id model.ShapeID, descs []binding.Descriptor, bindings func(w *gen.Writer) error) (wiregen.FuncHandle, error) {
	shape := st.Model.Expect(id)
	name := wiregen.FuncName("parse", g.Proto, id.Name())
	return st.Registry.Intern(rt.ModuleDeserializers, name, func(w *gen.Writer) error {
		body, err := g.BodyDeserializer(st, id, descs)
		if err != nil {
			return err
		}
		w.Import(st.Symbols.TypesImport())
		w.Import(rt.JSONDec)
		w.Import(rt.APIErr)
		w.Import("net/http")
		w.W("func %s(resp *http.Response, body []byte, msg string) error {", name)
		if bindings == nil {
			w.W("_ = resp")
		}
		w.W("raw, rawErr := jsondec.Decode(body)")
		w.W("if rawErr != nil {")
		w.W(`return &apierr.UnhandledError{Location: "error response body", Cause: rawErr}`)
		w.W("}")
		w.W("b := %s", wiregen.BuilderNew(st.Symbols, id))
		if setter := messageSetter(shape); setter != "" {
			w.W(`if msg != "" {`)
			w.W("b.%s(msg)", setter)
			w.W("}")
		} else {
			w.W("_ = msg")
		}
		if bindings != nil {
			if err := bindings(w); err != nil {
				return err
			}
		}
		w.W("if raw != nil {")
		w.W("if err := %s(raw, b); err != nil {", body)
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

// ErrorEnvelope interns the protocol-wide envelope sniffer. The wire code
// comes from the X-Amzn-Errortype header when present, else the body's
// __type field, else its code field; either way it is sanitized (namespace
// prefix and URI suffix stripped) before discrimination sees it. The
// human-readable message is pulled from the usual field spellings. A body
// that fails to decode yields an empty pair rather than an error: envelope
// sniffing is best-effort by contract.
func (g *Generator) ErrorEnvelope(st *wiregen.GenState) (wiregen.FuncHandle, error) {
	name := wiregen.FuncName("parse", g.Proto, "ErrorEnvelope")
	return st.Registry.Intern(rt.ModuleDeserializers, name, func(w *gen.Writer) error {
		w.Import(rt.JSONDec)
		w.Import(rt.APIErr)
		w.Import("net/http")
		w.W("func %s(resp *http.Response, body []byte) (string, string) {", name)
		w.W(`code := resp.Header.Get("X-Amzn-Errortype")`)
		w.W("var msg string")
		w.W("if raw, err := jsondec.Decode(body); err == nil {")
		w.W("if obj, err := jsondec.Object(raw); err == nil {")
		w.W(`if code == "" {`)
		w.W(`if s, err := jsondec.String(obj["__type"]); err == nil {`)
		w.W("code = s")
		w.W("}")
		w.W("}")
		w.W(`if code == "" {`)
		w.W(`if s, err := jsondec.String(obj["code"]); err == nil {`)
		w.W("code = s")
		w.W("}")
		w.W("}")
		w.W(`for _, k := range []string{"message", "Message", "errorMessage"} {`)
		w.W("if s, err := jsondec.String(obj[k]); err == nil {")
		w.W("msg = s")
		w.W("break")
		w.W("}")
		w.W("}")
		w.W("}")
		w.W("}")
		w.W("return apierr.SanitizeCode(code), msg")
		w.W("}")
		return nil
	})
}

// messageSetter finds the builder setter of the error shape's human-readable
// message member, or "".
func messageSetter(shape *model.Shape) string {
	for i := range shape.Members {
		switch strings.ToLower(shape.Members[i].Name) {
		case "message", "errormessage", "error_message":
			return "Set" + wiregen.GoName(shape.Members[i].Name)
		}
	}
	return ""
}
