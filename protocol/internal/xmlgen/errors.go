package xmlgen

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
// non-nil, emits header/status-code extraction from resp; its statements run
// before the body decode for the same reason.
func (g *Generator) ErrorParser(st *wiregen.GenState, id model.ShapeID, descs []binding.Descriptor, bindings func(w *gen.Writer) error) (wiregen.FuncHandle, error) {
	shape := st.Model.Expect(id)
	name := wiregen.FuncName("parse", g.Proto, id.Name())
	return st.Registry.Intern(rt.ModuleDeserializers, name, func(w *gen.Writer) error {
		body, err := g.BodyDeserializer(st, id, descs)
		if err != nil {
			return err
		}
		if _, err := errorNodeHelper(st); err != nil {
			return err
		}
		w.Import(st.Symbols.TypesImport())
		w.Import(rt.XMLCodec)
		w.Import(rt.APIErr)
		w.Import("net/http")
		w.W("func %s(resp *http.Response, body []byte, msg string) error {", name)
		if bindings == nil {
			w.W("_ = resp")
		}
		w.W("b := %s", wiregen.BuilderNew(st.Symbols, id))
		if setter := errMessageSetter(shape); setter != "" {
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
		w.W("if len(body) > 0 {")
		w.W("root, parseErr := xmlcodec.Parse(body)")
		w.W("if parseErr != nil {")
		w.W(`return &apierr.UnhandledError{Location: "error response body", Cause: parseErr}`)
		w.W("}")
		w.W("if err := %s(errorNode(root), b); err != nil {", body)
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

// ErrorEnvelope interns the protocol-wide envelope sniffer for the XML error
// document shared by the REST and query flavors: an Error element, usually
// nested under an ErrorResponse wrapper, carrying Code and Message children.
// The code is sanitized before discrimination sees it, and a body that fails
// to parse yields an empty pair rather than an error. The errorNode helper is
// interned alongside so typed parsers can reuse the same unwrapping.
func (g *Generator) ErrorEnvelope(st *wiregen.GenState) (wiregen.FuncHandle, error) {
	name := wiregen.FuncName("parse", g.Proto, "ErrorEnvelope")
	return st.Registry.Intern(rt.ModuleDeserializers, name, func(w *gen.Writer) error {
		if _, err := errorNodeHelper(st); err != nil {
			return err
		}
		w.Import(rt.XMLCodec)
		w.Import(rt.APIErr)
		w.Import("net/http")
		w.W("func %s(resp *http.Response, body []byte) (string, string) {", name)
		w.W("_ = resp")
		w.W("var code, msg string")
		w.W("if root, err := xmlcodec.Parse(body); err == nil {")
		w.W("n := errorNode(root)")
		w.W(`if s, ok := n.ChildText("Code"); ok {`)
		w.W("code = s")
		w.W("}")
		w.W(`if s, ok := n.ChildText("Message"); ok {`)
		w.W("msg = s")
		w.W("}")
		w.W("}")
		w.W("return apierr.SanitizeCode(code), msg")
		w.W("}")
		return nil
	})
}

// errorNodeHelper interns the shared unwrapper: the Error element may be the
// document root (bare style) or sit under an ErrorResponse wrapper.
func errorNodeHelper(st *wiregen.GenState) (wiregen.FuncHandle, error) {
	return st.Registry.Intern(rt.ModuleDeserializers, "errorNode", func(w *gen.Writer) error {
		w.Import(rt.XMLCodec)
		w.W("func errorNode(root *xmlcodec.Node) *xmlcodec.Node {")
		w.W(`if c := root.Child("Error"); c != nil {`)
		w.W("return c")
		w.W("}")
		w.W("return root")
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
