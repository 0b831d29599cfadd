// Package errgen emits the two-phase error discrimination shared by every
// protocol: phase one reads the buffered error body and asks the protocol's
// envelope parser for a (code, message) pair; phase two dispatches on the
// operation's declared error shapes by wire code, falling back to a
// GenericAPIError carrying whatever the envelope yielded. Error bodies are
// always buffered, streaming payloads notwithstanding.
package errgen

import (
	wiregen "github.com/wiregen/wiregen"
	"github.com/wiregen/wiregen/internal/gen"
	"github.com/wiregen/wiregen/model"
	"github.com/wiregen/wiregen/protocol/internal/rt"
)

// FailUnhandled emits the check wrapping a runtime decode failure in an
// apierr.UnhandledError tagged with the binding location that failed.
func FailUnhandled(w *gen.Writer, retZero, errVar, location string) {
	w.Import(rt.APIErr)
	w.W("if %s != nil {", errVar)
	w.W("return %s&apierr.UnhandledError{Location: %q, Cause: %s}", retZero, location, errVar)
	w.W("}")
}

// TypedParser interns the typed parser for one declared error shape, with
// the signature func(resp *http.Response, body []byte, msg string) error.
type TypedParser func(id model.ShapeID) (wiregen.FuncHandle, error)

// Dispatch interns the per-operation error parser.
func Dispatch(st *wiregen.GenState, proto string, p wiregen.Protocol, op *model.Shape, typed TypedParser) (wiregen.FuncHandle, error) {
	name := wiregen.FuncName("parse", proto, op.ID.Name(), "Error")
	return st.Registry.Intern(rt.ModuleDeserializers, name, func(w *gen.Writer) error {
		envelope, err := p.GenericErrorParser(st)
		if err != nil {
			return err
		}
		w.Import(rt.APIErr)
		w.Import("io")
		w.Import("net/http")
		w.W("func %s(resp *http.Response) error {", name)
		w.W("body, readErr := io.ReadAll(resp.Body)")
		w.W("if readErr != nil {")
		w.W(`return &apierr.UnhandledError{Location: "error response body", Cause: readErr}`)
		w.W("}")
		w.W("code, msg := %s(resp, body)", envelope)
		if len(op.Errors) > 0 {
			w.W("switch code {")
			for _, errID := range op.Errors {
				h, err := typed(errID)
				if err != nil {
					return err
				}
				w.W("case %q:", p.ErrorCode(st.Model.Expect(errID)))
				w.W("return %s(resp, body, msg)", h)
			}
			w.W("}")
		}
		w.W("return &apierr.GenericAPIError{Code: code, Message: msg, Status: resp.StatusCode}")
		w.W("}")
		return nil
	})
}
