// Package httpgen emits the HTTP halves of REST-bound operations: URI
// assembly with label substitution, query-string encoding, header binding on
// the request side, and header/status-code extraction on the response side.
// The document body halves come from the protocol's body generator; the two
// are stitched together by the protocol packages.
package httpgen

import (
	"fmt"

	wiregen "github.com/wiregen/wiregen"
	"github.com/wiregen/wiregen/binding"
	"github.com/wiregen/wiregen/internal/gen"
	"github.com/wiregen/wiregen/model"
	"github.com/wiregen/wiregen/protocol/internal/errgen"
	"github.com/wiregen/wiregen/protocol/internal/rt"
)

// Emitter writes binding statements into one generated function. The caller
// establishes the surrounding scope: `v` and `base` on the request side,
// `resp` and `b` on the response side.
type Emitter struct {
	St    *wiregen.GenState
	W     *gen.Writer
	Proto string

	// Location timestamp defaults applied when a member carries no format
	// override. REST JSON uses http-date headers and date-time query/label
	// values regardless of its document default.
	HeaderTimestamp model.TimestampFormat
	QueryTimestamp  model.TimestampFormat

	// RetZero prefixes emitted error returns: "nil, " inside two-value
	// functions, "" inside error-only functions (typed error parsers).
	RetZero string

	n int
}

func (e *Emitter) tmp(prefix string) string {
	e.n++
	return fmt.Sprintf("%s%d", prefix, e.n)
}

func (e *Emitter) timestampFor(mem *model.Member, def model.TimestampFormat) model.TimestampFormat {
	if mem.TimestampFormat != model.TimestampDefault {
		return mem.TimestampFormat
	}
	return def
}

// RequestURL emits the statements building `u` (a url.URL copy of base) with
// the operation's path and query string applied.
func (e *Emitter) RequestURL(op *binding.Operation) error {
	e.W.Import("strings")
	e.W.W("u := *base")
	e.W.W("var pathBuf strings.Builder")
	if len(op.Path) == 0 {
		e.W.W(`pathBuf.WriteString("/")`)
	}
	for _, seg := range op.Path {
		if seg.Literal != "" {
			e.W.W("pathBuf.WriteString(%q)", "/"+seg.Literal)
			continue
		}
		if err := e.pathLabel(op, seg); err != nil {
			return err
		}
	}
	e.W.W(`u.Path = strings.TrimSuffix(u.Path, "/") + pathBuf.String()`)

	hasQuery := len(op.Query) > 0
	for _, d := range op.Input {
		if d.Location == binding.LocationQuery {
			hasQuery = true
		}
	}
	if !hasQuery {
		return nil
	}
	e.W.W("q := u.Query()")
	for _, kv := range op.Query {
		e.W.W("q.Set(%q, %q)", kv[0], kv[1])
	}
	for _, d := range op.Input {
		if d.Location != binding.LocationQuery {
			continue
		}
		if err := e.queryMember(d); err != nil {
			return err
		}
	}
	e.W.W("u.RawQuery = q.Encode()")
	return nil
}

func (e *Emitter) pathLabel(op *binding.Operation, seg binding.Segment) error {
	var desc *binding.Descriptor
	for i := range op.Input {
		if op.Input[i].Location == binding.LocationLabel && op.Input[i].Member.Name == seg.Label {
			desc = &op.Input[i]
		}
	}
	if desc == nil {
		return wiregen.InvalidBinding(e.Proto, string(op.ID), "uri label "+seg.Label+" has no bound member")
	}
	mem := desc.Member
	field := "v." + wiregen.GoName(mem.Name)
	expr := field
	if mem.Optional && e.St.Symbols.PointerOptional(mem.Target) {
		e.W.Import("fmt")
		e.W.W("if %s == nil {", field)
		e.W.W("return %sfmt.Errorf(\"member %s is required to build the request path\")", e.RetZero, mem.Name)
		e.W.W("}")
		expr = "*" + field
	}
	str, err := e.formatScalar(mem, expr, e.QueryTimestamp, binding.LocationLabel)
	if err != nil {
		return err
	}
	e.W.Import("net/url")
	p := e.tmp("p")
	if seg.Greedy {
		e.W.W(`%s := strings.ReplaceAll(url.PathEscape(%s), "%%2F", "/")`, p, str)
	} else {
		e.W.W("%s := url.PathEscape(%s)", p, str)
	}
	e.W.W(`pathBuf.WriteString("/")`)
	e.W.W("pathBuf.WriteString(%s)", p)
	return nil
}

func (e *Emitter) queryMember(d binding.Descriptor) error {
	mem := d.Member
	target := e.St.Model.Expect(mem.Target)
	field := "v." + wiregen.GoName(mem.Name)

	if target.Kind == model.KindList {
		elem := target.ListMember
		item := e.tmp("qe")
		e.W.W("for _, %s := range %s {", item, field)
		str, err := e.formatScalar(elem, item, e.QueryTimestamp, binding.LocationQuery)
		if err != nil {
			return err
		}
		e.W.W("q.Add(\"%s\", %s)", e.St.Symbols.EscapeWireName(d.LocationName), str)
		e.W.W("}")
		return nil
	}

	expr := field
	guarded := mem.Optional
	if guarded && e.St.Symbols.PointerOptional(mem.Target) {
		expr = "*" + field
	}
	if guarded {
		e.W.W("if %s != nil {", field)
	}
	str, err := e.formatScalar(mem, expr, e.QueryTimestamp, binding.LocationQuery)
	if err != nil {
		return err
	}
	e.W.W("q.Set(\"%s\", %s)", e.St.Symbols.EscapeWireName(d.LocationName), str)
	if guarded {
		e.W.W("}")
	}
	return nil
}

// RequestHeaders emits header assignments on `req` for the header and
// prefix-header descriptors.
func (e *Emitter) RequestHeaders(descs []binding.Descriptor) error {
	for _, d := range descs {
		switch d.Location {
		case binding.LocationHeader:
			if err := e.requestHeader(d); err != nil {
				return err
			}
		case binding.LocationPrefixHeaders:
			if err := e.requestPrefixHeaders(d); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Emitter) requestHeader(d binding.Descriptor) error {
	mem := d.Member
	target := e.St.Model.Expect(mem.Target)
	field := "v." + wiregen.GoName(mem.Name)
	name := e.St.Symbols.EscapeWireName(d.LocationName)

	if target.Kind == model.KindList {
		item := e.tmp("he")
		e.W.W("for _, %s := range %s {", item, field)
		str, err := e.formatScalar(target.ListMember, item, e.HeaderTimestamp, binding.LocationHeader)
		if err != nil {
			return err
		}
		e.W.W("req.Header.Add(\"%s\", %s)", name, str)
		e.W.W("}")
		return nil
	}

	expr := field
	guarded := mem.Optional
	if guarded && e.St.Symbols.PointerOptional(mem.Target) {
		expr = "*" + field
	}
	if guarded {
		e.W.W("if %s != nil {", field)
	}
	str, err := e.formatScalar(mem, expr, e.HeaderTimestamp, binding.LocationHeader)
	if err != nil {
		return err
	}
	e.W.W("req.Header.Set(\"%s\", %s)", name, str)
	if guarded {
		e.W.W("}")
	}
	return nil
}

func (e *Emitter) requestPrefixHeaders(d binding.Descriptor) error {
	target := e.St.Model.Expect(d.Member.Target)
	if target.Kind != model.KindMap {
		return wiregen.InvalidBinding(e.Proto, string(d.Member.Target), "prefix-header member "+d.Member.Name+" must target a map")
	}
	field := "v." + wiregen.GoName(d.Member.Name)
	k, hv := e.tmp("hk"), e.tmp("hv")
	e.W.W("for %s, %s := range %s {", k, hv, field)
	str, err := e.formatScalar(target.MapValue, hv, e.HeaderTimestamp, binding.LocationHeader)
	if err != nil {
		return err
	}
	e.W.W("req.Header.Set(\"%s\"+%s, %s)", e.St.Symbols.EscapeWireName(d.LocationName), k, str)
	e.W.W("}")
	return nil
}

// formatScalar returns the string expression encoding expr for a non-body
// location, emitting any needed statements.
func (e *Emitter) formatScalar(mem *model.Member, expr string, tsDefault model.TimestampFormat, loc binding.Location) (string, error) {
	target := e.St.Model.Expect(mem.Target)
	switch target.Kind {
	case model.KindString:
		return expr, nil
	case model.KindEnum:
		return "string(" + expr + ")", nil
	case model.KindBoolean:
		e.W.Import("strconv")
		return "strconv.FormatBool(" + expr + ")", nil
	case model.KindByte, model.KindShort, model.KindInteger, model.KindLong:
		e.W.Import("strconv")
		return "strconv.FormatInt(int64(" + expr + "), 10)", nil
	case model.KindFloat:
		e.W.Import("strconv")
		return "strconv.FormatFloat(float64(" + expr + "), 'g', -1, 32)", nil
	case model.KindDouble:
		e.W.Import("strconv")
		return "strconv.FormatFloat(" + expr + ", 'g', -1, 64)", nil
	case model.KindBlob:
		e.W.Import("encoding/base64")
		return "base64.StdEncoding.EncodeToString(" + expr + ")", nil
	case model.KindTimestamp:
		e.W.Import(rt.Wiretime)
		switch e.timestampFor(mem, tsDefault) {
		case model.TimestampEpochSeconds:
			return "wiretime.FormatEpochSeconds(" + expr + ")", nil
		case model.TimestampHTTPDate:
			return "wiretime.FormatHTTPDate(" + expr + ")", nil
		default:
			return "wiretime.FormatDateTime(" + expr + ")", nil
		}
	default:
		return "", wiregen.Unsupported(e.Proto, string(target.ID), "shape kind "+target.Kind.String()+" cannot be bound to "+loc.String())
	}
}

// ResponseBindings emits builder mutations on `b` from `resp` for the header,
// prefix-header and status-code descriptors of an output or error shape.
func (e *Emitter) ResponseBindings(descs []binding.Descriptor) error {
	for _, d := range descs {
		switch d.Location {
		case binding.LocationHeader:
			if err := e.responseHeader(d); err != nil {
				return err
			}
		case binding.LocationPrefixHeaders:
			if err := e.responsePrefixHeaders(d); err != nil {
				return err
			}
		case binding.LocationStatusCode:
			e.W.W("b.Set%s(int32(resp.StatusCode))", wiregen.GoName(d.Member.Name))
		}
	}
	return nil
}

func (e *Emitter) responseHeader(d binding.Descriptor) error {
	mem := d.Member
	target := e.St.Model.Expect(mem.Target)
	name := e.St.Symbols.EscapeWireName(d.LocationName)
	set := "b.Set" + wiregen.GoName(mem.Name)

	e.W.W("if hv := resp.Header.Get(\"%s\"); hv != \"\" {", name)
	if target.Kind == model.KindList {
		e.W.Import("strings")
		elemType := e.St.Symbols.ShapeType(target.ListMember.Target)
		out := e.tmp("hs")
		e.W.W("var %s []%s", out, elemType)
		e.W.W(`for _, part := range strings.Split(hv, ",") {`)
		e.W.W("part = strings.TrimSpace(part)")
		expr, err := e.parseScalar(target.ListMember, "part", e.HeaderTimestamp, "header "+d.LocationName)
		if err != nil {
			return err
		}
		e.W.W("%s = append(%s, %s)", out, out, expr)
		e.W.W("}")
		e.W.W("%s(%s)", set, out)
	} else {
		expr, err := e.parseScalar(mem, "hv", e.HeaderTimestamp, "header "+d.LocationName)
		if err != nil {
			return err
		}
		e.W.W("%s(%s)", set, expr)
	}
	e.W.W("}")
	return nil
}

func (e *Emitter) responsePrefixHeaders(d binding.Descriptor) error {
	target := e.St.Model.Expect(d.Member.Target)
	if target.Kind != model.KindMap {
		return wiregen.InvalidBinding(e.Proto, string(d.Member.Target), "prefix-header member "+d.Member.Name+" must target a map")
	}
	e.W.Import("strings")
	prefix := e.St.Symbols.EscapeWireName(d.LocationName)
	out := e.tmp("ph")
	e.W.W("%s := map[string]string{}", out)
	e.W.W("for k, vs := range resp.Header {")
	e.W.W("if len(vs) == 0 || !strings.HasPrefix(strings.ToLower(k), strings.ToLower(\"%s\")) {", prefix)
	e.W.W("continue")
	e.W.W("}")
	e.W.W("%s[k[len(\"%s\"):]] = vs[0]", out, prefix)
	e.W.W("}")
	e.W.W("if len(%s) > 0 {", out)
	e.W.W("b.Set%s(%s)", wiregen.GoName(d.Member.Name), out)
	e.W.W("}")
	return nil
}

// parseScalar returns the value expression decoding the string in src,
// emitting parse statements and error checks as needed. Decode failures come
// back wrapped in apierr.UnhandledError naming the offending location.
func (e *Emitter) parseScalar(mem *model.Member, src string, tsDefault model.TimestampFormat, location string) (string, error) {
	target := e.St.Model.Expect(mem.Target)
	fail := func(v string) {
		errgen.FailUnhandled(e.W, e.RetZero, v+"Err", location)
	}
	switch target.Kind {
	case model.KindString:
		return src, nil
	case model.KindEnum:
		return e.St.Symbols.ShapeType(target.ID) + "(" + src + ")", nil
	case model.KindBoolean:
		e.W.Import("strconv")
		v := e.tmp("hb")
		e.W.W("%s, %sErr := strconv.ParseBool(%s)", v, v, src)
		fail(v)
		return v, nil
	case model.KindByte, model.KindShort, model.KindInteger, model.KindLong:
		e.W.Import("strconv")
		v := e.tmp("hn")
		e.W.W("%s, %sErr := strconv.ParseInt(%s, 10, 64)", v, v, src)
		fail(v)
		if target.Kind == model.KindLong {
			return v, nil
		}
		return e.St.Symbols.ShapeType(target.ID) + "(" + v + ")", nil
	case model.KindFloat, model.KindDouble:
		e.W.Import("strconv")
		v := e.tmp("hf")
		e.W.W("%s, %sErr := strconv.ParseFloat(%s, 64)", v, v, src)
		fail(v)
		if target.Kind == model.KindFloat {
			return "float32(" + v + ")", nil
		}
		return v, nil
	case model.KindBlob:
		e.W.Import("encoding/base64")
		v := e.tmp("hd")
		e.W.W("%s, %sErr := base64.StdEncoding.DecodeString(%s)", v, v, src)
		fail(v)
		return v, nil
	case model.KindTimestamp:
		e.W.Import(rt.Wiretime)
		v := e.tmp("ht")
		switch e.timestampFor(mem, tsDefault) {
		case model.TimestampEpochSeconds:
			e.W.W("%s, %sErr := wiretime.ParseEpochSeconds(%s)", v, v, src)
		case model.TimestampDateTime:
			e.W.W("%s, %sErr := wiretime.ParseDateTime(%s)", v, v, src)
		default:
			e.W.W("%s, %sErr := wiretime.ParseHTTPDate(%s)", v, v, src)
		}
		fail(v)
		return v, nil
	default:
		return "", wiregen.Unsupported(e.Proto, string(target.ID), "shape kind "+target.Kind.String()+" cannot be bound to a header")
	}
}
