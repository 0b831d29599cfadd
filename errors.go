package wiregen

import (
	"errors"
	"fmt"
	"strings"
)

// Issue codes (exported consts for IDE completion and type safety by
// convention). Generation-time failures are local to one shape/operation and
// never corrupt the registry or unrelated operations.
const (
	CodeUnsupportedShape   = "unsupported_shape"   // shape/protocol combination the protocol cannot express
	CodeUnsupportedFeature = "unsupported_feature" // leaf encoding the protocol declares but does not implement
	CodeUnknownShape       = "unknown_shape"
	CodeInvalidBinding     = "invalid_binding"
	CodeGeneratorFailure   = "generator_failure" // a builder closure returned an error
)

// Issue is a single generation-time error with enough context to diagnose:
// the shape it arose on, the active protocol, and the binding location when
// relevant.
type Issue struct {
	Shape    string // shape id, "" when not shape-specific
	Protocol string
	Location string // binding location name, "" when not binding-specific
	Code     string // one of the codes listed above
	Message  string
	Hint     string // optional remediation hint
	Cause    error  // optional underlying error
}

// Issues is a collection of generation errors that implements error.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(iss)
	lim := n
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		it := iss[i]
		fmt.Fprintf(b, "%s at %s", it.Code, it.context())
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

func (it Issue) context() string {
	parts := make([]string, 0, 3)
	if it.Protocol != "" {
		parts = append(parts, it.Protocol)
	}
	if it.Shape != "" {
		parts = append(parts, it.Shape)
	}
	if it.Location != "" {
		parts = append(parts, it.Location)
	}
	if len(parts) == 0 {
		return "?"
	}
	return strings.Join(parts, "/")
}

// AppendIssues appends issues to the destination, initializing the slice when
// needed.
func AppendIssues(dst Issues, more ...Issue) Issues {
	if dst == nil {
		dst = Issues{}
	}
	return append(dst, more...)
}

// AsIssues extracts Issues from an error using errors.As internally.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	return nil, false
}

// Unsupported builds the standard issue for a shape/protocol combination the
// protocol cannot express (e.g. a document payload in an XML protocol).
func Unsupported(protocol, shape, msg string) Issues {
	return Issues{{Shape: shape, Protocol: protocol, Code: CodeUnsupportedShape, Message: msg}}
}

// NotImplemented builds the standard issue for a leaf encoding the protocol
// recognizes but deliberately does not implement. Generation must fail with
// this rather than emit broken code.
func NotImplemented(protocol, shape, msg string) Issues {
	return Issues{{Shape: shape, Protocol: protocol, Code: CodeUnsupportedFeature, Message: msg}}
}

// InvalidBinding builds the standard issue for HTTP binding metadata the
// generators cannot honor.
func InvalidBinding(protocol, shape, msg string) Issues {
	return Issues{{Shape: shape, Protocol: protocol, Code: CodeInvalidBinding, Message: msg}}
}
