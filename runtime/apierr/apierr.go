// Package apierr defines the error values emitted marshalling code returns at
// runtime: the generic fallback for undiscriminated service errors and the
// unhandled wrapper for decode failures, tagged with the binding location
// that failed. Both are plain typed results; generated code never panics on
// malformed wire input.
package apierr

import (
	"fmt"
	"strings"
)

// GenericAPIError is the fallback representation for an error response whose
// wire code matched none of the operation's declared error shapes.
type GenericAPIError struct {
	Code    string
	Message string
	Status  int
}

func (e *GenericAPIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error %s (status %d)", e.Code, e.Status)
	}
	return fmt.Sprintf("api error %s: %s", e.Code, e.Message)
}

// UnhandledError reports a decode failure at a single binding location: a
// header, query parameter, or body that could not be parsed. Location names
// the offending binding.
type UnhandledError struct {
	Location string
	Cause    error
}

func (e *UnhandledError) Error() string {
	return fmt.Sprintf("unhandled response at %s: %v", e.Location, e.Cause)
}

func (e *UnhandledError) Unwrap() error { return e.Cause }

// SanitizeCode normalizes a wire error code: a namespace prefix ("ns#Code")
// and a URI suffix ("Code:https://...") are both stripped, matching what
// services actually send.
func SanitizeCode(code string) string {
	if i := strings.IndexByte(code, ':'); i >= 0 {
		code = code[:i]
	}
	if i := strings.IndexByte(code, '#'); i >= 0 {
		code = code[i+1:]
	}
	return strings.TrimSpace(code)
}
