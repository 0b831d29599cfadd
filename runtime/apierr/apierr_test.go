package apierr

import (
	"errors"
	"fmt"
	"testing"
)

func TestSanitizeCode(t *testing.T) {
	cases := []struct{ in, want string }{
		{"NoSuchCity", "NoSuchCity"},
		{"example#NoSuchCity", "NoSuchCity"},
		{"NoSuchCity:https://example.com/errors/NoSuchCity", "NoSuchCity"},
		{"example#NoSuchCity:https://example.com/", "NoSuchCity"},
		{"  Spaced  ", "Spaced"},
		{"", ""},
	}
	for _, c := range cases {
		if got := SanitizeCode(c.in); got != c.want {
			t.Errorf("SanitizeCode(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestGenericAPIErrorMessage(t *testing.T) {
	withMsg := &GenericAPIError{Code: "Throttled", Message: "slow down", Status: 429}
	if withMsg.Error() != "api error Throttled: slow down" {
		t.Fatalf("got %q", withMsg.Error())
	}
	bare := &GenericAPIError{Code: "Throttled", Status: 429}
	if bare.Error() != "api error Throttled (status 429)" {
		t.Fatalf("got %q", bare.Error())
	}
}

func TestUnhandledErrorUnwraps(t *testing.T) {
	cause := errors.New("unexpected EOF")
	err := &UnhandledError{Location: "error response body", Cause: cause}
	if !errors.Is(err, cause) {
		t.Fatalf("Unwrap must expose the cause")
	}
	if want := "unhandled response at error response body: unexpected EOF"; err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
	var unhandled *UnhandledError
	if !errors.As(fmt.Errorf("wrapped: %w", err), &unhandled) {
		t.Fatalf("errors.As must find the typed error")
	}
}
