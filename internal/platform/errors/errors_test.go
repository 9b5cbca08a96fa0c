package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	t.Parallel()

	err := New(CodeChannelNotFound, "channel does not exist")
	target := New(CodeChannelNotFound, "different message")

	if !stderrors.Is(err, target) {
		t.Fatal("expected errors with the same code to match")
	}
	if stderrors.Is(err, New(CodeServerNotFound, "server does not exist")) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("disk full")
	err := Wrap(CodeUnknown, "put channel", cause)

	if !stderrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable via errors.Is")
	}
	if err.Error() != "put channel" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestCodeOfTraversesChains(t *testing.T) {
	t.Parallel()

	inner := New(CodeChannelLimitExceeded, "too many channels")
	wrapped := fmt.Errorf("create channel: %w", inner)

	if got := CodeOf(wrapped); got != CodeChannelLimitExceeded {
		t.Fatalf("CodeOf = %q, want %q", got, CodeChannelLimitExceeded)
	}
	if got := CodeOf(stderrors.New("plain")); got != CodeUnknown {
		t.Fatalf("CodeOf plain error = %q, want %q", got, CodeUnknown)
	}
	if got := CodeOf(nil); got != CodeUnknown {
		t.Fatalf("CodeOf nil = %q, want %q", got, CodeUnknown)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		code Code
		want int
	}{
		{CodeAccountInvalidToken, http.StatusUnauthorized},
		{CodeServerMemberRequired, http.StatusForbidden},
		{CodeServerNotFound, http.StatusNotFound},
		{CodeChannelNotFound, http.StatusNotFound},
		{CodeChannelLimitExceeded, http.StatusBadRequest},
		{CodeChannelCannotDeleteDefault, http.StatusBadRequest},
		{CodeRateLimited, http.StatusTooManyRequests},
		{CodeUnknown, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Fatalf("HTTPStatus(%q) = %d, want %d", tc.code, got, tc.want)
		}
	}
}
