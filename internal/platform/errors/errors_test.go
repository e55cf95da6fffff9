package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/grpc/codes"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := New(CodeSessionNotFound, "session 42 not found")
	if !stderrors.Is(err, New(CodeSessionNotFound, "")) {
		t.Fatal("expected errors with same code to match")
	}
	if stderrors.Is(err, New(CodeModeUnknown, "")) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(CodeStoreUnavailable, "persist session", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be found in chain")
	}
	if CodeOf(err) != CodeStoreUnavailable {
		t.Fatalf("CodeOf = %v, want %v", CodeOf(err), CodeStoreUnavailable)
	}
}

func TestCodeOfUnknown(t *testing.T) {
	if got := CodeOf(fmt.Errorf("plain")); got != CodeUnknown {
		t.Fatalf("CodeOf = %v, want %v", got, CodeUnknown)
	}
}

func TestGRPCCodeMapping(t *testing.T) {
	tests := []struct {
		code Code
		want codes.Code
	}{
		{CodeRatingUnknown, codes.InvalidArgument},
		{CodeUpdateEmpty, codes.InvalidArgument},
		{CodeModeUnknown, codes.NotFound},
		{CodeSessionNotFound, codes.NotFound},
		{CodeIdentityMissing, codes.Unauthenticated},
		{CodeStoreUnavailable, codes.Unavailable},
		{CodeUnknown, codes.Internal},
	}
	for _, tc := range tests {
		if got := tc.code.GRPCCode(); got != tc.want {
			t.Fatalf("%v.GRPCCode() = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{New(CodeUpdateEmpty, "no updates provided"), http.StatusBadRequest},
		{New(CodeModeUnknown, "mode not found"), http.StatusNotFound},
		{New(CodeIdentityInvalid, "bad token"), http.StatusUnauthorized},
		{New(CodeStoreUnavailable, "db down"), http.StatusServiceUnavailable},
		{fmt.Errorf("plain"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
