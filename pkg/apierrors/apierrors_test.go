package apierrors

import (
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
)

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeInvalidArgument:       400,
		CodeInvalidReadState:      400,
		CodeMissingCorrelation:    404,
		CodeProtocolViolation:     502,
		CodeNotReplied:            502,
		CodeCertificateInvalid:    502,
		CodeDelegationUnavailable: 503,
		CodeSignerUnavailable:     503,
		Code("UNKNOWN"):           500,
	}

	for code, want := range cases {
		if got := HTTPStatus(code); got != want {
			t.Fatalf("HTTPStatus(%s)=%d, want %d", code, got, want)
		}
	}
}

func TestGRPCStatus(t *testing.T) {
	cases := map[Code]codes.Code{
		CodeInvalidArgument:    codes.InvalidArgument,
		CodeMissingCorrelation: codes.NotFound,
		CodeProtocolViolation:  codes.FailedPrecondition,
		CodeSignerUnavailable:  codes.Unavailable,
		Code("UNKNOWN"):        codes.Internal,
	}

	for code, want := range cases {
		if got := GRPCStatus(code); got != want {
			t.Fatalf("GRPCStatus(%s)=%s, want %s", code, got, want)
		}
	}
}

func TestErrorRequestID(t *testing.T) {
	err := New(CodeMissingCorrelation, "request unknown").WithRequestID("abc123")
	if err.RequestID() != "abc123" {
		t.Fatalf("unexpected request id %q", err.RequestID())
	}
	if err.Error() != "request unknown" {
		t.Fatalf("unexpected Error(): %s", err.Error())
	}
	if New(CodeNotReplied, "").Error() != string(CodeNotReplied) {
		t.Fatal("empty message should fall back to code")
	}
}

func TestFromError(t *testing.T) {
	original := New(CodeProtocolViolation, "method mismatch")
	wrapped := fmt.Errorf("wrap: %w", original)
	if apiErr, ok := FromError(wrapped); !ok {
		t.Fatal("expected to unwrap api error")
	} else if apiErr.Code != CodeProtocolViolation {
		t.Fatalf("unexpected code %s", apiErr.Code)
	}
	if _, ok := FromError(fmt.Errorf("other")); ok {
		t.Fatal("should not unwrap plain error")
	}
}
