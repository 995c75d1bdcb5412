package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestRegistryMapsEveryCode(t *testing.T) {
	tests := map[Code]Metadata{
		CodeValidation:    {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true},
		CodeUnauthorized:  {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required"},
		CodeSignature:     {HTTPStatus: http.StatusBadRequest, PublicMessage: "invalid signature"},
		CodeForbidden:     {HTTPStatus: http.StatusForbidden, PublicMessage: "access denied"},
		CodeNotFound:      {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found"},
		CodeConflict:      {HTTPStatus: http.StatusConflict, PublicMessage: "conflict detected"},
		CodeStateConflict: {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "state transition disallowed", DetailsAllowed: true},
		CodeIdempotency:   {HTTPStatus: http.StatusConflict, PublicMessage: "idempotency key reused", DetailsAllowed: true},
		CodeRateLimit:     {HTTPStatus: http.StatusTooManyRequests, PublicMessage: "rate limit exceeded"},
		CodeInternal:      {HTTPStatus: http.StatusInternalServerError, PublicMessage: "internal server error", Retryable: true},
		CodeDependency:    {HTTPStatus: http.StatusServiceUnavailable, PublicMessage: "dependency unavailable", Retryable: true, DetailsAllowed: true},
	}
	if len(tests) != len(registry) {
		t.Fatalf("registry has %d codes, test covers %d", len(registry), len(tests))
	}
	for code, want := range tests {
		if got := MetadataFor(code); got != want {
			t.Errorf("%s: got %+v want %+v", code, got, want)
		}
	}
	if got := MetadataFor("SOMETHING_UNKNOWN"); got.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("unknown code should fall back to internal, got %d", got.HTTPStatus)
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	if got := New(CodeValidation, "email is required").Error(); got != "VALIDATION_ERROR: email is required" {
		t.Fatalf("unexpected message %q", got)
	}
	err := Wrap(CodeDependency, stdErrors.New("connection refused"), "load cart")
	if got := err.Error(); got != "DEPENDENCY_ERROR: load cart: connection refused" {
		t.Fatalf("unexpected message %q", got)
	}
	if (&Error{}).Code() != CodeInternal {
		t.Fatal("zero code should read as internal")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "reserve stock").WithDetails(map[string]any{"sku": "TEE-01"})
	if !stdErrors.Is(wrapped, cause) {
		t.Fatal("Wrap did not preserve cause")
	}
	if wrapped.Details() == nil || wrapped.Message() != "reserve stock" {
		t.Fatalf("unexpected error state %+v", wrapped)
	}
	if Wrap(CodeInternal, nil, "x").Unwrap() != nil {
		t.Fatal("nil cause should unwrap to nil")
	}
}

func TestErrorsIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("checkout: %w", New(CodeStateConflict, "order already paid"))
	if !stdErrors.Is(err, New(CodeStateConflict, "")) {
		t.Fatal("expected code match through the chain")
	}
	if stdErrors.Is(err, New(CodeConflict, "")) {
		t.Fatal("different code should not match")
	}
}

func TestIsCodeUsesOutermostTypedError(t *testing.T) {
	inner := New(CodeRateLimit, "slow down")
	outer := fmt.Errorf("payfast: %w", inner)
	if !IsCode(outer, CodeRateLimit) || IsCode(outer, CodeConflict) {
		t.Fatal("IsCode mismatch on wrapped error")
	}
	if IsCode(stdErrors.New("plain"), CodeInternal) {
		t.Fatal("plain error should not match any code")
	}
	relabelled := Wrap(CodeDependency, inner, "notify")
	if !IsCode(relabelled, CodeDependency) {
		t.Fatal("outer code should win")
	}
	if As(nil) != nil {
		t.Fatal("As(nil) should return nil")
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{New(CodeValidation, "bad payload"), false},
		{New(CodeDependency, "redis down"), true},
		{stdErrors.New("unclassified"), true},
		{nil, false},
	}
	for _, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
