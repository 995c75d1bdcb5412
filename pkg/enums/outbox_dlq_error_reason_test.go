package enums

import "testing"

func TestParseOutboxDLQErrorReason(t *testing.T) {
	for _, value := range []string{"max_attempts", "non_retryable"} {
		reason, err := ParseOutboxDLQErrorReason(value)
		if err != nil {
			t.Fatalf("parse %q: %v", value, err)
		}
		if reason.String() != value {
			t.Fatalf("expected %q got %q", value, reason)
		}
	}
	if _, err := ParseOutboxDLQErrorReason("timeout"); err == nil {
		t.Fatal("expected unknown reason to fail")
	}
}
